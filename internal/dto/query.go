package dto

import "cashier-backend/internal/models"

// ==================== Query DTOs ====================

// CashInResponse one cash-in record
type CashInResponse struct {
	TxID    string `json:"tx_id"`
	Status  string `json:"status"`
	Account string `json:"account"`
	Amount  string `json:"amount"`
}

// CashOutResponse one cash-out record
type CashOutResponse struct {
	TxID    string `json:"tx_id"`
	Status  string `json:"status"`
	Account string `json:"account"`
	Amount  string `json:"amount"`
	Flags   uint8  `json:"flags"`
}

// BulkLookupRequest bulk point-lookup request
type BulkLookupRequest struct {
	TxIDs []string `json:"tx_ids" binding:"required,min=1"`
}

// PendingPageResponse one page of the pending cash-out set. Scanners compare
// processed_count across pages to detect interleaved settlement.
type PendingPageResponse struct {
	TxIDs          []string `json:"tx_ids"`
	Index          int      `json:"index"`
	Limit          int      `json:"limit"`
	ProcessedCount uint64   `json:"processed_count"`
}

// CashOutStateResponse the aggregate cash-out counters
type CashOutStateResponse struct {
	PendingCount   int    `json:"pending_count"`
	ProcessedCount uint64 `json:"processed_count"`
	TotalPending   string `json:"total_pending"`
}

// BalanceResponse pending cash-out aggregate for one account
type BalanceResponse struct {
	Account string `json:"account"`
	Balance string `json:"balance"`
}

// HistoryResponse a page of audit events
type HistoryResponse struct {
	Events   []*models.OperationEvent `json:"events"`
	Total    int64                    `json:"total"`
	Page     int                      `json:"page"`
	PageSize int                      `json:"page_size"`
}
