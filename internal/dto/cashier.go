package dto

// ==================== Cashier operation DTOs ====================

// CashInRequest immediate cash-in request
type CashInRequest struct {
	Account string `json:"account" binding:"required"` // recipient wallet address
	Amount  string `json:"amount" binding:"required"`  // decimal token amount
	TxID    string `json:"tx_id" binding:"required"`   // off-chain operation id (32-byte hex)
}

// CashInPremintRequest premint cash-in request
type CashInPremintRequest struct {
	Account     string `json:"account" binding:"required"`
	Amount      string `json:"amount" binding:"required"`
	TxID        string `json:"tx_id" binding:"required"`
	ReleaseTime uint64 `json:"release_time" binding:"required"` // unix seconds
}

// CashInPremintRevokeRequest premint revocation request
type CashInPremintRevokeRequest struct {
	TxID        string `json:"tx_id" binding:"required"`
	ReleaseTime uint64 `json:"release_time" binding:"required"`
}

// ReschedulePremintRequest premint release reschedule request
type ReschedulePremintRequest struct {
	OriginalRelease uint64 `json:"original_release" binding:"required"`
	TargetRelease   uint64 `json:"target_release" binding:"required"`
}

// CashOutRequest cash-out request (request, internal or forced)
type CashOutRequest struct {
	Account string `json:"account" binding:"required"`
	Amount  string `json:"amount" binding:"required"`
	TxID    string `json:"tx_id" binding:"required"`
}

// CashOutSettleRequest confirm/reverse request for a pending cash-out
type CashOutSettleRequest struct {
	TxID string `json:"tx_id" binding:"required"`
}

// CashInBatchRequest batch cash-in request
type CashInBatchRequest struct {
	Items  []CashInRequest `json:"items" binding:"required,min=1,dive"`
	Policy string          `json:"policy"` // 'revert' (default) or 'skip'
}

// CashOutBatchRequest batch confirm/reverse request
type CashOutBatchRequest struct {
	TxIDs  []string `json:"tx_ids" binding:"required,min=1"`
	Policy string   `json:"policy"` // 'revert' (default) or 'skip'
}

// BatchOutcomeResponse per-element outcome of a skip-policy batch
type BatchOutcomeResponse struct {
	TxID    string `json:"tx_id"`
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// ConfigureHooksRequest hook configuration request for one cash-out txId
type ConfigureHooksRequest struct {
	TxID     string `json:"tx_id" binding:"required"`
	Callable string `json:"callable"` // hook contract address, zero to clear
	Flags    uint16 `json:"flags"`    // bit mask over the cash-out hook indices
}

// HookConfigResponse stored hook configuration
type HookConfigResponse struct {
	TxID     string `json:"tx_id"`
	Callable string `json:"callable"`
	Flags    uint16 `json:"flags"`
}
