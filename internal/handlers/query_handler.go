package handlers

import (
	"net/http"
	"strconv"

	"cashier-backend/internal/cashier"
	"cashier-backend/internal/dto"
	"cashier-backend/internal/services"
	"cashier-backend/internal/utils"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// QueryHandler exposes the read-only cashier views: point and bulk record
// lookups, the pending-set pagination protocol, aggregate counters and the
// audit history.
type QueryHandler struct {
	service *services.CashierService
	logger  *logrus.Logger
}

// NewQueryHandler creates the read-only handler.
func NewQueryHandler(service *services.CashierService, logger *logrus.Logger) *QueryHandler {
	return &QueryHandler{service: service, logger: logger}
}

func cashInResponse(txID cashier.TxID, rec cashier.CashInRecord) dto.CashInResponse {
	return dto.CashInResponse{
		TxID:    txID.Hex(),
		Status:  rec.Status.String(),
		Account: rec.Account.Hex(),
		Amount:  utils.FormatAmount(rec.Amount),
	}
}

func cashOutResponse(txID cashier.TxID, rec cashier.CashOutRecord) dto.CashOutResponse {
	return dto.CashOutResponse{
		TxID:    txID.Hex(),
		Status:  rec.Status.String(),
		Account: rec.Account.Hex(),
		Amount:  utils.FormatAmount(rec.Amount),
		Flags:   rec.Flags,
	}
}

// GetCashInHandler GET /api/v1/queries/cash-ins/:txId
func (h *QueryHandler) GetCashInHandler(c *gin.Context) {
	txID, err := utils.ParseTxID(c.Param("txId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid tx_id", "details": err.Error()})
		return
	}
	rec, err := h.service.GetCashIn(txID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "cash_in": cashInResponse(txID, rec)})
}

// GetCashOutHandler GET /api/v1/queries/cash-outs/:txId
func (h *QueryHandler) GetCashOutHandler(c *gin.Context) {
	txID, err := utils.ParseTxID(c.Param("txId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid tx_id", "details": err.Error()})
		return
	}
	rec, err := h.service.GetCashOut(txID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "cash_out": cashOutResponse(txID, rec)})
}

// GetCashInsHandler POST /api/v1/queries/cash-ins
func (h *QueryHandler) GetCashInsHandler(c *gin.Context) {
	var req dto.BulkLookupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid request", "details": err.Error()})
		return
	}
	txIDs, err := parseTxIDs(req.TxIDs)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid tx_id", "details": err.Error()})
		return
	}
	records, err := h.service.GetCashIns(txIDs)
	if err != nil {
		respondError(c, err)
		return
	}
	out := make([]dto.CashInResponse, len(records))
	for i, rec := range records {
		out[i] = cashInResponse(txIDs[i], rec)
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "cash_ins": out})
}

// GetCashOutsHandler POST /api/v1/queries/cash-outs
func (h *QueryHandler) GetCashOutsHandler(c *gin.Context) {
	var req dto.BulkLookupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid request", "details": err.Error()})
		return
	}
	txIDs, err := parseTxIDs(req.TxIDs)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid tx_id", "details": err.Error()})
		return
	}
	records, err := h.service.GetCashOuts(txIDs)
	if err != nil {
		respondError(c, err)
		return
	}
	out := make([]dto.CashOutResponse, len(records))
	for i, rec := range records {
		out[i] = cashOutResponse(txIDs[i], rec)
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "cash_outs": out})
}

// GetPendingPageHandler GET /api/v1/queries/cash-outs/pending?index=0&limit=100
//
// Callers paginate until a short page, then compare processed_count against
// the first page's value. A change means settlements interleaved with the
// scan and the walk must restart.
func (h *QueryHandler) GetPendingPageHandler(c *gin.Context) {
	index, err := strconv.Atoi(c.DefaultQuery("index", "0"))
	if err != nil || index < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid index"})
		return
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "100"))
	if err != nil || limit < 1 || limit > 1000 {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid limit"})
		return
	}

	page := h.service.PendingCashOutPage(index, limit)
	txIDs := make([]string, len(page.TxIDs))
	for i, id := range page.TxIDs {
		txIDs[i] = id.Hex()
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"page": dto.PendingPageResponse{
			TxIDs:          txIDs,
			Index:          index,
			Limit:          limit,
			ProcessedCount: page.ProcessedCount,
		},
	})
}

// GetCashOutStateHandler GET /api/v1/queries/cash-outs/state
func (h *QueryHandler) GetCashOutStateHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"state": dto.CashOutStateResponse{
			PendingCount:   h.service.PendingCashOutCount(),
			ProcessedCount: h.service.ProcessedCashOutCount(),
			TotalPending:   utils.FormatAmount(h.service.TotalPendingCashOut()),
		},
	})
}

// GetBalanceHandler GET /api/v1/queries/balances/:account
func (h *QueryHandler) GetBalanceHandler(c *gin.Context) {
	account, err := utils.ParseAddress(c.Param("account"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid account", "details": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"balance": dto.BalanceResponse{
			Account: account.Hex(),
			Balance: utils.FormatAmount(h.service.CashOutBalanceOf(account)),
		},
	})
}

// GetOperationHistoryHandler GET /api/v1/queries/history/tx/:txId
func (h *QueryHandler) GetOperationHistoryHandler(c *gin.Context) {
	txID, err := utils.ParseTxID(c.Param("txId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid tx_id", "details": err.Error()})
		return
	}
	events, err := h.service.OperationHistory(c.Request.Context(), txID)
	if err != nil {
		h.logger.WithError(err).Error("Failed to fetch operation history")
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Failed to fetch history"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "events": events})
}

// GetAccountHistoryHandler GET /api/v1/queries/history/account/:account?page=1&page_size=20
func (h *QueryHandler) GetAccountHistoryHandler(c *gin.Context) {
	account, err := utils.ParseAddress(c.Param("account"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid account", "details": err.Error()})
		return
	}
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))

	events, total, err := h.service.AccountHistory(c.Request.Context(), account, page, pageSize)
	if err != nil {
		h.logger.WithError(err).Error("Failed to fetch account history")
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Failed to fetch history"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"history": dto.HistoryResponse{
			Events:   events,
			Total:    total,
			Page:     page,
			PageSize: pageSize,
		},
	})
}

// GetRecentOperationsHandler GET /api/v1/queries/history/recent?limit=50
func (h *QueryHandler) GetRecentOperationsHandler(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	events, err := h.service.RecentOperations(c.Request.Context(), limit)
	if err != nil {
		h.logger.WithError(err).Error("Failed to fetch recent operations")
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Failed to fetch history"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "events": events})
}
