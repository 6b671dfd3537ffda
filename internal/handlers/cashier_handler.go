package handlers

import (
	"context"
	"errors"
	"net/http"

	"cashier-backend/internal/cashier"
	"cashier-backend/internal/dto"
	"cashier-backend/internal/services"
	"cashier-backend/internal/utils"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// CashierHandler exposes the state-changing cashier operations to
// authenticated operators.
type CashierHandler struct {
	service *services.CashierService
	logger  *logrus.Logger
}

// NewCashierHandler creates the operator-facing handler.
func NewCashierHandler(service *services.CashierService, logger *logrus.Logger) *CashierHandler {
	return &CashierHandler{service: service, logger: logger}
}

// statusForError maps a cashier error to the HTTP status: validation problems
// are 400, state and configuration conflicts 409, everything else 500.
func statusForError(err error) int {
	switch {
	case errors.Is(err, cashier.ErrZeroTxID),
		errors.Is(err, cashier.ErrZeroAccount),
		errors.Is(err, cashier.ErrZeroAmount),
		errors.Is(err, cashier.ErrAmountExcess),
		errors.Is(err, cashier.ErrHookFlagsInvalid),
		errors.Is(err, cashier.ErrHookCallableContractZero),
		errors.Is(err, cashier.ErrHookCallableContractNonZero):
		return http.StatusBadRequest
	case cashier.IsStateConflict(err),
		errors.Is(err, cashier.ErrFlagAlreadySet),
		errors.Is(err, cashier.ErrFlagAlreadyReset),
		errors.Is(err, cashier.ErrHookFlagsAlreadyRegistered),
		errors.Is(err, cashier.ErrShardCountExcess),
		errors.Is(err, cashier.ErrShardReplacementCountExcess),
		errors.Is(err, cashier.ErrShardReplacementOutOfRange):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func respondError(c *gin.Context, err error) {
	c.JSON(statusForError(err), gin.H{
		"success": false,
		"error":   err.Error(),
	})
}

func operatorFrom(c *gin.Context) string {
	return c.GetString("username")
}

// parseOperation validates the common account/amount/txId triple.
func parseOperation(c *gin.Context, accountStr, amountStr, txIDStr string) (common.Address, uint64, cashier.TxID, bool) {
	account, err := utils.ParseAddress(accountStr)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid account", "details": err.Error()})
		return common.Address{}, 0, cashier.TxID{}, false
	}
	amount, err := utils.ParseAmount(amountStr)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid amount", "details": err.Error()})
		return common.Address{}, 0, cashier.TxID{}, false
	}
	txID, err := utils.ParseTxID(txIDStr)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid tx_id", "details": err.Error()})
		return common.Address{}, 0, cashier.TxID{}, false
	}
	return account, amount, txID, true
}

// CashInHandler POST /api/v1/cashier/cash-in
func (h *CashierHandler) CashInHandler(c *gin.Context) {
	var req dto.CashInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid request", "details": err.Error()})
		return
	}
	account, amount, txID, ok := parseOperation(c, req.Account, req.Amount, req.TxID)
	if !ok {
		return
	}
	if err := h.service.CashIn(c.Request.Context(), account, amount, txID, operatorFrom(c)); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "tx_id": txID.Hex()})
}

// CashInPremintHandler POST /api/v1/cashier/cash-in/premint
func (h *CashierHandler) CashInPremintHandler(c *gin.Context) {
	var req dto.CashInPremintRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid request", "details": err.Error()})
		return
	}
	account, amount, txID, ok := parseOperation(c, req.Account, req.Amount, req.TxID)
	if !ok {
		return
	}
	if err := h.service.CashInPremint(c.Request.Context(), account, amount, txID, req.ReleaseTime, operatorFrom(c)); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "tx_id": txID.Hex()})
}

// CashInPremintRevokeHandler POST /api/v1/cashier/cash-in/premint/revoke
func (h *CashierHandler) CashInPremintRevokeHandler(c *gin.Context) {
	var req dto.CashInPremintRevokeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid request", "details": err.Error()})
		return
	}
	txID, err := utils.ParseTxID(req.TxID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid tx_id", "details": err.Error()})
		return
	}
	if err := h.service.CashInPremintRevoke(c.Request.Context(), txID, req.ReleaseTime, operatorFrom(c)); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "tx_id": txID.Hex()})
}

// ReschedulePremintHandler POST /api/v1/cashier/cash-in/premint/reschedule
func (h *CashierHandler) ReschedulePremintHandler(c *gin.Context) {
	var req dto.ReschedulePremintRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid request", "details": err.Error()})
		return
	}
	if err := h.service.ReschedulePremintRelease(c.Request.Context(), req.OriginalRelease, req.TargetRelease); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// RequestCashOutHandler POST /api/v1/cashier/cash-out/request
func (h *CashierHandler) RequestCashOutHandler(c *gin.Context) {
	h.handleCashOutEntry(c, func(ctx *gin.Context, account common.Address, amount uint64, txID cashier.TxID) error {
		return h.service.RequestCashOut(ctx.Request.Context(), account, amount, txID, operatorFrom(ctx))
	})
}

// InternalCashOutHandler POST /api/v1/cashier/cash-out/internal
func (h *CashierHandler) InternalCashOutHandler(c *gin.Context) {
	h.handleCashOutEntry(c, func(ctx *gin.Context, account common.Address, amount uint64, txID cashier.TxID) error {
		return h.service.MakeInternalCashOut(ctx.Request.Context(), account, amount, txID, operatorFrom(ctx))
	})
}

// ForceCashOutHandler POST /api/v1/cashier/cash-out/force
func (h *CashierHandler) ForceCashOutHandler(c *gin.Context) {
	h.handleCashOutEntry(c, func(ctx *gin.Context, account common.Address, amount uint64, txID cashier.TxID) error {
		return h.service.ForceCashOut(ctx.Request.Context(), account, amount, txID, operatorFrom(ctx))
	})
}

func (h *CashierHandler) handleCashOutEntry(c *gin.Context, op func(*gin.Context, common.Address, uint64, cashier.TxID) error) {
	var req dto.CashOutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid request", "details": err.Error()})
		return
	}
	account, amount, txID, ok := parseOperation(c, req.Account, req.Amount, req.TxID)
	if !ok {
		return
	}
	if err := op(c, account, amount, txID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "tx_id": txID.Hex()})
}

// ConfirmCashOutHandler POST /api/v1/cashier/cash-out/confirm
func (h *CashierHandler) ConfirmCashOutHandler(c *gin.Context) {
	h.handleCashOutSettle(c, func(ctx *gin.Context, txID cashier.TxID) error {
		return h.service.ConfirmCashOut(ctx.Request.Context(), txID, operatorFrom(ctx))
	})
}

// ReverseCashOutHandler POST /api/v1/cashier/cash-out/reverse
func (h *CashierHandler) ReverseCashOutHandler(c *gin.Context) {
	h.handleCashOutSettle(c, func(ctx *gin.Context, txID cashier.TxID) error {
		return h.service.ReverseCashOut(ctx.Request.Context(), txID, operatorFrom(ctx))
	})
}

func (h *CashierHandler) handleCashOutSettle(c *gin.Context, op func(*gin.Context, cashier.TxID) error) {
	var req dto.CashOutSettleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid request", "details": err.Error()})
		return
	}
	txID, err := utils.ParseTxID(req.TxID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid tx_id", "details": err.Error()})
		return
	}
	if err := op(c, txID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "tx_id": txID.Hex()})
}

func parseBatchPolicy(s string) (cashier.BatchPolicy, error) {
	switch s {
	case "", "revert":
		return cashier.BatchPolicyRevert, nil
	case "skip":
		return cashier.BatchPolicySkip, nil
	default:
		return 0, errors.New("policy must be 'revert' or 'skip'")
	}
}

func batchOutcomesResponse(outcomes []cashier.BatchOutcome) []dto.BatchOutcomeResponse {
	if outcomes == nil {
		return nil
	}
	out := make([]dto.BatchOutcomeResponse, len(outcomes))
	for i, o := range outcomes {
		out[i] = dto.BatchOutcomeResponse{
			TxID:    o.TxID.Hex(),
			Success: o.Err == nil,
		}
		if o.Err != nil {
			out[i].Error = o.Err.Error()
		}
	}
	return out
}

// CashInBatchHandler POST /api/v1/cashier/cash-in/batch
func (h *CashierHandler) CashInBatchHandler(c *gin.Context) {
	var req dto.CashInBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid request", "details": err.Error()})
		return
	}
	policy, err := parseBatchPolicy(req.Policy)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}
	items := make([]cashier.CashInItem, len(req.Items))
	for i, r := range req.Items {
		account, amount, txID, ok := parseOperation(c, r.Account, r.Amount, r.TxID)
		if !ok {
			return
		}
		items[i] = cashier.CashInItem{Account: account, Amount: amount, TxID: txID}
	}
	outcomes, err := h.service.CashInBatch(c.Request.Context(), items, policy, operatorFrom(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "outcomes": batchOutcomesResponse(outcomes)})
}

// ConfirmCashOutBatchHandler POST /api/v1/cashier/cash-out/confirm/batch
func (h *CashierHandler) ConfirmCashOutBatchHandler(c *gin.Context) {
	h.handleCashOutBatch(c, h.service.ConfirmCashOutBatch)
}

// ReverseCashOutBatchHandler POST /api/v1/cashier/cash-out/reverse/batch
func (h *CashierHandler) ReverseCashOutBatchHandler(c *gin.Context) {
	h.handleCashOutBatch(c, h.service.ReverseCashOutBatch)
}

func (h *CashierHandler) handleCashOutBatch(c *gin.Context, op func(ctx context.Context, txIDs []cashier.TxID, policy cashier.BatchPolicy, operator string) ([]cashier.BatchOutcome, error)) {
	var req dto.CashOutBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid request", "details": err.Error()})
		return
	}
	policy, err := parseBatchPolicy(req.Policy)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}
	txIDs, err := parseTxIDs(req.TxIDs)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid tx_id", "details": err.Error()})
		return
	}
	outcomes, err := op(c.Request.Context(), txIDs, policy, operatorFrom(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "outcomes": batchOutcomesResponse(outcomes)})
}

func parseTxIDs(raw []string) ([]cashier.TxID, error) {
	txIDs := make([]cashier.TxID, len(raw))
	for i, s := range raw {
		id, err := utils.ParseTxID(s)
		if err != nil {
			return nil, err
		}
		txIDs[i] = id
	}
	return txIDs, nil
}

// ConfigureHooksHandler POST /api/v1/cashier/hooks
func (h *CashierHandler) ConfigureHooksHandler(c *gin.Context) {
	var req dto.ConfigureHooksRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid request", "details": err.Error()})
		return
	}
	txID, err := utils.ParseTxID(req.TxID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid tx_id", "details": err.Error()})
		return
	}
	var callable common.Address
	if req.Callable != "" {
		callable, err = utils.ParseAddress(req.Callable)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid callable", "details": err.Error()})
			return
		}
	}
	if err := h.service.ConfigureCashOutHooks(txID, callable, req.Flags); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "tx_id": txID.Hex()})
}

// GetHookConfigHandler GET /api/v1/cashier/hooks/:txId
func (h *CashierHandler) GetHookConfigHandler(c *gin.Context) {
	txID, err := utils.ParseTxID(c.Param("txId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid tx_id", "details": err.Error()})
		return
	}
	cfg := h.service.HookConfigOf(txID)
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"config": dto.HookConfigResponse{
			TxID:     txID.Hex(),
			Callable: cfg.Callable.Hex(),
			Flags:    cfg.Flags,
		},
	})
}
