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

// ShardAdminHandler exposes the shard table management operations to admins.
type ShardAdminHandler struct {
	service *services.CashierService
	logger  *logrus.Logger
}

// NewShardAdminHandler creates the admin-facing shard handler.
func NewShardAdminHandler(service *services.CashierService, logger *logrus.Logger) *ShardAdminHandler {
	return &ShardAdminHandler{service: service, logger: logger}
}

// GetShardStateHandler GET /api/v1/admin/shards
func (h *ShardAdminHandler) GetShardStateHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"state": dto.ShardStateResponse{
			ShardCount: h.service.ShardCount(),
			MaxShards:  cashier.MaxShardCount,
		},
	})
}

// GetShardRangeHandler GET /api/v1/admin/shards/range?index=0&limit=16
func (h *ShardAdminHandler) GetShardRangeHandler(c *gin.Context) {
	index, err := strconv.Atoi(c.DefaultQuery("index", "0"))
	if err != nil || index < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid index"})
		return
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "16"))
	if err != nil || limit < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid limit"})
		return
	}

	stats := h.service.ShardRange(index, limit)
	out := make([]dto.ShardStatsResponse, len(stats))
	for i, s := range stats {
		out[i] = dto.ShardStatsResponse{
			Index:        s.Index,
			CashInCount:  s.CashInCount,
			CashOutCount: s.CashOutCount,
		}
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "shards": out})
}

// AddShardsHandler POST /api/v1/admin/shards/add
func (h *ShardAdminHandler) AddShardsHandler(c *gin.Context) {
	var req dto.AddShardsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid request", "details": err.Error()})
		return
	}
	if err := h.service.AddShards(req.Count); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "shard_count": h.service.ShardCount()})
}

// ReplaceShardsHandler POST /api/v1/admin/shards/replace
func (h *ShardAdminHandler) ReplaceShardsHandler(c *gin.Context) {
	var req dto.ReplaceShardsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid request", "details": err.Error()})
		return
	}
	if err := h.service.ReplaceShards(req.FromIndex, req.Count); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "shard_count": h.service.ShardCount()})
}

// ConfigureShardAdminHandler POST /api/v1/admin/shards/admins
func (h *ShardAdminHandler) ConfigureShardAdminHandler(c *gin.Context) {
	var req dto.ConfigureShardAdminRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid request", "details": err.Error()})
		return
	}
	account, err := utils.ParseAddress(req.Account)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid account", "details": err.Error()})
		return
	}
	if err := h.service.ConfigureShardAdmin(account, req.Status); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// GetShardAdminHandler GET /api/v1/admin/shards/admins/:account
func (h *ShardAdminHandler) GetShardAdminHandler(c *gin.Context) {
	account, err := utils.ParseAddress(c.Param("account"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid account", "details": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"account":  account.Hex(),
		"is_admin": h.service.IsShardAdmin(account),
	})
}

// GetRouteHandler GET /api/v1/admin/shards/route/:txId
func (h *ShardAdminHandler) GetRouteHandler(c *gin.Context) {
	txID, err := utils.ParseTxID(c.Param("txId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid tx_id", "details": err.Error()})
		return
	}
	shard, err := h.service.Route(txID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"route": dto.RouteResponse{
			TxID:  txID.Hex(),
			Shard: shard,
		},
	})
}
