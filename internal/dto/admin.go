package dto

import "github.com/golang-jwt/jwt/v5"

// ==================== Auth DTOs ====================

// LoginRequest operator login request
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
	TOTPCode string `json:"totp_code"` // required when TOTP is configured for the operator
}

// LoginResponse operator login response
type LoginResponse struct {
	Success bool   `json:"success"`
	Token   string `json:"token,omitempty"`
	Message string `json:"message"`
}

// JWTClaims operator token claims
type JWTClaims struct {
	Username string `json:"username"`
	Role     string `json:"role"` // 'operator' or 'admin'
	jwt.RegisteredClaims
}

// ==================== Shard admin DTOs ====================

// AddShardsRequest shard table growth request
type AddShardsRequest struct {
	Count int `json:"count" binding:"required,min=1"`
}

// ReplaceShardsRequest bounded in-place shard replacement request
type ReplaceShardsRequest struct {
	FromIndex int `json:"from_index"`
	Count     int `json:"count" binding:"required,min=1"`
}

// ConfigureShardAdminRequest shard-admin grant/revoke request
type ConfigureShardAdminRequest struct {
	Account string `json:"account" binding:"required"`
	Status  bool   `json:"status"`
}

// ShardStateResponse current routing table state
type ShardStateResponse struct {
	ShardCount int `json:"shard_count"`
	MaxShards  int `json:"max_shards"`
}

// ShardStatsResponse per-shard introspection entry
type ShardStatsResponse struct {
	Index        int `json:"index"`
	CashInCount  int `json:"cash_in_count"`
	CashOutCount int `json:"cash_out_count"`
}

// RouteResponse deterministic shard index for a txId
type RouteResponse struct {
	TxID  string `json:"tx_id"`
	Shard int    `json:"shard"`
}
