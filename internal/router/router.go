// Package router sets up the HTTP routes
package router

import (
	"net/http"
	"strconv"
	"strings"

	"cashier-backend/internal/config"
	"cashier-backend/internal/handlers"
	"cashier-backend/internal/middleware"
	"cashier-backend/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

// corsMiddleware applies the configured origin whitelist. An empty whitelist
// allows every origin.
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		var allowedOrigins []string
		allowCredentials := false
		maxAge := 86400

		if config.AppConfig != nil && len(config.AppConfig.CORS.AllowedOrigins) > 0 {
			allowedOrigins = config.AppConfig.CORS.AllowedOrigins
			allowCredentials = config.AppConfig.CORS.AllowCredentials
			if config.AppConfig.CORS.MaxAge > 0 {
				maxAge = config.AppConfig.CORS.MaxAge
			}
		}

		origin := c.GetHeader("Origin")
		allowed := len(allowedOrigins) == 0
		for _, o := range allowedOrigins {
			if o == "*" || strings.EqualFold(o, origin) {
				allowed = true
				break
			}
		}

		if origin != "" && allowed {
			if len(allowedOrigins) == 0 {
				c.Header("Access-Control-Allow-Origin", "*")
			} else {
				c.Header("Access-Control-Allow-Origin", origin)
				c.Header("Vary", "Origin")
			}
			if allowCredentials {
				c.Header("Access-Control-Allow-Credentials", "true")
			}
			c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			c.Header("Access-Control-Allow-Headers", "Authorization, Content-Type")
			c.Header("Access-Control-Max-Age", strconv.Itoa(maxAge))
		} else if origin != "" {
			logrus.WithFields(logrus.Fields{
				"origin": origin,
				"path":   c.Request.URL.Path,
			}).Warn("CORS: Request blocked - origin not in whitelist")
		}

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// SetupRouter builds the gin engine with all routes wired.
func SetupRouter(
	service *services.CashierService,
	push *services.PendingPushService,
	logger *logrus.Logger,
) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(corsMiddleware())

	authHandler := handlers.NewAuthHandler(logger)
	cashierHandler := handlers.NewCashierHandler(service, logger)
	queryHandler := handlers.NewQueryHandler(service, logger)
	shardAdminHandler := handlers.NewShardAdminHandler(service, logger)
	wsHandler := handlers.NewWebSocketHandler(push)
	authMiddleware := middleware.NewAuthMiddleware(logger)

	// Health and metrics
	r.GET("/health", handlers.HealthCheckHandler)
	r.GET("/health/db", handlers.DatabaseHealthCheckHandler)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// WebSocket pending-set push
	r.GET("/ws", wsHandler.HandleWebSocket)
	r.GET("/ws/stats", wsHandler.ConnectionCountHandler)

	api := r.Group("/api/v1")

	// Authentication
	auth := api.Group("/auth")
	{
		auth.POST("/login", authHandler.LoginHandler)
		auth.POST("/totp/generate", authHandler.GenerateTOTPSecretHandler)
	}

	// State-changing cashier operations (operator or admin)
	cashierGroup := api.Group("/cashier")
	cashierGroup.Use(authMiddleware.RequireAuth())
	{
		cashierGroup.POST("/cash-in", cashierHandler.CashInHandler)
		cashierGroup.POST("/cash-in/batch", cashierHandler.CashInBatchHandler)
		cashierGroup.POST("/cash-in/premint", cashierHandler.CashInPremintHandler)
		cashierGroup.POST("/cash-in/premint/revoke", cashierHandler.CashInPremintRevokeHandler)
		cashierGroup.POST("/cash-in/premint/reschedule", cashierHandler.ReschedulePremintHandler)
		cashierGroup.POST("/cash-out/request", cashierHandler.RequestCashOutHandler)
		cashierGroup.POST("/cash-out/confirm", cashierHandler.ConfirmCashOutHandler)
		cashierGroup.POST("/cash-out/confirm/batch", cashierHandler.ConfirmCashOutBatchHandler)
		cashierGroup.POST("/cash-out/reverse", cashierHandler.ReverseCashOutHandler)
		cashierGroup.POST("/cash-out/reverse/batch", cashierHandler.ReverseCashOutBatchHandler)
		cashierGroup.POST("/cash-out/internal", cashierHandler.InternalCashOutHandler)
		cashierGroup.POST("/cash-out/force", cashierHandler.ForceCashOutHandler)
		cashierGroup.POST("/hooks", cashierHandler.ConfigureHooksHandler)
		cashierGroup.GET("/hooks/:txId", cashierHandler.GetHookConfigHandler)
	}

	// Read-only views (operator or admin)
	queries := api.Group("/queries")
	queries.Use(authMiddleware.RequireAuth())
	{
		queries.GET("/cash-ins/:txId", queryHandler.GetCashInHandler)
		queries.POST("/cash-ins", queryHandler.GetCashInsHandler)
		queries.GET("/cash-outs/pending", queryHandler.GetPendingPageHandler)
		queries.GET("/cash-outs/state", queryHandler.GetCashOutStateHandler)
		queries.GET("/cash-outs/:txId", queryHandler.GetCashOutHandler)
		queries.POST("/cash-outs", queryHandler.GetCashOutsHandler)
		queries.GET("/balances/:account", queryHandler.GetBalanceHandler)
		queries.GET("/history/tx/:txId", queryHandler.GetOperationHistoryHandler)
		queries.GET("/history/account/:account", queryHandler.GetAccountHistoryHandler)
		queries.GET("/history/recent", queryHandler.GetRecentOperationsHandler)
	}

	// Shard table management (admin only)
	admin := api.Group("/admin")
	admin.Use(authMiddleware.RequireAdmin())
	{
		admin.GET("/shards", shardAdminHandler.GetShardStateHandler)
		admin.GET("/shards/range", shardAdminHandler.GetShardRangeHandler)
		admin.POST("/shards/add", shardAdminHandler.AddShardsHandler)
		admin.POST("/shards/replace", shardAdminHandler.ReplaceShardsHandler)
		admin.POST("/shards/admins", shardAdminHandler.ConfigureShardAdminHandler)
		admin.GET("/shards/admins/:account", shardAdminHandler.GetShardAdminHandler)
		admin.GET("/shards/route/:txId", shardAdminHandler.GetRouteHandler)
	}

	return r
}
