// Package app wires the service container
package app

import (
	"fmt"
	"sync"

	"cashier-backend/internal/cashier"
	"cashier-backend/internal/clients"
	"cashier-backend/internal/config"
	"cashier-backend/internal/db"
	"cashier-backend/internal/events"
	"cashier-backend/internal/metrics"
	"cashier-backend/internal/repository"
	"cashier-backend/internal/services"
	"cashier-backend/internal/utils"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// ServiceContainer holds the initialized service graph.
type ServiceContainer struct {
	DB *gorm.DB

	// Repositories
	OperationEventRepo repository.OperationEventRepository

	// Clients
	NATSClient  *clients.NATSClient
	TokenClient *clients.TokenClient
	HookClient  *clients.HookClient

	// Core
	Cashier *cashier.Cashier

	// Services
	Publisher      *events.Publisher
	PushService    *services.PendingPushService
	CashierService *services.CashierService

	Logger *logrus.Logger
}

// Global service container instance
var Container *ServiceContainer
var containerOnce sync.Once

// InitializeContainer builds the container once. Config and the database
// must already be initialized.
func InitializeContainer(logger *logrus.Logger) (*ServiceContainer, error) {
	var initErr error

	containerOnce.Do(func() {
		logger.Info("Initializing service container")

		c := &ServiceContainer{
			DB:     db.DB,
			Logger: logger,
		}

		c.OperationEventRepo = repository.NewOperationEventRepository(c.DB)

		if err := c.initClients(); err != nil {
			initErr = err
			return
		}
		if err := c.initCore(); err != nil {
			initErr = err
			return
		}
		c.initServices()

		Container = c
		logger.Info("Service container initialized")
	})

	if initErr != nil {
		return nil, initErr
	}
	return Container, nil
}

// initClients connects the external collaborators. NATS and the blockchain
// RPC are both optional: without them the service runs with publishing
// disabled and dry-run token settlement.
func (c *ServiceContainer) initClients() error {
	cfg := config.AppConfig

	if cfg.NATS.URL != "" {
		natsClient, err := clients.NewNATSClient(&cfg.NATS, c.Logger)
		if err != nil {
			c.Logger.WithError(err).Warn("NATS unavailable; event publishing disabled")
		} else {
			c.NATSClient = natsClient
		}
	}

	if cfg.Blockchain.RPCEndpoint != "" {
		tokenClient, err := clients.NewTokenClient(&cfg.Blockchain, c.Logger)
		if err != nil {
			return fmt.Errorf("failed to initialize token client: %w", err)
		}
		c.TokenClient = tokenClient

		hookClient, err := clients.NewHookClient(&cfg.Blockchain, c.Logger)
		if err != nil {
			return fmt.Errorf("failed to initialize hook client: %w", err)
		}
		c.HookClient = hookClient
	} else {
		c.Logger.Warn("No blockchain RPC endpoint configured; using dry-run token backend")
	}

	return nil
}

// initCore builds the sharded cashier.
func (c *ServiceContainer) initCore() error {
	cfg := config.AppConfig

	router, err := cashier.NewShardRouter(cfg.Cashier.ShardCount)
	if err != nil {
		return fmt.Errorf("failed to build shard router: %w", err)
	}
	metrics.ShardCount.Set(float64(cfg.Cashier.ShardCount))

	var hookCaller cashier.HookCaller
	if c.HookClient != nil {
		hookCaller = c.HookClient
	} else {
		hookCaller = services.NewDryRunHookCaller(c.Logger)
	}
	dispatcher := cashier.NewHookDispatcher(hookCaller)

	var token cashier.TokenBackend
	if c.TokenClient != nil {
		token = c.TokenClient
	} else {
		token = services.NewDryRunTokenBackend(c.Logger)
	}

	var custody common.Address
	if cfg.Cashier.CustodyAccount != "" {
		custody, err = utils.ParseAddress(cfg.Cashier.CustodyAccount)
		if err != nil {
			return fmt.Errorf("invalid custody account: %w", err)
		}
	}

	c.Cashier = cashier.NewCashier(router, dispatcher, token, custody)
	return nil
}

func (c *ServiceContainer) initServices() {
	c.Publisher = events.NewPublisher(c.NATSClient, c.Logger)
	c.PushService = services.NewPendingPushService(c.Logger)
	c.CashierService = services.NewCashierService(
		c.Cashier,
		c.OperationEventRepo,
		c.Publisher,
		c.PushService,
		c.Logger,
	)
}

// Cleanup releases external connections.
func (c *ServiceContainer) Cleanup() {
	if c.NATSClient != nil {
		c.NATSClient.Close()
	}
	if c.TokenClient != nil {
		c.TokenClient.Close()
	}
	c.Logger.Info("Service container cleaned up")
}
