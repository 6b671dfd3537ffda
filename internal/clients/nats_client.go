package clients

import (
	"fmt"
	"time"

	"cashier-backend/internal/config"
	"cashier-backend/internal/metrics"

	"github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus"
)

// NATSClient wraps the NATS connection used to publish cashier operation
// events, with optional JetStream persistence.
type NATSClient struct {
	conn       *nats.Conn
	js         nats.JetStreamContext
	streamName string
	logger     *logrus.Logger
}

// NewNATSClient connects to the configured NATS server.
func NewNATSClient(cfg *config.NATSConfig, logger *logrus.Logger) (*NATSClient, error) {
	connectTimeout := 10 * time.Second
	if cfg.Timeout > 0 {
		connectTimeout = time.Duration(cfg.Timeout) * time.Second
	}
	reconnectWait := 5 * time.Second
	if cfg.ReconnectWait > 0 {
		reconnectWait = time.Duration(cfg.ReconnectWait) * time.Second
	}
	maxReconnects := -1
	if cfg.MaxReconnects > 0 {
		maxReconnects = cfg.MaxReconnects
	}

	conn, err := nats.Connect(cfg.URL,
		nats.Timeout(connectTimeout),
		nats.ReconnectWait(reconnectWait),
		nats.MaxReconnects(maxReconnects),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			logger.WithError(err).Warn("NATS disconnected")
			metrics.NATSConnectionStatus.Set(0)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("NATS reconnected")
			metrics.NATSConnectionStatus.Set(1)
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	metrics.NATSConnectionStatus.Set(1)

	client := &NATSClient{
		conn:       conn,
		streamName: cfg.StreamName,
		logger:     logger,
	}

	if cfg.EnableJetStream {
		js, err := conn.JetStream()
		if err != nil {
			conn.Close()
			return nil, fmt.Errorf("failed to create JetStream context: %w", err)
		}
		client.js = js
		if err := client.ensureStream(); err != nil {
			logger.WithError(err).Warn("JetStream stream setup failed, publishing over core NATS")
			client.js = nil
		}
	}

	logger.WithField("url", cfg.URL).Info("NATS client connected")
	return client, nil
}

// ensureStream creates the event stream if it does not exist yet.
func (c *NATSClient) ensureStream() error {
	name := c.streamName
	if name == "" {
		name = "cashier-events"
	}
	if _, err := c.js.StreamInfo(name); err == nil {
		return nil
	}

	_, err := c.js.AddStream(&nats.StreamConfig{
		Name:      name,
		Subjects:  []string{"cashier.>"},
		Retention: nats.LimitsPolicy,
		MaxAge:    24 * time.Hour,
		Storage:   nats.FileStorage,
	})
	if err != nil {
		return fmt.Errorf("failed to create stream %s: %w", name, err)
	}
	return nil
}

// Publish sends a message on subject, through JetStream when enabled.
func (c *NATSClient) Publish(subject string, data []byte) error {
	if c.js != nil {
		_, err := c.js.Publish(subject, data)
		return err
	}
	return c.conn.Publish(subject, data)
}

// Close drains and closes the connection.
func (c *NATSClient) Close() {
	if c.conn != nil {
		c.conn.Close()
	}
}
