// Package events publishes cashier operation events to NATS.
package events

import (
	"encoding/json"
	"fmt"
	"time"

	"cashier-backend/internal/clients"
	"cashier-backend/internal/metrics"
	"cashier-backend/internal/models"

	"github.com/sirupsen/logrus"
)

// OperationMessage is the wire format of one published operation event.
type OperationMessage struct {
	Kind      models.OperationKind `json:"kind"`
	TxID      string               `json:"tx_id"`
	Account   string               `json:"account"`
	Amount    string               `json:"amount"`
	Status    string               `json:"status"`
	Shard     int                  `json:"shard"`
	Timestamp string               `json:"timestamp"`
}

// Publisher publishes operation events after their transition has been
// committed. A nil Publisher is a no-op so the service runs without NATS.
type Publisher struct {
	client *clients.NATSClient
	logger *logrus.Logger
}

// NewPublisher wraps a connected NATS client.
func NewPublisher(client *clients.NATSClient, logger *logrus.Logger) *Publisher {
	return &Publisher{client: client, logger: logger}
}

// PublishOperation emits one event on cashier.<kind>. Publish failures are
// logged, not propagated: the operation itself has already committed and the
// event stream is best-effort.
func (p *Publisher) PublishOperation(event *models.OperationEvent) {
	if p == nil || p.client == nil {
		return
	}

	subject := fmt.Sprintf("cashier.%s", event.Kind)
	msg := OperationMessage{
		Kind:      event.Kind,
		TxID:      event.TxID,
		Account:   event.Account,
		Amount:    event.Amount,
		Status:    event.Status,
		Shard:     event.Shard,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}

	data, err := json.Marshal(msg)
	if err != nil {
		p.logger.WithError(err).Error("Failed to marshal operation event")
		return
	}

	if err := p.client.Publish(subject, data); err != nil {
		metrics.NATSPublishFailures.WithLabelValues(subject).Inc()
		p.logger.WithFields(logrus.Fields{
			"subject": subject,
			"tx_id":   event.TxID,
		}).WithError(err).Warn("Failed to publish operation event")
		return
	}
	metrics.NATSMessagesPublished.WithLabelValues(subject).Inc()
}
