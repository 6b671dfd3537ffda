// Package repository provides data access interfaces and implementations
package repository

import (
	"context"

	"cashier-backend/internal/models"

	"gorm.io/gorm"
)

// OperationEventRepository defines the interface for audit-trail data access.
// Events are append-only; there is no update or delete.
type OperationEventRepository interface {
	Create(ctx context.Context, event *models.OperationEvent) error
	FindByTxID(ctx context.Context, txID string) ([]*models.OperationEvent, error)
	FindByAccount(ctx context.Context, account string, page, pageSize int) ([]*models.OperationEvent, int64, error)
	ListRecent(ctx context.Context, limit int) ([]*models.OperationEvent, error)
	CountByKind(ctx context.Context, kind models.OperationKind) (int64, error)
}

// operationEventRepository implements OperationEventRepository
type operationEventRepository struct {
	db *gorm.DB
}

// NewOperationEventRepository creates a new OperationEventRepository instance
func NewOperationEventRepository(db *gorm.DB) OperationEventRepository {
	return &operationEventRepository{db: db}
}

// Create appends an audit event
func (r *operationEventRepository) Create(ctx context.Context, event *models.OperationEvent) error {
	return r.db.WithContext(ctx).Create(event).Error
}

// FindByTxID returns the audit events recorded for a txId, oldest first
func (r *operationEventRepository) FindByTxID(ctx context.Context, txID string) ([]*models.OperationEvent, error) {
	var events []*models.OperationEvent
	err := r.db.WithContext(ctx).
		Where("tx_id = ?", txID).
		Order("created_at ASC").
		Find(&events).Error
	if err != nil {
		return nil, err
	}
	return events, nil
}

// FindByAccount returns a page of audit events for an account, newest first
func (r *operationEventRepository) FindByAccount(ctx context.Context, account string, page, pageSize int) ([]*models.OperationEvent, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	var total int64
	if err := r.db.WithContext(ctx).Model(&models.OperationEvent{}).
		Where("account = ?", account).
		Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var events []*models.OperationEvent
	err := r.db.WithContext(ctx).
		Where("account = ?", account).
		Order("created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&events).Error
	if err != nil {
		return nil, 0, err
	}
	return events, total, nil
}

// ListRecent returns the latest audit events across all accounts
func (r *operationEventRepository) ListRecent(ctx context.Context, limit int) ([]*models.OperationEvent, error) {
	if limit < 1 || limit > 500 {
		limit = 50
	}
	var events []*models.OperationEvent
	err := r.db.WithContext(ctx).
		Order("created_at DESC").
		Limit(limit).
		Find(&events).Error
	if err != nil {
		return nil, err
	}
	return events, nil
}

// CountByKind returns the number of audit events of one operation kind
func (r *operationEventRepository) CountByKind(ctx context.Context, kind models.OperationKind) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.OperationEvent{}).
		Where("kind = ?", kind).
		Count(&count).Error
	return count, err
}
