// Package services contains the business logic layer
package services

import (
	"context"
	"time"

	"cashier-backend/internal/cashier"
	"cashier-backend/internal/events"
	"cashier-backend/internal/metrics"
	"cashier-backend/internal/models"
	"cashier-backend/internal/repository"
	"cashier-backend/internal/utils"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// CashierService wraps the core cashier with the service concerns: audit
// trail, event publishing, WebSocket push and metrics. The core stays the
// single source of truth; everything here is observation of transitions that
// already happened.
type CashierService struct {
	core      *cashier.Cashier
	repo      repository.OperationEventRepository
	publisher *events.Publisher
	push      *PendingPushService
	logger    *logrus.Logger
}

// NewCashierService creates the service over an initialized core.
func NewCashierService(
	core *cashier.Cashier,
	repo repository.OperationEventRepository,
	publisher *events.Publisher,
	push *PendingPushService,
	logger *logrus.Logger,
) *CashierService {
	return &CashierService{
		core:      core,
		repo:      repo,
		publisher: publisher,
		push:      push,
		logger:    logger,
	}
}

// Core exposes the underlying cashier for read-only callers.
func (s *CashierService) Core() *cashier.Cashier {
	return s.core
}

// recordOperation writes the audit row and publishes the operation event.
// Audit failures are logged, not propagated: the in-memory transition is
// already committed and must not appear to fail after the fact.
func (s *CashierService) recordOperation(ctx context.Context, kind models.OperationKind, txID cashier.TxID, account common.Address, amount uint64, status, operator string) {
	shard, err := s.core.Route(txID)
	if err != nil {
		shard = -1
	}
	event := &models.OperationEvent{
		ID:       uuid.New().String(),
		Kind:     kind,
		TxID:     txID.Hex(),
		Account:  account.Hex(),
		Amount:   utils.FormatAmount(amount),
		Status:   status,
		Shard:    shard,
		Operator: operator,
	}
	if s.repo != nil {
		if err := s.repo.Create(ctx, event); err != nil {
			s.logger.WithError(err).WithFields(logrus.Fields{
				"kind":  kind,
				"tx_id": event.TxID,
			}).Error("Failed to write audit event")
		}
	}
	s.publisher.PublishOperation(event)
}

// observe updates the operation counters and, on success, the pending-set
// gauges.
func (s *CashierService) observe(kind models.OperationKind, started time.Time, err error) {
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	metrics.CashierOperationsTotal.WithLabelValues(string(kind), outcome).Inc()
	metrics.CashierOperationDuration.WithLabelValues(string(kind)).Observe(time.Since(started).Seconds())
	if err == nil {
		metrics.PendingCashOutCount.Set(float64(s.core.PendingCashOutCount()))
		metrics.PendingCashOutTotalAmount.Set(float64(s.core.TotalPendingCashOut()))
		metrics.ProcessedCashOutCount.Set(float64(s.core.ProcessedCashOutCount()))
	}
}

// pushPendingUpdate notifies WebSocket subscribers about a pending-set change.
func (s *CashierService) pushPendingUpdate(action string, txID cashier.TxID, account common.Address, amount uint64) {
	if s.push == nil {
		return
	}
	s.push.BroadcastPendingUpdate(PendingUpdateData{
		Action:         action,
		TxID:           txID.Hex(),
		Account:        account.Hex(),
		Amount:         utils.FormatAmount(amount),
		PendingCount:   s.core.PendingCashOutCount(),
		ProcessedCount: s.core.ProcessedCashOutCount(),
	})
}

// CashIn executes an immediate cash-in for account.
func (s *CashierService) CashIn(ctx context.Context, account common.Address, amount uint64, txID cashier.TxID, operator string) error {
	started := time.Now()
	err := s.core.CashIn(ctx, account, amount, txID)
	s.observe(models.OperationKindCashIn, started, err)
	if err != nil {
		s.logger.WithError(err).WithField("tx_id", txID.Hex()).Warn("Cash-in rejected")
		return err
	}
	s.logger.WithFields(logrus.Fields{
		"tx_id":   txID.Hex(),
		"account": account.Hex(),
		"amount":  amount,
	}).Info("Cash-in executed")
	s.recordOperation(ctx, models.OperationKindCashIn, txID, account, amount,
		cashier.CashInStatusExecuted.String(), operator)
	return nil
}

// CashInPremint executes a premint cash-in with releaseTime.
func (s *CashierService) CashInPremint(ctx context.Context, account common.Address, amount uint64, txID cashier.TxID, releaseTime uint64, operator string) error {
	started := time.Now()
	err := s.core.CashInPremint(ctx, account, amount, txID, releaseTime)
	s.observe(models.OperationKindCashInPremint, started, err)
	if err != nil {
		s.logger.WithError(err).WithField("tx_id", txID.Hex()).Warn("Premint cash-in rejected")
		return err
	}
	s.logger.WithFields(logrus.Fields{
		"tx_id":        txID.Hex(),
		"account":      account.Hex(),
		"amount":       amount,
		"release_time": releaseTime,
	}).Info("Premint cash-in executed")
	s.recordOperation(ctx, models.OperationKindCashInPremint, txID, account, amount,
		cashier.CashInStatusPremintExecuted.String(), operator)
	return nil
}

// CashInPremintRevoke undoes an unreleased premint cash-in.
func (s *CashierService) CashInPremintRevoke(ctx context.Context, txID cashier.TxID, releaseTime uint64, operator string) error {
	rec, _ := s.core.GetCashIn(txID)
	started := time.Now()
	err := s.core.CashInPremintRevoke(ctx, txID, releaseTime)
	s.observe(models.OperationKindCashInPremintRevoke, started, err)
	if err != nil {
		s.logger.WithError(err).WithField("tx_id", txID.Hex()).Warn("Premint revocation rejected")
		return err
	}
	s.logger.WithFields(logrus.Fields{
		"tx_id":  txID.Hex(),
		"amount": rec.Amount,
	}).Info("Premint cash-in revoked")
	s.recordOperation(ctx, models.OperationKindCashInPremintRevoke, txID, rec.Account, rec.Amount,
		cashier.CashInStatusNonexistent.String(), operator)
	return nil
}

// ReschedulePremintRelease moves premints from originalRelease to
// targetRelease on the token. No per-txId bookkeeping changes, so no audit
// row is written.
func (s *CashierService) ReschedulePremintRelease(ctx context.Context, originalRelease, targetRelease uint64) error {
	err := s.core.ReschedulePremintRelease(ctx, originalRelease, targetRelease)
	if err != nil {
		s.logger.WithError(err).WithFields(logrus.Fields{
			"original_release": originalRelease,
			"target_release":   targetRelease,
		}).Warn("Premint reschedule failed")
		return err
	}
	s.logger.WithFields(logrus.Fields{
		"original_release": originalRelease,
		"target_release":   targetRelease,
	}).Info("Premint release rescheduled")
	return nil
}

// RequestCashOut opens a two-phase cash-out for account.
func (s *CashierService) RequestCashOut(ctx context.Context, account common.Address, amount uint64, txID cashier.TxID, operator string) error {
	started := time.Now()
	err := s.core.RequestCashOut(ctx, account, amount, txID)
	s.observe(models.OperationKindCashOutRequest, started, err)
	if err != nil {
		s.logger.WithError(err).WithField("tx_id", txID.Hex()).Warn("Cash-out request rejected")
		return err
	}
	s.logger.WithFields(logrus.Fields{
		"tx_id":   txID.Hex(),
		"account": account.Hex(),
		"amount":  amount,
	}).Info("Cash-out requested")
	s.recordOperation(ctx, models.OperationKindCashOutRequest, txID, account, amount,
		cashier.CashOutStatusPending.String(), operator)
	s.pushPendingUpdate("requested", txID, account, amount)
	return nil
}

// ConfirmCashOut settles a pending cash-out.
func (s *CashierService) ConfirmCashOut(ctx context.Context, txID cashier.TxID, operator string) error {
	rec, _ := s.core.GetCashOut(txID)
	started := time.Now()
	err := s.core.ConfirmCashOut(ctx, txID)
	s.observe(models.OperationKindCashOutConfirm, started, err)
	if err != nil {
		s.logger.WithError(err).WithField("tx_id", txID.Hex()).Warn("Cash-out confirmation rejected")
		return err
	}
	s.logger.WithFields(logrus.Fields{
		"tx_id":  txID.Hex(),
		"amount": rec.Amount,
	}).Info("Cash-out confirmed")
	s.recordOperation(ctx, models.OperationKindCashOutConfirm, txID, rec.Account, rec.Amount,
		cashier.CashOutStatusConfirmed.String(), operator)
	s.pushPendingUpdate("confirmed", txID, rec.Account, rec.Amount)
	return nil
}

// ReverseCashOut cancels a pending cash-out.
func (s *CashierService) ReverseCashOut(ctx context.Context, txID cashier.TxID, operator string) error {
	rec, _ := s.core.GetCashOut(txID)
	started := time.Now()
	err := s.core.ReverseCashOut(ctx, txID)
	s.observe(models.OperationKindCashOutReverse, started, err)
	if err != nil {
		s.logger.WithError(err).WithField("tx_id", txID.Hex()).Warn("Cash-out reversal rejected")
		return err
	}
	s.logger.WithFields(logrus.Fields{
		"tx_id":  txID.Hex(),
		"amount": rec.Amount,
	}).Info("Cash-out reversed")
	s.recordOperation(ctx, models.OperationKindCashOutReverse, txID, rec.Account, rec.Amount,
		cashier.CashOutStatusReversed.String(), operator)
	s.pushPendingUpdate("reversed", txID, rec.Account, rec.Amount)
	return nil
}

// MakeInternalCashOut executes a one-shot internal cash-out.
func (s *CashierService) MakeInternalCashOut(ctx context.Context, account common.Address, amount uint64, txID cashier.TxID, operator string) error {
	started := time.Now()
	err := s.core.MakeInternalCashOut(ctx, account, amount, txID)
	s.observe(models.OperationKindCashOutInternal, started, err)
	if err != nil {
		s.logger.WithError(err).WithField("tx_id", txID.Hex()).Warn("Internal cash-out rejected")
		return err
	}
	s.logger.WithFields(logrus.Fields{
		"tx_id":   txID.Hex(),
		"account": account.Hex(),
		"amount":  amount,
	}).Info("Internal cash-out executed")
	s.recordOperation(ctx, models.OperationKindCashOutInternal, txID, account, amount,
		cashier.CashOutStatusInternal.String(), operator)
	return nil
}

// ForceCashOut executes a one-shot forced cash-out.
func (s *CashierService) ForceCashOut(ctx context.Context, account common.Address, amount uint64, txID cashier.TxID, operator string) error {
	started := time.Now()
	err := s.core.ForceCashOut(ctx, account, amount, txID)
	s.observe(models.OperationKindCashOutForced, started, err)
	if err != nil {
		s.logger.WithError(err).WithField("tx_id", txID.Hex()).Warn("Forced cash-out rejected")
		return err
	}
	s.logger.WithFields(logrus.Fields{
		"tx_id":   txID.Hex(),
		"account": account.Hex(),
		"amount":  amount,
	}).Info("Forced cash-out executed")
	s.recordOperation(ctx, models.OperationKindCashOutForced, txID, account, amount,
		cashier.CashOutStatusForced.String(), operator)
	return nil
}

// CashInBatch executes a batch of cash-ins under policy, recording one audit
// row per successful element.
func (s *CashierService) CashInBatch(ctx context.Context, items []cashier.CashInItem, policy cashier.BatchPolicy, operator string) ([]cashier.BatchOutcome, error) {
	started := time.Now()
	outcomes, err := s.core.CashInBatch(ctx, items, policy)
	s.observe(models.OperationKindCashIn, started, err)
	if err != nil {
		s.logger.WithError(err).WithField("size", len(items)).Warn("Cash-in batch rejected")
		return nil, err
	}
	for i, item := range items {
		if outcomes != nil && outcomes[i].Err != nil {
			continue
		}
		s.recordOperation(ctx, models.OperationKindCashIn, item.TxID, item.Account, item.Amount,
			cashier.CashInStatusExecuted.String(), operator)
	}
	s.logger.WithField("size", len(items)).Info("Cash-in batch executed")
	return outcomes, nil
}

// ConfirmCashOutBatch settles a batch of pending cash-outs under policy.
func (s *CashierService) ConfirmCashOutBatch(ctx context.Context, txIDs []cashier.TxID, policy cashier.BatchPolicy, operator string) ([]cashier.BatchOutcome, error) {
	return s.processCashOutBatch(ctx, txIDs, policy, operator, true)
}

// ReverseCashOutBatch cancels a batch of pending cash-outs under policy.
func (s *CashierService) ReverseCashOutBatch(ctx context.Context, txIDs []cashier.TxID, policy cashier.BatchPolicy, operator string) ([]cashier.BatchOutcome, error) {
	return s.processCashOutBatch(ctx, txIDs, policy, operator, false)
}

func (s *CashierService) processCashOutBatch(ctx context.Context, txIDs []cashier.TxID, policy cashier.BatchPolicy, operator string, confirm bool) ([]cashier.BatchOutcome, error) {
	kind := models.OperationKindCashOutReverse
	status := cashier.CashOutStatusReversed
	action := "reversed"
	if confirm {
		kind = models.OperationKindCashOutConfirm
		status = cashier.CashOutStatusConfirmed
		action = "confirmed"
	}

	// Account and amount survive settlement; the snapshot keeps them keyed
	// to the input order for the audit rows below.
	records, err := s.core.GetCashOuts(txIDs)
	if err != nil {
		return nil, err
	}

	started := time.Now()
	var outcomes []cashier.BatchOutcome
	if confirm {
		outcomes, err = s.core.ConfirmCashOutBatch(ctx, txIDs, policy)
	} else {
		outcomes, err = s.core.ReverseCashOutBatch(ctx, txIDs, policy)
	}
	s.observe(kind, started, err)
	if err != nil {
		s.logger.WithError(err).WithField("size", len(txIDs)).Warn("Cash-out batch rejected")
		return nil, err
	}

	for i, txID := range txIDs {
		if outcomes != nil && outcomes[i].Err != nil {
			continue
		}
		s.recordOperation(ctx, kind, txID, records[i].Account, records[i].Amount, status.String(), operator)
		s.pushPendingUpdate(action, txID, records[i].Account, records[i].Amount)
	}
	s.logger.WithFields(logrus.Fields{
		"size":   len(txIDs),
		"action": action,
	}).Info("Cash-out batch executed")
	return outcomes, nil
}

// ConfigureCashOutHooks stores the hook configuration for txID.
func (s *CashierService) ConfigureCashOutHooks(txID cashier.TxID, callable common.Address, flags uint16) error {
	if err := s.core.ConfigureCashOutHooks(txID, callable, flags); err != nil {
		s.logger.WithError(err).WithField("tx_id", txID.Hex()).Warn("Hook configuration rejected")
		return err
	}
	s.logger.WithFields(logrus.Fields{
		"tx_id":    txID.Hex(),
		"callable": callable.Hex(),
		"flags":    flags,
	}).Info("Cash-out hooks configured")
	return nil
}

// HookConfigOf returns the stored hook configuration for txID.
func (s *CashierService) HookConfigOf(txID cashier.TxID) cashier.HookConfig {
	return s.core.HookConfigOf(txID)
}

// GetCashIn returns the cash-in record for txID.
func (s *CashierService) GetCashIn(txID cashier.TxID) (cashier.CashInRecord, error) {
	return s.core.GetCashIn(txID)
}

// GetCashOut returns the cash-out record for txID.
func (s *CashierService) GetCashOut(txID cashier.TxID) (cashier.CashOutRecord, error) {
	return s.core.GetCashOut(txID)
}

// GetCashIns gathers cash-in records for txIDs in input order.
func (s *CashierService) GetCashIns(txIDs []cashier.TxID) ([]cashier.CashInRecord, error) {
	return s.core.GetCashIns(txIDs)
}

// GetCashOuts gathers cash-out records for txIDs in input order.
func (s *CashierService) GetCashOuts(txIDs []cashier.TxID) ([]cashier.CashOutRecord, error) {
	return s.core.GetCashOuts(txIDs)
}

// PendingPage is one pagination step over the pending set together with the
// processed counter scanners use for the consistency check.
type PendingPage struct {
	TxIDs          []cashier.TxID
	ProcessedCount uint64
}

// PendingCashOutPage returns a page of the pending set and the processed
// counter taken under the same lock acquisition pattern the scan protocol
// expects.
func (s *CashierService) PendingCashOutPage(index, limit int) PendingPage {
	return PendingPage{
		TxIDs:          s.core.PendingCashOutTxIDs(index, limit),
		ProcessedCount: s.core.ProcessedCashOutCount(),
	}
}

// PendingCashOutCount returns the size of the pending set.
func (s *CashierService) PendingCashOutCount() int {
	return s.core.PendingCashOutCount()
}

// ProcessedCashOutCount returns the monotonic processed counter.
func (s *CashierService) ProcessedCashOutCount() uint64 {
	return s.core.ProcessedCashOutCount()
}

// CashOutBalanceOf returns the pending aggregate for account.
func (s *CashierService) CashOutBalanceOf(account common.Address) uint64 {
	return s.core.CashOutBalanceOf(account)
}

// TotalPendingCashOut returns the sum of all pending amounts.
func (s *CashierService) TotalPendingCashOut() uint64 {
	return s.core.TotalPendingCashOut()
}

// OperationHistory returns the audit rows for txID, oldest first.
func (s *CashierService) OperationHistory(ctx context.Context, txID cashier.TxID) ([]*models.OperationEvent, error) {
	return s.repo.FindByTxID(ctx, txID.Hex())
}

// AccountHistory returns a page of audit rows for account, newest first.
func (s *CashierService) AccountHistory(ctx context.Context, account common.Address, page, pageSize int) ([]*models.OperationEvent, int64, error) {
	return s.repo.FindByAccount(ctx, account.Hex(), page, pageSize)
}

// RecentOperations returns the latest audit rows across accounts.
func (s *CashierService) RecentOperations(ctx context.Context, limit int) ([]*models.OperationEvent, error) {
	return s.repo.ListRecent(ctx, limit)
}

// AddShards appends count fresh shards to the routing table.
func (s *CashierService) AddShards(count int) error {
	if err := s.core.AddShards(count); err != nil {
		s.logger.WithError(err).WithField("count", count).Warn("Shard addition rejected")
		return err
	}
	metrics.ShardCount.Set(float64(s.core.ShardCount()))
	s.logger.WithFields(logrus.Fields{
		"added": count,
		"total": s.core.ShardCount(),
	}).Info("Shards added")
	return nil
}

// ReplaceShards patches count shards starting at fromIndex with fresh ones.
func (s *CashierService) ReplaceShards(fromIndex, count int) error {
	if err := s.core.ReplaceShards(fromIndex, count); err != nil {
		s.logger.WithError(err).WithFields(logrus.Fields{
			"from_index": fromIndex,
			"count":      count,
		}).Warn("Shard replacement rejected")
		return err
	}
	s.logger.WithFields(logrus.Fields{
		"from_index": fromIndex,
		"count":      count,
	}).Info("Shards replaced")
	return nil
}

// ShardCount returns the routing table length.
func (s *CashierService) ShardCount() int {
	return s.core.ShardCount()
}

// ShardRange returns introspection stats for a slice of the shard table.
func (s *CashierService) ShardRange(index, limit int) []cashier.ShardStats {
	return s.core.ShardRange(index, limit)
}

// Route returns the shard index for txID.
func (s *CashierService) Route(txID cashier.TxID) (int, error) {
	return s.core.Route(txID)
}

// ConfigureShardAdmin propagates shard-admin status for account.
func (s *CashierService) ConfigureShardAdmin(account common.Address, status bool) error {
	if err := s.core.ConfigureShardAdmin(account, status); err != nil {
		return err
	}
	s.logger.WithFields(logrus.Fields{
		"account": account.Hex(),
		"status":  status,
	}).Info("Shard admin configured")
	return nil
}

// IsShardAdmin reports shard-admin status for account.
func (s *CashierService) IsShardAdmin(account common.Address) bool {
	return s.core.IsShardAdmin(account)
}
