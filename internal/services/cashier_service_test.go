package services

import (
	"context"
	"testing"

	"cashier-backend/internal/cashier"
	"cashier-backend/internal/models"
	"cashier-backend/internal/repository"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	svcAccount = common.HexToAddress("0x00000000000000000000000000000000000000A1")
	svcCustody = common.HexToAddress("0x00000000000000000000000000000000000000FF")
	svcTxID    = common.HexToHash("0x01")
	svcTxID2   = common.HexToHash("0x02")
)

// memoryEventRepo is an in-memory stand-in for the gorm repository.
type memoryEventRepo struct {
	events []*models.OperationEvent
}

func (r *memoryEventRepo) Create(_ context.Context, event *models.OperationEvent) error {
	r.events = append(r.events, event)
	return nil
}

func (r *memoryEventRepo) FindByTxID(_ context.Context, txID string) ([]*models.OperationEvent, error) {
	var out []*models.OperationEvent
	for _, e := range r.events {
		if e.TxID == txID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (r *memoryEventRepo) FindByAccount(_ context.Context, account string, page, pageSize int) ([]*models.OperationEvent, int64, error) {
	var out []*models.OperationEvent
	for _, e := range r.events {
		if e.Account == account {
			out = append(out, e)
		}
	}
	return out, int64(len(out)), nil
}

func (r *memoryEventRepo) ListRecent(_ context.Context, limit int) ([]*models.OperationEvent, error) {
	return r.events, nil
}

func (r *memoryEventRepo) CountByKind(_ context.Context, kind models.OperationKind) (int64, error) {
	var n int64
	for _, e := range r.events {
		if e.Kind == kind {
			n++
		}
	}
	return n, nil
}

var _ repository.OperationEventRepository = (*memoryEventRepo)(nil)

func newTestService(t *testing.T) (*CashierService, *memoryEventRepo) {
	t.Helper()
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)

	router, err := cashier.NewShardRouter(4)
	require.NoError(t, err)
	core := cashier.NewCashier(
		router,
		cashier.NewHookDispatcher(NewDryRunHookCaller(logger)),
		NewDryRunTokenBackend(logger),
		svcCustody,
	)

	repo := &memoryEventRepo{}
	svc := NewCashierService(core, repo, nil, nil, logger)
	return svc, repo
}

func TestCashInWritesAuditRow(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.CashIn(ctx, svcAccount, 500, svcTxID, "op-1"))

	require.Len(t, repo.events, 1)
	e := repo.events[0]
	assert.Equal(t, models.OperationKindCashIn, e.Kind)
	assert.Equal(t, svcTxID.Hex(), e.TxID)
	assert.Equal(t, svcAccount.Hex(), e.Account)
	assert.Equal(t, "500", e.Amount)
	assert.Equal(t, "op-1", e.Operator)
	assert.NotEmpty(t, e.ID)

	shard, err := svc.Route(svcTxID)
	require.NoError(t, err)
	assert.Equal(t, shard, e.Shard)
}

func TestRejectedOperationWritesNothing(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()

	err := svc.CashIn(ctx, svcAccount, 0, svcTxID, "op-1")
	require.ErrorIs(t, err, cashier.ErrZeroAmount)
	assert.Empty(t, repo.events)
}

func TestCashOutLifecycleAuditTrail(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.RequestCashOut(ctx, svcAccount, 300, svcTxID, "op-1"))
	require.NoError(t, svc.RequestCashOut(ctx, svcAccount, 200, svcTxID2, "op-1"))
	assert.Equal(t, 2, svc.PendingCashOutCount())
	assert.Equal(t, uint64(500), svc.CashOutBalanceOf(svcAccount))

	require.NoError(t, svc.ConfirmCashOut(ctx, svcTxID, "op-2"))
	require.NoError(t, svc.ReverseCashOut(ctx, svcTxID2, "op-2"))
	assert.Equal(t, 0, svc.PendingCashOutCount())
	assert.Equal(t, uint64(2), svc.ProcessedCashOutCount())
	assert.Zero(t, svc.CashOutBalanceOf(svcAccount))

	history, err := svc.OperationHistory(ctx, svcTxID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, models.OperationKindCashOutRequest, history[0].Kind)
	assert.Equal(t, models.OperationKindCashOutConfirm, history[1].Kind)
	assert.Equal(t, "op-2", history[1].Operator)

	n, err := repo.CountByKind(ctx, models.OperationKindCashOutReverse)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestBatchSkipRecordsOnlySuccesses(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.CashIn(ctx, svcAccount, 100, svcTxID, "op-1"))
	repo.events = nil

	items := []cashier.CashInItem{
		{Account: svcAccount, Amount: 100, TxID: svcTxID}, // conflicts
		{Account: svcAccount, Amount: 200, TxID: svcTxID2},
	}
	outcomes, err := svc.CashInBatch(ctx, items, cashier.BatchPolicySkip, "op-1")
	require.NoError(t, err)
	require.Len(t, outcomes, 2)
	assert.Error(t, outcomes[0].Err)
	assert.NoError(t, outcomes[1].Err)

	require.Len(t, repo.events, 1)
	assert.Equal(t, svcTxID2.Hex(), repo.events[0].TxID)
}

func TestConfirmBatchAuditAndCounters(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.RequestCashOut(ctx, svcAccount, 100, svcTxID, "op-1"))
	require.NoError(t, svc.RequestCashOut(ctx, svcAccount, 150, svcTxID2, "op-1"))
	repo.events = nil

	outcomes, err := svc.ConfirmCashOutBatch(ctx, []cashier.TxID{svcTxID, svcTxID2}, cashier.BatchPolicyRevert, "op-2")
	require.NoError(t, err)
	for _, o := range outcomes {
		assert.NoError(t, o.Err)
	}

	require.Len(t, repo.events, 2)
	for i, txID := range []cashier.TxID{svcTxID, svcTxID2} {
		assert.Equal(t, models.OperationKindCashOutConfirm, repo.events[i].Kind)
		assert.Equal(t, txID.Hex(), repo.events[i].TxID)
	}
	assert.Equal(t, uint64(2), svc.ProcessedCashOutCount())
	assert.Zero(t, svc.TotalPendingCashOut())
}

func TestPendingPageCarriesProcessedCount(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.RequestCashOut(ctx, svcAccount, 100, svcTxID, "op-1"))
	page := svc.PendingCashOutPage(0, 10)
	require.Len(t, page.TxIDs, 1)
	assert.Equal(t, uint64(0), page.ProcessedCount)

	require.NoError(t, svc.ConfirmCashOut(ctx, svcTxID, "op-1"))
	page = svc.PendingCashOutPage(0, 10)
	assert.Empty(t, page.TxIDs)
	assert.Equal(t, uint64(1), page.ProcessedCount)
}

func TestShardManagementThroughService(t *testing.T) {
	svc, _ := newTestService(t)

	require.NoError(t, svc.AddShards(2))
	assert.Equal(t, 6, svc.ShardCount())

	require.NoError(t, svc.ReplaceShards(0, 2))
	assert.Equal(t, 6, svc.ShardCount())

	require.NoError(t, svc.ConfigureShardAdmin(svcAccount, true))
	assert.True(t, svc.IsShardAdmin(svcAccount))
}

func TestShardRangeStats(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.CashIn(ctx, svcAccount, 100, svcTxID, "op-1"))
	require.NoError(t, svc.RequestCashOut(ctx, svcAccount, 50, svcTxID2, "op-1"))

	stats := svc.ShardRange(0, 100)
	require.Len(t, stats, 4)
	cashIns, cashOuts := 0, 0
	for i, s := range stats {
		assert.Equal(t, i, s.Index)
		cashIns += s.CashInCount
		cashOuts += s.CashOutCount
	}
	assert.Equal(t, 1, cashIns)
	assert.Equal(t, 1, cashOuts)
}
