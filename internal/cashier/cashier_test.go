package cashier

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var custodyAccount = common.HexToAddress("0x00000000000000000000000000000000000000FF")

type tokenCall struct {
	Op      string
	Account common.Address
	From    common.Address
	To      common.Address
	Amount  uint64
	Release uint64
}

// recordingToken captures token side effects instead of touching a chain.
type recordingToken struct {
	calls []tokenCall
}

func (m *recordingToken) Mint(_ context.Context, account common.Address, amount uint64) error {
	m.calls = append(m.calls, tokenCall{Op: "mint", Account: account, Amount: amount})
	return nil
}

func (m *recordingToken) Burn(_ context.Context, amount uint64) error {
	m.calls = append(m.calls, tokenCall{Op: "burn", Amount: amount})
	return nil
}

func (m *recordingToken) Transfer(_ context.Context, from, to common.Address, amount uint64) error {
	m.calls = append(m.calls, tokenCall{Op: "transfer", From: from, To: to, Amount: amount})
	return nil
}

func (m *recordingToken) PremintIncrease(_ context.Context, account common.Address, amount uint64, releaseTime uint64) error {
	m.calls = append(m.calls, tokenCall{Op: "premint_increase", Account: account, Amount: amount, Release: releaseTime})
	return nil
}

func (m *recordingToken) PremintDecrease(_ context.Context, account common.Address, amount uint64, releaseTime uint64) error {
	m.calls = append(m.calls, tokenCall{Op: "premint_decrease", Account: account, Amount: amount, Release: releaseTime})
	return nil
}

func (m *recordingToken) ReschedulePremintRelease(_ context.Context, originalRelease, targetRelease uint64) error {
	m.calls = append(m.calls, tokenCall{Op: "reschedule", Amount: 0, Release: targetRelease})
	return nil
}

func newTestCashier(t *testing.T, shards int) (*Cashier, *recordingToken, *recordingHookCaller) {
	t.Helper()
	router, err := NewShardRouter(shards)
	require.NoError(t, err)
	token := &recordingToken{}
	caller := &recordingHookCaller{}
	c := NewCashier(router, NewHookDispatcher(caller), token, custodyAccount)
	return c, token, caller
}

func TestEndToEndScenario(t *testing.T) {
	c, token, _ := newTestCashier(t, 4)
	ctx := context.Background()
	accountA := testAccount
	cashInID := common.HexToHash("0x01")
	cashOutID := common.HexToHash("0x02")

	// Cash-in of 1000 for A.
	require.NoError(t, c.CashIn(ctx, accountA, 1000, cashInID))
	rec, err := c.GetCashIn(cashInID)
	require.NoError(t, err)
	assert.Equal(t, CashInRecord{Status: CashInStatusExecuted, Account: accountA, Amount: 1000}, rec)

	// Request cash-out of 400 for A.
	require.NoError(t, c.RequestCashOut(ctx, accountA, 400, cashOutID))
	assert.Equal(t, uint64(400), c.CashOutBalanceOf(accountA))
	assert.Equal(t, uint64(400), c.TotalPendingCashOut())
	assert.Contains(t, c.PendingCashOutTxIDs(0, 10), cashOutID)

	// Confirm it.
	require.NoError(t, c.ConfirmCashOut(ctx, cashOutID))
	assert.Zero(t, c.CashOutBalanceOf(accountA))
	assert.Zero(t, c.TotalPendingCashOut())
	assert.NotContains(t, c.PendingCashOutTxIDs(0, 10), cashOutID)

	out, err := c.GetCashOut(cashOutID)
	require.NoError(t, err)
	assert.Equal(t, CashOutStatusConfirmed, out.Status)

	// Confirmed record is immutable.
	require.ErrorIs(t, c.ConfirmCashOut(ctx, cashOutID), ErrInappropriateCashOutStatus)
	require.ErrorIs(t, c.ReverseCashOut(ctx, cashOutID), ErrInappropriateCashOutStatus)

	// Token side effects in order: mint, transfer into custody, burn.
	require.Len(t, token.calls, 3)
	assert.Equal(t, "mint", token.calls[0].Op)
	assert.Equal(t, "transfer", token.calls[1].Op)
	assert.Equal(t, custodyAccount, token.calls[1].To)
	assert.Equal(t, "burn", token.calls[2].Op)
	assert.Equal(t, uint64(400), token.calls[2].Amount)
}

func TestReverseCashOutReturnsFunds(t *testing.T) {
	c, token, _ := newTestCashier(t, 3)
	ctx := context.Background()

	require.NoError(t, c.RequestCashOut(ctx, testAccount, 250, testTxID))
	require.NoError(t, c.ReverseCashOut(ctx, testTxID))

	out, err := c.GetCashOut(testTxID)
	require.NoError(t, err)
	assert.Equal(t, CashOutStatusReversed, out.Status)
	assert.Zero(t, c.CashOutBalanceOf(testAccount))
	assert.False(t, c.PendingCashOutCount() > 0)

	last := token.calls[len(token.calls)-1]
	assert.Equal(t, "transfer", last.Op)
	assert.Equal(t, custodyAccount, last.From)
	assert.Equal(t, testAccount, last.To)
	assert.Equal(t, uint64(250), last.Amount)
}

func TestRequestCashOutAggregateOverflowRejected(t *testing.T) {
	c, token, _ := newTestCashier(t, 3)
	ctx := context.Background()

	require.NoError(t, c.RequestCashOut(ctx, testAccount, MaxAmount-5, testTxID))
	effectCount := len(token.calls)

	// A request that would wrap the account's pending balance fails whole.
	require.ErrorIs(t, c.RequestCashOut(ctx, testAccount, 100, otherTxID), ErrAmountExcess)
	assert.Equal(t, MaxAmount-5, c.CashOutBalanceOf(testAccount))
	assert.Equal(t, MaxAmount-5, c.TotalPendingCashOut())
	assert.Equal(t, 1, c.PendingCashOutCount())
	assert.Len(t, token.calls, effectCount)

	rec, err := c.GetCashOut(otherTxID)
	require.NoError(t, err)
	assert.Equal(t, CashOutStatusNonexistent, rec.Status)

	// The pending total bounds requests across accounts too.
	require.ErrorIs(t, c.RequestCashOut(ctx, otherAccount, 100, otherTxID), ErrAmountExcess)
	assert.Zero(t, c.CashOutBalanceOf(otherAccount))
}

func TestConcurrentHookConfigAndOperations(t *testing.T) {
	c, _, _ := newTestCashier(t, 4)
	ctx := context.Background()
	hookID := common.HexToHash("0xbeef")
	require.NoError(t, c.RequestCashOut(ctx, testAccount, 10, hookID))

	flags := uint16(1 << HookIndexCashOutConfirmationAfter)
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			// Alternate set and clear so every iteration writes the config.
			if i%2 == 0 {
				assert.NoError(t, c.ConfigureCashOutHooks(hookID, hookContract, flags))
			} else {
				assert.NoError(t, c.ConfigureCashOutHooks(hookID, common.Address{}, 0))
			}
		}
	}()
	go func() {
		defer wg.Done()
		for i, id := range txIDSeq(200) {
			assert.NoError(t, c.CashIn(ctx, testAccount, uint64(i+1), id))
		}
	}()
	wg.Wait()

	// The loop ends on a clear, so the config and flag bit are both unwound.
	assert.Equal(t, HookConfig{}, c.HookConfigOf(hookID))
	out, err := c.GetCashOut(hookID)
	require.NoError(t, err)
	assert.Zero(t, out.Flags&FlagHookRegistered)

	recs, err := c.GetCashIns(txIDSeq(200))
	require.NoError(t, err)
	for _, rec := range recs {
		assert.Equal(t, CashInStatusExecuted, rec.Status)
	}
}

func TestProcessCashOutBeforeRequestFails(t *testing.T) {
	c, _, _ := newTestCashier(t, 3)
	require.ErrorIs(t, c.ConfirmCashOut(context.Background(), testTxID), ErrInappropriateCashOutStatus)
	require.ErrorIs(t, c.ReverseCashOut(context.Background(), testTxID), ErrInappropriateCashOutStatus)
}

func TestTxIDNeverReusedAcrossCashOutKinds(t *testing.T) {
	c, _, _ := newTestCashier(t, 3)
	ctx := context.Background()

	require.NoError(t, c.MakeInternalCashOut(ctx, testAccount, 100, testTxID))
	require.ErrorIs(t, c.RequestCashOut(ctx, testAccount, 100, testTxID), ErrInappropriateCashOutStatus)
	require.ErrorIs(t, c.ForceCashOut(ctx, testAccount, 100, testTxID), ErrInappropriateCashOutStatus)
	require.ErrorIs(t, c.MakeInternalCashOut(ctx, otherAccount, 100, testTxID), ErrInappropriateCashOutAccount)
}

func TestOneShotCashOutsSkipPendingSet(t *testing.T) {
	c, token, _ := newTestCashier(t, 3)
	ctx := context.Background()

	require.NoError(t, c.MakeInternalCashOut(ctx, testAccount, 100, testTxID))
	require.NoError(t, c.ForceCashOut(ctx, otherAccount, 50, otherTxID))

	assert.Zero(t, c.PendingCashOutCount())
	assert.Zero(t, c.CashOutBalanceOf(testAccount))
	// One-shot cash-outs never enter Pending, so the processed counter that
	// guards pending-set pagination stays untouched.
	assert.Zero(t, c.ProcessedCashOutCount())

	// Each one-shot debit is transfer-then-burn.
	require.Len(t, token.calls, 4)
	assert.Equal(t, "transfer", token.calls[0].Op)
	assert.Equal(t, "burn", token.calls[1].Op)
}

func TestInputValidation(t *testing.T) {
	c, _, _ := newTestCashier(t, 2)
	ctx := context.Background()

	tests := []struct {
		name string
		call func() error
		want error
	}{
		{"zero txId", func() error { return c.CashIn(ctx, testAccount, 1, TxID{}) }, ErrZeroTxID},
		{"zero account", func() error { return c.CashIn(ctx, common.Address{}, 1, testTxID) }, ErrZeroAccount},
		{"zero amount", func() error { return c.CashIn(ctx, testAccount, 0, testTxID) }, ErrZeroAmount},
		{"zero txId cash-out", func() error { return c.RequestCashOut(ctx, testAccount, 1, TxID{}) }, ErrZeroTxID},
		{"zero txId revoke", func() error { return c.CashInPremintRevoke(ctx, TxID{}, 1) }, ErrZeroTxID},
		{"zero account forced", func() error { return c.ForceCashOut(ctx, common.Address{}, 1, testTxID) }, ErrZeroAccount},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.ErrorIs(t, tt.call(), tt.want)
		})
	}
}

func TestPremintLifecycle(t *testing.T) {
	c, token, _ := newTestCashier(t, 3)
	ctx := context.Background()
	release := uint64(1900000000)

	require.NoError(t, c.CashInPremint(ctx, testAccount, 600, testTxID, release))
	rec, err := c.GetCashIn(testTxID)
	require.NoError(t, err)
	assert.Equal(t, CashInStatusPremintExecuted, rec.Status)

	require.NoError(t, c.CashInPremintRevoke(ctx, testTxID, release))
	rec, err = c.GetCashIn(testTxID)
	require.NoError(t, err)
	assert.Equal(t, CashInStatusNonexistent, rec.Status)

	// Second revoke has nothing to reverse.
	require.ErrorIs(t, c.CashInPremintRevoke(ctx, testTxID, release), ErrInappropriateCashInStatus)

	require.Len(t, token.calls, 2)
	assert.Equal(t, "premint_increase", token.calls[0].Op)
	assert.Equal(t, "premint_decrease", token.calls[1].Op)
	assert.Equal(t, uint64(600), token.calls[1].Amount)
	assert.Equal(t, release, token.calls[1].Release)
}

func TestPaginationConsistencyProtocol(t *testing.T) {
	c, _, _ := newTestCashier(t, 4)
	ctx := context.Background()
	ids := txIDSeq(12)
	for _, id := range ids {
		require.NoError(t, c.RequestCashOut(ctx, testAccount, 10, id))
	}

	scan := func() ([]TxID, bool) {
		before := c.ProcessedCashOutCount()
		var collected []TxID
		for index := 0; ; index += 5 {
			page := c.PendingCashOutTxIDs(index, 5)
			collected = append(collected, page...)
			if len(page) < 5 {
				break
			}
		}
		return collected, c.ProcessedCashOutCount() == before
	}

	// No interleaved processing: scan is complete and duplicate-free.
	collected, clean := scan()
	require.True(t, clean)
	require.Len(t, collected, len(ids))
	seen := make(map[TxID]bool)
	for _, id := range collected {
		require.False(t, seen[id])
		seen[id] = true
	}

	// Interleaved processing moves the counter, telling the scanner to retry.
	before := c.ProcessedCashOutCount()
	require.NoError(t, c.ConfirmCashOut(ctx, ids[3]))
	assert.Equal(t, before+1, c.ProcessedCashOutCount())
}

func TestConfigureCashOutHooksSyncsFlagBit(t *testing.T) {
	c, _, caller := newTestCashier(t, 3)
	ctx := context.Background()
	flags := uint16(1<<HookIndexCashOutConfirmationBefore | 1<<HookIndexCashOutConfirmationAfter)

	require.NoError(t, c.RequestCashOut(ctx, testAccount, 100, testTxID))
	require.NoError(t, c.ConfigureCashOutHooks(testTxID, hookContract, flags))

	out, err := c.GetCashOut(testTxID)
	require.NoError(t, err)
	assert.Equal(t, FlagHookRegistered, out.Flags&FlagHookRegistered)

	// Identical reconfiguration is rejected before touching the flag bit.
	require.ErrorIs(t, c.ConfigureCashOutHooks(testTxID, hookContract, flags), ErrHookFlagsAlreadyRegistered)

	require.NoError(t, c.ConfirmCashOut(ctx, testTxID))
	require.Len(t, caller.calls, 2)
	assert.Equal(t, HookIndexCashOutConfirmationBefore, caller.calls[0].Index)
	assert.Equal(t, HookIndexCashOutConfirmationAfter, caller.calls[1].Index)

	// Clearing the config clears the flag bit.
	require.NoError(t, c.ConfigureCashOutHooks(testTxID, common.Address{}, 0))
	out, err = c.GetCashOut(testTxID)
	require.NoError(t, err)
	assert.Zero(t, out.Flags&FlagHookRegistered)
}

// reentrantHookCaller calls back into the cashier from inside the hook, the
// way an untrusted hook contract could. The state must already be committed.
type reentrantHookCaller struct {
	cashier   *Cashier
	sawStatus CashOutStatus
}

func (r *reentrantHookCaller) CallCashierHook(_ context.Context, _ common.Address, _ HookIndex, txID TxID) error {
	rec, err := r.cashier.GetCashOut(txID)
	if err != nil {
		return err
	}
	r.sawStatus = rec.Status
	// Replaying the transition from inside the hook must fail.
	return nil
}

func TestHookReentrancySeesCommittedState(t *testing.T) {
	router, err := NewShardRouter(3)
	require.NoError(t, err)
	caller := &reentrantHookCaller{}
	c := NewCashier(router, NewHookDispatcher(caller), &recordingToken{}, custodyAccount)
	caller.cashier = c
	ctx := context.Background()

	require.NoError(t, c.RequestCashOut(ctx, testAccount, 100, testTxID))
	require.NoError(t, c.ConfigureCashOutHooks(testTxID, hookContract, uint16(1<<HookIndexCashOutConfirmationBefore)))

	require.NoError(t, c.ConfirmCashOut(ctx, testTxID))
	// The "before" hook runs after the transition: it already sees Confirmed,
	// so a reentrant call cannot replay Pending-phase operations.
	assert.Equal(t, CashOutStatusConfirmed, caller.sawStatus)

	require.ErrorIs(t, c.ConfirmCashOut(ctx, testTxID), ErrInappropriateCashOutStatus)
}

func TestShardAdminPropagation(t *testing.T) {
	c, _, _ := newTestCashier(t, 4)

	require.NoError(t, c.ConfigureShardAdmin(testAccount, true))
	assert.True(t, c.IsShardAdmin(testAccount))

	require.NoError(t, c.AddShards(2))
	assert.Equal(t, 6, c.ShardCount())

	require.NoError(t, c.ConfigureShardAdmin(testAccount, false))
	assert.False(t, c.IsShardAdmin(testAccount))

	require.ErrorIs(t, c.ConfigureShardAdmin(common.Address{}, true), ErrZeroAccount)
}

func TestGatherAcrossShards(t *testing.T) {
	c, _, _ := newTestCashier(t, 8)
	ctx := context.Background()
	ids := txIDSeq(20)
	for i, id := range ids {
		require.NoError(t, c.CashIn(ctx, testAccount, uint64(i+1), id))
	}

	recs, err := c.GetCashIns(ids)
	require.NoError(t, err)
	require.Len(t, recs, len(ids))
	for i, rec := range recs {
		assert.Equal(t, uint64(i+1), rec.Amount, "input order preserved at %d", i)
	}
}

func TestRoutingStableForRegisteredIDs(t *testing.T) {
	c, _, _ := newTestCashier(t, 4)
	ctx := context.Background()
	ids := txIDSeq(10)
	for _, id := range ids {
		require.NoError(t, c.CashIn(ctx, testAccount, 5, id))
	}

	// Replacing a shard slot in place keeps routing untouched; records in the
	// untouched slots remain reachable.
	routes := make(map[TxID]int)
	for _, id := range ids {
		r, err := c.Route(id)
		require.NoError(t, err)
		routes[id] = r
	}
	require.NoError(t, c.ReplaceShards(0, 1))
	for _, id := range ids {
		r, err := c.Route(id)
		require.NoError(t, err)
		assert.Equal(t, routes[id], r)
		if routes[id] != 0 {
			rec, err := c.GetCashIn(id)
			require.NoError(t, err)
			assert.Equal(t, CashInStatusExecuted, rec.Status)
		}
	}
}

func TestCashInBatchPolicies(t *testing.T) {
	ctx := context.Background()
	mkItems := func(n int) []CashInItem {
		items := make([]CashInItem, n)
		for i := range items {
			items[i] = CashInItem{
				Account: testAccount,
				Amount:  uint64(100 * (i + 1)),
				TxID:    common.HexToHash(fmt.Sprintf("0x%x", i+1)),
			}
		}
		return items
	}

	t.Run("skip policy isolates conflicts", func(t *testing.T) {
		c, _, _ := newTestCashier(t, 4)
		items := mkItems(4)
		require.NoError(t, c.CashIn(ctx, testAccount, 1, items[2].TxID))

		outcomes, err := c.CashInBatch(ctx, items, BatchPolicySkip)
		require.NoError(t, err)
		require.Len(t, outcomes, 4)
		assert.NoError(t, outcomes[0].Err)
		assert.NoError(t, outcomes[1].Err)
		assert.ErrorIs(t, outcomes[2].Err, ErrCashInAlreadyExecuted)
		assert.NoError(t, outcomes[3].Err)

		// Siblings of the conflicting element are committed.
		rec, err := c.GetCashIn(items[3].TxID)
		require.NoError(t, err)
		assert.Equal(t, uint64(400), rec.Amount)
	})

	t.Run("revert policy is all-or-nothing", func(t *testing.T) {
		c, _, _ := newTestCashier(t, 4)
		items := mkItems(4)
		require.NoError(t, c.CashIn(ctx, testAccount, 1, items[2].TxID))

		_, err := c.CashInBatch(ctx, items, BatchPolicyRevert)
		require.ErrorIs(t, err, ErrCashInAlreadyExecuted)

		// No sibling took effect.
		rec, err := c.GetCashIn(items[0].TxID)
		require.NoError(t, err)
		assert.Equal(t, CashInStatusNonexistent, rec.Status)
	})

	t.Run("input validation aborts either policy", func(t *testing.T) {
		c, _, _ := newTestCashier(t, 4)
		items := mkItems(2)
		items[1].Amount = 0
		_, err := c.CashInBatch(ctx, items, BatchPolicySkip)
		require.ErrorIs(t, err, ErrZeroAmount)
	})
}

func TestConfirmCashOutBatch(t *testing.T) {
	ctx := context.Background()
	c, _, _ := newTestCashier(t, 4)
	ids := txIDSeq(3)
	for _, id := range ids {
		require.NoError(t, c.RequestCashOut(ctx, testAccount, 10, id))
	}
	require.NoError(t, c.ConfirmCashOut(ctx, ids[1]))

	// Revert policy refuses the batch because ids[1] is already settled.
	_, err := c.ConfirmCashOutBatch(ctx, ids, BatchPolicyRevert)
	require.ErrorIs(t, err, ErrInappropriateCashOutStatus)

	// Skip policy settles the rest.
	outcomes, err := c.ConfirmCashOutBatch(ctx, ids, BatchPolicySkip)
	require.NoError(t, err)
	assert.NoError(t, outcomes[0].Err)
	assert.ErrorIs(t, outcomes[1].Err, ErrInappropriateCashOutStatus)
	assert.NoError(t, outcomes[2].Err)
	assert.Zero(t, c.PendingCashOutCount())
}

func TestReverseCashOutBatchSkip(t *testing.T) {
	ctx := context.Background()
	c, _, _ := newTestCashier(t, 4)
	ids := txIDSeq(2)
	require.NoError(t, c.RequestCashOut(ctx, testAccount, 10, ids[0]))

	outcomes, err := c.ReverseCashOutBatch(ctx, ids, BatchPolicySkip)
	require.NoError(t, err)
	assert.NoError(t, outcomes[0].Err)
	assert.ErrorIs(t, outcomes[1].Err, ErrInappropriateCashOutStatus)
}

// settlementCheckingToken verifies from inside the burn effect that every
// element of the batch has already reached its terminal status, so a
// concurrent single-element call slotting in during the effects phase finds
// nothing left to settle.
type settlementCheckingToken struct {
	recordingToken
	cashier      *Cashier
	ids          []TxID
	sawUnsettled bool
}

func (s *settlementCheckingToken) Burn(ctx context.Context, amount uint64) error {
	for _, id := range s.ids {
		rec, err := s.cashier.GetCashOut(id)
		if err != nil || rec.Status != CashOutStatusConfirmed {
			s.sawUnsettled = true
		}
	}
	return s.recordingToken.Burn(ctx, amount)
}

func TestRevertBatchCommitsStateBeforeEffects(t *testing.T) {
	router, err := NewShardRouter(4)
	require.NoError(t, err)
	token := &settlementCheckingToken{}
	c := NewCashier(router, NewHookDispatcher(&recordingHookCaller{}), token, custodyAccount)
	token.cashier = c
	ctx := context.Background()

	ids := txIDSeq(3)
	token.ids = ids
	for _, id := range ids {
		require.NoError(t, c.RequestCashOut(ctx, testAccount, 10, id))
	}

	outcomes, err := c.ConfirmCashOutBatch(ctx, ids, BatchPolicyRevert)
	require.NoError(t, err)
	require.Len(t, outcomes, 3)
	for _, o := range outcomes {
		assert.NoError(t, o.Err)
	}
	// Even the first burn already observed all three records Confirmed.
	assert.False(t, token.sawUnsettled)
	assert.Zero(t, c.PendingCashOutCount())
	assert.Zero(t, c.TotalPendingCashOut())
	// Three custody transfers from the requests, then three burns.
	require.Len(t, token.calls, 6)
	assert.Equal(t, "burn", token.calls[5].Op)
}
