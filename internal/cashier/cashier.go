package cashier

import (
	"context"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// Cashier is the orchestrator: it routes every operation to its owning shard,
// performs the state transition there, maintains the pending-set index and
// per-account pending balances, and only then applies the token side effect
// and hook invocations. All state mutation happens under a single mutex, so
// state-changing calls execute in one total order; external calls (token,
// hooks) run after the local state has reached its new, non-revertible form,
// which makes a reentrant hook call observe the post-transition state.
type Cashier struct {
	mu     sync.Mutex
	router *ShardRouter
	hooks  *HookDispatcher
	token  TokenBackend

	// custody is the account holding tokens between cash-out request and
	// settlement.
	custody common.Address

	pending         *PendingSetIndex
	pendingBalances map[common.Address]uint64
	pendingTotal    uint64

	// processedCount increments on every exit from Pending. Scanners compare
	// it before and after paginating the pending set to detect interleaved
	// processing.
	processedCount uint64
}

// NewCashier creates an orchestrator over router, settling token effects
// through token and hook invocations through the dispatcher.
func NewCashier(router *ShardRouter, hooks *HookDispatcher, token TokenBackend, custody common.Address) *Cashier {
	return &Cashier{
		router:          router,
		hooks:           hooks,
		token:           token,
		custody:         custody,
		pending:         NewPendingSetIndex(),
		pendingBalances: make(map[common.Address]uint64),
	}
}

func validateOperation(account common.Address, amount uint64, txID TxID) error {
	if txID == (TxID{}) {
		return ErrZeroTxID
	}
	if account == (common.Address{}) {
		return ErrZeroAccount
	}
	if amount == 0 {
		return ErrZeroAmount
	}
	return nil
}

// CashIn records an immediately usable deposit for account and mints the
// tokens.
func (c *Cashier) CashIn(ctx context.Context, account common.Address, amount uint64, txID TxID) error {
	if err := validateOperation(account, amount, txID); err != nil {
		return err
	}
	c.mu.Lock()
	if err := c.cashInLocked(account, amount, txID); err != nil {
		c.mu.Unlock()
		return err
	}
	c.mu.Unlock()
	return c.cashInEffects(ctx, account, amount, txID)
}

// cashInLocked performs the registration for one immediate cash-in. Caller
// holds the mutex.
func (c *Cashier) cashInLocked(account common.Address, amount uint64, txID TxID) error {
	shard, err := c.router.ShardFor(txID)
	if err != nil {
		return err
	}
	return shard.Store().RegisterCashIn(account, amount, txID, CashInStatusExecuted)
}

func (c *Cashier) cashInEffects(ctx context.Context, account common.Address, amount uint64, txID TxID) error {
	if err := c.hooks.Invoke(ctx, txID, HookIndexCashInCommonBefore); err != nil {
		return fmt.Errorf("cash-in hook before: %w", err)
	}
	if err := c.token.Mint(ctx, account, amount); err != nil {
		return fmt.Errorf("mint for cash-in %s: %w", txID.Hex(), err)
	}
	if err := c.hooks.Invoke(ctx, txID, HookIndexCashInCommonAfter); err != nil {
		return fmt.Errorf("cash-in hook after: %w", err)
	}
	return nil
}

// CashInPremint records a deposit whose tokens stay locked until releaseTime.
func (c *Cashier) CashInPremint(ctx context.Context, account common.Address, amount uint64, txID TxID, releaseTime uint64) error {
	if err := validateOperation(account, amount, txID); err != nil {
		return err
	}
	c.mu.Lock()
	shard, err := c.router.ShardFor(txID)
	if err != nil {
		c.mu.Unlock()
		return err
	}
	if err := shard.Store().RegisterCashIn(account, amount, txID, CashInStatusPremintExecuted); err != nil {
		c.mu.Unlock()
		return err
	}
	c.mu.Unlock()

	if err := c.hooks.Invoke(ctx, txID, HookIndexCashInPremintBefore); err != nil {
		return fmt.Errorf("premint hook before: %w", err)
	}
	if err := c.token.PremintIncrease(ctx, account, amount, releaseTime); err != nil {
		return fmt.Errorf("premint increase for cash-in %s: %w", txID.Hex(), err)
	}
	if err := c.hooks.Invoke(ctx, txID, HookIndexCashInPremintAfter); err != nil {
		return fmt.Errorf("premint hook after: %w", err)
	}
	return nil
}

// CashInPremintRevoke undoes a premint deposit that has not been released
// yet, resetting the record to Nonexistent.
func (c *Cashier) CashInPremintRevoke(ctx context.Context, txID TxID, releaseTime uint64) error {
	if txID == (TxID{}) {
		return ErrZeroTxID
	}
	c.mu.Lock()
	shard, err := c.router.ShardFor(txID)
	if err != nil {
		c.mu.Unlock()
		return err
	}
	account, amount, err := shard.Store().RevokeCashIn(txID)
	if err != nil {
		c.mu.Unlock()
		return err
	}
	c.mu.Unlock()

	if err := c.hooks.Invoke(ctx, txID, HookIndexCashInPremintBefore); err != nil {
		return fmt.Errorf("premint hook before: %w", err)
	}
	if err := c.token.PremintDecrease(ctx, account, amount, releaseTime); err != nil {
		return fmt.Errorf("premint decrease for cash-in %s: %w", txID.Hex(), err)
	}
	if err := c.hooks.Invoke(ctx, txID, HookIndexCashInPremintAfter); err != nil {
		return fmt.Errorf("premint hook after: %w", err)
	}
	return nil
}

// ReschedulePremintRelease moves every premint scheduled at originalRelease
// to targetRelease. Pure delegation to the token collaborator; the cashier
// keeps no per-release bookkeeping.
func (c *Cashier) ReschedulePremintRelease(ctx context.Context, originalRelease, targetRelease uint64) error {
	return c.token.ReschedulePremintRelease(ctx, originalRelease, targetRelease)
}

// RequestCashOut opens the two-phase withdrawal flow: the record becomes
// Pending, the txID joins the pending set, and the tokens move from account
// into cashier custody until confirmation or reversal.
func (c *Cashier) RequestCashOut(ctx context.Context, account common.Address, amount uint64, txID TxID) error {
	if err := validateOperation(account, amount, txID); err != nil {
		return err
	}
	c.mu.Lock()
	if err := c.requestCashOutLocked(account, amount, txID); err != nil {
		c.mu.Unlock()
		return err
	}
	c.mu.Unlock()
	return c.requestCashOutEffects(ctx, account, amount, txID)
}

// requestCashOutLocked performs the registration and pending-set bookkeeping
// for one cash-out request. Caller holds the mutex. Nothing is mutated on
// error.
func (c *Cashier) requestCashOutLocked(account common.Address, amount uint64, txID TxID) error {
	shard, err := c.router.ShardFor(txID)
	if err != nil {
		return err
	}
	if c.pendingBalances[account] > MaxAmount-amount || c.pendingTotal > MaxAmount-amount {
		return ErrAmountExcess
	}
	if _, err := shard.Store().RegisterCashOut(account, amount, txID); err != nil {
		return err
	}
	c.pending.Add(txID)
	c.pendingBalances[account] += amount
	c.pendingTotal += amount
	return nil
}

func (c *Cashier) requestCashOutEffects(ctx context.Context, account common.Address, amount uint64, txID TxID) error {
	if err := c.hooks.Invoke(ctx, txID, HookIndexCashOutRequestBefore); err != nil {
		return fmt.Errorf("cash-out request hook before: %w", err)
	}
	if err := c.token.Transfer(ctx, account, c.custody, amount); err != nil {
		return fmt.Errorf("transfer for cash-out %s: %w", txID.Hex(), err)
	}
	if err := c.hooks.Invoke(ctx, txID, HookIndexCashOutRequestAfter); err != nil {
		return fmt.Errorf("cash-out request hook after: %w", err)
	}
	return nil
}

// ConfirmCashOut settles a pending cash-out: the record becomes Confirmed and
// the custodied tokens are burned.
func (c *Cashier) ConfirmCashOut(ctx context.Context, txID TxID) error {
	_, amount, err := c.processCashOut(txID, CashOutStatusConfirmed)
	if err != nil {
		return err
	}
	return c.confirmCashOutEffects(ctx, amount, txID)
}

func (c *Cashier) confirmCashOutEffects(ctx context.Context, amount uint64, txID TxID) error {
	if err := c.hooks.Invoke(ctx, txID, HookIndexCashOutConfirmationBefore); err != nil {
		return fmt.Errorf("cash-out confirmation hook before: %w", err)
	}
	if err := c.token.Burn(ctx, amount); err != nil {
		return fmt.Errorf("burn for cash-out %s: %w", txID.Hex(), err)
	}
	if err := c.hooks.Invoke(ctx, txID, HookIndexCashOutConfirmationAfter); err != nil {
		return fmt.Errorf("cash-out confirmation hook after: %w", err)
	}
	return nil
}

// ReverseCashOut cancels a pending cash-out: the record becomes Reversed and
// the custodied tokens return to the account.
func (c *Cashier) ReverseCashOut(ctx context.Context, txID TxID) error {
	account, amount, err := c.processCashOut(txID, CashOutStatusReversed)
	if err != nil {
		return err
	}
	return c.reverseCashOutEffects(ctx, account, amount, txID)
}

func (c *Cashier) reverseCashOutEffects(ctx context.Context, account common.Address, amount uint64, txID TxID) error {
	if err := c.hooks.Invoke(ctx, txID, HookIndexCashOutReversalBefore); err != nil {
		return fmt.Errorf("cash-out reversal hook before: %w", err)
	}
	if err := c.token.Transfer(ctx, c.custody, account, amount); err != nil {
		return fmt.Errorf("transfer back for cash-out %s: %w", txID.Hex(), err)
	}
	if err := c.hooks.Invoke(ctx, txID, HookIndexCashOutReversalAfter); err != nil {
		return fmt.Errorf("cash-out reversal hook after: %w", err)
	}
	return nil
}

// processCashOut performs the Pending -> target transition and pending-set
// maintenance under the lock, returning the settled account and amount.
func (c *Cashier) processCashOut(txID TxID, target CashOutStatus) (common.Address, uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.processCashOutLocked(txID, target)
}

func (c *Cashier) processCashOutLocked(txID TxID, target CashOutStatus) (common.Address, uint64, error) {
	shard, err := c.router.ShardFor(txID)
	if err != nil {
		return common.Address{}, 0, err
	}
	account, amount, _, err := shard.Store().ProcessCashOut(txID, target)
	if err != nil {
		return common.Address{}, 0, err
	}
	c.settlePendingLocked(txID, account, amount)
	return account, amount, nil
}

// settlePendingLocked removes txID from the pending set and unwinds the
// aggregates. Caller holds the mutex.
func (c *Cashier) settlePendingLocked(txID TxID, account common.Address, amount uint64) {
	c.pending.Remove(txID)
	if bal := c.pendingBalances[account]; bal <= amount {
		delete(c.pendingBalances, account)
	} else {
		c.pendingBalances[account] = bal - amount
	}
	c.pendingTotal -= amount
	c.processedCount++
}

// MakeInternalCashOut executes a one-shot internal cash-out: the record goes
// straight to the terminal Internal status and the tokens are taken from the
// account and burned in the same operation. The after-request hook site is
// skipped because the operation never enters the pending phase.
func (c *Cashier) MakeInternalCashOut(ctx context.Context, account common.Address, amount uint64, txID TxID) error {
	return c.oneShotCashOut(ctx, account, amount, txID, CashOutStatusInternal)
}

// ForceCashOut executes a one-shot forced cash-out with the terminal Forced
// status. Same shape as an internal cash-out; the distinct status keeps the
// audit trail explicit about who initiated the debit.
func (c *Cashier) ForceCashOut(ctx context.Context, account common.Address, amount uint64, txID TxID) error {
	return c.oneShotCashOut(ctx, account, amount, txID, CashOutStatusForced)
}

func (c *Cashier) oneShotCashOut(ctx context.Context, account common.Address, amount uint64, txID TxID, status CashOutStatus) error {
	if err := validateOperation(account, amount, txID); err != nil {
		return err
	}
	c.mu.Lock()
	shard, err := c.router.ShardFor(txID)
	if err != nil {
		c.mu.Unlock()
		return err
	}
	var regErr error
	if status == CashOutStatusInternal {
		_, regErr = shard.Store().RegisterInternalCashOut(account, amount, txID)
	} else {
		_, regErr = shard.Store().RegisterForcedCashOut(account, amount, txID)
	}
	if regErr != nil {
		c.mu.Unlock()
		return regErr
	}
	c.mu.Unlock()

	if err := c.hooks.Invoke(ctx, txID, HookIndexCashOutRequestBefore); err != nil {
		return fmt.Errorf("cash-out request hook before: %w", err)
	}
	if err := c.token.Transfer(ctx, account, c.custody, amount); err != nil {
		return fmt.Errorf("transfer for cash-out %s: %w", txID.Hex(), err)
	}
	if err := c.token.Burn(ctx, amount); err != nil {
		return fmt.Errorf("burn for cash-out %s: %w", txID.Hex(), err)
	}
	if err := c.hooks.Invoke(ctx, txID, HookIndexCashOutConfirmationAfter); err != nil {
		return fmt.Errorf("cash-out confirmation hook after: %w", err)
	}
	return nil
}

// ConfigureCashOutHooks stores the hook configuration for txID and keeps the
// record's hook-registered flag bit in sync with it.
func (c *Cashier) ConfigureCashOutHooks(txID TxID, callable common.Address, flags uint16) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	shard, err := c.router.ShardFor(txID)
	if err != nil {
		return err
	}
	old, err := c.hooks.Configure(txID, callable, flags)
	if err != nil {
		return err
	}
	if old.Flags == 0 && flags != 0 {
		return shard.Store().SetBitInCashOutFlags(txID, FlagHookRegistered)
	}
	if old.Flags != 0 && flags == 0 {
		return shard.Store().ResetBitInCashOutFlags(txID, FlagHookRegistered)
	}
	return nil
}

// HookConfigOf returns the stored hook configuration for txID.
func (c *Cashier) HookConfigOf(txID TxID) HookConfig {
	return c.hooks.Config(txID)
}

// GetCashIn returns the cash-in record for txID, total over unknown ids.
func (c *Cashier) GetCashIn(txID TxID) (CashInRecord, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	shard, err := c.router.ShardFor(txID)
	if err != nil {
		return CashInRecord{}, err
	}
	return shard.Store().GetCashIn(txID), nil
}

// GetCashOut returns the cash-out record for txID, total over unknown ids.
func (c *Cashier) GetCashOut(txID TxID) (CashOutRecord, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	shard, err := c.router.ShardFor(txID)
	if err != nil {
		return CashOutRecord{}, err
	}
	return shard.Store().GetCashOut(txID), nil
}

// GetCashIns gathers the cash-in records for txIDs across shards, merged in
// input order. No transaction spans shards; each lookup is an independent
// point read.
func (c *Cashier) GetCashIns(txIDs []TxID) ([]CashInRecord, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]CashInRecord, len(txIDs))
	for i, id := range txIDs {
		shard, err := c.router.ShardFor(id)
		if err != nil {
			return nil, err
		}
		out[i] = shard.Store().GetCashIn(id)
	}
	return out, nil
}

// GetCashOuts gathers the cash-out records for txIDs across shards, merged in
// input order.
func (c *Cashier) GetCashOuts(txIDs []TxID) ([]CashOutRecord, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]CashOutRecord, len(txIDs))
	for i, id := range txIDs {
		shard, err := c.router.ShardFor(id)
		if err != nil {
			return nil, err
		}
		out[i] = shard.Store().GetCashOut(id)
	}
	return out, nil
}

// PendingCashOutTxIDs returns a page of the current pending set. See
// PendingSetIndex for the consistency protocol scanners must follow.
func (c *Cashier) PendingCashOutTxIDs(index, limit int) []TxID {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending.Range(index, limit)
}

// PendingCashOutCount returns the current size of the pending set.
func (c *Cashier) PendingCashOutCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending.Len()
}

// ProcessedCashOutCount returns the monotonic processed counter.
func (c *Cashier) ProcessedCashOutCount() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.processedCount
}

// CashOutBalanceOf returns the pending cash-out aggregate for account.
func (c *Cashier) CashOutBalanceOf(account common.Address) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pendingBalances[account]
}

// TotalPendingCashOut returns the sum of all pending cash-out amounts.
func (c *Cashier) TotalPendingCashOut() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pendingTotal
}

// ShardCount returns the current shard table length.
func (c *Cashier) ShardCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.router.ShardCount()
}

// ShardStats is the introspection view of one shard slot.
type ShardStats struct {
	Index        int
	CashInCount  int
	CashOutCount int
}

// ShardRange returns introspection stats for the shard table slice starting
// at index. Total for any index; the limit clamps to the remaining length.
func (c *Cashier) ShardRange(index, limit int) []ShardStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	shards := c.router.ShardRange(index, limit)
	stats := make([]ShardStats, len(shards))
	for i, sh := range shards {
		stats[i] = ShardStats{
			Index:        index + i,
			CashInCount:  sh.Store().CashInCount(),
			CashOutCount: sh.Store().CashOutCount(),
		}
	}
	return stats
}

// Route exposes the deterministic shard index for txID.
func (c *Cashier) Route(txID TxID) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.router.Route(txID)
}

// AddShards appends fresh shards to the table.
func (c *Cashier) AddShards(count int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	shards := make([]*Shard, count)
	for i := range shards {
		shards[i] = NewShard()
	}
	return c.router.AddShards(shards...)
}

// ReplaceShards patches a bounded contiguous range of the shard table with
// fresh shards.
func (c *Cashier) ReplaceShards(fromIndex, count int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if count > MaxShardReplacementCount {
		return ErrShardReplacementCountExcess
	}
	shards := make([]*Shard, count)
	for i := range shards {
		shards[i] = NewShard()
	}
	return c.router.ReplaceShards(fromIndex, shards)
}

// ConfigureShardAdmin propagates shard-admin status for account to every
// shard identically.
func (c *Cashier) ConfigureShardAdmin(account common.Address, status bool) error {
	if account == (common.Address{}) {
		return ErrZeroAccount
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, sh := range c.router.Shards() {
		sh.ConfigureAdmin(account, status)
	}
	return nil
}

// IsShardAdmin reports whether account holds shard-admin status. Admin state
// is propagated identically, so the first shard is authoritative.
func (c *Cashier) IsShardAdmin(account common.Address) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	shards := c.router.Shards()
	if len(shards) == 0 {
		return false
	}
	return shards[0].IsAdmin(account)
}
