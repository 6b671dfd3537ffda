package cashier

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
)

// BatchPolicy selects how a batch entry point reacts to a per-element state
// conflict.
type BatchPolicy uint8

const (
	// BatchPolicyRevert aborts the whole batch if any element would hit a
	// state conflict; no element takes effect.
	BatchPolicyRevert BatchPolicy = iota
	// BatchPolicySkip omits conflicting elements from effects without
	// aborting their siblings.
	BatchPolicySkip
)

// CashInItem is one element of a batch cash-in.
type CashInItem struct {
	Account common.Address
	Amount  uint64
	TxID    TxID
}

// BatchOutcome reports the result of one batch element. A nil Err means the
// element was applied; a state-conflict Err under the Skip policy means it
// was omitted.
type BatchOutcome struct {
	TxID TxID
	Err  error
}

// CashInBatch executes a sequence of cash-ins with per-element failure
// isolation. Input-validation errors abort the batch under either policy;
// state conflicts follow the policy. Under Skip, earlier successful elements
// stay committed regardless of later conflicts.
func (c *Cashier) CashInBatch(ctx context.Context, items []CashInItem, policy BatchPolicy) ([]BatchOutcome, error) {
	for _, it := range items {
		if err := validateOperation(it.Account, it.Amount, it.TxID); err != nil {
			return nil, err
		}
	}
	if policy == BatchPolicyRevert {
		return c.cashInBatchRevert(ctx, items)
	}
	outcomes := make([]BatchOutcome, len(items))
	for i, it := range items {
		err := c.CashIn(ctx, it.Account, it.Amount, it.TxID)
		outcomes[i] = BatchOutcome{TxID: it.TxID, Err: err}
		if err != nil && !IsStateConflict(err) {
			return outcomes, err
		}
	}
	return outcomes, nil
}

// cashInBatchRevert guards and commits every element under one critical
// section, so a concurrent single-element call cannot interleave between the
// guard and the application. Hooks and token effects run after the whole
// batch has committed.
func (c *Cashier) cashInBatchRevert(ctx context.Context, items []CashInItem) ([]BatchOutcome, error) {
	c.mu.Lock()
	if err := c.guardCashInBatchLocked(items); err != nil {
		c.mu.Unlock()
		return nil, err
	}
	for _, it := range items {
		if err := c.cashInLocked(it.Account, it.Amount, it.TxID); err != nil {
			c.mu.Unlock()
			return nil, err
		}
	}
	c.mu.Unlock()

	outcomes := make([]BatchOutcome, len(items))
	for i, it := range items {
		err := c.cashInEffects(ctx, it.Account, it.Amount, it.TxID)
		outcomes[i] = BatchOutcome{TxID: it.TxID, Err: err}
		if err != nil {
			return outcomes, err
		}
	}
	return outcomes, nil
}

// guardCashInBatchLocked pre-checks every element's registration precondition
// so that a Revert-policy batch is all-or-nothing with respect to state
// conflicts. Caller holds the mutex.
func (c *Cashier) guardCashInBatchLocked(items []CashInItem) error {
	seen := make(map[TxID]bool, len(items))
	for _, it := range items {
		if seen[it.TxID] {
			return ErrCashInAlreadyExecuted
		}
		seen[it.TxID] = true
		shard, err := c.router.ShardFor(it.TxID)
		if err != nil {
			return err
		}
		if rec := shard.Store().GetCashIn(it.TxID); rec.Status != CashInStatusNonexistent {
			return ErrCashInAlreadyExecuted
		}
	}
	return nil
}

// ConfirmCashOutBatch settles a sequence of pending cash-outs.
func (c *Cashier) ConfirmCashOutBatch(ctx context.Context, txIDs []TxID, policy BatchPolicy) ([]BatchOutcome, error) {
	return c.processCashOutBatch(ctx, txIDs, CashOutStatusConfirmed, policy)
}

// ReverseCashOutBatch reverses a sequence of pending cash-outs.
func (c *Cashier) ReverseCashOutBatch(ctx context.Context, txIDs []TxID, policy BatchPolicy) ([]BatchOutcome, error) {
	return c.processCashOutBatch(ctx, txIDs, CashOutStatusReversed, policy)
}

func (c *Cashier) processCashOutBatch(ctx context.Context, txIDs []TxID, target CashOutStatus, policy BatchPolicy) ([]BatchOutcome, error) {
	for _, id := range txIDs {
		if id == (TxID{}) {
			return nil, ErrZeroTxID
		}
	}
	if policy == BatchPolicyRevert {
		return c.processCashOutBatchRevert(ctx, txIDs, target)
	}
	outcomes := make([]BatchOutcome, len(txIDs))
	for i, id := range txIDs {
		var err error
		if target == CashOutStatusConfirmed {
			err = c.ConfirmCashOut(ctx, id)
		} else {
			err = c.ReverseCashOut(ctx, id)
		}
		outcomes[i] = BatchOutcome{TxID: id, Err: err}
		if err != nil && !IsStateConflict(err) {
			return outcomes, err
		}
	}
	return outcomes, nil
}

// processCashOutBatchRevert guards and settles every element under one
// critical section, capturing the account and amount each settlement yields
// for the effects phase that follows the unlock.
func (c *Cashier) processCashOutBatchRevert(ctx context.Context, txIDs []TxID, target CashOutStatus) ([]BatchOutcome, error) {
	c.mu.Lock()
	if err := c.guardProcessBatchLocked(txIDs); err != nil {
		c.mu.Unlock()
		return nil, err
	}
	accounts := make([]common.Address, len(txIDs))
	amounts := make([]uint64, len(txIDs))
	for i, id := range txIDs {
		account, amount, err := c.processCashOutLocked(id, target)
		if err != nil {
			c.mu.Unlock()
			return nil, err
		}
		accounts[i], amounts[i] = account, amount
	}
	c.mu.Unlock()

	outcomes := make([]BatchOutcome, len(txIDs))
	for i, id := range txIDs {
		var err error
		if target == CashOutStatusConfirmed {
			err = c.confirmCashOutEffects(ctx, amounts[i], id)
		} else {
			err = c.reverseCashOutEffects(ctx, accounts[i], amounts[i], id)
		}
		outcomes[i] = BatchOutcome{TxID: id, Err: err}
		if err != nil {
			return outcomes, err
		}
	}
	return outcomes, nil
}

// guardProcessBatchLocked pre-checks that every element is Pending and
// appears once. Caller holds the mutex.
func (c *Cashier) guardProcessBatchLocked(txIDs []TxID) error {
	seen := make(map[TxID]bool, len(txIDs))
	for _, id := range txIDs {
		if seen[id] {
			return ErrInappropriateCashOutStatus
		}
		seen[id] = true
		shard, err := c.router.ShardFor(id)
		if err != nil {
			return err
		}
		if rec := shard.Store().GetCashOut(id); rec.Status != CashOutStatusPending {
			return ErrInappropriateCashOutStatus
		}
	}
	return nil
}
