package cashier

import (
	"context"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// HookIndex identifies one of the twelve defined hook call sites.
type HookIndex uint8

const (
	HookIndexCashInCommonBefore  HookIndex = 0
	HookIndexCashInCommonAfter   HookIndex = 1
	HookIndexCashInPremintBefore HookIndex = 2
	HookIndexCashInPremintAfter  HookIndex = 3
	// Indices 4 and 5 are reserved.
	HookIndexCashOutRequestBefore      HookIndex = 6
	HookIndexCashOutRequestAfter       HookIndex = 7
	HookIndexCashOutConfirmationBefore HookIndex = 8
	HookIndexCashOutConfirmationAfter  HookIndex = 9
	HookIndexCashOutReversalBefore     HookIndex = 10
	HookIndexCashOutReversalAfter      HookIndex = 11

	// HookIndexCount is the number of defined call sites.
	HookIndexCount = 12
)

// ValidCashOutHookFlags is the mask of hook flag bits a cash-out
// configuration may set: the six cash-out call sites.
const ValidCashOutHookFlags uint16 = (1 << HookIndexCashOutRequestBefore) |
	(1 << HookIndexCashOutRequestAfter) |
	(1 << HookIndexCashOutConfirmationBefore) |
	(1 << HookIndexCashOutConfirmationAfter) |
	(1 << HookIndexCashOutReversalBefore) |
	(1 << HookIndexCashOutReversalAfter)

// HookConfig is the per-txID hook configuration. A zero value means "no
// hook"; a non-zero configuration requires both fields set.
type HookConfig struct {
	Callable common.Address
	Flags    uint16
}

// HookCaller is the external-call boundary to a configured hook contract.
// The dispatcher does not police what the callee does; the orchestrator has
// already committed the operation's state before any invocation, so a
// reentrant call observes the post-transition state.
type HookCaller interface {
	CallCashierHook(ctx context.Context, callable common.Address, hookIndex HookIndex, txID TxID) error
}

// HookDispatcher stores per-txID hook configurations and invokes the
// configured contract at defined call sites. Hook state is independent of and
// outlives the cash-out record's own status transitions. The dispatcher
// carries its own lock: invocations happen after the orchestrator has
// released its mutex, concurrently with configuration writes.
type HookDispatcher struct {
	mu      sync.RWMutex
	caller  HookCaller
	configs map[TxID]HookConfig
}

// NewHookDispatcher creates a dispatcher routing invocations through caller.
func NewHookDispatcher(caller HookCaller) *HookDispatcher {
	return &HookDispatcher{
		caller:  caller,
		configs: make(map[TxID]HookConfig),
	}
}

// Configure validates and stores the hook configuration for txID. Both-zero
// clears the configuration; otherwise contract and flags must be jointly set
// and the flags confined to the defined cash-out bits. Rewriting an identical
// configuration is rejected to catch caller bugs.
func (d *HookDispatcher) Configure(txID TxID, callable common.Address, flags uint16) (HookConfig, error) {
	if txID == (TxID{}) {
		return HookConfig{}, ErrZeroTxID
	}
	if flags&^ValidCashOutHookFlags != 0 {
		return HookConfig{}, ErrHookFlagsInvalid
	}
	if flags != 0 && callable == (common.Address{}) {
		return HookConfig{}, ErrHookCallableContractZero
	}
	if flags == 0 && callable != (common.Address{}) {
		return HookConfig{}, ErrHookCallableContractNonZero
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	old := d.configs[txID]
	newCfg := HookConfig{Callable: callable, Flags: flags}
	if old == newCfg {
		return HookConfig{}, ErrHookFlagsAlreadyRegistered
	}
	if newCfg == (HookConfig{}) {
		delete(d.configs, txID)
	} else {
		d.configs[txID] = newCfg
	}
	return old, nil
}

// Config returns the stored configuration for txID, zero if none.
func (d *HookDispatcher) Config(txID TxID) HookConfig {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.configs[txID]
}

// Invoke calls the configured hook contract for txID if its flags select
// hookIndex. Best-effort and synchronous; a missing configuration is a no-op.
// The external call runs outside the lock so a reentrant callee can
// reconfigure hooks.
func (d *HookDispatcher) Invoke(ctx context.Context, txID TxID, hookIndex HookIndex) error {
	d.mu.RLock()
	cfg, ok := d.configs[txID]
	d.mu.RUnlock()
	if !ok || cfg.Flags&(1<<hookIndex) == 0 {
		return nil
	}
	return d.caller.CallCashierHook(ctx, cfg.Callable, hookIndex, txID)
}
