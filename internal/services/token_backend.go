package services

import (
	"context"

	"cashier-backend/internal/cashier"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"
)

// DryRunTokenBackend logs token side effects instead of sending transactions.
// Used when no blockchain endpoint is configured, so the ledger can run
// standalone (development, reconciliation replay).
type DryRunTokenBackend struct {
	logger *logrus.Logger
}

// NewDryRunTokenBackend creates a logging-only token backend.
func NewDryRunTokenBackend(logger *logrus.Logger) *DryRunTokenBackend {
	return &DryRunTokenBackend{logger: logger}
}

func (d *DryRunTokenBackend) log(op string, fields logrus.Fields) {
	d.logger.WithField("op", op).WithFields(fields).Info("Token side effect (dry run)")
}

func (d *DryRunTokenBackend) Mint(_ context.Context, account common.Address, amount uint64) error {
	d.log("mint", logrus.Fields{"account": account.Hex(), "amount": amount})
	return nil
}

func (d *DryRunTokenBackend) Burn(_ context.Context, amount uint64) error {
	d.log("burn", logrus.Fields{"amount": amount})
	return nil
}

func (d *DryRunTokenBackend) Transfer(_ context.Context, from, to common.Address, amount uint64) error {
	d.log("transfer", logrus.Fields{"from": from.Hex(), "to": to.Hex(), "amount": amount})
	return nil
}

func (d *DryRunTokenBackend) PremintIncrease(_ context.Context, account common.Address, amount uint64, releaseTime uint64) error {
	d.log("premint_increase", logrus.Fields{"account": account.Hex(), "amount": amount, "release": releaseTime})
	return nil
}

func (d *DryRunTokenBackend) PremintDecrease(_ context.Context, account common.Address, amount uint64, releaseTime uint64) error {
	d.log("premint_decrease", logrus.Fields{"account": account.Hex(), "amount": amount, "release": releaseTime})
	return nil
}

func (d *DryRunTokenBackend) ReschedulePremintRelease(_ context.Context, originalRelease, targetRelease uint64) error {
	d.log("reschedule_premint", logrus.Fields{"original": originalRelease, "target": targetRelease})
	return nil
}

var _ cashier.TokenBackend = (*DryRunTokenBackend)(nil)

// DryRunHookCaller logs hook invocations instead of calling contracts.
type DryRunHookCaller struct {
	logger *logrus.Logger
}

// NewDryRunHookCaller creates a logging-only hook caller.
func NewDryRunHookCaller(logger *logrus.Logger) *DryRunHookCaller {
	return &DryRunHookCaller{logger: logger}
}

func (d *DryRunHookCaller) CallCashierHook(_ context.Context, callable common.Address, hookIndex cashier.HookIndex, txID cashier.TxID) error {
	d.logger.WithFields(logrus.Fields{
		"callable":   callable.Hex(),
		"hook_index": hookIndex,
		"tx_id":      txID.Hex(),
	}).Info("Hook invocation (dry run)")
	return nil
}

var _ cashier.HookCaller = (*DryRunHookCaller)(nil)
