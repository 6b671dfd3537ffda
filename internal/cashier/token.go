package cashier

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
)

// TokenBackend is the minimal surface the orchestrator needs from the token
// collaborator. Each method is invoked exactly once per successful transition
// that changes custody; the backend owns mint/burn/premint mechanics,
// including the premint release schedule itself.
type TokenBackend interface {
	// Mint credits amount to account.
	Mint(ctx context.Context, account common.Address, amount uint64) error

	// Burn destroys amount from the cashier's own custody balance.
	Burn(ctx context.Context, amount uint64) error

	// Transfer moves amount between accounts (account <-> cashier custody).
	Transfer(ctx context.Context, from, to common.Address, amount uint64) error

	// PremintIncrease mints amount to account locked until releaseTime.
	PremintIncrease(ctx context.Context, account common.Address, amount uint64, releaseTime uint64) error

	// PremintDecrease revokes a premint of amount for account at releaseTime.
	PremintDecrease(ctx context.Context, account common.Address, amount uint64, releaseTime uint64) error

	// ReschedulePremintRelease moves every premint scheduled at originalRelease
	// to targetRelease.
	ReschedulePremintRelease(ctx context.Context, originalRelease, targetRelease uint64) error
}
