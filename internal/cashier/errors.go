package cashier

import "errors"

// Input-validation errors. Always fatal to the single call and checked before
// any state mutation.
var (
	ErrZeroTxID     = errors.New("tx id is zero")
	ErrZeroAccount  = errors.New("account address is zero")
	ErrZeroAmount   = errors.New("amount is zero")
	ErrAmountExcess = errors.New("amount exceeds maximum")
)

// State-conflict errors. Reported as sentinel values so batch callers can
// skip-and-continue per element.
var (
	ErrCashInAlreadyExecuted       = errors.New("cash-in already executed")
	ErrInappropriateCashInStatus   = errors.New("inappropriate cash-in status")
	ErrInappropriateCashOutStatus  = errors.New("inappropriate cash-out status")
	ErrInappropriateCashOutAccount = errors.New("cash-out registered for a different account")
	ErrFlagAlreadySet              = errors.New("cash-out flag bit already set")
	ErrFlagAlreadyReset            = errors.New("cash-out flag bit already reset")
)

// Configuration-conflict errors. Always fatal to the call.
var (
	ErrHookFlagsAlreadyRegistered  = errors.New("hook flags already registered")
	ErrHookFlagsInvalid            = errors.New("hook flags use undefined bits")
	ErrHookCallableContractZero    = errors.New("hook callable contract address is zero")
	ErrHookCallableContractNonZero = errors.New("hook callable contract address must be zero when flags are zero")
	ErrShardCountExcess            = errors.New("shard count exceeds maximum")
	ErrShardReplacementCountExcess = errors.New("shard replacement batch exceeds maximum")
	ErrShardReplacementOutOfRange  = errors.New("shard replacement range exceeds current shard count")
	ErrNoShards                    = errors.New("no shards configured")
)

// IsStateConflict reports whether err is a per-element state conflict that a
// batch caller running the Skip policy may omit without aborting siblings.
func IsStateConflict(err error) bool {
	switch {
	case errors.Is(err, ErrCashInAlreadyExecuted),
		errors.Is(err, ErrInappropriateCashInStatus),
		errors.Is(err, ErrInappropriateCashOutStatus),
		errors.Is(err, ErrInappropriateCashOutAccount):
		return true
	}
	return false
}
