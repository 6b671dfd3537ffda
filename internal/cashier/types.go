// Package cashier implements the sharded operation registry that reconciles
// off-chain cash-in/cash-out events with an on-chain token balance.
package cashier

import (
	"math"

	"github.com/ethereum/go-ethereum/common"
)

// TxID is the caller-supplied off-chain transaction identifier. It is globally
// unique and never reused across operation kinds.
type TxID = common.Hash

// CashInStatus is the lifecycle status of a cash-in record.
type CashInStatus uint8

const (
	CashInStatusNonexistent     CashInStatus = iota // no record for this txId
	CashInStatusExecuted                            // deposit executed, tokens minted
	CashInStatusPremintExecuted                     // deposit executed as a premint, release pending
)

func (s CashInStatus) String() string {
	switch s {
	case CashInStatusNonexistent:
		return "nonexistent"
	case CashInStatusExecuted:
		return "executed"
	case CashInStatusPremintExecuted:
		return "premint_executed"
	default:
		return "unknown"
	}
}

// CashOutStatus is the lifecycle status of a cash-out record.
type CashOutStatus uint8

const (
	CashOutStatusNonexistent CashOutStatus = iota // no record for this txId
	CashOutStatusPending                          // requested, awaiting confirmation or reversal
	CashOutStatusReversed                         // reversed, tokens returned to the account
	CashOutStatusConfirmed                        // confirmed, tokens burned
	CashOutStatusInternal                         // one-shot internal cash-out, terminal
	CashOutStatusForced                           // one-shot forced cash-out, terminal
)

func (s CashOutStatus) String() string {
	switch s {
	case CashOutStatusNonexistent:
		return "nonexistent"
	case CashOutStatusPending:
		return "pending"
	case CashOutStatusReversed:
		return "reversed"
	case CashOutStatusConfirmed:
		return "confirmed"
	case CashOutStatusInternal:
		return "internal"
	case CashOutStatusForced:
		return "forced"
	default:
		return "unknown"
	}
}

// Flag bits of a cash-out record. Only bit 0 is currently assigned.
const (
	// FlagHookRegistered marks that a hook configuration exists for the txId.
	FlagHookRegistered uint8 = 1 << 0
)

// MaxAmount bounds the pending cash-out aggregates. A cash-out request whose
// amount would push a per-account balance or the pending total past it is
// rejected with ErrAmountExcess before any state mutates.
const MaxAmount uint64 = math.MaxUint64

// CashInRecord is the permanent audit record of a deposit. Once a record
// leaves Nonexistent it is immutable, except that a premint may be revoked
// back to Nonexistent before release.
type CashInRecord struct {
	Status  CashInStatus
	Account common.Address
	Amount  uint64
	Flags   uint8
}

// CashOutRecord is the permanent audit record of a withdrawal. Any status
// other than Pending is terminal and the record is immutable thereafter.
type CashOutRecord struct {
	Status  CashOutStatus
	Account common.Address
	Amount  uint64
	Flags   uint8
}
