package cashier

import "github.com/ethereum/go-ethereum/common"

// OperationStore holds the cash-in and cash-out records of a single shard and
// owns every status transition. Records are never deleted; the only reversal
// is a premint revoke while the record is still in PremintExecuted.
type OperationStore struct {
	cashIns  map[TxID]CashInRecord
	cashOuts map[TxID]CashOutRecord
}

// NewOperationStore creates an empty per-shard store.
func NewOperationStore() *OperationStore {
	return &OperationStore{
		cashIns:  make(map[TxID]CashInRecord),
		cashOuts: make(map[TxID]CashOutRecord),
	}
}

// CashInCount returns the number of cash-in records in the store.
func (s *OperationStore) CashInCount() int {
	return len(s.cashIns)
}

// CashOutCount returns the number of cash-out records in the store.
func (s *OperationStore) CashOutCount() int {
	return len(s.cashOuts)
}

// RegisterCashIn creates the cash-in record for txID with the requested
// target status, which must be Executed or PremintExecuted.
func (s *OperationStore) RegisterCashIn(account common.Address, amount uint64, txID TxID, status CashInStatus) error {
	if txID == (TxID{}) {
		return ErrZeroTxID
	}
	if status != CashInStatusExecuted && status != CashInStatusPremintExecuted {
		return ErrInappropriateCashInStatus
	}
	if rec, ok := s.cashIns[txID]; ok && rec.Status != CashInStatusNonexistent {
		return ErrCashInAlreadyExecuted
	}
	s.cashIns[txID] = CashInRecord{
		Status:  status,
		Account: account,
		Amount:  amount,
	}
	return nil
}

// RevokeCashIn resets a PremintExecuted record back to Nonexistent and
// returns the pre-revocation account and amount so the caller can undo the
// token-side premint.
func (s *OperationStore) RevokeCashIn(txID TxID) (common.Address, uint64, error) {
	if txID == (TxID{}) {
		return common.Address{}, 0, ErrZeroTxID
	}
	rec, ok := s.cashIns[txID]
	if !ok || rec.Status != CashInStatusPremintExecuted {
		return common.Address{}, 0, ErrInappropriateCashInStatus
	}
	s.cashIns[txID] = CashInRecord{}
	return rec.Account, rec.Amount, nil
}

// RegisterCashOut enters the two-phase flow: Nonexistent -> Pending. It
// returns the record's flags so the caller can decide whether a hook fires.
// A record that already exists under a different account is reported as an
// account conflict, a same-account record in the wrong status as a status
// conflict; callers surface the two differently.
func (s *OperationStore) RegisterCashOut(account common.Address, amount uint64, txID TxID) (uint8, error) {
	return s.registerCashOut(account, amount, txID, CashOutStatusPending)
}

// RegisterInternalCashOut creates a one-shot terminal Internal record,
// bypassing the pending phase.
func (s *OperationStore) RegisterInternalCashOut(account common.Address, amount uint64, txID TxID) (uint8, error) {
	return s.registerCashOut(account, amount, txID, CashOutStatusInternal)
}

// RegisterForcedCashOut creates a one-shot terminal Forced record, bypassing
// the pending phase.
func (s *OperationStore) RegisterForcedCashOut(account common.Address, amount uint64, txID TxID) (uint8, error) {
	return s.registerCashOut(account, amount, txID, CashOutStatusForced)
}

func (s *OperationStore) registerCashOut(account common.Address, amount uint64, txID TxID, status CashOutStatus) (uint8, error) {
	if txID == (TxID{}) {
		return 0, ErrZeroTxID
	}
	rec := s.cashOuts[txID]
	if rec.Status != CashOutStatusNonexistent {
		if rec.Account != account {
			return 0, ErrInappropriateCashOutAccount
		}
		return 0, ErrInappropriateCashOutStatus
	}
	rec.Status = status
	rec.Account = account
	rec.Amount = amount
	s.cashOuts[txID] = rec
	return rec.Flags, nil
}

// ProcessCashOut settles a Pending record to Reversed or Confirmed and
// returns its account, amount and flags. Any other current status, including
// "never requested", is a status conflict.
func (s *OperationStore) ProcessCashOut(txID TxID, target CashOutStatus) (common.Address, uint64, uint8, error) {
	if txID == (TxID{}) {
		return common.Address{}, 0, 0, ErrZeroTxID
	}
	if target != CashOutStatusReversed && target != CashOutStatusConfirmed {
		return common.Address{}, 0, 0, ErrInappropriateCashOutStatus
	}
	rec, ok := s.cashOuts[txID]
	if !ok || rec.Status != CashOutStatusPending {
		return common.Address{}, 0, 0, ErrInappropriateCashOutStatus
	}
	rec.Status = target
	s.cashOuts[txID] = rec
	return rec.Account, rec.Amount, rec.Flags, nil
}

// SetBitInCashOutFlags sets a flag bit on the cash-out record. Setting a bit
// that is already set is rejected; this surfaces double-registration bugs
// early instead of silently no-op-ing.
func (s *OperationStore) SetBitInCashOutFlags(txID TxID, bit uint8) error {
	if txID == (TxID{}) {
		return ErrZeroTxID
	}
	rec := s.cashOuts[txID]
	if rec.Flags&bit != 0 {
		return ErrFlagAlreadySet
	}
	rec.Flags |= bit
	s.cashOuts[txID] = rec
	return nil
}

// ResetBitInCashOutFlags clears a flag bit on the cash-out record. Clearing a
// bit that is already clear is rejected.
func (s *OperationStore) ResetBitInCashOutFlags(txID TxID, bit uint8) error {
	if txID == (TxID{}) {
		return ErrZeroTxID
	}
	rec := s.cashOuts[txID]
	if rec.Flags&bit == 0 {
		return ErrFlagAlreadyReset
	}
	rec.Flags &^= bit
	s.cashOuts[txID] = rec
	return nil
}

// GetCashIn returns the cash-in record for txID, or the Nonexistent sentinel
// for an unknown id. Lookups never fail.
func (s *OperationStore) GetCashIn(txID TxID) CashInRecord {
	return s.cashIns[txID]
}

// GetCashOut returns the cash-out record for txID, or the Nonexistent
// sentinel for an unknown id.
func (s *OperationStore) GetCashOut(txID TxID) CashOutRecord {
	return s.cashOuts[txID]
}

// GetCashIns returns the cash-in records for txIDs in input order.
func (s *OperationStore) GetCashIns(txIDs []TxID) []CashInRecord {
	out := make([]CashInRecord, len(txIDs))
	for i, id := range txIDs {
		out[i] = s.cashIns[id]
	}
	return out
}

// GetCashOuts returns the cash-out records for txIDs in input order.
func (s *OperationStore) GetCashOuts(txIDs []TxID) []CashOutRecord {
	out := make([]CashOutRecord, len(txIDs))
	for i, id := range txIDs {
		out[i] = s.cashOuts[id]
	}
	return out
}
