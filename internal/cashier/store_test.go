package cashier

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	testAccount  = common.HexToAddress("0x00000000000000000000000000000000000000A1")
	otherAccount = common.HexToAddress("0x00000000000000000000000000000000000000B2")
	testTxID     = common.HexToHash("0x01")
	otherTxID    = common.HexToHash("0x02")
)

func TestRegisterCashInTwiceFails(t *testing.T) {
	s := NewOperationStore()

	require.NoError(t, s.RegisterCashIn(testAccount, 1000, testTxID, CashInStatusExecuted))
	err := s.RegisterCashIn(testAccount, 2000, testTxID, CashInStatusExecuted)
	require.ErrorIs(t, err, ErrCashInAlreadyExecuted)

	// Stored record reflects the first call only.
	rec := s.GetCashIn(testTxID)
	assert.Equal(t, CashInStatusExecuted, rec.Status)
	assert.Equal(t, testAccount, rec.Account)
	assert.Equal(t, uint64(1000), rec.Amount)
}

func TestRegisterCashInValidation(t *testing.T) {
	s := NewOperationStore()

	err := s.RegisterCashIn(testAccount, 1, TxID{}, CashInStatusExecuted)
	require.ErrorIs(t, err, ErrZeroTxID)

	err = s.RegisterCashIn(testAccount, 1, testTxID, CashInStatusNonexistent)
	require.ErrorIs(t, err, ErrInappropriateCashInStatus)

	err = s.RegisterCashIn(testAccount, 1, testTxID, CashInStatus(99))
	require.ErrorIs(t, err, ErrInappropriateCashInStatus)
}

func TestRevokeCashInExactlyOnce(t *testing.T) {
	s := NewOperationStore()
	require.NoError(t, s.RegisterCashIn(testAccount, 500, testTxID, CashInStatusPremintExecuted))

	account, amount, err := s.RevokeCashIn(testTxID)
	require.NoError(t, err)
	assert.Equal(t, testAccount, account)
	assert.Equal(t, uint64(500), amount)

	// Record is fully reset.
	assert.Equal(t, CashInRecord{}, s.GetCashIn(testTxID))

	_, _, err = s.RevokeCashIn(testTxID)
	require.ErrorIs(t, err, ErrInappropriateCashInStatus)
}

func TestRevokeCashInRejectsExecuted(t *testing.T) {
	s := NewOperationStore()
	require.NoError(t, s.RegisterCashIn(testAccount, 500, testTxID, CashInStatusExecuted))

	_, _, err := s.RevokeCashIn(testTxID)
	require.ErrorIs(t, err, ErrInappropriateCashInStatus)
}

func TestRegisterCashInAfterRevoke(t *testing.T) {
	s := NewOperationStore()
	require.NoError(t, s.RegisterCashIn(testAccount, 500, testTxID, CashInStatusPremintExecuted))
	_, _, err := s.RevokeCashIn(testTxID)
	require.NoError(t, err)

	// The txId is usable again after a premint revoke.
	require.NoError(t, s.RegisterCashIn(otherAccount, 700, testTxID, CashInStatusExecuted))
	rec := s.GetCashIn(testTxID)
	assert.Equal(t, otherAccount, rec.Account)
	assert.Equal(t, uint64(700), rec.Amount)
}

func TestRegisterCashOutLifecycle(t *testing.T) {
	s := NewOperationStore()

	flags, err := s.RegisterCashOut(testAccount, 400, testTxID)
	require.NoError(t, err)
	assert.Zero(t, flags)

	rec := s.GetCashOut(testTxID)
	assert.Equal(t, CashOutStatusPending, rec.Status)
	assert.Equal(t, testAccount, rec.Account)
	assert.Equal(t, uint64(400), rec.Amount)

	account, amount, _, err := s.ProcessCashOut(testTxID, CashOutStatusConfirmed)
	require.NoError(t, err)
	assert.Equal(t, testAccount, account)
	assert.Equal(t, uint64(400), amount)
	assert.Equal(t, CashOutStatusConfirmed, s.GetCashOut(testTxID).Status)

	// Terminal status is immutable.
	_, _, _, err = s.ProcessCashOut(testTxID, CashOutStatusReversed)
	require.ErrorIs(t, err, ErrInappropriateCashOutStatus)
	_, err = s.RegisterCashOut(testAccount, 400, testTxID)
	require.ErrorIs(t, err, ErrInappropriateCashOutStatus)
}

func TestRegisterCashOutErrorPrecision(t *testing.T) {
	s := NewOperationStore()
	_, err := s.RegisterCashOut(testAccount, 400, testTxID)
	require.NoError(t, err)

	// Same txId under a different account is an account conflict.
	_, err = s.RegisterCashOut(otherAccount, 400, testTxID)
	require.ErrorIs(t, err, ErrInappropriateCashOutAccount)

	// Same account but wrong status is a status conflict.
	_, err = s.RegisterCashOut(testAccount, 400, testTxID)
	require.ErrorIs(t, err, ErrInappropriateCashOutStatus)
}

func TestProcessCashOutBeforeRegister(t *testing.T) {
	s := NewOperationStore()
	_, _, _, err := s.ProcessCashOut(testTxID, CashOutStatusConfirmed)
	require.ErrorIs(t, err, ErrInappropriateCashOutStatus)
}

func TestProcessCashOutRejectsBadTarget(t *testing.T) {
	s := NewOperationStore()
	_, err := s.RegisterCashOut(testAccount, 400, testTxID)
	require.NoError(t, err)

	for _, target := range []CashOutStatus{CashOutStatusNonexistent, CashOutStatusPending, CashOutStatusInternal, CashOutStatusForced} {
		_, _, _, err := s.ProcessCashOut(testTxID, target)
		assert.ErrorIs(t, err, ErrInappropriateCashOutStatus, "target %s", target)
	}
}

func TestInternalAndForcedCashOutAreTerminal(t *testing.T) {
	s := NewOperationStore()

	_, err := s.RegisterInternalCashOut(testAccount, 100, testTxID)
	require.NoError(t, err)
	assert.Equal(t, CashOutStatusInternal, s.GetCashOut(testTxID).Status)
	_, _, _, err = s.ProcessCashOut(testTxID, CashOutStatusConfirmed)
	require.ErrorIs(t, err, ErrInappropriateCashOutStatus)

	_, err = s.RegisterForcedCashOut(testAccount, 100, otherTxID)
	require.NoError(t, err)
	assert.Equal(t, CashOutStatusForced, s.GetCashOut(otherTxID).Status)
	_, err = s.RegisterCashOut(testAccount, 100, otherTxID)
	require.ErrorIs(t, err, ErrInappropriateCashOutStatus)
}

func TestCashOutFlagToggling(t *testing.T) {
	s := NewOperationStore()
	_, err := s.RegisterCashOut(testAccount, 400, testTxID)
	require.NoError(t, err)

	require.NoError(t, s.SetBitInCashOutFlags(testTxID, FlagHookRegistered))
	require.ErrorIs(t, s.SetBitInCashOutFlags(testTxID, FlagHookRegistered), ErrFlagAlreadySet)

	require.NoError(t, s.ResetBitInCashOutFlags(testTxID, FlagHookRegistered))
	require.ErrorIs(t, s.ResetBitInCashOutFlags(testTxID, FlagHookRegistered), ErrFlagAlreadyReset)

	// Reset restores the ability to set again.
	require.NoError(t, s.SetBitInCashOutFlags(testTxID, FlagHookRegistered))
	assert.Equal(t, FlagHookRegistered, s.GetCashOut(testTxID).Flags)
}

func TestFlagsSurviveRegisterCashOut(t *testing.T) {
	s := NewOperationStore()
	// Hook flags may be configured before the cash-out is requested.
	require.NoError(t, s.SetBitInCashOutFlags(testTxID, FlagHookRegistered))

	flags, err := s.RegisterCashOut(testAccount, 400, testTxID)
	require.NoError(t, err)
	assert.Equal(t, FlagHookRegistered, flags)
}

func TestGettersTotalOnUnknownIDs(t *testing.T) {
	s := NewOperationStore()

	assert.Equal(t, CashInRecord{}, s.GetCashIn(testTxID))
	assert.Equal(t, CashOutRecord{}, s.GetCashOut(testTxID))

	ins := s.GetCashIns([]TxID{testTxID, otherTxID})
	require.Len(t, ins, 2)
	assert.Equal(t, CashInStatusNonexistent, ins[0].Status)

	outs := s.GetCashOuts([]TxID{testTxID, otherTxID})
	require.Len(t, outs, 2)
	assert.Equal(t, CashOutStatusNonexistent, outs[1].Status)
}

func TestBulkGettersPreserveInputOrder(t *testing.T) {
	s := NewOperationStore()
	require.NoError(t, s.RegisterCashIn(testAccount, 10, testTxID, CashInStatusExecuted))
	require.NoError(t, s.RegisterCashIn(otherAccount, 20, otherTxID, CashInStatusPremintExecuted))

	ins := s.GetCashIns([]TxID{otherTxID, testTxID})
	require.Len(t, ins, 2)
	assert.Equal(t, uint64(20), ins[0].Amount)
	assert.Equal(t, uint64(10), ins[1].Amount)
}
