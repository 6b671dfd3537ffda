package cashier

import (
	"context"
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type hookCall struct {
	Callable common.Address
	Index    HookIndex
	TxID     TxID
}

// recordingHookCaller captures invocations instead of calling a contract.
type recordingHookCaller struct {
	calls []hookCall
	err   error
}

func (r *recordingHookCaller) CallCashierHook(_ context.Context, callable common.Address, hookIndex HookIndex, txID TxID) error {
	r.calls = append(r.calls, hookCall{Callable: callable, Index: hookIndex, TxID: txID})
	return r.err
}

var hookContract = common.HexToAddress("0x00000000000000000000000000000000000000C3")

func TestHookConfigureValidation(t *testing.T) {
	d := NewHookDispatcher(&recordingHookCaller{})

	_, err := d.Configure(TxID{}, hookContract, ValidCashOutHookFlags)
	require.ErrorIs(t, err, ErrZeroTxID)

	// Undefined bit positions are rejected (cash-in sites and reserved bits).
	_, err = d.Configure(testTxID, hookContract, 1<<HookIndexCashInCommonBefore)
	require.ErrorIs(t, err, ErrHookFlagsInvalid)
	_, err = d.Configure(testTxID, hookContract, 1<<4)
	require.ErrorIs(t, err, ErrHookFlagsInvalid)
	_, err = d.Configure(testTxID, hookContract, 1<<12)
	require.ErrorIs(t, err, ErrHookFlagsInvalid)

	// Non-zero flags require a non-zero contract and vice versa.
	_, err = d.Configure(testTxID, common.Address{}, ValidCashOutHookFlags)
	require.ErrorIs(t, err, ErrHookCallableContractZero)
	_, err = d.Configure(testTxID, hookContract, 0)
	require.ErrorIs(t, err, ErrHookCallableContractNonZero)
}

func TestHookConfigureRejectsIdenticalRewrite(t *testing.T) {
	d := NewHookDispatcher(&recordingHookCaller{})
	flags := uint16(1 << HookIndexCashOutConfirmationAfter)

	old, err := d.Configure(testTxID, hookContract, flags)
	require.NoError(t, err)
	assert.Equal(t, HookConfig{}, old)

	_, err = d.Configure(testTxID, hookContract, flags)
	require.ErrorIs(t, err, ErrHookFlagsAlreadyRegistered)

	// Clearing twice is also an identical rewrite.
	old, err = d.Configure(testTxID, common.Address{}, 0)
	require.NoError(t, err)
	assert.Equal(t, flags, old.Flags)
	_, err = d.Configure(testTxID, common.Address{}, 0)
	require.ErrorIs(t, err, ErrHookFlagsAlreadyRegistered)
}

func TestHookInvokeHonorsFlagMask(t *testing.T) {
	caller := &recordingHookCaller{}
	d := NewHookDispatcher(caller)
	flags := uint16(1<<HookIndexCashOutRequestBefore | 1<<HookIndexCashOutReversalAfter)
	_, err := d.Configure(testTxID, hookContract, flags)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, d.Invoke(ctx, testTxID, HookIndexCashOutRequestBefore))
	require.NoError(t, d.Invoke(ctx, testTxID, HookIndexCashOutRequestAfter))
	require.NoError(t, d.Invoke(ctx, testTxID, HookIndexCashOutReversalAfter))
	// Unconfigured txId is a no-op.
	require.NoError(t, d.Invoke(ctx, otherTxID, HookIndexCashOutRequestBefore))

	require.Len(t, caller.calls, 2)
	assert.Equal(t, HookIndexCashOutRequestBefore, caller.calls[0].Index)
	assert.Equal(t, HookIndexCashOutReversalAfter, caller.calls[1].Index)
	assert.Equal(t, hookContract, caller.calls[0].Callable)
	assert.Equal(t, testTxID, caller.calls[0].TxID)
}

func TestHookInvokePropagatesCallerError(t *testing.T) {
	callerErr := errors.New("hook reverted")
	d := NewHookDispatcher(&recordingHookCaller{err: callerErr})
	_, err := d.Configure(testTxID, hookContract, uint16(1<<HookIndexCashOutRequestBefore))
	require.NoError(t, err)

	err = d.Invoke(context.Background(), testTxID, HookIndexCashOutRequestBefore)
	require.ErrorIs(t, err, callerErr)
}

func TestHookConfigOutlivesRecordTransitions(t *testing.T) {
	d := NewHookDispatcher(&recordingHookCaller{})
	flags := uint16(1 << HookIndexCashOutConfirmationBefore)
	_, err := d.Configure(testTxID, hookContract, flags)
	require.NoError(t, err)

	// The dispatcher has no view of record status; the config simply stays.
	cfg := d.Config(testTxID)
	assert.Equal(t, hookContract, cfg.Callable)
	assert.Equal(t, flags, cfg.Flags)
}
