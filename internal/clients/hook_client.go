package clients

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"cashier-backend/internal/cashier"
	"cashier-backend/internal/config"
	"cashier-backend/internal/metrics"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/sirupsen/logrus"
)

// hookABIJSON is the single callback each hook contract exposes.
const hookABIJSON = `[
	{"type":"function","name":"onCashierHook","inputs":[{"name":"hookIndex","type":"uint256"},{"name":"txId","type":"bytes32"}],"outputs":[],"stateMutability":"nonpayable"}
]`

// HookClient invokes configured hook contracts on chain. It implements
// cashier.HookCaller; the callable address differs per txId configuration, so
// the contract is bound per call.
type HookClient struct {
	client  *ethclient.Client
	hookABI abi.ABI
	opts    *bind.TransactOpts
	logger  *logrus.Logger
}

// NewHookClient dials the configured RPC endpoint for hook invocations.
func NewHookClient(cfg *config.BlockchainConfig, logger *logrus.Logger) (*HookClient, error) {
	if cfg.RPCEndpoint == "" {
		return nil, fmt.Errorf("rpc endpoint not configured")
	}

	client, err := ethclient.Dial(cfg.RPCEndpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to dial rpc endpoint: %w", err)
	}

	parsed, err := abi.JSON(strings.NewReader(hookABIJSON))
	if err != nil {
		return nil, fmt.Errorf("failed to parse hook abi: %w", err)
	}

	key, err := parsePrivateKey(cfg.PrivateKey)
	if err != nil {
		return nil, err
	}
	opts, err := bind.NewKeyedTransactorWithChainID(key, big.NewInt(cfg.ChainID))
	if err != nil {
		return nil, fmt.Errorf("failed to build transactor: %w", err)
	}
	if cfg.GasLimit > 0 {
		opts.GasLimit = cfg.GasLimit
	}

	return &HookClient{
		client:  client,
		hookABI: parsed,
		opts:    opts,
		logger:  logger,
	}, nil
}

// CallCashierHook invokes callable.onCashierHook(hookIndex, txId) and waits
// for the receipt.
func (h *HookClient) CallCashierHook(ctx context.Context, callable common.Address, hookIndex cashier.HookIndex, txID cashier.TxID) error {
	opts := *h.opts
	opts.Context = ctx
	indexLabel := fmt.Sprintf("%d", hookIndex)

	contract := bind.NewBoundContract(callable, h.hookABI, h.client, h.client, h.client)
	tx, err := contract.Transact(&opts, "onCashierHook", new(big.Int).SetUint64(uint64(hookIndex)), [32]byte(txID))
	if err != nil {
		metrics.HookInvocationsTotal.WithLabelValues(indexLabel, "error").Inc()
		return fmt.Errorf("hook %s index %d: %w", callable.Hex(), hookIndex, err)
	}

	receipt, err := bind.WaitMined(ctx, h.client, tx)
	if err != nil {
		metrics.HookInvocationsTotal.WithLabelValues(indexLabel, "error").Inc()
		return fmt.Errorf("hook %s index %d: waiting for receipt: %w", callable.Hex(), hookIndex, err)
	}
	if receipt.Status == 0 {
		metrics.HookInvocationsTotal.WithLabelValues(indexLabel, "reverted").Inc()
		return fmt.Errorf("hook %s index %d: transaction %s reverted", callable.Hex(), hookIndex, tx.Hash().Hex())
	}

	metrics.HookInvocationsTotal.WithLabelValues(indexLabel, "success").Inc()
	h.logger.WithFields(logrus.Fields{
		"callable":   callable.Hex(),
		"hook_index": hookIndex,
		"tx_id":      txID.Hex(),
	}).Debug("Hook invoked")
	return nil
}

var _ cashier.HookCaller = (*HookClient)(nil)
