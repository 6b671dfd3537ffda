// Package clients provides the on-chain and messaging collaborators of the
// cashier service.
package clients

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"

	"cashier-backend/internal/cashier"
	"cashier-backend/internal/config"
	"cashier-backend/internal/metrics"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/sirupsen/logrus"
)

// tokenABIJSON covers the minimal token surface the cashier drives: mint,
// burn, transferFrom and the premint schedule commands.
const tokenABIJSON = `[
	{"type":"function","name":"mint","inputs":[{"name":"account","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[{"name":"","type":"bool"}],"stateMutability":"nonpayable"},
	{"type":"function","name":"burn","inputs":[{"name":"amount","type":"uint256"}],"outputs":[],"stateMutability":"nonpayable"},
	{"type":"function","name":"transferFrom","inputs":[{"name":"from","type":"address"},{"name":"to","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[{"name":"","type":"bool"}],"stateMutability":"nonpayable"},
	{"type":"function","name":"premintIncrease","inputs":[{"name":"account","type":"address"},{"name":"amount","type":"uint256"},{"name":"release","type":"uint256"}],"outputs":[],"stateMutability":"nonpayable"},
	{"type":"function","name":"premintDecrease","inputs":[{"name":"account","type":"address"},{"name":"amount","type":"uint256"},{"name":"release","type":"uint256"}],"outputs":[],"stateMutability":"nonpayable"},
	{"type":"function","name":"reschedulePremintRelease","inputs":[{"name":"originalRelease","type":"uint256"},{"name":"targetRelease","type":"uint256"}],"outputs":[],"stateMutability":"nonpayable"}
]`

// TokenClient drives the on-chain token contract. It implements
// cashier.TokenBackend; every call submits a transaction and waits for its
// receipt, so a failed token-side effect surfaces as an error to the caller.
type TokenClient struct {
	client   *ethclient.Client
	contract *bind.BoundContract
	opts     *bind.TransactOpts
	logger   *logrus.Logger
}

// NewTokenClient dials the configured RPC endpoint and binds the token
// contract.
func NewTokenClient(cfg *config.BlockchainConfig, logger *logrus.Logger) (*TokenClient, error) {
	if cfg.RPCEndpoint == "" {
		return nil, fmt.Errorf("rpc endpoint not configured")
	}
	if cfg.TokenContract == "" {
		return nil, fmt.Errorf("token contract address not configured")
	}

	client, err := ethclient.Dial(cfg.RPCEndpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to dial rpc endpoint: %w", err)
	}

	parsed, err := abi.JSON(strings.NewReader(tokenABIJSON))
	if err != nil {
		return nil, fmt.Errorf("failed to parse token abi: %w", err)
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

	address := common.HexToAddress(cfg.TokenContract)
	contract := bind.NewBoundContract(address, parsed, client, client, client)

	logger.WithFields(logrus.Fields{
		"endpoint": cfg.RPCEndpoint,
		"contract": address.Hex(),
		"chain_id": cfg.ChainID,
	}).Info("Token client connected")

	return &TokenClient{
		client:   client,
		contract: contract,
		opts:     opts,
		logger:   logger,
	}, nil
}

func parsePrivateKey(hexKey string) (*ecdsa.PrivateKey, error) {
	if hexKey == "" {
		return nil, fmt.Errorf("private key not configured")
	}
	key, err := crypto.HexToECDSA(strings.TrimPrefix(hexKey, "0x"))
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}
	return key, nil
}

// transact submits one contract call and waits for a successful receipt.
func (t *TokenClient) transact(ctx context.Context, method string, args ...interface{}) error {
	opts := *t.opts
	opts.Context = ctx

	tx, err := t.contract.Transact(&opts, method, args...)
	if err != nil {
		metrics.TokenCallsTotal.WithLabelValues(method, "error").Inc()
		return fmt.Errorf("token %s: %w", method, err)
	}

	receipt, err := bind.WaitMined(ctx, t.client, tx)
	if err != nil {
		metrics.TokenCallsTotal.WithLabelValues(method, "error").Inc()
		return fmt.Errorf("token %s: waiting for receipt: %w", method, err)
	}
	if receipt.Status == 0 {
		metrics.TokenCallsTotal.WithLabelValues(method, "reverted").Inc()
		return fmt.Errorf("token %s: transaction %s reverted", method, tx.Hash().Hex())
	}

	metrics.TokenCallsTotal.WithLabelValues(method, "success").Inc()
	t.logger.WithFields(logrus.Fields{
		"method": method,
		"tx":     tx.Hash().Hex(),
	}).Debug("Token transaction mined")
	return nil
}

// Mint credits amount to account.
func (t *TokenClient) Mint(ctx context.Context, account common.Address, amount uint64) error {
	return t.transact(ctx, "mint", account, new(big.Int).SetUint64(amount))
}

// Burn destroys amount from the cashier's custody balance.
func (t *TokenClient) Burn(ctx context.Context, amount uint64) error {
	return t.transact(ctx, "burn", new(big.Int).SetUint64(amount))
}

// Transfer moves amount between accounts.
func (t *TokenClient) Transfer(ctx context.Context, from, to common.Address, amount uint64) error {
	return t.transact(ctx, "transferFrom", from, to, new(big.Int).SetUint64(amount))
}

// PremintIncrease mints amount to account locked until releaseTime.
func (t *TokenClient) PremintIncrease(ctx context.Context, account common.Address, amount uint64, releaseTime uint64) error {
	return t.transact(ctx, "premintIncrease", account, new(big.Int).SetUint64(amount), new(big.Int).SetUint64(releaseTime))
}

// PremintDecrease revokes a premint for account at releaseTime.
func (t *TokenClient) PremintDecrease(ctx context.Context, account common.Address, amount uint64, releaseTime uint64) error {
	return t.transact(ctx, "premintDecrease", account, new(big.Int).SetUint64(amount), new(big.Int).SetUint64(releaseTime))
}

// ReschedulePremintRelease moves premints from originalRelease to
// targetRelease.
func (t *TokenClient) ReschedulePremintRelease(ctx context.Context, originalRelease, targetRelease uint64) error {
	return t.transact(ctx, "reschedulePremintRelease", new(big.Int).SetUint64(originalRelease), new(big.Int).SetUint64(targetRelease))
}

// Close releases the RPC connection.
func (t *TokenClient) Close() {
	t.client.Close()
}

var _ cashier.TokenBackend = (*TokenClient)(nil)
