// Package utils provides parsing helpers shared by handlers and services.
package utils

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// ParseAddress parses a 0x-prefixed, 20-byte hex address.
func ParseAddress(s string) (common.Address, error) {
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("invalid address: %q", s)
	}
	return common.HexToAddress(s), nil
}

// ParseTxID parses a hex-encoded 32-byte transaction identifier. Shorter hex
// strings are left-padded, matching common.HexToHash.
func ParseTxID(s string) (common.Hash, error) {
	trimmed := strings.TrimPrefix(s, "0x")
	if trimmed == "" || len(trimmed) > 64 {
		return common.Hash{}, fmt.Errorf("invalid tx id: %q", s)
	}
	for _, r := range trimmed {
		if !isHexDigit(r) {
			return common.Hash{}, fmt.Errorf("invalid tx id: %q", s)
		}
	}
	return common.HexToHash(s), nil
}

func isHexDigit(r rune) bool {
	return (r >= '0' && r <= '9') || (r >= 'a' && r <= 'f') || (r >= 'A' && r <= 'F')
}

// ParseAmount parses a decimal amount string into uint64. Amounts above the
// uint64 range fail rather than wrap.
func ParseAmount(s string) (uint64, error) {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return 0, fmt.Errorf("invalid amount: %q", s)
	}
	if v.Sign() < 0 {
		return 0, fmt.Errorf("negative amount: %q", s)
	}
	if !v.IsUint64() {
		return 0, fmt.Errorf("amount exceeds maximum: %q", s)
	}
	return v.Uint64(), nil
}

// FormatAmount renders an amount as a decimal string.
func FormatAmount(amount uint64) string {
	return new(big.Int).SetUint64(amount).String()
}
