package utils

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAddress(t *testing.T) {
	addr, err := ParseAddress("0x00000000000000000000000000000000000000A1")
	require.NoError(t, err)
	assert.Equal(t, "0x00000000000000000000000000000000000000A1", addr.Hex())

	_, err = ParseAddress("not-an-address")
	assert.Error(t, err)
	_, err = ParseAddress("0x1234")
	assert.Error(t, err)
}

func TestParseTxID(t *testing.T) {
	id, err := ParseTxID("0x01")
	require.NoError(t, err)
	assert.Equal(t, "0x0000000000000000000000000000000000000000000000000000000000000001", id.Hex())

	full := "0x" + strings.Repeat("ab", 32)
	id, err = ParseTxID(full)
	require.NoError(t, err)
	assert.Equal(t, full, id.Hex())

	_, err = ParseTxID("")
	assert.Error(t, err)
	_, err = ParseTxID("0x")
	assert.Error(t, err)
	_, err = ParseTxID("0xzz")
	assert.Error(t, err)
	_, err = ParseTxID("0x" + strings.Repeat("ab", 33))
	assert.Error(t, err)
}

func TestParseAmount(t *testing.T) {
	v, err := ParseAmount("1000")
	require.NoError(t, err)
	assert.Equal(t, uint64(1000), v)

	v, err = ParseAmount("18446744073709551615")
	require.NoError(t, err)
	assert.Equal(t, uint64(18446744073709551615), v)

	_, err = ParseAmount("18446744073709551616")
	assert.Error(t, err)
	_, err = ParseAmount("-5")
	assert.Error(t, err)
	_, err = ParseAmount("abc")
	assert.Error(t, err)
	_, err = ParseAmount("")
	assert.Error(t, err)
}

func TestFormatAmount(t *testing.T) {
	assert.Equal(t, "0", FormatAmount(0))
	assert.Equal(t, "18446744073709551615", FormatAmount(18446744073709551615))
}
