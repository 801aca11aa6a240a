package tron

import (
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddressFromHash(t *testing.T) {
	// USDT contract on mainnet
	raw, err := hex.DecodeString("a614f803b6fd780986a42c78ec9c7f77e6ded13c")
	require.NoError(t, err)

	addr := AddressFromHash([20]byte(raw))
	assert.Equal(t, "TR7NHqjeKQxGTCi8q8ZY4pL8otSzgjLj6t", addr)

	hash, err := DecodeAddress(addr)
	require.NoError(t, err)
	assert.Equal(t, [20]byte(raw), hash)
}

func TestAddressAlwaysStartsWithT(t *testing.T) {
	for _, h := range [][20]byte{{}, {0xff, 0xff, 0xff}, {19: 0x01}} {
		assert.Equal(t, byte('T'), AddressFromHash(h)[0])
	}
}

func TestDecodeAddressRejectsCorruption(t *testing.T) {
	_, err := DecodeAddress("TR7NHqjeKQxGTCi8q8ZY4pL8otSzgjLj6u")
	assert.ErrorIs(t, err, ErrChecksum)

	_, err = DecodeAddress("0OIl")
	assert.Error(t, err)

	_, err = DecodeAddress("1111111111111111111114oLvT2")
	assert.Error(t, err)
}
