package tron

import (
	"bytes"
	"crypto/sha256"
	"errors"
	"fmt"

	"github.com/mr-tron/base58"
)

// MainnetPrefix is the version byte of Tron mainnet addresses.
const MainnetPrefix = 0x41

var ErrChecksum = errors.New("tron address checksum mismatch")

// AddressFromHash renders the 20-byte account hash as a Tron address.
// Mainnet addresses always start with 'T'.
func AddressFromHash(hash [20]byte) string {
	data := make([]byte, 21, 25)
	data[0] = MainnetPrefix
	copy(data[1:], hash[:])
	return base58.Encode(append(data, checksum(data)...))
}

// DecodeAddress returns the account hash of a Base58Check Tron address.
func DecodeAddress(addr string) ([20]byte, error) {
	var hash [20]byte

	raw, err := base58.Decode(addr)
	if err != nil {
		return hash, fmt.Errorf("decode %q: %w", addr, err)
	}
	if len(raw) != 25 {
		return hash, fmt.Errorf("decode %q: got %d bytes, want 25", addr, len(raw))
	}
	if raw[0] != MainnetPrefix {
		return hash, fmt.Errorf("decode %q: prefix 0x%02x is not mainnet", addr, raw[0])
	}
	if !bytes.Equal(checksum(raw[:21]), raw[21:]) {
		return hash, ErrChecksum
	}

	copy(hash[:], raw[1:21])
	return hash, nil
}

// checksum is the first four bytes of double SHA-256.
func checksum(data []byte) []byte {
	first := sha256.Sum256(data)
	second := sha256.Sum256(first[:])
	return second[:4]
}
