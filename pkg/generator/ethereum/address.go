package ethereum

import (
	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"golang.org/x/crypto/sha3"
)

// ChecksumAddress renders a 20-byte hash as an EIP-55 address with 0x prefix.
func ChecksumAddress(hash [20]byte) string {
	return common.Address(hash).Hex()
}

// ContractAddress returns the address of the contract created by deployer at nonce.
func ContractAddress(deployer [20]byte, nonce uint64) [20]byte {
	return crypto.CreateAddress(common.Address(deployer), nonce)
}

// PublicKeyHash returns the account hash of an affine point: the last 20 bytes
// of Keccak-256 over X || Y.
func PublicKeyHash(p *btcec.JacobianPoint) [20]byte {
	a := *p
	a.ToAffine()

	var xy [64]byte
	a.X.PutBytesUnchecked(xy[:32])
	a.Y.PutBytesUnchecked(xy[32:])

	h := sha3.NewLegacyKeccak256()
	h.Write(xy[:])

	var out [20]byte
	copy(out[:], h.Sum(nil)[12:])
	return out
}

// ParsePublicKey accepts a 64-byte X || Y key and checks that it is on the curve.
func ParsePublicKey(pub [64]byte) (*btcec.PublicKey, error) {
	var raw [65]byte
	raw[0] = 0x04
	copy(raw[1:], pub[:])
	return btcec.ParsePubKey(raw[:])
}
