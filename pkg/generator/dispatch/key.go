package dispatch

import "github.com/Amr-9/keyhunter/pkg/generator/compute"

// PrivateKey reconstructs the key offset found by a device: the seed advanced
// by round in its lowest limb and by foundID in its highest limb. Adding the
// offset to the secret behind the seed public key yields the private key of
// the reported address.
func PrivateKey(seed compute.Ulong4, round uint64, foundID uint32) compute.Ulong4 {
	return seed.Offset(round, foundID)
}
