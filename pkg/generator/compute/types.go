package compute

import (
	"encoding/binary"
	"fmt"
)

// Ulong4 is a 256-bit number as four 64-bit limbs, least significant first.
// It matches the layout of an OpenCL ulong4 argument.
type Ulong4 [4]uint64

// Ulong4FromBytes reads a 32-byte big-endian number.
func Ulong4FromBytes(b []byte) Ulong4 {
	return Ulong4{
		binary.BigEndian.Uint64(b[24:32]),
		binary.BigEndian.Uint64(b[16:24]),
		binary.BigEndian.Uint64(b[8:16]),
		binary.BigEndian.Uint64(b[0:8]),
	}
}

// Bytes returns the big-endian encoding.
func (u Ulong4) Bytes() [32]byte {
	var out [32]byte
	binary.BigEndian.PutUint64(out[0:8], u[3])
	binary.BigEndian.PutUint64(out[8:16], u[2])
	binary.BigEndian.PutUint64(out[16:24], u[1])
	binary.BigEndian.PutUint64(out[24:32], u[0])
	return out
}

// LittleEndian returns the in-memory layout expected by the kernels.
func (u Ulong4) LittleEndian() [32]byte {
	var out [32]byte
	for i, limb := range u {
		binary.LittleEndian.PutUint64(out[i*8:], limb)
	}
	return out
}

// Hex returns the 64-character hexadecimal form, most significant limb first.
func (u Ulong4) Hex() string {
	return fmt.Sprintf("%016x%016x%016x%016x", u[3], u[2], u[1], u[0])
}

// Offset returns the key reached from seed u after round rounds for the
// candidate at foundID. The round is added to the lowest limb and the id to
// the highest one; carries follow the device arithmetic, where a limb that
// ends up zero carries into the next one.
func (u Ulong4) Offset(round uint64, foundID uint32) Ulong4 {
	var k Ulong4

	k[0] = u[0] + round
	var carry uint64
	if k[0] < round {
		carry = 1
	}

	k[1] = u[1] + carry
	carry = 0
	if k[1] == 0 {
		carry = 1
	}

	k[2] = u[2] + carry
	carry = 0
	if k[2] == 0 {
		carry = 1
	}

	k[3] = u[3] + carry + uint64(foundID)
	return k
}

// HashResultSize is the encoded size of one result slot.
const HashResultSize = 28

// HashResult is one result slot written by a scoring kernel.
type HashResult struct {
	Found     uint32
	FoundID   uint32
	FoundHash [20]byte
}

// DecodeResults parses consecutive little-endian result slots.
func DecodeResults(b []byte) []HashResult {
	out := make([]HashResult, len(b)/HashResultSize)
	for i := range out {
		p := b[i*HashResultSize:]
		out[i].Found = binary.LittleEndian.Uint32(p[0:4])
		out[i].FoundID = binary.LittleEndian.Uint32(p[4:8])
		copy(out[i].FoundHash[:], p[8:28])
	}
	return out
}

// Encode writes r into p, which must hold HashResultSize bytes.
func (r HashResult) Encode(p []byte) {
	binary.LittleEndian.PutUint32(p[0:4], r.Found)
	binary.LittleEndian.PutUint32(p[4:8], r.FoundID)
	copy(p[8:28], r.FoundHash[:])
}
