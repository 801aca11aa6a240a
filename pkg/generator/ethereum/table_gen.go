package ethereum

import (
	"sync"

	"github.com/btcsuite/btcd/btcec/v2"
)

var (
	precompOnce sync.Once
	precomp     []byte
)

// Precomp returns the precompute table, generating it on first use.
// The returned slice is shared and must not be modified.
func Precomp() []byte {
	precompOnce.Do(func() {
		precomp = GenerateTable()
	})
	return precomp
}

// GenerateTable builds the table consumed by profanity_init. Entry
// w*TableWindowPoints+i holds (i+1) * 2^(8w) * G, so any scalar times G is
// the sum of at most one entry per byte of the scalar.
func GenerateTable() []byte {
	buf := make([]byte, TableSize)

	var base, cur, next btcec.JacobianPoint
	for w := 0; w < TableWindows; w++ {
		var k btcec.ModNScalar
		var kb [32]byte
		kb[31-w] = 1
		k.SetBytes(&kb)
		btcec.ScalarBaseMultNonConst(&k, &base)

		cur = base
		for i := 0; i < TableWindowPoints; i++ {
			PutPoint(buf[(w*TableWindowPoints+i)*PointSize:], &cur)
			btcec.AddNonConst(&cur, &base, &next)
			cur = next
		}
	}
	return buf
}

// TableIndex returns the entry holding v * 2^(8w) * G, for v >= 1.
func TableIndex(w int, v byte) int {
	return w*TableWindowPoints + int(v) - 1
}

// PutPoint writes p in affine form into dst using the kernel layout.
func PutPoint(dst []byte, p *btcec.JacobianPoint) {
	a := *p
	a.ToAffine()

	x, y := a.X.Bytes(), a.Y.Bytes()
	for i := 0; i < 32; i++ {
		dst[i] = x[31-i]
		dst[32+i] = y[31-i]
	}
}

// ReadPoint parses an affine point written by PutPoint.
func ReadPoint(src []byte) btcec.JacobianPoint {
	var x, y [32]byte
	for i := 0; i < 32; i++ {
		x[31-i] = src[i]
		y[31-i] = src[32+i]
	}

	var p btcec.JacobianPoint
	p.X.SetBytes(&x)
	p.Y.SetBytes(&y)
	p.Z.SetInt(1)
	return p
}
