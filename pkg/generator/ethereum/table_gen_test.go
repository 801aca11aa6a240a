package ethereum

import (
	"encoding/hex"
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scalarPoint(t *testing.T, k [32]byte) btcec.JacobianPoint {
	t.Helper()
	var s btcec.ModNScalar
	require.Zero(t, s.SetBytes(&k))
	var p btcec.JacobianPoint
	btcec.ScalarBaseMultNonConst(&s, &p)
	p.ToAffine()
	return p
}

func TestGenerateTable(t *testing.T) {
	table := Precomp()
	require.Len(t, table, TableSize)

	tests := []struct {
		window int
		value  byte
	}{
		{0, 1},
		{0, 2},
		{0, 255},
		{1, 1},
		{7, 0x80},
		{31, 0xff},
	}

	for _, tt := range tests {
		var k [32]byte
		k[31-tt.window] = tt.value
		want := scalarPoint(t, k)

		got := ReadPoint(table[TableIndex(tt.window, tt.value)*PointSize:])
		assert.True(t, want.X.Equals(&got.X), "window %d value %d", tt.window, tt.value)
		assert.True(t, want.Y.Equals(&got.Y), "window %d value %d", tt.window, tt.value)
	}
}

func TestTableSumsToScalarMult(t *testing.T) {
	table := Precomp()
	k := [32]byte{31: 0x34, 30: 0x12, 0: 0x7f}

	var sum, tmp btcec.JacobianPoint
	for w := 0; w < TableWindows; w++ {
		v := k[31-w]
		if v == 0 {
			continue
		}
		p := ReadPoint(table[TableIndex(w, v)*PointSize:])
		btcec.AddNonConst(&sum, &p, &tmp)
		sum = tmp
	}
	sum.ToAffine()

	want := scalarPoint(t, k)
	assert.True(t, want.X.Equals(&sum.X))
	assert.True(t, want.Y.Equals(&sum.Y))
}

func TestPublicKeyHash(t *testing.T) {
	key, err := crypto.HexToECDSA("4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318")
	require.NoError(t, err)

	priv, _ := btcec.PrivKeyFromBytes(crypto.FromECDSA(key))
	var p btcec.JacobianPoint
	priv.PubKey().AsJacobian(&p)

	assert.Equal(t, [20]byte(crypto.PubkeyToAddress(key.PublicKey)), PublicKeyHash(&p))
}

func TestChecksumAddress(t *testing.T) {
	raw, err := hex.DecodeString("5aaeb6053f3e94c9b9a09f33669435e7ef1beaed")
	require.NoError(t, err)

	assert.Equal(t, "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed", ChecksumAddress([20]byte(raw)))
}

func TestContractAddress(t *testing.T) {
	raw, err := hex.DecodeString("6ac7ea33f8831ea9dcc53393aaa88b25a785dbf0")
	require.NoError(t, err)

	got := ContractAddress([20]byte(raw), 0)
	assert.Equal(t, "cd234a471b72ba2f1ccf0a70fcaba648a5eecd8d", hex.EncodeToString(got[:]))
}

func TestParsePublicKey(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	var pub [64]byte
	copy(pub[:], crypto.FromECDSAPub(&key.PublicKey)[1:])

	_, err = ParsePublicKey(pub)
	require.NoError(t, err)

	pub[63] ^= 1
	_, err = ParsePublicKey(pub)
	assert.Error(t, err)
}
