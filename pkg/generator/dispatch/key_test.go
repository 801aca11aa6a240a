package dispatch

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Amr-9/keyhunter/pkg/generator/compute"
)

func TestPrivateKey(t *testing.T) {
	tests := []struct {
		name    string
		seed    compute.Ulong4
		round   uint64
		foundID uint32
		want    string
	}{
		{
			name:  "low limb overflow",
			seed:  compute.Ulong4{math.MaxUint64, 0, 0, 0},
			round: 1,
			want:  "0000000000000001" + "0000000000000000" + "0000000000000001" + "0000000000000000",
		},
		{
			name:  "carry stops at a non-zero limb",
			seed:  compute.Ulong4{math.MaxUint64, 5, 7, 9},
			round: 1,
			want:  "0000000000000009" + "0000000000000007" + "0000000000000006" + "0000000000000000",
		},
		{
			name:    "found id lands in the high limb",
			seed:    compute.Ulong4{0x10, 0x20, 0x30, 0x40},
			round:   3,
			foundID: 5,
			want:    "0000000000000045" + "0000000000000030" + "0000000000000020" + "0000000000000013",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, PrivateKey(tt.seed, tt.round, tt.foundID).Hex())
		})
	}
}
