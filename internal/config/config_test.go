package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Amr-9/keyhunter/pkg/generator"
	"github.com/Amr-9/keyhunter/pkg/generator/scoring"
)

// the generator point G
const seedG = "79be667ef9dcbbac55a06295ce870b07029bfcdb2dce28d959f2815b16f81798" +
	"483ada7726a3c4655da4fbfc0e1108a8fd17b448a68554199c47d08ffb10d4b8"

func TestParseSeed(t *testing.T) {
	pub, err := ParseSeed(seedG)
	require.NoError(t, err)
	assert.Equal(t, byte(0x79), pub[0])
	assert.Equal(t, byte(0xb8), pub[63])

	_, err = ParseSeed("0x" + strings.ToUpper(seedG))
	assert.NoError(t, err)
}

func TestParseSeedRejectsBadInput(t *testing.T) {
	tests := []struct {
		name string
		seed string
		want error
	}{
		{"short", seedG[:126], ErrSeedLength},
		{"long", seedG + "00", ErrSeedLength},
		{"not hex", "zz" + seedG[2:], ErrSeedHex},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseSeed(tt.seed)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	// Y+1 is off the curve
	_, err := ParseSeed(seedG[:127] + "9")
	assert.ErrorContains(t, err, "not a secp256k1 public key")
}

func TestParseNibble(t *testing.T) {
	v, err := ParseNibble("a")
	require.NoError(t, err)
	assert.Equal(t, byte(10), v)

	v, err = ParseNibble("F")
	require.NoError(t, err)
	assert.Equal(t, byte(15), v)

	// only the first character counts
	v, err = ParseNibble("7zz")
	require.NoError(t, err)
	assert.Equal(t, byte(7), v)

	_, err = ParseNibble("g")
	assert.ErrorIs(t, err, ErrNibble)
	_, err = ParseNibble("")
	assert.ErrorIs(t, err, ErrNibble)
}

func TestParseNibbles(t *testing.T) {
	v, err := ParseNibbles("0aF9")
	require.NoError(t, err)
	assert.Equal(t, []byte{0, 10, 15, 9}, v)

	_, err = ParseNibbles(strings.Repeat("a", 41))
	assert.ErrorIs(t, err, scoring.ErrPatternTooLong)

	_, err = ParseNibbles(strings.Repeat("a", 40))
	assert.NoError(t, err)

	_, err = ParseNibbles("12x")
	assert.Error(t, err)
}

func TestLoadDefaults(t *testing.T) {
	s, err := Load(New(), "")
	require.NoError(t, err)

	assert.Equal(t, generator.DefaultLocalWorkSize, s.Work)
	assert.Equal(t, generator.DefaultInverseSize, s.InverseSize)
	assert.Equal(t, generator.DefaultInverseMultiplier, s.InverseMultiplier)
	assert.Equal(t, 0, s.WorkMax)
	assert.Equal(t, BackendOpenCL, s.Backend)
	assert.Equal(t, "info", s.LogLevel)
}

func TestLoadFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keyhunter.yaml")
	require.NoError(t, os.WriteFile(path, []byte(strings.Join([]string{
		"seed: " + seedG,
		"target: contract",
		"inverse_multiplier: 128",
		"skip_devices: [1, 3]",
		"backend: cpu",
	}, "\n")), 0o600))

	t.Setenv("KEYHUNTER_WORK", "32")

	s, err := Load(New(), path)
	require.NoError(t, err)
	assert.Equal(t, "contract", s.Target)
	assert.Equal(t, 128, s.InverseMultiplier)
	assert.Equal(t, 32, s.Work)
	assert.True(t, s.Skipped(3))
	assert.False(t, s.Skipped(2))

	cfg, err := s.ToConfig(scoring.NewLeading(0xA))
	require.NoError(t, err)
	assert.Equal(t, generator.Contract, cfg.Target)
	assert.Equal(t, generator.DefaultInverseSize*128, cfg.WorkSize())
	assert.Equal(t, 32, cfg.LocalWorkSize)
	assert.Equal(t, byte(0x79), cfg.PublicKey[0])
}

func TestLoadCPUBackendDefaults(t *testing.T) {
	v := New()
	v.Set(KeyBackend, BackendCPU)
	s, err := Load(v, "")
	require.NoError(t, err)
	assert.Equal(t, DefaultCPUInverseMultiplier, s.InverseMultiplier)

	v = New()
	v.Set(KeyBackend, BackendCPU)
	v.Set(KeyInverseMultiplier, 1024)
	s, err = Load(v, "")
	require.NoError(t, err)
	assert.Equal(t, 1024, s.InverseMultiplier)
}

func TestLoadRejectsInvalidSettings(t *testing.T) {
	tests := []struct {
		key   string
		value any
	}{
		{KeyTarget, "wallet"},
		{KeyFormat, "bitcoin"},
		{KeyBackend, "cuda"},
		{KeyInverseSize, 0},
		{KeyWork, -1},
		{KeyCPUDevices, 0},
		{KeyLogLevel, "loud"},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			v := New()
			v.Set(tt.key, tt.value)
			_, err := Load(v, "")
			assert.Error(t, err)
		})
	}
}

func TestToConfigRequiresSeed(t *testing.T) {
	s, err := Load(New(), "")
	require.NoError(t, err)

	_, err = s.ToConfig(scoring.NewZeros())
	assert.ErrorContains(t, err, "--seed")
}

func TestNewLogger(t *testing.T) {
	assert.Equal(t, logrus.DebugLevel, NewLogger("debug").GetLevel())
	assert.Equal(t, logrus.InfoLevel, NewLogger("nonsense").GetLevel())
}
