package main

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Amr-9/keyhunter/pkg/generator/scoring"
)

func findMode(t *testing.T, name string) modeDef {
	t.Helper()
	for _, m := range modes {
		if strings.Fields(m.use)[0] == name {
			return m
		}
	}
	t.Fatalf("mode %s not registered", name)
	return modeDef{}
}

func TestModeSubcommands(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want scoring.Mode
	}{
		{"benchmark", nil, scoring.NewBenchmark()},
		{"doubles", nil, scoring.NewDoubles()},
		{"leading", []string{"a"}, scoring.NewLeading(0xA)},
		{"leading-range", []string{"0", "9"}, scoring.NewLeadingRange(0, 9)},
		{"letters", nil, scoring.NewLetters()},
		{"matching", []string{"dead"}, scoring.NewMatching([]byte{0xD, 0xE, 0xA, 0xD})},
		{"mirror", nil, scoring.NewMirror()},
		{"numbers", nil, scoring.NewNumbers()},
		{"range", []string{"1", "2"}, scoring.NewRange(1, 2)},
		{"zeros", nil, scoring.NewZeros()},
	}

	require.Len(t, modes, len(tests))
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := findMode(t, tt.name)
			assert.Equal(t, len(tt.args), m.args)

			got, err := m.build(tt.args)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestModeArgumentErrors(t *testing.T) {
	_, err := findMode(t, "leading").build([]string{"x"})
	assert.Error(t, err)

	_, err = findMode(t, "range").build([]string{"1", "?"})
	assert.Error(t, err)

	_, err = findMode(t, "matching").build([]string{strings.Repeat("f", 41)})
	assert.ErrorIs(t, err, scoring.ErrPatternTooLong)
}

func TestRootCommandRegistersSubcommands(t *testing.T) {
	root := newRootCmd()
	for _, name := range []string{"zeros", "leading-range", "keygen", "verify"} {
		cmd, _, err := root.Find([]string{name})
		require.NoError(t, err)
		assert.Equal(t, name, cmd.Name())
	}

	flag := root.PersistentFlags().ShorthandLookup("I")
	require.NotNil(t, flag)
	assert.Equal(t, "inverse-multiplier", flag.Name)
}
