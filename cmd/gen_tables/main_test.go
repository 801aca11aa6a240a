package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Amr-9/keyhunter/internal/ui"
	"github.com/Amr-9/keyhunter/pkg/generator/ethereum"
)

func TestGenerateWritesTable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tables.bin")
	var out bytes.Buffer

	require.NoError(t, generate(ui.NewPrinter(&out, false), path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Len(t, data, ethereum.TableSize)
	assert.Contains(t, out.String(), "window 31 value 255: true")
}

func TestCheckEntryDetectsCorruption(t *testing.T) {
	table := append([]byte(nil), ethereum.Precomp()...)
	require.True(t, checkEntry(table, 3, 7))

	table[ethereum.TableIndex(3, 7)*ethereum.PointSize] ^= 1
	assert.False(t, checkEntry(table, 3, 7))
}
