// gen_tables writes the precompute table consumed by profanity_init to disk,
// for kernel development outside keyhunter.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/spf13/cobra"

	"github.com/Amr-9/keyhunter/internal/ui"
	"github.com/Amr-9/keyhunter/pkg/generator/ethereum"
)

func main() {
	var output string

	cmd := &cobra.Command{
		Use:          "gen_tables",
		Short:        "Generate the secp256k1 precompute table",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return generate(ui.Stdout(), output)
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "tables.bin", "Output file")

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func generate(out *ui.Printer, path string) error {
	out.Header("Precompute table")
	out.Println("Generating %d points (%.2f MB)...", ethereum.TablePoints, float64(ethereum.TableSize)/(1024*1024))

	start := time.Now()
	table := ethereum.GenerateTable()
	if err := os.WriteFile(path, table, 0644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	out.Println("Generated in %s, wrote %s", ui.FormatElapsed(time.Since(start)), path)

	out.Println("")
	out.Header("Sample points")
	for _, s := range []struct {
		w int
		v byte
	}{{0, 1}, {0, 2}, {1, 1}, {31, 255}} {
		ok := checkEntry(table, s.w, s.v)
		out.Println("  window %2d value %3d: %v", s.w, s.v, ok)
		if !ok {
			return fmt.Errorf("entry (%d, %d) does not match scalar multiplication", s.w, s.v)
		}
	}
	return nil
}

// checkEntry compares one table entry with v * 2^(8w) * G.
func checkEntry(table []byte, w int, v byte) bool {
	var kb [32]byte
	kb[31-w] = v
	var k btcec.ModNScalar
	k.SetBytes(&kb)

	var want btcec.JacobianPoint
	btcec.ScalarBaseMultNonConst(&k, &want)
	want.ToAffine()

	got := ethereum.ReadPoint(table[ethereum.TableIndex(w, v)*ethereum.PointSize:])
	return got.X.Equals(&want.X) && got.Y.Equals(&want.Y)
}
