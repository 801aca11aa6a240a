package main

import (
	"github.com/spf13/cobra"

	"github.com/Amr-9/keyhunter/internal/config"
	"github.com/Amr-9/keyhunter/pkg/generator/scoring"
)

// modeDef describes one scoring mode subcommand.
type modeDef struct {
	use   string
	short string
	args  int
	build func(args []string) (scoring.Mode, error)
}

var modes = []modeDef{
	{
		use:   "benchmark",
		short: "Run without any scoring, a benchmark.",
		build: constMode(scoring.NewBenchmark()),
	},
	{
		use:   "doubles",
		short: "Score on hashes leading with hexadecimal pairs.",
		build: constMode(scoring.NewDoubles()),
	},
	{
		use:   "leading <hex>",
		short: "Score on hashes leading with given hex character.",
		args:  1,
		build: func(args []string) (scoring.Mode, error) {
			v, err := config.ParseNibble(args[0])
			if err != nil {
				return scoring.Mode{}, err
			}
			return scoring.NewLeading(v), nil
		},
	},
	{
		use:   "leading-range <min> <max>",
		short: "Score on hashes leading with characters within given range.",
		args:  2,
		build: rangeMode(scoring.NewLeadingRange),
	},
	{
		use:   "letters",
		short: "Score on letters anywhere in hash.",
		build: constMode(scoring.NewLetters()),
	},
	{
		use:   "matching <hex>",
		short: "Score on hashes matching given hex string (up to 40 characters).",
		args:  1,
		build: func(args []string) (scoring.Mode, error) {
			p, err := config.ParseNibbles(args[0])
			if err != nil {
				return scoring.Mode{}, err
			}
			return scoring.NewMatching(p), nil
		},
	},
	{
		use:   "mirror",
		short: "Score on mirroring from center.",
		build: constMode(scoring.NewMirror()),
	},
	{
		use:   "numbers",
		short: "Score on numbers anywhere in hash.",
		build: constMode(scoring.NewNumbers()),
	},
	{
		use:   "range <min> <max>",
		short: "Score on hashes having characters within given range anywhere.",
		args:  2,
		build: rangeMode(scoring.NewRange),
	},
	{
		use:   "zeros",
		short: "Score on zeros anywhere in hash.",
		build: constMode(scoring.NewZeros()),
	},
}

func constMode(m scoring.Mode) func([]string) (scoring.Mode, error) {
	return func([]string) (scoring.Mode, error) { return m, nil }
}

func rangeMode(mk func(min, max byte) scoring.Mode) func([]string) (scoring.Mode, error) {
	return func(args []string) (scoring.Mode, error) {
		lo, err := config.ParseNibble(args[0])
		if err != nil {
			return scoring.Mode{}, err
		}
		hi, err := config.ParseNibble(args[1])
		if err != nil {
			return scoring.Mode{}, err
		}
		return mk(lo, hi), nil
	}
}

func (a *app) modeCommand(m modeDef) *cobra.Command {
	return &cobra.Command{
		Use:   m.use,
		Short: m.short,
		Args:  cobra.ExactArgs(m.args),
		RunE: func(cmd *cobra.Command, args []string) error {
			mode, err := m.build(args)
			if err != nil {
				return err
			}
			return a.search(cmd.Context(), mode)
		},
	}
}
