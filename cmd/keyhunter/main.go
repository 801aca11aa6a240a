package main

import (
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/Amr-9/keyhunter/internal/config"
	"github.com/Amr-9/keyhunter/internal/ui"
	"github.com/Amr-9/keyhunter/pkg/generator"
)

const version = "1.0.0"

// app carries the state shared by every subcommand.
type app struct {
	v        *viper.Viper
	cfgPath  string
	priority bool

	settings *config.Settings
	log      *logrus.Logger
	out      *ui.Printer
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		logrus.WithError(err).Fatal("keyhunter failed")
	}
}

func newRootCmd() *cobra.Command {
	a := &app{v: config.New(), out: ui.Stdout()}

	root := &cobra.Command{
		Use:   "keyhunter",
		Short: "Vanity key search for Ethereum addresses and contracts",
		Long: `keyhunter searches, on every available device, for key offsets whose address
scores well against the selected mode. The search is seeded with a public key;
add a printed key to the matching secret to obtain the private key.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			s, err := config.Load(a.v, a.cfgPath)
			if err != nil {
				return err
			}
			a.settings = s
			a.log = config.NewLogger(s.LogLevel)

			if a.priority {
				if err := raisePriority(); err != nil {
					a.log.WithError(err).Warn("could not raise process priority")
				}
			}
			return nil
		},
	}

	f := root.PersistentFlags()
	f.StringVar(&a.cfgPath, "config", "", "YAML configuration file")
	f.BoolVar(&a.priority, "high-priority", false, "Raise the process priority")
	f.StringP("seed", "s", "", "Seed public key to use for address generation (128 hex characters)")
	f.IntSlice("skip-devices", nil, "Skip devices with given indices (comma separated)")
	f.IntP("work-max", "W", 0, "Maximum work size per device (default inverse-size * inverse-multiplier)")
	f.IntP("work", "w", generator.DefaultLocalWorkSize, "Local work size")
	f.IntP("inverse-size", "i", generator.DefaultInverseSize, "Size of modular inverses to calculate in one work item")
	f.IntP("inverse-multiplier", "I", 0, "How many of the above work items run in parallel (default 16384, 64 on cpu)")
	f.Bool("compact-speed", false, "Only show total iteration speed")
	f.StringP("target", "t", "address", "Target to search for: address or contract")
	f.String("format", "ethereum", "Address format of discoveries: ethereum or tron")
	f.String("backend", config.BackendOpenCL, "Compute backend: opencl or cpu")
	f.String("kernel-dir", ".", "Directory holding keccak.cl and profanity.cl")
	f.Int("cpu-devices", 1, "Number of virtual devices on the cpu backend")
	f.Int("cpu-workers", 0, "Goroutines per cpu device (0 = auto)")
	f.StringP("output", "o", "", "Append discoveries to this file")
	f.String("metrics-addr", "", "Serve Prometheus metrics on this address, e.g. :9100")
	f.String("log-level", "info", "Log level: debug, info, warn, error")

	bindFlags(a.v, f, map[string]string{
		config.KeySeed:              "seed",
		config.KeySkipDevices:       "skip-devices",
		config.KeyWorkMax:           "work-max",
		config.KeyWork:              "work",
		config.KeyInverseSize:       "inverse-size",
		config.KeyInverseMultiplier: "inverse-multiplier",
		config.KeyCompactSpeed:      "compact-speed",
		config.KeyTarget:            "target",
		config.KeyFormat:            "format",
		config.KeyBackend:           "backend",
		config.KeyKernelDir:         "kernel-dir",
		config.KeyCPUDevices:        "cpu-devices",
		config.KeyCPUWorkers:        "cpu-workers",
		config.KeyOutput:            "output",
		config.KeyMetricsAddr:       "metrics-addr",
		config.KeyLogLevel:          "log-level",
	})

	for _, m := range modes {
		root.AddCommand(a.modeCommand(m))
	}
	root.AddCommand(a.keygenCommand(), a.verifyCommand())
	return root
}

func bindFlags(v *viper.Viper, f *pflag.FlagSet, keys map[string]string) {
	for key, name := range keys {
		if err := v.BindPFlag(key, f.Lookup(name)); err != nil {
			panic(err)
		}
	}
}
