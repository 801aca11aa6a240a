// Package config loads keyhunter settings from flags, environment and an
// optional YAML file, and turns them into a validated search configuration.
package config

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"github.com/Amr-9/keyhunter/pkg/generator"
	"github.com/Amr-9/keyhunter/pkg/generator/ethereum"
	"github.com/Amr-9/keyhunter/pkg/generator/scoring"
)

// EnvPrefix prefixes every environment override, e.g. KEYHUNTER_SEED.
const EnvPrefix = "KEYHUNTER"

// Backends that can run the kernels.
const (
	BackendOpenCL = "opencl"
	BackendCPU    = "cpu"
)

// DefaultCPUInverseMultiplier replaces the inverse multiplier default on the
// host backend, keeping its work size and init time small.
const DefaultCPUInverseMultiplier = 64

// Keys shared by the flag bindings and the config file.
const (
	KeySeed              = "seed"
	KeySkipDevices       = "skip_devices"
	KeyWorkMax           = "work_max"
	KeyWork              = "work"
	KeyInverseSize       = "inverse_size"
	KeyInverseMultiplier = "inverse_multiplier"
	KeyCompactSpeed      = "compact_speed"
	KeyTarget            = "target"
	KeyFormat            = "format"
	KeyBackend           = "backend"
	KeyKernelDir         = "kernel_dir"
	KeyCPUDevices        = "cpu_devices"
	KeyCPUWorkers        = "cpu_workers"
	KeyOutput            = "output"
	KeyMetricsAddr       = "metrics_addr"
	KeyLogLevel          = "log_level"
)

var (
	ErrSeedLength = errors.New("seed should be 128 characters long")
	ErrSeedHex    = errors.New("seed isn't a valid hex string")
	ErrNibble     = errors.New("not a valid hex character")
)

// Settings is the raw, user-facing configuration.
type Settings struct {
	Seed              string `mapstructure:"seed"`
	SkipDevices       []int  `mapstructure:"skip_devices"`
	WorkMax           int    `mapstructure:"work_max"`
	Work              int    `mapstructure:"work"`
	InverseSize       int    `mapstructure:"inverse_size"`
	InverseMultiplier int    `mapstructure:"inverse_multiplier"`
	CompactSpeed      bool   `mapstructure:"compact_speed"`
	Target            string `mapstructure:"target"`
	Format            string `mapstructure:"format"`
	Backend           string `mapstructure:"backend"`
	KernelDir         string `mapstructure:"kernel_dir"`
	CPUDevices        int    `mapstructure:"cpu_devices"`
	CPUWorkers        int    `mapstructure:"cpu_workers"`
	Output            string `mapstructure:"output"`
	MetricsAddr       string `mapstructure:"metrics_addr"`
	LogLevel          string `mapstructure:"log_level"`
}

// SetDefaults registers the default of every key.
func SetDefaults(v *viper.Viper) {
	v.SetDefault(KeyWorkMax, 0) // 0 = inverse size * inverse multiplier
	v.SetDefault(KeyWork, generator.DefaultLocalWorkSize)
	v.SetDefault(KeyInverseSize, generator.DefaultInverseSize)
	v.SetDefault(KeyInverseMultiplier, 0) // 0 = per-backend default
	v.SetDefault(KeyCompactSpeed, false)
	v.SetDefault(KeyTarget, "address")
	v.SetDefault(KeyFormat, "ethereum")
	v.SetDefault(KeyBackend, BackendOpenCL)
	v.SetDefault(KeyKernelDir, ".")
	v.SetDefault(KeyCPUDevices, 1)
	v.SetDefault(KeyCPUWorkers, 0) // 0 = auto
	v.SetDefault(KeyLogLevel, "info")
}

// New returns a viper instance with defaults and environment overrides.
func New() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	return v
}

// Load reads the optional config file and unmarshals the settings.
func Load(v *viper.Viper, path string) (*Settings, error) {
	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if s.InverseMultiplier == 0 {
		s.InverseMultiplier = generator.DefaultInverseMultiplier
		if s.Backend == BackendCPU {
			s.InverseMultiplier = DefaultCPUInverseMultiplier
		}
	}
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &s, nil
}

// Validate checks everything that does not depend on the chosen mode.
func (s *Settings) Validate() error {
	if s.Work < 0 {
		return fmt.Errorf("work size must not be negative, got %d", s.Work)
	}
	if s.WorkMax < 0 {
		return fmt.Errorf("max work size must not be negative, got %d", s.WorkMax)
	}
	if s.InverseSize <= 0 || s.InverseMultiplier <= 0 {
		return fmt.Errorf("inverse size and multiplier must be positive, got %d and %d", s.InverseSize, s.InverseMultiplier)
	}
	if _, err := generator.ParseTarget(s.Target); err != nil {
		return err
	}
	if _, err := generator.ParseFormat(s.Format); err != nil {
		return err
	}
	switch s.Backend {
	case BackendOpenCL, BackendCPU:
	default:
		return fmt.Errorf("unknown backend %q", s.Backend)
	}
	if s.CPUDevices < 1 {
		return fmt.Errorf("cpu devices must be at least 1, got %d", s.CPUDevices)
	}
	if _, err := logrus.ParseLevel(s.LogLevel); err != nil {
		return err
	}
	return nil
}

// Skipped reports whether device index i was excluded.
func (s *Settings) Skipped(i int) bool {
	for _, d := range s.SkipDevices {
		if d == i {
			return true
		}
	}
	return false
}

// ToConfig builds the immutable search configuration for mode.
func (s *Settings) ToConfig(mode scoring.Mode) (*generator.Config, error) {
	if s.Seed == "" {
		return nil, errors.New("a seed public key is required (--seed)")
	}
	pub, err := ParseSeed(s.Seed)
	if err != nil {
		return nil, err
	}
	target, err := generator.ParseTarget(s.Target)
	if err != nil {
		return nil, err
	}
	format, err := generator.ParseFormat(s.Format)
	if err != nil {
		return nil, err
	}
	if _, _, err := mode.Data(); err != nil {
		return nil, err
	}

	return &generator.Config{
		Target:            target,
		Mode:              mode,
		Format:            format,
		PublicKey:         pub,
		LocalWorkSize:     s.Work,
		MaxWorkSize:       s.WorkMax,
		InverseSize:       s.InverseSize,
		InverseMultiplier: s.InverseMultiplier,
		CompactSpeed:      s.CompactSpeed,
	}, nil
}

// ParseSeed decodes a 128 character X || Y public key, with or without 0x,
// and checks that it lies on secp256k1.
func ParseSeed(s string) ([64]byte, error) {
	var pub [64]byte
	s = strings.TrimPrefix(s, "0x")
	if len(s) != 128 {
		return pub, fmt.Errorf("%w: got %d", ErrSeedLength, len(s))
	}
	if _, err := hex.Decode(pub[:], []byte(s)); err != nil {
		return pub, fmt.Errorf("%w: %v", ErrSeedHex, err)
	}
	if _, err := ethereum.ParsePublicKey(pub); err != nil {
		return pub, fmt.Errorf("seed is not a secp256k1 public key: %w", err)
	}
	return pub, nil
}

// ParseNibble reads the first character of s as a hex digit.
func ParseNibble(s string) (byte, error) {
	if s == "" {
		return 0, fmt.Errorf("%q: %w", s, ErrNibble)
	}
	v, ok := nibble(s[0])
	if !ok {
		return 0, fmt.Errorf("%q: %w", s, ErrNibble)
	}
	return v, nil
}

// ParseNibbles reads a hex string of at most 40 digits, one value per digit.
func ParseNibbles(s string) ([]byte, error) {
	if len(s) > scoring.MaxPatternLength {
		return nil, fmt.Errorf("%q is too long: %w", s, scoring.ErrPatternTooLong)
	}
	out := make([]byte, len(s))
	for i := 0; i < len(s); i++ {
		v, ok := nibble(s[i])
		if !ok {
			return nil, fmt.Errorf("%q isn't a valid hex string", s)
		}
		out[i] = v
	}
	return out, nil
}

func nibble(c byte) (byte, bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, true
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, true
	}
	return 0, false
}

// NewLogger returns a text logger at the given level.
func NewLogger(level string) *logrus.Logger {
	logger := logrus.New()

	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	logger.SetLevel(lvl)
	return logger
}
