// Package generator defines the run configuration and results shared by the
// search dispatcher, the compute backends and the command line.
package generator

import (
	"fmt"
	"strings"

	"github.com/Amr-9/keyhunter/pkg/generator/scoring"
)

// Target selects which identifier derived from a candidate key gets scored.
type Target int

const (
	Address  Target = iota // account address of the key
	Contract               // address of the first contract deployed by the key
)

// String returns the label used in discovery lines.
func (t Target) String() string {
	switch t {
	case Contract:
		return "Contract"
	default:
		return "Address"
	}
}

// ParseTarget parses "address" or "contract".
func ParseTarget(s string) (Target, error) {
	switch strings.ToLower(s) {
	case "", "address":
		return Address, nil
	case "contract":
		return Contract, nil
	}
	return Address, fmt.Errorf("unknown target %q (want address or contract)", s)
}

// Format is the network a discovered hash is rendered for.
type Format int

const (
	Ethereum Format = iota // EIP-55 hex
	Tron                   // Base58Check with the 0x41 prefix
)

// String returns the network name.
func (f Format) String() string {
	switch f {
	case Tron:
		return "Tron"
	default:
		return "Ethereum"
	}
}

// ParseFormat parses "ethereum" or "tron".
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "", "ethereum", "eth":
		return Ethereum, nil
	case "tron", "trx":
		return Tron, nil
	}
	return Ethereum, fmt.Errorf("unknown format %q (want ethereum or tron)", s)
}

const (
	DefaultLocalWorkSize     = 64
	DefaultInverseSize       = 255
	DefaultInverseMultiplier = 16384

	maxScore         = 40
	speedSampleCount = 40
)

// Config holds the immutable settings of one search run.
type Config struct {
	Target    Target
	Mode      scoring.Mode
	Format    Format
	PublicKey [64]byte // big-endian X || Y of the seed public key

	LocalWorkSize     int
	MaxWorkSize       int // candidates per device, 0 means InverseSize * InverseMultiplier
	InverseSize       int
	InverseMultiplier int

	CompactSpeed bool // print only the aggregate speed
}

// WorkSize returns the number of candidates each device keeps in flight.
func (c *Config) WorkSize() int {
	if c.MaxWorkSize > 0 {
		return c.MaxWorkSize
	}
	return c.InverseSize * c.InverseMultiplier
}

// MaxScore is the highest score a hash can reach; result arrays hold MaxScore+1 slots.
func (c *Config) MaxScore() int { return maxScore }

// SpeedSampleCount is the window of the per-device speed average.
func (c *Config) SpeedSampleCount() int { return speedSampleCount }

// Result is one discovery.
type Result struct {
	Device     int
	Score      int
	Round      uint64
	Target     Target
	Address    string // formatted identifier (0x... or T...)
	PrivateKey string // 64 hex characters; add to the seed secret to obtain the key
	Hash       [20]byte
}

// Stats is a snapshot of search progress.
type Stats struct {
	Speed       float64 // candidates per second across all devices
	Candidates  uint64  // candidates hashed by completed rounds
	BestScore   int
	ElapsedSecs float64
}
