// Package scoring describes the predicates a search can score hashes against
// and how each one is encoded for the compute kernels.
package scoring

import (
	"errors"
	"fmt"
	"strings"
)

// DataSize is the size of one scoring parameter block in bytes.
const DataSize = 20

// MaxPatternLength is the longest nibble sequence a Matching mode can encode.
const MaxPatternLength = DataSize * 2

// ErrPatternTooLong is returned when a Matching pattern does not fit in a parameter block.
var ErrPatternTooLong = errors.New("matching pattern exceeds 40 nibbles")

// Data is a fixed-size parameter block consumed by a scoring kernel.
type Data [DataSize]byte

// Kernel names of the scoring variants.
const (
	KernelBenchmark    = "profanity_score_benchmark"
	KernelDoubles      = "profanity_score_doubles"
	KernelLeading      = "profanity_score_leading"
	KernelLeadingRange = "profanity_score_leadingrange"
	KernelMatching     = "profanity_score_matching"
	KernelMirror       = "profanity_score_mirror"
	KernelRange        = "profanity_score_range"
)

// Kind selects the scoring predicate.
type Kind int

const (
	Benchmark Kind = iota
	Doubles
	Leading
	LeadingRange
	Letters
	Matching
	Mirror
	Numbers
	Range
	Zeros
)

// Mode is a scoring predicate together with its literal arguments.
// Only the fields relevant to Kind are meaningful.
type Mode struct {
	Kind    Kind
	Min     byte   // Leading value, or lower bound of a range
	Max     byte   // upper bound of a range
	Pattern []byte // Matching nibbles, most significant first
}

// NewBenchmark returns a mode that never scores.
func NewBenchmark() Mode { return Mode{Kind: Benchmark} }

// NewDoubles scores leading bytes made of two equal nibbles.
func NewDoubles() Mode { return Mode{Kind: Doubles} }

// NewLeading scores leading nibbles equal to v.
func NewLeading(v byte) Mode { return Mode{Kind: Leading, Min: v} }

// NewLeadingRange scores leading nibbles within [min, max].
func NewLeadingRange(min, max byte) Mode { return Mode{Kind: LeadingRange, Min: min, Max: max} }

// NewLetters scores nibbles a-f anywhere in the hash.
func NewLetters() Mode { return Mode{Kind: Letters} }

// NewMatching scores nibbles equal to the given pattern.
func NewMatching(pattern []byte) Mode {
	p := make([]byte, len(pattern))
	copy(p, pattern)
	return Mode{Kind: Matching, Pattern: p}
}

// NewMirror scores nibble symmetry around the centre of the hash.
func NewMirror() Mode { return Mode{Kind: Mirror} }

// NewNumbers scores nibbles 0-9 anywhere in the hash.
func NewNumbers() Mode { return Mode{Kind: Numbers} }

// NewRange scores nibbles within [min, max] anywhere in the hash.
func NewRange(min, max byte) Mode { return Mode{Kind: Range, Min: min, Max: max} }

// NewZeros scores zero nibbles anywhere in the hash.
func NewZeros() Mode { return Mode{Kind: Zeros} }

// KernelName returns the scoring kernel invoked for the mode.
func (m Mode) KernelName() string {
	switch m.Kind {
	case Doubles:
		return KernelDoubles
	case Leading:
		return KernelLeading
	case LeadingRange:
		return KernelLeadingRange
	case Matching:
		return KernelMatching
	case Mirror:
		return KernelMirror
	case Letters, Numbers, Range, Zeros:
		return KernelRange
	default:
		return KernelBenchmark
	}
}

// Data encodes the mode into its two parameter blocks. A nil block means the
// kernel does not read it.
func (m Mode) Data() (*Data, *Data, error) {
	switch m.Kind {
	case Leading:
		var d1 Data
		d1[0] = m.Min
		return &d1, nil, nil
	case LeadingRange, Range:
		d1, d2 := rangeData(m.Min, m.Max)
		return d1, d2, nil
	case Letters:
		d1, d2 := rangeData(10, 15)
		return d1, d2, nil
	case Numbers:
		d1, d2 := rangeData(0, 9)
		return d1, d2, nil
	case Zeros:
		d1, d2 := rangeData(0, 0)
		return d1, d2, nil
	case Matching:
		return matchingData(m.Pattern)
	default:
		return nil, nil, nil
	}
}

func rangeData(min, max byte) (*Data, *Data) {
	var d1, d2 Data
	d1[0], d2[0] = min, max
	return &d1, &d2
}

// matchingData packs nibbles pairwise, high nibble first. d2 is the mask of
// constrained bits: 0xFF for a full byte, 0xF0 for a trailing half byte.
func matchingData(pattern []byte) (*Data, *Data, error) {
	if len(pattern) > MaxPatternLength {
		return nil, nil, fmt.Errorf("%w: got %d", ErrPatternTooLong, len(pattern))
	}

	var d1, d2 Data
	for i := 0; i < len(pattern); i += 2 {
		hi := pattern[i] & 0x0F
		if i+1 == len(pattern) {
			d1[i/2] = hi << 4
			d2[i/2] = 0xF0
			break
		}
		d1[i/2] = hi<<4 | pattern[i+1]&0x0F
		d2[i/2] = 0xFF
	}
	return &d1, &d2, nil
}

const hexDigits = "0123456789ABCDEF"

func hexChar(v byte) byte { return hexDigits[v&0x0F] }

// String returns a human-readable name such as "Leading<A>" or "Range<0-9>".
func (m Mode) String() string {
	switch m.Kind {
	case Benchmark:
		return "Benchmark"
	case Doubles:
		return "Doubles"
	case Leading:
		return fmt.Sprintf("Leading<%c>", hexChar(m.Min))
	case LeadingRange:
		return fmt.Sprintf("Leading Range<%c-%c>", hexChar(m.Min), hexChar(m.Max))
	case Letters:
		return "Letters"
	case Matching:
		var sb strings.Builder
		for _, n := range m.Pattern {
			sb.WriteByte(hexChar(n))
		}
		return "Matching<" + sb.String() + ">"
	case Mirror:
		return "Mirror"
	case Numbers:
		return "Numbers"
	case Range:
		return fmt.Sprintf("Range<%c-%c>", hexChar(m.Min), hexChar(m.Max))
	case Zeros:
		return "Zeros"
	default:
		return "Unknown"
	}
}
