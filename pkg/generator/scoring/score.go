package scoring

// Hash is the 20-byte identifier a scorer inspects.
type Hash = [20]byte

// ScoreFunc scores one hash given the mode's parameter blocks.
// Blocks a mode does not use are passed as zero blocks.
type ScoreFunc func(h *Hash, d1, d2 *Data) int

var scorers = map[string]ScoreFunc{
	KernelBenchmark:    scoreBenchmark,
	KernelDoubles:      scoreDoubles,
	KernelLeading:      scoreLeading,
	KernelLeadingRange: scoreLeadingRange,
	KernelMatching:     scoreMatching,
	KernelMirror:       scoreMirror,
	KernelRange:        scoreRange,
}

// Scorer returns the host implementation of a scoring kernel.
func Scorer(kernel string) (ScoreFunc, bool) {
	f, ok := scorers[kernel]
	return f, ok
}

// Score evaluates the mode against h on the host.
func (m Mode) Score(h *Hash) (int, error) {
	d1, d2, err := m.Data()
	if err != nil {
		return 0, err
	}
	if d1 == nil {
		d1 = &Data{}
	}
	if d2 == nil {
		d2 = &Data{}
	}
	return scorers[m.KernelName()](h, d1, d2), nil
}

func nibble(h *Hash, i int) byte {
	if i%2 == 0 {
		return h[i/2] >> 4
	}
	return h[i/2] & 0x0F
}

func scoreBenchmark(*Hash, *Data, *Data) int { return 0 }

func scoreLeading(h *Hash, d1, _ *Data) int {
	score := 0
	for i := 0; i < len(h)*2; i++ {
		if nibble(h, i) != d1[0] {
			break
		}
		score++
	}
	return score
}

func scoreLeadingRange(h *Hash, d1, d2 *Data) int {
	score := 0
	for i := 0; i < len(h)*2; i++ {
		n := nibble(h, i)
		if n < d1[0] || n > d2[0] {
			break
		}
		score++
	}
	return score
}

func scoreRange(h *Hash, d1, d2 *Data) int {
	score := 0
	for i := 0; i < len(h)*2; i++ {
		if n := nibble(h, i); n >= d1[0] && n <= d2[0] {
			score++
		}
	}
	return score
}

// scoreMatching counts constrained nibbles that match. d1 carries the values,
// d2 the mask.
func scoreMatching(h *Hash, d1, d2 *Data) int {
	score := 0
	for i := range h {
		if d2[i]&0xF0 != 0 && h[i]&0xF0 == d1[i]&0xF0 {
			score++
		}
		if d2[i]&0x0F != 0 && h[i]&0x0F == d1[i]&0x0F {
			score++
		}
	}
	return score
}

func scoreMirror(h *Hash, _, _ *Data) int {
	score := 0
	for i := 0; i < len(h)/2; i++ {
		left, right := h[len(h)/2-1-i], h[len(h)/2+i]
		if left&0x0F != right>>4 {
			break
		}
		score++
		if left>>4 != right&0x0F {
			break
		}
		score++
	}
	return score
}

func scoreDoubles(h *Hash, _, _ *Data) int {
	score := 0
	for _, b := range h {
		if b>>4 != b&0x0F {
			break
		}
		score++
	}
	return score
}
