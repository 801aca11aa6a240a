package dispatch

import (
	"sync"
	"time"
)

// SpeedMeter is a moving average of candidates per second over the last
// samples completed batches.
type SpeedMeter struct {
	mu      sync.Mutex
	now     func() time.Time
	window  int
	last    time.Time
	samples []float64
}

// NewSpeedMeter keeps up to window samples.
func NewSpeedMeter(window int) *SpeedMeter {
	return newSpeedMeterWithClock(window, time.Now)
}

func newSpeedMeterWithClock(window int, now func() time.Time) *SpeedMeter {
	return &SpeedMeter{
		now:     now,
		window:  window,
		last:    now(),
		samples: make([]float64, 0, window+1),
	}
}

// Reset drops all samples and restarts the interval clock.
func (m *SpeedMeter) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.last = m.now()
	m.samples = m.samples[:0]
}

// Log records that size candidates completed since the previous call.
// Intervals shorter than a millisecond are ignored.
func (m *SpeedMeter) Log(size int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	elapsed := now.Sub(m.last).Milliseconds()
	m.last = now
	if elapsed <= 0 {
		return
	}

	m.samples = append(m.samples, float64(size)/float64(elapsed)*1000)
	if len(m.samples) > m.window {
		m.samples = append(m.samples[:0], m.samples[1:]...)
	}
}

// Speed returns the average of the recorded samples, or 0 without samples.
func (m *SpeedMeter) Speed() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range m.samples {
		sum += s
	}
	return sum / float64(len(m.samples))
}
