// Package dispatch runs a vanity key search across compute devices. Each
// device is driven by a ComputeUnit; the Dispatcher fans initialization and
// search rounds out to the units, tracks the best score and reports
// discoveries as they appear.
package dispatch

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Amr-9/keyhunter/internal/ui"
	"github.com/Amr-9/keyhunter/pkg/generator"
	"github.com/Amr-9/keyhunter/pkg/generator/compute"
	"github.com/Amr-9/keyhunter/pkg/generator/ethereum"
	"github.com/Amr-9/keyhunter/pkg/generator/tron"
)

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithLogger sets the diagnostics logger.
func WithLogger(log logrus.FieldLogger) Option {
	return func(d *Dispatcher) { d.log = log }
}

// WithPrinter sets where progress, speed and discoveries are written.
func WithPrinter(p *ui.Printer) Option {
	return func(d *Dispatcher) { d.out = p }
}

// WithResultHandler registers fn to receive every discovery. fn is called
// from device callbacks and must not block for long.
func WithResultHandler(fn func(generator.Result)) Option {
	return func(d *Dispatcher) { d.onResult = fn }
}

// Dispatcher coordinates the compute units of one search.
type Dispatcher struct {
	cfg      *generator.Config
	log      logrus.FieldLogger
	out      *ui.Printer
	onResult func(generator.Result)

	units []*ComputeUnit

	mu   sync.Mutex
	best int

	totalSize        uint64
	totalInitialized atomic.Uint64

	start time.Time
	errCh chan error
	wg    sync.WaitGroup
}

// New returns a Dispatcher without devices.
func New(cfg *generator.Config, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		cfg:   cfg,
		errCh: make(chan error, 1),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		d.log = l
	}
	if d.out == nil {
		d.out = ui.NewPrinter(io.Discard, false)
	}
	return d
}

// AddDevice creates a compute unit on dev. The dispatcher takes ownership of dev.
func (d *Dispatcher) AddDevice(dev compute.Device) error {
	u, err := NewComputeUnit(d.cfg, dev, d.log)
	if err != nil {
		return err
	}
	d.units = append(d.units, u)
	d.totalSize += uint64(u.Size())
	return nil
}

// Units returns the compute units in the order they were added.
func (d *Dispatcher) Units() []*ComputeUnit { return d.units }

// BestScore is the highest score reported by any device.
func (d *Dispatcher) BestScore() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.best
}

// fail records the first fatal error.
func (d *Dispatcher) fail(err error) {
	select {
	case d.errCh <- err:
	default:
	}
}

// Init initializes every device and blocks until all of them are done.
func (d *Dispatcher) Init(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer func() {
		cancel()
		d.wg.Wait()
	}()

	for _, u := range d.units {
		if err := u.StartInit(); err != nil {
			return err
		}
		d.wg.Add(1)
		d.continueInit(ctx, u)
	}

	for _, u := range d.units {
		select {
		case <-u.Initialized():
		case err := <-d.errCh:
			return err
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// continueInit enqueues the next init batch of u. The chain holds one
// reference on d.wg until it stops.
func (d *Dispatcher) continueInit(ctx context.Context, u *ComputeUnit) {
	if ctx.Err() != nil {
		d.wg.Done()
		return
	}

	done, err := u.ContinueInit(func(err error) {
		if err != nil {
			d.fail(fmt.Errorf("GPU %d: init: %w", u.Index(), err))
			d.wg.Done()
			return
		}

		total := d.totalInitialized.Add(uint64(u.LastInitSize()))
		ratio := float64(total) / float64(d.totalSize)
		initProgress.Set(ratio)
		d.out.Progress("  %.2f%%", ratio*100)

		d.continueInit(ctx, u)
	})
	if err != nil {
		d.fail(err)
		d.wg.Done()
		return
	}
	if done {
		d.out.Line("  GPU%d initialized", u.Index())
		d.log.WithField("device", u.Index()).Debug("initialized")
		d.wg.Done()
	}
}

// Run starts the search rounds on every device and blocks until ctx is
// cancelled or a device fails. All device callbacks have stopped when it
// returns.
func (d *Dispatcher) Run(ctx context.Context) error {
	for _, u := range d.units {
		if !u.isInitialized() {
			return fmt.Errorf("GPU %d: %w", u.Index(), ErrNotInitialized)
		}
	}

	ctx, cancel := context.WithCancel(ctx)
	defer func() {
		cancel()
		d.wg.Wait()
	}()

	d.start = time.Now()
	for _, u := range d.units {
		d.wg.Add(1)
		if err := u.StartRound(d.roundCallback(ctx, u)); err != nil {
			d.wg.Done()
			return err
		}
	}

	select {
	case <-ctx.Done():
		return nil
	case err := <-d.errCh:
		return err
	}
}

// roundCallback handles a finished round of u and re-arms the next one.
func (d *Dispatcher) roundCallback(ctx context.Context, u *ComputeUnit) RoundFunc {
	var cb RoundFunc
	cb = func(results []compute.HashResult, err error) {
		if err != nil {
			d.fail(err)
			d.wg.Done()
			return
		}

		u.IncreaseRound()
		d.handleResult(u, results)
		d.printSpeed()

		roundsTotal.WithLabelValues(u.label).Inc()
		candidatesTotal.WithLabelValues(u.label).Add(float64(u.Size()))
		deviceSpeed.WithLabelValues(u.label).Set(u.Speed())

		if ctx.Err() != nil {
			d.wg.Done()
			return
		}
		if err := u.ContinueRound(true, cb); err != nil {
			d.fail(err)
			d.wg.Done()
		}
	}
	return cb
}

// handleResult scans the result slots from the highest score down and
// reports every slot that beats both the global and the device best.
func (d *Dispatcher) handleResult(u *ComputeUnit, results []compute.HashResult) {
	best := d.BestScore()

	for i := len(results) - 1; i > best; i-- {
		r := results[i]
		if r.Found == 0 || i <= u.BestScore() {
			continue
		}

		d.mu.Lock()
		if i > d.best {
			d.best = i
			best = i
			bestScore.Set(float64(i))
		}
		u.SetBestScore(i)
		d.mu.Unlock()
		deviceBestScore.WithLabelValues(u.label).Set(float64(i))

		d.report(u, i, r)
	}
}

func (d *Dispatcher) report(u *ComputeUnit, score int, r compute.HashResult) {
	round := u.Round()
	key := PrivateKey(u.Seed(), round, r.FoundID)

	var address string
	switch d.cfg.Format {
	case generator.Tron:
		address = tron.AddressFromHash(r.FoundHash)
	default:
		address = ethereum.ChecksumAddress(r.FoundHash)
	}

	elapsed := time.Since(d.start)
	d.out.Line("  Score: %-2d Time: %-7s %s: %s Key: %s",
		score, ui.FormatElapsed(elapsed), d.cfg.Target, address, key.Hex())

	d.log.WithFields(logrus.Fields{
		"device": u.Index(),
		"score":  score,
		"round":  round,
	}).Debug("discovery")
	discoveriesTotal.WithLabelValues(strings.ToLower(d.cfg.Target.String())).Inc()

	if d.onResult != nil {
		d.onResult(generator.Result{
			Device:     u.Index(),
			Score:      score,
			Round:      round,
			Target:     d.cfg.Target,
			Address:    address,
			PrivateKey: key.Hex(),
			Hash:       r.FoundHash,
		})
	}
}

func (d *Dispatcher) printSpeed() {
	var total float64
	var sb strings.Builder

	if !d.cfg.CompactSpeed {
		sb.WriteString(" -")
	}
	for _, u := range d.units {
		speed := u.Speed()
		total += speed
		if !d.cfg.CompactSpeed {
			fmt.Fprintf(&sb, " GPU %d: %s", u.Index(), ui.FormatSpeed(speed))
		}
	}

	d.out.Progress("Total Speed: %10s%s", ui.FormatSpeed(total), sb.String())
}

// Stats returns a snapshot of the search.
func (d *Dispatcher) Stats() generator.Stats {
	var speed float64
	var candidates uint64
	for _, u := range d.units {
		speed += u.Speed()
		candidates += u.Round() * uint64(u.Size())
	}

	var elapsed float64
	if !d.start.IsZero() {
		elapsed = time.Since(d.start).Seconds()
	}
	return generator.Stats{
		Speed:       speed,
		Candidates:  candidates,
		BestScore:   d.BestScore(),
		ElapsedSecs: elapsed,
	}
}

// Close releases every device. It must not be called while Init or Run is active.
func (d *Dispatcher) Close() {
	for _, u := range d.units {
		u.Release()
	}
	d.units = nil
}
