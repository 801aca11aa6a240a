package dispatch

import (
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"github.com/Amr-9/keyhunter/pkg/generator"
	"github.com/Amr-9/keyhunter/pkg/generator/compute"
	"github.com/Amr-9/keyhunter/pkg/generator/ethereum"
	"github.com/Amr-9/keyhunter/pkg/generator/scoring"
)

// ErrNotInitialized is returned when rounds are started before init completed.
var ErrNotInitialized = errors.New("compute unit not initialized")

const (
	// initBatches is the number of init launches a device is split into.
	initBatches = 50
	// mpNumberSize is one 256-bit field element on the device.
	mpNumberSize = 32
)

// RoundFunc receives the result slots read back at the end of a round.
type RoundFunc func(results []compute.HashResult, err error)

type launch struct {
	kernel compute.Kernel
	rng    compute.Range
}

// ComputeUnit drives one device: batched initialization of the candidate
// arrays, then an endless chain of search rounds whose result read-back
// overlaps the next round's kernels.
type ComputeUnit struct {
	cfg    *generator.Config
	index  int
	label  string
	device compute.Device
	queue  compute.Queue
	log    logrus.FieldLogger
	size   int

	precomp    compute.Buffer
	deltaX     compute.Buffer
	inverse    compute.Buffer
	prevLambda compute.Buffer
	result     compute.Buffer
	data1      compute.Buffer
	data2      compute.Buffer

	seed  compute.Ulong4
	seedX compute.Ulong4
	seedY compute.Ulong4

	best  atomic.Uint32
	round atomic.Uint64

	// owned by the init callback chain
	initKernel      compute.Kernel
	sizeInitialized int
	lastInitSize    int
	initialized     chan struct{}

	// owned by the round callback chain
	chain []*launch
	score *launch

	mu         sync.Mutex
	lastResult []compute.HashResult

	speed *SpeedMeter
}

// NewComputeUnit allocates the device buffers for one search.
func NewComputeUnit(cfg *generator.Config, dev compute.Device, log logrus.FieldLogger) (*ComputeUnit, error) {
	seed, err := newSeed()
	if err != nil {
		dev.Release()
		return nil, fmt.Errorf("GPU %d: %w", dev.Info().Index, err)
	}

	info := dev.Info()
	u := &ComputeUnit{
		cfg:         cfg,
		index:       info.Index,
		label:       strconv.Itoa(info.Index),
		device:      dev,
		queue:       dev.Queue(),
		log:         log.WithField("device", info.Index),
		size:        cfg.WorkSize(),
		seed:        seed,
		seedX:       compute.Ulong4FromBytes(cfg.PublicKey[:32]),
		seedY:       compute.Ulong4FromBytes(cfg.PublicKey[32:]),
		initialized: make(chan struct{}),
		speed:       NewSpeedMeter(cfg.SpeedSampleCount()),
	}

	if err := u.allocate(); err != nil {
		u.Release()
		return nil, fmt.Errorf("GPU %d: %w", u.index, err)
	}
	return u, nil
}

func (u *ComputeUnit) allocate() error {
	var err error
	points := u.size * mpNumberSize

	if u.deltaX, err = u.device.NewBuffer(points, nil); err != nil {
		return fmt.Errorf("allocate delta x: %w", err)
	}
	if u.inverse, err = u.device.NewBuffer(points, nil); err != nil {
		return fmt.Errorf("allocate inverse: %w", err)
	}
	if u.prevLambda, err = u.device.NewBuffer(points, nil); err != nil {
		return fmt.Errorf("allocate previous lambda: %w", err)
	}

	results := (u.cfg.MaxScore() + 1) * compute.HashResultSize
	if u.result, err = u.device.NewBuffer(results, make([]byte, results)); err != nil {
		return fmt.Errorf("allocate results: %w", err)
	}

	d1, d2, err := u.cfg.Mode.Data()
	if err != nil {
		return err
	}
	if u.data1, err = newDataBuffer(u.device, d1); err != nil {
		return fmt.Errorf("allocate score data: %w", err)
	}
	if u.data2, err = newDataBuffer(u.device, d2); err != nil {
		return fmt.Errorf("allocate score data: %w", err)
	}
	return nil
}

func newDataBuffer(dev compute.Device, d *scoring.Data) (compute.Buffer, error) {
	if d == nil {
		d = &scoring.Data{}
	}
	return dev.NewBuffer(scoring.DataSize, d[:])
}

// seedSource is read for every new unit seed.
var seedSource io.Reader = rand.Reader

func newSeed() (compute.Ulong4, error) {
	var b [32]byte
	if _, err := io.ReadFull(seedSource, b[:]); err != nil {
		return compute.Ulong4{}, fmt.Errorf("generate seed: %w", err)
	}

	var s compute.Ulong4
	for i := range s {
		s[i] = binary.LittleEndian.Uint64(b[i*8:])
	}
	return s, nil
}

// StartInit uploads the precompute table and prepares the init kernel.
func (u *ComputeUnit) StartInit() error {
	var err error
	table := ethereum.Precomp()
	if u.precomp, err = u.device.NewBuffer(len(table), table); err != nil {
		return fmt.Errorf("GPU %d: upload precompute table: %w", u.index, err)
	}
	if u.initKernel, err = u.device.NewKernel(compute.KernelInit); err != nil {
		return fmt.Errorf("GPU %d: %w", u.index, err)
	}

	args := []any{u.precomp, u.deltaX, u.prevLambda, u.result, u.seed, u.seedX, u.seedY}
	for i, arg := range args {
		if err := u.initKernel.SetArg(i, arg); err != nil {
			return fmt.Errorf("GPU %d: %s argument %d: %w", u.index, compute.KernelInit, i, err)
		}
	}

	u.sizeInitialized = 0
	u.lastInitSize = 0
	u.round.Store(0)
	return nil
}

func (u *ComputeUnit) initBatchSize() int {
	return max(u.size/initBatches, 1)
}

// ContinueInit accounts for the previous batch and enqueues the next one,
// calling cb when it completes. It reports true once the whole work size is
// covered, in which case nothing was enqueued.
func (u *ComputeUnit) ContinueInit(cb func(error)) (bool, error) {
	u.sizeInitialized += u.lastInitSize
	if u.sizeInitialized >= u.size {
		u.precomp.Release()
		u.precomp = nil
		u.initKernel.Release()
		u.initKernel = nil
		close(u.initialized)
		return true, nil
	}

	n := min(u.size-u.sizeInitialized, u.initBatchSize())
	rng := compute.Range{Offset: u.sizeInitialized, Global: n}
	if err := u.queue.EnqueueKernel(u.initKernel, rng); err != nil {
		return false, fmt.Errorf("GPU %d: %w", u.index, err)
	}
	ev, err := u.queue.EnqueueMarker()
	if err != nil {
		return false, fmt.Errorf("GPU %d: %w", u.index, err)
	}
	if err := u.queue.Flush(); err != nil {
		return false, fmt.Errorf("GPU %d: flush: %w", u.index, err)
	}

	u.lastInitSize = n
	if err := ev.OnComplete(cb); err != nil {
		return false, fmt.Errorf("GPU %d: init callback: %w", u.index, err)
	}
	return false, nil
}

// Initialized is closed once the device finished initializing.
func (u *ComputeUnit) Initialized() <-chan struct{} {
	return u.initialized
}

func (u *ComputeUnit) isInitialized() bool {
	select {
	case <-u.initialized:
		return true
	default:
		return false
	}
}

// StartRound builds the search kernels and dispatches the first round.
func (u *ComputeUnit) StartRound(cb RoundFunc) error {
	if !u.isInitialized() {
		return fmt.Errorf("GPU %d: %w", u.index, ErrNotInitialized)
	}

	if u.chain == nil {
		if err := u.buildChain(); err != nil {
			return fmt.Errorf("GPU %d: %w", u.index, err)
		}
	}

	u.speed.Reset()
	return u.ContinueRound(false, cb)
}

func (u *ComputeUnit) buildChain() error {
	local := u.cfg.LocalWorkSize

	newLaunch := func(name string, global int, args ...any) (*launch, error) {
		k, err := u.device.NewKernel(name)
		if err != nil {
			return nil, err
		}
		for i, arg := range args {
			if err := k.SetArg(i, arg); err != nil {
				return nil, fmt.Errorf("%s argument %d: %w", name, i, err)
			}
		}
		return &launch{kernel: k, rng: compute.Range{Global: global, Local: local}}, nil
	}

	inverse, err := newLaunch(compute.KernelInverse, u.cfg.InverseMultiplier, u.deltaX, u.inverse)
	if err != nil {
		return err
	}
	iterate, err := newLaunch(compute.KernelIterate, u.size, u.deltaX, u.inverse, u.prevLambda)
	if err != nil {
		return err
	}
	chain := []*launch{inverse, iterate}

	if u.cfg.Target == generator.Contract {
		transform, err := newLaunch(compute.KernelTransformContract, u.size, u.inverse)
		if err != nil {
			return err
		}
		chain = append(chain, transform)
	}

	score, err := newLaunch(u.cfg.Mode.KernelName(), u.size, u.inverse, u.result, u.data1, u.data2, uint8(0))
	if err != nil {
		return err
	}

	u.chain = append(chain, score)
	u.score = score
	return nil
}

// ContinueRound enqueues the read-back of the result slots followed by the
// next round's kernels, so the device keeps working while the host inspects
// the previous round. cb receives the slots once the read completes.
func (u *ComputeUnit) ContinueRound(fromCompletion bool, cb RoundFunc) error {
	if fromCompletion {
		u.speed.Log(u.size)
	}

	buf := make([]byte, (u.cfg.MaxScore()+1)*compute.HashResultSize)
	ev, err := u.queue.EnqueueRead(u.result, buf)
	if err != nil {
		return fmt.Errorf("GPU %d: read results: %w", u.index, err)
	}

	if err := u.score.kernel.SetArg(compute.ArgScoreMax, uint8(u.best.Load())); err != nil {
		return fmt.Errorf("GPU %d: %w", u.index, err)
	}
	for _, l := range u.chain {
		if err := u.enqueue(l); err != nil {
			return err
		}
	}

	if err := u.queue.Flush(); err != nil {
		return fmt.Errorf("GPU %d: flush: %w", u.index, err)
	}

	return ev.OnComplete(func(err error) {
		if err != nil {
			cb(nil, fmt.Errorf("GPU %d: read results: %w", u.index, err))
			return
		}
		results := compute.DecodeResults(buf)
		u.mu.Lock()
		u.lastResult = results
		u.mu.Unlock()
		cb(results, nil)
	})
}

// enqueue launches l, dropping to the runtime's local size once if the device
// rejects the configured one.
func (u *ComputeUnit) enqueue(l *launch) error {
	err := u.queue.EnqueueKernel(l.kernel, l.rng)
	if err == nil {
		return nil
	}
	if !compute.IsInvalidWorkSize(err) || l.rng.Local == 0 {
		return fmt.Errorf("GPU %d: %w", u.index, err)
	}

	u.log.Warnf("local work size %d abandoned on GPU %d", l.rng.Local, u.index)
	launchFallbacks.WithLabelValues(u.label, l.kernel.Name()).Inc()
	l.rng.Local = 0

	if err := u.queue.EnqueueKernel(l.kernel, l.rng); err != nil {
		return fmt.Errorf("GPU %d: %w", u.index, err)
	}
	return nil
}

// Release waits for queued work to drain and frees the device resources
// held by the unit.
func (u *ComputeUnit) Release() {
	if err := u.queue.Finish(); err != nil {
		u.log.WithError(err).Warn("queue did not finish cleanly")
	}
	for _, l := range u.chain {
		l.kernel.Release()
	}
	u.chain, u.score = nil, nil
	if u.initKernel != nil {
		u.initKernel.Release()
		u.initKernel = nil
	}
	for _, b := range []*compute.Buffer{&u.precomp, &u.deltaX, &u.inverse, &u.prevLambda, &u.result, &u.data1, &u.data2} {
		if *b != nil {
			(*b).Release()
			*b = nil
		}
	}
	u.device.Release()
}

// Index is the device index the unit runs on.
func (u *ComputeUnit) Index() int { return u.index }

// Size is the number of candidates the device keeps in flight.
func (u *ComputeUnit) Size() int { return u.size }

// Seed is the random starting offset of the device.
func (u *ComputeUnit) Seed() compute.Ulong4 { return u.seed }

// Round returns the number of completed rounds.
func (u *ComputeUnit) Round() uint64 { return u.round.Load() }

// IncreaseRound advances the round counter and returns the new value.
func (u *ComputeUnit) IncreaseRound() uint64 { return u.round.Add(1) }

// BestScore is the highest score reported by this device.
func (u *ComputeUnit) BestScore() int { return int(u.best.Load()) }

// SetBestScore raises the device best score; lower values are ignored.
func (u *ComputeUnit) SetBestScore(score int) {
	for {
		cur := u.best.Load()
		if uint32(score) <= cur || u.best.CompareAndSwap(cur, uint32(score)) {
			return
		}
	}
}

// LastInitSize is the size of the most recently enqueued init batch.
func (u *ComputeUnit) LastInitSize() int { return u.lastInitSize }

// LastResult is the most recent snapshot of the result slots.
func (u *ComputeUnit) LastResult() []compute.HashResult {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.lastResult
}

// Speed is the moving average of candidates per second.
func (u *ComputeUnit) Speed() float64 { return u.speed.Speed() }
