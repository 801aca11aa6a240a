// Package host runs the profanity kernel contract on the CPU. Each virtual
// device owns an in-order queue served by one goroutine; kernels split their
// range across a bounded worker group.
package host

import (
	"fmt"
	"runtime"

	"github.com/btcsuite/btcd/btcec/v2"

	"github.com/Amr-9/keyhunter/pkg/generator/compute"
	"github.com/Amr-9/keyhunter/pkg/generator/scoring"
)

// MaxWorkGroupSize is the largest local size a launch may request.
const MaxWorkGroupSize = 1024

// Backend exposes a fixed number of CPU devices.
type Backend struct {
	devices int
	workers int
}

// New returns a backend with the given number of devices, each running
// kernels on up to workers goroutines. Non-positive values pick defaults.
func New(devices, workers int) *Backend {
	if devices < 1 {
		devices = 1
	}
	if workers < 1 {
		workers = max(runtime.NumCPU()/devices, 1)
	}
	return &Backend{devices: devices, workers: workers}
}

func (b *Backend) Name() string { return "cpu" }

func (b *Backend) Devices() ([]compute.DeviceInfo, error) {
	infos := make([]compute.DeviceInfo, b.devices)
	for i := range infos {
		infos[i] = b.info(i)
	}
	return infos, nil
}

func (b *Backend) info(i int) compute.DeviceInfo {
	return compute.DeviceInfo{
		Index:        i,
		Name:         fmt.Sprintf("CPU %d (%d workers)", i, b.workers),
		ComputeUnits: b.workers,
	}
}

// Open starts one queue per selected device.
func (b *Backend) Open(indices []int, opts compute.ProgramOptions) ([]compute.Device, error) {
	devs := make([]compute.Device, 0, len(indices))
	for _, i := range indices {
		if i < 0 || i >= b.devices {
			for _, d := range devs {
				d.Release()
			}
			return nil, fmt.Errorf("cpu device %d does not exist", i)
		}
		devs = append(devs, newDevice(b.info(i), b.workers, opts))
	}
	return devs, nil
}

type device struct {
	info    compute.DeviceInfo
	opts    compute.ProgramOptions
	workers int
	queue   *queue
	g       btcec.JacobianPoint
}

func newDevice(info compute.DeviceInfo, workers int, opts compute.ProgramOptions) *device {
	d := &device{
		info:    info,
		opts:    opts,
		workers: workers,
		queue:   newQueue(),
	}

	var one btcec.ModNScalar
	one.SetInt(1)
	btcec.ScalarBaseMultNonConst(&one, &d.g)
	return d
}

func (d *device) Info() compute.DeviceInfo { return d.info }

func (d *device) NewBuffer(size int, host []byte) (compute.Buffer, error) {
	if size <= 0 {
		return nil, fmt.Errorf("invalid buffer size %d", size)
	}
	if len(host) > size {
		return nil, fmt.Errorf("host data of %d bytes exceeds buffer size %d", len(host), size)
	}

	b := &buffer{size: size}
	if host != nil {
		b.data = make([]byte, size)
		copy(b.data, host)
	}
	return b, nil
}

func (d *device) NewKernel(name string) (compute.Kernel, error) {
	if fn, ok := kernels[name]; ok {
		return &kernel{name: name, dev: d, run: fn}, nil
	}
	if score, ok := scoring.Scorer(name); ok {
		return &kernel{name: name, dev: d, run: scoreKernel(score)}, nil
	}
	return nil, fmt.Errorf("kernel %s not found", name)
}

func (d *device) Queue() compute.Queue { return d.queue }

func (d *device) Release() { d.queue.Release() }

// buffer is device memory. Point and hash arrays live beside the raw bytes so
// kernels can hand them to each other without re-encoding.
type buffer struct {
	size int
	data []byte

	points []btcec.JacobianPoint
	hashes [][20]byte
	table  []btcec.JacobianPoint
}

func (b *buffer) Size() int { return b.size }

func (b *buffer) Release() {
	b.data, b.points, b.hashes, b.table = nil, nil, nil, nil
}

func (b *buffer) bytes() []byte {
	if b.data == nil {
		b.data = make([]byte, b.size)
	}
	return b.data
}

// elements is the number of 256-bit values that fit in the buffer.
func (b *buffer) elements() int { return b.size / 32 }

type kernel struct {
	name string
	dev  *device
	run  kernelFunc
	args []any
}

func (k *kernel) Name() string { return k.name }

func (k *kernel) SetArg(i int, v any) error {
	switch v.(type) {
	case *buffer, uint8, uint32, uint64, compute.Ulong4:
	case compute.Buffer:
		return fmt.Errorf("%s argument %d: buffer from another backend", k.name, i)
	default:
		return fmt.Errorf("%s argument %d: unsupported type %T", k.name, i, v)
	}

	for len(k.args) <= i {
		k.args = append(k.args, nil)
	}
	k.args[i] = v
	return nil
}

func (k *kernel) Release() {}
