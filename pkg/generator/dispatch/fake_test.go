package dispatch

import (
	"fmt"
	"sync"

	"github.com/Amr-9/keyhunter/pkg/generator/compute"
)

// fakeDevice runs every command synchronously at enqueue time and completes
// events on a new goroutine, which keeps the queue order observable.
type fakeDevice struct {
	index int

	mu       sync.Mutex
	calls    []call
	scores   int
	released bool
	buffers  []*fakeBuffer

	// reject may fail a launch before it is recorded.
	reject func(name string, r compute.Range) error
	// onScore runs for every score launch with its 0-based sequence number.
	onScore func(n int, result *fakeBuffer)
}

type call struct {
	name     string
	rng      compute.Range
	scoreMax uint8
}

type fakeBuffer struct {
	data     []byte
	released bool
}

type fakeKernel struct {
	name string
	args map[int]any
}

type fakeEvent struct{ err error }

func newFakeDevice(index int) *fakeDevice {
	return &fakeDevice{index: index}
}

func (d *fakeDevice) Info() compute.DeviceInfo {
	return compute.DeviceInfo{Index: d.index, Name: fmt.Sprintf("fake %d", d.index)}
}

func (d *fakeDevice) NewBuffer(size int, host []byte) (compute.Buffer, error) {
	b := &fakeBuffer{data: make([]byte, size)}
	copy(b.data, host)
	d.mu.Lock()
	d.buffers = append(d.buffers, b)
	d.mu.Unlock()
	return b, nil
}

func (d *fakeDevice) NewKernel(name string) (compute.Kernel, error) {
	return &fakeKernel{name: name, args: map[int]any{}}, nil
}

func (d *fakeDevice) Queue() compute.Queue { return d }

func (d *fakeDevice) Release() {
	d.mu.Lock()
	d.released = true
	d.mu.Unlock()
}

func (d *fakeDevice) EnqueueKernel(k compute.Kernel, r compute.Range) error {
	fk := k.(*fakeKernel)
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.reject != nil {
		if err := d.reject(fk.name, r); err != nil {
			return err
		}
	}

	c := call{name: fk.name, rng: r}
	if sm, ok := fk.args[compute.ArgScoreMax].(uint8); ok && isScoreKernel(fk.name) {
		c.scoreMax = sm
	}
	d.calls = append(d.calls, c)

	if isScoreKernel(fk.name) {
		if d.onScore != nil {
			d.onScore(d.scores, fk.args[compute.ArgScoreResult].(*fakeBuffer))
		}
		d.scores++
	}
	return nil
}

func (d *fakeDevice) EnqueueRead(buf compute.Buffer, dst []byte) (compute.Event, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	copy(dst, buf.(*fakeBuffer).data)
	d.calls = append(d.calls, call{name: "read"})
	return fakeEvent{}, nil
}

func (d *fakeDevice) EnqueueMarker() (compute.Event, error) {
	return fakeEvent{}, nil
}

func (d *fakeDevice) Flush() error { return nil }

func (d *fakeDevice) Finish() error { return nil }

func (d *fakeDevice) snapshot() []call {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]call(nil), d.calls...)
}

func (b *fakeBuffer) Size() int { return len(b.data) }
func (b *fakeBuffer) Release()  { b.released = true }

// writeSlot mimics the kernels: the first writer of a slot keeps it.
func (b *fakeBuffer) writeSlot(score int, id uint32, hash [20]byte) {
	p := b.data[score*compute.HashResultSize:]
	r := compute.DecodeResults(p[:compute.HashResultSize])[0]
	if r.Found == 0 {
		r.FoundID = id
		r.FoundHash = hash
	}
	r.Found++
	r.Encode(p)
}

func (k *fakeKernel) Name() string { return k.name }

func (k *fakeKernel) SetArg(i int, v any) error {
	k.args[i] = v
	return nil
}

func (k *fakeKernel) Release() {}

func (e fakeEvent) OnComplete(fn func(error)) error {
	go fn(e.err)
	return nil
}

func isScoreKernel(name string) bool {
	switch name {
	case compute.KernelInit, compute.KernelInverse, compute.KernelIterate, compute.KernelTransformContract, "read":
		return false
	}
	return true
}
