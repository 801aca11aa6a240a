package host

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Amr-9/keyhunter/pkg/generator/compute"
)

func wait(t *testing.T, ev compute.Event) error {
	t.Helper()
	done := make(chan error, 1)
	require.NoError(t, ev.OnComplete(func(err error) { done <- err }))
	select {
	case err := <-done:
		return err
	case <-time.After(5 * time.Second):
		t.Fatal("event never completed")
		return nil
	}
}

func recorder(d *device, name string, log *[]string, mu *sync.Mutex, err error) *kernel {
	return &kernel{name: name, dev: d, run: func(*device, []any, compute.Range) error {
		mu.Lock()
		*log = append(*log, name)
		mu.Unlock()
		return err
	}}
}

func TestQueueRunsInOrder(t *testing.T) {
	d := newDevice(compute.DeviceInfo{}, 2, compute.ProgramOptions{})
	defer d.Release()

	var (
		mu  sync.Mutex
		log []string
	)
	for _, name := range []string{"a", "b", "c"} {
		require.NoError(t, d.queue.EnqueueKernel(recorder(d, name, &log, &mu, nil), compute.Range{Global: 1}))
	}
	ev, err := d.queue.EnqueueMarker()
	require.NoError(t, err)
	require.NoError(t, wait(t, ev))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"a", "b", "c"}, log)
}

func TestQueueReadSeesEarlierKernels(t *testing.T) {
	d := newDevice(compute.DeviceInfo{}, 1, compute.ProgramOptions{})
	defer d.Release()

	buf, err := d.NewBuffer(4, nil)
	require.NoError(t, err)
	write := &kernel{name: "write", dev: d, run: func(_ *device, args []any, _ compute.Range) error {
		copy(args[0].(*buffer).bytes(), []byte{1, 2, 3, 4})
		return nil
	}}
	require.NoError(t, write.SetArg(0, buf))

	dst := make([]byte, 4)
	require.NoError(t, d.queue.EnqueueKernel(write, compute.Range{Global: 1}))
	ev, err := d.queue.EnqueueRead(buf, dst)
	require.NoError(t, err)
	require.NoError(t, wait(t, ev))
	assert.Equal(t, []byte{1, 2, 3, 4}, dst)
}

func TestFailedKernelPoisonsQueue(t *testing.T) {
	d := newDevice(compute.DeviceInfo{}, 1, compute.ProgramOptions{})
	defer d.Release()

	var (
		mu  sync.Mutex
		log []string
	)
	boom := errors.New("boom")
	require.NoError(t, d.queue.EnqueueKernel(recorder(d, "bad", &log, &mu, boom), compute.Range{Global: 1}))
	require.NoError(t, d.queue.EnqueueKernel(recorder(d, "skipped", &log, &mu, nil), compute.Range{Global: 1}))

	ev, err := d.queue.EnqueueMarker()
	require.NoError(t, err)
	err = wait(t, ev)
	require.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "bad")

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"bad"}, log)
}

func TestEnqueueKernelValidatesGeometry(t *testing.T) {
	d := newDevice(compute.DeviceInfo{}, 1, compute.ProgramOptions{})
	defer d.Release()
	k := &kernel{name: "k", dev: d, run: func(*device, []any, compute.Range) error { return nil }}

	tests := []struct {
		name    string
		rng     compute.Range
		invalid bool
		status  int
	}{
		{"runtime local", compute.Range{Global: 100}, false, 0},
		{"divisible", compute.Range{Global: 128, Local: 64}, false, 0},
		{"not divisible", compute.Range{Global: 100, Local: 64}, true, compute.StatusInvalidWorkGroupSize},
		{"too large", compute.Range{Global: 4096, Local: 2048}, true, compute.StatusInvalidWorkGroupSize},
		{"empty", compute.Range{}, false, statusInvalidGlobalWorkSize},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := d.queue.EnqueueKernel(k, tt.rng)
			if tt.status == 0 {
				assert.NoError(t, err)
				return
			}
			var le *compute.LaunchError
			require.ErrorAs(t, err, &le)
			assert.Equal(t, tt.status, le.Status)
			assert.Equal(t, tt.invalid, compute.IsInvalidWorkSize(err))
		})
	}
}

func TestOnCompleteAfterCompletion(t *testing.T) {
	d := newDevice(compute.DeviceInfo{}, 1, compute.ProgramOptions{})
	defer d.Release()

	ev, err := d.queue.EnqueueMarker()
	require.NoError(t, err)
	require.NoError(t, d.queue.Finish())

	// the marker has run, so the callback fires immediately
	require.NoError(t, wait(t, ev))
}

func TestReleasedQueueRejectsWork(t *testing.T) {
	d := newDevice(compute.DeviceInfo{}, 1, compute.ProgramOptions{})
	d.Release()

	_, err := d.queue.EnqueueMarker()
	assert.ErrorIs(t, err, errQueueReleased)
}

func TestSetArgRejectsUnknownTypes(t *testing.T) {
	d := newDevice(compute.DeviceInfo{}, 1, compute.ProgramOptions{})
	defer d.Release()

	k, err := d.NewKernel(compute.KernelIterate)
	require.NoError(t, err)
	assert.Error(t, k.SetArg(0, "nope"))
	assert.NoError(t, k.SetArg(3, uint8(7)))

	_, err = d.NewKernel("profanity_missing")
	assert.Error(t, err)
}
