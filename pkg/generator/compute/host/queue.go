package host

import (
	"errors"
	"fmt"
	"sync"

	"github.com/Amr-9/keyhunter/pkg/generator/compute"
)

var errQueueReleased = errors.New("queue released")

// command runs with the error of an earlier failed command, if any.
type command func(failed error) error

// queue executes commands in submission order on a single goroutine. A failed
// command poisons the queue: later kernels are skipped and later events
// complete with its error.
type queue struct {
	mu      sync.Mutex
	cond    *sync.Cond
	pending []command
	closed  bool
	err     error
	done    chan struct{}
}

func newQueue() *queue {
	q := &queue{done: make(chan struct{})}
	q.cond = sync.NewCond(&q.mu)
	go q.loop()
	return q
}

func (q *queue) loop() {
	defer close(q.done)
	for {
		q.mu.Lock()
		for len(q.pending) == 0 && !q.closed {
			q.cond.Wait()
		}
		if len(q.pending) == 0 {
			q.mu.Unlock()
			return
		}
		c := q.pending[0]
		q.pending[0] = nil
		q.pending = q.pending[1:]
		failed := q.err
		q.mu.Unlock()

		if err := c(failed); err != nil && failed == nil {
			q.mu.Lock()
			q.err = err
			q.mu.Unlock()
		}
	}
}

func (q *queue) push(c command) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return errQueueReleased
	}
	q.pending = append(q.pending, c)
	q.cond.Signal()
	return nil
}

// pushEvent enqueues c and returns an event completed after it ran.
func (q *queue) pushEvent(c func()) (compute.Event, error) {
	ev := &event{}
	err := q.push(func(failed error) error {
		if failed == nil {
			c()
		}
		ev.complete(failed)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ev, nil
}

func (q *queue) EnqueueKernel(k compute.Kernel, r compute.Range) error {
	hk, ok := k.(*kernel)
	if !ok {
		return fmt.Errorf("kernel %s from another backend", k.Name())
	}
	if r.Global <= 0 || r.Offset < 0 {
		return &compute.LaunchError{Kernel: hk.name, Status: statusInvalidGlobalWorkSize, Local: r.Local}
	}
	if r.Local > 0 && (r.Global%r.Local != 0 || r.Local > MaxWorkGroupSize) {
		return &compute.LaunchError{Kernel: hk.name, Status: compute.StatusInvalidWorkGroupSize, Local: r.Local}
	}

	args := append([]any(nil), hk.args...)
	return q.push(func(failed error) error {
		if failed != nil {
			return nil
		}
		if err := hk.run(hk.dev, args, r); err != nil {
			return fmt.Errorf("%s: %w", hk.name, err)
		}
		return nil
	})
}

func (q *queue) EnqueueRead(buf compute.Buffer, dst []byte) (compute.Event, error) {
	b, ok := buf.(*buffer)
	if !ok {
		return nil, errors.New("buffer from another backend")
	}
	if len(dst) > b.size {
		return nil, fmt.Errorf("read of %d bytes from a %d byte buffer", len(dst), b.size)
	}
	return q.pushEvent(func() { copy(dst, b.bytes()) })
}

func (q *queue) EnqueueMarker() (compute.Event, error) {
	return q.pushEvent(func() {})
}

func (q *queue) Flush() error { return nil }

func (q *queue) Finish() error {
	ev, err := q.pushEvent(func() {})
	if err != nil {
		return err
	}
	done := make(chan error, 1)
	if err := ev.OnComplete(func(err error) { done <- err }); err != nil {
		return err
	}
	return <-done
}

// Release drains the queue and stops its goroutine.
func (q *queue) Release() {
	q.mu.Lock()
	if !q.closed {
		q.closed = true
		q.cond.Signal()
	}
	q.mu.Unlock()
	<-q.done
}

// statusInvalidGlobalWorkSize is CL_INVALID_GLOBAL_WORK_SIZE.
const statusInvalidGlobalWorkSize = -63

type event struct {
	mu   sync.Mutex
	done bool
	err  error
	cbs  []func(error)
}

func (e *event) complete(err error) {
	e.mu.Lock()
	if e.done {
		e.mu.Unlock()
		return
	}
	e.done, e.err = true, err
	cbs := e.cbs
	e.cbs = nil
	e.mu.Unlock()

	for _, cb := range cbs {
		go cb(err)
	}
}

func (e *event) OnComplete(fn func(error)) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.done {
		go fn(e.err)
		return nil
	}
	e.cbs = append(e.cbs, fn)
	return nil
}
