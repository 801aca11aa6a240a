// Package compute defines the contract between the search dispatcher and the
// accelerator backends that run the profanity kernels.
//
// A backend exposes devices; each device owns buffers, kernels and exactly one
// in-order queue. Completion is reported asynchronously through Event
// callbacks that run on a goroutine other than the one that enqueued the work.
package compute

import (
	"errors"
	"fmt"
)

// Kernel names shared by every backend.
const (
	KernelInit              = "profanity_init"
	KernelInverse           = "profanity_inverse"
	KernelIterate           = "profanity_iterate"
	KernelTransformContract = "profanity_transform_contract"
)

// Argument positions of the fixed kernels.
const (
	ArgInitPrecomp = iota
	ArgInitDeltaX
	ArgInitPrevLambda
	ArgInitResult
	ArgInitSeed
	ArgInitSeedX
	ArgInitSeedY
)

const (
	ArgInverseDeltaX = iota
	ArgInverseInverse
)

const (
	ArgIterateDeltaX = iota
	ArgIterateInverse
	ArgIteratePrevLambda
)

const ArgTransformInverse = 0

const (
	ArgScoreInverse = iota
	ArgScoreResult
	ArgScoreData1
	ArgScoreData2
	ArgScoreMax
)

// OpenCL status codes a launch may fail with.
const (
	StatusInvalidWorkGroupSize = -54
	StatusInvalidWorkItemSize  = -55
)

// ErrNotCompiled is returned by backends that were left out of the build.
var ErrNotCompiled = errors.New("backend support not compiled")

// DeviceInfo describes an enumerated device.
type DeviceInfo struct {
	Index        int
	Name         string
	GlobalMem    uint64
	ComputeUnits int
}

// ProgramOptions configure how the kernel program is built.
type ProgramOptions struct {
	KernelDir   string
	InverseSize int
	MaxScore    int
}

// Range is a one-dimensional launch geometry. Local == 0 lets the runtime pick.
type Range struct {
	Offset int
	Global int
	Local  int
}

// Backend enumerates and opens devices.
type Backend interface {
	Name() string
	Devices() ([]DeviceInfo, error)
	// Open builds the kernel program for the given device indices.
	Open(indices []int, opts ProgramOptions) ([]Device, error)
}

// Device owns the resources of one accelerator.
type Device interface {
	Info() DeviceInfo
	// NewBuffer allocates size bytes of device memory, initialised from host when non-nil.
	NewBuffer(size int, host []byte) (Buffer, error)
	NewKernel(name string) (Kernel, error)
	Queue() Queue
	Release()
}

// Buffer is device memory.
type Buffer interface {
	Size() int
	Release()
}

// Kernel is a compiled entry point with bound arguments. Arguments are
// captured when the kernel is enqueued.
type Kernel interface {
	Name() string
	// SetArg binds a Buffer, uint8, uint32, uint64 or Ulong4.
	SetArg(index int, value any) error
	Release()
}

// Queue is an in-order command queue.
type Queue interface {
	// EnqueueKernel fails with a *LaunchError when the runtime rejects the launch.
	EnqueueKernel(k Kernel, r Range) error
	// EnqueueRead copies buf into dst once all earlier commands have run.
	// dst must not be touched until the returned event completes.
	EnqueueRead(buf Buffer, dst []byte) (Event, error)
	// EnqueueMarker returns an event that completes after all earlier commands.
	EnqueueMarker() (Event, error)
	Flush() error
	// Finish blocks until every queued command has completed.
	Finish() error
	Release()
}

// Event reports completion of a queued command.
type Event interface {
	// OnComplete registers fn; it runs exactly once, on another goroutine,
	// even if the command already completed.
	OnComplete(fn func(error)) error
}

// LaunchError is a kernel launch rejected by the runtime.
type LaunchError struct {
	Kernel string
	Status int
	Local  int
}

func (e *LaunchError) Error() string {
	return fmt.Sprintf("launch %s (local size %d) failed with status %d", e.Kernel, e.Local, e.Status)
}

// IsInvalidWorkSize reports whether err is a launch rejected for its
// work-group or work-item size.
func IsInvalidWorkSize(err error) bool {
	var le *LaunchError
	if !errors.As(err, &le) {
		return false
	}
	return le.Status == StatusInvalidWorkGroupSize || le.Status == StatusInvalidWorkItemSize
}
