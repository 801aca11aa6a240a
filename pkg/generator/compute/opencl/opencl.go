//go:build opencl
// +build opencl

// Package opencl runs the profanity kernels on OpenCL GPUs.
package opencl

/*
#cgo CFLAGS: -DCL_TARGET_OPENCL_VERSION=120 -I${SRCDIR}/../../../../deps/opencl-headers
#cgo windows LDFLAGS: -L${SRCDIR}/../../../../deps/lib -lOpenCL
#cgo linux LDFLAGS: -lOpenCL
#cgo darwin LDFLAGS: -framework OpenCL

#ifdef __APPLE__
#include <OpenCL/opencl.h>
#else
#include <CL/cl.h>
#endif

#include <stdint.h>
#include <stdlib.h>
#include <string.h>

cl_int keyhunter_set_callback(cl_event ev, uintptr_t handle);
*/
import "C"

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime/cgo"
	"strings"
	"sync/atomic"
	"unsafe"

	"github.com/Amr-9/keyhunter/pkg/generator/compute"
)

// KernelFiles are concatenated, in order, into the program source.
var KernelFiles = []string{"keccak.cl", "profanity.cl"}

// Backend enumerates the GPUs of the first OpenCL platform.
type Backend struct {
	platform C.cl_platform_id
	ids      []C.cl_device_id
}

// New locates the platform and its GPU devices.
func New() (compute.Backend, error) {
	var numPlatforms C.cl_uint
	if C.clGetPlatformIDs(0, nil, &numPlatforms) != C.CL_SUCCESS || numPlatforms == 0 {
		return nil, errors.New("no OpenCL platforms")
	}
	platforms := make([]C.cl_platform_id, numPlatforms)
	C.clGetPlatformIDs(numPlatforms, &platforms[0], nil)

	b := &Backend{platform: platforms[0]}

	var numDevices C.cl_uint
	if C.clGetDeviceIDs(b.platform, C.CL_DEVICE_TYPE_GPU, 0, nil, &numDevices) != C.CL_SUCCESS || numDevices == 0 {
		return nil, errors.New("no GPU devices")
	}
	b.ids = make([]C.cl_device_id, numDevices)
	C.clGetDeviceIDs(b.platform, C.CL_DEVICE_TYPE_GPU, numDevices, &b.ids[0], nil)
	return b, nil
}

func (b *Backend) Name() string { return "opencl" }

func (b *Backend) Devices() ([]compute.DeviceInfo, error) {
	infos := make([]compute.DeviceInfo, len(b.ids))
	for i, id := range b.ids {
		infos[i] = deviceInfo(i, id)
	}
	return infos, nil
}

func deviceInfo(index int, id C.cl_device_id) compute.DeviceInfo {
	info := compute.DeviceInfo{Index: index}

	var size C.size_t
	if C.clGetDeviceInfo(id, C.CL_DEVICE_NAME, 0, nil, &size) == C.CL_SUCCESS && size > 0 {
		name := make([]byte, size)
		C.clGetDeviceInfo(id, C.CL_DEVICE_NAME, size, unsafe.Pointer(&name[0]), nil)
		info.Name = strings.TrimRight(string(name), "\x00 ")
	}

	var mem C.cl_ulong
	C.clGetDeviceInfo(id, C.CL_DEVICE_GLOBAL_MEM_SIZE, C.size_t(unsafe.Sizeof(mem)), unsafe.Pointer(&mem), nil)
	info.GlobalMem = uint64(mem)

	var units C.cl_uint
	C.clGetDeviceInfo(id, C.CL_DEVICE_MAX_COMPUTE_UNITS, C.size_t(unsafe.Sizeof(units)), unsafe.Pointer(&units), nil)
	info.ComputeUnits = int(units)
	return info
}

// program is the context and compiled program shared by the opened devices.
type program struct {
	context C.cl_context
	program C.cl_program
	refs    atomic.Int32
}

func (p *program) release() {
	if p.refs.Add(-1) > 0 {
		return
	}
	if p.program != nil {
		C.clReleaseProgram(p.program)
	}
	if p.context != nil {
		C.clReleaseContext(p.context)
	}
}

// Open creates one context for the selected devices and builds the kernel
// program for all of them.
func (b *Backend) Open(indices []int, opts compute.ProgramOptions) ([]compute.Device, error) {
	if len(indices) == 0 {
		return nil, errors.New("no devices selected")
	}
	ids := make([]C.cl_device_id, len(indices))
	for i, idx := range indices {
		if idx < 0 || idx >= len(b.ids) {
			return nil, fmt.Errorf("GPU %d does not exist", idx)
		}
		ids[i] = b.ids[idx]
	}

	source, err := loadSource(opts.KernelDir)
	if err != nil {
		return nil, err
	}

	var ret C.cl_int
	p := &program{}
	p.refs.Store(1)
	p.context = C.clCreateContext(nil, C.cl_uint(len(ids)), &ids[0], nil, nil, &ret)
	if ret != C.CL_SUCCESS {
		return nil, fmt.Errorf("create context: status %d", ret)
	}

	if err := p.build(ids, source, opts); err != nil {
		p.release()
		return nil, err
	}

	devs := make([]compute.Device, 0, len(indices))
	for i, idx := range indices {
		q := C.clCreateCommandQueue(p.context, ids[i], 0, &ret)
		if ret != C.CL_SUCCESS {
			for _, d := range devs {
				d.Release()
			}
			p.release()
			return nil, fmt.Errorf("GPU %d: create queue: status %d", idx, ret)
		}
		p.refs.Add(1)
		devs = append(devs, &device{
			info:  deviceInfo(idx, ids[i]),
			prog:  p,
			queue: &queue{q: q},
		})
	}
	p.release()
	return devs, nil
}

func loadSource(dir string) (string, error) {
	var sb strings.Builder
	for _, name := range KernelFiles {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return "", fmt.Errorf("read kernel source: %w", err)
		}
		sb.Write(data)
		sb.WriteByte('\n')
	}
	return sb.String(), nil
}

func (p *program) build(ids []C.cl_device_id, source string, opts compute.ProgramOptions) error {
	var ret C.cl_int
	src := C.CString(source)
	defer C.free(unsafe.Pointer(src))

	length := C.size_t(len(source))
	p.program = C.clCreateProgramWithSource(p.context, 1, &src, &length, &ret)
	if ret != C.CL_SUCCESS {
		return fmt.Errorf("create program: status %d", ret)
	}

	flags := C.CString(fmt.Sprintf("-D PROFANITY_INVERSE_SIZE=%d -D PROFANITY_MAX_SCORE=%d", opts.InverseSize, opts.MaxScore))
	defer C.free(unsafe.Pointer(flags))

	ret = C.clBuildProgram(p.program, C.cl_uint(len(ids)), &ids[0], flags, nil, nil)
	if ret == C.CL_SUCCESS {
		return nil
	}

	var logs []string
	for _, id := range ids {
		var logSize C.size_t
		C.clGetProgramBuildInfo(p.program, id, C.CL_PROGRAM_BUILD_LOG, 0, nil, &logSize)
		if logSize <= 1 {
			continue
		}
		buildLog := make([]byte, logSize)
		C.clGetProgramBuildInfo(p.program, id, C.CL_PROGRAM_BUILD_LOG, logSize, unsafe.Pointer(&buildLog[0]), nil)
		logs = append(logs, strings.TrimRight(string(buildLog), "\x00\n"))
	}
	return fmt.Errorf("build program: status %d\n%s", ret, strings.Join(logs, "\n"))
}

type device struct {
	info  compute.DeviceInfo
	prog  *program
	queue *queue
}

func (d *device) Info() compute.DeviceInfo { return d.info }

func (d *device) NewBuffer(size int, host []byte) (compute.Buffer, error) {
	if len(host) > size {
		return nil, fmt.Errorf("host data of %d bytes exceeds buffer size %d", len(host), size)
	}

	var ret C.cl_int
	var mem C.cl_mem
	if host == nil {
		mem = C.clCreateBuffer(d.prog.context, C.CL_MEM_READ_WRITE, C.size_t(size), nil, &ret)
	} else {
		init := host
		if len(init) < size {
			init = make([]byte, size)
			copy(init, host)
		}
		mem = C.clCreateBuffer(d.prog.context, C.CL_MEM_READ_WRITE|C.CL_MEM_COPY_HOST_PTR,
			C.size_t(size), unsafe.Pointer(&init[0]), &ret)
	}
	if ret != C.CL_SUCCESS {
		return nil, fmt.Errorf("create buffer of %d bytes: status %d", size, ret)
	}
	return &buffer{mem: mem, size: size}, nil
}

func (d *device) NewKernel(name string) (compute.Kernel, error) {
	cname := C.CString(name)
	defer C.free(unsafe.Pointer(cname))

	var ret C.cl_int
	k := C.clCreateKernel(d.prog.program, cname, &ret)
	if ret != C.CL_SUCCESS {
		return nil, fmt.Errorf("create kernel %s: status %d", name, ret)
	}
	return &kernel{k: k, name: name}, nil
}

func (d *device) Queue() compute.Queue { return d.queue }

func (d *device) Release() {
	d.queue.Release()
	d.prog.release()
}

type buffer struct {
	mem  C.cl_mem
	size int
}

func (b *buffer) Size() int { return b.size }

func (b *buffer) Release() {
	if b.mem != nil {
		C.clReleaseMemObject(b.mem)
		b.mem = nil
	}
}

type kernel struct {
	k    C.cl_kernel
	name string
}

func (k *kernel) Name() string { return k.name }

func (k *kernel) SetArg(i int, v any) error {
	var ret C.cl_int
	idx := C.cl_uint(i)

	switch v := v.(type) {
	case *buffer:
		ret = C.clSetKernelArg(k.k, idx, C.size_t(unsafe.Sizeof(v.mem)), unsafe.Pointer(&v.mem))
	case uint8:
		x := C.cl_uchar(v)
		ret = C.clSetKernelArg(k.k, idx, C.size_t(unsafe.Sizeof(x)), unsafe.Pointer(&x))
	case uint32:
		x := C.cl_uint(v)
		ret = C.clSetKernelArg(k.k, idx, C.size_t(unsafe.Sizeof(x)), unsafe.Pointer(&x))
	case uint64:
		x := C.cl_ulong(v)
		ret = C.clSetKernelArg(k.k, idx, C.size_t(unsafe.Sizeof(x)), unsafe.Pointer(&x))
	case compute.Ulong4:
		// cl_ulong4 is four little-endian limbs, s0 first
		x := v.LittleEndian()
		ret = C.clSetKernelArg(k.k, idx, C.size_t(len(x)), unsafe.Pointer(&x[0]))
	default:
		return fmt.Errorf("%s argument %d: unsupported type %T", k.name, i, v)
	}

	if ret != C.CL_SUCCESS {
		return fmt.Errorf("%s argument %d: status %d", k.name, i, ret)
	}
	return nil
}

func (k *kernel) Release() {
	if k.k != nil {
		C.clReleaseKernel(k.k)
		k.k = nil
	}
}

type queue struct {
	q C.cl_command_queue
}

func (q *queue) EnqueueKernel(k compute.Kernel, r compute.Range) error {
	ck, ok := k.(*kernel)
	if !ok {
		return fmt.Errorf("kernel %s from another backend", k.Name())
	}

	global := C.size_t(r.Global)
	var offset, local C.size_t
	var pOffset, pLocal *C.size_t
	if r.Offset != 0 {
		offset = C.size_t(r.Offset)
		pOffset = &offset
	}
	if r.Local != 0 {
		local = C.size_t(r.Local)
		pLocal = &local
	}

	ret := C.clEnqueueNDRangeKernel(q.q, ck.k, 1, pOffset, &global, pLocal, 0, nil, nil)
	if ret != C.CL_SUCCESS {
		return &compute.LaunchError{Kernel: ck.name, Status: int(ret), Local: r.Local}
	}
	return nil
}

// EnqueueRead reads into C staging memory; dst is filled on completion,
// before the callback runs.
func (q *queue) EnqueueRead(buf compute.Buffer, dst []byte) (compute.Event, error) {
	b, ok := buf.(*buffer)
	if !ok {
		return nil, errors.New("buffer from another backend")
	}
	if len(dst) == 0 || len(dst) > b.size {
		return nil, fmt.Errorf("read of %d bytes from a %d byte buffer", len(dst), b.size)
	}

	staging := C.malloc(C.size_t(len(dst)))
	var ev C.cl_event
	ret := C.clEnqueueReadBuffer(q.q, b.mem, C.CL_FALSE, 0, C.size_t(len(dst)), staging, 0, nil, &ev)
	if ret != C.CL_SUCCESS {
		C.free(staging)
		return nil, fmt.Errorf("enqueue read: status %d", ret)
	}

	return &event{ev: ev, before: func(err error) {
		if err == nil {
			copy(dst, unsafe.Slice((*byte)(staging), len(dst)))
		}
		C.free(staging)
	}}, nil
}

func (q *queue) EnqueueMarker() (compute.Event, error) {
	var ev C.cl_event
	if ret := C.clEnqueueMarkerWithWaitList(q.q, 0, nil, &ev); ret != C.CL_SUCCESS {
		return nil, fmt.Errorf("enqueue marker: status %d", ret)
	}
	return &event{ev: ev}, nil
}

func (q *queue) Flush() error {
	if ret := C.clFlush(q.q); ret != C.CL_SUCCESS {
		return fmt.Errorf("flush: status %d", ret)
	}
	return nil
}

func (q *queue) Finish() error {
	if ret := C.clFinish(q.q); ret != C.CL_SUCCESS {
		return fmt.Errorf("finish: status %d", ret)
	}
	return nil
}

func (q *queue) Release() {
	if q.q != nil {
		C.clReleaseCommandQueue(q.q)
		q.q = nil
	}
}

// event wraps a cl_event. The event is released after its callback fired,
// so OnComplete must be called exactly once.
type event struct {
	ev     C.cl_event
	before func(error)
}

func (e *event) OnComplete(fn func(error)) error {
	h := cgo.NewHandle(func(status C.cl_int) {
		var err error
		if status < 0 {
			err = fmt.Errorf("command failed with status %d", status)
		}
		if e.before != nil {
			e.before(err)
		}
		fn(err)
	})

	if ret := C.keyhunter_set_callback(e.ev, C.uintptr_t(h)); ret != C.CL_SUCCESS {
		h.Delete()
		return fmt.Errorf("set event callback: status %d", ret)
	}
	return nil
}

//export goEventComplete
func goEventComplete(handle C.uintptr_t, status C.cl_int) {
	h := cgo.Handle(handle)
	fn := h.Value().(func(C.cl_int))
	h.Delete()
	go fn(status)
}
