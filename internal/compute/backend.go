// Package compute abstracts the data-parallel device the lattice engine runs
// on. Two backends exist: a wgpu HAL device and a host-side worker pool that
// executes registered kernel mirrors. Both observe the same ordering model:
// Write and Dispatch are fire-and-forget from the caller's perspective and
// serialize per buffer, Read is the sole synchronization point and blocks
// until all previously enqueued work has completed.
package compute

import (
	"errors"
	"fmt"
	"log/slog"
)

var (
	// ErrDeviceUnavailable reports that no compatible adapter was found.
	ErrDeviceUnavailable = errors.New("compute: no compatible device")
	// ErrAllocationFailed reports a buffer request beyond device limits.
	ErrAllocationFailed = errors.New("compute: allocation failed")
	// ErrUnknownKernel reports a kernel with no implementation on the backend.
	ErrUnknownKernel = errors.New("compute: unknown kernel")
	// ErrClosed reports use of a backend after Close.
	ErrClosed = errors.New("compute: backend closed")
)

// BufferUsage declares how a buffer is accessed by kernels.
type BufferUsage int

const (
	// UsageStorage marks a cell buffer read and written by kernels.
	UsageStorage BufferUsage = iota
	// UsageUniform marks a small parameter buffer read by every work item.
	UsageUniform
)

// BindingKind describes how a kernel accesses one bound buffer slot.
type BindingKind int

const (
	// BindUniform is a uniform parameter block.
	BindUniform BindingKind = iota
	// BindReadOnly is read-only storage.
	BindReadOnly
	// BindReadWrite is read-write storage.
	BindReadWrite
)

// Buffer is an opaque device allocation. Buffers are only meaningful to the
// backend that allocated them.
type Buffer interface {
	Size() uint64
}

// Kernel is a compiled compute entry point.
type Kernel interface {
	Name() string
}

// Binding is a fixed association of a kernel with a set of buffers, built
// once and dispatched many times.
type Binding interface{}

// Backend is the device contract the lattice engine composes. Implementations
// are not safe for concurrent use; the engine issues calls from one goroutine.
type Backend interface {
	// Name identifies the backend for logs.
	Name() string
	// Allocate creates a device buffer of the given byte size.
	Allocate(label string, size uint64, usage BufferUsage) (Buffer, error)
	// Write copies host bytes into the buffer at the given offset. Writes to
	// the same buffer are ordered; completion is not awaited.
	Write(buf Buffer, offset uint64, data []byte) error
	// Read blocks until all enqueued work targeting the backend has completed,
	// then returns a host copy of the first size bytes of the buffer.
	Read(buf Buffer, size uint64) ([]byte, error)
	// Compile builds the named kernel from WGSL source. The layout lists the
	// access kind of each binding slot in binding order.
	Compile(name, wgsl, entry string, layout []BindingKind) (Kernel, error)
	// Bind associates buffers with the kernel's binding slots, in slot order.
	Bind(k Kernel, buffers []Buffer) (Binding, error)
	// Dispatch enqueues one kernel invocation over a 3D grid of workgroups.
	Dispatch(b Binding, groups [3]uint32) error
	// Release frees a buffer. The buffer must not be used afterwards.
	Release(buf Buffer)
	// Close releases the device and everything allocated from it.
	Close()
}

// workgroupSize is the per-workgroup invocation count used by every kernel
// in this module, matching the @workgroup_size attribute in the WGSL.
const workgroupSize = 64

// maxGroupsPerDim caps the workgroup count on a single dispatch axis. The
// WebGPU limit is 65535; staying at a power of two below it keeps the linear
// work-item id arithmetic exact.
const maxGroupsPerDim = 32768

// WorkGroups returns a 3D workgroup grid covering at least items work items,
// spilling onto the Y axis when a single row of workgroups is not enough.
// Kernels reconstruct a linear id from the grid and early-return past items.
func WorkGroups(items uint64) [3]uint32 {
	gx := (items + workgroupSize - 1) / workgroupSize
	if gx == 0 {
		gx = 1
	}
	gy := uint64(1)
	if gx > maxGroupsPerDim {
		gy = (gx + maxGroupsPerDim - 1) / maxGroupsPerDim
		gx = maxGroupsPerDim
	}
	return [3]uint32{uint32(gx), uint32(gy), 1}
}

// Invocations returns the total work-item count of a workgroup grid.
func Invocations(groups [3]uint32) uint64 {
	return uint64(groups[0]) * uint64(groups[1]) * uint64(groups[2]) * workgroupSize
}

var logger = slog.Default()

// SetLogger replaces the package logger.
func SetLogger(l *slog.Logger) {
	if l != nil {
		logger = l
	}
}

// Open returns a backend of the requested kind: "gpu", "cpu", or "auto".
// The auto kind tries the device backend first and falls back to the host
// backend when no adapter is usable.
func Open(kind string) (Backend, error) {
	switch kind {
	case "cpu":
		return NewCPU(), nil
	case "gpu":
		return NewWebGPU()
	case "auto", "":
		be, err := NewWebGPU()
		if err != nil {
			logger.Warn("compute: no usable adapter, falling back to host backend", "error", err)
			return NewCPU(), nil
		}
		return be, nil
	default:
		return nil, fmt.Errorf("compute: unknown backend kind %q", kind)
	}
}
