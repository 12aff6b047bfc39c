package compute

import (
	"fmt"
	"runtime"
	"sync"
)

// hostKernelFunc is the host mirror of a WGSL entry point. It is invoked
// once per work item with the item's linear id and the bound buffers in
// binding order.
type hostKernelFunc func(bufs [][]byte, id uint32)

var hostKernels = map[string]hostKernelFunc{}

// registerHostKernel makes a kernel mirror available to CPU backends under
// the kernel's name.
func registerHostKernel(name string, fn hostKernelFunc) {
	if name == "" || fn == nil {
		return
	}
	hostKernels[name] = fn
}

// cpuMaxAlloc bounds a single host buffer. Requests beyond it fail the same
// way an oversized device allocation would.
const cpuMaxAlloc = 1 << 30

type cpuBuffer struct {
	label string
	data  []byte
}

func (b *cpuBuffer) Size() uint64 { return uint64(len(b.data)) }

type cpuKernel struct {
	name  string
	fn    hostKernelFunc
	slots int
}

func (k *cpuKernel) Name() string { return k.name }

type cpuBinding struct {
	kernel *cpuKernel
	bufs   []*cpuBuffer
}

// CPU is a host-side Backend that executes registered kernel mirrors across
// a bounded worker pool. It is the fallback when no adapter is usable and
// the oracle the tests run the engine against. Dispatch completes before
// returning, which trivially satisfies the ordering model.
type CPU struct {
	workers int
	closed  bool
}

// NewCPU returns a host backend sized to the available parallelism.
func NewCPU() *CPU {
	return &CPU{workers: runtime.GOMAXPROCS(0)}
}

// Name identifies the backend.
func (c *CPU) Name() string { return "cpu" }

// Allocate creates a zero-filled host buffer.
func (c *CPU) Allocate(label string, size uint64, usage BufferUsage) (Buffer, error) {
	if c.closed {
		return nil, ErrClosed
	}
	if size > cpuMaxAlloc {
		return nil, fmt.Errorf("%w: %s wants %d bytes, limit %d", ErrAllocationFailed, label, size, cpuMaxAlloc)
	}
	return &cpuBuffer{label: label, data: make([]byte, size)}, nil
}

// Write copies data into the buffer at the given offset.
func (c *CPU) Write(buf Buffer, offset uint64, data []byte) error {
	if c.closed {
		return ErrClosed
	}
	b := buf.(*cpuBuffer)
	if offset+uint64(len(data)) > uint64(len(b.data)) {
		return fmt.Errorf("compute: write past end of %s", b.label)
	}
	copy(b.data[offset:], data)
	return nil
}

// Read returns a copy of the first size bytes of the buffer.
func (c *CPU) Read(buf Buffer, size uint64) ([]byte, error) {
	if c.closed {
		return nil, ErrClosed
	}
	b := buf.(*cpuBuffer)
	if size > uint64(len(b.data)) {
		return nil, fmt.Errorf("compute: read past end of %s", b.label)
	}
	out := make([]byte, size)
	copy(out, b.data)
	return out, nil
}

// Compile resolves the named kernel from the host mirror registry. The WGSL
// source is ignored; the layout fixes the binding slot count.
func (c *CPU) Compile(name, wgsl, entry string, layout []BindingKind) (Kernel, error) {
	if c.closed {
		return nil, ErrClosed
	}
	fn, ok := hostKernels[name]
	if !ok {
		return nil, fmt.Errorf("%w: no host mirror for %q", ErrUnknownKernel, name)
	}
	return &cpuKernel{name: name, fn: fn, slots: len(layout)}, nil
}

// Bind fixes the buffer set a dispatch will hand to the kernel.
func (c *CPU) Bind(k Kernel, buffers []Buffer) (Binding, error) {
	if c.closed {
		return nil, ErrClosed
	}
	ck := k.(*cpuKernel)
	if len(buffers) != ck.slots {
		return nil, fmt.Errorf("compute: kernel %s wants %d buffers, got %d", ck.name, ck.slots, len(buffers))
	}
	bufs := make([]*cpuBuffer, len(buffers))
	for i, b := range buffers {
		bufs[i] = b.(*cpuBuffer)
	}
	return &cpuBinding{kernel: ck, bufs: bufs}, nil
}

// Dispatch runs the kernel for every work item in the grid, fanning bands of
// ids across the worker pool. Work items only write their own output word,
// so bands need no coordination beyond the final join.
func (c *CPU) Dispatch(b Binding, groups [3]uint32) error {
	if c.closed {
		return ErrClosed
	}
	cb := b.(*cpuBinding)
	bufs := make([][]byte, len(cb.bufs))
	for i, buf := range cb.bufs {
		bufs[i] = buf.data
	}

	total := Invocations(groups)
	workers := c.workers
	if workers < 1 {
		workers = 1
	}
	band := (total + uint64(workers) - 1) / uint64(workers)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		lo := uint64(w) * band
		if lo >= total {
			break
		}
		hi := lo + band
		if hi > total {
			hi = total
		}
		wg.Add(1)
		go func(lo, hi uint64) {
			defer wg.Done()
			for id := lo; id < hi; id++ {
				cb.kernel.fn(bufs, uint32(id))
			}
		}(lo, hi)
	}
	wg.Wait()
	return nil
}

// Release drops the buffer's storage.
func (c *CPU) Release(buf Buffer) {
	if b, ok := buf.(*cpuBuffer); ok {
		b.data = nil
	}
}

// Close marks the backend unusable.
func (c *CPU) Close() { c.closed = true }
