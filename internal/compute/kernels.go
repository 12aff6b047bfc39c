package compute

import (
	_ "embed"
	"encoding/binary"
)

//go:embed shaders/ca_step.wgsl
var stepKernelWGSL string

// StepKernelName identifies the neighbor/rule kernel on every backend.
const StepKernelName = "ca_step"

// StepKernelEntry is the WGSL entry point of the step kernel.
const StepKernelEntry = "main"

// StepKernelSource returns the WGSL source of the step kernel.
func StepKernelSource() string { return stepKernelWGSL }

// StepKernelLayout returns the binding layout of the step kernel:
// lattice uniform, rule, input cells, output cells.
func StepKernelLayout() []BindingKind {
	return []BindingKind{BindUniform, BindReadOnly, BindReadOnly, BindReadWrite}
}

// word reads the i-th little-endian u32 of a buffer.
func word(b []byte, i uint32) uint32 {
	return binary.LittleEndian.Uint32(b[i*4 : i*4+4])
}

// putWord writes the i-th little-endian u32 of a buffer.
func putWord(b []byte, i, v uint32) {
	binary.LittleEndian.PutUint32(b[i*4:i*4+4], v)
}

// caStep is the host mirror of shaders/ca_step.wgsl, executed by the CPU
// backend one invocation per work item. Buffers arrive in binding order.
func caStep(bufs [][]byte, id uint32) {
	lattice, rule, in, out := bufs[0], bufs[1], bufs[2], bufs[3]

	dim := word(lattice, 0)
	size := word(lattice, 1)
	cellCount := word(lattice, 2)
	if id >= cellCount {
		return
	}

	var coord [4]uint32
	rem := id
	for axis := uint32(0); axis < dim; axis++ {
		coord[axis] = rem % size
		rem /= size
	}

	pow3 := uint32(1)
	for axis := uint32(0); axis < dim; axis++ {
		pow3 *= 3
	}
	center := (pow3 - 1) / 2

	sum := uint32(0)
	for o := uint32(0); o < pow3; o++ {
		if o == center {
			continue
		}
		digits := o
		stride := uint32(1)
		nidx := uint32(0)
		for axis := uint32(0); axis < dim; axis++ {
			d := digits % 3
			digits /= 3
			c := (coord[axis] + d + size - 1) % size
			nidx += c * stride
			stride *= size
		}
		sum += word(in, nidx)
	}

	next := uint32(0)
	if word(in, id) != 0 {
		if word(rule, 0) <= sum && sum <= word(rule, 1) {
			next = 1
		}
	} else {
		if word(rule, 2) <= sum && sum <= word(rule, 3) {
			next = 1
		}
	}
	putWord(out, id, next)
}

func init() {
	registerHostKernel(StepKernelName, caStep)
}
