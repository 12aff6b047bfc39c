// Package engine owns double-buffered lattice state on a compute backend and
// advances it one generation per step. Stepping is a pure device-side
// transition: the kernel reads the current buffer and writes the other, then
// the engine swaps which one is current. Host readback happens only in State
// and Slice, so a caller can advance many generations before paying one
// round trip.
package engine

import (
	"encoding/binary"
	"errors"
	"fmt"

	"hyper-ca/internal/compute"
	"hyper-ca/internal/core"
)

var (
	// ErrDimension reports a dimension count other than 3 or 4.
	ErrDimension = errors.New("engine: dimension must be 3 or 4")
	// ErrSizeMismatch reports a seed array whose length is not size^dim.
	ErrSizeMismatch = errors.New("engine: seed length mismatch")
	// ErrNotFourD reports a slice request on a non-4D lattice.
	ErrNotFourD = errors.New("engine: slice requires a 4D lattice")
	// ErrClosed reports use of an engine after Close.
	ErrClosed = errors.New("engine: closed")
)

// Engine maintains ping-pong cell buffers, the rule parameter buffer, and a
// generation counter for one lattice. It is driven from a single goroutine.
type Engine struct {
	backend compute.Backend
	lat     core.Lattice
	rule    core.Rule

	cells    [2]compute.Buffer
	latBuf   compute.Buffer
	ruleBuf  compute.Buffer
	bindings [2]compute.Binding
	groups   [3]uint32

	// cur is the buffer holding the last committed generation. bindings[cur]
	// reads cells[cur] and writes cells[1-cur].
	cur        int
	generation uint64
	closed     bool
}

// New constructs an engine for a dim-dimensional lattice of per-axis extent
// size. Both cell buffers start all dead. The step kernel is compiled and
// bound in both ping-pong directions up front, so Step never rebuilds
// dispatch state.
func New(backend compute.Backend, dim, size int, rule core.Rule) (*Engine, error) {
	if dim != 3 && dim != 4 {
		return nil, fmt.Errorf("%w: got %d", ErrDimension, dim)
	}
	lat := core.NewLattice(dim, size)
	volume := lat.Volume()
	cellBytes := uint64(volume) * 4

	e := &Engine{
		backend: backend,
		lat:     lat,
		rule:    rule,
		groups:  compute.WorkGroups(uint64(volume)),
	}

	fail := func(err error) (*Engine, error) {
		e.release()
		return nil, err
	}

	var err error
	if e.latBuf, err = backend.Allocate("ca_lattice", 16, compute.UsageUniform); err != nil {
		return fail(err)
	}
	if e.ruleBuf, err = backend.Allocate("ca_rule", 16, compute.UsageStorage); err != nil {
		return fail(err)
	}
	for i := range e.cells {
		label := fmt.Sprintf("ca_cells_%c", 'a'+i)
		if e.cells[i], err = backend.Allocate(label, cellBytes, compute.UsageStorage); err != nil {
			return fail(err)
		}
	}

	latWords := [4]uint32{uint32(dim), uint32(lat.Size), uint32(volume), 0}
	if err = backend.Write(e.latBuf, 0, wordBytes(latWords[:])); err != nil {
		return fail(err)
	}
	ruleWords := rule.Words()
	if err = backend.Write(e.ruleBuf, 0, wordBytes(ruleWords[:])); err != nil {
		return fail(err)
	}
	// Defined all-dead state before the first seed.
	zero := make([]byte, cellBytes)
	for i := range e.cells {
		if err = backend.Write(e.cells[i], 0, zero); err != nil {
			return fail(err)
		}
	}

	kernel, err := backend.Compile(
		compute.StepKernelName,
		compute.StepKernelSource(),
		compute.StepKernelEntry,
		compute.StepKernelLayout(),
	)
	if err != nil {
		return fail(err)
	}
	for i := range e.bindings {
		bufs := []compute.Buffer{e.latBuf, e.ruleBuf, e.cells[i], e.cells[1-i]}
		if e.bindings[i], err = backend.Bind(kernel, bufs); err != nil {
			return fail(err)
		}
	}
	return e, nil
}

// Lattice returns the engine's geometry.
func (e *Engine) Lattice() core.Lattice { return e.lat }

// Rule returns the rule applied on the next Step.
func (e *Engine) Rule() core.Rule { return e.rule }

// Generation returns the number of steps since the last seed.
func (e *Engine) Generation() uint64 { return e.generation }

// Seed writes the given flat cell array as generation zero. The array length
// must equal size^dim; anything nonzero counts as alive.
func (e *Engine) Seed(cells []uint8) error {
	if e.closed {
		return ErrClosed
	}
	if len(cells) != e.lat.Volume() {
		return fmt.Errorf("%w: got %d cells, want %d", ErrSizeMismatch, len(cells), e.lat.Volume())
	}
	data := make([]byte, len(cells)*4)
	for i, c := range cells {
		if c != 0 {
			binary.LittleEndian.PutUint32(data[i*4:], 1)
		}
	}
	target := 1 - e.cur
	if err := e.backend.Write(e.cells[target], 0, data); err != nil {
		return err
	}
	e.cur = target
	e.generation = 0
	return nil
}

// SeedRandom seeds the lattice with independent Bernoulli(density) samples
// drawn deterministically from the given seed.
func (e *Engine) SeedRandom(density float64, seed int64) error {
	if e.closed {
		return ErrClosed
	}
	cells := make([]uint8, e.lat.Volume())
	core.FillBernoulli(core.NewRNG(seed).Source(), cells, density)
	return e.Seed(cells)
}

// Step advances one generation: it dispatches the step kernel reading the
// current buffer and writing the other, swaps which buffer is current, and
// increments the generation counter. No host readback occurs.
func (e *Engine) Step() error {
	if e.closed {
		return ErrClosed
	}
	if err := e.backend.Dispatch(e.bindings[e.cur], e.groups); err != nil {
		return err
	}
	e.cur = 1 - e.cur
	e.generation++
	return nil
}

// State performs a blocking readback of the current buffer and returns the
// flat cell array as 0/1 values. The returned slice is a copy the caller may
// hold indefinitely.
func (e *Engine) State() ([]uint8, error) {
	if e.closed {
		return nil, ErrClosed
	}
	volume := e.lat.Volume()
	raw, err := e.backend.Read(e.cells[e.cur], uint64(volume)*4)
	if err != nil {
		return nil, err
	}
	cells := make([]uint8, volume)
	for i := range cells {
		if binary.LittleEndian.Uint32(raw[i*4:]) != 0 {
			cells[i] = 1
		}
	}
	return cells, nil
}

// Slice reads back the current state and returns its 3D cross-section at
// index w along the fourth axis. The index is clamped, not validated, since
// it tracks a continuously adjusted display control. Only 4D engines can be
// sliced.
func (e *Engine) Slice(w int) ([]uint8, error) {
	if e.closed {
		return nil, ErrClosed
	}
	if e.lat.Dim != 4 {
		return nil, ErrNotFourD
	}
	cells, err := e.State()
	if err != nil {
		return nil, err
	}
	return e.lat.SliceW(cells, w), nil
}

// UpdateRules overwrites the rule parameter buffer in place. A step already
// dispatched keeps the rule it was dispatched with; the new rule applies
// from the next Step.
func (e *Engine) UpdateRules(rule core.Rule) error {
	if e.closed {
		return ErrClosed
	}
	words := rule.Words()
	if err := e.backend.Write(e.ruleBuf, 0, wordBytes(words[:])); err != nil {
		return err
	}
	e.rule = rule
	return nil
}

// Close releases both cell buffers and the parameter buffers. The engine
// must not be used afterwards; the backend itself stays open.
func (e *Engine) Close() {
	if e.closed {
		return
	}
	e.release()
	e.closed = true
}

func (e *Engine) release() {
	for i := range e.cells {
		if e.cells[i] != nil {
			e.backend.Release(e.cells[i])
			e.cells[i] = nil
		}
	}
	if e.latBuf != nil {
		e.backend.Release(e.latBuf)
		e.latBuf = nil
	}
	if e.ruleBuf != nil {
		e.backend.Release(e.ruleBuf)
		e.ruleBuf = nil
	}
}

// wordBytes encodes device words as little-endian bytes.
func wordBytes(words []uint32) []byte {
	out := make([]byte, len(words)*4)
	for i, w := range words {
		binary.LittleEndian.PutUint32(out[i*4:], w)
	}
	return out
}
