// Package patterns holds named seed shapes for the lattice engine.
package patterns

import "hyper-ca/internal/core"

// Pattern produces a flat seed array for the given lattice geometry.
type Pattern func(lat core.Lattice) []uint8

var patterns = map[string]Pattern{}

// Register adds a pattern under the provided name.
func Register(name string, p Pattern) {
	if name == "" || p == nil {
		return
	}
	patterns[name] = p
}

// Get returns the named pattern, if registered.
func Get(name string) (Pattern, bool) {
	p, ok := patterns[name]
	return p, ok
}

// Names lists the registered pattern names.
func Names() []string {
	out := make([]string, 0, len(patterns))
	for name := range patterns {
		out = append(out, name)
	}
	return out
}

// set marks a single cell alive, wrapping each coordinate onto the lattice.
func set(lat core.Lattice, cells []uint8, coord ...int) {
	wrapped := make([]int, lat.Dim)
	for axis := 0; axis < lat.Dim; axis++ {
		c := 0
		if axis < len(coord) {
			c = coord[axis]
		}
		wrapped[axis] = lat.Wrap(c)
	}
	cells[lat.Index(wrapped)] = 1
}

func init() {
	// A line of three cells along the Y axis through the lattice center.
	Register("blinker", func(lat core.Lattice) []uint8 {
		cells := make([]uint8, lat.Volume())
		m := lat.Size / 2
		for dy := -1; dy <= 1; dy++ {
			if lat.Dim == 4 {
				set(lat, cells, m, m+dy, m, m)
			} else {
				set(lat, cells, m, m+dy, m)
			}
		}
		return cells
	})

	// One line of cells per axis, all crossing at the lattice center.
	Register("cross", func(lat core.Lattice) []uint8 {
		cells := make([]uint8, lat.Volume())
		m := lat.Size / 2
		coord := make([]int, lat.Dim)
		for axis := 0; axis < lat.Dim; axis++ {
			for i := range coord {
				coord[i] = m
			}
			for v := 0; v < lat.Size; v++ {
				coord[axis] = v
				set(lat, cells, coord...)
			}
		}
		return cells
	})

	// A single living cell at the origin, handy for wraparound checks.
	Register("corner", func(lat core.Lattice) []uint8 {
		cells := make([]uint8, lat.Volume())
		set(lat, cells, make([]int, lat.Dim)...)
		return cells
	})
}
