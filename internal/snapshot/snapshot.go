// Package snapshot defines the sparse export record external collaborators
// consume: lattice geometry, generation, rules, and the linear indices of
// living cells. At the expected fill rates the index list is far smaller
// than the flat array it reconstructs.
package snapshot

import (
	"errors"
	"fmt"

	"hyper-ca/internal/core"
)

// ErrIndexRange reports a living-cell index outside the lattice volume.
var ErrIndexRange = errors.New("snapshot: cell index out of range")

// Snapshot is the persisted/exported state record.
type Snapshot struct {
	Dimension  int       `json:"dimension"`
	Size       int       `json:"size"`
	Generation uint64    `json:"generation"`
	Rules      core.Rule `json:"rules"`
	Alive      []int     `json:"livingCellIndices"`
}

// Capture builds a snapshot from a flat cell array. The array is not
// retained.
func Capture(lat core.Lattice, generation uint64, rule core.Rule, cells []uint8) Snapshot {
	alive := make([]int, 0, len(cells)/8)
	for i, c := range cells {
		if c != 0 {
			alive = append(alive, i)
		}
	}
	return Snapshot{
		Dimension:  lat.Dim,
		Size:       lat.Size,
		Generation: generation,
		Rules:      rule,
		Alive:      alive,
	}
}

// Restore reconstructs the flat cell array: zero-filled with the listed
// indices set alive.
func (s Snapshot) Restore() ([]uint8, error) {
	lat := core.NewLattice(s.Dimension, s.Size)
	cells := make([]uint8, lat.Volume())
	for _, idx := range s.Alive {
		if idx < 0 || idx >= len(cells) {
			return nil, fmt.Errorf("%w: %d of %d", ErrIndexRange, idx, len(cells))
		}
		cells[idx] = 1
	}
	return cells, nil
}
