package core

// Lattice describes the geometry of a hypercubic D-dimensional grid with
// toroidal topology. Every axis shares one extent, so cell storage is a flat
// array of Size^Dim values indexed by row-major mixed radix.
type Lattice struct {
	Dim  int
	Size int
}

// NewLattice returns the geometry for a dim-dimensional lattice of the given
// per-axis extent. Extents below 1 are raised to 1.
func NewLattice(dim, size int) Lattice {
	if size < 1 {
		size = 1
	}
	return Lattice{Dim: dim, Size: size}
}

// Volume returns the total cell count Size^Dim.
func (l Lattice) Volume() int {
	v := 1
	for i := 0; i < l.Dim; i++ {
		v *= l.Size
	}
	return v
}

// Index returns the linear slice index for the given coordinates. Only the
// first Dim entries of coord are consulted.
func (l Lattice) Index(coord []int) int {
	idx := 0
	stride := 1
	for axis := 0; axis < l.Dim; axis++ {
		idx += coord[axis] * stride
		stride *= l.Size
	}
	return idx
}

// Coords decodes a linear index back into per-axis coordinates, filling the
// first Dim entries of out. It is the inverse of Index.
func (l Lattice) Coords(idx int, out []int) {
	for axis := 0; axis < l.Dim; axis++ {
		out[axis] = idx % l.Size
		idx /= l.Size
	}
}

// Wrap applies toroidal wrapping to a single-axis coordinate.
func (l Lattice) Wrap(c int) int {
	return (c%l.Size + l.Size) % l.Size
}

// MaxNeighbors returns the Moore neighborhood size 3^Dim - 1.
func (l Lattice) MaxNeighbors() int {
	n := 1
	for i := 0; i < l.Dim; i++ {
		n *= 3
	}
	return n - 1
}

// Offsets enumerates every offset vector in {-1,0,1}^Dim except the all-zero
// vector, in base-3 digit order. The same enumeration order is used by the
// device kernel.
func (l Lattice) Offsets() [][]int {
	pow3 := l.MaxNeighbors() + 1
	center := (pow3 - 1) / 2
	out := make([][]int, 0, pow3-1)
	for o := 0; o < pow3; o++ {
		if o == center {
			continue
		}
		off := make([]int, l.Dim)
		rem := o
		for axis := 0; axis < l.Dim; axis++ {
			off[axis] = rem%3 - 1
			rem /= 3
		}
		out = append(out, off)
	}
	return out
}

// SliceW extracts the 3D cross-section of a 4D cell array at the given index
// along the fourth axis. The index is clamped to [0, Size-1]; the returned
// slice is a fresh copy of Size^3 cells with slice[x,y,z] = cells[x,y,z,w].
func (l Lattice) SliceW(cells []uint8, w int) []uint8 {
	if w < 0 {
		w = 0
	}
	if w > l.Size-1 {
		w = l.Size - 1
	}
	cube := l.Size * l.Size * l.Size
	out := make([]uint8, cube)
	copy(out, cells[w*cube:(w+1)*cube])
	return out
}
