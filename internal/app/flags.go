package app

import "flag"

// Config represents the command-line parameters shared by the front-ends.
type Config struct {
	Dim     int
	Size    int
	Density float64
	Scale   int
	TPS     int
	Seed    int64
	Pattern string
	Backend string
}

// NewConfig returns a Config populated with sensible defaults. A Size of 0
// means pick per dimension.
func NewConfig() *Config {
	return &Config{Dim: 3, Size: 0, Density: 0.12, Scale: 4, TPS: 20, Seed: 42, Backend: "auto"}
}

// Bind attaches the configuration to the provided FlagSet.
func (c *Config) Bind(fs *flag.FlagSet) {
	fs.IntVar(&c.Dim, "dim", c.Dim, "lattice dimension count (3 or 4)")
	fs.IntVar(&c.Size, "size", c.Size, "lattice extent per axis (0 = pick per dimension)")
	fs.Float64Var(&c.Density, "density", c.Density, "random seed fill density in [0,1]")
	fs.IntVar(&c.Scale, "scale", c.Scale, "pixel scale multiplier")
	fs.IntVar(&c.TPS, "tps", c.TPS, "generations per second")
	fs.Int64Var(&c.Seed, "seed", c.Seed, "seed for deterministic reseeding")
	fs.StringVar(&c.Pattern, "pattern", c.Pattern, "named seed pattern instead of a random fill")
	fs.StringVar(&c.Backend, "backend", c.Backend, "compute backend: auto, gpu, or cpu")
}

// Extent resolves the per-axis size, defaulting to a larger lattice in 3D
// than in 4D so both fit comparable device memory.
func (c *Config) Extent() int {
	if c.Size > 0 {
		return c.Size
	}
	if c.Dim == 4 {
		return 24
	}
	return 48
}
