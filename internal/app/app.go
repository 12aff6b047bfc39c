//go:build ebiten

package app

import (
	"image/color"
	"time"

	"hyper-ca/internal/engine"
	"hyper-ca/internal/patterns"
	"hyper-ca/internal/render"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
)

// Game adapts a lattice engine to the ebiten.Game interface, showing either
// the 3D lattice or, for 4D, its cross-section at an adjustable W index.
type Game struct {
	eng     *engine.Engine
	painter *render.LayerPainter

	onColor  color.Color
	offColor color.Color

	cells    []uint8
	scale    int
	paused   bool
	tickOnce bool
	sliceW   int

	density float64
	seed    int64
	pattern string
}

// New constructs a Game for the provided engine.
func New(eng *engine.Engine, cfg *Config) *Game {
	return &Game{
		eng:      eng,
		painter:  render.NewLayerPainter(eng.Lattice().Size),
		onColor:  color.White,
		offColor: color.Black,
		scale:    cfg.Scale,
		density:  cfg.Density,
		seed:     cfg.Seed,
		pattern:  cfg.Pattern,
		sliceW:   eng.Lattice().Size / 2,
	}
}

// Reset reseeds the engine from the configured pattern or density.
func (g *Game) Reset(seed int64) error {
	g.seed = seed
	if p, ok := patterns.Get(g.pattern); ok {
		return g.eng.Seed(p(g.eng.Lattice()))
	}
	return g.eng.SeedRandom(g.density, seed)
}

// Update handles input, advances the engine, and reads back the displayed
// cells. The readback happens here rather than in Draw so device errors can
// surface through ebiten's error path.
func (g *Game) Update() error {
	if inpututil.IsKeyJustPressed(ebiten.KeyQ) || inpututil.IsKeyJustPressed(ebiten.KeyEscape) {
		return ebiten.Termination
	}
	if inpututil.IsKeyJustPressed(ebiten.KeySpace) {
		g.paused = !g.paused
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyN) {
		g.tickOnce = true
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyR) {
		if err := g.Reset(g.seed); err != nil {
			return err
		}
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyS) {
		if err := g.Reset(time.Now().UnixNano()); err != nil {
			return err
		}
	}
	if g.eng.Lattice().Dim == 4 {
		size := g.eng.Lattice().Size
		if inpututil.IsKeyJustPressed(ebiten.KeyBracketLeft) && g.sliceW > 0 {
			g.sliceW--
		}
		if inpututil.IsKeyJustPressed(ebiten.KeyBracketRight) && g.sliceW < size-1 {
			g.sliceW++
		}
	}

	if !g.paused || g.tickOnce {
		if err := g.eng.Step(); err != nil {
			return err
		}
		g.tickOnce = false
	}

	var err error
	if g.eng.Lattice().Dim == 4 {
		g.cells, err = g.eng.Slice(g.sliceW)
	} else {
		g.cells, err = g.eng.State()
	}
	return err
}

// Draw renders the most recently read back cells.
func (g *Game) Draw(screen *ebiten.Image) {
	if g.cells == nil {
		return
	}
	g.painter.Blit(screen, g.cells, g.onColor, g.offColor, g.scale)
}

// Layout returns the logical screen size.
func (g *Game) Layout(outsideWidth, outsideHeight int) (int, int) {
	w, h := g.painter.Size()
	return w * g.scale, h * g.scale
}
