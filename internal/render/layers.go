//go:build ebiten

package render

import (
	"image/color"

	"github.com/hajimehoshi/ebiten/v2"
)

// LayerPainter draws a cubic cell block as a tiled sheet of Z layers on a
// single RGBA image.
type LayerPainter struct {
	size       int
	cols, rows int
	img        *ebiten.Image
	buf        []byte
}

// NewLayerPainter allocates a painter for a lattice of the given extent.
func NewLayerPainter(size int) *LayerPainter {
	cols, rows := LayerGrid(size)
	w, h := cols*size, rows*size
	return &LayerPainter{
		size: size,
		cols: cols,
		rows: rows,
		img:  ebiten.NewImage(w, h),
		buf:  make([]byte, 4*w*h),
	}
}

// Blit uploads the provided size^3 cells into the painter image and draws it.
func (lp *LayerPainter) Blit(dst *ebiten.Image, cells []uint8, on, off color.Color, scale int) {
	if len(cells) != lp.size*lp.size*lp.size {
		return
	}
	fillLayersRGBA(lp.buf, cells, lp.size, lp.cols, on, off)
	lp.img.ReplacePixels(lp.buf)

	op := &ebiten.DrawImageOptions{}
	op.GeoM.Scale(float64(scale), float64(scale))
	dst.DrawImage(lp.img, op)
}

// Size returns the dimensions of the underlying sheet image.
func (lp *LayerPainter) Size() (int, int) { return lp.cols * lp.size, lp.rows * lp.size }
