package render

import "image/color"

// LayerGrid returns a near-square cols x rows arrangement with room for
// every Z layer of a cubic lattice of the given extent.
func LayerGrid(size int) (cols, rows int) {
	cols = 1
	for cols*cols < size {
		cols++
	}
	rows = (size + cols - 1) / cols
	return cols, rows
}

// fillLayersRGBA converts a size^3 cell block into RGBA pixels arranged as a
// cols x rows sheet of Z layers. Cell (x,y,z) lands at pixel
// ((z%cols)*size + x, (z/cols)*size + y); sheet area past the last layer
// stays untouched.
func fillLayersRGBA(buf []byte, cells []uint8, size, cols int, on, off color.Color) {
	rOn, gOn, bOn, aOn := on.RGBA()
	rOff, gOff, bOff, aOff := off.RGBA()
	width := cols * size
	for z := 0; z < size; z++ {
		px0 := (z % cols) * size
		py0 := (z / cols) * size
		for y := 0; y < size; y++ {
			row := (py0+y)*width + px0
			cellRow := (z*size + y) * size
			for x := 0; x < size; x++ {
				base := (row + x) * 4
				if cells[cellRow+x] != 0 {
					buf[base+0] = uint8(rOn >> 8)
					buf[base+1] = uint8(gOn >> 8)
					buf[base+2] = uint8(bOn >> 8)
					buf[base+3] = uint8(aOn >> 8)
					continue
				}
				buf[base+0] = uint8(rOff >> 8)
				buf[base+1] = uint8(gOff >> 8)
				buf[base+2] = uint8(bOff >> 8)
				buf[base+3] = uint8(aOff >> 8)
			}
		}
	}
}
