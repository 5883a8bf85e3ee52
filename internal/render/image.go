package render

import (
	"image"

	"github.com/coreman2200/funtimes-thermview/internal/model"
)

// Grid returns f as a Columns x Rows image using the terminal cube colors.
func Grid(f *model.Frame, cal model.Calibration) *image.NRGBA {
	im := image.NewNRGBA(image.Rect(0, 0, int(model.Columns), int(model.Rows)))
	for y := 0; y < int(model.Rows); y++ {
		for x := 0; x < int(model.Columns); x++ {
			im.SetNRGBA(x, y, model.NewCubeColor(f.At(y, x), cal).ToRGB())
		}
	}
	return im
}

// Strip flattens f into a single row of pixels for LED strips. With
// serpentine set every odd row runs right to left, matching panels wired
// back and forth.
func Strip(f *model.Frame, cal model.Calibration, serpentine bool) *image.NRGBA {
	im := image.NewNRGBA(image.Rect(0, 0, model.Pixels, 1))
	x := 0
	for y := 0; y < int(model.Rows); y++ {
		flip := serpentine && y%2 == 1
		for c := 0; c < int(model.Columns); c++ {
			col := c
			if flip {
				col = int(model.Columns) - 1 - c
			}
			im.SetNRGBA(x, 0, model.NewCubeColor(f.At(y, col), cal).ToRGB())
			x++
		}
	}
	return im
}
