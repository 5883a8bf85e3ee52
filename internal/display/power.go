package display

import (
	"image"
	"math"
)

// limit dims img in place: first by brightness, then capping every pixel so
// r+g+b <= whiteCap*3*255. A brightness of 0 counts as full and a whiteCap
// outside (0, 1) disables the cap.
func limit(img *image.NRGBA, brightness, whiteCap float64) {
	if brightness > 0 && brightness < 1 {
		for i := 0; i+3 < len(img.Pix); i += 4 {
			for c := 0; c < 3; c++ {
				img.Pix[i+c] = byte(math.Round(float64(img.Pix[i+c]) * brightness))
			}
		}
	}
	if whiteCap <= 0 || whiteCap >= 1 {
		return
	}
	ceiling := whiteCap * 3.0 * 255.0
	for i := 0; i+3 < len(img.Pix); i += 4 {
		s := float64(img.Pix[i]) + float64(img.Pix[i+1]) + float64(img.Pix[i+2])
		if s > ceiling {
			scale := ceiling / s
			for c := 0; c < 3; c++ {
				img.Pix[i+c] = byte(math.Round(float64(img.Pix[i+c]) * scale))
			}
		}
	}
}

// EstimateCurrent returns the amps a WS2812 strip draws for img at 20mA per
// channel full scale.
func EstimateCurrent(img *image.NRGBA) float64 {
	var sum float64
	for i := 0; i+3 < len(img.Pix); i += 4 {
		sum += float64(img.Pix[i]) + float64(img.Pix[i+1]) + float64(img.Pix[i+2])
	}
	return sum / 255.0 * 0.020
}
