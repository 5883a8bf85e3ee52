package model

import (
	"image/color"
	"math"
)

const (
	CUBE_ORIGIN  uint8 = 16
	CUBE_MAX     uint8 = 5
	RED_STRIDE   uint8 = 36
	GREEN_STRIDE uint8 = 6
	BLUE_STRIDE  uint8 = 1
)

const (
	DefaultMinTemp = 18.0
	DefaultMaxTemp = 38.0
)

// xterm intensity for each cube step
var cubeLevels = [CUBE_MAX + 1]uint8{0, 95, 135, 175, 215, 255}

// Calibration bounds the temperatures spread over the blue-green-red ramp.
type Calibration struct {
	Min float64
	Max float64
}

func DefaultCalibration() Calibration {
	return Calibration{Min: DefaultMinTemp, Max: DefaultMaxTemp}
}

// Midpoint is where the ramp is pure green.
func (c Calibration) Midpoint() float64 {
	return (c.Min + c.Max) / 2
}

// CubeColor is a position in the 6x6x6 terminal color cube, each channel 0..5.
type CubeColor struct {
	R uint8
	G uint8
	B uint8
}

// NewCubeColor maps t onto the ramp. Blue fades out up to the midpoint, red
// fades in above it and green takes the remainder. Red and blue saturate at
// 5 so green never goes negative.
func NewCubeColor(t float64, c Calibration) CubeColor {
	ratio := 2 * (t - c.Min) / (c.Max - c.Min)
	if math.IsNaN(ratio) {
		ratio = 1
	}
	b := step(float64(CUBE_MAX) * (1 - ratio))
	r := step(float64(CUBE_MAX) * (ratio - 1))
	return CubeColor{R: r, G: CUBE_MAX - b - r, B: b}
}

func step(v float64) uint8 {
	v = math.Max(0, math.Min(float64(CUBE_MAX), v))
	return uint8(v)
}

// CubeFromIndex is the inverse of Index for values in [16, 231].
func CubeFromIndex(idx uint8) CubeColor {
	if idx < CUBE_ORIGIN {
		idx = CUBE_ORIGIN
	}
	i := idx - CUBE_ORIGIN
	return CubeColor{
		R: (i / RED_STRIDE) % (CUBE_MAX + 1),
		G: (i / GREEN_STRIDE) % (CUBE_MAX + 1),
		B: i % (CUBE_MAX + 1),
	}
}

// Index returns the 256-color palette index.
func (c CubeColor) Index() uint8 {
	return CUBE_ORIGIN + RED_STRIDE*c.R + GREEN_STRIDE*c.G + BLUE_STRIDE*c.B
}

func (c CubeColor) ToRGB() color.NRGBA {
	return color.NRGBA{
		R: cubeLevels[c.R],
		G: cubeLevels[c.G],
		B: cubeLevels[c.B],
		A: 255,
	}
}

// ColorIndex maps a temperature to a palette index in [16, 231].
func ColorIndex(t float64, c Calibration) uint8 {
	return NewCubeColor(t, c).Index()
}
