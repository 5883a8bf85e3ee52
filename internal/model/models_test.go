package model_test

import (
	"image/color"
	"math"
	"strconv"
	"testing"

	. "github.com/coreman2200/funtimes-thermview/internal/model"
	"github.com/stretchr/testify/assert"
)

var TestTemperatureIsExpectedIndex = []struct {
	Temp   float64
	Expect uint8
}{
	{18.0, 21},
	{28.0, 46},
	{38.0, 196},
	{23.0, 36},
	{33.0, 106},
	{19.0, 26},
	{10.0, 21},
	{-40.0, 21},
	{45.0, 196},
	{300.0, 196},
}

var TestIndexIsExpectedRGB = []struct {
	Index  uint8
	Expect color.NRGBA
}{
	{21, color.NRGBA{0, 0, 255, 255}},
	{46, color.NRGBA{0, 255, 0, 255}},
	{196, color.NRGBA{255, 0, 0, 255}},
	{16, color.NRGBA{0, 0, 0, 255}},
	{231, color.NRGBA{255, 255, 255, 255}},
	{106, color.NRGBA{135, 175, 0, 255}},
}

func TestColorIndex(t *testing.T) {
	cal := DefaultCalibration()
	for k, v := range TestTemperatureIsExpectedIndex {
		t.Run("Given temp "+strconv.Itoa(k), func(t *testing.T) {
			assert.Equal(t, v.Expect, ColorIndex(v.Temp, cal), "temp %v", v.Temp)
		})
	}
}

func TestColorIndexStaysInCube(t *testing.T) {
	cal := DefaultCalibration()
	for temp := -300.0; temp <= 600.0; temp += 0.25 {
		idx := ColorIndex(temp, cal)
		c := NewCubeColor(temp, cal)
		assert.GreaterOrEqual(t, idx, uint8(16))
		assert.LessOrEqual(t, idx, uint8(231))
		assert.Equal(t, uint8(5), c.R+c.G+c.B, "components should sum to 5 at %v", temp)
	}
}

func TestColorIndexIsPure(t *testing.T) {
	cal := DefaultCalibration()
	for _, temp := range []float64{-5, 18.3, 27.9, 31.4, 99} {
		assert.Equal(t, ColorIndex(temp, cal), ColorIndex(temp, cal))
	}
}

func TestColorIndexNaN(t *testing.T) {
	assert.Equal(t, uint8(46), ColorIndex(math.NaN(), DefaultCalibration()))
}

func TestColorIndexCustomCalibration(t *testing.T) {
	cal := Calibration{Min: 0, Max: 100}
	assert.Equal(t, uint8(21), ColorIndex(0, cal))
	assert.Equal(t, uint8(46), ColorIndex(cal.Midpoint(), cal))
	assert.Equal(t, uint8(196), ColorIndex(100, cal))
}

func TestCubeRoundTrip(t *testing.T) {
	for k, v := range TestIndexIsExpectedRGB {
		t.Run("Given index "+strconv.Itoa(k), func(t *testing.T) {
			c := CubeFromIndex(v.Index)
			assert.Equal(t, v.Index, c.Index())
			assert.Equal(t, v.Expect, c.ToRGB())
		})
	}
}

func TestFrameAccess(t *testing.T) {
	var f Frame
	assert.Equal(t, 768, len(f))

	f.Fill(20)
	f.Set(23, 31, 45.5)
	f.Set(0, 1, -3)
	assert.Equal(t, 45.5, f[767])
	assert.Equal(t, -3.0, f.At(0, 1))

	lo, hi := f.Bounds()
	assert.Equal(t, -3.0, lo)
	assert.Equal(t, 45.5, hi)
}

func TestFrameBoundsSkipsNaN(t *testing.T) {
	var f Frame
	f.Fill(math.NaN())
	lo, hi := f.Bounds()
	assert.True(t, math.IsNaN(lo))
	assert.True(t, math.IsNaN(hi))

	f.Set(3, 4, 21.5)
	f.Set(20, 30, 19)
	lo, hi = f.Bounds()
	assert.Equal(t, 19.0, lo)
	assert.Equal(t, 21.5, hi)
}
