package display

import (
	"bytes"
	"image"
	"image/color"
	"image/draw"
	"testing"

	"github.com/coreman2200/funtimes-thermview/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"periph.io/x/conn/v3/spi/spitest"
)

// canvas is a display.Drawer keeping what was drawn.
type canvas struct {
	img    *image.NRGBA
	halted int
}

func newCanvas() *canvas {
	return &canvas{img: image.NewNRGBA(image.Rect(0, 0, model.Pixels, 1))}
}

func (c *canvas) String() string { return "canvas" }

func (c *canvas) Halt() error {
	c.halted++
	return nil
}

func (c *canvas) ColorModel() color.Model { return color.NRGBAModel }

func (c *canvas) Bounds() image.Rectangle { return c.img.Bounds() }

func (c *canvas) Draw(r image.Rectangle, src image.Image, sp image.Point) error {
	draw.Draw(c.img, r, src, sp, draw.Src)
	return nil
}

func TestMirrorPublishPaintsStrip(t *testing.T) {
	c := newCanvas()
	cal := model.DefaultCalibration()
	m := NewMirror(c, cal, Opts{})

	var f model.Frame
	f.Fill(18)
	f.Set(0, 1, 38)
	f.Set(1, 0, 28)
	require.NoError(t, m.Publish(&f))

	assert.Equal(t, model.CubeFromIndex(21).ToRGB(), c.img.NRGBAAt(0, 0))
	assert.Equal(t, model.CubeFromIndex(196).ToRGB(), c.img.NRGBAAt(1, 0))
	assert.Equal(t, model.CubeFromIndex(46).ToRGB(), c.img.NRGBAAt(32, 0))
}

func TestMirrorSerpentine(t *testing.T) {
	c := newCanvas()
	m := NewMirror(c, model.DefaultCalibration(), Opts{Serpentine: true})

	var f model.Frame
	f.Fill(18)
	f.Set(1, 0, 38)
	require.NoError(t, m.Publish(&f))

	assert.Equal(t, model.CubeFromIndex(196).ToRGB(), c.img.NRGBAAt(63, 0))
	assert.Equal(t, model.CubeFromIndex(21).ToRGB(), c.img.NRGBAAt(32, 0))
}

func TestMirrorClose(t *testing.T) {
	c := newCanvas()
	m := NewMirror(c, model.DefaultCalibration(), Opts{})
	require.NoError(t, m.Close())
	assert.Equal(t, 1, c.halted)
	assert.Equal(t, "Mirror{canvas}", m.String())
}

func TestStripOverSPI(t *testing.T) {
	buf := bytes.Buffer{}
	m, err := openStrip(spitest.NewRecordRaw(&buf), Opts{Kind: KIND_SPI}, model.DefaultCalibration())
	require.NoError(t, err)
	assert.Equal(t, "Mirror{nrzled{recordraw}}", m.String())

	blank := buf.Len()
	assert.NotZero(t, blank)

	var f model.Frame
	f.Fill(38)
	buf.Reset()
	require.NoError(t, m.Publish(&f))
	hot := append([]byte{}, buf.Bytes()...)
	assert.Len(t, hot, blank)

	f.Fill(18)
	buf.Reset()
	require.NoError(t, m.Publish(&f))
	assert.NotEqual(t, hot, buf.Bytes())
}

func TestOpenUnknownKind(t *testing.T) {
	_, err := Open(Opts{Kind: "hdmi"}, model.DefaultCalibration())
	assert.Error(t, err)
}

func TestMirrorPowerLimit(t *testing.T) {
	c := newCanvas()
	m := NewMirror(c, model.DefaultCalibration(), Opts{Brightness: 0.5})

	var f model.Frame
	f.Fill(38)
	require.NoError(t, m.Publish(&f))
	// index 196 is pure red 255
	assert.Equal(t, color.NRGBA{R: 128, A: 255}, c.img.NRGBAAt(0, 0))
	assert.InDelta(t, 768*128/255.0*0.020, m.Current(), 1e-9)
}

func TestLimitWhiteCap(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 2, 1))
	img.SetNRGBA(0, 0, color.NRGBA{R: 255, G: 255, B: 255, A: 255})
	img.SetNRGBA(1, 0, color.NRGBA{R: 100, A: 255})

	limit(img, 0, 0.5)
	assert.Equal(t, color.NRGBA{R: 128, G: 128, B: 128, A: 255}, img.NRGBAAt(0, 0))
	assert.Equal(t, color.NRGBA{R: 100, A: 255}, img.NRGBAAt(1, 0))

	limit(img, 1, 2)
	assert.Equal(t, color.NRGBA{R: 100, A: 255}, img.NRGBAAt(1, 0))
}
