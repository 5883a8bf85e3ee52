package display

import (
	"fmt"
	"image"
	"io"

	"github.com/coreman2200/funtimes-thermview/internal/model"
	"github.com/coreman2200/funtimes-thermview/internal/render"
	"periph.io/x/conn/v3/display"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/devices/v3/nrzled"
	"periph.io/x/extra/devices/screen"
)

const (
	KIND_SPI    = "spi"
	KIND_SCREEN = "screen"
)

// DefaultLedFreq is the nrzled bit clock for WS2812 class strips.
const DefaultLedFreq = 2500 * physic.KiloHertz

type Opts struct {
	// Kind selects the drawer, KIND_SPI or KIND_SCREEN.
	Kind string
	// Port is the spireg name, empty for the first port.
	Port string
	Freq physic.Frequency
	// Serpentine flips odd rows, for strips zig-zagging through a matrix.
	Serpentine bool
	// Brightness scales every channel, (0, 1]; 0 is full.
	Brightness float64
	// WhiteCap bounds r+g+b of a pixel to this share of full white.
	WhiteCap float64
}

// Mirror paints frames onto a one pixel per reading LED drawer.
type Mirror struct {
	drawer display.Drawer
	closer io.Closer
	cal    model.Calibration
	opts   Opts
	amps   float64
}

func NewMirror(d display.Drawer, cal model.Calibration, o Opts) *Mirror {
	return &Mirror{drawer: d, cal: cal, opts: o}
}

// Open builds the drawer named by o.Kind. host.Init must have run.
func Open(o Opts, cal model.Calibration) (*Mirror, error) {
	switch o.Kind {
	case KIND_SCREEN:
		return NewMirror(screen.New(model.Pixels), cal, o), nil
	case KIND_SPI:
		p, err := spireg.Open(o.Port)
		if err != nil {
			return nil, fmt.Errorf("open spi port %q: %w", o.Port, err)
		}
		m, err := openStrip(p, o, cal)
		if err != nil {
			p.Close()
			return nil, err
		}
		m.closer = p
		return m, nil
	}
	return nil, fmt.Errorf("unknown led output %q", o.Kind)
}

func openStrip(p spi.Port, o Opts, cal model.Calibration) (*Mirror, error) {
	freq := o.Freq
	if freq == 0 {
		freq = DefaultLedFreq
	}
	d, err := nrzled.NewSPI(p, &nrzled.Opts{
		NumPixels: model.Pixels,
		Channels:  3,
		Freq:      freq,
	})
	if err != nil {
		return nil, fmt.Errorf("nrzled: %w", err)
	}
	if err := d.Halt(); err != nil {
		return nil, err
	}
	return NewMirror(d, cal, o), nil
}

func (m *Mirror) String() string {
	return fmt.Sprintf("Mirror{%s}", m.drawer)
}

// Publish draws f across the strip.
func (m *Mirror) Publish(f *model.Frame) error {
	img := render.Strip(f, m.cal, m.opts.Serpentine)
	limit(img, m.opts.Brightness, m.opts.WhiteCap)
	m.amps = EstimateCurrent(img)
	return m.drawer.Draw(m.drawer.Bounds(), img, image.Point{})
}

// Current is the estimated draw of the last published frame in amps.
func (m *Mirror) Current() float64 {
	return m.amps
}

// Halt blanks the strip.
func (m *Mirror) Halt() error {
	return m.drawer.Halt()
}

// Close blanks the strip and releases the port.
func (m *Mirror) Close() error {
	err := m.Halt()
	if m.closer != nil {
		if cerr := m.closer.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
