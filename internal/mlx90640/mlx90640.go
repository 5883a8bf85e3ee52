// Package mlx90640 drives the Melexis MLX90640 32x24 far infrared array over
// I2C.
//
// The device measures half of the pixels (a sub-page) per refresh period, so
// a full frame takes two periods. Temperatures are derived from the raw RAM
// data using the per-device calibration stored in the on-chip EEPROM.
package mlx90640

import (
	"context"
	"encoding/binary"
	"fmt"
	"time"

	"github.com/coreman2200/funtimes-thermview/internal/model"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/physic"
)

// Opts holds the configuration options.
type Opts struct {
	// Addr is the 7-bit I2C address.
	Addr uint16
	// Emissivity of the observed objects, (0, 1].
	Emissivity float64
	// TaShift is subtracted from the ambient temperature to estimate the
	// reflected temperature.
	TaShift float64
	// PollInterval is the wait between two status polls.
	PollInterval time.Duration
	// ReadTimeout bounds the wait for one sub-page; 0 means two refresh periods.
	ReadTimeout time.Duration
}

// DefaultOpts is the recommended default options.
var DefaultOpts = Opts{
	Addr:         0x33,
	Emissivity:   0.95,
	TaShift:      8,
	PollInterval: 5 * time.Millisecond,
}

// DefaultBusSpeed is the I2C clock the sensor is driven at.
const DefaultBusSpeed = 800 * physic.KiloHertz

// maximum sub-page reads spent trying to cover both halves of a frame
const maxSubPageReads = 4

// Dev is a handle to an initialized MLX90640.
type Dev struct {
	c      i2c.Dev
	opts   Opts
	params *Params
	rate   RefreshRate
	ta     float64
	vdd    float64
}

// New opens a handle to the device at opts.Addr and restores its calibration.
func New(b i2c.Bus, opts *Opts) (*Dev, error) {
	o := DefaultOpts
	if opts != nil {
		o = *opts
	}
	if o.Addr == 0 {
		o.Addr = DefaultOpts.Addr
	}
	if o.Emissivity <= 0 || o.Emissivity > 1 {
		return nil, fmt.Errorf("mlx90640: emissivity %v out of range (0, 1]", o.Emissivity)
	}
	if o.PollInterval <= 0 {
		o.PollInterval = DefaultOpts.PollInterval
	}
	d := &Dev{c: i2c.Dev{Bus: b, Addr: o.Addr}, opts: o}

	ee, err := d.readWords(eepromStart, eepromWords)
	if err != nil {
		return nil, fmt.Errorf("mlx90640: read eeprom: %w", err)
	}
	if d.params, err = ExtractParams(ee); err != nil {
		return nil, err
	}
	ctrl, err := d.Control()
	if err != nil {
		return nil, err
	}
	// ReadFrame needs both sub-pages to cover the whole array
	if !ctrl.SubPageMode() {
		ctrl = ctrl.WithSubPageMode(true)
		if err := d.SetControl(ctrl); err != nil {
			return nil, fmt.Errorf("mlx90640: enable sub-page mode: %w", err)
		}
	}
	d.rate = ctrl.RefreshRate()
	return d, nil
}

func (d *Dev) String() string {
	return fmt.Sprintf("MLX90640{%s}", &d.c)
}

// Halt implements conn.Resource. The device free-runs; there is nothing to stop.
func (d *Dev) Halt() error {
	return nil
}

// Params returns the restored calibration.
func (d *Dev) Params() *Params {
	return d.params
}

// Ambient returns the sensor temperature measured with the last sub-page.
func (d *Dev) Ambient() float64 {
	return d.ta
}

// Vdd returns the supply voltage measured with the last sub-page.
func (d *Dev) Vdd() float64 {
	return d.vdd
}

func (d *Dev) Status() (Status, error) {
	v, err := d.readWord(regStatus)
	return Status(v), err
}

func (d *Dev) Control() (Control, error) {
	v, err := d.readWord(regControl1)
	return Control(v), err
}

// SetControl writes control register 1 and verifies it.
func (d *Dev) SetControl(c Control) error {
	return d.writeWord(regControl1, uint16(c))
}

// I2CConfig returns the raw I2C configuration register.
func (d *Dev) I2CConfig() (uint16, error) {
	return d.readWord(regI2CConfig)
}

// RefreshRate reads the configured sub-page rate from the device.
func (d *Dev) RefreshRate() (RefreshRate, error) {
	c, err := d.Control()
	if err != nil {
		return 0, err
	}
	d.rate = c.RefreshRate()
	return d.rate, nil
}

// SetRefreshRate changes the sub-page rate, leaving the other control bits.
func (d *Dev) SetRefreshRate(r RefreshRate) error {
	c, err := d.Control()
	if err != nil {
		return err
	}
	if err := d.SetControl(c.WithRefreshRate(r)); err != nil {
		return err
	}
	d.rate = r
	return nil
}

// ReadFrame fills f with object temperatures in degrees Celsius. It reads
// sub-pages until both halves of the frame were measured, then patches
// deviating pixels.
func (d *Dev) ReadFrame(ctx context.Context, f *model.Frame) error {
	var seen [2]bool
	for i := 0; i < maxSubPageReads; i++ {
		s, err := d.readSubPage(ctx)
		if err != nil {
			return err
		}
		if s.index > 1 {
			continue
		}
		d.vdd = d.params.vdd(s)
		d.ta = d.params.ta(s, d.vdd)
		d.params.objectTemps(s, d.vdd, d.ta, d.opts.Emissivity, d.ta-d.opts.TaShift, f)
		seen[s.index] = true
		if seen[0] && seen[1] {
			d.params.correct(f)
			return nil
		}
	}
	return ErrNotReady
}

// readSubPage waits for new data and returns a validated RAM snapshot.
func (d *Dev) readSubPage(ctx context.Context) (*subPage, error) {
	if err := d.waitReady(ctx); err != nil {
		return nil, err
	}
	var ram []uint16
	var st Status
	// RAM may be replaced while being read; re-read while the device flags new data
	for i := 0; i < 5; i++ {
		if err := d.writeWord(regStatus, statusClear); err != nil {
			return nil, err
		}
		var err error
		if ram, err = d.readWords(ramStart, ramWords); err != nil {
			return nil, fmt.Errorf("mlx90640: read ram: %w", err)
		}
		if st, err = d.Status(); err != nil {
			return nil, err
		}
		if !st.DataReady() {
			break
		}
	}
	ctrl, err := d.Control()
	if err != nil {
		return nil, err
	}
	s := &subPage{ram: ram, control: ctrl, index: st.SubPage()}
	if err := s.validate(); err != nil {
		return nil, err
	}
	return s, nil
}

func (d *Dev) waitReady(ctx context.Context) error {
	timeout := d.opts.ReadTimeout
	if timeout <= 0 {
		timeout = 2 * d.rate.Period()
	}
	deadline := time.Now().Add(timeout)
	for {
		st, err := d.Status()
		if err != nil {
			return err
		}
		if st.DataReady() {
			return nil
		}
		if time.Now().After(deadline) {
			return ErrNotReady
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(d.opts.PollInterval):
		}
	}
}

func (d *Dev) readWord(reg uint16) (uint16, error) {
	w, err := d.readWords(reg, 1)
	if err != nil {
		return 0, fmt.Errorf("mlx90640: read 0x%04x: %w", reg, err)
	}
	return w[0], nil
}

func (d *Dev) readWords(reg uint16, n int) ([]uint16, error) {
	var cmd [2]byte
	binary.BigEndian.PutUint16(cmd[:], reg)
	buf := make([]byte, 2*n)
	if err := d.c.Tx(cmd[:], buf); err != nil {
		return nil, err
	}
	out := make([]uint16, n)
	for i := range out {
		out[i] = binary.BigEndian.Uint16(buf[2*i:])
	}
	return out, nil
}

// writeWord writes reg and reads it back. The status register is not
// verified since the device changes it on its own.
func (d *Dev) writeWord(reg, v uint16) error {
	var cmd [4]byte
	binary.BigEndian.PutUint16(cmd[:2], reg)
	binary.BigEndian.PutUint16(cmd[2:], v)
	if err := d.c.Tx(cmd[:], nil); err != nil {
		return fmt.Errorf("mlx90640: write 0x%04x: %w", reg, err)
	}
	if reg == regStatus {
		return nil
	}
	got, err := d.readWord(reg)
	if err != nil {
		return err
	}
	if got != v {
		return fmt.Errorf("%w: 0x%04x = 0x%04x, want 0x%04x", errVerify, reg, got, v)
	}
	return nil
}
