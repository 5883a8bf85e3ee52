package mlx90640

import (
	"fmt"
	"time"

	"periph.io/x/conn/v3/physic"
)

const (
	regStatus    uint16 = 0x8000
	regControl1  uint16 = 0x800d
	regI2CConfig uint16 = 0x800f

	eepromStart uint16 = 0x2400
	eepromWords        = 0x340
	ramStart    uint16 = 0x0400
	ramWords           = 0x340

	// written to the status register to clear data ready and keep overwrite on
	statusClear uint16 = 0x0030
)

// Status is the 0x8000 status register.
type Status uint16

// SubPage is the sub-page measured last.
func (s Status) SubPage() int { return int(s & 0x0007) }

// DataReady is set when a new sub-page sits in RAM.
func (s Status) DataReady() bool { return s&0x0008 != 0 }

// Overwrite allows the device to replace RAM data that was not read yet.
func (s Status) Overwrite() bool { return s&0x0010 != 0 }

func (s Status) String() string {
	return fmt.Sprintf("Status{subpage:%d ready:%t overwrite:%t}", s.SubPage(), s.DataReady(), s.Overwrite())
}

// RefreshRate is the 3-bit sub-page measurement rate code of control register 1.
type RefreshRate uint8

const (
	Rate0_5Hz RefreshRate = iota
	Rate1Hz
	Rate2Hz
	Rate4Hz
	Rate8Hz
	Rate16Hz
	Rate32Hz
	Rate64Hz
)

// Frequency returns the sub-page rate.
func (r RefreshRate) Frequency() physic.Frequency {
	return (physic.Hertz / 2) << (r & 7)
}

// Period is the time between two sub-pages.
func (r RefreshRate) Period() time.Duration {
	return r.Frequency().Period()
}

func (r RefreshRate) String() string {
	return r.Frequency().String()
}

// RateFor returns the refresh rate code matching f exactly.
func RateFor(f physic.Frequency) (RefreshRate, error) {
	for r := Rate0_5Hz; r <= Rate64Hz; r++ {
		if r.Frequency() == f {
			return r, nil
		}
	}
	return 0, fmt.Errorf("mlx90640: unsupported refresh rate %s", f)
}

// Resolution is the ADC resolution code, 16 + code bits.
type Resolution uint8

func (r Resolution) Bits() int { return 16 + int(r&3) }

// Control is control register 1 (0x800d).
type Control uint16

const (
	ctrlSubPageMode uint16 = 0x0001
	ctrlRateMask    uint16 = 0x0380
	ctrlResMask     uint16 = 0x0c00
	ctrlChess       uint16 = 0x1000
)

// SubPageMode reports whether the device alternates sub-pages.
func (c Control) SubPageMode() bool { return uint16(c)&ctrlSubPageMode != 0 }

func (c Control) WithSubPageMode(on bool) Control {
	if on {
		return Control(uint16(c) | ctrlSubPageMode)
	}
	return Control(uint16(c) &^ ctrlSubPageMode)
}

func (c Control) RefreshRate() RefreshRate {
	return RefreshRate((uint16(c) & ctrlRateMask) >> 7)
}

func (c Control) WithRefreshRate(r RefreshRate) Control {
	return Control(uint16(c)&^ctrlRateMask | uint16(r&7)<<7)
}

func (c Control) Resolution() Resolution {
	return Resolution((uint16(c) & ctrlResMask) >> 10)
}

func (c Control) WithResolution(r Resolution) Control {
	return Control(uint16(c)&^ctrlResMask | uint16(r&3)<<10)
}

// Chess reports the chess reading pattern; otherwise rows are interleaved.
func (c Control) Chess() bool { return uint16(c)&ctrlChess != 0 }

func (c Control) WithChess(on bool) Control {
	if on {
		return Control(uint16(c) | ctrlChess)
	}
	return Control(uint16(c) &^ ctrlChess)
}

func (c Control) String() string {
	pattern := "interleaved"
	if c.Chess() {
		pattern = "chess"
	}
	return fmt.Sprintf("Control{subpages:%t rate:%s resolution:%dbit pattern:%s}",
		c.SubPageMode(), c.RefreshRate(), c.Resolution().Bits(), pattern)
}
