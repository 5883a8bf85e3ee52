package mlx90640

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	"github.com/coreman2200/funtimes-thermview/internal/model"
	"periph.io/x/conn/v3/physic"
)

// emulator is an in-memory MLX90640 on an i2c.Bus. Each status clear starts a
// new measurement that completes after delay status polls and flips the
// sub-page.
type emulator struct {
	mu      sync.Mutex
	addr    uint16
	ee      [eepromWords]uint16
	ram     [2][ramWords]uint16
	control uint16
	subPage int
	ready   bool
	pending int
	delay   int
	ioErr   error
	clears  int
	speed   physic.Frequency
}

func newEmulator() *emulator {
	e := &emulator{
		addr:    0x33,
		control: 0x1901,
		ready:   true,
		delay:   1,
	}
	e.ee = testEEPROM()
	for i := range e.ram {
		e.ram[i] = testRAM()
	}
	return e
}

// testEEPROM is a calibration where zero IR signal reads as the ambient
// temperature: no offsets, no gradient compensation and flat ksTo.
func testEEPROM() [eepromWords]uint16 {
	var ee [eepromWords]uint16
	ee[eeDeviceID] = 0x0123
	ee[eeDeviceID+1] = 0x4567
	ee[eeDeviceID+2] = 0x89ab
	ee[eeScaleOcc] = 0x4210
	ee[eeScaleAcc] = 0x4000
	ee[eeAlphaRef] = 2000
	ee[eeGain] = 0x18ef
	ee[eePTAT25] = 0x2ff1
	ee[eeKPTAT] = 0x5952
	ee[eeVdd] = 0x9d68
	ee[eeScaleKvKta] = 0x2000
	for n := 0; n < model.Pixels; n++ {
		ee[eePixel+n] = 0x0002
	}
	return ee
}

// testRAM holds the datasheet example supply and PTAT readings and zero IR data.
func testRAM() [ramWords]uint16 {
	var ram [ramWords]uint16
	ram[ramVbe] = 0x4bf2
	ram[ramGain] = 0x1881
	ram[ramPTAT] = 0x06af
	ram[ramVdd] = 0xccc5
	return ram
}

func (e *emulator) String() string { return "emulator" }

func (e *emulator) SetSpeed(f physic.Frequency) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.speed = f
	return nil
}

func (e *emulator) Tx(addr uint16, w, r []byte) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.ioErr != nil {
		return e.ioErr
	}
	if addr != e.addr {
		return fmt.Errorf("no device at 0x%02x", addr)
	}
	switch len(w) {
	case 4:
		return e.write(binary.BigEndian.Uint16(w), binary.BigEndian.Uint16(w[2:]))
	case 2:
		return e.read(binary.BigEndian.Uint16(w), r)
	}
	return fmt.Errorf("invalid command % x", w)
}

func (e *emulator) write(reg, v uint16) error {
	switch reg {
	case regStatus:
		if v&0x0008 == 0 {
			e.ready = false
			e.pending = e.delay
			e.clears++
		}
	case regControl1:
		e.control = v
	default:
		return fmt.Errorf("register 0x%04x not writable", reg)
	}
	return nil
}

func (e *emulator) status() uint16 {
	if !e.ready {
		if e.pending > 0 {
			e.pending--
		} else {
			e.ready = true
			e.subPage ^= 1
		}
	}
	v := uint16(e.subPage) | 0x0010
	if e.ready {
		v |= 0x0008
	}
	return v
}

func (e *emulator) read(reg uint16, r []byte) error {
	if len(r)%2 != 0 {
		return errors.New("odd read length")
	}
	n := len(r) / 2
	var words []uint16
	switch {
	case n == 1 && reg == regStatus:
		words = []uint16{e.status()}
	case n == 1 && reg == regControl1:
		words = []uint16{e.control}
	case n == 1 && reg == regI2CConfig:
		words = []uint16{0x0000}
	case reg >= eepromStart && int(reg-eepromStart)+n <= eepromWords:
		words = e.ee[reg-eepromStart : int(reg-eepromStart)+n]
	case reg >= ramStart && int(reg-ramStart)+n <= ramWords:
		words = e.ram[e.subPage][reg-ramStart : int(reg-ramStart)+n]
	default:
		return fmt.Errorf("invalid read 0x%04x+%d", reg, n)
	}
	for i, v := range words {
		binary.BigEndian.PutUint16(r[2*i:], v)
	}
	return nil
}
