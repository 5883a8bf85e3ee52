package mlx90640

import (
	"fmt"
	"math"

	"github.com/coreman2200/funtimes-thermview/internal/model"
)

// Params holds the calibration restored from EEPROM. Field meanings follow the
// MLX90640 datasheet section 11.1.
type Params struct {
	KVdd      int
	Vdd25     int
	KvPTAT    float64
	KtPTAT    float64
	VPTAT25   int
	AlphaPTAT float64
	GainEE    int
	Tgc       float64
	CpKv      float64
	CpKta     float64
	// ResolutionEE is the ADC resolution the device was calibrated at.
	ResolutionEE Resolution
	// CalibratedChess is the reading pattern the device was calibrated with.
	CalibratedChess bool
	KsTa            float64
	KsTo            [5]float64
	CT              [5]int
	AlphaCorr       [4]float64
	Alpha           [model.Pixels]float64
	Offset          [model.Pixels]int
	Kta             [model.Pixels]float64
	Kv              [model.Pixels]float64
	CpAlpha         [2]float64
	CpOffset        [2]int
	ILChessC        [3]float64
	Broken          []int
	Outliers        []int
	DeviceID        [3]uint16
}

// eeprom word offsets
const (
	eeDeviceID   = 0x07
	eeCalMode    = 0x0a
	eeScaleOcc   = 0x10
	eeOffsetRef  = 0x11
	eeOccRow     = 0x12
	eeOccColumn  = 0x18
	eeScaleAcc   = 0x20
	eeAlphaRef   = 0x21
	eeAccRow     = 0x22
	eeAccColumn  = 0x28
	eeGain       = 0x30
	eePTAT25     = 0x31
	eeKPTAT      = 0x32
	eeVdd        = 0x33
	eeKvRC       = 0x34
	eeILChess    = 0x35
	eeKtaRC0     = 0x36
	eeKtaRC1     = 0x37
	eeScaleKvKta = 0x38
	eeCpAlpha    = 0x39
	eeCpOffset   = 0x3a
	eeCpKvKta    = 0x3b
	eeKsTaTgc    = 0x3c
	eeKsTo12     = 0x3d
	eeKsTo34     = 0x3e
	eeCT         = 0x3f
	eePixel      = 0x40
)

// ExtractParams restores calibration parameters from a full EEPROM dump.
func ExtractParams(ee []uint16) (*Params, error) {
	if len(ee) != eepromWords {
		return nil, fmt.Errorf("mlx90640: eeprom dump has %d words, want %d", len(ee), eepromWords)
	}
	p := &Params{}
	copy(p.DeviceID[:], ee[eeDeviceID:eeDeviceID+3])
	p.extractVdd(ee)
	p.extractPTAT(ee)
	p.GainEE = signed(ee[eeGain], 16)
	p.Tgc = float64(signed(ee[eeKsTaTgc], 8)) / 32
	p.ResolutionEE = Resolution(field(ee[eeScaleKvKta], 12, 2))
	p.KsTa = float64(signed(ee[eeKsTaTgc]>>8, 8)) / 8192
	p.extractKsTo(ee)
	p.extractCP(ee)
	p.extractAlpha(ee)
	p.extractOffset(ee)
	p.extractKta(ee)
	p.extractKv(ee)
	p.extractILChess(ee)
	p.extractDeviatingPixels(ee)
	return p, nil
}

func (p *Params) extractVdd(ee []uint16) {
	p.KVdd = signed(ee[eeVdd]>>8, 8) * 32
	p.Vdd25 = ((int(ee[eeVdd]&0xff) - 256) << 5) - 8192
}

func (p *Params) extractPTAT(ee []uint16) {
	p.KvPTAT = float64(signed(ee[eeKPTAT]>>10, 6)) / 4096
	p.KtPTAT = float64(signed(ee[eeKPTAT], 10)) / 8
	p.VPTAT25 = signed(ee[eePTAT25], 16)
	p.AlphaPTAT = float64(field(ee[eeScaleOcc], 12, 4))/4 + 8
}

// extractKsTo restores the temperature range corners and their slopes.
func (p *Params) extractKsTo(ee []uint16) {
	step := int(field(ee[eeCT], 12, 2)) * 10
	p.CT[0] = -40
	p.CT[1] = 0
	p.CT[2] = int(field(ee[eeCT], 4, 4)) * step
	p.CT[3] = p.CT[2] + int(field(ee[eeCT], 8, 4))*step
	p.CT[4] = 400

	scale := float64(uint64(1) << (field(ee[eeCT], 0, 4) + 8))
	p.KsTo[0] = float64(signed(ee[eeKsTo12], 8)) / scale
	p.KsTo[1] = float64(signed(ee[eeKsTo12]>>8, 8)) / scale
	p.KsTo[2] = float64(signed(ee[eeKsTo34], 8)) / scale
	p.KsTo[3] = float64(signed(ee[eeKsTo34]>>8, 8)) / scale
	p.KsTo[4] = -0.0002

	p.AlphaCorr[0] = 1 / (1 + p.KsTo[0]*float64(p.CT[1]-p.CT[0]))
	p.AlphaCorr[1] = 1
	p.AlphaCorr[2] = 1 + p.KsTo[1]*float64(p.CT[2]-p.CT[1])
	p.AlphaCorr[3] = p.AlphaCorr[2] * (1 + p.KsTo[2]*float64(p.CT[3]-p.CT[2]))
}

// extractCP restores the compensation pixel alpha, offset, kta and kv.
func (p *Params) extractCP(ee []uint16) {
	alphaScale := field(ee[eeScaleAcc], 12, 4) + 27
	p.CpAlpha[0] = float64(signed(ee[eeCpAlpha], 10)) / math.Pow(2, float64(alphaScale))
	p.CpAlpha[1] = p.CpAlpha[0] * (1 + float64(signed(ee[eeCpAlpha]>>10, 6))/128)

	p.CpOffset[0] = signed(ee[eeCpOffset], 10)
	p.CpOffset[1] = p.CpOffset[0] + signed(ee[eeCpOffset]>>10, 6)

	ktaScale1 := field(ee[eeScaleKvKta], 4, 4) + 8
	kvScale := field(ee[eeScaleKvKta], 8, 4)
	p.CpKta = float64(signed(ee[eeCpKvKta], 8)) / math.Pow(2, float64(ktaScale1))
	p.CpKv = float64(signed(ee[eeCpKvKta]>>8, 8)) / math.Pow(2, float64(kvScale))
}

func (p *Params) extractAlpha(ee []uint16) {
	remScale := field(ee[eeScaleAcc], 0, 4)
	colScale := field(ee[eeScaleAcc], 4, 4)
	rowScale := field(ee[eeScaleAcc], 8, 4)
	alphaScale := math.Pow(2, float64(field(ee[eeScaleAcc], 12, 4)+30))
	ref := int(ee[eeAlphaRef])

	for i := 0; i < int(model.Rows); i++ {
		accRow := nibble(ee, eeAccRow, i)
		for j := 0; j < int(model.Columns); j++ {
			n := i*int(model.Columns) + j
			accCol := nibble(ee, eeAccColumn, j)
			a := signed(ee[eePixel+n]>>4, 6)
			v := ref + accRow<<rowScale + accCol<<colScale + a<<remScale
			p.Alpha[n] = float64(v) / alphaScale
		}
	}
}

func (p *Params) extractOffset(ee []uint16) {
	remScale := field(ee[eeScaleOcc], 0, 4)
	colScale := field(ee[eeScaleOcc], 4, 4)
	rowScale := field(ee[eeScaleOcc], 8, 4)
	ref := signed(ee[eeOffsetRef], 16)

	for i := 0; i < int(model.Rows); i++ {
		occRow := nibble(ee, eeOccRow, i)
		for j := 0; j < int(model.Columns); j++ {
			n := i*int(model.Columns) + j
			occCol := nibble(ee, eeOccColumn, j)
			o := signed(ee[eePixel+n]>>10, 6)
			p.Offset[n] = ref + occRow<<rowScale + occCol<<colScale + o<<remScale
		}
	}
}

// split selects the row/column parity bucket used by kta and kv.
func split(row, col int) int {
	return 2*(row%2) + col%2
}

func (p *Params) extractKta(ee []uint16) {
	var rc [4]int
	rc[0] = signed(ee[eeKtaRC0]>>8, 8)
	rc[1] = signed(ee[eeKtaRC1]>>8, 8)
	rc[2] = signed(ee[eeKtaRC0], 8)
	rc[3] = signed(ee[eeKtaRC1], 8)
	scale1 := math.Pow(2, float64(field(ee[eeScaleKvKta], 4, 4)+8))
	scale2 := field(ee[eeScaleKvKta], 0, 4)

	for n := 0; n < model.Pixels; n++ {
		row, col := n/int(model.Columns), n%int(model.Columns)
		k := signed(ee[eePixel+n]>>1, 3)
		p.Kta[n] = float64(rc[split(row, col)]+k<<scale2) / scale1
	}
}

func (p *Params) extractKv(ee []uint16) {
	var rc [4]int
	rc[0] = signed(ee[eeKvRC]>>12, 4)
	rc[1] = signed(ee[eeKvRC]>>4, 4)
	rc[2] = signed(ee[eeKvRC]>>8, 4)
	rc[3] = signed(ee[eeKvRC], 4)
	scale := math.Pow(2, float64(field(ee[eeScaleKvKta], 8, 4)))

	for n := 0; n < model.Pixels; n++ {
		row, col := n/int(model.Columns), n%int(model.Columns)
		p.Kv[n] = float64(rc[split(row, col)]) / scale
	}
}

func (p *Params) extractILChess(ee []uint16) {
	p.CalibratedChess = ee[eeCalMode]&0x0800 == 0
	p.ILChessC[0] = float64(signed(ee[eeILChess], 6)) / 16
	p.ILChessC[1] = float64(signed(ee[eeILChess]>>6, 5)) / 2
	p.ILChessC[2] = float64(signed(ee[eeILChess]>>11, 5)) / 8
}

func (p *Params) extractDeviatingPixels(ee []uint16) {
	p.Broken = p.Broken[:0]
	p.Outliers = p.Outliers[:0]
	for n := 0; n < model.Pixels; n++ {
		w := ee[eePixel+n]
		switch {
		case w == 0:
			p.Broken = append(p.Broken, n)
		case w&1 != 0:
			p.Outliers = append(p.Outliers, n)
		}
	}
}

// Deviating reports whether pixel n is broken or an outlier.
func (p *Params) Deviating(n int) bool {
	for _, b := range p.Broken {
		if b == n {
			return true
		}
	}
	for _, o := range p.Outliers {
		if o == n {
			return true
		}
	}
	return false
}

// signed interprets the low bits of w as a two's complement value.
func signed(w uint16, bits uint) int {
	v := int(w) & (1<<bits - 1)
	if v >= 1<<(bits-1) {
		v -= 1 << bits
	}
	return v
}

func field(w uint16, shift, width uint) uint {
	return uint(w>>shift) & (1<<width - 1)
}

// nibble returns the i-th signed 4-bit value packed four per word from base.
func nibble(ee []uint16, base, i int) int {
	return signed(ee[base+i/4]>>(uint(i%4)*4), 4)
}
