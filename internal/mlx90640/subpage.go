package mlx90640

import (
	"math"

	"github.com/coreman2200/funtimes-thermview/internal/model"
)

const (
	kelvin  = 273.15
	vdd0    = 3.3
	ta0     = 25.0
	badWord = 0x7fff
)

// RAM word offsets from 0x0400
const (
	ramAux  = 0x300
	ramVbe  = 0x300
	ramCP0  = 0x308
	ramGain = 0x30a
	ramPTAT = 0x320
	ramCP1  = 0x328
	ramVdd  = 0x32a
)

// aux words that must never hold the invalid marker, as [start, count) pairs
var auxRanges = [][2]int{{0, 1}, {8, 11}, {20, 3}, {24, 9}, {40, 11}, {52, 3}, {56, 8}}

// subPage is one RAM snapshot with the control register it was measured under.
type subPage struct {
	ram     []uint16
	control Control
	index   int
}

// pattern returns the sub-page pixel n belongs to.
func pattern(n int, chess bool) int {
	row := (n / int(model.Columns)) & 1
	if chess {
		return row ^ (n & 1)
	}
	return row
}

// validate rejects sub-pages carrying the invalid marker in their own pixel
// rows or in the auxiliary words.
func (s *subPage) validate() error {
	for row := 0; row < int(model.Rows); row++ {
		if row%2 != s.index {
			continue
		}
		n := row * int(model.Columns)
		if s.ram[n] == badWord {
			return &DataError{Addr: ramStart + uint16(n), Value: s.ram[n]}
		}
	}
	for _, r := range auxRanges {
		for i := r[0]; i < r[0]+r[1]; i++ {
			if s.ram[ramAux+i] == badWord {
				return &DataError{Addr: ramStart + uint16(ramAux+i), Value: badWord}
			}
		}
	}
	return nil
}

// vdd is the supply voltage, datasheet 11.2.2.2.
func (p *Params) vdd(s *subPage) float64 {
	corr := math.Pow(2, float64(p.ResolutionEE)) / math.Pow(2, float64(s.control.Resolution()))
	raw := float64(signed(s.ram[ramVdd], 16))
	return (corr*raw-float64(p.Vdd25))/float64(p.KVdd) + vdd0
}

// ta is the sensor ambient temperature, datasheet 11.2.2.3.
func (p *Params) ta(s *subPage, vdd float64) float64 {
	ptat := float64(signed(s.ram[ramPTAT], 16))
	vbe := float64(signed(s.ram[ramVbe], 16))
	art := ptat / (ptat*p.AlphaPTAT + vbe) * (1 << 18)
	t := art/(1+p.KvPTAT*(vdd-vdd0)) - float64(p.VPTAT25)
	return t/p.KtPTAT + ta0
}

// rangeOf picks the extended range bucket for a first pass temperature.
func (p *Params) rangeOf(to float64) int {
	switch {
	case to < float64(p.CT[1]):
		return 0
	case to < float64(p.CT[2]):
		return 1
	case to < float64(p.CT[3]):
		return 2
	}
	return 3
}

// objectTemps writes the object temperature of every pixel measured in s to
// dst, datasheet 11.2.2.5 to 11.2.2.9. tr is the reflected temperature.
func (p *Params) objectTemps(s *subPage, vdd, ta, emissivity, tr float64, dst *model.Frame) {
	ta4 := math.Pow(ta+kelvin, 4)
	tr4 := math.Pow(tr+kelvin, 4)
	taTr := tr4 - (tr4-ta4)/emissivity

	gain := float64(p.GainEE) / float64(signed(s.ram[ramGain], 16))
	chess := s.control.Chess()
	dTa := ta - ta0
	dV := vdd - vdd0

	cpMul := (1 + p.CpKta*dTa) * (1 + p.CpKv*dV)
	var irCP [2]float64
	irCP[0] = float64(signed(s.ram[ramCP0], 16))*gain - float64(p.CpOffset[0])*cpMul
	irCP[1] = float64(signed(s.ram[ramCP1], 16)) * gain
	if chess == p.CalibratedChess {
		irCP[1] -= float64(p.CpOffset[1]) * cpMul
	} else {
		irCP[1] -= (float64(p.CpOffset[1]) + p.ILChessC[0]) * cpMul
	}

	for n := 0; n < model.Pixels; n++ {
		if pattern(n, chess) != s.index {
			continue
		}
		il := (n / int(model.Columns)) & 1
		conv := ((n+2)/4 - (n+3)/4 + (n+1)/4 - n/4) * (1 - 2*il)

		ir := float64(signed(s.ram[n], 16)) * gain
		ir -= float64(p.Offset[n]) * (1 + p.Kta[n]*dTa) * (1 + p.Kv[n]*dV)
		if chess != p.CalibratedChess {
			ir += p.ILChessC[2]*float64(2*il-1) - p.ILChessC[1]*float64(conv)
		}
		ir /= emissivity
		ir -= p.Tgc * irCP[s.index]

		alpha := (p.Alpha[n] - p.Tgc*p.CpAlpha[s.index]) * (1 + p.KsTa*dTa)
		sx := p.KsTo[1] * math.Sqrt(math.Sqrt(alpha*alpha*alpha*(ir+alpha*taTr)))
		to := math.Sqrt(math.Sqrt(ir/(alpha*(1-p.KsTo[1]*kelvin)+sx)+taTr)) - kelvin

		r := p.rangeOf(to)
		to = math.Sqrt(math.Sqrt(ir/(alpha*p.AlphaCorr[r]*(1+p.KsTo[r]*(to-float64(p.CT[r]))))+taTr)) - kelvin
		dst[n] = to
	}
}

// correct replaces deviating pixels with the mean of their healthy
// horizontal and vertical neighbours.
func (p *Params) correct(f *model.Frame) {
	fix := func(n int) {
		row, col := n/int(model.Columns), n%int(model.Columns)
		var sum float64
		var cnt int
		for _, d := range [][2]int{{-1, 0}, {1, 0}, {0, -1}, {0, 1}} {
			r, c := row+d[0], col+d[1]
			if r < 0 || r >= int(model.Rows) || c < 0 || c >= int(model.Columns) {
				continue
			}
			m := r*int(model.Columns) + c
			if p.Deviating(m) {
				continue
			}
			sum += f[m]
			cnt++
		}
		if cnt > 0 {
			f[n] = sum / float64(cnt)
		}
	}
	for _, n := range p.Broken {
		fix(n)
	}
	for _, n := range p.Outliers {
		fix(n)
	}
}
