package model

import (
	"context"
	"errors"
	"math"
)

const (
	Columns uint8 = 32
	Rows    uint8 = 24
	Pixels        = int(Columns) * int(Rows)
)

// ErrTransient marks acquisition failures that only cost the current cycle.
var ErrTransient = errors.New("transient frame error")

// Frame holds one full sensor image in degrees Celsius, row-major.
type Frame [Pixels]float64

func (f *Frame) At(row, col int) float64 {
	return f[row*int(Columns)+col]
}

func (f *Frame) Set(row, col int, t float64) {
	f[row*int(Columns)+col] = t
}

// Fill sets every pixel to t.
func (f *Frame) Fill(t float64) {
	for i := range f {
		f[i] = t
	}
}

// Bounds returns the coldest and hottest readings, ignoring NaN. Both are
// NaN when no pixel holds a reading.
func (f *Frame) Bounds() (lo, hi float64) {
	lo, hi = math.NaN(), math.NaN()
	for _, v := range f {
		if math.IsNaN(v) {
			continue
		}
		if math.IsNaN(lo) || v < lo {
			lo = v
		}
		if math.IsNaN(hi) || v > hi {
			hi = v
		}
	}
	return lo, hi
}

// Source produces frames. ReadFrame blocks until a frame is written to f or
// fails; errors wrapping ErrTransient may be retried.
type Source interface {
	ReadFrame(ctx context.Context, f *Frame) error
}

// IsTransient reports whether err only drops the current acquisition.
func IsTransient(err error) bool {
	return errors.Is(err, ErrTransient)
}
