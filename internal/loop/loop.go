package loop

import (
	"context"
	"fmt"
	"io"

	"github.com/coreman2200/funtimes-thermview/internal/model"
	"github.com/coreman2200/funtimes-thermview/internal/render"
	"github.com/rs/zerolog"
)

// Sink receives every frame that made it to the terminal.
type Sink interface {
	Publish(f *model.Frame) error
}

// Looper polls a Source and renders each frame in place.
type Looper struct {
	src   model.Source
	out   io.Writer
	cal   model.Calibration
	sinks []Sink
	log   zerolog.Logger

	frame   model.Frame
	printed bool
	frames  uint64
	dropped uint64
}

// NewLooper builds a loop drawing to out. A nil out skips the terminal grid.
func NewLooper(src model.Source, out io.Writer, cal model.Calibration, log zerolog.Logger, sinks ...Sink) *Looper {
	return &Looper{
		src:   src,
		out:   out,
		cal:   cal,
		sinks: sinks,
		log:   log,
	}
}

// Step acquires one frame, draws it and hands it to the sinks. Transient
// acquisition errors drop the cycle and return nil.
func (l *Looper) Step(ctx context.Context) error {
	if err := l.src.ReadFrame(ctx, &l.frame); err != nil {
		if model.IsTransient(err) {
			l.dropped++
			l.log.Debug().Err(err).Uint64("dropped", l.dropped).Msg("frame dropped")
			return nil
		}
		return fmt.Errorf("read frame: %w", err)
	}
	l.frames++

	if l.out != nil {
		if err := render.Draw(l.out, &l.frame, l.cal, l.printed); err != nil {
			return fmt.Errorf("draw frame: %w", err)
		}
		l.printed = true
	}
	for _, s := range l.sinks {
		if err := s.Publish(&l.frame); err != nil {
			return fmt.Errorf("publish frame: %w", err)
		}
	}
	return nil
}

// Run steps until ctx is done or a step fails. Cancellation is not an error.
func (l *Looper) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}
		if err := l.Step(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
	}
}

// Frame returns the last acquired frame.
func (l *Looper) Frame() *model.Frame {
	return &l.frame
}

// Frames is the number of frames acquired so far.
func (l *Looper) Frames() uint64 {
	return l.frames
}

// Dropped is the number of cycles lost to transient errors.
func (l *Looper) Dropped() uint64 {
	return l.dropped
}
