package record

import (
	"context"
	"errors"
	"io"
	"os"
	"time"

	"github.com/coreman2200/funtimes-thermview/internal/model"
)

type ReplayOpts struct {
	// Interval between two frames; 0 plays as fast as frames are asked for.
	Interval time.Duration
	// Loop restarts at the first frame instead of returning io.EOF.
	Loop bool
}

// Replay is a model.Source reading frames back from a log.
type Replay struct {
	src    io.ReadSeeker
	c      io.Closer
	r      *Reader
	opts   ReplayOpts
	ticker *time.Ticker
}

// Open replays the log at path.
func Open(path string, opts ReplayOpts) (*Replay, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	rp, err := NewReplay(f, opts)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	rp.c = f
	return rp, nil
}

func NewReplay(src io.ReadSeeker, opts ReplayOpts) (*Replay, error) {
	r, err := NewReader(src)
	if err != nil {
		return nil, err
	}
	rp := &Replay{src: src, r: r, opts: opts}
	if opts.Interval > 0 {
		rp.ticker = time.NewTicker(opts.Interval)
	}
	return rp, nil
}

// ReadFrame waits for the next tick and copies the next logged frame to f.
func (rp *Replay) ReadFrame(ctx context.Context, f *model.Frame) error {
	if rp.ticker != nil {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-rp.ticker.C:
		}
	} else if err := ctx.Err(); err != nil {
		return err
	}

	rec, err := rp.r.Next()
	if errors.Is(err, io.EOF) && rp.opts.Loop {
		if err = rp.rewind(); err != nil {
			return err
		}
		rec, err = rp.r.Next()
	}
	if err != nil {
		return err
	}
	*f = rec.Frame
	return nil
}

func (rp *Replay) rewind() error {
	if _, err := rp.src.Seek(0, io.SeekStart); err != nil {
		return err
	}
	r, err := NewReader(rp.src)
	if err != nil {
		return err
	}
	rp.r = r
	return nil
}

func (rp *Replay) Close() error {
	if rp.ticker != nil {
		rp.ticker.Stop()
	}
	if rp.c != nil {
		return rp.c.Close()
	}
	return nil
}
