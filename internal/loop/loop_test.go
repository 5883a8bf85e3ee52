package loop

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/coreman2200/funtimes-thermview/internal/model"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// moves the cursor back over a 24 row grid
const redrawPrefix = "\x1b[24A"

// script replays a fixed list of outcomes, then cancels.
type script struct {
	steps  []error
	temps  []float64
	cancel context.CancelFunc
	calls  int
}

func (s *script) ReadFrame(ctx context.Context, f *model.Frame) error {
	i := s.calls
	s.calls++
	if i >= len(s.steps) {
		if s.cancel != nil {
			s.cancel()
		}
		return ctx.Err()
	}
	if s.steps[i] != nil {
		return s.steps[i]
	}
	f.Fill(s.temps[i])
	return nil
}

type collector struct {
	got []float64
	err error
}

func (c *collector) Publish(f *model.Frame) error {
	c.got = append(c.got, f[0])
	return c.err
}

func TestStepDrawsFirstFrameWithoutCursorMove(t *testing.T) {
	src := &script{steps: []error{nil, nil}, temps: []float64{28, 28}}
	var out bytes.Buffer
	l := NewLooper(src, &out, model.DefaultCalibration(), zerolog.Nop())

	require.NoError(t, l.Step(context.Background()))
	first := out.String()
	assert.False(t, strings.HasPrefix(first, redrawPrefix))

	out.Reset()
	require.NoError(t, l.Step(context.Background()))
	assert.True(t, strings.HasPrefix(out.String(), redrawPrefix))
	assert.Equal(t, first, strings.TrimPrefix(out.String(), redrawPrefix))
	assert.Equal(t, uint64(2), l.Frames())
}

func TestStepDropsTransientErrors(t *testing.T) {
	transient := fmt.Errorf("sensor busy: %w", model.ErrTransient)
	src := &script{steps: []error{transient, nil}, temps: []float64{0, 30}}
	var out bytes.Buffer
	sink := &collector{}
	l := NewLooper(src, &out, model.DefaultCalibration(), zerolog.Nop(), sink)

	require.NoError(t, l.Step(context.Background()))
	assert.Zero(t, out.Len())
	assert.Empty(t, sink.got)
	assert.Equal(t, uint64(1), l.Dropped())

	require.NoError(t, l.Step(context.Background()))
	assert.False(t, strings.HasPrefix(out.String(), redrawPrefix))
	assert.Equal(t, []float64{30}, sink.got)
	assert.Equal(t, 30.0, l.Frame()[767])
}

func TestStepReturnsFatalErrors(t *testing.T) {
	fatal := errors.New("bus gone")
	src := &script{steps: []error{fatal}}
	l := NewLooper(src, nil, model.DefaultCalibration(), zerolog.Nop())

	err := l.Step(context.Background())
	assert.ErrorIs(t, err, fatal)
}

func TestStepSinkError(t *testing.T) {
	src := &script{steps: []error{nil}, temps: []float64{20}}
	sink := &collector{err: errors.New("full")}
	l := NewLooper(src, nil, model.DefaultCalibration(), zerolog.Nop(), sink)

	assert.ErrorIs(t, l.Step(context.Background()), sink.err)
}

func TestRunUntilCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	transient := fmt.Errorf("bad data: %w", model.ErrTransient)
	src := &script{
		steps:  []error{nil, transient, nil, nil},
		temps:  []float64{18, 0, 28, 38},
		cancel: cancel,
	}
	var out bytes.Buffer
	sink := &collector{}
	l := NewLooper(src, &out, model.DefaultCalibration(), zerolog.Nop(), sink)

	require.NoError(t, l.Run(ctx))
	assert.Equal(t, []float64{18, 28, 38}, sink.got)
	assert.Equal(t, uint64(3), l.Frames())
	assert.Equal(t, uint64(1), l.Dropped())
	assert.Equal(t, 2, strings.Count(out.String(), redrawPrefix))
}

func TestRunStopsOnFatalError(t *testing.T) {
	fatal := errors.New("no ack")
	src := &script{steps: []error{nil, fatal}, temps: []float64{20}}
	l := NewLooper(src, nil, model.DefaultCalibration(), zerolog.Nop())

	assert.ErrorIs(t, l.Run(context.Background()), fatal)
	assert.Equal(t, 2, src.calls)
}
