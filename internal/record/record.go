// Package record stores frames in a raw log and plays them back.
//
// A log starts with an 8 byte magic followed by records of
// [u64 LE unix nano][u32 LE payload length][CBOR payload].
package record

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/fxamacker/cbor/v2"

	"github.com/coreman2200/funtimes-thermview/internal/model"
)

const magic = "THERMV01"

// refuse payloads far larger than one frame can encode to
const maxPayload = 64 * 1024

var ErrBadMagic = errors.New("record: not a frame log")

type payload struct {
	T     int64     `cbor:"t"`
	Temps []float64 `cbor:"temps"`
}

// Record is one logged frame.
type Record struct {
	At    time.Time
	Frame model.Frame
}

type Writer struct {
	mu sync.Mutex
	c  io.Closer
	w  *bufio.Writer
}

// Create truncates path and starts a new log.
func Create(path string) (*Writer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	w, err := NewWriter(f)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	w.c = f
	return w, nil
}

func NewWriter(w io.Writer) (*Writer, error) {
	bw := bufio.NewWriter(w)
	if _, err := bw.WriteString(magic); err != nil {
		return nil, err
	}
	if err := bw.Flush(); err != nil {
		return nil, err
	}
	return &Writer{w: bw}, nil
}

// Publish appends f stamped with the current time.
func (w *Writer) Publish(f *model.Frame) error {
	return w.Write(time.Now(), f)
}

func (w *Writer) Write(at time.Time, f *model.Frame) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.w == nil {
		return fmt.Errorf("record: writer is closed")
	}
	b, err := cbor.Marshal(payload{T: at.UnixNano(), Temps: f[:]})
	if err != nil {
		return fmt.Errorf("record: encode: %w", err)
	}
	var header [12]byte
	binary.LittleEndian.PutUint64(header[:8], uint64(at.UnixNano()))
	binary.LittleEndian.PutUint32(header[8:12], uint32(len(b)))
	if _, err := w.w.Write(header[:]); err != nil {
		return err
	}
	if _, err := w.w.Write(b); err != nil {
		return err
	}
	return w.w.Flush()
}

func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.w == nil {
		return nil
	}
	err := w.w.Flush()
	w.w = nil
	if w.c != nil {
		if cerr := w.c.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

type Reader struct {
	r *bufio.Reader
}

// NewReader checks the log magic of r.
func NewReader(r io.Reader) (*Reader, error) {
	br := bufio.NewReader(r)
	var m [len(magic)]byte
	if _, err := io.ReadFull(br, m[:]); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, ErrBadMagic
		}
		return nil, err
	}
	if string(m[:]) != magic {
		return nil, ErrBadMagic
	}
	return &Reader{r: br}, nil
}

// Next decodes the following record. It returns io.EOF at a clean end of log
// and io.ErrUnexpectedEOF on a truncated record.
func (r *Reader) Next() (*Record, error) {
	var header [12]byte
	if _, err := io.ReadFull(r.r, header[:]); err != nil {
		return nil, err
	}
	n := binary.LittleEndian.Uint32(header[8:12])
	if n > maxPayload {
		return nil, fmt.Errorf("record: payload of %d bytes", n)
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r.r, b); err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return nil, err
	}
	var p payload
	if err := cbor.Unmarshal(b, &p); err != nil {
		return nil, fmt.Errorf("record: decode: %w", err)
	}
	if len(p.Temps) != model.Pixels {
		return nil, fmt.Errorf("record: frame has %d readings, want %d", len(p.Temps), model.Pixels)
	}
	rec := &Record{At: time.Unix(0, int64(binary.LittleEndian.Uint64(header[:8])))}
	copy(rec.Frame[:], p.Temps)
	return rec, nil
}
