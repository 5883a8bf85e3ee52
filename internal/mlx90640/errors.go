package mlx90640

import (
	"errors"
	"fmt"

	"github.com/coreman2200/funtimes-thermview/internal/model"
)

// ErrNotReady is returned when no new sub-page arrived within the read timeout.
var ErrNotReady = fmt.Errorf("mlx90640: data not ready: %w", model.ErrTransient)

var errVerify = errors.New("mlx90640: register write not applied")

// DataError reports a RAM word holding the invalid marker 0x7fff. The device
// produces these while a measurement is in flight; the next read is usually fine.
type DataError struct {
	Addr  uint16
	Value uint16
}

func (e *DataError) Error() string {
	return fmt.Sprintf("mlx90640: RAM[0x%04x] bad data 0x%04x", e.Addr, e.Value)
}

func (e *DataError) Unwrap() error { return model.ErrTransient }
