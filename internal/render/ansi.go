package render

import (
	"bufio"
	"io"
	"strconv"

	"github.com/coreman2200/funtimes-thermview/internal/model"
)

// Pre-built escape fragments
var (
	csi         = []byte("\x1b[")
	csiCursorUp = []byte("A")
	csiBg256    = []byte("\x1b[48;5;")
	csiSgrEnd   = []byte("m")
	csiReset    = []byte("\x1b[m")
	pixel       = []byte("  ")
)

// Draw writes f as a grid of two-column cells. When redraw is set the cursor
// is first moved back over the previous grid so it is overwritten in place.
func Draw(w io.Writer, f *model.Frame, cal model.Calibration, redraw bool) error {
	bw := bufio.NewWriterSize(w, int(model.Rows)*(int(model.Columns)*13+4)+8)
	if redraw {
		bw.Write(csi)
		writeInt(bw, int(model.Rows))
		bw.Write(csiCursorUp)
	}
	for row := 0; row < int(model.Rows); row++ {
		for col := 0; col < int(model.Columns); col++ {
			bw.Write(csiBg256)
			writeInt(bw, int(model.ColorIndex(f.At(row, col), cal)))
			bw.Write(csiSgrEnd)
			bw.Write(pixel)
		}
		bw.Write(csiReset)
		bw.WriteByte('\n')
	}
	return bw.Flush()
}

// writeInt avoids strconv allocations for small non-negative values.
func writeInt(w *bufio.Writer, n int) {
	if n < 0 {
		n = 0
	}
	if n < 10 {
		w.WriteByte(byte(n) + '0')
		return
	}
	if n < 100 {
		w.WriteByte(byte(n/10) + '0')
		w.WriteByte(byte(n%10) + '0')
		return
	}
	if n < 1000 {
		w.WriteByte(byte(n/100) + '0')
		w.WriteByte(byte(n/10%10) + '0')
		w.WriteByte(byte(n%10) + '0')
		return
	}
	w.WriteString(strconv.Itoa(n))
}
