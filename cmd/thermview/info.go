package main

import (
	"context"
	"fmt"
	"image/png"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/coreman2200/funtimes-thermview/internal/model"
	"github.com/coreman2200/funtimes-thermview/internal/render"
)

var snapshotPath string

func runInfo(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	s, err := openSensor(cfg)
	if err != nil {
		return err
	}
	defer s.bus.Close()

	ctrl, err := s.dev.Control()
	if err != nil {
		return err
	}
	st, err := s.dev.Status()
	if err != nil {
		return err
	}
	i2cCfg, err := s.dev.I2CConfig()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	var f model.Frame
	if err := s.dev.ReadFrame(ctx, &f); err != nil {
		return fmt.Errorf("read frame: %w", err)
	}
	lo, hi := f.Bounds()
	p := s.dev.Params()

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "DEVICE\t%s\n", s.dev)
	fmt.Fprintf(w, "ID\t%04x %04x %04x\n", p.DeviceID[0], p.DeviceID[1], p.DeviceID[2])
	fmt.Fprintf(w, "CONTROL\t0x%04x %s\n", uint16(ctrl), ctrl)
	fmt.Fprintf(w, "STATUS\t0x%04x %s\n", uint16(st), st)
	fmt.Fprintf(w, "I2C CONFIG\t0x%04x\n", i2cCfg)
	fmt.Fprintf(w, "CALIBRATED\t%d bit, chess %t\n", p.ResolutionEE.Bits(), p.CalibratedChess)
	fmt.Fprintf(w, "VDD\t%.3f V\n", s.dev.Vdd())
	fmt.Fprintf(w, "AMBIENT\t%.2f C\n", s.dev.Ambient())
	fmt.Fprintf(w, "FRAME\t%.2f .. %.2f C\n", lo, hi)
	fmt.Fprintf(w, "BROKEN\t%v\n", p.Broken)
	fmt.Fprintf(w, "OUTLIERS\t%v\n", p.Outliers)
	if err := w.Flush(); err != nil {
		return err
	}

	if snapshotPath != "" {
		return writeSnapshot(snapshotPath, &f, model.Calibration{Min: cfg.Colors.Min, Max: cfg.Colors.Max})
	}
	return nil
}

// writeSnapshot saves f as a 32x24 PNG in the terminal palette.
func writeSnapshot(path string, f *model.Frame, cal model.Calibration) error {
	out, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := png.Encode(out, render.Grid(f, cal)); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
