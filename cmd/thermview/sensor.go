package main

import (
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"

	"github.com/coreman2200/funtimes-thermview/internal/config"
	"github.com/coreman2200/funtimes-thermview/internal/mlx90640"
)

var (
	hostOnce sync.Once
	hostErr  error
)

func initHost() error {
	hostOnce.Do(func() {
		_, hostErr = host.Init()
	})
	return hostErr
}

type sensor struct {
	bus i2c.BusCloser
	dev *mlx90640.Dev
}

// openSensor opens the bus, restores the calibration and applies the
// configured refresh rate.
func openSensor(cfg *config.Config) (*sensor, error) {
	if err := initHost(); err != nil {
		return nil, err
	}
	bus, err := i2creg.Open(cfg.Sensor.Bus)
	if err != nil {
		return nil, fmt.Errorf("open i2c bus %q: %w", cfg.Sensor.Bus, err)
	}
	if err := bus.SetSpeed(cfg.Sensor.BusSpeed()); err != nil {
		log.Warn().Err(err).Str("speed", cfg.Sensor.BusSpeed().String()).Msg("bus speed not applied")
	}

	opts := mlx90640.DefaultOpts
	opts.Addr = cfg.Sensor.Addr
	opts.Emissivity = cfg.Sensor.Emissivity
	opts.TaShift = cfg.Sensor.TaShift
	opts.ReadTimeout = cfg.Sensor.ReadTimeout()
	dev, err := mlx90640.New(bus, &opts)
	if err != nil {
		bus.Close()
		return nil, err
	}

	rate, err := mlx90640.RateFor(cfg.Sensor.Rate())
	if err == nil {
		err = dev.SetRefreshRate(rate)
	}
	if err != nil {
		bus.Close()
		return nil, err
	}
	p := dev.Params()
	log.Info().
		Str("bus", bus.String()).
		Str("device", dev.String()).
		Str("rate", rate.String()).
		Int("broken", len(p.Broken)).
		Int("outliers", len(p.Outliers)).
		Msg("sensor ready")
	return &sensor{bus: bus, dev: dev}, nil
}
