package main

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/coreman2200/funtimes-thermview/internal/config"
	"github.com/coreman2200/funtimes-thermview/internal/display"
	"github.com/coreman2200/funtimes-thermview/internal/loop"
	"github.com/coreman2200/funtimes-thermview/internal/model"
	"github.com/coreman2200/funtimes-thermview/internal/record"
	"github.com/coreman2200/funtimes-thermview/internal/stream"
)

const defaultConfigPath = "thermview.yaml"

var (
	configPath string
	logLevel   string
	busName    string
	addr       uint16
	rateHz     float64
	emissivity float64
	minTemp    float64
	maxTemp    float64
	ledOutput  string
	ledPort    string
	serpentine bool
	brightness float64
	listenAddr string
	recordPath string
	replayPath string
	loopReplay bool
)

func main() {
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})

	rootCmd := &cobra.Command{
		Use:           "thermview",
		Short:         "MLX90640 thermal camera viewer for the terminal",
		RunE:          runView,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", defaultConfigPath, "config file path (yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level")
	rootCmd.PersistentFlags().StringVar(&busName, "bus", "", "I2C bus name, empty for the first bus")
	rootCmd.PersistentFlags().Uint16Var(&addr, "addr", 0x33, "sensor I2C address")
	addRunFlags(rootCmd)

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "poll the sensor and draw frames",
		RunE:  runView,
	}
	addRunFlags(runCmd)

	infoCmd := &cobra.Command{
		Use:   "info",
		Short: "print sensor calibration and register state",
		RunE:  runInfo,
	}
	infoCmd.Flags().StringVar(&snapshotPath, "png", "", "also save the frame as a PNG")

	rootCmd.AddCommand(runCmd, infoCmd)

	if err := rootCmd.Execute(); err != nil {
		log.Error().Err(err).Msg("thermview failed")
		os.Exit(1)
	}
}

func addRunFlags(cmd *cobra.Command) {
	cmd.Flags().Float64Var(&rateHz, "rate", 2, "sub-page refresh rate in Hz")
	cmd.Flags().Float64Var(&emissivity, "emissivity", 0.95, "object emissivity")
	cmd.Flags().Float64Var(&minTemp, "min", model.DefaultMinTemp, "temperature drawn coldest")
	cmd.Flags().Float64Var(&maxTemp, "max", model.DefaultMaxTemp, "temperature drawn hottest")
	cmd.Flags().StringVar(&ledOutput, "led", "", "mirror frames to spi | screen")
	cmd.Flags().StringVar(&ledPort, "led-port", "", "SPI port for the LED strip")
	cmd.Flags().BoolVar(&serpentine, "serpentine", false, "LED strip zig-zags through the matrix")
	cmd.Flags().Float64Var(&brightness, "brightness", 0.5, "LED strip brightness 0..1")
	cmd.Flags().StringVar(&listenAddr, "listen", "", "serve /ws and /health on this address")
	cmd.Flags().StringVar(&recordPath, "record", "", "append frames to this log")
	cmd.Flags().StringVar(&replayPath, "replay", "", "play frames from this log instead of the sensor")
	cmd.Flags().BoolVar(&loopReplay, "loop", false, "restart the replay at its end")
}

// loadConfig reads the config file and lays changed flags over it.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) || cmd.Flags().Changed("config") {
			return nil, err
		}
		log.Debug().Str("path", configPath).Msg("no config file; using defaults")
		cfg = config.Default()
	}

	flags := cmd.Flags()
	if flags.Changed("log-level") {
		cfg.LogLevel = logLevel
	}
	if flags.Changed("bus") {
		cfg.Sensor.Bus = busName
	}
	if flags.Changed("addr") {
		cfg.Sensor.Addr = addr
	}
	if flags.Changed("rate") {
		cfg.Sensor.RateHz = rateHz
	}
	if flags.Changed("emissivity") {
		cfg.Sensor.Emissivity = emissivity
	}
	if flags.Changed("min") {
		cfg.Colors.Min = minTemp
	}
	if flags.Changed("max") {
		cfg.Colors.Max = maxTemp
	}
	if flags.Changed("led") {
		cfg.LED.Output = ledOutput
	}
	if flags.Changed("led-port") {
		cfg.LED.Port = ledPort
	}
	if flags.Changed("serpentine") {
		cfg.LED.Serpentine = serpentine
	}
	if flags.Changed("brightness") {
		cfg.LED.Brightness = brightness
	}
	if flags.Changed("listen") {
		cfg.Stream.Addr = listenAddr
	}
	if flags.Changed("record") {
		cfg.Record.Path = recordPath
	}
	if flags.Changed("replay") {
		cfg.Record.Replay = replayPath
	}
	if flags.Changed("loop") {
		cfg.Record.Loop = loopReplay
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	zerolog.SetGlobalLevel(cfg.Level())
	return cfg, nil
}

func runView(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	cal := model.Calibration{Min: cfg.Colors.Min, Max: cfg.Colors.Max}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	src, closeSrc, err := openSource(cfg)
	if err != nil {
		return err
	}
	defer closeSrc()

	var (
		out   io.Writer = os.Stdout
		sinks []loop.Sink
	)

	if cfg.LED.Output != "" {
		m, err := openMirror(cfg, cal)
		if err != nil {
			log.Warn().Err(err).Str("output", cfg.LED.Output).Msg("LED mirror unavailable; continuing without it")
		} else {
			defer m.Close()
			sinks = append(sinks, m)
			// the console strip owns stdout
			if cfg.LED.Output == display.KIND_SCREEN {
				out = nil
			}
		}
	}
	if out != nil && !term.IsTerminal(int(os.Stdout.Fd())) {
		log.Warn().Msg("stdout is not a terminal; escape codes are written as is")
	}

	if cfg.Stream.Addr != "" {
		hub := stream.NewHub(cal, log.With().Str("component", "stream").Logger())
		defer hub.Close()
		srv := &http.Server{
			Addr:         cfg.Stream.Addr,
			Handler:      hub.Handler(),
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		}
		go func() {
			log.Info().Str("addr", cfg.Stream.Addr).Msg("HTTP server starting")
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Error().Err(err).Msg("http server stopped")
			}
		}()
		defer srv.Close()
		sinks = append(sinks, hub)
	}

	if cfg.Record.Path != "" {
		w, err := record.Create(cfg.Record.Path)
		if err != nil {
			return err
		}
		defer w.Close()
		log.Info().Str("path", cfg.Record.Path).Msg("recording frames")
		sinks = append(sinks, w)
	}

	l := loop.NewLooper(src, out, cal, log.With().Str("component", "loop").Logger(), sinks...)
	err = l.Run(ctx)
	if errors.Is(err, io.EOF) {
		log.Info().Msg("replay finished")
		err = nil
	}
	log.Info().Uint64("frames", l.Frames()).Uint64("dropped", l.Dropped()).Msg("stopped")
	return err
}

func openMirror(cfg *config.Config, cal model.Calibration) (*display.Mirror, error) {
	if err := initHost(); err != nil {
		return nil, err
	}
	return display.Open(display.Opts{
		Kind:       cfg.LED.Output,
		Port:       cfg.LED.Port,
		Freq:       cfg.LED.Freq(),
		Serpentine: cfg.LED.Serpentine,
		Brightness: cfg.LED.Brightness,
		WhiteCap:   cfg.LED.WhiteCap,
	}, cal)
}

// openSource returns the sensor, or the replay log when one is configured.
func openSource(cfg *config.Config) (model.Source, func() error, error) {
	if cfg.Record.Replay != "" {
		rp, err := record.Open(cfg.Record.Replay, record.ReplayOpts{
			Interval: 2 * cfg.Sensor.Rate().Period(),
			Loop:     cfg.Record.Loop,
		})
		if err != nil {
			return nil, nil, err
		}
		log.Info().Str("path", cfg.Record.Replay).Bool("loop", cfg.Record.Loop).Msg("replaying frames")
		return rp, rp.Close, nil
	}
	s, err := openSensor(cfg)
	if err != nil {
		return nil, nil, err
	}
	return s.dev, s.bus.Close, nil
}
