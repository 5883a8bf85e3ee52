package config

import (
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
	"periph.io/x/conn/v3/physic"
)

type Sensor struct {
	Bus           string  `yaml:"bus"` // i2creg name, empty for the first bus
	Addr          uint16  `yaml:"addr"`
	BusKHz        int     `yaml:"bus_khz"`
	RateHz        float64 `yaml:"rate_hz"`
	Emissivity    float64 `yaml:"emissivity"`
	TaShift       float64 `yaml:"ta_shift"`
	ReadTimeoutMs int     `yaml:"read_timeout_ms"` // 0 waits two refresh periods
}

type Colors struct {
	Min float64 `yaml:"min"`
	Max float64 `yaml:"max"`
}

type LED struct {
	Output     string  `yaml:"output"` // "" | "spi" | "screen"
	Port       string  `yaml:"port"`
	FreqKHz    int     `yaml:"freq_khz"`
	Serpentine bool    `yaml:"serpentine"`
	Brightness float64 `yaml:"brightness"`
	WhiteCap   float64 `yaml:"white_cap"`
}

type Stream struct {
	Addr string `yaml:"addr"` // e.g. :8080, empty disables
}

type Record struct {
	Path   string `yaml:"path"`   // frames are appended here when set
	Replay string `yaml:"replay"` // read frames from this log instead of the sensor
	Loop   bool   `yaml:"loop"`
}

type Config struct {
	LogLevel string `yaml:"log_level"`
	Sensor   Sensor `yaml:"sensor"`
	Colors   Colors `yaml:"colors"`
	LED      LED    `yaml:"led,omitempty"`
	Stream   Stream `yaml:"stream,omitempty"`
	Record   Record `yaml:"record,omitempty"`
}

func Default() *Config {
	return &Config{
		LogLevel: "info",
		Sensor: Sensor{
			Addr:       0x33,
			BusKHz:     800,
			RateHz:     2,
			Emissivity: 0.95,
			TaShift:    8,
		},
		Colors: Colors{Min: 18, Max: 38},
		LED:    LED{Brightness: 0.5, WhiteCap: 0.85},
	}
}

// Load reads path over the defaults.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	c := Default()
	if err := yaml.Unmarshal(b, c); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return c, nil
}

func Save(path string, c *Config) error {
	b, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0644)
}

var rates = []float64{0.5, 1, 2, 4, 8, 16, 32, 64}

func (c *Config) Validate() error {
	if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("log_level: %w", err)
	}
	if c.Sensor.Addr == 0 || c.Sensor.Addr > 0x7f {
		return fmt.Errorf("sensor.addr 0x%x is not a 7-bit address", c.Sensor.Addr)
	}
	if c.Sensor.BusKHz <= 0 || c.Sensor.BusKHz > 1000 {
		return fmt.Errorf("sensor.bus_khz %d out of range (0, 1000]", c.Sensor.BusKHz)
	}
	valid := false
	for _, r := range rates {
		if c.Sensor.RateHz == r {
			valid = true
		}
	}
	if !valid {
		return fmt.Errorf("sensor.rate_hz %v not one of %v", c.Sensor.RateHz, rates)
	}
	if c.Sensor.Emissivity <= 0 || c.Sensor.Emissivity > 1 {
		return fmt.Errorf("sensor.emissivity %v out of range (0, 1]", c.Sensor.Emissivity)
	}
	if c.Sensor.ReadTimeoutMs < 0 {
		return fmt.Errorf("sensor.read_timeout_ms must not be negative")
	}
	if c.Colors.Min >= c.Colors.Max {
		return fmt.Errorf("colors.min %v must be below colors.max %v", c.Colors.Min, c.Colors.Max)
	}
	switch c.LED.Output {
	case "", "spi", "screen":
	default:
		return fmt.Errorf("led.output %q: want spi or screen", c.LED.Output)
	}
	if c.LED.Brightness < 0 || c.LED.Brightness > 1 {
		return fmt.Errorf("led.brightness %v out of range [0, 1]", c.LED.Brightness)
	}
	if c.Record.Path != "" && c.Record.Path == c.Record.Replay {
		return fmt.Errorf("record.path and record.replay are the same file")
	}
	return nil
}

// Level is the parsed log level, info when unset.
func (c *Config) Level() zerolog.Level {
	l, err := zerolog.ParseLevel(c.LogLevel)
	if err != nil || c.LogLevel == "" {
		return zerolog.InfoLevel
	}
	return l
}

func (s Sensor) BusSpeed() physic.Frequency {
	return physic.Frequency(s.BusKHz) * physic.KiloHertz
}

func (s Sensor) Rate() physic.Frequency {
	return physic.Frequency(s.RateHz * float64(physic.Hertz))
}

func (s Sensor) ReadTimeout() time.Duration {
	return time.Duration(s.ReadTimeoutMs) * time.Millisecond
}

func (l LED) Freq() physic.Frequency {
	return physic.Frequency(l.FreqKHz) * physic.KiloHertz
}
