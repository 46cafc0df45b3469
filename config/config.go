// Package config loads the description of a simulation run from YAML and
// the environment.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

// Environment variables that override file values.
const (
	EnvStopTime    = "EVSIM_STOP_TIME"
	EnvLogLevel    = "EVSIM_LOG_LEVEL"
	EnvMonitorPort = "EVSIM_MONITOR_PORT"
	EnvOutput      = "EVSIM_OUTPUT"
	EnvSeed        = "EVSIM_SEED"
	EnvRun         = "EVSIM_RUN"
)

// Limits of the random stream selection.
const (
	MaxSeed uint64 = 4294944436
	MaxRun  uint64 = 1 << 20
)

// Flow kinds.
const (
	KindOnOff = "onoff"
	KindEcho  = "echo"
)

// Config is a simulation run.
type Config struct {
	StopTime time.Duration `yaml:"stopTime"`
	LogLevel string        `yaml:"logLevel"`

	// Seed and Run select the random streams of the flows. Streams are
	// handed out in flow order, so a run is reproducible as long as Seed,
	// Run, and the flow list do not change.
	Seed uint64 `yaml:"seed"`
	Run  uint64 `yaml:"run"`

	Monitor   MonitorConfig   `yaml:"monitor"`
	Recording RecordingConfig `yaml:"recording"`
	Flows     []FlowConfig    `yaml:"flows"`
}

// MonitorConfig controls the monitoring server.
type MonitorConfig struct {
	Enabled     bool `yaml:"enabled"`
	Port        int  `yaml:"port"`
	OpenBrowser bool `yaml:"open"`
}

// RecordingConfig controls the SQLite recording.
type RecordingConfig struct {
	Enabled bool   `yaml:"enabled"`
	Output  string `yaml:"output"`
	Events  bool   `yaml:"events"`
}

// FlowConfig describes one traffic flow between two nodes.
type FlowConfig struct {
	Name        string        `yaml:"name"`
	Kind        string        `yaml:"kind"`
	Source      uint32        `yaml:"source"`
	Destination uint32        `yaml:"destination"`
	Start       time.Duration `yaml:"start"`
	Stop        time.Duration `yaml:"stop"`
	Interval    time.Duration `yaml:"interval"`
	PacketSize  int           `yaml:"packetSize"`
	LinkDelay   time.Duration `yaml:"linkDelay"`
	MaxPackets  int           `yaml:"maxPackets"`

	// OnTime and OffTime are the means of the exponential on and off
	// periods. A zero OffTime keeps the source always on.
	OnTime  time.Duration `yaml:"onTime"`
	OffTime time.Duration `yaml:"offTime"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		StopTime: 10 * time.Second,
		LogLevel: "info",
		Seed:     1,
		Run:      1,
	}
}

// Load reads a YAML (or JSON) file on top of the defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading config %s", path)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, errors.Wrapf(err, "parsing config %s", path)
	}

	return cfg, nil
}

// Parse decodes a YAML document on top of the defaults.
func Parse(data []byte) (*Config, error) {
	cfg := Default()

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrap(err, "yaml unmarshal")
	}

	cfg.applyDefaults()

	return cfg, nil
}

func (c *Config) applyDefaults() {
	for i := range c.Flows {
		f := &c.Flows[i]

		if f.Kind == "" {
			f.Kind = KindOnOff
		}

		if f.PacketSize == 0 {
			f.PacketSize = 1024
		}
	}
}

// LoadDotEnv loads environment variables from the given files, or from
// ".env" in the working directory if none are given. Variables already set
// are not replaced. A missing default .env file is not an error.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		if _, err := os.Stat(".env"); os.IsNotExist(err) {
			return nil
		}
	}

	return errors.Wrap(godotenv.Load(files...), "loading .env")
}

// ApplyEnv overrides fields from the environment, looked up with lookup
// (usually os.LookupEnv). Setting EVSIM_MONITOR_PORT enables monitoring and
// setting EVSIM_OUTPUT enables recording.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup(EnvStopTime); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return errors.Wrapf(err, "%s", EnvStopTime)
		}

		c.StopTime = d
	}

	if v, ok := lookup(EnvLogLevel); ok {
		c.LogLevel = v
	}

	if v, ok := lookup(EnvMonitorPort); ok {
		port, err := strconv.Atoi(v)
		if err != nil {
			return errors.Wrapf(err, "%s", EnvMonitorPort)
		}

		c.Monitor.Enabled = true
		c.Monitor.Port = port
	}

	if v, ok := lookup(EnvSeed); ok {
		seed, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return errors.Wrapf(err, "%s", EnvSeed)
		}

		c.Seed = seed
	}

	if v, ok := lookup(EnvRun); ok {
		run, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return errors.Wrapf(err, "%s", EnvRun)
		}

		c.Run = run
	}

	if v, ok := lookup(EnvOutput); ok {
		c.Recording.Enabled = true
		c.Recording.Output = v
	}

	return nil
}

// Level returns the zerolog level named by LogLevel.
func (c *Config) Level() (zerolog.Level, error) {
	if c.LogLevel == "" {
		return zerolog.InfoLevel, nil
	}

	level, err := zerolog.ParseLevel(c.LogLevel)
	if err != nil {
		return zerolog.NoLevel, errors.Wrapf(err, "log level %q", c.LogLevel)
	}

	return level, nil
}

// Validate reports the first problem found in the configuration.
func (c *Config) Validate() error {
	if c.StopTime <= 0 {
		return errors.Errorf("stop time must be positive, got %s", c.StopTime)
	}

	if _, err := c.Level(); err != nil {
		return err
	}

	if c.Seed == 0 || c.Seed > MaxSeed {
		return errors.Errorf("seed must be in [1, %d], got %d", MaxSeed, c.Seed)
	}

	if c.Run > MaxRun {
		return errors.Errorf("run must not exceed %d, got %d", MaxRun, c.Run)
	}

	if c.Monitor.Port < 0 || c.Monitor.Port > 65535 {
		return errors.Errorf("monitor port %d out of range", c.Monitor.Port)
	}

	names := make(map[string]bool, len(c.Flows))
	for i := range c.Flows {
		f := &c.Flows[i]

		if err := f.Validate(); err != nil {
			return errors.Wrapf(err, "flow %d", i)
		}

		if names[f.Name] {
			return errors.Errorf("duplicate flow name %q", f.Name)
		}

		names[f.Name] = true
	}

	return nil
}

// Validate checks a single flow.
func (f *FlowConfig) Validate() error {
	switch {
	case f.Name == "":
		return errors.New("name is required")
	case f.Kind != KindOnOff && f.Kind != KindEcho:
		return errors.Errorf("%s: unknown kind %q", f.Name, f.Kind)
	case f.Interval <= 0:
		return errors.Errorf("%s: interval must be positive", f.Name)
	case f.PacketSize <= 0:
		return errors.Errorf("%s: packet size must be positive", f.Name)
	case f.Start < 0 || f.LinkDelay < 0 || f.OnTime < 0 || f.OffTime < 0:
		return errors.Errorf("%s: negative duration", f.Name)
	case f.OffTime > 0 && f.OnTime == 0:
		return errors.Errorf("%s: off time needs an on time", f.Name)
	case f.Stop != 0 && f.Stop <= f.Start:
		return errors.Errorf("%s: stop %s is not after start %s",
			f.Name, f.Stop, f.Start)
	case f.MaxPackets < 0:
		return errors.Errorf("%s: max packets must not be negative", f.Name)
	}

	return nil
}
