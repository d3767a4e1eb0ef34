package main

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/bodul/lightsout/internal/lights"
	"github.com/sirupsen/logrus"
)

// Config holds the server and game settings.
type Config struct {
	Port        string   `toml:"port"`
	GridSize    int      `toml:"grid_size"`
	PacingDelay Duration `toml:"pacing_delay"`
	LogLevel    string   `toml:"log_level"`
	LogFormat   string   `toml:"log_format"` // "text" or "json"
	GCPProject  string   `toml:"gcp_project_id"`
	GCPRegion   string   `toml:"gcp_region"`
	GCPModel    string   `toml:"gcp_model"`
}

// Duration is a time.Duration read from strings such as "1300ms".
type Duration time.Duration

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Delay returns the pacing delay as a time.Duration.
func (c Config) Delay() time.Duration {
	return time.Duration(c.PacingDelay)
}

// DefaultConfig returns the built-in settings.
func DefaultConfig() Config {
	return Config{
		Port:        "8080",
		GridSize:    lights.DefaultSize,
		PacingDelay: Duration(lights.DefaultPacingDelay),
		LogLevel:    "info",
		LogFormat:   "text",
	}
}

// LoadConfig builds the configuration from defaults, then the TOML file at
// path (skipped when path is empty), then the environment read by getenv.
func LoadConfig(path string, getenv func(string) string) (Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		md, err := toml.DecodeFile(path, &cfg)
		if err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			return Config{}, fmt.Errorf("read config %s: unknown keys %v", path, undecoded)
		}
	}

	if v := getenv("PORT"); v != "" {
		cfg.Port = v
	}
	if v := getenv("LIGHTS_GRID_SIZE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("LIGHTS_GRID_SIZE: %w", err)
		}
		cfg.GridSize = n
	}
	if v := getenv("LIGHTS_PACING_DELAY"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return Config{}, fmt.Errorf("LIGHTS_PACING_DELAY: %w", err)
		}
		cfg.PacingDelay = Duration(d)
	}
	if v := getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := getenv("GCP_PROJECT_ID"); v != "" {
		cfg.GCPProject = v
	}
	if v := getenv("GCP_REGION"); v != "" {
		cfg.GCPRegion = v
	}
	if v := getenv("GCP_MODEL"); v != "" {
		cfg.GCPModel = v
	}

	return cfg, cfg.Validate()
}

// Coach returns the settings of the Gemini coach.
func (c Config) Coach() CoachSettings {
	return CoachSettings{Project: c.GCPProject, Region: c.GCPRegion, Model: c.GCPModel}
}

// Validate reports settings that cannot run.
func (c Config) Validate() error {
	if c.GridSize <= 0 || c.GridSize > maxGridSize {
		return fmt.Errorf("%w: grid size %d must be between 1 and %d", lights.ErrInvalidConfiguration, c.GridSize, maxGridSize)
	}
	if c.PacingDelay < 0 {
		return fmt.Errorf("%w: negative pacing delay %s", lights.ErrInvalidConfiguration, c.Delay())
	}
	if _, err := strconv.Atoi(c.Port); err != nil {
		return fmt.Errorf("%w: port %q", lights.ErrInvalidConfiguration, c.Port)
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("%w: %w", lights.ErrInvalidConfiguration, err)
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		return fmt.Errorf("%w: log format %q", lights.ErrInvalidConfiguration, c.LogFormat)
	}
	return nil
}

// newLogger builds the process logger described by cfg.
func newLogger(cfg Config, out io.Writer) (*logrus.Logger, error) {
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	log := logrus.New()
	log.SetOutput(out)
	log.SetLevel(level)
	if cfg.LogFormat == "json" {
		log.SetFormatter(&logrus.JSONFormatter{})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return log, nil
}
