package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/kelseyhightower/envconfig"
	"go.uber.org/zap"
)

// Verbose enables debug output when true
var Verbose bool

// Config holds the console settings. Values come from CIBTRON_* environment
// variables and may be overridden by command line flags.
type Config struct {
	BackendURL    string        `envconfig:"CIBTRON_BACKEND_URL" default:"http://127.0.0.1:5000"`
	IDToken       string        `envconfig:"CIBTRON_ID_TOKEN" default:""`
	PollInterval  time.Duration `envconfig:"CIBTRON_POLL_INTERVAL" default:"3s"`
	HTTPTimeout   time.Duration `envconfig:"CIBTRON_HTTP_TIMEOUT" default:"30s"`
	SerialTimeout time.Duration `envconfig:"CIBTRON_SERIAL_TIMEOUT" default:"15s"`
	Brand         string        `envconfig:"CIBTRON_BRAND" default:"CIBTRON"`
	Model         string        `envconfig:"CIBTRON_MODEL" default:"WB-001"`
	AutoReset     bool          `envconfig:"CIBTRON_AUTO_RESET" default:"true"`
	LogLevel      string        `envconfig:"CIBTRON_LOG_LEVEL" default:"info"`
	LogFile       string        `envconfig:"CIBTRON_LOG_FILE" default:""`
}

// Load reads the configuration from the environment.
func Load() (*Config, error) {
	cfg := new(Config)
	if err := envconfig.Process("", cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// DefaultLogPath returns the log file used while the TUI owns the terminal.
func DefaultLogPath() (string, error) {
	cacheDir, err := os.UserCacheDir()
	if err != nil {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		cacheDir = filepath.Join(home, ".cache")
	}
	return filepath.Join(cacheDir, "cibtron", "cibtron.log"), nil
}

// Level resolves the configured log level, forcing debug in verbose mode.
func (c *Config) Level() zap.AtomicLevel {
	if Verbose {
		return zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	lvl, err := zap.ParseAtomicLevel(c.LogLevel)
	if err != nil {
		return zap.NewAtomicLevelAt(zap.InfoLevel)
	}
	return lvl
}
