// Package config resolves fahrprobe settings from defaults, an optional YAML
// file and FAHRPROBE_* environment variables, in that order of precedence
// from lowest to highest. Command-line flags are applied on top by the CLI.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvPrefix is prepended to every environment variable name.
const EnvPrefix = "FAHRPROBE_"

// Config holds application configuration
type Config struct {
	// ScenarioDir holds extra scenario definitions loaded next to the
	// built-in ones.
	ScenarioDir string `yaml:"scenario_dir"`
	// DataPath is the SQLite file that stores learning progress.
	DataPath string `yaml:"data_path"`
	// SpeechCommand overrides TTS engine detection, e.g.
	// "espeak-ng -v de -s 140 {text}". "off" disables speech.
	SpeechCommand string        `yaml:"speech_command"`
	SpeakDelay    time.Duration `yaml:"speak_delay"`
	// Speed scales scenario playback; 2 plays twice as fast.
	Speed    float64 `yaml:"speed"`
	Host     string  `yaml:"host"`
	Port     int     `yaml:"port"`
	Token    string  `yaml:"token"`
	LogLevel string  `yaml:"log_level"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		DataPath:   filepath.Join(dataDir(), "progress.db"),
		SpeakDelay: 500 * time.Millisecond,
		Speed:      1,
		Host:       "localhost",
		Port:       8787,
		LogLevel:   "info",
	}
}

// Path returns the config file location: $FAHRPROBE_CONFIG, else
// fahrprobe/config.yaml under the user config directory.
func Path() string {
	if p := os.Getenv(EnvPrefix + "CONFIG"); p != "" {
		return p
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "fahrprobe", "config.yaml")
}

// Load reads configuration from the default path.
func Load() (*Config, error) {
	return LoadFile(Path())
}

// LoadFile reads configuration from path, which may be missing, and then
// applies environment overrides.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
			}
		case errors.Is(err, os.ErrNotExist):
		default:
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	c.ScenarioDir = getEnv("SCENARIO_DIR", c.ScenarioDir)
	c.DataPath = getEnv("DATA_PATH", c.DataPath)
	c.SpeechCommand = getEnv("SPEECH_COMMAND", c.SpeechCommand)
	c.Host = getEnv("HOST", c.Host)
	c.Token = getEnv("TOKEN", c.Token)
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)

	if v := getEnv("PORT", ""); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %sPORT: %w", EnvPrefix, err)
		}
		c.Port = port
	}
	if v := getEnv("SPEAK_DELAY", ""); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid %sSPEAK_DELAY: %w", EnvPrefix, err)
		}
		c.SpeakDelay = d
	}
	if v := getEnv("SPEED", ""); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("invalid %sSPEED: %w", EnvPrefix, err)
		}
		c.Speed = f
	}
	return nil
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("port %d out of range", c.Port)
	}
	if c.SpeakDelay < 0 {
		return fmt.Errorf("speak_delay must not be negative")
	}
	if c.Speed <= 0 {
		return fmt.Errorf("speed must be positive")
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// SpeechDisabled reports whether speech was switched off.
func (c *Config) SpeechDisabled() bool {
	return strings.EqualFold(c.SpeechCommand, "off")
}

// Addr is the listen address for the local server.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// ParseLevel maps a level name to a slog level.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("invalid log level: %s", s)
}

// getEnv reads an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(EnvPrefix + key); value != "" {
		return value
	}
	return defaultValue
}

func dataDir() string {
	if dir := os.Getenv("XDG_DATA_HOME"); dir != "" {
		return filepath.Join(dir, "fahrprobe")
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".local", "share", "fahrprobe")
	}
	return "."
}
