package cli

import (
	"fmt"

	"github.com/fahrprobe/fahrprobe-cli/internal/config"
)

// GlobalOptions are shared flags that apply across commands. Empty values
// leave the config file and environment in charge.
type GlobalOptions struct {
	ConfigPath  string
	LogLevel    string
	DataPath    string
	ScenarioDir string
	Speech      string
	NoColor     bool
}

var globalOpts GlobalOptions

// current is the resolved configuration, set by the root command before
// any subcommand runs.
var current = config.Default()

func loadConfig() (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if globalOpts.ConfigPath != "" {
		cfg, err = config.LoadFile(globalOpts.ConfigPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	globalOpts.apply(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func (o GlobalOptions) apply(cfg *config.Config) {
	if o.LogLevel != "" {
		cfg.LogLevel = o.LogLevel
	}
	if o.DataPath != "" {
		cfg.DataPath = o.DataPath
	}
	if o.ScenarioDir != "" {
		cfg.ScenarioDir = o.ScenarioDir
	}
	if o.Speech != "" {
		cfg.SpeechCommand = o.Speech
	}
}
