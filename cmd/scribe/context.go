package main

import (
	"fmt"
	"log/slog"

	"scribe/internal/config"
	"scribe/internal/logging"
)

// commandContext lazily loads configuration shared by subcommands.
type commandContext struct {
	configFlag *string

	cfg     *config.Config
	cfgPath string
	loaded  bool
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

// ensureConfig loads (once) the configuration from the flag path or the
// default lookup chain.
func (c *commandContext) ensureConfig() (*config.Config, error) {
	if c.loaded {
		return c.cfg, nil
	}
	path := ""
	if c.configFlag != nil {
		path = *c.configFlag
	}
	cfg, resolved, _, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}
	c.cfg = cfg
	c.cfgPath = resolved
	c.loaded = true
	return cfg, nil
}

// newLogger builds the process logger from configuration.
func (c *commandContext) newLogger(cfg *config.Config) (*slog.Logger, error) {
	return logging.New(logging.Options{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
}
