package config

import (
	"errors"
	"fmt"
	"strings"
)

const (
	DefaultPort                 = 3001
	DefaultMaxConcurrentServers = 6
	DefaultEnvironment          = "production"
	DefaultDatabasePath         = "data/hostbot.db"
	DefaultMonitorIntervalSec   = 60
	DefaultCleanupSchedule      = "@every 1h"
)

// DefaultHandlerDirs are scanned in order when HANDLER_DIRS is not set.
var DefaultHandlerDirs = []string{"handlers/commands", "handlers/commands/admin", "handlers/events"}

// ErrMissingToken is returned by Validate when no platform credential is configured.
var ErrMissingToken = errors.New("bot token is required (BOT_TOKEN)")

// Defaults returns the built-in configuration.
func Defaults() Config {
	return Config{
		Port:                 DefaultPort,
		MaxConcurrentServers: DefaultMaxConcurrentServers,
		Environment:          DefaultEnvironment,
		HandlerDirs:          append([]string(nil), DefaultHandlerDirs...),
		DatabasePath:         DefaultDatabasePath,
		LogLevel:             "info",
		MonitorIntervalSec:   DefaultMonitorIntervalSec,
		CleanupSchedule:      DefaultCleanupSchedule,
	}
}

// Resolve layers defaults, the optional config file at path and the environment.
func Resolve(path string) (Config, error) {
	cfg := Defaults()
	if path != "" {
		if err := LoadInto(path, &cfg); err != nil {
			return cfg, fmt.Errorf("load %s: %w", path, err)
		}
	}
	if err := ParseEnv(&cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks the values a process cannot start without.
func (c Config) Validate() error {
	if strings.TrimSpace(c.BotToken) == "" {
		return ErrMissingToken
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid webhook port: %d", c.Port)
	}
	if c.MaxConcurrentServers <= 0 {
		return fmt.Errorf("max concurrent servers must be positive, got %d", c.MaxConcurrentServers)
	}
	if len(c.HandlerDirs) == 0 {
		return errors.New("no handler directories configured")
	}
	return nil
}

// Addr returns the listen address for the control plane.
func (c Config) Addr() string { return fmt.Sprintf(":%d", c.Port) }
