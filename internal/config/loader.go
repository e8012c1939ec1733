package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Config holds runtime parameters for the bot process.
type Config struct {
	Port                 int      `json:"webhook_port" yaml:"webhook_port" toml:"webhook_port" env:"WEBHOOK_PORT"`
	BotToken             string   `json:"bot_token" yaml:"bot_token" toml:"bot_token" env:"BOT_TOKEN"`
	APIEndpoint          string   `json:"api_endpoint" yaml:"api_endpoint" toml:"api_endpoint" env:"TELEGRAM_API_ENDPOINT"`
	WebhookSecret        string   `json:"webhook_secret" yaml:"webhook_secret" toml:"webhook_secret" env:"WEBHOOK_SECRET"`
	MaxConcurrentServers int      `json:"max_concurrent_servers" yaml:"max_concurrent_servers" toml:"max_concurrent_servers" env:"MAX_CONCURRENT_SERVERS"`
	Environment          string   `json:"env" yaml:"env" toml:"env" env:"APP_ENV"`
	HandlerDirs          []string `json:"handler_dirs" yaml:"handler_dirs" toml:"handler_dirs" env:"HANDLER_DIRS" envSeparator:","`
	DatabasePath         string   `json:"database_path" yaml:"database_path" toml:"database_path" env:"DATABASE_PATH"`
	AdminIDs             []int64  `json:"admin_ids" yaml:"admin_ids" toml:"admin_ids" env:"ADMIN_IDS" envSeparator:","`
	LogLevel             string   `json:"log_level" yaml:"log_level" toml:"log_level" env:"LOG_LEVEL"`
	MonitorIntervalSec   int      `json:"monitor_interval_seconds" yaml:"monitor_interval_seconds" toml:"monitor_interval_seconds" env:"MONITOR_INTERVAL_SECONDS"`
	CleanupSchedule      string   `json:"cleanup_schedule" yaml:"cleanup_schedule" toml:"cleanup_schedule" env:"CLEANUP_SCHEDULE"`
	CORSOrigins          []string `json:"cors_allowed_origins" yaml:"cors_allowed_origins" toml:"cors_allowed_origins" env:"CORS_ALLOWED_ORIGINS" envSeparator:","`
}

// LoadInto decodes the file at path into cfg. Keys absent from the file keep
// whatever value cfg already holds.
func LoadInto(path string, cfg *Config) error {
	if path == "" {
		return fmt.Errorf("empty config path")
	}
	return DecodeFile(path, cfg)
}

// DecodeFile unmarshals a yaml, json or toml file into v based on its extension.
func DecodeFile(path string, v any) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		return yaml.Unmarshal(b, v)
	case ".json":
		return json.Unmarshal(b, v)
	case ".toml":
		return toml.Unmarshal(b, v)
	default:
		return fmt.Errorf("unsupported config extension: %s", ext)
	}
}

// Supported reports whether DecodeFile understands the file's extension.
func Supported(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml", ".json", ".toml":
		return true
	}
	return false
}
