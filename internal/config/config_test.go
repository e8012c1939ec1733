package config

import (
	"errors"
	"strings"
	"testing"
)

func TestResolve_DefaultsWithoutFileOrEnv(t *testing.T) {
	cfg, err := Resolve("")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if cfg.Port != DefaultPort || cfg.MaxConcurrentServers != DefaultMaxConcurrentServers || cfg.Environment != "production" {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if len(cfg.HandlerDirs) != len(DefaultHandlerDirs) {
		t.Fatalf("handler dirs=%v", cfg.HandlerDirs)
	}
}

func TestResolve_EnvOverridesFile(t *testing.T) {
	d := t.TempDir()
	p := writeTempFile(t, d, "cfg.yaml", "webhook_port: 4000\nbot_token: from-file\nenv: staging\n")
	t.Setenv("WEBHOOK_PORT", "5000")
	t.Setenv("HANDLER_DIRS", "x,y,z")
	t.Setenv("ADMIN_IDS", "10,20")
	cfg, err := Resolve(p)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if cfg.Port != 5000 {
		t.Fatalf("port=%d", cfg.Port)
	}
	if cfg.BotToken != "from-file" || cfg.Environment != "staging" {
		t.Fatalf("file values lost: %+v", cfg)
	}
	if strings.Join(cfg.HandlerDirs, ",") != "x,y,z" {
		t.Fatalf("dirs=%v", cfg.HandlerDirs)
	}
	if len(cfg.AdminIDs) != 2 || cfg.AdminIDs[1] != 20 {
		t.Fatalf("admins=%v", cfg.AdminIDs)
	}
}

func TestResolve_BadEnvValue(t *testing.T) {
	t.Setenv("MAX_CONCURRENT_SERVERS", "lots")
	_, err := Resolve("")
	if err == nil || !strings.Contains(err.Error(), "parse env:") {
		t.Fatalf("expected parse env error, got %v", err)
	}
}

func TestValidate(t *testing.T) {
	cfg := Defaults()
	if err := cfg.Validate(); !errors.Is(err, ErrMissingToken) {
		t.Fatalf("expected ErrMissingToken, got %v", err)
	}
	cfg.BotToken = "t"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}
	cfg.Port = 70000
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected port error")
	}
	cfg.Port = 1
	cfg.MaxConcurrentServers = 0
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected max concurrent error")
	}
	if got := Defaults().Addr(); got != ":3001" {
		t.Fatalf("addr=%s", got)
	}
}
