package main

import (
	"bytes"
	"strings"
	"testing"

	"hostbot/internal/config"
)

func shippedHandlers() string {
	dirs := make([]string, 0, len(config.DefaultHandlerDirs))
	for _, d := range config.DefaultHandlerDirs {
		dirs = append(dirs, "../../"+d)
	}
	return strings.Join(dirs, ",")
}

func TestExecute_MissingTokenExitsOne(t *testing.T) {
	t.Setenv("BOT_TOKEN", "")
	var out, errOut bytes.Buffer
	if code := execute([]string{"--handlers", shippedHandlers()}, &out, &errOut); code != 1 {
		t.Fatalf("exit=%d", code)
	}
	if !strings.Contains(errOut.String(), "bot token is required") {
		t.Fatalf("stderr=%q", errOut.String())
	}
}

func TestCheck_ListsShippedHandlers(t *testing.T) {
	var out, errOut bytes.Buffer
	if code := execute([]string{"check", "--handlers", shippedHandlers()}, &out, &errOut); code != 0 {
		t.Fatalf("exit=%d stderr=%s", code, errOut.String())
	}
	s := out.String()
	if !strings.Contains(s, "command /stats (admin)") || !strings.Contains(s, "event once ready") {
		t.Fatalf("output=%s", s)
	}
	if !strings.Contains(s, "7 commands, 3 event handlers") {
		t.Fatalf("summary missing: %s", s)
	}
}

func TestCheck_UnreadableLocationFails(t *testing.T) {
	var out, errOut bytes.Buffer
	code := execute([]string{"check", "--handlers", t.TempDir() + "/nope"}, &out, &errOut)
	if code != 1 || !strings.Contains(errOut.String(), "handler location") {
		t.Fatalf("exit=%d stderr=%s", code, errOut.String())
	}
}

func TestCheck_BadSchedule(t *testing.T) {
	t.Setenv("CLEANUP_SCHEDULE", "sometimes")
	var out, errOut bytes.Buffer
	if code := execute([]string{"check", "--handlers", shippedHandlers()}, &out, &errOut); code != 1 {
		t.Fatalf("exit=%d", code)
	}
}

func TestResolveConfig_FlagsOverrideEnv(t *testing.T) {
	t.Setenv("WEBHOOK_PORT", "4000")
	t.Setenv("APP_ENV", "staging")
	root := buildRootCmd(&bytes.Buffer{}, &bytes.Buffer{})
	if err := root.ParseFlags([]string{"--port", "5000"}); err != nil {
		t.Fatalf("parse: %v", err)
	}
	f := &flags{port: 5000}
	cfg, err := resolveConfig(root, f)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if cfg.Port != 5000 {
		t.Fatalf("port=%d, flag should win", cfg.Port)
	}
	if cfg.Environment != "staging" {
		t.Fatalf("env=%q, unset flag must not override", cfg.Environment)
	}
}

func TestRequestLogLevel(t *testing.T) {
	cases := map[string]string{"debug": "debug", "info": "info", "warn": "error", "off": "off", "": "info"}
	for in, want := range cases {
		if got := requestLogLevel(in); got != want {
			t.Fatalf("requestLogLevel(%q)=%q want %q", in, got, want)
		}
	}
}
