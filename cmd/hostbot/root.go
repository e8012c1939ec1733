package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"hostbot/internal/builtin"
	"hostbot/internal/config"
	"hostbot/internal/handler"
	"hostbot/internal/httpapi"
	"hostbot/internal/logging"
	"hostbot/internal/notify"
	"hostbot/internal/platform"
	"hostbot/internal/services/cleanup"
	"hostbot/internal/services/monitor"
	"hostbot/internal/store"
	"hostbot/internal/supervisor"
)

// execute runs the CLI and returns the process exit code.
func execute(args []string, stdout, stderr io.Writer) int {
	root := buildRootCmd(stdout, stderr)
	root.SetArgs(args)
	if err := root.Execute(); err != nil {
		fmt.Fprintln(stderr, "hostbot:", err)
		return 1
	}
	return 0
}

type flags struct {
	configPath string
	port       int
	logLevel   string
	handlers   []string
	env        string
	database   string
}

// buildRootCmd constructs the Cobra command tree. The root command serves.
func buildRootCmd(stdout, stderr io.Writer) *cobra.Command {
	f := &flags{}
	root := &cobra.Command{
		Use:           "hostbot",
		Short:         "Telegram game-server bot with an HTTP control plane",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveConfig(cmd, f)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg, stderr)
		},
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	pf := root.PersistentFlags()
	pf.StringVar(&f.configPath, "config", "", "Path to config file (yaml|json|toml)")
	pf.IntVar(&f.port, "port", config.DefaultPort, "Control plane port (defaults WEBHOOK_PORT or 3001)")
	pf.StringVar(&f.logLevel, "log-level", "info", "Log level: trace|debug|info|warn|error (defaults LOG_LEVEL)")
	pf.StringSliceVar(&f.handlers, "handlers", nil, "Handler directories, scanned in order (defaults HANDLER_DIRS)")
	pf.StringVar(&f.env, "env", config.DefaultEnvironment, "Environment name (defaults APP_ENV)")
	pf.StringVar(&f.database, "database", config.DefaultDatabasePath, "SQLite database path, empty disables persistence (defaults DATABASE_PATH)")

	check := &cobra.Command{
		Use:   "check",
		Short: "Validate configuration and list discovered handlers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveConfig(cmd, f)
			if err != nil {
				return err
			}
			return check(cmd.Context(), cfg, cmd.OutOrStdout())
		},
	}
	root.AddCommand(check)
	return root
}

// resolveConfig layers defaults, file, environment and then explicitly set flags.
func resolveConfig(cmd *cobra.Command, f *flags) (config.Config, error) {
	cfg, err := config.Resolve(f.configPath)
	if err != nil {
		return cfg, err
	}
	fs := cmd.Flags()
	if fs.Changed("port") {
		cfg.Port = f.port
	}
	if fs.Changed("log-level") {
		cfg.LogLevel = f.logLevel
	}
	if fs.Changed("handlers") {
		cfg.HandlerDirs = f.handlers
	}
	if fs.Changed("env") {
		cfg.Environment = f.env
	}
	if fs.Changed("database") {
		cfg.DatabasePath = f.database
	}
	return cfg, nil
}

func serve(ctx context.Context, cfg config.Config, stderr io.Writer) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	log := logging.New(cfg.LogLevel, cfg.Environment, stderr)

	var st *store.Store
	if cfg.DatabasePath != "" {
		var err error
		st, err = store.Open(cfg.DatabasePath)
		if err != nil {
			log.Warn().Err(err).Str("path", cfg.DatabasePath).Msg("database unavailable, continuing without persistence")
			st = nil
		} else {
			defer st.Close()
		}
	}

	conn := platform.New(platform.Options{
		Token:    cfg.BotToken,
		Endpoint: cfg.APIEndpoint,
		Logger:   logging.Component(log, "platform"),
	})
	sup := supervisor.New(supervisor.Options{
		Addr:      cfg.Addr(),
		Locations: cfg.HandlerDirs,
		Catalog:   builtin.Catalog(),
		Conn:      conn,
		Store:     st,
		Notify:    notify.New(logging.Component(log, "notify")),
		Monitor: monitor.New(monitor.Config{
			Store:         st,
			Logger:        logging.Component(log, "monitor"),
			Interval:      time.Duration(cfg.MonitorIntervalSec) * time.Second,
			MaxConcurrent: cfg.MaxConcurrentServers,
		}),
		Cleanup: cleanup.New(cleanup.Config{
			Store:    st,
			Logger:   logging.Component(log, "cleanup"),
			Schedule: cfg.CleanupSchedule,
		}),
		Admins:          cfg.AdminIDs,
		Secret:          cfg.WebhookSecret,
		MaxConcurrent:   cfg.MaxConcurrentServers,
		Env:             cfg.Environment,
		RequestLogLevel: requestLogLevel(cfg.LogLevel),
		CORS: httpapi.CORSOptions{
			Enabled:        len(cfg.CORSOrigins) > 0,
			AllowedOrigins: cfg.CORSOrigins,
		},
		Logger: log,
	})
	if cfg.WebhookSecret == "" {
		log.Warn().Msg("WEBHOOK_SECRET not set, /notify-bot will reject every request")
	}
	if err := sup.Run(ctx); err != nil {
		log.Error().Err(err).Msg("exiting")
		return err
	}
	log.Info().Msg("stopped")
	return nil
}

// requestLogLevel maps the process level to the control plane's per-request level.
func requestLogLevel(level string) string {
	switch strings.ToLower(level) {
	case "trace", "debug":
		return "debug"
	case "warn", "warning", "error":
		return "error"
	case "off", "disabled":
		return "off"
	default:
		return "info"
	}
}

func check(ctx context.Context, cfg config.Config, out io.Writer) error {
	if err := cleanup.ParseSchedule(cfg.CleanupSchedule); err != nil {
		return err
	}
	log := logging.New(cfg.LogLevel, cfg.Environment, io.Discard)
	reg, err := handler.Discover(ctx, cfg.HandlerDirs, builtin.Catalog(), log)
	if err != nil {
		return err
	}
	for _, c := range reg.Commands() {
		admin := ""
		if c.Data.Admin {
			admin = " (admin)"
		}
		fmt.Fprintf(out, "command /%s%s\t%s\n", c.Data.Name, admin, c.Source)
	}
	for _, e := range reg.Events() {
		mode := "on"
		if e.Once {
			mode = "once"
		}
		fmt.Fprintf(out, "event %s %s\t%s\n", mode, e.Name, e.Source)
	}
	fmt.Fprintf(out, "%d commands, %d event handlers\n", reg.CommandCount(), len(reg.Events()))
	return nil
}
