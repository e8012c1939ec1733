// Package httpapi is the HTTP control plane: the authenticated notify-bot
// webhook, health and metrics.
package httpapi

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"runtime"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"hostbot/internal/store"
	"hostbot/pkg/types"
)

const metricsFailureText = "Failed to fetch metrics"

type server struct {
	opts Options
}

// NewMux builds the control-plane router.
func NewMux(opts Options) http.Handler {
	opts.setDefaults()
	s := &server{opts: opts}

	r := chi.NewRouter()
	r.Use(MetricsMiddleware)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(opts.Logger, parseLevel(opts.RequestLogLevel)))
	r.Use(middleware.Recoverer)
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			next.ServeHTTP(w, r)
		})
	})
	if opts.CORS.Enabled {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: opts.CORS.AllowedOrigins,
			AllowedMethods: opts.CORS.AllowedMethods,
			AllowedHeaders: opts.CORS.AllowedHeaders,
			MaxAge:         300,
		}))
	}

	r.Group(func(r chi.Router) {
		r.Use(inflightMiddleware)
		r.With(requireSecret(opts.Secret, opts.Logger)).Post("/notify-bot", s.notify)
		r.Get("/health", s.health)
		r.Get("/metrics", s.metrics)
		r.Get("/metrics/prometheus", promhttp.Handler().ServeHTTP)
	})
	return r
}

func (s *server) notify(w http.ResponseWriter, r *http.Request) {
	if s.opts.Notify == nil {
		writeJSONError(w, http.StatusNotImplemented, "notify not configured")
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxBodyBytes)
	ctx, cancel := joinContexts(s.opts.BaseContext, r.Context())
	defer cancel()
	s.opts.Notify.HandleNotify(w, r.WithContext(ctx), s.opts.Conn)
}

func (s *server) health(w http.ResponseWriter, r *http.Request) {
	status := "not_ready"
	if s.opts.Conn != nil && s.opts.Conn.Ready() {
		status = "ready"
	}
	writeJSON(w, http.StatusOK, types.HealthResponse{
		Status:    "ok",
		Uptime:    time.Since(s.opts.Start).Seconds(),
		BotStatus: status,
	})
}

func (s *server) metrics(w http.ResponseWriter, r *http.Request) {
	snap, err := s.snapshot(r.Context())
	if err != nil {
		metricsSnapshotFailures.Inc()
		s.opts.Logger.Error().Err(err).Msg("metrics snapshot failed")
		writeJSONError(w, http.StatusInternalServerError, metricsFailureText)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// snapshot assembles the metrics document. A panic while assembling is
// returned as an error so the caller answers with the generic 500.
func (s *server) snapshot(ctx context.Context) (resp types.MetricsResponse, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic: %v", rec)
		}
	}()

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)
	resp = types.MetricsResponse{
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		UptimeSeconds: time.Since(s.opts.Start).Seconds(),
		MemoryUsageMB: math.Round(float64(mem.HeapAlloc)/1024/1024*100) / 100,
		Bot: types.BotMetrics{
			Status:         "offline",
			CommandsLoaded: s.opts.Commands(),
		},
		Servers: types.ServerMetrics{MaxConcurrent: s.opts.MaxConcurrent},
		System: types.SystemMetrics{
			GoVersion: runtime.Version(),
			Platform:  runtime.GOOS + "/" + runtime.GOARCH,
			Env:       s.opts.Env,
		},
	}
	if c := s.opts.Conn; c != nil {
		if c.Ready() {
			resp.Bot.Status = "online"
		}
		resp.Bot.Guilds = c.ChatCount()
	}

	q := s.opts.Queries
	if q == nil {
		return resp, nil
	}
	if resp.Bot.Users, err = degrade(q.CountUsers(ctx)); err != nil {
		return resp, fmt.Errorf("count users: %w", err)
	}
	if resp.Servers.Active, err = degrade(q.CountActiveServers(ctx)); err != nil {
		return resp, fmt.Errorf("count active servers: %w", err)
	}
	if resp.Servers.QueueSize, err = degrade(q.QueueSize(ctx)); err != nil {
		return resp, fmt.Errorf("queue size: %w", err)
	}
	eco, err := degrade(q.EconomyTotals(ctx))
	if err != nil {
		return resp, fmt.Errorf("economy totals: %w", err)
	}
	resp.Economy = types.EconomyMetrics{
		TotalCoinsEarned:  eco.Earned,
		TotalCoinsSpent:   eco.Spent,
		TotalTransactions: eco.Transactions,
	}
	return resp, nil
}

// degrade maps an unavailable store to the zero value.
func degrade[T any](v T, err error) (T, error) {
	if errors.Is(err, store.ErrUnavailable) {
		var zero T
		return zero, nil
	}
	return v, err
}
