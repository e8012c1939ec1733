// Package monitor keeps hosted game servers within their rental windows: it
// stops expired servers, promotes queued ones while slots are free and tells
// the owning chats.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"hostbot/internal/handler"
	"hostbot/internal/store"
)

var (
	serversActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "hostbot",
		Subsystem: "servers",
		Name:      "active",
		Help:      "Game servers currently running",
	})
	serversQueued = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "hostbot",
		Subsystem: "servers",
		Name:      "queued",
		Help:      "Game servers waiting for a slot",
	})
)

func init() {
	prometheus.MustRegister(serversActive, serversQueued)
}

// Config holds the monitor's dependencies.
type Config struct {
	Store         *store.Store
	Logger        zerolog.Logger
	Interval      time.Duration
	MaxConcurrent int
	// Now is the clock; defaults to time.Now.
	Now func() time.Time
}

// Service is the server monitor.
type Service struct {
	cfg  Config
	conn handler.Conn

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// New creates a monitor. Interval defaults to one minute.
func New(cfg Config) *Service {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Service{cfg: cfg}
}

// Start runs a sweep immediately and then on every interval. It blocks in the
// caller's goroutine until Stop is called or ctx is done, so a panic during a
// sweep reaches whoever runs Start.
func (s *Service) Start(ctx context.Context, conn handler.Conn) error {
	s.mu.Lock()
	if s.cancel != nil {
		s.mu.Unlock()
		return errors.New("monitor already started")
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.conn = conn
	done := make(chan struct{})
	s.done = done
	s.mu.Unlock()
	defer close(done)

	s.cfg.Logger.Info().Dur("interval", s.cfg.Interval).Int("max_concurrent", s.cfg.MaxConcurrent).Msg("server monitor started")
	s.loop(ctx)
	return nil
}

// Stop cancels the loop and waits for Start to return.
func (s *Service) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
	s.cfg.Logger.Info().Msg("server monitor stopped")
}

func (s *Service) loop(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	s.sweep(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

// sweep is one monitoring pass. Errors are logged; the next tick retries.
func (s *Service) sweep(ctx context.Context) {
	if err := s.Sweep(ctx); err != nil && !errors.Is(err, store.ErrUnavailable) && ctx.Err() == nil {
		s.cfg.Logger.Error().Err(err).Msg("server sweep failed")
	}
}

// Sweep stops expired servers, activates queued ones up to the concurrency
// limit and refreshes the gauges.
func (s *Service) Sweep(ctx context.Context) error {
	st := s.cfg.Store
	now := s.cfg.Now()

	expired, err := st.ExpiredServers(ctx, now)
	if err != nil {
		return err
	}
	for _, srv := range expired {
		if err := st.StopServer(ctx, srv.ID); err != nil {
			return err
		}
		s.tell(ctx, srv.ChatID, fmt.Sprintf("Server %s has expired and was stopped.", srv.Name))
	}

	active, err := st.CountActiveServers(ctx)
	if err != nil {
		return err
	}
	if free := s.cfg.MaxConcurrent - active; free > 0 {
		started, err := st.ActivateQueued(ctx, free, now)
		for _, srv := range started {
			s.tell(ctx, srv.ChatID, fmt.Sprintf("Server %s is now running until %s.", srv.Name, srv.ExpiresAt.UTC().Format("15:04 MST")))
		}
		if err != nil {
			return err
		}
		active += len(started)
	}

	queued, err := st.QueueSize(ctx)
	if err != nil {
		return err
	}
	serversActive.Set(float64(active))
	serversQueued.Set(float64(queued))
	if len(expired) > 0 {
		s.cfg.Logger.Info().Int("stopped", len(expired)).Int("active", active).Int("queued", queued).Msg("servers swept")
	}
	return nil
}

func (s *Service) tell(ctx context.Context, chatID int64, text string) {
	if chatID == 0 || s.conn == nil || !s.conn.Ready() {
		return
	}
	if err := s.conn.Send(ctx, chatID, text); err != nil {
		s.cfg.Logger.Warn().Err(err).Int64("chat", chatID).Msg("server notice not delivered")
	}
}
