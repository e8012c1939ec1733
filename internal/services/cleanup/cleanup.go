// Package cleanup removes expired one-time codes on a cron schedule.
package cleanup

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	cronlib "github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"hostbot/internal/store"
)

// DefaultSchedule runs the sweep hourly.
const DefaultSchedule = "@every 1h"

// Config holds the cleanup service's dependencies.
type Config struct {
	Store    *store.Store
	Logger   zerolog.Logger
	Schedule string
	Now      func() time.Time
}

// Service deletes expired codes on Schedule and once at Start.
type Service struct {
	cfg Config

	mu   sync.Mutex
	cron *cronlib.Cron
}

// New creates the service; nothing runs until Start.
func New(cfg Config) *Service {
	if cfg.Schedule == "" {
		cfg.Schedule = DefaultSchedule
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Service{cfg: cfg}
}

// ParseSchedule reports whether spec is a valid schedule (standard 5-field
// cron or a descriptor such as @hourly or @every 30m).
func ParseSchedule(spec string) error {
	if _, err := cronlib.ParseStandard(spec); err != nil {
		return fmt.Errorf("cleanup schedule %q: %w", spec, err)
	}
	return nil
}

// Start sweeps once and schedules further sweeps.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cron != nil {
		return errors.New("cleanup already started")
	}
	clog := cronLogger{log: s.cfg.Logger}
	c := cronlib.New(
		cronlib.WithLogger(clog),
		cronlib.WithChain(cronlib.Recover(clog), cronlib.SkipIfStillRunning(clog)),
	)
	if _, err := c.AddFunc(s.cfg.Schedule, func() { s.sweep(ctx) }); err != nil {
		return fmt.Errorf("cleanup schedule %q: %w", s.cfg.Schedule, err)
	}
	s.sweep(ctx)
	c.Start()
	s.cron = c
	s.cfg.Logger.Info().Str("schedule", s.cfg.Schedule).Msg("code cleanup started")
	return nil
}

// Stop halts the schedule and waits for a running sweep.
func (s *Service) Stop() {
	s.mu.Lock()
	c := s.cron
	s.mu.Unlock()
	if c == nil {
		return
	}
	<-c.Stop().Done()
	s.cfg.Logger.Info().Msg("code cleanup stopped")
}

func (s *Service) sweep(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	n, err := s.cfg.Store.DeleteExpiredCodes(ctx, s.cfg.Now())
	switch {
	case errors.Is(err, store.ErrUnavailable):
	case err != nil:
		s.cfg.Logger.Error().Err(err).Msg("code cleanup failed")
	case n > 0:
		s.cfg.Logger.Info().Int64("deleted", n).Msg("expired codes deleted")
	}
}

// cronLogger adapts zerolog to cron.Logger.
type cronLogger struct{ log zerolog.Logger }

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug().Fields(keysAndValues).Msg("cron: " + msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error().Err(err).Fields(keysAndValues).Msg("cron: " + msg)
}
