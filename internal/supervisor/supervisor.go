// Package supervisor sequences startup and supervises the two lifelines of the
// process: the HTTP control plane and the platform connection.
//
// Startup order is discovery, binding, listening and then login. The HTTP
// listener serves before the connection is ready; /health reports not_ready
// until it is. A rejected login ends Run with ErrLogin. Background services
// start once, after the first successful login.
//
// Failures are treated asymmetrically. A supervised task that returns an
// error is logged and the process keeps running. A panic in a task or in the
// supervisor itself ends Run with a *FatalError.
package supervisor

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"runtime/debug"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"hostbot/internal/dispatch"
	"hostbot/internal/eventbus"
	"hostbot/internal/handler"
	"hostbot/internal/httpapi"
	"hostbot/internal/logging"
	"hostbot/internal/platform"
	"hostbot/internal/store"
)

const defaultShutdownTimeout = 5 * time.Second

// Connection is the platform session the supervisor owns.
type Connection interface {
	handler.Conn
	Login(ctx context.Context) error
	Run(ctx context.Context, emit platform.Emitter) error
	Close() error
}

// Monitor is a background service that needs the ready connection. Start
// blocks for the service's lifetime, so its loop runs inside a supervised task.
type Monitor interface {
	Start(ctx context.Context, conn handler.Conn) error
	Stop()
}

// Cleanup is a background service independent of the connection.
type Cleanup interface {
	Start(ctx context.Context) error
	Stop()
}

// Options configures a Supervisor.
type Options struct {
	// Addr is used when Listener is nil.
	Addr     string
	Listener net.Listener

	Locations []string
	Catalog   *handler.Catalog
	Conn      Connection
	Store     *store.Store
	Notify    httpapi.NotifyHandler
	Monitor   Monitor
	Cleanup   Cleanup
	Admins    []int64

	Secret          string
	MaxConcurrent   int
	Env             string
	RequestLogLevel string
	CORS            httpapi.CORSOptions

	Logger          zerolog.Logger
	ShutdownTimeout time.Duration
}

// Supervisor runs the process.
type Supervisor struct {
	opts Options
	log  zerolog.Logger

	mu    sync.Mutex
	ctx   context.Context
	addr  net.Addr
	wg    sync.WaitGroup
	fatal chan error

	servicesOnce sync.Once
}

// New creates a Supervisor. Nothing starts until Run.
func New(opts Options) *Supervisor {
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = defaultShutdownTimeout
	}
	if opts.Catalog == nil {
		opts.Catalog = handler.NewCatalog()
	}
	return &Supervisor{
		opts:  opts,
		log:   logging.Component(opts.Logger, "supervisor"),
		ctx:   context.Background(),
		fatal: make(chan error, 1),
	}
}

// Addr returns the bound listener address once Run is listening.
func (s *Supervisor) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}

// Run blocks until ctx is cancelled (nil) or a fatal condition occurs.
func (s *Supervisor) Run(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			stack := debug.Stack()
			s.log.Error().Str("panic", fmt.Sprint(r)).Bytes("stack", stack).Msg("supervisor panicked")
			err = &FatalError{Task: "supervisor", Value: r, Stack: stack}
		}
	}()
	if s.opts.Conn == nil {
		return errors.New("supervisor: no connection configured")
	}
	start := time.Now()

	reg, err := handler.Discover(ctx, s.opts.Locations, s.opts.Catalog, logging.Component(s.opts.Logger, "registry"))
	if err != nil {
		return fmt.Errorf("discover handlers: %w", err)
	}
	s.log.Info().Int("commands", reg.CommandCount()).Int("events", len(reg.Events())).Msg("handlers discovered")

	bus := eventbus.New(logging.Component(s.opts.Logger, "eventbus"))
	env := &handler.Env{
		Conn:     s.opts.Conn,
		Registry: reg,
		Store:    s.opts.Store,
		Logger:   logging.Component(s.opts.Logger, "handler"),
		Admins:   adminSet(s.opts.Admins),
	}
	dispatch.Bind(reg, bus, env)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	s.mu.Lock()
	s.ctx = ctx
	s.mu.Unlock()

	var queries httpapi.Queries
	if s.opts.Store != nil {
		queries = s.opts.Store
	}
	mux := httpapi.NewMux(httpapi.Options{
		Conn:            s.opts.Conn,
		Commands:        reg.CommandCount,
		Queries:         queries,
		Notify:          s.opts.Notify,
		Secret:          s.opts.Secret,
		MaxConcurrent:   s.opts.MaxConcurrent,
		Env:             s.opts.Env,
		Start:           start,
		Logger:          logging.Component(s.opts.Logger, "http"),
		BaseContext:     ctx,
		RequestLogLevel: s.opts.RequestLogLevel,
		CORS:            s.opts.CORS,
	})

	ln := s.opts.Listener
	if ln == nil {
		ln, err = net.Listen("tcp", s.opts.Addr)
		if err != nil {
			return &FatalError{Task: "http", Err: fmt.Errorf("listen %s: %w", s.opts.Addr, err)}
		}
	}
	s.mu.Lock()
	s.addr = ln.Addr()
	s.mu.Unlock()
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	s.log.Info().Str("addr", ln.Addr().String()).Msg("control plane listening")

	s.Go("http", func(ctx context.Context) error {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.raise(&FatalError{Task: "http", Err: err})
		}
		return nil
	})

	emit := func(ctx context.Context, name string, args ...any) { bus.Emit(ctx, name, args...) }
	s.Go("connection", func(ctx context.Context) error {
		s.log.Info().Msg("logging in")
		if err := s.opts.Conn.Login(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			s.raise(fmt.Errorf("%w: %w", ErrLogin, err))
			return nil
		}
		s.startServices(ctx)
		return s.opts.Conn.Run(ctx, emit)
	})

	select {
	case <-ctx.Done():
		s.log.Info().Msg("shutting down")
	case err = <-s.fatal:
		s.log.Error().Err(err).Msg("stopping on fatal error")
	}
	cancel()
	s.shutdown(srv)
	return err
}

// Go runs fn as a supervised task. A returned error is logged and the
// process continues; a panic is fatal.
func (s *Supervisor) Go(name string, fn func(ctx context.Context) error) {
	s.mu.Lock()
	ctx := s.ctx
	s.mu.Unlock()
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				stack := debug.Stack()
				s.log.Error().Str("task", name).Str("panic", fmt.Sprint(r)).Bytes("stack", stack).Msg("supervised task panicked")
				s.raise(&FatalError{Task: name, Value: r, Stack: stack})
			}
		}()
		if err := fn(ctx); err != nil && ctx.Err() == nil {
			s.log.Error().Str("task", name).Err(err).Msg("supervised task failed")
		}
	}()
}

// raise records the first fatal condition; later ones are only logged.
func (s *Supervisor) raise(err error) {
	select {
	case s.fatal <- err:
	default:
		s.log.Error().Err(err).Msg("additional fatal error")
	}
}

func (s *Supervisor) startServices(ctx context.Context) {
	s.servicesOnce.Do(func() {
		if m := s.opts.Monitor; m != nil {
			s.Go("monitor", func(ctx context.Context) error { return m.Start(ctx, s.opts.Conn) })
		}
		if c := s.opts.Cleanup; c != nil {
			s.Go("cleanup", func(ctx context.Context) error { return c.Start(ctx) })
		}
	})
}

func (s *Supervisor) shutdown(srv *http.Server) {
	if m := s.opts.Monitor; m != nil {
		m.Stop()
	}
	if c := s.opts.Cleanup; c != nil {
		c.Stop()
	}
	if err := s.opts.Conn.Close(); err != nil {
		s.log.Warn().Err(err).Msg("closing connection")
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.opts.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		s.log.Warn().Err(err).Msg("graceful shutdown error")
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		s.log.Warn().Msg("supervised tasks still running at exit")
	}
}

func adminSet(ids []int64) map[int64]struct{} {
	out := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		out[id] = struct{}{}
	}
	return out
}
