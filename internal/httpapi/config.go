package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"hostbot/internal/handler"
	"hostbot/internal/store"
)

const defaultMaxBodyBytes int64 = 1 << 20

// NotifyHandler is the collaborator behind POST /notify-bot. It only runs
// for authenticated requests and owns the response.
type NotifyHandler interface {
	HandleNotify(w http.ResponseWriter, r *http.Request, conn handler.Conn)
}

// NotifyFunc adapts a function to NotifyHandler.
type NotifyFunc func(w http.ResponseWriter, r *http.Request, conn handler.Conn)

func (f NotifyFunc) HandleNotify(w http.ResponseWriter, r *http.Request, conn handler.Conn) {
	f(w, r, conn)
}

// Queries are the read accessors /metrics aggregates. *store.Store
// satisfies it; accessors returning store.ErrUnavailable count as zero.
type Queries interface {
	CountUsers(ctx context.Context) (int, error)
	CountActiveServers(ctx context.Context) (int, error)
	QueueSize(ctx context.Context) (int, error)
	EconomyTotals(ctx context.Context) (store.Economy, error)
}

// Options wires the control plane to the process state it reports on.
type Options struct {
	Conn handler.Conn
	// Commands returns the number of loaded commands.
	Commands func() int
	// Queries may be nil when no database is configured.
	Queries       Queries
	Notify        NotifyHandler
	Secret        string
	MaxConcurrent int
	Env           string
	Start         time.Time
	Logger        zerolog.Logger
	// BaseContext is cancelled on shutdown; notify requests observe it.
	BaseContext  context.Context
	MaxBodyBytes int64
	// RequestLogLevel is the default for per-request logging (off, error, info, debug).
	RequestLogLevel string
	CORS            CORSOptions
}

// CORSOptions configures CORS. When Enabled is false no CORS middleware is added.
type CORSOptions struct {
	Enabled        bool
	AllowedOrigins []string
	AllowedMethods []string
	AllowedHeaders []string
}

func (o *Options) setDefaults() {
	if o.Start.IsZero() {
		o.Start = time.Now()
	}
	if o.BaseContext == nil {
		o.BaseContext = context.Background()
	}
	if o.MaxBodyBytes <= 0 {
		o.MaxBodyBytes = defaultMaxBodyBytes
	}
	if o.Commands == nil {
		o.Commands = func() int { return 0 }
	}
	if len(o.CORS.AllowedMethods) == 0 {
		o.CORS.AllowedMethods = []string{http.MethodGet, http.MethodPost, http.MethodOptions}
	}
	if len(o.CORS.AllowedHeaders) == 0 {
		o.CORS.AllowedHeaders = []string{"Content-Type", "Authorization", secretHeader}
	}
}
