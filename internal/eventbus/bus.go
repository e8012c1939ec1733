// Package eventbus is the in-process bus platform events travel on.
//
// Listeners subscribe to an event name either Once or Repeating. Emit runs the
// listeners of a name in subscription order on the caller's goroutine; a
// failing or panicking listener is logged and counted and never affects the
// others.
package eventbus

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
)

// Mode selects how long a subscription lives.
type Mode int

const (
	// Repeating listeners fire on every emission until unsubscribed.
	Repeating Mode = iota
	// Once listeners fire on the first emission only and are then removed.
	Once
)

func (m Mode) String() string {
	if m == Once {
		return "once"
	}
	return "repeating"
}

// Listener handles one emission. args are passed through untouched.
type Listener func(ctx context.Context, args ...any) error

// Subscription is a live binding of a listener to an event name.
type Subscription struct {
	id    uint64
	name  string
	mode  Mode
	fn    Listener
	fired atomic.Bool
}

// Name returns the event name the subscription listens on.
func (s *Subscription) Name() string { return s.name }

// Mode returns the subscription mode.
func (s *Subscription) Mode() Mode { return s.mode }

// Bus dispatches named events to subscribed listeners.
type Bus struct {
	mu     sync.RWMutex
	subs   map[string][]*Subscription
	nextID uint64
	log    zerolog.Logger
}

// New creates an empty Bus.
func New(logger zerolog.Logger) *Bus {
	return &Bus{subs: make(map[string][]*Subscription), log: logger}
}

// Subscribe binds fn to name with the given mode.
func (b *Bus) Subscribe(name string, mode Mode, fn Listener) *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	sub := &Subscription{id: b.nextID, name: name, mode: mode, fn: fn}
	b.subs[name] = append(b.subs[name], sub)
	return sub
}

// Unsubscribe removes sub. Removing twice is a no-op.
func (b *Bus) Unsubscribe(sub *Subscription) {
	if sub == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.removeLocked(sub)
}

func (b *Bus) removeLocked(sub *Subscription) {
	list := b.subs[sub.name]
	for i, s := range list {
		if s.id == sub.id {
			next := make([]*Subscription, 0, len(list)-1)
			next = append(next, list[:i]...)
			next = append(next, list[i+1:]...)
			if len(next) == 0 {
				delete(b.subs, sub.name)
			} else {
				b.subs[sub.name] = next
			}
			return
		}
	}
}

// Count returns the number of live subscriptions for name.
func (b *Bus) Count(name string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[name])
}

// Emit delivers args to every listener of name and returns how many ran.
func (b *Bus) Emit(ctx context.Context, name string, args ...any) int {
	b.mu.RLock()
	list := b.subs[name]
	b.mu.RUnlock()
	eventsEmitted.WithLabelValues(name).Inc()

	ran := 0
	for _, sub := range list {
		if sub.mode == Once {
			// the first emitter to claim it runs it, even under concurrent Emit
			if !sub.fired.CompareAndSwap(false, true) {
				continue
			}
			b.Unsubscribe(sub)
		}
		b.invoke(ctx, sub, args)
		ran++
	}
	return ran
}

func (b *Bus) invoke(ctx context.Context, sub *Subscription, args []any) {
	defer func() {
		if r := recover(); r != nil {
			handlerFailures.WithLabelValues(sub.name, "panic").Inc()
			b.log.Error().
				Str("event", sub.name).
				Str("mode", sub.mode.String()).
				Str("panic", fmt.Sprint(r)).
				Bytes("stack", debug.Stack()).
				Msg("event handler panicked")
		}
	}()
	if err := sub.fn(ctx, args...); err != nil {
		handlerFailures.WithLabelValues(sub.name, "error").Inc()
		b.log.Error().Str("event", sub.name).Str("mode", sub.mode.String()).Err(err).Msg("event handler failed")
	}
}
