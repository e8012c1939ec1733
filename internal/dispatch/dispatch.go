// Package dispatch binds discovered event handlers to the event bus.
package dispatch

import (
	"context"

	"hostbot/internal/eventbus"
	"hostbot/internal/handler"
)

// Bind subscribes every event handler in reg to bus, once or repeating as the
// handler requests. Handlers receive env followed by the emitted args. It
// returns the number of subscriptions made.
func Bind(reg *handler.Registry, bus *eventbus.Bus, env *handler.Env) int {
	n := 0
	for _, ev := range reg.Events() {
		mode := eventbus.Repeating
		if ev.Once {
			mode = eventbus.Once
		}
		exec := ev.Execute
		bus.Subscribe(ev.Name, mode, func(ctx context.Context, args ...any) error {
			return exec(ctx, env, args...)
		})
		env.Logger.Debug().Str("event", ev.Name).Str("mode", mode.String()).Str("source", ev.Source).Msg("event handler bound")
		n++
	}
	return n
}
