package dispatch

import (
	"context"
	"testing"

	"github.com/rs/zerolog"

	"hostbot/internal/eventbus"
	"hostbot/internal/handler"
)

func TestBindModesAndArgs(t *testing.T) {
	reg := handler.NewRegistry()
	var onceCalls, repCalls int
	var gotEnv *handler.Env
	var gotArgs []any
	reg.AddEvent(&handler.EventHandler{Name: "ready", Once: true, Execute: func(ctx context.Context, env *handler.Env, args ...any) error {
		onceCalls++
		gotEnv = env
		return nil
	}})
	reg.AddEvent(&handler.EventHandler{Name: "message", Execute: func(ctx context.Context, env *handler.Env, args ...any) error {
		repCalls++
		gotArgs = args
		return nil
	}})

	bus := eventbus.New(zerolog.Nop())
	env := &handler.Env{Logger: zerolog.Nop()}
	if n := Bind(reg, bus, env); n != 2 {
		t.Fatalf("bound=%d", n)
	}

	ctx := context.Background()
	bus.Emit(ctx, "ready", "u")
	bus.Emit(ctx, "ready", "u")
	bus.Emit(ctx, "message", 1, "two")
	bus.Emit(ctx, "message", 3)

	if onceCalls != 1 {
		t.Fatalf("once handler ran %d times", onceCalls)
	}
	if gotEnv != env {
		t.Fatalf("env not forwarded")
	}
	if repCalls != 2 {
		t.Fatalf("repeating handler ran %d times", repCalls)
	}
	if len(gotArgs) != 1 || gotArgs[0] != 3 {
		t.Fatalf("args=%v", gotArgs)
	}
}

func TestBindDuplicateEventsKeepOrder(t *testing.T) {
	reg := handler.NewRegistry()
	var order []int
	for i := 1; i <= 3; i++ {
		i := i
		reg.AddEvent(&handler.EventHandler{Name: "message", Execute: func(ctx context.Context, env *handler.Env, args ...any) error {
			order = append(order, i)
			return nil
		}})
	}
	bus := eventbus.New(zerolog.Nop())
	Bind(reg, bus, &handler.Env{Logger: zerolog.Nop()})
	bus.Emit(context.Background(), "message")
	if len(order) != 3 || order[0] != 1 || order[2] != 3 {
		t.Fatalf("order=%v", order)
	}
}
