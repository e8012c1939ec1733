package eventbus

import (
	"context"
	"sync"
)

// recorder is a Listener sink that keeps every call.
type recorder struct {
	mu    sync.Mutex
	calls [][]any
}

func (r *recorder) Listener() Listener {
	return func(ctx context.Context, args ...any) error {
		r.mu.Lock()
		r.calls = append(r.calls, append([]any(nil), args...))
		r.mu.Unlock()
		return nil
	}
}

func (r *recorder) Calls() [][]any {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([][]any, len(r.calls))
	copy(out, r.calls)
	return out
}
