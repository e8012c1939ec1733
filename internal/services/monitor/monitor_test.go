package monitor

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"hostbot/internal/handler"
	"hostbot/internal/store"
)

type fakeConn struct {
	mu   sync.Mutex
	sent []string
}

func (f *fakeConn) Ready() bool    { return true }
func (f *fakeConn) ChatCount() int { return 0 }
func (f *fakeConn) Self() string   { return "" }

func (f *fakeConn) Send(ctx context.Context, chatID int64, text string) error {
	f.mu.Lock()
	f.sent = append(f.sent, text)
	f.mu.Unlock()
	return nil
}

func (f *fakeConn) SetCommands(ctx context.Context, cmds []handler.CommandData) error {
	return nil
}

func (f *fakeConn) messages() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.sent...)
}

func TestMonitor_StopsExpiredAndActivatesQueued(t *testing.T) {
	ctx := context.Background()
	st, err := store.Open(store.MemoryPath)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer st.Close()

	now := time.Now()
	base := now.Add(-3 * time.Hour)
	mk := func(name string, offset time.Duration) {
		if _, err := st.PurchaseServer(ctx, store.Server{Name: name, ChatID: 9, Duration: time.Minute, CreatedAt: base.Add(offset)}, 0); err != nil {
			t.Fatalf("create %s: %v", name, err)
		}
	}
	mk("alpha", 0)
	if _, err := st.ActivateQueued(ctx, 1, now.Add(-2*time.Hour)); err != nil {
		t.Fatalf("activate: %v", err)
	}
	mk("bravo", time.Second)
	mk("charlie", 2*time.Second)

	conn := &fakeConn{}
	m := New(Config{Store: st, Logger: zerolog.Nop(), Interval: time.Hour, MaxConcurrent: 1, Now: func() time.Time { return now }})
	errc := make(chan error, 1)
	go func() { errc <- m.Start(ctx, conn) }()

	deadline := time.Now().Add(3 * time.Second)
	for len(conn.messages()) < 2 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if err := m.Start(ctx, conn); err == nil {
		t.Fatalf("second start should fail")
	}
	m.Stop()
	select {
	case err := <-errc:
		if err != nil {
			t.Fatalf("start: %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatalf("Start did not return after Stop")
	}

	msgs := conn.messages()
	if len(msgs) != 2 || !strings.Contains(msgs[0], "alpha has expired") || !strings.Contains(msgs[1], "bravo is now running") {
		t.Fatalf("messages=%v", msgs)
	}
	active, _ := st.CountActiveServers(ctx)
	queued, _ := st.QueueSize(ctx)
	if active != 1 || queued != 1 {
		t.Fatalf("active=%d queued=%d", active, queued)
	}
}

func TestSweep_WithoutStore(t *testing.T) {
	m := New(Config{Logger: zerolog.Nop(), MaxConcurrent: 2})
	if err := m.Sweep(context.Background()); err != store.ErrUnavailable {
		t.Fatalf("err=%v", err)
	}
}

func TestStopWithoutStart(t *testing.T) {
	New(Config{Logger: zerolog.Nop()}).Stop()
}

func TestStart_BlocksUntilContextDone(t *testing.T) {
	m := New(Config{Logger: zerolog.Nop(), Interval: time.Hour})
	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- m.Start(ctx, &fakeConn{}) }()

	select {
	case err := <-errc:
		t.Fatalf("Start returned early: %v", err)
	case <-time.After(50 * time.Millisecond):
	}
	cancel()
	select {
	case err := <-errc:
		if err != nil {
			t.Fatalf("start: %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatalf("Start did not return after cancel")
	}
	m.Stop()
}

func TestStart_SweepPanicReachesCaller(t *testing.T) {
	m := New(Config{Logger: zerolog.Nop(), Interval: time.Hour, Now: func() time.Time { panic("clock fault") }})
	var recovered any
	func() {
		defer func() { recovered = recover() }()
		_ = m.Start(context.Background(), &fakeConn{})
	}()
	if recovered != "clock fault" {
		t.Fatalf("recovered=%v", recovered)
	}
	// Stop must not hang after the loop died
	m.Stop()
}
