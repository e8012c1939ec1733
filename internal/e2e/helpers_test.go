package e2e

import (
	"bytes"
	"context"
	"io"
	"net"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"hostbot/internal/builtin"
	"hostbot/internal/config"
	"hostbot/internal/notify"
	"hostbot/internal/platform"
	"hostbot/internal/platform/platformtest"
	"hostbot/internal/services/cleanup"
	"hostbot/internal/services/monitor"
	"hostbot/internal/store"
	"hostbot/internal/supervisor"
)

const secret = "s3cret"

type stack struct {
	api   *platformtest.API
	store *store.Store
	base  string
	stop  func() error
}

// newStack runs the whole bot against a fake Bot API and a temp database.
func newStack(t *testing.T, maxConcurrent int) *stack {
	t.Helper()
	api := platformtest.NewAPI()
	t.Cleanup(api.Close)

	st, err := store.Open(filepath.Join(t.TempDir(), "hostbot.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	locations := make([]string, 0, len(config.DefaultHandlerDirs))
	for _, d := range config.DefaultHandlerDirs {
		locations = append(locations, filepath.Join("..", "..", d))
	}

	log := zerolog.Nop()
	sup := supervisor.New(supervisor.Options{
		Listener:  ln,
		Locations: locations,
		Catalog:   builtin.Catalog(),
		Conn: platform.New(platform.Options{
			Token:       platformtest.Token,
			Endpoint:    api.URL(),
			Logger:      log,
			PollTimeout: time.Second,
			MinBackoff:  10 * time.Millisecond,
		}),
		Store:  st,
		Notify: notify.New(log),
		Monitor: monitor.New(monitor.Config{
			Store:         st,
			Logger:        log,
			Interval:      20 * time.Millisecond,
			MaxConcurrent: maxConcurrent,
		}),
		Cleanup:       cleanup.New(cleanup.Config{Store: st, Logger: log}),
		Secret:        secret,
		MaxConcurrent: maxConcurrent,
		Env:           "test",
		Logger:        log,
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sup.Run(ctx) }()

	s := &stack{api: api, store: st, base: "http://" + ln.Addr().String()}
	s.stop = func() error {
		cancel()
		select {
		case err := <-done:
			return err
		case <-time.After(10 * time.Second):
			t.Fatalf("supervisor did not stop")
			return nil
		}
	}
	t.Cleanup(func() { cancel() })
	return s
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(20 * time.Millisecond)
	}
}

func httpGet(t *testing.T, url string) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, url, nil)
	if err != nil {
		t.Fatalf("new req: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do req: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	return resp, body
}

func httpPostJSON(t *testing.T, url string, payload []byte, key string) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequestWithContext(context.Background(), http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("new req: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if key != "" {
		req.Header.Set("Authorization", "Bearer "+key)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do req: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	return resp, body
}
