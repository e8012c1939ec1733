package blackbox

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"syscall"
	"testing"
	"time"

	"hostbot/internal/platform/platformtest"
)

// findFreePort picks an available TCP port on localhost.
func findFreePort(t *testing.T) (int, func()) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	port := ln.Addr().(*net.TCPAddr).Port
	cleanup := func() { _ = ln.Close() }
	return port, cleanup
}

func projectRootFromThisFile(t *testing.T) string {
	t.Helper()
	_, thisFile, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatal("runtime.Caller failed")
	}
	// this file: <root>/tests/blackbox/blackbox_test.go
	return filepath.Dir(filepath.Dir(filepath.Dir(thisFile)))
}

func buildBinary(t *testing.T) string {
	t.Helper()
	root := projectRootFromThisFile(t)
	binPath := filepath.Join(t.TempDir(), "hostbot")
	cmd := exec.Command("go", "build", "-o", binPath, "./cmd/hostbot")
	cmd.Dir = root
	out, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("go build failed: %v\n%s", err, string(out))
	}
	return binPath
}

func handlerDirs(t *testing.T) string {
	root := projectRootFromThisFile(t)
	return strings.Join([]string{
		filepath.Join(root, "handlers", "commands"),
		filepath.Join(root, "handlers", "commands", "admin"),
		filepath.Join(root, "handlers", "events"),
	}, ",")
}

type serverProc struct {
	cmd  *exec.Cmd
	base string
	done chan error
}

func startServer(t *testing.T, bin string, api *platformtest.API, port int, extraEnv ...string) *serverProc {
	t.Helper()
	cmd := exec.Command(bin, "--handlers", handlerDirs(t), "--database", filepath.Join(t.TempDir(), "hostbot.db"))
	cmd.Env = append(os.Environ(),
		"BOT_TOKEN="+platformtest.Token,
		"TELEGRAM_API_ENDPOINT="+api.URL(),
		fmt.Sprintf("WEBHOOK_PORT=%d", port),
		"WEBHOOK_SECRET=s3cret",
		"APP_ENV=test",
		"LOG_LEVEL=debug",
	)
	cmd.Env = append(cmd.Env, extraEnv...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Start(); err != nil {
		t.Fatalf("start server: %v", err)
	}
	sp := &serverProc{cmd: cmd, base: fmt.Sprintf("http://127.0.0.1:%d", port), done: make(chan error, 1)}
	go func() { sp.done <- cmd.Wait() }()
	t.Cleanup(func() { _ = cmd.Process.Kill() })
	return sp
}

func (sp *serverProc) exitCode(t *testing.T, timeout time.Duration) int {
	t.Helper()
	select {
	case err := <-sp.done:
		var ee *exec.ExitError
		if errors.As(err, &ee) {
			return ee.ExitCode()
		}
		if err != nil {
			t.Fatalf("wait: %v", err)
		}
		return 0
	case <-time.After(timeout):
		t.Fatalf("process did not exit within %s", timeout)
		return -1
	}
}

func get(t *testing.T, url string) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, url, nil)
	if err != nil {
		t.Fatalf("new req: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	b, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	return resp, b
}

func postJSON(t *testing.T, url string, payload []byte, secret string) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequestWithContext(context.Background(), http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("new req: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if secret != "" {
		req.Header.Set("X-Webhook-Secret", secret)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	b, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	return resp, b
}

func waitReady(t *testing.T, base string) {
	t.Helper()
	deadline := time.Now().Add(10 * time.Second)
	for {
		resp, err := http.Get(base + "/health")
		if err == nil {
			var h struct {
				BotStatus string `json:"bot_status"`
			}
			_ = json.NewDecoder(resp.Body).Decode(&h)
			_ = resp.Body.Close()
			if h.BotStatus == "ready" {
				return
			}
		}
		if time.Now().After(deadline) {
			t.Fatalf("bot did not become ready in time")
		}
		time.Sleep(50 * time.Millisecond)
	}
}

func TestBlackbox_Flow(t *testing.T) {
	bin := buildBinary(t)
	api := platformtest.NewAPI()
	defer api.Close()
	port, release := findFreePort(t)
	release()
	sp := startServer(t, bin, api, port)
	waitReady(t, sp.base)

	resp, body := get(t, sp.base+"/metrics")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("/metrics %d %s", resp.StatusCode, string(body))
	}
	var m struct {
		Bot struct {
			Status         string `json:"status"`
			CommandsLoaded int    `json:"commands_loaded"`
		} `json:"bot"`
		Servers struct {
			MaxConcurrent int `json:"max_concurrent"`
		} `json:"servers"`
	}
	if err := json.Unmarshal(body, &m); err != nil {
		t.Fatalf("/metrics json: %v body=%s", err, string(body))
	}
	if m.Bot.Status != "online" || m.Bot.CommandsLoaded != 7 || m.Servers.MaxConcurrent != 6 {
		t.Fatalf("unexpected metrics: %s", string(body))
	}

	resp, _ = postJSON(t, sp.base+"/notify-bot", []byte(`{"chat_id":77,"message":"hello"}`), "")
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("unauthenticated notify: %d", resp.StatusCode)
	}
	resp, body = postJSON(t, sp.base+"/notify-bot", []byte(`{"chat_id":77,"message":"hello"}`), "s3cret")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("notify: %d %s", resp.StatusCode, string(body))
	}
	sent := api.WaitSent(1, 3*time.Second)
	if len(sent) != 1 || sent[0].ChatID != 77 || sent[0].Text != "hello" {
		t.Fatalf("sent=%v", sent)
	}

	if err := sp.cmd.Process.Signal(syscall.SIGTERM); err != nil {
		t.Fatalf("signal: %v", err)
	}
	if code := sp.exitCode(t, 10*time.Second); code != 0 {
		t.Fatalf("exit code after SIGTERM = %d", code)
	}
}

func TestBlackbox_LoginRejectedExitsOne(t *testing.T) {
	bin := buildBinary(t)
	api := platformtest.NewAPI()
	defer api.Close()
	api.RejectAll()
	port, release := findFreePort(t)
	release()
	sp := startServer(t, bin, api, port)
	if code := sp.exitCode(t, 10*time.Second); code != 1 {
		t.Fatalf("exit code = %d, want 1", code)
	}
}

func TestBlackbox_MissingHandlerLocationExitsOne(t *testing.T) {
	bin := buildBinary(t)
	api := platformtest.NewAPI()
	defer api.Close()
	port, release := findFreePort(t)
	release()

	cmd := exec.Command(bin, "--handlers", filepath.Join(t.TempDir(), "missing"))
	cmd.Env = append(os.Environ(),
		"BOT_TOKEN="+platformtest.Token,
		"TELEGRAM_API_ENDPOINT="+api.URL(),
		fmt.Sprintf("WEBHOOK_PORT=%d", port),
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	err := cmd.Run()
	var ee *exec.ExitError
	if !errors.As(err, &ee) || ee.ExitCode() != 1 {
		t.Fatalf("err=%v stderr=%s", err, stderr.String())
	}
}
