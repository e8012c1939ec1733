package notify

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"hostbot/internal/handler"
)

type fakeConn struct {
	ready   bool
	sendErr error
	sent    []string
}

func (f *fakeConn) Ready() bool    { return f.ready }
func (f *fakeConn) ChatCount() int { return 0 }
func (f *fakeConn) Self() string   { return "" }

func (f *fakeConn) Send(ctx context.Context, chatID int64, text string) error {
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, text)
	return nil
}

func (f *fakeConn) SetCommands(ctx context.Context, cmds []handler.CommandData) error {
	return nil
}

func call(conn handler.Conn, body, ct string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/notify-bot", strings.NewReader(body))
	if ct != "" {
		req.Header.Set("Content-Type", ct)
	}
	w := httptest.NewRecorder()
	New(zerolog.Nop()).HandleNotify(w, req, conn)
	return w
}

func TestHandleNotify_Delivers(t *testing.T) {
	conn := &fakeConn{ready: true}
	w := call(conn, `{"chat_id":42,"message":" hi there "}`, "application/json")
	if w.Code != http.StatusOK || strings.TrimSpace(w.Body.String()) != `{"ok":true}` {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	if len(conn.sent) != 1 || conn.sent[0] != "hi there" {
		t.Fatalf("sent=%v", conn.sent)
	}
}

func TestHandleNotify_Validation(t *testing.T) {
	conn := &fakeConn{ready: true}
	cases := []struct {
		name, body, ct string
		want           int
	}{
		{"bad json", `{`, "application/json", http.StatusBadRequest},
		{"no chat", `{"message":"x"}`, "", http.StatusBadRequest},
		{"no message", `{"chat_id":1,"message":"  "}`, "", http.StatusBadRequest},
		{"too long", `{"chat_id":1,"message":"` + strings.Repeat("a", maxMessageLen+1) + `"}`, "", http.StatusBadRequest},
		{"content type", `{"chat_id":1,"message":"x"}`, "text/plain", http.StatusUnsupportedMediaType},
	}
	for _, c := range cases {
		if w := call(conn, c.body, c.ct); w.Code != c.want {
			t.Fatalf("%s: status=%d want %d", c.name, w.Code, c.want)
		}
	}
	if len(conn.sent) != 0 {
		t.Fatalf("invalid requests delivered: %v", conn.sent)
	}
}

func TestHandleNotify_NotReady(t *testing.T) {
	if w := call(&fakeConn{}, `{"chat_id":1,"message":"x"}`, ""); w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status=%d", w.Code)
	}
	if w := call(nil, `{"chat_id":1,"message":"x"}`, ""); w.Code != http.StatusServiceUnavailable {
		t.Fatalf("nil conn status=%d", w.Code)
	}
}

func TestHandleNotify_DeliveryFailure(t *testing.T) {
	w := call(&fakeConn{ready: true, sendErr: errors.New("telegram down")}, `{"chat_id":1,"message":"x"}`, "")
	if w.Code != http.StatusBadGateway || strings.Contains(w.Body.String(), "telegram down") {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
}
