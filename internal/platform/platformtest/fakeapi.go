// Package platformtest provides an in-process fake of the Telegram Bot API
// for tests.
package platformtest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Token is the token the fake accepts unless configured otherwise.
const Token = "123456:TEST"

// Sent is one sendMessage call observed by the fake.
type Sent struct {
	ChatID int64
	Text   string
}

// API is a fake Bot API server.
type API struct {
	Server *httptest.Server

	mu           sync.Mutex
	token        string
	username     string
	updates      []json.RawMessage
	nextUpdateID int
	sent         []Sent
	commands     []string
	failPolls    int
}

// NewAPI starts a fake accepting Token.
func NewAPI() *API {
	a := &API{token: Token, username: "hostbot_test", nextUpdateID: 1}
	a.Server = httptest.NewServer(http.HandlerFunc(a.serve))
	return a
}

// URL is the base URL to hand to platform.Options.Endpoint.
func (a *API) URL() string { return a.Server.URL }

// Close stops the server.
func (a *API) Close() { a.Server.Close() }

// RejectAll makes every call fail with 401 Unauthorized.
func (a *API) RejectAll() {
	a.mu.Lock()
	a.token = ""
	a.mu.Unlock()
}

// FailPolls makes the next n getUpdates calls fail with a server error.
func (a *API) FailPolls(n int) {
	a.mu.Lock()
	a.failPolls = n
	a.mu.Unlock()
}

// PushMessage queues a text message update from userID in chatID.
func (a *API) PushMessage(chatID, userID int64, text string) {
	a.push("message", map[string]any{
		"message_id": 1,
		"date":       time.Now().Unix(),
		"text":       text,
		"chat":       map[string]any{"id": chatID, "type": "private"},
		"from":       map[string]any{"id": userID, "is_bot": false, "first_name": "Test", "username": "user" + strconv.FormatInt(userID, 10)},
	})
}

// PushMembership queues a my_chat_member update moving the bot from old to
// new status in chatID.
func (a *API) PushMembership(chatID int64, oldStatus, newStatus string) {
	bot := map[string]any{"id": 1, "is_bot": true, "first_name": "Host"}
	a.push("my_chat_member", map[string]any{
		"chat":            map[string]any{"id": chatID, "type": "group", "title": "group"},
		"from":            map[string]any{"id": 2, "is_bot": false, "first_name": "Admin"},
		"date":            time.Now().Unix(),
		"old_chat_member": map[string]any{"user": bot, "status": oldStatus},
		"new_chat_member": map[string]any{"user": bot, "status": newStatus},
	})
}

func (a *API) push(kind string, payload map[string]any) {
	a.mu.Lock()
	defer a.mu.Unlock()
	raw, _ := json.Marshal(map[string]any{"update_id": a.nextUpdateID, kind: payload})
	a.nextUpdateID++
	a.updates = append(a.updates, raw)
}

// Sent returns every message sent through the fake.
func (a *API) Sent() []Sent {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]Sent(nil), a.sent...)
}

// Commands returns the command names from the last setMyCommands call.
func (a *API) Commands() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.commands...)
}

// WaitSent polls until at least n messages were sent or timeout elapses.
func (a *API) WaitSent(n int, timeout time.Duration) []Sent {
	deadline := time.Now().Add(timeout)
	for {
		s := a.Sent()
		if len(s) >= n || time.Now().After(deadline) {
			return s
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func (a *API) serve(w http.ResponseWriter, r *http.Request) {
	// /bot<token>/<method>
	parts := strings.Split(strings.TrimPrefix(r.URL.Path, "/"), "/")
	if len(parts) != 2 || !strings.HasPrefix(parts[0], "bot") {
		http.NotFound(w, r)
		return
	}
	token, method := strings.TrimPrefix(parts[0], "bot"), parts[1]
	_ = r.ParseForm()

	a.mu.Lock()
	valid := a.token != "" && token == a.token
	a.mu.Unlock()
	if !valid {
		writeErr(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	switch method {
	case "getMe":
		a.mu.Lock()
		name := a.username
		a.mu.Unlock()
		writeOK(w, map[string]any{"id": 1, "is_bot": true, "first_name": "Host", "username": name})
	case "getUpdates":
		a.getUpdates(w, r)
	case "sendMessage":
		chatID, _ := strconv.ParseInt(r.Form.Get("chat_id"), 10, 64)
		a.mu.Lock()
		a.sent = append(a.sent, Sent{ChatID: chatID, Text: r.Form.Get("text")})
		a.mu.Unlock()
		writeOK(w, map[string]any{
			"message_id": 1,
			"date":       time.Now().Unix(),
			"chat":       map[string]any{"id": chatID, "type": "private"},
			"text":       r.Form.Get("text"),
		})
	case "setMyCommands":
		var cmds []struct {
			Command string `json:"command"`
		}
		_ = json.Unmarshal([]byte(r.Form.Get("commands")), &cmds)
		names := make([]string, 0, len(cmds))
		for _, c := range cmds {
			names = append(names, c.Command)
		}
		a.mu.Lock()
		a.commands = names
		a.mu.Unlock()
		writeOK(w, true)
	default:
		writeErr(w, http.StatusNotFound, "Not Found: method not found")
	}
}

func (a *API) getUpdates(w http.ResponseWriter, r *http.Request) {
	offset, _ := strconv.Atoi(r.Form.Get("offset"))
	a.mu.Lock()
	if a.failPolls > 0 {
		a.failPolls--
		a.mu.Unlock()
		writeErr(w, http.StatusBadGateway, "Bad Gateway")
		return
	}
	var out []json.RawMessage
	var keep []json.RawMessage
	for _, raw := range a.updates {
		var head struct {
			UpdateID int `json:"update_id"`
		}
		_ = json.Unmarshal(raw, &head)
		if head.UpdateID < offset {
			continue
		}
		keep = append(keep, raw)
		out = append(out, raw)
	}
	a.updates = keep
	a.mu.Unlock()

	if len(out) == 0 {
		// short long-poll keeps tests fast while still exercising the loop
		select {
		case <-r.Context().Done():
			return
		case <-time.After(20 * time.Millisecond):
		}
		out = []json.RawMessage{}
	}
	writeOK(w, out)
}

func writeOK(w http.ResponseWriter, result any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"ok": true, "result": result})
}

func writeErr(w http.ResponseWriter, status int, desc string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{"ok": false, "error_code": status, "description": desc})
}
