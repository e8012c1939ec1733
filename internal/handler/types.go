package handler

import (
	"context"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"hostbot/internal/store"
)

// Conn is the read-only capability handlers get on the platform connection.
type Conn interface {
	Ready() bool
	Send(ctx context.Context, chatID int64, text string) error
	SetCommands(ctx context.Context, cmds []CommandData) error
	ChatCount() int
	Self() string
}

// Env is the explicit context value handed to every action.
type Env struct {
	Conn     Conn
	Registry *Registry
	// Store may be nil when persistence is disabled.
	Store  *store.Store
	Logger zerolog.Logger
	Admins map[int64]struct{}
}

// IsAdmin reports whether the platform user id is configured as an admin.
func (e *Env) IsAdmin(userID int64) bool {
	_, ok := e.Admins[userID]
	return ok
}

// Option describes one command parameter.
type Option struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Required    bool   `json:"required,omitempty"`
}

// CommandData is the schema descriptor of a command.
type CommandData struct {
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Options     []Option `json:"options,omitempty"`
	Admin       bool     `json:"admin,omitempty"`
}

// Invocation carries one command call.
type Invocation struct {
	ID      string
	Name    string
	Args    string
	Message *tgbotapi.Message
}

// CommandAction executes a command.
type CommandAction func(ctx context.Context, env *Env, inv *Invocation) error

// EventAction handles a platform event. args are forwarded exactly as the
// connection emitted them.
type EventAction func(ctx context.Context, env *Env, args ...any) error

// Command is a registered command.
type Command struct {
	Data    CommandData
	Execute CommandAction
	// Source is the manifest path the command was loaded from.
	Source string
}

// EventHandler is a registered event handler.
type EventHandler struct {
	Name    string
	Once    bool
	Execute EventAction
	Source  string
}
