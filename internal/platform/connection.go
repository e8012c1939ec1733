// Package platform owns the Telegram Bot API connection: login, the update
// loop that feeds the event bus, and the send capability handlers use.
package platform

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"hostbot/internal/handler"
)

// Event names emitted by Run.
const (
	EventReady           = "ready"
	EventMessage         = "message"
	EventEditedMessage   = "edited_message"
	EventChannelPost     = "channel_post"
	EventCallbackQuery   = "callback_query"
	EventInlineQuery     = "inline_query"
	EventMyChatMember    = "my_chat_member"
	EventChatMember      = "chat_member"
	EventChatJoinRequest = "chat_join_request"
)

var allowedUpdates = []string{
	EventMessage, EventEditedMessage, EventChannelPost, EventCallbackQuery,
	EventInlineQuery, EventMyChatMember, EventChatMember, EventChatJoinRequest,
}

const (
	defaultPollTimeout = 60 * time.Second
	defaultMinBackoff  = time.Second
	maxBackoff         = 30 * time.Second
)

// ErrNotLoggedIn is returned by operations that need a successful Login.
var ErrNotLoggedIn = errors.New("platform: not logged in")

// Emitter receives every platform event Run produces.
type Emitter func(ctx context.Context, name string, args ...any)

// HTTPClient is the transport used for Bot API calls.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Options configures a Connection.
type Options struct {
	Token string
	// Endpoint is the Bot API base URL; empty means api.telegram.org.
	Endpoint    string
	HTTPClient  HTTPClient
	Logger      zerolog.Logger
	PollTimeout time.Duration
	MinBackoff  time.Duration
}

// Connection is a logged-in (or not yet logged-in) bot session.
type Connection struct {
	opts  Options
	log   zerolog.Logger
	ready atomic.Bool

	mu     sync.RWMutex
	api    *tgbotapi.BotAPI
	runCtx context.Context

	chatsMu sync.Mutex
	chats   map[int64]struct{}
}

// New builds a Connection. Nothing touches the network until Login.
func New(opts Options) *Connection {
	if opts.PollTimeout <= 0 {
		opts.PollTimeout = defaultPollTimeout
	}
	if opts.MinBackoff <= 0 {
		opts.MinBackoff = defaultMinBackoff
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: opts.PollTimeout + 10*time.Second}
	}
	c := &Connection{
		opts:   opts,
		log:    opts.Logger,
		runCtx: context.Background(),
		chats:  make(map[int64]struct{}),
	}
	UseLogger(opts.Logger)
	return c
}

// APIEndpoint returns the tgbotapi endpoint format for a base URL.
func APIEndpoint(base string) string {
	if base == "" {
		return tgbotapi.APIEndpoint
	}
	return strings.TrimRight(base, "/") + "/bot%s/%s"
}

// Login authenticates the token against the Bot API.
func (c *Connection) Login(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if c.opts.Token == "" {
		return errors.New("platform: empty bot token")
	}
	c.setRunContext(ctx)
	api, err := tgbotapi.NewBotAPIWithClient(c.opts.Token, APIEndpoint(c.opts.Endpoint), ctxClient{c})
	c.setRunContext(context.Background())
	if err != nil {
		return fmt.Errorf("telegram login: %w", err)
	}
	c.mu.Lock()
	c.api = api
	c.mu.Unlock()
	c.log.Info().Str("user", api.Self.UserName).Int64("id", api.Self.ID).Msg("logged in")
	return nil
}

// Run emits ready and then one event per update until ctx is done. Poll
// failures reconnect with exponential backoff and never end the loop.
func (c *Connection) Run(ctx context.Context, emit Emitter) error {
	api := c.botAPI()
	if api == nil {
		return ErrNotLoggedIn
	}
	c.setRunContext(ctx)
	defer c.setRunContext(context.Background())

	c.ready.Store(true)
	defer c.ready.Store(false)
	self := api.Self
	emit(ctx, EventReady, &self)

	offset := 0
	backoff := c.opts.MinBackoff
	for {
		if ctx.Err() != nil {
			return nil
		}
		updates, err := api.GetUpdates(tgbotapi.UpdateConfig{
			Offset:         offset,
			Timeout:        int(c.opts.PollTimeout / time.Second),
			AllowedUpdates: allowedUpdates,
		})
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			c.log.Warn().Err(err).Dur("backoff", backoff).Msg("update poll failed, reconnecting")
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(backoff):
			}
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
			continue
		}
		backoff = c.opts.MinBackoff
		for _, u := range updates {
			if u.UpdateID >= offset {
				offset = u.UpdateID + 1
			}
			c.dispatch(ctx, u, emit)
		}
	}
}

func (c *Connection) dispatch(ctx context.Context, u tgbotapi.Update, emit Emitter) {
	if chat := chatOf(u); chat != 0 {
		c.chatsMu.Lock()
		c.chats[chat] = struct{}{}
		c.chatsMu.Unlock()
	}
	name, payload := classify(u)
	if name == "" {
		c.log.Debug().Int("update_id", u.UpdateID).Msg("ignoring update")
		return
	}
	emit(ctx, name, payload, u)
}

func classify(u tgbotapi.Update) (string, any) {
	switch {
	case u.Message != nil:
		return EventMessage, u.Message
	case u.EditedMessage != nil:
		return EventEditedMessage, u.EditedMessage
	case u.ChannelPost != nil:
		return EventChannelPost, u.ChannelPost
	case u.CallbackQuery != nil:
		return EventCallbackQuery, u.CallbackQuery
	case u.InlineQuery != nil:
		return EventInlineQuery, u.InlineQuery
	case u.MyChatMember != nil:
		return EventMyChatMember, u.MyChatMember
	case u.ChatMember != nil:
		return EventChatMember, u.ChatMember
	case u.ChatJoinRequest != nil:
		return EventChatJoinRequest, u.ChatJoinRequest
	}
	return "", nil
}

func chatOf(u tgbotapi.Update) int64 {
	switch {
	case u.Message != nil && u.Message.Chat != nil:
		return u.Message.Chat.ID
	case u.EditedMessage != nil && u.EditedMessage.Chat != nil:
		return u.EditedMessage.Chat.ID
	case u.ChannelPost != nil && u.ChannelPost.Chat != nil:
		return u.ChannelPost.Chat.ID
	case u.CallbackQuery != nil && u.CallbackQuery.Message != nil && u.CallbackQuery.Message.Chat != nil:
		return u.CallbackQuery.Message.Chat.ID
	case u.MyChatMember != nil:
		return u.MyChatMember.Chat.ID
	case u.ChatMember != nil:
		return u.ChatMember.Chat.ID
	case u.ChatJoinRequest != nil:
		return u.ChatJoinRequest.Chat.ID
	}
	return 0
}

// Ready reports whether the update loop is running on a logged-in session.
func (c *Connection) Ready() bool { return c.ready.Load() }

// ChatCount returns the number of distinct chats seen since start.
func (c *Connection) ChatCount() int {
	c.chatsMu.Lock()
	defer c.chatsMu.Unlock()
	return len(c.chats)
}

// Self returns the bot's @username, or "" before Login.
func (c *Connection) Self() string {
	api := c.botAPI()
	if api == nil {
		return ""
	}
	return "@" + api.Self.UserName
}

// Send posts a plain text message to chatID.
func (c *Connection) Send(ctx context.Context, chatID int64, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	api := c.botAPI()
	if api == nil {
		return ErrNotLoggedIn
	}
	if _, err := api.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		return fmt.Errorf("send to %d: %w", chatID, err)
	}
	return nil
}

// SetCommands publishes the non-admin commands as the bot's command menu.
func (c *Connection) SetCommands(ctx context.Context, cmds []handler.CommandData) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	api := c.botAPI()
	if api == nil {
		return ErrNotLoggedIn
	}
	list := make([]tgbotapi.BotCommand, 0, len(cmds))
	for _, d := range cmds {
		if d.Admin {
			continue
		}
		desc := d.Description
		if desc == "" {
			desc = d.Name
		}
		list = append(list, tgbotapi.BotCommand{Command: d.Name, Description: desc})
	}
	if _, err := api.Request(tgbotapi.NewSetMyCommands(list...)); err != nil {
		return fmt.Errorf("set commands: %w", err)
	}
	return nil
}

// Close marks the connection offline.
func (c *Connection) Close() error {
	c.ready.Store(false)
	return nil
}

func (c *Connection) botAPI() *tgbotapi.BotAPI {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.api
}

func (c *Connection) setRunContext(ctx context.Context) {
	c.mu.Lock()
	c.runCtx = ctx
	c.mu.Unlock()
}

func (c *Connection) requestContext() context.Context {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.runCtx
}

// ctxClient ties in-flight Bot API calls to the login or update loop context
// so a pending call is abandoned on shutdown.
type ctxClient struct{ c *Connection }

func (h ctxClient) Do(req *http.Request) (*http.Response, error) {
	return h.c.opts.HTTPClient.Do(req.WithContext(h.c.requestContext()))
}

var _ handler.Conn = (*Connection)(nil)
