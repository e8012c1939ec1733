package builtin

import (
	"context"
	"fmt"
	"runtime/debug"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"

	"hostbot/internal/handler"
)

const failureText = "Something went wrong while running /%s (ref %s)."

// Ready publishes the command menu once the connection is up.
func Ready(ctx context.Context, env *handler.Env, args ...any) error {
	name := env.Conn.Self()
	if len(args) > 0 {
		if u, ok := args[0].(*tgbotapi.User); ok && u != nil {
			name = "@" + u.UserName
		}
	}
	cmds := env.Registry.Commands()
	data := make([]handler.CommandData, 0, len(cmds))
	for _, c := range cmds {
		data = append(data, c.Data)
	}
	if err := env.Conn.SetCommands(ctx, data); err != nil {
		return err
	}
	env.Logger.Info().Str("bot", name).Int("commands", len(data)).Msg("bot ready")
	return nil
}

// Membership logs the bot joining or leaving chats.
func Membership(ctx context.Context, env *handler.Env, args ...any) error {
	if len(args) == 0 {
		return nil
	}
	upd, ok := args[0].(*tgbotapi.ChatMemberUpdated)
	if !ok || upd == nil {
		return nil
	}
	ev := env.Logger.Info().
		Int64("chat", upd.Chat.ID).
		Str("title", upd.Chat.Title).
		Str("from", upd.OldChatMember.Status).
		Str("to", upd.NewChatMember.Status)
	switch upd.NewChatMember.Status {
	case "left", "kicked":
		ev.Msg("removed from chat")
	default:
		ev.Msg("membership changed")
	}
	return nil
}

// Route turns a message into a command invocation.
func Route(ctx context.Context, env *handler.Env, args ...any) error {
	if len(args) == 0 {
		return nil
	}
	msg, ok := args[0].(*tgbotapi.Message)
	if !ok || msg == nil || msg.Chat == nil || msg.From == nil || msg.From.IsBot {
		return nil
	}
	name, rest, ok := parseCommand(msg.Text, strings.TrimPrefix(env.Conn.Self(), "@"))
	if !ok {
		return nil
	}
	cmd, found := env.Registry.Command(name)
	if !found {
		return nil
	}
	log := env.Logger.With().Str("command", name).Int64("user", msg.From.ID).Logger()
	if cmd.Data.Admin && !env.IsAdmin(msg.From.ID) {
		log.Warn().Msg("admin command denied")
		return env.Conn.Send(ctx, msg.Chat.ID, "This command is restricted to administrators.")
	}
	if err := env.Store.EnsureUser(ctx, msg.From.ID, msg.From.UserName); err != nil {
		log.Debug().Err(err).Msg("user not recorded")
	}

	inv := &handler.Invocation{ID: uuid.NewString(), Name: name, Args: rest, Message: msg}
	start := time.Now()
	err := invoke(ctx, cmd, env, inv)
	if err != nil {
		log.Error().Str("invocation", inv.ID).Err(err).Msg("command failed")
		return env.Conn.Send(ctx, msg.Chat.ID, fmt.Sprintf(failureText, name, inv.ID[:8]))
	}
	log.Info().Str("invocation", inv.ID).Dur("took", time.Since(start)).Msg("command executed")
	return nil
}

func invoke(ctx context.Context, cmd *handler.Command, env *handler.Env, inv *handler.Invocation) (err error) {
	defer func() {
		if r := recover(); r != nil {
			env.Logger.Error().Str("invocation", inv.ID).Bytes("stack", debug.Stack()).Msg("command panicked")
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return cmd.Execute(ctx, env, inv)
}

// parseCommand splits "/name@bot args" into name and args. Commands addressed
// to another bot are not ours.
func parseCommand(text, self string) (name, args string, ok bool) {
	if !strings.HasPrefix(text, "/") {
		return "", "", false
	}
	head, rest, _ := strings.Cut(text[1:], " ")
	if at := strings.IndexByte(head, '@'); at >= 0 {
		if self != "" && !strings.EqualFold(head[at+1:], self) {
			return "", "", false
		}
		head = head[:at]
	}
	if head == "" {
		return "", "", false
	}
	return strings.ToLower(head), strings.TrimSpace(rest), true
}
