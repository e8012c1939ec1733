// Package builtin holds the actions shipped with the bot. Manifests refer to
// them by the keys registered in Catalog.
package builtin

import (
	"context"

	"hostbot/internal/handler"
)

// Catalog returns every built-in action keyed the way manifests name them.
func Catalog() *handler.Catalog {
	return handler.NewCatalog().
		RegisterCommand("ping", Ping).
		RegisterCommand("help", Help).
		RegisterCommand("balance", Balance).
		RegisterCommand("daily", Daily).
		RegisterCommand("host", Host).
		RegisterCommand("link", Link).
		RegisterCommand("admin.stats", AdminStats).
		RegisterEvent("ready", Ready).
		RegisterEvent("router", Route).
		RegisterEvent("membership", Membership)
}

func reply(ctx context.Context, env *handler.Env, inv *handler.Invocation, text string) error {
	if inv.Message == nil || inv.Message.Chat == nil {
		return nil
	}
	return env.Conn.Send(ctx, inv.Message.Chat.ID, text)
}
