package builtin

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"hostbot/internal/handler"
	"hostbot/internal/store"
)

const (
	defaultHostMinutes = 60
	maxHostMinutes     = 240
	hostCoinsPerMinute = 1
	dailyReward        = 100
	dailyPeriod        = 24 * time.Hour
	linkCodeTTL        = 15 * time.Minute
)

const unavailableText = "That is unavailable right now, try again later."

// Ping answers with pong.
func Ping(ctx context.Context, env *handler.Env, inv *handler.Invocation) error {
	return reply(ctx, env, inv, "pong")
}

// Help lists the commands the caller may run.
func Help(ctx context.Context, env *handler.Env, inv *handler.Invocation) error {
	admin := inv.Message != nil && inv.Message.From != nil && env.IsAdmin(inv.Message.From.ID)
	var b strings.Builder
	b.WriteString("Available commands:\n")
	for _, c := range env.Registry.Commands() {
		if c.Data.Admin && !admin {
			continue
		}
		b.WriteString("/" + c.Data.Name)
		if c.Data.Description != "" {
			b.WriteString(" - " + c.Data.Description)
		}
		b.WriteByte('\n')
	}
	return reply(ctx, env, inv, strings.TrimRight(b.String(), "\n"))
}

// Balance shows the caller's coins.
func Balance(ctx context.Context, env *handler.Env, inv *handler.Invocation) error {
	coins, err := env.Store.Balance(ctx, userID(inv))
	if errors.Is(err, store.ErrUnavailable) {
		return reply(ctx, env, inv, unavailableText)
	}
	if err != nil {
		return err
	}
	return reply(ctx, env, inv, fmt.Sprintf("You have %d coins.", coins))
}

// Host queues a game server for the caller: /host <name> [minutes].
func Host(ctx context.Context, env *handler.Env, inv *handler.Invocation) error {
	fields := strings.Fields(inv.Args)
	if len(fields) == 0 {
		return reply(ctx, env, inv, "Usage: /host <name> [minutes]")
	}
	minutes := defaultHostMinutes
	if len(fields) > 1 {
		n, err := strconv.Atoi(fields[1])
		if err != nil || n <= 0 || n > maxHostMinutes {
			return reply(ctx, env, inv, fmt.Sprintf("Minutes must be between 1 and %d.", maxHostMinutes))
		}
		minutes = n
	}
	var chatID int64
	if inv.Message != nil && inv.Message.Chat != nil {
		chatID = inv.Message.Chat.ID
	}
	cost := int64(minutes * hostCoinsPerMinute)
	_, err := env.Store.PurchaseServer(ctx, store.Server{
		OwnerID:  userID(inv),
		ChatID:   chatID,
		Name:     fields[0],
		Duration: time.Duration(minutes) * time.Minute,
	}, cost)
	switch {
	case errors.Is(err, store.ErrUnavailable):
		return reply(ctx, env, inv, unavailableText)
	case errors.Is(err, store.ErrInsufficientFunds):
		return reply(ctx, env, inv, fmt.Sprintf("Hosting for %d minutes costs %d coins. Use /daily to earn more.", minutes, cost))
	case err != nil:
		return err
	}
	queued, err := env.Store.QueueSize(ctx)
	if err != nil {
		return err
	}
	return reply(ctx, env, inv, fmt.Sprintf("Server %s queued for %d minutes (%d in queue). %d coins spent.", fields[0], minutes, queued, cost))
}

// Daily credits dailyReward coins once per dailyPeriod.
func Daily(ctx context.Context, env *handler.Env, inv *handler.Invocation) error {
	uid := userID(inv)
	last, err := env.Store.LastTransactionAt(ctx, uid, store.TxEarn)
	if errors.Is(err, store.ErrUnavailable) {
		return reply(ctx, env, inv, unavailableText)
	}
	if err != nil {
		return err
	}
	if wait := dailyPeriod - time.Since(last); !last.IsZero() && wait > 0 {
		return reply(ctx, env, inv, fmt.Sprintf("Already claimed. Come back in %s.", wait.Round(time.Minute)))
	}
	if _, err := env.Store.RecordTransaction(ctx, uid, store.TxEarn, dailyReward); err != nil {
		return err
	}
	coins, err := env.Store.Balance(ctx, uid)
	if err != nil {
		return err
	}
	return reply(ctx, env, inv, fmt.Sprintf("You received %d coins. Balance: %d.", dailyReward, coins))
}

// Link issues a one-time code the caller can redeem outside the chat.
func Link(ctx context.Context, env *handler.Env, inv *handler.Invocation) error {
	code := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
	err := env.Store.CreateCode(ctx, code, userID(inv), time.Now().Add(linkCodeTTL))
	if errors.Is(err, store.ErrUnavailable) {
		return reply(ctx, env, inv, unavailableText)
	}
	if err != nil {
		return err
	}
	return reply(ctx, env, inv, fmt.Sprintf("Your code is %s. It expires in %d minutes.", code, int(linkCodeTTL/time.Minute)))
}

// AdminStats reports user, server and economy totals.
func AdminStats(ctx context.Context, env *handler.Env, inv *handler.Invocation) error {
	users, err := env.Store.CountUsers(ctx)
	if errors.Is(err, store.ErrUnavailable) {
		return reply(ctx, env, inv, unavailableText)
	}
	if err != nil {
		return err
	}
	active, err := env.Store.CountActiveServers(ctx)
	if err != nil {
		return err
	}
	queued, err := env.Store.QueueSize(ctx)
	if err != nil {
		return err
	}
	eco, err := env.Store.EconomyTotals(ctx)
	if err != nil {
		return err
	}
	codes, err := env.Store.CountCodes(ctx)
	if err != nil {
		return err
	}
	return reply(ctx, env, inv, fmt.Sprintf(
		"Users: %d\nChats: %d\nActive servers: %d\nQueue: %d\nCoins earned: %d\nCoins spent: %d\nTransactions: %d\nPending link codes: %d",
		users, env.Conn.ChatCount(), active, queued, eco.Earned, eco.Spent, eco.Transactions, codes))
}

func userID(inv *handler.Invocation) int64 {
	if inv.Message == nil || inv.Message.From == nil {
		return 0
	}
	return inv.Message.From.ID
}
