package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// TxKind is the direction of an economy transaction.
type TxKind string

const (
	TxEarn  TxKind = "earn"
	TxSpend TxKind = "spend"
)

// Economy aggregates all transactions.
type Economy struct {
	Earned       int64
	Spent        int64
	Transactions int64
}

// EnsureUser creates the user row if missing and refreshes the username.
func (s *Store) EnsureUser(ctx context.Context, id int64, username string) error {
	if s == nil {
		return ErrUnavailable
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, username, coins, created_at) VALUES (?, ?, 0, ?)
		ON CONFLICT(id) DO UPDATE SET username = excluded.username;
	`, id, username, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("ensure user: %w", err)
	}
	return nil
}

// Balance returns the user's coins; unknown users have 0.
func (s *Store) Balance(ctx context.Context, id int64) (int64, error) {
	if s == nil {
		return 0, ErrUnavailable
	}
	var coins int64
	err := s.db.QueryRowContext(ctx, `SELECT coins FROM users WHERE id = ?`, id).Scan(&coins)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("balance: %w", err)
	}
	return coins, nil
}

// RecordTransaction books amount for the user and adjusts the balance.
func (s *Store) RecordTransaction(ctx context.Context, userID int64, kind TxKind, amount int64) (string, error) {
	if s == nil {
		return "", ErrUnavailable
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	id, err := book(ctx, tx, userID, kind, amount)
	if err != nil {
		return "", err
	}
	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}
	return id, nil
}

// LastTransactionAt returns when the user last booked a transaction of kind,
// or the zero time if never.
func (s *Store) LastTransactionAt(ctx context.Context, userID int64, kind TxKind) (time.Time, error) {
	if s == nil {
		return time.Time{}, ErrUnavailable
	}
	var last sql.NullInt64
	err := s.db.QueryRowContext(ctx, `SELECT MAX(created_at) FROM transactions WHERE user_id = ? AND kind = ?`,
		userID, string(kind)).Scan(&last)
	if err != nil {
		return time.Time{}, fmt.Errorf("last transaction: %w", err)
	}
	if !last.Valid {
		return time.Time{}, nil
	}
	return time.Unix(last.Int64, 0), nil
}

// book inserts the transaction row and moves the balance inside tx.
func book(ctx context.Context, tx *sql.Tx, userID int64, kind TxKind, amount int64) (string, error) {
	if amount <= 0 {
		return "", fmt.Errorf("amount must be positive, got %d", amount)
	}
	delta := amount
	switch kind {
	case TxEarn:
	case TxSpend:
		delta = -amount
	default:
		return "", fmt.Errorf("unknown transaction kind %q", kind)
	}
	var coins int64
	if err := tx.QueryRowContext(ctx, `SELECT coins FROM users WHERE id = ?`, userID).Scan(&coins); err != nil {
		return "", fmt.Errorf("load user %d: %w", userID, err)
	}
	if coins+delta < 0 {
		return "", ErrInsufficientFunds
	}
	id := uuid.NewString()
	if _, err := tx.ExecContext(ctx, `INSERT INTO transactions (id, user_id, kind, amount, created_at) VALUES (?, ?, ?, ?, ?)`,
		id, userID, string(kind), amount, time.Now().Unix()); err != nil {
		return "", fmt.Errorf("insert transaction: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `UPDATE users SET coins = coins + ? WHERE id = ?`, delta, userID); err != nil {
		return "", fmt.Errorf("update balance: %w", err)
	}
	return id, nil
}

// CountUsers returns the number of known users.
func (s *Store) CountUsers(ctx context.Context) (int, error) {
	return s.count(ctx, `SELECT COUNT(*) FROM users`)
}

// EconomyTotals sums earned and spent coins over all transactions.
func (s *Store) EconomyTotals(ctx context.Context) (Economy, error) {
	var e Economy
	if s == nil {
		return e, ErrUnavailable
	}
	err := s.db.QueryRowContext(ctx, `
		SELECT
			COALESCE(SUM(CASE WHEN kind = 'earn' THEN amount END), 0),
			COALESCE(SUM(CASE WHEN kind = 'spend' THEN amount END), 0),
			COUNT(*)
		FROM transactions`).Scan(&e.Earned, &e.Spent, &e.Transactions)
	if err != nil {
		return e, fmt.Errorf("economy totals: %w", err)
	}
	return e, nil
}

func (s *Store) count(ctx context.Context, q string, args ...any) (int, error) {
	if s == nil {
		return 0, ErrUnavailable
	}
	var n int
	if err := s.db.QueryRowContext(ctx, q, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count: %w", err)
	}
	return n, nil
}
