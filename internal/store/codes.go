package store

import (
	"context"
	"fmt"
	"time"
)

// CreateCode stores a one-time code for userID valid until expiresAt.
func (s *Store) CreateCode(ctx context.Context, code string, userID int64, expiresAt time.Time) error {
	if s == nil {
		return ErrUnavailable
	}
	if _, err := s.db.ExecContext(ctx, `INSERT INTO codes (code, user_id, expires_at) VALUES (?, ?, ?)`,
		code, userID, expiresAt.Unix()); err != nil {
		return fmt.Errorf("create code: %w", err)
	}
	return nil
}

// DeleteExpiredCodes removes codes expired at now and reports how many went.
func (s *Store) DeleteExpiredCodes(ctx context.Context, now time.Time) (int64, error) {
	if s == nil {
		return 0, ErrUnavailable
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM codes WHERE expires_at <= ?`, now.Unix())
	if err != nil {
		return 0, fmt.Errorf("delete expired codes: %w", err)
	}
	return res.RowsAffected()
}

// CountCodes returns the number of stored codes.
func (s *Store) CountCodes(ctx context.Context) (int, error) {
	return s.count(ctx, `SELECT COUNT(*) FROM codes`)
}
