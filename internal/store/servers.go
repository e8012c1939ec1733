package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ServerStatus is the lifecycle state of a rented game server.
type ServerStatus string

const (
	ServerQueued  ServerStatus = "queued"
	ServerActive  ServerStatus = "active"
	ServerStopped ServerStatus = "stopped"
)

// Server is a rented game server slot.
type Server struct {
	ID        string
	OwnerID   int64
	ChatID    int64
	Name      string
	Status    ServerStatus
	Duration  time.Duration
	CreatedAt time.Time
	ExpiresAt time.Time
}

// PurchaseServer charges the owner cost coins and queues srv in one
// transaction, returning the server id. A zero cost books nothing.
// ErrInsufficientFunds leaves nothing behind.
func (s *Store) PurchaseServer(ctx context.Context, srv Server, cost int64) (string, error) {
	if s == nil {
		return "", ErrUnavailable
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if cost > 0 {
		if _, err := book(ctx, tx, srv.OwnerID, TxSpend, cost); err != nil {
			return "", err
		}
	}
	id, err := insertServer(ctx, tx, srv)
	if err != nil {
		return "", err
	}
	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}
	return id, nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertServer(ctx context.Context, db execer, srv Server) (string, error) {
	if srv.ID == "" {
		srv.ID = uuid.NewString()
	}
	if srv.Status == "" {
		srv.Status = ServerQueued
	}
	if srv.CreatedAt.IsZero() {
		srv.CreatedAt = time.Now()
	}
	var expires int64
	if !srv.ExpiresAt.IsZero() {
		expires = srv.ExpiresAt.Unix()
	}
	_, err := db.ExecContext(ctx, `
		INSERT INTO servers (id, owner_id, chat_id, name, status, duration_sec, created_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		srv.ID, srv.OwnerID, srv.ChatID, srv.Name, string(srv.Status), int64(srv.Duration/time.Second), srv.CreatedAt.Unix(), expires)
	if err != nil {
		return "", fmt.Errorf("create server: %w", err)
	}
	return srv.ID, nil
}

// CountActiveServers returns the number of servers currently running.
func (s *Store) CountActiveServers(ctx context.Context) (int, error) {
	return s.count(ctx, `SELECT COUNT(*) FROM servers WHERE status = ?`, string(ServerActive))
}

// QueueSize returns the number of servers waiting for a slot.
func (s *Store) QueueSize(ctx context.Context) (int, error) {
	return s.count(ctx, `SELECT COUNT(*) FROM servers WHERE status = ?`, string(ServerQueued))
}

// ExpiredServers lists active servers whose time ran out at now.
func (s *Store) ExpiredServers(ctx context.Context, now time.Time) ([]Server, error) {
	if s == nil {
		return nil, ErrUnavailable
	}
	return s.listServers(ctx, `
		SELECT id, owner_id, chat_id, name, status, duration_sec, created_at, expires_at
		FROM servers WHERE status = ? AND expires_at <= ? ORDER BY expires_at`,
		string(ServerActive), now.Unix())
}

// StopServer marks a server stopped.
func (s *Store) StopServer(ctx context.Context, id string) error {
	if s == nil {
		return ErrUnavailable
	}
	if _, err := s.db.ExecContext(ctx, `UPDATE servers SET status = ? WHERE id = ?`, string(ServerStopped), id); err != nil {
		return fmt.Errorf("stop server %s: %w", id, err)
	}
	return nil
}

// ActivateQueued promotes up to limit queued servers, oldest first, and
// returns them with their new expiry.
func (s *Store) ActivateQueued(ctx context.Context, limit int, now time.Time) ([]Server, error) {
	if s == nil {
		return nil, ErrUnavailable
	}
	if limit <= 0 {
		return nil, nil
	}
	queued, err := s.listServers(ctx, `
		SELECT id, owner_id, chat_id, name, status, duration_sec, created_at, expires_at
		FROM servers WHERE status = ? ORDER BY created_at, id LIMIT ?`,
		string(ServerQueued), limit)
	if err != nil {
		return nil, err
	}
	for i := range queued {
		srv := &queued[i]
		srv.Status = ServerActive
		srv.ExpiresAt = now.Add(srv.Duration)
		if _, err := s.db.ExecContext(ctx, `UPDATE servers SET status = ?, expires_at = ? WHERE id = ?`,
			string(ServerActive), srv.ExpiresAt.Unix(), srv.ID); err != nil {
			return queued[:i], fmt.Errorf("activate server %s: %w", srv.ID, err)
		}
	}
	return queued, nil
}

func (s *Store) listServers(ctx context.Context, q string, args ...any) ([]Server, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list servers: %w", err)
	}
	defer rows.Close()
	var out []Server
	for rows.Next() {
		var (
			srv                      Server
			status                   string
			durSec, created, expires int64
		)
		if err := rows.Scan(&srv.ID, &srv.OwnerID, &srv.ChatID, &srv.Name, &status, &durSec, &created, &expires); err != nil {
			return nil, fmt.Errorf("scan server: %w", err)
		}
		srv.Status = ServerStatus(status)
		srv.Duration = time.Duration(durSec) * time.Second
		srv.CreatedAt = time.Unix(created, 0)
		if expires > 0 {
			srv.ExpiresAt = time.Unix(expires, 0)
		}
		out = append(out, srv)
	}
	return out, rows.Err()
}
