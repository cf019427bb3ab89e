package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// Store records admin actions in Postgres. A nil *Store is valid and records nothing.
type Store struct{ DB *sql.DB }

func Open(dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)
	return &Store{DB: db}, nil
}

func (s *Store) Enabled() bool { return s != nil && s.DB != nil }

func (s *Store) Ping(ctx context.Context) error { return s.DB.PingContext(ctx) }

func (s *Store) Close() error {
	if !s.Enabled() {
		return nil
	}
	return s.DB.Close()
}

func (s *Store) Migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS admin_audit (
            id          BIGSERIAL PRIMARY KEY,
            actor_id    TEXT NOT NULL,
            actor_email TEXT NOT NULL,
            action      TEXT NOT NULL,
            target      TEXT NOT NULL,
            ok          BOOLEAN NOT NULL,
            detail      JSONB,
            request_id  TEXT,
            created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
        );`,
		`CREATE INDEX IF NOT EXISTS idx_admin_audit_created ON admin_audit(created_at DESC);`,
		`CREATE INDEX IF NOT EXISTS idx_admin_audit_target ON admin_audit(target);`,
	}
	for _, q := range stmts {
		if _, err := s.DB.ExecContext(ctx, q); err != nil {
			return err
		}
	}
	return nil
}

type AdminAction struct {
	ID         int64
	ActorID    string
	ActorEmail string
	Action     string // e.g. fair.update, sitemap.regenerate
	Target     string // fair id or site id
	OK         bool
	Detail     map[string]any
	RequestID  string
	CreatedAt  time.Time
}

func (s *Store) RecordAdminAction(ctx context.Context, a AdminAction) error {
	if !s.Enabled() {
		return nil
	}
	if a.Action == "" {
		return errors.New("store: empty action")
	}
	var detail any
	if len(a.Detail) > 0 {
		b, err := json.Marshal(a.Detail)
		if err != nil {
			return err
		}
		detail = string(b)
	}
	_, err := s.DB.ExecContext(ctx, `
        INSERT INTO admin_audit (actor_id, actor_email, action, target, ok, detail, request_id)
        VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		a.ActorID, a.ActorEmail, a.Action, a.Target, a.OK, detail, nullString(a.RequestID),
	)
	return err
}

// RecentAdminActions returns the newest actions first.
func (s *Store) RecentAdminActions(ctx context.Context, limit int) ([]AdminAction, error) {
	if !s.Enabled() {
		return nil, nil
	}
	if limit <= 0 || limit > 200 {
		limit = 20
	}
	rows, err := s.DB.QueryContext(ctx, `
        SELECT id, actor_id, actor_email, action, target, ok, detail, request_id, created_at
        FROM admin_audit
        ORDER BY created_at DESC, id DESC
        LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []AdminAction
	for rows.Next() {
		var (
			a      AdminAction
			detail sql.NullString
			reqID  sql.NullString
		)
		if err := rows.Scan(&a.ID, &a.ActorID, &a.ActorEmail, &a.Action, &a.Target, &a.OK, &detail, &reqID, &a.CreatedAt); err != nil {
			return nil, err
		}
		if detail.Valid && detail.String != "" {
			_ = json.Unmarshal([]byte(detail.String), &a.Detail)
		}
		a.RequestID = reqID.String
		out = append(out, a)
	}
	return out, rows.Err()
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
