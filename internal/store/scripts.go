package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Script is a saved answer draft script.
type Script struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Source    string    `json:"source"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// SaveScript inserts or updates a script; an empty ID gets a new uuid.
func (s *Store) SaveScript(ctx context.Context, sc Script) (Script, error) {
	sc.Name = strings.TrimSpace(sc.Name)
	if sc.Name == "" {
		return Script{}, fmt.Errorf("store: script name is required")
	}
	if sc.ID == "" {
		sc.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO draft_scripts(id, name, source, created_at, updated_at) VALUES(?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name=excluded.name, source=excluded.source, updated_at=excluded.updated_at`,
		sc.ID, sc.Name, sc.Source, now, now)
	if err != nil {
		return Script{}, fmt.Errorf("store: save script: %w", err)
	}
	return s.GetScript(ctx, sc.ID)
}

// GetScript returns a script by id or ErrNotFound.
func (s *Store) GetScript(ctx context.Context, id string) (Script, error) {
	var sc Script
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, source, created_at, updated_at FROM draft_scripts WHERE id=?`, id).
		Scan(&sc.ID, &sc.Name, &sc.Source, &sc.CreatedAt, &sc.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Script{}, ErrNotFound
	}
	if err != nil {
		return Script{}, fmt.Errorf("store: get script: %w", err)
	}
	return sc, nil
}

// ListScripts returns saved scripts, most recently updated first.
func (s *Store) ListScripts(ctx context.Context) ([]Script, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, source, created_at, updated_at FROM draft_scripts ORDER BY updated_at DESC, name`)
	if err != nil {
		return nil, fmt.Errorf("store: list scripts: %w", err)
	}
	defer rows.Close()

	out := []Script{}
	for rows.Next() {
		var sc Script
		if err := rows.Scan(&sc.ID, &sc.Name, &sc.Source, &sc.CreatedAt, &sc.UpdatedAt); err != nil {
			return nil, fmt.Errorf("store: scan script: %w", err)
		}
		out = append(out, sc)
	}
	return out, rows.Err()
}

// DeleteScript removes a script. Deleting a missing script is not an error.
func (s *Store) DeleteScript(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM draft_scripts WHERE id=?`, id); err != nil {
		return fmt.Errorf("store: delete script: %w", err)
	}
	return nil
}
