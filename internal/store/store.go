// Package store persists local game state in SQLite: cached room prompts,
// the connected wallet's submissions, saved draft scripts and an archive of
// finalized results.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite" // pure-Go SQLite driver
)

// PendingPromptID is the prompt row for a room that was just created but whose
// id is not known yet.
const PendingPromptID = -1

// ErrNotFound is returned when a row does not exist.
var ErrNotFound = errors.New("store: not found")

// Store wraps the SQLite database. Prompts, submissions and results are
// scoped to one contract address; see ForContract.
type Store struct {
	db       *sql.DB
	contract string
}

// New opens/creates a SQLite database at dbPath and runs migrations.
// Use ":memory:" for an ephemeral database.
func New(dbPath string) (*Store, error) {
	dsn := dbPath
	if dbPath != ":memory:" {
		dsn = fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", dbPath)
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open db: %w", err)
	}
	db.SetMaxOpenConns(1) // SQLite is not concurrent for writes
	s := &Store{db: db}
	if err := s.migrate(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the underlying database, shared by every scoped view.
func (s *Store) Close() error { return s.db.Close() }

// ForContract returns a view of the store whose prompts, submissions and
// results belong to the given contract address.
func (s *Store) ForContract(address string) *Store {
	return &Store{db: s.db, contract: contractKey(address)}
}

// Contract returns the contract address the store is scoped to.
func (s *Store) Contract() string { return s.contract }

// --------- Migrations ---------

// scopedTable is a table keyed by contract. columns are those copied over
// from a layout that predates the contract column.
type scopedTable struct {
	table, columns string
	indexes        []string
}

var contractScoped = []scopedTable{
	{"room_prompts", "room_id, prompt, updated_at", nil},
	{"submissions", "id, wallet, room_id, answer, tx_hash, status, submitted_at", []string{"idx_submissions_room"}},
	{"room_results", "room_id, player, player_key, score, archived_at", []string{"idx_room_results_player"}},
}

func (s *Store) migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS room_prompts (
			contract TEXT NOT NULL DEFAULT '',
			room_id INTEGER NOT NULL,
			prompt TEXT NOT NULL,
			updated_at TIMESTAMP NOT NULL,
			PRIMARY KEY(contract, room_id)
		);`,

		`CREATE TABLE IF NOT EXISTS submissions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			contract TEXT NOT NULL DEFAULT '',
			wallet TEXT NOT NULL,
			room_id INTEGER NOT NULL,
			answer TEXT NOT NULL,
			tx_hash TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL DEFAULT 'pending',
			submitted_at TIMESTAMP NOT NULL,
			UNIQUE(contract, wallet, room_id)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_submissions_room ON submissions(contract, room_id);`,

		`CREATE TABLE IF NOT EXISTS room_results (
			contract TEXT NOT NULL DEFAULT '',
			room_id INTEGER NOT NULL,
			player TEXT NOT NULL,
			player_key TEXT NOT NULL,
			score TEXT NOT NULL,
			archived_at TIMESTAMP NOT NULL,
			UNIQUE(contract, room_id, player_key)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_room_results_player ON room_results(contract, player_key);`,

		`CREATE TABLE IF NOT EXISTS draft_scripts (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			source TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		);`,
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin migration: %w", err)
	}
	defer tx.Rollback()

	legacy, err := renameLegacyTables(ctx, tx)
	if err != nil {
		return err
	}
	for _, q := range stmts {
		if _, err := tx.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("store: migrate: %w", err)
		}
	}
	// Rows written before contracts were tracked keep an empty contract, so
	// no configured contract picks them up.
	for _, t := range legacy {
		copyRows := fmt.Sprintf(`INSERT INTO %s(contract, %s) SELECT '', %s FROM %s_legacy`,
			t.table, t.columns, t.columns, t.table)
		if _, err := tx.ExecContext(ctx, copyRows); err != nil {
			return fmt.Errorf("store: copy legacy %s: %w", t.table, err)
		}
		if _, err := tx.ExecContext(ctx, fmt.Sprintf(`DROP TABLE %s_legacy`, t.table)); err != nil {
			return fmt.Errorf("store: drop legacy %s: %w", t.table, err)
		}
	}
	return tx.Commit()
}

// renameLegacyTables moves aside scoped tables that lack a contract column.
func renameLegacyTables(ctx context.Context, tx *sql.Tx) ([]scopedTable, error) {
	var moved []scopedTable
	for _, t := range contractScoped {
		exists, hasContract, err := tableInfo(ctx, tx, t.table)
		if err != nil {
			return nil, err
		}
		if !exists || hasContract {
			continue
		}
		for _, idx := range t.indexes {
			if _, err := tx.ExecContext(ctx, `DROP INDEX IF EXISTS `+idx); err != nil {
				return nil, fmt.Errorf("store: drop index %s: %w", idx, err)
			}
		}
		if _, err := tx.ExecContext(ctx, fmt.Sprintf(`ALTER TABLE %s RENAME TO %s_legacy`, t.table, t.table)); err != nil {
			return nil, fmt.Errorf("store: rename %s: %w", t.table, err)
		}
		moved = append(moved, t)
	}
	return moved, nil
}

func tableInfo(ctx context.Context, tx *sql.Tx, table string) (exists, hasContract bool, err error) {
	rows, err := tx.QueryContext(ctx, `SELECT name FROM pragma_table_info(?)`, table)
	if err != nil {
		return false, false, fmt.Errorf("store: inspect %s: %w", table, err)
	}
	defer rows.Close()
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return false, false, fmt.Errorf("store: inspect %s: %w", table, err)
		}
		exists = true
		if name == "contract" {
			hasContract = true
		}
	}
	return exists, hasContract, rows.Err()
}

// --------- Prompts ---------

// SavePrompt upserts the prompt for a room id (PendingPromptID allowed).
func (s *Store) SavePrompt(ctx context.Context, roomID int, prompt string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO room_prompts(contract, room_id, prompt, updated_at) VALUES(?, ?, ?, ?)
		ON CONFLICT(contract, room_id) DO UPDATE SET prompt=excluded.prompt, updated_at=excluded.updated_at`,
		s.contract, roomID, prompt, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("store: save prompt: %w", err)
	}
	return nil
}

// DeletePrompt removes a cached prompt.
func (s *Store) DeletePrompt(ctx context.Context, roomID int) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM room_prompts WHERE contract=? AND room_id=?`, s.contract, roomID); err != nil {
		return fmt.Errorf("store: delete prompt: %w", err)
	}
	return nil
}

// ClaimPendingPrompt moves the pending prompt to roomID, replacing any prompt
// stored for it. It reports whether a prompt was moved.
func (s *Store) ClaimPendingPrompt(ctx context.Context, roomID int) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("store: begin claim: %w", err)
	}
	defer tx.Rollback()

	var prompt string
	err = tx.QueryRowContext(ctx, `SELECT prompt FROM room_prompts WHERE contract=? AND room_id=?`,
		s.contract, PendingPromptID).Scan(&prompt)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("store: read pending prompt: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO room_prompts(contract, room_id, prompt, updated_at) VALUES(?, ?, ?, ?)
		ON CONFLICT(contract, room_id) DO UPDATE SET prompt=excluded.prompt, updated_at=excluded.updated_at`,
		s.contract, roomID, prompt, time.Now().UTC()); err != nil {
		return false, fmt.Errorf("store: claim pending prompt: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM room_prompts WHERE contract=? AND room_id=?`,
		s.contract, PendingPromptID); err != nil {
		return false, fmt.Errorf("store: clear pending prompt: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("store: commit claim: %w", err)
	}
	return true, nil
}

// Prompts returns every cached prompt keyed by room id.
func (s *Store) Prompts(ctx context.Context) (map[int]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT room_id, prompt FROM room_prompts WHERE contract=?`, s.contract)
	if err != nil {
		return nil, fmt.Errorf("store: list prompts: %w", err)
	}
	defer rows.Close()

	out := map[int]string{}
	for rows.Next() {
		var id int
		var prompt string
		if err := rows.Scan(&id, &prompt); err != nil {
			return nil, fmt.Errorf("store: scan prompt: %w", err)
		}
		out[id] = prompt
	}
	return out, rows.Err()
}

// --------- helpers ---------

func isConstraintErr(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "constraint failed") || strings.Contains(msg, "unique constraint")
}

// contractKey normalizes a contract address so checksum case does not split
// its rows.
func contractKey(addr string) string {
	return strings.ToLower(strings.TrimSpace(addr))
}

// walletKey normalizes an address for lookups. Display keeps the original case.
func walletKey(addr string) string {
	return strings.ToLower(strings.TrimSpace(addr))
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}
