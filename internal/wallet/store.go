package wallet

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/oraclegame/oracle-game/internal/calldata"
)

// ErrInvalidAddress is returned for addresses that are not 0x + 40 hex digits.
var ErrInvalidAddress = errors.New("wallet: address must be 0x followed by 40 hex characters")

// Profile stores non-secret wallet metadata.
// The optional endpoint API key is stored in the OS keychain.
type Profile struct {
	ID        string `json:"id"`
	Label     string `json:"label"`
	Address   string `json:"address"`
	CreatedAt string `json:"createdAt"`
	UpdatedAt string `json:"updatedAt"`
}

// Store persists wallet profiles in SQLite.
type Store struct {
	db *sql.DB
}

// NewStore opens the SQLite wallet DB and enables WAL.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("wallet: open db: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("wallet: enable WAL: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the DB.
func (s *Store) Close() error {
	return s.db.Close()
}

// Migrate creates tables and indexes.
func (s *Store) Migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS wallet_profiles (
			id TEXT PRIMARY KEY,
			label TEXT NOT NULL DEFAULT '',
			address TEXT NOT NULL,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_wallet_profiles_updated_at ON wallet_profiles(updated_at DESC)`,
	}
	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			return fmt.Errorf("wallet: migrate: %w", err)
		}
	}
	return nil
}

// List returns all profiles, most recently updated first.
func (s *Store) List() ([]Profile, error) {
	rows, err := s.db.Query(
		`SELECT id, label, address, created_at, updated_at
		 FROM wallet_profiles
		 ORDER BY updated_at DESC, label ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("wallet: list: %w", err)
	}
	defer rows.Close()

	out := []Profile{}
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("wallet: iterate profiles: %w", err)
	}
	return out, nil
}

// Get returns a single profile by id.
func (s *Store) Get(id string) (*Profile, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, fmt.Errorf("wallet: id is required")
	}

	row := s.db.QueryRow(
		`SELECT id, label, address, created_at, updated_at
		 FROM wallet_profiles
		 WHERE id = ?`,
		id,
	)
	p, err := scanProfile(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("wallet: profile %q not found", id)
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// Save upserts a profile and returns the stored record.
func (s *Store) Save(p Profile) (Profile, error) {
	p.Address = strings.TrimSpace(p.Address)
	if !calldata.IsAddress(p.Address) {
		return Profile{}, ErrInvalidAddress
	}
	if strings.TrimSpace(p.ID) == "" {
		p.ID = uuid.NewString()
	}
	p.Label = strings.TrimSpace(p.Label)

	_, err := s.db.Exec(
		`INSERT INTO wallet_profiles (id, label, address)
		 VALUES (?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   label = excluded.label,
		   address = excluded.address,
		   updated_at = CURRENT_TIMESTAMP`,
		p.ID, p.Label, p.Address,
	)
	if err != nil {
		return Profile{}, fmt.Errorf("wallet: save profile: %w", err)
	}

	saved, err := s.Get(p.ID)
	if err != nil {
		return Profile{}, err
	}
	return *saved, nil
}

// Delete removes a profile.
func (s *Store) Delete(id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return fmt.Errorf("wallet: id is required")
	}
	if _, err := s.db.Exec(`DELETE FROM wallet_profiles WHERE id = ?`, id); err != nil {
		return fmt.Errorf("wallet: delete profile: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProfile(row rowScanner) (Profile, error) {
	var p Profile
	var createdAt, updatedAt time.Time
	if err := row.Scan(&p.ID, &p.Label, &p.Address, &createdAt, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return p, err
		}
		return p, fmt.Errorf("wallet: scan profile: %w", err)
	}
	p.CreatedAt = createdAt.Format(time.RFC3339)
	p.UpdatedAt = updatedAt.Format(time.RFC3339)
	return p, nil
}
