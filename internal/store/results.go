package store

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// Result is one archived leaderboard row of a finalized room.
type Result struct {
	RoomID     int             `json:"roomId"`
	Player     string          `json:"player"`
	Score      decimal.Decimal `json:"score"`
	ArchivedAt time.Time       `json:"archivedAt"`
}

// PlayerXP is a player's cumulative score over archived rooms.
type PlayerXP struct {
	Player string          `json:"player"`
	XP     decimal.Decimal `json:"xp"`
	Rooms  int             `json:"rooms"`
}

// ArchiveResults stores a finalized room's leaderboard. Rows already archived
// for the room are left untouched, so repeated polls are idempotent.
// It returns the number of newly stored rows.
func (s *Store) ArchiveResults(ctx context.Context, roomID int, results []Result) (int, error) {
	if len(results) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("store: begin archive: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO room_results(contract, room_id, player, player_key, score, archived_at)
		VALUES(?, ?, ?, ?, ?, ?)
		ON CONFLICT(contract, room_id, player_key) DO NOTHING`)
	if err != nil {
		return 0, fmt.Errorf("store: prepare archive: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC()
	stored := 0
	for _, r := range results {
		res, err := stmt.ExecContext(ctx, s.contract, roomID, r.Player, walletKey(r.Player), r.Score.String(), now)
		if err != nil {
			return 0, fmt.Errorf("store: archive result: %w", err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			stored++
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("store: commit archive: %w", err)
	}
	return stored, nil
}

// IsArchived reports whether any results exist for the room.
func (s *Store) IsArchived(ctx context.Context, roomID int) (bool, error) {
	var n int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM room_results WHERE contract=? AND room_id=?`, s.contract, roomID).Scan(&n); err != nil {
		return false, fmt.Errorf("store: count results: %w", err)
	}
	return n > 0, nil
}

// Results returns archived rows, optionally for one room (roomID > 0),
// ordered by room then score descending.
func (s *Store) Results(ctx context.Context, roomID int) ([]Result, error) {
	q := `SELECT room_id, player, score, archived_at FROM room_results WHERE contract=?`
	args := []any{s.contract}
	if roomID > 0 {
		q += ` AND room_id=?`
		args = append(args, roomID)
	}
	rows, err := s.db.QueryContext(ctx, q+` ORDER BY room_id ASC, player_key ASC`, args...)
	if err != nil {
		return nil, fmt.Errorf("store: list results: %w", err)
	}
	defer rows.Close()

	out := []Result{}
	for rows.Next() {
		var r Result
		var score string
		if err := rows.Scan(&r.RoomID, &r.Player, &score, &r.ArchivedAt); err != nil {
			return nil, fmt.Errorf("store: scan result: %w", err)
		}
		if r.Score, err = decimal.NewFromString(score); err != nil {
			return nil, fmt.Errorf("store: parse score %q: %w", score, err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// decimal scores are stored as text, so order in Go
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].RoomID != out[j].RoomID {
			return out[i].RoomID < out[j].RoomID
		}
		return out[i].Score.GreaterThan(out[j].Score)
	})
	return out, nil
}

// TopXP sums archived scores per player (case-insensitive) and returns the
// top limit players by XP, ties broken by address.
func (s *Store) TopXP(ctx context.Context, limit int) ([]PlayerXP, error) {
	results, err := s.Results(ctx, 0)
	if err != nil {
		return nil, err
	}

	byKey := map[string]*PlayerXP{}
	for _, r := range results {
		key := walletKey(r.Player)
		p, ok := byKey[key]
		if !ok {
			p = &PlayerXP{Player: key}
			byKey[key] = p
		}
		p.XP = p.XP.Add(r.Score)
		p.Rooms++
	}

	out := make([]PlayerXP, 0, len(byKey))
	for _, p := range byKey {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool {
		if c := out[i].XP.Cmp(out[j].XP); c != 0 {
			return c > 0
		}
		return out[i].Player < out[j].Player
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// ExportCSV writes all archived results to w as CSV (header included).
func (s *Store) ExportCSV(ctx context.Context, w io.Writer) error {
	results, err := s.Results(ctx, 0)
	if err != nil {
		return err
	}

	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"room_id", "player", "score", "archived_at"}); err != nil {
		return err
	}
	for _, r := range results {
		if err := cw.Write([]string{
			strconv.Itoa(r.RoomID),
			r.Player,
			r.Score.String(),
			r.ArchivedAt.UTC().Format(time.RFC3339),
		}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
