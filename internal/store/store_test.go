package store

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(":memory:")
	if err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestMigrateOnFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "game.db")
	s, err := New(path)
	if err != nil {
		t.Fatalf("Failed to create database: %v", err)
	}
	if err := s.SavePrompt(context.Background(), 1, "hello"); err != nil {
		t.Fatalf("SavePrompt: %v", err)
	}
	s.Close()

	// Reopen runs migrations again and keeps data.
	s, err = New(path)
	if err != nil {
		t.Fatalf("Failed to reopen database: %v", err)
	}
	defer s.Close()
	prompts, err := s.Prompts(context.Background())
	if err != nil {
		t.Fatalf("Prompts: %v", err)
	}
	if prompts[1] != "hello" {
		t.Errorf("Expected persisted prompt, got %v", prompts)
	}
}

func TestPromptsAndPendingClaim(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.SavePrompt(ctx, PendingPromptID, "Describe a robot's first day at school."); err != nil {
		t.Fatalf("SavePrompt: %v", err)
	}

	moved, err := s.ClaimPendingPrompt(ctx, 5)
	if err != nil {
		t.Fatalf("ClaimPendingPrompt: %v", err)
	}
	if !moved {
		t.Fatal("Expected pending prompt to be claimed")
	}

	prompts, _ := s.Prompts(ctx)
	if prompts[5] != "Describe a robot's first day at school." {
		t.Errorf("Prompt not moved to room 5: %v", prompts)
	}
	if _, ok := prompts[PendingPromptID]; ok {
		t.Error("Pending prompt should be cleared after claim")
	}

	// Nothing pending: no-op.
	moved, err = s.ClaimPendingPrompt(ctx, 6)
	if err != nil || moved {
		t.Errorf("Expected no claim, got moved=%v err=%v", moved, err)
	}
}

func TestClaimReplacesNewestRoomPrompt(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	s.SavePrompt(ctx, 2, "original")
	s.SavePrompt(ctx, PendingPromptID, "newer")

	moved, err := s.ClaimPendingPrompt(ctx, 2)
	if err != nil {
		t.Fatalf("ClaimPendingPrompt: %v", err)
	}
	if !moved {
		t.Error("Expected pending prompt to be claimed")
	}
	prompts, _ := s.Prompts(ctx)
	if prompts[2] != "newer" {
		t.Errorf("Expected pending prompt to replace the old one, got %q", prompts[2])
	}
	if _, ok := prompts[PendingPromptID]; ok {
		t.Error("Pending prompt should be cleared after claim")
	}
}

func TestSubmissionsLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	wallet := "0xABCDEF0000000000000000000000000000000001"

	id, err := s.BeginSubmission(ctx, wallet, 3, "A haiku about toast.")
	if err != nil {
		t.Fatalf("BeginSubmission: %v", err)
	}

	if _, err := s.BeginSubmission(ctx, strings.ToLower(wallet), 3, "again"); !errors.Is(err, ErrDuplicateSubmission) {
		t.Errorf("Expected ErrDuplicateSubmission, got %v", err)
	}

	if err := s.CompleteSubmission(ctx, id, "0xhash", SubmissionAccepted); err != nil {
		t.Fatalf("CompleteSubmission: %v", err)
	}

	sub, err := s.GetSubmission(ctx, wallet, 3)
	if err != nil {
		t.Fatalf("GetSubmission: %v", err)
	}
	if sub.Answer != "A haiku about toast." || sub.TxHash != "0xhash" || sub.Status != SubmissionAccepted {
		t.Errorf("Unexpected submission %+v", sub)
	}

	ok, err := s.HasSubmitted(ctx, wallet, 3)
	if err != nil || !ok {
		t.Errorf("Expected HasSubmitted=true, got %v (%v)", ok, err)
	}

	list, err := s.ListSubmissions(ctx, wallet, 0)
	if err != nil || len(list) != 1 {
		t.Errorf("Expected 1 submission, got %d (%v)", len(list), err)
	}
}

func TestFailedSubmissionCanBeRetried(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	wallet := "0x00000000000000000000000000000000000000aa"

	id, _ := s.BeginSubmission(ctx, wallet, 1, "first try")
	s.CompleteSubmission(ctx, id, "", SubmissionFailed)

	if ok, _ := s.HasSubmitted(ctx, wallet, 1); ok {
		t.Error("Failed submission should not count as submitted")
	}
	if _, err := s.BeginSubmission(ctx, wallet, 1, "second try"); err != nil {
		t.Fatalf("Retry after failure should succeed: %v", err)
	}
	sub, _ := s.GetSubmission(ctx, wallet, 1)
	if sub.Answer != "second try" {
		t.Errorf("Expected retried answer, got %q", sub.Answer)
	}
}

func TestGetSubmissionNotFound(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.GetSubmission(context.Background(), "0x01", 9); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
	if err := s.CompleteSubmission(context.Background(), 42, "", SubmissionAccepted); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestContractScopes(t *testing.T) {
	base := newTestStore(t)
	ctx := context.Background()
	wallet := "0x00000000000000000000000000000000000000aa"

	oldGame := base.ForContract("0xAAAA000000000000000000000000000000000001")
	newGame := base.ForContract("0xbbbb000000000000000000000000000000000002")

	oldGame.SavePrompt(ctx, 1, "old contract prompt")
	oldGame.SavePrompt(ctx, PendingPromptID, "old pending")
	if _, err := oldGame.BeginSubmission(ctx, wallet, 1, "old answer"); err != nil {
		t.Fatalf("BeginSubmission: %v", err)
	}
	oldGame.ArchiveResults(ctx, 1, []Result{{Player: wallet, Score: decimal.NewFromInt(50)}})

	prompts, err := newGame.Prompts(ctx)
	if err != nil {
		t.Fatalf("Prompts: %v", err)
	}
	if len(prompts) != 0 {
		t.Errorf("New contract should see no prompts, got %v", prompts)
	}
	if moved, _ := newGame.ClaimPendingPrompt(ctx, 1); moved {
		t.Error("New contract should not claim another contract's pending prompt")
	}
	if ok, _ := newGame.HasSubmitted(ctx, wallet, 1); ok {
		t.Error("Submission should not carry over to a new contract")
	}
	if _, err := newGame.BeginSubmission(ctx, wallet, 1, "new answer"); err != nil {
		t.Errorf("Same wallet and room on a new contract should be allowed: %v", err)
	}
	if archived, _ := newGame.IsArchived(ctx, 1); archived {
		t.Error("Results should not carry over to a new contract")
	}

	// Address case does not split a contract's rows.
	same := base.ForContract("0xaaaa000000000000000000000000000000000001")
	prompts, _ = same.Prompts(ctx)
	if prompts[1] != "old contract prompt" {
		t.Errorf("Expected prompt under lower-cased address, got %v", prompts)
	}
}

func TestMigrateLegacyLayout(t *testing.T) {
	path := filepath.Join(t.TempDir(), "legacy.db")
	raw, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	legacy := []string{
		`CREATE TABLE room_prompts (room_id INTEGER PRIMARY KEY, prompt TEXT NOT NULL, updated_at TIMESTAMP NOT NULL)`,
		`CREATE TABLE submissions (id INTEGER PRIMARY KEY AUTOINCREMENT, wallet TEXT NOT NULL, room_id INTEGER NOT NULL,
			answer TEXT NOT NULL, tx_hash TEXT NOT NULL DEFAULT '', status TEXT NOT NULL DEFAULT 'pending',
			submitted_at TIMESTAMP NOT NULL, UNIQUE(wallet, room_id))`,
		`CREATE INDEX idx_submissions_room ON submissions(room_id)`,
		`INSERT INTO room_prompts VALUES (1, 'legacy prompt', '2026-01-01 00:00:00')`,
		`INSERT INTO submissions(wallet, room_id, answer, status, submitted_at)
			VALUES ('0xaa', 1, 'legacy answer', 'accepted', '2026-01-01 00:00:00')`,
	}
	for _, q := range legacy {
		if _, err := raw.Exec(q); err != nil {
			t.Fatalf("seed legacy layout: %v", err)
		}
	}
	raw.Close()

	s, err := New(path)
	if err != nil {
		t.Fatalf("Failed to migrate legacy database: %v", err)
	}
	defer s.Close()
	ctx := context.Background()

	prompts, _ := s.Prompts(ctx)
	if prompts[1] != "legacy prompt" {
		t.Errorf("Legacy prompt should be kept unscoped, got %v", prompts)
	}
	if ok, _ := s.HasSubmitted(ctx, "0xaa", 1); !ok {
		t.Error("Legacy submission should be kept unscoped")
	}

	scoped := s.ForContract("0x1234000000000000000000000000000000000000")
	if ok, _ := scoped.HasSubmitted(ctx, "0xaa", 1); ok {
		t.Error("Legacy submission should not apply to a configured contract")
	}
	if _, err := scoped.BeginSubmission(ctx, "0xaa", 1, "fresh"); err != nil {
		t.Errorf("BeginSubmission after migration: %v", err)
	}
}

func TestArchiveAndTopXP(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	n, err := s.ArchiveResults(ctx, 1, []Result{
		{Player: "0xAAA", Score: decimal.NewFromInt(80)},
		{Player: "0xbbb", Score: decimal.NewFromInt(60)},
	})
	if err != nil || n != 2 {
		t.Fatalf("ArchiveResults room 1: n=%d err=%v", n, err)
	}
	s.ArchiveResults(ctx, 2, []Result{
		{Player: "0xaaa", Score: decimal.NewFromInt(10)},
		{Player: "0xBBB", Score: decimal.NewFromInt(40)},
		{Player: "0xccc", Score: decimal.RequireFromString("99.5")},
	})

	// Re-archiving is idempotent.
	n, _ = s.ArchiveResults(ctx, 1, []Result{{Player: "0xaaa", Score: decimal.NewFromInt(80)}})
	if n != 0 {
		t.Errorf("Expected 0 new rows on re-archive, got %d", n)
	}

	archived, _ := s.IsArchived(ctx, 2)
	if !archived {
		t.Error("Expected room 2 archived")
	}

	top, err := s.TopXP(ctx, 2)
	if err != nil {
		t.Fatalf("TopXP: %v", err)
	}
	if len(top) != 2 {
		t.Fatalf("Expected 2 players, got %d", len(top))
	}
	// 0xbbb = 100, 0xccc = 99.5, 0xaaa = 90
	if top[0].Player != "0xbbb" || !top[0].XP.Equal(decimal.NewFromInt(100)) || top[0].Rooms != 2 {
		t.Errorf("Unexpected leader %+v", top[0])
	}
	if top[1].Player != "0xccc" {
		t.Errorf("Expected 0xccc second, got %+v", top[1])
	}
}

func TestExportCSV(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	s.ArchiveResults(ctx, 4, []Result{
		{Player: "0xaaa", Score: decimal.NewFromInt(70)},
		{Player: "0xbbb", Score: decimal.NewFromInt(95)},
	})

	var buf bytes.Buffer
	if err := s.ExportCSV(ctx, &buf); err != nil {
		t.Fatalf("ExportCSV: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("Expected header + 2 rows, got %d lines: %q", len(lines), buf.String())
	}
	if lines[0] != "room_id,player,score,archived_at" {
		t.Errorf("Unexpected header %q", lines[0])
	}
	if !strings.HasPrefix(lines[1], "4,0xbbb,95,") {
		t.Errorf("Expected highest score first, got %q", lines[1])
	}
}

func TestScriptsCRUD(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.SaveScript(ctx, Script{Name: "  "}); err == nil {
		t.Error("Expected error for empty name")
	}

	sc, err := s.SaveScript(ctx, Script{Name: " Haiku ", Source: "draft = () => 'x'"})
	if err != nil {
		t.Fatalf("SaveScript: %v", err)
	}
	if sc.ID == "" || sc.Name != "Haiku" {
		t.Errorf("Unexpected script %+v", sc)
	}

	sc.Source = "draft = () => 'y'"
	updated, err := s.SaveScript(ctx, sc)
	if err != nil {
		t.Fatalf("SaveScript update: %v", err)
	}
	if updated.ID != sc.ID || updated.Source != "draft = () => 'y'" {
		t.Errorf("Unexpected updated script %+v", updated)
	}

	list, err := s.ListScripts(ctx)
	if err != nil || len(list) != 1 {
		t.Fatalf("ListScripts = %v, %v", list, err)
	}

	if err := s.DeleteScript(ctx, sc.ID); err != nil {
		t.Fatalf("DeleteScript: %v", err)
	}
	if _, err := s.GetScript(ctx, sc.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}
