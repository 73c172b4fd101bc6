// Package game is the client-side layer between the UI and the OracleGame
// contract: cached and derived reads, guarded mutations with notifications,
// the local room session timer and a background watcher.
package game

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/oraclegame/oracle-game/internal/genlayer"
	"github.com/oraclegame/oracle-game/internal/oraclegame"
	"github.com/oraclegame/oracle-game/internal/store"
)

// Contract is the OracleGame surface used by the service.
type Contract interface {
	GetRoomCount(ctx context.Context) (int, error)
	GetRoomLeaderboard(ctx context.Context, roomID int) ([]oraclegame.RoomLeaderboardEntry, error)
	CreateRoom(ctx context.Context, prompt string) (*genlayer.TransactionReceipt, error)
	SubmitAnswer(ctx context.Context, roomID int, answer string) (*genlayer.TransactionReceipt, error)
	FinalizeGame(ctx context.Context, roomID int) (*genlayer.TransactionReceipt, error)
}

// Wallet reports the connected wallet address ("" when disconnected).
type Wallet interface {
	ActiveAddress() string
}

// GlobalLeaderboardSize caps the XP leaderboard.
const GlobalLeaderboardSize = 10

// StaleTimes controls how long each read is served from cache.
type StaleTimes struct {
	Rooms             time.Duration
	RoomLeaderboard   time.Duration
	GlobalLeaderboard time.Duration
}

// DefaultStaleTimes: rooms 3s, room leaderboard 2s, global leaderboard 5s.
var DefaultStaleTimes = StaleTimes{
	Rooms:             3 * time.Second,
	RoomLeaderboard:   2 * time.Second,
	GlobalLeaderboard: 5 * time.Second,
}

// Options configures a Service. Contract may be nil when no contract address
// is configured; reads and writes then fail with ErrContractNotConfigured.
type Options struct {
	Contract    Contract
	Wallet      Wallet
	Store       *store.Store
	Notifier    Notifier
	StaleTimes  StaleTimes
	Concurrency int
	Logger      *log.Logger
	Now         func() time.Time
}

// Stats backs the navbar counters.
type Stats struct {
	TotalRooms    int `json:"totalRooms"`
	ActiveRooms   int `json:"activeRooms"`
	FinishedRooms int `json:"finishedRooms"`
}

type Service struct {
	contract Contract
	wallet   Wallet
	db       *store.Store
	notify   Notifier
	stale    StaleTimes
	workers  int
	logger   *log.Logger

	cache   *queryCache
	prompts *promptCache

	mu         sync.Mutex
	creating   bool
	submitting map[submissionKey]bool
	// submitted holds answers accepted or still pending this process, so the
	// one-answer rule holds without a store.
	submitted  map[submissionKey]bool
	finalizing map[int]bool
	archived   map[int]bool
}

// NewService builds the game service and loads persisted prompts.
func NewService(ctx context.Context, opts Options) *Service {
	if opts.Logger == nil {
		opts.Logger = log.New(os.Stdout, "[Game] ", log.LstdFlags)
	}
	if opts.Notifier == nil {
		opts.Notifier = NewLogNotifier(opts.Logger)
	}
	if opts.StaleTimes == (StaleTimes{}) {
		opts.StaleTimes = DefaultStaleTimes
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 4
	}

	s := &Service{
		contract:   opts.Contract,
		wallet:     opts.Wallet,
		db:         opts.Store,
		notify:     opts.Notifier,
		stale:      opts.StaleTimes,
		workers:    opts.Concurrency,
		logger:     opts.Logger,
		cache:      newQueryCache(opts.Now),
		prompts:    newPromptCache(ctx, opts.Store, opts.Logger),
		submitting: map[submissionKey]bool{},
		submitted:  map[submissionKey]bool{},
		finalizing: map[int]bool{},
		archived:   map[int]bool{},
	}

	if s.contract == nil {
		s.notify.ConfigError("Setup Required",
			"Contract address not configured. "+contractSetupHint)
	}
	return s
}

// Configured reports whether a contract is bound.
func (s *Service) Configured() bool {
	return s.contract != nil
}

func (s *Service) activeAddress() string {
	if s.wallet == nil {
		return ""
	}
	return strings.TrimSpace(s.wallet.ActiveAddress())
}

// ─── Reads ───

// Rooms lists every room. A room whose leaderboard has entries is finished
// and its player count is the number of entries; otherwise it is waiting.
func (s *Service) Rooms(ctx context.Context) ([]oraclegame.Room, error) {
	if !s.Configured() {
		return nil, ErrContractNotConfigured
	}
	return fetchQuery(ctx, s.cache, roomsKey(), s.stale.Rooms, s.loadRooms)
}

func (s *Service) loadRooms(ctx context.Context) ([]oraclegame.Room, error) {
	gen := s.cache.generation()
	count, err := s.contract.GetRoomCount(ctx)
	if err != nil {
		return nil, err
	}

	boards := make([][]oraclegame.RoomLeaderboardEntry, count)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for i := 0; i < count; i++ {
		id := i + 1
		g.Go(func() error {
			lb, err := s.loadRoomLeaderboard(gctx, id)
			if err != nil {
				// treated as still in progress
				s.logger.Printf("room %d leaderboard: %v", id, err)
				return nil
			}
			boards[i] = lb
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	rooms := make([]oraclegame.Room, 0, count)
	for i, lb := range boards {
		id := i + 1
		room := oraclegame.Room{ID: id, Phase: oraclegame.PhaseWaiting, Prompt: s.prompts.get(id)}
		if len(lb) > 0 {
			room.Phase = oraclegame.PhaseFinished
			room.IsFinished = true
			room.PlayerCount = len(lb)
		}
		if lb != nil {
			s.cache.set(roomLeaderboardKey(id), lb)
		}
		rooms = append(rooms, room)
	}

	if prompt, ok := s.prompts.claimPending(ctx, count, gen); ok {
		rooms[count-1].Prompt = prompt
	}
	return rooms, nil
}

// RoomPrompt returns the cached prompt for a room or the placeholder.
func (s *Service) RoomPrompt(roomID int) string {
	if p := s.prompts.get(roomID); p != "" {
		return p
	}
	return PromptPlaceholder
}

// SetCachedPrompt remembers a room's prompt.
func (s *Service) SetCachedPrompt(ctx context.Context, roomID int, prompt string) {
	s.prompts.set(ctx, roomID, prompt)
}

// CachedPrompt returns a remembered prompt or "".
func (s *Service) CachedPrompt(roomID int) string {
	return s.prompts.get(roomID)
}

// RoomDetail returns a room plus the connected wallet's submission state.
func (s *Service) RoomDetail(ctx context.Context, roomID int) (oraclegame.RoomDetail, error) {
	rooms, err := s.Rooms(ctx)
	if err != nil {
		return oraclegame.RoomDetail{}, err
	}
	if roomID < 1 || roomID > len(rooms) {
		return oraclegame.RoomDetail{}, fmt.Errorf("%w: %d", ErrRoomNotFound, roomID)
	}

	detail := oraclegame.RoomDetail{Room: rooms[roomID-1]}
	detail.Prompt = s.RoomPrompt(roomID)

	addr := s.activeAddress()
	if addr == "" {
		return detail, nil
	}
	s.mu.Lock()
	detail.HasSubmitted = s.submitted[newSubmissionKey(addr, roomID)]
	s.mu.Unlock()
	if s.db == nil {
		return detail, nil
	}
	sub, err := s.db.GetSubmission(ctx, addr, roomID)
	switch {
	case errors.Is(err, store.ErrNotFound):
	case err != nil:
		return detail, err
	case sub.Status != store.SubmissionFailed:
		detail.HasSubmitted = true
		detail.MyAnswer = sub.Answer
	}
	return detail, nil
}

// RoomLeaderboard returns a room's scores; empty until it is finalized.
func (s *Service) RoomLeaderboard(ctx context.Context, roomID int) ([]oraclegame.RoomLeaderboardEntry, error) {
	if !s.Configured() {
		return nil, ErrContractNotConfigured
	}
	return fetchQuery(ctx, s.cache, roomLeaderboardKey(roomID), s.stale.RoomLeaderboard,
		func(ctx context.Context) ([]oraclegame.RoomLeaderboardEntry, error) {
			return s.loadRoomLeaderboard(ctx, roomID)
		})
}

func (s *Service) loadRoomLeaderboard(ctx context.Context, roomID int) ([]oraclegame.RoomLeaderboardEntry, error) {
	lb, err := s.contract.GetRoomLeaderboard(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if lb == nil {
		lb = []oraclegame.RoomLeaderboardEntry{}
	}
	if len(lb) > 0 {
		s.archive(ctx, roomID, lb)
	}
	return lb, nil
}

// archive stores a finalized room's scores once per process.
func (s *Service) archive(ctx context.Context, roomID int, lb []oraclegame.RoomLeaderboardEntry) {
	if s.db == nil {
		return
	}
	s.mu.Lock()
	done := s.archived[roomID]
	s.archived[roomID] = true
	s.mu.Unlock()
	if done {
		return
	}

	results := make([]store.Result, len(lb))
	for i, e := range lb {
		results[i] = store.Result{Player: e.Player, Score: e.Score}
	}
	if _, err := s.db.ArchiveResults(ctx, roomID, results); err != nil {
		s.logger.Printf("archive room %d results: %v", roomID, err)
		s.mu.Lock()
		delete(s.archived, roomID)
		s.mu.Unlock()
	}
}

// GlobalLeaderboard sums scores across finished rooms by lower-cased address
// and returns the top players by XP.
func (s *Service) GlobalLeaderboard(ctx context.Context) ([]oraclegame.GlobalLeaderboardEntry, error) {
	if !s.Configured() {
		return nil, ErrContractNotConfigured
	}
	return fetchQuery(ctx, s.cache, globalLeaderboardKey(), s.stale.GlobalLeaderboard, s.loadGlobalLeaderboard)
}

func (s *Service) loadGlobalLeaderboard(ctx context.Context) ([]oraclegame.GlobalLeaderboardEntry, error) {
	rooms, err := s.Rooms(ctx)
	if err != nil {
		return nil, err
	}

	var (
		mu sync.Mutex
		xp = map[string]decimal.Decimal{}
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for _, room := range rooms {
		if !room.IsFinished {
			continue
		}
		id := room.ID
		g.Go(func() error {
			lb, err := s.RoomLeaderboard(gctx, id)
			if err != nil {
				s.logger.Printf("skip room %d in global leaderboard: %v", id, err)
				return nil
			}
			mu.Lock()
			defer mu.Unlock()
			for _, e := range lb {
				addr := strings.ToLower(e.Player)
				xp[addr] = xp[addr].Add(e.Score)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return rankXP(xp, GlobalLeaderboardSize), nil
}

func rankXP(xp map[string]decimal.Decimal, limit int) []oraclegame.GlobalLeaderboardEntry {
	out := make([]oraclegame.GlobalLeaderboardEntry, 0, len(xp))
	for player, total := range xp {
		out = append(out, oraclegame.GlobalLeaderboardEntry{Player: player, XP: total})
	}
	sort.Slice(out, func(i, j int) bool {
		if c := out[i].XP.Cmp(out[j].XP); c != 0 {
			return c > 0
		}
		return out[i].Player < out[j].Player
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

// Stats counts all rooms and those not yet finished.
func (s *Service) Stats(ctx context.Context) (Stats, error) {
	rooms, err := s.Rooms(ctx)
	if err != nil {
		return Stats{}, err
	}
	return statsOf(rooms), nil
}

func statsOf(rooms []oraclegame.Room) Stats {
	st := Stats{TotalRooms: len(rooms)}
	for _, r := range rooms {
		if r.IsFinished {
			st.FinishedRooms++
		} else {
			st.ActiveRooms++
		}
	}
	return st
}

// ArchivedLeaderboard ranks players from locally archived results. It works
// without a contract, e.g. for offline review.
func (s *Service) ArchivedLeaderboard(ctx context.Context, limit int) ([]store.PlayerXP, error) {
	if s.db == nil {
		return []store.PlayerXP{}, nil
	}
	return s.db.TopXP(ctx, limit)
}

// ExportResults writes archived results as CSV.
func (s *Service) ExportResults(ctx context.Context, w io.Writer) error {
	if s.db == nil {
		return fmt.Errorf("game: no results store configured")
	}
	return s.db.ExportCSV(ctx, w)
}

// Submissions lists the connected wallet's local submissions.
func (s *Service) Submissions(ctx context.Context) ([]store.Submission, error) {
	addr := s.activeAddress()
	if addr == "" {
		return nil, ErrWalletNotConnected
	}
	if s.db == nil {
		return []store.Submission{}, nil
	}
	return s.db.ListSubmissions(ctx, addr, 0)
}

// Invalidate drops all cached reads.
func (s *Service) Invalidate() {
	s.cache.invalidate(queryKey{keyRoot})
}
