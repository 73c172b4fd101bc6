package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/oraclegame/oracle-game/internal/game"
	"github.com/oraclegame/oracle-game/internal/genlayer"
)

const maxBodyBytes = 64 << 10

// Action phrases used in wallet/contract hints.
const (
	actionCreate   = "create a room"
	actionSubmit   = "submit an answer"
	actionFinalize = "finalize the game"
	actionRead     = "load game data"
)

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		s.errorHandler.HandleValidationError(w, r, "body", "invalid JSON: "+err.Error())
		return false
	}
	return true
}

func (s *Server) roomID(w http.ResponseWriter, r *http.Request) (int, bool) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil || id < 1 {
		s.errorHandler.HandleValidationError(w, r, "id", "room id must be a positive integer")
		return 0, false
	}
	return id, true
}

func txResponse(receipt *genlayer.TransactionReceipt, roomID int) TxResponse {
	out := TxResponse{RoomID: roomID}
	if receipt != nil {
		out.Hash = receipt.Hash
		out.Status = string(receipt.Status)
	}
	return out
}

// GET /api/v1/rooms
func (s *Server) handleListRooms(w http.ResponseWriter, r *http.Request) {
	rooms, err := s.svc.Rooms(r.Context())
	if err != nil {
		s.errorHandler.HandleError(w, r, err, actionRead)
		return
	}
	stats, err := s.svc.Stats(r.Context())
	if err != nil {
		s.errorHandler.HandleError(w, r, err, actionRead)
		return
	}
	s.writeJSON(w, http.StatusOK, RoomsResponse{Rooms: rooms, Stats: stats})
}

// POST /api/v1/rooms
func (s *Server) handleCreateRoom(w http.ResponseWriter, r *http.Request) {
	var req CreateRoomRequest
	if !s.decode(w, r, &req) {
		return
	}
	receipt, err := s.svc.CreateRoom(r.Context(), req.Prompt)
	if err != nil {
		s.errorHandler.HandleError(w, r, err, actionCreate)
		return
	}
	s.writeJSON(w, http.StatusAccepted, txResponse(receipt, 0))
}

// GET /api/v1/rooms/{id}
func (s *Server) handleGetRoom(w http.ResponseWriter, r *http.Request) {
	id, ok := s.roomID(w, r)
	if !ok {
		return
	}
	detail, err := s.svc.RoomDetail(r.Context(), id)
	if err != nil {
		s.errorHandler.HandleError(w, r, err, actionRead)
		return
	}
	s.writeJSON(w, http.StatusOK, detail)
}

// GET /api/v1/rooms/{id}/leaderboard
func (s *Server) handleRoomLeaderboard(w http.ResponseWriter, r *http.Request) {
	id, ok := s.roomID(w, r)
	if !ok {
		return
	}
	lb, err := s.svc.RoomLeaderboard(r.Context(), id)
	if err != nil {
		s.errorHandler.HandleError(w, r, err, actionRead)
		return
	}
	s.writeJSON(w, http.StatusOK, RoomLeaderboardResponse{RoomID: id, Leaderboard: lb})
}

// POST /api/v1/rooms/{id}/answers
func (s *Server) handleSubmitAnswer(w http.ResponseWriter, r *http.Request) {
	id, ok := s.roomID(w, r)
	if !ok {
		return
	}
	var req SubmitAnswerRequest
	if !s.decode(w, r, &req) {
		return
	}
	receipt, err := s.svc.SubmitAnswer(r.Context(), id, req.Answer)
	if err != nil {
		s.errorHandler.HandleError(w, r, err, actionSubmit)
		return
	}
	s.writeJSON(w, http.StatusAccepted, txResponse(receipt, id))
}

// POST /api/v1/rooms/{id}/finalize
func (s *Server) handleFinalize(w http.ResponseWriter, r *http.Request) {
	id, ok := s.roomID(w, r)
	if !ok {
		return
	}
	receipt, err := s.svc.FinalizeGame(r.Context(), id)
	if err != nil {
		s.errorHandler.HandleError(w, r, err, actionFinalize)
		return
	}
	s.writeJSON(w, http.StatusAccepted, txResponse(receipt, id))
}

// POST /api/v1/rooms/{id}/draft runs a draft script against the room prompt.
func (s *Server) handleDraft(w http.ResponseWriter, r *http.Request) {
	id, ok := s.roomID(w, r)
	if !ok {
		return
	}
	var req DraftRequest
	if !s.decode(w, r, &req) {
		return
	}
	source := req.Source
	if req.ScriptID != "" {
		if s.db == nil {
			s.errorHandler.HandleValidationError(w, r, "script_id", "saved scripts are unavailable")
			return
		}
		sc, err := s.db.GetScript(r.Context(), req.ScriptID)
		if err != nil {
			s.errorHandler.HandleError(w, r, err, actionRead)
			return
		}
		source = sc.Source
	}

	detail, err := s.svc.RoomDetail(r.Context(), id)
	if err != nil {
		s.errorHandler.HandleError(w, r, err, actionRead)
		return
	}
	draft, err := s.drafter.Draft(r.Context(), source, id, detail.Prompt)
	if err != nil {
		s.errorHandler.HandleValidationError(w, r, "source", err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, DraftResponse{RoomID: id, Draft: draft})
}

// GET /api/v1/leaderboard
func (s *Server) handleGlobalLeaderboard(w http.ResponseWriter, r *http.Request) {
	lb, err := s.svc.GlobalLeaderboard(r.Context())
	if err != nil {
		s.errorHandler.HandleError(w, r, err, actionRead)
		return
	}
	s.writeJSON(w, http.StatusOK, LeaderboardResponse{Leaderboard: lb})
}

// GET /api/v1/leaderboard/archive?limit=N
func (s *Server) handleArchivedLeaderboard(w http.ResponseWriter, r *http.Request) {
	limit := clampInt(qInt(r, "limit", game.GlobalLeaderboardSize), 1, 500)
	rows, err := s.svc.ArchivedLeaderboard(r.Context(), limit)
	if err != nil {
		s.errorHandler.HandleError(w, r, err, actionRead)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"players": rows})
}

// GET /api/v1/stats
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.svc.Stats(r.Context())
	if err != nil {
		s.errorHandler.HandleError(w, r, err, actionRead)
		return
	}
	s.writeJSON(w, http.StatusOK, stats)
}

// GET /api/v1/submissions
func (s *Server) handleSubmissions(w http.ResponseWriter, r *http.Request) {
	subs, err := s.svc.Submissions(r.Context())
	if err != nil {
		s.errorHandler.HandleError(w, r, err, actionRead)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"submissions": subs})
}

// GET /api/v1/prompts/suggestions
func (s *Server) handlePromptSuggestions(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{"suggestions": game.PromptSuggestions})
}

// GET /api/v1/results/export.csv
func (s *Server) handleExportResults(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := s.svc.ExportResults(r.Context(), &buf); err != nil {
		s.errorHandler.HandleError(w, r, err, actionRead)
		return
	}
	name := fmt.Sprintf("oracle_results_%s.csv", time.Now().UTC().Format("20060102_150405"))
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
	w.WriteHeader(http.StatusOK)
	if _, err := buf.WriteTo(w); err != nil {
		s.logger.Printf("export results: %v", err)
	}
}

func qInt(r *http.Request, key string, def int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
