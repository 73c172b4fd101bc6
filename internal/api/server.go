// Package api exposes the game service over a loopback HTTP API: JSON
// endpoints for rooms, leaderboards and mutations, a websocket push channel
// and Prometheus metrics.
package api

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"log"
	"net"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/oraclegame/oracle-game/internal/game"
	"github.com/oraclegame/oracle-game/internal/scripting"
	"github.com/oraclegame/oracle-game/internal/store"
)

// Options configures a Server. Store, Drafter, Metrics and Hub are optional.
type Options struct {
	Service *game.Service
	Store   *store.Store
	Drafter *scripting.Drafter
	Metrics *Metrics
	Hub     *Hub
	// Token, when set, is required as "Authorization: Bearer <token>" on /api/v1.
	Token string
	// ReadTimeout bounds read routes. Defaults to DefaultReadTimeout.
	// Mutations are bounded by the contract's receipt budget instead.
	ReadTimeout time.Duration
	Logger      *log.Logger
}

// DefaultReadTimeout bounds read requests.
const DefaultReadTimeout = time.Minute

// Server handles HTTP requests
type Server struct {
	svc          *game.Service
	db           *store.Store
	drafter      *scripting.Drafter
	metrics      *Metrics
	hub          *Hub
	token        string
	readTimeout  time.Duration
	errorHandler *ErrorHandler
	logger       *log.Logger
	startTime    time.Time
}

// NewServer creates a new API server
func NewServer(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(os.Stdout, "[API] ", log.LstdFlags)
	}
	metrics := opts.Metrics
	if metrics == nil {
		metrics = NewMetrics()
	}
	hub := opts.Hub
	if hub == nil {
		hub = NewHub(logger, metrics)
	}
	drafter := opts.Drafter
	if drafter == nil {
		drafter = scripting.NewDrafter(logger)
	}
	readTimeout := opts.ReadTimeout
	if readTimeout <= 0 {
		readTimeout = DefaultReadTimeout
	}
	return &Server{
		svc:          opts.Service,
		db:           opts.Store,
		drafter:      drafter,
		metrics:      metrics,
		hub:          hub,
		token:        strings.TrimSpace(opts.Token),
		readTimeout:  readTimeout,
		errorHandler: NewErrorHandler(logger),
		logger:       logger,
		startTime:    time.Now(),
	}
}

// Hub returns the websocket hub so callers can feed it events.
func (s *Server) Hub() *Hub { return s.hub }

// Routes sets up the HTTP routes with proper middleware
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.metrics.Middleware)
	r.Use(s.requestLogger)
	r.Use(s.errorHandler.RecoveryHandler)
	r.Use(s.corsMiddleware)

	r.Get("/health", s.handleHealth)
	r.Get("/version", s.handleVersion)
	r.Method(http.MethodGet, "/metrics", s.metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(s.requireToken)

		r.Get("/ws", s.hub.ServeWS)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(s.readTimeout))

			r.Get("/rooms", s.handleListRooms)
			r.Get("/rooms/{id}", s.handleGetRoom)
			r.Get("/rooms/{id}/leaderboard", s.handleRoomLeaderboard)
			r.Post("/rooms/{id}/draft", s.handleDraft)

			r.Get("/leaderboard", s.handleGlobalLeaderboard)
			r.Get("/leaderboard/archive", s.handleArchivedLeaderboard)
			r.Get("/stats", s.handleStats)
			r.Get("/submissions", s.handleSubmissions)
			r.Get("/prompts/suggestions", s.handlePromptSuggestions)
			r.Get("/results/export.csv", s.handleExportResults)
		})

		// Mutations run to the contract's receipt budget, which outlasts
		// readTimeout when finalizing.
		r.Post("/rooms", s.handleCreateRoom)
		r.Post("/rooms/{id}/answers", s.handleSubmitAnswer)
		r.Post("/rooms/{id}/finalize", s.handleFinalize)
	})

	return r
}

// writeJSON writes a JSON response with proper headers
func (s *Server) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-App-Version", Version)
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Printf("encode response: %v", err)
	}
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Printf("%s %s %d %dms request_id=%s",
			r.Method, r.URL.Path, ww.Status(), time.Since(start).Milliseconds(), middleware.GetReqID(r.Context()))
	})
}

func (s *Server) requireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.token == "" {
			next.ServeHTTP(w, r)
			return
		}
		got := strings.TrimSpace(strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer "))
		if got == "" {
			// Browsers cannot set headers on websocket upgrades.
			got = r.URL.Query().Get("token")
		}
		if subtle.ConstantTimeCompare([]byte(got), []byte(s.token)) != 1 {
			s.errorHandler.HandleUnauthorized(w, r)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if origin := r.Header.Get("Origin"); origin != "" && isLoopbackOrigin(r) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type, X-Request-Id")
			w.Header().Set("Vary", "Origin")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// isLoopbackOrigin accepts requests without an Origin header, from the Wails
// webview and from localhost pages.
func isLoopbackOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	if u.Scheme == "wails" {
		return true
	}
	host := u.Hostname()
	if host == "localhost" || host == "wails.localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

// Listener runs the API on a loopback port for the lifetime of the app.
type Listener struct {
	addr       string
	handler    http.Handler
	httpServer *http.Server
	logger     *log.Logger
}

// NewListener binds to 127.0.0.1:port. port 0 picks a free port.
func NewListener(handler http.Handler, port int, logger *log.Logger) *Listener {
	if logger == nil {
		logger = log.New(os.Stdout, "[API] ", log.LstdFlags)
	}
	return &Listener{
		addr:    net.JoinHostPort("127.0.0.1", strconv.Itoa(port)),
		handler: handler,
		logger:  logger,
	}
}

// Start begins listening in a goroutine. It returns when the socket is bound.
func (l *Listener) Start() error {
	ln, err := net.Listen("tcp", l.addr)
	if err != nil {
		return err
	}
	l.addr = ln.Addr().String()
	l.httpServer = &http.Server{
		Handler:           l.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := l.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			l.logger.Printf("serve: %v", err)
		}
	}()
	return nil
}

// URL returns the base URL once started.
func (l *Listener) URL() string {
	return "http://" + l.addr
}

// Shutdown gracefully stops the HTTP server.
func (l *Listener) Shutdown(ctx context.Context) error {
	if l.httpServer == nil {
		return nil
	}
	return l.httpServer.Shutdown(ctx)
}
