/*
Package api
File: handlers.go
Description:
    HTTP handlers for the REST side of the UI bridge.
    Reads come straight from the state store snapshot accessors. Writes are
    commands: the body is decoded through the event catalog and submitted
    on the engine's command port, so a UI never mutates state directly.

    Key Responsibilities:
    - Routing (Go 1.22 method patterns)
    - Per-address rate limiting
    - Mapping command errors to HTTP status codes
*/

package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sync"

	"golang.org/x/time/rate"

	"github.com/everforgeworks/merc-command/internal/engine"
	"github.com/everforgeworks/merc-command/internal/event"
	"github.com/everforgeworks/merc-command/internal/persistence"
	"github.com/everforgeworks/merc-command/internal/state"
)

const maxBody = 64 << 10

// Game is what the bridge needs from the engine.
type Game interface {
	Commander
	Store() *state.Store
}

// SlotLister lists save slots.
type SlotLister interface {
	List(ctx context.Context) ([]persistence.SlotInfo, error)
}

// ResultView is one handler's answer to a command.
type ResultView struct {
	Context string `json:"context,omitempty"`
	Value   any    `json:"value,omitempty"`
	Error   string `json:"error,omitempty"`
}

// CommandReply is the response to a submitted command.
type CommandReply struct {
	Command string       `json:"command,omitempty"`
	Results []ResultView `json:"results,omitempty"`
	Error   string       `json:"error,omitempty"`
}

// ContractBoard is the GET /api/contracts response.
type ContractBoard struct {
	Available []state.Contract       `json:"available"`
	Active    []state.ActiveContract `json:"active"`
}

func replyOf(name string, res []event.Result) CommandReply {
	out := CommandReply{Command: name, Results: make([]ResultView, 0, len(res))}
	for _, r := range res {
		v := ResultView{Context: r.Context, Value: r.Value}
		if r.Err != nil {
			v.Error = r.Err.Error()
		}
		out.Results = append(out.Results, v)
	}
	return out
}

// Server serves the REST endpoints and the socket.
type Server struct {
	game  Game
	hub   *Hub
	saves SlotLister
	log   *slog.Logger

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	limit    HubConfig
}

// NewServer builds the bridge. saves may be nil.
func NewServer(game Game, hub *Hub, saves SlotLister, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{
		game:     game,
		hub:      hub,
		saves:    saves,
		log:      log.With(slog.String("system", "api")),
		limiters: make(map[string]*rate.Limiter),
		limit:    DefaultHubConfig,
	}
}

// Routes returns the bridge's router.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()

	// Information endpoints
	mux.HandleFunc("GET /api/state", s.HandleGetState)
	mux.HandleFunc("GET /api/contracts", s.HandleGetContracts)
	mux.HandleFunc("GET /api/saves", s.HandleGetSaves)

	// Commands
	mux.Handle("POST /api/command/{name}", s.limited(http.HandlerFunc(s.HandleCommand)))

	// Real-time endpoint
	mux.HandleFunc("GET /ws", func(w http.ResponseWriter, r *http.Request) {
		ServeWs(s.hub, w, r)
	})
	return mux
}

// HandleGetState returns the whole document.
func (s *Server) HandleGetState(w http.ResponseWriter, r *http.Request) {
	store := s.game.Store()
	if store == nil {
		writeError(w, http.StatusServiceUnavailable, "game not initialized")
		return
	}
	writeJSON(w, http.StatusOK, store.Snapshot())
}

// HandleGetContracts returns the offer board and the running contracts.
func (s *Server) HandleGetContracts(w http.ResponseWriter, r *http.Request) {
	store := s.game.Store()
	if store == nil {
		writeError(w, http.StatusServiceUnavailable, "game not initialized")
		return
	}
	writeJSON(w, http.StatusOK, ContractBoard{
		Available: store.Contracts(),
		Active:    store.ActiveContracts(),
	})
}

// HandleGetSaves lists the save slots, newest first.
func (s *Server) HandleGetSaves(w http.ResponseWriter, r *http.Request) {
	if s.saves == nil {
		writeJSON(w, http.StatusOK, []persistence.SlotInfo{})
		return
	}
	slots, err := s.saves.List(r.Context())
	if err != nil {
		s.log.Error("Listing saves failed", "error", err)
		writeError(w, http.StatusInternalServerError, "save listing failed")
		return
	}
	writeJSON(w, http.StatusOK, slots)
}

// HandleCommand submits the named command with the request body as payload.
func (s *Server) HandleCommand(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBody))
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, "body too large")
		return
	}

	res, err := s.game.SubmitJSON(r.Context(), name, body)
	if err != nil {
		status := statusOf(err)
		if status >= 500 {
			s.log.Warn("Command failed", "command", name, "error", err)
		}
		writeJSON(w, status, CommandReply{Command: name, Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, replyOf(name, res))
}

// statusOf maps command port errors to HTTP codes.
func statusOf(err error) int {
	switch {
	case errors.Is(err, event.ErrUnknownEvent):
		return http.StatusNotFound
	case errors.Is(err, event.ErrNotInbound):
		return http.StatusForbidden
	case errors.Is(err, engine.ErrInvalidState):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return http.StatusGatewayTimeout
	default:
		return http.StatusBadRequest
	}
}

func (s *Server) limiter(addr string) *rate.Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.limiters[addr]
	if !ok {
		l = rate.NewLimiter(s.limit.Rate, s.limit.Burst)
		s.limiters[addr] = l
	}
	return l
}

// limited rejects callers over their command budget.
func (s *Server) limited(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			ip = r.RemoteAddr
		}
		if !s.limiter(ip).Allow() {
			writeError(w, http.StatusTooManyRequests, "rate limit")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// CORS lets browser shells on other origins reach the bridge.
func CORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
