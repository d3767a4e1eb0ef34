package main

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"io"
	"io/fs"
	"net/http"
	"sync"
	"time"

	"github.com/bodul/lightsout/internal/lights"
	"github.com/sirupsen/logrus"
)

//go:embed frontend
var frontendFS embed.FS

const (
	maxGridSize = 25
	maxBodySize = 1 << 10
	hintTimeout = 30 * time.Second
)

// Server is the main HTTP server.
type Server struct {
	mux      *http.ServeMux
	cfg      Config
	store    *Store
	sse      *Broadcaster
	coach    Coach
	log      *logrus.Logger
	ctx      context.Context
	stop     context.CancelFunc
	createRL *rateLimiter
	moveRL   *rateLimiter
	hintRL   *rateLimiter
	closed   sync.Once
}

// NewServer creates a configured HTTP server. coach may be nil, in which
// case hints are disabled.
func NewServer(cfg Config, coach Coach, log *logrus.Logger) *Server {
	ctx, stop := context.WithCancel(context.Background())
	sse := NewBroadcaster(log)
	s := &Server{
		mux:      http.NewServeMux(),
		cfg:      cfg,
		store:    NewStore(sse, log),
		sse:      sse,
		coach:    coach,
		log:      log,
		ctx:      ctx,
		stop:     stop,
		createRL: newRateLimiter(10, time.Minute), // 10 games/min per IP
		moveRL:   newRateLimiter(60, time.Second), // 60 clicks/sec per IP
		hintRL:   newRateLimiter(5, time.Minute),  // 5 hints/min per IP
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	// Game API
	s.mux.HandleFunc("POST /api/games", s.handleCreateGame)
	s.mux.HandleFunc("GET /api/games", s.handleListGames)
	s.mux.HandleFunc("GET /api/games/{id}", s.handleGetGame)
	s.mux.HandleFunc("DELETE /api/games/{id}", s.handleDeleteGame)
	s.mux.HandleFunc("POST /api/games/{id}/toggle", s.handleToggle)
	s.mux.HandleFunc("POST /api/games/{id}/reset", s.handleReset)
	s.mux.HandleFunc("POST /api/games/{id}/solve", s.handleStartSolve)
	s.mux.HandleFunc("DELETE /api/games/{id}/solve", s.handleStopSolve)
	s.mux.HandleFunc("POST /api/games/{id}/hint", s.handleHint)
	s.mux.HandleFunc("GET /api/games/{id}/events", s.handleGameEvents)
	s.mux.HandleFunc("GET /api/games/{id}/ws", s.handleGameSocket)

	// Frontend static files
	frontendDir, _ := fs.Sub(frontendFS, "frontend")
	fileServer := http.FileServer(http.FS(frontendDir))
	s.mux.HandleFunc("GET /game/{id}", s.handleGamePage)
	s.mux.Handle("GET /", fileServer)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("X-Frame-Options", "DENY")
	w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
	w.Header().Set("Content-Security-Policy", "default-src 'self'; style-src 'self' 'unsafe-inline'; img-src 'self' data:; connect-src 'self'")
	s.mux.ServeHTTP(w, r)
}

// Close stops every running replay and background task.
func (s *Server) Close() {
	s.closed.Do(func() {
		s.stop()
		s.store.StopAll()
		s.createRL.close()
		s.moveRL.close()
		s.hintRL.close()
	})
}

// --- Game handlers ---

// POST /api/games — create a session, optionally with {"size": n}.
func (s *Server) handleCreateGame(w http.ResponseWriter, r *http.Request) {
	if !s.createRL.allow(r.RemoteAddr) {
		jsonError(w, "Trop de requêtes, réessayez plus tard", http.StatusTooManyRequests)
		return
	}

	req := struct {
		Size int `json:"size"`
	}{Size: s.cfg.GridSize}
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		jsonError(w, "Requête invalide", http.StatusBadRequest)
		return
	}
	if req.Size > maxGridSize {
		jsonError(w, "Grille trop grande", http.StatusBadRequest)
		return
	}

	game, err := s.store.CreateGame(req.Size, s.cfg.Delay())
	if err != nil {
		jsonError(w, "Taille de grille invalide", http.StatusBadRequest)
		return
	}

	writeJSON(w, http.StatusCreated, game.View())
}

// GET /api/games — list all sessions.
func (s *Server) handleListGames(w http.ResponseWriter, _ *http.Request) {
	games := s.store.ListGames()
	views := make([]GameView, len(games))
	for i, g := range games {
		views[i] = g.View()
	}
	writeJSON(w, http.StatusOK, views)
}

// GET /api/games/{id} — get current session state.
func (s *Server) handleGetGame(w http.ResponseWriter, r *http.Request) {
	game := s.store.GetGame(r.PathValue("id"))
	if game == nil {
		jsonError(w, "Partie introuvable", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, game.View())
}

// DELETE /api/games/{id} — drop a session.
func (s *Server) handleDeleteGame(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if !s.store.DeleteGame(id) {
		jsonError(w, "Partie introuvable", http.StatusNotFound)
		return
	}
	s.sse.Close(id)
	w.WriteHeader(http.StatusNoContent)
}

// POST /api/games/{id}/toggle — click a cell.
func (s *Server) handleToggle(w http.ResponseWriter, r *http.Request) {
	if !s.moveRL.allow(r.RemoteAddr) {
		jsonError(w, "Trop de requêtes, réessayez plus tard", http.StatusTooManyRequests)
		return
	}

	game := s.store.GetGame(r.PathValue("id"))
	if game == nil {
		jsonError(w, "Partie introuvable", http.StatusNotFound)
		return
	}

	var req struct {
		Row *int `json:"row"`
		Col *int `json:"col"`
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Row == nil || req.Col == nil {
		jsonError(w, "Champs 'row' et 'col' requis", http.StatusBadRequest)
		return
	}

	changes, solved, err := game.Toggle(lights.Coord{Row: *req.Row, Col: *req.Col})
	if err != nil {
		s.gameError(w, game, err)
		return
	}

	writeJSON(w, http.StatusOK, struct {
		Changes []lights.CellChange `json:"changes"`
		Solved  bool                `json:"solved"`
	}{changes, solved})
}

// POST /api/games/{id}/reset — light every cell.
func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	game := s.store.GetGame(r.PathValue("id"))
	if game == nil {
		jsonError(w, "Partie introuvable", http.StatusNotFound)
		return
	}

	state, err := game.Reset()
	if err != nil {
		s.gameError(w, game, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"state": state})
}

// POST /api/games/{id}/solve — reset and start the solve replay.
func (s *Server) handleStartSolve(w http.ResponseWriter, r *http.Request) {
	game := s.store.GetGame(r.PathValue("id"))
	if game == nil {
		jsonError(w, "Partie introuvable", http.StatusNotFound)
		return
	}

	if err := game.StartSolve(s.ctx); err != nil {
		s.gameError(w, game, err)
		return
	}
	writeJSON(w, http.StatusAccepted, game.View())
}

// DELETE /api/games/{id}/solve — cancel the solve replay.
func (s *Server) handleStopSolve(w http.ResponseWriter, r *http.Request) {
	game := s.store.GetGame(r.PathValue("id"))
	if game == nil {
		jsonError(w, "Partie introuvable", http.StatusNotFound)
		return
	}

	if err := game.StopSolve(); err != nil {
		jsonError(w, "Aucune résolution en cours", http.StatusConflict)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// POST /api/games/{id}/hint — ask the coach about the current board.
func (s *Server) handleHint(w http.ResponseWriter, r *http.Request) {
	if !s.hintRL.allow(r.RemoteAddr) {
		jsonError(w, "Trop de requêtes, réessayez plus tard", http.StatusTooManyRequests)
		return
	}

	if s.coach == nil {
		jsonError(w, "Conseils non configurés", http.StatusServiceUnavailable)
		return
	}

	game := s.store.GetGame(r.PathValue("id"))
	if game == nil {
		jsonError(w, "Partie introuvable", http.StatusNotFound)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), hintTimeout)
	defer cancel()

	hint, err := s.coach.Hint(ctx, game.Snapshot())
	if err != nil {
		s.log.WithError(err).WithField("game", game.ID).Error("coach hint failed")
		jsonError(w, "Erreur lors de la génération du conseil", http.StatusBadGateway)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"hint": hint})
}

// GET /api/games/{id}/events — SSE stream.
func (s *Server) handleGameEvents(w http.ResponseWriter, r *http.Request) {
	game := s.store.GetGame(r.PathValue("id"))
	if game == nil {
		jsonError(w, "Partie introuvable", http.StatusNotFound)
		return
	}

	s.sse.ServeSSE(w, r, game.ID, func(c *client) {
		// Send initial game state on connect.
		c.ch <- stateEvent(game)
	})
}

// --- Frontend page handlers ---

// GET /game/{id} — serve the game page.
func (s *Server) handleGamePage(w http.ResponseWriter, _ *http.Request) {
	data, _ := frontendFS.ReadFile("frontend/game.html")
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(data)
}

// --- Helpers ---

func stateEvent(game *GameSession) Event {
	return Event{Type: "game_state", State: game.Snapshot(), Solving: game.Solving()}
}

// gameError maps session errors to HTTP responses.
func (s *Server) gameError(w http.ResponseWriter, game *GameSession, err error) {
	msg, code := errorStatus(err)
	if code == http.StatusInternalServerError {
		s.log.WithError(err).WithField("game", game.ID).Error("game operation failed")
	}
	jsonError(w, msg, code)
}

func errorStatus(err error) (string, int) {
	switch {
	case errors.Is(err, lights.ErrBusy):
		return "Résolution en cours", http.StatusConflict
	case errors.Is(err, lights.ErrOutOfBounds):
		return "Position hors limites", http.StatusBadRequest
	case errors.Is(err, lights.ErrInvalidConfiguration):
		return "La résolution automatique nécessite une grille 5×5", http.StatusBadRequest
	default:
		return "Erreur interne", http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	writeJSON(w, code, map[string]string{"error": msg})
}
