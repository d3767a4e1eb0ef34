package main

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/bodul/lightsout/internal/lights"
	"github.com/sirupsen/logrus"
)

// Store holds all game sessions in memory.
type Store struct {
	mu    sync.RWMutex
	games map[string]*GameSession
	pub   Publisher
	log   logrus.FieldLogger
}

// NewStore creates an empty store whose sessions publish through pub.
func NewStore(pub Publisher, log logrus.FieldLogger) *Store {
	return &Store{
		games: make(map[string]*GameSession),
		pub:   pub,
		log:   log,
	}
}

// CreateGame creates a new all-lit session of the given size whose solve
// replay waits delay between clicks.
func (s *Store) CreateGame(size int, delay time.Duration) (*GameSession, error) {
	grid, err := lights.NewGrid(size)
	if err != nil {
		return nil, fmt.Errorf("create game: %w", err)
	}

	game := newGameSession(generateID(), grid, delay, s.pub, s.log)

	s.mu.Lock()
	s.games[game.ID] = game
	s.mu.Unlock()

	s.log.WithFields(logrus.Fields{"game": game.ID, "size": size}).Info("game created")
	return game, nil
}

// GetGame returns a game session by ID, or nil if not found.
func (s *Store) GetGame(id string) *GameSession {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.games[id]
}

// ListGames returns all game sessions, most recent first.
func (s *Store) ListGames() []*GameSession {
	s.mu.RLock()
	list := make([]*GameSession, 0, len(s.games))
	for _, g := range s.games {
		list = append(list, g)
	}
	s.mu.RUnlock()

	slices.SortFunc(list, func(a, b *GameSession) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	return list
}

// DeleteGame stops any replay of the session and forgets it.
// Returns false if the session does not exist.
func (s *Store) DeleteGame(id string) bool {
	s.mu.Lock()
	game, ok := s.games[id]
	delete(s.games, id)
	s.mu.Unlock()

	if !ok {
		return false
	}
	_ = game.StopSolve()
	s.log.WithField("game", id).Info("game deleted")
	return true
}

// StopAll cancels every running replay.
func (s *Store) StopAll() {
	s.mu.RLock()
	list := make([]*GameSession, 0, len(s.games))
	for _, g := range s.games {
		list = append(list, g)
	}
	s.mu.RUnlock()

	for _, g := range list {
		_ = g.StopSolve()
	}
}

func generateID() string {
	b := make([]byte, 8)
	rand.Read(b)
	return hex.EncodeToString(b)
}
