package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/bodul/lightsout/internal/lights"
	"github.com/sirupsen/logrus"
)

const (
	sseChannelBuffer = 64
	sseHeartbeat     = 30 * time.Second
)

// Event is a change pushed to the subscribers of a game session.
type Event struct {
	Type    string              `json:"type"`
	State   [][]bool            `json:"state,omitempty"`
	Changes []lights.CellChange `json:"changes,omitempty"`
	Cell    *lights.Coord       `json:"cell,omitempty"`
	On      bool                `json:"on,omitempty"`
	Solved  bool                `json:"solved,omitempty"`
	Solving bool                `json:"solving,omitempty"`
	Step    int                 `json:"step,omitempty"`
	Error   string              `json:"error,omitempty"`
}

// Publisher delivers session events to whoever is listening.
type Publisher interface {
	Publish(gameID string, evt Event)
}

// client is a single SSE or WebSocket subscriber.
type client struct {
	ch     chan Event
	gameID string
}

// Broadcaster fans events out to clients grouped by game session.
type Broadcaster struct {
	mu      sync.RWMutex
	clients map[*client]struct{}
	log     logrus.FieldLogger
}

// NewBroadcaster creates an empty broadcaster.
func NewBroadcaster(log logrus.FieldLogger) *Broadcaster {
	return &Broadcaster{
		clients: make(map[*client]struct{}),
		log:     log,
	}
}

// Register adds a client for a game session and returns it.
func (b *Broadcaster) Register(gameID string) *client {
	c := &client{
		ch:     make(chan Event, sseChannelBuffer),
		gameID: gameID,
	}
	b.mu.Lock()
	b.clients[c] = struct{}{}
	b.mu.Unlock()
	return c
}

// Unregister removes a client and closes its channel.
func (b *Broadcaster) Unregister(c *client) {
	b.mu.Lock()
	if _, ok := b.clients[c]; ok {
		delete(b.clients, c)
		close(c.ch)
	}
	b.mu.Unlock()
}

// Publish sends an event to all clients of a game session. A client whose
// buffer is full is dropped: its stream ends and the browser reconnects to a
// fresh game_state instead of silently missing cells.
func (b *Broadcaster) Publish(gameID string, evt Event) {
	var slow []*client

	b.mu.RLock()
	for c := range b.clients {
		if c.gameID == gameID {
			select {
			case c.ch <- evt:
			default:
				slow = append(slow, c)
			}
		}
	}
	b.mu.RUnlock()

	for _, c := range slow {
		b.Unregister(c)
		b.log.WithFields(logrus.Fields{
			"game":  gameID,
			"event": evt.Type,
		}).Warn("dropping slow client")
	}
}

// Close drops every client of a game session.
func (b *Broadcaster) Close(gameID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for c := range b.clients {
		if c.gameID == gameID {
			delete(b.clients, c)
			close(c.ch)
		}
	}
}

// ClientCount returns the number of connected clients for a game.
func (b *Broadcaster) ClientCount(gameID string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	n := 0
	for c := range b.clients {
		if c.gameID == gameID {
			n++
		}
	}
	return n
}

// ServeSSE streams the events of a game session until the request ends.
// onConnect runs after registration, so nothing published in between is lost.
func (b *Broadcaster) ServeSSE(w http.ResponseWriter, r *http.Request, gameID string, onConnect func(c *client)) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming non supporté", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	c := b.Register(gameID)
	defer b.Unregister(c)

	if onConnect != nil {
		onConnect(c)
	}

	ticker := time.NewTicker(sseHeartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case evt, ok := <-c.ch:
			if !ok {
				return
			}
			data, err := json.Marshal(evt)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", evt.Type, data)
			flusher.Flush()
		case <-ticker.C:
			fmt.Fprintf(w, ": heartbeat\n\n")
			flusher.Flush()
		}
	}
}
