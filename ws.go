package main

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/bodul/lightsout/internal/lights"
	"golang.org/x/net/websocket"
)

// socketCommand is a message sent by a WebSocket client.
type socketCommand struct {
	Type string `json:"type"` // "toggle" or "reset"
	Row  int    `json:"row"`
	Col  int    `json:"col"`
}

// GET /api/games/{id}/ws — bidirectional session stream.
func (s *Server) handleGameSocket(w http.ResponseWriter, r *http.Request) {
	game := s.store.GetGame(r.PathValue("id"))
	if game == nil {
		jsonError(w, "Partie introuvable", http.StatusNotFound)
		return
	}

	srv := websocket.Server{
		Handshake: sameOrigin,
		Handler:   func(conn *websocket.Conn) { s.serveSocket(conn, game) },
	}
	srv.ServeHTTP(w, r)
}

// sameOrigin accepts connections from pages served by this host.
func sameOrigin(cfg *websocket.Config, r *http.Request) error {
	origin, err := websocket.Origin(cfg, r)
	if err != nil {
		return err
	}
	if origin == nil || origin.Host != r.Host {
		return fmt.Errorf("cross-origin websocket from %v", origin)
	}
	cfg.Origin = origin
	return nil
}

func (s *Server) serveSocket(conn *websocket.Conn, game *GameSession) {
	log := s.log.WithField("game", game.ID)
	c := s.sse.Register(game.ID)
	defer func() {
		s.sse.Unregister(c)
		conn.Close()
	}()

	if err := websocket.JSON.Send(conn, stateEvent(game)); err != nil {
		return
	}

	go func() {
		for evt := range c.ch {
			if err := websocket.JSON.Send(conn, evt); err != nil {
				log.WithError(err).Debug("websocket send failed")
				conn.Close()
				return
			}
		}
		// Session dropped.
		conn.Close()
	}()

	for {
		var cmd socketCommand
		err := websocket.JSON.Receive(conn, &cmd)
		if errors.Is(err, io.EOF) {
			return
		}
		if err != nil {
			log.WithError(err).Debug("websocket receive failed")
			return
		}

		if err := s.applyCommand(game, cmd, conn.Request().RemoteAddr); err != nil {
			msg, _ := errorStatus(err)
			switch {
			case errors.Is(err, errUnknownCommand):
				msg = "Commande inconnue"
			case errors.Is(err, errRateLimited):
				msg = "Trop de requêtes, réessayez plus tard"
			}
			websocket.JSON.Send(conn, Event{Type: "error", Error: msg})
		}
	}
}

var (
	errUnknownCommand = errors.New("unknown command")
	errRateLimited    = errors.New("rate limited")
)

func (s *Server) applyCommand(game *GameSession, cmd socketCommand, remoteAddr string) error {
	switch cmd.Type {
	case "toggle":
		if !s.moveRL.allow(remoteAddr) {
			return errRateLimited
		}
		_, _, err := game.Toggle(lights.Coord{Row: cmd.Row, Col: cmd.Col})
		return err
	case "reset":
		_, err := game.Reset()
		return err
	default:
		return fmt.Errorf("%w: %q", errUnknownCommand, cmd.Type)
	}
}
