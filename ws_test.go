package main

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"golang.org/x/net/websocket"
)

func dialGame(t *testing.T, ts *httptest.Server, gameID, origin string) (*websocket.Conn, error) {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/games/" + gameID + "/ws"
	return websocket.Dial(url, "", origin)
}

func receive(t *testing.T, conn *websocket.Conn) Event {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var evt Event
	if err := websocket.JSON.Receive(conn, &evt); err != nil {
		t.Fatalf("receive: %v", err)
	}
	return evt
}

func TestGameSocket(t *testing.T) {
	srv := newTestServer(t, 0, nil)
	ts := httptest.NewServer(srv)
	defer ts.Close()

	game := createGame(t, srv, "")
	conn, err := dialGame(t, ts, game.ID, ts.URL)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	if evt := receive(t, conn); evt.Type != "game_state" || countLit(evt.State) != 25 {
		t.Fatalf("expected initial game_state, got %+v", evt)
	}

	if err := websocket.JSON.Send(conn, socketCommand{Type: "toggle", Row: 2, Col: 2}); err != nil {
		t.Fatalf("send toggle: %v", err)
	}
	evt := receive(t, conn)
	if evt.Type != "toggle" || len(evt.Changes) != 5 {
		t.Fatalf("expected toggle with 5 changes, got %+v", evt)
	}
	if countLit(srv.store.GetGame(game.ID).Snapshot()) != 20 {
		t.Fatal("socket toggle should change the board")
	}

	if err := websocket.JSON.Send(conn, socketCommand{Type: "toggle", Row: 9, Col: 9}); err != nil {
		t.Fatalf("send toggle: %v", err)
	}
	if evt := receive(t, conn); evt.Type != "error" || evt.Error != "Position hors limites" {
		t.Fatalf("expected out of bounds error, got %+v", evt)
	}

	if err := websocket.JSON.Send(conn, socketCommand{Type: "dance"}); err != nil {
		t.Fatalf("send: %v", err)
	}
	if evt := receive(t, conn); evt.Type != "error" || evt.Error != "Commande inconnue" {
		t.Fatalf("expected unknown command error, got %+v", evt)
	}

	if err := websocket.JSON.Send(conn, socketCommand{Type: "reset"}); err != nil {
		t.Fatalf("send reset: %v", err)
	}
	if evt := receive(t, conn); evt.Type != "reset" || countLit(evt.State) != 25 {
		t.Fatalf("expected reset event, got %+v", evt)
	}
}

func TestGameSocketRejectsCrossOrigin(t *testing.T) {
	srv := newTestServer(t, 0, nil)
	ts := httptest.NewServer(srv)
	defer ts.Close()

	game := createGame(t, srv, "")
	if conn, err := dialGame(t, ts, game.ID, "http://evil.example"); err == nil {
		conn.Close()
		t.Fatal("expected cross-origin dial to fail")
	}
}
