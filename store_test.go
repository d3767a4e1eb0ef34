package main

import (
	"errors"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/bodul/lightsout/internal/lights"
)

// recordingPublisher keeps every published event.
type recordingPublisher struct {
	mu     sync.Mutex
	events []Event
}

func (p *recordingPublisher) Publish(_ string, evt Event) {
	p.mu.Lock()
	p.events = append(p.events, evt)
	p.mu.Unlock()
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, e := range p.events {
		out[i] = e.Type
	}
	return out
}

func TestCreateAndGetGame(t *testing.T) {
	s := NewStore(nil, testLogger())
	g, err := s.CreateGame(5, 0)
	if err != nil {
		t.Fatalf("create game: %v", err)
	}

	if g.ID == "" {
		t.Fatal("expected game to have an ID")
	}
	if got := s.GetGame(g.ID); got != g {
		t.Fatal("expected to find saved game")
	}
	if got := s.GetGame("nonexistent"); got != nil {
		t.Fatal("expected nil for unknown ID")
	}
}

func TestCreateGameInvalidSize(t *testing.T) {
	s := NewStore(nil, testLogger())
	if _, err := s.CreateGame(0, 0); !errors.Is(err, lights.ErrInvalidConfiguration) {
		t.Fatalf("expected ErrInvalidConfiguration, got %v", err)
	}
	if len(s.ListGames()) != 0 {
		t.Fatal("failed creation should not store a game")
	}
}

func TestListGames(t *testing.T) {
	s := NewStore(nil, testLogger())
	s.CreateGame(5, 0)
	time.Sleep(time.Millisecond)
	s.CreateGame(3, 0)

	list := s.ListGames()
	if len(list) != 2 {
		t.Fatalf("expected 2 games, got %d", len(list))
	}
	// Most recent first.
	if list[0].CreatedAt.Before(list[1].CreatedAt) {
		t.Fatal("expected games sorted by descending creation time")
	}
	if list[0].Size() != 3 {
		t.Fatalf("expected newest game of size 3, got %d", list[0].Size())
	}
}

func TestDeleteGameStopsSolve(t *testing.T) {
	s := NewStore(nil, testLogger())
	g, _ := s.CreateGame(5, time.Hour)

	if err := g.StartSolve(t.Context()); err != nil {
		t.Fatalf("start solve: %v", err)
	}
	if !s.DeleteGame(g.ID) {
		t.Fatal("expected delete to succeed")
	}
	if g.Solving() {
		t.Fatal("deleting a game should stop its solve")
	}
	if s.DeleteGame(g.ID) {
		t.Fatal("second delete should report a missing game")
	}
}

func TestGameToggleAndReset(t *testing.T) {
	pub := &recordingPublisher{}
	s := NewStore(pub, testLogger())
	g, _ := s.CreateGame(5, 0)

	changes, solved, err := g.Toggle(lights.Coord{Row: 0, Col: 2})
	if err != nil {
		t.Fatalf("toggle: %v", err)
	}
	if len(changes) != 4 {
		t.Fatalf("expected 4 changes for an edge cell, got %d", len(changes))
	}
	if solved {
		t.Fatal("one click should not solve a 5x5 board")
	}

	if _, _, err := g.Toggle(lights.Coord{Row: 7, Col: 0}); !errors.Is(err, lights.ErrOutOfBounds) {
		t.Fatalf("expected ErrOutOfBounds, got %v", err)
	}

	state, err := g.Reset()
	if err != nil {
		t.Fatalf("reset: %v", err)
	}
	if countLit(state) != 25 {
		t.Fatalf("expected all cells lit, got %d", countLit(state))
	}

	got := pub.types()
	if len(got) != 2 || got[0] != "toggle" || got[1] != "reset" {
		t.Fatalf("expected toggle then reset events, got %v", got)
	}
}

func TestGameSolveEvents(t *testing.T) {
	pub := &recordingPublisher{}
	s := NewStore(pub, testLogger())
	g, _ := s.CreateGame(5, 0)

	if err := g.StartSolve(t.Context()); err != nil {
		t.Fatalf("start solve: %v", err)
	}
	g.Wait()

	if g.Solving() {
		t.Fatal("solve should be over")
	}
	if countLit(g.Snapshot()) != 0 {
		t.Fatal("solve should clear the board")
	}

	got := pub.types()
	// reset, solve_started, 15 × (highlight on, toggle, highlight off), solve_finished
	if len(got) != 3+3*15 {
		t.Fatalf("expected %d events, got %d: %v", 3+3*15, len(got), got)
	}
	if got[0] != "reset" || got[1] != "solve_started" || got[len(got)-1] != "solve_finished" {
		t.Fatalf("unexpected event order: %v", got)
	}
	for i := 0; i < 15; i++ {
		step := got[2+3*i : 5+3*i]
		if step[0] != "highlight" || step[1] != "toggle" || step[2] != "highlight" {
			t.Fatalf("step %d: unexpected events %v", i+1, step)
		}
	}
}

func TestGameStopSolve(t *testing.T) {
	pub := &recordingPublisher{}
	s := NewStore(pub, testLogger())
	g, _ := s.CreateGame(5, time.Hour)

	if err := g.StopSolve(); !errors.Is(err, errNotSolving) {
		t.Fatalf("expected errNotSolving, got %v", err)
	}
	if err := g.StartSolve(t.Context()); err != nil {
		t.Fatalf("start solve: %v", err)
	}
	if err := g.StartSolve(t.Context()); !errors.Is(err, lights.ErrBusy) {
		t.Fatalf("expected ErrBusy, got %v", err)
	}
	if _, _, err := g.Toggle(lights.Coord{}); !errors.Is(err, lights.ErrBusy) {
		t.Fatalf("expected ErrBusy for toggle, got %v", err)
	}
	if _, err := g.Reset(); !errors.Is(err, lights.ErrBusy) {
		t.Fatalf("expected ErrBusy for reset, got %v", err)
	}

	if err := g.StopSolve(); err != nil {
		t.Fatalf("stop solve: %v", err)
	}
	got := pub.types()
	if got[len(got)-1] != "solve_aborted" {
		t.Fatalf("expected solve_aborted last, got %v", got)
	}
	if countLit(g.Snapshot()) != 25 {
		t.Fatal("no click should have happened")
	}
}

func TestGameToggleReportsSolved(t *testing.T) {
	pub := &recordingPublisher{}
	s := NewStore(pub, testLogger())
	g, _ := s.CreateGame(1, 0)

	_, solved, err := g.Toggle(lights.Coord{})
	if err != nil {
		t.Fatalf("toggle: %v", err)
	}
	if !solved {
		t.Fatal("clicking the only cell should solve a 1x1 board")
	}
	if len(pub.events) != 1 || !pub.events[0].Solved {
		t.Fatalf("toggle event should carry the same solved flag, got %+v", pub.events)
	}

	_, solved, _ = g.Toggle(lights.Coord{})
	if solved {
		t.Fatal("a second click relights the board")
	}
}

func TestGameRestartSolveKeepsEventOrder(t *testing.T) {
	pub := &recordingPublisher{}
	s := NewStore(pub, testLogger())
	g, _ := s.CreateGame(5, 0)

	if err := g.StartSolve(t.Context()); err != nil {
		t.Fatalf("start solve: %v", err)
	}
	// Restart as soon as the first replay lets go of the session.
	for {
		err := g.StartSolve(t.Context())
		if err == nil {
			break
		}
		if !errors.Is(err, lights.ErrBusy) {
			t.Fatalf("restart: %v", err)
		}
		runtime.Gosched()
	}
	g.Wait()

	got := pub.types()
	first, secondReset := -1, -1
	for i, typ := range got {
		if typ == "solve_finished" && first < 0 {
			first = i
		}
		if typ == "reset" && i > 0 && secondReset < 0 {
			secondReset = i
		}
	}
	if first < 0 || secondReset < 0 {
		t.Fatalf("expected two replays, got %v", got)
	}
	if first > secondReset {
		t.Fatalf("first replay finished after the second started: %v", got)
	}
	if got[len(got)-1] != "solve_finished" {
		t.Fatalf("expected solve_finished last, got %v", got)
	}
}

func TestConcurrentAccess(t *testing.T) {
	s := NewStore(NewBroadcaster(testLogger()), testLogger())
	g, _ := s.CreateGame(10, 0)

	var wg sync.WaitGroup
	for i := range 100 {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			g.Toggle(lights.Coord{Row: i % 10, Col: i % 10})
			g.View()
			s.ListGames()
		}(i)
	}
	wg.Wait()
}
