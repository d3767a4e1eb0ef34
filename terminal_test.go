package main

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/bodul/lightsout/internal/lights"
)

func TestRenderBoard(t *testing.T) {
	state := [][]bool{
		{true, false},
		{false, true},
	}
	got := renderBoard(state, &lights.Coord{Row: 1, Col: 0})
	want := " #  . \n[.] # \n\n"
	if got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestPlaySolve(t *testing.T) {
	var out bytes.Buffer
	if err := playSolve(context.Background(), &out, 0, testLogger()); err != nil {
		t.Fatalf("play: %v", err)
	}

	text := out.String()
	if !strings.Contains(text, "Étape 15/15 : clic sur (4,4)") {
		t.Fatal("expected the last step to be printed")
	}
	if !strings.HasSuffix(text, "Toutes les lumières sont éteintes !\n") {
		t.Fatal("expected the solved message")
	}
}

func TestPlaySolveCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var out bytes.Buffer
	err := playSolve(ctx, &out, 0, testLogger())
	if !errors.Is(err, lights.ErrAborted) {
		t.Fatalf("expected ErrAborted, got %v", err)
	}
	if strings.Contains(out.String(), "Étape") {
		t.Fatal("no step should run after cancellation")
	}
}

func TestTerminalViewMissingCell(t *testing.T) {
	grid, _ := lights.NewGrid(2)
	view := newTerminalView(&bytes.Buffer{}, grid, 1)

	err := view.Changed([]lights.CellChange{{Coord: lights.Coord{Row: 3, Col: 0}, Lit: true}})
	if !errors.Is(err, lights.ErrPresentation) {
		t.Fatalf("expected ErrPresentation, got %v", err)
	}
}
