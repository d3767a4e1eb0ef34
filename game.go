package main

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/bodul/lightsout/internal/lights"
	"github.com/sirupsen/logrus"
)

var errNotSolving = errors.New("no solve in progress")

// GameSession is one board together with its solve replay.
// While a replay runs, manual toggles and resets are refused.
type GameSession struct {
	ID        string
	CreatedAt time.Time

	grid  *lights.Grid
	seq   *lights.Sequencer
	delay time.Duration
	pub   Publisher
	log   logrus.FieldLogger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// GameView is the JSON representation of a session.
type GameView struct {
	ID        string    `json:"id"`
	Size      int       `json:"size"`
	State     [][]bool  `json:"state"`
	Solving   bool      `json:"solving"`
	Solved    bool      `json:"solved"`
	Step      int       `json:"step,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

func newGameSession(id string, grid *lights.Grid, delay time.Duration, pub Publisher, log logrus.FieldLogger) *GameSession {
	return &GameSession{
		ID:        id,
		CreatedAt: time.Now(),
		grid:      grid,
		seq:       lights.NewSequencer(),
		delay:     delay,
		pub:       pub,
		log:       log.WithField("game", id),
	}
}

// Size returns the side length of the board.
func (g *GameSession) Size() int {
	return g.grid.Size()
}

// Toggle clicks the cell at c and publishes the flipped cells. solved is
// read under the session lock, so it describes the board right after this
// click.
func (g *GameSession) Toggle(c lights.Coord) (changes []lights.CellChange, solved bool, err error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.cancel != nil {
		return nil, false, lights.ErrBusy
	}
	changes, err = g.grid.Toggle(c)
	if err != nil {
		return nil, false, err
	}
	solved = g.grid.Solved()
	g.publish(Event{Type: "toggle", Changes: changes, Solved: solved})
	return changes, solved, nil
}

// Reset lights every cell and publishes the new state.
func (g *GameSession) Reset() ([][]bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.cancel != nil {
		return nil, lights.ErrBusy
	}
	state := g.grid.Reset()
	g.publish(Event{Type: "reset", State: state})
	return state, nil
}

// StartSolve resets the board and replays the solve sequence in the
// background. The replay stops when ctx is cancelled or StopSolve is called.
func (g *GameSession) StartSolve(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.cancel != nil {
		return lights.ErrBusy
	}
	if g.grid.Size() != lights.DefaultSize {
		return lights.ErrInvalidConfiguration
	}

	state := g.grid.Reset()
	g.publish(Event{Type: "reset", State: state})

	runCtx, cancel := context.WithCancel(ctx)
	g.cancel = cancel
	g.done = make(chan struct{})
	go g.runSolve(runCtx, g.done)
	return nil
}

func (g *GameSession) runSolve(ctx context.Context, done chan struct{}) {
	defer close(done)

	g.log.WithField("delay", g.delay).Info("solve started")
	g.publish(Event{Type: "solve_started", Solving: true})

	err := g.seq.Run(ctx, g.grid, g.delay, replayObserver{g})

	// The terminal event goes out while the session still counts as
	// solving, so a following StartSolve publishes after it.
	g.mu.Lock()
	defer g.mu.Unlock()
	if err != nil {
		_, step := g.seq.State()
		if errors.Is(err, lights.ErrAborted) {
			g.log.WithField("step", step).Info("solve aborted")
		} else {
			g.log.WithError(err).WithField("step", step).Error("solve failed")
		}
		g.publish(Event{Type: "solve_aborted", Step: step, Error: err.Error()})
	} else {
		g.log.Info("solve finished")
		g.publish(Event{Type: "solve_finished", Solved: g.grid.Solved()})
	}
	g.cancel()
	g.cancel = nil
}

// StopSolve cancels a running replay and waits for it to return.
func (g *GameSession) StopSolve() error {
	g.mu.Lock()
	cancel, done := g.cancel, g.done
	g.mu.Unlock()

	if cancel == nil {
		return errNotSolving
	}
	cancel()
	<-done
	return nil
}

// Wait blocks until the current replay, if any, has returned.
func (g *GameSession) Wait() {
	g.mu.Lock()
	done := g.done
	g.mu.Unlock()
	if done != nil {
		<-done
	}
}

// Solving reports whether a replay is in progress.
func (g *GameSession) Solving() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.cancel != nil
}

// Snapshot returns a copy of the board.
func (g *GameSession) Snapshot() [][]bool {
	return g.grid.Snapshot()
}

// View returns the current session state.
func (g *GameSession) View() GameView {
	v := GameView{
		ID:        g.ID,
		Size:      g.grid.Size(),
		State:     g.grid.Snapshot(),
		Solving:   g.Solving(),
		Solved:    g.grid.Solved(),
		CreatedAt: g.CreatedAt,
	}
	if v.Solving {
		_, v.Step = g.seq.State()
	}
	return v
}

func (g *GameSession) publish(evt Event) {
	if g.pub != nil {
		g.pub.Publish(g.ID, evt)
	}
}

// replayObserver forwards replay signals to the session's subscribers.
type replayObserver struct {
	g *GameSession
}

func (o replayObserver) Highlight(c lights.Coord, on bool) error {
	_, step := o.g.seq.State()
	o.g.publish(Event{Type: "highlight", Cell: &c, On: on, Step: step, Solving: true})
	return nil
}

func (o replayObserver) Changed(changes []lights.CellChange) error {
	o.g.publish(Event{Type: "toggle", Changes: changes, Solved: o.g.grid.Solved(), Solving: true})
	return nil
}
