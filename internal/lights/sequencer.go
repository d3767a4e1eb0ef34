package lights

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// DefaultPacingDelay is the pause before each replayed click.
const DefaultPacingDelay = 1300 * time.Millisecond

var (
	// ErrBusy is returned when a replay is already running.
	ErrBusy = errors.New("lights: solve already in progress")
	// ErrAborted is returned when a replay is cancelled between steps.
	ErrAborted = errors.New("lights: solve aborted")
)

// solveSequence clears the all-lit 5×5 board when clicked in order.
var solveSequence = [...]Coord{
	{0, 0}, {0, 1}, {1, 0}, {1, 1},
	{1, 4}, {1, 3}, {2, 4}, {2, 3},
	{2, 2}, {3, 1}, {3, 2}, {3, 3},
	{4, 1}, {4, 2}, {4, 4},
}

// SolveSequence returns a copy of the clicks that clear the all-lit
// DefaultSize board.
func SolveSequence() []Coord {
	out := make([]Coord, len(solveSequence))
	copy(out, solveSequence[:])
	return out
}

// Observer receives the presentation signals of a replay.
type Observer interface {
	// Highlight is called with on=true before the pacing wait of a step and
	// with on=false once the step is over.
	Highlight(c Coord, on bool) error
	// Changed is called with the cells flipped by a step.
	Changed(changes []CellChange) error
}

// RunState is the phase of a replay.
type RunState int

const (
	Idle RunState = iota
	Highlighting
	Waiting
	Toggling
	Done
	Aborted
)

var runStateNames = [...]string{"idle", "highlighting", "waiting", "toggling", "done", "aborted"}

func (s RunState) String() string {
	if s < 0 || int(s) >= len(runStateNames) {
		return fmt.Sprintf("RunState(%d)", int(s))
	}
	return runStateNames[s]
}

// Sequencer replays the solve sequence against a Grid, one paced click at a
// time. A Sequencer runs at most one replay at a time.
type Sequencer struct {
	mu      sync.Mutex
	running bool
	state   RunState
	step    int
}

// NewSequencer returns an idle sequencer.
func NewSequencer() *Sequencer {
	return &Sequencer{}
}

// Steps returns the replayed coordinates in order.
func (s *Sequencer) Steps() []Coord {
	return SolveSequence()
}

// State returns the current phase and the 1-based step it belongs to.
func (s *Sequencer) State() (RunState, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state, s.step
}

// Running reports whether a replay is in progress.
func (s *Sequencer) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Run clicks through the solve sequence on g, waiting delay before each
// click. g must be a freshly reset DefaultSize board for the replay to clear
// it. Run returns once the last step completes, or as soon as ctx is
// cancelled between steps, a toggle fails or obs reports an error. Toggles
// already applied are kept.
func (s *Sequencer) Run(ctx context.Context, g *Grid, delay time.Duration, obs Observer) (err error) {
	if g.Size() != DefaultSize {
		return fmt.Errorf("%w: solve sequence needs a %dx%d grid, got %dx%d",
			ErrInvalidConfiguration, DefaultSize, DefaultSize, g.Size(), g.Size())
	}

	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return ErrBusy
	}
	s.running = true
	s.state, s.step = Idle, 0
	s.mu.Unlock()

	defer func() {
		final := Done
		if err != nil {
			final = Aborted
		}
		s.mu.Lock()
		s.running = false
		s.state = final
		s.mu.Unlock()
	}()

	for i, c := range solveSequence {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%w before step %d: %w", ErrAborted, i+1, err)
		}

		s.enter(Highlighting, i+1)
		if err := obs.Highlight(c, true); err != nil {
			return fmt.Errorf("step %d highlight %s: %w", i+1, c, err)
		}

		s.enter(Waiting, i+1)
		if err := wait(ctx, delay); err != nil {
			// Cancelled mid-wait: the click never happens, clear the hover.
			hlErr := obs.Highlight(c, false)
			return errors.Join(fmt.Errorf("%w at step %d: %w", ErrAborted, i+1, err), hlErr)
		}

		s.enter(Toggling, i+1)
		changes, err := g.Toggle(c)
		if err != nil {
			return fmt.Errorf("step %d toggle %s: %w", i+1, c, err)
		}
		if err := obs.Changed(changes); err != nil {
			return fmt.Errorf("step %d render %s: %w", i+1, c, err)
		}
		if err := obs.Highlight(c, false); err != nil {
			return fmt.Errorf("step %d unhighlight %s: %w", i+1, c, err)
		}
		s.enter(Idle, i+1)
	}
	return nil
}

func (s *Sequencer) enter(state RunState, step int) {
	s.mu.Lock()
	s.state, s.step = state, step
	s.mu.Unlock()
}

func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
