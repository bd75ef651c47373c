package tournament

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"
	"testing"

	"github.com/coder/quartz"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kingdomforge/tourney/internal/broadcast"
	"github.com/kingdomforge/tourney/internal/cardgame"
	"github.com/kingdomforge/tourney/internal/rating"
	"github.com/kingdomforge/tourney/internal/store"
)

// fakeExecutor always produces a strict ranking by seat order, so ratings
// move deterministically without a real engine/player graph.
type fakeExecutor struct {
	mu         sync.Mutex
	calls      int
	alwaysFail bool

	// cancelOnce, if set, is invoked exactly once, right before the first
	// call returns its outcome - simulating ctx being canceled in the
	// narrow window between a game finishing and its completion being
	// reported.
	cancelOnce func()
}

func (f *fakeExecutor) Execute(_ context.Context, indexWithinRound int, assignment cardgame.GameAssignment, _ cardgame.KingdomSelection, _ int) cardgame.GameOutcome {
	f.mu.Lock()
	f.calls++
	first := f.calls == 1
	f.mu.Unlock()

	placements := make([]cardgame.Placement, 0, len(assignment.Seats))
	for i, seat := range assignment.Seats {
		if seat == "" {
			continue
		}
		score := 0
		if !f.alwaysFail {
			score = len(assignment.Seats) - i
		}
		placements = append(placements, cardgame.Placement{PlayerID: seat, Score: score})
	}

	if first && f.cancelOnce != nil {
		f.cancelOnce()
	}

	return cardgame.GameOutcome{IndexWithinRound: indexWithinRound, Placements: placements}
}

func testConfig(n, rounds, gamesPerPlayer int) cardgame.TournamentConfig {
	players := make([]cardgame.PlayerConfig, n)
	for i := range players {
		players[i] = cardgame.PlayerConfig{ID: fmt.Sprintf("p%d", i+1), Name: fmt.Sprintf("P%d", i+1), Endpoint: "strategy:random"}
	}
	return cardgame.TournamentConfig{
		Name:           "scenario-cup",
		Rounds:         rounds,
		GamesPerPlayer: gamesPerPlayer,
		MaxTurns:       50,
		PoolSize:       4,
		Players:        players,
	}
}

func newTestRunner(t *testing.T, cfg cardgame.TournamentConfig, exec Executor) (*Runner, *store.Store) {
	t.Helper()
	st, err := store.New(t.TempDir())
	require.NoError(t, err)
	bc := broadcast.New(zerolog.Nop())
	rng := rand.New(rand.NewPCG(1, 2))
	runner := New(cfg, st, bc, exec, quartz.NewReal(), zerolog.Nop(), rng)
	return runner, st
}

// Scenario 1: 4 players, 1 round, gamesPerPlayer=1 -> 1 game, tape has one
// event, state ends COMPLETED.
func TestRunner_Scenario1_SingleGame(t *testing.T) {
	cfg := testConfig(4, 1, 1)
	exec := &fakeExecutor{}
	runner, st := newTestRunner(t, cfg, exec)

	status := runner.Run(context.Background())

	require.Equal(t, cardgame.StateCompleted, status.State)
	assert.Equal(t, 1, status.CompletedGames)
	assert.Equal(t, 1, status.TotalGames)

	tape, err := st.BuildTape(rating.DefaultModelParams())
	require.NoError(t, err)
	assert.Len(t, tape.Events, 1)
}

// Scenario 2: 4 players, gamesPerPlayer=4, 2 rounds -> 4 games per round, 8
// total.
func TestRunner_Scenario2_MultiRound(t *testing.T) {
	cfg := testConfig(4, 2, 4)
	exec := &fakeExecutor{}
	runner, st := newTestRunner(t, cfg, exec)

	status := runner.Run(context.Background())

	require.Equal(t, cardgame.StateCompleted, status.State)
	assert.Equal(t, 8, status.CompletedGames)
	assert.Equal(t, 8, status.TotalGames)

	tape, err := st.BuildTape(rating.DefaultModelParams())
	require.NoError(t, err)
	assert.Len(t, tape.Events, 8)
}

// Scenario 6: two runs against the same directory resume rather than
// duplicating already-written rounds.
func TestRunner_Scenario6_ResumeOnRerun(t *testing.T) {
	cfg := testConfig(4, 3, 1)
	dir := t.TempDir()

	st, err := store.New(dir)
	require.NoError(t, err)
	bc := broadcast.New(zerolog.Nop())
	rng := rand.New(rand.NewPCG(1, 2))

	firstExec := &fakeExecutor{}
	firstRunner := New(cfg, st, bc, firstExec, quartz.NewReal(), zerolog.Nop(), rng)
	status := firstRunner.Run(context.Background())
	require.Equal(t, cardgame.StateCompleted, status.State)
	require.Equal(t, 3, firstExec.calls)

	secondExec := &fakeExecutor{}
	secondRunner := New(cfg, st, bc, secondExec, quartz.NewReal(), zerolog.Nop(), rand.New(rand.NewPCG(3, 4)))
	status = secondRunner.Run(context.Background())

	require.Equal(t, cardgame.StateCompleted, status.State)
	assert.Zero(t, secondExec.calls, "every round already has a file, nothing should be replayed")
}

// An engine that always fails still completes the
// tournament with zero-delta ratings.
func TestRunner_AlwaysFailingEngineStillCompletes(t *testing.T) {
	cfg := testConfig(4, 1, 1)
	exec := &fakeExecutor{alwaysFail: true}
	runner, _ := newTestRunner(t, cfg, exec)

	status := runner.Run(context.Background())

	require.Equal(t, cardgame.StateCompleted, status.State)
	assert.Equal(t, 1, status.CompletedGames)
	for _, id := range []string{"p1", "p2", "p3", "p4"} {
		assert.InDelta(t, rating.DefaultModelParams().Default().Display(), status.Ratings[id], 0.2)
	}
}

// A finished game's outcome must still be delivered and counted even when
// ctx is canceled in the window between Execute returning and the
// completion being reported - a canceled run must fail, not silently
// undercount the games that actually finished.
func TestRunner_CompletionNotDroppedOnConcurrentCancellation(t *testing.T) {
	cfg := testConfig(4, 1, 4)
	ctx, cancel := context.WithCancel(context.Background())
	exec := &fakeExecutor{cancelOnce: cancel}
	runner, _ := newTestRunner(t, cfg, exec)

	status := runner.Run(ctx)

	require.Equal(t, cardgame.StateFailed, status.State)
	assert.GreaterOrEqual(t, status.CompletedGames, 1, "the game that already finished must still be counted")
}

// completedGames is monotone non-decreasing across a run.
func TestRunner_MonotoneProgress(t *testing.T) {
	cfg := testConfig(5, 2, 3)
	exec := &fakeExecutor{}

	st, err := store.New(t.TempDir())
	require.NoError(t, err)
	bc := broadcast.New(zerolog.Nop())

	var mu sync.Mutex
	seen := make([]int, 0)
	bc.Subscribe(cfg.Name, func(s cardgame.TournamentStatus) {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, s.CompletedGames)
	})

	runner := New(cfg, st, bc, exec, quartz.NewReal(), zerolog.Nop(), rand.New(rand.NewPCG(9, 9)))
	status := runner.Run(context.Background())
	require.Equal(t, cardgame.StateCompleted, status.State)

	mu.Lock()
	defer mu.Unlock()
	for i := 1; i < len(seen); i++ {
		assert.GreaterOrEqual(t, seen[i], seen[i-1], "completedGames must never regress")
	}
}
