package table

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kingdomforge/tourney/internal/cardgame"
	"github.com/kingdomforge/tourney/internal/engine"
	"github.com/kingdomforge/tourney/internal/player"
)

type stubPlayer struct{ name string }

func (s stubPlayer) Name() string { return s.name }
func (s stubPlayer) Decide(context.Context, string, []string, *player.Event) (player.Decision, error) {
	return player.Decision{}, nil
}
func (s stubPlayer) Observe(context.Context, string, player.Event) {}

func resolveStub(playerID string) (player.Player, error) {
	return stubPlayer{name: "name-" + playerID}, nil
}

type stubEngine struct {
	result engine.Result
	err    error
	panic  bool
}

func (e stubEngine) Play(context.Context) (engine.Result, error) {
	if e.panic {
		panic("boom")
	}
	return e.result, e.err
}

type stubLoader struct {
	eng engine.Engine
	err error
}

func (l stubLoader) Create([]player.Player, cardgame.KingdomSelection, int) (engine.Engine, error) {
	return l.eng, l.err
}

func testAssignment() cardgame.GameAssignment {
	return cardgame.GameAssignment{Seats: [4]string{"p1", "p2", "p3", "p4"}}
}

func testKingdom() cardgame.KingdomSelection {
	return cardgame.KingdomSelection(cardgame.ActionCards[:10])
}

func TestExecutor_HappyPath(t *testing.T) {
	loader := stubLoader{eng: stubEngine{result: engine.Result{PlayerResults: []engine.PlayerResult{
		{Name: "name-p1", Score: 40, Deck: []string{"village"}},
		{Name: "name-p2", Score: 30},
		{Name: "name-p3", Score: 20},
		{Name: "name-p4", Score: 10},
	}}}}

	exec := NewExecutor(loader, resolveStub, zerolog.Nop())
	outcome := exec.Execute(context.Background(), 2, testAssignment(), testKingdom(), 100)

	require.Equal(t, 2, outcome.IndexWithinRound)
	require.Len(t, outcome.Placements, 4)
	assert.Equal(t, "p1", outcome.Placements[0].PlayerID)
	assert.Equal(t, 40, outcome.Placements[0].Score)
	assert.Equal(t, []string{"village"}, outcome.Placements[0].Deck)
}

// An engine failure produces an all-zero outcome, still counted.
func TestExecutor_EngineErrorProducesZeroOutcome(t *testing.T) {
	loader := stubLoader{eng: stubEngine{err: errors.New("engine exploded")}}
	exec := NewExecutor(loader, resolveStub, zerolog.Nop())

	outcome := exec.Execute(context.Background(), 0, testAssignment(), testKingdom(), 100)

	require.Len(t, outcome.Placements, 4)
	for _, p := range outcome.Placements {
		assert.Zero(t, p.Score)
		assert.Empty(t, p.Deck)
	}
}

func TestExecutor_EnginePanicProducesZeroOutcome(t *testing.T) {
	loader := stubLoader{eng: stubEngine{panic: true}}
	exec := NewExecutor(loader, resolveStub, zerolog.Nop())

	outcome := exec.Execute(context.Background(), 0, testAssignment(), testKingdom(), 100)

	require.Len(t, outcome.Placements, 4)
	for _, p := range outcome.Placements {
		assert.Zero(t, p.Score)
	}
}

func TestExecutor_PanicCountIncrementsOnRecoveredPanic(t *testing.T) {
	loader := stubLoader{eng: stubEngine{panic: true}}
	exec := NewExecutor(loader, resolveStub, zerolog.Nop())

	require.Equal(t, 0, exec.PanicCount())
	exec.Execute(context.Background(), 0, testAssignment(), testKingdom(), 100)
	exec.Execute(context.Background(), 1, testAssignment(), testKingdom(), 100)
	assert.Equal(t, 2, exec.PanicCount())
}

func TestExecutor_ResolveFailureProducesZeroOutcome(t *testing.T) {
	exec := NewExecutor(stubLoader{}, func(string) (player.Player, error) {
		return nil, errors.New("no such player")
	}, zerolog.Nop())

	outcome := exec.Execute(context.Background(), 0, testAssignment(), testKingdom(), 100)
	require.Len(t, outcome.Placements, 4)
}

func TestExecutor_UnknownEngineNameProducesZeroOutcome(t *testing.T) {
	loader := stubLoader{eng: stubEngine{result: engine.Result{PlayerResults: []engine.PlayerResult{
		{Name: "someone-else", Score: 99},
	}}}}
	exec := NewExecutor(loader, resolveStub, zerolog.Nop())

	outcome := exec.Execute(context.Background(), 0, testAssignment(), testKingdom(), 100)
	require.Len(t, outcome.Placements, 4)
	for _, p := range outcome.Placements {
		assert.Zero(t, p.Score)
	}
}
