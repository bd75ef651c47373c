// Package table implements the Table Executor (C3): given a seat
// assignment and a kingdom, it materializes players, runs one game through
// the engine, and maps the result to a canonical GameOutcome, swallowing
// every fault along the way so a single bad table never takes down a round.
package table

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/kingdomforge/tourney/internal/cardgame"
	"github.com/kingdomforge/tourney/internal/engine"
	"github.com/kingdomforge/tourney/internal/player"
)

// PlayerResolver materializes the Player for one seat; the
// executor is agnostic to whether that comes from the remote/local/delay
// factory or a test double.
type PlayerResolver func(playerID string) (player.Player, error)

// Executor is stateless and safe for concurrent invocation: every
// Execute call only touches its own arguments, except the shared
// panicCount accounting, which is itself concurrency-safe.
type Executor struct {
	Loader  engine.Loader
	Resolve PlayerResolver
	Logger  zerolog.Logger

	panicCount atomic.Int64
}

// NewExecutor constructs a Table Executor.
func NewExecutor(loader engine.Loader, resolve PlayerResolver, logger zerolog.Logger) *Executor {
	return &Executor{Loader: loader, Resolve: resolve, Logger: logger.With().Str("component", "table").Logger()}
}

// Execute runs exactly one game. Any failure in materializing
// players, loading the engine, or playing the game is caught here and
// turned into an all-zero outcome rather than propagated — the table still
// counts toward completedGames.
func (e *Executor) Execute(ctx context.Context, indexWithinRound int, assignment cardgame.GameAssignment, kingdom cardgame.KingdomSelection, maxTurns int) cardgame.GameOutcome {
	outcome, err := e.attempt(ctx, indexWithinRound, assignment, kingdom, maxTurns)
	if err != nil {
		e.Logger.Warn().Err(err).Int("game", indexWithinRound).Msg("table failed, recording zero outcome")
		return failedOutcome(indexWithinRound, assignment)
	}
	return outcome
}

// PanicCount reports how many Execute calls have recovered a panic so far,
// for inclusion in TournamentStatus.
func (e *Executor) PanicCount() int {
	return int(e.panicCount.Load())
}

func (e *Executor) attempt(ctx context.Context, indexWithinRound int, assignment cardgame.GameAssignment, kingdom cardgame.KingdomSelection, maxTurns int) (outcome cardgame.GameOutcome, err error) {
	defer func() {
		if r := recover(); r != nil {
			e.panicCount.Add(1)
			err = fmt.Errorf("table panicked: %v", r)
		}
	}()

	seatIDs := seatIDs(assignment)
	players := make([]player.Player, 0, len(seatIDs))
	nameToID := make(map[string]string, len(seatIDs))

	for _, id := range seatIDs {
		p, resolveErr := e.Resolve(id)
		if resolveErr != nil {
			return cardgame.GameOutcome{}, fmt.Errorf("resolve player %q: %w", id, resolveErr)
		}
		players = append(players, p)
		nameToID[p.Name()] = id
	}

	eng, err := e.Loader.Create(players, kingdom, maxTurns)
	if err != nil {
		return cardgame.GameOutcome{}, fmt.Errorf("create engine: %w", err)
	}

	result, err := eng.Play(ctx)
	if err != nil {
		return cardgame.GameOutcome{}, fmt.Errorf("play: %w", err)
	}

	placements := make([]cardgame.Placement, 0, len(result.PlayerResults))
	for _, pr := range result.PlayerResults {
		id, ok := nameToID[pr.Name]
		if !ok {
			return cardgame.GameOutcome{}, fmt.Errorf("engine reported unknown player name %q", pr.Name)
		}
		placements = append(placements, cardgame.Placement{PlayerID: id, Score: pr.Score, Deck: pr.Deck})
	}

	return cardgame.GameOutcome{IndexWithinRound: indexWithinRound, Placements: placements}, nil
}

func seatIDs(assignment cardgame.GameAssignment) []string {
	out := make([]string, 0, len(assignment.Seats))
	for _, s := range assignment.Seats {
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

// failedOutcome produces the canonical zero-score, empty-deck outcome for
// every seat in the assignment. It is never absent.
func failedOutcome(indexWithinRound int, assignment cardgame.GameAssignment) cardgame.GameOutcome {
	placements := make([]cardgame.Placement, 0, len(assignment.Seats))
	for _, id := range assignment.Seats {
		if id == "" {
			continue
		}
		placements = append(placements, cardgame.Placement{PlayerID: id, Score: 0})
	}
	return cardgame.GameOutcome{IndexWithinRound: indexWithinRound, Placements: placements}
}
