// Package engine defines the Engine Loader contract (C7): the core depends
// only on this interface, never on how an engine module is actually loaded
// or spawned.
package engine

import (
	"context"

	"github.com/kingdomforge/tourney/internal/cardgame"
	"github.com/kingdomforge/tourney/internal/player"
)

// PlayerResult is one seat's raw result as the engine module reports it,
// keyed by display name (the engine has no notion of tournament player
// ids).
type PlayerResult struct {
	Name  string
	Score int
	Deck  []string
}

// Result is the full outcome of one game as the engine module reports it.
type Result struct {
	PlayerResults []PlayerResult
}

// Engine plays exactly one game to completion.
type Engine interface {
	Play(ctx context.Context) (Result, error)
}

// Loader constructs an Engine for one game's seating, kingdom, and turn
// cap. Its implementation (in-process factory, dynamic module load,
// subprocess) is not part of the core contract; the core only ever calls
// Create.
type Loader interface {
	Create(players []player.Player, kingdom cardgame.KingdomSelection, maxTurns int) (Engine, error)
}
