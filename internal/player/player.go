// Package player implements the Player capability (C8) that the table
// executor invokes to get decisions from a tournament participant, with
// its remote and delay-wrapped variants. Resolving a PlayerConfig into a
// Player lives in the player/factory subpackage.
package player

import "context"

// Event is an observer notification fired outside the decide/response
// cycle (a hand completing, a card revealed) so a Player can log it without
// blocking the engine on a response.
type Event struct {
	Kind string
	Data map[string]any
}

// Decision is a Player's answer to one decision point: the chosen option,
// verbatim from the options list it was offered.
type Decision struct {
	Choice string
}

// Player is the single capability every tournament participant implements,
// independent of whether it is backed by a remote service or a built-in
// strategy.
type Player interface {
	// Name is the display name reported to the engine and recorded in
	// placements/decks.
	Name() string
	// Decide blocks until a choice is made among options for the given
	// game state. event, when non-nil, is the triggering notification
	// (e.g. "your turn") the engine attached to this decision point.
	Decide(ctx context.Context, state string, options []string, event *Event) (Decision, error)
	// Observe fires a side-channel notification; implementations must
	// never let an Observe failure affect Decide.
	Observe(ctx context.Context, state string, event Event)
}
