// Package cardgame holds the static data model shared by the tournament
// core: the kingdom card universe and the configuration types that describe
// a tournament before any game is scheduled.
package cardgame

// ActionCards is the fixed universe of 15 action-card identifiers a kingdom
// is drawn from. The engine that interprets these cards is external
// to this core; the identifiers only need to be stable and distinct.
var ActionCards = [15]string{
	"cellar", "market", "merchant", "militia", "mine",
	"moat", "remodel", "smithy", "village", "witch",
	"workshop", "bureaucrat", "feast", "spy", "thief",
}

// KingdomSize is the number of action cards in play for one round.
const KingdomSize = 10

// KingdomSelection is the ordered list of action cards drawn for one round.
type KingdomSelection []string
