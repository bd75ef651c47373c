package cardgame

// GameAssignment is one table's seat assignment within a round.
type GameAssignment struct {
	Seats [4]string
}

// Placement is one player's result in one game.
type Placement struct {
	PlayerID string   `json:"playerId"`
	Score    int      `json:"score"`
	Deck     []string `json:"deck,omitempty"`
}

// GameOutcome is the result of one table. On failure every placement
// has Score 0 and an empty Deck; it is never absent — a failed game still
// fills a slot in the round.
type GameOutcome struct {
	IndexWithinRound int
	Placements       []Placement
}
