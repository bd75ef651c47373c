// Package rating implements the multiplayer skill-rating tracker (C1): a
// per-player (mu, sigma) estimate updated after each game via a Bayesian
// rating model, plus an ordinal points accumulator.
package rating

import "github.com/rs/zerolog"

// Snapshot is a read-only view of one player's rating and accumulated
// points at a point in time.
type Snapshot struct {
	Rating Rating
	Points int
}

// Tracker owns the rating state for every player in one tournament.
// Mutation is single-writer by contract: only the tournament runner's
// control path calls ProcessGame, so the type takes no internal lock.
type Tracker struct {
	params       ModelParams
	ratings      map[string]Rating
	points       map[string]int
	nonConverged int
	logger       zerolog.Logger
}

// NewTracker initializes every player to the model's default rating and
// zero points.
func NewTracker(playerIDs []string, params ModelParams, logger zerolog.Logger) *Tracker {
	t := &Tracker{
		params:  params,
		ratings: make(map[string]Rating, len(playerIDs)),
		points:  make(map[string]int, len(playerIDs)),
		logger:  logger.With().Str("component", "rating").Logger(),
	}
	for _, id := range playerIDs {
		t.ratings[id] = params.Default()
		t.points[id] = 0
	}
	return t
}

// ProcessGame updates ratings and points for the placements of one game.
// Players not present in placements are untouched. Placements are
// typically 3 or 4 entries; fewer than 2 is a no-op. When every placement
// has the same score (as in a failed game), points are still awarded but
// ratings are left as they were.
func (t *Tracker) ProcessGame(placements []Placement) {
	if len(placements) < 2 {
		return
	}

	ordered := StrictOrder(placements)
	for id, pts := range Points(ordered) {
		t.points[id] += pts
	}
	if ordered[0].Score == ordered[len(ordered)-1].Score {
		return
	}

	ranked := make([]Rating, len(ordered))
	for i, p := range ordered {
		r, ok := t.ratings[p.PlayerID]
		if !ok {
			r = t.params.Default()
		}
		ranked[i] = r
	}

	updated, converged := updateRanked(t.params, ranked)
	if !converged {
		t.nonConverged++
		const logCap = 20
		if t.nonConverged <= logCap {
			t.logger.Warn().
				Int("count", t.nonConverged).
				Msg("rating update did not converge, prior ratings retained")
		}
		return
	}

	for i, p := range ordered {
		t.ratings[p.PlayerID] = updated[i]
	}
}

// Ratings returns a snapshot of every tracked player's current rating.
func (t *Tracker) Ratings() map[string]Rating {
	out := make(map[string]Rating, len(t.ratings))
	for id, r := range t.ratings {
		out[id] = r
	}
	return out
}

// Display returns the rounded display rating (mu - 3*sigma) for a player,
// or the model's default display rating if the player is unknown.
func (t *Tracker) Display(id string) float64 {
	r, ok := t.ratings[id]
	if !ok {
		r = t.params.Default()
	}
	return r.Display()
}

// DisplayRatings returns display-rating snapshots for every tracked player,
// the form TournamentStatus embeds.
func (t *Tracker) DisplayRatings() map[string]float64 {
	out := make(map[string]float64, len(t.ratings))
	for id, r := range t.ratings {
		out[id] = r.Display()
	}
	return out
}

// Points returns the accumulated ordinal points for a player.
func (t *Tracker) Points(id string) int {
	return t.points[id]
}

// AllPoints returns a snapshot of every tracked player's accumulated points.
func (t *Tracker) AllPoints() map[string]int {
	out := make(map[string]int, len(t.points))
	for id, v := range t.points {
		out[id] = v
	}
	return out
}

// NonConvergentCount returns how many ProcessGame calls hit a numerical
// update that did not converge, for this tracker's lifetime.
func (t *Tracker) NonConvergentCount() int {
	return t.nonConverged
}

// Params returns the model parameters this tracker was constructed with.
func (t *Tracker) Params() ModelParams {
	return t.params
}
