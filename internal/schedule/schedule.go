// Package schedule generates the per-round kingdom and the balanced 4-seat
// game assignments for one round of a tournament (C2).
package schedule

import (
	"sort"

	"github.com/kingdomforge/tourney/internal/cardgame"
)

const seatsPerGame = 4

// SelectKingdom returns a uniformly random 10-subset of the 15 action-card
// identifiers, ordered as sampled. rng is caller-owned so round
// generation stays reproducible under a seeded tournament-level source.
func SelectKingdom(rng interface{ IntN(int) int }) cardgame.KingdomSelection {
	pool := append([]string(nil), cardgame.ActionCards[:]...)
	out := make(cardgame.KingdomSelection, 0, cardgame.KingdomSize)
	for i := 0; i < cardgame.KingdomSize; i++ {
		j := i + rng.IntN(len(pool)-i)
		pool[i], pool[j] = pool[j], pool[i]
		out = append(out, pool[i])
	}
	return out
}

// AdjustGamesPerPlayer returns the largest multiple of step = 4/gcd(n,4)
// that is <= g, clamped to at least step, guaranteeing n*g' is divisible by
// 4.
func AdjustGamesPerPlayer(n, g int) int {
	step := seatsPerGame / gcd(n, seatsPerGame)
	if g < step {
		return step
	}
	return (g / step) * step
}

func gcd(a, b int) int {
	for b != 0 {
		a, b = b, a%b
	}
	if a == 0 {
		return 1
	}
	return a
}

// GenerateBalancedGames returns exactly n*g/4 four-seat assignments where
// every player appears in exactly g games, using the greedy
// pairing heuristic: seed each game with the least-played eligible player,
// prefer co-appearance-free fill, then shuffle seats and game order so
// neither carries positional bias.
//
// playerIDs must be distinct; g must already be a multiple of
// 4/gcd(len(playerIDs),4) (callers pass AdjustGamesPerPlayer's result).
func GenerateBalancedGames(playerIDs []string, g int, rng interface {
	IntN(int) int
	Shuffle(int, func(int, int))
}) []cardgame.GameAssignment {
	n := len(playerIDs)
	totalGames := n * g / seatsPerGame

	appearances := make(map[string]int, n)
	for _, id := range playerIDs {
		appearances[id] = 0
	}
	coAppeared := make(map[[2]string]bool)

	games := make([]cardgame.GameAssignment, 0, totalGames)

	for gi := 0; gi < totalGames; gi++ {
		eligible := eligiblePlayers(playerIDs, appearances, g)
		sortByAppearanceThenRandom(eligible, appearances, rng)

		seats := make([]string, 0, seatsPerGame)
		seats = append(seats, eligible[0])
		remaining := eligible[1:]

		fresh := make([]string, 0, len(remaining))
		for _, p := range remaining {
			if !anyCoAppeared(seats, p, coAppeared) {
				fresh = append(fresh, p)
			}
		}

		for _, candidate := range fresh {
			if len(seats) == seatsPerGame {
				break
			}
			if !anyCoAppeared(seats, candidate, coAppeared) {
				seats = append(seats, candidate)
			}
		}
		for _, candidate := range remaining {
			if len(seats) == seatsPerGame {
				break
			}
			if contains(seats, candidate) {
				continue
			}
			seats = append(seats, candidate)
		}

		rng.Shuffle(len(seats), func(a, b int) { seats[a], seats[b] = seats[b], seats[a] })

		for _, id := range seats {
			appearances[id]++
		}
		for i := 0; i < len(seats); i++ {
			for j := i + 1; j < len(seats); j++ {
				coAppeared[pairKey(seats[i], seats[j])] = true
			}
		}

		var assignment cardgame.GameAssignment
		copy(assignment.Seats[:], seats)
		games = append(games, assignment)
	}

	rng.Shuffle(len(games), func(a, b int) { games[a], games[b] = games[b], games[a] })
	return games
}

func eligiblePlayers(playerIDs []string, appearances map[string]int, g int) []string {
	out := make([]string, 0, len(playerIDs))
	for _, id := range playerIDs {
		if appearances[id] < g {
			out = append(out, id)
		}
	}
	return out
}

// sortByAppearanceThenRandom sorts ascending by appearance count, breaking
// ties with a random tag so the lowest-appearance seed player isn't always
// the same id when several players are tied at the minimum.
func sortByAppearanceThenRandom(ids []string, appearances map[string]int, rng interface{ IntN(int) int }) {
	tag := make(map[string]int, len(ids))
	for _, id := range ids {
		tag[id] = rng.IntN(1 << 30)
	}
	sort.Slice(ids, func(i, j int) bool {
		ai, aj := appearances[ids[i]], appearances[ids[j]]
		if ai != aj {
			return ai < aj
		}
		return tag[ids[i]] < tag[ids[j]]
	})
}

func anyCoAppeared(seats []string, candidate string, coAppeared map[[2]string]bool) bool {
	for _, s := range seats {
		if coAppeared[pairKey(s, candidate)] {
			return true
		}
	}
	return false
}

func pairKey(a, b string) [2]string {
	if a > b {
		a, b = b, a
	}
	return [2]string{a, b}
}

func contains(ids []string, target string) bool {
	for _, id := range ids {
		if id == target {
			return true
		}
	}
	return false
}
