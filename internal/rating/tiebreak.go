package rating

import (
	"encoding/binary"
	"hash/fnv"
	"sort"

	"github.com/kingdomforge/tourney/internal/randutil"
)

// Placement is one player's result in a single game.
type Placement struct {
	PlayerID string
	Score    int
}

// StrictOrder breaks score ties deterministically so the rating model (which
// cannot converge on true ties) always sees a strictly ordered ranking, and
// two identical games always resolve to the same order.
//
// The permutation used to break ties is seeded from the game's own
// (playerId, score) pairs, so it depends only on what happened in the game,
// never on wall-clock time or submission order.
func StrictOrder(placements []Placement) []Placement {
	ordered := append([]Placement(nil), placements...)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Score > ordered[j].Score })

	rng := randutil.New(seedFromPlacements(placements))
	for i := 0; i < len(ordered); {
		j := i + 1
		for j < len(ordered) && ordered[j].Score == ordered[i].Score {
			j++
		}
		if j-i > 1 {
			group := ordered[i:j]
			rng.Shuffle(len(group), func(a, b int) { group[a], group[b] = group[b], group[a] })
		}
		i = j
	}
	return ordered
}

// seedFromPlacements hashes the (unordered) set of (playerId, score) pairs
// into a deterministic seed, independent of input order.
func seedFromPlacements(placements []Placement) int64 {
	byID := append([]Placement(nil), placements...)
	sort.Slice(byID, func(i, j int) bool { return byID[i].PlayerID < byID[j].PlayerID })

	h := fnv.New64a()
	var scoreBuf [8]byte
	for _, p := range byID {
		h.Write([]byte(p.PlayerID))
		binary.LittleEndian.PutUint64(scoreBuf[:], uint64(int64(p.Score)))
		h.Write(scoreBuf[:])
	}
	return int64(h.Sum64())
}

// Points returns the ordinal-points award (N+1-rank) for a strictly ordered
// placement list, rank 1-based from best (index 0) to worst.
func Points(ordered []Placement) map[string]int {
	n := len(ordered)
	pts := make(map[string]int, n)
	for i, p := range ordered {
		rank := i + 1
		pts[p.PlayerID] = n + 1 - rank
	}
	return pts
}
