package schedule

import (
	"fmt"
	"testing"

	"github.com/kingdomforge/tourney/internal/cardgame"
	"github.com/kingdomforge/tourney/internal/randutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func playerIDs(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("p%d", i+1)
	}
	return out
}

// Balanced schedule invariants across a spread of (n, g).
func TestGenerateBalancedGames_Balanced(t *testing.T) {
	cases := []struct{ n, g int }{
		{4, 1}, {4, 4}, {5, 3}, {6, 2}, {8, 1}, {9, 5},
	}
	for _, c := range cases {
		c := c
		t.Run(fmt.Sprintf("n=%d_g=%d", c.n, c.g), func(t *testing.T) {
			adjusted := AdjustGamesPerPlayer(c.n, c.g)
			require.Zero(t, (c.n*adjusted)%4, "n*g' must be divisible by 4")

			ids := playerIDs(c.n)
			rng := randutil.New(1)
			games := GenerateBalancedGames(ids, adjusted, rng)

			require.Len(t, games, c.n*adjusted/4)

			appearances := make(map[string]int, c.n)
			for _, id := range ids {
				appearances[id] = 0
			}
			for _, game := range games {
				seen := make(map[string]bool, 4)
				for _, seat := range game.Seats {
					require.NotEmpty(t, seat)
					require.False(t, seen[seat], "duplicate seat within one game")
					seen[seat] = true
					appearances[seat]++
				}
				require.Len(t, seen, 4)
			}
			for _, id := range ids {
				assert.Equal(t, adjusted, appearances[id], "player %s appearance count", id)
			}
		})
	}
}

func TestAdjustGamesPerPlayer(t *testing.T) {
	cases := []struct {
		n, g, want int
	}{
		{4, 1, 1},
		{4, 4, 4},
		{4, 3, 3},
		{5, 3, 4},
		{5, 1, 4},
		{6, 2, 2},
		{8, 1, 1},
	}
	for _, c := range cases {
		got := AdjustGamesPerPlayer(c.n, c.g)
		assert.Equal(t, c.want, got, "AdjustGamesPerPlayer(%d,%d)", c.n, c.g)
		assert.Zero(t, (c.n*got)%4)
	}
}

// Kingdom shape.
func TestSelectKingdom(t *testing.T) {
	rng := randutil.New(42)
	kingdom := SelectKingdom(rng)
	require.Len(t, kingdom, 10)

	universe := make(map[string]bool, len(cardgame.ActionCards))
	for _, c := range cardgame.ActionCards {
		universe[c] = true
	}

	seen := make(map[string]bool, 10)
	for _, c := range kingdom {
		assert.True(t, universe[c], "card %q not in the fixed universe", c)
		assert.False(t, seen[c], "duplicate card %q in kingdom", c)
		seen[c] = true
	}
}

func TestGenerateBalancedGames_Deterministic(t *testing.T) {
	ids := playerIDs(5)
	g := AdjustGamesPerPlayer(5, 3)

	a := GenerateBalancedGames(ids, g, randutil.New(7))
	b := GenerateBalancedGames(ids, g, randutil.New(7))
	assert.Equal(t, a, b, "same seed must produce the same schedule")

	c := GenerateBalancedGames(ids, g, randutil.New(8))
	assert.NotEqual(t, a, c, "different seeds should (almost certainly) differ")
}
