package rating

import (
	"math"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTracker(ids ...string) *Tracker {
	return NewTracker(ids, DefaultModelParams(), zerolog.Nop())
}

func closeEnough(t *testing.T, got, want, tol float64, msg string) {
	t.Helper()
	if math.Abs(got-want) > tol {
		t.Errorf("%s: got %v, want %v (+/-%v)", msg, got, want, tol)
	}
}

// Reference values for a 4-player free-for-all with default ratings.
func TestTracker_ReferenceValues(t *testing.T) {
	tr := newTestTracker("p1", "p2", "p3", "p4")
	tr.ProcessGame([]Placement{
		{PlayerID: "p1", Score: 40},
		{PlayerID: "p2", Score: 30},
		{PlayerID: "p3", Score: 20},
		{PlayerID: "p4", Score: 10},
	})

	want := map[string]Rating{
		"p1": {Mu: 33.21, Sigma: 6.35},
		"p2": {Mu: 27.40, Sigma: 5.79},
		"p3": {Mu: 22.60, Sigma: 5.79},
		"p4": {Mu: 16.79, Sigma: 6.35},
	}

	got := tr.Ratings()
	for id, w := range want {
		closeEnough(t, got[id].Mu, w.Mu, 0.1, id+" mu")
		closeEnough(t, got[id].Sigma, w.Sigma, 0.1, id+" sigma")
	}
	assert.Equal(t, 0, tr.NonConvergentCount())
}

// Players absent from a game keep an identical rating.
func TestTracker_NonParticipantsUnchanged(t *testing.T) {
	tr := newTestTracker("p1", "p2", "p3", "p4", "bystander")
	before := tr.Ratings()["bystander"]

	tr.ProcessGame([]Placement{
		{PlayerID: "p1", Score: 10},
		{PlayerID: "p2", Score: 8},
		{PlayerID: "p3", Score: 5},
		{PlayerID: "p4", Score: 1},
	})

	after := tr.Ratings()["bystander"]
	assert.Equal(t, before, after)
}

// A numerically degenerate update leaves prior ratings untouched, bumps
// the non-convergence counter, and points are still awarded.
func TestTracker_NonConvergenceResilience(t *testing.T) {
	tr := newTestTracker("p1", "p2")
	tr.ratings["p1"] = Rating{Mu: 25, Sigma: -1}
	before := tr.Ratings()

	tr.ProcessGame([]Placement{
		{PlayerID: "p1", Score: 10},
		{PlayerID: "p2", Score: 5},
	})

	after := tr.Ratings()
	assert.Equal(t, before["p1"], after["p1"])
	assert.Equal(t, before["p2"], after["p2"])
	assert.Equal(t, 1, tr.NonConvergentCount())

	assert.Equal(t, 2, tr.Points("p1"))
	assert.Equal(t, 1, tr.Points("p2"))
}

// A failed game (all scores tied at zero) leaves every rating as it was
// rather than favoring any seat; points are still awarded.
func TestTracker_FailedGameAllTied(t *testing.T) {
	tr := newTestTracker("p1", "p2", "p3", "p4")
	before := tr.Ratings()

	tr.ProcessGame([]Placement{
		{PlayerID: "p1", Score: 0},
		{PlayerID: "p2", Score: 0},
		{PlayerID: "p3", Score: 0},
		{PlayerID: "p4", Score: 0},
	})

	after := tr.Ratings()
	sumBefore, sumAfter := 0.0, 0.0
	for id := range before {
		sumBefore += before[id].Mu
		sumAfter += after[id].Mu
		assert.LessOrEqual(t, after[id].Sigma, before[id].Sigma,
			"sigma should shrink or hold even under an arbitrary tiebreak order")
	}
	closeEnough(t, sumAfter, sumBefore, 0.05, "sum of means should be conserved")

	totalPoints := 0
	for _, id := range []string{"p1", "p2", "p3", "p4"} {
		totalPoints += tr.Points(id)
	}
	assert.Equal(t, 1+2+3+4, totalPoints)
}

func TestTracker_SinglePlayerGameIsNoop(t *testing.T) {
	tr := newTestTracker("p1", "p2")
	before := tr.Ratings()
	tr.ProcessGame([]Placement{{PlayerID: "p1", Score: 10}})
	assert.Equal(t, before, tr.Ratings())
}

func TestTracker_DisplayUsesMuMinus3Sigma(t *testing.T) {
	tr := newTestTracker("p1")
	r := tr.Ratings()["p1"]
	want := math.Round((r.Mu-3*r.Sigma)*10) / 10
	require.Equal(t, want, tr.Display("p1"))
}
