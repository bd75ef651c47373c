package rating

import "math"

// ModelParams are the multiplayer Bayesian rating model's tunables.
// Defaults match the standard TrueSkill-style constants.
type ModelParams struct {
	Mu0             float64
	Sigma0          float64
	Beta            float64
	Tau             float64
	DrawProbability float64
}

// DefaultModelParams returns the reference defaults.
func DefaultModelParams() ModelParams {
	sigma0 := 25.0 / 3.0
	return ModelParams{
		Mu0:             25.0,
		Sigma0:          sigma0,
		Beta:            sigma0 / 2,
		Tau:             sigma0 / 100,
		DrawProbability: 0.10,
	}
}

// Rating is a player's (mu, sigma) skill estimate.
type Rating struct {
	Mu    float64
	Sigma float64
}

// Default returns the model's initial rating for a new player.
func (p ModelParams) Default() Rating {
	return Rating{Mu: p.Mu0, Sigma: p.Sigma0}
}

// Display is the user-visible scalar, rounded to one decimal.
func (r Rating) Display() float64 {
	return math.Round((r.Mu-3*r.Sigma)*10) / 10
}

// updateRanked runs the multiplayer update for ratings already sorted best
// (index 0) to worst (index len-1), with no ties — the caller is
// responsible for breaking ties into a strict order first.
//
// It implements the TrueSkill factor graph (Herbrich et al.) specialized to
// one-person teams: a skill prior per player, a performance variable per
// player offset from skill by N(0, beta^2), a difference variable between
// each pair of adjacent-rank performances, and a truncation factor enforcing
// that each difference exceeds the draw margin. Because each performance
// variable touches at most two difference factors, the factor graph is a
// path, not a general loopy graph, so a bounded number of forward/backward
// sweeps reaches the exact expectation-propagation fixed point. Built
// directly on math.Erf/Erfc/Erfinv rather than a third-party rating
// library, since none of the available ones implement multiplayer
// free-for-all TrueSkill.
//
// Returns the updated ratings and whether the update converged. On a
// non-convergent update the caller must discard the result and keep the
// prior ratings.
func updateRanked(p ModelParams, ranked []Rating) ([]Rating, bool) {
	n := len(ranked)
	if n < 2 {
		return ranked, true
	}

	skillPrior := make([]gaussian, n)
	perfForwardMsg := make([]gaussian, n)
	perfMarginal := make([]gaussian, n)

	for i, r := range ranked {
		if !(r.Sigma > 0) {
			return ranked, false
		}
		inflated := r.Sigma*r.Sigma + p.Tau*p.Tau
		skillPrior[i] = fromMeanVar(r.Mu, inflated)
		fwd := addVariance(skillPrior[i], p.Beta*p.Beta)
		perfForwardMsg[i] = fwd
		perfMarginal[i] = fwd
	}

	m := n - 1
	sumMsgToLeft := make([]gaussian, m)
	sumMsgToRight := make([]gaussian, m)
	sumMsgToDiff := make([]gaussian, m)
	truncMsg := make([]gaussian, m)
	diffMarginal := make([]gaussian, m)

	drawMargin := calcDrawMargin(p.DrawProbability, p.Beta)

	const maxIter = 10
	const minDelta = 1e-4

	converged := false
	for iter := 0; iter < maxIter; iter++ {
		for k := 0; k < m; k++ {
			cavLeft := perfMarginal[k].sub(sumMsgToLeft[k])
			cavRight := perfMarginal[k+1].sub(sumMsgToRight[k])
			if cavLeft.pi <= 0 || cavRight.pi <= 0 {
				return ranked, false
			}
			msg := fromMeanVar(cavLeft.mean()-cavRight.mean(), cavLeft.variance()+cavRight.variance())
			diffMarginal[k] = diffMarginal[k].sub(sumMsgToDiff[k]).add(msg)
			sumMsgToDiff[k] = msg
		}

		maxDelta := 0.0
		for k := 0; k < m; k++ {
			newMarginal, newMsg, delta, ok := truncate(diffMarginal[k], truncMsg[k], drawMargin)
			if !ok {
				return ranked, false
			}
			diffMarginal[k] = newMarginal
			truncMsg[k] = newMsg
			if delta > maxDelta {
				maxDelta = delta
			}
		}

		for k := m - 1; k >= 0; k-- {
			cavDiff := diffMarginal[k].sub(sumMsgToDiff[k])
			cavLeftForRight := perfMarginal[k].sub(sumMsgToLeft[k])
			cavRightForLeft := perfMarginal[k+1].sub(sumMsgToRight[k])
			if cavDiff.pi <= 0 || cavLeftForRight.pi <= 0 || cavRightForLeft.pi <= 0 {
				return ranked, false
			}

			msgToLeft := fromMeanVar(cavDiff.mean()+cavRightForLeft.mean(), cavDiff.variance()+cavRightForLeft.variance())
			msgToRight := fromMeanVar(cavLeftForRight.mean()-cavDiff.mean(), cavDiff.variance()+cavLeftForRight.variance())

			perfMarginal[k] = perfMarginal[k].sub(sumMsgToLeft[k]).add(msgToLeft)
			sumMsgToLeft[k] = msgToLeft
			perfMarginal[k+1] = perfMarginal[k+1].sub(sumMsgToRight[k]).add(msgToRight)
			sumMsgToRight[k] = msgToRight
		}

		if maxDelta <= minDelta {
			converged = true
			break
		}
	}
	if !converged {
		return ranked, false
	}

	out := make([]Rating, n)
	for i := range ranked {
		cavPerf := perfMarginal[i].sub(perfForwardMsg[i])
		if cavPerf.pi <= 0 {
			return ranked, false
		}
		msgToSkill := addVariance(cavPerf, p.Beta*p.Beta)
		skillMarginal := skillPrior[i].add(msgToSkill)
		if skillMarginal.pi <= 0 || math.IsNaN(skillMarginal.pi) || math.IsNaN(skillMarginal.tau) {
			return ranked, false
		}
		sigma2 := 1 / skillMarginal.pi
		out[i] = Rating{Mu: skillMarginal.tau * sigma2, Sigma: math.Sqrt(sigma2)}
		if out[i].Sigma <= 0 || math.IsNaN(out[i].Mu) || math.IsNaN(out[i].Sigma) {
			return ranked, false
		}
	}
	return out, true
}

// calcDrawMargin derives the performance-difference margin below which a
// result counts as a draw, from the model's draw probability, for a
// one-on-one (team size 1 vs 1) comparison.
func calcDrawMargin(drawProbability, beta float64) float64 {
	return normInv((drawProbability+1)/2) * math.Sqrt2 * beta
}

// truncate applies the "performance difference exceeds the draw margin"
// evidence to a difference variable's current marginal via expectation
// propagation, returning the updated marginal, the new message this factor
// sends on that edge, and the message's delta from its previous value (for
// convergence tracking).
func truncate(marginal, prevMsg gaussian, margin float64) (newMarginal, newMsg gaussian, delta float64, ok bool) {
	cavity := marginal.sub(prevMsg)
	if cavity.pi <= 0 {
		return gaussian{}, gaussian{}, 0, false
	}
	sqrtC := math.Sqrt(cavity.pi)
	mean := cavity.tau / cavity.pi
	x := (mean - margin) * sqrtC

	v, w := winFactors(x)
	denom := 1 - w
	if denom <= 0 {
		return gaussian{}, gaussian{}, 0, false
	}

	newPi := cavity.pi / denom
	newTau := (cavity.tau + sqrtC*v) / denom
	newMarginal = gaussian{pi: newPi, tau: newTau}
	newMsg = newMarginal.sub(cavity)
	delta = math.Max(math.Abs(newMsg.pi-prevMsg.pi), math.Abs(newMsg.tau-prevMsg.tau))
	return newMarginal, newMsg, delta, true
}

// winFactors returns the truncated-Gaussian moment-matching coefficients v
// and w for a strict "greater than x" (non-draw win) outcome.
func winFactors(x float64) (v, w float64) {
	denom := normCDF(x)
	if denom < 1e-10 {
		v = -x
	} else {
		v = normPDF(x) / denom
	}
	w = v * (v + x)
	return v, w
}
