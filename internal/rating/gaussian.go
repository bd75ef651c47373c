package rating

import "math"

// gaussian holds a univariate normal distribution in natural parameters
// (precision pi = 1/variance, precision-weighted mean tau = mu/variance).
// Natural parameters turn the sum-product messages used below into plain
// addition/subtraction, which is why the factor graph is expressed in terms
// of gaussian rather than (mu, sigma) pairs.
type gaussian struct {
	pi, tau float64
}

func fromMeanVar(mean, variance float64) gaussian {
	pi := 1 / variance
	return gaussian{pi: pi, tau: mean * pi}
}

func (g gaussian) mean() float64 {
	if g.pi == 0 {
		return 0
	}
	return g.tau / g.pi
}

func (g gaussian) variance() float64 {
	if g.pi <= 0 {
		return math.Inf(1)
	}
	return 1 / g.pi
}

func (g gaussian) add(o gaussian) gaussian {
	return gaussian{pi: g.pi + o.pi, tau: g.tau + o.tau}
}

func (g gaussian) sub(o gaussian) gaussian {
	return gaussian{pi: g.pi - o.pi, tau: g.tau - o.tau}
}

// addVariance is the forward and backward message transform for a Gaussian
// "add independent noise" factor (Y = X + N(0, extraVar)): convolving a
// distribution with extra variance shrinks its precision by the same
// closed-form ratio in either direction, which is why the same helper
// implements both the skill->performance and performance->skill messages.
func addVariance(g gaussian, extraVar float64) gaussian {
	denom := 1 + extraVar*g.pi
	return gaussian{pi: g.pi / denom, tau: g.tau / denom}
}

func normPDF(x float64) float64 {
	return math.Exp(-x*x/2) / math.Sqrt(2*math.Pi)
}

func normCDF(x float64) float64 {
	return 0.5 * math.Erfc(-x/math.Sqrt2)
}

// normInv is the standard normal quantile function (probit), built on the
// standard library's Erfinv: it is a two-line identity and not worth a
// dependency of its own.
func normInv(p float64) float64 {
	return math.Sqrt2 * math.Erfinv(2*p-1)
}
