package trueskill

import "math"

// minDensity guards the truncated-Gaussian ratios against underflow when an
// outcome is extremely surprising.
const minDensity = 1e-300

func pdf(x float64) float64 {
	return math.Exp(-x*x/2) / math.Sqrt2 / math.SqrtPi
}

func cdf(x float64) float64 {
	return 0.5 * math.Erfc(-x/math.Sqrt2)
}

// ppf is the inverse of cdf for p in (0,1).
func ppf(p float64) float64 {
	return -math.Sqrt2 * math.Erfcinv(2*p)
}

// winFactors returns the mean (v) and variance (w) correction factors for a
// decisive outcome, t being the normalized performance difference winner-loser
// and e the normalized draw margin.
func winFactors(t, e float64) (v, w float64) {
	x := t - e
	d := cdf(x)
	if d < minDensity {
		return -x, 1
	}
	v = pdf(x) / d
	return v, v * (v + x)
}

// drawFactors returns the correction factors for a draw.
func drawFactors(t, e float64) (v, w float64) {
	a, b := e-t, -e-t
	d := cdf(a) - cdf(b)
	if d < minDensity {
		if t < 0 {
			return -t - e, 1
		}
		return -t + e, 1
	}
	v = (pdf(b) - pdf(a)) / d
	w = v*v + (a*pdf(a)-b*pdf(b))/d
	return v, w
}
