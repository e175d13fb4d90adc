package generate

import "math"

// Rand is the randomness a sampler needs; *rand.Rand satisfies it.
type Rand interface {
	Float64() float64
}

// ArgMax returns the index of the largest value, lowest index on ties.
func ArgMax(xs []float64) int {
	best := 0
	for i, x := range xs {
		if x > xs[best] {
			best = i
		}
	}
	return best
}

// Softmax turns logits into a probability distribution after dividing by
// temperature. The maximum logit is subtracted before scaling, so the top
// entry maps to exactly 0 and no scaled value can overflow to +Inf.
func Softmax(logits []float64, temperature float64) []float64 {
	maxv := math.Inf(-1)
	for _, l := range logits {
		if l > maxv {
			maxv = l
		}
	}

	out := make([]float64, len(logits))
	var sum float64
	for i, l := range logits {
		var e float64
		switch {
		case math.IsInf(maxv, 0):
			// Infinite maximum: only the maxima keep weight.
			if l == maxv {
				e = 1
			}
		case math.IsInf(l, -1):
		default:
			e = math.Exp((l - maxv) / temperature)
		}
		out[i] = e
		sum += e
	}
	for i := range out {
		out[i] /= sum
	}
	return out
}

// Categorical draws an index with probability weights[i]/sum(weights).
// Zero-weight indices are never drawn.
func Categorical(rng Rand, weights []float64) int {
	var total float64
	for _, w := range weights {
		total += w
	}
	r := rng.Float64() * total

	var cum float64
	last := len(weights) - 1
	for i, w := range weights {
		if w <= 0 {
			continue
		}
		cum += w
		if r < cum {
			return i
		}
		last = i
	}
	return last
}
