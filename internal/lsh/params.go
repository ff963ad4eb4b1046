package lsh

import "math"

const (
	falsePositiveWeight = 0.5
	falseNegativeWeight = 0.5

	// integrationSteps is the number of Simpson intervals (must be even).
	integrationSteps = 200
)

// Params is a banding configuration: Bands bands of Rows rows each.
type Params struct {
	Bands int `json:"bands"`
	Rows  int `json:"rows"`
}

// OptimalParams chooses the (bands, rows) split of numPerm that minimizes the
// weighted sum of false-positive and false-negative probability mass around
// threshold. A pair with Jaccard similarity s collides in at least one band
// with probability 1 - (1 - s^r)^b.
func OptimalParams(threshold float64, numPerm int) Params {
	best := Params{Bands: 1, Rows: 1}
	minError := math.Inf(1)

	for b := 1; b <= numPerm; b++ {
		maxRows := numPerm / b
		for r := 1; r <= maxRows; r++ {
			fp := falsePositiveProbability(threshold, b, r)
			fn := falseNegativeProbability(threshold, b, r)
			err := fp*falsePositiveWeight + fn*falseNegativeWeight
			if err < minError {
				minError = err
				best = Params{Bands: b, Rows: r}
			}
		}
	}
	return best
}

// CollisionProbability is the chance that two signatures with Jaccard
// similarity s share at least one band.
func CollisionProbability(s float64, p Params) float64 {
	return 1 - math.Pow(1-math.Pow(s, float64(p.Rows)), float64(p.Bands))
}

func falsePositiveProbability(threshold float64, b, r int) float64 {
	p := Params{Bands: b, Rows: r}
	return integrate(func(s float64) float64 {
		return CollisionProbability(s, p)
	}, 0, threshold)
}

func falseNegativeProbability(threshold float64, b, r int) float64 {
	p := Params{Bands: b, Rows: r}
	return integrate(func(s float64) float64 {
		return 1 - CollisionProbability(s, p)
	}, threshold, 1)
}

// integrate applies composite Simpson's rule over [lo, hi].
func integrate(f func(float64) float64, lo, hi float64) float64 {
	if hi <= lo {
		return 0
	}
	h := (hi - lo) / integrationSteps
	sum := f(lo) + f(hi)
	for i := 1; i < integrationSteps; i++ {
		x := lo + float64(i)*h
		if i%2 == 1 {
			sum += 4 * f(x)
		} else {
			sum += 2 * f(x)
		}
	}
	return sum * h / 3
}
