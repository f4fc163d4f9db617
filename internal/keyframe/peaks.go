package keyframe

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

const (
	baselineMaxIterations = 100
	baselineTolerance     = 1e-3
)

// Baseline estimates the slowly varying floor of a signal by iteratively
// fitting a polynomial of the given degree and clamping the signal to the
// fit. Subtracting the baseline before peak picking keeps gradual lighting
// drift from masking real scene cuts.
func Baseline(y []float64, deg int) []float64 {
	n := len(y)
	base := make([]float64, n)
	copy(base, y)
	if n == 0 {
		return base
	}

	order := deg + 1
	if n < order {
		return base
	}
	work := make([]float64, n)
	copy(work, y)

	// Abscissa scaled so the Vandermonde matrix stays well conditioned.
	maxAbs := 0.0
	for _, v := range y {
		if a := math.Abs(v); a > maxAbs {
			maxAbs = a
		}
	}
	cond := math.Pow(maxAbs, 1.0/float64(order))
	x := make([]float64, n)
	if n > 1 {
		floats.Span(x, 0, cond)
	}

	vander := mat.NewDense(n, order, nil)
	for i := 0; i < n; i++ {
		v := 1.0
		for j := order - 1; j >= 0; j-- {
			vander.Set(i, j, v)
			v *= x[i]
		}
	}

	coeffs := mat.NewVecDense(order, nil)
	for i := 0; i < order; i++ {
		coeffs.SetVec(i, 1)
	}

	next := mat.NewVecDense(order, nil)
	for iter := 0; iter < baselineMaxIterations; iter++ {
		if err := next.SolveVec(vander, mat.NewVecDense(n, work)); err != nil {
			break
		}

		var delta mat.VecDense
		delta.SubVec(next, coeffs)
		if ref := mat.Norm(coeffs, 2); ref > 0 && mat.Norm(&delta, 2)/ref < baselineTolerance {
			break
		}
		coeffs.CopyVec(next)

		var fit mat.VecDense
		fit.MulVec(vander, coeffs)
		for i := 0; i < n; i++ {
			base[i] = fit.AtVec(i)
			if base[i] < work[i] {
				work[i] = base[i]
			}
		}
	}
	return base
}

// Indexes returns the positions of peaks in y. The threshold is relative:
// thres of 0.4 keeps peaks rising above 40% of the signal's range. Plateaus
// of equal values are resolved by splitting at the median and borrowing the
// neighboring slopes. When minDist > 1, smaller peaks within minDist of a
// larger one are suppressed.
//
// Signals shorter than three samples have no interior and yield no peaks.
func Indexes(y []float64, thres float64, minDist int) []int {
	n := len(y)
	if n < 3 {
		return nil
	}

	minVal, maxVal := y[0], y[0]
	for _, v := range y[1:] {
		if v < minVal {
			minVal = v
		}
		if v > maxVal {
			maxVal = v
		}
	}
	threshold := thres*(maxVal-minVal) + minVal

	dy := make([]float64, n-1)
	for i := 0; i < n-1; i++ {
		dy[i] = y[i+1] - y[i]
	}

	if !propagatePlateaus(dy) {
		return nil
	}

	var peaks []int
	for i := 1; i < n-1; i++ {
		if dy[i-1] > 0 && dy[i] < 0 && y[i] > threshold {
			peaks = append(peaks, i)
		}
	}

	if len(peaks) > 1 && minDist > 1 {
		peaks = suppressNearby(y, peaks, minDist)
	}
	return peaks
}

// propagatePlateaus replaces zero runs in the derivative with the adjacent
// slopes so flat-topped peaks register once. Returns false when the whole
// signal is flat.
func propagatePlateaus(dy []float64) bool {
	var zeros []int
	for i, v := range dy {
		if v == 0 {
			zeros = append(zeros, i)
		}
	}
	if len(zeros) == len(dy) {
		return false
	}
	if len(zeros) == 0 {
		return true
	}

	var plateaus [][]int
	start := 0
	for i := 1; i <= len(zeros); i++ {
		if i == len(zeros) || zeros[i] != zeros[i-1]+1 {
			plateaus = append(plateaus, zeros[start:i])
			start = i
		}
	}

	// Leading and trailing plateaus have only one real neighbor.
	if len(plateaus) > 0 && plateaus[0][0] == 0 {
		p := plateaus[0]
		fill := dy[p[len(p)-1]+1]
		for _, idx := range p {
			dy[idx] = fill
		}
		plateaus = plateaus[1:]
	}
	if len(plateaus) > 0 {
		p := plateaus[len(plateaus)-1]
		if p[len(p)-1] == len(dy)-1 {
			fill := dy[p[0]-1]
			for _, idx := range p {
				dy[idx] = fill
			}
			plateaus = plateaus[:len(plateaus)-1]
		}
	}

	for _, p := range plateaus {
		median := medianIndex(p)
		left := dy[p[0]-1]
		right := dy[p[len(p)-1]+1]
		for _, idx := range p {
			if float64(idx) < median {
				dy[idx] = left
			} else {
				dy[idx] = right
			}
		}
	}
	return true
}

func medianIndex(p []int) float64 {
	mid := len(p) / 2
	if len(p)%2 == 1 {
		return float64(p[mid])
	}
	return (float64(p[mid-1]) + float64(p[mid])) / 2
}

// suppressNearby keeps the larger of any two peaks closer than minDist.
// Ties break toward the earlier peak.
func suppressNearby(y []float64, peaks []int, minDist int) []int {
	ordered := make([]int, len(peaks))
	copy(ordered, peaks)
	sort.SliceStable(ordered, func(i, j int) bool {
		return y[ordered[i]] > y[ordered[j]]
	})

	removed := make([]bool, len(y))
	isPeak := make([]bool, len(y))
	for _, p := range peaks {
		isPeak[p] = true
	}

	for _, p := range ordered {
		if removed[p] {
			continue
		}
		lo := p - minDist
		if lo < 0 {
			lo = 0
		}
		hi := p + minDist
		if hi > len(y)-1 {
			hi = len(y) - 1
		}
		for i := lo; i <= hi; i++ {
			removed[i] = true
		}
		removed[p] = false
	}

	var kept []int
	for i := range y {
		if isPeak[i] && !removed[i] {
			kept = append(kept, i)
		}
	}
	return kept
}
