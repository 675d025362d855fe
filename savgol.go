package gocvcore

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"go.trai.ch/zerr"
)

const (
	savgolDegree    = 3
	savgolMinWindow = 5
)

// SavGol applies a cubic Savitzky-Golay filter. An even window is widened by one.
// Windows shorter than five samples or longer than the input return an unchanged copy.
// The first and last half-window are evaluated on the polynomial fitted to the
// first and last full window respectively.
func SavGol(values []float64, window int) ([]float64, error) {
	if window%2 == 0 {
		window++
	}
	n := len(values)
	if window < savgolMinWindow || window > n {
		return clone(values), nil
	}

	proj, err := savgolProjection(window)
	if err != nil {
		return nil, err
	}

	half := window / 2
	out := make([]float64, n)

	center := evalWeights(proj, 0)
	for i := half; i < n-half; i++ {
		out[i] = floats.Dot(center, values[i-half:i+half+1])
	}

	head := values[:window]
	tail := values[n-window:]
	for i := 0; i < half; i++ {
		out[i] = floats.Dot(evalWeights(proj, float64(i-half)/float64(half)), head)
		out[n-half+i] = floats.Dot(evalWeights(proj, float64(i+1)/float64(half)), tail)
	}
	return out, nil
}

// savgolProjection returns the least-squares projection P (degree+1 x window) that maps
// window samples to polynomial coefficients. Positions are scaled to [-1, 1].
func savgolProjection(window int) (*mat.Dense, error) {
	half := window / 2
	cols := savgolDegree + 1

	a := mat.NewDense(window, cols, nil)
	for i := 0; i < window; i++ {
		t := float64(i-half) / float64(half)
		p := 1.0
		for j := 0; j < cols; j++ {
			a.Set(i, j, p)
			p *= t
		}
	}

	ident := mat.NewDense(window, window, nil)
	for i := 0; i < window; i++ {
		ident.Set(i, i, 1)
	}

	var proj mat.Dense
	if err := proj.Solve(a, ident); err != nil {
		return nil, zerr.With(zerr.Wrap(err, "savitzky-golay projection"), "window", window)
	}
	return &proj, nil
}

// evalWeights returns the filter weights that evaluate the fitted polynomial at scaled position t.
func evalWeights(proj *mat.Dense, t float64) []float64 {
	cols, window := proj.Dims()
	basis := make([]float64, cols)
	p := 1.0
	for j := range basis {
		basis[j] = p
		p *= t
	}

	w := mat.NewVecDense(window, nil)
	w.MulVec(proj.T(), mat.NewVecDense(cols, basis))
	return w.RawVector().Data
}
