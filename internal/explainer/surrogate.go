package explainer

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// Background policies for the synthetic reference distribution
const (
	BackgroundZeros    = "zeros"
	BackgroundInstance = "instance"
)

const (
	backgroundRows = 10
	ridgeAlpha     = 1.0
)

// ErrNoFeatures is returned when there is nothing to explain
var ErrNoFeatures = errors.New("no features to explain")

// PredictFunc returns the positive-class probability of every row
type PredictFunc func(X [][]float64) ([]float64, error)

// Contribution is one weighted feature condition of a local explanation
type Contribution struct {
	Feature   int
	Name      string
	Condition string
	Weight    float64
}

type surrogate struct {
	Contributions   []Contribution
	Intercept       float64
	Score           float64
	LocalPrediction float64
}

// discretizer bins each feature by the quartiles of the background
type discretizer struct {
	names      []string
	thresholds [][]float64
}

func newDiscretizer(background [][]float64, names []string) *discretizer {
	d := &discretizer{names: names, thresholds: make([][]float64, len(names))}
	col := make([]float64, len(background))
	for j := range names {
		for i, row := range background {
			col[i] = row[j]
		}
		sort.Float64s(col)

		var qs []float64
		for _, p := range []float64{0.25, 0.5, 0.75} {
			q := stat.Quantile(p, stat.Empirical, col, nil)
			if len(qs) == 0 || q > qs[len(qs)-1] {
				qs = append(qs, q)
			}
		}
		d.thresholds[j] = qs
	}
	return d
}

func (d *discretizer) bin(j int, v float64) int {
	b := 0
	for _, t := range d.thresholds[j] {
		if v > t {
			b++
		}
	}
	return b
}

func (d *discretizer) label(j, b int) string {
	ts := d.thresholds[j]
	name := d.names[j]
	switch {
	case b == 0:
		return fmt.Sprintf("%s <= %.2f", name, ts[0])
	case b >= len(ts):
		return fmt.Sprintf("%s > %.2f", name, ts[len(ts)-1])
	default:
		return fmt.Sprintf("%.2f < %s <= %.2f", ts[b-1], name, ts[b])
	}
}

func buildBackground(policy string, instance []float64) ([][]float64, error) {
	bg := make([][]float64, backgroundRows)
	for i := range bg {
		bg[i] = make([]float64, len(instance))
		switch policy {
		case BackgroundZeros, "":
		case BackgroundInstance:
			copy(bg[i], instance)
		default:
			return nil, fmt.Errorf("unknown background policy: %q", policy)
		}
	}
	return bg, nil
}

// fitSurrogate perturbs instance, queries predict and fits a weighted ridge
// model over the binary "same bin as the instance" representation.
func fitSurrogate(instance []float64, names []string, predict PredictFunc, cfg Config) (*surrogate, error) {
	p := len(instance)
	if p == 0 {
		return nil, ErrNoFeatures
	}

	background, err := buildBackground(cfg.Background, instance)
	if err != nil {
		return nil, err
	}

	center := make([]float64, p)
	spread := make([]float64, p)
	col := make([]float64, len(background))
	for j := 0; j < p; j++ {
		for i, row := range background {
			col[i] = row[j]
		}
		center[j], spread[j] = stat.PopMeanStdDev(col, nil)
		if spread[j] == 0 {
			spread[j] = 1
		}
	}
	disc := newDiscretizer(background, names)

	n := cfg.NumSamples
	if n < 2 {
		n = 2
	}
	rng := rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15))

	samples := make([][]float64, n)
	samples[0] = append([]float64(nil), instance...)
	for i := 1; i < n; i++ {
		row := make([]float64, p)
		for j := range row {
			row[j] = rng.NormFloat64()*spread[j] + center[j]
		}
		samples[i] = row
	}

	instanceBins := make([]int, p)
	for j, v := range instance {
		instanceBins[j] = disc.bin(j, v)
	}

	binary := make([][]float64, n)
	weights := make([]float64, n)
	kernelWidth := 0.75 * math.Sqrt(float64(p))
	for i, row := range samples {
		z := make([]float64, p)
		var d2 float64
		for j, v := range row {
			if disc.bin(j, v) == instanceBins[j] {
				z[j] = 1
			} else {
				d2++
			}
		}
		binary[i] = z
		weights[i] = math.Sqrt(math.Exp(-d2 / (kernelWidth * kernelWidth)))
	}

	y, err := predict(samples)
	if err != nil {
		return nil, fmt.Errorf("prediction callback failed: %w", err)
	}
	if len(y) != n {
		return nil, fmt.Errorf("prediction callback returned %d values for %d samples", len(y), n)
	}

	all := make([]int, p)
	for j := range all {
		all[j] = j
	}
	selected := all
	k := cfg.NumFeatures
	if k > 0 && k < p {
		coef, _, err := weightedRidge(binary, y, weights, all)
		if err != nil {
			return nil, err
		}
		selected = append([]int(nil), all...)
		sort.SliceStable(selected, func(a, b int) bool {
			return math.Abs(coef[selected[a]]) > math.Abs(coef[selected[b]])
		})
		selected = selected[:k]
	}

	coef, intercept, err := weightedRidge(binary, y, weights, selected)
	if err != nil {
		return nil, err
	}

	out := &surrogate{
		Intercept:       intercept,
		Score:           weightedScore(binary, y, weights, selected, coef, intercept),
		LocalPrediction: intercept + floats.Sum(coef),
	}
	for i, j := range selected {
		out.Contributions = append(out.Contributions, Contribution{
			Feature:   j,
			Name:      names[j],
			Condition: disc.label(j, instanceBins[j]),
			Weight:    coef[i],
		})
	}
	sort.SliceStable(out.Contributions, func(a, b int) bool {
		return math.Abs(out.Contributions[a].Weight) > math.Abs(out.Contributions[b].Weight)
	})
	return out, nil
}

// weightedRidge solves (XᵀWX + αI)β = XᵀWy on weight-centered columns cols
// of X and returns β and the intercept.
func weightedRidge(X [][]float64, y, w []float64, cols []int) ([]float64, float64, error) {
	n, p := len(X), len(cols)

	xMean := make([]float64, p)
	col := make([]float64, n)
	for j, c := range cols {
		for i := range X {
			col[i] = X[i][c]
		}
		xMean[j] = stat.Mean(col, w)
	}
	yMean := stat.Mean(y, w)

	a := mat.NewDense(n, p, nil)
	b := mat.NewVecDense(n, nil)
	for i := 0; i < n; i++ {
		sw := math.Sqrt(w[i])
		for j, c := range cols {
			a.Set(i, j, (X[i][c]-xMean[j])*sw)
		}
		b.SetVec(i, (y[i]-yMean)*sw)
	}

	var gram mat.SymDense
	gram.SymOuterK(1, a.T())
	for j := 0; j < p; j++ {
		gram.SetSym(j, j, gram.At(j, j)+ridgeAlpha)
	}

	var rhs mat.VecDense
	rhs.MulVec(a.T(), b)

	var chol mat.Cholesky
	if ok := chol.Factorize(&gram); !ok {
		return nil, 0, errors.New("surrogate system is not positive definite")
	}
	var beta mat.VecDense
	if err := chol.SolveVecTo(&beta, &rhs); err != nil {
		return nil, 0, fmt.Errorf("failed to solve surrogate system: %w", err)
	}

	coef := make([]float64, p)
	for j := range coef {
		coef[j] = beta.AtVec(j)
	}
	return coef, yMean - floats.Dot(coef, xMean), nil
}

// weightedScore is the weighted coefficient of determination of the fit
func weightedScore(X [][]float64, y, w []float64, cols []int, coef []float64, intercept float64) float64 {
	yMean := stat.Mean(y, w)
	var ssRes, ssTot float64
	for i, row := range X {
		pred := intercept
		for j, c := range cols {
			pred += coef[j] * row[c]
		}
		ssRes += w[i] * (y[i] - pred) * (y[i] - pred)
		ssTot += w[i] * (y[i] - yMean) * (y[i] - yMean)
	}
	if ssTot == 0 {
		if ssRes == 0 {
			return 1
		}
		return 0
	}
	return 1 - ssRes/ssTot
}
