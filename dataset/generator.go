package dataset

import (
	"math"
	"sort"
	"strconv"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/YuminosukeSato/prepflow/pkg/errors"
	"github.com/YuminosukeSato/prepflow/table"
)

// Phases understood by the built-in generator.
const (
	PhaseClean = "clean"
	PhaseEDA   = "eda"
	PhaseMV    = "mv"
	PhaseML    = "ml"
	PhaseML2   = "ml2"
)

// Generate is the built-in synthetic data source. Each phase produces a
// table with the defects its downstream exercise needs: the clean phase
// injects missing values, outliers, broken numeric cells and duplicate
// rows; the ml phases produce a noisy, imbalanced binary target.
func Generate(phase string, seed int64, n int) (*table.Table, error) {
	if n <= 0 {
		return nil, errors.NewValidationError("n", "row count must be positive", n)
	}
	switch phase {
	case PhaseClean:
		return generateClean(seed, n), nil
	case PhaseEDA:
		return generateEDA(seed, n), nil
	case PhaseMV:
		return generateMV(seed, n), nil
	case PhaseML, PhaseML2:
		return generateML(seed, n), nil
	default:
		return nil, errors.NewValidationError("phase", "unknown phase", phase)
	}
}

// source builds the seeded random state shared by one generation call.
func source(seed int64) (*rand.Rand, rand.Source) {
	src := rand.NewSource(uint64(seed))
	return rand.New(src), src
}

// choice draws a level index from cumulative probabilities.
func choice(rnd *rand.Rand, levels []string, probs []float64) string {
	u := rnd.Float64()
	acc := 0.0
	for i, p := range probs {
		acc += p
		if u < acc {
			return levels[i]
		}
	}
	return levels[len(levels)-1]
}

func generateClean(seed int64, n int) *table.Table {
	rnd, src := source(seed)
	normX1 := distuv.Normal{Mu: 100, Sigma: 20, Src: src}
	normX2 := distuv.Normal{Mu: 50, Sigma: 10, Src: src}
	expX3 := distuv.Exponential{Rate: 1.0 / 30.0, Src: src}

	x1 := make([]float64, n)
	x2 := make([]float64, n)
	x3 := make([]float64, n)
	segment := make([]string, n)
	target := make([]float64, n)
	for i := 0; i < n; i++ {
		x1[i] = normX1.Rand()
		x2[i] = normX2.Rand()
		x3[i] = expX3.Rand()
		segment[i] = choice(rnd, []string{"A", "B", "C"}, []float64{0.5, 0.3, 0.2})
		if rnd.Float64() < 0.3 {
			target[i] = 1
		}
	}

	// Missing values, 10-20 % per numeric column.
	for _, col := range [][]float64{x1, x2, x3} {
		rate := 0.10 + rnd.Float64()*0.10
		for i := 0; i < n; i++ {
			if rnd.Float64() < rate {
				col[i] = math.NaN()
			}
		}
	}

	// Extreme outliers in x1, 2 % of rows.
	for _, i := range sampleWithout(rnd, n, n/50) {
		x1[i] = 300 + rnd.Float64()*100
	}

	// Broken non-numeric cells in x2, ~1 % of rows. x2 becomes
	// string-backed while keeping its numeric designation.
	x2raw := make([]string, n)
	for i, v := range x2 {
		if math.IsNaN(v) {
			x2raw[i] = ""
			continue
		}
		x2raw[i] = strconv.FormatFloat(v, 'g', -1, 64)
	}
	nBroken := n / 100
	if nBroken < 1 {
		nBroken = 1
	}
	for _, i := range sampleWithout(rnd, n, nBroken) {
		x2raw[i] = "oops"
	}

	t := table.MustNew(
		table.NewNumeric("x1", x1),
		table.NewRawNumeric("x2", x2raw),
		table.NewNumeric("x3", x3),
		table.NewCategorical("segment", segment),
		table.NewNumeric("target", target),
	)

	// Duplicate 3 % of rows (sampled with replacement) onto the end.
	nDup := int(float64(n) * 0.03)
	if nDup == 0 {
		return t
	}
	rows := make([]int, 0, n+nDup)
	for i := 0; i < n; i++ {
		rows = append(rows, i)
	}
	for i := 0; i < nDup; i++ {
		rows = append(rows, rnd.Intn(n))
	}
	return t.Select(rows)
}

func generateEDA(seed int64, n int) *table.Table {
	rnd, src := source(seed)
	ageDist := distuv.Normal{Mu: 40, Sigma: 15, Src: src}
	incomeDist := distuv.LogNormal{Mu: 10.5, Sigma: 0.8, Src: src}
	spendDist := distuv.Gamma{Alpha: 2, Beta: 1.0 / 500.0, Src: src}
	visitsDist := distuv.Poisson{Lambda: 5, Src: src}

	age := make([]float64, n)
	income := make([]float64, n)
	spend := make([]float64, n)
	visits := make([]float64, n)
	segment := make([]string, n)
	channel := make([]string, n)
	churn := make([]float64, n)
	for i := 0; i < n; i++ {
		age[i] = math.Floor(clamp(ageDist.Rand(), 18, 80))
		income[i] = incomeDist.Rand()
		spend[i] = spendDist.Rand()
		visits[i] = visitsDist.Rand()
		segment[i] = choice(rnd, []string{"A", "B", "C"}, []float64{0.4, 0.35, 0.25})
		channel[i] = choice(rnd, []string{"web", "store", "app"}, []float64{0.5, 0.3, 0.2})
		if rnd.Float64() < 0.25 {
			churn[i] = 1
		}
	}

	for _, col := range [][]float64{income, spend} {
		rate := 0.05 + rnd.Float64()*0.05
		for i := 0; i < n; i++ {
			if rnd.Float64() < rate {
				col[i] = math.NaN()
			}
		}
	}
	for _, i := range sampleWithout(rnd, n, int(float64(n)*0.015)) {
		income[i] = 200000 + rnd.Float64()*300000
	}

	return table.MustNew(
		table.NewNumeric("age", age),
		table.NewNumeric("income", income),
		table.NewNumeric("spend", spend),
		table.NewNumeric("visits", visits),
		table.NewCategorical("segment", segment),
		table.NewCategorical("channel", channel),
		table.NewNumeric("churn", churn),
	)
}

func generateMV(seed int64, n int) *table.Table {
	rnd, src := source(seed)
	noise := distuv.Normal{Mu: 0, Sigma: math.Sqrt2, Src: src}

	means := [][]float64{
		{10, 5, 15, 20, 10, 25, 8, 12},
		{30, 25, 35, 40, 30, 45, 28, 32},
		{50, 45, 55, 60, 50, 65, 48, 52},
	}
	perCluster := n / 3
	cols := make([][]float64, 8)
	for j := range cols {
		cols[j] = make([]float64, 0, n)
	}
	for c := 0; c < 3; c++ {
		size := perCluster
		if c == 2 {
			size = n - 2*perCluster
		}
		for i := 0; i < size; i++ {
			for j := 0; j < 8; j++ {
				cols[j] = append(cols[j], means[c][j]+noise.Rand())
			}
		}
	}

	// Collinearity: x5 tracks x1 plus unit noise.
	unit := distuv.Normal{Mu: 0, Sigma: 1, Src: src}
	for i := 0; i < n; i++ {
		cols[4][i] = cols[0][i] + unit.Rand()
	}

	// Light missing values on the first four columns.
	for j := 0; j < 4; j++ {
		rate := 0.02 + rnd.Float64()*0.03
		for i := 0; i < n; i++ {
			if rnd.Float64() < rate {
				cols[j][i] = math.NaN()
			}
		}
	}

	tcols := make([]*table.Column, 8)
	for j := range tcols {
		tcols[j] = table.NewNumeric("x"+strconv.Itoa(j+1), cols[j])
	}
	return table.MustNew(tcols...)
}

func generateML(seed int64, n int) *table.Table {
	rnd, src := source(seed)
	unit := distuv.Normal{Mu: 0, Sigma: 1, Src: src}

	feats := make([][]float64, 6)
	for j := range feats {
		feats[j] = make([]float64, n)
	}
	segment := make([]string, n)
	prob := make([]float64, n)
	for i := 0; i < n; i++ {
		for j := 0; j < 6; j++ {
			feats[j][i] = unit.Rand()
		}
		segment[i] = choice(rnd, []string{"A", "B", "C"}, []float64{0.4, 0.35, 0.25})
		z := 0.5*feats[0][i] + 0.3*feats[1][i] - 0.2*feats[2][i] + 0.4*feats[3][i] + unit.Rand()*0.5
		prob[i] = 1.0 / (1.0 + math.Exp(-z))
	}

	// Threshold at the 70th percentile so roughly 30 % of rows are positive.
	sorted := append([]float64(nil), prob...)
	sort.Float64s(sorted)
	threshold := stat.Quantile(0.70, stat.LinInterp, sorted, nil)

	target := make([]float64, n)
	for i := 0; i < n; i++ {
		if prob[i] > threshold {
			target[i] = 1
		}
	}

	tcols := make([]*table.Column, 0, 8)
	for j := 0; j < 6; j++ {
		tcols = append(tcols, table.NewNumeric("x"+strconv.Itoa(j+1), feats[j]))
	}
	tcols = append(tcols,
		table.NewCategorical("segment", segment),
		table.NewNumeric("target", target),
	)
	return table.MustNew(tcols...)
}

// sampleWithout draws k distinct indices from [0, n).
func sampleWithout(rnd *rand.Rand, n, k int) []int {
	if k <= 0 {
		return nil
	}
	if k > n {
		k = n
	}
	perm := rnd.Perm(n)
	return perm[:k]
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
