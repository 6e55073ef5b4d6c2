// Package eda computes exploratory statistics over tables: per-variable
// summaries, grouped aggregates and pairwise correlation.
package eda

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/YuminosukeSato/prepflow/pkg/errors"
	"github.com/YuminosukeSato/prepflow/table"
)

// NumericSummary describes one numeric column.
type NumericSummary struct {
	Count   int     `json:"count"`
	Missing int     `json:"missing"`
	Mean    float64 `json:"mean"`
	Std     float64 `json:"std"`
	Min     float64 `json:"min"`
	Q1      float64 `json:"q1"`
	Median  float64 `json:"median"`
	Q3      float64 `json:"q3"`
	Max     float64 `json:"max"`
}

// ValueCount is one categorical level and its frequency.
type ValueCount struct {
	Value string `json:"value"`
	Count int    `json:"count"`
}

// CategoricalSummary describes one categorical column.
type CategoricalSummary struct {
	Count   int          `json:"count"`
	Missing int          `json:"missing"`
	Unique  int          `json:"unique"`
	Top     []ValueCount `json:"top_values"`
}

// Summary holds per-variable statistics for a table.
type Summary struct {
	NRows       int                           `json:"n_rows"`
	NCols       int                           `json:"n_cols"`
	Numeric     map[string]NumericSummary     `json:"numeric"`
	Categorical map[string]CategoricalSummary `json:"categorical"`
}

// Summarize computes per-variable statistics: quartile spreads for
// numeric columns, level frequencies for categorical ones.
func Summarize(t *table.Table) *Summary {
	out := &Summary{
		NRows:       t.NumRows(),
		NCols:       t.NumCols(),
		Numeric:     make(map[string]NumericSummary),
		Categorical: make(map[string]CategoricalSummary),
	}
	for _, name := range t.NumericCols() {
		col, _ := t.Col(name)
		out.Numeric[name] = summarizeNumeric(col)
	}
	for _, name := range t.CategoricalCols() {
		col, _ := t.Col(name)
		out.Categorical[name] = summarizeCategorical(col)
	}
	return out
}

func summarizeNumeric(col *table.Column) NumericSummary {
	values := col.Float64s()
	observed := make([]float64, 0, len(values))
	for _, v := range values {
		if !math.IsNaN(v) {
			observed = append(observed, v)
		}
	}
	s := NumericSummary{Count: len(observed), Missing: len(values) - len(observed)}
	if len(observed) == 0 {
		return s
	}
	sort.Float64s(observed)
	s.Mean = stat.Mean(observed, nil)
	s.Std = math.Sqrt(stat.Variance(observed, nil))
	s.Min = observed[0]
	s.Max = observed[len(observed)-1]
	s.Q1 = stat.Quantile(0.25, stat.LinInterp, observed, nil)
	s.Median = stat.Quantile(0.50, stat.LinInterp, observed, nil)
	s.Q3 = stat.Quantile(0.75, stat.LinInterp, observed, nil)
	return s
}

func summarizeCategorical(col *table.Column) CategoricalSummary {
	values := col.Strings()
	counts := make(map[string]int)
	missing := 0
	for _, v := range values {
		if v == "" {
			missing++
			continue
		}
		counts[v]++
	}
	top := make([]ValueCount, 0, len(counts))
	for v, c := range counts {
		top = append(top, ValueCount{Value: v, Count: c})
	}
	sort.Slice(top, func(i, j int) bool {
		if top[i].Count != top[j].Count {
			return top[i].Count > top[j].Count
		}
		return top[i].Value < top[j].Value
	})
	if len(top) > 5 {
		top = top[:5]
	}
	return CategoricalSummary{
		Count:   len(values) - missing,
		Missing: missing,
		Unique:  len(counts),
		Top:     top,
	}
}

// GroupStat is one group's aggregate over the numeric columns.
type GroupStat struct {
	Group  string             `json:"group"`
	Count  int                `json:"count"`
	Values map[string]float64 `json:"values"`
}

var aggregates = map[string]func([]float64) float64{
	"mean":   func(v []float64) float64 { return stat.Mean(v, nil) },
	"median": func(v []float64) float64 { s := sorted(v); return stat.Quantile(0.5, stat.LinInterp, s, nil) },
	"sum": func(v []float64) float64 {
		total := 0.0
		for _, x := range v {
			total += x
		}
		return total
	},
	"std": func(v []float64) float64 { return math.Sqrt(stat.Variance(v, nil)) },
	"min": func(v []float64) float64 { s := sorted(v); return s[0] },
	"max": func(v []float64) float64 { s := sorted(v); return s[len(s)-1] },
}

func sorted(v []float64) []float64 {
	s := append([]float64(nil), v...)
	sort.Float64s(s)
	return s
}

// GroupBy aggregates every numeric column per level of the grouping
// column. agg is one of mean, median, sum, std, min, max, count.
func GroupBy(t *table.Table, by, agg string) ([]GroupStat, error) {
	byCol, ok := t.Col(by)
	if !ok {
		return nil, errors.NewSchemaError("eda.GroupBy", by)
	}
	aggFn, isAgg := aggregates[agg]
	if !isAgg && agg != "count" {
		return nil, errors.NewValidationError("agg", "must be one of mean, median, sum, std, min, max, count", agg)
	}

	keys := byCol.Strings()
	groups := make(map[string][]int)
	for i, k := range keys {
		groups[k] = append(groups[k], i)
	}
	names := make([]string, 0, len(groups))
	for k := range groups {
		names = append(names, k)
	}
	sort.Strings(names)

	numeric := t.NumericCols()
	out := make([]GroupStat, 0, len(names))
	for _, name := range names {
		rows := groups[name]
		gs := GroupStat{Group: name, Count: len(rows), Values: make(map[string]float64)}
		for _, colName := range numeric {
			if colName == by {
				continue
			}
			col, _ := t.Col(colName)
			values := col.Float64s()
			observed := make([]float64, 0, len(rows))
			for _, r := range rows {
				if !math.IsNaN(values[r]) {
					observed = append(observed, values[r])
				}
			}
			if agg == "count" {
				gs.Values[colName] = float64(len(observed))
				continue
			}
			if len(observed) == 0 {
				gs.Values[colName] = math.NaN()
				continue
			}
			gs.Values[colName] = aggFn(observed)
		}
		out = append(out, gs)
	}
	return out, nil
}

// CorrPair is one column pair and its Pearson correlation.
type CorrPair struct {
	A string  `json:"a"`
	B string  `json:"b"`
	R float64 `json:"r"`
}

// CorrelationResult holds the full pairwise matrix plus the strongest
// pairs by absolute correlation.
type CorrelationResult struct {
	Columns  []string    `json:"columns"`
	Matrix   [][]float64 `json:"matrix"`
	TopPairs []CorrPair  `json:"top_pairs"`
}

// Correlation computes pairwise Pearson correlation over the numeric
// columns, each pair restricted to rows where both values are present.
func Correlation(t *table.Table) *CorrelationResult {
	names := t.NumericCols()
	values := make([][]float64, len(names))
	for i, name := range names {
		col, _ := t.Col(name)
		values[i] = col.Float64s()
	}

	n := len(names)
	matrix := make([][]float64, n)
	for i := range matrix {
		matrix[i] = make([]float64, n)
		matrix[i][i] = 1
	}
	var pairs []CorrPair
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			r := pairwisePearson(values[i], values[j])
			matrix[i][j] = r
			matrix[j][i] = r
			if !math.IsNaN(r) {
				pairs = append(pairs, CorrPair{A: names[i], B: names[j], R: r})
			}
		}
	}
	sort.SliceStable(pairs, func(a, b int) bool {
		return math.Abs(pairs[a].R) > math.Abs(pairs[b].R)
	})
	if len(pairs) > 10 {
		pairs = pairs[:10]
	}
	return &CorrelationResult{Columns: names, Matrix: matrix, TopPairs: pairs}
}

func pairwisePearson(x, y []float64) float64 {
	var xs, ys []float64
	for i := range x {
		if !math.IsNaN(x[i]) && !math.IsNaN(y[i]) {
			xs = append(xs, x[i])
			ys = append(ys, y[i])
		}
	}
	if len(xs) < 2 {
		return math.NaN()
	}
	return stat.Correlation(xs, ys, nil)
}
