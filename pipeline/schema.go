package pipeline

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/prepflow/pkg/errors"
	"github.com/YuminosukeSato/prepflow/table"
)

// FeatureSchema is the exact ordered column list produced by one-hot
// expansion of the training table. Every inference call is reconciled
// against this schema, never against the raw input's own columns.
type FeatureSchema struct {
	Columns         []string `json:"columns"`
	CategoricalCols []string `json:"categorical_cols"`
}

// expand one-hot-encodes every categorical column of t with drop-first
// dummy columns over its sorted distinct values. Numeric columns keep
// their order; dummy columns append after them in categorical column
// order, matching the training-time expansion.
func expand(t *table.Table, exclude string) *table.Table {
	var cols []*table.Column
	for _, c := range t.Columns() {
		if c.Name == exclude {
			continue
		}
		if c.Kind == table.Numeric {
			cols = append(cols, table.NewNumeric(c.Name, c.Float64s()))
		}
	}
	for _, c := range t.Columns() {
		if c.Name == exclude || c.Kind != table.Categorical {
			continue
		}
		cols = append(cols, dummies(c)...)
	}
	return table.MustNew(cols...)
}

func dummies(c *table.Column) []*table.Column {
	values := c.Strings()
	vocab := distinctSorted(values)
	if len(vocab) > 0 {
		vocab = vocab[1:] // drop-first reference level
	}
	out := make([]*table.Column, 0, len(vocab))
	for _, level := range vocab {
		indicator := make([]float64, len(values))
		for i, v := range values {
			if v == level {
				indicator[i] = 1
			}
		}
		out = append(out, table.NewNumeric(c.Name+"_"+level, indicator))
	}
	return out
}

func distinctSorted(values []string) []string {
	seen := make(map[string]struct{})
	for _, v := range values {
		if v != "" {
			seen[v] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for v := range seen {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

// Reconcile aligns an arbitrary input table to the schema: incoming
// categorical columns are one-hot expanded, schema columns absent from
// the result are synthesized as all-zero, extra columns are dropped and
// the remainder reordered to exactly match the schema. Missing numeric
// cells after alignment fill with zero.
func (s *FeatureSchema) Reconcile(t *table.Table) (*mat.Dense, error) {
	expanded := expand(t, "")
	n := t.NumRows()
	if n == 0 {
		return nil, errors.NewValueError("FeatureSchema.Reconcile", "empty input")
	}
	if len(s.Columns) == 0 {
		return nil, errors.NewValueError("FeatureSchema.Reconcile", "empty schema")
	}
	out := mat.NewDense(n, len(s.Columns), nil)
	for j, name := range s.Columns {
		col, ok := expanded.Col(name)
		if !ok {
			continue // absent column stays all-zero
		}
		values := col.Float64s()
		for i, v := range values {
			if math.IsNaN(v) {
				v = 0
			}
			out.Set(i, j, v)
		}
	}
	return out, nil
}
