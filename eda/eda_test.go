package eda

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/prepflow/dataset"
	"github.com/YuminosukeSato/prepflow/pkg/errors"
	"github.com/YuminosukeSato/prepflow/table"
)

func TestSummarize(t *testing.T) {
	tbl := table.MustNew(
		table.NewNumeric("x", []float64{1, 2, 3, 4, math.NaN()}),
		table.NewCategorical("s", []string{"a", "a", "b", "", "a"}),
	)

	s := Summarize(tbl)

	assert.Equal(t, 5, s.NRows)
	assert.Equal(t, 2, s.NCols)

	num := s.Numeric["x"]
	assert.Equal(t, 4, num.Count)
	assert.Equal(t, 1, num.Missing)
	assert.InDelta(t, 2.5, num.Mean, 1e-9)
	assert.Equal(t, 1.0, num.Min)
	assert.Equal(t, 4.0, num.Max)
	assert.InDelta(t, 2.5, num.Median, 1e-9)

	cat := s.Categorical["s"]
	assert.Equal(t, 4, cat.Count)
	assert.Equal(t, 1, cat.Missing)
	assert.Equal(t, 2, cat.Unique)
	require.NotEmpty(t, cat.Top)
	assert.Equal(t, "a", cat.Top[0].Value)
	assert.Equal(t, 3, cat.Top[0].Count)
}

func TestGroupByMean(t *testing.T) {
	tbl := table.MustNew(
		table.NewCategorical("seg", []string{"a", "a", "b", "b"}),
		table.NewNumeric("x", []float64{1, 3, 10, 20}),
	)

	groups, err := GroupBy(tbl, "seg", "mean")
	require.NoError(t, err)
	require.Len(t, groups, 2)

	assert.Equal(t, "a", groups[0].Group)
	assert.Equal(t, 2, groups[0].Count)
	assert.InDelta(t, 2.0, groups[0].Values["x"], 1e-9)
	assert.Equal(t, "b", groups[1].Group)
	assert.InDelta(t, 15.0, groups[1].Values["x"], 1e-9)
}

func TestGroupByMissingColumn(t *testing.T) {
	tbl := table.MustNew(table.NewNumeric("x", []float64{1, 2}))

	_, err := GroupBy(tbl, "nope", "mean")
	require.Error(t, err)
	var schema *errors.SchemaError
	assert.True(t, errors.As(err, &schema))
	assert.Equal(t, "nope", schema.Column)
}

func TestGroupByUnknownAggregate(t *testing.T) {
	tbl := table.MustNew(
		table.NewCategorical("seg", []string{"a", "b"}),
		table.NewNumeric("x", []float64{1, 2}),
	)
	_, err := GroupBy(tbl, "seg", "mode")
	require.Error(t, err)
	var validation *errors.ValidationError
	assert.True(t, errors.As(err, &validation))
}

func TestCorrelation(t *testing.T) {
	n := 50
	x := make([]float64, n)
	y := make([]float64, n)
	z := make([]float64, n)
	for i := 0; i < n; i++ {
		x[i] = float64(i)
		y[i] = 2*float64(i) + 1 // perfectly correlated with x
		z[i] = math.Sin(float64(i) * 100)
	}
	tbl := table.MustNew(
		table.NewNumeric("x", x),
		table.NewNumeric("y", y),
		table.NewNumeric("z", z),
	)

	result := Correlation(tbl)
	require.Equal(t, []string{"x", "y", "z"}, result.Columns)

	// Diagonal is 1, matrix is symmetric.
	for i := range result.Matrix {
		assert.Equal(t, 1.0, result.Matrix[i][i])
		for j := range result.Matrix {
			assert.InDelta(t, result.Matrix[j][i], result.Matrix[i][j], 1e-12)
		}
	}
	assert.InDelta(t, 1.0, result.Matrix[0][1], 1e-9)

	require.NotEmpty(t, result.TopPairs)
	top := result.TopPairs[0]
	assert.Equal(t, "x", top.A)
	assert.Equal(t, "y", top.B)
}

func TestSummarizeGeneratedEDA(t *testing.T) {
	tbl, err := dataset.Generate(dataset.PhaseEDA, 42, 200)
	require.NoError(t, err)

	s := Summarize(tbl)
	assert.Contains(t, s.Numeric, "income")
	assert.Contains(t, s.Categorical, "segment")

	groups, err := GroupBy(tbl, "segment", "mean")
	require.NoError(t, err)
	assert.NotEmpty(t, groups)
}
