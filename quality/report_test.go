package quality

import (
	"math"
	"sort"
	"testing"

	"gonum.org/v1/gonum/stat"

	"github.com/YuminosukeSato/prepflow/table"
)

func TestTukeyBounds(t *testing.T) {
	values := []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}

	lower, upper, ok := TukeyBounds(values)
	if !ok {
		t.Fatal("TukeyBounds() ok = false")
	}

	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	q1 := stat.Quantile(0.25, stat.LinInterp, sorted, nil)
	q3 := stat.Quantile(0.75, stat.LinInterp, sorted, nil)
	iqr := q3 - q1
	if math.Abs(lower-(q1-TukeyMultiplier*iqr)) > 1e-9 {
		t.Errorf("lower = %v, want %v", lower, q1-TukeyMultiplier*iqr)
	}
	if math.Abs(upper-(q3+TukeyMultiplier*iqr)) > 1e-9 {
		t.Errorf("upper = %v, want %v", upper, q3+TukeyMultiplier*iqr)
	}
}

func TestTukeyBoundsDegenerate(t *testing.T) {
	if _, _, ok := TukeyBounds(nil); ok {
		t.Error("empty input should not produce bounds")
	}

	// Constant column: bounds collapse to the constant, nothing is outside.
	lower, upper, ok := TukeyBounds([]float64{5, 5, 5, 5})
	if !ok {
		t.Fatal("constant input should still produce bounds")
	}
	if lower != 5 || upper != 5 {
		t.Errorf("bounds = [%v, %v], want [5, 5]", lower, upper)
	}
}

func TestGenerateReport(t *testing.T) {
	tbl := table.MustNew(
		table.NewNumeric("x", []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 1000, math.NaN(), 1}),
		table.NewCategorical("s", []string{"a", "b", "a", "", "b", "a", "b", "a", "b", "a", "b", "a"}),
	)

	r := Generate(tbl)

	if r.NRows != 12 || r.NCols != 2 {
		t.Fatalf("dims = %dx%d, want 12x2", r.NRows, r.NCols)
	}
	if r.MissingValues["x"].Count != 1 {
		t.Errorf("missing x = %d, want 1", r.MissingValues["x"].Count)
	}
	if r.MissingValues["s"].Count != 1 {
		t.Errorf("missing s = %d, want 1", r.MissingValues["s"].Count)
	}

	// 1000 is far outside the Tukey fences of 1..9.
	if r.Outliers["x"].Count != 1 {
		t.Errorf("outliers x = %d, want 1", r.Outliers["x"].Count)
	}
	if _, ok := r.Outliers["s"]; ok {
		t.Error("categorical column must not report outliers")
	}

	if r.DataTypes["x"] != "float64" || r.DataTypes["s"] != "string" {
		t.Errorf("data types = %v", r.DataTypes)
	}
}

func TestGenerateCountsDuplicates(t *testing.T) {
	tbl := table.MustNew(
		table.NewNumeric("x", []float64{1, 2, 1, 1}),
		table.NewCategorical("s", []string{"a", "b", "a", "a"}),
	)

	r := Generate(tbl)
	if r.Duplicates != 2 {
		t.Errorf("duplicates = %d, want 2", r.Duplicates)
	}
}

func TestOutlierBoundPartition(t *testing.T) {
	values := make([]float64, 0, 101)
	for i := 0; i <= 99; i++ {
		values = append(values, float64(i))
	}
	values = append(values, 1e6)

	lower, upper, ok := TukeyBounds(values)
	if !ok {
		t.Fatal("TukeyBounds() ok = false")
	}
	for _, v := range values {
		outlier := v < lower || v > upper
		if outlier && v != 1e6 {
			t.Errorf("value %v flagged as outlier", v)
		}
		if !outlier && v == 1e6 {
			t.Error("1e6 not flagged as outlier")
		}
	}
}
