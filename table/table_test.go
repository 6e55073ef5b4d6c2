package table

import (
	"math"
	"testing"
)

func TestColumnFloat64sCoercion(t *testing.T) {
	col := NewRawNumeric("x", []string{"1.5", "oops", "", " 2 ", "3.25"})
	got := col.Float64s()

	if !math.IsNaN(got[1]) {
		t.Errorf("broken cell = %v, want NaN", got[1])
	}
	if !math.IsNaN(got[2]) {
		t.Errorf("missing cell = %v, want NaN", got[2])
	}
	for i, want := range map[int]float64{0: 1.5, 3: 2, 4: 3.25} {
		if got[i] != want {
			t.Errorf("cell %d = %v, want %v", i, got[i], want)
		}
	}
	if col.Kind != Numeric {
		t.Errorf("Kind = %v, want Numeric", col.Kind)
	}
	if !col.StringBacked() {
		t.Error("raw numeric column should be string backed")
	}
}

func TestColumnMissing(t *testing.T) {
	num := NewNumeric("a", []float64{1, math.NaN(), 3})
	cat := NewCategorical("b", []string{"x", "", "y"})

	if num.MissingCount() != 1 {
		t.Errorf("numeric MissingCount = %d, want 1", num.MissingCount())
	}
	if cat.MissingCount() != 1 {
		t.Errorf("categorical MissingCount = %d, want 1", cat.MissingCount())
	}
	if !num.Missing(1) || num.Missing(0) {
		t.Error("numeric Missing reported wrong cells")
	}
}

func TestTableDuplicates(t *testing.T) {
	tbl := MustNew(
		NewNumeric("x", []float64{1, 2, 1, 1}),
		NewCategorical("s", []string{"a", "b", "a", "c"}),
	)

	// Row 2 repeats row 0; row 3 differs in s.
	if got := tbl.DuplicateCount(); got != 1 {
		t.Errorf("DuplicateCount = %d, want 1", got)
	}
	mask := tbl.DuplicateMask()
	want := []bool{false, false, true, false}
	for i := range want {
		if mask[i] != want[i] {
			t.Errorf("DuplicateMask[%d] = %v, want %v", i, mask[i], want[i])
		}
	}
}

func TestTableSelectAndClone(t *testing.T) {
	tbl := MustNew(
		NewNumeric("x", []float64{1, 2, 3}),
		NewCategorical("s", []string{"a", "b", "c"}),
	)

	sub := tbl.Select([]int{2, 0})
	if sub.NumRows() != 2 {
		t.Fatalf("NumRows = %d, want 2", sub.NumRows())
	}
	col, _ := sub.Col("x")
	if got := col.Float64s(); got[0] != 3 || got[1] != 1 {
		t.Errorf("selected rows = %v, want [3 1]", got)
	}

	clone := tbl.Clone()
	if !clone.Equal(tbl) {
		t.Error("clone is not equal to original")
	}
	clone.DropCol("s")
	if !tbl.HasCol("s") {
		t.Error("dropping from clone mutated original")
	}
}

func TestTableMatrix(t *testing.T) {
	tbl := MustNew(
		NewNumeric("a", []float64{1, 2}),
		NewNumeric("b", []float64{3, 4}),
	)

	m, err := tbl.Matrix([]string{"b", "a"})
	if err != nil {
		t.Fatalf("Matrix() error = %v", err)
	}
	if m.At(0, 0) != 3 || m.At(0, 1) != 1 {
		t.Errorf("Matrix respects requested column order: got row [%v %v]", m.At(0, 0), m.At(0, 1))
	}

	if _, err := tbl.Matrix([]string{"missing"}); err == nil {
		t.Error("Matrix() with unknown column should fail")
	}
}

func TestFromRecordsRoundTrip(t *testing.T) {
	records := []map[string]interface{}{
		{"x": 1.5, "s": "a", "n": nil},
		{"x": 2, "s": "b", "n": 3.0},
	}
	tbl, err := FromRecords(records)
	if err != nil {
		t.Fatalf("FromRecords() error = %v", err)
	}
	if tbl.NumRows() != 2 || tbl.NumCols() != 3 {
		t.Fatalf("dims = %dx%d, want 2x3", tbl.NumRows(), tbl.NumCols())
	}
	x, _ := tbl.Col("x")
	if x.Kind != Numeric {
		t.Errorf("x Kind = %v, want Numeric", x.Kind)
	}
	s, _ := tbl.Col("s")
	if s.Kind != Categorical {
		t.Errorf("s Kind = %v, want Categorical", s.Kind)
	}
	n, _ := tbl.Col("n")
	if !n.Missing(0) {
		t.Error("nil cell should be missing")
	}

	rows := tbl.Rows()
	if rows[0]["n"] != nil {
		t.Errorf("Rows()[0][n] = %v, want nil", rows[0]["n"])
	}
}
