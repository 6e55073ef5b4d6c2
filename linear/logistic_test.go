package linear

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"
)

// separable builds a linearly separable two-feature problem.
func separable() (*mat.Dense, *mat.Dense) {
	X := mat.NewDense(8, 2, []float64{
		-2, -1,
		-1.5, -2,
		-1, -1.5,
		-2.5, -0.5,
		2, 1,
		1.5, 2,
		1, 1.5,
		2.5, 0.5,
	})
	y := mat.NewDense(8, 1, []float64{0, 0, 0, 0, 1, 1, 1, 1})
	return X, y
}

func TestLogisticRegressionSeparable(t *testing.T) {
	X, y := separable()

	clf := NewLogisticRegression()
	if err := clf.Fit(X, y); err != nil {
		t.Fatalf("Fit() error = %v", err)
	}

	pred, err := clf.Predict(X)
	if err != nil {
		t.Fatalf("Predict() error = %v", err)
	}
	for i := 0; i < 8; i++ {
		if pred.At(i, 0) != y.At(i, 0) {
			t.Errorf("row %d predicted %v, want %v", i, pred.At(i, 0), y.At(i, 0))
		}
	}
}

func TestLogisticRegressionProba(t *testing.T) {
	X, y := separable()

	clf := NewLogisticRegression()
	if err := clf.Fit(X, y); err != nil {
		t.Fatalf("Fit() error = %v", err)
	}
	proba, err := clf.PredictProba(X)
	if err != nil {
		t.Fatalf("PredictProba() error = %v", err)
	}
	n, cols := proba.Dims()
	if cols != 2 {
		t.Fatalf("proba columns = %d, want 2", cols)
	}
	for i := 0; i < n; i++ {
		p0, p1 := proba.At(i, 0), proba.At(i, 1)
		if p1 < 0 || p1 > 1 {
			t.Errorf("row %d p1 = %v, out of [0, 1]", i, p1)
		}
		if math.Abs(p0+p1-1) > 1e-9 {
			t.Errorf("row %d probabilities sum to %v", i, p0+p1)
		}
	}
}

func TestLogisticRegressionCoefficients(t *testing.T) {
	X, y := separable()

	clf := NewLogisticRegression()
	if err := clf.Fit(X, y); err != nil {
		t.Fatalf("Fit() error = %v", err)
	}
	coef := clf.Coefficients()
	if len(coef) != 2 {
		t.Fatalf("len(coef) = %d, want 2", len(coef))
	}
	// Both features push toward the positive class.
	for j, c := range coef {
		if c <= 0 {
			t.Errorf("coef[%d] = %v, want positive", j, c)
		}
	}

	// Returned slice is a copy.
	coef[0] = 999
	if clf.Coefficients()[0] == 999 {
		t.Error("Coefficients() must return a copy")
	}
}

func TestLogisticRegressionRegularization(t *testing.T) {
	X, y := separable()

	strong := NewLogisticRegression(WithC(0.01))
	weak := NewLogisticRegression(WithC(100))
	if err := strong.Fit(X, y); err != nil {
		t.Fatalf("Fit() error = %v", err)
	}
	if err := weak.Fit(X, y); err != nil {
		t.Fatalf("Fit() error = %v", err)
	}

	normOf := func(coef []float64) float64 {
		total := 0.0
		for _, c := range coef {
			total += c * c
		}
		return math.Sqrt(total)
	}
	if normOf(strong.Coefficients()) >= normOf(weak.Coefficients()) {
		t.Error("stronger regularization should shrink coefficients")
	}
}

func TestLogisticRegressionNotFitted(t *testing.T) {
	clf := NewLogisticRegression()
	if _, err := clf.Predict(mat.NewDense(1, 2, nil)); err == nil {
		t.Error("Predict before Fit should fail")
	}
}

func TestLogisticRegressionDimensionMismatch(t *testing.T) {
	X, y := separable()
	clf := NewLogisticRegression()
	if err := clf.Fit(X, y); err != nil {
		t.Fatalf("Fit() error = %v", err)
	}
	if _, err := clf.Predict(mat.NewDense(1, 3, nil)); err == nil {
		t.Error("Predict with wrong feature count should fail")
	}
}
