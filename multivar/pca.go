// Package multivar implements multivariate analysis over numeric table
// columns: principal component analysis and k-means clustering.
package multivar

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/YuminosukeSato/prepflow/pkg/errors"
	"github.com/YuminosukeSato/prepflow/preprocessing"
	"github.com/YuminosukeSato/prepflow/table"
)

// Loading is one feature's weight on a principal component.
type Loading struct {
	Feature string  `json:"feature"`
	Weight  float64 `json:"weight"`
}

// PCAResult holds projections and variance decomposition.
type PCAResult struct {
	NComponents            int                  `json:"n_components"`
	Columns                []string             `json:"columns"`
	RowsUsed               int                  `json:"rows_used"`
	ExplainedVarianceRatio []float64            `json:"explained_variance_ratio"`
	CumulativeVariance     []float64            `json:"cumulative_variance"`
	Loadings               map[string][]Loading `json:"loadings"`
	Projections            [][]float64          `json:"projections"`
}

// numericMatrix extracts the numeric columns of t with every row that
// has a missing value dropped.
func numericMatrix(t *table.Table) (*mat.Dense, []string, error) {
	names := t.NumericCols()
	if len(names) < 2 {
		return nil, nil, errors.NewValueError("multivar", "at least two numeric columns required")
	}
	columns := make([][]float64, len(names))
	for i, name := range names {
		col, _ := t.Col(name)
		columns[i] = col.Float64s()
	}
	var keep []int
	for r := 0; r < t.NumRows(); r++ {
		complete := true
		for _, col := range columns {
			if math.IsNaN(col[r]) {
				complete = false
				break
			}
		}
		if complete {
			keep = append(keep, r)
		}
	}
	if len(keep) < 2 {
		return nil, nil, errors.NewValueError("multivar", "fewer than two complete rows")
	}
	X := mat.NewDense(len(keep), len(names), nil)
	for i, r := range keep {
		for j, col := range columns {
			X.Set(i, j, col[r])
		}
	}
	return X, names, nil
}

// PCA projects the complete numeric rows of t onto nComponents principal
// components, optionally standardizing first.
func PCA(t *table.Table, nComponents int, scale bool) (*PCAResult, error) {
	X, names, err := numericMatrix(t)
	if err != nil {
		return nil, err
	}
	n, p := X.Dims()
	if nComponents < 1 || nComponents > p {
		return nil, errors.NewValidationError("n_components", fmt.Sprintf("must be in [1, %d]", p), nComponents)
	}

	if scale {
		scaler := preprocessing.NewStandardScaler()
		scaled, err := scaler.FitTransform(X)
		if err != nil {
			return nil, err
		}
		X = mat.DenseCopyOf(scaled)
	}

	var pc stat.PC
	if ok := pc.PrincipalComponents(X, nil); !ok {
		return nil, errors.NewValueError("multivar.PCA", "principal component decomposition failed")
	}
	var vecs mat.Dense
	pc.VectorsTo(&vecs)
	vars := pc.VarsTo(nil)

	total := 0.0
	for _, v := range vars {
		total += v
	}
	ratio := make([]float64, nComponents)
	cumulative := make([]float64, nComponents)
	running := 0.0
	for i := 0; i < nComponents; i++ {
		if total > 0 {
			ratio[i] = vars[i] / total
		}
		running += ratio[i]
		cumulative[i] = running
	}

	// Project onto the leading components.
	var proj mat.Dense
	proj.Mul(X, vecs.Slice(0, p, 0, nComponents))
	projections := make([][]float64, n)
	for i := 0; i < n; i++ {
		projections[i] = make([]float64, nComponents)
		for j := 0; j < nComponents; j++ {
			projections[i][j] = proj.At(i, j)
		}
	}

	// Top three contributors per component by absolute weight.
	loadings := make(map[string][]Loading, nComponents)
	for j := 0; j < nComponents; j++ {
		entries := make([]Loading, p)
		for i := 0; i < p; i++ {
			entries[i] = Loading{Feature: names[i], Weight: vecs.At(i, j)}
		}
		sort.SliceStable(entries, func(a, b int) bool {
			return math.Abs(entries[a].Weight) > math.Abs(entries[b].Weight)
		})
		if len(entries) > 3 {
			entries = entries[:3]
		}
		loadings[fmt.Sprintf("PC%d", j+1)] = entries
	}

	return &PCAResult{
		NComponents:            nComponents,
		Columns:                names,
		RowsUsed:               n,
		ExplainedVarianceRatio: ratio,
		CumulativeVariance:     cumulative,
		Loadings:               loadings,
		Projections:            projections,
	}, nil
}
