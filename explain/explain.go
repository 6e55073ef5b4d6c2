// Package explain derives global feature importance and per-instance
// additive contribution breakdowns from trained model artifacts.
package explain

import (
	"math"
	"math/rand"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/prepflow/core/model"
	"github.com/YuminosukeSato/prepflow/metrics"
	"github.com/YuminosukeSato/prepflow/pipeline"
	"github.com/YuminosukeSato/prepflow/pkg/errors"
	"github.com/YuminosukeSato/prepflow/table"
)

const shuffleSeed = 42

// ImportanceEntry is one feature's global importance.
type ImportanceEntry struct {
	Feature    string  `json:"feature"`
	Importance float64 `json:"importance"`
}

// FeatureImportance returns ranked global importances: native impurity
// importances for tree models, absolute coefficient magnitudes for
// linear models.
func FeatureImportance(a *pipeline.ModelArtifact) ([]ImportanceEntry, error) {
	var raw []float64
	switch m := a.Model.(type) {
	case model.ImportanceProvider:
		raw = m.FeatureImportances()
	case model.CoefProvider:
		coef := m.Coefficients()
		raw = make([]float64, len(coef))
		for i, c := range coef {
			raw[i] = math.Abs(c)
		}
	default:
		return nil, errors.NewUnsupportedModelError(string(a.ModelType), "feature importance")
	}
	if len(raw) != len(a.Schema.Columns) {
		return nil, errors.NewDimensionError("explain.FeatureImportance", len(a.Schema.Columns), len(raw), 1)
	}
	out := make([]ImportanceEntry, len(raw))
	for i, v := range raw {
		out[i] = ImportanceEntry{Feature: a.Schema.Columns[i], Importance: v}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Importance > out[j].Importance })
	return out, nil
}

// PermutationEntry is one feature's mean/std F1 degradation over repeats.
type PermutationEntry struct {
	Feature string  `json:"feature"`
	Mean    float64 `json:"importance_mean"`
	Std     float64 `json:"importance_std"`
}

// PermutationImportance shuffles each feature column independently and
// measures the F1 degradation against the unshuffled baseline. The probe
// table must carry a target column.
func PermutationImportance(a *pipeline.ModelArtifact, t *table.Table, nRepeats int) ([]PermutationEntry, error) {
	if nRepeats < 1 {
		return nil, errors.NewValidationError("n_repeats", "must be positive", nRepeats)
	}
	targetCol, ok := t.Col(pipeline.TargetColumn)
	if !ok {
		return nil, errors.NewSchemaError("explain.PermutationImportance", pipeline.TargetColumn)
	}
	X, err := a.Schema.Reconcile(t)
	if err != nil {
		return nil, err
	}
	XStd, err := a.Scaler.Transform(X)
	if err != nil {
		return nil, err
	}
	n, p := XStd.Dims()
	y := mat.NewVecDense(n, targetCol.Float64s())

	baseline, err := scoreF1(a.Model, XStd, y)
	if err != nil {
		return nil, err
	}

	rnd := rand.New(rand.NewSource(shuffleSeed))
	out := make([]PermutationEntry, p)
	work := mat.DenseCopyOf(XStd)
	column := make([]float64, n)
	for j := 0; j < p; j++ {
		drops := make([]float64, nRepeats)
		mat.Col(column, j, XStd)
		for r := 0; r < nRepeats; r++ {
			shuffled := append([]float64(nil), column...)
			rnd.Shuffle(n, func(u, v int) { shuffled[u], shuffled[v] = shuffled[v], shuffled[u] })
			work.SetCol(j, shuffled)
			score, err := scoreF1(a.Model, work, y)
			if err != nil {
				return nil, err
			}
			drops[r] = baseline - score
		}
		work.SetCol(j, column)

		mean := 0.0
		for _, d := range drops {
			mean += d
		}
		mean /= float64(nRepeats)
		std := 0.0
		for _, d := range drops {
			std += (d - mean) * (d - mean)
		}
		std = math.Sqrt(std / float64(nRepeats))
		out[j] = PermutationEntry{Feature: a.Schema.Columns[j], Mean: mean, Std: std}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Mean > out[j].Mean })
	return out, nil
}

func scoreF1(clf model.Classifier, X mat.Matrix, y *mat.VecDense) (float64, error) {
	pred, err := clf.Predict(X)
	if err != nil {
		return 0, err
	}
	n, _ := pred.Dims()
	yPred := mat.NewVecDense(n, nil)
	for i := 0; i < n; i++ {
		yPred.SetVec(i, pred.At(i, 0))
	}
	return metrics.F1(y, yPred)
}

// Contribution is one feature's share of a single prediction.
type Contribution struct {
	Feature      string  `json:"feature"`
	Value        float64 `json:"value"`
	Contribution float64 `json:"contribution"`
}

// Explanation is a per-instance additive breakdown. It is derived on
// demand and never stored.
type Explanation struct {
	Prediction    int            `json:"prediction"`
	Probability   float64        `json:"probability,omitempty"`
	Contributions []Contribution `json:"per_feature_contribution"`
	TopPositive   []Contribution `json:"top_positive"`
	TopNegative   []Contribution `json:"top_negative"`
}

// ExplainInstance breaks a single row's prediction into per-feature
// contributions: standardized value times coefficient for linear models,
// standardized value times global importance for tree models. The tree
// variant is an approximation, not a Shapley-style decomposition.
func ExplainInstance(a *pipeline.ModelArtifact, row *table.Table) (*Explanation, error) {
	if row.NumRows() != 1 {
		return nil, errors.NewValidationError("data", "exactly one row required", row.NumRows())
	}
	X, err := a.Schema.Reconcile(row)
	if err != nil {
		return nil, err
	}
	XStd, err := a.Scaler.Transform(X)
	if err != nil {
		return nil, err
	}

	var weights []float64
	switch m := a.Model.(type) {
	case model.CoefProvider:
		weights = m.Coefficients()
	case model.ImportanceProvider:
		weights = m.FeatureImportances()
	default:
		return nil, errors.NewUnsupportedModelError(string(a.ModelType), "instance explanation")
	}
	if len(weights) != len(a.Schema.Columns) {
		return nil, errors.NewDimensionError("explain.ExplainInstance", len(a.Schema.Columns), len(weights), 1)
	}

	contributions := make([]Contribution, len(weights))
	for j, w := range weights {
		v := XStd.At(0, j)
		contributions[j] = Contribution{
			Feature:      a.Schema.Columns[j],
			Value:        v,
			Contribution: v * w,
		}
	}

	pred, err := a.Model.Predict(XStd)
	if err != nil {
		return nil, err
	}
	out := &Explanation{
		Prediction:    int(pred.At(0, 0)),
		Contributions: contributions,
		TopPositive:   topBy(contributions, true),
		TopNegative:   topBy(contributions, false),
	}
	if pe, ok := a.Model.(model.ProbabilityEstimator); ok {
		proba, err := pe.PredictProba(XStd)
		if err != nil {
			return nil, err
		}
		out.Probability = proba.At(0, 1)
	}
	return out, nil
}

// topBy returns up to five contributions of the requested sign, largest
// magnitude first.
func topBy(contributions []Contribution, positive bool) []Contribution {
	var filtered []Contribution
	for _, c := range contributions {
		if (positive && c.Contribution > 0) || (!positive && c.Contribution < 0) {
			filtered = append(filtered, c)
		}
	}
	sort.SliceStable(filtered, func(i, j int) bool {
		return math.Abs(filtered[i].Contribution) > math.Abs(filtered[j].Contribution)
	})
	if len(filtered) > 5 {
		filtered = filtered[:5]
	}
	return filtered
}
