package tree

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/prepflow/core/model"
	"github.com/YuminosukeSato/prepflow/core/parallel"
	"github.com/YuminosukeSato/prepflow/pkg/errors"
)

// RandomForest is a bagged ensemble of decision trees. Trees are grown
// concurrently and predictions average the per-tree probabilities.
type RandomForest struct {
	state *model.StateManager

	nEstimators     int
	maxDepth        int
	minSamplesSplit int
	minSamplesLeaf  int
	bootstrap       bool
	randomState     int64

	trees     []*DecisionTree
	nFeatures int
}

// ForestOption configures a RandomForest.
type ForestOption func(*RandomForest)

// WithNEstimators sets the number of trees.
func WithNEstimators(n int) ForestOption {
	return func(f *RandomForest) { f.nEstimators = n }
}

// WithForestMaxDepth limits the depth of each tree; 0 means no limit.
func WithForestMaxDepth(d int) ForestOption {
	return func(f *RandomForest) { f.maxDepth = d }
}

// WithForestMinSamplesSplit sets the per-tree split threshold.
func WithForestMinSamplesSplit(n int) ForestOption {
	return func(f *RandomForest) { f.minSamplesSplit = n }
}

// WithForestMinSamplesLeaf sets the per-tree leaf threshold.
func WithForestMinSamplesLeaf(n int) ForestOption {
	return func(f *RandomForest) { f.minSamplesLeaf = n }
}

// WithBootstrap toggles bootstrap resampling of the training rows.
func WithBootstrap(b bool) ForestOption {
	return func(f *RandomForest) { f.bootstrap = b }
}

// WithForestRandomState seeds bootstrap sampling and feature subsampling.
func WithForestRandomState(seed int64) ForestOption {
	return func(f *RandomForest) { f.randomState = seed }
}

// NewRandomForest creates a forest with sklearn-style defaults.
func NewRandomForest(opts ...ForestOption) *RandomForest {
	f := &RandomForest{
		state:           model.NewStateManager(),
		nEstimators:     100,
		minSamplesSplit: 2,
		minSamplesLeaf:  1,
		bootstrap:       true,
		randomState:     42,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fit grows nEstimators trees on bootstrap resamples of X and y.
func (f *RandomForest) Fit(X, y mat.Matrix) error {
	nSamples, nFeatures := X.Dims()
	yRows, _ := y.Dims()
	if nSamples == 0 {
		return errors.NewModelError("RandomForest.Fit", "empty data", errors.ErrEmptyData)
	}
	if yRows != nSamples {
		return errors.NewDimensionError("RandomForest.Fit", nSamples, yRows, 0)
	}
	if f.nEstimators <= 0 {
		return errors.NewValidationError("n_estimators", "must be positive", f.nEstimators)
	}

	// sqrt(p) feature subsampling, the usual classification default.
	maxFeatures := int(math.Sqrt(float64(nFeatures)))
	if maxFeatures < 1 {
		maxFeatures = 1
	}

	f.nFeatures = nFeatures
	f.trees = make([]*DecisionTree, f.nEstimators)
	fitErrs := make([]error, f.nEstimators)

	parallel.ForEach(f.nEstimators, func(t int) {
		seed := f.randomState + int64(t)
		tree := NewDecisionTree(
			WithMaxDepth(f.maxDepth),
			WithMinSamplesSplit(f.minSamplesSplit),
			WithMinSamplesLeaf(f.minSamplesLeaf),
			WithMaxFeatures(maxFeatures),
			WithTreeRandomState(seed),
		)
		Xt, yt := X, y
		if f.bootstrap {
			Xt, yt = resample(X, y, seed)
		}
		fitErrs[t] = tree.Fit(Xt, yt)
		f.trees[t] = tree
	})
	for _, err := range fitErrs {
		if err != nil {
			return err
		}
	}

	f.state.SetDimensions(nFeatures, nSamples)
	f.state.SetFitted()
	return nil
}

// resample draws n rows with replacement.
func resample(X, y mat.Matrix, seed int64) (mat.Matrix, mat.Matrix) {
	n, p := X.Dims()
	rnd := rand.New(rand.NewSource(seed))
	Xb := mat.NewDense(n, p, nil)
	yb := mat.NewDense(n, 1, nil)
	for i := 0; i < n; i++ {
		src := rnd.Intn(n)
		for j := 0; j < p; j++ {
			Xb.Set(i, j, X.At(src, j))
		}
		yb.Set(i, 0, y.At(src, 0))
	}
	return Xb, yb
}

// Predict returns an n x 1 column vector of 0/1 labels.
func (f *RandomForest) Predict(X mat.Matrix) (mat.Matrix, error) {
	proba, err := f.PredictProba(X)
	if err != nil {
		return nil, err
	}
	n, _ := proba.Dims()
	out := mat.NewDense(n, 1, nil)
	for i := 0; i < n; i++ {
		if proba.At(i, 1) >= 0.5 {
			out.Set(i, 0, 1)
		}
	}
	return out, nil
}

// PredictProba averages per-tree class probabilities into an n x 2 matrix.
func (f *RandomForest) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	if err := f.state.RequireFitted("RandomForest", "PredictProba"); err != nil {
		return nil, err
	}
	n, p := X.Dims()
	if p != f.nFeatures {
		return nil, errors.NewDimensionError("RandomForest.PredictProba", f.nFeatures, p, 1)
	}
	sum := make([]float64, n)
	for _, tree := range f.trees {
		proba, err := tree.PredictProba(X)
		if err != nil {
			return nil, err
		}
		for i := 0; i < n; i++ {
			sum[i] += proba.At(i, 1)
		}
	}
	out := mat.NewDense(n, 2, nil)
	for i := 0; i < n; i++ {
		pos := sum[i] / float64(len(f.trees))
		out.Set(i, 0, 1-pos)
		out.Set(i, 1, pos)
	}
	return out, nil
}

// FeatureImportances averages the per-tree impurity decreases.
func (f *RandomForest) FeatureImportances() []float64 {
	out := make([]float64, f.nFeatures)
	if len(f.trees) == 0 {
		return out
	}
	for _, tree := range f.trees {
		for j, v := range tree.FeatureImportances() {
			out[j] += v
		}
	}
	for j := range out {
		out[j] /= float64(len(f.trees))
	}
	return out
}

// GetParams returns the hyperparameters.
func (f *RandomForest) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"n_estimators":      f.nEstimators,
		"max_depth":         f.maxDepth,
		"min_samples_split": f.minSamplesSplit,
		"min_samples_leaf":  f.minSamplesLeaf,
		"bootstrap":         f.bootstrap,
		"random_state":      f.randomState,
	}
}

var (
	_ model.Classifier           = (*RandomForest)(nil)
	_ model.ProbabilityEstimator = (*RandomForest)(nil)
	_ model.ImportanceProvider   = (*RandomForest)(nil)
)
