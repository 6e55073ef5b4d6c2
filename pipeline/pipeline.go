// Package pipeline implements the classification train/predict pipeline:
// categorical expansion, imputation, stratified splitting, standardized
// model fitting, and schema-reconciled inference.
package pipeline

import (
	"fmt"
	"math"
	"math/rand"
	"sort"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/prepflow/core/model"
	"github.com/YuminosukeSato/prepflow/linear"
	"github.com/YuminosukeSato/prepflow/metrics"
	"github.com/YuminosukeSato/prepflow/pkg/errors"
	"github.com/YuminosukeSato/prepflow/pkg/log"
	"github.com/YuminosukeSato/prepflow/preprocessing"
	"github.com/YuminosukeSato/prepflow/table"
	"github.com/YuminosukeSato/prepflow/tree"
)

// TargetColumn is the required label column for training.
const TargetColumn = "target"

const splitSeed = 42

// ModelType selects the classifier variant.
type ModelType string

const (
	ModelLogReg ModelType = "logreg"
	ModelRF     ModelType = "rf"
)

// Metrics is the fixed evaluation bundle computed for each split.
type Metrics struct {
	Accuracy  float64                 `json:"accuracy"`
	Precision float64                 `json:"precision"`
	Recall    float64                 `json:"recall"`
	F1        float64                 `json:"f1"`
	ROCAUC    float64                 `json:"roc_auc,omitempty"`
	Confusion metrics.ConfusionMatrix `json:"confusion_matrix"`
}

// ModelArtifact is an immutable trained model plus everything needed to
// replay inference against arbitrary input rows.
type ModelArtifact struct {
	ID           string                        `json:"id"`
	ModelType    ModelType                     `json:"model_type"`
	Model        model.Classifier              `json:"-"`
	Scaler       *preprocessing.StandardScaler `json:"-"`
	Schema       *FeatureSchema                `json:"feature_schema"`
	TrainMetrics *Metrics                      `json:"train_metrics"`
	TestMetrics  *Metrics                      `json:"test_metrics"`
	Hyperparams  map[string]interface{}        `json:"hyperparams"`
	CreatedAt    time.Time                     `json:"created_at"`
}

// Prediction is the outcome of one Predict call.
type Prediction struct {
	Labels        []int     `json:"predictions"`
	Probabilities []float64 `json:"probabilities,omitempty"`
}

// NewClassifier builds the model variant for a type with the given
// hyperparameters; nil params means the fixed defaults.
func NewClassifier(modelType ModelType, params map[string]interface{}) (model.Classifier, error) {
	switch modelType {
	case ModelLogReg:
		opts := []linear.Option{linear.WithRandomState(splitSeed)}
		if params != nil {
			if c, ok := params["C"].(float64); ok {
				opts = append(opts, linear.WithC(c))
			}
			if p, ok := params["penalty"].(string); ok {
				opts = append(opts, linear.WithPenalty(p))
			}
			if s, ok := params["solver"].(string); ok {
				opts = append(opts, linear.WithSolver(s))
			}
		}
		return linear.NewLogisticRegression(opts...), nil
	case ModelRF:
		opts := []tree.ForestOption{tree.WithForestRandomState(splitSeed)}
		if params != nil {
			if n, ok := params["n_estimators"].(int); ok {
				opts = append(opts, tree.WithNEstimators(n))
			}
			if d, ok := params["max_depth"].(int); ok {
				opts = append(opts, tree.WithForestMaxDepth(d))
			}
			if n, ok := params["min_samples_split"].(int); ok {
				opts = append(opts, tree.WithForestMinSamplesSplit(n))
			}
			if n, ok := params["min_samples_leaf"].(int); ok {
				opts = append(opts, tree.WithForestMinSamplesLeaf(n))
			}
		}
		return tree.NewRandomForest(opts...), nil
	default:
		return nil, errors.NewValidationError("model_type", "must be one of logreg, rf", string(modelType))
	}
}

// EncodeFeatures one-hot expands the categorical feature columns of t
// (excluding the target), mean-imputes remaining missing numeric values
// and freezes the resulting ordered column list as the feature schema.
func EncodeFeatures(t *table.Table) (*mat.Dense, []float64, *FeatureSchema, error) {
	target, ok := t.Col(TargetColumn)
	if !ok {
		return nil, nil, nil, errors.NewSchemaError("pipeline.EncodeFeatures", TargetColumn)
	}
	expanded := expand(t, TargetColumn)
	if expanded.NumCols() == 0 {
		return nil, nil, nil, errors.NewValueError("pipeline.EncodeFeatures", "no feature columns")
	}

	n := expanded.NumRows()
	p := expanded.NumCols()
	X := mat.NewDense(n, p, nil)
	for j, c := range expanded.Columns() {
		values := c.Float64s()
		mean, count := 0.0, 0
		for _, v := range values {
			if !math.IsNaN(v) {
				mean += v
				count++
			}
		}
		if count > 0 {
			mean /= float64(count)
		}
		for i, v := range values {
			if math.IsNaN(v) {
				v = mean
			}
			X.Set(i, j, v)
		}
	}

	schema := &FeatureSchema{
		Columns:         expanded.Names(),
		CategoricalCols: t.CategoricalCols(),
	}
	return X, target.Float64s(), schema, nil
}

// StratifiedSplit partitions row indices by target class at testSize,
// deterministically per seed.
func StratifiedSplit(y []float64, testSize float64, seed int64) (trainIdx, testIdx []int, err error) {
	if testSize <= 0 || testSize >= 1 {
		return nil, nil, errors.NewValidationError("test_size", "must be in (0, 1)", testSize)
	}
	byClass := make(map[float64][]int)
	for i, v := range y {
		byClass[v] = append(byClass[v], i)
	}
	classes := make([]float64, 0, len(byClass))
	for v := range byClass {
		classes = append(classes, v)
	}
	// Map iteration order is random; sort for determinism.
	sort.Float64s(classes)
	rnd := rand.New(rand.NewSource(seed))
	for _, cls := range classes {
		idx := byClass[cls]
		rnd.Shuffle(len(idx), func(a, b int) { idx[a], idx[b] = idx[b], idx[a] })
		nTest := int(math.Round(float64(len(idx)) * testSize))
		if nTest == 0 && len(idx) > 1 {
			nTest = 1
		}
		testIdx = append(testIdx, idx[:nTest]...)
		trainIdx = append(trainIdx, idx[nTest:]...)
	}
	if len(trainIdx) == 0 || len(testIdx) == 0 {
		return nil, nil, errors.NewValueError("pipeline.StratifiedSplit", "split produced an empty partition")
	}
	return trainIdx, testIdx, nil
}

func subsetRows(X *mat.Dense, y []float64, idx []int) (*mat.Dense, *mat.VecDense) {
	_, p := X.Dims()
	Xs := mat.NewDense(len(idx), p, nil)
	ys := mat.NewVecDense(len(idx), nil)
	for i, r := range idx {
		for j := 0; j < p; j++ {
			Xs.Set(i, j, X.At(r, j))
		}
		ys.SetVec(i, y[r])
	}
	return Xs, ys
}

// Train fits a classifier on t and returns a frozen artifact. The target
// column is required. The scaler is fitted on the train split only.
func Train(t *table.Table, modelType ModelType, testSize float64) (*ModelArtifact, error) {
	return TrainWithParams(t, modelType, testSize, nil)
}

// TrainWithParams is Train with explicit hyperparameters, used by the
// tuning search to refit its best candidate.
func TrainWithParams(t *table.Table, modelType ModelType, testSize float64, params map[string]interface{}) (*ModelArtifact, error) {
	start := time.Now()
	if testSize == 0 {
		testSize = 0.2
	}
	X, y, schema, err := EncodeFeatures(t)
	if err != nil {
		return nil, err
	}
	trainIdx, testIdx, err := StratifiedSplit(y, testSize, splitSeed)
	if err != nil {
		return nil, err
	}
	XTrain, yTrain := subsetRows(X, y, trainIdx)
	XTest, yTest := subsetRows(X, y, testIdx)

	scaler := preprocessing.NewStandardScaler()
	XTrainStd, err := scaler.FitTransform(XTrain)
	if err != nil {
		return nil, err
	}
	XTestStd, err := scaler.Transform(XTest)
	if err != nil {
		return nil, err
	}

	clf, err := NewClassifier(modelType, params)
	if err != nil {
		return nil, err
	}
	if err := clf.Fit(XTrainStd, yTrain); err != nil {
		return nil, err
	}

	trainMetrics, err := Evaluate(clf, XTrainStd, yTrain)
	if err != nil {
		return nil, err
	}
	testMetrics, err := Evaluate(clf, XTestStd, yTest)
	if err != nil {
		return nil, err
	}

	a := &ModelArtifact{
		ID:           fmt.Sprintf("model_%s_%s", modelType, time.Now().Format("20060102150405")),
		ModelType:    modelType,
		Model:        clf,
		Scaler:       scaler,
		Schema:       schema,
		TrainMetrics: trainMetrics,
		TestMetrics:  testMetrics,
		Hyperparams:  clf.GetParams(),
		CreatedAt:    time.Now(),
	}
	lg := log.With("pipeline")
	lg.Info().
		Str(log.ModelIDKey, a.ID).
		Str(log.ModelTypeKey, string(modelType)).
		Int(log.RowsKey, t.NumRows()).
		Int(log.FeaturesKey, len(schema.Columns)).
		Float64("test_f1", testMetrics.F1).
		Int64(log.DurationMsKey, time.Since(start).Milliseconds()).
		Msg("model trained")
	return a, nil
}

// Evaluate computes the fixed metric bundle on standardized features.
// ROC-AUC is included when the model estimates probabilities.
func Evaluate(clf model.Classifier, X mat.Matrix, y *mat.VecDense) (*Metrics, error) {
	pred, err := clf.Predict(X)
	if err != nil {
		return nil, err
	}
	n, _ := pred.Dims()
	yPred := mat.NewVecDense(n, nil)
	for i := 0; i < n; i++ {
		yPred.SetVec(i, pred.At(i, 0))
	}

	m := &Metrics{}
	if m.Accuracy, err = metrics.Accuracy(y, yPred); err != nil {
		return nil, err
	}
	if m.Precision, err = metrics.Precision(y, yPred); err != nil {
		return nil, err
	}
	if m.Recall, err = metrics.Recall(y, yPred); err != nil {
		return nil, err
	}
	if m.F1, err = metrics.F1(y, yPred); err != nil {
		return nil, err
	}
	if m.Confusion, err = metrics.Confusion(y, yPred); err != nil {
		return nil, err
	}
	if pe, ok := clf.(model.ProbabilityEstimator); ok {
		proba, err := pe.PredictProba(X)
		if err != nil {
			return nil, err
		}
		score := mat.NewVecDense(n, nil)
		for i := 0; i < n; i++ {
			score.SetVec(i, proba.At(i, 1))
		}
		if m.ROCAUC, err = metrics.AUC(y, score); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Predict reconciles rows against the artifact's feature schema and
// returns one label per input row, plus positive-class probabilities
// when available.
func Predict(a *ModelArtifact, rows *table.Table) (*Prediction, error) {
	X, err := a.Schema.Reconcile(rows)
	if err != nil {
		return nil, err
	}
	XStd, err := a.Scaler.Transform(X)
	if err != nil {
		return nil, err
	}
	pred, err := a.Model.Predict(XStd)
	if err != nil {
		return nil, err
	}
	n, _ := pred.Dims()
	out := &Prediction{Labels: make([]int, n)}
	for i := 0; i < n; i++ {
		out.Labels[i] = int(pred.At(i, 0))
	}
	if pe, ok := a.Model.(model.ProbabilityEstimator); ok {
		proba, err := pe.PredictProba(XStd)
		if err != nil {
			return nil, err
		}
		out.Probabilities = make([]float64, n)
		for i := 0; i < n; i++ {
			out.Probabilities[i] = proba.At(i, 1)
		}
	}
	return out, nil
}
