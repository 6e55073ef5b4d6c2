package pipeline

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/prepflow/dataset"
	"github.com/YuminosukeSato/prepflow/pkg/errors"
	"github.com/YuminosukeSato/prepflow/table"
)

func trainingTable(t *testing.T) *table.Table {
	t.Helper()
	tbl, err := dataset.Generate(dataset.PhaseML, 42, 200)
	require.NoError(t, err)
	return tbl
}

func TestTrainLogReg(t *testing.T) {
	tbl := trainingTable(t)

	a, err := Train(tbl, ModelLogReg, 0.2)
	require.NoError(t, err)

	assert.Contains(t, a.ID, "model_logreg_")
	assert.Equal(t, ModelLogReg, a.ModelType)
	require.NotNil(t, a.Schema)
	assert.NotEmpty(t, a.Schema.Columns)
	assert.NotContains(t, a.Schema.Columns, TargetColumn)

	for _, m := range []*Metrics{a.TrainMetrics, a.TestMetrics} {
		require.NotNil(t, m)
		for name, v := range map[string]float64{
			"accuracy": m.Accuracy, "precision": m.Precision,
			"recall": m.Recall, "f1": m.F1,
		} {
			assert.GreaterOrEqual(t, v, 0.0, name)
			assert.LessOrEqual(t, v, 1.0, name)
		}
		assert.Greater(t, m.Confusion.Total(), 0)
	}
	// The ml phase has real signal; the model must beat coin flipping.
	assert.Greater(t, a.TestMetrics.ROCAUC, 0.5)
}

func TestTrainRandomForest(t *testing.T) {
	tbl := trainingTable(t)

	a, err := Train(tbl, ModelRF, 0.2)
	require.NoError(t, err)
	assert.Equal(t, ModelRF, a.ModelType)
	assert.Greater(t, a.TrainMetrics.F1, 0.0)
}

func TestTrainRequiresTarget(t *testing.T) {
	tbl := table.MustNew(
		table.NewNumeric("x", []float64{1, 2, 3, 4}),
	)
	_, err := Train(tbl, ModelLogReg, 0.2)
	require.Error(t, err)
	var schema *errors.SchemaError
	assert.True(t, errors.As(err, &schema))
	assert.Equal(t, TargetColumn, schema.Column)
}

func TestTrainUnknownModelType(t *testing.T) {
	tbl := trainingTable(t)
	_, err := Train(tbl, "svm", 0.2)
	require.Error(t, err)
	var validation *errors.ValidationError
	assert.True(t, errors.As(err, &validation))
}

func TestStratifiedSplitPreservesClasses(t *testing.T) {
	y := make([]float64, 100)
	for i := 70; i < 100; i++ {
		y[i] = 1
	}
	trainIdx, testIdx, err := StratifiedSplit(y, 0.2, 42)
	require.NoError(t, err)

	assert.Len(t, trainIdx, 80)
	assert.Len(t, testIdx, 20)
	countPos := func(idx []int) int {
		n := 0
		for _, i := range idx {
			if y[i] == 1 {
				n++
			}
		}
		return n
	}
	assert.Equal(t, 24, countPos(trainIdx))
	assert.Equal(t, 6, countPos(testIdx))

	// Same seed reproduces the same partition.
	trainIdx2, _, err := StratifiedSplit(y, 0.2, 42)
	require.NoError(t, err)
	assert.Equal(t, trainIdx, trainIdx2)
}

func TestPredictReturnsLabelPerRow(t *testing.T) {
	tbl := trainingTable(t)
	a, err := Train(tbl, ModelLogReg, 0.2)
	require.NoError(t, err)

	features := tbl.Clone()
	features.DropCol(TargetColumn)
	pred, err := Predict(a, features)
	require.NoError(t, err)

	assert.Len(t, pred.Labels, tbl.NumRows())
	for _, l := range pred.Labels {
		assert.Contains(t, []int{0, 1}, l)
	}
	assert.Len(t, pred.Probabilities, tbl.NumRows())
	for _, p := range pred.Probabilities {
		assert.GreaterOrEqual(t, p, 0.0)
		assert.LessOrEqual(t, p, 1.0)
	}
}

func TestReconcileUnseenLevelAndMissingColumns(t *testing.T) {
	fit := table.MustNew(
		table.NewNumeric("x", []float64{1, 2, 3, 4, 5, 6, 7, 8}),
		table.NewCategorical("seg", []string{"a", "b", "a", "b", "a", "b", "a", "b"}),
		table.NewNumeric(TargetColumn, []float64{0, 0, 0, 0, 1, 1, 1, 1}),
	)
	a, err := Train(fit, ModelLogReg, 0.25)
	require.NoError(t, err)

	// "z" is an unseen level; x is missing entirely.
	rows := table.MustNew(
		table.NewCategorical("seg", []string{"z", "b"}),
		table.NewNumeric("extra", []float64{9, 9}),
	)
	pred, err := Predict(a, rows)
	require.NoError(t, err)
	assert.Len(t, pred.Labels, 2, "unseen levels must not break prediction")
}

func TestReconcileSchemaAlignment(t *testing.T) {
	schema := &FeatureSchema{Columns: []string{"x", "seg_b", "seg_c"}}
	rows := table.MustNew(
		table.NewNumeric("x", []float64{1, math.NaN()}),
		table.NewCategorical("seg", []string{"c", "b"}),
		table.NewNumeric("dropped", []float64{7, 7}),
	)

	X, err := schema.Reconcile(rows)
	require.NoError(t, err)
	r, c := X.Dims()
	assert.Equal(t, 2, r)
	assert.Equal(t, 3, c)

	// Row 0: x=1, seg=c. Input expansion drops "b" as its first level,
	// so seg_c is present and seg_b is zero-filled from the schema.
	assert.Equal(t, 1.0, X.At(0, 0))
	assert.Equal(t, 0.0, X.At(0, 1))
	assert.Equal(t, 1.0, X.At(0, 2))
	// Row 1: missing x fills with zero, not the training mean.
	assert.Equal(t, 0.0, X.At(1, 0))
}

func TestEncodeFeaturesImputesAndFreezesSchema(t *testing.T) {
	tbl := table.MustNew(
		table.NewNumeric("a", []float64{1, math.NaN(), 3}),
		table.NewCategorical("seg", []string{"x", "y", "x"}),
		table.NewNumeric(TargetColumn, []float64{0, 1, 0}),
	)
	X, y, schema, err := EncodeFeatures(tbl)
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "seg_y"}, schema.Columns)
	assert.Equal(t, []float64{0, 1, 0}, y)
	// NaN in a imputed with mean(1, 3) = 2.
	assert.Equal(t, 2.0, X.At(1, 0))
}
