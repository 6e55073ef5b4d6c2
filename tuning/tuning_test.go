package tuning

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/prepflow/dataset"
	"github.com/YuminosukeSato/prepflow/pipeline"
	"github.com/YuminosukeSato/prepflow/pkg/errors"
)

func TestParamGrid(t *testing.T) {
	logreg, err := paramGrid(pipeline.ModelLogReg)
	require.NoError(t, err)
	// 5 C values x 1 penalty x 2 solvers.
	assert.Len(t, logreg, 10)

	rf, err := paramGrid(pipeline.ModelRF)
	require.NoError(t, err)
	// 3 x 4 x 3 x 3 combinations.
	assert.Len(t, rf, 108)

	_, err = paramGrid("svm")
	require.Error(t, err)
	var validation *errors.ValidationError
	assert.True(t, errors.As(err, &validation))
}

func TestStratifiedFolds(t *testing.T) {
	y := make([]float64, 50)
	for i := 35; i < 50; i++ {
		y[i] = 1
	}
	folds := stratifiedFolds(y, 5, 42)
	require.Len(t, folds, 5)

	seen := make(map[int]int)
	for _, fold := range folds {
		assert.Len(t, fold, 10)
		pos := 0
		for _, r := range fold {
			seen[r]++
			if y[r] == 1 {
				pos++
			}
		}
		assert.Equal(t, 3, pos, "each fold keeps the class ratio")
	}
	assert.Len(t, seen, 50, "every row lands in exactly one fold")
}

func TestTuneGridLogReg(t *testing.T) {
	tbl, err := dataset.Generate(dataset.PhaseML, 42, 150)
	require.NoError(t, err)

	result, err := Tune(tbl, pipeline.ModelLogReg, SearchGrid, 3)
	require.NoError(t, err)

	require.NotNil(t, result.Artifact)
	assert.Contains(t, result.Artifact.ID, "model_logreg_")
	assert.NotEmpty(t, result.BestParams)
	assert.GreaterOrEqual(t, result.BestScore, 0.0)
	assert.LessOrEqual(t, result.BestScore, 1.0)

	require.NotEmpty(t, result.Candidates)
	assert.LessOrEqual(t, len(result.Candidates), 5)
	for i, c := range result.Candidates {
		assert.Equal(t, i+1, c.Rank)
		if i > 0 {
			assert.LessOrEqual(t, c.MeanScore, result.Candidates[i-1].MeanScore,
				"candidates are sorted best first")
		}
	}
	assert.Equal(t, result.Candidates[0].MeanScore, result.BestScore)
}

func TestTuneRandomSamplesTen(t *testing.T) {
	tbl, err := dataset.Generate(dataset.PhaseML, 42, 120)
	require.NoError(t, err)

	result, err := Tune(tbl, pipeline.ModelRF, SearchRandom, 2)
	require.NoError(t, err)
	require.NotNil(t, result.Artifact)
	// Random search scores 10 of the 108 rf combinations; only the top
	// five are reported.
	assert.LessOrEqual(t, len(result.Candidates), 5)
}

func TestTuneValidation(t *testing.T) {
	tbl, err := dataset.Generate(dataset.PhaseML, 42, 100)
	require.NoError(t, err)

	_, err = Tune(tbl, pipeline.ModelLogReg, "annealing", 3)
	require.Error(t, err)

	_, err = Tune(tbl, pipeline.ModelLogReg, SearchGrid, 1)
	require.Error(t, err)
}
