// Package tuning implements cross-validated hyperparameter search over
// fixed per-model parameter grids, scored by F1.
package tuning

import (
	"math"
	"math/rand"
	"sort"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/prepflow/core/parallel"
	"github.com/YuminosukeSato/prepflow/metrics"
	"github.com/YuminosukeSato/prepflow/pipeline"
	"github.com/YuminosukeSato/prepflow/pkg/errors"
	"github.com/YuminosukeSato/prepflow/pkg/log"
	"github.com/YuminosukeSato/prepflow/preprocessing"
	"github.com/YuminosukeSato/prepflow/table"
)

// SearchType selects the search strategy.
type SearchType string

const (
	SearchGrid   SearchType = "grid"
	SearchRandom SearchType = "random"
)

const (
	searchSeed    = 42
	randomSamples = 10
	topCandidates = 5
)

// Candidate is one scored parameter configuration.
type Candidate struct {
	Params    map[string]interface{} `json:"params"`
	MeanScore float64                `json:"mean_score"`
	StdScore  float64                `json:"std_score"`
	Rank      int                    `json:"rank"`
}

// Result is the outcome of one Tune call: the refitted best artifact
// plus the ranked candidate summaries.
type Result struct {
	Artifact   *pipeline.ModelArtifact `json:"artifact"`
	BestParams map[string]interface{}  `json:"best_params"`
	BestScore  float64                 `json:"best_score"`
	Candidates []Candidate             `json:"ranked_candidates"`
}

// paramGrid enumerates every combination of the fixed per-model grid.
func paramGrid(modelType pipeline.ModelType) ([]map[string]interface{}, error) {
	switch modelType {
	case pipeline.ModelLogReg:
		var out []map[string]interface{}
		for _, c := range []float64{0.01, 0.1, 1, 10, 100} {
			for _, penalty := range []string{"l2"} {
				for _, solver := range []string{"lbfgs", "liblinear"} {
					out = append(out, map[string]interface{}{
						"C":       c,
						"penalty": penalty,
						"solver":  solver,
					})
				}
			}
		}
		return out, nil
	case pipeline.ModelRF:
		var out []map[string]interface{}
		for _, n := range []int{50, 100, 200} {
			for _, depth := range []int{5, 10, 20, 0} {
				for _, split := range []int{2, 5, 10} {
					for _, leaf := range []int{1, 2, 4} {
						out = append(out, map[string]interface{}{
							"n_estimators":      n,
							"max_depth":         depth,
							"min_samples_split": split,
							"min_samples_leaf":  leaf,
						})
					}
				}
			}
		}
		return out, nil
	default:
		return nil, errors.NewValidationError("model_type", "must be one of logreg, rf", string(modelType))
	}
}

// stratifiedFolds partitions row indices into k test folds preserving
// class proportions, deterministically per seed.
func stratifiedFolds(y []float64, k int, seed int64) [][]int {
	byClass := make(map[float64][]int)
	for i, v := range y {
		byClass[v] = append(byClass[v], i)
	}
	classes := make([]float64, 0, len(byClass))
	for v := range byClass {
		classes = append(classes, v)
	}
	sort.Float64s(classes)

	rnd := rand.New(rand.NewSource(seed))
	folds := make([][]int, k)
	for _, cls := range classes {
		idx := byClass[cls]
		rnd.Shuffle(len(idx), func(a, b int) { idx[a], idx[b] = idx[b], idx[a] })
		for i, r := range idx {
			folds[i%k] = append(folds[i%k], r)
		}
	}
	return folds
}

// crossValScore scores one candidate by mean/std F1 over stratified
// folds. The scaler refits inside each fold to avoid leakage.
func crossValScore(X *mat.Dense, y []float64, folds [][]int, modelType pipeline.ModelType, params map[string]interface{}) (mean, std float64, err error) {
	n := len(y)
	inFold := make([]int, n)
	for f, fold := range folds {
		for _, r := range fold {
			inFold[r] = f
		}
	}

	scores := make([]float64, 0, len(folds))
	for f := range folds {
		var trainIdx, testIdx []int
		for i := 0; i < n; i++ {
			if inFold[i] == f {
				testIdx = append(testIdx, i)
			} else {
				trainIdx = append(trainIdx, i)
			}
		}
		if len(trainIdx) == 0 || len(testIdx) == 0 {
			continue
		}
		XTrain, yTrain := subset(X, y, trainIdx)
		XTest, yTest := subset(X, y, testIdx)

		scaler := preprocessing.NewStandardScaler()
		XTrainStd, err := scaler.FitTransform(XTrain)
		if err != nil {
			return 0, 0, err
		}
		XTestStd, err := scaler.Transform(XTest)
		if err != nil {
			return 0, 0, err
		}

		clf, err := pipeline.NewClassifier(modelType, params)
		if err != nil {
			return 0, 0, err
		}
		if err := clf.Fit(XTrainStd, yTrain); err != nil {
			return 0, 0, err
		}
		pred, err := clf.Predict(XTestStd)
		if err != nil {
			return 0, 0, err
		}
		m, _ := pred.Dims()
		yPred := mat.NewVecDense(m, nil)
		for i := 0; i < m; i++ {
			yPred.SetVec(i, pred.At(i, 0))
		}
		score, err := metrics.F1(yTest, yPred)
		if err != nil {
			return 0, 0, err
		}
		scores = append(scores, score)
	}
	if len(scores) == 0 {
		return 0, 0, errors.NewValueError("tuning.crossValScore", "no scorable folds")
	}

	for _, s := range scores {
		mean += s
	}
	mean /= float64(len(scores))
	for _, s := range scores {
		std += (s - mean) * (s - mean)
	}
	std = math.Sqrt(std / float64(len(scores)))
	return mean, std, nil
}

func subset(X *mat.Dense, y []float64, idx []int) (*mat.Dense, *mat.VecDense) {
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

// Tune searches the fixed parameter grid for modelType under k-fold
// stratified cross-validation, fans candidate fits out across workers,
// and refits the best configuration through the standard train path.
func Tune(t *table.Table, modelType pipeline.ModelType, search SearchType, cvFolds int) (*Result, error) {
	start := time.Now()
	if cvFolds < 2 {
		return nil, errors.NewValidationError("cv_folds", "must be at least 2", cvFolds)
	}
	candidates, err := paramGrid(modelType)
	if err != nil {
		return nil, err
	}
	switch search {
	case SearchGrid:
	case SearchRandom:
		rnd := rand.New(rand.NewSource(searchSeed))
		rnd.Shuffle(len(candidates), func(a, b int) {
			candidates[a], candidates[b] = candidates[b], candidates[a]
		})
		if len(candidates) > randomSamples {
			candidates = candidates[:randomSamples]
		}
	default:
		return nil, errors.NewValidationError("search", "must be one of grid, random", string(search))
	}

	X, y, _, err := pipeline.EncodeFeatures(t)
	if err != nil {
		return nil, err
	}
	folds := stratifiedFolds(y, cvFolds, searchSeed)

	scored := make([]Candidate, len(candidates))
	cvErrs := make([]error, len(candidates))
	parallel.ForEach(len(candidates), func(i int) {
		mean, std, err := crossValScore(X, y, folds, modelType, candidates[i])
		if err != nil {
			cvErrs[i] = err
			return
		}
		scored[i] = Candidate{Params: candidates[i], MeanScore: mean, StdScore: std}
	})
	for _, err := range cvErrs {
		if err != nil {
			return nil, err
		}
	}

	// Stable sort keeps the search routine's own order among ties.
	sort.SliceStable(scored, func(a, b int) bool {
		return scored[a].MeanScore > scored[b].MeanScore
	})
	for i := range scored {
		scored[i].Rank = i + 1
	}

	best := scored[0]
	artifact, err := pipeline.TrainWithParams(t, modelType, 0.2, best.Params)
	if err != nil {
		return nil, err
	}
	if len(scored) > topCandidates {
		scored = scored[:topCandidates]
	}

	lg := log.With("tuning")
	lg.Info().
		Str(log.ModelIDKey, artifact.ID).
		Str(log.ModelTypeKey, string(modelType)).
		Str("search", string(search)).
		Int("cv_folds", cvFolds).
		Int("candidates", len(candidates)).
		Float64("best_score", best.MeanScore).
		Int64(log.DurationMsKey, time.Since(start).Milliseconds()).
		Msg("hyperparameter search finished")
	return &Result{
		Artifact:   artifact,
		BestParams: best.Params,
		BestScore:  best.MeanScore,
		Candidates: scored,
	}, nil
}
