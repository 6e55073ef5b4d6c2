// Package tree provides CART decision trees and random-forest ensembles
// for binary classification.
package tree

import (
	"math/rand"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/prepflow/core/model"
	"github.com/YuminosukeSato/prepflow/pkg/errors"
)

// DecisionTree is a CART-style binary classifier splitting on numeric
// thresholds with the Gini criterion.
type DecisionTree struct {
	state *model.StateManager

	maxDepth        int // 0 means unlimited
	minSamplesSplit int
	minSamplesLeaf  int
	maxFeatures     int // 0 means all features
	randomState     int64

	root        *node
	nFeatures   int
	importances []float64
}

type node struct {
	leaf      bool
	feature   int
	threshold float64 // x <= threshold goes left
	left      *node
	right     *node

	n     int
	proba float64 // positive-class fraction at this node
}

// TreeOption configures a DecisionTree.
type TreeOption func(*DecisionTree)

// WithMaxDepth limits tree depth; 0 means no limit.
func WithMaxDepth(d int) TreeOption {
	return func(t *DecisionTree) { t.maxDepth = d }
}

// WithMinSamplesSplit sets the minimum samples required to attempt a split.
func WithMinSamplesSplit(n int) TreeOption {
	return func(t *DecisionTree) { t.minSamplesSplit = n }
}

// WithMinSamplesLeaf sets the minimum samples required in each leaf.
func WithMinSamplesLeaf(n int) TreeOption {
	return func(t *DecisionTree) { t.minSamplesLeaf = n }
}

// WithMaxFeatures limits the number of features considered per split;
// 0 means all.
func WithMaxFeatures(k int) TreeOption {
	return func(t *DecisionTree) { t.maxFeatures = k }
}

// WithTreeRandomState seeds feature subsampling.
func WithTreeRandomState(seed int64) TreeOption {
	return func(t *DecisionTree) { t.randomState = seed }
}

// NewDecisionTree creates a tree with sklearn-style defaults.
func NewDecisionTree(opts ...TreeOption) *DecisionTree {
	t := &DecisionTree{
		state:           model.NewStateManager(),
		minSamplesSplit: 2,
		minSamplesLeaf:  1,
		randomState:     42,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Fit grows the tree on X (n x p) and 0/1 labels y (n x 1).
func (t *DecisionTree) Fit(X, y mat.Matrix) error {
	nSamples, nFeatures := X.Dims()
	yRows, _ := y.Dims()
	if nSamples == 0 {
		return errors.NewModelError("DecisionTree.Fit", "empty data", errors.ErrEmptyData)
	}
	if yRows != nSamples {
		return errors.NewDimensionError("DecisionTree.Fit", nSamples, yRows, 0)
	}

	rows := make([][]float64, nSamples)
	labels := make([]float64, nSamples)
	for i := 0; i < nSamples; i++ {
		rows[i] = make([]float64, nFeatures)
		for j := 0; j < nFeatures; j++ {
			rows[i][j] = X.At(i, j)
		}
		labels[i] = y.At(i, 0)
	}

	idx := make([]int, nSamples)
	for i := range idx {
		idx[i] = i
	}

	t.nFeatures = nFeatures
	t.importances = make([]float64, nFeatures)
	rnd := rand.New(rand.NewSource(t.randomState))
	t.root = t.grow(rows, labels, idx, 0, nSamples, rnd)

	// Importances are normalized impurity decreases.
	total := 0.0
	for _, v := range t.importances {
		total += v
	}
	if total > 0 {
		for j := range t.importances {
			t.importances[j] /= total
		}
	}

	t.state.SetDimensions(nFeatures, nSamples)
	t.state.SetFitted()
	return nil
}

func (t *DecisionTree) grow(rows [][]float64, labels []float64, idx []int, depth, total int, rnd *rand.Rand) *node {
	nPos := 0
	for _, i := range idx {
		if labels[i] == 1 {
			nPos++
		}
	}
	nd := &node{n: len(idx), proba: float64(nPos) / float64(len(idx))}

	pure := nPos == 0 || nPos == len(idx)
	if pure || len(idx) < t.minSamplesSplit || (t.maxDepth > 0 && depth >= t.maxDepth) {
		nd.leaf = true
		return nd
	}

	feature, threshold, gain, leftIdx, rightIdx := t.bestSplit(rows, labels, idx, rnd)
	if feature < 0 || gain <= 0 {
		nd.leaf = true
		return nd
	}

	t.importances[feature] += float64(len(idx)) / float64(total) * gain
	nd.feature = feature
	nd.threshold = threshold
	nd.left = t.grow(rows, labels, leftIdx, depth+1, total, rnd)
	nd.right = t.grow(rows, labels, rightIdx, depth+1, total, rnd)
	return nd
}

// bestSplit scans candidate features for the threshold with the largest
// Gini decrease.
func (t *DecisionTree) bestSplit(rows [][]float64, labels []float64, idx []int, rnd *rand.Rand) (int, float64, float64, []int, []int) {
	p := t.nFeatures
	features := make([]int, p)
	for j := range features {
		features[j] = j
	}
	if t.maxFeatures > 0 && t.maxFeatures < p {
		rnd.Shuffle(p, func(i, j int) { features[i], features[j] = features[j], features[i] })
		features = features[:t.maxFeatures]
	}

	parent := giniOf(labels, idx)
	bestFeature := -1
	bestThreshold := 0.0
	bestGain := 0.0

	type pair struct {
		v float64
		i int
	}
	for _, f := range features {
		pairs := make([]pair, len(idx))
		for k, i := range idx {
			pairs[k] = pair{v: rows[i][f], i: i}
		}
		sort.Slice(pairs, func(a, b int) bool { return pairs[a].v < pairs[b].v })

		// Running positive counts allow a single left-to-right sweep.
		nPosTotal := 0
		for _, pr := range pairs {
			if labels[pr.i] == 1 {
				nPosTotal++
			}
		}
		nPosLeft := 0
		for s := 1; s < len(pairs); s++ {
			if labels[pairs[s-1].i] == 1 {
				nPosLeft++
			}
			if pairs[s].v == pairs[s-1].v {
				continue
			}
			nLeft, nRight := s, len(pairs)-s
			if nLeft < t.minSamplesLeaf || nRight < t.minSamplesLeaf {
				continue
			}
			impL := giniBinary(nPosLeft, nLeft)
			impR := giniBinary(nPosTotal-nPosLeft, nRight)
			weighted := float64(nLeft)/float64(len(pairs))*impL + float64(nRight)/float64(len(pairs))*impR
			gain := parent - weighted
			if gain > bestGain {
				bestGain = gain
				bestFeature = f
				bestThreshold = (pairs[s-1].v + pairs[s].v) / 2.0
			}
		}
	}

	if bestFeature < 0 {
		return -1, 0, 0, nil, nil
	}
	var leftIdx, rightIdx []int
	for _, i := range idx {
		if rows[i][bestFeature] <= bestThreshold {
			leftIdx = append(leftIdx, i)
		} else {
			rightIdx = append(rightIdx, i)
		}
	}
	return bestFeature, bestThreshold, bestGain, leftIdx, rightIdx
}

func giniOf(labels []float64, idx []int) float64 {
	nPos := 0
	for _, i := range idx {
		if labels[i] == 1 {
			nPos++
		}
	}
	return giniBinary(nPos, len(idx))
}

func giniBinary(nPos, n int) float64 {
	if n == 0 {
		return 0
	}
	p := float64(nPos) / float64(n)
	return 2 * p * (1 - p)
}

// Predict returns an n x 1 column vector of 0/1 labels.
func (t *DecisionTree) Predict(X mat.Matrix) (mat.Matrix, error) {
	proba, err := t.PredictProba(X)
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

// PredictProba returns an n x 2 matrix of class probabilities.
func (t *DecisionTree) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	if err := t.state.RequireFitted("DecisionTree", "PredictProba"); err != nil {
		return nil, err
	}
	n, p := X.Dims()
	if p != t.nFeatures {
		return nil, errors.NewDimensionError("DecisionTree.PredictProba", t.nFeatures, p, 1)
	}
	out := mat.NewDense(n, 2, nil)
	for i := 0; i < n; i++ {
		nd := t.root
		for !nd.leaf {
			if X.At(i, nd.feature) <= nd.threshold {
				nd = nd.left
			} else {
				nd = nd.right
			}
		}
		out.Set(i, 0, 1-nd.proba)
		out.Set(i, 1, nd.proba)
	}
	return out, nil
}

// FeatureImportances returns normalized impurity decreases per feature.
func (t *DecisionTree) FeatureImportances() []float64 {
	return append([]float64(nil), t.importances...)
}

// GetParams returns the hyperparameters.
func (t *DecisionTree) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"max_depth":         t.maxDepth,
		"min_samples_split": t.minSamplesSplit,
		"min_samples_leaf":  t.minSamplesLeaf,
		"max_features":      t.maxFeatures,
		"random_state":      t.randomState,
	}
}

var (
	_ model.Classifier           = (*DecisionTree)(nil)
	_ model.ProbabilityEstimator = (*DecisionTree)(nil)
	_ model.ImportanceProvider   = (*DecisionTree)(nil)
)
