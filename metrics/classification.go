// Package metrics provides classification metric kernels for binary
// targets encoded as 0/1.
package metrics

import (
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/prepflow/pkg/errors"
)

// ConfusionMatrix holds the four cells of a binary confusion matrix.
type ConfusionMatrix struct {
	TN int `json:"tn"`
	FP int `json:"fp"`
	FN int `json:"fn"`
	TP int `json:"tp"`
}

// Total returns the number of evaluated rows.
func (cm ConfusionMatrix) Total() int {
	return cm.TN + cm.FP + cm.FN + cm.TP
}

func validatePair(op string, yTrue, yPred *mat.VecDense) (int, error) {
	if yTrue == nil || yTrue.Len() == 0 {
		return 0, errors.NewValueError(op, "empty vector")
	}
	n := yTrue.Len()
	if yPred == nil || yPred.Len() != n {
		got := 0
		if yPred != nil {
			got = yPred.Len()
		}
		return 0, errors.NewDimensionError(op, n, got, 0)
	}
	return n, nil
}

// Confusion computes the binary confusion matrix. Any non-zero label is
// treated as the positive class.
func Confusion(yTrue, yPred *mat.VecDense) (ConfusionMatrix, error) {
	n, err := validatePair("Confusion", yTrue, yPred)
	if err != nil {
		return ConfusionMatrix{}, err
	}
	var cm ConfusionMatrix
	for i := 0; i < n; i++ {
		truePos := yTrue.AtVec(i) != 0
		predPos := yPred.AtVec(i) != 0
		switch {
		case truePos && predPos:
			cm.TP++
		case truePos && !predPos:
			cm.FN++
		case !truePos && predPos:
			cm.FP++
		default:
			cm.TN++
		}
	}
	return cm, nil
}

// Accuracy returns the fraction of matching labels.
func Accuracy(yTrue, yPred *mat.VecDense) (float64, error) {
	cm, err := Confusion(yTrue, yPred)
	if err != nil {
		return 0, err
	}
	return float64(cm.TP+cm.TN) / float64(cm.Total()), nil
}

// Precision returns TP / (TP + FP). An undefined ratio degrades to 0.
func Precision(yTrue, yPred *mat.VecDense) (float64, error) {
	cm, err := Confusion(yTrue, yPred)
	if err != nil {
		return 0, err
	}
	denom := cm.TP + cm.FP
	if denom == 0 {
		return 0, nil
	}
	return float64(cm.TP) / float64(denom), nil
}

// Recall returns TP / (TP + FN). An undefined ratio degrades to 0.
func Recall(yTrue, yPred *mat.VecDense) (float64, error) {
	cm, err := Confusion(yTrue, yPred)
	if err != nil {
		return 0, err
	}
	denom := cm.TP + cm.FN
	if denom == 0 {
		return 0, nil
	}
	return float64(cm.TP) / float64(denom), nil
}

// F1 returns the harmonic mean of precision and recall, 0 when undefined.
func F1(yTrue, yPred *mat.VecDense) (float64, error) {
	p, err := Precision(yTrue, yPred)
	if err != nil {
		return 0, err
	}
	r, err := Recall(yTrue, yPred)
	if err != nil {
		return 0, err
	}
	if p+r == 0 {
		return 0, nil
	}
	return 2 * p * r / (p + r), nil
}

// AUC computes the area under the ROC curve from positive-class scores
// using the rank statistic with average ranks for ties. Labels must be 0
// or 1; a degenerate input with a single class returns 0.5.
func AUC(yTrue, yScore *mat.VecDense) (float64, error) {
	n, err := validatePair("AUC", yTrue, yScore)
	if err != nil {
		return 0, err
	}

	nPos := 0
	for i := 0; i < n; i++ {
		label := yTrue.AtVec(i)
		if label != 0 && label != 1 {
			return 0, errors.NewValueError("AUC", "labels must be binary (0 or 1)")
		}
		if label == 1 {
			nPos++
		}
	}
	nNeg := n - nPos
	if nPos == 0 || nNeg == 0 {
		return 0.5, nil
	}

	type scored struct {
		score float64
		pos   bool
	}
	items := make([]scored, n)
	for i := 0; i < n; i++ {
		items[i] = scored{score: yScore.AtVec(i), pos: yTrue.AtVec(i) == 1}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].score < items[j].score })

	// Sum average ranks of positives, handling tied scores in blocks.
	rankSum := 0.0
	i := 0
	for i < n {
		j := i
		for j < n && items[j].score == items[i].score {
			j++
		}
		avgRank := float64(i+j+1) / 2.0 // ranks are 1-based
		for k := i; k < j; k++ {
			if items[k].pos {
				rankSum += avgRank
			}
		}
		i = j
	}

	auc := (rankSum - float64(nPos)*float64(nPos+1)/2.0) / (float64(nPos) * float64(nNeg))
	return auc, nil
}
