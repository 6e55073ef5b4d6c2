// Package linear provides linear classification models.
package linear

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/prepflow/core/model"
	"github.com/YuminosukeSato/prepflow/pkg/errors"
)

// LogisticRegression is a binary logistic regression classifier fitted by
// gradient descent with an adaptive learning-rate schedule.
type LogisticRegression struct {
	state *model.StateManager

	// Hyperparameters
	penalty     string  // "l2" or "none"
	c           float64 // inverse regularization strength
	solver      string  // accepted for parity with the search grids; both values run the same optimizer
	maxIter     int
	tol         float64
	randomState int64

	// Fitted parameters
	coef      []float64
	intercept float64
	nIter     int

	rand *rand.Rand
}

// Option configures a LogisticRegression.
type Option func(*LogisticRegression)

// WithC sets the inverse regularization strength.
func WithC(c float64) Option {
	return func(lr *LogisticRegression) { lr.c = c }
}

// WithPenalty sets the regularization type ("l2" or "none").
func WithPenalty(penalty string) Option {
	return func(lr *LogisticRegression) { lr.penalty = penalty }
}

// WithSolver sets the solver name ("lbfgs" or "liblinear").
func WithSolver(solver string) Option {
	return func(lr *LogisticRegression) { lr.solver = solver }
}

// WithMaxIter sets the maximum number of iterations.
func WithMaxIter(maxIter int) Option {
	return func(lr *LogisticRegression) { lr.maxIter = maxIter }
}

// WithTol sets the convergence tolerance on the gradient norm.
func WithTol(tol float64) Option {
	return func(lr *LogisticRegression) { lr.tol = tol }
}

// WithRandomState sets the weight-initialization seed.
func WithRandomState(seed int64) Option {
	return func(lr *LogisticRegression) { lr.randomState = seed }
}

// NewLogisticRegression creates a classifier with sklearn-style defaults.
func NewLogisticRegression(opts ...Option) *LogisticRegression {
	lr := &LogisticRegression{
		state:       model.NewStateManager(),
		penalty:     "l2",
		c:           1.0,
		solver:      "lbfgs",
		maxIter:     1000,
		tol:         1e-4,
		randomState: 42,
	}
	for _, opt := range opts {
		opt(lr)
	}
	lr.rand = rand.New(rand.NewSource(lr.randomState))
	return lr
}

// Fit trains the classifier. y must be an n x 1 column vector of 0/1
// labels.
func (lr *LogisticRegression) Fit(X, y mat.Matrix) error {
	nSamples, nFeatures := X.Dims()
	yRows, yCols := y.Dims()
	if nSamples == 0 {
		return errors.NewModelError("LogisticRegression.Fit", "empty data", errors.ErrEmptyData)
	}
	if yRows != nSamples {
		return errors.NewDimensionError("LogisticRegression.Fit", nSamples, yRows, 0)
	}
	if yCols != 1 {
		return errors.NewDimensionError("LogisticRegression.Fit", 1, yCols, 1)
	}

	lr.coef = make([]float64, nFeatures)
	for j := range lr.coef {
		lr.coef[j] = lr.rand.NormFloat64() * 0.01
	}
	lr.intercept = 0

	baseLearningRate := 1.0
	gradWeights := make([]float64, nFeatures)

	for iter := 0; iter < lr.maxIter; iter++ {
		for j := range gradWeights {
			gradWeights[j] = 0
		}
		gradIntercept := 0.0

		for i := 0; i < nSamples; i++ {
			z := lr.intercept
			for j := 0; j < nFeatures; j++ {
				z += X.At(i, j) * lr.coef[j]
			}
			residual := sigmoid(z) - y.At(i, 0)
			gradIntercept += residual
			for j := 0; j < nFeatures; j++ {
				gradWeights[j] += residual * X.At(i, j)
			}
		}

		for j := range gradWeights {
			gradWeights[j] /= float64(nSamples)
		}
		gradIntercept /= float64(nSamples)

		if lr.penalty == "l2" {
			lambda := 1.0 / lr.c
			for j := range lr.coef {
				gradWeights[j] += lambda * lr.coef[j] / float64(nSamples)
			}
		}

		learningRate := baseLearningRate / (1.0 + 0.1*float64(iter))
		for j := range lr.coef {
			lr.coef[j] -= learningRate * gradWeights[j]
		}
		lr.intercept -= learningRate * gradIntercept
		lr.nIter = iter + 1

		maxGrad := math.Abs(gradIntercept)
		for _, g := range gradWeights {
			if math.Abs(g) > maxGrad {
				maxGrad = math.Abs(g)
			}
		}
		if maxGrad < lr.tol {
			break
		}
	}

	lr.state.SetDimensions(nFeatures, nSamples)
	lr.state.SetFitted()
	return nil
}

// Predict returns an n x 1 column vector of 0/1 labels.
func (lr *LogisticRegression) Predict(X mat.Matrix) (mat.Matrix, error) {
	proba, err := lr.PredictProba(X)
	if err != nil {
		return nil, err
	}
	nSamples, _ := proba.Dims()
	predictions := mat.NewDense(nSamples, 1, nil)
	for i := 0; i < nSamples; i++ {
		if proba.At(i, 1) >= 0.5 {
			predictions.Set(i, 0, 1)
		}
	}
	return predictions, nil
}

// PredictProba returns an n x 2 matrix of class probabilities with the
// positive class in column 1.
func (lr *LogisticRegression) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	if err := lr.state.RequireFitted("LogisticRegression", "PredictProba"); err != nil {
		return nil, err
	}
	nSamples, nFeatures := X.Dims()
	if nFeatures != len(lr.coef) {
		return nil, errors.NewDimensionError("LogisticRegression.PredictProba", len(lr.coef), nFeatures, 1)
	}

	probas := mat.NewDense(nSamples, 2, nil)
	for i := 0; i < nSamples; i++ {
		z := lr.intercept
		for j := 0; j < nFeatures; j++ {
			z += X.At(i, j) * lr.coef[j]
		}
		p := sigmoid(z)
		probas.Set(i, 0, 1-p)
		probas.Set(i, 1, p)
	}
	return probas, nil
}

// Coefficients returns the fitted weights aligned with the training
// feature order.
func (lr *LogisticRegression) Coefficients() []float64 {
	return append([]float64(nil), lr.coef...)
}

// Intercept returns the fitted intercept.
func (lr *LogisticRegression) Intercept() float64 {
	return lr.intercept
}

// NIter returns the number of iterations the optimizer ran.
func (lr *LogisticRegression) NIter() int {
	return lr.nIter
}

// GetParams returns the hyperparameters.
func (lr *LogisticRegression) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"C":            lr.c,
		"penalty":      lr.penalty,
		"solver":       lr.solver,
		"max_iter":     lr.maxIter,
		"tol":          lr.tol,
		"random_state": lr.randomState,
	}
}

func sigmoid(z float64) float64 {
	return 1.0 / (1.0 + math.Exp(-z))
}

var (
	_ model.Classifier           = (*LogisticRegression)(nil)
	_ model.ProbabilityEstimator = (*LogisticRegression)(nil)
	_ model.CoefProvider         = (*LogisticRegression)(nil)
)
