package model

import (
	"gonum.org/v1/gonum/mat"
)

// Classifier is the minimum contract for a trainable classification model.
// X is an n_samples x n_features design matrix; y is an n_samples x 1
// column vector of class labels.
type Classifier interface {
	Fit(X, y mat.Matrix) error

	// Predict returns an n_samples x 1 column vector of class labels.
	Predict(X mat.Matrix) (mat.Matrix, error)

	// GetParams returns the model's hyperparameters.
	GetParams() map[string]interface{}
}

// ProbabilityEstimator is implemented by classifiers that can return class
// membership probabilities. Binary classifiers return an n_samples x 2
// matrix with the positive class in column 1.
type ProbabilityEstimator interface {
	PredictProba(X mat.Matrix) (mat.Matrix, error)
}

// CoefProvider is implemented by linear models. Coefficients are aligned
// with the feature order the model was fitted on.
type CoefProvider interface {
	Coefficients() []float64
	Intercept() float64
}

// ImportanceProvider is implemented by tree-ensemble models. Importances
// are normalized impurity decreases aligned with the fitted feature order.
type ImportanceProvider interface {
	FeatureImportances() []float64
}

// Transformer is the fit/transform contract for preprocessing steps.
type Transformer interface {
	Fit(X mat.Matrix) error
	Transform(X mat.Matrix) (mat.Matrix, error)
	FitTransform(X mat.Matrix) (mat.Matrix, error)
}
