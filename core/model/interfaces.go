package model

import (
	"io"

	"gonum.org/v1/gonum/mat"
)

// Fitter は学習可能なモデルのインターフェース
type Fitter interface {
	// Fit はモデルを訓練データで学習させる
	Fit(X, y mat.Matrix) error
}

// Predictor は予測可能なモデルのインターフェース
type Predictor interface {
	// Predict は入力データに対する予測を行う
	Predict(X mat.Matrix) (mat.Matrix, error)
}

// Scorer is the interface for models that can compute a score.
type Scorer interface {
	// Score returns the mean accuracy of the predictions for X against y.
	Score(X, y mat.Matrix) (float64, error)
}

// ParameterGetter is the interface for models that expose their parameters.
type ParameterGetter interface {
	// GetParams returns the model's hyperparameters.
	GetParams() map[string]interface{}
}

// ParameterSetter is the interface for models that allow parameter modification.
type ParameterSetter interface {
	// SetParams sets the model's hyperparameters.
	SetParams(params map[string]interface{}) error
}

// Estimator is a model with scikit-learn style parameters and a fitted state.
type Estimator interface {
	Fitter
	ParameterGetter
	ParameterSetter
	IsFitted() bool
}

// Classifier combines interfaces for classification models.
type Classifier interface {
	Estimator
	Predictor
	Scorer

	// Classes returns the sorted labels seen during fitting.
	Classes() []int
}

// Persistable is the interface for models that can be saved and loaded.
type Persistable interface {
	// Save writes the fitted model to w.
	Save(w io.Writer) error

	// Load replaces the model with the one read from r.
	Load(r io.Reader) error
}
