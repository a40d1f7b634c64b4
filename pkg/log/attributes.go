// Package log defines standard attribute keys for estimator logging.
//
// The keys follow a hierarchical naming convention (e.g. "model.name",
// "data.samples", "forest.trees") so logs from trees and forests can be
// filtered consistently.

package log

// Model and Operation Context
const (
	// ModelNameKey identifies the type of estimator.
	// Examples: "DecisionTreeClassifier", "RandomForestClassifier"
	ModelNameKey = "model.name"

	// OperationKey specifies the operation being performed.
	// Standard values: "fit", "bootstrap", "vote", "predict", "score"
	OperationKey = "ml.operation"

	// ComponentKey identifies which package is performing the operation.
	ComponentKey = "ml.component"

	// PhaseKey indicates the phase of model lifecycle.
	PhaseKey = "ml.phase"
)

// Data Shape
const (
	// SamplesKey indicates the number of samples (rows) in the dataset.
	SamplesKey = "data.samples"

	// FeaturesKey indicates the number of features (columns) in the dataset.
	FeaturesKey = "data.features"

	// ClassesKey indicates the number of distinct labels seen.
	ClassesKey = "data.classes"
)

// Tree and Forest Statistics
const (
	// TreesKey records the number of trees in an ensemble.
	TreesKey = "forest.trees"

	// TreeIndexKey identifies a single tree inside an ensemble.
	TreeIndexKey = "forest.tree_index"

	// WorkersKey records the size of the fitting worker pool.
	WorkersKey = "forest.workers"

	// OOBVotesKey records how many out-of-bag trees voted on a row.
	OOBVotesKey = "forest.oob_votes"

	// RowKey identifies the row being classified or voted on.
	RowKey = "data.row"

	// DepthKey records the depth of a fitted tree.
	DepthKey = "tree.depth"

	// LeavesKey records the number of leaves of a fitted tree.
	LeavesKey = "tree.leaves"

	// AttributeKey records the attribute index chosen for a split.
	AttributeKey = "tree.attribute"

	// GainKey records the information gain of a chosen split.
	GainKey = "tree.gain"
)

// Performance Metrics
const (
	// DurationMsKey records the execution time of an operation in milliseconds.
	DurationMsKey = "perf.duration_ms"

	// AccuracyKey records accuracy for evaluation operations.
	AccuracyKey = "metrics.accuracy"
)

// Error Context
const (
	// ErrorCodeKey provides a structured error code for programmatic handling.
	ErrorCodeKey = "error.code"

	// StacktraceKey contains stack trace information for debugging.
	StacktraceKey = "error.stacktrace"
)

// Hyperparameters and Configuration
const (
	// HyperParamsKey contains estimator hyperparameters as a structured object.
	HyperParamsKey = "model.hyperparams"

	// RandomSeedKey records the random seed for reproducibility.
	RandomSeedKey = "config.random_seed"
)

// Standard attribute values.
const (
	OperationFit       = "fit"
	OperationBootstrap = "bootstrap"
	OperationVote      = "vote"
	OperationPredict   = "predict"
	OperationScore     = "score"

	PhaseTraining  = "training"
	PhaseInference = "inference"

	ErrorNotFitted         = "NOT_FITTED"
	ErrorDimensionMismatch = "DIMENSION_MISMATCH"
	ErrorInvalidInput      = "INVALID_INPUT"
)
