// Package oobforest provides information-gain decision trees and a bagging
// random forest that votes with out-of-bag trees only.
//
// The forest keeps every bootstrap sample it draws. When it classifies a row
// it asks only the trees whose bootstrap sample did not contain that exact row,
// which gives an unbiased estimate of generalization accuracy without a
// held-out set.
//
// # Features
//
// - Mixed features: numeric values split at the column mean, categorical values split multi-way
// - Out-of-bag voting and OOB accuracy (OOBScore)
// - Parallel tree fitting with a bounded worker pool
// - scikit-learn-like API over gonum matrices (Fit, Predict, Score, GetParams, SetParams)
// - Structured errors with stack traces, zerolog logging, prometheus metrics
//
// # Installation
//
//	go get github.com/YuminosukeSato/oobforest
//
// # Quick Start
//
// Rows carry features followed by the label in the last column:
//
//	package main
//
//	import (
//	    "fmt"
//	    "log"
//
//	    "github.com/YuminosukeSato/oobforest/sklearn/ensemble"
//	    "github.com/YuminosukeSato/oobforest/sklearn/tree"
//	)
//
//	func main() {
//	    data := []tree.Row{
//	        {tree.Num(1), tree.Cat("red"), tree.Num(0)},
//	        {tree.Num(2), tree.Cat("blue"), tree.Num(0)},
//	        {tree.Num(8), tree.Cat("red"), tree.Num(1)},
//	        {tree.Num(9), tree.Cat("blue"), tree.Num(1)},
//	    }
//
//	    forest := ensemble.NewRandomForestClassifier(
//	        ensemble.WithNEstimators(25),
//	        ensemble.WithRandomState(42),
//	    )
//	    if err := forest.Bootstrap(data); err != nil {
//	        log.Fatal(err)
//	    }
//	    if err := forest.FitBootstraps(); err != nil {
//	        log.Fatal(err)
//	    }
//
//	    votes, err := forest.Vote([]tree.Row{{tree.Num(1), tree.Cat("red")}})
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    fmt.Println("Votes:", votes)
//	}
//
// # Packages
//
//   - sklearn/tree: DecisionTreeClassifier, entropy, information gain, partitioning
//   - sklearn/ensemble: RandomForestClassifier with bootstrap and OOB voting
//   - metrics: Accuracy, ClassificationError, ConfusionMatrix
//   - core/model: fitted-state tracking, estimator interfaces, persistence
//   - core/parallel: bounded worker fan-out
//   - pkg/config: viper configuration with validation
//   - pkg/errors, pkg/log: error types and logging
//
// # License
//
// oobforest is released under the MIT License.
package oobforest
