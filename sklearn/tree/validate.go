package tree

import (
	"fmt"

	"github.com/YuminosukeSato/oobforest/pkg/errors"
)

// validateDataset checks the preconditions of learning: aligned lengths, a
// fixed row width, one kind per column, finite numbers and non-negative labels.
// It returns the row width, or 0 for an empty dataset.
func validateDataset(op string, X []Row, y []int) (int, error) {
	if len(X) != len(y) {
		return 0, errors.NewDimensionError(op, len(X), len(y), 0)
	}
	if len(X) == 0 {
		return 0, nil
	}

	width := len(X[0])
	for i, row := range X {
		if err := validateRow(op, i, row, width); err != nil {
			return 0, err
		}
		for j, v := range row {
			if v.Kind != X[0][j].Kind {
				return 0, errors.NewInvalidInputError(op, i, j,
					fmt.Sprintf("column mixes %s and %s values", X[0][j].Kind, v.Kind))
			}
			if v.Kind == KindNumeric {
				if err := errors.CheckScalar(op, v.Num); err != nil {
					return 0, errors.NewInvalidInputError(op, i, j, "numeric feature is NaN or infinite")
				}
			}
		}
		if y[i] < 0 {
			return 0, errors.NewInvalidInputError(op, i, -1, fmt.Sprintf("label must be non-negative, got %d", y[i]))
		}
	}
	return width, nil
}

// validateRow checks that row has the expected width and only known kinds.
func validateRow(op string, i int, row Row, width int) error {
	if len(row) != width {
		return errors.NewInvalidInputError(op, i, -1,
			fmt.Sprintf("row has %d features, expected %d", len(row), width))
	}
	for j, v := range row {
		if v.Kind != KindNumeric && v.Kind != KindCategorical {
			return errors.NewInvalidInputError(op, i, j, fmt.Sprintf("unsupported feature kind %d", v.Kind))
		}
	}
	return nil
}
