package errors

import (
	"fmt"
	"math"
)

// CheckNumericalStability checks if values contain NaN or Inf
// and returns an error if numerical instability is detected.
func CheckNumericalStability(operation string, values []float64) error {
	for i, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return NewNumericalInstabilityError(operation, v, i)
		}
	}
	return nil
}

// CheckScalar checks a single scalar value for numerical instability.
func CheckScalar(operation string, value float64) error {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return NewNumericalInstabilityError(operation, value, -1)
	}
	return nil
}

// NumericalInstabilityError は数値計算が不安定になった場合のエラーです。
// 特徴量の NaN/Inf や、列平均が有限にならない場合を検出します。
type NumericalInstabilityError struct {
	Operation string  // 発生した操作（例: "column_mean"）
	Value     float64 // 問題のある値
	Index     int     // 値の位置（不明な場合 -1）
}

func (e *NumericalInstabilityError) Error() string {
	if e.Index >= 0 {
		return fmt.Sprintf("oobforest: numerical instability detected in %s at index %d: %g", e.Operation, e.Index, e.Value)
	}
	return fmt.Sprintf("oobforest: numerical instability detected in %s: %g", e.Operation, e.Value)
}

// NewNumericalInstabilityError は新しいNumericalInstabilityErrorを作成します。
func NewNumericalInstabilityError(operation string, value float64, index int) error {
	return WithStack(&NumericalInstabilityError{Operation: operation, Value: value, Index: index})
}
