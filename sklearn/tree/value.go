package tree

import (
	"math"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/oobforest/pkg/errors"
)

// Kind は特徴量の値の種類
type Kind uint8

const (
	// KindNumeric は数値特徴量（閾値で二分割される）
	KindNumeric Kind = iota
	// KindCategorical はカテゴリ特徴量（値ごとに分岐する）
	KindCategorical
)

func (k Kind) String() string {
	if k == KindCategorical {
		return "categorical"
	}
	return "numeric"
}

// Value は1つの特徴量の値。比較可能なのでマップのキーにも使える。
type Value struct {
	Kind Kind
	Num  float64
	Str  string
}

// Num は数値の特徴量を作る
func Num(v float64) Value {
	return Value{Kind: KindNumeric, Num: v}
}

// Cat はカテゴリの特徴量を作る
func Cat(s string) Value {
	return Value{Kind: KindCategorical, Str: s}
}

// IsCategorical reports whether v holds a category.
func (v Value) IsCategorical() bool {
	return v.Kind == KindCategorical
}

// Equal reports value equality. Numeric values compare as numbers, so 0 and
// -0 are equal.
func (v Value) Equal(o Value) bool {
	if v.Kind != o.Kind {
		return false
	}
	if v.Kind == KindCategorical {
		return v.Str == o.Str
	}
	return v.Num == o.Num
}

func (v Value) String() string {
	if v.Kind == KindCategorical {
		return strconv.Quote(v.Str)
	}
	return strconv.FormatFloat(v.Num, 'g', -1, 64)
}

// Row は1レコード分の特徴量
type Row []Value

// NumRow builds a row of numeric values.
func NumRow(values ...float64) Row {
	r := make(Row, len(values))
	for i, v := range values {
		r[i] = Num(v)
	}
	return r
}

// Key encodes the row into a string such that two rows have the same key
// exactly when they are element-wise Equal.
func (r Row) Key() string {
	var sb strings.Builder
	for i, v := range r {
		if i > 0 {
			sb.WriteByte(0x1f)
		}
		if v.Kind == KindCategorical {
			sb.WriteByte('s')
			sb.WriteString(strconv.Quote(v.Str))
			continue
		}
		n := v.Num
		if n == 0 {
			n = 0 // -0 と 0 を同一視する
		}
		sb.WriteByte('n')
		sb.WriteString(strconv.FormatFloat(n, 'g', -1, 64))
	}
	return sb.String()
}

// RowsFromMatrix はgonumの行列を数値特徴量の行に変換する
func RowsFromMatrix(X mat.Matrix) []Row {
	r, c := X.Dims()
	rows := make([]Row, r)
	for i := 0; i < r; i++ {
		row := make(Row, c)
		for j := 0; j < c; j++ {
			row[j] = Num(X.At(i, j))
		}
		rows[i] = row
	}
	return rows
}

// LabelsFromMatrix はn×1（または1×n）の行列を整数ラベルに変換する。
// ラベルは非負の整数でなければならない。
func LabelsFromMatrix(y mat.Matrix) ([]int, error) {
	r, c := y.Dims()
	n := r
	at := func(i int) float64 { return y.At(i, 0) }
	if r == 1 && c > 1 {
		n = c
		at = func(i int) float64 { return y.At(0, i) }
	} else if c != 1 {
		return nil, errors.NewDimensionError("LabelsFromMatrix", 1, c, 1)
	}

	labels := make([]int, n)
	for i := 0; i < n; i++ {
		l, err := LabelFromFloat("LabelsFromMatrix", i, at(i))
		if err != nil {
			return nil, err
		}
		labels[i] = l
	}
	return labels, nil
}

// LabelFromFloat converts v into a class label, rejecting anything that is not
// a non-negative integer.
func LabelFromFloat(op string, row int, v float64) (int, error) {
	if math.IsNaN(v) || math.IsInf(v, 0) || v != math.Trunc(v) {
		return 0, errors.NewInvalidInputError(op, row, -1, "label must be an integer, got "+strconv.FormatFloat(v, 'g', -1, 64))
	}
	if v < 0 {
		return 0, errors.NewInvalidInputError(op, row, -1, "label must be non-negative, got "+strconv.FormatFloat(v, 'g', -1, 64))
	}
	if v > math.MaxInt32 {
		return 0, errors.NewInvalidInputError(op, row, -1, "label out of range")
	}
	return int(v), nil
}

// LabelsToVec converts labels into a gonum vector.
func LabelsToVec(labels []int) *mat.VecDense {
	if len(labels) == 0 {
		return nil
	}
	data := make([]float64, len(labels))
	for i, l := range labels {
		data[i] = float64(l)
	}
	return mat.NewVecDense(len(data), data)
}
