package ensemble

import (
	"fmt"

	"github.com/YuminosukeSato/oobforest/pkg/errors"
	"github.com/YuminosukeSato/oobforest/sklearn/tree"
)

// Bootstrap is one tree's training sample, drawn with replacement from the
// original rows. It is kept after fitting because out-of-bag voting asks
// whether a row is in it.
//
// A sample is not modified after it is drawn. Bootstraps() hands out copies,
// so changing their Rows or Labels does not affect the forest.
type Bootstrap struct {
	Rows    []tree.Row
	Labels  []int
	Indices []int // positions in the original data

	inBag map[string]struct{} // built once by index, read-only afterwards
}

// Contains reports whether a row equal to row was drawn into the sample.
func (b *Bootstrap) Contains(row tree.Row) bool {
	return b.containsKey(row.Key())
}

// containsKey only reads b, so concurrent lookups are safe. A Bootstrap
// built outside the forest has no index and is scanned instead.
func (b *Bootstrap) containsKey(key string) bool {
	if b.inBag == nil {
		for _, r := range b.Rows {
			if r.Key() == key {
				return true
			}
		}
		return false
	}
	_, ok := b.inBag[key]
	return ok
}

func (b *Bootstrap) index() {
	b.inBag = make(map[string]struct{}, len(b.Rows))
	for _, r := range b.Rows {
		b.inBag[r.Key()] = struct{}{}
	}
}

// clone deep-copies the sample without the index, so Contains on the copy
// follows whatever the caller does to its Rows.
func (b *Bootstrap) clone() *Bootstrap {
	c := &Bootstrap{
		Rows:    make([]tree.Row, len(b.Rows)),
		Labels:  append([]int(nil), b.Labels...),
		Indices: append([]int(nil), b.Indices...),
	}
	for i, r := range b.Rows {
		c.Rows[i] = append(tree.Row(nil), r...)
	}
	return c
}

// splitCombined separates rows whose last element is the label.
func splitCombined(op string, XX []tree.Row) ([]tree.Row, []int, error) {
	if len(XX) == 0 {
		return nil, nil, nil
	}
	width := len(XX[0])
	if width == 0 {
		return nil, nil, errors.NewInvalidInputError(op, 0, -1, "combined row has no label column")
	}

	rows := make([]tree.Row, len(XX))
	labels := make([]int, len(XX))
	for i, r := range XX {
		if len(r) != width {
			return nil, nil, errors.NewInvalidInputError(op, i, -1,
				fmt.Sprintf("row has %d values, expected %d", len(r), width))
		}
		last := r[width-1]
		if last.IsCategorical() {
			return nil, nil, errors.NewInvalidInputError(op, i, width-1, "label must be numeric, got "+last.String())
		}
		label, err := tree.LabelFromFloat(op, i, last.Num)
		if err != nil {
			return nil, nil, err
		}
		rows[i] = append(tree.Row(nil), r[:width-1]...)
		labels[i] = label
	}
	return rows, labels, nil
}
