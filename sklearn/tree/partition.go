package tree

// PartitionClasses splits X and y on one attribute. With a categorical split
// value a row goes left when its value equals split; with a numeric split value
// it goes left when its value is numeric and not greater than split. All other
// rows go right. Both sides keep the input order, and the inputs are not
// modified.
func PartitionClasses(X []Row, y []int, attribute int, split Value) (xLeft, xRight []Row, yLeft, yRight []int) {
	for i, row := range X {
		if goesLeft(row[attribute], split) {
			xLeft = append(xLeft, row)
			yLeft = append(yLeft, y[i])
		} else {
			xRight = append(xRight, row)
			yRight = append(yRight, y[i])
		}
	}
	return xLeft, xRight, yLeft, yRight
}

func goesLeft(v, split Value) bool {
	if split.Kind == KindCategorical {
		return v.Kind == KindCategorical && v.Str == split.Str
	}
	return v.Kind == KindNumeric && v.Num <= split.Num
}
