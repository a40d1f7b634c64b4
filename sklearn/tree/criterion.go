package tree

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// classCounts returns the distinct labels in ascending order and how often
// each occurs.
func classCounts(labels []int) (classes, counts []int) {
	m := make(map[int]int, 4)
	for _, l := range labels {
		m[l]++
	}
	classes = make([]int, 0, len(m))
	for l := range m {
		classes = append(classes, l)
	}
	sort.Ints(classes)
	counts = make([]int, len(classes))
	for i, l := range classes {
		counts[i] = m[l]
	}
	return classes, counts
}

// MajorityLabel returns the most frequent label, the smallest one on ties.
// It returns 0 for no labels.
func MajorityLabel(labels []int) int {
	classes, counts := classCounts(labels)
	best, bestCount := 0, -1
	for i, c := range counts {
		if c > bestCount {
			best, bestCount = classes[i], c
		}
	}
	return best
}

// Entropy は情報エントロピー −Σ p·log2(p) をビット単位で計算する。
// 空の入力や単一クラスに対しては0を返す。
func Entropy(labels []int) float64 {
	if len(labels) == 0 {
		return 0
	}
	_, counts := classCounts(labels)
	p := make([]float64, len(counts))
	n := float64(len(labels))
	for i, c := range counts {
		p[i] = float64(c) / n
	}
	// stat.Entropy は自然対数で計算する
	h := stat.Entropy(p) / math.Ln2
	if h <= 0 {
		return 0
	}
	return h
}

// InformationGain は親ノードのエントロピーから子ノードの加重エントロピーを引いた情報利得を計算する。
//
//	InformationGain([0,0,0,1,1,1], [[0,0], [1,1,1,0]]) ≈ 0.45915
func InformationGain(parent []int, children [][]int) float64 {
	if len(parent) == 0 {
		return 0
	}
	n := float64(len(parent))
	weighted := 0.0
	for _, child := range children {
		weighted += Entropy(child) * float64(len(child)) / n
	}
	return Entropy(parent) - weighted
}
