package tree

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// BranchKind は分岐キーの種類
type BranchKind uint8

const (
	// BranchCategorical はカテゴリ値が一致する分岐
	BranchCategorical BranchKind = iota
	// BranchLessEq は数値が閾値以下の分岐
	BranchLessEq
	// BranchGreater は数値が閾値より大きい分岐
	BranchGreater
)

// BranchKey labels one outgoing edge of an internal node.
type BranchKey struct {
	Kind      BranchKind
	Category  string
	Threshold float64
}

// CategoryKey is the edge taken by records whose value equals category.
func CategoryKey(category string) BranchKey {
	return BranchKey{Kind: BranchCategorical, Category: category}
}

// LessEqKey is the edge taken by numeric values <= threshold.
func LessEqKey(threshold float64) BranchKey {
	return BranchKey{Kind: BranchLessEq, Threshold: threshold}
}

// GreaterKey is the edge taken by numeric values > threshold.
func GreaterKey(threshold float64) BranchKey {
	return BranchKey{Kind: BranchGreater, Threshold: threshold}
}

func (k BranchKey) String() string {
	switch k.Kind {
	case BranchLessEq:
		return "<=" + strconv.FormatFloat(k.Threshold, 'g', -1, 64)
	case BranchGreater:
		return ">" + strconv.FormatFloat(k.Threshold, 'g', -1, 64)
	default:
		return "==" + strconv.Quote(k.Category)
	}
}

// Node is either a leaf carrying a label or an internal node testing one
// attribute. Numeric nodes have exactly the LessEq and Greater branches for
// Threshold; categorical nodes have one branch per category seen in training.
// Fields are exported for gob encoding.
type Node struct {
	Leaf  bool
	Label int

	Attribute int
	Numeric   bool
	Threshold float64
	Branches  map[BranchKey]*Node
}

func newLeaf(label int) *Node {
	return &Node{Leaf: true, Label: label}
}

// Route returns the branch key a value follows at this node, and false when
// the value's kind does not match the node.
func (n *Node) Route(v Value) (BranchKey, bool) {
	if n.Numeric {
		if v.Kind != KindNumeric {
			return BranchKey{}, false
		}
		if v.Num <= n.Threshold {
			return LessEqKey(n.Threshold), true
		}
		return GreaterKey(n.Threshold), true
	}
	if v.Kind != KindCategorical {
		return BranchKey{}, false
	}
	return CategoryKey(v.Str), true
}

// Depth returns the number of edges on the longest root-to-leaf path.
func (n *Node) Depth() int {
	if n == nil || n.Leaf {
		return 0
	}
	d := 0
	for _, child := range n.Branches {
		if cd := child.Depth(); cd > d {
			d = cd
		}
	}
	return d + 1
}

// NLeaves returns the number of leaves under n.
func (n *Node) NLeaves() int {
	if n == nil {
		return 0
	}
	if n.Leaf {
		return 1
	}
	total := 0
	for _, child := range n.Branches {
		total += child.NLeaves()
	}
	return total
}

// sortedKeys returns the branch keys in a stable order for printing.
func (n *Node) sortedKeys() []BranchKey {
	keys := make([]BranchKey, 0, len(n.Branches))
	for k := range n.Branches {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Kind != keys[j].Kind {
			return keys[i].Kind < keys[j].Kind
		}
		return keys[i].Category < keys[j].Category
	})
	return keys
}

func (n *Node) write(sb *strings.Builder, indent string) {
	if n.Leaf {
		fmt.Fprintf(sb, "%sclass %d\n", indent, n.Label)
		return
	}
	for _, k := range n.sortedKeys() {
		fmt.Fprintf(sb, "%sX[%d] %s\n", indent, n.Attribute, k)
		n.Branches[k].write(sb, indent+"  ")
	}
}

func (n *Node) String() string {
	if n == nil {
		return "<empty>\n"
	}
	var sb strings.Builder
	n.write(&sb, "")
	return sb.String()
}
