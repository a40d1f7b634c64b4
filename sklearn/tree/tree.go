// Package tree は情報利得に基づく決定木分類器を提供する。
//
// 数値特徴量は列平均を閾値とする二分割、カテゴリ特徴量は値ごとの多分岐で
// 分割する。各属性は1つの経路上で高々1回しか使われない。
package tree

import (
	"bytes"
	"context"
	"encoding/gob"
	"io"
	"sort"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/YuminosukeSato/oobforest/core/model"
	"github.com/YuminosukeSato/oobforest/metrics"
	"github.com/YuminosukeSato/oobforest/pkg/errors"
	"github.com/YuminosukeSato/oobforest/pkg/log"
)

const modelName = "DecisionTreeClassifier"

var (
	_ model.Classifier  = (*DecisionTreeClassifier)(nil)
	_ model.Persistable = (*DecisionTreeClassifier)(nil)
)

// MajorityPolicy は属性を使い切ったノードのラベルの決め方
type MajorityPolicy int

const (
	// MajorityReference は labels[argmax(bincount(labels))] をそのまま使う。
	// 添字が範囲外のときは多数決ラベルにフォールバックする。
	MajorityReference MajorityPolicy = iota
	// MajorityVote は最頻ラベル（同数なら最小のラベル）を使う
	MajorityVote
)

func (p MajorityPolicy) String() string {
	if p == MajorityVote {
		return "majority"
	}
	return "reference"
}

// ParseMajorityPolicy parses "reference" or "majority".
func ParseMajorityPolicy(s string) (MajorityPolicy, error) {
	switch s {
	case "reference":
		return MajorityReference, nil
	case "majority":
		return MajorityVote, nil
	}
	return MajorityReference, errors.NewValidationError("majority_policy", "must be one of reference, majority", s)
}

// DecisionTreeClassifier は情報利得で分割属性を選ぶ決定木
type DecisionTreeClassifier struct {
	state *model.StateManager // State management (composition)

	// ハイパーパラメータ
	majorityPolicy MajorityPolicy

	// 学習パラメータ
	root          *Node // nil は空の木
	defaultLabel_ int   // 学習データ全体の多数決ラベル
	classes_      []int // 学習データに現れたラベル（昇順）
	nClasses_     int
	nFeatures_    int

	logger log.Logger
}

// Option is a functional option for DecisionTreeClassifier
type Option func(*DecisionTreeClassifier)

// WithMajorityPolicy は属性を使い切ったノードのラベルの決め方を設定
func WithMajorityPolicy(p MajorityPolicy) Option {
	return func(dt *DecisionTreeClassifier) {
		dt.majorityPolicy = p
	}
}

// WithLogger はロガーを設定
func WithLogger(l log.Logger) Option {
	return func(dt *DecisionTreeClassifier) {
		if l != nil {
			dt.logger = l
		}
	}
}

// NewDecisionTreeClassifier creates an empty, unfitted tree.
func NewDecisionTreeClassifier(opts ...Option) *DecisionTreeClassifier {
	dt := &DecisionTreeClassifier{
		state:          model.NewStateManager(),
		majorityPolicy: MajorityReference,
		logger:         log.GetLoggerWithName("tree"),
	}
	for _, opt := range opts {
		opt(dt)
	}
	return dt
}

// Learn builds the tree from X and y, replacing any previous tree.
//
// An empty dataset yields an empty tree whose Classify always returns 0.
// Rows must share one width, every column must hold a single Kind, numbers
// must be finite and labels non-negative.
func (dt *DecisionTreeClassifier) Learn(X []Row, y []int) error {
	const op = modelName + ".Learn"
	width, err := validateDataset(op, X, y)
	if err != nil {
		return err
	}

	dt.state.Reset()
	dt.root = nil
	dt.defaultLabel_ = 0
	dt.classes_ = nil

	if len(X) > 0 {
		dt.defaultLabel_ = MajorityLabel(y)
		attributes := make([]int, width)
		for i := range attributes {
			attributes[i] = i
		}
		root, err := dt.split(X, y, attributes)
		if err != nil {
			return errors.Wrapf(err, "%s", op)
		}
		dt.root = root
		dt.classes_, _ = classCounts(y)
	}

	dt.nClasses_ = len(dt.classes_)
	dt.nFeatures_ = width
	dt.state.SetDimensions(width, len(X))
	dt.state.SetFitted()

	dt.logger.Debug("tree learned",
		log.SamplesKey, len(X),
		log.FeaturesKey, width,
		log.DepthKey, dt.GetDepth(),
		log.LeavesKey, dt.GetNLeaves(),
	)
	return nil
}

// split は行集合を再帰的に分割してノードを作る
func (dt *DecisionTreeClassifier) split(X []Row, y []int, remaining []int) (*Node, error) {
	if len(remaining) == 0 {
		if len(X) == 0 {
			return newLeaf(dt.defaultLabel_), nil
		}
		return newLeaf(dt.exhaustedLabel(y)), nil
	}
	if len(X) <= 1 {
		return newLeaf(dt.defaultLabel_), nil
	}

	best, err := dt.chooseAttribute(X, y, remaining)
	if err != nil {
		return nil, err
	}
	if dt.logger.Enabled(context.Background(), log.LevelDebug) {
		dt.logger.Debug("split chosen",
			log.AttributeKey, best.attribute,
			log.GainKey, best.gain,
			log.SamplesKey, len(X),
		)
	}

	rest := make([]int, 0, len(remaining)-1)
	for _, a := range remaining {
		if a != best.attribute {
			rest = append(rest, a)
		}
	}

	node := &Node{
		Attribute: best.attribute,
		Numeric:   best.numeric,
		Threshold: best.threshold,
		Branches:  make(map[BranchKey]*Node, len(best.groups)),
	}
	for _, g := range best.groups {
		child, err := dt.branch(g.rows, g.labels, rest)
		if err != nil {
			return nil, err
		}
		node.Branches[g.key] = child
	}
	return node, nil
}

// branch は分割後の部分集合から子ノードを作る
func (dt *DecisionTreeClassifier) branch(X []Row, y []int, remaining []int) (*Node, error) {
	switch len(X) {
	case 0:
		return newLeaf(dt.defaultLabel_), nil
	case 1:
		return newLeaf(y[0]), nil
	}
	return dt.split(X, y, remaining)
}

// exhaustedLabel は属性を使い切ったノードのラベルを返す
func (dt *DecisionTreeClassifier) exhaustedLabel(y []int) int {
	majority := MajorityLabel(y)
	if dt.majorityPolicy == MajorityVote {
		return majority
	}
	if majority < len(y) {
		return y[majority]
	}
	return majority
}

type branchGroup struct {
	key    BranchKey
	rows   []Row
	labels []int
}

type candidate struct {
	attribute int
	gain      float64
	numeric   bool
	threshold float64
	groups    []branchGroup
}

// chooseAttribute は情報利得が最大の属性を選ぶ。
// 最初の属性が初期候補になり、利得が厳密に大きい属性だけが置き換える。
func (dt *DecisionTreeClassifier) chooseAttribute(X []Row, y []int, remaining []int) (candidate, error) {
	var best candidate
	for i, a := range remaining {
		c, err := evaluate(X, y, a)
		if err != nil {
			return candidate{}, err
		}
		if i == 0 || c.gain > best.gain {
			best = c
		}
	}
	return best, nil
}

// evaluate computes the split of X on attribute a and its information gain.
// The attribute's kind is taken from the first row.
func evaluate(X []Row, y []int, a int) (candidate, error) {
	c := candidate{attribute: a}

	if X[0][a].Kind == KindCategorical {
		seen := make(map[string]struct{})
		for _, row := range X {
			seen[row[a].Str] = struct{}{}
		}
		categories := make([]string, 0, len(seen))
		for s := range seen {
			categories = append(categories, s)
		}
		sort.Strings(categories)

		children := make([][]int, 0, len(categories))
		for _, s := range categories {
			xl, _, yl, _ := PartitionClasses(X, y, a, Cat(s))
			c.groups = append(c.groups, branchGroup{key: CategoryKey(s), rows: xl, labels: yl})
			children = append(children, yl)
		}
		c.gain = InformationGain(y, children)
		return c, nil
	}

	column := make([]float64, len(X))
	for i, row := range X {
		column[i] = row[a].Num
	}
	if err := errors.CheckNumericalStability("split threshold", column); err != nil {
		return candidate{}, errors.NewInvalidInputError(modelName+".Learn", -1, a, "numeric feature is NaN or infinite")
	}
	mean := stat.Mean(column, nil)
	if err := errors.CheckScalar("split threshold", mean); err != nil {
		return candidate{}, errors.NewInvalidInputError(modelName+".Learn", -1, a, "column mean is not finite")
	}

	xl, xr, yl, yr := PartitionClasses(X, y, a, Num(mean))
	c.numeric = true
	c.threshold = mean
	c.groups = []branchGroup{
		{key: LessEqKey(mean), rows: xl, labels: yl},
		{key: GreaterKey(mean), rows: xr, labels: yr},
	}
	c.gain = InformationGain(y, [][]int{yl, yr})
	return c, nil
}

// Classify predicts the label of one record.
//
// It returns 0 for a tree that was never learned or was learned from no data.
// A value without a matching branch, including a value whose kind differs
// from the node's, yields the default label.
func (dt *DecisionTreeClassifier) Classify(record Row) (int, error) {
	if dt.root == nil {
		return 0, nil
	}
	if err := validateRow(modelName+".Classify", -1, record, dt.nFeatures_); err != nil {
		return 0, err
	}

	n := dt.root
	for !n.Leaf {
		key, ok := n.Route(record[n.Attribute])
		if !ok {
			return dt.defaultLabel_, nil
		}
		child, ok := n.Branches[key]
		if !ok {
			return dt.defaultLabel_, nil
		}
		n = child
	}
	return n.Label, nil
}

// Fit はgonumの行列（すべて数値特徴量）で学習する
func (dt *DecisionTreeClassifier) Fit(X, y mat.Matrix) error {
	labels, err := LabelsFromMatrix(y)
	if err != nil {
		return err
	}
	return dt.Learn(RowsFromMatrix(X), labels)
}

// Predict makes predictions for input data as an n×1 matrix
func (dt *DecisionTreeClassifier) Predict(X mat.Matrix) (mat.Matrix, error) {
	if err := dt.state.RequireFitted(modelName, "Predict"); err != nil {
		return nil, err
	}
	r, c := X.Dims()
	if r == 0 {
		return nil, errors.NewValueError(modelName+".Predict", "empty input")
	}
	if dt.root != nil && c != dt.nFeatures_ {
		return nil, errors.NewDimensionError(modelName+".Predict", dt.nFeatures_, c, 1)
	}

	predictions := mat.NewDense(r, 1, nil)
	for i, row := range RowsFromMatrix(X) {
		label, err := dt.Classify(row)
		if err != nil {
			return nil, err
		}
		predictions.Set(i, 0, float64(label))
	}
	return predictions, nil
}

// Score returns the mean accuracy on the given test data and labels
func (dt *DecisionTreeClassifier) Score(X, y mat.Matrix) (float64, error) {
	predictions, err := dt.Predict(X)
	if err != nil {
		return 0, err
	}
	labels, err := LabelsFromMatrix(y)
	if err != nil {
		return 0, err
	}
	return metrics.Accuracy(LabelsToVec(labels), mat.VecDenseCopyOf(predictions.(*mat.Dense).ColView(0)))
}

// IsFitted reports whether Learn or Fit has completed.
func (dt *DecisionTreeClassifier) IsFitted() bool {
	return dt.state.IsFitted()
}

// Classes returns the labels seen during learning in ascending order.
func (dt *DecisionTreeClassifier) Classes() []int {
	return append([]int(nil), dt.classes_...)
}

// Root returns the root node, or nil for an empty tree.
func (dt *DecisionTreeClassifier) Root() *Node {
	return dt.root
}

// DefaultLabel returns the majority label of the training data.
func (dt *DecisionTreeClassifier) DefaultLabel() int {
	return dt.defaultLabel_
}

// GetDepth は木の深さを返す（葉のみの木は0）
func (dt *DecisionTreeClassifier) GetDepth() int {
	return dt.root.Depth()
}

// GetNLeaves は葉の数を返す
func (dt *DecisionTreeClassifier) GetNLeaves() int {
	return dt.root.NLeaves()
}

// String は木をインデント付きのテキストで表す
func (dt *DecisionTreeClassifier) String() string {
	return dt.root.String()
}

// GetParams returns the model hyperparameters
func (dt *DecisionTreeClassifier) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"majority_policy": dt.majorityPolicy.String(),
	}
}

// SetParams sets the model hyperparameters
func (dt *DecisionTreeClassifier) SetParams(params map[string]interface{}) error {
	for key, value := range params {
		switch key {
		case "majority_policy":
			switch v := value.(type) {
			case string:
				p, err := ParseMajorityPolicy(v)
				if err != nil {
					return err
				}
				dt.majorityPolicy = p
			case MajorityPolicy:
				if v != MajorityReference && v != MajorityVote {
					return errors.NewValidationError(key, "unknown policy", int(v))
				}
				dt.majorityPolicy = v
			default:
				return errors.NewValidationError(key, "must be a string or MajorityPolicy", value)
			}
		default:
			return errors.NewValidationError(key, "unknown parameter", value)
		}
	}
	return nil
}

// treeState is the gob representation of a learned tree.
type treeState struct {
	State          model.ModelState
	MajorityPolicy MajorityPolicy
	Root           *Node
	DefaultLabel   int
	Classes        []int
	NFeatures      int
}

// GobEncode implements gob.GobEncoder.
func (dt *DecisionTreeClassifier) GobEncode() ([]byte, error) {
	var buf bytes.Buffer
	st := treeState{
		State:          dt.state.GetState(),
		MajorityPolicy: dt.majorityPolicy,
		Root:           dt.root,
		DefaultLabel:   dt.defaultLabel_,
		Classes:        dt.classes_,
		NFeatures:      dt.nFeatures_,
	}
	if err := gob.NewEncoder(&buf).Encode(st); err != nil {
		return nil, errors.Wrap(err, "failed to encode decision tree")
	}
	return buf.Bytes(), nil
}

// GobDecode implements gob.GobDecoder.
func (dt *DecisionTreeClassifier) GobDecode(data []byte) error {
	var st treeState
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&st); err != nil {
		return errors.Wrap(err, "failed to decode decision tree")
	}
	if dt.state == nil {
		dt.state = model.NewStateManager()
	}
	if dt.logger == nil {
		dt.logger = log.GetLoggerWithName("tree")
	}
	dt.state.SetState(st.State)
	dt.majorityPolicy = st.MajorityPolicy
	dt.root = st.Root
	dt.defaultLabel_ = st.DefaultLabel
	dt.classes_ = st.Classes
	dt.nClasses_ = len(st.Classes)
	dt.nFeatures_ = st.NFeatures
	return nil
}

// Save writes the tree to w with encoding/gob.
func (dt *DecisionTreeClassifier) Save(w io.Writer) error {
	if err := gob.NewEncoder(w).Encode(dt); err != nil {
		return errors.Wrap(err, "failed to save decision tree")
	}
	return nil
}

// Load replaces the tree with one previously written by Save.
func (dt *DecisionTreeClassifier) Load(r io.Reader) error {
	if err := gob.NewDecoder(r).Decode(dt); err != nil {
		return errors.Wrap(err, "failed to load decision tree")
	}
	return nil
}
