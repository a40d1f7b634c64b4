// Package ensemble はブートストラップ標本で学習した決定木の集合（バギング）と
// out-of-bag 多数決による予測を提供する。
package ensemble

import (
	"encoding/gob"
	"io"
	"math/rand"
	"sort"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/oobforest/core/model"
	"github.com/YuminosukeSato/oobforest/core/parallel"
	"github.com/YuminosukeSato/oobforest/metrics"
	"github.com/YuminosukeSato/oobforest/pkg/errors"
	"github.com/YuminosukeSato/oobforest/pkg/log"
	"github.com/YuminosukeSato/oobforest/sklearn/tree"
)

const (
	modelName = "RandomForestClassifier"

	// predictThreshold 以下の行数では PredictRows を逐次実行する
	predictThreshold = 64
)

var (
	_ model.Classifier  = (*RandomForestClassifier)(nil)
	_ model.Persistable = (*RandomForestClassifier)(nil)
)

// RandomForestClassifier はブートストラップ標本ごとに1本の決定木を学習し、
// out-of-bag の木による多数決でラベルを決める分類器。
//
// 特徴量のサブサンプリングは行わない。インスタンスは並行な変更に対して安全ではない。
type RandomForestClassifier struct {
	state *model.StateManager // State management (composition)

	// ハイパーパラメータ
	nEstimators int           // 木の本数
	nJobs       int           // 学習時のワーカー数
	randomState int64         // 乱数シード（負の値は時刻から生成）
	treeOptions []tree.Option // 各木に渡すオプション

	// 学習パラメータ
	trees_       []*tree.DecisionTreeClassifier
	bootstraps_  []*Bootstrap
	trainRows_   []tree.Row
	trainLabels_ []int
	classes_     []int
	nFeatures_   int
	sampled      bool

	rng     *rand.Rand
	logger  log.Logger
	metrics *Metrics
}

// Option is a functional option for RandomForestClassifier
type Option func(*RandomForestClassifier)

// WithNEstimators は木の本数を設定
func WithNEstimators(n int) Option {
	return func(f *RandomForestClassifier) {
		f.nEstimators = n
	}
}

// WithNJobs は学習時のワーカー数を設定（1で逐次実行）
func WithNJobs(n int) Option {
	return func(f *RandomForestClassifier) {
		f.nJobs = n
	}
}

// WithRandomState は乱数シードを設定
func WithRandomState(seed int64) Option {
	return func(f *RandomForestClassifier) {
		f.randomState = seed
		f.rng = newRand(seed)
	}
}

// WithLogger はロガーを設定（各木にも引き継がれる）
func WithLogger(l log.Logger) Option {
	return func(f *RandomForestClassifier) {
		if l != nil {
			f.logger = l
		}
	}
}

// WithMetrics はprometheusの計測器を設定
func WithMetrics(m *Metrics) Option {
	return func(f *RandomForestClassifier) {
		f.metrics = m
	}
}

// WithTreeOptions は各決定木に渡すオプションを設定
func WithTreeOptions(opts ...tree.Option) Option {
	return func(f *RandomForestClassifier) {
		f.treeOptions = append(f.treeOptions, opts...)
	}
}

// NewRandomForestClassifier creates an unfitted forest of 10 trees fitted on
// 4 workers.
func NewRandomForestClassifier(opts ...Option) *RandomForestClassifier {
	f := &RandomForestClassifier{
		state:       model.NewStateManager(),
		nEstimators: 10,
		nJobs:       4,
		randomState: -1,
		logger:      log.GetLoggerWithName("ensemble"),
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.rng == nil {
		f.rng = newRand(f.randomState)
	}
	return f
}

func newRand(seed int64) *rand.Rand {
	if seed < 0 {
		seed = time.Now().UnixNano()
	}
	return rand.New(rand.NewSource(seed))
}

func (f *RandomForestClassifier) validateParams() error {
	if f.nEstimators < 1 {
		return errors.NewValidationError("n_estimators", "must be at least 1", f.nEstimators)
	}
	if f.nJobs < 1 {
		return errors.NewValidationError("n_jobs", "must be at least 1", f.nJobs)
	}
	return nil
}

// Bootstrap draws one sample per tree from XX, whose rows carry the label as
// their last element. Each sample has len(XX) rows drawn uniformly with
// replacement. Any previous samples and trees are discarded.
func (f *RandomForestClassifier) Bootstrap(XX []tree.Row) error {
	const op = modelName + ".Bootstrap"
	if err := f.validateParams(); err != nil {
		return err
	}
	rows, labels, err := splitCombined(op, XX)
	if err != nil {
		return err
	}

	f.state.Reset()
	f.trainRows_ = rows
	f.trainLabels_ = labels
	f.classes_ = uniqueLabels(labels)
	f.nFeatures_ = 0
	if len(rows) > 0 {
		f.nFeatures_ = len(rows[0])
	}

	treeOpts := append([]tree.Option{tree.WithLogger(f.logger)}, f.treeOptions...)
	f.trees_ = make([]*tree.DecisionTreeClassifier, f.nEstimators)
	f.bootstraps_ = make([]*Bootstrap, f.nEstimators)
	for i := range f.trees_ {
		f.trees_[i] = tree.NewDecisionTreeClassifier(treeOpts...)
		f.bootstraps_[i] = f.sample(rows, labels, len(rows))
	}
	f.sampled = true

	f.logger.Debug("bootstrap samples drawn",
		log.OperationKey, log.OperationBootstrap,
		log.TreesKey, f.nEstimators,
		log.SamplesKey, len(rows),
	)
	return nil
}

// sample draws n rows with replacement.
func (f *RandomForestClassifier) sample(rows []tree.Row, labels []int, n int) *Bootstrap {
	b := &Bootstrap{
		Rows:    make([]tree.Row, n),
		Labels:  make([]int, n),
		Indices: make([]int, n),
	}
	for j := 0; j < n; j++ {
		k := f.rng.Intn(len(rows))
		b.Rows[j] = rows[k]
		b.Labels[j] = labels[k]
		b.Indices[j] = k
	}
	b.index()
	return b
}

// FitBootstraps learns tree i from bootstrap sample i, running the trees on
// a pool of nJobs workers.
func (f *RandomForestClassifier) FitBootstraps() error {
	const op = modelName + ".FitBootstraps"
	if !f.sampled {
		return errors.NewValueError(op, "no bootstrap samples; call Bootstrap first")
	}

	start := time.Now()
	err := parallel.ForEach(len(f.trees_), f.nJobs, func(i int) error {
		b := f.bootstraps_[i]
		if err := f.trees_[i].Learn(b.Rows, b.Labels); err != nil {
			return errors.Wrapf(err, "tree %d", i)
		}
		f.metrics.treeFitted()
		f.logger.Debug("tree fitted",
			log.TreeIndexKey, i,
			log.DepthKey, f.trees_[i].GetDepth(),
			log.LeavesKey, f.trees_[i].GetNLeaves(),
		)
		return nil
	})
	elapsed := time.Since(start)
	f.metrics.observeFit(elapsed.Seconds())
	if err != nil {
		f.logger.Error("forest fit failed", err, log.OperationKey, log.OperationFit)
		return errors.NewModelError(op, "tree fitting failed", err)
	}

	f.state.SetDimensions(f.nFeatures_, len(f.trainRows_))
	f.state.SetFitted()

	f.logger.Info("forest fitted",
		log.ModelNameKey, modelName,
		log.OperationKey, log.OperationFit,
		log.TreesKey, len(f.trees_),
		log.WorkersKey, parallel.Workers(f.nJobs, len(f.trees_)),
		log.SamplesKey, len(f.trainRows_),
		log.FeaturesKey, f.nFeatures_,
		log.DurationMsKey, elapsed.Milliseconds(),
	)
	return nil
}

func (f *RandomForestClassifier) checkRows(op string, X []tree.Row) error {
	if len(f.trainRows_) == 0 {
		return nil
	}
	for i, row := range X {
		if len(row) != f.nFeatures_ {
			return errors.NewInvalidInputError(op, i, -1, "row width does not match the training data")
		}
	}
	return nil
}

// oobVotes collects the predictions of the trees whose sample does not
// contain row.
func (f *RandomForestClassifier) oobVotes(row tree.Row) ([]int, error) {
	key := row.Key()
	var votes []int
	for i, b := range f.bootstraps_ {
		if b.containsKey(key) {
			continue
		}
		label, err := f.trees_[i].Classify(row)
		if err != nil {
			return nil, err
		}
		votes = append(votes, label)
	}
	return votes, nil
}

// Vote labels each row by majority vote of the trees for which the row is
// out-of-bag, the smallest label winning ties. A row that is in every
// sample gets 0 or 1 at random.
func (f *RandomForestClassifier) Vote(X []tree.Row) ([]int, error) {
	const op = modelName + ".Vote"
	if err := f.state.RequireFitted(modelName, "Vote"); err != nil {
		return nil, err
	}
	if err := f.checkRows(op, X); err != nil {
		return nil, err
	}

	out := make([]int, len(X))
	for r, row := range X {
		votes, err := f.oobVotes(row)
		if err != nil {
			return nil, err
		}
		if len(votes) == 0 {
			out[r] = f.rng.Intn(2)
			f.metrics.vote(VoteSourceFallback)
			f.logger.Debug("row has no out-of-bag trees", log.RowKey, r, log.OperationKey, log.OperationVote)
			continue
		}
		out[r] = tree.MajorityLabel(votes)
		f.metrics.vote(VoteSourceOOB)
	}
	return out, nil
}

// OOBVoteCounts returns, for each row, how many trees would vote on it in Vote.
func (f *RandomForestClassifier) OOBVoteCounts(X []tree.Row) ([]int, error) {
	const op = modelName + ".OOBVoteCounts"
	if err := f.state.RequireFitted(modelName, "OOBVoteCounts"); err != nil {
		return nil, err
	}
	if err := f.checkRows(op, X); err != nil {
		return nil, err
	}

	counts := make([]int, len(X))
	for r, row := range X {
		key := row.Key()
		for _, b := range f.bootstraps_ {
			if !b.containsKey(key) {
				counts[r]++
			}
		}
	}
	return counts, nil
}

// PredictRows labels each row by majority vote of all trees, the smallest
// label winning ties.
func (f *RandomForestClassifier) PredictRows(X []tree.Row) ([]int, error) {
	const op = modelName + ".PredictRows"
	if err := f.state.RequireFitted(modelName, "PredictRows"); err != nil {
		return nil, err
	}
	if err := f.checkRows(op, X); err != nil {
		return nil, err
	}

	out := make([]int, len(X))
	err := parallel.ParallelizeWithThreshold(len(X), predictThreshold, f.nJobs, func(start, end int) error {
		votes := make([]int, len(f.trees_))
		for r := start; r < end; r++ {
			for i, t := range f.trees_ {
				label, err := t.Classify(X[r])
				if err != nil {
					return err
				}
				votes[i] = label
			}
			out[r] = tree.MajorityLabel(votes)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// OOBScore returns the accuracy of out-of-bag voting on the training rows.
// Rows that are in every sample are left out. When no row has an
// out-of-bag tree it warns with UndefinedMetricWarning and returns 0.
func (f *RandomForestClassifier) OOBScore() (float64, error) {
	if err := f.state.RequireFitted(modelName, "OOBScore"); err != nil {
		return 0, err
	}

	var truth, predicted []int
	for i, row := range f.trainRows_ {
		votes, err := f.oobVotes(row)
		if err != nil {
			return 0, err
		}
		if len(votes) == 0 {
			continue
		}
		truth = append(truth, f.trainLabels_[i])
		predicted = append(predicted, tree.MajorityLabel(votes))
	}

	if len(truth) == 0 {
		errors.Warn(errors.NewUndefinedMetricWarning("oob_score", "no training row has out-of-bag trees", 0))
		return 0, nil
	}

	score, err := metrics.Accuracy(tree.LabelsToVec(truth), tree.LabelsToVec(predicted))
	if err != nil {
		return 0, err
	}
	f.logger.Debug("out-of-bag score",
		log.OperationKey, log.OperationScore,
		log.SamplesKey, len(truth),
		log.AccuracyKey, score,
	)
	return score, nil
}

// Fit はgonumの行列（すべて数値特徴量）からブートストラップ標本を作り、全ての木を学習する
func (f *RandomForestClassifier) Fit(X, y mat.Matrix) error {
	const op = modelName + ".Fit"
	labels, err := tree.LabelsFromMatrix(y)
	if err != nil {
		return err
	}
	rows := tree.RowsFromMatrix(X)
	if len(rows) != len(labels) {
		return errors.NewDimensionError(op, len(rows), len(labels), 0)
	}

	XX := make([]tree.Row, len(rows))
	for i, row := range rows {
		XX[i] = append(row, tree.Num(float64(labels[i])))
	}
	if err := f.Bootstrap(XX); err != nil {
		return err
	}
	return f.FitBootstraps()
}

// Predict makes predictions for input data as an n×1 matrix, using all trees
func (f *RandomForestClassifier) Predict(X mat.Matrix) (mat.Matrix, error) {
	if err := f.state.RequireFitted(modelName, "Predict"); err != nil {
		return nil, err
	}
	r, _ := X.Dims()
	if r == 0 {
		return nil, errors.NewValueError(modelName+".Predict", "empty input")
	}

	labels, err := f.PredictRows(tree.RowsFromMatrix(X))
	if err != nil {
		return nil, err
	}
	predictions := mat.NewDense(r, 1, nil)
	for i, l := range labels {
		predictions.Set(i, 0, float64(l))
	}
	return predictions, nil
}

// Score returns the mean accuracy on the given test data and labels
func (f *RandomForestClassifier) Score(X, y mat.Matrix) (float64, error) {
	predictions, err := f.Predict(X)
	if err != nil {
		return 0, err
	}
	labels, err := tree.LabelsFromMatrix(y)
	if err != nil {
		return 0, err
	}
	return metrics.Accuracy(tree.LabelsToVec(labels), mat.VecDenseCopyOf(predictions.(*mat.Dense).ColView(0)))
}

// IsFitted reports whether FitBootstraps has completed.
func (f *RandomForestClassifier) IsFitted() bool {
	return f.state.IsFitted()
}

// Classes returns the labels of the data passed to Bootstrap, in ascending order.
func (f *RandomForestClassifier) Classes() []int {
	return append([]int(nil), f.classes_...)
}

// Trees returns the forest's trees; tree i was learned from Bootstraps()[i].
func (f *RandomForestClassifier) Trees() []*tree.DecisionTreeClassifier {
	return append([]*tree.DecisionTreeClassifier(nil), f.trees_...)
}

// Bootstraps returns copies of the samples drawn by Bootstrap.
func (f *RandomForestClassifier) Bootstraps() []*Bootstrap {
	out := make([]*Bootstrap, len(f.bootstraps_))
	for i, b := range f.bootstraps_ {
		out[i] = b.clone()
	}
	return out
}

// GetParams returns the model hyperparameters
func (f *RandomForestClassifier) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"n_estimators": f.nEstimators,
		"n_jobs":       f.nJobs,
		"random_state": f.randomState,
	}
}

// SetParams sets the model hyperparameters
func (f *RandomForestClassifier) SetParams(params map[string]interface{}) error {
	for key, value := range params {
		switch key {
		case "n_estimators", "n_jobs":
			n, ok := value.(int)
			if !ok {
				return errors.NewValidationError(key, "must be an int", value)
			}
			if n < 1 {
				return errors.NewValidationError(key, "must be at least 1", n)
			}
			if key == "n_estimators" {
				f.nEstimators = n
			} else {
				f.nJobs = n
			}
		case "random_state":
			switch v := value.(type) {
			case int64:
				f.randomState = v
			case int:
				f.randomState = int64(v)
			default:
				return errors.NewValidationError(key, "must be an integer", value)
			}
			f.rng = newRand(f.randomState)
		default:
			return errors.NewValidationError(key, "unknown parameter", value)
		}
	}
	return nil
}

func uniqueLabels(labels []int) []int {
	seen := make(map[int]struct{})
	for _, l := range labels {
		seen[l] = struct{}{}
	}
	out := make([]int, 0, len(seen))
	for l := range seen {
		out = append(out, l)
	}
	sort.Ints(out)
	return out
}

// forestState is the gob representation of a forest. The bootstrap samples
// are included because Vote depends on them.
type forestState struct {
	State       model.ModelState
	NEstimators int
	NJobs       int
	RandomState int64
	Trees       []*tree.DecisionTreeClassifier
	Bootstraps  []*Bootstrap
	TrainRows   []tree.Row
	TrainLabels []int
	NFeatures   int
	Sampled     bool
}

// Save writes the forest, including its bootstrap samples, with encoding/gob.
func (f *RandomForestClassifier) Save(w io.Writer) error {
	st := forestState{
		State:       f.state.GetState(),
		NEstimators: f.nEstimators,
		NJobs:       f.nJobs,
		RandomState: f.randomState,
		Trees:       f.trees_,
		Bootstraps:  f.bootstraps_,
		TrainRows:   f.trainRows_,
		TrainLabels: f.trainLabels_,
		NFeatures:   f.nFeatures_,
		Sampled:     f.sampled,
	}
	if err := gob.NewEncoder(w).Encode(st); err != nil {
		return errors.Wrap(err, "failed to save random forest")
	}
	return nil
}

// Load replaces the forest with one previously written by Save. The logger
// and metrics of f are kept.
func (f *RandomForestClassifier) Load(r io.Reader) error {
	var st forestState
	if err := gob.NewDecoder(r).Decode(&st); err != nil {
		return errors.Wrap(err, "failed to load random forest")
	}
	if len(st.Trees) != len(st.Bootstraps) {
		return errors.NewValueError(modelName+".Load", "trees and bootstrap samples differ in number")
	}

	for _, b := range st.Bootstraps {
		b.index()
	}
	for _, t := range st.Trees {
		tree.WithLogger(f.logger)(t)
	}

	f.state.SetState(st.State)
	f.nEstimators = st.NEstimators
	f.nJobs = st.NJobs
	f.randomState = st.RandomState
	f.rng = newRand(st.RandomState)
	f.trees_ = st.Trees
	f.bootstraps_ = st.Bootstraps
	f.trainRows_ = st.TrainRows
	f.trainLabels_ = st.TrainLabels
	f.classes_ = uniqueLabels(st.TrainLabels)
	f.nFeatures_ = st.NFeatures
	f.sampled = st.Sampled
	return nil
}
