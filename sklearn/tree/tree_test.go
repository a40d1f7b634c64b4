package tree

import (
	"bytes"
	"math"
	"strings"
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/oobforest/pkg/errors"
	"github.com/YuminosukeSato/oobforest/pkg/log"
)

// TestDecisionTreeClassifier_FitPredict_Binary tests binary classification
func TestDecisionTreeClassifier_FitPredict_Binary(t *testing.T) {
	// Create simple linearly separable data
	X := mat.NewDense(8, 2, []float64{
		0, 0,
		0, 1,
		1, 0,
		1, 1,
		3, 3,
		3, 4,
		4, 3,
		4, 4,
	})

	y := mat.NewDense(8, 1, []float64{
		0, 0, 0, 0, // Class 0 (lower left)
		1, 1, 1, 1, // Class 1 (upper right)
	})

	dt := NewDecisionTreeClassifier()

	err := dt.Fit(X, y)
	if err != nil {
		t.Fatalf("Failed to fit model: %v", err)
	}

	// Test predictions on training data
	predictions, err := dt.Predict(X)
	if err != nil {
		t.Fatalf("Failed to predict: %v", err)
	}

	// Check all predictions are correct
	for i := 0; i < 8; i++ {
		pred := predictions.At(i, 0)
		actual := y.At(i, 0)
		if pred != actual {
			t.Errorf("Sample %d: expected %v, got %v", i, actual, pred)
		}
	}

	// Test on new data
	XTest := mat.NewDense(2, 2, []float64{
		0.5, 0.5, // Should be class 0
		3.5, 3.5, // Should be class 1
	})

	testPreds, err := dt.Predict(XTest)
	if err != nil {
		t.Fatalf("Failed to predict on test data: %v", err)
	}

	if testPreds.At(0, 0) != 0 {
		t.Errorf("Test point (0.5,0.5) should be class 0, got %v", testPreds.At(0, 0))
	}

	if testPreds.At(1, 0) != 1 {
		t.Errorf("Test point (3.5,3.5) should be class 1, got %v", testPreds.At(1, 0))
	}

	// Both attributes give the same gain; the first one wins.
	if root := dt.Root(); root.Attribute != 0 || !root.Numeric || root.Threshold != 2 {
		t.Errorf("unexpected root split: attribute %d numeric %v threshold %v", root.Attribute, root.Numeric, root.Threshold)
	}
}

// TestDecisionTreeClassifier_Score tests accuracy calculation
func TestDecisionTreeClassifier_Score(t *testing.T) {
	// XOR-like pattern: class 0 when both features are similar (both low or both high)
	X := mat.NewDense(8, 2, []float64{
		0.0, 0.0,
		0.0, 0.1,
		0.1, 1.0,
		0.0, 0.9,
		1.0, 0.0,
		0.9, 0.0,
		1.0, 1.0,
		0.9, 0.9,
	})

	y := mat.NewDense(8, 1, []float64{
		0, 0, // Both low -> class 0
		1, 1, // One high, one low -> class 1
		1, 1, // One high, one low -> class 1
		0, 0, // Both high -> class 0
	})

	dt := NewDecisionTreeClassifier()
	if err := dt.Fit(X, y); err != nil {
		t.Fatalf("Failed to fit model: %v", err)
	}

	score, err := dt.Score(X, y)
	if err != nil {
		t.Fatalf("Score failed: %v", err)
	}
	if score != 1.0 {
		t.Errorf("Decision tree should perfectly fit XOR-like data, got score: %v", score)
	}
	if depth := dt.GetDepth(); depth != 2 {
		t.Errorf("expected depth 2, got %d", depth)
	}
	if leaves := dt.GetNLeaves(); leaves != 4 {
		t.Errorf("expected 4 leaves, got %d", leaves)
	}
}

// TestDecisionTreeClassifier_Multiclass tests multiclass classification
func TestDecisionTreeClassifier_Multiclass(t *testing.T) {
	// Create 3-class data
	X := mat.NewDense(9, 2, []float64{
		0, 0,
		0, 1,
		1, 0,
		3, 3,
		3, 4,
		4, 3,
		6, 6,
		6, 7,
		7, 6,
	})

	y := mat.NewDense(9, 1, []float64{
		0, 0, 0, // Class 0
		1, 1, 1, // Class 1
		2, 2, 2, // Class 2
	})

	dt := NewDecisionTreeClassifier()
	if err := dt.Fit(X, y); err != nil {
		t.Fatalf("Failed to fit multiclass model: %v", err)
	}

	// Check that we have 3 classes
	if dt.nClasses_ != 3 {
		t.Errorf("Expected 3 classes, got %d", dt.nClasses_)
	}
	if classes := dt.Classes(); len(classes) != 3 || classes[2] != 2 {
		t.Errorf("Classes() = %v", classes)
	}

	score, err := dt.Score(X, y)
	if err != nil {
		t.Fatalf("Score failed: %v", err)
	}
	if score != 1.0 {
		t.Errorf("Expected perfect accuracy on training data, got: %v", score)
	}
}

func TestEntropy(t *testing.T) {
	tests := []struct {
		name   string
		labels []int
		want   float64
	}{
		{"empty", nil, 0},
		{"single value", []int{1, 1, 1, 1}, 0},
		{"balanced binary", []int{0, 0, 0, 1, 1, 1}, 1.0},
		{"skewed binary", []int{0, 0, 0, 1, 1, 1, 1, 1, 1}, 0.9183},
		{"three classes", []int{0, 1, 2}, math.Log2(3)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Entropy(tt.labels); math.Abs(got-tt.want) > 1e-4 {
				t.Errorf("Entropy(%v) = %v, want %v", tt.labels, got, tt.want)
			}
		})
	}
}

func TestInformationGain(t *testing.T) {
	got := InformationGain([]int{0, 0, 0, 1, 1, 1}, [][]int{{0, 0}, {1, 1, 1, 0}})
	if math.Abs(got-0.45915) > 1e-4 {
		t.Errorf("InformationGain = %v, want 0.45915", got)
	}

	if got := InformationGain(nil, nil); got != 0 {
		t.Errorf("InformationGain of empty parent = %v", got)
	}

	// 任意の二分割で情報利得は非負
	parent := []int{0, 1, 1, 0, 2, 1, 0, 0, 1, 2, 2, 1}
	for mask := 0; mask < 1<<len(parent); mask += 37 {
		var left, right []int
		for i, l := range parent {
			if mask&(1<<i) != 0 {
				left = append(left, l)
			} else {
				right = append(right, l)
			}
		}
		if g := InformationGain(parent, [][]int{left, right}); g < -1e-12 {
			t.Fatalf("negative gain %v for mask %b", g, mask)
		}
	}
}

func workedExample() ([]Row, []int) {
	X := []Row{
		{Num(3), Cat("aa"), Num(10)},
		{Num(1), Cat("bb"), Num(22)},
		{Num(2), Cat("cc"), Num(28)},
		{Num(5), Cat("bb"), Num(32)},
		{Num(4), Cat("cc"), Num(32)},
	}
	return X, []int{1, 1, 0, 0, 1}
}

func rowsEqual(a, b []Row) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].Key() != b[i].Key() {
			return false
		}
	}
	return true
}

func intsEqual(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestMajorityLabel(t *testing.T) {
	tests := []struct {
		name   string
		labels []int
		want   int
	}{
		{"tie of two, larger first", []int{1, 0}, 0},
		{"tie of two, smaller first", []int{0, 1}, 0},
		{"tie without zero", []int{2, 2, 1, 1}, 1},
		{"three-way tie", []int{5, 3, 4}, 3},
		{"clear majority", []int{2, 1, 2}, 2},
		{"single label", []int{7}, 7},
		{"no labels", nil, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := MajorityLabel(tt.labels); got != tt.want {
				t.Errorf("MajorityLabel(%v) = %d, want %d", tt.labels, got, tt.want)
			}
		})
	}
}

func TestDecisionTreeClassifier_DefaultLabelTie(t *testing.T) {
	X := []Row{NumRow(1), NumRow(2), NumRow(3), NumRow(4)}

	tests := []struct {
		name   string
		labels []int
		want   int
	}{
		{"balanced 0 and 1", []int{1, 0, 1, 0}, 0},
		{"balanced 1 and 2", []int{2, 1, 2, 1}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dt := NewDecisionTreeClassifier()
			if err := dt.Learn(X, tt.labels); err != nil {
				t.Fatal(err)
			}
			if got := dt.DefaultLabel(); got != tt.want {
				t.Errorf("DefaultLabel() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestPartitionClasses(t *testing.T) {
	X, y := workedExample()

	tests := []struct {
		name           string
		attribute      int
		split          Value
		wantXL, wantXR []Row
		wantYL, wantYR []int
	}{
		{
			name:      "numeric at column mean",
			attribute: 0,
			split:     Num(3),
			wantXL:    []Row{X[0], X[1], X[2]},
			wantXR:    []Row{X[3], X[4]},
			wantYL:    []int{1, 1, 0},
			wantYR:    []int{0, 1},
		},
		{
			name:      "categorical equality",
			attribute: 1,
			split:     Cat("bb"),
			wantXL:    []Row{X[1], X[3]},
			wantXR:    []Row{X[0], X[2], X[4]},
			wantYL:    []int{1, 0},
			wantYR:    []int{1, 0, 1},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			xl, xr, yl, yr := PartitionClasses(X, y, tt.attribute, tt.split)
			if !rowsEqual(xl, tt.wantXL) || !rowsEqual(xr, tt.wantXR) {
				t.Errorf("rows: left %v right %v", xl, xr)
			}
			if !intsEqual(yl, tt.wantYL) || !intsEqual(yr, tt.wantYR) {
				t.Errorf("labels: left %v right %v", yl, yr)
			}
			if len(xl)+len(xr) != len(X) || len(yl)+len(yr) != len(y) {
				t.Error("partition must conserve rows")
			}
		})
	}
}

func TestPartitionClasses_EveryAttributeAndSplit(t *testing.T) {
	X, y := workedExample()

	for a := 0; a < len(X[0]); a++ {
		// 列の各値、数値列なら平均、さらに種類の異なる分割値も試す
		splits := []Value{Cat("zz"), Num(0)}
		sum := 0.0
		for _, row := range X {
			splits = append(splits, row[a])
			sum += row[a].Num
		}
		if !X[0][a].IsCategorical() {
			splits = append(splits, Num(sum/float64(len(X))))
		}

		for _, split := range splits {
			xl, xr, yl, yr := PartitionClasses(X, y, a, split)
			if len(xl) != len(yl) || len(xr) != len(yr) {
				t.Fatalf("attribute %d split %v: rows and labels differ in length", a, split)
			}

			li, ri := 0, 0
			for i, row := range X {
				v := row[a]
				left := v.Kind == split.Kind &&
					((split.IsCategorical() && v.Str == split.Str) || (!split.IsCategorical() && v.Num <= split.Num))
				if left {
					if li >= len(xl) || !rowsEqual(xl[li:li+1], X[i:i+1]) || yl[li] != y[i] {
						t.Fatalf("attribute %d split %v: row %d missing from left side in order", a, split, i)
					}
					li++
					continue
				}
				if ri >= len(xr) || !rowsEqual(xr[ri:ri+1], X[i:i+1]) || yr[ri] != y[i] {
					t.Fatalf("attribute %d split %v: row %d missing from right side in order", a, split, i)
				}
				ri++
			}
			if li != len(xl) || ri != len(xr) {
				t.Errorf("attribute %d split %v: %d+%d rows returned, want exactly %d", a, split, len(xl), len(xr), len(X))
			}
		}
	}
}

func TestDecisionTreeClassifier_PerfectlyPredictiveFeature(t *testing.T) {
	var X []Row
	var y []int
	for i := 0; i < 20; i++ {
		noise := Cat("a")
		if i%2 == 1 {
			noise = Cat("b")
		}
		X = append(X, Row{noise, Num(float64(i) / 20)})
		y = append(y, 0)
		X = append(X, Row{noise, Num(10 + float64(i)/20)})
		y = append(y, 1)
	}

	dt := NewDecisionTreeClassifier()
	if err := dt.Learn(X, y); err != nil {
		t.Fatal(err)
	}
	if dt.Root().Attribute != 1 {
		t.Errorf("expected split on the predictive column, got %d", dt.Root().Attribute)
	}
	for i, row := range X {
		got, err := dt.Classify(row)
		if err != nil {
			t.Fatal(err)
		}
		if got != y[i] {
			t.Errorf("row %d: got %d, want %d", i, got, y[i])
		}
	}
}

func TestDecisionTreeClassifier_EmptyTree(t *testing.T) {
	dt := NewDecisionTreeClassifier()

	// learn前
	if got, err := dt.Classify(Row{Num(1), Cat("x")}); err != nil || got != 0 {
		t.Errorf("Classify before Learn = %d, %v; want 0, nil", got, err)
	}

	if err := dt.Learn(nil, nil); err != nil {
		t.Fatal(err)
	}
	if got, err := dt.Classify(Row{Num(42)}); err != nil || got != 0 {
		t.Errorf("Classify on empty tree = %d, %v; want 0, nil", got, err)
	}
	if dt.GetNLeaves() != 0 || dt.GetDepth() != 0 {
		t.Error("empty tree should have no leaves")
	}
}

func TestDecisionTreeClassifier_SingleRow(t *testing.T) {
	dt := NewDecisionTreeClassifier()
	if err := dt.Learn([]Row{NumRow(1, 2)}, []int{3}); err != nil {
		t.Fatal(err)
	}
	if got, _ := dt.Classify(NumRow(100, -4)); got != 3 {
		t.Errorf("single-row tree should always predict its label, got %d", got)
	}
}

func TestDecisionTreeClassifier_CategoricalRouting(t *testing.T) {
	X := []Row{{Cat("red")}, {Cat("red")}, {Cat("red")}, {Cat("green")}, {Cat("green")}, {Cat("blue")}}
	y := []int{1, 1, 1, 0, 0, 2}

	dt := NewDecisionTreeClassifier()
	if err := dt.Learn(X, y); err != nil {
		t.Fatal(err)
	}

	root := dt.Root()
	if root.Numeric || len(root.Branches) != 3 {
		t.Fatalf("expected a 3-way categorical node, got %+v", root)
	}

	tests := []struct {
		record Row
		want   int
	}{
		{Row{Cat("red")}, 1},
		{Row{Cat("green")}, 0},
		{Row{Cat("blue")}, 2},
		{Row{Cat("purple")}, dt.DefaultLabel()}, // 未知のカテゴリ
		{Row{Num(7)}, dt.DefaultLabel()},        // 種類の不一致
	}
	for _, tt := range tests {
		got, err := dt.Classify(tt.record)
		if err != nil {
			t.Fatal(err)
		}
		if got != tt.want {
			t.Errorf("Classify(%v) = %d, want %d", tt.record, got, tt.want)
		}
	}
	if dt.DefaultLabel() != 1 {
		t.Errorf("DefaultLabel() = %d, want 1", dt.DefaultLabel())
	}
}

func TestDecisionTreeClassifier_NumericNodeWithCategoryValue(t *testing.T) {
	dt := NewDecisionTreeClassifier()
	if err := dt.Learn([]Row{NumRow(0), NumRow(1), NumRow(10), NumRow(11), NumRow(12)}, []int{1, 1, 0, 0, 0}); err != nil {
		t.Fatal(err)
	}
	got, err := dt.Classify(Row{Cat("10")})
	if err != nil {
		t.Fatal(err)
	}
	if got != dt.DefaultLabel() {
		t.Errorf("category at numeric node should yield default %d, got %d", dt.DefaultLabel(), got)
	}
}

func TestDecisionTreeClassifier_MajorityPolicy(t *testing.T) {
	tests := []struct {
		name   string
		policy MajorityPolicy
		y      []int
		want   int
	}{
		// majority label 0 indexes y[0]
		{"reference indexes labels", MajorityReference, []int{1, 0, 0}, 1},
		{"vote uses majority", MajorityVote, []int{1, 0, 0}, 0},
		// majority label 5 is out of range for 3 rows
		{"reference falls back", MajorityReference, []int{5, 5, 0}, 5},
		{"vote out of range", MajorityVote, []int{5, 5, 0}, 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			X := []Row{{Cat("a")}, {Cat("a")}, {Cat("a")}}
			dt := NewDecisionTreeClassifier(WithMajorityPolicy(tt.policy))
			if err := dt.Learn(X, tt.y); err != nil {
				t.Fatal(err)
			}
			got, _ := dt.Classify(Row{Cat("a")})
			if got != tt.want {
				t.Errorf("got %d, want %d", got, tt.want)
			}
		})
	}
}

func TestDecisionTreeClassifier_InvalidInput(t *testing.T) {
	tests := []struct {
		name string
		X    []Row
		y    []int
	}{
		{"width mismatch", []Row{NumRow(1, 2), NumRow(3)}, []int{0, 1}},
		{"mixed column", []Row{{Num(1)}, {Cat("x")}}, []int{0, 1}},
		{"negative label", []Row{NumRow(1), NumRow(2)}, []int{0, -1}},
		{"NaN feature", []Row{NumRow(1), NumRow(math.NaN())}, []int{0, 1}},
		{"infinite feature", []Row{NumRow(math.Inf(1)), NumRow(2)}, []int{0, 1}},
		{"non-finite mean", []Row{NumRow(math.MaxFloat64), NumRow(math.MaxFloat64)}, []int{0, 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewDecisionTreeClassifier().Learn(tt.X, tt.y)
			if !errors.Is(err, errors.ErrInvalidInput) {
				t.Errorf("expected invalid input error, got %v", err)
			}
		})
	}

	err := NewDecisionTreeClassifier().Learn([]Row{NumRow(1)}, []int{0, 1})
	var de *errors.DimensionError
	if !errors.As(err, &de) {
		t.Errorf("length mismatch should be a DimensionError, got %v", err)
	}

	dt := NewDecisionTreeClassifier()
	_ = dt.Learn([]Row{NumRow(1, 2), NumRow(3, 4)}, []int{0, 1})
	if _, err := dt.Classify(NumRow(1)); !errors.Is(err, errors.ErrInvalidInput) {
		t.Errorf("Classify with wrong width should fail, got %v", err)
	}
}

func TestDecisionTreeClassifier_FitRejectsFractionalLabels(t *testing.T) {
	X := mat.NewDense(2, 1, []float64{0, 1})
	y := mat.NewDense(2, 1, []float64{0, 0.5})
	if err := NewDecisionTreeClassifier().Fit(X, y); !errors.Is(err, errors.ErrInvalidInput) {
		t.Errorf("expected invalid input error, got %v", err)
	}
}

func TestDecisionTreeClassifier_Deterministic(t *testing.T) {
	X, y := workedExample()
	a, b := NewDecisionTreeClassifier(), NewDecisionTreeClassifier()
	if err := a.Learn(X, y); err != nil {
		t.Fatal(err)
	}
	if err := b.Learn(X, y); err != nil {
		t.Fatal(err)
	}
	if a.String() != b.String() {
		t.Errorf("trees differ:\n%s\n%s", a, b)
	}
	if !strings.Contains(a.String(), "X[") {
		t.Errorf("String() should describe splits:\n%s", a)
	}
}

func TestDecisionTreeClassifier_SaveLoad(t *testing.T) {
	X, y := workedExample()
	dt := NewDecisionTreeClassifier(WithMajorityPolicy(MajorityVote))
	if err := dt.Learn(X, y); err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	if err := dt.Save(&buf); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded := NewDecisionTreeClassifier()
	if err := loaded.Load(&buf); err != nil {
		t.Fatalf("Load: %v", err)
	}

	if !loaded.IsFitted() {
		t.Error("loaded tree should be fitted")
	}
	if loaded.GetParams()["majority_policy"] != "majority" {
		t.Errorf("policy not restored: %v", loaded.GetParams())
	}
	probes := append(X, Row{Num(0), Cat("zz"), Num(0)})
	for _, row := range probes {
		want, _ := dt.Classify(row)
		got, _ := loaded.Classify(row)
		if got != want {
			t.Errorf("Classify(%v): loaded %d, original %d", row, got, want)
		}
	}
}

func TestDecisionTreeClassifier_Logging(t *testing.T) {
	logger, _ := log.NewTestLogger(log.LevelDebug)
	dt := NewDecisionTreeClassifier(WithLogger(logger))
	X, y := workedExample()
	if err := dt.Learn(X, y); err != nil {
		t.Fatal(err)
	}
	if !logger.ContainsMessage("tree learned") {
		t.Error("expected a debug record for the learned tree")
	}
	if !logger.ContainsField(log.SamplesKey, 5.0) {
		t.Error("expected sample count in the record")
	}
}

// TestDecisionTreeClassifier_GetSetParams tests parameter management
func TestDecisionTreeClassifier_GetSetParams(t *testing.T) {
	dt := NewDecisionTreeClassifier()

	params := dt.GetParams()
	if params["majority_policy"].(string) != "reference" {
		t.Errorf("Default majority_policy should be 'reference', got %v", params["majority_policy"])
	}

	if err := dt.SetParams(map[string]interface{}{"majority_policy": "majority"}); err != nil {
		t.Fatalf("Failed to set params: %v", err)
	}
	if dt.majorityPolicy != MajorityVote {
		t.Errorf("majority_policy not updated: got %v", dt.majorityPolicy)
	}

	if err := dt.SetParams(map[string]interface{}{"majority_policy": MajorityReference}); err != nil {
		t.Fatal(err)
	}
	if dt.majorityPolicy != MajorityReference {
		t.Errorf("majority_policy not updated: got %v", dt.majorityPolicy)
	}

	var ve *errors.ValidationError
	if err := dt.SetParams(map[string]interface{}{"majority_policy": "plurality"}); !errors.As(err, &ve) {
		t.Errorf("expected ValidationError, got %v", err)
	}
	if err := dt.SetParams(map[string]interface{}{"max_depth": 3}); !errors.As(err, &ve) {
		t.Errorf("expected ValidationError for unknown parameter, got %v", err)
	}
}

// TestDecisionTreeClassifier_NotFitted tests error when predicting without fitting
func TestDecisionTreeClassifier_NotFitted(t *testing.T) {
	dt := NewDecisionTreeClassifier()

	X := mat.NewDense(2, 2, []float64{
		1, 2,
		3, 4,
	})

	_, err := dt.Predict(X)
	var nfe *errors.NotFittedError
	if !errors.As(err, &nfe) {
		t.Errorf("Expected NotFittedError when predicting without fitting, got %v", err)
	}
}

func TestRowKey(t *testing.T) {
	if NumRow(0, 1).Key() != NumRow(math.Copysign(0, -1), 1).Key() {
		t.Error("0 and -0 should share a key")
	}
	if (Row{Cat("1")}).Key() == NumRow(1).Key() {
		t.Error("category \"1\" and number 1 must differ")
	}
	if (Row{Cat("a"), Cat("b")}).Key() == (Row{Cat("a\x1fsb")}).Key() {
		t.Error("keys must not collide across field boundaries")
	}
}
