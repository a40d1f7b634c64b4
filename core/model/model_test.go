package model

import (
	"bytes"
	"encoding/gob"
	"io"
	"path/filepath"
	"sync"
	"testing"

	"github.com/YuminosukeSato/oobforest/pkg/errors"
)

func TestStateManager_Lifecycle(t *testing.T) {
	s := NewStateManager()
	if s.IsFitted() {
		t.Fatal("new StateManager should not be fitted")
	}

	err := s.RequireFitted("RandomForestClassifier", "Vote")
	var nfe *errors.NotFittedError
	if !errors.As(err, &nfe) {
		t.Fatalf("expected NotFittedError, got %v", err)
	}
	if nfe.ModelName != "RandomForestClassifier" || nfe.Method != "Vote" {
		t.Errorf("unexpected error fields: %+v", nfe)
	}

	s.SetDimensions(3, 20)
	s.SetFitted()
	if err := s.RequireFitted("RandomForestClassifier", "Vote"); err != nil {
		t.Errorf("fitted state should not error: %v", err)
	}
	if f, n := s.GetDimensions(); f != 3 || n != 20 {
		t.Errorf("GetDimensions() = %d, %d", f, n)
	}

	s.Reset()
	if s.IsFitted() {
		t.Error("Reset should clear the fitted flag")
	}
	if f, n := s.GetDimensions(); f != 0 || n != 0 {
		t.Errorf("Reset should clear dimensions, got %d, %d", f, n)
	}
}

func TestStateManager_StateRoundTrip(t *testing.T) {
	s := NewStateManager()
	s.SetDimensions(4, 10)
	s.SetFitted()

	other := NewStateManager()
	other.SetState(s.GetState())

	if got := other.GetState(); !got.Fitted || got.NFeatures != 4 || got.NSamples != 10 {
		t.Errorf("state not restored: %+v", got)
	}
}

func TestStateManager_Concurrent(t *testing.T) {
	s := NewStateManager()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			s.SetDimensions(i, i)
			s.SetFitted()
		}(i)
		go func() {
			defer wg.Done()
			_ = s.IsFitted()
			_, _ = s.GetDimensions()
		}()
	}
	wg.Wait()
	if !s.IsFitted() {
		t.Error("expected fitted after concurrent SetFitted")
	}
}

type gobModel struct {
	Labels []int
	Name   string
}

type persistableModel struct {
	payload string
}

func (p *persistableModel) Save(w io.Writer) error {
	return gob.NewEncoder(w).Encode(p.payload)
}

func (p *persistableModel) Load(r io.Reader) error {
	return gob.NewDecoder(r).Decode(&p.payload)
}

func TestSaveLoadModel_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.gob")

	in := gobModel{Labels: []int{0, 1, 1}, Name: "tree"}
	if err := SaveModel(in, path); err != nil {
		t.Fatalf("SaveModel: %v", err)
	}

	var out gobModel
	if err := LoadModel(&out, path); err != nil {
		t.Fatalf("LoadModel: %v", err)
	}
	if out.Name != "tree" || len(out.Labels) != 3 || out.Labels[2] != 1 {
		t.Errorf("round trip mismatch: %+v", out)
	}
}

func TestSaveLoadModel_Persistable(t *testing.T) {
	var buf bytes.Buffer
	if err := SaveModelToWriter(&persistableModel{payload: "forest"}, &buf); err != nil {
		t.Fatal(err)
	}

	out := &persistableModel{}
	if err := LoadModelFromReader(out, &buf); err != nil {
		t.Fatal(err)
	}
	if out.payload != "forest" {
		t.Errorf("payload = %q", out.payload)
	}
}

func TestLoadModel_MissingFile(t *testing.T) {
	var out gobModel
	err := LoadModel(&out, filepath.Join(t.TempDir(), "missing.gob"))
	if err == nil {
		t.Fatal("expected error for missing file")
	}
}
