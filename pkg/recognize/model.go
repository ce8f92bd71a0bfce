// Package recognize implements face recognition over locally stored
// sample corpora. The model is a spatial LBP histogram gallery: every
// training sample contributes one histogram tagged with its identity
// id, and prediction is nearest-neighbor chi-square matching. The
// trained model and the identity table are persisted together and are
// only trusted as a pair.
package recognize

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// ErrNoTrainingData is returned when the sample corpus is empty.
var ErrNoTrainingData = errors.New("no face samples to train on")

// ErrModelNotReady is returned when the model or identity table has
// not been trained or cannot be read.
var ErrModelNotReady = errors.New("recognition model not ready")

// Params are the LBP encoding parameters baked into a trained model.
// Prediction must encode probes with the same parameters the corpus
// was encoded with.
type Params struct {
	GridX      int `json:"grid_x"`
	GridY      int `json:"grid_y"`
	SampleSize int `json:"sample_size"`
}

// DefaultParams returns the standard encoding parameters.
func DefaultParams() Params {
	return Params{GridX: 8, GridY: 8, SampleSize: 100}
}

// GallerySample is one training sample's histogram and identity id.
type GallerySample struct {
	ID        int       `json:"id"`
	Histogram []float64 `json:"histogram"`
}

// Model is the persisted recognition model.
type Model struct {
	Params  Params          `json:"params"`
	Gallery []GallerySample `json:"gallery"`
}

// LabelTable is the persisted id to display-name map, together with
// the allocation cursor that keeps id assignment stable across
// retrains: a retired id is never handed out again.
type LabelTable struct {
	Names  map[int]string `json:"names"`
	NextID int            `json:"next_id"`
}

// NewLabelTable returns an empty table.
func NewLabelTable() *LabelTable {
	return &LabelTable{Names: make(map[int]string)}
}

// NameFor resolves an identity id to its display name.
func (t *LabelTable) NameFor(id int) (string, bool) {
	name, ok := t.Names[id]
	return name, ok
}

// IDFor resolves a display name to its id.
func (t *LabelTable) IDFor(name string) (int, bool) {
	for id, n := range t.Names {
		if n == name {
			return id, true
		}
	}
	return 0, false
}

// Len returns the number of identities in the table.
func (t *LabelTable) Len() int {
	return len(t.Names)
}

// IDs returns the identity ids in ascending order.
func (t *LabelTable) IDs() []int {
	ids := make([]int, 0, len(t.Names))
	for id := range t.Names {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// rebuild produces the table for a new training run: names already
// known keep their ids, new names get fresh sequential ids, and names
// no longer present are dropped without recycling their ids.
func (t *LabelTable) rebuild(names []string) *LabelTable {
	next := NewLabelTable()
	next.NextID = t.NextID

	for _, name := range names {
		if id, ok := t.IDFor(name); ok {
			next.Names[id] = name
			continue
		}
		next.Names[next.NextID] = name
		next.NextID++
	}

	return next
}

// SaveModel writes the model atomically.
func SaveModel(path string, m *Model) error {
	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("failed to marshal model: %w", err)
	}
	return writeFileAtomic(path, data)
}

// LoadModel reads a persisted model.
func LoadModel(path string) (*Model, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrModelNotReady, err)
	}

	var m Model
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrModelNotReady, err)
	}
	return &m, nil
}

// SaveLabelTable writes the identity table atomically.
func SaveLabelTable(path string, t *LabelTable) error {
	data, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("failed to marshal identity table: %w", err)
	}
	return writeFileAtomic(path, data)
}

// LoadLabelTable reads a persisted identity table.
func LoadLabelTable(path string) (*LabelTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrModelNotReady, err)
	}

	var t LabelTable
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrModelNotReady, err)
	}
	if t.Names == nil {
		t.Names = make(map[int]string)
	}
	return &t, nil
}

// writeFileAtomic writes via a temp file and rename so readers never
// observe a half-written artifact.
func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}

	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}
