package recognize

import (
	"errors"
	"image"
	"math"
	"sync"

	"github.com/ekaya/facegate/pkg/logging"
)

// ErrBadProbe is returned when the probe image cannot be encoded.
var ErrBadProbe = errors.New("invalid probe image")

// Recognizer matches probe faces against the persisted model. It holds
// the model and identity table loaded by the most recent Load call;
// Load must be re-invoked after every successful training run.
type Recognizer struct {
	mu         sync.RWMutex
	model      *Model
	table      *LabelTable
	modelFile  string
	labelsFile string
}

// NewRecognizer creates a Recognizer reading its artifacts from the
// given paths. It starts not ready; call Load.
func NewRecognizer(modelFile, labelsFile string) *Recognizer {
	return &Recognizer{
		modelFile:  modelFile,
		labelsFile: labelsFile,
	}
}

// Load reads the persisted model and identity table. Both must be
// present and readable; otherwise the recognizer stays in its previous
// state and ErrModelNotReady is returned.
func (r *Recognizer) Load() error {
	table, err := LoadLabelTable(r.labelsFile)
	if err != nil {
		return err
	}
	model, err := LoadModel(r.modelFile)
	if err != nil {
		return err
	}

	r.mu.Lock()
	r.model = model
	r.table = table
	r.mu.Unlock()

	logging.Component("recognizer").Debugf("loaded model: %d gallery samples, %d identities",
		len(model.Gallery), table.Len())
	return nil
}

// Ready reports whether a model and table are loaded.
func (r *Recognizer) Ready() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.model != nil && r.table != nil
}

// Predict returns the best-matching identity id for a cropped
// grayscale face and its dissimilarity score (lower = more similar).
// Deterministic for a fixed model. The accept/reject decision against
// the confidence threshold belongs to the caller.
func (r *Recognizer) Predict(face *image.Gray) (int, float64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.model == nil || r.table == nil {
		return 0, 0, ErrModelNotReady
	}
	if face == nil || face.Bounds().Empty() {
		return 0, 0, ErrBadProbe
	}
	if len(r.model.Gallery) == 0 {
		return 0, 0, ErrModelNotReady
	}

	probe := encode(face, r.model.Params)

	bestID := 0
	bestDist := math.MaxFloat64
	for _, sample := range r.model.Gallery {
		if len(sample.Histogram) != len(probe) {
			return 0, 0, ErrBadProbe
		}
		if d := chiSquare(probe, sample.Histogram); d < bestDist {
			bestDist = d
			bestID = sample.ID
		}
	}

	return bestID, bestDist, nil
}

// NameFor resolves an identity id against the loaded table.
func (r *Recognizer) NameFor(id int) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.table == nil {
		return "", false
	}
	return r.table.NameFor(id)
}
