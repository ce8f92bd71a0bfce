package recognize

import (
	"image"

	"github.com/sirupsen/logrus"

	"github.com/ekaya/facegate/pkg/imaging"
	"github.com/ekaya/facegate/pkg/logging"
)

// SampleSource enumerates stored face samples. store.Dir satisfies it.
type SampleSource interface {
	ListIdentities() []string
	Samples(name string) []string
}

// Trainer rebuilds the recognition model from the full sample corpus.
// Every run replaces the model from scratch; there is no incremental
// update.
type Trainer struct {
	params     Params
	modelFile  string
	labelsFile string
	log        *logrus.Entry
}

// NewTrainer creates a Trainer that persists its artifacts at the
// given paths.
func NewTrainer(params Params, modelFile, labelsFile string) *Trainer {
	return &Trainer{
		params:     params,
		modelFile:  modelFile,
		labelsFile: labelsFile,
		log:        logging.Component("trainer"),
	}
}

// Retrain enumerates every identity and its samples, encodes the full
// corpus and persists a fresh identity table and model. Identity ids
// are carried over from the previous table where the name still
// exists, so an unchanged corpus retrains to an identical assignment.
//
// An empty corpus returns ErrNoTrainingData and leaves any previously
// persisted artifacts untouched. The table is written (and loadable)
// before the model, so a crash between the two writes never yields a
// model without its table.
func (tr *Trainer) Retrain(src SampleSource) (*Model, *LabelTable, error) {
	names := src.ListIdentities()

	prev, err := LoadLabelTable(tr.labelsFile)
	if err != nil {
		prev = NewLabelTable()
	}
	table := prev.rebuild(names)

	model := &Model{Params: tr.params}
	for _, name := range names {
		id, _ := table.IDFor(name)
		for _, path := range src.Samples(name) {
			hist, err := tr.encodeSample(path)
			if err != nil {
				tr.log.Warnf("skipping unreadable sample %s: %v", path, err)
				continue
			}
			model.Gallery = append(model.Gallery, GallerySample{ID: id, Histogram: hist})
		}
	}

	if len(model.Gallery) == 0 {
		tr.log.Warn("no face samples found, keeping previous model")
		return nil, nil, ErrNoTrainingData
	}

	if err := SaveLabelTable(tr.labelsFile, table); err != nil {
		return nil, nil, err
	}
	if err := SaveModel(tr.modelFile, model); err != nil {
		return nil, nil, err
	}

	tr.log.Infof("trained model: %d samples across %d identities", len(model.Gallery), table.Len())
	return model, table, nil
}

// encodeSample loads one stored sample and encodes it with the
// trainer's parameters.
func (tr *Trainer) encodeSample(path string) ([]float64, error) {
	img, err := imaging.LoadGray(path)
	if err != nil {
		return nil, err
	}
	return encode(img, tr.params), nil
}

// encode normalizes a grayscale face to the canonical sample size and
// computes its spatial LBP histogram.
func encode(img *image.Gray, p Params) []float64 {
	normalized := imaging.Resize(img, p.SampleSize, p.SampleSize)
	return spatialHistogram(normalized, p.GridX, p.GridY)
}
