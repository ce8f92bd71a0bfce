// Package detect wraps the pigo cascade classifier behind the face
// detector contract the capture session consumes: grayscale image in,
// zero or more bounding boxes out.
package detect

import (
	"fmt"
	"image"
	"os"

	pigo "github.com/esimov/pigo/core"

	"github.com/ekaya/facegate/pkg/imaging"
	"github.com/ekaya/facegate/pkg/logging"
)

// Params are the cascade detection parameters. Detection is
// deterministic for a fixed parameter set and pixel input.
type Params struct {
	MinSize          int
	MaxSize          int
	ShiftFactor      float64
	ScaleFactor      float64
	IoUThreshold     float64
	QualityThreshold float64
}

// DefaultParams returns detection parameters tuned for a near-field
// webcam scene.
func DefaultParams() Params {
	return Params{
		MinSize:          80,
		MaxSize:          1000,
		ShiftFactor:      0.1,
		ScaleFactor:      1.1,
		IoUThreshold:     0.2,
		QualityThreshold: 5.0,
	}
}

// Detector finds face bounding boxes in grayscale frames.
type Detector struct {
	classifier *pigo.Pigo
	params     Params
}

// NewDetector loads the binary cascade file and prepares a classifier.
func NewDetector(cascadePath string, params Params) (*Detector, error) {
	data, err := os.ReadFile(cascadePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read cascade file: %w", err)
	}

	classifier, err := pigo.NewPigo().Unpack(data)
	if err != nil {
		return nil, fmt.Errorf("failed to unpack cascade: %w", err)
	}

	logging.Component("detect").Debugf("cascade loaded from %s (min size %d)", cascadePath, params.MinSize)
	return &Detector{classifier: classifier, params: params}, nil
}

// Detect returns the bounding boxes of all faces found in the frame.
// Zero boxes means no actionable face; more than one is an ambiguity
// the caller must handle.
func (d *Detector) Detect(gray *image.Gray) []image.Rectangle {
	bounds := gray.Bounds()
	cParams := pigo.CascadeParams{
		MinSize:     d.params.MinSize,
		MaxSize:     d.params.MaxSize,
		ShiftFactor: d.params.ShiftFactor,
		ScaleFactor: d.params.ScaleFactor,
		ImageParams: pigo.ImageParams{
			Pixels: imaging.Pixels(gray),
			Rows:   bounds.Dy(),
			Cols:   bounds.Dx(),
			Dim:    bounds.Dx(),
		},
	}

	dets := d.classifier.RunCascade(cParams, 0.0)
	dets = d.classifier.ClusterDetections(dets, d.params.IoUThreshold)

	return toRectangles(dets, d.params.QualityThreshold)
}

// toRectangles converts pigo's center/scale detections to bounding
// boxes, dropping detections below the quality threshold.
func toRectangles(dets []pigo.Detection, quality float64) []image.Rectangle {
	var rects []image.Rectangle
	for _, det := range dets {
		if float64(det.Q) < quality {
			continue
		}
		half := det.Scale / 2
		rects = append(rects, image.Rect(det.Col-half, det.Row-half, det.Col+half, det.Row+half))
	}
	return rects
}
