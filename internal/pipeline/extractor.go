package pipeline

import (
	"fmt"

	"github.com/Sergey-Veremeev/CarTesserakt/internal/detection"
)

// Extractor runs the detector, picks one candidate and crops it.
type Extractor struct {
	detector      Detector
	selector      detection.Selector
	margins       detection.Margins
	logger        Logger
	timingTracker TimingTracker
}

func NewExtractor(detector Detector, selector detection.Selector, margins detection.Margins, log Logger, timingTracker TimingTracker) *Extractor {
	if selector == nil {
		selector = detection.IndexSelector{Index: 1}
	}
	return &Extractor{
		detector:      detector,
		selector:      selector,
		margins:       margins,
		logger:        log,
		timingTracker: timingTracker,
	}
}

func (e *Extractor) Extract(img *ImageData) (*Plate, error) {
	timingCtx := e.timingTracker.StartTiming(StageDetect)
	defer e.timingTracker.EndTiming(timingCtx)

	candidates, err := e.detector.Detect(img.Mat)
	if err != nil {
		return nil, newDetectionError(fmt.Errorf("detector failed: %w", err), 0)
	}

	index, err := e.selector.Select(candidates)
	if err != nil {
		e.logger.Warning("PlateExtractor", "no usable candidate", map[string]interface{}{
			"selector":   e.selector.Name(),
			"candidates": len(candidates),
		})
		return nil, newDetectionError(err, len(candidates))
	}

	selected := candidates[index]
	region, err := e.margins.CropRegion(selected, img.Bounds())
	if err != nil {
		return nil, newDetectionError(err, len(candidates))
	}

	cropped, err := img.Mat.Crop(region, "plate")
	if err != nil {
		return nil, newDetectionError(fmt.Errorf("%w: %v", detection.ErrInvalidCrop, err), len(candidates))
	}

	e.logger.Info("PlateExtractor", "plate region selected", map[string]interface{}{
		"selector":   e.selector.Name(),
		"candidates": len(candidates),
		"index":      index,
		"selected":   selected.String(),
		"crop":       region.String(),
	})

	return &Plate{
		Mat:           cropped,
		Candidates:    candidates,
		SelectedIndex: index,
		Selected:      selected,
		Crop:          region,
	}, nil
}
