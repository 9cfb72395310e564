package pipeline

import (
	"context"
	"errors"
	"fmt"
	"image"

	"github.com/google/uuid"

	"github.com/Sergey-Veremeev/CarTesserakt/internal/debug/timing"
	"github.com/Sergey-Veremeev/CarTesserakt/internal/detection"
	"github.com/Sergey-Veremeev/CarTesserakt/internal/opencv/safe"
	"github.com/Sergey-Veremeev/CarTesserakt/internal/preview"
	"github.com/Sergey-Veremeev/CarTesserakt/internal/recognition"
)

const DefaultPreviewTitle = "Номерной знак"

type Config struct {
	Detector     Detector
	Selector     detection.Selector
	Margins      detection.Margins
	ScalePercent int
	Recognizer   Recognizer
	Whitelist    string
	Viewer       Viewer
	PreviewTitle string
	DumpPath     string
	MemTracker   safe.MemoryTracker
	Logger       Logger
}

// Pipeline runs load, detect, normalize and recognize once per call. It
// holds no state between runs.
type Pipeline struct {
	config Config
}

func New(cfg Config) (*Pipeline, error) {
	if cfg.Detector == nil {
		return nil, fmt.Errorf("detector is required")
	}
	if cfg.Recognizer == nil {
		return nil, fmt.Errorf("recognizer is required")
	}
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if cfg.Whitelist == "" {
		cfg.Whitelist = recognition.DefaultWhitelist
	}
	if cfg.ScalePercent <= 0 {
		cfg.ScalePercent = 150
	}
	if cfg.PreviewTitle == "" {
		cfg.PreviewTitle = DefaultPreviewTitle
	}
	if err := cfg.Margins.Validate(); err != nil {
		return nil, err
	}

	return &Pipeline{config: cfg}, nil
}

// Run processes one image. Any returned error is a *StageError and means no
// text was recognized; the recognizer is never called after a failed stage.
func (p *Pipeline) Run(ctx context.Context, imagePath string) (*Result, error) {
	runID := uuid.NewString()
	tracker := timing.NewTracker()
	log := runLogger{Logger: p.config.Logger, runID: runID}

	loader := NewLoader(p.config.MemTracker, log, tracker)
	extractor := NewExtractor(p.config.Detector, p.config.Selector, p.config.Margins, log, tracker)
	normalizer := NewNormalizer(p.config.ScalePercent, p.config.MemTracker, log, tracker)

	result := &Result{RunID: runID, ImagePath: imagePath, SelectedIndex: -1}
	fail := func(err *StageError) (*Result, error) {
		log.Error("Pipeline", err, err.ToMap())
		return nil, err
	}

	log.Info("Pipeline", "run started", map[string]interface{}{
		"image": imagePath,
	})

	if err := ctx.Err(); err != nil {
		return fail(newCancelledError(StageLoad, err))
	}
	img, err := loader.Load(ctx, imagePath)
	if err != nil {
		return fail(asStageError(err, StageLoad))
	}
	defer img.Close()
	result.ImageSize = image.Pt(img.Width, img.Height)

	if err := ctx.Err(); err != nil {
		return fail(newCancelledError(StageDetect, err))
	}
	plate, err := extractor.Extract(img)
	if err != nil {
		return fail(asStageError(err, StageDetect))
	}
	defer plate.Close()
	result.Candidates = plate.Candidates
	result.SelectedIndex = plate.SelectedIndex
	result.Selected = plate.Selected
	result.Crop = plate.Crop

	if err := ctx.Err(); err != nil {
		return fail(newCancelledError(StageNormalize, err))
	}
	bitmap, err := normalizer.Normalize(ctx, plate.Mat)
	if err != nil {
		return fail(asStageError(err, StageNormalize))
	}
	defer bitmap.Close()
	result.NormalizedSize = bitmap.Size()

	p.showAndDump(log, tracker, bitmap)

	if err := ctx.Err(); err != nil {
		return fail(newCancelledError(StageRecognize, err))
	}
	if err := p.recognize(log, tracker, bitmap, result); err != nil {
		return fail(err)
	}

	result.Timings = tracker.Stages()

	fields := tracker.Summary()
	fields["text"] = result.Text
	fields["dropped"] = result.Dropped
	log.Info("Pipeline", "run completed", fields)

	return result, nil
}

// showAndDump drives the display side channel. Failures here are logged and
// do not stop recognition.
func (p *Pipeline) showAndDump(log Logger, tracker *timing.Tracker, bitmap *safe.Mat) {
	timingCtx := tracker.StartTiming(StagePreview)
	defer tracker.EndTiming(timingCtx)

	if p.config.DumpPath != "" {
		if err := preview.Dump(p.config.DumpPath, bitmap); err != nil {
			log.Warning("Pipeline", "bitmap dump failed", map[string]interface{}{
				"path":  p.config.DumpPath,
				"error": err.Error(),
			})
		}
	}

	if p.config.Viewer == nil {
		return
	}
	if err := p.config.Viewer.Show(p.config.PreviewTitle, bitmap); err != nil {
		log.Warning("Pipeline", "preview failed", map[string]interface{}{
			"error": err.Error(),
		})
	}
}

func (p *Pipeline) recognize(log Logger, tracker *timing.Tracker, bitmap *safe.Mat, result *Result) *StageError {
	timingCtx := tracker.StartTiming(StageRecognize)
	defer tracker.EndTiming(timingCtx)

	raw, err := p.config.Recognizer.Recognize(bitmap, p.config.Whitelist)
	if err != nil {
		return newRecognitionError(err)
	}

	text, dropped := recognition.Filter(raw, p.config.Whitelist)
	if dropped > 0 {
		log.Warning("Pipeline", "recognizer returned characters outside the whitelist", map[string]interface{}{
			"raw":     raw,
			"dropped": dropped,
		})
	}

	result.RawText = raw
	result.Text = text
	result.Dropped = dropped
	return nil
}

// asStageError keeps an existing StageError and tags anything else with the
// generic failure code of the stage it escaped from.
func asStageError(err error, stage string) *StageError {
	var stageErr *StageError
	if errors.As(err, &stageErr) {
		return stageErr
	}

	code := map[string]ErrorCode{
		StageLoad:      ErrorImageLoad,
		StageDetect:    ErrorDetectionFailed,
		StageNormalize: ErrorNormalizationFailed,
		StageRecognize: ErrorRecognitionFailed,
	}[stage]

	return &StageError{
		Code:    code,
		Stage:   stage,
		Message: err.Error(),
		Cause:   err,
	}
}
