package pipeline

import (
	"context"
	"fmt"

	"github.com/Sergey-Veremeev/CarTesserakt/internal/opencv/safe"
	"github.com/Sergey-Veremeev/CarTesserakt/internal/processing/chain"
	"github.com/Sergey-Veremeev/CarTesserakt/internal/processing/scale"
	"github.com/Sergey-Veremeev/CarTesserakt/internal/processing/threshold"
)

// rebinarizeLevel splits the grey edge pixels that area interpolation adds
// when enlarging, so the output stays strictly {0,255}.
const rebinarizeLevel = 127

// Normalizer binarizes the plate with Otsu and enlarges it for the recognizer.
type Normalizer struct {
	chain         *chain.ProcessingChain
	logger        Logger
	timingTracker TimingTracker
}

func NewNormalizer(scalePercent int, memTracker safe.MemoryTracker, log Logger, timingTracker TimingTracker) *Normalizer {
	steps := chain.NewProcessingChain(
		&threshold.OtsuBinarizer{Tracker: memTracker, Logger: log},
		&scale.AreaScaler{Percent: scalePercent, Tracker: memTracker},
		&threshold.FixedBinarizer{Level: rebinarizeLevel, Tracker: memTracker},
	)
	steps.Observe(func(step string, output *safe.Mat) {
		log.Debug("Normalizer", "step completed", map[string]interface{}{
			"step": step,
			"size": fmt.Sprintf("%dx%d", output.Cols(), output.Rows()),
		})
	})

	return &Normalizer{
		chain:         steps,
		logger:        log,
		timingTracker: timingTracker,
	}
}

// Normalize leaves plate owned by the caller and returns a new bitmap.
func (n *Normalizer) Normalize(ctx context.Context, plate *safe.Mat) (*safe.Mat, error) {
	timingCtx := n.timingTracker.StartTiming(StageNormalize)
	defer n.timingTracker.EndTiming(timingCtx)

	if err := safe.ValidateSingleChannel(plate, "Normalize"); err != nil {
		return nil, newNormalizationError(err)
	}

	bitmap, err := n.chain.Execute(ctx, plate)
	if err != nil {
		return nil, newNormalizationError(err)
	}

	n.logger.Info("Normalizer", "plate normalized", map[string]interface{}{
		"steps":       n.chain.GetStepNames(),
		"input_size":  fmt.Sprintf("%dx%d", plate.Cols(), plate.Rows()),
		"output_size": fmt.Sprintf("%dx%d", bitmap.Cols(), bitmap.Rows()),
	})

	return bitmap, nil
}
