package threshold

import (
	"context"
	"fmt"

	"gocv.io/x/gocv"

	"github.com/Sergey-Veremeev/CarTesserakt/internal/logger"
	"github.com/Sergey-Veremeev/CarTesserakt/internal/opencv/safe"
)

const maxValue = 255

// OtsuBinarizer splits a grayscale image in two at the level that minimizes
// intra-class variance. Output pixels are 0 or 255.
type OtsuBinarizer struct {
	Tracker safe.MemoryTracker
	Logger  logger.Logger
}

func (o *OtsuBinarizer) Name() string {
	return "otsu"
}

func (o *OtsuBinarizer) Apply(ctx context.Context, input *safe.Mat) (*safe.Mat, error) {
	if err := safe.ValidateSingleChannel(input, "OtsuThreshold"); err != nil {
		return nil, err
	}

	dst := gocv.NewMat()
	level := gocv.Threshold(input.GetMat(), &dst, 0, maxValue, gocv.ThresholdBinary|gocv.ThresholdOtsu)

	if o.Logger != nil {
		o.Logger.Debug("OtsuBinarizer", "threshold computed", map[string]interface{}{
			"level": level,
			"size":  fmt.Sprintf("%dx%d", input.Cols(), input.Rows()),
		})
	}

	return safe.Wrap(dst, o.Tracker, "binary")
}

// FixedBinarizer maps pixels above Level to 255 and the rest to 0.
type FixedBinarizer struct {
	Level   float32
	Tracker safe.MemoryTracker
}

func (f *FixedBinarizer) Name() string {
	return "rebinarize"
}

func (f *FixedBinarizer) Apply(ctx context.Context, input *safe.Mat) (*safe.Mat, error) {
	if err := safe.ValidateSingleChannel(input, "FixedThreshold"); err != nil {
		return nil, err
	}

	dst := gocv.NewMat()
	gocv.Threshold(input.GetMat(), &dst, f.Level, maxValue, gocv.ThresholdBinary)

	return safe.Wrap(dst, f.Tracker, "rebinarized")
}
