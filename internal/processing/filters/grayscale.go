package filters

import (
	"context"
	"fmt"

	"gocv.io/x/gocv"

	"github.com/Sergey-Veremeev/CarTesserakt/internal/opencv/safe"
)

// GrayscaleConverter collapses a decoded BGR or BGRA image to one intensity channel.
type GrayscaleConverter struct {
	Tracker safe.MemoryTracker
}

func (g *GrayscaleConverter) Name() string {
	return "grayscale"
}

func (g *GrayscaleConverter) Apply(ctx context.Context, input *safe.Mat) (*safe.Mat, error) {
	if err := safe.ValidateMatForOperation(input, "CvtColor"); err != nil {
		return nil, err
	}

	if input.Channels() == 1 {
		return input.Crop(input.Bounds(), "gray")
	}

	dst := gocv.NewMat()
	src := input.GetMat()

	switch input.Channels() {
	case 3:
		gocv.CvtColor(src, &dst, gocv.ColorBGRToGray)
	case 4:
		gocv.CvtColor(src, &dst, gocv.ColorBGRAToGray)
	default:
		dst.Close()
		return nil, fmt.Errorf("unsupported channel count for grayscale conversion: %d", input.Channels())
	}

	return safe.Wrap(dst, g.Tracker, "gray")
}
