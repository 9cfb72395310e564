package scale

import (
	"context"
	"fmt"
	"image"

	"gocv.io/x/gocv"

	"github.com/Sergey-Veremeev/CarTesserakt/internal/opencv/safe"
)

// AreaScaler resizes by a whole percentage using area interpolation.
type AreaScaler struct {
	Percent int
	Tracker safe.MemoryTracker
}

// TargetSize truncates each axis, matching int(w * percent / 100).
func TargetSize(size image.Point, percent int) image.Point {
	return image.Pt(size.X*percent/100, size.Y*percent/100)
}

func (a *AreaScaler) Name() string {
	return "scale"
}

func (a *AreaScaler) Apply(ctx context.Context, input *safe.Mat) (*safe.Mat, error) {
	if err := safe.ValidateMatForOperation(input, "Resize"); err != nil {
		return nil, err
	}

	target := TargetSize(input.Size(), a.Percent)
	if err := safe.ValidateDimensions(target.X, target.Y, "Resize"); err != nil {
		return nil, fmt.Errorf("scaling %dx%d by %d%%: %w", input.Cols(), input.Rows(), a.Percent, err)
	}

	dst := gocv.NewMat()
	gocv.Resize(input.GetMat(), &dst, target, 0, 0, gocv.InterpolationArea)

	return safe.Wrap(dst, a.Tracker, "scaled")
}
