package detection

import (
	"fmt"
	"image"
)

// Margins trim border pixels that the plate cascade tends to include.
type Margins struct {
	Top    int
	Bottom int
	Left   int
	Right  int
}

var DefaultMargins = Margins{Top: 5, Bottom: 5, Left: 2, Right: 8}

func (m Margins) Validate() error {
	if m.Top < 0 || m.Bottom < 0 || m.Left < 0 || m.Right < 0 {
		return fmt.Errorf("margins must not be negative: %+v", m)
	}
	return nil
}

// Apply shrinks rect. The result is not canonicalized, so a rectangle smaller
// than the margins comes back empty rather than flipped.
func (m Margins) Apply(rect image.Rectangle) image.Rectangle {
	return image.Rectangle{
		Min: image.Pt(rect.Min.X+m.Left, rect.Min.Y+m.Top),
		Max: image.Pt(rect.Max.X-m.Right, rect.Max.Y-m.Bottom),
	}
}

// CropRegion applies the margins and clips to bounds.
func (m Margins) CropRegion(rect, bounds image.Rectangle) (image.Rectangle, error) {
	shrunk := m.Apply(rect)
	if shrunk.Empty() {
		return image.Rectangle{}, fmt.Errorf("%w: %v minus margins %+v is empty", ErrInvalidCrop, rect, m)
	}

	clipped := shrunk.Intersect(bounds)
	if clipped.Empty() {
		return image.Rectangle{}, fmt.Errorf("%w: %v lies outside image %v", ErrInvalidCrop, shrunk, bounds)
	}
	return clipped, nil
}
