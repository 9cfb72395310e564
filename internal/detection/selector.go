package detection

import (
	"fmt"
	"image"
)

// Selector picks one rectangle out of the detector output and returns its index.
type Selector interface {
	Select(candidates []image.Rectangle) (int, error)
	Name() string
}

// IndexSelector takes the candidate at a fixed position in scan order. Index 1
// reproduces the historical behaviour of reading the second detection.
type IndexSelector struct {
	Index int
}

func (s IndexSelector) Name() string {
	return fmt.Sprintf("index:%d", s.Index)
}

func (s IndexSelector) Select(candidates []image.Rectangle) (int, error) {
	if len(candidates) == 0 {
		return -1, ErrNoCandidates
	}
	if s.Index < 0 || s.Index >= len(candidates) {
		return -1, fmt.Errorf("%w: index %d requested, %d found", ErrInsufficientCandidates, s.Index, len(candidates))
	}
	return s.Index, nil
}

// LargestAreaSelector prefers the biggest rectangle; ties keep scan order.
type LargestAreaSelector struct{}

func (LargestAreaSelector) Name() string {
	return "largest"
}

func (LargestAreaSelector) Select(candidates []image.Rectangle) (int, error) {
	if len(candidates) == 0 {
		return -1, ErrNoCandidates
	}

	best := 0
	for i := 1; i < len(candidates); i++ {
		if Area(candidates[i]) > Area(candidates[best]) {
			best = i
		}
	}
	return best, nil
}

func Area(r image.Rectangle) int {
	if r.Empty() {
		return 0
	}
	return r.Dx() * r.Dy()
}
