package detection

import (
	"errors"
	"fmt"
)

var (
	// ErrClassifierLoad is returned when the cascade definition is missing or malformed.
	ErrClassifierLoad = errors.New("classifier load failed")
	// ErrNoCandidates means the detector produced zero rectangles.
	ErrNoCandidates = errors.New("no candidates detected")
	// ErrInsufficientCandidates means the selector needed more rectangles than were found.
	ErrInsufficientCandidates = errors.New("insufficient candidates")
	// ErrInvalidCrop means the margins left nothing to crop.
	ErrInvalidCrop = errors.New("invalid crop region")
)

// LoadError reports which cascade definition could not be loaded. It matches
// ErrClassifierLoad with errors.Is.
type LoadError struct {
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%v: %s: %v", ErrClassifierLoad, e.Path, e.Err)
	}
	return fmt.Sprintf("%v: %s", ErrClassifierLoad, e.Path)
}

func (e *LoadError) Is(target error) bool {
	return target == ErrClassifierLoad
}

func (e *LoadError) Unwrap() error {
	return e.Err
}
