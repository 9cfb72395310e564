package pipeline

import (
	"image"

	"github.com/Sergey-Veremeev/CarTesserakt/internal/debug/timing"
)

// OutputLabel prefixes the recognized text on stdout.
const OutputLabel = "Распознанный текст:"

type Result struct {
	RunID          string
	ImagePath      string
	ImageSize      image.Point
	Candidates     []image.Rectangle
	SelectedIndex  int
	Selected       image.Rectangle
	Crop           image.Rectangle
	NormalizedSize image.Point
	RawText        string
	Text           string
	Dropped        int
	Timings        []timing.Stage
}

// Line is what the driver prints for a completed run.
func (r *Result) Line() string {
	return OutputLabel + " " + r.Text
}
