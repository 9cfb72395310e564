package pipeline

import (
	"image"

	"github.com/Sergey-Veremeev/CarTesserakt/internal/opencv/safe"
)

// Detector finds plate-like rectangles in a grayscale image, in scan order.
type Detector interface {
	Detect(gray *safe.Mat) ([]image.Rectangle, error)
}

// Recognizer reads text from a binary bitmap, restricted to whitelist.
type Recognizer interface {
	Recognize(bitmap *safe.Mat, whitelist string) (string, error)
}

// Viewer displays the normalized bitmap. It is a side channel only.
type Viewer interface {
	Show(title string, bitmap *safe.Mat) error
}

// ImageData is the grayscale buffer produced by the loader.
type ImageData struct {
	Mat            *safe.Mat
	Path           string
	Width          int
	Height         int
	Channels       int
	SourceChannels int
}

func (d *ImageData) Bounds() image.Rectangle {
	return image.Rect(0, 0, d.Width, d.Height)
}

func (d *ImageData) Close() {
	if d != nil && d.Mat != nil {
		d.Mat.Close()
	}
}

// Plate is the cropped region chosen by the extractor.
type Plate struct {
	Mat           *safe.Mat
	Candidates    []image.Rectangle
	SelectedIndex int
	Selected      image.Rectangle
	Crop          image.Rectangle
}

func (p *Plate) Close() {
	if p != nil && p.Mat != nil {
		p.Mat.Close()
	}
}
