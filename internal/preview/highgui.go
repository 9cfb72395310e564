package preview

import (
	"gocv.io/x/gocv"

	"github.com/Sergey-Veremeev/CarTesserakt/internal/opencv/safe"
)

// HighGUI uses OpenCV's own window and waits for a key press.
type HighGUI struct{}

func (h *HighGUI) Show(title string, bitmap *safe.Mat) error {
	if err := safe.ValidateMatForOperation(bitmap, "Preview"); err != nil {
		return err
	}

	window := gocv.NewWindow(title)
	defer window.Close()

	window.IMShow(bitmap.GetMat())
	window.WaitKey(0)
	return nil
}
