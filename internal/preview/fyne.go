package preview

import (
	"fmt"
	"sync"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/canvas"

	"github.com/Sergey-Veremeev/CarTesserakt/internal/opencv/safe"
)

// Window shows the bitmap in a Fyne window and blocks until it is closed.
// Fyne allows one event loop per process, so a Window can be shown once.
type Window struct {
	appID string
	once  sync.Once
}

func NewWindow(appID string) *Window {
	return &Window{appID: appID}
}

func (w *Window) Show(title string, bitmap *safe.Mat) error {
	if err := safe.ValidateMatForOperation(bitmap, "Preview"); err != nil {
		return err
	}

	img, err := bitmap.ToImage()
	if err != nil {
		return err
	}

	shown := false
	w.once.Do(func() {
		shown = true
		a := app.NewWithID(w.appID)
		win := a.NewWindow(title)

		picture := canvas.NewImageFromImage(img)
		picture.FillMode = canvas.ImageFillContain
		picture.ScaleMode = canvas.ImageScalePixels
		bounds := img.Bounds()
		picture.SetMinSize(fyne.NewSize(float32(bounds.Dx()), float32(bounds.Dy())))

		win.SetContent(picture)
		win.CenterOnScreen()
		win.ShowAndRun()
	})

	if !shown {
		return fmt.Errorf("preview window already used in this process")
	}
	return nil
}
