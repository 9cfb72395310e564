// Package preview puts the normalized plate in front of a human before it is
// sent to the recognizer. Nothing it does feeds back into recognition.
package preview

import (
	"fmt"
	"strings"

	"github.com/Sergey-Veremeev/CarTesserakt/internal/opencv/safe"
)

const (
	BackendFyne    = "fyne"
	BackendHighGUI = "highgui"
	BackendNone    = "none"
)

// Viewer displays a bitmap and returns once the user is done with it.
type Viewer interface {
	Show(title string, bitmap *safe.Mat) error
}

// Disabled is the headless viewer.
type Disabled struct{}

func (Disabled) Show(string, *safe.Mat) error {
	return nil
}

// New picks a viewer backend by name.
func New(backend, appID string) (Viewer, error) {
	switch strings.ToLower(backend) {
	case BackendFyne, "":
		return NewWindow(appID), nil
	case BackendHighGUI:
		return &HighGUI{}, nil
	case BackendNone:
		return Disabled{}, nil
	default:
		return nil, fmt.Errorf("unknown viewer backend %q", backend)
	}
}
