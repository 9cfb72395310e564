package preview

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/disintegration/imaging"

	"github.com/Sergey-Veremeev/CarTesserakt/internal/opencv/safe"
)

// Dump writes bitmap to path; the format follows the file extension.
func Dump(path string, bitmap *safe.Mat) error {
	if err := safe.ValidateMatForOperation(bitmap, "Dump"); err != nil {
		return err
	}

	img, err := bitmap.ToImage()
	if err != nil {
		return err
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create dump directory: %w", err)
		}
	}

	if err := imaging.Save(img, path); err != nil {
		return fmt.Errorf("failed to save %s: %w", path, err)
	}
	return nil
}
