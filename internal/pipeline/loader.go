package pipeline

import (
	"context"
	"fmt"
	"os"

	"gocv.io/x/gocv"

	"github.com/Sergey-Veremeev/CarTesserakt/internal/opencv/safe"
	"github.com/Sergey-Veremeev/CarTesserakt/internal/processing/filters"
)

// Loader decodes an image file into a single-channel intensity buffer.
type Loader struct {
	memTracker    safe.MemoryTracker
	logger        Logger
	timingTracker TimingTracker
	grayscale     *filters.GrayscaleConverter
}

func NewLoader(memTracker safe.MemoryTracker, log Logger, timingTracker TimingTracker) *Loader {
	return &Loader{
		memTracker:    memTracker,
		logger:        log,
		timingTracker: timingTracker,
		grayscale:     &filters.GrayscaleConverter{Tracker: memTracker},
	}
}

// Load never returns a partial buffer: on failure the result is nil.
func (l *Loader) Load(ctx context.Context, path string) (*ImageData, error) {
	timingCtx := l.timingTracker.StartTiming(StageLoad)
	defer l.timingTracker.EndTiming(timingCtx)

	info, err := os.Stat(path)
	if err != nil {
		return nil, NewImageLoadError(path, err)
	}
	if info.IsDir() {
		return nil, NewImageLoadError(path, fmt.Errorf("%s is a directory", path))
	}

	l.logger.Debug("ImageLoader", "loading image", map[string]interface{}{
		"path":       path,
		"size_bytes": info.Size(),
	})

	decoded := gocv.IMRead(path, gocv.IMReadColor)
	source, err := safe.Wrap(decoded, l.memTracker, "decoded")
	if err != nil {
		return nil, NewImageLoadError(path, fmt.Errorf("failed to decode image with OpenCV: %w", err))
	}
	defer source.Close()

	gray, err := l.grayscale.Apply(ctx, source)
	if err != nil {
		return nil, NewImageLoadError(path, err)
	}

	imageData := &ImageData{
		Mat:            gray,
		Path:           path,
		Width:          gray.Cols(),
		Height:         gray.Rows(),
		Channels:       gray.Channels(),
		SourceChannels: source.Channels(),
	}

	l.logger.Info("ImageLoader", "image loaded successfully", map[string]interface{}{
		"path":            path,
		"width":           imageData.Width,
		"height":          imageData.Height,
		"source_channels": imageData.SourceChannels,
	})

	return imageData, nil
}
