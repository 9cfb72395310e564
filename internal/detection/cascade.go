package detection

import (
	"errors"
	"fmt"
	"image"
	"os"
	"sync"

	"gocv.io/x/gocv"

	"github.com/Sergey-Veremeev/CarTesserakt/internal/logger"
	"github.com/Sergey-Veremeev/CarTesserakt/internal/opencv/safe"
)

const (
	DefaultScaleFactor  = 1.1
	DefaultMinNeighbors = 5
)

type CascadeConfig struct {
	Path         string
	ScaleFactor  float64
	MinNeighbors int
}

// Cascade runs a pretrained Haar cascade over a grayscale image. The
// definition is read on first use, so a run that fails earlier never touches it.
type Cascade struct {
	classifier gocv.CascadeClassifier
	config     CascadeConfig
	logger     logger.Logger
	mu         sync.Mutex
	loaded     bool
	loadErr    error
	closed     bool
}

func NewCascade(cfg CascadeConfig, log logger.Logger) *Cascade {
	if cfg.ScaleFactor <= 1.0 {
		cfg.ScaleFactor = DefaultScaleFactor
	}
	if cfg.MinNeighbors < 0 {
		cfg.MinNeighbors = DefaultMinNeighbors
	}

	return &Cascade{
		config: cfg,
		logger: log,
	}
}

func (c *Cascade) Path() string {
	return c.config.Path
}

// Load reads the cascade definition. Repeated calls return the first outcome.
func (c *Cascade) Load() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.loadLocked()
}

func (c *Cascade) loadLocked() error {
	if c.closed {
		return fmt.Errorf("cascade %s already closed", c.config.Path)
	}
	if c.loaded || c.loadErr != nil {
		return c.loadErr
	}

	// OpenCV only reports a boolean, so check the file first to keep the cause.
	info, err := os.Stat(c.config.Path)
	switch {
	case err != nil:
		c.loadErr = &LoadError{Path: c.config.Path, Err: err}
		return c.loadErr
	case info.IsDir():
		c.loadErr = &LoadError{Path: c.config.Path, Err: errors.New("is a directory")}
		return c.loadErr
	}

	classifier := gocv.NewCascadeClassifier()
	if !classifier.Load(c.config.Path) {
		classifier.Close()
		c.loadErr = &LoadError{Path: c.config.Path}
		return c.loadErr
	}

	c.classifier = classifier
	c.loaded = true

	c.logger.Debug("CascadeDetector", "classifier loaded", map[string]interface{}{
		"path":          c.config.Path,
		"scale_factor":  c.config.ScaleFactor,
		"min_neighbors": c.config.MinNeighbors,
	})
	return nil
}

// Detect returns candidate rectangles in the classifier's enumeration order.
func (c *Cascade) Detect(gray *safe.Mat) ([]image.Rectangle, error) {
	if err := safe.ValidateSingleChannel(gray, "DetectMultiScale"); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.loadLocked(); err != nil {
		return nil, err
	}

	rects := c.classifier.DetectMultiScaleWithParams(
		gray.GetMat(),
		c.config.ScaleFactor,
		c.config.MinNeighbors,
		0,
		image.Point{},
		image.Point{},
	)

	c.logger.Debug("CascadeDetector", "detection finished", map[string]interface{}{
		"candidates": len(rects),
		"rects":      rects,
	})

	return rects, nil
}

func (c *Cascade) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	if !c.loaded {
		return nil
	}
	return c.classifier.Close()
}

// Shutdown lets the shutdown manager release the classifier.
func (c *Cascade) Shutdown() {
	if err := c.Close(); err != nil {
		c.logger.Error("CascadeDetector", err, map[string]interface{}{"path": c.config.Path})
	}
}
