package pipeline

import (
	"context"
	"errors"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sergey-Veremeev/CarTesserakt/internal/detection"
	"github.com/Sergey-Veremeev/CarTesserakt/internal/logger"
	"github.com/Sergey-Veremeev/CarTesserakt/internal/opencv/memory"
	"github.com/Sergey-Veremeev/CarTesserakt/internal/opencv/safe"
	"github.com/Sergey-Veremeev/CarTesserakt/internal/recognition"
)

type fakeDetector struct {
	rects []image.Rectangle
	err   error
	calls int
	seen  image.Point
	chans int
}

func (f *fakeDetector) Detect(gray *safe.Mat) ([]image.Rectangle, error) {
	f.calls++
	f.seen = gray.Size()
	f.chans = gray.Channels()
	return f.rects, f.err
}

type fakeRecognizer struct {
	text      string
	err       error
	calls     int
	size      image.Point
	whitelist string
	binary    bool
	events    *[]string
}

func (f *fakeRecognizer) Recognize(bitmap *safe.Mat, whitelist string) (string, error) {
	f.calls++
	f.size = bitmap.Size()
	f.whitelist = whitelist
	f.binary = isBinary(bitmap)
	if f.events != nil {
		*f.events = append(*f.events, "recognize")
	}
	return f.text, f.err
}

type fakeViewer struct {
	calls  int
	err    error
	events *[]string
}

func (f *fakeViewer) Show(title string, bitmap *safe.Mat) error {
	f.calls++
	if f.events != nil {
		*f.events = append(*f.events, "show")
	}
	return f.err
}

func isBinary(m *safe.Mat) bool {
	for y := 0; y < m.Rows(); y++ {
		for x := 0; x < m.Cols(); x++ {
			v, err := m.GetUCharAt(y, x)
			if err != nil || (v != 0 && v != 255) {
				return false
			}
		}
	}
	return true
}

// writeCar renders a light 200x120 scene with a dark "plate" band and a few
// lighter glyph blocks inside it.
func writeCar(t *testing.T) string {
	t.Helper()
	scene := imaging.New(200, 120, color.NRGBA{R: 210, G: 200, B: 190, A: 255})
	scene = imaging.Paste(scene, imaging.New(130, 50, color.NRGBA{R: 30, G: 30, B: 30, A: 255}), image.Pt(35, 45))
	for i := 0; i < 5; i++ {
		glyph := imaging.New(10, 20, color.NRGBA{R: 240, G: 240, B: 240, A: 255})
		scene = imaging.Paste(scene, glyph, image.Pt(55+i*20, 60))
	}

	path := filepath.Join(t.TempDir(), "001.png")
	require.NoError(t, imaging.Save(scene, path))
	return path
}

type harness struct {
	detector   *fakeDetector
	recognizer *fakeRecognizer
	viewer     *fakeViewer
	memory     *memory.Manager
	events     []string
	pipeline   *Pipeline
}

func newHarness(t *testing.T, rects []image.Rectangle, text string, mutate func(*Config)) *harness {
	t.Helper()
	h := &harness{
		detector: &fakeDetector{rects: rects},
		memory:   memory.NewManager(logger.NewNop()),
	}
	h.recognizer = &fakeRecognizer{text: text, events: &h.events}
	h.viewer = &fakeViewer{events: &h.events}

	cfg := Config{
		Detector:     h.detector,
		Selector:     detection.IndexSelector{Index: 1},
		Margins:      detection.DefaultMargins,
		ScalePercent: 150,
		Recognizer:   h.recognizer,
		Whitelist:    recognition.DefaultWhitelist,
		Viewer:       h.viewer,
		MemTracker:   h.memory,
		Logger:       logger.NewNop(),
	}
	if mutate != nil {
		mutate(&cfg)
	}

	p, err := New(cfg)
	require.NoError(t, err)
	h.pipeline = p
	return h
}

func requireCode(t *testing.T, err error, want ErrorCode) *StageError {
	t.Helper()
	require.Error(t, err)
	var stageErr *StageError
	require.True(t, errors.As(err, &stageErr), "not a StageError: %v", err)
	require.Equal(t, want, stageErr.Code, stageErr.Error())
	return stageErr
}

func TestRunRecognizesSecondCandidate(t *testing.T) {
	path := writeCar(t)
	rects := []image.Rectangle{
		image.Rect(0, 0, 30, 20),
		image.Rect(33, 40, 167, 100),
	}
	h := newHarness(t, rects, "  AB123CD\n", nil)

	result, err := h.pipeline.Run(context.Background(), path)
	require.NoError(t, err)

	assert.Equal(t, "AB123CD", result.Text)
	assert.Equal(t, "Распознанный текст: AB123CD", result.Line())
	assert.Equal(t, image.Pt(200, 120), result.ImageSize)
	assert.Equal(t, 1, result.SelectedIndex)
	assert.Equal(t, image.Rect(35, 45, 159, 95), result.Crop)
	assert.Equal(t, image.Pt(124*150/100, 50*150/100), result.NormalizedSize)
	assert.NotEmpty(t, result.RunID)

	assert.Equal(t, image.Pt(200, 120), h.detector.seen)
	assert.Equal(t, 1, h.detector.chans)
	assert.Equal(t, 1, h.recognizer.calls)
	assert.Equal(t, result.NormalizedSize, h.recognizer.size)
	assert.Equal(t, recognition.DefaultWhitelist, h.recognizer.whitelist)
	assert.True(t, h.recognizer.binary, "normalized bitmap must be 0/255 only")
	assert.Equal(t, []string{"show", "recognize"}, h.events)

	var ops []string
	for _, stage := range result.Timings {
		ops = append(ops, stage.Operation)
	}
	assert.Equal(t, []string{StageLoad, StageDetect, StageNormalize, StagePreview, StageRecognize}, ops)

	assert.Empty(t, h.memory.Leaks())
}

func TestRunFiltersOutputToWhitelist(t *testing.T) {
	path := writeCar(t)
	rects := []image.Rectangle{image.Rect(0, 0, 30, 20), image.Rect(33, 40, 167, 100)}
	h := newHarness(t, rects, "А 123 ВС|", nil)

	result, err := h.pipeline.Run(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "А123ВС", result.Text)
	assert.Equal(t, 3, result.Dropped)
	assert.True(t, recognition.Contains(result.Text, recognition.DefaultWhitelist))
}

func TestRunMissingImage(t *testing.T) {
	h := newHarness(t, nil, "X", nil)
	missing := filepath.Join(t.TempDir(), "001.jpg")

	_, err := h.pipeline.Run(context.Background(), missing)
	stageErr := requireCode(t, err, ErrorImageLoad)

	assert.ErrorIs(t, err, ErrImageNotFound)
	assert.Contains(t, stageErr.Message, missing)
	assert.Zero(t, h.detector.calls)
	assert.Zero(t, h.viewer.calls)
	assert.Zero(t, h.recognizer.calls)
}

func TestRunUndecodableImage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.jpg")
	require.NoError(t, os.WriteFile(path, []byte("not an image"), 0o600))
	h := newHarness(t, nil, "X", nil)

	_, err := h.pipeline.Run(context.Background(), path)
	requireCode(t, err, ErrorImageLoad)
	assert.ErrorIs(t, err, ErrImageNotFound)
	assert.Zero(t, h.recognizer.calls)
	assert.Empty(t, h.memory.Leaks())
}

func TestRunClassifierLoadFailure(t *testing.T) {
	h := newHarness(t, nil, "X", nil)
	h.detector.err = &detection.LoadError{Path: "plates.xml", Err: os.ErrNotExist}

	_, err := h.pipeline.Run(context.Background(), writeCar(t))
	stageErr := requireCode(t, err, ErrorClassifierLoad)

	assert.Equal(t, "Не удалось загрузить каскад: plates.xml", stageErr.Message)
	assert.ErrorIs(t, err, detection.ErrClassifierLoad)
	assert.Zero(t, h.recognizer.calls)
}

func TestRunMissingImageReportedBeforeClassifier(t *testing.T) {
	h := newHarness(t, nil, "X", nil)
	h.detector.err = &detection.LoadError{Path: "plates.xml"}

	_, err := h.pipeline.Run(context.Background(), filepath.Join(t.TempDir(), "001.jpg"))
	requireCode(t, err, ErrorImageLoad)
	assert.Zero(t, h.detector.calls)
}

func TestRunNoDetections(t *testing.T) {
	h := newHarness(t, nil, "X", nil)

	_, err := h.pipeline.Run(context.Background(), writeCar(t))
	stageErr := requireCode(t, err, ErrorNoPlateFound)

	assert.Equal(t, "Номерной знак не обнаружен.", stageErr.Message)
	assert.Zero(t, h.viewer.calls)
	assert.Zero(t, h.recognizer.calls)
	assert.Empty(t, h.memory.Leaks())
}

func TestRunSingleDetectionFailsExplicitly(t *testing.T) {
	h := newHarness(t, []image.Rectangle{image.Rect(33, 40, 167, 100)}, "X", nil)

	_, err := h.pipeline.Run(context.Background(), writeCar(t))
	requireCode(t, err, ErrorInsufficientCandidates)
	assert.ErrorIs(t, err, detection.ErrInsufficientCandidates)
	assert.Zero(t, h.recognizer.calls)
}

func TestRunLargestSelectorAcceptsSingleDetection(t *testing.T) {
	h := newHarness(t, []image.Rectangle{image.Rect(33, 40, 167, 100)}, "AB123CD", func(c *Config) {
		c.Selector = detection.LargestAreaSelector{}
	})

	result, err := h.pipeline.Run(context.Background(), writeCar(t))
	require.NoError(t, err)
	assert.Equal(t, 0, result.SelectedIndex)
	assert.Equal(t, "AB123CD", result.Text)
}

func TestRunCropSmallerThanMargins(t *testing.T) {
	rects := []image.Rectangle{image.Rect(0, 0, 30, 20), image.Rect(50, 50, 58, 80)}
	h := newHarness(t, rects, "X", nil)

	_, err := h.pipeline.Run(context.Background(), writeCar(t))
	requireCode(t, err, ErrorInvalidCrop)
	assert.Zero(t, h.recognizer.calls)
	assert.Empty(t, h.memory.Leaks())
}

func TestRunDetectorFailure(t *testing.T) {
	h := newHarness(t, nil, "X", nil)
	h.detector.err = errors.New("classifier exploded")

	_, err := h.pipeline.Run(context.Background(), writeCar(t))
	requireCode(t, err, ErrorDetectionFailed)
	assert.Zero(t, h.recognizer.calls)
}

func TestRunRecognizerFailure(t *testing.T) {
	rects := []image.Rectangle{image.Rect(0, 0, 30, 20), image.Rect(33, 40, 167, 100)}
	h := newHarness(t, rects, "", nil)
	h.recognizer.err = errors.New("tessdata missing")

	result, err := h.pipeline.Run(context.Background(), writeCar(t))
	requireCode(t, err, ErrorRecognitionFailed)
	assert.Nil(t, result)
	assert.Empty(t, h.memory.Leaks())
}

func TestRunPreviewFailureDoesNotStopRecognition(t *testing.T) {
	rects := []image.Rectangle{image.Rect(0, 0, 30, 20), image.Rect(33, 40, 167, 100)}
	h := newHarness(t, rects, "AB123CD", nil)
	h.viewer.err = errors.New("no display")

	result, err := h.pipeline.Run(context.Background(), writeCar(t))
	require.NoError(t, err)
	assert.Equal(t, "AB123CD", result.Text)
}

func TestRunCancelled(t *testing.T) {
	h := newHarness(t, nil, "X", nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := h.pipeline.Run(ctx, writeCar(t))
	requireCode(t, err, ErrorCancelled)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, h.detector.calls)
}

func TestRunDumpsBitmap(t *testing.T) {
	dump := filepath.Join(t.TempDir(), "plate.png")
	rects := []image.Rectangle{image.Rect(0, 0, 30, 20), image.Rect(33, 40, 167, 100)}
	h := newHarness(t, rects, "AB123CD", func(c *Config) {
		c.DumpPath = dump
		c.Viewer = nil
	})

	result, err := h.pipeline.Run(context.Background(), writeCar(t))
	require.NoError(t, err)

	img, err := imaging.Open(dump)
	require.NoError(t, err)
	assert.Equal(t, result.NormalizedSize, img.Bounds().Size())
}

func TestLoaderKeepsDimensions(t *testing.T) {
	loader := NewLoader(nil, logger.NewNop(), noopTiming{})

	img, err := loader.Load(context.Background(), writeCar(t))
	require.NoError(t, err)
	defer img.Close()

	assert.Equal(t, 200, img.Width)
	assert.Equal(t, 120, img.Height)
	assert.Equal(t, 1, img.Channels)
	assert.Equal(t, 3, img.SourceChannels)
	assert.Equal(t, image.Pt(200, 120), img.Mat.Size())
}

func TestNewRequiresBackends(t *testing.T) {
	_, err := New(Config{Recognizer: &fakeRecognizer{}, Logger: logger.NewNop()})
	assert.Error(t, err)
	_, err = New(Config{Detector: &fakeDetector{}, Logger: logger.NewNop()})
	assert.Error(t, err)
	_, err = New(Config{Detector: &fakeDetector{}, Recognizer: &fakeRecognizer{}})
	assert.Error(t, err)
	_, err = New(Config{Detector: &fakeDetector{}, Recognizer: &fakeRecognizer{}, Logger: logger.NewNop(),
		Margins: detection.Margins{Top: -1}})
	assert.Error(t, err)
}

func TestStageErrorHelpers(t *testing.T) {
	err := NewClassifierLoadError("plates.xml", detection.ErrClassifierLoad)
	code, ok := CodeOf(err)
	assert.True(t, ok)
	assert.Equal(t, ErrorClassifierLoad, code)
	assert.Equal(t, "Не удалось загрузить каскад: plates.xml", err.Message)
	assert.ErrorIs(t, err, detection.ErrClassifierLoad)
	assert.Equal(t, "plates.xml", err.ToMap()["cascade"])

	_, ok = CodeOf(errors.New("plain"))
	assert.False(t, ok)

	wrapped := asStageError(errors.New("odd"), StageNormalize)
	assert.Equal(t, ErrorNormalizationFailed, wrapped.Code)
}
