package recognition

import (
	"fmt"
	"strings"
	"sync"

	"github.com/otiai10/gosseract/v2"
	"gocv.io/x/gocv"

	"github.com/Sergey-Veremeev/CarTesserakt/internal/logger"
	"github.com/Sergey-Veremeev/CarTesserakt/internal/opencv/safe"
)

// TesseractConfig holds Tesseract configuration
type TesseractConfig struct {
	// TessdataPrefix points at the tessdata directory; empty uses the engine default.
	TessdataPrefix string
	Languages      []string
	PageSegMode    gosseract.PageSegMode
}

// Tesseract recognizes a single line of plate text. The engine runs in its
// default mode (OEM 3, legacy plus LSTM when both are available).
type Tesseract struct {
	client *gosseract.Client
	config TesseractConfig
	logger logger.Logger
	mu     sync.Mutex
	closed bool
}

func NewTesseract(cfg TesseractConfig, log logger.Logger) (*Tesseract, error) {
	if len(cfg.Languages) == 0 {
		cfg.Languages = []string{"eng"}
	}
	if cfg.PageSegMode == 0 {
		cfg.PageSegMode = gosseract.PSM_SINGLE_WORD
	}

	client := gosseract.NewClient()
	if cfg.TessdataPrefix != "" {
		client.SetTessdataPrefix(cfg.TessdataPrefix)
	}
	if err := client.SetLanguage(cfg.Languages...); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to set languages %v: %w", cfg.Languages, err)
	}
	if err := client.SetPageSegMode(cfg.PageSegMode); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to set page segmentation mode: %w", err)
	}

	return &Tesseract{
		client: client,
		config: cfg,
		logger: log,
	}, nil
}

// Recognize runs OCR over bitmap restricted to whitelist.
func (t *Tesseract) Recognize(bitmap *safe.Mat, whitelist string) (string, error) {
	if err := safe.ValidateMatForOperation(bitmap, "Recognize"); err != nil {
		return "", err
	}
	if whitelist == "" {
		return "", fmt.Errorf("empty whitelist")
	}

	encoded, err := encodePNG(bitmap)
	if err != nil {
		return "", err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return "", fmt.Errorf("tesseract client already closed")
	}

	if err := t.client.SetWhitelist(whitelist); err != nil {
		return "", fmt.Errorf("failed to set whitelist: %w", err)
	}
	if err := t.client.SetImageFromBytes(encoded); err != nil {
		return "", fmt.Errorf("failed to set image: %w", err)
	}

	raw, err := t.client.Text()
	if err != nil {
		return "", fmt.Errorf("tesseract OCR failed: %w", err)
	}

	t.logger.Debug("TesseractRecognizer", "engine output", map[string]interface{}{
		"raw":       raw,
		"languages": strings.Join(t.config.Languages, "+"),
		"psm":       int(t.config.PageSegMode),
		"png_bytes": len(encoded),
	})

	return raw, nil
}

func (t *Tesseract) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil
	}
	t.closed = true
	return t.client.Close()
}

func (t *Tesseract) Shutdown() {
	if err := t.Close(); err != nil {
		t.logger.Error("TesseractRecognizer", err, nil)
	}
}

func encodePNG(bitmap *safe.Mat) ([]byte, error) {
	buf, err := gocv.IMEncode(gocv.PNGFileExt, bitmap.GetMat())
	if err != nil {
		return nil, fmt.Errorf("failed to encode bitmap: %w", err)
	}
	defer buf.Close()

	// GetBytes aliases native memory released by Close.
	data := buf.GetBytes()
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}
