package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"runtime"

	"github.com/Sergey-Veremeev/CarTesserakt/internal/config"
	"github.com/Sergey-Veremeev/CarTesserakt/internal/detection"
	"github.com/Sergey-Veremeev/CarTesserakt/internal/logger"
	"github.com/Sergey-Veremeev/CarTesserakt/internal/opencv/memory"
	"github.com/Sergey-Veremeev/CarTesserakt/internal/pipeline"
	"github.com/Sergey-Veremeev/CarTesserakt/internal/preview"
	"github.com/Sergey-Veremeev/CarTesserakt/internal/recognition"
	"github.com/Sergey-Veremeev/CarTesserakt/internal/shutdown"
)

const (
	AppName    = "CarTesserakt"
	AppID      = "com.sergeyveremeev.cartesserakt"
	AppVersion = "1.0.0"
)

const (
	exitOK       = 0
	exitInternal = 1
	exitUsage    = 2
)

// Application holds the backends for a single recognition run.
type Application struct {
	config        *config.Config
	logger        *logger.ZerologAdapter
	shutdown      *shutdown.Manager
	memoryManager *memory.Manager
	pipeline      *pipeline.Pipeline
	stdout        io.Writer
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	cfg, err := config.Load(args, stderr)
	if errors.Is(err, flag.ErrHelp) {
		return exitOK
	}
	if err != nil {
		fmt.Fprintf(stderr, "%s: %v\n", AppName, err)
		return exitUsage
	}

	appLogger, err := logger.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		fmt.Fprintf(stderr, "%s: %v\n", AppName, err)
		return exitUsage
	}

	application, err := NewApplication(cfg, appLogger, stdout)
	if err != nil {
		appLogger.Error("Application", err, nil)
		return exitInternal
	}
	defer application.shutdown.Shutdown()

	application.shutdown.Listen()

	return application.Run(application.shutdown.Context())
}

// NewApplication builds the backends and registers them for release. The
// cascade is read on first use so a bad image is reported before a bad model.
func NewApplication(cfg *config.Config, appLogger *logger.ZerologAdapter, stdout io.Writer) (*Application, error) {
	appLogger.Info("Application", "starting", map[string]interface{}{
		"version":    AppVersion,
		"go_version": runtime.Version(),
		"image":      cfg.ImagePath,
		"cascade":    cfg.CascadePath,
		"languages":  cfg.Languages,
		"selection":  cfg.Selector().Name(),
		"preview":    cfg.PreviewBackend(),
	})

	shutdownManager := shutdown.NewManager(appLogger)
	memManager := memory.NewManager(appLogger)
	shutdownManager.Register("memory", memManager)

	cascade := detection.NewCascade(detection.CascadeConfig{
		Path:         cfg.CascadePath,
		ScaleFactor:  cfg.ScaleFactor,
		MinNeighbors: cfg.MinNeighbors,
	}, appLogger)
	shutdownManager.Register("cascade", cascade)

	tesseract, err := recognition.NewTesseract(recognition.TesseractConfig{
		TessdataPrefix: cfg.TessdataPrefix,
		Languages:      cfg.Languages,
	}, appLogger)
	if err != nil {
		shutdownManager.Shutdown()
		return nil, fmt.Errorf("recognizer initialization failed: %w", err)
	}
	shutdownManager.Register("tesseract", tesseract)

	viewer, err := preview.New(cfg.PreviewBackend(), AppID)
	if err != nil {
		shutdownManager.Shutdown()
		return nil, err
	}

	plates, err := pipeline.New(pipeline.Config{
		Detector:     cascade,
		Selector:     cfg.Selector(),
		Margins:      cfg.Margins,
		ScalePercent: cfg.ScalePercent,
		Recognizer:   tesseract,
		Whitelist:    cfg.Whitelist,
		Viewer:       viewer,
		DumpPath:     cfg.DumpPath,
		MemTracker:   memManager,
		Logger:       appLogger,
	})
	if err != nil {
		shutdownManager.Shutdown()
		return nil, fmt.Errorf("pipeline initialization failed: %w", err)
	}

	return &Application{
		config:        cfg,
		logger:        appLogger,
		shutdown:      shutdownManager,
		memoryManager: memManager,
		pipeline:      plates,
		stdout:        stdout,
	}, nil
}

// Run processes the configured image and prints the outcome. A stage failure
// is a normal end of the run and still exits cleanly.
func (a *Application) Run(ctx context.Context) int {
	result, err := a.pipeline.Run(ctx, a.config.ImagePath)
	if err != nil {
		var stageErr *pipeline.StageError
		if !errors.As(err, &stageErr) {
			a.logger.Error("Application", err, nil)
			return exitInternal
		}
		fmt.Fprintln(a.stdout, stageErr.Message)
		return exitOK
	}

	fmt.Fprintln(a.stdout, result.Line())

	stats := a.memoryManager.GetStats()
	a.logger.Debug("Application", "run finished", map[string]interface{}{
		"run_id":       result.RunID,
		"mats_peak":    stats.PeakMats,
		"mats_active":  stats.ActiveMats,
		"text_dropped": result.Dropped,
	})
	return exitOK
}
