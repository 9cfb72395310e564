// Package config resolves run settings from defaults, an optional .env file,
// PLATE_* environment variables and command-line flags, in increasing order of
// precedence.
package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"github.com/Sergey-Veremeev/CarTesserakt/internal/detection"
	"github.com/Sergey-Veremeev/CarTesserakt/internal/logger"
	"github.com/Sergey-Veremeev/CarTesserakt/internal/preview"
	"github.com/Sergey-Veremeev/CarTesserakt/internal/recognition"
)

const (
	SelectIndex   = "index"
	SelectLargest = "largest"
)

type Config struct {
	// Input image and detector model
	ImagePath   string
	CascadePath string

	// Detection
	ScaleFactor    float64
	MinNeighbors   int
	Selection      string
	CandidateIndex int
	Margins        detection.Margins

	// Normalization
	ScalePercent int

	// Recognition engine
	TessdataPrefix string
	Languages      []string
	Whitelist      string

	// Side channels
	ShowPreview bool
	Viewer      string
	DumpPath    string

	LogLevel  string
	LogFormat string

	EnvFile string
}

func Default() *Config {
	return &Config{
		ImagePath:      "001.jpg",
		CascadePath:    "haarcascade_russian_plate_number.xml",
		ScaleFactor:    detection.DefaultScaleFactor,
		MinNeighbors:   detection.DefaultMinNeighbors,
		Selection:      SelectIndex,
		CandidateIndex: 1,
		Margins:        detection.DefaultMargins,
		ScalePercent:   150,
		Languages:      []string{"rus", "eng"},
		Whitelist:      recognition.DefaultWhitelist,
		ShowPreview:    true,
		Viewer:         preview.BackendFyne,
		LogLevel:       "info",
		LogFormat:      string(logger.FormatConsole),
		EnvFile:        ".env",
	}
}

// Load reads configuration for the process.
func Load(args []string, output io.Writer) (*Config, error) {
	return LoadWithLookup(args, output, os.LookupEnv)
}

// LoadWithLookup is Load with an injectable environment.
func LoadWithLookup(args []string, output io.Writer, lookup func(string) (string, bool)) (*Config, error) {
	cfg := Default()
	if v, ok := lookup("PLATE_ENV_FILE"); ok {
		cfg.EnvFile = v
	}

	fs := flag.NewFlagSet("plate-reader", flag.ContinueOnError)
	fs.SetOutput(output)
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: plate-reader [options] [image]\n")
		fs.PrintDefaults()
	}
	bindings := cfg.bind(fs)

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	visited := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { visited[f.Name] = true })

	source, err := newSource(cfg.EnvFile, visited["env"], lookup)
	if err != nil {
		return nil, err
	}

	for _, b := range bindings {
		if visited[b.flag] {
			continue
		}
		value, ok := source.get(b.env)
		if !ok {
			continue
		}
		if err := b.apply(value); err != nil {
			return nil, fmt.Errorf("%s: %w", b.env, err)
		}
	}

	if fs.NArg() > 1 {
		return nil, fmt.Errorf("expected at most one image argument, got %d", fs.NArg())
	}
	if fs.NArg() == 1 && !visited["image"] {
		cfg.ImagePath = fs.Arg(0)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks if configuration is valid
func (c *Config) Validate() error {
	if strings.TrimSpace(c.ImagePath) == "" {
		return fmt.Errorf("image path is required")
	}

	if strings.TrimSpace(c.CascadePath) == "" {
		return fmt.Errorf("cascade path is required")
	}

	if c.ScaleFactor <= 1.0 {
		return fmt.Errorf("scale factor must be greater than 1, got %g", c.ScaleFactor)
	}

	if c.MinNeighbors < 0 {
		return fmt.Errorf("min neighbors must not be negative, got %d", c.MinNeighbors)
	}

	if err := c.Margins.Validate(); err != nil {
		return err
	}

	switch c.Selection {
	case SelectIndex:
		if c.CandidateIndex < 0 {
			return fmt.Errorf("candidate index must not be negative, got %d", c.CandidateIndex)
		}
	case SelectLargest:
	default:
		return fmt.Errorf("unknown selection strategy %q", c.Selection)
	}

	if c.ScalePercent <= 0 || c.ScalePercent > 1000 {
		return fmt.Errorf("scale percent must be between 1 and 1000, got %d", c.ScalePercent)
	}

	if c.Whitelist == "" {
		return fmt.Errorf("whitelist must not be empty")
	}

	if len(c.Languages) == 0 {
		return fmt.Errorf("at least one OCR language is required")
	}

	switch strings.ToLower(c.Viewer) {
	case preview.BackendFyne, preview.BackendHighGUI, preview.BackendNone:
	default:
		return fmt.Errorf("unknown viewer backend %q", c.Viewer)
	}

	if _, err := logger.ParseLevel(c.LogLevel); err != nil {
		return err
	}

	if _, err := logger.ParseFormat(c.LogFormat); err != nil {
		return err
	}

	return nil
}

// PreviewBackend resolves the viewer, folding show=false into "none".
func (c *Config) PreviewBackend() string {
	if !c.ShowPreview {
		return preview.BackendNone
	}
	return strings.ToLower(c.Viewer)
}

// Selector builds the candidate selection strategy.
func (c *Config) Selector() detection.Selector {
	if c.Selection == SelectLargest {
		return detection.LargestAreaSelector{}
	}
	return detection.IndexSelector{Index: c.CandidateIndex}
}

type binding struct {
	flag  string
	env   string
	apply func(string) error
}

func (c *Config) bind(fs *flag.FlagSet) []binding {
	fs.StringVar(&c.ImagePath, "image", c.ImagePath, "image to read the plate from")
	fs.StringVar(&c.CascadePath, "cascade", c.CascadePath, "Haar cascade definition")
	fs.Float64Var(&c.ScaleFactor, "scale-factor", c.ScaleFactor, "detector scale step between pyramid levels")
	fs.IntVar(&c.MinNeighbors, "min-neighbors", c.MinNeighbors, "detector neighbour threshold")
	fs.StringVar(&c.Selection, "select", c.Selection, "candidate selection: index or largest")
	fs.IntVar(&c.CandidateIndex, "index", c.CandidateIndex, "candidate index for -select=index")
	fs.IntVar(&c.Margins.Top, "margin-top", c.Margins.Top, "pixels trimmed from the top of the detection")
	fs.IntVar(&c.Margins.Bottom, "margin-bottom", c.Margins.Bottom, "pixels trimmed from the bottom")
	fs.IntVar(&c.Margins.Left, "margin-left", c.Margins.Left, "pixels trimmed from the left")
	fs.IntVar(&c.Margins.Right, "margin-right", c.Margins.Right, "pixels trimmed from the right")
	fs.IntVar(&c.ScalePercent, "scale-percent", c.ScalePercent, "upscale of the binarized plate, percent")
	fs.StringVar(&c.TessdataPrefix, "tessdata", c.TessdataPrefix, "tessdata directory (engine default when empty)")
	fs.Func("lang", "OCR languages joined with + (default rus+eng)", func(v string) error {
		c.Languages = splitLanguages(v)
		return nil
	})
	fs.StringVar(&c.Whitelist, "whitelist", c.Whitelist, "characters the recognizer may output")
	fs.BoolVar(&c.ShowPreview, "show", c.ShowPreview, "display the normalized plate before recognition")
	fs.StringVar(&c.Viewer, "viewer", c.Viewer, "preview backend: fyne, highgui or none")
	fs.StringVar(&c.DumpPath, "dump", c.DumpPath, "write the normalized plate to this file")
	fs.StringVar(&c.LogLevel, "log-level", c.LogLevel, "debug, info, warn, error or off")
	fs.StringVar(&c.LogFormat, "log-format", c.LogFormat, "console or json")
	fs.StringVar(&c.EnvFile, "env", c.EnvFile, "dotenv file with PLATE_* settings")

	return []binding{
		{"image", "PLATE_IMAGE", setString(&c.ImagePath)},
		{"cascade", "PLATE_CASCADE", setString(&c.CascadePath)},
		{"scale-factor", "PLATE_SCALE_FACTOR", setFloat(&c.ScaleFactor)},
		{"min-neighbors", "PLATE_MIN_NEIGHBORS", setInt(&c.MinNeighbors)},
		{"select", "PLATE_SELECT", setString(&c.Selection)},
		{"index", "PLATE_INDEX", setInt(&c.CandidateIndex)},
		{"margin-top", "PLATE_MARGIN_TOP", setInt(&c.Margins.Top)},
		{"margin-bottom", "PLATE_MARGIN_BOTTOM", setInt(&c.Margins.Bottom)},
		{"margin-left", "PLATE_MARGIN_LEFT", setInt(&c.Margins.Left)},
		{"margin-right", "PLATE_MARGIN_RIGHT", setInt(&c.Margins.Right)},
		{"scale-percent", "PLATE_SCALE_PERCENT", setInt(&c.ScalePercent)},
		{"tessdata", "PLATE_TESSDATA", setString(&c.TessdataPrefix)},
		{"lang", "PLATE_LANG", func(v string) error {
			c.Languages = splitLanguages(v)
			return nil
		}},
		{"whitelist", "PLATE_WHITELIST", setString(&c.Whitelist)},
		{"show", "PLATE_SHOW", setBool(&c.ShowPreview)},
		{"viewer", "PLATE_VIEWER", setString(&c.Viewer)},
		{"dump", "PLATE_DUMP", setString(&c.DumpPath)},
		{"log-level", "PLATE_LOG_LEVEL", setString(&c.LogLevel)},
		{"log-format", "PLATE_LOG_FORMAT", setString(&c.LogFormat)},
	}
}

// source layers real environment variables over the dotenv file.
type source struct {
	lookup func(string) (string, bool)
	dotenv map[string]string
}

func newSource(envFile string, required bool, lookup func(string) (string, bool)) (*source, error) {
	s := &source{lookup: lookup, dotenv: map[string]string{}}
	if envFile == "" {
		return s, nil
	}

	values, err := godotenv.Read(envFile)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && !required {
			return s, nil
		}
		return nil, fmt.Errorf("failed to read env file %s: %w", envFile, err)
	}
	s.dotenv = values
	return s, nil
}

func (s *source) get(key string) (string, bool) {
	if v, ok := s.lookup(key); ok {
		return v, true
	}
	v, ok := s.dotenv[key]
	return v, ok
}

func splitLanguages(v string) []string {
	fields := strings.FieldsFunc(v, func(r rune) bool {
		return r == '+' || r == ',' || r == ' '
	})
	return fields
}

func setString(dst *string) func(string) error {
	return func(v string) error {
		*dst = v
		return nil
	}
}

func setInt(dst *int) func(string) error {
	return func(v string) error {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return err
		}
		*dst = n
		return nil
	}
}

func setFloat(dst *float64) func(string) error {
	return func(v string) error {
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return err
		}
		*dst = f
		return nil
	}
}

func setBool(dst *bool) func(string) error {
	return func(v string) error {
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return err
		}
		*dst = b
		return nil
	}
}
