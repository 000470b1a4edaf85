package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/ironsheep/meterscan/internal/config"
	"github.com/ironsheep/meterscan/internal/detection"
	"github.com/ironsheep/meterscan/internal/logging"
	"github.com/ironsheep/meterscan/internal/ocr/tesseract"
	"github.com/ironsheep/meterscan/internal/pipeline"
)

// Version information - set by ldflags during build
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// batchExtensions are the files picked up by -dir.
var batchExtensions = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".bmp": true, ".tiff": true, ".gif": true,
}

type options struct {
	dir        string
	x, y, w, h int
	region     bool
	full       bool
	lang       string
	json       bool
	debug      bool
	version    bool
}

func main() {
	if len(os.Args) > 1 && os.Args[1] == "serve" {
		os.Exit(serve())
	}
	os.Exit(run(os.Args[1:]))
}

func parseFlags(args []string) (*options, []string, error) {
	var o options
	fs := flag.NewFlagSet("meterscan", flag.ContinueOnError)
	fs.Usage = func() {
		out := fs.Output()
		fmt.Fprintln(out, "meterscan - read red-marked values from meter photos")
		fmt.Fprintln(out)
		fmt.Fprintln(out, "Usage:")
		fmt.Fprintln(out, "  meterscan [flags] <image>")
		fmt.Fprintln(out, "  meterscan -dir <folder> [flags]")
		fmt.Fprintln(out, "  meterscan serve")
		fmt.Fprintln(out)
		fmt.Fprintln(out, "Flags:")
		fs.PrintDefaults()
	}
	fs.StringVar(&o.dir, "dir", "", "process every image in this folder")
	fs.IntVar(&o.x, "x", 0, "manual region left edge")
	fs.IntVar(&o.y, "y", 0, "manual region top edge")
	fs.IntVar(&o.w, "w", 0, "manual region width")
	fs.IntVar(&o.h, "h", 0, "manual region height")
	fs.BoolVar(&o.full, "full", false, "read the whole image instead of the marks")
	fs.StringVar(&o.lang, "lang", "", "OCR language (default from OCR_LANGUAGE or spa)")
	fs.BoolVar(&o.json, "json", false, "save <name>_result.json next to each image")
	fs.BoolVar(&o.debug, "debug", false, "save <name>_debug.jpg with the detected areas")
	fs.BoolVar(&o.version, "version", false, "print version information")

	if err := fs.Parse(args); err != nil {
		return nil, nil, err
	}
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "x", "y", "w", "h":
			o.region = true
		}
	})
	return &o, fs.Args(), nil
}

func run(args []string) int {
	o, rest, err := parseFlags(args)
	if err != nil {
		if err == flag.ErrHelp {
			return 0
		}
		return 2
	}
	if o.version {
		fmt.Printf("meterscan %s\n", Version)
		fmt.Printf("  Build time: %s\n", BuildTime)
		fmt.Printf("  Git commit: %s\n", GitCommit)
		return 0
	}

	if o.region && o.full {
		fmt.Fprintln(os.Stderr, "Error: a manual region cannot be combined with -full")
		return 2
	}
	if o.dir == "" && len(rest) != 1 {
		fmt.Fprintln(os.Stderr, "Error: expected exactly one image path, or -dir")
		return 2
	}
	if o.dir != "" && o.region {
		fmt.Fprintln(os.Stderr, "Error: a manual region cannot be used with -dir")
		return 2
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	logger := logging.New(cfg.LogLevel, os.Stderr)

	debugDir := ""
	if o.debug {
		debugDir = cfg.DebugDir
		if debugDir == "" {
			debugDir = o.dir
			if debugDir == "" {
				debugDir = filepath.Dir(rest[0])
			}
		}
	}

	p, err := newPipeline(cfg, logger, debugDir)
	if err != nil {
		logger.Errorf("Pipeline setup failed: %v", err)
		return 1
	}
	p = p.WithLanguage(o.lang)

	ctx := context.Background()
	if o.dir != "" {
		return runBatch(ctx, p, o, logger)
	}

	res, err := process(ctx, p, o, rest[0])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	printResult(os.Stdout, res)
	if o.json {
		if err := saveJSON(res, rest[0]); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return 1
		}
	}
	return 0
}

func newPipeline(cfg *config.Config, logger *logrus.Logger, debugDir string) (*pipeline.Pipeline, error) {
	engine := tesseract.New(tesseract.WithTessdataPrefix(cfg.TessdataPrefix))
	return pipeline.New(cfg.Pipeline(), engine,
		pipeline.WithLogger(logging.Component(logger, "pipeline")),
		pipeline.WithDebugDir(debugDir),
	)
}

func process(ctx context.Context, p *pipeline.Pipeline, o *options, path string) (*pipeline.Result, error) {
	switch {
	case o.region:
		return p.ProcessRegionFile(ctx, path, detection.Rect{X: o.x, Y: o.y, Width: o.w, Height: o.h})
	case o.full:
		return p.ProcessFullFile(ctx, path)
	default:
		return p.ProcessFile(ctx, path)
	}
}

// runBatch processes every image in o.dir. A failing image is reported and
// skipped; results are always saved as JSON.
func runBatch(ctx context.Context, p *pipeline.Pipeline, o *options, logger *logrus.Logger) int {
	images, err := listImages(o.dir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	done := 0
	for _, path := range images {
		fmt.Printf("Processing: %s...\n", filepath.Base(path))
		res, err := process(ctx, p, o, path)
		if err != nil {
			logger.WithField("file", path).Errorf("Error processing image: %v", err)
			continue
		}
		if err := saveJSON(res, path); err != nil {
			logger.WithField("file", path).Error(err)
			continue
		}
		done++
	}
	fmt.Printf("\nProcessed %d of %d images\n", done, len(images))
	if done < len(images) {
		return 1
	}
	return 0
}

// listImages returns the supported images in dir, sorted by name. Debug
// overlays from earlier runs are skipped.
func listImages(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot read folder %s: %w", dir, err)
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() || !batchExtensions[strings.ToLower(filepath.Ext(e.Name()))] || pipeline.IsDebugFile(e.Name()) {
			continue
		}
		out = append(out, filepath.Join(dir, e.Name()))
	}
	sort.Strings(out)
	return out, nil
}

func saveJSON(res *pipeline.Result, imagePath string) error {
	out := filepath.Join(filepath.Dir(imagePath), pipeline.ResultFileName(imagePath))
	if err := pipeline.WriteJSON(res, out); err != nil {
		return err
	}
	fmt.Printf("Results saved to: %s\n", out)
	return nil
}
