// Package pipeline turns a meter photo into recognized text and typed
// numeric tokens.
//
// Three modes are offered. Automatic mode detects marked regions and reads
// each of them; manual mode reads one caller supplied rectangle; full mode
// reads the whole image as a document.
package pipeline

import (
	"context"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/ironsheep/meterscan/internal/detection"
	"github.com/ironsheep/meterscan/internal/imaging"
	"github.com/ironsheep/meterscan/internal/ocr"
	"github.com/ironsheep/meterscan/internal/tokens"
)

// Loader reads images from disk. *imaging.ImageCache satisfies it.
type Loader interface {
	Load(path string) (image.Image, error)
}

// LoaderFunc adapts a function to Loader.
type LoaderFunc func(path string) (image.Image, error)

func (f LoaderFunc) Load(path string) (image.Image, error) { return f(path) }

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the log entry used by the pipeline.
func WithLogger(log *logrus.Entry) Option {
	return func(p *Pipeline) { p.log = log }
}

// WithLoader replaces the image loader used by the *File methods.
func WithLoader(l Loader) Option {
	return func(p *Pipeline) { p.loader = l }
}

// WithDebugDir writes an overlay of the detected regions to dir for every
// automatic run. An empty dir disables it.
func WithDebugDir(dir string) Option {
	return func(p *Pipeline) { p.debugDir = dir }
}

// Pipeline runs detection, expansion, recognition and tokenization. It is
// safe for concurrent use.
type Pipeline struct {
	cfg       Config
	detector  detection.Detector
	extractor *ocr.Extractor
	regionTok *tokens.Tokenizer
	fullTok   *tokens.Tokenizer
	loader    Loader
	debugDir  string
	log       *logrus.Entry
}

// New builds a pipeline around engine.
func New(cfg Config, engine ocr.Engine, opts ...Option) (*Pipeline, error) {
	if engine == nil {
		return nil, fmt.Errorf("an OCR engine is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid pipeline config: %w", err)
	}

	p := &Pipeline{
		cfg:       cfg,
		regionTok: tokens.NewRegion(),
		fullTok:   tokens.NewDocument(),
		loader:    LoaderFunc(imaging.Load),
		log:       logrus.NewEntry(logrus.StandardLogger()),
	}
	for _, opt := range opts {
		opt(p)
	}

	det, err := detection.New(cfg.Detector, cfg.DetectionOptions())
	if err != nil {
		return nil, err
	}
	p.detector = det
	p.extractor = ocr.NewExtractor(engine, p.log.WithField("component", "extractor"))
	return p, nil
}

// Config returns the configuration the pipeline was built with.
func (p *Pipeline) Config() Config {
	return p.cfg
}

// Engine returns the recognition engine.
func (p *Pipeline) Engine() ocr.Engine {
	return p.extractor.Engine()
}

// WithLanguage returns a pipeline that recognizes lang instead of the
// configured language. An empty lang returns p.
func (p *Pipeline) WithLanguage(lang string) *Pipeline {
	lang = strings.TrimSpace(lang)
	if lang == "" || lang == p.cfg.Language {
		return p
	}
	c := *p
	c.cfg.Language = lang
	return &c
}

// Detect finds marked regions and expands them, without recognizing text.
// Candidates are numbered from 1 in top to bottom order.
func (p *Pipeline) Detect(img image.Image) ([]detection.Candidate, error) {
	rects, err := p.detector.Detect(img)
	if err != nil {
		return nil, fmt.Errorf("detection failed: %w", err)
	}

	out := make([]detection.Candidate, len(rects))
	for i, r := range rects {
		out[i] = detection.Candidate{
			Index:    i + 1,
			Original: r,
			Expanded: p.expand(img.Bounds(), r),
		}
	}
	return out, nil
}

// ProcessFile runs automatic mode on the image at path.
func (p *Pipeline) ProcessFile(ctx context.Context, path string) (*Result, error) {
	img, err := p.load(path)
	if err != nil {
		return nil, err
	}
	return p.ProcessImage(ctx, path, img)
}

// ProcessImage runs automatic mode on img. name identifies the image in the
// result and in debug output.
//
// Finding no marks is not an error: the result then has no regions and
// carries MessageNoRegions.
func (p *Pipeline) ProcessImage(ctx context.Context, name string, img image.Image) (*Result, error) {
	log := p.log.WithFields(logrus.Fields{"source": name, "mode": ModeAutomatic})

	candidates, err := p.Detect(img)
	if err != nil {
		return nil, err
	}
	log.WithField("regions", len(candidates)).Debug("detection finished")

	if len(candidates) == 0 {
		r := newResult(name, ModeAutomatic, nil, nil, p.regionTok)
		r.Message = MessageNoRegions
		return r, nil
	}

	p.writeDebug(name, img, candidates, log)

	texts, err := p.recognize(ctx, img, candidates, log)
	if err != nil {
		return nil, err
	}
	return newResult(name, ModeAutomatic, candidates, texts, p.regionTok), nil
}

// ProcessRegionFile runs manual mode on the image at path.
func (p *Pipeline) ProcessRegionFile(ctx context.Context, path string, r detection.Rect) (*Result, error) {
	if err := validRegion(path, r); err != nil {
		return nil, err
	}
	img, err := p.load(path)
	if err != nil {
		return nil, err
	}
	return p.ProcessRegion(ctx, path, img, r)
}

// ProcessRegion reads the single rectangle r as if it had been detected.
// r must have a positive width and height.
func (p *Pipeline) ProcessRegion(ctx context.Context, name string, img image.Image, r detection.Rect) (*Result, error) {
	if err := validRegion(name, r); err != nil {
		return nil, err
	}
	log := p.log.WithFields(logrus.Fields{"source": name, "mode": ModeManual})

	candidates := []detection.Candidate{{
		Index:    1,
		Original: r,
		Expanded: p.expand(img.Bounds(), r),
	}}
	texts, err := p.recognize(ctx, img, candidates, log)
	if err != nil {
		return nil, err
	}
	return newResult(name, ModeManual, candidates, texts, p.regionTok), nil
}

// ProcessFullFile runs full mode on the image at path.
func (p *Pipeline) ProcessFullFile(ctx context.Context, path string) (*Result, error) {
	img, err := p.load(path)
	if err != nil {
		return nil, err
	}
	return p.ProcessFull(ctx, path, img)
}

// ProcessFull reads the whole image as a block of text. Tokens carry line
// numbers and the result includes a title/paragraph breakdown.
func (p *Pipeline) ProcessFull(ctx context.Context, name string, img image.Image) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	log := p.log.WithFields(logrus.Fields{"source": name, "mode": ModeFull})

	whole := detection.FromRectangle(img.Bounds())
	candidates := []detection.Candidate{{Index: 1, Original: whole, Expanded: whole}}

	text := p.extractor.Extract(ctx, img, img.Bounds(), p.cfg.fullProfile())
	log.WithField("chars", len([]rune(text))).Debug("full image recognized")

	r := newResult(name, ModeFull, candidates, []string{text}, p.fullTok)
	s := tokens.Analyze(text)
	r.Structure = &s
	return r, nil
}

// recognize reads every candidate. Results are stored by index so output
// order does not depend on scheduling. Cancellation is honored between
// regions.
func (p *Pipeline) recognize(ctx context.Context, img image.Image, candidates []detection.Candidate, log *logrus.Entry) ([]string, error) {
	texts := make([]string, len(candidates))
	profile := p.cfg.regionProfile()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.Workers)
	for i, c := range candidates {
		if err := gctx.Err(); err != nil {
			break
		}
		i, c := i, c
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			texts[i] = p.extractor.Extract(gctx, img, c.Expanded.Bounds(), profile)
			log.WithFields(logrus.Fields{
				"region": c.Index,
				"rect":   c.Expanded.String(),
				"chars":  len([]rune(texts[i])),
			}).Debug("region recognized")
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return texts, nil
}

// expand grows r inside bounds. Expand works on zero-based coordinates, so
// r is shifted there and back.
func (p *Pipeline) expand(bounds image.Rectangle, r detection.Rect) detection.Rect {
	rel := r
	rel.X -= bounds.Min.X
	rel.Y -= bounds.Min.Y
	e := detection.Expand(rel, bounds.Dx(), bounds.Dy(), p.cfg.ExpansionX, p.cfg.ExpansionY)
	e.X += bounds.Min.X
	e.Y += bounds.Min.Y
	return e
}

func (p *Pipeline) load(path string) (image.Image, error) {
	img, err := p.loader.Load(path)
	if err != nil {
		return nil, loadError(path, err)
	}
	return img, nil
}

// writeDebug saves the expanded regions drawn over img as
// <stem>_debug.jpg. Failures are logged only.
func (p *Pipeline) writeDebug(name string, img image.Image, candidates []detection.Candidate, log *logrus.Entry) {
	if p.debugDir == "" {
		return
	}
	boxes := make([]imaging.Box, len(candidates))
	for i, c := range candidates {
		boxes[i] = imaging.Box{Rect: c.Expanded.Bounds(), Label: fmt.Sprintf("Area %d", c.Index)}
	}

	if err := os.MkdirAll(p.debugDir, 0o755); err != nil {
		log.WithError(err).Warn("cannot create debug directory")
		return
	}
	out := filepath.Join(p.debugDir, DebugFileName(name))
	if err := imaging.SaveJPEG(imaging.Annotate(img, boxes, imaging.DefaultBoxColor), out); err != nil {
		log.WithError(err).Warn("cannot write debug image")
		return
	}
	log.WithField("path", out).Debug("debug image written")
}

const debugSuffix = "_debug"

// DebugFileName returns the overlay file name for an image name.
func DebugFileName(name string) string {
	return stem(name) + debugSuffix + ".jpg"
}

// IsDebugFile reports whether name looks like an overlay written by
// DebugFileName, so batch runs can skip their own output.
func IsDebugFile(name string) bool {
	return strings.HasSuffix(stem(name), debugSuffix)
}

// ResultFileName returns the JSON result file name for an image name.
func ResultFileName(name string) string {
	return stem(name) + "_result.json"
}

func stem(name string) string {
	base := filepath.Base(name)
	if base == "." || base == string(filepath.Separator) {
		return "image"
	}
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func validRegion(path string, r detection.Rect) error {
	if r.Valid() {
		return nil
	}
	return &InputError{
		Code:    CodeInvalidRegion,
		Path:    path,
		Message: fmt.Sprintf("region %s must have a positive width and height", r),
	}
}
