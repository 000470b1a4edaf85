package detection

import (
	"fmt"
	"image"
	"sort"
	"strings"
	"sync"

	"github.com/ironsheep/meterscan/internal/imaging"
)

// Options tunes mark detection.
type Options struct {
	// Threshold selects marker pixels. The defaults match red ink: hue
	// 0-20 and 340-360 degrees with saturation and value of at least 50/255.
	Threshold imaging.HSVThreshold

	// KernelSize is the side of the square structuring element used for the
	// closing and opening passes.
	KernelSize int

	// A component is kept only when its bounding rectangle is strictly wider
	// than MinWidth and strictly taller than MinHeight.
	MinWidth  int
	MinHeight int
}

// DefaultOptions returns the thresholds used for red meter markings.
func DefaultOptions() Options {
	return Options{
		Threshold: imaging.HSVThreshold{
			Hues:            []imaging.HueRange{{Min: 0, Max: 20}, {Min: 340, Max: 360}},
			SaturationFloor: 50,
			ValueFloor:      50,
		},
		KernelSize: 3,
		MinWidth:   20,
		MinHeight:  5,
	}
}

// Validate checks the options before any pixel is processed.
func (o Options) Validate() error {
	if err := o.Threshold.Validate(); err != nil {
		return fmt.Errorf("invalid threshold: %w", err)
	}
	if o.KernelSize < 1 || o.KernelSize%2 == 0 {
		return fmt.Errorf("kernel size must be a positive odd number, got %d", o.KernelSize)
	}
	if o.MinWidth < 0 || o.MinHeight < 0 {
		return fmt.Errorf("minimum rectangle size must not be negative")
	}
	return nil
}

// keep applies the size filter.
func (o Options) keep(r Rect) bool {
	return r.Width > o.MinWidth && r.Height > o.MinHeight
}

// Detector finds marked regions in an image. Implementations return the
// rectangles sorted top to bottom; an image without marks yields an empty
// slice and no error.
type Detector interface {
	Detect(img image.Image) ([]Rect, error)
}

// Factory builds a Detector from options.
type Factory func(Options) Detector

var (
	backendsMu sync.RWMutex
	backends   = map[string]Factory{
		"go": func(o Options) Detector { return NewColorDetector(o) },
	}
)

// Register makes a detector backend available to New. Build-tagged backends
// register themselves from init.
func Register(name string, f Factory) {
	backendsMu.Lock()
	defer backendsMu.Unlock()
	backends[name] = f
}

// Backends lists the registered backend names in sorted order.
func Backends() []string {
	backendsMu.RLock()
	defer backendsMu.RUnlock()
	names := make([]string, 0, len(backends))
	for name := range backends {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// New returns the detector registered under backend. An empty backend picks
// the pure Go implementation.
func New(backend string, opts Options) (Detector, error) {
	if backend == "" {
		backend = "go"
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	backendsMu.RLock()
	f, ok := backends[backend]
	backendsMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown detector backend %q (available: %s)", backend, strings.Join(Backends(), ", "))
	}
	return f(opts), nil
}

// ColorDetector finds marks with HSV thresholding, morphology and connected
// component analysis implemented in Go.
type ColorDetector struct {
	opts Options
}

// NewColorDetector creates a ColorDetector.
func NewColorDetector(opts Options) *ColorDetector {
	return &ColorDetector{opts: opts}
}

// Detect locates marked regions.
//
// # Algorithm
//
//  1. Threshold each hue interval into a binary mask and union the masks
//  2. Close, then open, with a square KernelSize element
//  3. Collect the bounding rectangle of every external component
//  4. Drop rectangles not exceeding MinWidth x MinHeight
//  5. Stable sort by top edge; equal tops keep row-major discovery order
func (d *ColorDetector) Detect(img image.Image) ([]Rect, error) {
	if err := d.opts.Validate(); err != nil {
		return nil, err
	}

	mask := imaging.ThresholdMask(img, d.opts.Threshold)
	mask = imaging.Open(imaging.Close(mask, d.opts.KernelSize), d.opts.KernelSize)

	origin := img.Bounds().Min
	rects := make([]Rect, 0)
	for _, r := range externalComponents(mask) {
		if !d.opts.keep(r) {
			continue
		}
		r.X += origin.X
		r.Y += origin.Y
		rects = append(rects, r)
	}

	sortByTop(rects)
	return rects, nil
}

func sortByTop(rects []Rect) {
	sort.SliceStable(rects, func(i, j int) bool {
		return rects[i].Y < rects[j].Y
	})
}
