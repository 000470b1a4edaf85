package pipeline

import (
	"context"
	"errors"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"

	"github.com/ironsheep/meterscan/internal/detection"
	"github.com/ironsheep/meterscan/internal/ocr"
	"github.com/ironsheep/meterscan/internal/tokens"
)

var red = color.RGBA{255, 0, 0, 255}

// widthEngine answers by the width of the image it is given, which lets a
// test tell regions apart after cropping and preprocessing.
type widthEngine struct {
	mu       sync.Mutex
	byWidth  map[int]string
	fallback string
	delay    map[int]time.Duration
	requests []ocr.Request
}

func (e *widthEngine) Name() string { return "width" }

func (e *widthEngine) Recognize(_ context.Context, req ocr.Request) (string, error) {
	w := req.Image.Bounds().Dx()
	e.mu.Lock()
	e.requests = append(e.requests, req)
	d := e.delay[w]
	text, ok := e.byWidth[w]
	e.mu.Unlock()

	time.Sleep(d)
	if !ok {
		return e.fallback, nil
	}
	return text, nil
}

// createTestImage returns a white image with red marks painted at rects.
func createTestImage(width, height int, marks ...detection.Rect) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.White)
		}
	}
	for _, m := range marks {
		for y := m.Y; y < m.Y+m.Height; y++ {
			for x := m.X; x < m.X+m.Width; x++ {
				img.Set(x, y, red)
			}
		}
	}
	return img
}

func newTestPipeline(t *testing.T, engine ocr.Engine, mutate func(*Config), opts ...Option) *Pipeline {
	t.Helper()
	cfg := DefaultConfig()
	if mutate != nil {
		mutate(&cfg)
	}
	logger, _ := logtest.NewNullLogger()
	opts = append([]Option{WithLogger(logrus.NewEntry(logger))}, opts...)
	p, err := New(cfg, engine, opts...)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return p
}

func TestNew_Errors(t *testing.T) {
	if _, err := New(DefaultConfig(), nil); err == nil {
		t.Error("expected error without engine")
	}

	cfg := DefaultConfig()
	cfg.Workers = 0
	if _, err := New(cfg, &widthEngine{}); err == nil {
		t.Error("expected error for zero workers")
	}

	cfg = DefaultConfig()
	cfg.Detector = "nope"
	if _, err := New(cfg, &widthEngine{}); err == nil {
		t.Error("expected error for unknown detector")
	}
}

func TestDetect_ExpandsAndNumbers(t *testing.T) {
	p := newTestPipeline(t, &widthEngine{}, nil)
	img := createTestImage(200, 150, detection.Rect{X: 20, Y: 90, Width: 100, Height: 10}, detection.Rect{X: 20, Y: 30, Width: 60, Height: 10})

	got, err := p.Detect(img)
	if err != nil {
		t.Fatalf("Detect failed: %v", err)
	}
	want := []detection.Candidate{
		{Index: 1, Original: detection.Rect{X: 20, Y: 30, Width: 60, Height: 10}, Expanded: detection.Rect{X: 10, Y: 15, Width: 80, Height: 30}},
		{Index: 2, Original: detection.Rect{X: 20, Y: 90, Width: 100, Height: 10}, Expanded: detection.Rect{X: 10, Y: 75, Width: 120, Height: 30}},
	}
	if len(got) != len(want) {
		t.Fatalf("got %d candidates, want %d: %v", len(got), len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("candidate %d: got %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestProcessImage_NoMarks(t *testing.T) {
	engine := &widthEngine{fallback: "should not be read"}
	p := newTestPipeline(t, engine, nil)

	r, err := p.ProcessImage(context.Background(), "blank.png", createTestImage(100, 100))
	if err != nil {
		t.Fatalf("ProcessImage failed: %v", err)
	}
	if r.RegionCount != 0 || len(r.Entries) != 0 || len(r.Tokens) != 0 {
		t.Errorf("expected empty result, got %+v", r)
	}
	if r.Message != MessageNoRegions {
		t.Errorf("Message: got %q", r.Message)
	}
	if r.Entries == nil || r.Tokens == nil {
		t.Error("empty result should use empty slices, not nil")
	}
	if len(engine.requests) != 0 {
		t.Errorf("engine called %d times without regions", len(engine.requests))
	}
}

func TestProcessImage_FlowRateRoundTrip(t *testing.T) {
	p := newTestPipeline(t, &widthEngine{fallback: "+0.377 m³/h"}, nil)
	img := createTestImage(200, 100, detection.Rect{X: 40, Y: 40, Width: 90, Height: 12})

	r, err := p.ProcessImage(context.Background(), "meter.png", img)
	if err != nil {
		t.Fatalf("ProcessImage failed: %v", err)
	}
	if len(r.Entries) != 1 || r.Entries[0].Text != "+0.377 m³/h" {
		t.Fatalf("unexpected entries: %+v", r.Entries)
	}

	found := false
	for _, tok := range r.Tokens {
		if tok.Kind == tokens.KindFlowRate && tok.Value == "+0.377 m³/h" && tok.Offset == 0 {
			found = true
		}
	}
	if !found {
		t.Errorf("flow rate token missing from %+v", r.Tokens)
	}
	if r.Summary.ByKind[tokens.KindFlowRate] != 1 {
		t.Errorf("ByKind: got %v", r.Summary.ByKind)
	}
	if r.Mode != ModeAutomatic || r.Source != "meter.png" {
		t.Errorf("unexpected result header: %+v", r)
	}
}

func TestProcessImage_EmptyTextCountsAsRegion(t *testing.T) {
	engine := &widthEngine{byWidth: map[int]string{80: "", 120: "00959"}}
	p := newTestPipeline(t, engine, nil)
	img := createTestImage(200, 150, detection.Rect{X: 20, Y: 30, Width: 60, Height: 10}, detection.Rect{X: 20, Y: 90, Width: 100, Height: 10})

	r, err := p.ProcessImage(context.Background(), "meter.png", img)
	if err != nil {
		t.Fatalf("ProcessImage failed: %v", err)
	}
	if r.RegionCount != 2 || r.Summary.Regions != 2 {
		t.Errorf("RegionCount: got %d", r.RegionCount)
	}
	if len(r.Entries) != 1 || r.Entries[0].Region != 2 || r.Summary.Entries != 1 {
		t.Errorf("unexpected entries: %+v", r.Entries)
	}
	if r.Text != "00959" {
		t.Errorf("Text: got %q", r.Text)
	}
}

func TestProcessImage_ParallelKeepsOrder(t *testing.T) {
	// Later marks finish first.
	engine := &widthEngine{
		byWidth: map[int]string{80: "first 1.5", 120: "second 2", 160: "third 3"},
		delay:   map[int]time.Duration{80: 60 * time.Millisecond, 120: 30 * time.Millisecond},
	}
	p := newTestPipeline(t, engine, func(c *Config) { c.Workers = 4 })
	img := createTestImage(200, 200,
		detection.Rect{X: 20, Y: 30, Width: 60, Height: 10},
		detection.Rect{X: 20, Y: 90, Width: 100, Height: 10},
		detection.Rect{X: 20, Y: 150, Width: 140, Height: 10},
	)

	r, err := p.ProcessImage(context.Background(), "meter.png", img)
	if err != nil {
		t.Fatalf("ProcessImage failed: %v", err)
	}
	if r.Text != "first 1.5 second 2 third 3" {
		t.Errorf("Text: got %q, want detection order", r.Text)
	}
	if len(r.Entries) != 3 {
		t.Fatalf("unexpected entries: %+v", r.Entries)
	}
	for i, e := range r.Entries {
		if e.Region != i+1 {
			t.Errorf("entry %d has region %d", i, e.Region)
		}
	}
}

func TestProcessImage_Canceled(t *testing.T) {
	p := newTestPipeline(t, &widthEngine{fallback: "1"}, nil)
	img := createTestImage(200, 100, detection.Rect{X: 40, Y: 40, Width: 90, Height: 12})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := p.ProcessImage(ctx, "meter.png", img); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestProcessRegion(t *testing.T) {
	engine := &widthEngine{fallback: "123.4 m³"}
	p := newTestPipeline(t, engine, nil)
	img := createTestImage(200, 100)

	r, err := p.ProcessRegion(context.Background(), "manual.png", img, detection.Rect{X: 10, Y: 10, Width: 100, Height: 30})
	if err != nil {
		t.Fatalf("ProcessRegion failed: %v", err)
	}

	wantExpanded := detection.Rect{X: 0, Y: 0, Width: 120, Height: 45}
	if len(r.Entries) != 1 || r.Entries[0].Expanded != wantExpanded {
		t.Fatalf("unexpected entries: %+v", r.Entries)
	}
	if got := engine.requests[0].Image.Bounds(); got.Dx() != 120 || got.Dy() != 45 {
		t.Errorf("engine saw %v, want 120x45", got)
	}
	if engine.requests[0].Layout != ocr.LayoutSingleLine {
		t.Error("manual mode should use single line layout")
	}
	if r.Mode != ModeManual || r.RegionCount != 1 {
		t.Errorf("unexpected result: %+v", r)
	}
	if len(r.Tokens) == 0 || r.Tokens[0].Kind != tokens.KindVolume {
		t.Errorf("expected a volume token first, got %+v", r.Tokens)
	}
}

func TestProcessRegion_InvalidRect(t *testing.T) {
	p := newTestPipeline(t, &widthEngine{}, nil)

	for _, rect := range []detection.Rect{
		{X: 0, Y: 0, Width: 0, Height: 10},
		{X: 0, Y: 0, Width: 10, Height: -1},
	} {
		_, err := p.ProcessRegion(context.Background(), "x.png", createTestImage(50, 50), rect)
		var inErr *InputError
		if !errors.As(err, &inErr) || inErr.Code != CodeInvalidRegion {
			t.Errorf("rect %v: expected INVALID_REGION, got %v", rect, err)
		}
	}
}

func TestProcessFile_LoadErrors(t *testing.T) {
	p := newTestPipeline(t, &widthEngine{}, nil)
	dir := t.TempDir()

	_, err := p.ProcessFile(context.Background(), filepath.Join(dir, "missing.png"))
	var inErr *InputError
	if !errors.As(err, &inErr) || inErr.Code != CodeImageNotFound {
		t.Errorf("missing file: got %v", err)
	}

	bad := filepath.Join(dir, "bad.png")
	if err := os.WriteFile(bad, []byte("not an image"), 0o644); err != nil {
		t.Fatal(err)
	}
	_, err = p.ProcessFile(context.Background(), bad)
	if !errors.As(err, &inErr) || inErr.Code != CodeImageDecodeFailed {
		t.Errorf("corrupt file: got %v", err)
	}
	if !strings.Contains(err.Error(), "IMAGE_DECODE_FAILED") {
		t.Errorf("error text should carry the code: %v", err)
	}
}

func TestProcessFile_UsesLoader(t *testing.T) {
	img := createTestImage(200, 100, detection.Rect{X: 40, Y: 40, Width: 90, Height: 12})
	var loaded []string
	loader := LoaderFunc(func(path string) (image.Image, error) {
		loaded = append(loaded, path)
		return img, nil
	})
	p := newTestPipeline(t, &widthEngine{fallback: "42"}, nil, WithLoader(loader))

	r, err := p.ProcessFile(context.Background(), "virtual.png")
	if err != nil {
		t.Fatalf("ProcessFile failed: %v", err)
	}
	if len(loaded) != 1 || loaded[0] != "virtual.png" || r.Text != "42" {
		t.Errorf("loader not used: loaded=%v result=%+v", loaded, r)
	}
}

func TestProcessFull(t *testing.T) {
	engine := &widthEngine{fallback: "LECTURA\nTotal 12.5 m3 al 75%"}
	p := newTestPipeline(t, engine, nil)

	r, err := p.ProcessFull(context.Background(), "doc.png", createTestImage(120, 80))
	if err != nil {
		t.Fatalf("ProcessFull failed: %v", err)
	}
	if engine.requests[0].Layout != ocr.LayoutBlock || engine.requests[0].Whitelist != "" {
		t.Errorf("full mode should use block layout without whitelist: %+v", engine.requests[0])
	}
	if r.Structure == nil || len(r.Structure.Titles) != 1 || r.Structure.Titles[0] != "LECTURA" || r.Structure.TotalLines != 2 {
		t.Errorf("unexpected structure: %+v", r.Structure)
	}

	var decimal, percent bool
	for _, tok := range r.Tokens {
		if tok.Kind == tokens.KindDecimal && tok.Value == "12.5" && tok.Line == 2 {
			decimal = true
		}
		if tok.Kind == tokens.KindPercentage && tok.Value == "75%" {
			percent = true
		}
	}
	if !decimal || !percent {
		t.Errorf("missing document tokens: %+v", r.Tokens)
	}
	if r.Mode != ModeFull || r.RegionCount != 1 {
		t.Errorf("unexpected result: %+v", r)
	}
}

func TestWithLanguage(t *testing.T) {
	engine := &widthEngine{fallback: "1"}
	p := newTestPipeline(t, engine, nil)

	if p.WithLanguage("") != p || p.WithLanguage("spa") != p {
		t.Error("same or empty language should return the same pipeline")
	}

	eng := p.WithLanguage("eng")
	if _, err := eng.ProcessRegion(context.Background(), "x.png", createTestImage(100, 50), detection.Rect{X: 5, Y: 5, Width: 30, Height: 10}); err != nil {
		t.Fatal(err)
	}
	if engine.requests[0].Language != "eng" {
		t.Errorf("Language: got %q", engine.requests[0].Language)
	}
	if p.Config().Language != "spa" {
		t.Error("WithLanguage must not modify the original pipeline")
	}
}

func TestDebugOverlay(t *testing.T) {
	dir := t.TempDir()
	p := newTestPipeline(t, &widthEngine{fallback: "7"}, nil, WithDebugDir(dir))
	img := createTestImage(200, 100, detection.Rect{X: 40, Y: 40, Width: 90, Height: 12})

	if _, err := p.ProcessImage(context.Background(), filepath.Join("photos", "meter.png"), img); err != nil {
		t.Fatalf("ProcessImage failed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "meter_debug.jpg")); err != nil {
		t.Errorf("debug image not written: %v", err)
	}
}

func TestWriteJSON(t *testing.T) {
	p := newTestPipeline(t, &widthEngine{fallback: "+0.377 m³/h"}, nil)
	img := createTestImage(200, 100, detection.Rect{X: 40, Y: 40, Width: 90, Height: 12})
	r, err := p.ProcessImage(context.Background(), "meter.png", img)
	if err != nil {
		t.Fatal(err)
	}

	out := filepath.Join(t.TempDir(), ResultFileName("meter.png"))
	if err := WriteJSON(r, out); err != nil {
		t.Fatalf("WriteJSON failed: %v", err)
	}
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	s := string(data)
	for _, want := range []string{`m³/h"`, `"region_count": 1`, `"caudal"`} {
		if !strings.Contains(s, want) {
			t.Errorf("JSON missing %s:\n%s", want, s)
		}
	}
}

func TestFileNames(t *testing.T) {
	if got := DebugFileName("/tmp/a/b.photo.jpg"); got != "b.photo_debug.jpg" {
		t.Errorf("DebugFileName: got %s", got)
	}
	if got := ResultFileName("meter.png"); got != "meter_result.json" {
		t.Errorf("ResultFileName: got %s", got)
	}
	if !IsDebugFile(DebugFileName("meter.png")) || !IsDebugFile("dir/meter_debug.JPG") {
		t.Error("IsDebugFile should match overlay names")
	}
	if IsDebugFile("meter.jpg") || IsDebugFile("debug.jpg") {
		t.Error("IsDebugFile should not match plain images")
	}
}
