package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"

	"github.com/ironsheep/meterscan/internal/config"
	"github.com/ironsheep/meterscan/internal/ocr"
	"github.com/ironsheep/meterscan/internal/pipeline"
)

type fakeEngine struct {
	text     string
	requests []ocr.Request
}

func (f *fakeEngine) Name() string { return "fake" }

func (f *fakeEngine) Recognize(_ context.Context, req ocr.Request) (string, error) {
	f.requests = append(f.requests, req)
	return f.text, nil
}

// createMeterPNG encodes a white image with one red mark.
func createMeterPNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 200, 100))
	for y := 0; y < 100; y++ {
		for x := 0; x < 200; x++ {
			c := color.RGBA{255, 255, 255, 255}
			if x >= 40 && x < 130 && y >= 40 && y < 52 {
				c = color.RGBA{255, 0, 0, 255}
			}
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

type testServer struct {
	handler   http.Handler
	engine    *fakeEngine
	uploadDir string
}

func newTestServer(t *testing.T, text string) *testServer {
	t.Helper()
	engine := &fakeEngine{text: text}
	logger, _ := logtest.NewNullLogger()
	log := logrus.NewEntry(logger)

	p, err := pipeline.New(pipeline.DefaultConfig(), engine, pipeline.WithLogger(log))
	if err != nil {
		t.Fatal(err)
	}
	cfg := &config.Config{
		Port:              "0",
		UploadDir:         t.TempDir(),
		MaxUploadBytes:    64 << 10,
		AllowedExtensions: []string{"png", "jpg", "jpeg", "gif", "webp"},
		AllowedOrigins:    []string{"*"},
	}
	return &testServer{handler: NewServer(cfg, p, log).Handler(), engine: engine, uploadDir: cfg.UploadDir}
}

func (s *testServer) post(t *testing.T, filename string, data []byte, fields map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if filename != "" {
		fw, err := mw.CreateFormFile("image", filename)
		if err != nil {
			t.Fatal(err)
		}
		fw.Write(data)
	}
	for k, v := range fields {
		mw.WriteField(k, v)
	}
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/process", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) assertUploadsRemoved(t *testing.T) {
	t.Helper()
	entries, err := os.ReadDir(s.uploadDir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("upload directory not cleaned: %d files left", len(entries))
	}
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("error body is not JSON: %s", rec.Body.String())
	}
	return body["error"]
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, "")
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d", rec.Code)
	}
	var body struct {
		Status string   `json:"status"`
		OCR    ocr.Info `json:"ocr"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body.Status != "ok" || body.OCR.Name != "fake" {
		t.Errorf("unexpected health body: %+v", body)
	}
}

func TestProcess_Automatic(t *testing.T) {
	s := newTestServer(t, "+0.377 m³/h")
	rec := s.post(t, "meter.png", createMeterPNG(t), nil)

	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d body %s", rec.Code, rec.Body.String())
	}
	var res pipeline.Result
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatal(err)
	}
	if res.Source != "meter.png" || res.RegionCount != 1 || res.Text != "+0.377 m³/h" {
		t.Errorf("unexpected result: %+v", res)
	}
	if len(res.Tokens) == 0 || res.Tokens[0].Kind != "caudal" {
		t.Errorf("unexpected tokens: %+v", res.Tokens)
	}
	s.assertUploadsRemoved(t)
}

func TestProcess_ManualRegion(t *testing.T) {
	s := newTestServer(t, "00959")
	rec := s.post(t, "meter.png", createMeterPNG(t), map[string]string{
		"x": "10", "y": "10", "width": "100", "height": "30", "lang": "eng",
	})

	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d body %s", rec.Code, rec.Body.String())
	}
	var res pipeline.Result
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatal(err)
	}
	if res.Mode != pipeline.ModeManual || res.Text != "00959" {
		t.Errorf("unexpected result: %+v", res)
	}
	if s.engine.requests[0].Language != "eng" {
		t.Errorf("language not forwarded: %q", s.engine.requests[0].Language)
	}
	s.assertUploadsRemoved(t)
}

func TestProcess_Full(t *testing.T) {
	s := newTestServer(t, "TOTAL\n12.5")
	rec := s.post(t, "doc.png", createMeterPNG(t), map[string]string{"mode": "full"})

	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d body %s", rec.Code, rec.Body.String())
	}
	var res pipeline.Result
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatal(err)
	}
	if res.Mode != pipeline.ModeFull || res.Structure == nil || len(res.Structure.Titles) != 1 {
		t.Errorf("unexpected result: %+v", res)
	}
}

func TestProcess_Errors(t *testing.T) {
	valid := createMeterPNG(t)
	tests := []struct {
		name     string
		filename string
		data     []byte
		fields   map[string]string
		want     int
	}{
		{"no file", "", nil, nil, http.StatusBadRequest},
		{"bad extension", "meter.exe", valid, nil, http.StatusBadRequest},
		{"too large", "meter.png", bytes.Repeat([]byte{1}, 70<<10), nil, http.StatusRequestEntityTooLarge},
		{"partial region", "meter.png", valid, map[string]string{"x": "1", "y": "1"}, http.StatusBadRequest},
		{"zero width", "meter.png", valid, map[string]string{"x": "1", "y": "1", "width": "0", "height": "5"}, http.StatusBadRequest},
		{"non numeric", "meter.png", valid, map[string]string{"x": "a", "y": "1", "width": "2", "height": "5"}, http.StatusBadRequest},
		{"region with full", "meter.png", valid, map[string]string{"x": "1", "y": "1", "width": "2", "height": "5", "mode": "full"}, http.StatusBadRequest},
		{"undecodable", "meter.jpg", []byte("definitely not a jpeg"), nil, http.StatusUnprocessableEntity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t, "1")
			rec := s.post(t, tt.filename, tt.data, tt.fields)
			if rec.Code != tt.want {
				t.Fatalf("status: got %d, want %d (body %s)", rec.Code, tt.want, rec.Body.String())
			}
			if decodeError(t, rec) == "" {
				t.Error("error message missing")
			}
			s.assertUploadsRemoved(t)
		})
	}
}

func TestProcess_NoMarks(t *testing.T) {
	s := newTestServer(t, "1")
	img := image.NewRGBA(image.Rect(0, 0, 40, 40))
	var buf bytes.Buffer
	png.Encode(&buf, img)

	rec := s.post(t, "empty.png", buf.Bytes(), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d", rec.Code)
	}
	var res pipeline.Result
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatal(err)
	}
	if res.RegionCount != 0 || res.Message != pipeline.MessageNoRegions {
		t.Errorf("unexpected result: %+v", res)
	}
}
