// Package tesseract provides an ocr.Engine backed by Tesseract via gosseract.
package tesseract

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"strings"

	"github.com/otiai10/gosseract/v2"

	"github.com/ironsheep/meterscan/internal/ocr"
)

// Engine recognizes text with Tesseract. Every call gets its own client, so
// an Engine can be shared between goroutines.
type Engine struct {
	clientFactory  func() *gosseract.Client
	tessdataPrefix string
}

// Option configures an Engine.
type Option func(*Engine)

// WithTessdataPrefix points Tesseract at a directory of traineddata files.
func WithTessdataPrefix(prefix string) Option {
	return func(e *Engine) { e.tessdataPrefix = prefix }
}

// New constructs a Tesseract-backed engine.
func New(opts ...Option) *Engine {
	e := &Engine{clientFactory: gosseract.NewClient}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) Name() string { return "tesseract" }

// Recognize runs Tesseract on req.Image. Cancellation is checked before the
// call starts; a running recognition cannot be interrupted.
func (e *Engine) Recognize(ctx context.Context, req ocr.Request) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	data, err := encode(req.Image)
	if err != nil {
		return "", err
	}

	c := e.clientFactory()
	defer c.Close()

	if err := e.configure(c, req); err != nil {
		return "", err
	}
	if err := c.SetImageFromBytes(data); err != nil {
		return "", fmt.Errorf("set image: %w", err)
	}

	text, err := c.Text()
	if err != nil {
		return "", fmt.Errorf("recognize text: %w", err)
	}
	return strings.TrimSpace(text), nil
}

func (e *Engine) configure(c *gosseract.Client, req ocr.Request) error {
	if e.tessdataPrefix != "" {
		if err := c.SetTessdataPrefix(e.tessdataPrefix); err != nil {
			return fmt.Errorf("set tessdata prefix: %w", err)
		}
	}
	if req.Language != "" {
		if err := c.SetLanguage(strings.Split(req.Language, "+")...); err != nil {
			return fmt.Errorf("set language: %w", err)
		}
	}
	if err := c.SetPageSegMode(pageSegMode(req.Layout)); err != nil {
		return fmt.Errorf("set page segmentation mode: %w", err)
	}
	if req.Whitelist != "" {
		if err := c.SetWhitelist(req.Whitelist); err != nil {
			return fmt.Errorf("set whitelist: %w", err)
		}
	}
	return nil
}

// Info reports whether Tesseract can be initialised and which version is
// linked.
func (e *Engine) Info() (info ocr.Info) {
	info = ocr.Info{Name: e.Name()}
	defer func() {
		if r := recover(); r != nil {
			info.Available = false
			info.Error = fmt.Sprint(r)
		}
	}()

	c := e.clientFactory()
	defer c.Close()
	if e.tessdataPrefix != "" {
		if err := c.SetTessdataPrefix(e.tessdataPrefix); err != nil {
			info.Error = err.Error()
			return info
		}
	}
	info.Version = c.Version()
	info.Available = info.Version != ""
	return info
}

func pageSegMode(l ocr.Layout) gosseract.PageSegMode {
	if l == ocr.LayoutBlock {
		return gosseract.PSM_SINGLE_BLOCK
	}
	return gosseract.PSM_SINGLE_LINE
}

func encode(img image.Image) ([]byte, error) {
	if img == nil {
		return nil, fmt.Errorf("no image")
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode image: %w", err)
	}
	return buf.Bytes(), nil
}
