package ocr

import (
	"context"
	"image"
)

// Layout tells the engine how text is arranged in the image.
type Layout int

const (
	// LayoutSingleLine treats the image as one line of text.
	LayoutSingleLine Layout = iota
	// LayoutBlock treats the image as a single uniform block of text.
	LayoutBlock
)

func (l Layout) String() string {
	switch l {
	case LayoutSingleLine:
		return "single_line"
	case LayoutBlock:
		return "block"
	}
	return "unknown"
}

// DefaultWhitelist limits per-mark recognition to digits, Latin letters
// (including Spanish accents), punctuation, and the symbols printed on
// meter displays.
const DefaultWhitelist = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz" +
	"ÁÉÍÓÚáéíóúÑñ.,;:()[]{}!?@#$%&*-+=/ m³hΣ+−"

// DefaultLanguage is the recognition language used when none is configured.
const DefaultLanguage = "spa"

// Request is a single recognition call.
type Request struct {
	Image     image.Image
	Language  string
	Layout    Layout
	Whitelist string // empty allows every character
}

// Engine recognizes text in an image. Implementations must be safe for
// concurrent use; the pipeline may call Recognize from several goroutines.
type Engine interface {
	Name() string
	Recognize(ctx context.Context, req Request) (string, error)
}

// Info describes an engine for health endpoints.
type Info struct {
	Name      string   `json:"name"`
	Available bool     `json:"available"`
	Version   string   `json:"version,omitempty"`
	Languages []string `json:"languages,omitempty"`
	Error     string   `json:"error,omitempty"`
}

// Describer is implemented by engines that can report their status.
type Describer interface {
	Info() Info
}

// Describe returns e's Info, or a minimal one when e cannot describe itself.
func Describe(e Engine) Info {
	if d, ok := e.(Describer); ok {
		return d.Info()
	}
	return Info{Name: e.Name(), Available: true}
}
