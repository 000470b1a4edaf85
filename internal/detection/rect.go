package detection

import (
	"fmt"
	"image"
)

// Rect is an axis-aligned rectangle in pixel coordinates with its origin at
// the top-left corner of the image.
type Rect struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// FromRectangle converts a Go image rectangle.
func FromRectangle(r image.Rectangle) Rect {
	return Rect{X: r.Min.X, Y: r.Min.Y, Width: r.Dx(), Height: r.Dy()}
}

// Valid reports whether r has a positive area.
func (r Rect) Valid() bool {
	return r.Width > 0 && r.Height > 0
}

// Bounds converts r into a Go image rectangle.
func (r Rect) Bounds() image.Rectangle {
	return image.Rect(r.X, r.Y, r.X+r.Width, r.Y+r.Height)
}

// Clip returns the part of r inside a width x height image. The result may
// be empty.
func (r Rect) Clip(width, height int) Rect {
	c := r.Bounds().Intersect(image.Rect(0, 0, width, height))
	if c.Empty() {
		return Rect{}
	}
	return FromRectangle(c)
}

// Contains reports whether o lies entirely inside r. An empty o is contained
// in every rectangle.
func (r Rect) Contains(o Rect) bool {
	if !o.Valid() {
		return true
	}
	return o.Bounds().In(r.Bounds())
}

func (r Rect) String() string {
	return fmt.Sprintf("(%d,%d %dx%d)", r.X, r.Y, r.Width, r.Height)
}

// Candidate is a detected region together with its 1-based position in the
// top-to-bottom ordering.
type Candidate struct {
	Index    int  `json:"index"`
	Original Rect `json:"original"`
	Expanded Rect `json:"expanded"`
}
