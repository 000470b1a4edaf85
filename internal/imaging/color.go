package imaging

import (
	"fmt"
	"image"
	"image/color"

	colorful "github.com/lucasb-eyer/go-colorful"
)

// HueRange is a closed interval of hue angles in degrees, 0 to 360.
type HueRange struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// Contains reports whether hue h falls within the interval.
func (r HueRange) Contains(h float64) bool {
	return h >= r.Min && h <= r.Max
}

// HSVThreshold selects pixels whose hue lies in one of Hues and whose
// saturation and value reach the floors. Floors use the 0-255 scale.
type HSVThreshold struct {
	Hues            []HueRange
	SaturationFloor uint8
	ValueFloor      uint8
}

// Validate checks the threshold for impossible settings.
func (t HSVThreshold) Validate() error {
	if len(t.Hues) == 0 {
		return fmt.Errorf("at least one hue range is required")
	}
	for _, r := range t.Hues {
		if r.Min < 0 || r.Max > 360 || r.Min > r.Max {
			return fmt.Errorf("invalid hue range [%g,%g]", r.Min, r.Max)
		}
	}
	return nil
}

// HSV converts c to hue in degrees [0,360) and saturation and value in [0,1].
// Fully transparent pixels report zero saturation and value.
func HSV(c color.Color) (h, s, v float64) {
	cf, ok := colorful.MakeColor(c)
	if !ok {
		return 0, 0, 0
	}
	return cf.Hsv()
}

// hsvPlane holds per-pixel HSV values in row-major order so several hue masks
// can be built from a single conversion pass.
type hsvPlane struct {
	width, height int
	h, s, v       []float32
}

func newHSVPlane(img image.Image) *hsvPlane {
	b := img.Bounds()
	w, ht := b.Dx(), b.Dy()
	p := &hsvPlane{
		width:  w,
		height: ht,
		h:      make([]float32, w*ht),
		s:      make([]float32, w*ht),
		v:      make([]float32, w*ht),
	}
	for y := 0; y < ht; y++ {
		for x := 0; x < w; x++ {
			hh, ss, vv := HSV(img.At(b.Min.X+x, b.Min.Y+y))
			i := y*w + x
			p.h[i], p.s[i], p.v[i] = float32(hh), float32(ss), float32(vv)
		}
	}
	return p
}

// mask marks pixels inside one hue interval that pass the floors.
func (p *hsvPlane) mask(r HueRange, satFloor, valFloor uint8) *image.Gray {
	out := image.NewGray(image.Rect(0, 0, p.width, p.height))
	sMin := float32(satFloor) / 255
	vMin := float32(valFloor) / 255
	for i := range p.h {
		if p.s[i] >= sMin && p.v[i] >= vMin && r.Contains(float64(p.h[i])) {
			out.Pix[i] = 255
		}
	}
	return out
}

// ThresholdMask builds one binary mask per hue interval and returns their
// union. Marked pixels are 255, everything else 0. The mask origin is (0,0)
// regardless of the bounds of img.
func ThresholdMask(img image.Image, t HSVThreshold) *image.Gray {
	plane := newHSVPlane(img)
	masks := make([]*image.Gray, 0, len(t.Hues))
	for _, r := range t.Hues {
		masks = append(masks, plane.mask(r, t.SaturationFloor, t.ValueFloor))
	}
	if len(masks) == 0 {
		return image.NewGray(image.Rect(0, 0, plane.width, plane.height))
	}
	return Union(masks...)
}

// Union returns the pixel-wise OR of equally sized binary masks.
func Union(masks ...*image.Gray) *image.Gray {
	out := image.NewGray(masks[0].Rect)
	for _, m := range masks {
		for i, px := range m.Pix {
			if px != 0 {
				out.Pix[i] = 255
			}
		}
	}
	return out
}

// ColorSample describes a single pixel.
type ColorSample struct {
	X      int     `json:"x"`
	Y      int     `json:"y"`
	Hex    string  `json:"hex"`
	Hue    float64 `json:"hue"`
	Sat    int     `json:"saturation"` // 0-255
	Val    int     `json:"value"`      // 0-255
	Marked bool    `json:"marked"`
}

// SampleColor reads the pixel at (x, y) and reports whether t would mark it.
// Useful when tuning thresholds against real captures.
func SampleColor(img image.Image, x, y int, t HSVThreshold) (*ColorSample, error) {
	bounds := img.Bounds()
	if x < bounds.Min.X || x >= bounds.Max.X || y < bounds.Min.Y || y >= bounds.Max.Y {
		return nil, fmt.Errorf("coordinates (%d,%d) outside image bounds", x, y)
	}

	c := img.At(x, y)
	r, g, b, _ := c.RGBA()
	h, s, v := HSV(c)

	sample := &ColorSample{
		X:   x,
		Y:   y,
		Hex: fmt.Sprintf("#%02X%02X%02X", uint8(r>>8), uint8(g>>8), uint8(b>>8)),
		Hue: h,
		Sat: int(s*255 + 0.5),
		Val: int(v*255 + 0.5),
	}
	if float32(s) >= float32(t.SaturationFloor)/255 && float32(v) >= float32(t.ValueFloor)/255 {
		for _, hr := range t.Hues {
			if hr.Contains(h) {
				sample.Marked = true
				break
			}
		}
	}
	return sample, nil
}
