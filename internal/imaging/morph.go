package imaging

import (
	"image"

	"github.com/anthonynsimon/bild/effect"
)

// Close performs a morphological closing (dilate then erode) of a binary mask
// with a square structuring element of side size. Gaps narrower than the
// element are bridged.
func Close(mask *image.Gray, size int) *image.Gray {
	r := radius(size)
	if r < 1 {
		return cloneMask(mask)
	}
	return binarize(effect.Erode(effect.Dilate(mask, r), r))
}

// Open performs a morphological opening (erode then dilate). Specks smaller
// than the element are removed.
func Open(mask *image.Gray, size int) *image.Gray {
	r := radius(size)
	if r < 1 {
		return cloneMask(mask)
	}
	return binarize(effect.Dilate(effect.Erode(mask, r), r))
}

// radius converts an odd element side into the window radius bild expects.
func radius(size int) float64 {
	return float64((size - 1) / 2)
}

// binarize maps the RGBA output of bild's filters back to a 0/255 mask.
func binarize(img *image.RGBA) *image.Gray {
	b := img.Bounds()
	out := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			if img.RGBAAt(b.Min.X+x, b.Min.Y+y).R >= 128 {
				out.Pix[y*out.Stride+x] = 255
			}
		}
	}
	return out
}

func cloneMask(m *image.Gray) *image.Gray {
	out := image.NewGray(m.Rect)
	copy(out.Pix, m.Pix)
	return out
}
