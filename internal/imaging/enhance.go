package imaging

import (
	"image"
	"image/color"
	"math"

	"github.com/anthonynsimon/bild/convolution"
	"github.com/anthonynsimon/bild/effect"
	"github.com/disintegration/imaging"
)

// Luma weights of the ITU-R 601-2 transform.
const (
	lumaR = 0.299
	lumaG = 0.587
	lumaB = 0.114
)

// Grayscale returns a single-channel copy of img using ITU-R 601-2 luma.
// Images that are already *image.Gray are returned unchanged.
func Grayscale(img image.Image) *image.Gray {
	if g, ok := img.(*image.Gray); ok {
		return g
	}
	return redPlane(effect.GrayscaleWithWeights(img, lumaR, lumaG, lumaB))
}

// Contrast scales the distance of every pixel from the mean intensity by
// factor. 1.0 is the identity, values above 1 stretch, below 1 flatten.
func Contrast(img *image.Gray, factor float64) *image.Gray {
	mean := math.Floor(meanIntensity(img) + 0.5)
	out := imaging.AdjustFunc(img, func(c color.NRGBA) color.NRGBA {
		v := clampByte(mean + factor*(float64(c.R)-mean))
		return color.NRGBA{R: v, G: v, B: v, A: c.A}
	})
	return redPlane(out)
}

// smoothKernel is the 3x3 smoothing filter sharpness is measured against.
var smoothKernel = [9]float64{
	1, 1, 1,
	1, 5, 1,
	1, 1, 1,
}

const smoothWeight = 13.0

// Sharpness blends img with its smoothed version: 0 gives the smoothed image,
// 1 the original, 2 an image sharpened by the same amount the smoothing
// removed. Border pixels are left unfiltered.
func Sharpness(img *image.Gray, factor float64) *image.Gray {
	k := convolution.NewKernel(3, 3)
	for i, w := range smoothKernel {
		k.Matrix[i] = (1 - factor) * w / smoothWeight
	}
	k.Matrix[4] += factor

	out := redPlane(convolution.Convolve(img, k, &convolution.Options{Bias: 0, Wrap: false, KeepAlpha: true}))

	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if x == 0 || y == 0 || x == w-1 || y == h-1 {
				out.Pix[y*out.Stride+x] = img.GrayAt(b.Min.X+x, b.Min.Y+y).Y
			}
		}
	}
	return out
}

// Enhance runs the recognition preprocessing chain: grayscale, contrast, then
// sharpness. The input is never modified.
func Enhance(img image.Image, contrast, sharpness float64) *image.Gray {
	return Sharpness(Contrast(Grayscale(img), contrast), sharpness)
}

func meanIntensity(img *image.Gray) float64 {
	b := img.Bounds()
	n := b.Dx() * b.Dy()
	if n == 0 {
		return 0
	}
	var sum uint64
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			sum += uint64(img.GrayAt(x, y).Y)
		}
	}
	return float64(sum) / float64(n)
}

// redPlane copies the red channel of a gray-valued colour image into a new
// zero-origin *image.Gray.
func redPlane(img image.Image) *image.Gray {
	b := img.Bounds()
	out := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			r, _, _, _ := img.At(b.Min.X+x, b.Min.Y+y).RGBA()
			out.Pix[y*out.Stride+x] = uint8(r >> 8)
		}
	}
	return out
}

func clampByte(v float64) uint8 {
	switch {
	case v < 0:
		return 0
	case v > 255:
		return 255
	}
	return uint8(v + 0.5)
}
