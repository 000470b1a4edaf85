//go:build opencv

package detection

import (
	"image"
	"math"

	"gocv.io/x/gocv"
)

func init() {
	Register("opencv", func(o Options) Detector { return NewOpenCVDetector(o) })
}

// OpenCVDetector runs mark detection through OpenCV. It implements the same
// algorithm as ColorDetector and is selected with the "opencv" backend when
// the binary is built with -tags opencv.
type OpenCVDetector struct {
	opts Options
}

// NewOpenCVDetector creates an OpenCVDetector.
func NewOpenCVDetector(opts Options) *OpenCVDetector {
	return &OpenCVDetector{opts: opts}
}

// Detect locates marked regions.
func (d *OpenCVDetector) Detect(img image.Image) ([]Rect, error) {
	if err := d.opts.Validate(); err != nil {
		return nil, err
	}

	src := imageToMat(img)
	defer src.Close()

	hsv := gocv.NewMat()
	defer hsv.Close()
	gocv.CvtColor(src, &hsv, gocv.ColorBGRToHSV)

	mask := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0), hsv.Rows(), hsv.Cols(), gocv.MatTypeCV8U)
	defer mask.Close()

	th := d.opts.Threshold
	for _, hr := range th.Hues {
		part := gocv.NewMat()
		// 8-bit OpenCV hue is degrees halved.
		gocv.InRangeWithScalar(hsv,
			gocv.NewScalar(math.Floor(hr.Min/2), float64(th.SaturationFloor), float64(th.ValueFloor), 0),
			gocv.NewScalar(math.Ceil(hr.Max/2), 255, 255, 0),
			&part)
		gocv.BitwiseOr(mask, part, &mask)
		part.Close()
	}

	kernel := gocv.GetStructuringElement(gocv.MorphRect, image.Point{d.opts.KernelSize, d.opts.KernelSize})
	defer kernel.Close()
	gocv.MorphologyEx(mask, &mask, gocv.MorphClose, kernel)
	gocv.MorphologyEx(mask, &mask, gocv.MorphOpen, kernel)

	contours := gocv.FindContours(mask, gocv.RetrievalExternal, gocv.ChainApproxSimple)
	defer contours.Close()

	origin := img.Bounds().Min
	rects := make([]Rect, 0, contours.Size())
	for i := 0; i < contours.Size(); i++ {
		r := FromRectangle(gocv.BoundingRect(contours.At(i)))
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

// imageToMat converts a Go image to a BGR gocv.Mat.
func imageToMat(img image.Image) gocv.Mat {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()

	mat := gocv.NewMatWithSize(h, w, gocv.MatTypeCV8UC3)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			r, g, b, _ := img.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
			mat.SetUCharAt(y, x*3+0, uint8(b>>8))
			mat.SetUCharAt(y, x*3+1, uint8(g>>8))
			mat.SetUCharAt(y, x*3+2, uint8(r>>8))
		}
	}
	return mat
}
