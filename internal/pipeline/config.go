package pipeline

import (
	"fmt"

	"github.com/ironsheep/meterscan/internal/detection"
	"github.com/ironsheep/meterscan/internal/imaging"
	"github.com/ironsheep/meterscan/internal/ocr"
)

// Config tunes every stage of the pipeline.
type Config struct {
	// Margins added around each mark before recognition. The crop grows
	// ExpansionX on both sides, 3*ExpansionY above and ExpansionY below.
	ExpansionX int
	ExpansionY int

	// Marker color selection.
	RedHueRanges    []imaging.HueRange
	SaturationFloor uint8
	ValueFloor      uint8
	KernelSize      int

	// Size filter; both bounds are exclusive.
	MinRectWidth  int
	MinRectHeight int

	// Recognition.
	Whitelist      string
	Language       string
	RegionContrast float64
	FullContrast   float64
	Sharpness      float64

	// Workers > 1 recognizes regions concurrently.
	Workers int

	// Detector names a registered detection backend.
	Detector string
}

// DefaultConfig returns the settings tuned for red marks on meter photos.
func DefaultConfig() Config {
	d := detection.DefaultOptions()
	return Config{
		ExpansionX:      10,
		ExpansionY:      5,
		RedHueRanges:    d.Threshold.Hues,
		SaturationFloor: d.Threshold.SaturationFloor,
		ValueFloor:      d.Threshold.ValueFloor,
		KernelSize:      d.KernelSize,
		MinRectWidth:    d.MinWidth,
		MinRectHeight:   d.MinHeight,
		Whitelist:       ocr.DefaultWhitelist,
		Language:        ocr.DefaultLanguage,
		RegionContrast:  2.0,
		FullContrast:    1.5,
		Sharpness:       2.0,
		Workers:         1,
		Detector:        "go",
	}
}

// Validate rejects configurations that cannot produce a result.
func (c Config) Validate() error {
	if c.ExpansionX < 0 || c.ExpansionY < 0 {
		return fmt.Errorf("expansion margins must not be negative (got %d, %d)", c.ExpansionX, c.ExpansionY)
	}
	if c.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", c.Workers)
	}
	if c.RegionContrast < 0 || c.FullContrast < 0 || c.Sharpness < 0 {
		return fmt.Errorf("enhancement factors must not be negative")
	}
	return c.DetectionOptions().Validate()
}

// DetectionOptions extracts the detector settings.
func (c Config) DetectionOptions() detection.Options {
	return detection.Options{
		Threshold: imaging.HSVThreshold{
			Hues:            c.RedHueRanges,
			SaturationFloor: c.SaturationFloor,
			ValueFloor:      c.ValueFloor,
		},
		KernelSize: c.KernelSize,
		MinWidth:   c.MinRectWidth,
		MinHeight:  c.MinRectHeight,
	}
}

func (c Config) regionProfile() ocr.Profile {
	p := ocr.RegionProfile(c.Language, c.Whitelist)
	p.Contrast = c.RegionContrast
	p.Sharpness = c.Sharpness
	return p
}

func (c Config) fullProfile() ocr.Profile {
	p := ocr.DocumentProfile(c.Language)
	p.Contrast = c.FullContrast
	p.Sharpness = c.Sharpness
	return p
}
