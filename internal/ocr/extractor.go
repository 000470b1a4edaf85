package ocr

import (
	"context"
	"fmt"
	"image"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/ironsheep/meterscan/internal/imaging"
)

// Profile bundles the preprocessing and engine settings of one
// recognition mode.
type Profile struct {
	Language  string
	Layout    Layout
	Whitelist string
	Contrast  float64
	Sharpness float64
}

// RegionProfile is used on the crop around a single mark.
func RegionProfile(language, whitelist string) Profile {
	return Profile{
		Language:  language,
		Layout:    LayoutSingleLine,
		Whitelist: whitelist,
		Contrast:  2.0,
		Sharpness: 2.0,
	}
}

// DocumentProfile is used when a whole image is recognized at once.
func DocumentProfile(language string) Profile {
	return Profile{
		Language:  language,
		Layout:    LayoutBlock,
		Contrast:  1.5,
		Sharpness: 2.0,
	}
}

// Extractor crops, preprocesses and recognizes image regions.
type Extractor struct {
	engine Engine
	log    *logrus.Entry
}

// NewExtractor creates an Extractor. A nil log uses the standard logger.
func NewExtractor(engine Engine, log *logrus.Entry) *Extractor {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Extractor{engine: engine, log: log}
}

// Engine returns the recognition engine.
func (x *Extractor) Engine() Engine {
	return x.engine
}

// Extract returns the trimmed text inside region of img. A crop that falls
// outside the image, an engine failure, or a panicking engine all yield "";
// failures are logged and never returned.
func (x *Extractor) Extract(ctx context.Context, img image.Image, region image.Rectangle, p Profile) (text string) {
	log := x.log.WithFields(logrus.Fields{
		"engine": x.engine.Name(),
		"region": region.String(),
		"layout": p.Layout.String(),
	})

	defer func() {
		if r := recover(); r != nil {
			log.WithField("panic", fmt.Sprint(r)).Error("recognition panicked")
			text = ""
		}
	}()

	crop, err := imaging.Crop(img, region)
	if err != nil {
		log.WithError(err).Debug("nothing to recognize")
		return ""
	}

	enhanced := imaging.Enhance(crop, p.Contrast, p.Sharpness)

	raw, err := x.engine.Recognize(ctx, Request{
		Image:     enhanced,
		Language:  p.Language,
		Layout:    p.Layout,
		Whitelist: p.Whitelist,
	})
	if err != nil {
		log.WithError(err).Warn("recognition failed")
		return ""
	}

	text = strings.TrimSpace(raw)
	log.WithField("chars", len([]rune(text))).Debug("region recognized")
	return text
}
