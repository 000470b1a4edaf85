// Package ocr turns image regions into text.
//
// The package defines the Engine interface and the Extractor that feeds it.
// The Tesseract implementation lives in the tesseract subpackage so that
// code depending only on the interface builds without cgo.
//
// # Recognition Profiles
//
// Two profiles cover the pipeline's modes:
//
//   - RegionProfile: crop around one mark, contrast 2.0, sharpness 2.0,
//     single line layout, character whitelist
//   - DocumentProfile: whole image, contrast 1.5, sharpness 2.0, block
//     layout, no whitelist
//
// # Preprocessing
//
// Every crop is converted to grayscale, then contrast and sharpness are
// boosted before recognition. See the imaging package for the exact
// definitions of both factors.
//
// # Error Handling
//
// Extract never returns an error. A region that cannot be read is reported
// as empty text and logged at warn level, so one bad mark does not spoil the
// rest of a meter photo.
//
// # Languages
//
// Language codes are Tesseract codes ("spa", "eng", "spa+eng"). The matching
// traineddata files must be installed, e.g. apt-get install tesseract-ocr-spa.
package ocr
