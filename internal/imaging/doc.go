// Package imaging provides the pixel-level operations of the meter reading pipeline.
//
// It covers decoding (with EXIF orientation and an extension-based fallback),
// HSV thresholding, binary morphology, cropping, recognition preprocessing and
// the debug overlay. All operations work with standard Go image.Image types and
// use a coordinate system where (0,0) is at the top-left corner, X increases
// rightward, and Y increases downward.
//
// # Purity
//
// Every operation returns a new buffer. Inputs are never modified, so a decoded
// image can be shared between goroutines and cached by ImageCache.
//
// # Masks
//
// Binary masks are *image.Gray values with origin (0,0): 255 marks a pixel,
// 0 leaves it unmarked. ThresholdMask, Close and Open all produce masks in this
// form.
//
// # Preprocessing
//
// Grayscale, Contrast and Sharpness form the chain run before recognition.
// Contrast blends each pixel with the mean intensity of the image; Sharpness
// blends it with a 3x3 smoothed copy. A factor of 1.0 leaves the image as is
// for both.
package imaging
