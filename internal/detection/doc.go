// Package detection locates coloured marks on meter photographs and turns
// them into crop rectangles.
//
// # Mark Detection
//
// A Detector returns the bounding rectangles of marked regions sorted top to
// bottom. Two backends exist:
//
//   - "go": ColorDetector, pure Go on top of the imaging package
//   - "opencv": OpenCVDetector, only compiled with -tags opencv
//
// Both follow the same pipeline:
//
//  1. Threshold: per-pixel HSV test against each configured hue interval,
//     masks unioned
//  2. Cleanup: morphological closing then opening with a small square element
//  3. Components: bounding rectangle of every external connected component
//  4. Filtering: rectangles must be strictly larger than the minimum size
//  5. Ordering: stable sort by top edge
//
// # Expansion
//
// Marks usually underline or box the digits, so Expand grows each rectangle
// three times as much upward as downward before the text is cropped.
//
// # Coordinate System
//
// All coordinates use the standard image convention:
//   - Origin (0, 0) at top-left corner
//   - X increases rightward
//   - Y increases downward
package detection
