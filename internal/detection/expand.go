package detection

// Expand grows r so the crop also covers text sitting above a mark and a
// little to each side of it: marginX on the left and right, three times
// marginY above and marginY below.
//
// Each edge is clamped to the width x height image independently, so the
// result always contains the part of r inside the image. Width and height
// never go negative.
func Expand(r Rect, width, height, marginX, marginY int) Rect {
	left := clamp(r.X-marginX, 0, width)
	right := clamp(r.X+r.Width+marginX, 0, width)
	top := clamp(r.Y-3*marginY, 0, height)
	bottom := clamp(r.Y+r.Height+marginY, 0, height)

	return Rect{
		X:      left,
		Y:      top,
		Width:  max(right-left, 0),
		Height: max(bottom-top, 0),
	}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
