package geometry

// Box is an axis-aligned face bounding box in source-frame pixel
// coordinates with a detection confidence in [0,1].
type Box struct {
	X     int
	Y     int
	W     int
	H     int
	Score float64
}

// Area returns the box area in pixels.
func (b Box) Area() int {
	return b.W * b.H
}

// CenterX returns the horizontal center of the box.
func (b Box) CenterX() float64 {
	return float64(b.X) + float64(b.W)/2
}

// Rect is a crop window in source-frame coordinates.
type Rect struct {
	X      int
	Y      int
	Width  int
	Height int
}

// Target holds the output canvas dimensions, computed once per video.
type Target struct {
	Width  int
	Height int
}

// Valid reports whether the target is large enough to encode.
func (t Target) Valid() bool {
	return t.Width >= 2 && t.Height >= 2
}

// Clamp saturates v to [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// ClampInt saturates v to [lo, hi].
func ClampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// FitPortrait computes the 9:16 height-preserving output geometry for a
// source frame. Width and height are rounded down to even values for the
// encoder; width is capped at the source width.
func FitPortrait(srcW, srcH int) Target {
	targetH := srcH
	targetW := targetH * 9 / 16
	if targetW > srcW {
		targetW = srcW
	}
	targetW -= targetW % 2
	targetH -= targetH % 2
	return Target{Width: targetW, Height: targetH}
}

// NormalizeFaces filters and clamps raw detector boxes against the frame
// bounds. Boxes below minScore are dropped, the rest are clamped fully
// inside the frame, and boxes whose clamped area falls below minAreaRatio
// of the frame area are dropped. Order is preserved.
func NormalizeFaces(boxes []Box, frameW, frameH int, minScore, minAreaRatio float64) []Box {
	minArea := float64(frameW) * float64(frameH) * minAreaRatio
	normalized := make([]Box, 0, len(boxes))
	for _, b := range boxes {
		if b.Score < minScore {
			continue
		}
		x := ClampInt(b.X, 0, frameW-1)
		y := ClampInt(b.Y, 0, frameH-1)
		w := ClampInt(b.W, 1, frameW-x)
		h := ClampInt(b.H, 1, frameH-y)
		if float64(w*h) < minArea {
			continue
		}
		normalized = append(normalized, Box{X: x, Y: y, W: w, H: h, Score: b.Score})
	}
	return normalized
}
