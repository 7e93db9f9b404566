// Package motion estimates dense motion between consecutive luma rasters
// and aggregates it into a horizontal activity profile. The estimator is a
// block matcher: cheap, deterministic, and good enough to locate where on
// screen content is changing, which is all the pan planner needs.
package motion

import (
	"fmt"
	"image"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

const (
	blockSize    = 16
	searchRadius = 7
)

// Field is a dense 2D motion field at the resolution of the input lumas.
// Every pixel carries the displacement of the block containing it.
type Field struct {
	W, H int
	DX   []float32
	DY   []float32
}

// Estimate computes the motion field between two equally sized luma
// rasters. Each block of the current frame is matched against a search
// window in the previous frame; the zero displacement wins ties so static
// regions stay static.
func Estimate(prev, curr *image.Gray) (*Field, error) {
	if prev.Bounds().Size() != curr.Bounds().Size() {
		return nil, fmt.Errorf("luma size mismatch: %v vs %v",
			prev.Bounds().Size(), curr.Bounds().Size())
	}

	w := curr.Bounds().Dx()
	h := curr.Bounds().Dy()
	field := &Field{
		W:  w,
		H:  h,
		DX: make([]float32, w*h),
		DY: make([]float32, w*h),
	}

	for by := 0; by < h; by += blockSize {
		bh := blockSize
		if by+bh > h {
			bh = h - by
		}
		for bx := 0; bx < w; bx += blockSize {
			bw := blockSize
			if bx+bw > w {
				bw = w - bx
			}

			dx, dy := matchBlock(prev, curr, bx, by, bw, bh)
			fillBlock(field, bx, by, bw, bh, dx, dy)
		}
	}

	return field, nil
}

// matchBlock finds the displacement that moves content from the previous
// frame onto the current block.
func matchBlock(prev, curr *image.Gray, bx, by, bw, bh int) (float32, float32) {
	w := curr.Bounds().Dx()
	h := curr.Bounds().Dy()

	best := sad(prev, curr, bx, by, bw, bh, 0, 0)
	bestOX, bestOY := 0, 0

	for oy := -searchRadius; oy <= searchRadius; oy++ {
		if by+oy < 0 || by+oy+bh > h {
			continue
		}
		for ox := -searchRadius; ox <= searchRadius; ox++ {
			if ox == 0 && oy == 0 {
				continue
			}
			if bx+ox < 0 || bx+ox+bw > w {
				continue
			}
			if s := sad(prev, curr, bx, by, bw, bh, ox, oy); s < best {
				best = s
				bestOX, bestOY = ox, oy
			}
		}
	}

	// The block matched prev content at offset (ox,oy), so the content
	// itself moved the opposite way.
	return float32(-bestOX), float32(-bestOY)
}

// sad computes the sum of absolute differences between the current block
// and the previous frame shifted by (ox, oy).
func sad(prev, curr *image.Gray, bx, by, bw, bh, ox, oy int) int {
	total := 0
	for y := 0; y < bh; y++ {
		currRow := curr.Pix[(by+y)*curr.Stride+bx : (by+y)*curr.Stride+bx+bw]
		prevRow := prev.Pix[(by+y+oy)*prev.Stride+bx+ox : (by+y+oy)*prev.Stride+bx+ox+bw]
		for x := 0; x < bw; x++ {
			d := int(currRow[x]) - int(prevRow[x])
			if d < 0 {
				d = -d
			}
			total += d
		}
	}
	return total
}

func fillBlock(f *Field, bx, by, bw, bh int, dx, dy float32) {
	for y := by; y < by+bh; y++ {
		row := y * f.W
		for x := bx; x < bx+bw; x++ {
			f.DX[row+x] = dx
			f.DY[row+x] = dy
		}
	}
}

// Magnitude returns the per-pixel motion magnitude.
func (f *Field) Magnitude() []float64 {
	mag := make([]float64, len(f.DX))
	for i := range f.DX {
		dx := float64(f.DX[i])
		dy := float64(f.DY[i])
		mag[i] = math.Sqrt(dx*dx + dy*dy)
	}
	return mag
}

// ColumnProfile sums per-pixel magnitude over rows, counting only pixels
// whose magnitude exceeds the threshold. The result has one entry per
// column; an all-zero profile means no significant motion.
func ColumnProfile(mag []float64, w, h int, threshold float64) []float64 {
	profile := make([]float64, w)
	for y := 0; y < h; y++ {
		row := mag[y*w : (y+1)*w]
		for x, m := range row {
			if m > threshold {
				profile[x] += m
			}
		}
	}
	return profile
}

// Centroid returns the motion-weighted average column index of a profile.
// The second return is false when the profile carries no weight.
func Centroid(profile []float64) (float64, bool) {
	if floats.Sum(profile) <= 0 {
		return 0, false
	}
	cols := make([]float64, len(profile))
	floats.Span(cols, 0, float64(len(profile)-1))
	return stat.Mean(cols, profile), true
}
