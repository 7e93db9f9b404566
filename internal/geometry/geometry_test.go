package geometry

import "testing"

func TestClamp(t *testing.T) {
	tests := []struct {
		v, lo, hi, want float64
	}{
		{5, 0, 10, 5},
		{-3, 0, 10, 0},
		{42, 0, 10, 10},
		{0, 0, 0, 0},
	}

	for _, tt := range tests {
		if got := Clamp(tt.v, tt.lo, tt.hi); got != tt.want {
			t.Errorf("Clamp(%v, %v, %v) = %v, want %v", tt.v, tt.lo, tt.hi, got, tt.want)
		}
	}
}

func TestFitPortrait(t *testing.T) {
	tests := []struct {
		name         string
		srcW, srcH   int
		wantW, wantH int
	}{
		{"1080p", 1920, 1080, 606, 1080},
		{"720p", 1280, 720, 404, 720},
		{"4k", 3840, 2160, 1214, 2160},
		{"narrow source caps width", 400, 1080, 400, 1080},
		{"odd height rounds down", 1920, 1081, 608, 1080},
		{"smallest valid source", 4, 4, 2, 4},
		{"tiny source evens down to invalid", 2, 2, 0, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FitPortrait(tt.srcW, tt.srcH)
			if got.Width != tt.wantW || got.Height != tt.wantH {
				t.Errorf("FitPortrait(%d, %d) = %dx%d, want %dx%d",
					tt.srcW, tt.srcH, got.Width, got.Height, tt.wantW, tt.wantH)
			}
		})
	}
}

// Target dimensions must always be even and never exceed the source.
func TestFitPortraitAlwaysEvenAndBounded(t *testing.T) {
	for srcW := 2; srcW <= 130; srcW += 7 {
		for srcH := 2; srcH <= 130; srcH += 7 {
			got := FitPortrait(srcW, srcH)
			if got.Width%2 != 0 || got.Height%2 != 0 {
				t.Fatalf("FitPortrait(%d, %d) = %dx%d: dimensions not even",
					srcW, srcH, got.Width, got.Height)
			}
			if got.Width > srcW || got.Height > srcH {
				t.Fatalf("FitPortrait(%d, %d) = %dx%d: exceeds source",
					srcW, srcH, got.Width, got.Height)
			}
		}
	}
}

// Sources too narrow to yield an even crop width produce a target that
// fails validation rather than a degenerate encode.
func TestTargetValid(t *testing.T) {
	if FitPortrait(2, 2).Valid() {
		t.Error("2x2 source must yield an invalid target")
	}
	if !FitPortrait(4, 4).Valid() {
		t.Error("4x4 source must yield a valid target")
	}
	if (Target{Width: 606, Height: 1080}).Valid() != true {
		t.Error("1080p target must be valid")
	}
}

func TestNormalizeFacesDropsLowScore(t *testing.T) {
	boxes := []Box{
		{X: 100, Y: 100, W: 200, H: 200, Score: 0.4},
		{X: 100, Y: 100, W: 200, H: 200, Score: 0.9},
	}

	got := NormalizeFaces(boxes, 1920, 1080, 0.5, 0.001)
	if len(got) != 1 {
		t.Fatalf("expected 1 box, got %d", len(got))
	}
	if got[0].Score != 0.9 {
		t.Errorf("kept the wrong box: score %v", got[0].Score)
	}
}

func TestNormalizeFacesDropsTinyBoxes(t *testing.T) {
	boxes := []Box{
		{X: 10, Y: 10, W: 4, H: 4, Score: 0.9}, // 16px on a 1920x1080 frame
	}

	got := NormalizeFaces(boxes, 1920, 1080, 0.5, 0.001)
	if len(got) != 0 {
		t.Fatalf("expected tiny box dropped, got %d boxes", len(got))
	}
}

// Normalized boxes must lie fully inside the frame for any raw input,
// including negative and over-large coordinates.
func TestNormalizeFacesClampsInsideFrame(t *testing.T) {
	const frameW, frameH = 640, 480
	boxes := []Box{
		{X: -50, Y: -50, W: 300, H: 300, Score: 1.0},
		{X: 600, Y: 400, W: 500, H: 500, Score: 1.0},
		{X: 0, Y: 0, W: 10000, H: 10000, Score: 1.0},
		{X: 639, Y: 479, W: 1, H: 1, Score: 1.0},
	}

	got := NormalizeFaces(boxes, frameW, frameH, 0.5, 0.0)
	for i, b := range got {
		if b.X < 0 || b.Y < 0 || b.X+b.W > frameW || b.Y+b.H > frameH {
			t.Errorf("box %d not inside frame: %+v", i, b)
		}
		if b.W < 1 || b.H < 1 {
			t.Errorf("box %d degenerate: %+v", i, b)
		}
	}
}

func TestNormalizeFacesPreservesOrder(t *testing.T) {
	boxes := []Box{
		{X: 500, Y: 100, W: 100, H: 100, Score: 0.9},
		{X: 100, Y: 100, W: 100, H: 100, Score: 0.8},
		{X: 900, Y: 100, W: 100, H: 100, Score: 0.7},
	}

	got := NormalizeFaces(boxes, 1920, 1080, 0.5, 0.001)
	if len(got) != 3 {
		t.Fatalf("expected 3 boxes, got %d", len(got))
	}
	for i := range got {
		if got[i].X != boxes[i].X {
			t.Errorf("order not preserved at index %d", i)
		}
	}
}
