package planner

import (
	"context"
	"image"
	"io"
	"testing"

	"github.com/rs/zerolog"

	"github.com/voxline/reframe/internal/geometry"
)

// fakeSampler serves blank frames for any index below frameCount and
// records which access pattern was used.
type fakeSampler struct {
	frameCount   int
	w, h         int
	requested    []int
	leadingCalls int
}

func (s *fakeSampler) FrameAt(ctx context.Context, index int) (*image.RGBA, error) {
	s.requested = append(s.requested, index)
	if s.frameCount > 0 && index >= s.frameCount {
		return nil, io.EOF
	}
	return blankFrame(s.w, s.h), nil
}

func (s *fakeSampler) LeadingFrames(ctx context.Context, n int) ([]*image.RGBA, error) {
	s.leadingCalls++
	if s.frameCount > 0 && s.frameCount < n {
		n = s.frameCount
	}
	frames := make([]*image.RGBA, n)
	for i := range frames {
		frames[i] = blankFrame(s.w, s.h)
	}
	return frames, nil
}

func TestSelectModeNilDetector(t *testing.T) {
	sel := SelectMode(context.Background(), zerolog.Nop(), nil, nil, 90, testTuning())
	if sel.Mode != ModeScreen {
		t.Errorf("mode = %v, want screen", sel.Mode)
	}
}

func TestSelectModeFacesFound(t *testing.T) {
	sampler := &fakeSampler{frameCount: 90, w: 64, h: 64}
	det := &fakeDetector{boxes: func(int) []geometry.Box {
		return []geometry.Box{{X: 16, Y: 16, W: 24, H: 24, Score: 0.9}}
	}}

	sel := SelectMode(context.Background(), zerolog.Nop(), det, sampler, 90, testTuning())
	if sel.Mode != ModeFace {
		t.Fatalf("mode = %v, want face", sel.Mode)
	}
	if len(sel.FaceCenters) != 12 {
		t.Errorf("got %d face centers, want one per sample (12)", len(sel.FaceCenters))
	}
	for i, c := range sel.FaceCenters {
		if c != 28 {
			t.Errorf("center[%d] = %d, want 28", i, c)
		}
	}
}

func TestSelectModeNoFaces(t *testing.T) {
	sampler := &fakeSampler{frameCount: 90, w: 64, h: 64}
	det := &fakeDetector{boxes: func(int) []geometry.Box { return nil }}

	sel := SelectMode(context.Background(), zerolog.Nop(), det, sampler, 90, testTuning())
	if sel.Mode != ModeScreen {
		t.Errorf("mode = %v, want screen", sel.Mode)
	}
	if det.calls != 12 {
		t.Errorf("detector ran %d times, want 12", det.calls)
	}
}

func TestSelectModeDetectorErrorsFallBack(t *testing.T) {
	sampler := &fakeSampler{frameCount: 90, w: 64, h: 64}
	det := &erroringDetector{}

	sel := SelectMode(context.Background(), zerolog.Nop(), det, sampler, 90, testTuning())
	if sel.Mode != ModeScreen {
		t.Errorf("mode = %v, want screen when every sample detection fails", sel.Mode)
	}
}

func TestSelectModeIgnoresTinyFaces(t *testing.T) {
	sampler := &fakeSampler{frameCount: 90, w: 64, h: 64}
	// 1x1 in a 64x64 frame is below the minimum area ratio.
	det := &fakeDetector{boxes: func(int) []geometry.Box {
		return []geometry.Box{{X: 30, Y: 30, W: 1, H: 1, Score: 0.99}}
	}}

	sel := SelectMode(context.Background(), zerolog.Nop(), det, sampler, 90, testTuning())
	if sel.Mode != ModeScreen {
		t.Errorf("mode = %v, want screen", sel.Mode)
	}
}

func TestSelectModeSampleFailuresSkipped(t *testing.T) {
	// Only one frame exists; the remaining samples error out but the
	// single detection still selects face mode.
	sampler := &fakeSampler{frameCount: 1, w: 64, h: 64}
	det := &fakeDetector{boxes: func(int) []geometry.Box {
		return []geometry.Box{{X: 16, Y: 16, W: 24, H: 24, Score: 0.9}}
	}}

	sel := SelectMode(context.Background(), zerolog.Nop(), det, sampler, 1, testTuning())
	if sel.Mode != ModeFace {
		t.Fatalf("mode = %v, want face", sel.Mode)
	}
	if len(sel.FaceCenters) != 1 {
		t.Errorf("got %d face centers, want 1", len(sel.FaceCenters))
	}
}

// An unknown frame count must not drive timestamp-based seeks; the
// selector reads the leading frames sequentially instead.
func TestSelectModeUnknownCountReadsSequentially(t *testing.T) {
	sampler := &fakeSampler{frameCount: 0, w: 64, h: 64}
	det := &fakeDetector{boxes: func(int) []geometry.Box {
		return []geometry.Box{{X: 16, Y: 16, W: 24, H: 24, Score: 0.9}}
	}}

	sel := SelectMode(context.Background(), zerolog.Nop(), det, sampler, 0, testTuning())
	if sel.Mode != ModeFace {
		t.Fatalf("mode = %v, want face", sel.Mode)
	}
	if sampler.leadingCalls != 1 {
		t.Errorf("leading reads = %d, want 1", sampler.leadingCalls)
	}
	if len(sampler.requested) != 0 {
		t.Errorf("seeked to indices %v, want no seeks with an unknown frame count", sampler.requested)
	}
	if len(sel.FaceCenters) != 12 {
		t.Errorf("got %d face centers, want 12", len(sel.FaceCenters))
	}
}

func TestSampleIndices(t *testing.T) {
	tests := []struct {
		name       string
		frameCount int
		max        int
		want       []int
	}{
		{"short video", 5, 12, []int{0, 1, 2, 3, 4}},
		{"single frame", 1, 12, []int{0}},
		{"two samples", 100, 2, []int{0, 99}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := sampleIndices(tt.frameCount, tt.max)
			if len(got) != len(tt.want) {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Fatalf("got %v, want %v", got, tt.want)
				}
			}
		})
	}
}

func TestSampleIndicesSpread(t *testing.T) {
	got := sampleIndices(90, 12)
	if len(got) != 12 {
		t.Fatalf("got %d indices, want 12", len(got))
	}
	if got[0] != 0 || got[len(got)-1] != 89 {
		t.Errorf("indices %v must span the full range [0, 89]", got)
	}
	for i := 1; i < len(got); i++ {
		if got[i] <= got[i-1] {
			t.Errorf("indices %v must be strictly increasing", got)
			break
		}
	}
}
