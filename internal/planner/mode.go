package planner

import (
	"context"
	"image"
	"math"
	"sort"

	"github.com/rs/zerolog"

	"github.com/voxline/reframe/internal/config"
	"github.com/voxline/reframe/internal/detect"
	"github.com/voxline/reframe/internal/geometry"
)

// Mode identifies which planning strategy a video gets.
type Mode int

const (
	// ModeFace pans after detected faces.
	ModeFace Mode = iota
	// ModeScreen pans after dense motion; used when no face is ever seen.
	ModeScreen
)

func (m Mode) String() string {
	switch m {
	case ModeFace:
		return "face"
	case ModeScreen:
		return "screen"
	default:
		return "unknown"
	}
}

// ParseMode maps a CLI mode string to a Mode. The second return is false
// for anything other than "face" or "screen".
func ParseMode(s string) (Mode, bool) {
	switch s {
	case "face":
		return ModeFace, true
	case "screen":
		return ModeScreen, true
	default:
		return 0, false
	}
}

// FrameSampler provides the two frame access patterns sparse sampling
// needs: random access when the frame count is known, and a sequential
// read of the leading frames when it is not.
type FrameSampler interface {
	FrameAt(ctx context.Context, index int) (*image.RGBA, error)
	LeadingFrames(ctx context.Context, n int) ([]*image.RGBA, error)
}

// Selection is the outcome of mode selection. FaceCenters holds the
// horizontal center of the best face per sampled frame; it is informational
// only, the planners re-detect independently.
type Selection struct {
	Mode        Mode
	FaceCenters []int
}

// SelectMode sparse-samples frames across the video and picks face tracking
// if any sample yields a usable detection. A nil detector selects screen
// mode immediately. A known frame count spreads samples evenly over the
// video; an unknown count reads the first frames sequentially instead,
// because seeking needs timestamps derived from a frame rate that may
// itself be a guess.
func SelectMode(ctx context.Context, logger zerolog.Logger, detector detect.Detector, sampler FrameSampler, frameCount int, tuning config.TuningConfig) Selection {
	log := logger.With().Str("component", "mode-selector").Logger()

	if detector == nil {
		log.Info().Msg("no detector available, selecting screen mode")
		return Selection{Mode: ModeScreen}
	}

	var centers []int
	samples := 0

	if frameCount <= 0 {
		frames, err := sampler.LeadingFrames(ctx, tuning.ModeSampleCount)
		if err != nil {
			log.Warn().Err(err).Msg("leading frame read failed, selecting screen mode")
			return Selection{Mode: ModeScreen}
		}
		samples = len(frames)
		for i, frame := range frames {
			if center, ok := sampleFace(log, detector, frame, i, tuning); ok {
				centers = append(centers, center)
			}
		}
	} else {
		indices := sampleIndices(frameCount, tuning.ModeSampleCount)
		samples = len(indices)
		for _, idx := range indices {
			frame, err := sampler.FrameAt(ctx, idx)
			if err != nil {
				log.Debug().Err(err).Int("index", idx).Msg("sample unavailable")
				continue
			}
			if center, ok := sampleFace(log, detector, frame, idx, tuning); ok {
				centers = append(centers, center)
			}
		}
	}

	if len(centers) > 0 {
		log.Info().Int("samples_with_faces", len(centers)).Msg("selected face mode")
		return Selection{Mode: ModeFace, FaceCenters: centers}
	}

	log.Info().Int("samples", samples).Msg("no faces found in samples, selected screen mode")
	return Selection{Mode: ModeScreen}
}

// sampleFace detects on one sampled frame and returns the center of the
// largest usable face. Detection failures degrade to "no face".
func sampleFace(log zerolog.Logger, detector detect.Detector, frame *image.RGBA, index int, tuning config.TuningConfig) (int, bool) {
	boxes, err := detector.Detect(frame)
	if err != nil {
		log.Debug().Err(err).Int("index", index).Msg("sample detection failed")
		return 0, false
	}

	frameW := frame.Bounds().Dx()
	frameH := frame.Bounds().Dy()
	faces := geometry.NormalizeFaces(boxes, frameW, frameH, tuning.MinFaceScore, tuning.MinFaceAreaRatio)
	if len(faces) == 0 {
		return 0, false
	}

	sort.SliceStable(faces, func(i, j int) bool {
		return faces[i].Area() > faces[j].Area()
	})
	return int(faces[0].CenterX()), true
}

// sampleIndices spreads up to maxSamples indices evenly over a known frame
// range.
func sampleIndices(frameCount, maxSamples int) []int {
	count := maxSamples
	if frameCount < count {
		count = frameCount
	}
	indices := make([]int, 0, count)
	if count == 1 {
		return append(indices, 0)
	}

	step := float64(frameCount-1) / float64(count-1)
	for i := 0; i < count; i++ {
		indices = append(indices, int(math.Round(float64(i)*step)))
	}
	return indices
}
