package planner

import (
	"image"
	"math"
	"sort"

	"github.com/rs/zerolog"

	"github.com/voxline/reframe/internal/config"
	"github.com/voxline/reframe/internal/detect"
	"github.com/voxline/reframe/internal/geometry"
)

// Detection-level hysteresis weights: a candidate loses score the further
// it sits from the previous center and gains a little for detector
// confidence. This keeps the planner on the same subject between frames
// independently of the temporal smoothing.
const (
	distancePenaltyWeight = 0.2
	confidenceBonusWeight = 0.01
)

// FacePlanner pans a fixed-size crop window to follow the dominant face.
// Detections run at a sparse interval; every frame the crop center eases
// toward the latest detection target with an exponential filter, so the
// output reads as a deliberate camera pan rather than jitter.
type FacePlanner struct {
	logger   zerolog.Logger
	detector detect.Detector
	tuning   config.TuningConfig

	frameW, frameH   int
	target           geometry.Target
	interval         int
	alpha            float64
	missingThreshold int

	smoothedCenter float64
	targetCenter   float64
	missingRun     int
	havePrev       bool
	frameIdx       int
}

// NewFacePlanner prepares a face-tracking pass over a video with the given
// geometry and frame rate.
func NewFacePlanner(logger zerolog.Logger, detector detect.Detector, tuning config.TuningConfig, frameW, frameH int, fps float64, target geometry.Target) *FacePlanner {
	interval := int(math.Round(fps * 0.5))
	if interval < 1 {
		interval = 1
	}

	// Higher frame rates need proportionally less per-frame correction;
	// the bounds keep the pan from lagging or jittering at the extremes.
	alpha := geometry.Clamp(5.0/fps, 0.05, 0.3)

	center := float64(frameW) / 2

	return &FacePlanner{
		logger:           logger.With().Str("component", "face-planner").Logger(),
		detector:         detector,
		tuning:           tuning,
		frameW:           frameW,
		frameH:           frameH,
		target:           target,
		interval:         interval,
		alpha:            alpha,
		missingThreshold: int(math.Round(fps * tuning.MissingFaceSeconds)),
		smoothedCenter:   center,
		targetCenter:     center,
	}
}

// Plan advances the planner by one frame and returns the crop window for
// it. Frames must be fed strictly in order.
func (p *FacePlanner) Plan(frame *image.RGBA) geometry.Rect {
	if p.frameIdx%p.interval == 0 {
		p.updateTarget(frame)
	}

	halfW := float64(p.target.Width) / 2
	p.targetCenter = geometry.Clamp(p.targetCenter, halfW, float64(p.frameW)-halfW)
	p.smoothedCenter += (p.targetCenter - p.smoothedCenter) * p.alpha

	cropX := int(math.Round(p.smoothedCenter - halfW))
	cropX = geometry.ClampInt(cropX, 0, p.frameW-p.target.Width)

	p.frameIdx++
	return geometry.Rect{X: cropX, Y: 0, Width: p.target.Width, Height: p.target.Height}
}

// updateTarget runs a detection and moves the pan target. A failed or
// empty detection counts toward the missing run; once the subject has been
// lost for long enough the crop recenters as a fail-safe.
func (p *FacePlanner) updateTarget(frame *image.RGBA) {
	boxes, err := p.detector.Detect(frame)
	if err != nil {
		p.logger.Warn().Err(err).Int("frame", p.frameIdx).Msg("detection failed, treating as no faces")
		boxes = nil
	}
	faces := geometry.NormalizeFaces(boxes, p.frameW, p.frameH, p.tuning.MinFaceScore, p.tuning.MinFaceAreaRatio)

	var prev *float64
	if p.havePrev {
		c := p.smoothedCenter
		prev = &c
	}

	center, ok := PickFaceCenter(faces, prev, p.frameW, p.frameH, p.target.Width, p.tuning)
	if ok {
		p.targetCenter = center
		p.missingRun = 0
		p.havePrev = true
		return
	}

	p.missingRun += p.interval
	if p.missingRun >= p.missingThreshold {
		p.targetCenter = float64(p.frameW) / 2
	}
}

// PickFaceCenter chooses the horizontal center the crop should aim at. It
// returns false only when no faces are given.
//
// With several faces of comparable size that fit jointly inside the crop,
// the midpoint of their combined span is used so close-together subjects
// stay framed as a group instead of the crop snapping to one of them.
// Otherwise the largest face wins on first detection, and afterwards faces
// are scored by size, proximity to the previous center and confidence.
func PickFaceCenter(faces []geometry.Box, prevCenter *float64, frameW, frameH, targetW int, tuning config.TuningConfig) (float64, bool) {
	if len(faces) == 0 {
		return 0, false
	}

	sorted := make([]geometry.Box, len(faces))
	copy(sorted, faces)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Area() > sorted[j].Area()
	})

	if len(sorted) > 1 {
		topArea := float64(sorted[0].Area())
		group := sorted[:0:0]
		for _, face := range sorted {
			if float64(face.Area()) >= topArea*tuning.GroupFaceAreaRatio {
				group = append(group, face)
			}
		}
		if len(group) >= 2 {
			minX := group[0].X
			maxX := group[0].X + group[0].W
			for _, face := range group[1:] {
				if face.X < minX {
					minX = face.X
				}
				if face.X+face.W > maxX {
					maxX = face.X + face.W
				}
			}
			span := maxX - minX
			if float64(span) <= float64(targetW)*tuning.GroupMaxSpanRatio {
				return float64(minX+maxX) / 2, true
			}
		}
	}

	if prevCenter == nil {
		return sorted[0].CenterX(), true
	}

	frameArea := float64(frameW) * float64(frameH)
	bestScore := math.Inf(-1)
	bestCenter := 0.0
	for _, face := range sorted {
		center := face.CenterX()
		areaRatio := float64(face.Area()) / frameArea
		distanceRatio := math.Abs(center-*prevCenter) / float64(frameW)
		score := areaRatio - distanceRatio*distancePenaltyWeight + face.Score*confidenceBonusWeight
		if score > bestScore {
			bestScore = score
			bestCenter = center
		}
	}
	return bestCenter, true
}

// SmoothedCenter exposes the current crop center, mainly for tests and
// diagnostics.
func (p *FacePlanner) SmoothedCenter() float64 {
	return p.smoothedCenter
}

// TargetCenter exposes the current pan target.
func (p *FacePlanner) TargetCenter() float64 {
	return p.targetCenter
}
