package planner

import (
	"image"
	"math"

	"github.com/rs/zerolog"

	"github.com/voxline/reframe/internal/config"
	"github.com/voxline/reframe/internal/geometry"
	"github.com/voxline/reframe/internal/media"
	"github.com/voxline/reframe/internal/motion"
)

// ScreenPlanner reframes face-less material (presentations, screen
// recordings) by following where on screen content is changing. The source
// is scaled so a configured dominant fraction of its width fills the target
// width, then a slow low-pass pan follows the motion centroid. Screen
// motion is a much noisier signal than a face box, hence the deliberately
// sluggish filter.
type ScreenPlanner struct {
	logger zerolog.Logger
	tuning config.TuningConfig

	target   geometry.Target
	scaledW  int
	scaledH  int
	cropW    int
	interval int

	smoothedPanX float64
	prevLuma     *image.Gray
	frameIdx     int
}

// NewScreenPlanner prepares a motion-tracking pass.
func NewScreenPlanner(logger zerolog.Logger, tuning config.TuningConfig, frameW, frameH int, fps float64, target geometry.Target) *ScreenPlanner {
	// Map the dominant content region onto the target width; back off if
	// that would make the scaled frame taller than the canvas.
	dominantW := float64(frameW) * tuning.DominantRegionFraction
	scale := float64(target.Width) / dominantW
	scaledW := int(float64(frameW) * scale)
	scaledH := int(float64(frameH) * scale)
	if scaledH > target.Height {
		scale = float64(target.Height) / float64(frameH)
		scaledW = int(float64(frameW) * scale)
		scaledH = int(float64(frameH) * scale)
	}

	cropW := target.Width
	if scaledW < cropW {
		cropW = scaledW
	}

	interval := int(math.Round(fps))
	if interval < 1 {
		interval = 1
	}

	return &ScreenPlanner{
		logger:   logger.With().Str("component", "screen-planner").Logger(),
		tuning:   tuning,
		target:   target,
		scaledW:  scaledW,
		scaledH:  scaledH,
		cropW:    cropW,
		interval: interval,
	}
}

// Plan advances the planner by one frame and returns the fully composited
// target-size frame. Frames must be fed strictly in order.
func (p *ScreenPlanner) Plan(frame *image.RGBA) *image.RGBA {
	resized := media.Resize(frame, p.scaledW, p.scaledH)

	if p.frameIdx%p.interval == 0 {
		p.updatePan(resized)
	}
	p.frameIdx++

	cropX := geometry.ClampInt(int(math.Round(p.smoothedPanX)), 0, p.scaledW-p.cropW)
	cropH := p.scaledH
	if cropH > p.target.Height {
		cropH = p.target.Height
	}
	cropped := media.CropRGBA(resized, cropX, 0, p.cropW, cropH)

	if p.cropW == p.target.Width && cropH == p.target.Height {
		return cropped
	}
	return composeCentered(cropped, p.target)
}

// updatePan aggregates dense motion since the last interval into a new pan
// target. Frames without significant motion leave the pan untouched.
func (p *ScreenPlanner) updatePan(resized *image.RGBA) {
	curr := media.Grayscale(resized)
	defer func() { p.prevLuma = curr }()

	if p.prevLuma == nil {
		return
	}

	field, err := motion.Estimate(p.prevLuma, curr)
	if err != nil {
		p.logger.Warn().Err(err).Int("frame", p.frameIdx).Msg("motion estimation failed, holding pan")
		return
	}

	mag := field.Magnitude()
	profile := motion.ColumnProfile(mag, field.W, field.H, p.tuning.MotionThreshold)
	centroid, ok := motion.Centroid(profile)
	if !ok {
		return
	}

	targetX := geometry.Clamp(centroid-float64(p.cropW)/2, 0, float64(p.scaledW-p.cropW))
	decay := p.tuning.MotionDecay
	p.smoothedPanX = decay*p.smoothedPanX + (1-decay)*targetX

	p.logger.Debug().
		Int("frame", p.frameIdx).
		Float64("centroid", centroid).
		Float64("pan_x", p.smoothedPanX).
		Msg("pan target updated")
}

// PanX exposes the current smoothed pan offset, mainly for tests.
func (p *ScreenPlanner) PanX() float64 {
	return p.smoothedPanX
}

// ScaledSize exposes the working raster dimensions.
func (p *ScreenPlanner) ScaledSize() (int, int) {
	return p.scaledW, p.scaledH
}
