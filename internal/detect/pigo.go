package detect

import (
	"fmt"
	"image"
	"os"

	pigo "github.com/esimov/pigo/core"
	"github.com/rs/zerolog"

	"github.com/voxline/reframe/internal/config"
	"github.com/voxline/reframe/internal/geometry"
	"github.com/voxline/reframe/internal/media"
)

const (
	pigoMinSize          = 20
	pigoMaxSize          = 1000
	pigoShiftFactor      = 0.1
	pigoScaleFactor      = 1.1
	pigoIoUThreshold     = 0.2
	pigoQualityThreshold = 5.0
)

// pigoDetector runs the pigo binary cascade. It is pure Go and needs no
// shared libraries, which makes it the fallback backend.
type pigoDetector struct {
	logger     zerolog.Logger
	classifier *pigo.Pigo
	maxWidth   int
}

func openPigo(logger zerolog.Logger, cfg config.DetectorConfig) (*pigoDetector, error) {
	cascade, err := os.ReadFile(cfg.CascadePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read cascade file: %w", err)
	}

	classifier, err := pigo.NewPigo().Unpack(cascade)
	if err != nil {
		return nil, fmt.Errorf("failed to unpack cascade: %w", err)
	}

	d := &pigoDetector{
		logger:     logger.With().Str("component", "pigo").Logger(),
		classifier: classifier,
		maxWidth:   cfg.MaxDetectWidth,
	}
	d.logger.Debug().Str("cascade", cfg.CascadePath).Msg("pigo backend initialized")
	return d, nil
}

func (d *pigoDetector) Detect(frame *image.RGBA) ([]geometry.Box, error) {
	if d.classifier == nil {
		return nil, fmt.Errorf("pigo detector is closed")
	}

	resized, scale := resizeForDetection(frame, d.maxWidth)
	gray := media.Grayscale(resized)
	w := gray.Bounds().Dx()
	h := gray.Bounds().Dy()

	params := pigo.CascadeParams{
		MinSize:     pigoMinSize,
		MaxSize:     pigoMaxSize,
		ShiftFactor: pigoShiftFactor,
		ScaleFactor: pigoScaleFactor,
		ImageParams: pigo.ImageParams{
			Pixels: gray.Pix,
			Rows:   h,
			Cols:   w,
			Dim:    w,
		},
	}

	dets := d.classifier.RunCascade(params, 0.0)
	dets = d.classifier.ClusterDetections(dets, pigoIoUThreshold)

	boxes := make([]geometry.Box, 0, len(dets))
	for _, det := range dets {
		if float64(det.Q) < pigoQualityThreshold {
			continue
		}
		// The cascade reports a center and radius; the cascade has no
		// calibrated confidence, so accepted detections score 1.0.
		boxes = append(boxes, geometry.Box{
			X:     det.Col - det.Scale/2,
			Y:     det.Row - det.Scale/2,
			W:     det.Scale,
			H:     det.Scale,
			Score: 1.0,
		})
	}

	return unscaleBoxes(boxes, scale), nil
}

func (d *pigoDetector) Close() error {
	d.classifier = nil
	return nil
}
