// Package detect provides face detection behind a single interface with two
// backends: a pure-Go pigo cascade and a YuNet ONNX model. The backend is
// chosen once at startup based on what is available on disk.
package detect

import (
	"errors"
	"fmt"
	"image"

	"github.com/rs/zerolog"

	"github.com/voxline/reframe/internal/config"
	"github.com/voxline/reframe/internal/geometry"
	"github.com/voxline/reframe/internal/media"
	"github.com/voxline/reframe/pkg/util"
)

// ErrUnavailable signals that no detection backend could be initialized.
// Callers running in auto mode degrade to motion tracking instead of failing.
var ErrUnavailable = errors.New("no usable face detection backend")

// Detector finds face bounding boxes in a frame. Boxes are returned in
// source-frame pixel coordinates regardless of any internal rescaling.
type Detector interface {
	Detect(frame *image.RGBA) ([]geometry.Box, error)
	Close() error
}

// Open selects and initializes a detection backend per the configuration.
func Open(logger zerolog.Logger, cfg config.DetectorConfig) (Detector, error) {
	switch cfg.Backend {
	case "pigo":
		return openPigo(logger, cfg)
	case "yunet":
		return openYuNet(logger, cfg)
	case "", "auto":
		if cfg.ModelPath != "" && util.FileExists(cfg.ModelPath) {
			d, err := openYuNet(logger, cfg)
			if err == nil {
				return d, nil
			}
			logger.Warn().Err(err).Msg("yunet backend failed to initialize, trying pigo")
		}
		if util.FileExists(cfg.CascadePath) {
			return openPigo(logger, cfg)
		}
		return nil, ErrUnavailable
	default:
		return nil, fmt.Errorf("unknown detector backend %q", cfg.Backend)
	}
}

// resizeForDetection downscales a frame so its width does not exceed
// maxWidth, returning the scale that was applied. Detection on the reduced
// raster is much cheaper; boxes must be unscaled back afterwards.
func resizeForDetection(frame *image.RGBA, maxWidth int) (*image.RGBA, float64) {
	w := frame.Bounds().Dx()
	h := frame.Bounds().Dy()
	if w <= maxWidth {
		return frame, 1.0
	}
	scale := float64(maxWidth) / float64(w)
	resized := media.Resize(frame, int(float64(w)*scale), int(float64(h)*scale))
	return resized, scale
}

// unscaleBoxes maps boxes detected on a downscaled raster back to
// source-frame coordinates.
func unscaleBoxes(boxes []geometry.Box, scale float64) []geometry.Box {
	if scale == 1.0 {
		return boxes
	}
	out := make([]geometry.Box, len(boxes))
	for i, b := range boxes {
		out[i] = geometry.Box{
			X:     int(float64(b.X) / scale),
			Y:     int(float64(b.Y) / scale),
			W:     int(float64(b.W) / scale),
			H:     int(float64(b.H) / scale),
			Score: b.Score,
		}
	}
	return out
}
