package detect

import (
	"fmt"
	"image"
	"math"
	"sort"

	"github.com/rs/zerolog"
	ort "github.com/yalue/onnxruntime_go"

	"github.com/voxline/reframe/internal/config"
	"github.com/voxline/reframe/internal/geometry"
)

const (
	yunetInputWidth  = 640
	yunetInputHeight = 640
	yunetConfidence  = 0.7
	yunetIoU         = 0.7
	yunetStride      = 8
	yunetGridSize    = yunetInputWidth / yunetStride
	yunetAnchorCount = yunetGridSize * yunetGridSize
)

// anchor is a detection anchor point in model input coordinates.
type anchor struct {
	cx float32
	cy float32
}

// yunetDetector runs the YuNet face detection model through ONNX Runtime.
type yunetDetector struct {
	logger      zerolog.Logger
	session     *ort.AdvancedSession
	inputTensor *ort.Tensor[float32]
	clsTensor   *ort.Tensor[float32]
	bboxTensor  *ort.Tensor[float32]
	anchors     []anchor
}

func openYuNet(logger zerolog.Logger, cfg config.DetectorConfig) (*yunetDetector, error) {
	ort.SetSharedLibraryPath(cfg.OrtLibraryPath)
	if err := ort.InitializeEnvironment(); err != nil {
		return nil, fmt.Errorf("failed to initialize ONNX Runtime: %w", err)
	}

	d := &yunetDetector{
		logger:  logger.With().Str("component", "yunet").Logger(),
		anchors: generateAnchors(),
	}

	var err error
	inputShape := ort.NewShape(1, 3, yunetInputHeight, yunetInputWidth)
	d.inputTensor, err = ort.NewTensor(inputShape, make([]float32, 3*yunetInputHeight*yunetInputWidth))
	if err != nil {
		d.Close()
		return nil, fmt.Errorf("failed to create input tensor: %w", err)
	}

	d.clsTensor, err = ort.NewEmptyTensor[float32](ort.NewShape(1, yunetAnchorCount, 1))
	if err != nil {
		d.Close()
		return nil, fmt.Errorf("failed to create cls tensor: %w", err)
	}

	d.bboxTensor, err = ort.NewEmptyTensor[float32](ort.NewShape(1, yunetAnchorCount, 4))
	if err != nil {
		d.Close()
		return nil, fmt.Errorf("failed to create bbox tensor: %w", err)
	}

	d.session, err = ort.NewAdvancedSession(
		cfg.ModelPath,
		[]string{"input"},
		[]string{"cls_8", "bbox_8"},
		[]ort.Value{d.inputTensor},
		[]ort.Value{d.clsTensor, d.bboxTensor},
		nil,
	)
	if err != nil {
		d.Close()
		return nil, fmt.Errorf("failed to create ONNX session: %w", err)
	}

	d.logger.Debug().Str("model", cfg.ModelPath).Msg("yunet backend initialized")
	return d, nil
}

func generateAnchors() []anchor {
	anchors := make([]anchor, 0, yunetAnchorCount)
	for y := 0; y < yunetGridSize; y++ {
		for x := 0; x < yunetGridSize; x++ {
			anchors = append(anchors, anchor{
				cx: (float32(x) + 0.5) * yunetStride,
				cy: (float32(y) + 0.5) * yunetStride,
			})
		}
	}
	return anchors
}

func (d *yunetDetector) Detect(frame *image.RGBA) ([]geometry.Box, error) {
	if d.session == nil {
		return nil, fmt.Errorf("yunet detector is closed")
	}

	d.preprocess(frame)

	if err := d.session.Run(); err != nil {
		return nil, fmt.Errorf("inference failed: %w", err)
	}

	dets := applyNMS(d.decode(), yunetIoU)

	// Model output lives in 640x640 input space; map back to the source
	// frame.
	w := frame.Bounds().Dx()
	h := frame.Bounds().Dy()
	scaleX := float64(w) / yunetInputWidth
	scaleY := float64(h) / yunetInputHeight

	boxes := make([]geometry.Box, len(dets))
	for i, det := range dets {
		boxes[i] = geometry.Box{
			X:     int(float64(det.x) * scaleX),
			Y:     int(float64(det.y) * scaleY),
			W:     int(float64(det.w) * scaleX),
			H:     int(float64(det.h) * scaleY),
			Score: float64(det.conf),
		}
	}
	return boxes, nil
}

// preprocess samples the frame into the 1x3x640x640 NCHW input tensor. The
// model expects BGR channel order in the 0-255 range.
func (d *yunetDetector) preprocess(frame *image.RGBA) {
	bounds := frame.Bounds()
	w := bounds.Dx()
	h := bounds.Dy()
	data := d.inputTensor.GetData()

	const plane = yunetInputHeight * yunetInputWidth
	for y := 0; y < yunetInputHeight; y++ {
		srcY := y * h / yunetInputHeight
		for x := 0; x < yunetInputWidth; x++ {
			srcX := x * w / yunetInputWidth
			off := frame.PixOffset(bounds.Min.X+srcX, bounds.Min.Y+srcY)
			idx := y*yunetInputWidth + x
			data[0*plane+idx] = float32(frame.Pix[off+2]) // B
			data[1*plane+idx] = float32(frame.Pix[off+1]) // G
			data[2*plane+idx] = float32(frame.Pix[off+0]) // R
		}
	}
}

// rawDetection is a candidate box in model input coordinates.
type rawDetection struct {
	x, y, w, h float32
	conf       float32
}

// decode turns the cls/bbox outputs into candidate boxes. Offsets are
// direct values relative to the anchor, scaled by the stride.
func (d *yunetDetector) decode() []rawDetection {
	clsData := d.clsTensor.GetData()
	bboxData := d.bboxTensor.GetData()

	var dets []rawDetection
	for i := 0; i < yunetAnchorCount; i++ {
		conf := sigmoid(clsData[i])
		if conf < yunetConfidence {
			continue
		}

		a := d.anchors[i]
		cx := a.cx + bboxData[i*4+0]*yunetStride
		cy := a.cy + bboxData[i*4+1]*yunetStride
		w := float32(math.Abs(float64(bboxData[i*4+2]) * yunetStride))
		h := float32(math.Abs(float64(bboxData[i*4+3]) * yunetStride))

		x := cx - w/2
		y := cy - h/2

		// Reject degenerate or out-of-bounds predictions.
		const minSize = 10.0
		if w < minSize || h < minSize || w > yunetInputWidth || h > yunetInputHeight {
			continue
		}
		if x < 0 || y < 0 || x+w > yunetInputWidth || y+h > yunetInputHeight {
			continue
		}

		dets = append(dets, rawDetection{x: x, y: y, w: w, h: h, conf: conf})
	}
	return dets
}

func (d *yunetDetector) Close() error {
	if d.session != nil {
		d.session.Destroy()
		d.session = nil
	}
	if d.inputTensor != nil {
		d.inputTensor.Destroy()
		d.inputTensor = nil
	}
	if d.clsTensor != nil {
		d.clsTensor.Destroy()
		d.clsTensor = nil
	}
	if d.bboxTensor != nil {
		d.bboxTensor.Destroy()
		d.bboxTensor = nil
	}
	return ort.DestroyEnvironment()
}

func sigmoid(x float32) float32 {
	return 1.0 / (1.0 + float32(math.Exp(float64(-x))))
}

// applyNMS drops candidates that overlap a higher-confidence detection.
func applyNMS(dets []rawDetection, iouThreshold float32) []rawDetection {
	if len(dets) == 0 {
		return dets
	}

	sort.Slice(dets, func(i, j int) bool {
		return dets[i].conf > dets[j].conf
	})

	keep := make([]rawDetection, 0, len(dets))
	used := make([]bool, len(dets))

	for i := range dets {
		if used[i] {
			continue
		}
		keep = append(keep, dets[i])
		used[i] = true

		for j := i + 1; j < len(dets); j++ {
			if !used[j] && iou(dets[i], dets[j]) > iouThreshold {
				used[j] = true
			}
		}
	}

	return keep
}

func iou(a, b rawDetection) float32 {
	x1 := max32(a.x, b.x)
	y1 := max32(a.y, b.y)
	x2 := min32(a.x+a.w, b.x+b.w)
	y2 := min32(a.y+a.h, b.y+b.h)

	if x2 < x1 || y2 < y1 {
		return 0
	}

	intersection := (x2 - x1) * (y2 - y1)
	union := a.w*a.h + b.w*b.h - intersection
	if union == 0 {
		return 0
	}
	return intersection / union
}

func max32(a, b float32) float32 {
	if a > b {
		return a
	}
	return b
}

func min32(a, b float32) float32 {
	if a < b {
		return a
	}
	return b
}
