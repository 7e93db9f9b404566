package planner

import (
	"image"

	"github.com/voxline/reframe/internal/geometry"
	"github.com/voxline/reframe/internal/media"
)

// RenderCrop materializes a crop window into a frame of byte-exact target
// dimensions. The window is clipped to the frame first and the result
// rescaled if rounding left it off-size; the encoder rejects anything that
// is not exactly the target geometry.
func RenderCrop(frame *image.RGBA, rect geometry.Rect, target geometry.Target) *image.RGBA {
	frameW := frame.Bounds().Dx()
	frameH := frame.Bounds().Dy()

	x := geometry.ClampInt(rect.X, 0, frameW-1)
	y := geometry.ClampInt(rect.Y, 0, frameH-1)
	w := rect.Width
	if x+w > frameW {
		w = frameW - x
	}
	h := rect.Height
	if y+h > frameH {
		h = frameH - y
	}

	cropped := media.CropRGBA(frame, x, y, w, h)
	return media.Resize(cropped, target.Width, target.Height)
}

// Passthrough scales a frame directly to the target dimensions. Used when
// the source is no wider than the target, where there is nothing to track.
func Passthrough(frame *image.RGBA, target geometry.Target) *image.RGBA {
	return media.Resize(frame, target.Width, target.Height)
}

// composeCentered places an image centered on an opaque black canvas of
// target size (letterboxing).
func composeCentered(img *image.RGBA, target geometry.Target) *image.RGBA {
	canvas := image.NewRGBA(image.Rect(0, 0, target.Width, target.Height))
	// Opaque black background.
	for i := 3; i < len(canvas.Pix); i += 4 {
		canvas.Pix[i] = 0xff
	}

	w := img.Bounds().Dx()
	h := img.Bounds().Dy()
	offX := (target.Width - w) / 2
	offY := (target.Height - h) / 2

	for y := 0; y < h; y++ {
		src := img.Pix[y*img.Stride : y*img.Stride+w*4]
		dstOff := canvas.PixOffset(offX, offY+y)
		copy(canvas.Pix[dstOff:dstOff+w*4], src)
	}

	return canvas
}
