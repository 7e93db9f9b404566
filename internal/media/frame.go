package media

import (
	"image"

	"golang.org/x/image/draw"
)

// Grayscale converts an RGBA frame to an 8-bit luma raster using the
// standard BT.601 weights.
func Grayscale(img *image.RGBA) *image.Gray {
	bounds := img.Bounds()
	gray := image.NewGray(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))

	for y := 0; y < bounds.Dy(); y++ {
		src := img.Pix[y*img.Stride : y*img.Stride+bounds.Dx()*4]
		dst := gray.Pix[y*gray.Stride : y*gray.Stride+bounds.Dx()]
		for x := 0; x < bounds.Dx(); x++ {
			r := uint32(src[x*4])
			g := uint32(src[x*4+1])
			b := uint32(src[x*4+2])
			dst[x] = uint8((r*299 + g*587 + b*114) / 1000)
		}
	}

	return gray
}

// Resize scales an RGBA frame to the exact given dimensions.
func Resize(img *image.RGBA, width, height int) *image.RGBA {
	if b := img.Bounds(); b.Dx() == width && b.Dy() == height && b.Min == (image.Point{}) {
		return img
	}
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Src, nil)
	return dst
}

// CropRGBA copies the given window of a frame into a tightly packed RGBA
// image. The window must lie inside the frame.
func CropRGBA(img *image.RGBA, x, y, width, height int) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	for row := 0; row < height; row++ {
		srcOff := img.PixOffset(img.Rect.Min.X+x, img.Rect.Min.Y+y+row)
		copy(dst.Pix[row*dst.Stride:row*dst.Stride+width*4], img.Pix[srcOff:srcOff+width*4])
	}
	return dst
}
