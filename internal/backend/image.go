package backend

import (
	"fmt"
	"image"
	"image/color"
	"os"

	"github.com/disintegration/imaging"

	// Decoders beyond the stdlib defaults so that every extension the
	// task enumerator accepts can be fed to a backend.
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
)

// decodeImage reads and decodes the image at path.
func decodeImage(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: opening %s: %v", ErrInference, path, err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%w: decoding %s: %v", ErrInference, path, err)
	}
	return img, nil
}

// letterboxGeometry records how an image was fitted onto the square model
// canvas so detections can be mapped back to original coordinates.
type letterboxGeometry struct {
	scale        float64
	padX, padY   float64
	origW, origH int
}

// letterbox scales img to fit a size×size canvas preserving aspect ratio
// and centers it on neutral gray padding, the convention YOLO models are
// trained with.
func letterbox(img image.Image, size int) (*image.NRGBA, letterboxGeometry) {
	bounds := img.Bounds()
	origW, origH := bounds.Dx(), bounds.Dy()

	scale := float64(size) / float64(origW)
	if s := float64(size) / float64(origH); s < scale {
		scale = s
	}
	fitW := int(float64(origW) * scale)
	fitH := int(float64(origH) * scale)

	fitted := imaging.Resize(img, fitW, fitH, imaging.Linear)
	canvas := imaging.New(size, size, color.NRGBA{114, 114, 114, 255})
	canvas = imaging.PasteCenter(canvas, fitted)

	geom := letterboxGeometry{
		scale: scale,
		padX:  float64(size-fitW) / 2,
		padY:  float64(size-fitH) / 2,
		origW: origW,
		origH: origH,
	}
	return canvas, geom
}

// toModelInput converts a letterboxed canvas into CHW float32 values in
// [0, 1], written into dst. dst must hold 3*w*h elements.
func toModelInput(canvas *image.NRGBA, dst []float32) {
	bounds := canvas.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	plane := w * h

	for y := 0; y < h; y++ {
		row := canvas.Pix[y*canvas.Stride:]
		for x := 0; x < w; x++ {
			i := y*w + x
			dst[i] = float32(row[x*4]) / 255
			dst[plane+i] = float32(row[x*4+1]) / 255
			dst[2*plane+i] = float32(row[x*4+2]) / 255
		}
	}
}
