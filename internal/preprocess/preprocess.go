/**
 * Image preprocessing for OCR
 *
 * Turns an uploaded photo into a single-channel, binarized image ready for the
 * recognition engine. Stage order is fixed:
 *   downscale -> grayscale -> denoise -> sharpen -> binarize -> remap
 *   -> blur -> invert -> resize -> edges
 */

package preprocess

import (
	"bytes"
	"fmt"
	"image"
	"math"

	// Extra decoders registered with image.Decode
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/disintegration/imaging"

	apperrors "github.com/adverant/nexus/docscan-worker/internal/errors"
)

// ProcessedImage is the single-channel output handed to the OCR engine
type ProcessedImage struct {
	Gray *image.Gray
}

// Width of the processed image in pixels
func (p *ProcessedImage) Width() int { return p.Gray.Bounds().Dx() }

// Height of the processed image in pixels
func (p *ProcessedImage) Height() int { return p.Gray.Bounds().Dy() }

// PNG encodes the image losslessly for engines that take encoded bytes
func (p *ProcessedImage) PNG() ([]byte, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, p.Gray, imaging.PNG); err != nil {
		return nil, fmt.Errorf("failed to encode processed image: %w", err)
	}
	return buf.Bytes(), nil
}

// Decode reads raw upload bytes, honouring EXIF orientation from phone cameras
func Decode(raw []byte) (image.Image, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("empty image buffer")
	}
	img, err := imaging.Decode(bytes.NewReader(raw), imaging.AutoOrientation(true))
	if err != nil {
		return nil, err
	}
	if b := img.Bounds(); b.Dx() == 0 || b.Dy() == 0 {
		return nil, fmt.Errorf("image has no pixels")
	}
	return img, nil
}

// Apply decodes raw bytes and runs the pipeline.
// Undecodable input fails with IMAGE_DECODE_FAILURE.
func Apply(raw []byte, cfg Config) (*ProcessedImage, error) {
	img, err := Decode(raw)
	if err != nil {
		return nil, apperrors.NewImageDecodeError(err)
	}
	return ApplyImage(img, cfg), nil
}

// ApplyImage runs the pipeline on an already decoded image
func ApplyImage(img image.Image, cfg Config) *ProcessedImage {
	gray := grayscale(downscale(img))

	if cfg.DenoiseStrength > 0 {
		gray = denoise(gray, cfg.DenoiseStrength)
	}
	if cfg.SharpenAmount > 0 {
		gray = sharpen(gray, cfg.SharpenAmount)
	}

	binarize(gray, cfg.ThresholdLevel)
	remap(gray, cfg.Contrast, cfg.Brightness)

	if cfg.BlurRadius > 0 {
		gray = blur(gray, cfg.BlurRadius)
	}
	if cfg.Invert {
		invert(gray)
	}
	if cfg.ResizeFactor > 0 && cfg.ResizeFactor != 1.0 {
		gray = resize(gray, cfg.ResizeFactor)
	}
	if cfg.EdgeDetect {
		gray = canny(gray, 100, 200)
	}

	return &ProcessedImage{Gray: gray}
}

// downscale shrinks img uniformly so its height is at most MaxHeight
func downscale(img image.Image) image.Image {
	b := img.Bounds()
	if b.Dy() <= MaxHeight {
		return img
	}
	scale := float64(MaxHeight) / float64(b.Dy())
	width := int(float64(b.Dx()) * scale)
	if width < 1 {
		width = 1
	}
	return imaging.Resize(img, width, MaxHeight, imaging.Linear)
}

func grayscale(img image.Image) *image.Gray {
	return toGray(imaging.Grayscale(img))
}

func sharpen(gray *image.Gray, amount float64) *image.Gray {
	kernel := [9]float64{
		0, -1, 0,
		-1, 5 + amount, -1,
		0, -1, 0,
	}
	return toGray(imaging.Convolve3x3(gray, kernel, nil))
}

func blur(gray *image.Gray, radius int) *image.Gray {
	ksize := float64(2*radius + 1)
	sigma := 0.3*((ksize-1)*0.5-1) + 0.8
	return toGray(imaging.Blur(gray, sigma))
}

func resize(gray *image.Gray, factor float64) *image.Gray {
	b := gray.Bounds()
	width := int(math.Round(float64(b.Dx()) * factor))
	height := int(math.Round(float64(b.Dy()) * factor))
	if width < 1 || height < 1 {
		return gray
	}
	return toGray(imaging.Resize(gray, width, height, imaging.CatmullRom))
}

// toGray copies the red channel of a gray-valued NRGBA image
func toGray(src *image.NRGBA) *image.Gray {
	b := src.Bounds()
	dst := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := 0; y < b.Dy(); y++ {
		srcRow := src.Pix[y*src.Stride:]
		dstRow := dst.Pix[y*dst.Stride:]
		for x := 0; x < b.Dx(); x++ {
			dstRow[x] = srcRow[x*4]
		}
	}
	return dst
}
