// Package imageprocessor normalises uploaded cover art.
package imageprocessor

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"
	"io"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

// ErrUnsupportedImage is returned when the upload is not a JPEG, PNG or WebP.
var ErrUnsupportedImage = errors.New("unsupported image")

const (
	// CoverMaxSide bounds both dimensions of a stored cover.
	CoverMaxSide = 800

	// CoverContentType is what Cover always produces.
	CoverContentType = "image/jpeg"
)

type Processor struct {
	quality int
	maxSide int
}

func NewProcessor(quality, maxSide int) *Processor {
	if quality <= 0 || quality > 100 {
		quality = 85
	}
	if maxSide <= 0 {
		maxSide = CoverMaxSide
	}
	return &Processor{quality: quality, maxSide: maxSide}
}

// Cover decodes r, shrinks it to fit the square bound keeping the aspect
// ratio, and encodes it as JPEG. Smaller images are never enlarged.
func (p *Processor) Cover(r io.Reader) (io.Reader, error) {
	img, _, err := image.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedImage, err)
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, p.fit(img), &jpeg.Options{Quality: p.quality}); err != nil {
		return nil, fmt.Errorf("failed to encode JPEG: %w", err)
	}
	return &buf, nil
}

func (p *Processor) fit(img image.Image) image.Image {
	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	if width <= p.maxSide && height <= p.maxSide {
		return img
	}

	newWidth, newHeight := p.maxSide, p.maxSide
	if width > height {
		newHeight = max(1, height*p.maxSide/width)
	} else {
		newWidth = max(1, width*p.maxSide/height)
	}

	dst := image.NewRGBA(image.Rect(0, 0, newWidth, newHeight))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)
	return dst
}
