// Package frame composites product photos onto fixed-size transparent
// square canvases and produces lossless PNG output.
package frame

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/png"
	"math"

	_ "image/gif"
	_ "image/jpeg"

	"golang.org/x/image/draw"
)

// DefaultSize is the packshot canvas edge in pixels.
const DefaultSize = 800

var (
	ErrDecode = errors.New("frame: decode failed")
	ErrEncode = errors.New("frame: encode failed")
)

// FitToFrame scales the input to fit inside a frameSize square, preserving
// aspect ratio, and centers it on a fully transparent canvas. Small sources
// are enlarged to fill the frame; packshots always occupy the standard
// canvas edge on at least one axis. Output is always PNG.
func FitToFrame(data []byte, frameSize int) ([]byte, error) {
	if frameSize <= 0 {
		return nil, fmt.Errorf("frame: size must be positive, got %d", frameSize)
	}

	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}

	bounds := src.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: empty image %dx%d", ErrDecode, width, height)
	}

	scale := math.Min(float64(frameSize)/float64(width), float64(frameSize)/float64(height))
	newWidth := int(math.Round(float64(width) * scale))
	newHeight := int(math.Round(float64(height) * scale))
	left := (frameSize - newWidth) / 2
	top := (frameSize - newHeight) / 2

	canvas := image.NewRGBA(image.Rect(0, 0, frameSize, frameSize))
	target := image.Rect(left, top, left+newWidth, top+newHeight)
	draw.CatmullRom.Scale(canvas, target, src, bounds, draw.Over, nil)

	var buf bytes.Buffer
	if err := png.Encode(&buf, canvas); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncode, err)
	}
	return buf.Bytes(), nil
}

// Downscale re-encodes the input so its pixel count does not exceed
// maxPixels, preserving aspect ratio. Inputs already under the limit are
// returned unchanged; nothing is ever upscaled.
func Downscale(data []byte, maxPixels int) ([]byte, error) {
	if maxPixels <= 0 {
		return nil, fmt.Errorf("frame: pixel limit must be positive, got %d", maxPixels)
	}

	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}

	bounds := src.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: empty image %dx%d", ErrDecode, width, height)
	}
	if width*height <= maxPixels {
		return data, nil
	}

	ratio := math.Sqrt(float64(maxPixels) / float64(width*height))
	newWidth := int(math.Floor(float64(width) * ratio))
	newHeight := int(math.Floor(float64(height) * ratio))
	if newWidth < 1 {
		newWidth = 1
	}
	if newHeight < 1 {
		newHeight = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, newWidth, newHeight))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, bounds, draw.Over, nil)

	var buf bytes.Buffer
	if err := png.Encode(&buf, dst); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncode, err)
	}
	return buf.Bytes(), nil
}
