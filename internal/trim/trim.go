// Package trim crops an alpha-channel image to its visible content.
//
// The pixel scan is memory-heavy, so in production the algorithm runs as
// an isolated compute unit (cmd/trimmer) called over HTTP by the
// ingestion worker.
package trim

import (
	"bytes"
	"context"
	"fmt"
	"image"

	"github.com/disintegration/imaging"
	"github.com/wardrobehq/wardrobe/internal/config"
)

// Trimmer crops an encoded alpha-channel image and re-encodes the result.
type Trimmer interface {
	Trim(ctx context.Context, data []byte) ([]byte, error)
}

// Options holds the trim tunables. Values are empirically chosen; see
// config.PipelineConfig.
type Options struct {
	// AlphaFloor is the alpha value (0-255) a pixel must exceed to count
	// as content. Ignores anti-aliasing fringe.
	AlphaFloor int
	// PaddingPercent of the smaller box dimension is added around the
	// tight box, at least PaddingMinPx.
	PaddingPercent float64
	PaddingMinPx   int
	// MinSizePx is the floor for each output dimension. A tight crop of a
	// small accessory must not collapse to a near-zero thumbnail.
	MinSizePx int
}

// DefaultOptions mirrors the config defaults.
func DefaultOptions() Options {
	return Options{AlphaFloor: 10, PaddingPercent: 0.05, PaddingMinPx: 5, MinSizePx: 300}
}

// OptionsFromConfig maps pipeline config onto trim options.
func OptionsFromConfig(cfg config.PipelineConfig) Options {
	return Options{
		AlphaFloor:     cfg.AlphaFloor,
		PaddingPercent: cfg.PaddingPercent,
		PaddingMinPx:   cfg.PaddingMinPx,
		MinSizePx:      cfg.MinCropPx,
	}
}

// Trim decodes data, crops to the padded bounding box of pixels whose
// alpha exceeds the floor, and re-encodes as PNG. When no pixel clears
// the floor the input is returned unmodified.
func Trim(data []byte, opts Options) ([]byte, error) {
	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}

	box, found := contentBox(img, opts.AlphaFloor)
	if !found {
		return data, nil
	}

	box = pad(box, img.Bounds(), opts)
	box = ensureMinSize(box, img.Bounds(), opts.MinSizePx)

	cropped := imaging.Crop(img, box)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, cropped, imaging.PNG); err != nil {
		return nil, fmt.Errorf("encode cropped image: %w", err)
	}
	return buf.Bytes(), nil
}

// contentBox scans every pixel and returns the tight bounding box of
// content above the alpha floor.
func contentBox(img image.Image, floor int) (image.Rectangle, bool) {
	bounds := img.Bounds()
	minX, minY := bounds.Max.X, bounds.Max.Y
	maxX, maxY := bounds.Min.X-1, bounds.Min.Y-1

	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			_, _, _, a := img.At(x, y).RGBA()
			if int(a>>8) > floor {
				if x < minX {
					minX = x
				}
				if x > maxX {
					maxX = x
				}
				if y < minY {
					minY = y
				}
				if y > maxY {
					maxY = y
				}
			}
		}
	}

	if maxX < minX {
		return image.Rectangle{}, false
	}
	return image.Rect(minX, minY, maxX+1, maxY+1), true
}

// pad expands the box by the cosmetic padding, clamped to bounds.
func pad(box, bounds image.Rectangle, opts Options) image.Rectangle {
	smaller := box.Dx()
	if box.Dy() < smaller {
		smaller = box.Dy()
	}
	padding := int(float64(smaller) * opts.PaddingPercent)
	if padding < opts.PaddingMinPx {
		padding = opts.PaddingMinPx
	}
	return box.Inset(-padding).Intersect(bounds)
}

// ensureMinSize grows each dimension symmetrically around the box center
// up to minSize, clamped to the source bounds. The box shifts when one
// edge hits the image border so the other side absorbs the expansion.
func ensureMinSize(box, bounds image.Rectangle, minSize int) image.Rectangle {
	minX, maxX := expandSpan(box.Min.X, box.Max.X, bounds.Min.X, bounds.Max.X, minSize)
	minY, maxY := expandSpan(box.Min.Y, box.Max.Y, bounds.Min.Y, bounds.Max.Y, minSize)
	return image.Rect(minX, minY, maxX, maxY)
}

func expandSpan(lo, hi, boundLo, boundHi, minSize int) (int, int) {
	if hi-lo >= minSize {
		return lo, hi
	}
	if boundHi-boundLo <= minSize {
		return boundLo, boundHi
	}

	center := (lo + hi) / 2
	lo = center - minSize/2
	hi = lo + minSize
	if lo < boundLo {
		hi += boundLo - lo
		lo = boundLo
	}
	if hi > boundHi {
		lo -= hi - boundHi
		hi = boundHi
	}
	return lo, hi
}
