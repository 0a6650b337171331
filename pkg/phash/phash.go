// Package phash computes and compares 64-bit perceptual fingerprints.
//
// The fingerprint is a difference hash: the source image is scaled to a
// 9x8 luminance grid and each of the 64 adjacent horizontal pixel pairs
// emits one bit (left darker than right). Visually similar images yield
// numerically close fingerprints; rotation or reframing does not.
package phash

import (
	"bytes"
	"fmt"
	"image"
	"math/bits"
	"strconv"

	"github.com/corona10/goimagehash"
	"github.com/disintegration/imaging"
)

// HexLength is the length of a hex-encoded fingerprint (64 bits).
const HexLength = 16

// FromImage computes the fingerprint of a decoded image.
func FromImage(img image.Image) (string, error) {
	h, err := goimagehash.DifferenceHash(img)
	if err != nil {
		return "", fmt.Errorf("difference hash: %w", err)
	}
	return Format(h.GetHash()), nil
}

// FromBytes decodes an encoded image and computes its fingerprint.
func FromBytes(data []byte) (string, error) {
	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("decode image: %w", err)
	}
	return FromImage(img)
}

// Format renders a 64-bit hash as a 16-character lowercase hex string.
func Format(h uint64) string {
	return fmt.Sprintf("%016x", h)
}

// Parse decodes a 16-character hex fingerprint.
func Parse(s string) (uint64, error) {
	if len(s) != HexLength {
		return 0, fmt.Errorf("perceptual hash must be %d hex characters, got %d", HexLength, len(s))
	}
	h, err := strconv.ParseUint(s, 16, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid perceptual hash %q: %w", s, err)
	}
	return h, nil
}

// Distance returns the Hamming distance between two hex fingerprints.
func Distance(a, b string) (int, error) {
	ha, err := Parse(a)
	if err != nil {
		return 0, err
	}
	hb, err := Parse(b)
	if err != nil {
		return 0, err
	}
	return bits.OnesCount64(ha ^ hb), nil
}
