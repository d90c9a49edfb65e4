// Package photo downscales captured odometer and cargo photos to the size the
// proxy accepts and encodes them for transport.
package photo

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"

	"github.com/disintegration/imaging"
)

// MaxDimension bounds the longer side of a compressed photo; JPEGQuality is
// the encode quality. Both are tuned so a typical upload stays well under
// the proxy's request cap even with two photos per trip.
const (
	MaxDimension = 800
	JPEGQuality  = 70
)

// Photo is a compressed, transport-ready image.
type Photo struct {
	Data   []byte
	Width  int
	Height int
}

// Compress scales img down so neither side exceeds MaxDimension (never
// upscaling) and re-encodes it as JPEG. Compressing an already-small image is
// a plain re-encode, so the operation is safe to repeat.
func Compress(img image.Image) (*Photo, error) {
	bounds := img.Bounds()
	if bounds.Dx() > MaxDimension || bounds.Dy() > MaxDimension {
		img = imaging.Fit(img, MaxDimension, MaxDimension, imaging.Lanczos)
		bounds = img.Bounds()
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(JPEGQuality)); err != nil {
		return nil, fmt.Errorf("encoding photo: %w", err)
	}

	return &Photo{
		Data:   buf.Bytes(),
		Width:  bounds.Dx(),
		Height: bounds.Dy(),
	}, nil
}

// CompressBytes decodes raw image bytes (any format imaging understands) and
// compresses the result.
func CompressBytes(data []byte) (*Photo, error) {
	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decoding photo: %w", err)
	}
	return Compress(img)
}

// DataURL renders the photo as a base64 JPEG data URL, the form the upload
// endpoint expects.
func (p *Photo) DataURL() string {
	return "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(p.Data)
}
