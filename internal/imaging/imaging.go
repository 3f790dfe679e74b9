// Package imaging normalizes item photos before they are stored: formats
// are sniffed, large photos are shrunk, and everything is re-encoded as JPEG.
package imaging

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"io"
	"net/http"

	"golang.org/x/image/draw"

	"github.com/gudangmitra/gudang/internal/apperr"
)

const (
	// MaxUploadBytes caps the size of an uploaded photo.
	MaxUploadBytes = 5 << 20
	// MaxDimension is the longest side of a stored photo.
	MaxDimension = 800
	// Quality is the JPEG quality of stored photos.
	Quality = 80
)

// Photo is a normalized item photo.
type Photo struct {
	Data   []byte
	MIME   string
	Width  int
	Height int
}

// Normalize reads an uploaded photo and returns it ready for storage.
// Unsupported, undecodable or oversized input is a Validation error.
func Normalize(r io.Reader) (*Photo, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxUploadBytes+1))
	if err != nil {
		return nil, fmt.Errorf("reading image data: %w", err)
	}
	if len(data) > MaxUploadBytes {
		return nil, apperr.Validationf("image larger than %d MB", MaxUploadBytes>>20)
	}

	// The client's Content-Type is not trusted.
	var img image.Image
	switch mime := http.DetectContentType(data); mime {
	case "image/jpeg":
		img, err = jpeg.Decode(bytes.NewReader(data))
	case "image/png":
		img, err = png.Decode(bytes.NewReader(data))
	default:
		return nil, apperr.Validationf("unsupported image format %s: only JPEG and PNG are accepted", mime)
	}
	if err != nil {
		return nil, apperr.Validationf("cannot decode image: %v", err)
	}

	out := flatten(fit(img, MaxDimension))

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, out, &jpeg.Options{Quality: Quality}); err != nil {
		return nil, fmt.Errorf("encoding JPEG: %w", err)
	}

	b := out.Bounds()
	return &Photo{Data: buf.Bytes(), MIME: "image/jpeg", Width: b.Dx(), Height: b.Dy()}, nil
}

// fit scales img down so its longest side is at most maxDim, keeping the
// aspect ratio. Smaller images are returned unchanged.
func fit(img image.Image, maxDim int) image.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= maxDim && h <= maxDim {
		return img
	}

	nw, nh := maxDim, h*maxDim/w
	if h > w {
		nw, nh = w*maxDim/h, maxDim
	}
	nw, nh = max(nw, 1), max(nh, 1)

	dst := image.NewRGBA(image.Rect(0, 0, nw, nh))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	return dst
}

// flatten composites img over white. JPEG has no alpha channel, and
// transparent PNG regions would otherwise turn black.
func flatten(img image.Image) image.Image {
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Over)
	return dst
}
