// Package imageio converts between flat RGBA buffers and common raster file
// formats for generic import and export.
package imageio

import (
	"bytes"
	"image"
	"image/draw"
	"image/gif"
	"image/jpeg"
	"image/png"
	"strings"

	"github.com/scottdaly/drkr/core"
	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

type Format string

const (
	PNG  Format = "png"
	JPEG Format = "jpeg"
	GIF  Format = "gif"
	BMP  Format = "bmp"
	TIFF Format = "tiff"
)

// Formats lists every format Encode can write.
var Formats = []Format{PNG, JPEG, GIF, BMP, TIFF}

// ParseFormat accepts a format name or file extension, with or without the
// leading dot.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimPrefix(s, ".")) {
	case "png":
		return PNG, nil
	case "jpg", "jpeg":
		return JPEG, nil
	case "gif":
		return GIF, nil
	case "bmp":
		return BMP, nil
	case "tif", "tiff":
		return TIFF, nil
	}
	return "", core.InvalidOperation("unsupported export format %q", s)
}

// FormatFromKey picks the format from the extension of an archive key.
func FormatFromKey(key string) (Format, error) {
	i := strings.LastIndexByte(key, '.')
	if i < 0 {
		return "", core.InvalidOperation("key %q has no file extension", key)
	}
	return ParseFormat(key[i+1:])
}

func (f Format) ContentType() string {
	switch f {
	case JPEG:
		return "image/jpeg"
	case GIF:
		return "image/gif"
	case BMP:
		return "image/bmp"
	case TIFF:
		return "image/tiff"
	}
	return "image/png"
}

// Decode reads any registered image format into a straight-alpha RGBA buffer.
func Decode(data []byte) (px []byte, width, height int, err error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, 0, 0, core.ImageError(err, "failed to decode image")
	}
	b := img.Bounds()
	out := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(out, out.Bounds(), img, b.Min, draw.Src)
	return out.Pix, b.Dx(), b.Dy(), nil
}

// DecodeConfig reports the dimensions of an encoded image without decoding it.
func DecodeConfig(data []byte) (width, height int, err error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return 0, 0, core.ImageError(err, "failed to read image header")
	}
	return cfg.Width, cfg.Height, nil
}

// Encode writes a width x height straight-alpha RGBA buffer in format f.
func Encode(f Format, px []byte, width, height int) ([]byte, error) {
	if width <= 0 || height <= 0 || len(px) != width*height*4 {
		return nil, core.InvalidOperation("pixel buffer is %d bytes, want %d for %dx%d", len(px), width*height*4, width, height)
	}
	img := &image.NRGBA{Pix: px, Stride: width * 4, Rect: image.Rect(0, 0, width, height)}

	var (
		buf bytes.Buffer
		err error
	)
	switch f {
	case PNG:
		err = png.Encode(&buf, img)
	case JPEG:
		err = jpeg.Encode(&buf, img, &jpeg.Options{Quality: 92})
	case GIF:
		err = gif.Encode(&buf, img, nil)
	case BMP:
		err = bmp.Encode(&buf, img)
	case TIFF:
		err = tiff.Encode(&buf, img, &tiff.Options{Compression: tiff.Deflate})
	default:
		return nil, core.InvalidOperation("unsupported export format %q", string(f))
	}
	if err != nil {
		return nil, core.ImageError(err, "failed to encode %s", string(f))
	}
	return buf.Bytes(), nil
}
