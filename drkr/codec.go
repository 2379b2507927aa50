package drkr

import (
	"bytes"
	"fmt"
	"image"
	"image/draw"
	"image/png"

	"github.com/scottdaly/drkr/core"
	_ "golang.org/x/image/webp"
)

// nrgba wraps a straight-alpha RGBA buffer without copying it.
func nrgba(px []byte, width, height int) *image.NRGBA {
	return &image.NRGBA{
		Pix:    px,
		Stride: width * 4,
		Rect:   image.Rect(0, 0, width, height),
	}
}

func encodePixels(px []byte, width, height int) ([]byte, error) {
	if len(px) != width*height*4 {
		return nil, core.InvalidOperation("pixel buffer is %d bytes, want %d for %dx%d", len(px), width*height*4, width, height)
	}
	return encodeImage(nrgba(px, width, height))
}

func encodeImage(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	enc := png.Encoder{CompressionLevel: png.BestSpeed}
	if err := enc.Encode(&buf, img); err != nil {
		return nil, core.ImageError(err, "failed to encode %s", PixelFormat)
	}
	return buf.Bytes(), nil
}

// decodePixels decodes a PNG or WebP payload into a straight-alpha RGBA buffer
// and checks it against the expected size.
func decodePixels(data []byte, width, height int) ([]byte, error) {
	cfg, err := decodeConfig(data)
	if err != nil {
		return nil, err
	}
	if cfg.Width != width || cfg.Height != height {
		return nil, core.ImageError(fmt.Errorf("got %dx%d", cfg.Width, cfg.Height), "layer pixels do not match %dx%d", width, height)
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, core.ImageError(err, "failed to decode layer pixels")
	}
	return toNRGBA(img).Pix, nil
}

func decodeConfig(data []byte) (image.Config, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return image.Config{}, core.ImageError(err, "unrecognised image payload")
	}
	return cfg, nil
}

func toNRGBA(img image.Image) *image.NRGBA {
	b := img.Bounds()
	if n, ok := img.(*image.NRGBA); ok && n.Rect.Min == (image.Point{}) && n.Stride == b.Dx()*4 {
		return n
	}
	out := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(out, out.Bounds(), img, b.Min, draw.Src)
	return out
}
