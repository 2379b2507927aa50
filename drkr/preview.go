package drkr

import (
	"image"

	"github.com/scottdaly/drkr/core"
	"github.com/scottdaly/drkr/engine"
	"golang.org/x/image/draw"
)

// Merged composites the visible layers of doc into a canvas-sized image.
func Merged(doc core.Document, pixels map[string][]byte) *image.NRGBA {
	return nrgba(engine.Flatten(doc, pixels), doc.Width, doc.Height)
}

// Thumbnail scales img to fit within size x size, keeping its aspect ratio.
// Images that already fit are returned as is.
func Thumbnail(img *image.NRGBA, size int) *image.NRGBA {
	w, h := img.Rect.Dx(), img.Rect.Dy()
	if w <= size && h <= size {
		return img
	}
	tw, th := fitWithin(w, h, size)
	out := image.NewNRGBA(image.Rect(0, 0, tw, th))
	draw.CatmullRom.Scale(out, out.Bounds(), img, img.Bounds(), draw.Src, nil)
	return out
}

func fitWithin(w, h, size int) (int, int) {
	scale := min(float64(size)/float64(w), float64(size)/float64(h))
	return max(1, int(float64(w)*scale)), max(1, int(float64(h)*scale))
}
