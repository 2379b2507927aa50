package engine

import "github.com/scottdaly/drkr/core"

// Flatten composites every visible layer of doc bottom to top onto a
// transparent canvas-sized buffer. Each layer's alpha is scaled by its
// opacity and combined with its blend mode. Layers without a buffer, or whose
// buffer does not match their size, contribute nothing.
func Flatten(doc core.Document, pixels map[string][]byte) []byte {
	out := make([]byte, doc.Width*doc.Height*4)
	for _, layer := range doc.Layers {
		if !layer.Visible || layer.Opacity == 0 {
			continue
		}
		px, ok := pixels[layer.ID]
		if !ok || len(px) != layer.PixelLen() {
			continue
		}
		compositeLayer(out, doc.Width, doc.Height, layer, px)
	}
	return out
}

func compositeLayer(dst []byte, width, height int, layer core.Layer, px []byte) {
	x0 := max(0, layer.X)
	y0 := max(0, layer.Y)
	x1 := min(width, layer.X+layer.Width)
	y1 := min(height, layer.Y+layer.Height)
	for y := y0; y < y1; y++ {
		for x := x0; x < x1; x++ {
			s := ((y-layer.Y)*layer.Width + (x - layer.X)) * 4
			a := scaleAlpha(px[s+3], layer.Opacity)
			if a == 0 {
				continue
			}
			d := (y*width + x) * 4
			Blend(layer.BlendMode, dst[d:d+4], px[s], px[s+1], px[s+2], a)
		}
	}
}
