package engine

import (
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/scottdaly/drkr/core"
)

const (
	// MaxDimension bounds canvas and layer sides so a single request cannot
	// allocate an unbounded buffer.
	MaxDimension = 32768

	DefaultResolution = 72
)

func nowMillis() int64 {
	return time.Now().UnixMilli()
}

// NewRasterLayer returns a visible, unlocked, fully opaque raster layer at the
// document origin.
func NewRasterLayer(name string, width, height int) core.Layer {
	return core.Layer{
		ID:        ulid.Make().String(),
		Name:      name,
		Type:      core.LayerRaster,
		Visible:   true,
		Opacity:   100,
		BlendMode: core.BlendNormal,
		Width:     width,
		Height:    height,
	}
}

// NewDocument returns a document with a single background raster layer.
func NewDocument(name string, width, height, resolution int) core.Document {
	now := nowMillis()
	return core.Document{
		ID:         ulid.Make().String(),
		Name:       name,
		Width:      width,
		Height:     height,
		Resolution: resolution,
		Layers:     []core.Layer{NewRasterLayer("Background", width, height)},
		CreatedAt:  now,
		ModifiedAt: now,
	}
}

func validateSize(width, height int) error {
	if width <= 0 || height <= 0 {
		return core.InvalidOperation("dimensions must be greater than zero, got %dx%d", width, height)
	}
	if width > MaxDimension || height > MaxDimension {
		return core.InvalidOperation("dimensions %dx%d exceed the %d pixel limit", width, height, MaxDimension)
	}
	return nil
}

func touch(doc *core.Document) {
	doc.ModifiedAt = nowMillis()
}

func addLayer(doc *core.Document, layer core.Layer) {
	doc.Layers = append(doc.Layers, layer)
	touch(doc)
}

func removeLayer(doc *core.Document, layerID string) (core.Layer, error) {
	idx := doc.LayerIndex(layerID)
	if idx < 0 {
		return core.Layer{}, core.LayerNotFound(layerID)
	}
	layer := doc.Layers[idx]
	doc.Layers = append(doc.Layers[:idx], doc.Layers[idx+1:]...)
	touch(doc)
	return layer, nil
}

// reorderLayers moves the layer at from so that it ends up at index to.
func reorderLayers(doc *core.Document, from, to int) error {
	n := len(doc.Layers)
	if from < 0 || to < 0 || from >= n || to >= n {
		return core.InvalidOperation("invalid layer indices %d -> %d for %d layers", from, to, n)
	}
	layer := doc.Layers[from]
	doc.Layers = append(doc.Layers[:from], doc.Layers[from+1:]...)
	doc.Layers = append(doc.Layers[:to], append([]core.Layer{layer}, doc.Layers[to:]...)...)
	touch(doc)
	return nil
}
