package engine

import (
	"fmt"
	"sort"
	"sync"

	"github.com/scottdaly/drkr/core"
	"github.com/sirupsen/logrus"
)

// Manager is the registry of open documents. It owns the pixel store and the
// per-document history, and serialises every operation behind one mutex.
type Manager struct {
	mu           sync.Mutex
	poisoned     bool
	documents    map[string]*core.Document
	history      map[string]*History
	pixels       *PixelStore
	historyLimit int
	notifier     core.ChangeNotifier
}

type Option func(*Manager)

// WithHistoryLimit bounds the number of undo entries kept per document.
func WithHistoryLimit(n int) Option {
	return func(m *Manager) {
		if n > 0 {
			m.historyLimit = n
		}
	}
}

// WithNotifier registers a receiver for committed changes.
func WithNotifier(n core.ChangeNotifier) Option {
	return func(m *Manager) {
		m.notifier = n
	}
}

func NewManager(opts ...Option) *Manager {
	m := &Manager{
		documents:    make(map[string]*core.Document),
		history:      make(map[string]*History),
		pixels:       NewPixelStore(),
		historyLimit: DefaultHistoryLimit,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// SetNotifier replaces the change receiver. It is meant to be called during
// wiring, before the manager is shared.
func (m *Manager) SetNotifier(n core.ChangeNotifier) {
	m.mu.Lock()
	m.notifier = n
	m.mu.Unlock()
}

// do runs fn under the registry lock. A panic inside fn poisons the manager:
// that call and every later one fail with InvalidOperation.
func (m *Manager) do(fn func() error) (err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.poisoned {
		return core.InvalidOperation("failed to acquire document manager lock: poisoned by an earlier panic")
	}

	defer func() {
		if r := recover(); r != nil {
			m.poisoned = true
			logrus.WithField("panic", r).Error("Document manager poisoned")
			err = core.InvalidOperation("failed to acquire document manager lock: %v", r)
		}
	}()

	return fn()
}

// mutate runs fn like do and, on success, reports the change outside the lock.
func (m *Manager) mutate(docID, kind, layerID string, fn func() error) error {
	var notifier core.ChangeNotifier
	err := m.do(func() error {
		if err := fn(); err != nil {
			return err
		}
		notifier = m.notifier
		return nil
	})
	if err == nil && notifier != nil {
		notifier.DocumentChanged(core.Change{DocumentID: docID, Kind: kind, LayerID: layerID, At: nowMillis()})
	}
	return err
}

func (m *Manager) document(id string) (*core.Document, error) {
	doc, ok := m.documents[id]
	if !ok {
		return nil, core.DocumentNotFound(id)
	}
	return doc, nil
}

func (m *Manager) layer(docID, layerID string) (*core.Document, *core.Layer, error) {
	doc, err := m.document(docID)
	if err != nil {
		return nil, nil, err
	}
	idx := doc.LayerIndex(layerID)
	if idx < 0 {
		return nil, nil, core.LayerNotFound(layerID)
	}
	return doc, &doc.Layers[idx], nil
}

// owner finds the document holding layerID.
func (m *Manager) owner(layerID string) (*core.Document, *core.Layer, bool) {
	for _, doc := range m.documents {
		if idx := doc.LayerIndex(layerID); idx >= 0 {
			return doc, &doc.Layers[idx], true
		}
	}
	return nil, nil, false
}

func (m *Manager) record(docID, name string) {
	if h, ok := m.history[docID]; ok {
		h.Push(newHistoryEntry(name))
	}
}

// Create opens a new document whose background layer is opaque white.
// A resolution of zero selects DefaultResolution.
func (m *Manager) Create(name string, width, height, resolution int) (core.Document, error) {
	if err := validateSize(width, height); err != nil {
		return core.Document{}, err
	}
	if resolution <= 0 {
		resolution = DefaultResolution
	}

	var out core.Document
	err := m.do(func() error {
		doc := NewDocument(name, width, height, resolution)
		m.pixels.Set(doc.Layers[0].ID, filled(width*height*4, 255))
		m.history[doc.ID] = NewHistory(m.historyLimit)
		m.documents[doc.ID] = &doc
		out = doc.Clone()
		return nil
	})
	if err == nil {
		logrus.WithFields(logrus.Fields{
			"document_id": out.ID,
			"width":       width,
			"height":      height,
		}).Info("Document created")
	}
	return out, err
}

func (m *Manager) Get(id string) (core.Document, error) {
	var out core.Document
	err := m.do(func() error {
		doc, err := m.document(id)
		if err != nil {
			return err
		}
		out = doc.Clone()
		return nil
	})
	return out, err
}

// List returns every open document, oldest first.
func (m *Manager) List() ([]core.Document, error) {
	var out []core.Document
	err := m.do(func() error {
		out = make([]core.Document, 0, len(m.documents))
		for _, doc := range m.documents {
			out = append(out, doc.Clone())
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt == out[j].CreatedAt {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt < out[j].CreatedAt
	})
	return out, err
}

// Close drops the document together with its buffers and history.
func (m *Manager) Close(id string) error {
	err := m.mutate(id, "closed", "", func() error {
		doc, err := m.document(id)
		if err != nil {
			return err
		}
		for _, layer := range doc.Layers {
			m.pixels.Delete(layer.ID)
		}
		delete(m.history, id)
		delete(m.documents, id)
		return nil
	})
	if err == nil {
		logrus.WithField("document_id", id).Info("Document closed")
	}
	return err
}

func (m *Manager) Rename(id, name string) (core.Document, error) {
	var out core.Document
	err := m.mutate(id, "renamed", "", func() error {
		doc, err := m.document(id)
		if err != nil {
			return err
		}
		doc.Name = name
		touch(doc)
		out = doc.Clone()
		return nil
	})
	return out, err
}

func (m *Manager) SetSourcePath(id, path string) (core.Document, error) {
	var out core.Document
	err := m.do(func() error {
		doc, err := m.document(id)
		if err != nil {
			return err
		}
		doc.SourcePath = path
		out = doc.Clone()
		return nil
	})
	return out, err
}

// AddLayer appends a transparent raster layer covering the whole canvas.
func (m *Manager) AddLayer(docID, name string) (core.Layer, error) {
	return m.addLayer(docID, name, 0, 0)
}

// AddLayerSized appends a transparent raster layer of the given size at the
// document origin.
func (m *Manager) AddLayerSized(docID, name string, width, height int) (core.Layer, error) {
	if err := validateSize(width, height); err != nil {
		return core.Layer{}, err
	}
	return m.addLayer(docID, name, width, height)
}

// addLayer sizes the layer to the canvas when width and height are zero,
// reading the canvas in the same critical section that inserts the layer.
func (m *Manager) addLayer(docID, name string, width, height int) (core.Layer, error) {
	layer := NewRasterLayer(name, width, height)
	err := m.mutate(docID, "layer-added", layer.ID, func() error {
		doc, err := m.document(docID)
		if err != nil {
			return err
		}
		if width == 0 && height == 0 {
			layer.Width, layer.Height = doc.Width, doc.Height
		}
		m.pixels.Set(layer.ID, make([]byte, layer.PixelLen()))
		addLayer(doc, layer)
		m.record(docID, "Add Layer")
		return nil
	})
	if err != nil {
		return core.Layer{}, err
	}
	return layer, nil
}

func (m *Manager) RemoveLayer(docID, layerID string) error {
	return m.mutate(docID, "layer-removed", layerID, func() error {
		doc, err := m.document(docID)
		if err != nil {
			return err
		}
		if _, err := removeLayer(doc, layerID); err != nil {
			return err
		}
		m.pixels.Delete(layerID)
		m.record(docID, "Remove Layer")
		return nil
	})
}

func (m *Manager) UpdateLayer(docID, layerID string, update core.LayerUpdate) (core.Layer, error) {
	if update.BlendMode != nil && !update.BlendMode.Valid() {
		return core.Layer{}, core.InvalidOperation("unknown blend mode %q", *update.BlendMode)
	}
	var out core.Layer
	err := m.mutate(docID, "layer-updated", layerID, func() error {
		doc, layer, err := m.layer(docID, layerID)
		if err != nil {
			return err
		}
		layer.Apply(update)
		touch(doc)
		m.record(docID, "Update Layer")
		out = *layer
		return nil
	})
	return out, err
}

func (m *Manager) ReorderLayers(docID string, from, to int) error {
	return m.mutate(docID, "layers-reordered", "", func() error {
		doc, err := m.document(docID)
		if err != nil {
			return err
		}
		if err := reorderLayers(doc, from, to); err != nil {
			return err
		}
		m.record(docID, "Reorder Layers")
		return nil
	})
}

// LayerPixels returns a copy of the buffer of layerID in whichever open
// document owns it. Layers without a stored buffer read as transparent.
func (m *Manager) LayerPixels(layerID string) ([]byte, error) {
	var out []byte
	err := m.do(func() error {
		_, layer, ok := m.owner(layerID)
		if !ok {
			return core.LayerNotFound(layerID)
		}
		out = m.pixels.Copy(layerID)
		if out == nil {
			out = make([]byte, layer.PixelLen())
		}
		return nil
	})
	return out, err
}

// SetLayerPixels replaces the buffer of layerID wherever it lives. The owning
// layer must exist, be unlocked, and match the buffer length.
func (m *Manager) SetLayerPixels(layerID string, px []byte) error {
	var docID string
	err := m.do(func() error {
		doc, layer, ok := m.owner(layerID)
		if !ok {
			return core.LayerNotFound(layerID)
		}
		docID = doc.ID
		return m.replacePixels(doc, layer, px)
	})
	if err == nil {
		m.notify(docID, "pixels-replaced", layerID)
	}
	return err
}

// DocumentLayerPixels is LayerPixels with a membership check: the layer must
// belong to docID. Layers without a stored buffer read as transparent.
func (m *Manager) DocumentLayerPixels(docID, layerID string) ([]byte, error) {
	var out []byte
	err := m.do(func() error {
		_, layer, err := m.layer(docID, layerID)
		if err != nil {
			return err
		}
		out = m.pixels.Copy(layerID)
		if out == nil {
			out = make([]byte, layer.PixelLen())
		}
		return nil
	})
	return out, err
}

func (m *Manager) SetDocumentLayerPixels(docID, layerID string, px []byte) error {
	return m.mutate(docID, "pixels-replaced", layerID, func() error {
		doc, layer, err := m.layer(docID, layerID)
		if err != nil {
			return err
		}
		return m.replacePixels(doc, layer, px)
	})
}

func (m *Manager) replacePixels(doc *core.Document, layer *core.Layer, px []byte) error {
	if layer.Locked {
		return core.InvalidOperation("layer %s is locked", layer.ID)
	}
	if len(px) != layer.PixelLen() {
		return core.InvalidOperation("pixel buffer is %d bytes, layer %s needs %d", len(px), layer.ID, layer.PixelLen())
	}
	buf := make([]byte, len(px))
	copy(buf, px)
	m.pixels.Set(layer.ID, buf)
	touch(doc)
	m.record(doc.ID, "Set Pixels")
	return nil
}

func (m *Manager) notify(docID, kind, layerID string) {
	m.mu.Lock()
	n := m.notifier
	m.mu.Unlock()
	if n != nil {
		n.DocumentChanged(core.Change{DocumentID: docID, Kind: kind, LayerID: layerID, At: nowMillis()})
	}
}

// ApplyBrushStroke stamps every point of the stroke onto a copy of the layer
// buffer and stores the result in one step.
func (m *Manager) ApplyBrushStroke(docID, layerID string, stroke Stroke) error {
	if err := validateStroke(stroke); err != nil {
		return err
	}
	name := "Brush Stroke"
	if stroke.Eraser {
		name = "Eraser"
	}
	return m.mutate(docID, "stroke", layerID, func() error {
		doc, layer, err := m.layer(docID, layerID)
		if err != nil {
			return err
		}
		if layer.Locked {
			return core.InvalidOperation("layer %s is locked", layerID)
		}
		px := m.pixels.Copy(layerID)
		if len(px) != layer.PixelLen() {
			px = make([]byte, layer.PixelLen())
		}
		paintStroke(px, layer.Width, layer.Height, layer.X, layer.Y, stroke)
		m.pixels.Set(layerID, px)
		touch(doc)
		m.record(docID, name)
		return nil
	})
}

func (m *Manager) ApplyFilter(docID, layerID string, f Filter) error {
	if f == nil {
		return core.InvalidOperation("no filter given")
	}
	return m.mutate(docID, "filter", layerID, func() error {
		doc, layer, err := m.layer(docID, layerID)
		if err != nil {
			return err
		}
		if layer.Locked {
			return core.InvalidOperation("layer %s is locked", layerID)
		}
		px := m.pixels.Copy(layerID)
		if len(px) != layer.PixelLen() {
			return core.InvalidOperation("layer %s has no pixel data", layerID)
		}
		m.pixels.Set(layerID, f.apply(px, layer.Width, layer.Height))
		touch(doc)
		m.record(docID, "Filter: "+f.Name())
		return nil
	})
}

// Crop re-expresses every layer on a newWidth x newHeight canvas whose origin
// is (x, y) in the current document space. Negative origins expand the
// canvas; exposed area is transparent. Each buffer is redrawn to cover the
// whole new canvas, so every layer ends up at the origin.
func (m *Manager) Crop(docID string, x, y, newWidth, newHeight int) (core.CropResult, error) {
	if err := validateSize(newWidth, newHeight); err != nil {
		return core.CropResult{}, err
	}
	var out core.CropResult
	err := m.mutate(docID, "cropped", "", func() error {
		doc, err := m.document(docID)
		if err != nil {
			return err
		}
		affected := make([]string, 0, len(doc.Layers))
		for i := range doc.Layers {
			layer := &doc.Layers[i]
			old, _ := m.pixels.Get(layer.ID)
			m.pixels.Set(layer.ID, recropPixels(old, layer.Width, layer.Height, layer.X, layer.Y, x, y, newWidth, newHeight))
			layer.X, layer.Y = 0, 0
			layer.Width = newWidth
			layer.Height = newHeight
			affected = append(affected, layer.ID)
		}
		doc.Width = newWidth
		doc.Height = newHeight
		touch(doc)
		m.record(docID, "Crop")
		out = core.CropResult{DocID: docID, NewWidth: newWidth, NewHeight: newHeight, LayersAffected: affected}
		return nil
	})
	if err == nil {
		logrus.WithFields(logrus.Fields{
			"document_id": docID,
			"x":           x,
			"y":           y,
			"width":       newWidth,
			"height":      newHeight,
		}).Info("Document cropped")
	}
	return out, err
}

// RegisterLoaded inserts a document assembled elsewhere, replacing any open
// document with the same id. Layer ids already owned by another open document
// are rejected.
func (m *Manager) RegisterLoaded(doc core.Document, pixels map[string][]byte) (core.Document, error) {
	var out core.Document
	err := m.do(func() error {
		for _, layer := range doc.Layers {
			if owner, _, ok := m.owner(layer.ID); ok && owner.ID != doc.ID {
				return core.InvalidOperation("layer %s already belongs to document %s", layer.ID, owner.ID)
			}
		}
		for id := range pixels {
			if doc.LayerIndex(id) < 0 {
				return core.InvalidOperation("pixels given for layer %s, which is not in document %s", id, doc.ID)
			}
		}
		if prev, ok := m.documents[doc.ID]; ok {
			for _, layer := range prev.Layers {
				m.pixels.Delete(layer.ID)
			}
		}
		stored := doc.Clone()
		for id, px := range pixels {
			m.pixels.Set(id, px)
		}
		m.history[stored.ID] = NewHistory(m.historyLimit)
		m.documents[stored.ID] = &stored
		out = stored.Clone()
		return nil
	})
	return out, err
}

// AllLayerPixels copies the buffer of every layer in the document that has one.
func (m *Manager) AllLayerPixels(docID string) (map[string][]byte, error) {
	_, pixels, err := m.Snapshot(docID)
	return pixels, err
}

// Snapshot copies a document and its buffers in one critical section, so the
// result can be encoded without holding the lock.
func (m *Manager) Snapshot(docID string) (core.Document, map[string][]byte, error) {
	var (
		doc    core.Document
		pixels map[string][]byte
	)
	err := m.do(func() error {
		d, err := m.document(docID)
		if err != nil {
			return err
		}
		doc = d.Clone()
		pixels = make(map[string][]byte, len(d.Layers))
		for _, layer := range d.Layers {
			if px := m.pixels.Copy(layer.ID); px != nil {
				pixels[layer.ID] = px
			}
		}
		return nil
	})
	return doc, pixels, err
}

// Undo pops the newest history entry. ok is false when there is nothing to undo.
func (m *Manager) Undo(docID string) (entry HistoryEntry, ok bool, err error) {
	err = m.do(func() error {
		h, found := m.history[docID]
		if !found {
			return core.DocumentNotFound(docID)
		}
		entry, ok = h.Undo()
		return nil
	})
	return entry, ok, err
}

func (m *Manager) Redo(docID string) (entry HistoryEntry, ok bool, err error) {
	err = m.do(func() error {
		h, found := m.history[docID]
		if !found {
			return core.DocumentNotFound(docID)
		}
		entry, ok = h.Redo()
		return nil
	})
	return entry, ok, err
}

func (m *Manager) History(docID string) ([]HistoryEntry, error) {
	var out []HistoryEntry
	err := m.do(func() error {
		h, found := m.history[docID]
		if !found {
			return core.DocumentNotFound(docID)
		}
		out = h.Entries()
		return nil
	})
	return out, err
}

func (m *Manager) String() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return fmt.Sprintf("engine.Manager{documents: %d, buffers: %d}", len(m.documents), m.pixels.Len())
}
