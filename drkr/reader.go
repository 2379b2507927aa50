package drkr

import (
	"bytes"
	"encoding/json"
	"io"
	"time"

	"github.com/klauspost/compress/zip"
	"github.com/scottdaly/drkr/core"
	"github.com/scottdaly/drkr/engine"
	"github.com/sirupsen/logrus"
)

// Result is a fully loaded archive. Document has fresh timestamps and no
// source path.
type Result struct {
	Document   core.Document
	Pixels     map[string][]byte
	Descriptor DocumentJSON
	Manifest   Manifest
}

type Reader struct {
	files map[string]*zip.File
}

func NewReader(r io.ReaderAt, size int64) (*Reader, error) {
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return nil, core.IOError(err, "invalid zip archive")
	}
	files := make(map[string]*zip.File, len(zr.File))
	for _, f := range zr.File {
		if _, dup := files[f.Name]; !dup {
			files[f.Name] = f
		}
	}
	return &Reader{files: files}, nil
}

// Decode reads a whole archive held in memory.
func Decode(data []byte) (*Result, error) {
	r, err := NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, err
	}
	return r.ReadAll()
}

// Validate checks the mimetype entry and the manifest major version.
func (r *Reader) Validate() error {
	mime, err := r.readEntry(entryMimeType)
	if err != nil {
		return err
	}
	if string(mime) != MimeType {
		return core.InvalidOperation("invalid DRKR file: expected mimetype %q, got %q", MimeType, string(mime))
	}
	manifest, err := r.ReadManifest()
	if err != nil {
		return err
	}
	if manifest.MajorVersion() > SupportedMajor {
		return core.InvalidOperation("unsupported DRKR version: %s", manifest.DrkrVersion)
	}
	return nil
}

func (r *Reader) ReadManifest() (Manifest, error) {
	var m Manifest
	err := r.readJSON(entryManifest, &m)
	return m, err
}

func (r *Reader) ReadDocument() (DocumentJSON, error) {
	var d DocumentJSON
	err := r.readJSON(entryDocument, &d)
	return d, err
}

func (r *Reader) ReadLayerMeta(id string) (LayerMeta, error) {
	m := layerMetaDefaults()
	err := r.readJSON(layerMetaPath(id), &m)
	return m, err
}

// ReadLayerPixels decodes the pixel payload of a layer, whichever supported
// format it was stored in.
func (r *Reader) ReadLayerPixels(meta LayerMeta) ([]byte, error) {
	formats := []string{PixelFormat, "webp"}
	if meta.Storage != nil && meta.Storage.Format != "" {
		formats = append([]string{meta.Storage.Format}, formats...)
	}
	for _, format := range formats {
		if _, ok := r.files[layerPixelsPath(meta.ID, format)]; !ok {
			continue
		}
		data, err := r.readEntry(layerPixelsPath(meta.ID, format))
		if err != nil {
			return nil, err
		}
		return decodePixels(data, meta.Size.Width, meta.Size.Height)
	}
	return nil, core.IOError(nil, "no pixel payload for layer %s", meta.ID)
}

// ReadThumbnail returns the decoded preview/thumbnail image.
func (r *Reader) ReadThumbnail() ([]byte, int, int, error) {
	for _, format := range []string{PixelFormat, "webp"} {
		name := entryThumbnail + format
		if _, ok := r.files[name]; !ok {
			continue
		}
		data, err := r.readEntry(name)
		if err != nil {
			return nil, 0, 0, err
		}
		cfg, err := decodeConfig(data)
		if err != nil {
			return nil, 0, 0, err
		}
		px, err := decodePixels(data, cfg.Width, cfg.Height)
		return px, cfg.Width, cfg.Height, err
	}
	return nil, 0, 0, core.IOError(nil, "archive has no thumbnail")
}

// ReadAll validates the archive and assembles the document. A layer whose
// pixels cannot be read is replaced by a transparent buffer.
func (r *Reader) ReadAll() (*Result, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}
	manifest, err := r.ReadManifest()
	if err != nil {
		return nil, err
	}
	desc, err := r.ReadDocument()
	if err != nil {
		return nil, err
	}
	if err := checkSize(desc.Width, desc.Height); err != nil {
		return nil, err
	}

	now := time.Now().UnixMilli()
	doc := core.Document{
		ID:         desc.ID,
		Name:       desc.Name,
		Width:      desc.Width,
		Height:     desc.Height,
		Resolution: engine.DefaultResolution,
		Layers:     make([]core.Layer, 0, len(desc.Layers)),
		CreatedAt:  now,
		ModifiedAt: now,
	}
	if desc.Resolution != nil && desc.Resolution.Value > 0 {
		doc.Resolution = desc.Resolution.Value
	}

	pixels := make(map[string][]byte, len(desc.Layers))
	for _, ref := range desc.Layers {
		meta, err := r.ReadLayerMeta(ref.ID)
		if err != nil {
			return nil, err
		}
		if meta.ID == "" {
			meta.ID = ref.ID
		}
		layer := meta.layer()
		if !hasPixelPayload(ref.Type) {
			doc.Layers = append(doc.Layers, layer)
			continue
		}
		if err := checkSize(layer.Width, layer.Height); err != nil {
			return nil, err
		}
		doc.Layers = append(doc.Layers, layer)
		px, err := r.ReadLayerPixels(meta)
		if err != nil {
			logrus.WithFields(logrus.Fields{
				"document_id": desc.ID,
				"layer_id":    ref.ID,
				"error":       err,
			}).Warn("Failed to read layer pixels, substituting a transparent buffer")
			px = make([]byte, layer.PixelLen())
		}
		pixels[layer.ID] = px
	}

	return &Result{Document: doc, Pixels: pixels, Descriptor: desc, Manifest: manifest}, nil
}

func checkSize(width, height int) error {
	if width <= 0 || height <= 0 || width > engine.MaxDimension || height > engine.MaxDimension {
		return core.InvalidOperation("invalid DRKR file: size %dx%d out of range", width, height)
	}
	return nil
}

func (r *Reader) readJSON(name string, v any) error {
	data, err := r.readEntry(name)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return core.SerializationError(err, "failed to parse %s", name)
	}
	return nil
}

func (r *Reader) readEntry(name string) ([]byte, error) {
	f, ok := r.files[name]
	if !ok {
		return nil, core.IOError(nil, "file %q not found in archive", name)
	}
	rc, err := f.Open()
	if err != nil {
		return nil, core.IOError(err, "failed to open %s", name)
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, core.IOError(err, "failed to read %s", name)
	}
	return data, nil
}
