package drkr

import (
	"bytes"
	"encoding/json"
	"io"
	"time"

	"github.com/klauspost/compress/zip"
	"github.com/scottdaly/drkr/core"
)

// Writer streams one document into a DRKR archive. Entries are written in a
// fixed order and an error leaves the archive incomplete.
type Writer struct {
	zw  *zip.Writer
	now time.Time
}

func NewWriter(w io.Writer) *Writer {
	return &Writer{zw: zip.NewWriter(w), now: time.Now().UTC()}
}

// Encode returns doc and its layer buffers as a complete archive.
func Encode(doc core.Document, pixels map[string][]byte) ([]byte, error) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	if err := w.WriteDocument(doc, pixels); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteDocument writes mimetype, manifest, document.json, the two previews,
// then meta.json and pixels for each layer in order. Raster layers without a
// buffer are written as transparent.
func (w *Writer) WriteDocument(doc core.Document, pixels map[string][]byte) error {
	if err := w.writeEntry(entryMimeType, zip.Store, []byte(MimeType)); err != nil {
		return err
	}

	stamp := w.now.Format(time.RFC3339)
	manifest := Manifest{
		DrkrVersion: Version,
		Generator:   Generator{Name: GeneratorName, Version: GeneratorVersion, URL: GeneratorURL},
		CreatedAt:   stamp,
		ModifiedAt:  stamp,
	}
	if err := w.writeJSON(entryManifest, manifest); err != nil {
		return err
	}
	if err := w.writeJSON(entryDocument, documentJSONFrom(doc)); err != nil {
		return err
	}

	merged := Merged(doc, pixels)
	thumb, err := encodeImage(Thumbnail(merged, ThumbnailSize))
	if err != nil {
		return err
	}
	if err := w.writeEntry(entryThumbnail+PixelFormat, zip.Deflate, thumb); err != nil {
		return err
	}
	full, err := encodeImage(merged)
	if err != nil {
		return err
	}
	if err := w.writeEntry(entryMerged+PixelFormat, zip.Deflate, full); err != nil {
		return err
	}

	for _, layer := range doc.Layers {
		if err := w.writeJSON(layerMetaPath(layer.ID), layerMetaFrom(layer)); err != nil {
			return err
		}
		if !layer.Type.HasPixels() {
			continue
		}
		px, ok := pixels[layer.ID]
		if !ok {
			px = make([]byte, layer.PixelLen())
		}
		data, err := encodePixels(px, layer.Width, layer.Height)
		if err != nil {
			return err
		}
		if err := w.writeEntry(layerPixelsPath(layer.ID, PixelFormat), zip.Deflate, data); err != nil {
			return err
		}
	}
	return nil
}

// Close writes the zip central directory. It does not close the underlying
// writer.
func (w *Writer) Close() error {
	if err := w.zw.Close(); err != nil {
		return core.IOError(err, "failed to finalize archive")
	}
	return nil
}

func (w *Writer) writeJSON(name string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return core.SerializationError(err, "failed to encode %s", name)
	}
	return w.writeEntry(name, zip.Deflate, data)
}

func (w *Writer) writeEntry(name string, method uint16, data []byte) error {
	f, err := w.zw.CreateHeader(&zip.FileHeader{
		Name:     name,
		Method:   method,
		Modified: w.now,
	})
	if err != nil {
		return core.IOError(err, "failed to add %s", name)
	}
	if _, err := f.Write(data); err != nil {
		return core.IOError(err, "failed to write %s", name)
	}
	return nil
}
