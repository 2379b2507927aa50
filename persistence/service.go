// Package persistence moves documents between the engine and an archive store.
// Every operation snapshots engine state under the manager lock, does its
// encoding and store I/O without it, then commits the result.
package persistence

import (
	"context"
	"errors"
	"path"
	"strings"

	"github.com/scottdaly/drkr/core"
	"github.com/scottdaly/drkr/drkr"
	"github.com/scottdaly/drkr/engine"
	"github.com/scottdaly/drkr/imageio"
	"github.com/sirupsen/logrus"
)

const Extension = ".drkr"

type Service struct {
	manager *engine.Manager
	store   core.ArchiveStore
}

func NewService(manager *engine.Manager, store core.ArchiveStore) *Service {
	return &Service{manager: manager, store: store}
}

func (s *Service) Manager() *engine.Manager {
	return s.manager
}

// Save writes the document as a DRKR archive under key. An empty key reuses
// the document's source path, or derives one from its id. The source path is
// updated only after the store accepted the archive.
func (s *Service) Save(ctx context.Context, docID, key string) (core.Document, error) {
	doc, pixels, err := s.manager.Snapshot(docID)
	if err != nil {
		return core.Document{}, err
	}
	if key == "" {
		key = doc.SourcePath
	}
	if key == "" {
		key = doc.ID + Extension
	}

	data, err := drkr.Encode(doc, pixels)
	if err != nil {
		return core.Document{}, err
	}
	if err := s.put(ctx, key, data); err != nil {
		return core.Document{}, err
	}

	logrus.WithFields(logrus.Fields{
		"document_id": docID,
		"key":         key,
		"size":        len(data),
	}).Info("Document saved")
	return s.manager.SetSourcePath(docID, key)
}

// Open loads the DRKR archive stored under key and registers it with the
// manager, replacing any open document with the same id.
func (s *Service) Open(ctx context.Context, key string) (core.Document, error) {
	data, err := s.get(ctx, key)
	if err != nil {
		return core.Document{}, err
	}
	res, err := drkr.Decode(data)
	if err != nil {
		return core.Document{}, err
	}
	res.Document.SourcePath = key

	doc, err := s.manager.RegisterLoaded(res.Document, res.Pixels)
	if err != nil {
		return core.Document{}, err
	}
	logrus.WithFields(logrus.Fields{
		"document_id": doc.ID,
		"key":         key,
		"layers":      len(doc.Layers),
	}).Info("Document opened")
	return doc, nil
}

// Import decodes a PNG, JPEG, GIF, BMP, TIFF or WebP image into a new
// document whose background layer holds the image.
func (s *Service) Import(ctx context.Context, key string) (core.Document, error) {
	data, err := s.get(ctx, key)
	if err != nil {
		return core.Document{}, err
	}
	width, height, err := imageio.DecodeConfig(data)
	if err != nil {
		return core.Document{}, err
	}
	if width <= 0 || height <= 0 || width > engine.MaxDimension || height > engine.MaxDimension {
		return core.Document{}, core.InvalidOperation("image size %dx%d is out of range", width, height)
	}
	px, width, height, err := imageio.Decode(data)
	if err != nil {
		return core.Document{}, err
	}

	doc := engine.NewDocument(nameFromKey(key), width, height, engine.DefaultResolution)
	doc, err = s.manager.RegisterLoaded(doc, map[string][]byte{doc.Layers[0].ID: px})
	if err != nil {
		return core.Document{}, err
	}
	logrus.WithFields(logrus.Fields{
		"document_id": doc.ID,
		"key":         key,
		"width":       width,
		"height":      height,
	}).Info("Image imported")
	return doc, nil
}

// Export writes the flattened visible layers of the document under key in the
// given raster format. An empty format is taken from the key's extension.
func (s *Service) Export(ctx context.Context, docID, key string, format imageio.Format) error {
	if format == "" {
		f, err := imageio.FormatFromKey(key)
		if err != nil {
			return err
		}
		format = f
	}
	doc, pixels, err := s.manager.Snapshot(docID)
	if err != nil {
		return err
	}
	data, err := imageio.Encode(format, engine.Flatten(doc, pixels), doc.Width, doc.Height)
	if err != nil {
		return err
	}
	if err := s.put(ctx, key, data); err != nil {
		return err
	}
	logrus.WithFields(logrus.Fields{
		"document_id": docID,
		"key":         key,
		"format":      format,
	}).Info("Document exported")
	return nil
}

// EncodeDocument returns the document as DRKR bytes without storing them.
func (s *Service) EncodeDocument(docID string) ([]byte, error) {
	doc, pixels, err := s.manager.Snapshot(docID)
	if err != nil {
		return nil, err
	}
	return drkr.Encode(doc, pixels)
}

// DecodeDocument registers a document from DRKR bytes held in memory.
func (s *Service) DecodeDocument(data []byte) (core.Document, error) {
	res, err := drkr.Decode(data)
	if err != nil {
		return core.Document{}, err
	}
	return s.manager.RegisterLoaded(res.Document, res.Pixels)
}

// Preview renders the flattened document as PNG. A positive maxSize scales
// the result to fit within maxSize x maxSize.
func (s *Service) Preview(docID string, maxSize int) ([]byte, error) {
	doc, pixels, err := s.manager.Snapshot(docID)
	if err != nil {
		return nil, err
	}
	img := drkr.Merged(doc, pixels)
	if maxSize > 0 {
		img = drkr.Thumbnail(img, maxSize)
	}
	return imageio.Encode(imageio.PNG, img.Pix, img.Rect.Dx(), img.Rect.Dy())
}

// Read returns the raw bytes stored under key.
func (s *Service) Read(ctx context.Context, key string) ([]byte, error) {
	return s.get(ctx, key)
}

// Write stores raw bytes under key, e.g. an image uploaded for Import.
func (s *Service) Write(ctx context.Context, key string, data []byte) error {
	return s.put(ctx, key, data)
}

func (s *Service) List(ctx context.Context) ([]core.ArchiveInfo, error) {
	infos, err := s.store.List(ctx)
	if err != nil {
		return nil, core.IOError(err, "failed to list archives")
	}
	return infos, nil
}

func (s *Service) Delete(ctx context.Context, key string) error {
	if err := s.store.Delete(ctx, key); err != nil {
		return storeError(err, key)
	}
	return nil
}

func (s *Service) get(ctx context.Context, key string) ([]byte, error) {
	if key == "" {
		return nil, core.InvalidOperation("archive key is required")
	}
	data, err := s.store.Get(ctx, key)
	if err != nil {
		return nil, storeError(err, key)
	}
	return data, nil
}

func (s *Service) put(ctx context.Context, key string, data []byte) error {
	if err := s.store.Put(ctx, key, data); err != nil {
		return storeError(err, key)
	}
	return nil
}

// storeError keeps engine errors as they are and reports everything else as
// I/O failures.
func storeError(err error, key string) error {
	if core.KindOf(err) != "" {
		return err
	}
	if errors.Is(err, core.ErrArchiveNotFound) {
		return core.IOError(err, "archive %q", key)
	}
	return core.IOError(err, "archive store failed for %q", key)
}

func nameFromKey(key string) string {
	base := path.Base(key)
	if ext := path.Ext(base); ext != "" && ext != base {
		base = strings.TrimSuffix(base, ext)
	}
	if base == "" || base == "." || base == "/" {
		return "Untitled"
	}
	return base
}
