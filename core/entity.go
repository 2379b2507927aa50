package core

import (
	"context"
	"time"
)

type (
	// Document is an open raster document. Layers are ordered bottom to top.
	Document struct {
		ID         string  `json:"id"`
		Name       string  `json:"name"`
		Width      int     `json:"width"`
		Height     int     `json:"height"`
		Resolution int     `json:"resolution"`
		Layers     []Layer `json:"layers"`
		CreatedAt  int64   `json:"createdAt"`
		ModifiedAt int64   `json:"modifiedAt"`
		SourcePath string  `json:"sourcePath,omitempty"`
	}

	// Layer carries geometry and compositing metadata only. Pixels live in the
	// engine's pixel store, keyed by ID.
	Layer struct {
		ID        string    `json:"id"`
		Name      string    `json:"name"`
		Type      LayerType `json:"layerType"`
		Visible   bool      `json:"visible"`
		Locked    bool      `json:"locked"`
		Opacity   uint8     `json:"opacity"`
		BlendMode BlendMode `json:"blendMode"`
		X         int       `json:"x"`
		Y         int       `json:"y"`
		Width     int       `json:"width"`
		Height    int       `json:"height"`
	}

	// LayerUpdate is a partial layer patch; nil fields are left untouched.
	LayerUpdate struct {
		Name      *string    `json:"name,omitempty"`
		Visible   *bool      `json:"visible,omitempty"`
		Locked    *bool      `json:"locked,omitempty"`
		Opacity   *uint8     `json:"opacity,omitempty"`
		BlendMode *BlendMode `json:"blendMode,omitempty"`
		X         *int       `json:"x,omitempty"`
		Y         *int       `json:"y,omitempty"`
	}

	CropResult struct {
		DocID          string   `json:"docId"`
		NewWidth       int      `json:"newWidth"`
		NewHeight      int      `json:"newHeight"`
		LayersAffected []string `json:"layersAffected"`
	}

	// Change describes a committed mutation of an open document.
	Change struct {
		DocumentID string `json:"documentId"`
		Kind       string `json:"kind"`
		LayerID    string `json:"layerId,omitempty"`
		At         int64  `json:"at"`
	}

	// ChangeNotifier receives changes after the registry lock is released.
	ChangeNotifier interface {
		DocumentChanged(change Change)
	}

	ArchiveInfo struct {
		Key       string    `json:"key"`
		Size      int64     `json:"size"`
		UpdatedAt time.Time `json:"updatedAt"`
	}

	// ArchiveStore persists encoded documents (DRKR archives or raster images)
	// under opaque keys.
	ArchiveStore interface {
		Put(ctx context.Context, key string, data []byte) error
		Get(ctx context.Context, key string) ([]byte, error)
		List(ctx context.Context) ([]ArchiveInfo, error)
		Delete(ctx context.Context, key string) error
	}

	Snapshot struct {
		ID          string `json:"id"`
		DocumentID  string `json:"document_id"`
		Name        string `json:"name"`
		Description string `json:"description"`
		Thumbnail   string `json:"thumbnail"`
		CreatedAt   int64  `json:"created_at"`
		Data        []byte `json:"data,omitempty"`
	}

	SnapshotSettings struct {
		DocumentID   string `json:"document_id"`
		MaxSnapshots int    `json:"max_snapshots"`
	}

	// SnapshotStore keeps a bounded list of DRKR snapshots per document.
	SnapshotStore interface {
		CreateSnapshot(ctx context.Context, documentID, name, description, thumbnail string, data []byte) (string, error)
		ListSnapshots(ctx context.Context, documentID string) ([]Snapshot, error)
		GetSnapshot(ctx context.Context, id string) (*Snapshot, error)
		DeleteSnapshot(ctx context.Context, id string) error
		GetSnapshotSettings(ctx context.Context, documentID string) (*SnapshotSettings, error)
		UpdateSnapshotSettings(ctx context.Context, documentID string, maxSnapshots int) error
	}
)

// Clone returns a copy that shares no layer storage with d.
func (d Document) Clone() Document {
	out := d
	out.Layers = make([]Layer, len(d.Layers))
	copy(out.Layers, d.Layers)
	return out
}

// LayerIndex returns the index of the layer with the given id, or -1.
func (d *Document) LayerIndex(layerID string) int {
	for i := range d.Layers {
		if d.Layers[i].ID == layerID {
			return i
		}
	}
	return -1
}

// PixelLen is the byte length of a buffer covering the layer rectangle.
func (l Layer) PixelLen() int {
	return l.Width * l.Height * 4
}

// Apply patches l field by field. Opacity is clamped to 100.
func (l *Layer) Apply(u LayerUpdate) {
	if u.Name != nil {
		l.Name = *u.Name
	}
	if u.Visible != nil {
		l.Visible = *u.Visible
	}
	if u.Locked != nil {
		l.Locked = *u.Locked
	}
	if u.Opacity != nil {
		l.Opacity = *u.Opacity
		if l.Opacity > 100 {
			l.Opacity = 100
		}
	}
	if u.BlendMode != nil {
		l.BlendMode = *u.BlendMode
	}
	if u.X != nil {
		l.X = *u.X
	}
	if u.Y != nil {
		l.Y = *u.Y
	}
}
