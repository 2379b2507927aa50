package engine

import (
	"bytes"
	"sync"
	"testing"

	"github.com/scottdaly/drkr/core"
)

type recordingNotifier struct {
	mu      sync.Mutex
	changes []core.Change
}

func (r *recordingNotifier) DocumentChanged(c core.Change) {
	r.mu.Lock()
	r.changes = append(r.changes, c)
	r.mu.Unlock()
}

func (r *recordingNotifier) kinds() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.changes))
	for _, c := range r.changes {
		out = append(out, c.Kind)
	}
	return out
}

func mustCreate(t *testing.T, m *Manager, w, h int) core.Document {
	t.Helper()
	doc, err := m.Create("test", w, h, 72)
	if err != nil {
		t.Fatalf("Create() failed: %v", err)
	}
	return doc
}

func TestManager_CreateWhiteBackground(t *testing.T) {
	m := NewManager()
	doc := mustCreate(t, m, 4, 4)

	if len(doc.Layers) != 1 {
		t.Fatalf("Create() produced %d layers, want 1", len(doc.Layers))
	}
	bg := doc.Layers[0]
	if bg.Name != "Background" || bg.Width != 4 || bg.Height != 4 {
		t.Errorf("background layer = %+v", bg)
	}

	px, err := m.LayerPixels(bg.ID)
	if err != nil {
		t.Fatalf("LayerPixels() failed: %v", err)
	}
	if !bytes.Equal(px, bytes.Repeat([]byte{255}, 64)) {
		t.Errorf("background pixels = %v, want 64 bytes of 255", px)
	}
}

func TestManager_CreateDefaults(t *testing.T) {
	m := NewManager()
	doc, err := m.Create("dpi", 2, 2, 0)
	if err != nil {
		t.Fatalf("Create() failed: %v", err)
	}
	if doc.Resolution != DefaultResolution {
		t.Errorf("Resolution = %d, want %d", doc.Resolution, DefaultResolution)
	}
	if len(doc.ID) != 26 {
		t.Errorf("Create() returned invalid ID length: got %d, want 26", len(doc.ID))
	}
}

func TestManager_CreateRejectsBadSize(t *testing.T) {
	m := NewManager()
	for _, size := range [][2]int{{0, 4}, {4, 0}, {-1, 1}, {MaxDimension + 1, 1}} {
		if _, err := m.Create("bad", size[0], size[1], 72); !core.IsKind(err, core.KindInvalidOperation) {
			t.Errorf("Create(%dx%d) = %v, want InvalidOperation", size[0], size[1], err)
		}
	}
}

func TestManager_GetReturnsCopy(t *testing.T) {
	m := NewManager()
	doc := mustCreate(t, m, 2, 2)
	doc.Layers[0].Name = "mutated"

	again, err := m.Get(doc.ID)
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}
	if again.Layers[0].Name != "Background" {
		t.Error("mutating a returned document changed the registry")
	}
}

func TestManager_NotFound(t *testing.T) {
	m := NewManager()
	if _, err := m.Get("missing"); !core.IsKind(err, core.KindDocumentNotFound) {
		t.Errorf("Get() = %v, want DocumentNotFound", err)
	}
	doc := mustCreate(t, m, 2, 2)
	if err := m.RemoveLayer(doc.ID, "missing"); !core.IsKind(err, core.KindLayerNotFound) {
		t.Errorf("RemoveLayer() = %v, want LayerNotFound", err)
	}
	if _, err := m.LayerPixels("missing"); !core.IsKind(err, core.KindLayerNotFound) {
		t.Errorf("LayerPixels() = %v, want LayerNotFound", err)
	}
}

func TestManager_CloseCascades(t *testing.T) {
	m := NewManager()
	doc := mustCreate(t, m, 2, 2)
	layer, err := m.AddLayer(doc.ID, "extra")
	if err != nil {
		t.Fatalf("AddLayer() failed: %v", err)
	}

	if err := m.Close(doc.ID); err != nil {
		t.Fatalf("Close() failed: %v", err)
	}
	if _, err := m.Get(doc.ID); !core.IsKind(err, core.KindDocumentNotFound) {
		t.Errorf("Get() after Close = %v, want DocumentNotFound", err)
	}
	for _, id := range []string{doc.Layers[0].ID, layer.ID} {
		if _, err := m.LayerPixels(id); !core.IsKind(err, core.KindLayerNotFound) {
			t.Errorf("LayerPixels(%s) after Close = %v, want LayerNotFound", id, err)
		}
	}
	if err := m.Close(doc.ID); !core.IsKind(err, core.KindDocumentNotFound) {
		t.Errorf("second Close() = %v, want DocumentNotFound", err)
	}
}

func TestManager_ListOrdersByCreation(t *testing.T) {
	m := NewManager()
	a := mustCreate(t, m, 1, 1)
	b := mustCreate(t, m, 1, 1)

	docs, err := m.List()
	if err != nil {
		t.Fatalf("List() failed: %v", err)
	}
	if len(docs) != 2 {
		t.Fatalf("List() returned %d documents, want 2", len(docs))
	}
	ids := map[string]bool{docs[0].ID: true, docs[1].ID: true}
	if !ids[a.ID] || !ids[b.ID] {
		t.Errorf("List() = %v, want %s and %s", ids, a.ID, b.ID)
	}
	if docs[0].CreatedAt > docs[1].CreatedAt {
		t.Error("List() is not ordered by creation time")
	}
}

func TestManager_LayerLifecycle(t *testing.T) {
	m := NewManager()
	doc := mustCreate(t, m, 3, 2)

	layer, err := m.AddLayer(doc.ID, "ink")
	if err != nil {
		t.Fatalf("AddLayer() failed: %v", err)
	}
	if layer.Width != 3 || layer.Height != 2 || layer.Opacity != 100 || !layer.Visible {
		t.Errorf("AddLayer() = %+v", layer)
	}
	px, err := m.DocumentLayerPixels(doc.ID, layer.ID)
	if err != nil {
		t.Fatalf("DocumentLayerPixels() failed: %v", err)
	}
	if !bytes.Equal(px, make([]byte, 3*2*4)) {
		t.Error("new layer is not transparent")
	}

	if err := m.RemoveLayer(doc.ID, layer.ID); err != nil {
		t.Fatalf("RemoveLayer() failed: %v", err)
	}
	got, _ := m.Get(doc.ID)
	if len(got.Layers) != 1 {
		t.Errorf("document has %d layers after remove, want 1", len(got.Layers))
	}
	if _, err := m.LayerPixels(layer.ID); !core.IsKind(err, core.KindLayerNotFound) {
		t.Errorf("LayerPixels() after remove = %v, want LayerNotFound", err)
	}
}

func TestManager_UpdateLayer(t *testing.T) {
	m := NewManager()
	doc := mustCreate(t, m, 2, 2)
	id := doc.Layers[0].ID

	name := "Paper"
	opacity := uint8(250)
	mode := core.BlendMultiply
	x, y := -3, 7
	layer, err := m.UpdateLayer(doc.ID, id, core.LayerUpdate{
		Name:      &name,
		Opacity:   &opacity,
		BlendMode: &mode,
		X:         &x,
		Y:         &y,
	})
	if err != nil {
		t.Fatalf("UpdateLayer() failed: %v", err)
	}
	if layer.Name != "Paper" || layer.Opacity != 100 || layer.BlendMode != core.BlendMultiply || layer.X != -3 || layer.Y != 7 {
		t.Errorf("UpdateLayer() = %+v", layer)
	}
	if !layer.Visible {
		t.Error("UpdateLayer() changed a field that was not in the patch")
	}

	bogus := core.BlendMode("sparkle")
	if _, err := m.UpdateLayer(doc.ID, id, core.LayerUpdate{BlendMode: &bogus}); !core.IsKind(err, core.KindInvalidOperation) {
		t.Errorf("UpdateLayer(bad blend mode) = %v, want InvalidOperation", err)
	}
}

func TestManager_ReorderLayers(t *testing.T) {
	m := NewManager()
	doc := mustCreate(t, m, 1, 1)
	a, _ := m.AddLayer(doc.ID, "a")
	b, _ := m.AddLayer(doc.ID, "b")

	if err := m.ReorderLayers(doc.ID, 2, 0); err != nil {
		t.Fatalf("ReorderLayers() failed: %v", err)
	}
	got, _ := m.Get(doc.ID)
	want := []string{b.ID, doc.Layers[0].ID, a.ID}
	for i, id := range want {
		if got.Layers[i].ID != id {
			t.Errorf("layer %d = %s, want %s", i, got.Layers[i].ID, id)
		}
	}

	for _, idx := range [][2]int{{-1, 0}, {0, 3}, {5, 5}} {
		if err := m.ReorderLayers(doc.ID, idx[0], idx[1]); !core.IsKind(err, core.KindInvalidOperation) {
			t.Errorf("ReorderLayers(%d, %d) = %v, want InvalidOperation", idx[0], idx[1], err)
		}
	}
}

func TestManager_SetPixelsChecks(t *testing.T) {
	m := NewManager()
	doc := mustCreate(t, m, 2, 1)
	other := mustCreate(t, m, 2, 1)
	id := doc.Layers[0].ID

	if err := m.SetLayerPixels(id, []byte{1, 2, 3}); !core.IsKind(err, core.KindInvalidOperation) {
		t.Errorf("SetLayerPixels(short) = %v, want InvalidOperation", err)
	}
	if err := m.SetDocumentLayerPixels(other.ID, id, make([]byte, 8)); !core.IsKind(err, core.KindLayerNotFound) {
		t.Errorf("SetDocumentLayerPixels(foreign layer) = %v, want LayerNotFound", err)
	}
	if _, err := m.DocumentLayerPixels(other.ID, id); !core.IsKind(err, core.KindLayerNotFound) {
		t.Errorf("DocumentLayerPixels(foreign layer) = %v, want LayerNotFound", err)
	}

	want := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	if err := m.SetLayerPixels(id, want); err != nil {
		t.Fatalf("SetLayerPixels() failed: %v", err)
	}
	want[0] = 99
	got, _ := m.LayerPixels(id)
	if got[0] != 1 {
		t.Error("SetLayerPixels() kept a reference to the caller's buffer")
	}

	locked := true
	if _, err := m.UpdateLayer(doc.ID, id, core.LayerUpdate{Locked: &locked}); err != nil {
		t.Fatalf("UpdateLayer() failed: %v", err)
	}
	if err := m.SetLayerPixels(id, make([]byte, 8)); !core.IsKind(err, core.KindInvalidOperation) {
		t.Errorf("SetLayerPixels(locked) = %v, want InvalidOperation", err)
	}
}

func TestManager_BrushStroke(t *testing.T) {
	m := NewManager()
	doc := mustCreate(t, m, 4, 4)
	layer, _ := m.AddLayer(doc.ID, "paint")

	stroke := Stroke{
		Points:   []StrokePoint{{X: 2, Y: 2, Pressure: pressure(1)}},
		Settings: hardRound(4),
		Color:    BrushColor{R: 255, A: 1},
	}
	if err := m.ApplyBrushStroke(doc.ID, layer.ID, stroke); err != nil {
		t.Fatalf("ApplyBrushStroke() failed: %v", err)
	}

	px, _ := m.LayerPixels(layer.ID)
	center := (2*4 + 2) * 4
	if !bytes.Equal(px[center:center+4], []byte{255, 0, 0, 255}) {
		t.Errorf("center pixel = %v, want opaque red", px[center:center+4])
	}
	if !bytes.Equal(px[0:4], []byte{0, 0, 0, 0}) {
		t.Errorf("corner pixel = %v, want untouched", px[0:4])
	}

	entries, _ := m.History(doc.ID)
	if len(entries) != 2 || entries[1].Name != "Brush Stroke" {
		t.Errorf("History() = %+v, want Add Layer then Brush Stroke", entries)
	}
}

func TestManager_LockedLayerRejectsEdits(t *testing.T) {
	m := NewManager()
	doc := mustCreate(t, m, 4, 4)
	id := doc.Layers[0].ID
	locked := true
	if _, err := m.UpdateLayer(doc.ID, id, core.LayerUpdate{Locked: &locked}); err != nil {
		t.Fatalf("UpdateLayer() failed: %v", err)
	}

	stroke := Stroke{
		Points:   []StrokePoint{{X: 2, Y: 2}},
		Settings: hardRound(4),
		Color:    BrushColor{A: 1},
	}
	if err := m.ApplyBrushStroke(doc.ID, id, stroke); !core.IsKind(err, core.KindInvalidOperation) {
		t.Errorf("ApplyBrushStroke(locked) = %v, want InvalidOperation", err)
	}
	if err := m.ApplyFilter(doc.ID, id, Invert{}); !core.IsKind(err, core.KindInvalidOperation) {
		t.Errorf("ApplyFilter(locked) = %v, want InvalidOperation", err)
	}

	px, _ := m.LayerPixels(id)
	if !bytes.Equal(px, bytes.Repeat([]byte{255}, 64)) {
		t.Error("locked layer pixels changed")
	}
}

func TestManager_BrushStrokeMissing(t *testing.T) {
	m := NewManager()
	stroke := Stroke{Points: []StrokePoint{{X: 1, Y: 1}}, Settings: hardRound(2), Color: BrushColor{A: 1}}
	if err := m.ApplyBrushStroke("nope", "nope", stroke); !core.IsKind(err, core.KindDocumentNotFound) {
		t.Errorf("ApplyBrushStroke(missing doc) = %v, want DocumentNotFound", err)
	}
	doc := mustCreate(t, m, 2, 2)
	if err := m.ApplyBrushStroke(doc.ID, "nope", stroke); !core.IsKind(err, core.KindLayerNotFound) {
		t.Errorf("ApplyBrushStroke(missing layer) = %v, want LayerNotFound", err)
	}
}

func TestManager_Crop(t *testing.T) {
	m := NewManager()
	doc := mustCreate(t, m, 4, 4)

	res, err := m.Crop(doc.ID, -1, -1, 6, 6)
	if err != nil {
		t.Fatalf("Crop() failed: %v", err)
	}
	if res.NewWidth != 6 || res.NewHeight != 6 || len(res.LayersAffected) != 1 || res.DocID != doc.ID {
		t.Errorf("Crop() = %+v", res)
	}

	got, _ := m.Get(doc.ID)
	bg := got.Layers[0]
	if got.Width != 6 || got.Height != 6 || bg.Width != 6 || bg.Height != 6 || bg.X != 0 || bg.Y != 0 {
		t.Errorf("after Crop document = %dx%d, layer = %+v", got.Width, got.Height, bg)
	}

	px, _ := m.LayerPixels(bg.ID)
	if len(px) != 6*6*4 {
		t.Fatalf("cropped buffer is %d bytes, want %d", len(px), 6*6*4)
	}
	opaque := 0
	for i := 0; i < len(px); i += 4 {
		if px[i+3] == 255 {
			opaque++
		}
	}
	if opaque != 16 {
		t.Errorf("cropped buffer has %d opaque pixels, want 16", opaque)
	}
}

func TestManager_CropThenInverseRestoresComposite(t *testing.T) {
	m := NewManager()
	doc := mustCreate(t, m, 4, 4)

	if _, err := m.Crop(doc.ID, -1, -1, 6, 6); err != nil {
		t.Fatalf("Crop(expand) failed: %v", err)
	}
	expanded, pixels, err := m.Snapshot(doc.ID)
	if err != nil {
		t.Fatalf("Snapshot() failed: %v", err)
	}
	flat := Flatten(expanded, pixels)
	for y := 0; y < 6; y++ {
		for x := 0; x < 6; x++ {
			inside := x >= 1 && x <= 4 && y >= 1 && y <= 4
			if a := flat[(y*6+x)*4+3]; (a == 255) != inside {
				t.Errorf("expanded composite alpha at (%d,%d) = %d, inside = %v", x, y, a, inside)
			}
		}
	}

	if _, err := m.Crop(doc.ID, 1, 1, 4, 4); err != nil {
		t.Fatalf("Crop(inverse) failed: %v", err)
	}
	restored, pixels, err := m.Snapshot(doc.ID)
	if err != nil {
		t.Fatalf("Snapshot() failed: %v", err)
	}
	if restored.Width != 4 || restored.Height != 4 {
		t.Fatalf("restored canvas = %dx%d, want 4x4", restored.Width, restored.Height)
	}
	if got := Flatten(restored, pixels); !bytes.Equal(got, bytes.Repeat([]byte{255}, 4*4*4)) {
		t.Errorf("inverse crop composite = %v, want all 255", got)
	}
}

func TestManager_CropKeepsOffsetLayerInPlace(t *testing.T) {
	m := NewManager()
	doc := mustCreate(t, m, 6, 2)
	layer, err := m.AddLayerSized(doc.ID, "dot", 1, 1)
	if err != nil {
		t.Fatalf("AddLayerSized() failed: %v", err)
	}
	x := 4
	if _, err := m.UpdateLayer(doc.ID, layer.ID, core.LayerUpdate{X: &x}); err != nil {
		t.Fatalf("UpdateLayer() failed: %v", err)
	}
	if err := m.SetLayerPixels(layer.ID, []byte{9, 9, 9, 255}); err != nil {
		t.Fatalf("SetLayerPixels() failed: %v", err)
	}

	// The dot sits at document x=4; after cropping from x=2 it must land at x=2.
	if _, err := m.Crop(doc.ID, 2, 0, 4, 2); err != nil {
		t.Fatalf("Crop() failed: %v", err)
	}
	px, err := m.LayerPixels(layer.ID)
	if err != nil {
		t.Fatalf("LayerPixels() failed: %v", err)
	}
	for i := 0; i < len(px); i += 4 {
		want := byte(0)
		if i/4 == 2 {
			want = 255
		}
		if px[i+3] != want {
			t.Errorf("pixel %d alpha = %d, want %d", i/4, px[i+3], want)
		}
	}
}

func TestManager_AddLayerUsesCurrentCanvas(t *testing.T) {
	m := NewManager()
	doc := mustCreate(t, m, 4, 4)
	if _, err := m.Crop(doc.ID, 0, 0, 3, 2); err != nil {
		t.Fatalf("Crop() failed: %v", err)
	}
	layer, err := m.AddLayer(doc.ID, "after crop")
	if err != nil {
		t.Fatalf("AddLayer() failed: %v", err)
	}
	if layer.Width != 3 || layer.Height != 2 {
		t.Errorf("AddLayer() size = %dx%d, want 3x2", layer.Width, layer.Height)
	}
	px, _ := m.LayerPixels(layer.ID)
	if len(px) != 3*2*4 {
		t.Errorf("new layer buffer is %d bytes, want %d", len(px), 3*2*4)
	}
	if _, err := m.AddLayer("missing", "x"); !core.IsKind(err, core.KindDocumentNotFound) {
		t.Errorf("AddLayer(missing) = %v, want DocumentNotFound", err)
	}
}

func TestManager_CropRejectsZeroArea(t *testing.T) {
	m := NewManager()
	doc := mustCreate(t, m, 4, 4)
	if _, err := m.Crop(doc.ID, 0, 0, 0, 4); !core.IsKind(err, core.KindInvalidOperation) {
		t.Errorf("Crop(zero width) = %v, want InvalidOperation", err)
	}
	if _, err := m.Crop("missing", 0, 0, 1, 1); !core.IsKind(err, core.KindDocumentNotFound) {
		t.Errorf("Crop(missing) = %v, want DocumentNotFound", err)
	}
}

func TestManager_Filter(t *testing.T) {
	m := NewManager()
	doc := mustCreate(t, m, 2, 2)
	id := doc.Layers[0].ID

	if err := m.ApplyFilter(doc.ID, id, Invert{}); err != nil {
		t.Fatalf("ApplyFilter() failed: %v", err)
	}
	px, _ := m.LayerPixels(id)
	if !bytes.Equal(px[0:4], []byte{0, 0, 0, 255}) {
		t.Errorf("inverted pixel = %v, want opaque black", px[0:4])
	}
}

func TestManager_UndoRedo(t *testing.T) {
	m := NewManager(WithHistoryLimit(2))
	doc := mustCreate(t, m, 1, 1)

	if _, ok, err := m.Undo(doc.ID); err != nil || ok {
		t.Errorf("Undo() on fresh document = %v, %v", ok, err)
	}
	for _, name := range []string{"a", "b", "c"} {
		if _, err := m.AddLayer(doc.ID, name); err != nil {
			t.Fatalf("AddLayer() failed: %v", err)
		}
	}
	entries, _ := m.History(doc.ID)
	if len(entries) != 2 {
		t.Fatalf("History() has %d entries, want 2", len(entries))
	}

	undone, ok, err := m.Undo(doc.ID)
	if err != nil || !ok {
		t.Fatalf("Undo() = %v, %v", ok, err)
	}
	redone, ok, err := m.Redo(doc.ID)
	if err != nil || !ok || redone.ID != undone.ID {
		t.Errorf("Redo() = %+v, %v, %v; want %+v", redone, ok, err, undone)
	}

	if _, _, err := m.Undo("missing"); !core.IsKind(err, core.KindDocumentNotFound) {
		t.Errorf("Undo(missing) = %v, want DocumentNotFound", err)
	}
}

func TestManager_PoisonedAfterPanic(t *testing.T) {
	m := NewManager()
	doc := mustCreate(t, m, 1, 1)

	err := m.do(func() error {
		panic("boom")
	})
	if !core.IsKind(err, core.KindInvalidOperation) {
		t.Fatalf("do(panic) = %v, want InvalidOperation", err)
	}
	if _, err := m.Get(doc.ID); !core.IsKind(err, core.KindInvalidOperation) {
		t.Errorf("Get() after panic = %v, want InvalidOperation", err)
	}
}

func TestManager_NotifiesAfterCommit(t *testing.T) {
	n := &recordingNotifier{}
	m := NewManager(WithNotifier(n))
	doc := mustCreate(t, m, 2, 2)

	if _, err := m.Rename(doc.ID, "renamed"); err != nil {
		t.Fatalf("Rename() failed: %v", err)
	}
	if err := m.SetLayerPixels(doc.Layers[0].ID, make([]byte, 16)); err != nil {
		t.Fatalf("SetLayerPixels() failed: %v", err)
	}
	if err := m.RemoveLayer(doc.ID, "missing"); err == nil {
		t.Fatal("RemoveLayer(missing) succeeded")
	}
	if err := m.Close(doc.ID); err != nil {
		t.Fatalf("Close() failed: %v", err)
	}

	got := n.kinds()
	want := []string{"renamed", "pixels-replaced", "closed"}
	if len(got) != len(want) {
		t.Fatalf("notifications = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("notification %d = %s, want %s", i, got[i], want[i])
		}
	}
}

func TestManager_SnapshotAndRegister(t *testing.T) {
	m := NewManager()
	doc := mustCreate(t, m, 2, 2)

	snap, pixels, err := m.Snapshot(doc.ID)
	if err != nil {
		t.Fatalf("Snapshot() failed: %v", err)
	}
	if len(pixels) != 1 || len(pixels[snap.Layers[0].ID]) != 16 {
		t.Fatalf("Snapshot() pixels = %v", pixels)
	}

	other := NewManager()
	loaded, err := other.RegisterLoaded(snap, pixels)
	if err != nil {
		t.Fatalf("RegisterLoaded() failed: %v", err)
	}
	if loaded.ID != doc.ID {
		t.Errorf("RegisterLoaded() id = %s, want %s", loaded.ID, doc.ID)
	}
	px, err := other.DocumentLayerPixels(doc.ID, snap.Layers[0].ID)
	if err != nil || !bytes.Equal(px, bytes.Repeat([]byte{255}, 16)) {
		t.Errorf("DocumentLayerPixels() after register = %v, %v", px, err)
	}
}

func TestManager_RegisterRejectsForeignLayerIDs(t *testing.T) {
	m := NewManager()
	doc := mustCreate(t, m, 2, 2)
	bgID := doc.Layers[0].ID

	clash := NewDocument("other", 2, 2, 72)
	clash.Layers[0].ID = bgID
	_, err := m.RegisterLoaded(clash, map[string][]byte{bgID: make([]byte, 16)})
	if !core.IsKind(err, core.KindInvalidOperation) {
		t.Fatalf("RegisterLoaded(clashing layer id) = %v, want InvalidOperation", err)
	}
	if _, err := m.Get(clash.ID); !core.IsKind(err, core.KindDocumentNotFound) {
		t.Errorf("rejected document was registered: %v", err)
	}
	px, err := m.DocumentLayerPixels(doc.ID, bgID)
	if err != nil || !bytes.Equal(px, bytes.Repeat([]byte{255}, 16)) {
		t.Errorf("original background after rejected register = %v, %v", px, err)
	}

	stray := NewDocument("stray", 2, 2, 72)
	_, err = m.RegisterLoaded(stray, map[string][]byte{"not-a-layer": make([]byte, 16)})
	if !core.IsKind(err, core.KindInvalidOperation) {
		t.Errorf("RegisterLoaded(pixels for unknown layer) = %v, want InvalidOperation", err)
	}

	// Re-registering the same document id replaces it.
	snap, pixels, _ := m.Snapshot(doc.ID)
	if _, err := m.RegisterLoaded(snap, pixels); err != nil {
		t.Errorf("RegisterLoaded(same document) failed: %v", err)
	}
}

func TestManager_LayerPixelsWithoutBuffer(t *testing.T) {
	m := NewManager()
	doc := NewDocument("text", 2, 2, 72)
	text := NewRasterLayer("caption", 2, 1)
	text.Type = core.LayerText
	doc.Layers = append(doc.Layers, text)
	if _, err := m.RegisterLoaded(doc, map[string][]byte{doc.Layers[0].ID: make([]byte, 16)}); err != nil {
		t.Fatalf("RegisterLoaded() failed: %v", err)
	}

	byID, err := m.LayerPixels(text.ID)
	if err != nil {
		t.Fatalf("LayerPixels() failed: %v", err)
	}
	byDoc, err := m.DocumentLayerPixels(doc.ID, text.ID)
	if err != nil {
		t.Fatalf("DocumentLayerPixels() failed: %v", err)
	}
	if !bytes.Equal(byID, make([]byte, 8)) || !bytes.Equal(byDoc, byID) {
		t.Errorf("LayerPixels() = %v, DocumentLayerPixels() = %v, want 8 transparent bytes", byID, byDoc)
	}
	if _, err := m.LayerPixels("missing"); !core.IsKind(err, core.KindLayerNotFound) {
		t.Errorf("LayerPixels(missing) = %v, want LayerNotFound", err)
	}
}

func TestManager_ConcurrentStrokes(t *testing.T) {
	m := NewManager()
	doc := mustCreate(t, m, 16, 16)
	id := doc.Layers[0].ID

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			stroke := Stroke{
				Points:   []StrokePoint{{X: float64(i * 2), Y: float64(i * 2)}},
				Settings: hardRound(2),
				Color:    BrushColor{R: uint8(i), A: 1},
			}
			if err := m.ApplyBrushStroke(doc.ID, id, stroke); err != nil {
				t.Errorf("ApplyBrushStroke() failed: %v", err)
			}
		}(i)
	}
	wg.Wait()

	entries, _ := m.History(doc.ID)
	if len(entries) != 8 {
		t.Errorf("History() has %d entries, want 8", len(entries))
	}
}
