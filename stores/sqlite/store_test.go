package sqlite

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/scottdaly/drkr/core"
)

func TestMain(m *testing.M) {
	if !CGOEnabled {
		fmt.Println("skipping sqlite store tests: CGO disabled")
		os.Exit(0)
	}

	os.Exit(m.Run())
}

func setupTestDB(t *testing.T) *store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	return NewStore(dbPath).(*store)
}

func TestNewStore(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")
	s := NewStore(dbPath)

	if s == nil {
		t.Fatal("NewStore() returned nil")
	}
	if _, ok := s.(core.SnapshotStore); !ok {
		t.Error("sqlite store does not implement core.SnapshotStore")
	}
}

func TestNewStore_TablesCreated(t *testing.T) {
	s := setupTestDB(t)

	for _, table := range []string{"archives", "snapshots", "document_settings"} {
		var name string
		err := s.db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
		if err != nil {
			t.Fatalf("%s table not created: %v", table, err)
		}
	}
}

func TestPutGet_Success(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()

	data := []byte{0x50, 0x4b, 0x03, 0x04, 0x00}
	if err := s.Put(ctx, "poster.drkr", data); err != nil {
		t.Fatalf("Put() failed: %v", err)
	}
	got, err := s.Get(ctx, "poster.drkr")
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Errorf("Get() = %v, want %v", got, data)
	}
}

func TestPut_Upsert(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()

	_ = s.Put(ctx, "a.drkr", []byte("one"))
	if err := s.Put(ctx, "a.drkr", []byte("second")); err != nil {
		t.Fatalf("Put() overwrite failed: %v", err)
	}

	infos, err := s.List(ctx)
	if err != nil {
		t.Fatalf("List() failed: %v", err)
	}
	if len(infos) != 1 || infos[0].Key != "a.drkr" || infos[0].Size != 6 {
		t.Errorf("List() = %+v, want one 6-byte archive", infos)
	}
}

func TestGet_NotFound(t *testing.T) {
	s := setupTestDB(t)
	_, err := s.Get(context.Background(), "missing.drkr")
	if !errors.Is(err, core.ErrArchiveNotFound) {
		t.Errorf("Get() = %v, want ErrArchiveNotFound", err)
	}
}

func TestDelete(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()

	_ = s.Put(ctx, "gone.drkr", []byte("x"))
	if err := s.Delete(ctx, "gone.drkr"); err != nil {
		t.Fatalf("Delete() failed: %v", err)
	}
	if err := s.Delete(ctx, "gone.drkr"); !errors.Is(err, core.ErrArchiveNotFound) {
		t.Errorf("second Delete() = %v, want ErrArchiveNotFound", err)
	}
}

func TestCreateSnapshot_Success(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()

	data := []byte("drkr bytes")
	id, err := s.CreateSnapshot(ctx, "doc-1", "Before crop", "full canvas", "data:image/png;base64,AAAA", data)
	if err != nil {
		t.Fatalf("CreateSnapshot() failed: %v", err)
	}
	if id == "" {
		t.Fatal("CreateSnapshot() returned empty ID")
	}

	snapshot, err := s.GetSnapshot(ctx, id)
	if err != nil {
		t.Fatalf("GetSnapshot() failed: %v", err)
	}
	if snapshot.DocumentID != "doc-1" || snapshot.Name != "Before crop" || snapshot.Description != "full canvas" {
		t.Errorf("GetSnapshot() = %+v", snapshot)
	}
	if !bytes.Equal(snapshot.Data, data) {
		t.Errorf("snapshot data = %q, want %q", snapshot.Data, data)
	}
}

func TestCreateSnapshot_MaxSnapshotsLimit(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()

	docID := "test-doc"
	maxSnapshots := 3
	if err := s.UpdateSnapshotSettings(ctx, docID, maxSnapshots); err != nil {
		t.Fatalf("UpdateSnapshotSettings() failed: %v", err)
	}

	ids := make([]string, 5)
	for i := 0; i < 5; i++ {
		id, err := s.CreateSnapshot(ctx, docID, "Snapshot "+strconv.Itoa(i+1), "", "", []byte("data"))
		if err != nil {
			t.Fatalf("CreateSnapshot() failed for snapshot %d: %v", i, err)
		}
		ids[i] = id
		time.Sleep(10 * time.Millisecond) // Ensure different timestamps
	}

	snapshots, err := s.ListSnapshots(ctx, docID)
	if err != nil {
		t.Fatalf("ListSnapshots() failed: %v", err)
	}
	if len(snapshots) != maxSnapshots {
		t.Errorf("Snapshot count mismatch: got %d, want %d", len(snapshots), maxSnapshots)
	}

	for i := 0; i < 2; i++ {
		if _, err := s.GetSnapshot(ctx, ids[i]); err == nil {
			t.Errorf("Old snapshot %d should have been deleted", i)
		}
	}
	for i := 2; i < 5; i++ {
		if _, err := s.GetSnapshot(ctx, ids[i]); err != nil {
			t.Errorf("Recent snapshot %d should still exist: %v", i, err)
		}
	}
}

func TestCreateSnapshot_LoweredLimitEvictsSeveral(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		if _, err := s.CreateSnapshot(ctx, "doc", "s", "", "", []byte("d")); err != nil {
			t.Fatalf("CreateSnapshot() failed: %v", err)
		}
		time.Sleep(2 * time.Millisecond)
	}
	if err := s.UpdateSnapshotSettings(ctx, "doc", 2); err != nil {
		t.Fatalf("UpdateSnapshotSettings() failed: %v", err)
	}
	if _, err := s.CreateSnapshot(ctx, "doc", "latest", "", "", []byte("d")); err != nil {
		t.Fatalf("CreateSnapshot() failed: %v", err)
	}

	snapshots, _ := s.ListSnapshots(ctx, "doc")
	if len(snapshots) != 2 {
		t.Fatalf("ListSnapshots() returned %d, want 2", len(snapshots))
	}
	if snapshots[0].Name != "latest" {
		t.Errorf("newest snapshot = %q, want latest", snapshots[0].Name)
	}
}

func TestListSnapshots_SortedAndScoped(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, _ = s.CreateSnapshot(ctx, "doc-a", "A"+strconv.Itoa(i), "", "", []byte("data"))
		time.Sleep(2 * time.Millisecond)
	}
	_, _ = s.CreateSnapshot(ctx, "doc-b", "B", "", "", []byte("data"))

	snapshots, err := s.ListSnapshots(ctx, "doc-a")
	if err != nil {
		t.Fatalf("ListSnapshots() failed: %v", err)
	}
	if len(snapshots) != 3 {
		t.Fatalf("Snapshot count mismatch: got %d, want 3", len(snapshots))
	}
	for i := 1; i < len(snapshots); i++ {
		if snapshots[i-1].CreatedAt < snapshots[i].CreatedAt {
			t.Error("Snapshots are not sorted by created_at DESC")
		}
		if snapshots[i].Data != nil {
			t.Error("ListSnapshots() should not load snapshot data")
		}
	}

	empty, err := s.ListSnapshots(ctx, "empty-doc")
	if err != nil {
		t.Fatalf("ListSnapshots() failed: %v", err)
	}
	if len(empty) != 0 {
		t.Errorf("ListSnapshots(empty) returned %d snapshots", len(empty))
	}
}

func TestDeleteSnapshot(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()

	id, _ := s.CreateSnapshot(ctx, "doc", "s", "", "", []byte("d"))
	if err := s.DeleteSnapshot(ctx, id); err != nil {
		t.Fatalf("DeleteSnapshot() failed: %v", err)
	}
	if err := s.DeleteSnapshot(ctx, id); !errors.Is(err, core.ErrArchiveNotFound) {
		t.Errorf("second DeleteSnapshot() = %v, want ErrArchiveNotFound", err)
	}
	if _, err := s.GetSnapshot(ctx, id); !errors.Is(err, core.ErrArchiveNotFound) {
		t.Errorf("GetSnapshot() after delete = %v, want ErrArchiveNotFound", err)
	}
}

func TestSnapshotSettings(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()

	settings, err := s.GetSnapshotSettings(ctx, "doc")
	if err != nil {
		t.Fatalf("GetSnapshotSettings() failed: %v", err)
	}
	if settings.MaxSnapshots != DefaultMaxSnapshots {
		t.Errorf("default MaxSnapshots = %d, want %d", settings.MaxSnapshots, DefaultMaxSnapshots)
	}

	if err := s.UpdateSnapshotSettings(ctx, "doc", 25); err != nil {
		t.Fatalf("UpdateSnapshotSettings() failed: %v", err)
	}
	settings, _ = s.GetSnapshotSettings(ctx, "doc")
	if settings.MaxSnapshots != 25 {
		t.Errorf("MaxSnapshots = %d, want 25", settings.MaxSnapshots)
	}

	if err := s.UpdateSnapshotSettings(ctx, "doc", 0); !core.IsKind(err, core.KindInvalidOperation) {
		t.Errorf("UpdateSnapshotSettings(0) = %v, want InvalidOperation", err)
	}
}
