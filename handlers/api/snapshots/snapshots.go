package snapshots

import (
	"encoding/base64"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/scottdaly/drkr/core"
	"github.com/scottdaly/drkr/drkr"
	"github.com/scottdaly/drkr/handlers/api/respond"
	"github.com/scottdaly/drkr/persistence"
	"github.com/sirupsen/logrus"
)

type (
	CreateSnapshotRequest struct {
		Name        string `json:"name"`
		Description string `json:"description"`
	}

	CreateSnapshotResponse struct {
		ID string `json:"id"`
	}

	UpdateSettingsRequest struct {
		MaxSnapshots int `json:"max_snapshots"`
	}
)

// HandleCreateSnapshot stores the open document as a DRKR snapshot together
// with a PNG thumbnail data URL.
func HandleCreateSnapshot(store core.SnapshotStore, svc *persistence.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		docID := chi.URLParam(r, "docID")

		var req CreateSnapshotRequest
		if r.ContentLength != 0 {
			if err := respond.Decode(r, &req); err != nil {
				respond.Error(w, r, err)
				return
			}
		}

		data, err := svc.EncodeDocument(docID)
		if err != nil {
			respond.Error(w, r, err)
			return
		}
		preview, err := svc.Preview(docID, drkr.ThumbnailSize)
		if err != nil {
			respond.Error(w, r, err)
			return
		}
		thumbnail := "data:image/png;base64," + base64.StdEncoding.EncodeToString(preview)

		id, err := store.CreateSnapshot(r.Context(), docID, req.Name, req.Description, thumbnail, data)
		if err != nil {
			logrus.WithField("error", err).Error("Failed to create snapshot")
			respond.Error(w, r, err)
			return
		}

		respond.JSON(w, r, http.StatusCreated, CreateSnapshotResponse{ID: id})
	}
}

// HandleListSnapshots lists the snapshots of a document, newest first.
func HandleListSnapshots(store core.SnapshotStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		docID := chi.URLParam(r, "docID")

		snapshots, err := store.ListSnapshots(r.Context(), docID)
		if err != nil {
			logrus.WithField("error", err).Error("Failed to list snapshots")
			respond.Error(w, r, err)
			return
		}

		if snapshots == nil {
			snapshots = []core.Snapshot{}
		}

		render.JSON(w, r, snapshots)
	}
}

// HandleGetSnapshot returns snapshot metadata. The archive itself is only
// served by restore.
func HandleGetSnapshot(store core.SnapshotStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snapshot, err := store.GetSnapshot(r.Context(), chi.URLParam(r, "snapshotID"))
		if err != nil {
			respond.Error(w, r, err)
			return
		}
		snapshot.Data = nil
		render.JSON(w, r, snapshot)
	}
}

func HandleDeleteSnapshot(store core.SnapshotStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := store.DeleteSnapshot(r.Context(), chi.URLParam(r, "snapshotID")); err != nil {
			respond.Error(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// HandleRestoreSnapshot reopens the snapshot's archive, replacing the open
// document with the same id.
func HandleRestoreSnapshot(store core.SnapshotStore, svc *persistence.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snapshotID := chi.URLParam(r, "snapshotID")

		snapshot, err := store.GetSnapshot(r.Context(), snapshotID)
		if err != nil {
			respond.Error(w, r, err)
			return
		}
		doc, err := svc.DecodeDocument(snapshot.Data)
		if err != nil {
			respond.Error(w, r, err)
			return
		}

		logrus.WithFields(logrus.Fields{
			"document_id": doc.ID,
			"snapshot_id": snapshotID,
		}).Info("Snapshot restored")
		render.JSON(w, r, doc)
	}
}

func HandleGetSettings(store core.SnapshotStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		settings, err := store.GetSnapshotSettings(r.Context(), chi.URLParam(r, "docID"))
		if err != nil {
			respond.Error(w, r, err)
			return
		}
		render.JSON(w, r, settings)
	}
}

func HandleUpdateSettings(store core.SnapshotStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req UpdateSettingsRequest
		if err := respond.Decode(r, &req); err != nil {
			respond.Error(w, r, err)
			return
		}

		if err := store.UpdateSnapshotSettings(r.Context(), chi.URLParam(r, "docID"), req.MaxSnapshots); err != nil {
			respond.Error(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
