package archives

import (
	"net/http"
	"path"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/scottdaly/drkr/core"
	"github.com/scottdaly/drkr/drkr"
	"github.com/scottdaly/drkr/handlers/api/respond"
	"github.com/scottdaly/drkr/imageio"
	"github.com/scottdaly/drkr/persistence"
	"github.com/sirupsen/logrus"
)

// MaxUploadBytes bounds archive and image uploads.
const MaxUploadBytes = 512 << 20

func HandleList(svc *persistence.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		infos, err := svc.List(r.Context())
		if err != nil {
			respond.Error(w, r, err)
			return
		}
		if infos == nil {
			infos = []core.ArchiveInfo{}
		}
		render.JSON(w, r, infos)
	}
}

func HandleDownload(svc *persistence.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := chi.URLParam(r, "key")
		data, err := svc.Read(r.Context(), key)
		if err != nil {
			respond.Error(w, r, err)
			return
		}
		w.Header().Set("Content-Type", contentType(key))
		w.Header().Set("Content-Length", strconv.Itoa(len(data)))
		w.Write(data)
	}
}

func HandleUpload(svc *persistence.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := chi.URLParam(r, "key")
		data, err := respond.ReadBody(r, MaxUploadBytes)
		if err != nil {
			respond.Error(w, r, err)
			return
		}
		if err := svc.Write(r.Context(), key, data); err != nil {
			respond.Error(w, r, err)
			return
		}
		logrus.WithFields(logrus.Fields{
			"key":  key,
			"size": len(data),
		}).Info("Archive uploaded")
		w.WriteHeader(http.StatusNoContent)
	}
}

func HandleDelete(svc *persistence.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := svc.Delete(r.Context(), chi.URLParam(r, "key")); err != nil {
			respond.Error(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func contentType(key string) string {
	if path.Ext(key) == persistence.Extension {
		return drkr.MimeType
	}
	if f, err := imageio.FormatFromKey(key); err == nil {
		return f.ContentType()
	}
	return "application/octet-stream"
}
