package documents

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/scottdaly/drkr/core"
	"github.com/scottdaly/drkr/engine"
	"github.com/scottdaly/drkr/handlers/api/respond"
	"github.com/scottdaly/drkr/imageio"
	"github.com/scottdaly/drkr/persistence"
)

type (
	CreateRequest struct {
		Name       string `json:"name"`
		Width      int    `json:"width"`
		Height     int    `json:"height"`
		Resolution int    `json:"resolution"`
	}

	KeyRequest struct {
		Key string `json:"key"`
	}

	RenameRequest struct {
		Name string `json:"name"`
	}

	PathRequest struct {
		Path string `json:"path"`
	}

	ExportRequest struct {
		Key    string `json:"key"`
		Format string `json:"format"`
	}

	CropRequest struct {
		X      int `json:"x"`
		Y      int `json:"y"`
		Width  int `json:"width"`
		Height int `json:"height"`
	}

	HistoryResponse struct {
		Applied bool                 `json:"applied"`
		Entry   *engine.HistoryEntry `json:"entry,omitempty"`
	}
)

func HandleCreate(m *engine.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateRequest
		if err := respond.Decode(r, &req); err != nil {
			respond.Error(w, r, err)
			return
		}
		if req.Name == "" {
			req.Name = "Untitled"
		}

		doc, err := m.Create(req.Name, req.Width, req.Height, req.Resolution)
		if err != nil {
			respond.Error(w, r, err)
			return
		}
		respond.JSON(w, r, http.StatusCreated, doc)
	}
}

func HandleList(m *engine.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		docs, err := m.List()
		if err != nil {
			respond.Error(w, r, err)
			return
		}
		render.JSON(w, r, docs)
	}
}

func HandleGet(m *engine.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doc, err := m.Get(chi.URLParam(r, "docID"))
		if err != nil {
			respond.Error(w, r, err)
			return
		}
		render.JSON(w, r, doc)
	}
}

func HandleClose(m *engine.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := m.Close(chi.URLParam(r, "docID")); err != nil {
			respond.Error(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func HandleRename(m *engine.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req RenameRequest
		if err := respond.Decode(r, &req); err != nil {
			respond.Error(w, r, err)
			return
		}
		doc, err := m.Rename(chi.URLParam(r, "docID"), req.Name)
		if err != nil {
			respond.Error(w, r, err)
			return
		}
		render.JSON(w, r, doc)
	}
}

func HandleSetPath(m *engine.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req PathRequest
		if err := respond.Decode(r, &req); err != nil {
			respond.Error(w, r, err)
			return
		}
		doc, err := m.SetSourcePath(chi.URLParam(r, "docID"), req.Path)
		if err != nil {
			respond.Error(w, r, err)
			return
		}
		render.JSON(w, r, doc)
	}
}

func HandleCrop(m *engine.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CropRequest
		if err := respond.Decode(r, &req); err != nil {
			respond.Error(w, r, err)
			return
		}
		result, err := m.Crop(chi.URLParam(r, "docID"), req.X, req.Y, req.Width, req.Height)
		if err != nil {
			respond.Error(w, r, err)
			return
		}
		render.JSON(w, r, result)
	}
}

func HandleUndo(m *engine.Manager) http.HandlerFunc {
	return handleHistoryStep(m.Undo)
}

func HandleRedo(m *engine.Manager) http.HandlerFunc {
	return handleHistoryStep(m.Redo)
}

func handleHistoryStep(step func(docID string) (engine.HistoryEntry, bool, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		entry, ok, err := step(chi.URLParam(r, "docID"))
		if err != nil {
			respond.Error(w, r, err)
			return
		}
		resp := HistoryResponse{Applied: ok}
		if ok {
			resp.Entry = &entry
		}
		render.JSON(w, r, resp)
	}
}

func HandleHistory(m *engine.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		entries, err := m.History(chi.URLParam(r, "docID"))
		if err != nil {
			respond.Error(w, r, err)
			return
		}
		if entries == nil {
			entries = []engine.HistoryEntry{}
		}
		render.JSON(w, r, entries)
	}
}

func HandleOpen(svc *persistence.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req KeyRequest
		if err := respond.Decode(r, &req); err != nil {
			respond.Error(w, r, err)
			return
		}
		doc, err := svc.Open(r.Context(), req.Key)
		if err != nil {
			respond.Error(w, r, err)
			return
		}
		render.JSON(w, r, doc)
	}
}

func HandleImport(svc *persistence.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req KeyRequest
		if err := respond.Decode(r, &req); err != nil {
			respond.Error(w, r, err)
			return
		}
		doc, err := svc.Import(r.Context(), req.Key)
		if err != nil {
			respond.Error(w, r, err)
			return
		}
		respond.JSON(w, r, http.StatusCreated, doc)
	}
}

// HandleSave stores the document. The body is optional; without a key the
// document's source path is reused.
func HandleSave(svc *persistence.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req KeyRequest
		if r.ContentLength != 0 {
			if err := respond.Decode(r, &req); err != nil {
				respond.Error(w, r, err)
				return
			}
		}
		doc, err := svc.Save(r.Context(), chi.URLParam(r, "docID"), req.Key)
		if err != nil {
			respond.Error(w, r, err)
			return
		}
		render.JSON(w, r, doc)
	}
}

func HandleExport(svc *persistence.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ExportRequest
		if err := respond.Decode(r, &req); err != nil {
			respond.Error(w, r, err)
			return
		}
		if err := core.ValidateArchiveKey(req.Key); err != nil {
			respond.Error(w, r, err)
			return
		}
		var format imageio.Format
		if req.Format != "" {
			f, err := imageio.ParseFormat(req.Format)
			if err != nil {
				respond.Error(w, r, err)
				return
			}
			format = f
		}
		if err := svc.Export(r.Context(), chi.URLParam(r, "docID"), req.Key, format); err != nil {
			respond.Error(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// HandlePreview returns the flattened document as PNG, scaled to fit within
// ?size= pixels when given.
func HandlePreview(svc *persistence.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		size := 0
		if s := r.URL.Query().Get("size"); s != "" {
			n, err := strconv.Atoi(s)
			if err != nil || n < 1 {
				respond.Error(w, r, core.InvalidOperation("invalid preview size %q", s))
				return
			}
			size = n
		}
		data, err := svc.Preview(chi.URLParam(r, "docID"), size)
		if err != nil {
			respond.Error(w, r, err)
			return
		}
		w.Header().Set("Content-Type", imageio.PNG.ContentType())
		w.Header().Set("Content-Length", strconv.Itoa(len(data)))
		w.Write(data)
	}
}
