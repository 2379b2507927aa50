package documents

import (
	"encoding/base64"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/scottdaly/drkr/core"
	"github.com/scottdaly/drkr/engine"
	"github.com/scottdaly/drkr/handlers/api/respond"
)

// maxPixelBytes bounds raw pixel uploads. Larger layers must be edited through
// strokes and filters.
const maxPixelBytes = 1 << 30

type (
	AddLayerRequest struct {
		Name   string `json:"name"`
		Width  int    `json:"width,omitempty"`
		Height int    `json:"height,omitempty"`
	}

	ReorderRequest struct {
		From int `json:"from"`
		To   int `json:"to"`
	}

	// PixelsPayload is the base64 form of a layer buffer, used with
	// ?encoding=base64.
	PixelsPayload struct {
		Data string `json:"data"`
	}
)

// HandleAddLayer appends a transparent raster layer. Width and height default
// to the canvas size.
func HandleAddLayer(m *engine.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req AddLayerRequest
		if err := respond.Decode(r, &req); err != nil {
			respond.Error(w, r, err)
			return
		}
		if req.Name == "" {
			req.Name = "Layer"
		}

		docID := chi.URLParam(r, "docID")
		var (
			layer core.Layer
			err   error
		)
		if req.Width == 0 && req.Height == 0 {
			layer, err = m.AddLayer(docID, req.Name)
		} else {
			layer, err = m.AddLayerSized(docID, req.Name, req.Width, req.Height)
		}
		if err != nil {
			respond.Error(w, r, err)
			return
		}
		respond.JSON(w, r, http.StatusCreated, layer)
	}
}

func HandleRemoveLayer(m *engine.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := m.RemoveLayer(chi.URLParam(r, "docID"), chi.URLParam(r, "layerID")); err != nil {
			respond.Error(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func HandleUpdateLayer(m *engine.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var update core.LayerUpdate
		if err := respond.Decode(r, &update); err != nil {
			respond.Error(w, r, err)
			return
		}
		layer, err := m.UpdateLayer(chi.URLParam(r, "docID"), chi.URLParam(r, "layerID"), update)
		if err != nil {
			respond.Error(w, r, err)
			return
		}
		render.JSON(w, r, layer)
	}
}

func HandleReorderLayers(m *engine.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ReorderRequest
		if err := respond.Decode(r, &req); err != nil {
			respond.Error(w, r, err)
			return
		}
		docID := chi.URLParam(r, "docID")
		if err := m.ReorderLayers(docID, req.From, req.To); err != nil {
			respond.Error(w, r, err)
			return
		}
		doc, err := m.Get(docID)
		if err != nil {
			respond.Error(w, r, err)
			return
		}
		render.JSON(w, r, doc.Layers)
	}
}

func HandleGetDocumentLayerPixels(m *engine.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		px, err := m.DocumentLayerPixels(chi.URLParam(r, "docID"), chi.URLParam(r, "layerID"))
		if err != nil {
			respond.Error(w, r, err)
			return
		}
		writePixels(w, r, px)
	}
}

func HandleSetDocumentLayerPixels(m *engine.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		px, err := readPixels(r)
		if err != nil {
			respond.Error(w, r, err)
			return
		}
		if err := m.SetDocumentLayerPixels(chi.URLParam(r, "docID"), chi.URLParam(r, "layerID"), px); err != nil {
			respond.Error(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// HandleGetLayerPixels addresses a buffer by layer id alone.
func HandleGetLayerPixels(m *engine.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		px, err := m.LayerPixels(chi.URLParam(r, "layerID"))
		if err != nil {
			respond.Error(w, r, err)
			return
		}
		writePixels(w, r, px)
	}
}

func HandleSetLayerPixels(m *engine.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		px, err := readPixels(r)
		if err != nil {
			respond.Error(w, r, err)
			return
		}
		if err := m.SetLayerPixels(chi.URLParam(r, "layerID"), px); err != nil {
			respond.Error(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func wantsBase64(r *http.Request) bool {
	return r.URL.Query().Get("encoding") == "base64"
}

func writePixels(w http.ResponseWriter, r *http.Request, px []byte) {
	if wantsBase64(r) {
		render.JSON(w, r, PixelsPayload{Data: base64.StdEncoding.EncodeToString(px)})
		return
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Length", strconv.Itoa(len(px)))
	w.Write(px)
}

func readPixels(r *http.Request) ([]byte, error) {
	if !wantsBase64(r) {
		return respond.ReadBody(r, maxPixelBytes)
	}
	var payload PixelsPayload
	if err := respond.Decode(r, &payload); err != nil {
		return nil, err
	}
	px, err := base64.StdEncoding.DecodeString(payload.Data)
	if err != nil {
		return nil, core.InvalidOperation("pixel data is not valid base64: %v", err)
	}
	return px, nil
}
