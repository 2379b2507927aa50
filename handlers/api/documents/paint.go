package documents

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/scottdaly/drkr/engine"
	"github.com/scottdaly/drkr/handlers/api/respond"
)

// maxFilterBytes bounds filter parameter bodies.
const maxFilterBytes = 4 << 10

func HandleStroke(m *engine.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var stroke engine.Stroke
		if err := respond.Decode(r, &stroke); err != nil {
			respond.Error(w, r, err)
			return
		}
		if err := m.ApplyBrushStroke(chi.URLParam(r, "docID"), chi.URLParam(r, "layerID"), stroke); err != nil {
			respond.Error(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// HandleFilter applies a filter given in its tagged form, e.g.
// {"type":"gaussianBlur","radius":2}.
func HandleFilter(m *engine.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := respond.ReadBody(r, maxFilterBytes)
		if err != nil {
			respond.Error(w, r, err)
			return
		}
		filter, err := engine.DecodeFilter(body)
		if err != nil {
			respond.Error(w, r, err)
			return
		}
		if err := m.ApplyFilter(chi.URLParam(r, "docID"), chi.URLParam(r, "layerID"), filter); err != nil {
			respond.Error(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
