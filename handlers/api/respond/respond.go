// Package respond renders engine results and errors as JSON responses.
package respond

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/render"
	"github.com/scottdaly/drkr/core"
	"github.com/sirupsen/logrus"
)

// maxBodyBytes bounds JSON request bodies. Pixel uploads are read separately.
const maxBodyBytes = 64 << 20

type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

// StatusOf maps an engine error to its HTTP status.
func StatusOf(err error) int {
	if errors.Is(err, core.ErrArchiveNotFound) {
		return http.StatusNotFound
	}
	switch core.KindOf(err) {
	case core.KindDocumentNotFound, core.KindLayerNotFound:
		return http.StatusNotFound
	case core.KindInvalidOperation:
		return http.StatusBadRequest
	case core.KindSerialization, core.KindImage:
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

func Error(w http.ResponseWriter, r *http.Request, err error) {
	status := StatusOf(err)
	entry := logrus.WithFields(logrus.Fields{
		"error":  err,
		"method": r.Method,
		"path":   r.URL.Path,
		"status": status,
	})
	if status >= http.StatusInternalServerError {
		entry.Error("Request failed")
	} else {
		entry.Debug("Request rejected")
	}

	render.Status(r, status)
	render.JSON(w, r, ErrorResponse{Error: err.Error(), Kind: string(core.KindOf(err))})
}

func JSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	render.Status(r, status)
	render.JSON(w, r, v)
}

// Decode reads a JSON request body into v. Malformed bodies are reported as
// invalid operations so they map to 400.
func Decode(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		return core.InvalidOperation("invalid request body: %v", err)
	}
	return nil
}

// ReadBody returns the raw request body, capped at limit bytes.
func ReadBody(r *http.Request, limit int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r.Body, limit+1))
	if err != nil {
		return nil, core.IOError(err, "failed to read request body")
	}
	if int64(len(data)) > limit {
		return nil, core.InvalidOperation("request body exceeds %d bytes", limit)
	}
	return data, nil
}
