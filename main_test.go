package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/scottdaly/drkr/core"
	"github.com/scottdaly/drkr/engine"
	"github.com/scottdaly/drkr/handlers/websocket"
	authmw "github.com/scottdaly/drkr/middleware"
	"github.com/scottdaly/drkr/persistence"
	"github.com/scottdaly/drkr/stores/memory"
)

func newTestServer(t *testing.T, secret []byte) *httptest.Server {
	t.Helper()
	store := memory.NewArchiveStore()
	manager := engine.NewManager()
	hub := websocket.NewHub(manager)
	manager.SetNotifier(hub)

	srv := httptest.NewServer(setupRouter(persistence.NewService(manager, store), store, hub, secret))
	t.Cleanup(srv.Close)
	return srv
}

func do(t *testing.T, method, url, body, token string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	if err != nil {
		t.Fatalf("NewRequest() failed: %v", err)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s failed: %v", method, url, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestRouter_EditSaveReopen(t *testing.T) {
	srv := newTestServer(t, nil)
	api := srv.URL + "/api/v1"

	resp := do(t, http.MethodPost, api+"/documents", `{"name":"Poster","width":16,"height":16}`, "")
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create: got %d, want %d", resp.StatusCode, http.StatusCreated)
	}
	var doc core.Document
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}

	resp = do(t, http.MethodPost, api+"/documents/"+doc.ID+"/layers", `{"name":"Ink"}`, "")
	var layer core.Layer
	if err := json.NewDecoder(resp.Body).Decode(&layer); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}

	stroke := `{"points":[{"x":8,"y":8,"timestamp":0}],"settings":{"size":6,"hardness":80,"opacity":100,"flow":100},"color":{"r":200,"g":0,"b":0,"a":1}}`
	resp = do(t, http.MethodPost, api+"/documents/"+doc.ID+"/layers/"+layer.ID+"/stroke", stroke, "")
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("stroke: got %d, want %d", resp.StatusCode, http.StatusNoContent)
	}

	resp = do(t, http.MethodPost, api+"/documents/"+doc.ID+"/save", `{"key":"poster.drkr"}`, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("save: got %d, want %d", resp.StatusCode, http.StatusOK)
	}

	resp = do(t, http.MethodGet, api+"/archives", "", "")
	var infos []core.ArchiveInfo
	if err := json.NewDecoder(resp.Body).Decode(&infos); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if len(infos) != 1 || infos[0].Key != "poster.drkr" {
		t.Fatalf("archives = %+v", infos)
	}

	resp = do(t, http.MethodDelete, api+"/documents/"+doc.ID, "", "")
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("close: got %d, want %d", resp.StatusCode, http.StatusNoContent)
	}

	resp = do(t, http.MethodPost, api+"/documents/open", `{"key":"poster.drkr"}`, "")
	var reopened core.Document
	if err := json.NewDecoder(resp.Body).Decode(&reopened); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if reopened.ID != doc.ID || len(reopened.Layers) != 2 {
		t.Errorf("reopened = %s with %d layers, want %s with 2", reopened.ID, len(reopened.Layers), doc.ID)
	}

	resp = do(t, http.MethodGet, api+"/layers/"+layer.ID+"/pixels", "", "")
	if resp.StatusCode != http.StatusOK || resp.ContentLength != 16*16*4 {
		t.Errorf("layer pixels: status %d, length %d", resp.StatusCode, resp.ContentLength)
	}
}

func TestRouter_SnapshotsRequireSnapshotStore(t *testing.T) {
	srv := newTestServer(t, nil)

	resp := do(t, http.MethodGet, srv.URL+"/api/v1/snapshots/any", "", "")
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("snapshot route on memory store: got %d, want %d", resp.StatusCode, http.StatusNotFound)
	}
}

func TestRouter_JWT(t *testing.T) {
	secret := []byte("router-secret")
	srv := newTestServer(t, secret)

	resp := do(t, http.MethodGet, srv.URL+"/api/v1/documents", "", "")
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("without token: got %d, want %d", resp.StatusCode, http.StatusUnauthorized)
	}

	token, err := authmw.SignJWT(secret, "editor", time.Minute)
	if err != nil {
		t.Fatalf("SignJWT() failed: %v", err)
	}
	resp = do(t, http.MethodGet, srv.URL+"/api/v1/documents", "", token)
	if resp.StatusCode != http.StatusOK {
		t.Errorf("with token: got %d, want %d", resp.StatusCode, http.StatusOK)
	}
}

func TestHistoryLimit(t *testing.T) {
	tests := map[string]int{
		"":     engine.DefaultHistoryLimit,
		"12":   12,
		"zero": engine.DefaultHistoryLimit,
		"-3":   engine.DefaultHistoryLimit,
	}
	for value, want := range tests {
		t.Setenv("DRKR_HISTORY_LIMIT", value)
		if got := historyLimit(); got != want {
			t.Errorf("historyLimit(%q) = %d, want %d", value, got, want)
		}
	}
}
