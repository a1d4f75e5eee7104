package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/abflash-io/abflash/internal/flasher/state"
	"github.com/abflash-io/abflash/pkg/options"
)

func newTestServer() (*Server, *state.Session) {
	st := state.NewSession()
	return New(options.NewHttpOptions(), st), st
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealthz(t *testing.T) {
	srv, _ := newTestServer()
	rec := get(t, srv.Handler(), "/healthz")
	if rec.Code != http.StatusOK {
		t.Fatalf("healthz = %d", rec.Code)
	}
}

func TestReadyzFollowsStep(t *testing.T) {
	srv, st := newTestServer()
	h := srv.Handler()

	if rec := get(t, h, "/readyz"); rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("readyz while initializing = %d, want 503", rec.Code)
	}

	st.Step.Set(state.StepReady)
	if rec := get(t, h, "/readyz"); rec.Code != http.StatusOK {
		t.Fatalf("readyz when ready = %d, want 200", rec.Code)
	}

	st.Step.Set(state.StepFlashing)
	if rec := get(t, h, "/readyz"); rec.Code != http.StatusOK {
		t.Fatalf("readyz while flashing = %d, want 200", rec.Code)
	}
}

func TestStateSnapshot(t *testing.T) {
	srv, st := newTestServer()
	st.Step.Set(state.StepDownloading)
	st.Message.Set("Downloading boot (1/3)")
	st.Progress.Set(0.25)
	st.Connected.Set(true)
	st.Serial.Set("XJ100042")

	rec := get(t, srv.Handler(), "/state")
	if rec.Code != http.StatusOK {
		t.Fatalf("state = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("content type = %q", ct)
	}

	var snap state.Snapshot
	if err := json.Unmarshal(rec.Body.Bytes(), &snap); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if snap.StepName != "Downloading" {
		t.Errorf("stepName = %q", snap.StepName)
	}
	if snap.Progress != 0.25 {
		t.Errorf("progress = %v", snap.Progress)
	}
	if !snap.Connected || snap.Serial != "XJ100042" {
		t.Errorf("connection identity = %v %q", snap.Connected, snap.Serial)
	}
	if snap.CanContinue || snap.CanRetry {
		t.Errorf("hooks reported armed: continue=%v retry=%v", snap.CanContinue, snap.CanRetry)
	}
}

func TestMetricsRoute(t *testing.T) {
	srv, _ := newTestServer()
	rec := get(t, srv.Handler(), "/metrics")
	if rec.Code != http.StatusOK {
		t.Fatalf("metrics = %d", rec.Code)
	}
	if rec.Body.Len() == 0 {
		t.Fatal("metrics body empty")
	}
}
