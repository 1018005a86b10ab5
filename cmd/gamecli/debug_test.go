package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"badc0de.net/pkg/gamenet/client"
)

type nopStore struct{}

func (nopStore) ReconnectCode() string         { return "" }
func (nopStore) SetReconnectCode(string) error { return nil }

func TestDebugRouter(t *testing.T) {
	h := debugRouter(client.New(client.Options{}, nopStore{}, nil))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/debug/status", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("/debug/status: %d", rec.Code)
	}
	var snap client.Snapshot
	if err := json.Unmarshal(rec.Body.Bytes(), &snap); err != nil {
		t.Fatalf("decoding status: %v", err)
	}
	if snap.Connected {
		t.Errorf("connected before Connect")
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("/metrics: %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/debug/status", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("POST /debug/status: %d", rec.Code)
	}
}
