//go:build integration

package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/courierhq/courier/pkg/crypto"
	"github.com/courierhq/courier/pkg/store"
)

func newHealthStore(t *testing.T) store.Store {
	t.Helper()

	st, err := store.New(&store.Config{
		Type: store.DatabaseTypeSQLite,
		SQLite: store.SQLiteConfig{
			Path: ":memory:",
		},
	})
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	return st
}

func getHealth(t *testing.T, h *HealthHandler) (*httptest.ResponseRecorder, HealthResponse) {
	t.Helper()

	rec := httptest.NewRecorder()
	h.Health(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	var resp HealthResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode health response: %v", err)
	}
	return rec, resp
}

func TestHealth_ReportsComponents(t *testing.T) {
	st := newHealthStore(t)
	t.Cleanup(func() { st.Close() })

	handler := NewHealthHandler(st, nil, newTestCrypto(t))

	rec, resp := getHealth(t, handler)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if resp.Status != "healthy" {
		t.Errorf("expected healthy, got %q", resp.Status)
	}
	if resp.Components["database"] != "ok" {
		t.Errorf("expected database ok, got %q", resp.Components["database"])
	}
	if resp.Components["crypto"] != "ok" {
		t.Errorf("expected crypto ok, got %q", resp.Components["crypto"])
	}
}

func TestHealth_DatabaseDown(t *testing.T) {
	st := newHealthStore(t)
	st.Close()

	handler := NewHealthHandler(st, nil, newTestCrypto(t))

	rec, resp := getHealth(t, handler)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 when the database is down, got %d", rec.Code)
	}
	if resp.Status != "unhealthy" {
		t.Errorf("expected unhealthy, got %q", resp.Status)
	}
	if resp.Components["database"] == "ok" || resp.Components["database"] == "" {
		t.Errorf("expected a database error, got %q", resp.Components["database"])
	}
}

func TestHealth_KeyMaterialMissing(t *testing.T) {
	st := newHealthStore(t)
	t.Cleanup(func() { st.Close() })

	handler := NewHealthHandler(st, nil, &crypto.Service{})

	rec, resp := getHealth(t, handler)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 when key material is missing, got %d", rec.Code)
	}
	if resp.Components["crypto"] != "encryption keys not loaded" {
		t.Errorf("expected a crypto failure, got %q", resp.Components["crypto"])
	}
}
