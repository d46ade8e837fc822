//go:build integration

package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/courierhq/courier/pkg/api/middleware"
	"github.com/courierhq/courier/pkg/crypto"
	"github.com/courierhq/courier/pkg/models"
	pubauth "github.com/courierhq/courier/pkg/registry/api/auth"
	"github.com/courierhq/courier/pkg/store"
)

func setupMessagesTest(t *testing.T) (store.Store, *crypto.Service, *MessageHandler) {
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
	t.Cleanup(func() { st.Close() })

	cryptoSvc := newTestCrypto(t)
	return st, cryptoSvc, NewMessageHandler(st, cryptoSvc)
}

func seedMessage(t *testing.T, st store.Store, cryptoSvc *crypto.Service, messageID, clientID, body string) {
	t.Helper()

	ciphertext, version, err := cryptoSvc.Encrypt(body)
	if err != nil {
		t.Fatal(err)
	}
	hash, err := cryptoSvc.HashPhone("+491521234567")
	if err != nil {
		t.Fatal(err)
	}
	msg := &models.Message{
		MessageID:     messageID,
		ClientID:      clientID,
		SenderHash:    hash,
		EncryptedBody: []byte(ciphertext),
		KeyVersion:    version,
		QueuedAt:      time.Now(),
	}
	if err := st.CreateMessage(context.Background(), msg); err != nil {
		t.Fatal(err)
	}
}

func listAs(t *testing.T, handler *MessageHandler, claims *pubauth.Claims) ListResponse {
	t.Helper()

	req := httptest.NewRequest(http.MethodGet, "/portal/messages", nil)
	req = req.WithContext(middleware.WithClaims(req.Context(), claims))
	rec := httptest.NewRecorder()
	handler.List(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp ListResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	return resp
}

func TestMessageHandler_ListRoleScoping(t *testing.T) {
	st, cryptoSvc, handler := setupMessagesTest(t)

	seedMessage(t, st, cryptoSvc, "11111111-1111-1111-1111-111111111111", "client_alpha", "alpha one")
	seedMessage(t, st, cryptoSvc, "22222222-2222-2222-2222-222222222222", "client_alpha", "alpha two")
	seedMessage(t, st, cryptoSvc, "33333333-3333-3333-3333-333333333333", "client_beta", "beta one")

	t.Run("admin sees all traffic", func(t *testing.T) {
		resp := listAs(t, handler, &pubauth.Claims{Role: string(models.RoleAdmin)})
		if resp.Total != 3 {
			t.Errorf("expected 3 messages, got %d", resp.Total)
		}
	})

	t.Run("bound user sees only their client", func(t *testing.T) {
		resp := listAs(t, handler, &pubauth.Claims{
			Role:     string(models.RoleUser),
			ClientID: "client_alpha",
		})
		if resp.Total != 2 {
			t.Errorf("expected 2 messages, got %d", resp.Total)
		}
		for _, m := range resp.Messages {
			if m.ClientID != "client_alpha" {
				t.Errorf("leaked message for %q", m.ClientID)
			}
		}
	})

	t.Run("unbound user sees nothing", func(t *testing.T) {
		resp := listAs(t, handler, &pubauth.Claims{Role: string(models.RoleUser)})
		if len(resp.Messages) != 0 {
			t.Errorf("expected no messages, got %d", len(resp.Messages))
		}
	})

	t.Run("user manager sees nothing", func(t *testing.T) {
		resp := listAs(t, handler, &pubauth.Claims{
			Role:     string(models.RoleUserManager),
			ClientID: "client_alpha",
		})
		if len(resp.Messages) != 0 {
			t.Errorf("expected no messages for user_manager, got %d", len(resp.Messages))
		}
	})

	t.Run("unauthenticated returns 401", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/portal/messages", nil)
		rec := httptest.NewRecorder()
		handler.List(rec, req)
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("expected 401, got %d", rec.Code)
		}
	})
}

func TestMessageHandler_GetBody(t *testing.T) {
	st, cryptoSvc, handler := setupMessagesTest(t)
	seedMessage(t, st, cryptoSvc, "11111111-1111-1111-1111-111111111111", "client_alpha", "secret body")

	r := chi.NewRouter()
	r.Get("/portal/messages/{id}/body", handler.GetBody)

	getBody := func(t *testing.T, claims *pubauth.Claims, id string) *httptest.ResponseRecorder {
		t.Helper()
		req := httptest.NewRequest(http.MethodGet, "/portal/messages/"+id+"/body", nil)
		if claims != nil {
			req = req.WithContext(middleware.WithClaims(req.Context(), claims))
		}
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		return rec
	}

	adminClaims := &pubauth.Claims{UserID: 1, Role: string(models.RoleAdmin)}

	t.Run("admin can decrypt", func(t *testing.T) {
		rec := getBody(t, adminClaims, "11111111-1111-1111-1111-111111111111")
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		var resp BodyResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatal(err)
		}
		if resp.Body != "secret body" {
			t.Errorf("expected plaintext, got %q", resp.Body)
		}
	})

	t.Run("body access is audited", func(t *testing.T) {
		entries, err := st.ListAudit(context.Background(), models.AuditMessageBodyAccess, 10, 0)
		if err != nil {
			t.Fatal(err)
		}
		if len(entries) == 0 {
			t.Error("expected a body access audit entry")
		}
	})

	t.Run("non-admin is forbidden", func(t *testing.T) {
		rec := getBody(t, &pubauth.Claims{UserID: 2, Role: string(models.RoleUser), ClientID: "client_alpha"},
			"11111111-1111-1111-1111-111111111111")
		if rec.Code != http.StatusForbidden {
			t.Errorf("expected 403, got %d", rec.Code)
		}
	})

	t.Run("unknown message returns 404", func(t *testing.T) {
		rec := getBody(t, adminClaims, "99999999-9999-9999-9999-999999999999")
		if rec.Code != http.StatusNotFound {
			t.Errorf("expected 404, got %d", rec.Code)
		}
	})
}
