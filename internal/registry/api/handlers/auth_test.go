//go:build integration

package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/courierhq/courier/internal/registry/api/auth"
	"github.com/courierhq/courier/pkg/crypto"
	"github.com/courierhq/courier/pkg/models"
	"github.com/courierhq/courier/pkg/store"
)

func setupAuthTest(t *testing.T) (store.Store, *auth.JWTService, *AuthHandler) {
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

	jwtService, err := auth.NewJWTService(auth.JWTConfig{
		Secret: "test-secret-key-that-is-at-least-32-characters-long",
		Issuer: "test",
	})
	if err != nil {
		t.Fatalf("Failed to create JWT service: %v", err)
	}

	return st, jwtService, NewAuthHandler(st, jwtService)
}

func createTestUser(t *testing.T, st store.Store, email, password, role string) *models.User {
	t.Helper()

	hash, err := crypto.HashPassword(password)
	if err != nil {
		t.Fatalf("Failed to hash password: %v", err)
	}

	user := &models.User{
		Email:        email,
		PasswordHash: hash,
		Role:         role,
		IsActive:     true,
	}
	if err := st.CreateUser(context.Background(), user); err != nil {
		t.Fatalf("Failed to create test user: %v", err)
	}
	return user
}

func postJSON(t *testing.T, handler http.HandlerFunc, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	payload, err := json.Marshal(body)
	if err != nil {
		t.Fatal(err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler(rec, req)
	return rec
}

func TestAuthHandler_Login(t *testing.T) {
	st, _, handler := setupAuthTest(t)
	createTestUser(t, st, "op@example.org", "password123", string(models.RoleUser))

	tests := []struct {
		name       string
		body       LoginRequest
		wantStatus int
	}{
		{
			name:       "valid credentials",
			body:       LoginRequest{Email: "op@example.org", Password: "password123"},
			wantStatus: http.StatusOK,
		},
		{
			name:       "invalid password",
			body:       LoginRequest{Email: "op@example.org", Password: "wrongpassword"},
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "non-existent user",
			body:       LoginRequest{Email: "nobody@example.org", Password: "password123"},
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "missing email",
			body:       LoginRequest{Password: "password123"},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "missing password",
			body:       LoginRequest{Email: "op@example.org"},
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := postJSON(t, handler.Login, "/portal/auth/login", tt.body)
			if rec.Code != tt.wantStatus {
				t.Errorf("expected status %d, got %d: %s", tt.wantStatus, rec.Code, rec.Body.String())
			}

			if tt.wantStatus == http.StatusOK {
				var resp LoginResponse
				if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
					t.Fatalf("failed to decode response: %v", err)
				}
				if resp.AccessToken == "" || resp.RefreshToken == "" {
					t.Error("expected both tokens in response")
				}
				if resp.TokenType != "Bearer" {
					t.Errorf("expected Bearer token type, got %q", resp.TokenType)
				}
				if resp.User.Email != "op@example.org" {
					t.Errorf("unexpected user %q", resp.User.Email)
				}
			}
		})
	}
}

func TestAuthHandler_LoginAuditsFailures(t *testing.T) {
	st, _, handler := setupAuthTest(t)
	createTestUser(t, st, "op@example.org", "password123", string(models.RoleUser))

	postJSON(t, handler.Login, "/portal/auth/login", LoginRequest{
		Email:    "op@example.org",
		Password: "wrongpassword",
	})

	entries, err := st.ListAudit(context.Background(), models.AuditLoginFailed, 10, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected one login_failed audit entry, got %d", len(entries))
	}
	if entries[0].Severity != string(models.SeverityWarning) {
		t.Errorf("expected warning severity, got %q", entries[0].Severity)
	}
}

func TestAuthHandler_Refresh(t *testing.T) {
	st, jwtService, handler := setupAuthTest(t)
	user := createTestUser(t, st, "op@example.org", "password123", string(models.RoleUser))

	pair, err := jwtService.GenerateTokenPair(user)
	if err != nil {
		t.Fatal(err)
	}

	t.Run("valid refresh token", func(t *testing.T) {
		rec := postJSON(t, handler.Refresh, "/portal/auth/refresh", RefreshRequest{
			RefreshToken: pair.RefreshToken,
		})
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
	})

	t.Run("access token is rejected", func(t *testing.T) {
		rec := postJSON(t, handler.Refresh, "/portal/auth/refresh", RefreshRequest{
			RefreshToken: pair.AccessToken,
		})
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("expected 401 for access token, got %d", rec.Code)
		}
	})

	t.Run("garbage token is rejected", func(t *testing.T) {
		rec := postJSON(t, handler.Refresh, "/portal/auth/refresh", RefreshRequest{
			RefreshToken: "not-a-token",
		})
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("expected 401 for garbage token, got %d", rec.Code)
		}
	})

	t.Run("disabled user cannot refresh", func(t *testing.T) {
		admin := createTestUser(t, st, "admin@example.org", "password123", string(models.RoleAdmin))
		if err := st.UpdateUserStatus(context.Background(), user.ID, admin.ID, false); err != nil {
			t.Fatal(err)
		}

		rec := postJSON(t, handler.Refresh, "/portal/auth/refresh", RefreshRequest{
			RefreshToken: pair.RefreshToken,
		})
		if rec.Code != http.StatusForbidden {
			t.Errorf("expected 403 for disabled user, got %d", rec.Code)
		}
	})
}

func TestAuthHandler_PasswordResetFlow(t *testing.T) {
	st, _, handler := setupAuthTest(t)
	createTestUser(t, st, "op@example.org", "oldpassword", string(models.RoleUser))

	t.Run("unknown email reports success", func(t *testing.T) {
		rec := postJSON(t, handler.ForgotPassword, "/portal/auth/forgot-password", ForgotPasswordRequest{
			Email: "nobody@example.org",
		})
		if rec.Code != http.StatusOK {
			t.Errorf("expected 200 for unknown email, got %d", rec.Code)
		}
	})

	t.Run("full reset round trip", func(t *testing.T) {
		rec := postJSON(t, handler.ForgotPassword, "/portal/auth/forgot-password", ForgotPasswordRequest{
			Email: "op@example.org",
		})
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}

		// The ticket is not returned over HTTP; fetch it the way the
		// delivery transport would.
		ticket, err := st.IssueResetTicket(context.Background(), "op@example.org")
		if err != nil || ticket == nil {
			t.Fatalf("failed to issue ticket: %v", err)
		}

		rec = postJSON(t, handler.ResetPassword, "/portal/auth/reset-password", ResetPasswordRequest{
			Token:       ticket.Token,
			NewPassword: "newpassword1",
		})
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}

		if _, err := st.Authenticate(context.Background(), "op@example.org", "newpassword1"); err != nil {
			t.Errorf("new password does not authenticate: %v", err)
		}

		// Ticket is single-use.
		rec = postJSON(t, handler.ResetPassword, "/portal/auth/reset-password", ResetPasswordRequest{
			Token:       ticket.Token,
			NewPassword: "anotherpassword",
		})
		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400 on second redemption, got %d", rec.Code)
		}
	})

	t.Run("short password rejected", func(t *testing.T) {
		rec := postJSON(t, handler.ResetPassword, "/portal/auth/reset-password", ResetPasswordRequest{
			Token:       "whatever",
			NewPassword: "short",
		})
		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400 for short password, got %d", rec.Code)
		}
	})
}
