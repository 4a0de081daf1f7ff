package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

func TestDefaultSessionConfig(t *testing.T) {
	secret := []byte("test-secret-that-is-at-least-32-bytes-long")
	cfg := DefaultSessionConfig(secret, true)

	if cfg.MaxAge != 86400 {
		t.Errorf("expected MaxAge 86400, got %d", cfg.MaxAge)
	}
	if !cfg.Secure {
		t.Error("expected Secure to be true")
	}
	if !cfg.HTTPOnly {
		t.Error("expected HTTPOnly to be true")
	}
	if cfg.SameSite != http.SameSiteLaxMode {
		t.Errorf("expected SameSite Lax, got %v", cfg.SameSite)
	}
	if cfg.CookiePath != "/" {
		t.Errorf("expected CookiePath '/', got %s", cfg.CookiePath)
	}
}

func TestNewSessionStore_SecretTooShort(t *testing.T) {
	logger := zerolog.Nop()
	cfg := SessionConfig{
		Secret:   []byte("short"),
		MaxAge:   3600,
		Secure:   false,
		HTTPOnly: true,
		SameSite: http.SameSiteLaxMode,
	}

	_, err := NewSessionStore(cfg, logger)
	if err == nil {
		t.Error("expected error for short secret")
	}
}

func TestSessionStore_UserLifecycle(t *testing.T) {
	logger := zerolog.Nop()
	secret := []byte("test-secret-that-is-at-least-32-bytes-long")
	store, err := NewSessionStore(DefaultSessionConfig(secret, false), logger)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}

	user := &SessionUser{
		ID:              uuid.New(),
		Username:        "admin",
		Role:            "admin",
		AuthenticatedAt: time.Now().UTC(),
	}

	// Login: set user, capture cookies
	req := httptest.NewRequest(http.MethodPost, "/login", nil)
	w := httptest.NewRecorder()
	if err := store.SetUser(req, w, user); err != nil {
		t.Fatalf("failed to set user: %v", err)
	}

	withCookies := func(target string) *http.Request {
		r := httptest.NewRequest(http.MethodGet, target, nil)
		for _, cookie := range w.Result().Cookies() {
			r.AddCookie(cookie)
		}
		return r
	}

	// Authenticated request round-trips the user
	req2 := withCookies("/me")
	got, err := store.GetUser(req2)
	if err != nil {
		t.Fatalf("failed to get user: %v", err)
	}
	if got.ID != user.ID || got.Username != "admin" || got.Role != "admin" {
		t.Errorf("user round-trip mismatch: %+v", got)
	}
	if !store.IsAuthenticated(req2) {
		t.Error("expected IsAuthenticated true")
	}

	// Logout clears the session
	req3 := withCookies("/logout")
	w3 := httptest.NewRecorder()
	if err := store.ClearUser(req3, w3); err != nil {
		t.Fatalf("failed to clear user: %v", err)
	}
	for _, cookie := range w3.Result().Cookies() {
		if cookie.Name == SessionName && cookie.MaxAge >= 0 {
			t.Errorf("expected deletion cookie, got MaxAge %d", cookie.MaxAge)
		}
	}
}

func TestSessionStore_GetUserUnauthenticated(t *testing.T) {
	logger := zerolog.Nop()
	secret := []byte("test-secret-that-is-at-least-32-bytes-long")
	store, err := NewSessionStore(DefaultSessionConfig(secret, false), logger)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if _, err := store.GetUser(req); err == nil {
		t.Error("expected error for anonymous request")
	}
	if store.IsAuthenticated(req) {
		t.Error("expected IsAuthenticated false")
	}
}
