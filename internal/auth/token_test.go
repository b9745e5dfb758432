package auth

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestStaticTokenSource(t *testing.T) {
	src := Static("abc")
	tok, err := src.Token(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tok != "abc" {
		t.Fatalf("unexpected token: %q", tok)
	}
}

func writeTestKey(t *testing.T) string {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	pemBytes := pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(key),
	})
	path := filepath.Join(t.TempDir(), "app.pem")
	if err := os.WriteFile(path, pemBytes, 0o600); err != nil {
		t.Fatalf("write key: %v", err)
	}
	return path
}

func TestAppTokenSourceCachesUntilExpiry(t *testing.T) {
	mints := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/app/installations/77/access_tokens" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		if !strings.HasPrefix(r.Header.Get("Authorization"), "Bearer ey") {
			t.Fatalf("expected a signed JWT, got %q", r.Header.Get("Authorization"))
		}
		mints++
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]any{
			"token":      "ghs_installation",
			"expires_at": time.Now().Add(time.Hour).Format(time.RFC3339),
		})
	}))
	defer srv.Close()

	src, err := NewApp(1234, 77, writeTestKey(t), srv.URL)
	if err != nil {
		t.Fatalf("NewApp: %v", err)
	}

	for i := 0; i < 3; i++ {
		tok, err := src.Token(context.Background())
		if err != nil {
			t.Fatalf("Token call %d: %v", i, err)
		}
		if tok != "ghs_installation" {
			t.Fatalf("unexpected token: %q", tok)
		}
	}
	if mints != 1 {
		t.Fatalf("token minted %d time(s), want 1", mints)
	}
}

func TestAppTokenSourceRefreshesNearExpiry(t *testing.T) {
	mints := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mints++
		w.WriteHeader(http.StatusCreated)
		// Expires inside the one-minute refresh buffer, forcing a re-mint.
		json.NewEncoder(w).Encode(map[string]any{
			"token":      "ghs_shortlived",
			"expires_at": time.Now().Add(30 * time.Second).Format(time.RFC3339),
		})
	}))
	defer srv.Close()

	src, err := NewApp(1234, 77, writeTestKey(t), srv.URL)
	if err != nil {
		t.Fatalf("NewApp: %v", err)
	}

	for i := 0; i < 2; i++ {
		if _, err := src.Token(context.Background()); err != nil {
			t.Fatalf("Token call %d: %v", i, err)
		}
	}
	if mints != 2 {
		t.Fatalf("token minted %d time(s), want 2", mints)
	}
}

func TestAppTokenSourceDiscoversSingleInstallation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/app/installations":
			json.NewEncoder(w).Encode([]map[string]any{{"id": 55}})
		case "/app/installations/55/access_tokens":
			w.WriteHeader(http.StatusCreated)
			json.NewEncoder(w).Encode(map[string]any{
				"token":      "ghs_discovered",
				"expires_at": time.Now().Add(time.Hour).Format(time.RFC3339),
			})
		default:
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	src, err := NewApp(1234, 0, writeTestKey(t), srv.URL)
	if err != nil {
		t.Fatalf("NewApp: %v", err)
	}

	tok, err := src.Token(context.Background())
	if err != nil {
		t.Fatalf("Token: %v", err)
	}
	if tok != "ghs_discovered" {
		t.Fatalf("unexpected token: %q", tok)
	}
}

func TestAppTokenSourceRejectsAmbiguousInstallations(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]map[string]any{{"id": 1}, {"id": 2}})
	}))
	defer srv.Close()

	src, err := NewApp(1234, 0, writeTestKey(t), srv.URL)
	if err != nil {
		t.Fatalf("NewApp: %v", err)
	}

	if _, err := src.Token(context.Background()); err == nil {
		t.Fatal("expected error for multiple installations")
	}
}

func TestNewAppRejectsMissingKey(t *testing.T) {
	if _, err := NewApp(1, 1, filepath.Join(t.TempDir(), "missing.pem"), "https://api.github.com"); err == nil {
		t.Fatal("expected error for missing key file")
	}
}
