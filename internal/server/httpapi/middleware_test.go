package httpapi

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dmitrijs2005/timecapsule/internal/logging"
	"github.com/dmitrijs2005/timecapsule/internal/server/auth"
)

func newTestHTTPServer(t *testing.T) *HTTPServer {
	t.Helper()
	logger := logging.NewSlogLogger(slog.New(slog.NewJSONHandler(io.Discard, nil)))
	s, err := NewHTTPServer(":0", logger, nil, nil, "test-secret")
	if err != nil {
		t.Fatalf("NewHTTPServer error: %v", err)
	}
	return s
}

func TestWithAuth(t *testing.T) {
	s := newTestHTTPServer(t)

	var gotUserID string
	handler := s.withAuth(func(w http.ResponseWriter, r *http.Request) {
		gotUserID = requesterID(r)
		w.WriteHeader(http.StatusOK)
	})

	t.Run("missing header", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler(rec, httptest.NewRequest(http.MethodGet, "/api/capsules", nil))
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("status = %d, want 401", rec.Code)
		}
	})

	t.Run("malformed header", func(t *testing.T) {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/capsules", nil)
		req.Header.Set("Authorization", "Token abc")
		handler(rec, req)
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("status = %d, want 401", rec.Code)
		}
	})

	t.Run("invalid token", func(t *testing.T) {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/capsules", nil)
		req.Header.Set("Authorization", "Bearer not-a-jwt")
		handler(rec, req)
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("status = %d, want 401", rec.Code)
		}
	})

	t.Run("valid token reaches the handler", func(t *testing.T) {
		token, err := auth.GenerateToken("u-42", []byte("test-secret"), time.Hour)
		if err != nil {
			t.Fatalf("GenerateToken error: %v", err)
		}
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/capsules", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		handler(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", rec.Code)
		}
		if gotUserID != "u-42" {
			t.Fatalf("requester id = %q, want u-42", gotUserID)
		}
	})
}
