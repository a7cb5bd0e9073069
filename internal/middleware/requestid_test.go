package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
)

func TestRequestID_GeneratesID(t *testing.T) {
	var gotID string
	handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotID = GetRequestID(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/forum/entries", nil)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if gotID == "" {
		t.Fatal("expected request ID in context")
	}
	if _, err := uuid.Parse(gotID); err != nil {
		t.Errorf("expected generated ID to be a UUID, got %q: %v", gotID, err)
	}
	if header := w.Header().Get(RequestIDHeader); header != gotID {
		t.Errorf("expected response header %q to equal context ID %q", header, gotID)
	}
}

func TestRequestID_PreservesIncomingID(t *testing.T) {
	const incoming = "client-supplied-id-123"

	var gotID string
	handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotID = GetRequestID(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/forum/entries", nil)
	req.Header.Set(RequestIDHeader, incoming)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if gotID != incoming {
		t.Errorf("expected incoming ID %q to be preserved, got %q", incoming, gotID)
	}
	if header := w.Header().Get(RequestIDHeader); header != incoming {
		t.Errorf("expected response header %q, got %q", incoming, header)
	}
}

func TestGetRequestID_MissingReturnsEmpty(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if id := GetRequestID(req.Context()); id != "" {
		t.Errorf("expected empty request ID, got %q", id)
	}
}
