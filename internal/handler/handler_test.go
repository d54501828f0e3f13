package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestHandler_Info(t *testing.T) {
	h := New("userhub", "1.2.3")

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()

	h.Info(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rec.Code)
	}

	contentType := rec.Header().Get("Content-Type")
	if contentType != "application/json" {
		t.Errorf("expected Content-Type application/json, got %s", contentType)
	}

	var response map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	if response["name"] != "userhub" {
		t.Errorf("unexpected name: %s", response["name"])
	}

	if response["version"] != "1.2.3" {
		t.Errorf("unexpected version: %s", response["version"])
	}
}

func TestHandler_Fallbacks(t *testing.T) {
	h := New("userhub", "dev")

	tests := []struct {
		name    string
		serve   http.HandlerFunc
		status  int
		message string
	}{
		{"not found", h.NotFound, http.StatusNotFound, "Endpoint not found"},
		{"method not allowed", h.MethodNotAllowed, http.StatusMethodNotAllowed, "Method not allowed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/nonexistent", nil)
			rec := httptest.NewRecorder()

			tt.serve(rec, req)

			if rec.Code != tt.status {
				t.Errorf("expected status %d, got %d", tt.status, rec.Code)
			}

			var response envelope
			if err := json.NewDecoder(rec.Body).Decode(&response); err != nil {
				t.Fatalf("failed to decode response: %v", err)
			}

			if response.Success {
				t.Error("expected success=false")
			}
			if response.Message != tt.message {
				t.Errorf("unexpected message: %s", response.Message)
			}
		})
	}
}
