package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func serveCORS(origins []string, method, origin string) *httptest.ResponseRecorder {
	cfg := DefaultCORSConfig()
	cfg.AllowedOrigins = origins

	handler := CORS(cfg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(method, "/api/v1/users", nil)
	if origin != "" {
		req.Header.Set("Origin", origin)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestOriginPolicy(t *testing.T) {
	t.Parallel()

	policy := newOriginPolicy([]string{"https://app.example.com", " HTTPS://ADMIN.EXAMPLE.ORG", "*.userhub.dev"})

	tests := []struct {
		origin string
		want   bool
	}{
		{"https://app.example.com", true},
		{"HTTPS://App.Example.com", true},
		{"https://admin.example.org", true},
		{"https://api.userhub.dev", true},
		{"http://eu.api.userhub.dev", true},
		{"https://userhub.dev", false},
		{"https://.userhub.dev", false},
		{"https://notuserhub.dev", false},
		{"https://evil.com", false},
		{"https://app.example.com.evil.com", false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, policy.allows(tt.origin), tt.origin)
	}

	assert.False(t, newOriginPolicy(nil).allows("https://app.example.com"), "empty allow list")
}

func TestCORS_SimpleRequests(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		origins    []string
		origin     string
		wantOrigin string
	}{
		{"nothing configured", nil, "https://app.example.com", ""},
		{"allowed origin echoed", []string{"https://app.example.com"}, "https://app.example.com", "https://app.example.com"},
		{"disallowed origin still served", []string{"https://app.example.com"}, "https://evil.com", ""},
		{"no origin header", []string{"https://app.example.com"}, "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			rec := serveCORS(tt.origins, http.MethodGet, tt.origin)
			assert.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, tt.wantOrigin, rec.Header().Get("Access-Control-Allow-Origin"))
			if tt.wantOrigin != "" {
				assert.Equal(t, "Origin", rec.Header().Get("Vary"))
				assert.Contains(t, rec.Header().Get("Access-Control-Expose-Headers"), "X-RateLimit-Remaining")
			}
		})
	}
}

func TestCORS_Preflight(t *testing.T) {
	t.Parallel()

	rec := serveCORS([]string{"https://app.example.com"}, http.MethodOptions, "https://app.example.com")

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Methods"), "PATCH")
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Headers"), "Content-Type")
	assert.Equal(t, "86400", rec.Header().Get("Access-Control-Max-Age"))
	assert.Contains(t, rec.Header().Get("Access-Control-Expose-Headers"), "Retry-After")
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Credentials"))

	denied := serveCORS([]string{"https://app.example.com"}, http.MethodOptions, "https://evil.com")
	assert.Equal(t, http.StatusForbidden, denied.Code)
	assert.Empty(t, denied.Header().Get("Access-Control-Allow-Methods"))
}
