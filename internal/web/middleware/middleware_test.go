package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/JonMunkholm/moodlelogsmart/internal/config"
	"github.com/JonMunkholm/moodlelogsmart/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// captureOwner records the owner seen by the wrapped handler.
func captureOwner(owner *string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*owner = core.OwnerFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})
}

func TestAPIKeyAuth(t *testing.T) {
	cfg := &config.SecurityConfig{RequireAPIKey: true, APIKeys: []string{"key-one", "key-two"}}

	tests := []struct {
		name      string
		cfg       *config.SecurityConfig
		key       string
		wantCode  int
		wantOwner string
	}{
		{"disabled passes without owner", &config.SecurityConfig{}, "", http.StatusNoContent, ""},
		{"missing key", cfg, "", http.StatusUnauthorized, ""},
		{"invalid key", cfg, "nope", http.StatusForbidden, ""},
		{"valid key", cfg, "key-two", http.StatusNoContent, OwnerID("key-two")},
		{"no keys configured", &config.SecurityConfig{RequireAPIKey: true}, "key-one", http.StatusForbidden, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var owner string
			h := APIKeyAuth(tt.cfg)(captureOwner(&owner))

			req := httptest.NewRequest(http.MethodGet, "/api/status/x", nil)
			if tt.key != "" {
				req.Header.Set("X-API-Key", tt.key)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantCode, rec.Code)
			assert.Equal(t, tt.wantOwner, owner)
		})
	}
}

func TestOwnerID(t *testing.T) {
	// sha256("abc") = ba7816bf8f01cfea...
	assert.Equal(t, "ba7816bf8f01cfea", OwnerID("abc"))
	assert.Len(t, OwnerID("another key"), 16)
	assert.NotEqual(t, OwnerID("a"), OwnerID("b"))
}

func TestTrustedRealIP(t *testing.T) {
	tests := []struct {
		name    string
		trusted []string
		remote  string
		headers map[string]string
		want    string
	}{
		{"untrusted ignores header", nil, "203.0.113.9:5000", map[string]string{"X-Real-IP": "1.2.3.4"}, "203.0.113.9"},
		{"trusted real ip", []string{"10.0.0.0/8"}, "10.1.2.3:5000", map[string]string{"X-Real-IP": "1.2.3.4"}, "1.2.3.4"},
		{"trusted forwarded for", []string{"10.0.0.1"}, "10.0.0.1:5000", map[string]string{"X-Forwarded-For": "5.6.7.8, 10.0.0.1"}, "5.6.7.8"},
		{"trusted invalid header", []string{"10.0.0.0/8"}, "10.1.2.3:5000", map[string]string{"X-Real-IP": "garbage"}, "10.1.2.3"},
		{"invalid cidr skipped", []string{"not-a-cidr"}, "10.1.2.3:5000", map[string]string{"X-Real-IP": "1.2.3.4"}, "10.1.2.3"},
		{"mapped ipv4 proxy", []string{"10.0.0.0/8"}, "[::ffff:10.1.2.3]:5000", map[string]string{"X-Real-IP": "1.2.3.4"}, "1.2.3.4"},
		{"ipv6 client", []string{"10.0.0.0/8"}, "[2001:db8::1]:443", map[string]string{"X-Real-IP": "1.2.3.4"}, "2001:db8::1"},
		{"real ip wins over forwarded for", []string{"10.0.0.0/8"}, "10.1.2.3:5000", map[string]string{"X-Real-IP": "1.2.3.4", "X-Forwarded-For": "5.6.7.8"}, "1.2.3.4"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got string
			h := TrustedRealIP(tt.trusted)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				got = core.ClientIPFromContext(r.Context())
			}))

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			h.ServeHTTP(httptest.NewRecorder(), req)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLogger_CapturesStatus(t *testing.T) {
	h := Logger(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("short"))
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusTeapot, rec.Code)
	assert.Equal(t, "short", rec.Body.String())
}
