package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestMiddleware(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	tests := []struct {
		name     string
		cfg      Config
		path     string
		header   string
		wantCode int
	}{
		{"disabled", Config{}, "/api/v1/status", "", http.StatusOK},
		{"probe exempt", Config{Enabled: true, Token: "s3cret"}, "/readyz", "", http.StatusOK},
		{"metrics exempt", Config{Enabled: true, Token: "s3cret"}, "/metrics", "", http.StatusOK},
		{"missing header", Config{Enabled: true, Token: "s3cret"}, "/api/v1/status", "", http.StatusUnauthorized},
		{"not bearer", Config{Enabled: true, Token: "s3cret"}, "/api/v1/status", "s3cret", http.StatusUnauthorized},
		{"wrong token", Config{Enabled: true, Token: "s3cret"}, "/api/v1/status", "Bearer nope", http.StatusUnauthorized},
		{"valid token", Config{Enabled: true, Token: "s3cret"}, "/api/v1/status", "Bearer s3cret", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", tt.path, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			Middleware(tt.cfg)(ok).ServeHTTP(w, req)

			if w.Code != tt.wantCode {
				t.Errorf("status = %d, want %d", w.Code, tt.wantCode)
			}
		})
	}
}
