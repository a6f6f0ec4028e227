package health

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestHealthz(t *testing.T) {
	w := httptest.NewRecorder()
	Healthz(w, httptest.NewRequest("GET", "/healthz", nil))

	if w.Code != http.StatusOK || w.Body.String() != "ok\n" {
		t.Errorf("got %d %q", w.Code, w.Body.String())
	}
}

func TestReadyz(t *testing.T) {
	tests := []struct {
		ready    bool
		wantCode int
		wantBody string
	}{
		{true, http.StatusOK, "ready\n"},
		{false, http.StatusServiceUnavailable, "not ready\n"},
	}

	for _, tt := range tests {
		w := httptest.NewRecorder()
		Readyz(func() bool { return tt.ready })(w, httptest.NewRequest("GET", "/readyz", nil))

		if w.Code != tt.wantCode || w.Body.String() != tt.wantBody {
			t.Errorf("ready=%v: got %d %q, want %d %q", tt.ready, w.Code, w.Body.String(), tt.wantCode, tt.wantBody)
		}
	}
}
