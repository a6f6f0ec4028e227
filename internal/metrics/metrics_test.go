package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNormalizeRoute(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/healthz", "/healthz"},
		{"/readyz", "/readyz"},
		{"/metrics", "/metrics"},
		{"/api/v1/status", "/api/v1/status"},
		{"/api/v1/status/", "/api/v1/status"},

		{"/", "other"},
		{"/wp-admin", "other"},
		{"/.env", "other"},
		{"/api/v1/status/extra", "other"},
		{"/api/v2/status", "other"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			if got := normalizeRoute(tt.path); got != tt.want {
				t.Errorf("normalizeRoute(%q) = %q, want %q", tt.path, got, tt.want)
			}
		})
	}
}

func TestMiddlewareCardinality(t *testing.T) {
	handler := Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))

	before := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("other", "GET", "404"))
	for _, p := range []string{"/a", "/b", "/c/d", "/e?x=1"} {
		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", p, nil))
	}
	after := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("other", "GET", "404"))

	if after-before != 4 {
		t.Errorf("other/GET/404 grew by %v, want 4", after-before)
	}
}

func TestRecordIngest(t *testing.T) {
	okBefore := testutil.ToFloat64(tleIngestTotal.WithLabelValues("ok"))
	badBefore := testutil.ToFloat64(tleIngestTotal.WithLabelValues("invalid"))

	RecordIngest(true)
	RecordIngest(false)
	RecordIngest(false)

	if got := testutil.ToFloat64(tleIngestTotal.WithLabelValues("ok")) - okBefore; got != 1 {
		t.Errorf("ok grew by %v, want 1", got)
	}
	if got := testutil.ToFloat64(tleIngestTotal.WithLabelValues("invalid")) - badBefore; got != 2 {
		t.Errorf("invalid grew by %v, want 2", got)
	}
}

func TestRecordPublish(t *testing.T) {
	const topic = "cubesat/position"
	okBefore := testutil.ToFloat64(publishTotal.WithLabelValues(topic, "ok"))
	errBefore := testutil.ToFloat64(publishTotal.WithLabelValues(topic, "error"))

	RecordPublish(topic, nil)
	RecordPublish(topic, errors.New("timeout"))

	if got := testutil.ToFloat64(publishTotal.WithLabelValues(topic, "ok")) - okBefore; got != 1 {
		t.Errorf("ok grew by %v, want 1", got)
	}
	if got := testutil.ToFloat64(publishTotal.WithLabelValues(topic, "error")) - errBefore; got != 1 {
		t.Errorf("error grew by %v, want 1", got)
	}
}

func TestGauges(t *testing.T) {
	SetMQTTConnected(true)
	if got := testutil.ToFloat64(mqttConnected); got != 1 {
		t.Errorf("mqtt_connected = %v, want 1", got)
	}
	SetMQTTConnected(false)
	if got := testutil.ToFloat64(mqttConnected); got != 0 {
		t.Errorf("mqtt_connected = %v, want 0", got)
	}

	SetTLEAge(42)
	if got := testutil.ToFloat64(tleAgeSeconds); got != 42 {
		t.Errorf("tle_age_seconds = %v, want 42", got)
	}
}
