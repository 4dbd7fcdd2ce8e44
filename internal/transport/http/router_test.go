package rest_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	rest "github.com/Gunvolt24/kafka2hec/internal/transport/http"
	"github.com/Gunvolt24/kafka2hec/pkg/metrics"
)

type noopLogger struct{}

func (noopLogger) Infof(context.Context, string, ...any)  {}
func (noopLogger) Warnf(context.Context, string, ...any)  {}
func (noopLogger) Errorf(context.Context, string, ...any) {}

func init() {
	gin.SetMode(gin.TestMode)
	metrics.MustRegister()
}

func TestPing(t *testing.T) {
	r := rest.NewRouter(noopLogger{}, "", func() string { return "active" })

	req := httptest.NewRequest(http.MethodGet, "/ping", http.NoBody)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("want 200, got %d", w.Code)
	}
	if w.Body.String() != "pong" {
		t.Fatalf("want pong, got %q", w.Body.String())
	}
}

func TestStatus_ReportsSessionState(t *testing.T) {
	state := "degraded"
	r := rest.NewRouter(noopLogger{}, "", func() string { return state })

	req := httptest.NewRequest(http.MethodGet, "/status", http.NoBody)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("want 200, got %d, body=%s", w.Code, w.Body.String())
	}
	var got map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if got["session"] != "degraded" {
		t.Fatalf("wrong session state: %v", got)
	}
}

func TestMetrics_Exposed(t *testing.T) {
	r := rest.NewRouter(noopLogger{}, "", func() string { return "active" })

	req := httptest.NewRequest(http.MethodGet, "/metrics", http.NoBody)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("want 200, got %d", w.Code)
	}
	if w.Body.Len() == 0 {
		t.Fatal("empty metrics body")
	}
}
