package api

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"driftq/internal/metrics"

	"github.com/rs/zerolog"
)

func TestMetricsServerServesRegistry(t *testing.T) {
	metrics.Register()
	metrics.IncEnqueued("contacts")

	srv := NewMetricsServer(9090, zerolog.Nop())
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/metrics")
	if err != nil {
		t.Fatalf("get metrics: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	if !strings.Contains(string(body), "driftq_items_enqueued_total") {
		t.Fatalf("expected queue counters in exposition output")
	}
}

func TestMetricsServerDefaultPort(t *testing.T) {
	srv := NewMetricsServer(0, zerolog.Nop())
	if srv.server.Addr != ":9090" {
		t.Fatalf("expected default :9090, got %s", srv.server.Addr)
	}
}
