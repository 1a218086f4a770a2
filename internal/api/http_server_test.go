package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"driftq/internal/config"
	"driftq/internal/database"
	"driftq/internal/export"
	"driftq/internal/models"
	"driftq/internal/monitor"
	"driftq/internal/service"

	"github.com/rs/zerolog"
)

type stubRemote struct{ err error }

func (s *stubRemote) Create(ctx context.Context, collection string, record models.Record) error {
	return s.err
}

func (s *stubRemote) Update(ctx context.Context, collection string, record models.Record) error {
	return s.err
}

func (s *stubRemote) Delete(ctx context.Context, collection string, id string) error {
	return s.err
}

func newTestService(t *testing.T, online bool) *service.SyncService {
	t.Helper()
	logger := zerolog.Nop()

	store, err := database.NewStore(":memory:", &logger)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	cfg := models.DefaultSyncConfig()
	cfg.SyncInterval = time.Hour

	svc, err := service.New(context.Background(), cfg, store, &stubRemote{}, monitor.NewFlagProvider(online), nil, logger)
	if err != nil {
		t.Fatalf("create service: %v", err)
	}
	return svc
}

func newTestHTTPServer(t *testing.T, svc *service.SyncService, cfg config.APIConfig) *httptest.Server {
	t.Helper()
	exporter := export.NewExporter(t.TempDir(), zerolog.Nop())
	srv := NewHTTPServer(cfg, svc, exporter, zerolog.Nop())
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func TestSyncStatus(t *testing.T) {
	svc := newTestService(t, false)
	ts := newTestHTTPServer(t, svc, config.APIConfig{})

	if _, err := svc.QueueCreate(context.Background(), "contacts", models.Record{"email": "a@x.com"}, models.PriorityHigh); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	resp, err := http.Get(ts.URL + "/api/v1/sync/status")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}

	var body struct {
		Total   int  `json:"total"`
		Pending int  `json:"pending"`
		Failed  int  `json:"failed"`
		Online  bool `json:"online"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Total != 1 || body.Pending != 1 || body.Failed != 0 {
		t.Fatalf("unexpected counts: %+v", body)
	}
	if body.Online {
		t.Fatalf("expected online=false")
	}
}

func TestSyncLogLimit(t *testing.T) {
	svc := newTestService(t, false)
	ts := newTestHTTPServer(t, svc, config.APIConfig{})

	resp, err := http.Get(ts.URL + "/api/v1/sync/log?limit=5")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}

	resp, err = http.Get(ts.URL + "/api/v1/sync/log?limit=abc")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad limit, got %d", resp.StatusCode)
	}
}

func TestTriggerWhileOffline(t *testing.T) {
	svc := newTestService(t, false)
	ts := newTestHTTPServer(t, svc, config.APIConfig{})

	resp, err := http.Post(ts.URL+"/api/v1/sync/trigger", "application/json", nil)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("expected 202 while offline, got %d", resp.StatusCode)
	}

	var body struct {
		Attempted int  `json:"attempted"`
		Online    bool `json:"online"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Attempted != 0 || body.Online {
		t.Fatalf("expected attempted=0 online=false, got %+v", body)
	}
}

func TestTriggerDrainsQueue(t *testing.T) {
	svc := newTestService(t, true)
	ts := newTestHTTPServer(t, svc, config.APIConfig{})

	resp, err := http.Post(ts.URL+"/api/v1/sync/trigger", "application/json", nil)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}

	var body struct {
		Attempted int  `json:"attempted"`
		Online    bool `json:"online"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if !body.Online {
		t.Fatalf("expected online=true")
	}
	// The queue is empty, so no items were attempted.
	if body.Attempted != 0 {
		t.Fatalf("expected attempted=0 on empty queue, got %d", body.Attempted)
	}
}

func TestClearQueue(t *testing.T) {
	svc := newTestService(t, false)
	ts := newTestHTTPServer(t, svc, config.APIConfig{})

	if _, err := svc.QueueCreate(context.Background(), "contacts", models.Record{}, models.PriorityNormal); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	resp, err := http.Post(ts.URL+"/api/v1/sync/clear", "application/json", nil)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}

	if got := svc.Status().Total; got != 0 {
		t.Fatalf("expected empty queue, got %d items", got)
	}
}

func TestConfigPatch(t *testing.T) {
	svc := newTestService(t, false)
	ts := newTestHTTPServer(t, svc, config.APIConfig{})

	body := strings.NewReader(`{"max_retries": 7}`)
	req, err := http.NewRequest(http.MethodPatch, ts.URL+"/api/v1/sync/config", body)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}

	var updated models.SyncConfig
	if err := json.NewDecoder(resp.Body).Decode(&updated); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if updated.MaxRetries != 7 {
		t.Fatalf("expected max_retries=7, got %d", updated.MaxRetries)
	}
	if svc.Config().MaxRetries != 7 {
		t.Fatalf("service config not updated")
	}
}

func TestConfigPatchUnknownField(t *testing.T) {
	svc := newTestService(t, false)
	ts := newTestHTTPServer(t, svc, config.APIConfig{})

	body := strings.NewReader(`{"nope": true}`)
	req, err := http.NewRequest(http.MethodPatch, ts.URL+"/api/v1/sync/config", body)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestExportSyncLog(t *testing.T) {
	svc := newTestService(t, false)
	ts := newTestHTTPServer(t, svc, config.APIConfig{})

	resp, err := http.Post(ts.URL+"/api/v1/sync/export", "application/json", nil)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}

	var body struct {
		FilePath string `json:"file_path"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.FilePath == "" {
		t.Fatalf("expected a file path")
	}
}

func TestHealthzNeedsNoAuth(t *testing.T) {
	svc := newTestService(t, true)
	cfg := authedConfig()
	ts := newTestHTTPServer(t, svc, cfg)

	resp, err := http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	svc := newTestService(t, false)
	ts := newTestHTTPServer(t, svc, config.APIConfig{})

	resp, err := http.Post(ts.URL+"/api/v1/sync/status", "application/json", nil)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", resp.StatusCode)
	}
}

func authedConfig() config.APIConfig {
	return config.APIConfig{
		Enabled: true,
		Auth: config.APIAuthConfig{
			Enabled: true,
			APIKeys: []config.APIClientKey{
				{Key: "reader-key", Extra: "reader-extra", Name: "reader", Permissions: []string{"read:sync"}},
				{Key: "admin-key", Extra: "admin-extra", Name: "admin"},
			},
		},
	}
}

func authedRequest(t *testing.T, method, url, key, extra string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, url, nil)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	if key != "" {
		req.Header.Set("x-api-key", key)
	}
	if extra != "" {
		req.Header.Set("x-api-extra", extra)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	return resp
}

func TestAuthRequired(t *testing.T) {
	svc := newTestService(t, false)
	ts := newTestHTTPServer(t, svc, authedConfig())

	resp := authedRequest(t, http.MethodGet, ts.URL+"/api/v1/sync/status", "", "")
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 without headers, got %d", resp.StatusCode)
	}

	resp = authedRequest(t, http.MethodGet, ts.URL+"/api/v1/sync/status", "reader-key", "wrong")
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 with wrong extra, got %d", resp.StatusCode)
	}

	resp = authedRequest(t, http.MethodGet, ts.URL+"/api/v1/sync/status", "reader-key", "reader-extra")
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 with valid key, got %d", resp.StatusCode)
	}
}

func TestAuthPermissions(t *testing.T) {
	svc := newTestService(t, false)
	ts := newTestHTTPServer(t, svc, authedConfig())

	// Reader key cannot clear the queue.
	resp := authedRequest(t, http.MethodPost, ts.URL+"/api/v1/sync/clear", "reader-key", "reader-extra")
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", resp.StatusCode)
	}

	// A key without a permission list has full access.
	resp = authedRequest(t, http.MethodPost, ts.URL+"/api/v1/sync/clear", "admin-key", "admin-extra")
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 for admin key, got %d", resp.StatusCode)
	}
}

func TestRateLimit(t *testing.T) {
	svc := newTestService(t, false)
	cfg := config.APIConfig{RateLimit: config.RateLimitConfig{RPS: 0.0001, Burst: 2}}
	ts := newTestHTTPServer(t, svc, cfg)

	var limited bool
	for i := 0; i < 5; i++ {
		resp, err := http.Get(ts.URL + "/api/v1/sync/status")
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		if resp.StatusCode == http.StatusTooManyRequests {
			limited = true
		}
		resp.Body.Close()
	}
	if !limited {
		t.Fatalf("expected at least one 429")
	}
}
