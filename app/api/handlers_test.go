package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lysyi3m/newsletter-relay/app/delivery"
	"github.com/lysyi3m/newsletter-relay/app/feed"
	"github.com/lysyi3m/newsletter-relay/app/ledger"
	"github.com/lysyi3m/newsletter-relay/app/pipeline"
	"github.com/lysyi3m/newsletter-relay/app/tasks"
)

type fakeProcessor struct {
	busy       bool
	running    bool
	last       *pipeline.CycleReport
	feedStatus pipeline.FeedStatus
	gotSource  feed.Source
	cycles     int
}

func (p *fakeProcessor) RunCycle(ctx context.Context) (*pipeline.CycleReport, error) {
	if p.busy {
		return nil, pipeline.ErrCycleInProgress
	}
	p.cycles++
	p.last = &pipeline.CycleReport{ID: "cycle-1", Delivered: 2}
	return p.last, nil
}

func (p *fakeProcessor) ProcessFeed(ctx context.Context, source feed.Source) (*pipeline.FeedReport, error) {
	if p.busy {
		return nil, pipeline.ErrCycleInProgress
	}
	p.gotSource = source
	report := &pipeline.FeedReport{URL: source.URL, Label: source.Label, Status: pipeline.FeedSucceeded, Delivered: 1}
	if p.feedStatus == pipeline.FeedFailed {
		report.Status = pipeline.FeedFailed
		report.Stage = pipeline.StageFetch
		report.Error = "fetch failed"
		report.Delivered = 0
	}
	return report, nil
}

func (p *fakeProcessor) IsRunning() bool {
	return p.running
}

func (p *fakeProcessor) LastCycle() *pipeline.CycleReport {
	return p.last
}

type fakeScheduler struct{}

func (fakeScheduler) Start() {}
func (fakeScheduler) Stop() {}
func (fakeScheduler) EnqueueTask(task tasks.TaskInterface) error { return nil }
func (fakeScheduler) NextRun() time.Time { return time.Date(2024, 1, 1, 0, 5, 0, 0, time.UTC) }
func (fakeScheduler) Spec() string { return "*/5 * * * *" }

type testServer struct {
	engine    http.Handler
	processor *fakeProcessor
	client    *delivery.Client
	ledger    *ledger.FileLedger
}

func newTestServer(t *testing.T, accessKey string) *testServer {
	t.Helper()

	sources := feed.NewSourceCache("", []string{"https://example.com/known.xml"})
	require.NoError(t, sources.Run())

	entries := ledger.NewFileLedger(filepath.Join(t.TempDir(), "ledger.json"))
	require.NoError(t, entries.Load(context.Background()))
	require.NoError(t, entries.Record(context.Background(), "fp"))

	processor := &fakeProcessor{}
	client := delivery.NewClient(nil, delivery.Settings{Endpoint: "https://distro.example.com/ingest", APIKey: "downstream-secret"}, time.Second)

	handler := NewHandler(processor, sources, entries, client, fakeScheduler{}, "test")
	return &testServer{
		engine:    NewServer(handler, accessKey),
		processor: processor,
		client:    client,
		ledger:    entries,
	}
}

func (s *testServer) do(t *testing.T, method, path, body string, headers map[string]string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()

	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	rec := httptest.NewRecorder()
	s.engine.ServeHTTP(rec, req)

	var decoded map[string]any
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &decoded))
	}
	return rec, decoded
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, "secret")

	rec, body := s.do(t, http.MethodGet, "/health", "", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, float64(1), body["feeds"])
	assert.Equal(t, float64(1), body["ledger"].(map[string]any)["entries"])
}

func TestAuthMiddleware(t *testing.T) {
	s := newTestServer(t, "secret")

	rec, body := s.do(t, http.MethodGet, "/api/status", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "API key required", body["error"])

	rec, body = s.do(t, http.MethodGet, "/api/status", "", map[string]string{"X-API-Key": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Invalid API key", body["error"])

	rec, _ = s.do(t, http.MethodGet, "/api/status", "", map[string]string{"X-API-Key": "secret"})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, _ = s.do(t, http.MethodGet, "/api/status", "", map[string]string{"Authorization": "Bearer secret"})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAPIWithoutAccessKey(t *testing.T) {
	s := newTestServer(t, "")

	rec, _ := s.do(t, http.MethodGet, "/api/status", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestStatus(t *testing.T) {
	s := newTestServer(t, "")
	s.processor.running = true
	s.processor.last = &pipeline.CycleReport{ID: "cycle-9"}

	rec, body := s.do(t, http.MethodGet, "/api/status", "", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["running"])
	assert.Equal(t, "cycle-9", body["lastCycle"].(map[string]any)["id"])

	scheduler := body["scheduler"].(map[string]any)
	assert.Equal(t, "*/5 * * * *", scheduler["schedule"])
	assert.Equal(t, "2024-01-01T00:05:00Z", scheduler["nextRun"])
}

func TestProcessFeeds(t *testing.T) {
	s := newTestServer(t, "")

	rec, body := s.do(t, http.MethodPost, "/api/process-feeds", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, float64(2), body["processed"])
	assert.Equal(t, 1, s.processor.cycles)

	s.processor.busy = true
	rec, body = s.do(t, http.MethodPost, "/api/process-feeds", "", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, false, body["success"])
}

func TestProcessSingleFeed(t *testing.T) {
	s := newTestServer(t, "")

	rec, body := s.do(t, http.MethodPost, "/api/process-single-feed", `{"feedUrl":"https://example.com/other.xml","sourceName":"Bankless"}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "Bankless", body["sourceName"])
	assert.Equal(t, feed.Source{URL: "https://example.com/other.xml", Label: "Bankless"}, s.processor.gotSource)

	// Known sources keep their configuration
	rec, _ = s.do(t, http.MethodPost, "/api/process-single-feed", `{"feedUrl":"https://example.com/known.xml"}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, feed.DefaultSourceLabel, s.processor.gotSource.Label)

	rec, body = s.do(t, http.MethodPost, "/api/process-single-feed", `{"sourceName":"No URL"}`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Feed URL is required", body["error"])

	s.processor.feedStatus = pipeline.FeedFailed
	rec, body = s.do(t, http.MethodPost, "/api/process-single-feed", `{"feedUrl":"https://example.com/down.xml"}`, nil)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, "fetch failed", body["error"])

	s.processor.busy = true
	rec, _ = s.do(t, http.MethodPost, "/api/process-single-feed", `{"feedUrl":"https://example.com/other.xml"}`, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestConfig(t *testing.T) {
	s := newTestServer(t, "")

	rec, body := s.do(t, http.MethodGet, "/api/config", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "https://distro.example.com/ingest", body["endpoint"])
	assert.Equal(t, "****cret", body["apiKey"])

	rec, _ = s.do(t, http.MethodPut, "/api/config", `{"endpoint":"https://distro.example.com/v2"}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, delivery.Settings{Endpoint: "https://distro.example.com/v2", APIKey: "downstream-secret"}, s.client.Settings())

	rec, _ = s.do(t, http.MethodPut, "/api/config", `{"endpoint":"https://distro.example.com/v3","apiKey":"rotated"}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, delivery.Settings{Endpoint: "https://distro.example.com/v3", APIKey: "rotated"}, s.client.Settings())

	rec, _ = s.do(t, http.MethodPut, "/api/config", `{"endpoint":"not a url"}`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "https://distro.example.com/v3", s.client.Settings().Endpoint)
}

func TestMaskKey(t *testing.T) {
	assert.Equal(t, "", maskKey(""))
	assert.Equal(t, "****", maskKey("short"))
	assert.Equal(t, "****7890", maskKey("1234567890"))
}
