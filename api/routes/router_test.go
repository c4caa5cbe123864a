package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/engagement-dashboard/api/controllers"
	"github.com/angelmondragon/engagement-dashboard/internal/engagements"
	"github.com/angelmondragon/engagement-dashboard/pkg/config"
	"github.com/angelmondragon/engagement-dashboard/pkg/enums"
	"github.com/angelmondragon/engagement-dashboard/pkg/logger"
	"github.com/angelmondragon/engagement-dashboard/pkg/metrics"
)

type stubPinger struct {
	err error
}

func (s stubPinger) Ping(context.Context) error {
	return s.err
}

type countingLimiter struct {
	count int64
}

func (c *countingLimiter) FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error) {
	c.count++
	return c.count <= limit, c.count, nil
}

func testConfig() *config.Config {
	return &config.Config{
		App:             config.AppConfig{Env: "test"},
		Data:            config.DataConfig{MockBatchSize: 50, MaxUploadMB: 1},
		UploadRateLimit: config.UploadRateLimitConfig{Window: time.Minute, Limit: 2},
		Dashboard:       config.DashboardConfig{DefaultLimit: 10},
	}
}

type routerFixture struct {
	handler http.Handler
	reg     *prometheus.Registry
}

func newFixture(t *testing.T, limiter *countingLimiter, checks map[string]controllers.Pinger) routerFixture {
	t.Helper()
	svc, err := engagements.NewService(engagements.ServiceParams{
		Store:     engagements.NewWorkingSet(),
		Generator: engagements.NewGenerator(7, time.Now),
		BatchSize: 50,
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	reg := prometheus.NewRegistry()
	cfg := testConfig()
	logg := logger.New(logger.Options{ServiceName: "test", Level: logger.ParseLevel("error"), Output: io.Discard})

	var h http.Handler
	if limiter != nil {
		h = NewRouter(cfg, logg, svc, limiter, checks, metrics.NewHTTPMetrics(reg), reg)
	} else {
		h = NewRouter(cfg, logg, svc, nil, checks, metrics.NewHTTPMetrics(reg), reg)
	}
	return routerFixture{handler: h, reg: reg}
}

func (f routerFixture) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func uploadRequest(t *testing.T, field, filename, content string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile(field, filename)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := io.WriteString(part, content); err != nil {
		t.Fatalf("write part: %v", err)
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/api/engagement/upload", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode body %q: %v", rec.Body.String(), err)
	}
	return out
}

type errorBody struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

const uploadCSV = "id,type,user_id,score,source,timestamp\n" +
	"101,click,alice,90,web,2024-01-01T10:00:00Z\n" +
	"102,Bogus,bob,40,mobile,2024-01-01T11:00:00Z\n"

func TestHealthEndpoint(t *testing.T) {
	f := newFixture(t, nil, nil)
	rec := f.do(httptest.NewRequest(http.MethodGet, "/api/health", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := decodeBody[map[string]any](t, rec)
	if body["status"] != "ok" || body["timestamp"] == nil {
		t.Fatalf("unexpected body %v", body)
	}
}

func TestListEngagementsServesGeneratedData(t *testing.T) {
	f := newFixture(t, nil, nil)
	rec := f.do(httptest.NewRequest(http.MethodGet, "/api/engagement", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	body := decodeBody[engagements.ListResult](t, rec)
	if len(body.Data) != 10 {
		t.Fatalf("expected default limit of 10, got %d", len(body.Data))
	}
	if body.Metadata.Total != 50 || body.Metadata.DataSource != enums.DataSourceGenerated {
		t.Fatalf("unexpected metadata %+v", body.Metadata)
	}
	if body.Analytics.TotalEngagements != 10 {
		t.Fatalf("analytics should cover the returned set, got %d", body.Analytics.TotalEngagements)
	}
}

func TestUploadThenClearSwitchesDataSource(t *testing.T) {
	f := newFixture(t, nil, nil)

	rec := f.do(uploadRequest(t, "csvFile", "events.csv", uploadCSV))
	if rec.Code != http.StatusOK {
		t.Fatalf("upload: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	up := decodeBody[engagements.UploadResult](t, rec)
	if up.Processed != 2 || len(up.Sample) != 2 {
		t.Fatalf("unexpected upload result %+v", up)
	}
	if up.Sample[1].Type != enums.EngagementView {
		t.Fatalf("unknown type should clean to view, got %s", up.Sample[1].Type)
	}

	rec = f.do(httptest.NewRequest(http.MethodGet, "/api/engagement?limit=100", nil))
	list := decodeBody[engagements.ListResult](t, rec)
	if list.Metadata.DataSource != enums.DataSourceUploaded || list.Metadata.Filename != "events.csv" || len(list.Data) != 2 {
		t.Fatalf("expected uploaded data, got %+v", list.Metadata)
	}

	rec = f.do(httptest.NewRequest(http.MethodPost, "/api/engagement/clear-uploaded", nil))
	cleared := decodeBody[engagements.ClearResult](t, rec)
	if cleared.DataSource != enums.DataSourceGenerated {
		t.Fatalf("unexpected clear result %+v", cleared)
	}

	rec = f.do(httptest.NewRequest(http.MethodGet, "/api/engagement?limit=100", nil))
	list = decodeBody[engagements.ListResult](t, rec)
	if list.Metadata.DataSource != enums.DataSourceGenerated || len(list.Data) != 50 {
		t.Fatalf("expected generated data after clear, got %+v (%d rows)", list.Metadata, len(list.Data))
	}
	for _, r := range list.Data {
		if r.ID == 101 && r.UserID == "alice" {
			t.Fatalf("uploaded row leaked after clear")
		}
	}
}

func TestUploadValidation(t *testing.T) {
	f := newFixture(t, nil, nil)

	cases := []struct {
		name   string
		req    *http.Request
		status int
		code   string
	}{
		{"missing file", uploadRequest(t, "other", "events.csv", uploadCSV), http.StatusBadRequest, "VALIDATION_ERROR"},
		{"not multipart", httptest.NewRequest(http.MethodPost, "/api/engagement/upload", strings.NewReader("{}")), http.StatusBadRequest, "VALIDATION_ERROR"},
		{"not csv", uploadRequest(t, "csvFile", "events.json", "{}"), http.StatusBadRequest, "VALIDATION_ERROR"},
		{"empty csv", uploadRequest(t, "csvFile", "empty.csv", ""), http.StatusBadRequest, "VALIDATION_ERROR"},
		{"too large", uploadRequest(t, "csvFile", "big.csv", strings.Repeat("a", 2<<20)), http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := f.do(tc.req)
			if rec.Code != tc.status {
				t.Fatalf("expected %d, got %d: %s", tc.status, rec.Code, rec.Body.String())
			}
			if body := decodeBody[errorBody](t, rec); body.Error.Code != tc.code {
				t.Fatalf("expected %s, got %s", tc.code, body.Error.Code)
			}
		})
	}
}

func TestUploadRateLimited(t *testing.T) {
	limiter := &countingLimiter{}
	f := newFixture(t, limiter, nil)

	for i := 0; i < 3; i++ {
		rec := f.do(uploadRequest(t, "csvFile", "events.csv", uploadCSV))
		if i < 2 && rec.Code != http.StatusOK {
			t.Fatalf("upload %d: expected 200, got %d", i, rec.Code)
		}
		if i == 2 && rec.Code != http.StatusTooManyRequests {
			t.Fatalf("expected 429, got %d", rec.Code)
		}
	}
}

func TestSegmentsEndpoint(t *testing.T) {
	f := newFixture(t, nil, nil)

	rec := f.do(httptest.NewRequest(http.MethodGet, "/api/analytics/segments?segment=web&compareSegments=mobile,email", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	report := decodeBody[engagements.SegmentReport](t, rec)
	if report.Segment == nil || report.Segment.Segment != "web" || len(report.Comparison) != 2 {
		t.Fatalf("unexpected report %+v", report)
	}

	rec = f.do(httptest.NewRequest(http.MethodGet, "/api/analytics/segments?segment=fax", nil))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown segment, got %d", rec.Code)
	}
}

func TestAnalyticsSummaryIsStatic(t *testing.T) {
	f := newFixture(t, nil, nil)
	rec := f.do(httptest.NewRequest(http.MethodGet, "/api/analytics/summary", nil))
	body := decodeBody[engagements.OverviewSummary](t, rec)
	if body.TotalEngagements != 15420 || body.AverageSessionTime != "4m 32s" {
		t.Fatalf("unexpected summary %+v", body)
	}
}

func TestExportCSV(t *testing.T) {
	f := newFixture(t, nil, nil)
	f.do(uploadRequest(t, "csvFile", "events.csv", uploadCSV))

	rec := f.do(httptest.NewRequest(http.MethodGet, "/api/export/csv?type=click", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/csv" {
		t.Fatalf("unexpected content type %q", ct)
	}
	if cd := rec.Header().Get("Content-Disposition"); !strings.Contains(cd, "engagement_data.csv") {
		t.Fatalf("unexpected disposition %q", cd)
	}
	lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
	if len(lines) != 2 || !strings.HasPrefix(lines[1], "101,click,") {
		t.Fatalf("unexpected export %q", rec.Body.String())
	}
}

func TestDrillDownEndpoint(t *testing.T) {
	f := newFixture(t, nil, nil)
	f.do(uploadRequest(t, "csvFile", "events.csv", uploadCSV))

	rec := f.do(httptest.NewRequest(http.MethodGet, "/api/engagement/101/drill-down", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	dd := decodeBody[engagements.DrillDown](t, rec)
	if dd.Item.ID != 101 || dd.UserProfile.UserID != "alice" {
		t.Fatalf("unexpected drill-down %+v", dd)
	}

	if rec := f.do(httptest.NewRequest(http.MethodGet, "/api/engagement/999/drill-down", nil)); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	if rec := f.do(httptest.NewRequest(http.MethodGet, "/api/engagement/abc/drill-down", nil)); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestReadinessReportsFailingDependency(t *testing.T) {
	f := newFixture(t, nil, map[string]controllers.Pinger{
		"redis": stubPinger{},
		"db":    stubPinger{err: errors.New("connection refused")},
	})
	rec := f.do(httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}

	f = newFixture(t, nil, map[string]controllers.Pinger{"redis": stubPinger{}})
	if rec := f.do(httptest.NewRequest(http.MethodGet, "/health/ready", nil)); rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if rec := f.do(httptest.NewRequest(http.MethodGet, "/health/live", nil)); rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestMetricsEndpointAndUnknownRoute(t *testing.T) {
	f := newFixture(t, nil, nil)

	rec := f.do(httptest.NewRequest(http.MethodGet, "/nope", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	if body := decodeBody[errorBody](t, rec); body.Error.Code != "NOT_FOUND" {
		t.Fatalf("unexpected code %s", body.Error.Code)
	}

	f.do(httptest.NewRequest(http.MethodGet, "/api/health", nil))
	rec = f.do(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `http_requests_total{method="GET",route="/api/health",status="200"} 1`) {
		t.Fatalf("expected request counter in exposition:\n%s", rec.Body.String())
	}
}
