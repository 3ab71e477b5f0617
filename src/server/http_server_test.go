package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"power-observer/src/analysis"
	"power-observer/src/cache"
	"power-observer/src/classifier"
	"power-observer/src/fetcher"
	"power-observer/src/helpers"
	"power-observer/src/interfaces"
	"power-observer/src/logger"
	"power-observer/src/models"
	"power-observer/src/storage"
	"power-observer/src/utils"

	"github.com/gorilla/websocket"
)

var (
	quiet = logger.NewLoggerWithWriter("ERROR", "server", io.Discard)
	day   = time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
)

func record(v float64) map[string]interface{} {
	return map[string]interface{}{
		"voltage": v, "current": 2.5, "power": 575.0, "frequency": 60.0, "powerFactor": 0.95,
	}
}

// stableModel labels every anomaly Idle_Stable.
func stableModel() *classifier.LinearModel {
	m := &classifier.LinearModel{Features: append([]string(nil), classifier.FeatureNames...)}
	for _, label := range classifier.Labels {
		c := classifier.LinearClass{Label: label, Weights: make([]float64, len(classifier.FeatureNames))}
		if label == "Idle_Stable" {
			c.Bias = 1
		}
		m.Classes = append(m.Classes, c)
	}
	return m
}

type downStore struct{}

func (downStore) Name() string { return "down" }
func (downStore) FetchDay(context.Context, string, time.Time) (models.MRawDay, error) {
	return nil, helpers.NewUpstreamUnavailableError("store unreachable", errors.New("connection refused"))
}
func (downStore) Close() error { return nil }

func newServer(t *testing.T, store interfaces.IReadingStore, model interfaces.IAnomalyModel) *HTTPServer {
	t.Helper()
	cfg := &models.MConfig{
		Host:     "127.0.0.1",
		Port:     8000,
		LogLevel: "ERROR",
		Fetch: models.MFetchConfig{
			DefaultLimit:  50,
			FallbackNodes: []string{"C-1", "C-2"},
		},
	}
	c := cache.NewTimeWindowCache(time.Hour, 0, quiet)
	strategy := &fetcher.RecentDaysStrategy{Anchors: []time.Time{day}}
	f := fetcher.NewRangeFetcher(store, c, strategy, models.MFetchConfig{DayTimeoutSeconds: 5, MaxParallelDays: 2}, time.Hour, time.UTC, quiet)
	a := analysis.NewDashboardAssembler(f, models.MAnalysisConfig{
		PointBudget:           1000,
		SampleIntervalSeconds: 30,
		Interruption:          models.MInterruptionConfig{VoltageThreshold: 180, MinDurationSeconds: 30},
	}, utils.NewDayCalendar(""), time.UTC, quiet)

	s := NewHTTPServer(cfg, Dependencies{
		Store:      store,
		Source:     f,
		Cache:      c,
		Assembler:  a,
		Classifier: classifier.NewAnomalyClassifier(model, quiet),
		Location:   time.UTC,
	}, quiet)
	t.Cleanup(func() { s.Stop(context.Background()) })
	return s
}

// newSeededServer stores a 45 s dip and one slightly high reading for C-1.
func newSeededServer(t *testing.T) *HTTPServer {
	t.Helper()
	store := storage.NewSQLiteReadingStore(":memory:", time.UTC, quiet)
	if err := store.Initialize(); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	raw := models.MRawDay{
		"00:00:00": record(230),
		"00:00:05": record(140),
		"00:00:50": record(230),
		"12:00:00": record(230.5),
	}
	if err := store.SaveDay(context.Background(), "C-1", day, raw); err != nil {
		t.Fatalf("SaveDay: %v", err)
	}
	return newServer(t, store, stableModel())
}

func do(t *testing.T, s *HTTPServer, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(method, path, nil))
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, into interface{}) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), into); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
}

// -----------------------------------------------------------------------------

func TestHealthSetsRequestID(t *testing.T) {
	s := newSeededServer(t)
	w := do(t, s, http.MethodGet, "/api/health")
	if w.Code != http.StatusOK {
		t.Fatalf("status %d", w.Code)
	}
	if w.Header().Get(requestIDHeader) == "" {
		t.Fatalf("missing request id header")
	}
	var body map[string]interface{}
	decode(t, w, &body)
	if body["status"] != "ok" || body["store"] != "sqlite" || body["classifier"] != true {
		t.Fatalf("unexpected health %v", body)
	}
}

func TestConfigListsPresets(t *testing.T) {
	s := newSeededServer(t)
	var body struct {
		Presets      map[string]models.MThresholdSet `json:"presets"`
		AnomalyTypes []string                        `json:"anomaly_types"`
	}
	decode(t, do(t, s, http.MethodGet, "/api/config"), &body)
	if _, ok := body.Presets["dashboard"]; !ok {
		t.Fatalf("dashboard preset missing: %v", body.Presets)
	}
	if len(body.AnomalyTypes) != 15 {
		t.Fatalf("expected 15 anomaly types, got %d", len(body.AnomalyTypes))
	}
}

func TestReadingsFilterAndRange(t *testing.T) {
	s := newSeededServer(t)
	w := do(t, s, http.MethodGet, "/api/readings?node=C-1&start_date=2025-03-10&end_date=2025-03-10&voltage_max=200")
	if w.Code != http.StatusOK {
		t.Fatalf("status %d: %s", w.Code, w.Body.String())
	}
	var body struct {
		Count    int               `json:"count"`
		Readings []models.MReading `json:"readings"`
	}
	decode(t, w, &body)
	if body.Count != 1 || body.Readings[0].Voltage != 140 {
		t.Fatalf("unexpected readings %+v", body)
	}
}

func TestReadingsWithoutRangeUsesCandidates(t *testing.T) {
	s := newSeededServer(t)
	var body struct {
		Count int `json:"count"`
	}
	decode(t, do(t, s, http.MethodGet, "/api/readings?node=C-1&limit=3"), &body)
	if body.Count != 3 {
		t.Fatalf("expected limit of 3, got %d", body.Count)
	}
}

func TestReadingsClientErrors(t *testing.T) {
	s := newSeededServer(t)
	for _, path := range []string{
		"/api/readings",
		"/api/readings?node=C-1&start_date=2025-13-01&end_date=2025-03-10",
		"/api/readings?node=C-1&voltage_min=abc",
		"/api/readings?node=C-1&voltage_min=250&voltage_max=200",
		"/api/readings?node=C-1&limit=-1",
		"/api/readings?node=C-1&anomaly_only=maybe",
	} {
		w := do(t, s, http.MethodGet, path)
		if w.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d", path, w.Code)
		}
		var body map[string]string
		decode(t, w, &body)
		if body["error"] == "" {
			t.Fatalf("%s: missing error message", path)
		}
	}
}

func TestReadingsFlagWithPreset(t *testing.T) {
	store := storage.NewSQLiteReadingStore(":memory:", time.UTC, quiet)
	if err := store.Initialize(); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	stale := record(220)
	stale["is_anomaly"] = true
	raw := models.MRawDay{"00:00:00": record(220), "00:00:05": record(140), "00:00:10": stale, "00:00:15": record(235)}
	if err := store.SaveDay(context.Background(), "C-1", day, raw); err != nil {
		t.Fatalf("SaveDay: %v", err)
	}
	s := newServer(t, store, stableModel())

	var body struct {
		Preset   string            `json:"preset"`
		Count    int               `json:"count"`
		Readings []models.MReading `json:"readings"`
	}
	decode(t, do(t, s, http.MethodGet, "/api/readings?node=C-1&start_date=2025-03-10&end_date=2025-03-10"), &body)
	if body.Preset != analysis.PresetGeneral || body.Count != 4 {
		t.Fatalf("unexpected response %+v", body)
	}
	for _, r := range body.Readings {
		if r.IsAnomaly != (len(r.AnomalyParameters) > 0) {
			t.Fatalf("flag and parameters disagree: %+v", r)
		}
	}

	decode(t, do(t, s, http.MethodGet, "/api/readings?node=C-1&start_date=2025-03-10&end_date=2025-03-10&anomaly_only=true"), &body)
	if body.Count != 2 || body.Readings[0].Voltage != 140 || body.Readings[1].Voltage != 235 {
		t.Fatalf("expected the general anomalies 140V and 235V, got %+v", body.Readings)
	}

	decode(t, do(t, s, http.MethodGet, "/api/readings?node=C-1&start_date=2025-03-10&end_date=2025-03-10&anomaly_only=true&preset=dashboard&limit=5"), &body)
	if body.Count != 1 || body.Readings[0].Voltage != 140 {
		t.Fatalf("expected only the dip under dashboard, got %+v", body.Readings)
	}

	decode(t, do(t, s, http.MethodGet, "/api/readings?node=C-1&start_date=2025-03-10&end_date=2025-03-10&anomaly_only=true&limit=1"), &body)
	if body.Count != 1 || body.Readings[0].Voltage != 140 {
		t.Fatalf("expected the limit to apply after flagging, got %+v", body.Readings)
	}

	if w := do(t, s, http.MethodGet, "/api/readings?node=C-1&preset=strict"); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown preset, got %d", w.Code)
	}
}

func TestReadingsUpstreamFailure(t *testing.T) {
	s := newServer(t, downStore{}, nil)
	w := do(t, s, http.MethodGet, "/api/readings?node=C-1&start_date=2025-03-10&end_date=2025-03-10")
	if w.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", w.Code)
	}
}

func TestAnomaliesClassified(t *testing.T) {
	s := newSeededServer(t)
	var body struct {
		Preset    string            `json:"preset"`
		Count     int               `json:"count"`
		Anomalies []models.MReading `json:"anomalies"`
	}
	decode(t, do(t, s, http.MethodGet, "/api/anomalies?node=C-1&start_date=2025-03-10&end_date=2025-03-10"), &body)
	if body.Preset != analysis.PresetGeneral || body.Count != 2 {
		t.Fatalf("expected 2 anomalies under general, got %+v", body)
	}
	for _, r := range body.Anomalies {
		if r.AnomalyType != "Idle_Stable" || !r.IsAnomaly {
			t.Fatalf("unexpected anomaly %+v", r)
		}
	}

	decode(t, do(t, s, http.MethodGet, "/api/anomalies?node=C-1&start_date=2025-03-10&end_date=2025-03-10&preset=dashboard"), &body)
	if body.Count != 1 {
		t.Fatalf("expected 1 anomaly under dashboard, got %d", body.Count)
	}

	if w := do(t, s, http.MethodGet, "/api/anomalies?node=C-1&preset=strict"); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown preset, got %d", w.Code)
	}
}

func TestDashboardEndpoint(t *testing.T) {
	s := newSeededServer(t)
	w := do(t, s, http.MethodGet, "/api/dashboard?node=C-1&start_date=2025-03-10&end_date=2025-03-10")
	if w.Code != http.StatusOK {
		t.Fatalf("status %d: %s", w.Code, w.Body.String())
	}
	var p models.MDashboardPayload
	decode(t, w, &p)
	if p.Interruptions.Count != 1 || p.AnomalySummary.Count != 1 || p.TotalReadings != 4 {
		t.Fatalf("unexpected payload: interruptions=%d anomalies=%d total=%d", p.Interruptions.Count, p.AnomalySummary.Count, p.TotalReadings)
	}

	if w := do(t, s, http.MethodGet, "/api/dashboard?node=C-1&start_date=2025-03-10"); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without end_date, got %d", w.Code)
	}
}

func TestTimeSeriesRaw(t *testing.T) {
	s := newSeededServer(t)
	var ts models.MTimeSeriesResponse
	decode(t, do(t, s, http.MethodGet, "/api/time-series?node=C-1&start_date=2025-03-10&end_date=2025-03-10"), &ts)
	if ts.Mode != models.ModeRaw || ts.SampleCount != 4 {
		t.Fatalf("expected raw series of 4, got mode=%s count=%d", ts.Mode, ts.SampleCount)
	}
}

func TestCompareEndpoint(t *testing.T) {
	s := newSeededServer(t)
	var body struct {
		Nodes []models.MNodeComparison `json:"nodes"`
	}
	decode(t, do(t, s, http.MethodGet, "/api/compare?nodes=C-1,C-9,C-1&limit=2"), &body)
	if len(body.Nodes) != 2 {
		t.Fatalf("expected 2 nodes, got %d", len(body.Nodes))
	}
	if body.Nodes[0].Node != "C-1" || len(body.Nodes[0].Readings) != 2 {
		t.Fatalf("unexpected C-1 comparison %+v", body.Nodes[0])
	}
	if len(body.Nodes[1].Readings) != 0 {
		t.Fatalf("expected no readings for C-9")
	}

	if w := do(t, s, http.MethodGet, "/api/compare"); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without nodes, got %d", w.Code)
	}
}

func TestExplainEndpoint(t *testing.T) {
	s := newSeededServer(t)
	w := do(t, s, http.MethodGet, "/api/explain?node=C-1&date=2025-03-10&time=12:00:00")
	if w.Code != http.StatusOK {
		t.Fatalf("status %d: %s", w.Code, w.Body.String())
	}
	var exp models.MExplanation
	decode(t, w, &exp)
	if exp.PredictedClass != "Idle_Stable" || len(exp.Contributions) != len(classifier.FeatureNames) {
		t.Fatalf("unexpected explanation %+v", exp)
	}

	if w := do(t, s, http.MethodGet, "/api/explain?node=C-1&date=2025-03-10&time=13:00:00"); w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
	if w := do(t, s, http.MethodGet, "/api/explain?node=C-1&date=2025-03-10&time=25:00"); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}

	noModel := newServer(t, downStore{}, nil)
	if w := do(t, noModel, http.MethodGet, "/api/explain?node=C-1&date=2025-03-10&time=12:00:00"); w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 without a model, got %d", w.Code)
	}
}

func TestExportCSV(t *testing.T) {
	s := newSeededServer(t)
	w := do(t, s, http.MethodGet, "/api/export.csv?node=C-1&start_date=2025-03-10&end_date=2025-03-10")
	if w.Code != http.StatusOK {
		t.Fatalf("status %d: %s", w.Code, w.Body.String())
	}
	if !strings.HasPrefix(w.Header().Get("Content-Type"), "text/csv") {
		t.Fatalf("unexpected content type %q", w.Header().Get("Content-Type"))
	}
	if !strings.Contains(w.Header().Get("Content-Disposition"), "C-1_2025-03-10_2025-03-10.csv") {
		t.Fatalf("unexpected disposition %q", w.Header().Get("Content-Disposition"))
	}
	lines := strings.Split(strings.TrimRight(w.Body.String(), "\n"), "\n")
	if len(lines) != 5 {
		t.Fatalf("expected header and 4 rows, got %d", len(lines))
	}
	if lines[4] != "C-1,2025-03-10 12:00:00,230.5,2.5,575.0,60.0,0.95,No" {
		t.Fatalf("unexpected row %q", lines[4])
	}
	if !strings.HasSuffix(lines[2], ",140.0,2.5,575.0,60.0,0.95,Yes") {
		t.Fatalf("expected the dip flagged under the dashboard preset, got %q", lines[2])
	}
}

func TestNodesAndDays(t *testing.T) {
	s := newSeededServer(t)
	var nodes struct {
		Nodes  []string `json:"nodes"`
		Source string   `json:"source"`
	}
	decode(t, do(t, s, http.MethodGet, "/api/nodes"), &nodes)
	if nodes.Source != "sqlite" || len(nodes.Nodes) != 1 || nodes.Nodes[0] != "C-1" {
		t.Fatalf("unexpected nodes %+v", nodes)
	}

	var days models.MNodeDateRange
	decode(t, do(t, s, http.MethodGet, "/api/nodes/C-1/days"), &days)
	if days.Earliest != "2025-03-10" || days.Latest != "2025-03-10" || len(days.Days) != 1 {
		t.Fatalf("unexpected days %+v", days)
	}
	decode(t, do(t, s, http.MethodGet, "/api/node-date-range?node=C-1"), &days)
	if days.Node != "C-1" || days.Latest != "2025-03-10" {
		t.Fatalf("unexpected date range %+v", days)
	}
}

func TestNodesFallbackWithoutLister(t *testing.T) {
	s := newServer(t, downStore{}, nil)
	var nodes struct {
		Nodes  []string `json:"nodes"`
		Source string   `json:"source"`
	}
	decode(t, do(t, s, http.MethodGet, "/api/nodes"), &nodes)
	if nodes.Source != "fallback" || len(nodes.Nodes) != 2 {
		t.Fatalf("unexpected fallback %+v", nodes)
	}
	if w := do(t, s, http.MethodGet, "/api/nodes/C-1/days"); w.Code != http.StatusNotImplemented {
		t.Fatalf("expected 501, got %d", w.Code)
	}
}

func TestCacheAdministration(t *testing.T) {
	s := newSeededServer(t)
	do(t, s, http.MethodGet, "/api/readings?node=C-1&start_date=2025-03-10&end_date=2025-03-10")

	var stats models.MCacheStats
	decode(t, do(t, s, http.MethodGet, "/api/cache/stats"), &stats)
	if stats.TotalItems != 1 || stats.ItemsByNode["C-1"] != 1 {
		t.Fatalf("unexpected stats %+v", stats)
	}

	var cached struct {
		Nodes []string `json:"nodes"`
	}
	decode(t, do(t, s, http.MethodGet, "/api/cache/nodes"), &cached)
	if len(cached.Nodes) != 1 || cached.Nodes[0] != "C-1" {
		t.Fatalf("unexpected cached nodes %v", cached.Nodes)
	}

	var cleared struct {
		Cleared   int `json:"cleared"`
		Remaining int `json:"remaining_items"`
	}
	decode(t, do(t, s, http.MethodDelete, "/api/cache?node=C-1"), &cleared)
	if cleared.Cleared != 1 || cleared.Remaining != 0 {
		t.Fatalf("unexpected clear result %+v", cleared)
	}
}

func TestCORSPreflight(t *testing.T) {
	s := newSeededServer(t)
	req := httptest.NewRequest(http.MethodOptions, "/api/readings", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	if w.Code != http.StatusNoContent || w.Header().Get("Access-Control-Allow-Origin") != "http://localhost:5173" {
		t.Fatalf("unexpected preflight: %d %v", w.Code, w.Header())
	}
}

// -----------------------------------------------------------------------------

func readUpdate(t *testing.T, conn *websocket.Conn) models.MLiveUpdate {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var u models.MLiveUpdate
	if err := conn.ReadJSON(&u); err != nil {
		t.Fatalf("read update: %v", err)
	}
	return u
}

func TestWebSocketSubscribeAndInvalidate(t *testing.T) {
	s := newSeededServer(t)
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/ws", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	sub := models.MSubscribeCommand{Command: "subscribe", Node: "C-1", StartDate: "2025-03-10", EndDate: "2025-03-10"}
	if err := conn.WriteJSON(sub); err != nil {
		t.Fatalf("write: %v", err)
	}
	initial := readUpdate(t, conn)
	if initial.Type != "INITIAL" || initial.Dashboard == nil || initial.Dashboard.TotalReadings != 4 {
		t.Fatalf("unexpected initial update %+v", initial)
	}

	s.NotifyInvalidated("C-1", day)
	update := readUpdate(t, conn)
	if update.Type != "UPDATE" || update.Node != "C-1" || update.Dashboard == nil {
		t.Fatalf("unexpected live update %+v", update)
	}
}

func TestWebSocketRejectsBadCommands(t *testing.T) {
	s := newSeededServer(t)
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/ws", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	conn.WriteMessage(websocket.TextMessage, []byte("not json"))
	if u := readUpdate(t, conn); u.Type != "ERROR" {
		t.Fatalf("expected ERROR for bad JSON, got %+v", u)
	}

	conn.WriteJSON(models.MSubscribeCommand{Command: "subscribe", Node: "C-1", StartDate: "bad", EndDate: "2025-03-10"})
	if u := readUpdate(t, conn); u.Type != "ERROR" || u.Error == "" {
		t.Fatalf("expected ERROR for bad dates, got %+v", u)
	}
}
