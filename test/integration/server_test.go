// Package integration verifies the wired HTTP surface: real handler, router,
// and middleware chain, with httptest servers standing in for the external
// model service and the market-data endpoint. PostgreSQL-backed report tests
// skip when no database is reachable.
//
// Run with:
//
//	go test -v ./test/integration/...
package integration

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	apihandler "github.com/robertvmill/inference-backend/internal/api/handler"
	"github.com/robertvmill/inference-backend/internal/api/router"
	"github.com/robertvmill/inference-backend/internal/market"
	"github.com/robertvmill/inference-backend/internal/reports"
	"github.com/robertvmill/inference-backend/internal/research"
	"github.com/robertvmill/inference-backend/internal/research/pending"
	"github.com/robertvmill/inference-backend/internal/research/pipeline"
	"github.com/robertvmill/inference-backend/internal/research/progress"
	"github.com/robertvmill/inference-backend/internal/research/token"
	"github.com/robertvmill/inference-backend/pkg/config"
	"github.com/robertvmill/inference-backend/pkg/health"
	"github.com/robertvmill/inference-backend/pkg/llm"
	"github.com/robertvmill/inference-backend/pkg/metrics"
	"github.com/robertvmill/inference-backend/pkg/postgres"
)

// Prometheus collectors register globally, so the package shares one set.
var (
	metricsOnce sync.Once
	sharedM     *metrics.Metrics
)

func testMetrics() *metrics.Metrics {
	metricsOnce.Do(func() { sharedM = metrics.New() })
	return sharedM
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

// chatStub answers /chat/completions by keying on a phrase in the system
// prompt.
func chatStub(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			http.NotFound(w, r)
			return
		}
		var req struct {
			Messages []llm.Message `json:"messages"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.Messages) < 2 {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}

		system := req.Messages[0].Content
		var content string
		switch {
		case strings.Contains(system, "structured summary"):
			content = "# Executive Overview\nStubbed summary."
		case strings.Contains(system, "key points"):
			content = "- stub point one\n- stub point two"
		case strings.Contains(system, "entities"):
			content = "Acme Corp (Organization)"
		case strings.Contains(system, "relevant to the question"):
			content = "Quoted relevant passage."
		case strings.Contains(system, "document analysis assistant"):
			content = "Stubbed grounded answer."
		case strings.Contains(system, "HTML format"):
			content = "<h2>Executive Summary</h2><p>stub</p>"
		default:
			content = "stub"
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]string{"content": content}},
			},
		})
	}))
}

func quoteStub(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"quoteResponse":{"result":[
			{"symbol":"NVDA","regularMarketPrice":130.5,"regularMarketChangePercent":1.2,"marketCap":3200000000000,"regularMarketVolume":41000000}
		],"error":null}}`)
	}))
}

type backend struct {
	server *httptest.Server
	runs   *progress.Registry
}

// newBackend wires the full chain: pipeline with a stubbed model service,
// market service with a stubbed quote endpoint, router with all middleware.
func newBackend(t *testing.T, store apihandler.ReportStore) *backend {
	t.Helper()

	chat := chatStub(t)
	t.Cleanup(chat.Close)
	quotes := quoteStub(t)
	t.Cleanup(quotes.Close)

	model, err := llm.New(config.OpenAIConfig{BaseURL: chat.URL, APIKey: "test-key"})
	if err != nil {
		t.Fatalf("creating model client: %v", err)
	}
	codec, err := token.NewCL100K()
	if err != nil {
		t.Skipf("skipping: cl100k_base encoding unavailable: %v", err)
	}

	m := testMetrics()
	pipe := pipeline.New(model, token.NewChunker(codec), pipeline.Config{
		FastModel:      "fast-model",
		StrongModel:    "strong-model",
		MaxChunkTokens: 2000,
		ChunkThreshold: 3000,
	}, m)

	pend := pending.NewStore(time.Minute)
	t.Cleanup(pend.Close)
	runs := progress.NewRegistry(time.Minute)

	marketSvc := market.NewService(
		market.NewClient(quotes.URL, time.Second),
		config.MarketConfig{
			CacheTTL:  5 * time.Minute,
			Watchlist: []config.Company{{Symbol: "NVDA", Name: "NVIDIA"}},
		}, nil, m)

	cfg, err := config.Load("")
	if err != nil {
		t.Fatalf("loading config: %v", err)
	}

	h := apihandler.New(pipe, pend, runs, marketSvc, store, nil, m)
	srv := httptest.NewServer(router.New(h, health.NewChecker(), m, cfg))
	t.Cleanup(srv.Close)

	return &backend{server: srv, runs: runs}
}

func postJSON(t *testing.T, url, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, out any) {
	t.Helper()
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
}

// skipIfNoPostgres skips the test when PostgreSQL is unavailable.
func skipIfNoPostgres(t *testing.T) *reports.Store {
	t.Helper()
	db, err := postgres.New(config.PostgresConfig{
		Host:            envOrDefault("TEST_POSTGRES_HOST", "localhost"),
		Port:            5432,
		Database:        envOrDefault("TEST_POSTGRES_DB", "inference_test"),
		User:            envOrDefault("TEST_POSTGRES_USER", "inference"),
		Password:        envOrDefault("TEST_POSTGRES_PASSWORD", "localdev"),
		SSLMode:         "disable",
		MaxOpenConns:    5,
		MaxIdleConns:    2,
		ConnMaxLifetime: 5 * time.Minute,
	})
	if err != nil {
		t.Skipf("skipping integration test: postgres unavailable: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	store := reports.NewStore(db)
	if err := store.EnsureSchema(t.Context()); err != nil {
		t.Fatalf("ensuring schema: %v", err)
	}
	return store
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// ---------------------------------------------------------------------------
// Tests
// ---------------------------------------------------------------------------

func TestUploadFlow(t *testing.T) {
	b := newBackend(t, nil)

	resp := postJSON(t, b.server.URL+"/api/research/upload",
		`{"title":"Briefing","content":"A short document about Acme Corp.","type":"article","progress_id":"up-1"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	var summary research.Summary
	decodeBody(t, resp, &summary)
	if summary.Title != "Briefing" || !strings.Contains(summary.Summary, "Stubbed summary") {
		t.Errorf("summary = %+v", summary)
	}
	if len(summary.KeyPoints) != 2 || len(summary.Entities) != 1 {
		t.Errorf("key points %v, entities %v", summary.KeyPoints, summary.Entities)
	}

	// The run finished, so its stream replays the final state and closes.
	stream, err := http.Get(b.server.URL + "/api/research/progress/up-1")
	if err != nil {
		t.Fatalf("GET progress: %v", err)
	}
	defer stream.Body.Close()
	if ct := stream.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("content type = %q", ct)
	}
	buf := make([]byte, 4096)
	n, _ := stream.Body.Read(buf)
	if !strings.Contains(string(buf[:n]), `"progress":100`) {
		t.Errorf("stream body = %q", string(buf[:n]))
	}
}

func TestQuestionFlow(t *testing.T) {
	b := newBackend(t, nil)

	body := `{"question":"What does Acme do?","document_content":"Acme builds robots.","question_id":"q-int-1"}`
	resp := postJSON(t, b.server.URL+"/api/research/question", body)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	var answer pending.Answer
	decodeBody(t, resp, &answer)
	if answer.Status != pending.StatusComplete || answer.Answer != "Stubbed grounded answer." {
		t.Errorf("answer = %+v", answer)
	}
}

func TestFinancialMetricsFlow(t *testing.T) {
	b := newBackend(t, nil)

	resp, err := http.Get(b.server.URL + "/api/financial-metrics")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	var ms []market.Metric
	decodeBody(t, resp, &ms)
	if len(ms) != 1 || ms[0].Symbol != "NVDA" || ms[0].Price != 130.5 {
		t.Errorf("metrics = %+v", ms)
	}
}

func TestCORSPreflight(t *testing.T) {
	b := newBackend(t, nil)

	req, _ := http.NewRequest(http.MethodOptions, b.server.URL+"/api/research/upload", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", "POST")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("OPTIONS: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("status = %d", resp.StatusCode)
	}
	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Errorf("allow origin = %q", got)
	}
}

func TestHealthAndRequestID(t *testing.T) {
	b := newBackend(t, nil)

	resp, err := http.Get(b.server.URL + "/health")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d", resp.StatusCode)
	}
	if resp.Header.Get("X-Request-ID") == "" {
		t.Error("missing X-Request-ID header")
	}
}

func TestReportsWithoutStorage(t *testing.T) {
	b := newBackend(t, nil)

	resp, err := http.Get(b.server.URL + "/api/reports")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("status = %d", resp.StatusCode)
	}
}

func TestReportLifecycle(t *testing.T) {
	store := skipIfNoPostgres(t)
	b := newBackend(t, store)

	resp := postJSON(t, b.server.URL+"/api/research/generate-report",
		`{"title":"Acme Report","content":"Acme builds robots.","progress_id":"rep-int-1"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	var saved research.Report
	decodeBody(t, resp, &saved)
	if saved.ID == "" || saved.Title != "Acme Report" {
		t.Fatalf("report = %+v", saved)
	}
	if !strings.Contains(saved.Content, "<h2>") {
		t.Errorf("report body = %q", saved.Content)
	}

	get, err := http.Get(b.server.URL + "/api/reports/" + saved.ID)
	if err != nil {
		t.Fatalf("GET report: %v", err)
	}
	defer get.Body.Close()
	if get.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", get.StatusCode)
	}
	var loaded research.Report
	decodeBody(t, get, &loaded)
	if loaded.ID != saved.ID || loaded.Summary != saved.Summary {
		t.Errorf("loaded = %+v, saved = %+v", loaded, saved)
	}

	list, err := http.Get(b.server.URL + "/api/reports?limit=5")
	if err != nil {
		t.Fatalf("GET reports: %v", err)
	}
	defer list.Body.Close()
	var page struct {
		Reports []research.Report `json:"reports"`
		Count   int               `json:"count"`
	}
	decodeBody(t, list, &page)
	if page.Count == 0 {
		t.Error("report list is empty after save")
	}
}
