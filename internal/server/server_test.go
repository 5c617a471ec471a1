package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"

	"github.com/TobiSchelling/SocialAgent/internal/content"
	"github.com/TobiSchelling/SocialAgent/internal/crypto"
	"github.com/TobiSchelling/SocialAgent/internal/database"
	"github.com/TobiSchelling/SocialAgent/internal/metrics"
	"github.com/TobiSchelling/SocialAgent/internal/oauth"
	"github.com/TobiSchelling/SocialAgent/internal/pipeline"
	"github.com/TobiSchelling/SocialAgent/internal/publish"
	"github.com/TobiSchelling/SocialAgent/internal/service"
	"github.com/TobiSchelling/SocialAgent/internal/trends"
)

type failingSource struct{}

func (failingSource) Name() string { return "broken" }
func (failingSource) Fetch(context.Context, trends.Query) ([]content.TrendRecord, error) {
	return nil, fmt.Errorf("%w: connection refused", content.ErrSourceUnavailable)
}

func openTestDB(t *testing.T) *database.DB {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func seedSource() trends.Source {
	return trends.NewStaticSource([]content.TrendRecord{
		{ID: 1, Source: content.PlatformLinkedIn, Topic: "#AI", Text: "AI agents are revolutionizing content creation workflows", Score: 0.85},
		{ID: 2, Source: content.PlatformX, Topic: "#CreatorEconomy", Text: "The creator economy is booming with new AI-powered tools", Score: 0.92},
		{ID: 3, Source: content.PlatformInstagram, Topic: "#SocialMedia", Text: "Social media strategies that actually work in 2024", Score: 0.78},
	})
}

func newTestServer(t *testing.T, src trends.Source) (*Server, *database.DB) {
	t.Helper()
	db := openTestDB(t)
	cipher, err := crypto.NewTokenCipher([]byte("test-encryption-secret"), "oauth-token")
	if err != nil {
		t.Fatalf("cipher: %v", err)
	}
	auth, err := oauth.NewManager(db, oauth.Options{
		RedirectBaseURL: "http://localhost:8000",
		StateSecret:     []byte("test-state-secret"),
		Cipher:          cipher,
	})
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	m := metrics.New("test")
	svc := service.New(db, service.Options{
		Pipeline:  pipeline.New(pipeline.Options{Source: src}),
		Refresh:   src,
		Publisher: publish.NewRegistry(auth, "demo-user"),
		Metrics:   m,
	})
	srv, err := New(db, svc, Options{OAuth: auth, Metrics: m, UserID: "demo-user"})
	if err != nil {
		t.Fatalf("failed to create server: %v", err)
	}
	return srv, db
}

func do(t *testing.T, srv *Server, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encoding body: %v", err)
		}
	}
	req := httptest.NewRequest(method, target, &buf)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decoding %q: %v", rec.Body.String(), err)
	}
}

type generateResponse struct {
	Message string         `json:"message"`
	RunID   int64          `json:"run_id"`
	Ideas   []content.Idea `json:"ideas"`
	Count   int            `json:"count"`
}

func generate(t *testing.T, srv *Server) generateResponse {
	t.Helper()
	rec := do(t, srv, "POST", "/api/ideas/generate", map[string]any{"platforms": []string{"x", "linkedin"}})
	if rec.Code != http.StatusOK {
		t.Fatalf("generate: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var res generateResponse
	decode(t, rec, &res)
	return res
}

func TestHealthRoute(t *testing.T) {
	srv, _ := newTestServer(t, seedSource())
	rec := do(t, srv, "GET", "/health", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
	if strings.TrimSpace(rec.Body.String()) != `{"status":"healthy"}` {
		t.Errorf("unexpected body %q", rec.Body.String())
	}
}

func TestCORS(t *testing.T) {
	srv, _ := newTestServer(t, seedSource())

	req := httptest.NewRequest("GET", "/health", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:5173" {
		t.Errorf("expected allowed origin header, got %q", got)
	}

	req = httptest.NewRequest("GET", "/health", nil)
	req.Header.Set("Origin", "http://evil.example.com")
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("expected no CORS header for unknown origin, got %q", got)
	}
}

func TestGenerateApproveScheduleFlow(t *testing.T) {
	srv, db := newTestServer(t, seedSource())

	res := generate(t, srv)
	if res.Message != "Ideas generated successfully" || res.Count != 3 || res.RunID == 0 {
		t.Fatalf("unexpected response %+v", res)
	}
	id := res.Ideas[0].ID

	// Scheduling a draft is rejected
	rec := do(t, srv, "POST", "/api/schedule", map[string]any{"idea_id": id, "platform": "x"})
	if rec.Code != http.StatusBadRequest || !strings.Contains(rec.Body.String(), "Idea must be approved before scheduling") {
		t.Fatalf("expected 400 not approved, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = do(t, srv, "POST", fmt.Sprintf("/api/ideas/%d/approve", id), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("approve: expected 200, got %d", rec.Code)
	}
	var approved struct {
		Message string              `json:"message"`
		Idea    database.StoredIdea `json:"idea"`
	}
	decode(t, rec, &approved)
	if approved.Message != "Idea approved successfully" || approved.Idea.Status != content.IdeaApproved {
		t.Errorf("unexpected approve response %+v", approved)
	}

	rec = do(t, srv, "POST", "/api/schedule", map[string]any{"idea_id": id, "platform": "x", "slot": "09:00"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("schedule: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var scheduled struct {
		Entry database.ScheduleEntry `json:"scheduled_post"`
	}
	decode(t, rec, &scheduled)
	if scheduled.Entry.Slot != "09:00" || scheduled.Entry.Status != database.ScheduleScheduled {
		t.Errorf("unexpected entry %+v", scheduled.Entry)
	}

	rec = do(t, srv, "GET", "/api/schedule?status=scheduled", nil)
	var list struct {
		Count int `json:"count"`
	}
	decode(t, rec, &list)
	if list.Count != 1 {
		t.Errorf("expected 1 scheduled entry, got %d", list.Count)
	}

	idea, _ := db.GetIdea(id)
	if idea.Status != content.IdeaScheduled {
		t.Errorf("expected idea scheduled, got %s", idea.Status)
	}
}

func TestGenerateFailureDescriptor(t *testing.T) {
	srv, db := newTestServer(t, failingSource{})

	rec := do(t, srv, "POST", "/api/ideas/generate", nil)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
	var body map[string]json.RawMessage
	decode(t, rec, &body)
	for key, want := range map[string]string{"ideas": "[]", "repurposed_content": "{}", "scheduled_posts": "[]", "trending_context": "[]"} {
		if string(body[key]) != want {
			t.Errorf("%s: expected %s, got %s", key, want, body[key])
		}
	}
	if _, ok := body["error"]; !ok {
		t.Error("expected error field")
	}
	if stats, _ := db.GetStats(); stats.Runs != 0 {
		t.Errorf("expected no stored run, got %d", stats.Runs)
	}
}

func TestGenerateRejectsBadBody(t *testing.T) {
	srv, _ := newTestServer(t, seedSource())
	req := httptest.NewRequest("POST", "/api/ideas/generate", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

func TestIdeaRoutes(t *testing.T) {
	srv, _ := newTestServer(t, seedSource())
	res := generate(t, srv)

	rec := do(t, srv, "GET", "/api/ideas?status=draft", nil)
	var list struct {
		Ideas []database.StoredIdea `json:"ideas"`
	}
	decode(t, rec, &list)
	if len(list.Ideas) != 3 {
		t.Errorf("expected 3 draft ideas, got %d", len(list.Ideas))
	}

	rec = do(t, srv, "GET", fmt.Sprintf("/api/ideas/%d", res.Ideas[0].ID), nil)
	var detail struct {
		Idea    database.StoredIdea      `json:"idea"`
		Content []database.StoredContent `json:"content"`
	}
	decode(t, rec, &detail)
	if detail.Idea.ID != res.Ideas[0].ID || len(detail.Content) != 2 {
		t.Errorf("unexpected detail: idea %d, %d content items", detail.Idea.ID, len(detail.Content))
	}

	tests := []struct {
		method, path string
	}{
		{"GET", "/api/ideas/999"},
		{"POST", "/api/ideas/999/approve"},
	}
	for _, tt := range tests {
		rec := do(t, srv, tt.method, tt.path, nil)
		if rec.Code != http.StatusNotFound || !strings.Contains(rec.Body.String(), "Idea not found") {
			t.Errorf("%s %s: expected 404 Idea not found, got %d %s", tt.method, tt.path, rec.Code, rec.Body.String())
		}
	}
}

func TestTrendRoutes(t *testing.T) {
	srv, _ := newTestServer(t, seedSource())

	rec := do(t, srv, "POST", "/api/trends/refresh", nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "Trends refreshed successfully") {
		t.Fatalf("refresh: got %d %s", rec.Code, rec.Body.String())
	}

	rec = do(t, srv, "GET", "/api/trends", nil)
	var list struct {
		Trends []content.TrendRecord `json:"trends"`
		Count  int                   `json:"count"`
	}
	decode(t, rec, &list)
	if list.Count != 3 || list.Trends[0].Topic != "#CreatorEconomy" {
		t.Errorf("unexpected trends %+v", list)
	}
}

func TestBrandRoutes(t *testing.T) {
	srv, _ := newTestServer(t, seedSource())

	rec := do(t, srv, "GET", "/api/brand", nil)
	var brand database.BrandProfile
	decode(t, rec, &brand)
	if brand.Persona != service.DefaultBrand().Persona {
		t.Errorf("expected default persona, got %q", brand.Persona)
	}

	rec = do(t, srv, "PUT", "/api/brand", map[string]any{"persona": "Data coach", "brand_rules": "Cite numbers"})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = do(t, srv, "PUT", "/api/brand", map[string]any{"persona": ""})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for empty persona, got %d", rec.Code)
	}

	rec = do(t, srv, "GET", "/api/brand", nil)
	decode(t, rec, &brand)
	if brand.Persona != "Data coach" {
		t.Errorf("expected saved persona, got %q", brand.Persona)
	}
}

func TestAuthRoutes(t *testing.T) {
	srv, _ := newTestServer(t, seedSource())

	rec := do(t, srv, "GET", "/auth/linkedin/login", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("login: expected 200, got %d", rec.Code)
	}
	var login oauth.AuthRequest
	decode(t, rec, &login)
	if !strings.Contains(login.URL, "linkedin.com") || login.State == "" {
		t.Fatalf("unexpected login response %+v", login)
	}

	rec = do(t, srv, "GET", "/auth/tiktok/login", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 for unsupported platform, got %d", rec.Code)
	}

	rec = do(t, srv, "GET", "/auth/linkedin/callback?state=bogus&code=abc", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for bad state, got %d", rec.Code)
	}

	q := url.Values{"state": {login.State}, "code": {"abc"}}
	rec = do(t, srv, "GET", "/auth/linkedin/callback?"+q.Encode(), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("callback: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var cb struct {
		Message   string `json:"message"`
		AccountID int64  `json:"account_id"`
	}
	decode(t, rec, &cb)
	if cb.Message != "LinkedIn authentication successful" || cb.AccountID == 0 {
		t.Errorf("unexpected callback response %+v", cb)
	}

	rec = do(t, srv, "GET", "/api/accounts", nil)
	var accounts struct {
		Accounts []accountView `json:"accounts"`
	}
	decode(t, rec, &accounts)
	if len(accounts.Accounts) != 1 || accounts.Accounts[0].Status != "connected" {
		t.Fatalf("unexpected accounts %+v", accounts)
	}

	rec = do(t, srv, "DELETE", fmt.Sprintf("/api/accounts/%d", cb.AccountID), nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "LinkedIn account disconnected successfully") {
		t.Errorf("delete: got %d %s", rec.Code, rec.Body.String())
	}
	rec = do(t, srv, "DELETE", fmt.Sprintf("/api/accounts/%d", cb.AccountID), nil)
	if rec.Code != http.StatusNotFound || !strings.Contains(rec.Body.String(), "Account not found") {
		t.Errorf("second delete: got %d %s", rec.Code, rec.Body.String())
	}
}

func TestAuthRoutesWithoutOAuth(t *testing.T) {
	db := openTestDB(t)
	srv, err := New(db, service.New(db, service.Options{}), Options{})
	if err != nil {
		t.Fatalf("failed to create server: %v", err)
	}
	rec := do(t, srv, "GET", "/api/accounts", nil)
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", rec.Code)
	}
	rec = do(t, srv, "GET", "/metrics", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 without metrics, got %d", rec.Code)
	}
	rec = do(t, srv, "POST", "/api/publisher/run", nil)
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503 without publisher, got %d", rec.Code)
	}
	rec = do(t, srv, "POST", "/api/analytics/refresh", nil)
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503 for analytics without publisher, got %d", rec.Code)
	}
}

func TestPublisherRoute(t *testing.T) {
	srv, _ := newTestServer(t, seedSource())
	rec := do(t, srv, "POST", "/api/publisher/run", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var res service.PublishResult
	decode(t, rec, &res)
	if res.Due != 0 || res.Published != 0 {
		t.Errorf("expected nothing due, got %+v", res)
	}
}

func TestAnalyticsRoutes(t *testing.T) {
	srv, db := newTestServer(t, seedSource())
	gen := generate(t, srv)

	rec := do(t, srv, "GET", "/auth/linkedin/login", nil)
	var login oauth.AuthRequest
	decode(t, rec, &login)
	q := url.Values{"state": {login.State}, "code": {"abc"}}
	if rec = do(t, srv, "GET", "/auth/linkedin/callback?"+q.Encode(), nil); rec.Code != http.StatusOK {
		t.Fatalf("callback: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	connected, err := db.InsertPost(gen.Ideas[0].ID, content.PlatformLinkedIn, "urn:li:share:1", "")
	if err != nil {
		t.Fatalf("InsertPost: %v", err)
	}
	if _, err := db.InsertPost(gen.Ideas[0].ID, content.PlatformX, "x-1", ""); err != nil {
		t.Fatalf("InsertPost: %v", err)
	}

	rec = do(t, srv, "POST", "/api/analytics/refresh", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("refresh: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var res service.AnalyticsResult
	decode(t, rec, &res)
	// x has no connected account, so only the linkedin post is read.
	if res.Posts != 2 || res.Snapshots != 1 || res.Failed != 1 {
		t.Fatalf("unexpected refresh result %+v", res)
	}
	if res.ByPlatform[content.PlatformLinkedIn].Clicks == 0 {
		t.Errorf("expected linkedin clicks, got %+v", res.ByPlatform)
	}

	rec = do(t, srv, "GET", "/api/analytics", nil)
	var list struct {
		Posts []database.Post `json:"posts"`
		Count int             `json:"count"`
	}
	decode(t, rec, &list)
	if list.Count != 2 || !strings.Contains(string(list.Posts[1].Metrics), `"impressions"`) {
		t.Errorf("expected linkedin post with metrics, got %+v", list)
	}

	rec = do(t, srv, "GET", fmt.Sprintf("/api/analytics/posts/%d", connected), nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"count":1`) {
		t.Errorf("history: got %d %s", rec.Code, rec.Body.String())
	}
	rec = do(t, srv, "GET", "/api/analytics/posts/9999", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 for unknown post, got %d", rec.Code)
	}

	rec = do(t, srv, "GET", "/metrics", nil)
	if !strings.Contains(rec.Body.String(), `socialagent_metrics_snapshots_total{platform="linkedin",result="success"} 1`) {
		t.Error("expected snapshot counter in metrics output")
	}
}

func TestMetricsRoute(t *testing.T) {
	srv, _ := newTestServer(t, seedSource())
	do(t, srv, "GET", "/health", nil)
	generate(t, srv)

	rec := do(t, srv, "GET", "/metrics", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{
		`socialagent_http_requests_total{method="GET",route="/health",status="200"} 1`,
		`socialagent_ideas_generated_total 3`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("expected %q in metrics output", want)
		}
	}
}

func TestIndexRoute(t *testing.T) {
	srv, _ := newTestServer(t, seedSource())
	generate(t, srv)

	rec := do(t, srv, "GET", "/", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "Content Dashboard") {
		t.Error("expected 'Content Dashboard' in response body")
	}
	if !strings.Contains(body, `href="/ideas/1"`) {
		t.Error("expected link to idea 1")
	}
}

func TestIdeaPage(t *testing.T) {
	srv, _ := newTestServer(t, seedSource())
	res := generate(t, srv)

	rec := do(t, srv, "GET", fmt.Sprintf("/ideas/%d", res.Ideas[0].ID), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "Platform Versions") || !strings.Contains(body, "<p>") {
		t.Error("expected rendered platform versions")
	}

	rec = do(t, srv, "GET", "/ideas/999", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestStaticRoute(t *testing.T) {
	srv, _ := newTestServer(t, seedSource())
	rec := do(t, srv, "GET", "/static/style.css", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Header().Get("Content-Type"), "text/css") {
		t.Errorf("expected text/css, got %q", rec.Header().Get("Content-Type"))
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{content.ErrInvalidRequest, http.StatusBadRequest},
		{fmt.Errorf("wrapped: %w", service.ErrNotApproved), http.StatusBadRequest},
		{service.ErrIdeaNotFound, http.StatusNotFound},
		{content.ErrSourceUnavailable, http.StatusServiceUnavailable},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := statusFor(tt.err); got != tt.want {
			t.Errorf("statusFor(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}
