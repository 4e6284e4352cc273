package httpapi

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"todoTracker/internal/auth"
	"todoTracker/internal/config"
	"todoTracker/internal/export"
	"todoTracker/internal/testutil"
	"todoTracker/models"
	"todoTracker/repository"
)

type testEnv struct {
	t   *testing.T
	e   *echo.Echo
	srv *Server
	now time.Time
}

func testConfig() *config.Config {
	return &config.Config{
		Env: "test",
		HTTP: config.HTTPConfig{
			AllowedOrigins: []string{"http://localhost:3000"},
		},
		Auth: config.AuthConfig{
			SessionSecret: "test-secret",
			SessionTTL:    time.Hour,
			CookieName:    "session",
			CookiePath:    "/api",
		},
	}
}

func newTestEnv(t *testing.T, mutate ...func(*config.Config)) *testEnv {
	t.Helper()
	cfg := testConfig()
	for _, m := range mutate {
		m(cfg)
	}
	d := testutil.OpenInMemoryDB(t, t.Name())
	sessions, err := auth.NewSessionStore(cfg.Auth.SessionSecret, cfg.Auth.SessionTTL)
	if err != nil {
		t.Fatalf("session store: %v", err)
	}
	t.Cleanup(sessions.Close)

	tasks := repository.NewTaskRepository(d)
	env := &testEnv{t: t, now: time.Date(2025, 3, 1, 10, 0, 0, 0, time.Local)}
	env.srv = &Server{
		Config:      cfg,
		Credentials: auth.NewCredentials(repository.NewUserRepository(d)),
		Sessions:    sessions,
		Tasks:       tasks,
		Exporter:    export.NewExporter(tasks),
		DB:          d,
		Now:         func() time.Time { return env.now },
	}
	env.e = env.srv.Handler()
	return env
}

func (env *testEnv) do(method, path string, body any, cookie *http.Cookie) *httptest.ResponseRecorder {
	env.t.Helper()
	req := testutil.JSONRequest(env.t, method, path, body)
	if cookie != nil {
		req.AddCookie(cookie)
	}
	rec := httptest.NewRecorder()
	env.e.ServeHTTP(rec, req)
	return rec
}

// login registers username and returns the session cookie of a fresh login.
func (env *testEnv) login(username, password string) *http.Cookie {
	env.t.Helper()
	creds := map[string]string{"username": username, "password": password}
	if rec := env.do(http.MethodPost, "/api/register", creds, nil); rec.Code != http.StatusCreated {
		env.t.Fatalf("register %s: %d %s", username, rec.Code, rec.Body)
	}
	rec := env.do(http.MethodPost, "/api/login", creds, nil)
	if rec.Code != http.StatusOK {
		env.t.Fatalf("login %s: %d %s", username, rec.Code, rec.Body)
	}
	ck := testutil.Cookie(rec, "session")
	if ck == nil {
		env.t.Fatalf("login %s: no session cookie", username)
	}
	return ck
}

func (env *testEnv) items(cookie *http.Cookie) []models.Task {
	env.t.Helper()
	rec := env.do(http.MethodGet, "/api/items", nil, cookie)
	if rec.Code != http.StatusOK {
		env.t.Fatalf("items: %d %s", rec.Code, rec.Body)
	}
	var out []models.Task
	testutil.DecodeJSON(env.t, rec, &out)
	return out
}

func (env *testEnv) add(cookie *http.Cookie, body map[string]any) int64 {
	env.t.Helper()
	rec := env.do(http.MethodPost, "/api/add", body, cookie)
	if rec.Code != http.StatusCreated {
		env.t.Fatalf("add: %d %s", rec.Code, rec.Body)
	}
	var out struct {
		Message string `json:"message"`
		ID      int64  `json:"id"`
	}
	testutil.DecodeJSON(env.t, rec, &out)
	return out.ID
}

func errorOf(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var out struct {
		Error string `json:"error"`
	}
	testutil.DecodeJSON(t, rec, &out)
	return out.Error
}

func TestEndToEnd_RegisterLoginAddMark(t *testing.T) {
	env := newTestEnv(t)
	creds := map[string]string{"username": "alice", "password": "pw1"}

	rec := env.do(http.MethodPost, "/api/register", creds, nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("register: %d %s", rec.Code, rec.Body)
	}

	rec = env.do(http.MethodPost, "/api/login", creds, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("login: %d %s", rec.Code, rec.Body)
	}
	var login struct {
		Message string `json:"message"`
		UserID  int64  `json:"user_id"`
	}
	testutil.DecodeJSON(t, rec, &login)
	if login.UserID == 0 || login.Message == "" {
		t.Fatalf("unexpected login body: %s", rec.Body)
	}
	cookie := testutil.Cookie(rec, "session")
	if cookie == nil {
		t.Fatalf("no session cookie")
	}

	id := env.add(cookie, map[string]any{"todo": "buy milk"})

	list := env.items(cookie)
	if len(list) != 1 || list[0].ID != id || list[0].Description != "buy milk" ||
		list[0].Status != models.TaskStatusPending || list[0].Label != "personal" {
		t.Fatalf("unexpected list: %+v", list)
	}
	if list[0].DueDate != "2025-03-01 10:00:00" {
		t.Fatalf("due date should default to now, got %q", list[0].DueDate)
	}

	rec = env.do(http.MethodPut, "/api/mark", map[string]any{"id": id}, cookie)
	if rec.Code != http.StatusOK {
		t.Fatalf("mark: %d %s", rec.Code, rec.Body)
	}
	if list = env.items(cookie); list[0].Status != models.TaskStatusDone {
		t.Fatalf("expected done, got %+v", list)
	}
}

func TestCookieAttributes(t *testing.T) {
	env := newTestEnv(t)
	ck := env.login("alice", "pw1")
	if !ck.HttpOnly || ck.SameSite != http.SameSiteLaxMode || ck.Path != "/api" || ck.Value == "" {
		t.Fatalf("unexpected cookie: %+v", ck)
	}
	if ck.Secure {
		t.Fatalf("secure flag should follow config (off)")
	}
}

func TestProtectedEndpointsRequireSession(t *testing.T) {
	env := newTestEnv(t)
	bogus := &http.Cookie{Name: "session", Value: "bogus"}
	routes := []struct{ method, path string }{
		{http.MethodGet, "/api/items"},
		{http.MethodGet, "/api/upcoming-tasks"},
		{http.MethodPost, "/api/add"},
		{http.MethodPut, "/api/update"},
		{http.MethodPut, "/api/mark"},
		{http.MethodDelete, "/api/delete"},
		{http.MethodGet, "/api/export"},
	}
	for _, r := range routes {
		for _, ck := range []*http.Cookie{nil, bogus} {
			rec := env.do(r.method, r.path, map[string]any{"id": 1, "todo": "x"}, ck)
			if rec.Code != http.StatusUnauthorized {
				t.Errorf("%s %s (cookie=%v): expected 401, got %d", r.method, r.path, ck != nil, rec.Code)
				continue
			}
			if msg := errorOf(t, rec); msg != "Unauthorized" {
				t.Errorf("%s %s: unexpected error body %q", r.method, r.path, msg)
			}
		}
	}
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(http.MethodGet, "/api/health", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("health: %d %s", rec.Code, rec.Body)
	}
	var body map[string]string
	testutil.DecodeJSON(t, rec, &body)
	if body["status"] != "available" || body["environment"] != "test" || body["version"] != version {
		t.Fatalf("unexpected health body: %v", body)
	}

	env.srv.DB = failingPinger{}
	env.e = env.srv.Handler()
	rec = env.do(http.MethodGet, "/api/health", nil, nil)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 on db failure, got %d", rec.Code)
	}
}

type failingPinger struct{}

func (failingPinger) PingContext(context.Context) error { return errors.New("db down") }

func TestUnknownRouteUsesErrorEnvelope(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(http.MethodGet, "/api/nope", nil, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	if msg := errorOf(t, rec); msg == "" {
		t.Fatalf("expected error envelope, got %s", rec.Body)
	}
}

func TestCORS_Preflight(t *testing.T) {
	env := newTestEnv(t)

	preflight := func(origin string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodOptions, "/api/add", nil)
		req.Header.Set(echo.HeaderOrigin, origin)
		req.Header.Set(echo.HeaderAccessControlRequestMethod, http.MethodPost)
		rec := httptest.NewRecorder()
		env.e.ServeHTTP(rec, req)
		return rec
	}

	rec := preflight("http://localhost:3000")
	if rec.Code < 200 || rec.Code > 299 || rec.Body.Len() != 0 {
		t.Fatalf("preflight: %d body=%q", rec.Code, rec.Body)
	}
	h := rec.Header()
	if h.Get(echo.HeaderAccessControlAllowOrigin) != "http://localhost:3000" || h.Get(echo.HeaderAccessControlAllowCredentials) != "true" {
		t.Fatalf("missing CORS headers: %v", h)
	}
	if !strings.Contains(h.Get(echo.HeaderAccessControlAllowMethods), http.MethodPut) {
		t.Fatalf("allowed methods missing PUT: %v", h)
	}

	rec = preflight("http://evil.example")
	if got := rec.Header().Get(echo.HeaderAccessControlAllowOrigin); got != "" {
		t.Fatalf("foreign origin must not be allowed, got %q", got)
	}
}

func TestRateLimit(t *testing.T) {
	env := newTestEnv(t, func(c *config.Config) {
		c.RateLimit = config.RateLimitConfig{Enabled: true, RPS: 1, Burst: 2}
	})
	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		codes = append(codes, env.do(http.MethodGet, "/api/health", nil, nil).Code)
	}
	if codes[0] != http.StatusOK || codes[1] != http.StatusOK || codes[2] != http.StatusTooManyRequests {
		t.Fatalf("unexpected status sequence: %v", codes)
	}
}
