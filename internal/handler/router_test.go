package handler

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/netip"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/hitoshi/intelitalk/internal/auth"
	"github.com/hitoshi/intelitalk/internal/chat"
	"github.com/hitoshi/intelitalk/internal/form"
	"github.com/hitoshi/intelitalk/internal/metrics"
	"github.com/hitoshi/intelitalk/internal/middleware"
	"github.com/hitoshi/intelitalk/internal/model"
	"github.com/hitoshi/intelitalk/internal/session"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"
)

const testCSRFToken = "csrf-test-token"

type routerFixture struct {
	router   http.Handler
	store    *session.CookieStore
	registry *chat.Registry
	logs     *bytes.Buffer
}

func newRouterFixture(t *testing.T, mutate func(*RouterDeps)) routerFixture {
	t.Helper()
	views, md := newTestViews(t)
	var buf bytes.Buffer
	logger := newTestLogger(&buf)

	store := session.NewCookieStore(testCookieConfig())
	registry := chat.NewRegistry(chat.RegistryConfig{IdleTTL: time.Hour}, nil, logger)
	t.Cleanup(registry.Stop)

	limiter := middleware.NewRateLimiter(middleware.RateLimiterConfig{
		LoginRate:       rate.Limit(100),
		LoginBurst:      100,
		ChatRate:        rate.Limit(100),
		ChatBurst:       100,
		CleanupInterval: time.Hour,
	})
	t.Cleanup(limiter.Stop)

	deps := &RouterDeps{
		Logger:      logger,
		Views:       views,
		Markdown:    md,
		Flasher:     session.NewFlasher(testCookieConfig()),
		Store:       store,
		RateLimiter: limiter,
		AuthService: &mockAuthService{},
		ChatAPI:     &mockChatAPI{},
		Registry:    registry,
		UserAPI:     &mockUserAPI{},
		Validator:   form.NewValidator(),
	}
	if mutate != nil {
		mutate(deps)
	}

	return routerFixture{router: NewRouter(deps), store: store, registry: registry, logs: &buf}
}

// serve はsessを保存したCookieを付けてリクエストを処理する。
func (f routerFixture) serve(t *testing.T, req *http.Request, sess *model.Session) *httptest.ResponseRecorder {
	t.Helper()
	if sess != nil {
		w := httptest.NewRecorder()
		if err := f.store.Write(w, req, *sess); err != nil {
			t.Fatalf("store.Write: %v", err)
		}
		for _, c := range w.Result().Cookies() {
			req.AddCookie(c)
		}
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

// csrfPost はCSRFトークンを付けたフォームPOSTを組み立てる。
func csrfPost(target string, values url.Values) *http.Request {
	if values == nil {
		values = url.Values{}
	}
	values.Set(middleware.CSRFFieldName, testCSRFToken)
	req := postForm(target, values)
	req.AddCookie(&http.Cookie{Name: "csrf_token", Value: testCSRFToken})
	return req
}

func sessionPtr(s model.Session) *model.Session { return &s }

// --- ガード ---

func TestRouter_Guards(t *testing.T) {
	f := newRouterFixture(t, nil)

	tests := []struct {
		name     string
		path     string
		sess     *model.Session
		wantCode int
		wantLoc  string
	}{
		{"未認証で管理画面", "/admin", nil, http.StatusSeeOther, "/login"},
		{"未認証で学生画面", "/student", nil, http.StatusSeeOther, "/login"},
		{"学生が管理画面", "/admin", sessionPtr(studentSession()), http.StatusSeeOther, "/student"},
		{"管理者が学生画面", "/student", sessionPtr(adminSession()), http.StatusSeeOther, "/admin"},
		{"学生がユーザー詳細", "/user/s1", sessionPtr(studentSession()), http.StatusSeeOther, "/student"},
		{"学生が登録画面", "/signup", sessionPtr(studentSession()), http.StatusSeeOther, "/student"},
		{"認証済みでログイン画面", "/login", sessionPtr(adminSession()), http.StatusSeeOther, "/admin"},
		{"未認証でログアウト", "/logout", nil, http.StatusSeeOther, "/login"},
		{"認証済みでログアウト", "/logout", sessionPtr(studentSession()), http.StatusSeeOther, "/student"},
		{"未認証でログイン画面", "/login", nil, http.StatusOK, ""},
		{"管理者でダッシュボード", "/admin", sessionPtr(adminSession()), http.StatusOK, ""},
		{"管理者で登録画面", "/signupadmin", sessionPtr(adminSession()), http.StatusOK, ""},
		{"ゲストチャット", "/chat", nil, http.StatusOK, ""},
		{"学生チャット", "/student", sessionPtr(studentSession()), http.StatusOK, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.serve(t, httptest.NewRequest(http.MethodGet, tt.path, nil), tt.sess)

			if rec.Code != tt.wantCode {
				t.Fatalf("GET %s status = %d, want %d", tt.path, rec.Code, tt.wantCode)
			}
			if tt.wantLoc != "" {
				if got := rec.Header().Get("Location"); got != tt.wantLoc {
					t.Errorf("Location = %q, want %q", got, tt.wantLoc)
				}
			}
		})
	}
}

func TestRouter_GuardRedirectsAreRecorded(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector := metrics.NewCollector(reg)
	f := newRouterFixture(t, func(d *RouterDeps) {
		d.Metrics = collector
		d.Gatherer = reg
	})

	f.serve(t, httptest.NewRequest(http.MethodGet, "/admin", nil), nil)

	rec := f.serve(t, httptest.NewRequest(http.MethodGet, "/metrics", nil), nil)
	assertStatus(t, rec, http.StatusOK)
	assertBodyContains(t, rec, "intelitalk_guard_redirects_total", `policy="admin_only"`)
}

// --- ページ ---

func TestRouter_HomeAndNotFound(t *testing.T) {
	f := newRouterFixture(t, nil)

	rec := f.serve(t, httptest.NewRequest(http.MethodGet, "/", nil), nil)
	assertStatus(t, rec, http.StatusOK)
	assertBodyContains(t, rec, "Welcome to")
	if rec.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("security headers should be applied")
	}

	for _, path := range []string{"/nope", "/user/s1/extra/deep"} {
		rec := f.serve(t, httptest.NewRequest(http.MethodGet, path, nil), sessionPtr(adminSession()))
		assertStatus(t, rec, http.StatusNotFound)
		assertBodyContains(t, rec, "404 route not found!!!")
	}
}

func TestRouter_StaticAssets(t *testing.T) {
	f := newRouterFixture(t, nil)

	rec := f.serve(t, httptest.NewRequest(http.MethodGet, "/static/chat.js", nil), nil)
	assertStatus(t, rec, http.StatusOK)
}

func TestRouter_Health(t *testing.T) {
	t.Run("正常", func(t *testing.T) {
		f := newRouterFixture(t, func(d *RouterDeps) {
			d.HealthCheck = func(context.Context) error { return nil }
		})
		rec := f.serve(t, httptest.NewRequest(http.MethodGet, "/health", nil), nil)
		assertStatus(t, rec, http.StatusOK)
		assertBodyContains(t, rec, `"status":"ok"`)
	})

	t.Run("バックエンド障害", func(t *testing.T) {
		f := newRouterFixture(t, func(d *RouterDeps) {
			d.HealthCheck = func(context.Context) error { return errors.New("redis: connection refused") }
		})
		rec := f.serve(t, httptest.NewRequest(http.MethodGet, "/health", nil), nil)
		assertStatus(t, rec, http.StatusServiceUnavailable)
		if !strings.Contains(f.logs.String(), "health check failed") {
			t.Errorf("failure should be logged, got %s", f.logs.String())
		}
	})
}

func TestRouter_MetricsDisabledWithoutGatherer(t *testing.T) {
	f := newRouterFixture(t, nil)

	rec := f.serve(t, httptest.NewRequest(http.MethodGet, "/metrics", nil), nil)
	assertStatus(t, rec, http.StatusNotFound)
}

// --- CSRF ---

func TestRouter_PostWithoutCSRFTokenIsRejected(t *testing.T) {
	f := newRouterFixture(t, nil)

	req := postForm("/login", url.Values{"email": {"a@b.co"}, "password": {"x"}})
	rec := f.serve(t, req, nil)

	assertStatus(t, rec, http.StatusForbidden)
}

// --- ログインからログアウトまで ---

func TestRouter_LoginFlow(t *testing.T) {
	sess := studentSession()
	f := newRouterFixture(t, func(d *RouterDeps) {
		d.AuthService = &mockAuthService{
			loginFn: func(context.Context, string, string) (*auth.LoginResult, error) {
				return &auth.LoginResult{Session: sess, RedirectTo: "/student", Notice: "Student Dashboard"}, nil
			},
		}
	})

	// 1. ログイン
	rec := f.serve(t, csrfPost("/login", url.Values{"email": {"rahim@example.com"}, "password": {"pw"}}), nil)
	assertRedirect(t, rec, "/student")

	// 2. 受け取ったCookieで学生画面を開く（ログイン時の通知が表示される）
	req := httptest.NewRequest(http.MethodGet, "/student", nil)
	for _, c := range rec.Result().Cookies() {
		req.AddCookie(c)
	}
	rec = f.serve(t, req, nil)
	assertStatus(t, rec, http.StatusOK)
	assertBodyContains(t, rec, "Student Chat", "Student Dashboard", "Rahim")

	// 3. ログアウト
	rec = f.serve(t, csrfPost("/logout", nil), sessionPtr(sess))
	assertRedirect(t, rec, "/login")

	var cleared bool
	for _, c := range rec.Result().Cookies() {
		if c.Name == "intelitalk_session" && c.MaxAge < 0 {
			cleared = true
		}
	}
	if !cleared {
		t.Error("logout must expire the session cookie")
	}
}

func TestRouter_GuestChatSubmit(t *testing.T) {
	f := newRouterFixture(t, nil)

	rec := f.serve(t, httptest.NewRequest(http.MethodGet, "/chat", nil), nil)
	assertStatus(t, rec, http.StatusOK)

	m := guestActionPattern.FindStringSubmatch(rec.Body.String())
	if m == nil {
		t.Fatal("guest chat form not found")
	}

	req := csrfPost("/chat/"+m[1], url.Values{"question": {"Where is the cafeteria?"}})
	req.Header.Set("Accept", "application/json")
	req.AddCookie(guestCookieFrom(t, rec))
	rec = f.serve(t, req, nil)

	assertStatus(t, rec, http.StatusOK)
	assertBodyContains(t, rec, `"sender":"assistant"`, "guest answer")
}

func TestRouter_GuestChatRemountKeepsOnePanelPerVisitor(t *testing.T) {
	f := newRouterFixture(t, nil)

	first := f.serve(t, httptest.NewRequest(http.MethodGet, "/chat", nil), nil)
	cookie := guestCookieFrom(t, first)

	for i := 0; i < 500; i++ {
		req := httptest.NewRequest(http.MethodGet, "/chat", nil)
		req.AddCookie(cookie)
		assertStatus(t, f.serve(t, req, nil), http.StatusOK)
	}

	if f.registry.Len() != 1 {
		t.Errorf("registry.Len() = %d, want 1", f.registry.Len())
	}
}

func TestRouter_AnonymousGuestChatIsCapped(t *testing.T) {
	var registry *chat.Registry
	f := newRouterFixture(t, func(d *RouterDeps) {
		registry = chat.NewRegistry(chat.RegistryConfig{IdleTTL: time.Hour, MaxPanels: 20}, nil, d.Logger)
		d.Registry = registry
	})
	t.Cleanup(registry.Stop)

	// Cookieを返さないクライアントは毎回新しい訪問者として扱われる
	for i := 0; i < 1000; i++ {
		assertStatus(t, f.serve(t, httptest.NewRequest(http.MethodGet, "/chat", nil), nil), http.StatusOK)
	}

	if registry.Len() != 20 {
		t.Errorf("registry.Len() = %d, want 20", registry.Len())
	}
}

func TestRouter_LoginRateLimitIgnoresSpoofedForwardingHeaders(t *testing.T) {
	limiter := middleware.NewRateLimiter(middleware.RateLimiterConfig{
		LoginRate:       rate.Limit(10.0 / 60.0),
		LoginBurst:      10,
		ChatRate:        rate.Limit(100),
		ChatBurst:       100,
		CleanupInterval: time.Hour,
	})
	t.Cleanup(limiter.Stop)
	f := newRouterFixture(t, func(d *RouterDeps) { d.RateLimiter = limiter })

	limited := 0
	for i := 0; i < 50; i++ {
		req := csrfPost("/login", url.Values{"email": {"a@b.co"}, "password": {"wrong"}})
		req.RemoteAddr = "203.0.113.50:4000"
		req.Header.Set("X-Forwarded-For", fmt.Sprintf("198.51.100.%d", i))
		req.Header.Set("X-Real-IP", fmt.Sprintf("192.0.2.%d", i))
		if f.serve(t, req, nil).Code == http.StatusTooManyRequests {
			limited++
		}
	}

	if limited != 40 {
		t.Errorf("429 responses = %d, want 40", limited)
	}
}

func TestRouter_TrustedProxyForwardsClientIP(t *testing.T) {
	limiter := middleware.NewRateLimiter(middleware.RateLimiterConfig{
		LoginRate:       rate.Limit(1.0 / 60.0),
		LoginBurst:      1,
		ChatRate:        rate.Limit(100),
		ChatBurst:       100,
		CleanupInterval: time.Hour,
	})
	t.Cleanup(limiter.Stop)
	f := newRouterFixture(t, func(d *RouterDeps) {
		d.RateLimiter = limiter
		d.TrustedProxies = []netip.Prefix{netip.MustParsePrefix("10.0.0.0/8")}
	})

	// 同じプロキシ経由でも転送元が異なれば別のクライアント
	for i, client := range []string{"198.51.100.1", "198.51.100.2"} {
		req := csrfPost("/login", url.Values{"email": {"a@b.co"}, "password": {"wrong"}})
		req.RemoteAddr = "10.0.0.5:4000"
		req.Header.Set("X-Forwarded-For", client)
		if rec := f.serve(t, req, nil); rec.Code == http.StatusTooManyRequests {
			t.Errorf("client %d was limited by another client's attempt", i+1)
		}
	}
	if limiter.LoginLimiterCount() != 2 {
		t.Errorf("LoginLimiterCount = %d, want 2", limiter.LoginLimiterCount())
	}
}
