package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"golang.org/x/time/rate"
)

// newTestRateLimiter はテスト用の小さなバーストのRateLimiterを返す。
func newTestRateLimiter(t *testing.T, loginBurst, chatBurst int) *RateLimiter {
	t.Helper()
	rl := NewRateLimiter(RateLimiterConfig{
		LoginRate:       rate.Limit(1.0 / 60.0),
		LoginBurst:      loginBurst,
		ChatRate:        rate.Limit(1.0 / 60.0),
		ChatBurst:       chatBurst,
		CleanupInterval: time.Hour,
	})
	t.Cleanup(rl.Stop)
	return rl
}

func postFrom(remoteAddr, target string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, target, nil)
	req.RemoteAddr = remoteAddr
	return req
}

// TestLoginMiddleware_Returns429WhenLimitExceeded はバーストを超えると429になることを検証する。
func TestLoginMiddleware_Returns429WhenLimitExceeded(t *testing.T) {
	rl := newTestRateLimiter(t, 2, 10)
	handler := rl.LoginMiddleware()(okHandler())

	for i := 0; i < 2; i++ {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, postFrom("10.0.0.1:1234", "/login"))
		if w.Result().StatusCode != http.StatusOK {
			t.Fatalf("request %d: status = %d, want 200", i+1, w.Result().StatusCode)
		}
	}

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, postFrom("10.0.0.1:5678", "/login"))

	resp := w.Result()
	if resp.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusTooManyRequests)
	}
	if resp.Header.Get("Retry-After") != "60" {
		t.Errorf("Retry-After = %q, want 60", resp.Header.Get("Retry-After"))
	}

	var body ErrorResponseBody
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	if body.Code != "RATE_LIMIT_EXCEEDED" {
		t.Errorf("code = %q", body.Code)
	}
}

// TestLoginMiddleware_IsolatesClients はクライアントIPごとに独立して制限されることを検証する。
func TestLoginMiddleware_IsolatesClients(t *testing.T) {
	rl := newTestRateLimiter(t, 1, 10)
	handler := rl.LoginMiddleware()(okHandler())

	handler.ServeHTTP(httptest.NewRecorder(), postFrom("10.0.0.1:1", "/login"))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, postFrom("10.0.0.2:1", "/login"))
	if w.Result().StatusCode != http.StatusOK {
		t.Errorf("other client: status = %d, want 200", w.Result().StatusCode)
	}
	if rl.LoginLimiterCount() != 2 {
		t.Errorf("LoginLimiterCount = %d, want 2", rl.LoginLimiterCount())
	}
}

// TestLoginMiddleware_GETIsNotLimited はログイン画面の表示が制限されないことを検証する。
func TestLoginMiddleware_GETIsNotLimited(t *testing.T) {
	rl := newTestRateLimiter(t, 1, 10)
	handler := rl.LoginMiddleware()(okHandler())

	for i := 0; i < 5; i++ {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/login", nil))
		if w.Result().StatusCode != http.StatusOK {
			t.Fatalf("GET %d: status = %d, want 200", i+1, w.Result().StatusCode)
		}
	}
	if rl.LoginLimiterCount() != 0 {
		t.Errorf("GET should not create limiters, got %d", rl.LoginLimiterCount())
	}
}

// TestChatMiddleware_KeysBySession はログイン済みの場合にIPではなくセッションで制限されることを検証する。
func TestChatMiddleware_KeysBySession(t *testing.T) {
	rl := newTestRateLimiter(t, 10, 1)
	handler := rl.ChatMiddleware()(okHandler())

	withSession := func(remoteAddr string) *http.Request {
		req := postFrom(remoteAddr, "/student/chat/p1")
		return req.WithContext(ContextWithSession(req.Context(), studentSession()))
	}

	handler.ServeHTTP(httptest.NewRecorder(), withSession("10.0.0.1:1"))

	// 同じセッションは別IPからでも制限される
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, withSession("10.0.0.9:1"))
	if w.Result().StatusCode != http.StatusTooManyRequests {
		t.Errorf("same session: status = %d, want 429", w.Result().StatusCode)
	}

	// ゲストは同じIPでも別枠
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, postFrom("10.0.0.1:1", "/chat/p2"))
	if w.Result().StatusCode != http.StatusOK {
		t.Errorf("guest: status = %d, want 200", w.Result().StatusCode)
	}
}

// TestChatMiddleware_IndependentFromLoginLimit はチャットとログインの制限が独立していることを検証する。
func TestChatMiddleware_IndependentFromLoginLimit(t *testing.T) {
	rl := newTestRateLimiter(t, 1, 1)
	login := rl.LoginMiddleware()(okHandler())
	chat := rl.ChatMiddleware()(okHandler())

	login.ServeHTTP(httptest.NewRecorder(), postFrom("10.0.0.1:1", "/login"))

	w := httptest.NewRecorder()
	chat.ServeHTTP(w, postFrom("10.0.0.1:1", "/chat/p1"))
	if w.Result().StatusCode != http.StatusOK {
		t.Errorf("chat after login: status = %d, want 200", w.Result().StatusCode)
	}
}

// TestRateLimiter_CleanupRemovesExpiredEntries は古いエントリが削除されることを検証する。
func TestRateLimiter_CleanupRemovesExpiredEntries(t *testing.T) {
	rl := newTestRateLimiter(t, 5, 5)
	rl.config.CleanupInterval = time.Millisecond

	rl.login.get("ip:10.0.0.1", time.Now().Add(-time.Hour))
	rl.chat.get("ip:10.0.0.1", time.Now().Add(-time.Hour))
	rl.chat.get("ip:10.0.0.2", time.Now().Add(time.Hour))

	rl.cleanup()

	if rl.LoginLimiterCount() != 0 {
		t.Errorf("LoginLimiterCount = %d, want 0", rl.LoginLimiterCount())
	}
	if rl.ChatLimiterCount() != 1 {
		t.Errorf("ChatLimiterCount = %d, want 1", rl.ChatLimiterCount())
	}
}

// TestDefaultRateLimiterConfig はデフォルト設定値を検証する。
func TestDefaultRateLimiterConfig(t *testing.T) {
	cfg := DefaultRateLimiterConfig()

	if cfg.LoginBurst != 10 || cfg.ChatBurst != 30 {
		t.Errorf("bursts = %d/%d, want 10/30", cfg.LoginBurst, cfg.ChatBurst)
	}
	if got := float64(cfg.LoginRate) * 60; got < 9.99 || got > 10.01 {
		t.Errorf("LoginRate = %v req/min, want 10", got)
	}
	if got := float64(cfg.ChatRate) * 60; got < 29.99 || got > 30.01 {
		t.Errorf("ChatRate = %v req/min, want 30", got)
	}
	if cfg.CleanupInterval != 5*time.Minute {
		t.Errorf("CleanupInterval = %v", cfg.CleanupInterval)
	}
}
