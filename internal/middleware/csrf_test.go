package middleware

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func formRequest(method, target string, values url.Values) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

// TestCSRFMiddleware_SafeMethods_PassThroughWithoutToken は安全なメソッドがトークンなしで通過することを検証する。
func TestCSRFMiddleware_SafeMethods_PassThroughWithoutToken(t *testing.T) {
	handler := NewCSRFMiddleware(CSRFConfig{})(okHandler())

	for _, method := range []string{http.MethodGet, http.MethodHead, http.MethodOptions} {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest(method, "/login", nil))

		if w.Result().StatusCode != http.StatusOK {
			t.Errorf("%s: status = %d, want %d", method, w.Result().StatusCode, http.StatusOK)
		}
	}
}

// TestCSRFMiddleware_GET_SetsCookieAndContextToken はGETでCookieが発行され、同じトークンがコンテキストに入ることを検証する。
func TestCSRFMiddleware_GET_SetsCookieAndContextToken(t *testing.T) {
	var ctxToken string
	handler := NewCSRFMiddleware(CSRFConfig{CookieSecure: true})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctxToken = CSRFTokenFromContext(r.Context())
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/login", nil))

	var cookie *http.Cookie
	for _, c := range w.Result().Cookies() {
		if c.Name == csrfCookieName {
			cookie = c
		}
	}
	if cookie == nil {
		t.Fatal("expected CSRF cookie to be set")
	}
	if len(cookie.Value) != 64 {
		t.Errorf("token length = %d, want 64", len(cookie.Value))
	}
	if !cookie.HttpOnly || !cookie.Secure {
		t.Errorf("cookie must be HttpOnly and Secure: %+v", cookie)
	}
	if ctxToken != cookie.Value {
		t.Errorf("context token = %q, want cookie value %q", ctxToken, cookie.Value)
	}
}

// TestCSRFMiddleware_GET_ExistingCookie_DoesNotReplace は既存のCookieを置き換えないことを検証する。
func TestCSRFMiddleware_GET_ExistingCookie_DoesNotReplace(t *testing.T) {
	var ctxToken string
	handler := NewCSRFMiddleware(CSRFConfig{})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctxToken = CSRFTokenFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: csrfCookieName, Value: "existing-token"})
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if len(w.Result().Cookies()) != 0 {
		t.Error("existing CSRF cookie should not be replaced")
	}
	if ctxToken != "existing-token" {
		t.Errorf("context token = %q, want existing-token", ctxToken)
	}
}

// TestCSRFMiddleware_POST はPOSTのトークン検証を検証する。
func TestCSRFMiddleware_POST(t *testing.T) {
	tests := []struct {
		name        string
		cookie      string
		formToken   string
		headerToken string
		wantStatus  int
	}{
		{"フォームのトークンが一致", "tok", "tok", "", http.StatusOK},
		{"ヘッダーのトークンが一致", "tok", "", "tok", http.StatusOK},
		{"Cookieなし", "", "tok", "", http.StatusForbidden},
		{"送信トークンなし", "tok", "", "", http.StatusForbidden},
		{"フォームのトークンが不一致", "tok", "other", "", http.StatusForbidden},
		{"ヘッダーのトークンが不一致", "tok", "tok", "other", http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := NewCSRFMiddleware(CSRFConfig{})(okHandler())

			values := url.Values{"email": {"a@b.co"}}
			if tt.formToken != "" {
				values.Set(CSRFFieldName, tt.formToken)
			}
			req := formRequest(http.MethodPost, "/login", values)
			if tt.cookie != "" {
				req.AddCookie(&http.Cookie{Name: csrfCookieName, Value: tt.cookie})
			}
			if tt.headerToken != "" {
				req.Header.Set(csrfHeaderName, tt.headerToken)
			}
			w := httptest.NewRecorder()

			handler.ServeHTTP(w, req)

			if w.Result().StatusCode != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Result().StatusCode, tt.wantStatus)
			}
		})
	}
}

// TestCSRFMiddleware_AllStateMutatingMethods_RequireToken は状態変更メソッドがすべてトークンを要求することを検証する。
func TestCSRFMiddleware_AllStateMutatingMethods_RequireToken(t *testing.T) {
	handler := NewCSRFMiddleware(CSRFConfig{})(okHandler())

	for _, method := range []string{http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete} {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest(method, "/user/u1", nil))

		if w.Result().StatusCode != http.StatusForbidden {
			t.Errorf("%s: status = %d, want %d", method, w.Result().StatusCode, http.StatusForbidden)
		}
	}
}
