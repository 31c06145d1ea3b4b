// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"net/http"

	"github.com/hitoshi/intelitalk/internal/model"
)

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

// sessionContextKey はリクエストコンテキストにセッションを格納するためのキー。
var sessionContextKey = contextKey("session")

// SessionReader はセッションの読み込みに必要なインターフェース。
// session.Storeの部分集合として定義する。
type SessionReader interface {
	Read(r *http.Request) model.Session
}

// NewSessionMiddleware はリクエストごとに1回だけセッションを読み込み、
// リクエストコンテキストに注入するミドルウェアを返す。
// 未ログインのリクエストも拒否せず、ゼロ値のセッションで次へ進める。
// 以降のガードとハンドラーはCookieを直接読まず、SessionFromContextを使う。
func NewSessionMiddleware(reader SessionReader) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess := reader.Read(r)
			next.ServeHTTP(w, r.WithContext(ContextWithSession(r.Context(), sess)))
		})
	}
}

// SessionFromContext はリクエストコンテキストからセッションを取得する。
// セッションミドルウェアを通過していない場合はゼロ値を返す。
func SessionFromContext(ctx context.Context) model.Session {
	sess, _ := ctx.Value(sessionContextKey).(model.Session)
	return sess
}

// ContextWithSession はコンテキストにセッションを注入する。
// テストやミドルウェア以外のコンテキスト生成で使用する。
func ContextWithSession(ctx context.Context, sess model.Session) context.Context {
	return context.WithValue(ctx, sessionContextKey, sess)
}
