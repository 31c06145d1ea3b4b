package middleware

import (
	"log/slog"
	"net/http"

	"github.com/hitoshi/intelitalk/internal/guard"
)

// RedirectRecorder はガードによるリダイレクトを記録するインターフェース。
// metrics.Collectorが実装する。
type RedirectRecorder interface {
	RecordGuardRedirect(policy, target string)
}

// NewGuardMiddleware はガードポリシーを評価し、許可されない場合は303でリダイレクトするミドルウェアを返す。
// セッションはNewSessionMiddlewareが注入したものを使う。recorderはnilでもよい。
func NewGuardMiddleware(policy guard.Policy, recorder RedirectRecorder) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			decision := guard.Evaluate(SessionFromContext(r.Context()), policy)
			if decision.Allow {
				next.ServeHTTP(w, r)
				return
			}

			slog.Debug("guard redirect",
				slog.String("policy", policy.Name()),
				slog.String("path", r.URL.Path),
				slog.String("redirect_to", decision.RedirectTo),
			)
			if recorder != nil {
				recorder.RecordGuardRedirect(policy.Name(), decision.RedirectTo)
			}
			http.Redirect(w, r, decision.RedirectTo, http.StatusSeeOther)
		})
	}
}
