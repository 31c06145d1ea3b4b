package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/hitoshi/intelitalk/internal/session"
)

// HealthCheck は依存先の疎通確認関数。nilの場合は常に正常とみなす。
type HealthCheck func(ctx context.Context) error

const healthCheckTimeout = 3 * time.Second

// PageHandler は静的な画面、404、ヘルスチェックのHTTPハンドラー。
type PageHandler struct {
	responder
	check HealthCheck
}

// NewPageHandler はPageHandlerを生成する。
func NewPageHandler(check HealthCheck, views *Views, flasher *session.Flasher, logger *slog.Logger) *PageHandler {
	return &PageHandler{
		responder: responder{views: views, flasher: flasher, logger: logger},
		check:     check,
	}
}

// Home は紹介画面を表示する。
// GET /
func (h *PageHandler) Home(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusOK, "home.html", "InteliTalk", nil)
}

// NotFound は未定義のパスに対する404画面を表示する。
func (h *PageHandler) NotFound(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusNotFound, "not_found.html", "Not Found", nil)
}

// Health はサーバーとセッションバックエンドの状態を返す。
// GET /health
func (h *PageHandler) Health(w http.ResponseWriter, r *http.Request) {
	if h.check != nil {
		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		defer cancel()

		if err := h.check(ctx); err != nil {
			h.logger.Error("health check failed", slog.String("error", err.Error()))
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
