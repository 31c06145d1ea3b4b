// Package handler はHTTPハンドラーを提供する。
// 画面はhtml/templateで描画し、状態を変える操作はPOSTの後に303でリダイレクトする。
package handler

import (
	"encoding/json"
	"log/slog"
	"mime"
	"net/http"
	"strings"

	"github.com/hitoshi/intelitalk/internal/middleware"
	"github.com/hitoshi/intelitalk/internal/model"
	"github.com/hitoshi/intelitalk/internal/session"
)

// page はレイアウトに渡す共通の描画データ。
type page struct {
	Title     string
	Session   model.Session
	CSRFField string
	CSRFToken string
	Flash     *session.Flash
	Data      any
}

// responder は各ハンドラーが共有する描画と通知の処理。
type responder struct {
	views   *Views
	flasher *session.Flasher
	logger  *slog.Logger
}

// render は画面を描画する。保留中の通知があれば一緒に表示して消費する。
func (rs *responder) render(w http.ResponseWriter, r *http.Request, status int, view, title string, data any) {
	p := page{
		Title:     title,
		Session:   middleware.SessionFromContext(r.Context()),
		CSRFField: middleware.CSRFFieldName,
		CSRFToken: middleware.CSRFTokenFromContext(r.Context()),
		Data:      data,
	}
	if rs.flasher != nil {
		p.Flash = rs.flasher.Pop(w, r)
	}

	buf, err := rs.views.renderToBuffer(view, p)
	if err != nil {
		rs.logger.Error("failed to render view",
			slog.String("view", view),
			slog.String("error", err.Error()),
		)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	buf.WriteTo(w)
}

// flash は次の画面で表示する通知を保存する。保存に失敗しても処理は続ける。
func (rs *responder) flash(w http.ResponseWriter, level session.FlashLevel, message string) {
	if rs.flasher == nil {
		return
	}
	if err := rs.flasher.Set(w, level, message); err != nil {
		rs.logger.Warn("failed to set flash message", slog.String("error", err.Error()))
	}
}

// redirect は303 See Otherでリダイレクトする。
func redirect(w http.ResponseWriter, r *http.Request, target string) {
	http.Redirect(w, r, target, http.StatusSeeOther)
}

// wantsJSON はクライアントがJSONレスポンスを求めているかどうかを返す。
func wantsJSON(r *http.Request) bool {
	for _, part := range strings.Split(r.Header.Get("Accept"), ",") {
		mediaType, _, err := mime.ParseMediaType(strings.TrimSpace(part))
		if err == nil && mediaType == "application/json" {
			return true
		}
	}
	return false
}

// writeJSON はJSONレスポンスを書き込む。
func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
