package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/hitoshi/intelitalk/internal/auth"
	"github.com/hitoshi/intelitalk/internal/form"
	"github.com/hitoshi/intelitalk/internal/guard"
	"github.com/hitoshi/intelitalk/internal/middleware"
	"github.com/hitoshi/intelitalk/internal/model"
	"github.com/hitoshi/intelitalk/internal/session"
)

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type AuthServiceInterface interface {
	Login(ctx context.Context, email, password string) (*auth.LoginResult, error)
	Logout(ctx context.Context, sess model.Session)
}

// AuthHandler はログインとログアウトのHTTPハンドラー。
type AuthHandler struct {
	responder
	service AuthServiceInterface
	store   session.Store
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(service AuthServiceInterface, store session.Store, views *Views, flasher *session.Flasher, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		responder: responder{views: views, flasher: flasher, logger: logger},
		service:   service,
		store:     store,
	}
}

type loginView struct {
	Form  form.Login
	Error string
}

// LoginPage はログイン画面を表示する。
// GET /login
func (h *AuthHandler) LoginPage(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusOK, "login.html", "Sign In", loginView{})
}

// Login はログインフォームを処理する。
// POST /login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	f := form.ParseLogin(r)

	// 1. リモートAPIでログイン（メール形式の検証を含む）
	result, err := h.service.Login(r.Context(), f.Email, f.Password)
	if err != nil {
		status := http.StatusUnauthorized
		message := model.NewLoginFailedError().Message

		var apiErr *model.APIError
		if errors.As(err, &apiErr) {
			message = apiErr.Message
			if apiErr.Code == model.ErrCodeInvalidEmail {
				status = http.StatusUnprocessableEntity
			}
		}

		f.Password = ""
		h.render(w, r, status, "login.html", "Sign In", loginView{Form: f, Error: message})
		return
	}

	// 2. セッションを保存（失敗してもログに記録して続行する）
	if err := h.store.Write(w, r, result.Session); err != nil {
		h.logger.Error("failed to write session", slog.String("error", err.Error()))
	}

	// 3. Roleのホームへ
	h.flash(w, session.FlashSuccess, result.Notice)
	redirect(w, r, result.RedirectTo)
}

// Logout はセッションを破棄してログイン画面へリダイレクトする。
// リモートAPIのログアウトに失敗してもセッションは必ず削除する。
// POST /logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	sess := middleware.SessionFromContext(r.Context())
	h.service.Logout(r.Context(), sess)

	if err := h.store.Clear(w, r); err != nil {
		h.logger.Error("failed to clear session", slog.String("error", err.Error()))
	}

	if sess.IsAuthenticated() {
		h.flash(w, session.FlashSuccess, "Logged out successfully")
	}
	redirect(w, r, guard.LoginPath)
}

// LogoutTrigger はGET /logout のハンドラー。
// LogoutTriggerガードが常にリダイレクトするため、通常は呼ばれない。
func (h *AuthHandler) LogoutTrigger(w http.ResponseWriter, r *http.Request) {
	redirect(w, r, guard.LoginPath)
}
