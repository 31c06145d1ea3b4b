package handler

import (
	"log/slog"
	"net/http"
	"net/netip"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/intelitalk/internal/form"
	"github.com/hitoshi/intelitalk/internal/guard"
	"github.com/hitoshi/intelitalk/internal/markdown"
	"github.com/hitoshi/intelitalk/internal/metrics"
	"github.com/hitoshi/intelitalk/internal/middleware"
	"github.com/hitoshi/intelitalk/internal/model"
	"github.com/hitoshi/intelitalk/internal/session"
	"github.com/prometheus/client_golang/prometheus"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	Logger *slog.Logger

	// 描画
	Views    *Views
	Markdown *markdown.Renderer
	Flasher  *session.Flasher

	// セッションとミドルウェア
	Store          session.Store
	CSRF           middleware.CSRFConfig
	RateLimiter    *middleware.RateLimiter
	TrustedProxies []netip.Prefix       // 空の場合は転送ヘッダーを無視する
	GuestCookie    session.CookieConfig // 匿名IDのCookie設定。Nameは上書きされる

	// 認証
	AuthService AuthServiceInterface

	// チャット
	ChatAPI  ChatAPI
	Registry PanelRegistry

	// 管理者
	UserAPI   UserAPI
	Validator *form.Validator

	// 運用
	Metrics     metrics.MetricsCollector // nilの場合は記録しない
	Gatherer    prometheus.Gatherer      // nilの場合は/metricsを公開しない
	HealthCheck HealthCheck
}

// NewRouter は全画面のルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → ClientIP → Session → Logging → SecurityHeaders → CSRF
//
// 各画面のガードはルートごとにGuardMiddlewareとして適用する。
// ログにRoleを含めるため、SessionはLoggingより先に評価する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	var statusRecorder middleware.StatusRecorder
	var redirectRecorder middleware.RedirectRecorder
	if deps.Metrics != nil {
		statusRecorder = deps.Metrics
		redirectRecorder = deps.Metrics
	}

	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewClientIPMiddleware(deps.TrustedProxies))
	r.Use(middleware.NewSessionMiddleware(deps.Store))
	r.Use(middleware.NewLoggingMiddleware(deps.Logger, statusRecorder))
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCSRFMiddleware(deps.CSRF))

	guardWith := func(p guard.Policy) func(http.Handler) http.Handler {
		return middleware.NewGuardMiddleware(p, redirectRecorder)
	}

	pageHandler := NewPageHandler(deps.HealthCheck, deps.Views, deps.Flasher, deps.Logger)
	authHandler := NewAuthHandler(deps.AuthService, deps.Store, deps.Views, deps.Flasher, deps.Logger)
	chatHandler := NewChatHandler(deps.Registry, deps.ChatAPI, deps.Markdown, session.NewGuestIdentifier(deps.GuestCookie), deps.Views, deps.Flasher, deps.Logger)
	adminHandler := NewAdminHandler(deps.UserAPI, deps.Validator, deps.Views, deps.Flasher, deps.Logger)

	// --- 運用 ---
	r.Get("/health", pageHandler.Health)
	if deps.Gatherer != nil {
		r.Handle("/metrics", metrics.Handler(deps.Gatherer))
	}
	r.Handle("/static/*", StaticHandler())

	// --- ガードなしの画面 ---
	r.Get("/", pageHandler.Home)
	r.Get("/chat", chatHandler.GuestChat)
	r.With(deps.RateLimiter.ChatMiddleware()).Post("/chat/{panelID}", chatHandler.SubmitGuest)
	r.Post("/logout", authHandler.Logout)

	// --- ログイン画面（認証済みならRoleのホームへ） ---
	r.Group(func(r chi.Router) {
		r.Use(guardWith(guard.LoginPage))
		r.Get("/login", authHandler.LoginPage)
		r.With(deps.RateLimiter.LoginMiddleware()).Post("/login", authHandler.Login)
	})

	// GET /logout は常にリダイレクトする
	r.With(guardWith(guard.LogoutTrigger)).Get("/logout", authHandler.LogoutTrigger)

	// --- 学生 ---
	r.Group(func(r chi.Router) {
		r.Use(guardWith(guard.RequireRole(model.RoleStudent)))
		r.Get("/student", chatHandler.StudentChat)
		r.With(deps.RateLimiter.ChatMiddleware()).Post("/student/chat/{panelID}", chatHandler.SubmitStudent)
	})

	// --- 管理者 ---
	r.Group(func(r chi.Router) {
		r.Use(guardWith(guard.RequireRole(model.RoleAdmin)))

		r.Get("/admin", adminHandler.Dashboard)

		r.Get("/signup", adminHandler.StudentSignupPage)
		r.Post("/signup", adminHandler.StudentSignup)
		r.Get("/signupadmin", adminHandler.AdminSignupPage)
		r.Post("/signupadmin", adminHandler.AdminSignup)

		r.Route("/user", func(r chi.Router) {
			r.Get("/{id}", adminHandler.UserDetail)
			r.Post("/{id}/delete", adminHandler.DeleteUser)
			r.Get("/edit/{id}", adminHandler.EditUserPage)
			r.Post("/edit/{id}", adminHandler.EditUser)
		})
	})

	r.NotFound(pageHandler.NotFound)

	return r
}
