package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hitoshi/intelitalk/internal/api"
	"github.com/hitoshi/intelitalk/internal/auth"
	"github.com/hitoshi/intelitalk/internal/chat"
	"github.com/hitoshi/intelitalk/internal/config"
	"github.com/hitoshi/intelitalk/internal/database"
	"github.com/hitoshi/intelitalk/internal/form"
	"github.com/hitoshi/intelitalk/internal/handler"
	"github.com/hitoshi/intelitalk/internal/logger"
	"github.com/hitoshi/intelitalk/internal/markdown"
	"github.com/hitoshi/intelitalk/internal/metrics"
	"github.com/hitoshi/intelitalk/internal/middleware"
	"github.com/hitoshi/intelitalk/internal/repository"
	"github.com/hitoshi/intelitalk/internal/session"
	"github.com/hitoshi/intelitalk/internal/worker/cleanup"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"
)

// 起動時の接続確認とシャットダウンの待ち時間。
const (
	connectTimeout  = 5 * time.Second
	shutdownTimeout = 30 * time.Second
)

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// SIGINTまたはSIGTERMを受信するまで実行し、受信後はグレースフルに終了する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return RunContext(ctx, w, args)
}

// RunContext はctxがキャンセルされるまでサブコマンドを実行する。
func RunContext(ctx context.Context, w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck と migrate はフル設定を必要としない
	switch cmd {
	case CommandHealthcheck:
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(ctx, port)
	case CommandMigrate:
		logger.SetupDefault(w)
		databaseURL, err := config.LoadDatabaseURL()
		if err != nil {
			return fmt.Errorf("initialization failed: %w", err)
		}
		return runMigrate(databaseURL)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
		slog.String("base_url", cfg.BaseURL),
		slog.String("session_backend", cfg.SessionBackend),
	)

	if cmd == CommandWorker {
		return runWorker(ctx, cfg)
	}
	return runServe(ctx, cfg)
}

// Server は組み立て済みのHTTPハンドラーと、終了時に解放するリソースを保持する。
type Server struct {
	Handler  http.Handler
	Registry *chat.Registry

	closers []func()
}

// Close は確保したリソースを逆順に解放する。
func (s *Server) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
	s.closers = nil
}

// Build は設定から全依存関係をワイヤリングし、Serverを返す。
// 返されたServerは使用後にCloseすること。
func Build(ctx context.Context, cfg *config.Config, log *slog.Logger) (*Server, error) {
	srv := &Server{}

	// 1. メトリクス
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	collector := metrics.NewCollector(reg)

	// 2. セッション
	cookieCfg := cookieConfig(cfg)
	store, check, closeStore, err := openSessionStore(ctx, cfg, cookieCfg)
	if err != nil {
		return nil, err
	}
	srv.closers = append(srv.closers, closeStore)

	// 3. バックエンドAPIクライアントとドメインサービス
	client := api.NewClient(&http.Client{Timeout: cfg.APITimeout}, log, cfg.APIBaseURL, collector)
	authService := auth.NewService(client, collector, log)

	registryCfg := chat.DefaultRegistryConfig()
	registryCfg.IdleTTL = cfg.ChatPanelTTL
	registryCfg.MaxPanels = cfg.ChatMaxPanels
	registry := chat.NewRegistry(registryCfg, collector, log)
	srv.Registry = registry
	srv.closers = append(srv.closers, registry.Stop)
	collector.RegisterActivePanels(registry.Len)

	// 4. レートリミッター（設定値は1分あたりの回数）
	limiterCfg := middleware.DefaultRateLimiterConfig()
	limiterCfg.LoginRate, limiterCfg.LoginBurst = perMinute(cfg.RateLimitLogin)
	limiterCfg.ChatRate, limiterCfg.ChatBurst = perMinute(cfg.RateLimitChat)
	limiter := middleware.NewRateLimiter(limiterCfg)
	srv.closers = append(srv.closers, limiter.Stop)

	// 5. 描画
	md := markdown.NewRenderer()
	views, err := handler.NewViews(md)
	if err != nil {
		srv.Close()
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}

	// 6. ルーター
	srv.Handler = handler.NewRouter(&handler.RouterDeps{
		Logger:   log,
		Views:    views,
		Markdown: md,
		Flasher:  session.NewFlasher(cookieCfg),

		Store: store,
		CSRF: middleware.CSRFConfig{
			CookieSecure: cfg.CookieSecure,
			CookieDomain: cfg.CookieDomain,
		},
		RateLimiter:    limiter,
		TrustedProxies: cfg.TrustedProxies,
		GuestCookie:    cookieCfg,

		AuthService: authService,
		ChatAPI:     client,
		Registry:    registry,
		UserAPI:     client,
		Validator:   form.NewValidator(),

		Metrics:     collector,
		Gatherer:    reg,
		HealthCheck: check,
	})

	return srv, nil
}

// cookieConfig はセッションCookieとフラッシュCookieの共通設定を組み立てる。
func cookieConfig(cfg *config.Config) session.CookieConfig {
	var blockKey []byte
	if cfg.SessionBlockKey != "" {
		blockKey = []byte(cfg.SessionBlockKey)
	}
	return session.CookieConfig{
		Name:     session.DefaultCookieName,
		HashKey:  []byte(cfg.SessionSecret),
		BlockKey: blockKey,
		MaxAge:   cfg.SessionMaxAge,
		Domain:   cfg.CookieDomain,
		Secure:   cfg.CookieSecure,
	}
}

// openSessionStore はSESSION_BACKENDに応じたStoreと、その保存先のヘルスチェックを返す。
func openSessionStore(ctx context.Context, cfg *config.Config, cookieCfg session.CookieConfig) (session.Store, handler.HealthCheck, func(), error) {
	noop := func(context.Context) error { return nil }

	switch cfg.SessionBackend {
	case config.SessionBackendMemory:
		backend := session.NewMemoryBackend(time.Minute)
		return session.NewServerStore(cookieCfg, backend), noop, backend.Stop, nil

	case config.SessionBackendRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
		pingCtx, cancel := context.WithTimeout(ctx, connectTimeout)
		defer cancel()
		if err := client.Ping(pingCtx).Err(); err != nil {
			client.Close()
			return nil, nil, nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		slog.Info("redis connection established", slog.String("addr", cfg.RedisAddr))

		check := func(ctx context.Context) error { return client.Ping(ctx).Err() }
		return session.NewServerStore(cookieCfg, session.NewRedisBackend(client)), check, func() { client.Close() }, nil

	case config.SessionBackendPostgres:
		db, err := database.Open(cfg.DatabaseURL)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("failed to open database: %w", err)
		}
		if err := database.Ping(ctx, db, connectTimeout); err != nil {
			db.Close()
			return nil, nil, nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		slog.Info("database connection established")

		backend := repository.NewPostgresSessionRepo(db)
		return session.NewServerStore(cookieCfg, backend), db.PingContext, func() { db.Close() }, nil

	default:
		return session.NewCookieStore(cookieCfg), noop, func() {}, nil
	}
}

// perMinute は1分あたりの回数をトークンバケットのレートとバーストに変換する。
// 1未満の値は制限なしではなく1回/分として扱う。
func perMinute(n int) (rate.Limit, int) {
	if n < 1 {
		n = 1
	}
	return rate.Limit(float64(n) / 60), n
}

// runServe はHTTPサーバーを起動し、ctxがキャンセルされるとグレースフルシャットダウンを行う。
func runServe(ctx context.Context, cfg *config.Config) error {
	srv, err := Build(ctx, cfg, slog.Default())
	if err != nil {
		return err
	}
	defer srv.Close()

	listener, err := net.Listen("tcp", ":"+cfg.ServerPort)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}

	server := &http.Server{
		Handler:     srv.Handler,
		ReadTimeout: 15 * time.Second,
		// チャット送信はバックエンドAPIの応答を待つため、その分だけ延ばす
		WriteTimeout: cfg.APITimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server starting", slog.String("addr", listener.Addr().String()))
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server listen error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("server stopped gracefully")
	return nil
}

// runWorker は期限切れセッションの削除ジョブを実行する。
// PostgreSQLバックエンドでのみ意味を持つ。ctxがキャンセルされるまでブロックする。
func runWorker(ctx context.Context, cfg *config.Config) error {
	if cfg.DatabaseURL == "" {
		return errors.New("worker requires DATABASE_URL")
	}

	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := database.Ping(ctx, db, connectTimeout); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established (worker)")

	job := cleanup.NewCleanupJob(repository.NewPostgresSessionRepo(db), slog.Default())
	slog.Info("worker starting", slog.Duration("interval", job.Interval))
	job.Start(ctx)

	slog.Info("worker stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(databaseURL string) error {
	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(databaseURL)),
	)

	version, err := database.RunMigrations(databaseURL)
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully", slog.Uint64("version", uint64(version)))
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(ctx context.Context, port string) error {
	url := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}
