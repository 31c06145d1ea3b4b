package config

import (
	"fmt"
	"net/netip"
	"os"
	"strconv"
	"strings"
	"time"
)

// セッションの保存先。
const (
	SessionBackendCookie   = "cookie"
	SessionBackendMemory   = "memory"
	SessionBackendRedis    = "redis"
	SessionBackendPostgres = "postgres"
)

// minSessionSecretLen はHMAC署名鍵の最小長（バイト）。
const minSessionSecretLen = 32

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Remote API
	APIBaseURL string
	APITimeout time.Duration

	// Session
	SessionSecret   string
	SessionBlockKey string
	SessionBackend  string
	SessionMaxAge   int

	// Redis
	RedisAddr     string
	RedisPassword string

	// Database
	DatabaseURL string

	// Chat
	ChatPanelTTL  time.Duration
	ChatMaxPanels int // 同時に保持するパネルの上限

	// Rate Limit（1分あたりのリクエスト数）
	RateLimitLogin int
	RateLimitChat  int

	// Server
	ServerPort     string
	BaseURL        string
	TrustedProxies []netip.Prefix // X-Forwarded-Forを信頼するプロキシ。空なら常に接続元を使う

	// Cookie
	CookieSecure bool
	CookieDomain string
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合、または値が不正な場合はエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}

	// Required fields
	var missing []string

	cfg.APIBaseURL = os.Getenv("API_BASE_URL")
	if cfg.APIBaseURL == "" {
		missing = append(missing, "API_BASE_URL")
	}

	cfg.SessionSecret = os.Getenv("SESSION_SECRET")
	if cfg.SessionSecret == "" {
		missing = append(missing, "SESSION_SECRET")
	}

	cfg.BaseURL = os.Getenv("BASE_URL")
	if cfg.BaseURL == "" {
		missing = append(missing, "BASE_URL")
	}

	cfg.SessionBackend = strings.ToLower(getEnvString("SESSION_BACKEND", SessionBackendCookie))
	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.SessionBackend == SessionBackendPostgres && cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	// Optional fields with defaults
	cfg.APITimeout = getEnvDuration("API_TIMEOUT", 30*time.Second)
	cfg.SessionBlockKey = os.Getenv("SESSION_BLOCK_KEY")
	cfg.SessionMaxAge = getEnvInt("SESSION_MAX_AGE", 86400)
	cfg.RedisAddr = getEnvString("REDIS_ADDR", "localhost:6379")
	cfg.RedisPassword = os.Getenv("REDIS_PASSWORD")
	cfg.ChatPanelTTL = getEnvDuration("CHAT_PANEL_TTL", 30*time.Minute)
	cfg.ChatMaxPanels = getEnvInt("CHAT_MAX_PANELS", 10000)
	cfg.RateLimitLogin = getEnvInt("RATE_LIMIT_LOGIN", 10)
	cfg.RateLimitChat = getEnvInt("RATE_LIMIT_CHAT", 30)
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.CookieSecure = strings.HasPrefix(cfg.BaseURL, "https://")
	cfg.CookieDomain = getEnvString("COOKIE_DOMAIN", "")

	proxies, err := parseTrustedProxies(os.Getenv("TRUSTED_PROXIES"))
	if err != nil {
		return nil, err
	}
	cfg.TrustedProxies = proxies

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// validate は読み込んだ値の整合性を検証する。
func (c *Config) validate() error {
	if len(c.SessionSecret) < minSessionSecretLen {
		return fmt.Errorf("SESSION_SECRET must be at least %d bytes", minSessionSecretLen)
	}

	switch len(c.SessionBlockKey) {
	case 0, 16, 24, 32:
	default:
		return fmt.Errorf("SESSION_BLOCK_KEY must be 16, 24 or 32 bytes, got %d", len(c.SessionBlockKey))
	}

	switch c.SessionBackend {
	case SessionBackendCookie, SessionBackendMemory, SessionBackendRedis, SessionBackendPostgres:
	default:
		return fmt.Errorf("unknown SESSION_BACKEND %q", c.SessionBackend)
	}

	if c.SessionMaxAge <= 0 {
		return fmt.Errorf("SESSION_MAX_AGE must be positive, got %d", c.SessionMaxAge)
	}

	if c.ChatPanelTTL <= 0 {
		return fmt.Errorf("CHAT_PANEL_TTL must be positive, got %s", c.ChatPanelTTL)
	}
	if c.ChatMaxPanels <= 0 {
		return fmt.Errorf("CHAT_MAX_PANELS must be positive, got %d", c.ChatMaxPanels)
	}
	if c.RateLimitLogin <= 0 {
		return fmt.Errorf("RATE_LIMIT_LOGIN must be positive, got %d", c.RateLimitLogin)
	}
	if c.RateLimitChat <= 0 {
		return fmt.Errorf("RATE_LIMIT_CHAT must be positive, got %d", c.RateLimitChat)
	}

	return nil
}

// LoadDatabaseURL はマイグレーション用にDATABASE_URLだけを読み込む。
func LoadDatabaseURL() (string, error) {
	url := os.Getenv("DATABASE_URL")
	if url == "" {
		return "", fmt.Errorf("required environment variables are not set: [DATABASE_URL]")
	}
	return url, nil
}

// parseTrustedProxies はカンマ区切りのCIDRまたはIPアドレスを解釈する。
func parseTrustedProxies(v string) ([]netip.Prefix, error) {
	var prefixes []netip.Prefix
	for _, field := range strings.Split(v, ",") {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}
		if strings.Contains(field, "/") {
			prefix, err := netip.ParsePrefix(field)
			if err != nil {
				return nil, fmt.Errorf("invalid TRUSTED_PROXIES entry %q: %w", field, err)
			}
			prefixes = append(prefixes, prefix.Masked())
			continue
		}
		addr, err := netip.ParseAddr(field)
		if err != nil {
			return nil, fmt.Errorf("invalid TRUSTED_PROXIES entry %q: %w", field, err)
		}
		prefixes = append(prefixes, netip.PrefixFrom(addr.Unmap(), addr.Unmap().BitLen()))
	}
	return prefixes, nil
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
