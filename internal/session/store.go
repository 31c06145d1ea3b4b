package session

import (
	"errors"
	"net/http"

	"github.com/hitoshi/intelitalk/internal/model"
)

// ErrInvalidSession は不完全なセッションを書き込もうとした場合に返す。
var ErrInvalidSession = errors.New("session must carry a token and a known role")

// Store はセッションの保存先を表すインターフェース。
type Store interface {
	// Read は現在のセッションを返す。未保存、または保存内容が不正な場合はゼロ値を返す。
	Read(r *http.Request) model.Session
	// Write はトークン、Role、プロフィールをまとめて保存する。
	Write(w http.ResponseWriter, r *http.Request, s model.Session) error
	// Clear は全フィールドをまとめて削除する。
	Clear(w http.ResponseWriter, r *http.Request) error
}

// CookieConfig はセッションCookieの設定。
type CookieConfig struct {
	Name     string
	HashKey  []byte // HMAC署名用の鍵（32バイト以上を推奨）
	BlockKey []byte // AES暗号化用の鍵（16/24/32バイト）。nilの場合は署名のみ
	MaxAge   int    // Cookieの有効期間（秒）
	Domain   string
	Secure   bool
}

// newCookie はセッション用Cookieを組み立てる。
func (c CookieConfig) newCookie(value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     c.Name,
		Value:    value,
		Path:     "/",
		Domain:   c.Domain,
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: http.SameSiteLaxMode,
	}
}
