package session

import (
	"net/http"

	"github.com/google/uuid"
)

// GuestCookieName は未ログインの訪問者を識別するCookieの名前。
const GuestCookieName = "intelitalk_guest"

// GuestIdentifier は未ログインの訪問者にランダムな匿名IDを割り当てる。
// IDはチャットパネルの所有者キーにのみ使い、認証には使わない。
type GuestIdentifier struct {
	config CookieConfig
}

// NewGuestIdentifier はGuestIdentifierを生成する。MaxAgeが0以下の場合はブラウザセッション限りのCookieになる。
func NewGuestIdentifier(config CookieConfig) *GuestIdentifier {
	config.Name = GuestCookieName
	return &GuestIdentifier{config: config}
}

// Lookup はCookieの匿名IDを返す。Cookieがない、または形式が不正な場合は空文字を返す。
func (g *GuestIdentifier) Lookup(r *http.Request) string {
	cookie, err := r.Cookie(g.config.Name)
	if err != nil {
		return ""
	}
	id, err := uuid.Parse(cookie.Value)
	if err != nil {
		return ""
	}
	return id.String()
}

// Ensure は匿名IDを返す。有効なCookieがなければ新しいIDを発行してCookieに設定する。
func (g *GuestIdentifier) Ensure(w http.ResponseWriter, r *http.Request) string {
	if id := g.Lookup(r); id != "" {
		return id
	}
	id := uuid.New().String()
	http.SetCookie(w, g.config.newCookie(id, g.config.MaxAge))
	return id
}
