package session

import (
	"net/http"

	"github.com/gorilla/securecookie"
)

const flashCookieName = "intelitalk_flash"

// FlashLevel は通知の種類。
type FlashLevel string

const (
	FlashSuccess FlashLevel = "success"
	FlashError   FlashLevel = "error"
	FlashInfo    FlashLevel = "info"
)

// Flash は次の画面表示で1回だけ表示する通知。
type Flash struct {
	Level   FlashLevel `json:"level"`
	Message string     `json:"message"`
}

// Flasher は署名済みCookieで通知を次のリクエストへ受け渡す。
type Flasher struct {
	config CookieConfig
	codec  *securecookie.SecureCookie
}

// NewFlasher はFlasherを生成する。通知Cookieの寿命は短く固定する。
func NewFlasher(config CookieConfig) *Flasher {
	config.Name = flashCookieName
	config.MaxAge = 60
	codec := securecookie.New(config.HashKey, nil)
	codec.MaxAge(config.MaxAge)
	codec.SetSerializer(securecookie.JSONEncoder{})

	return &Flasher{config: config, codec: codec}
}

// Set は通知を保存する。既存の通知は上書きされる。
func (f *Flasher) Set(w http.ResponseWriter, level FlashLevel, message string) error {
	encoded, err := f.codec.Encode(f.config.Name, Flash{Level: level, Message: message})
	if err != nil {
		return err
	}
	http.SetCookie(w, f.config.newCookie(encoded, f.config.MaxAge))
	return nil
}

// Pop は保存された通知を取り出して削除する。通知がない場合はnilを返す。
func (f *Flasher) Pop(w http.ResponseWriter, r *http.Request) *Flash {
	cookie, err := r.Cookie(f.config.Name)
	if err != nil || cookie.Value == "" {
		return nil
	}
	http.SetCookie(w, f.config.newCookie("", -1))

	var flash Flash
	if err := f.codec.Decode(f.config.Name, cookie.Value, &flash); err != nil || flash.Message == "" {
		return nil
	}
	return &flash
}
