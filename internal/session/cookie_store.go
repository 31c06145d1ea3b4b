package session

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/securecookie"
	"github.com/hitoshi/intelitalk/internal/model"
)

// DefaultCookieName はセッションCookieの既定名。
const DefaultCookieName = "intelitalk_session"

// CookieStore はセッション全体を署名（と暗号化）済みCookieに保存するStore。
// サーバー側に状態を持たず、ブラウザのキーバリューストレージと同じくクライアントが保持する。
type CookieStore struct {
	config CookieConfig
	codec  *securecookie.SecureCookie
}

// NewCookieStore はCookieStoreを生成する。
func NewCookieStore(config CookieConfig) *CookieStore {
	if config.Name == "" {
		config.Name = DefaultCookieName
	}
	codec := securecookie.New(config.HashKey, config.BlockKey)
	codec.MaxAge(config.MaxAge)
	codec.SetSerializer(securecookie.JSONEncoder{})

	return &CookieStore{
		config: config,
		codec:  codec,
	}
}

// Read はCookieからセッションを復元する。
// 署名検証やデコードに失敗した場合、内容が不完全な場合はゼロ値を返す。
func (s *CookieStore) Read(r *http.Request) model.Session {
	cookie, err := r.Cookie(s.config.Name)
	if err != nil || cookie.Value == "" {
		return model.Session{}
	}

	var rec record
	if err := s.codec.Decode(s.config.Name, cookie.Value, &rec); err != nil {
		slog.Warn("discarding undecodable session cookie",
			slog.String("error", err.Error()),
		)
		return model.Session{}
	}

	sess, ok := rec.toSession()
	if !ok {
		slog.Warn("discarding malformed session cookie")
		return model.Session{}
	}
	return sess
}

// Write はセッション全体を1つのCookieにエンコードして保存する。
func (s *CookieStore) Write(w http.ResponseWriter, r *http.Request, sess model.Session) error {
	if !sess.Valid() {
		return ErrInvalidSession
	}

	encoded, err := s.codec.Encode(s.config.Name, newRecord(sess))
	if err != nil {
		return err
	}

	http.SetCookie(w, s.config.newCookie(encoded, s.config.MaxAge))
	return nil
}

// Clear はセッションCookieを削除する。
func (s *CookieStore) Clear(w http.ResponseWriter, r *http.Request) error {
	http.SetCookie(w, s.config.newCookie("", -1))
	return nil
}

// compile-time interface check
var _ Store = (*CookieStore)(nil)
