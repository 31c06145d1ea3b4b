package session

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/securecookie"
	"github.com/hitoshi/intelitalk/internal/model"
)

// DefaultIDCookieName はサーバー側セッションのID Cookieの既定名。
const DefaultIDCookieName = "session_id"

// Backend はサーバー側セッションのキーバリュー保存先。
// MemoryBackend、RedisBackend、repository.PostgresSessionRepoが実装する。
type Backend interface {
	// Get は指定IDのデータを返す。存在しない、または期限切れの場合はnil, nilを返す。
	Get(ctx context.Context, id string) ([]byte, error)
	// Set は指定IDにデータを保存する。ttl経過後は存在しないものとして扱われる。
	Set(ctx context.Context, id string, data []byte, ttl time.Duration) error
	// Delete は指定IDのデータを削除する。存在しなくてもエラーにしない。
	Delete(ctx context.Context, id string) error
}

// ServerStore はセッション本体をBackendに保存し、署名済みのセッションIDだけをCookieに置くStore。
type ServerStore struct {
	config  CookieConfig
	backend Backend
	codec   *securecookie.SecureCookie
}

// NewServerStore はServerStoreを生成する。
func NewServerStore(config CookieConfig, backend Backend) *ServerStore {
	if config.Name == "" {
		config.Name = DefaultIDCookieName
	}
	codec := securecookie.New(config.HashKey, nil)
	codec.MaxAge(config.MaxAge)

	return &ServerStore{
		config:  config,
		backend: backend,
		codec:   codec,
	}
}

// sessionID はCookieから検証済みのセッションIDを取り出す。
func (s *ServerStore) sessionID(r *http.Request) (string, bool) {
	cookie, err := r.Cookie(s.config.Name)
	if err != nil || cookie.Value == "" {
		return "", false
	}
	var id string
	if err := s.codec.Decode(s.config.Name, cookie.Value, &id); err != nil || id == "" {
		return "", false
	}
	return id, true
}

// Read はCookieのセッションIDでBackendを引き、セッションを復元する。
// 保存先の障害や壊れたデータは未保存として扱う。
func (s *ServerStore) Read(r *http.Request) model.Session {
	id, ok := s.sessionID(r)
	if !ok {
		return model.Session{}
	}

	data, err := s.backend.Get(r.Context(), id)
	if err != nil {
		slog.Error("failed to load session",
			slog.String("error", err.Error()),
		)
		return model.Session{}
	}
	if data == nil {
		return model.Session{}
	}

	sess, ok := unmarshalSession(data)
	if !ok {
		slog.Warn("discarding malformed stored session")
		return model.Session{}
	}
	return sess
}

// Write はセッションを新しいIDで保存し、ID Cookieを発行する。
// 既存のセッションIDがあれば削除する（セッション固定化対策）。
func (s *ServerStore) Write(w http.ResponseWriter, r *http.Request, sess model.Session) error {
	if !sess.Valid() {
		return ErrInvalidSession
	}

	data, err := marshalSession(sess)
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}

	id := uuid.New().String()
	if err := s.backend.Set(r.Context(), id, data, s.ttl()); err != nil {
		return fmt.Errorf("failed to store session: %w", err)
	}

	encoded, err := s.codec.Encode(s.config.Name, id)
	if err != nil {
		return fmt.Errorf("failed to encode session id: %w", err)
	}
	http.SetCookie(w, s.config.newCookie(encoded, s.config.MaxAge))

	if oldID, ok := s.sessionID(r); ok {
		if err := s.backend.Delete(r.Context(), oldID); err != nil {
			slog.Warn("failed to delete previous session",
				slog.String("error", err.Error()),
			)
		}
	}
	return nil
}

// Clear はBackendのセッションを削除し、ID Cookieを失効させる。
// Backendの削除に失敗してもCookieは必ず失効させる。
func (s *ServerStore) Clear(w http.ResponseWriter, r *http.Request) error {
	http.SetCookie(w, s.config.newCookie("", -1))

	id, ok := s.sessionID(r)
	if !ok {
		return nil
	}
	if err := s.backend.Delete(r.Context(), id); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

func (s *ServerStore) ttl() time.Duration {
	return time.Duration(s.config.MaxAge) * time.Second
}

// compile-time interface check
var _ Store = (*ServerStore)(nil)
