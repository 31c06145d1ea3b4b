// Package session はクライアントが保持するセッション（トークン、Role、プロフィール）の保存先を提供する。
//
// セッションは常に一括で書き込まれ、一括で削除される。部分的な更新は公開しない。
// 読み込み時には保存内容を検証し、壊れたデータや不完全なデータは「未保存」として扱う。
package session

import (
	"encoding/json"

	"github.com/hitoshi/intelitalk/internal/model"
)

// record はセッションの永続化フォーマット。
// キー名はブラウザ版のキーバリューストレージ（token, isLogedIn, studentUser, adminUser）に合わせている。
// Roleはどちらのプロフィールキーが存在するかで決まる。
type record struct {
	Token       string      `json:"token"`
	IsLoggedIn  string      `json:"isLogedIn"`
	StudentUser *model.User `json:"studentUser,omitempty"`
	AdminUser   *model.User `json:"adminUser,omitempty"`
}

// newRecord はセッションを永続化フォーマットに変換する。
func newRecord(s model.Session) record {
	rec := record{
		Token:      s.Token,
		IsLoggedIn: "true",
	}
	profile := s.Profile
	switch s.Role {
	case model.RoleStudent:
		rec.StudentUser = &profile
	case model.RoleAdmin:
		rec.AdminUser = &profile
	}
	return rec
}

// toSession は永続化フォーマットを検証してセッションに戻す。
// 検証に失敗した場合はfalseを返し、呼び出し元は未保存として扱う。
func (rec record) toSession() (model.Session, bool) {
	if rec.Token == "" || rec.IsLoggedIn != "true" {
		return model.Session{}, false
	}

	// プロフィールキーはちょうど1つ存在し、中身のRoleと矛盾しないこと
	var (
		role    model.Role
		profile *model.User
	)
	switch {
	case rec.StudentUser != nil && rec.AdminUser == nil:
		role, profile = model.RoleStudent, rec.StudentUser
	case rec.AdminUser != nil && rec.StudentUser == nil:
		role, profile = model.RoleAdmin, rec.AdminUser
	default:
		return model.Session{}, false
	}
	if profile.Role != "" && profile.Role != role {
		return model.Session{}, false
	}

	return model.Session{
		Token:   rec.Token,
		Role:    role,
		Profile: *profile,
	}, true
}

// marshalSession はセッションをJSONにエンコードする。
func marshalSession(s model.Session) ([]byte, error) {
	return json.Marshal(newRecord(s))
}

// unmarshalSession はJSONを検証してセッションに戻す。
func unmarshalSession(data []byte) (model.Session, bool) {
	var rec record
	if err := json.Unmarshal(data, &rec); err != nil {
		return model.Session{}, false
	}
	return rec.toSession()
}
