// Package model はドメインモデルを定義する。
package model

// Role はユーザーの種別を表す。
// 表示できる画面と適用されるガードはRoleで決まる。
type Role string

const (
	// RoleStudent は学生ユーザー。
	RoleStudent Role = "Student"
	// RoleAdmin は管理者ユーザー。
	RoleAdmin Role = "Admin"
)

// Valid は既知のRoleかどうかを返す。
func (r Role) Valid() bool {
	return r == RoleStudent || r == RoleAdmin
}

// User はリモートAPIが所有するユーザーレコードを表す。
// クライアントは取得したコピーを表示・編集・削除するだけで、IDを発行しない。
type User struct {
	ID         string `json:"_id"`
	Name       string `json:"name"`
	Email      string `json:"email"`
	Role       Role   `json:"role"`
	Department string `json:"dept"`
	StudentID  string `json:"studentId,omitempty"`
	Avatar     string `json:"avatar,omitempty"`
}

// Session はクライアントが保持する認証情報（トークン、Role、プロフィール）を表す。
// RoleとProfileはTokenがある場合にのみ意味を持つ。
// トークンの有効性や期限はローカルで検証しない。存在すれば認証済みとみなす。
type Session struct {
	Token   string
	Role    Role
	Profile User
}

// IsAuthenticated はトークンが存在するかどうかを返す。
func (s Session) IsAuthenticated() bool {
	return s.Token != ""
}

// Valid はストアに書き込める完全なセッションかどうかを返す。
func (s Session) Valid() bool {
	return s.Token != "" && s.Role.Valid()
}
