// Package guard はルート表示前に評価するガードポリシーを提供する。
// ガードはセッションと対象ポリシーだけを入力とする純粋関数で、ナビゲーションのたびに再評価される。
// 状態遷移はログイン（未認証→Student/Admin）とログアウト（→未認証）でのみ起こり、
// ガード自体は状態を持たない。
package guard

import "github.com/hitoshi/intelitalk/internal/model"

const (
	// LoginPath はログイン画面のパス。
	LoginPath = "/login"
	// StudentHomePath は学生のホーム画面のパス。
	StudentHomePath = "/student"
	// AdminHomePath は管理者のホーム画面のパス。
	AdminHomePath = "/admin"
)

type kind int

const (
	kindRequireRole kind = iota + 1
	kindLoginPage
	kindLogoutTrigger
)

// Policy はルートに適用するガードの種類。
// ゼロ値は無効で、RequireRole、LoginPage、LogoutTriggerのいずれかを使う。
type Policy struct {
	kind kind
	role model.Role
}

// RequireRole は指定Roleのユーザーだけを通すポリシーを返す。
func RequireRole(role model.Role) Policy {
	return Policy{kind: kindRequireRole, role: role}
}

var (
	// LoginPage は認証済みユーザーをRoleのホームへ送り、未認証ユーザーだけを通すポリシー。
	LoginPage = Policy{kind: kindLoginPage}

	// LogoutTrigger は未認証ならログイン画面へ、認証済みならRoleのホームへ送るポリシー。
	// どの分岐でも通過を許可しないため、配下のハンドラーは描画されない。
	// 観測された挙動をそのまま維持している。
	LogoutTrigger = Policy{kind: kindLogoutTrigger}
)

// Name はメトリクスとログに使うポリシー名を返す。
func (p Policy) Name() string {
	switch p.kind {
	case kindRequireRole:
		switch p.role {
		case model.RoleStudent:
			return "student_only"
		case model.RoleAdmin:
			return "admin_only"
		}
		return "role_only"
	case kindLoginPage:
		return "login_page"
	case kindLogoutTrigger:
		return "logout_trigger"
	}
	return "unknown"
}

// Decision はガードの評価結果。
// Allowがfalseの場合はRedirectToへ遷移する。
type Decision struct {
	Allow      bool
	RedirectTo string
}

func allow() Decision { return Decision{Allow: true} }

func redirect(path string) Decision { return Decision{RedirectTo: path} }

// HomeFor はRoleのホーム画面のパスを返す。
// 不明なRoleの場合はログイン画面を返す。
func HomeFor(role model.Role) string {
	switch role {
	case model.RoleStudent:
		return StudentHomePath
	case model.RoleAdmin:
		return AdminHomePath
	}
	return LoginPath
}

// Evaluate はセッションとポリシーから、通過させるかリダイレクトするかを決める。
func Evaluate(s model.Session, p Policy) Decision {
	authenticated := s.IsAuthenticated()

	switch p.kind {
	case kindRequireRole:
		if !authenticated {
			return redirect(LoginPath)
		}
		if s.Role == p.role {
			return allow()
		}
		return redirect(HomeFor(s.Role))

	case kindLoginPage:
		if authenticated && s.Role.Valid() {
			return redirect(HomeFor(s.Role))
		}
		return allow()

	case kindLogoutTrigger:
		if !authenticated {
			return redirect(LoginPath)
		}
		return redirect(HomeFor(s.Role))
	}

	// 未定義のポリシーは閉じる側に倒す
	return redirect(LoginPath)
}
