package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// 画面に通知として表示するメッセージと原因カテゴリを含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // ユーザー向けメッセージ
	Category string // カテゴリ: auth, validation, remote, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeInvalidEmail  = "INVALID_EMAIL"
	ErrCodeEmailNotFound = "EMAIL_NOT_FOUND"
	ErrCodeLoginFailed   = "LOGIN_FAILED"
	ErrCodeValidation    = "VALIDATION_FAILED"
	ErrCodeRemoteFailure = "REMOTE_FAILURE"
	ErrCodeUserNotFound  = "USER_NOT_FOUND"
	ErrCodePanelNotFound = "PANEL_NOT_FOUND"
	ErrCodeRateLimited   = "RATE_LIMIT_EXCEEDED"
	ErrCodeInternal      = "INTERNAL_ERROR"
)

// NewInvalidEmailError はメールアドレス形式エラーを生成する。
// 送信前に検出され、ネットワークには到達しない。
func NewInvalidEmailError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidEmail,
		Message:  "Please enter a valid email address.",
		Category: "validation",
		Action:   "Check the email address and try again.",
	}
}

// NewEmailNotFoundError はリモートAPIが404を返した場合のログインエラーを生成する。
func NewEmailNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeEmailNotFound,
		Message:  "Email not found in our records. Please try again.",
		Category: "auth",
		Action:   "Check the email address or ask an administrator to register you.",
	}
}

// NewLoginFailedError はその他の理由によるログイン失敗エラーを生成する。
func NewLoginFailedError() *APIError {
	return &APIError{
		Code:     ErrCodeLoginFailed,
		Message:  "Login failed. Server error!!!.",
		Category: "auth",
		Action:   "Please try again later.",
	}
}

// NewValidationError はフォーム入力の検証エラーを生成する。
func NewValidationError() *APIError {
	return &APIError{
		Code:     ErrCodeValidation,
		Message:  "Please fix the errors before submitting",
		Category: "validation",
		Action:   "Correct the highlighted fields.",
	}
}

// NewRemoteFailureError はリモートAPIが失敗を報告した場合のエラーを生成する。
// messageが空の場合はfallbackを使う。
func NewRemoteFailureError(message, fallback string) *APIError {
	if message == "" {
		message = fallback
	}
	return &APIError{
		Code:     ErrCodeRemoteFailure,
		Message:  message,
		Category: "remote",
		Action:   "Please try again.",
	}
}

// NewUserNotFoundError はユーザーが見つからない場合のエラーを生成する。
func NewUserNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeUserNotFound,
		Message:  "No user found",
		Category: "remote",
		Action:   "Go back to the dashboard and pick another user.",
	}
}

// NewPanelNotFoundError はチャットパネルが見つからない場合のエラーを生成する。
// アイドル期限切れ、または別セッションのパネルを指定した場合に返る。
func NewPanelNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodePanelNotFound,
		Message:  "This chat is no longer available.",
		Category: "validation",
		Action:   "Reload the page to start a new chat.",
	}
}

// NewRateLimitedError はリクエストがレート制限を超えた場合のエラーを生成する。
func NewRateLimitedError() *APIError {
	return &APIError{
		Code:     ErrCodeRateLimited,
		Message:  "Too many requests. Please try again later.",
		Category: "system",
		Action:   "Please wait and retry after the specified time.",
	}
}

// NewInternalError は内部エラーを生成する。詳細はログのみに記録する。
func NewInternalError() *APIError {
	return &APIError{
		Code:     ErrCodeInternal,
		Message:  "Something went wrong. Please try again later.",
		Category: "system",
		Action:   "Please wait a moment and try again.",
	}
}
