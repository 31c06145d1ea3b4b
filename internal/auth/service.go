// Package auth はリモートAPIに対するログイン、ログアウト、認証状態の判定を提供する。
package auth

import (
	"context"
	"log/slog"

	"github.com/hitoshi/intelitalk/internal/api"
	"github.com/hitoshi/intelitalk/internal/form"
	"github.com/hitoshi/intelitalk/internal/guard"
	"github.com/hitoshi/intelitalk/internal/model"
)

// ログイン結果の分類。
const (
	OutcomeSuccess      = "success"
	OutcomeInvalidEmail = "invalid_email"
	OutcomeNotFound     = "email_not_found"
	OutcomeFailed       = "failed"
)

// RemoteAuth はログインとログアウトに必要なリモートAPIのインターフェース。
// api.Clientが満たす。
type RemoteAuth interface {
	Login(ctx context.Context, email, password string) (*api.LoginResponse, error)
	Logout(ctx context.Context, token string) error
}

// LoginRecorder はログイン結果を記録するインターフェース。
// metrics.Collectorが実装する。
type LoginRecorder interface {
	RecordLogin(outcome string)
}

// LoginResult はログイン成功時の結果。
// 呼び出し元はSessionをStoreに書き込み、RedirectToへ遷移させる。
type LoginResult struct {
	Session    model.Session
	RedirectTo string
	Notice     string
}

// Service は認証に関するビジネスロジックを提供する。
type Service struct {
	remote   RemoteAuth
	recorder LoginRecorder
	logger   *slog.Logger
}

// NewService はServiceを生成する。recorderはnilでもよい。
func NewService(remote RemoteAuth, recorder LoginRecorder, logger *slog.Logger) *Service {
	return &Service{
		remote:   remote,
		recorder: recorder,
		logger:   logger,
	}
}

// Login は資格情報をリモートAPIに送信し、新しいセッションを返す。
// メールアドレスの形式が不正な場合はリモートAPIを呼び出さない。
// 失敗時は画面表示用の*model.APIErrorを返す。リトライは行わない。
func (s *Service) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	if !form.ValidEmail(email) {
		s.record(OutcomeInvalidEmail)
		return nil, model.NewInvalidEmailError()
	}

	resp, err := s.remote.Login(ctx, email, password)
	if err != nil {
		if api.IsNotFound(err) {
			s.record(OutcomeNotFound)
			return nil, model.NewEmailNotFoundError()
		}
		s.logger.Error("login request failed",
			slog.String("error", err.Error()),
		)
		s.record(OutcomeFailed)
		return nil, model.NewLoginFailedError()
	}

	sess := model.Session{
		Token:   resp.Token,
		Role:    resp.User.Role,
		Profile: resp.User,
	}
	if !sess.Valid() {
		s.logger.Error("login response missing token or known role",
			slog.String("role", string(resp.User.Role)),
			slog.Bool("has_token", resp.Token != ""),
		)
		s.record(OutcomeFailed)
		return nil, model.NewLoginFailedError()
	}

	s.record(OutcomeSuccess)
	return &LoginResult{
		Session:    sess,
		RedirectTo: guard.HomeFor(sess.Role),
		Notice:     noticeFor(sess.Role),
	}, nil
}

// Logout はリモートのログアウトをベストエフォートで呼び出す。
// 失敗してもエラーは返さない。呼び出し元は結果に関わらずセッションを削除する。
func (s *Service) Logout(ctx context.Context, sess model.Session) {
	if !sess.IsAuthenticated() {
		return
	}
	if err := s.remote.Logout(ctx, sess.Token); err != nil {
		s.logger.Warn("remote logout failed",
			slog.String("error", err.Error()),
		)
	}
}

// IsAuthenticated はセッションにトークンがあるかどうかを返す。
func IsAuthenticated(sess model.Session) bool {
	return sess.IsAuthenticated()
}

func (s *Service) record(outcome string) {
	if s.recorder != nil {
		s.recorder.RecordLogin(outcome)
	}
}

func noticeFor(role model.Role) string {
	if role == model.RoleAdmin {
		return "Admin Dashboard"
	}
	return "Student Dashboard"
}
