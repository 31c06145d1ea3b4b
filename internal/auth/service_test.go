package auth

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"testing"

	"github.com/hitoshi/intelitalk/internal/api"
	"github.com/hitoshi/intelitalk/internal/model"
)

// --- モック定義 ---

type mockRemote struct {
	loginFn  func(ctx context.Context, email, password string) (*api.LoginResponse, error)
	logoutFn func(ctx context.Context, token string) error
}

func (m *mockRemote) Login(ctx context.Context, email, password string) (*api.LoginResponse, error) {
	if m.loginFn != nil {
		return m.loginFn(ctx, email, password)
	}
	return nil, nil
}

func (m *mockRemote) Logout(ctx context.Context, token string) error {
	if m.logoutFn != nil {
		return m.logoutFn(ctx, token)
	}
	return nil
}

type mockRecorder struct {
	outcomes []string
}

func (m *mockRecorder) RecordLogin(outcome string) {
	m.outcomes = append(m.outcomes, outcome)
}

// --- compile-time interface checks ---
var _ RemoteAuth = (*mockRemote)(nil)
var _ LoginRecorder = (*mockRecorder)(nil)
var _ RemoteAuth = (*api.Client)(nil)

func newTestService(remote RemoteAuth, recorder LoginRecorder, buf *bytes.Buffer) *Service {
	return NewService(remote, recorder, slog.New(slog.NewJSONHandler(buf, nil)))
}

// --- テスト ---

func TestLogin_Student_ReturnsSessionAndStudentHome(t *testing.T) {
	var buf bytes.Buffer
	recorder := &mockRecorder{}
	remote := &mockRemote{
		loginFn: func(_ context.Context, email, password string) (*api.LoginResponse, error) {
			if email != "rahim@example.com" || password != "secret" {
				t.Errorf("unexpected credentials %q/%q", email, password)
			}
			return &api.LoginResponse{
				Token: "tok-1",
				User:  model.User{ID: "u1", Name: "Rahim", Email: email, Role: model.RoleStudent},
			}, nil
		},
	}
	svc := newTestService(remote, recorder, &buf)

	result, err := svc.Login(context.Background(), "rahim@example.com", "secret")
	if err != nil {
		t.Fatalf("Login returned error: %v", err)
	}

	if result.Session.Token != "tok-1" || result.Session.Role != model.RoleStudent {
		t.Errorf("session = %+v", result.Session)
	}
	if result.Session.Profile.ID != "u1" {
		t.Errorf("profile = %+v", result.Session.Profile)
	}
	if result.RedirectTo != "/student" {
		t.Errorf("RedirectTo = %q, want /student", result.RedirectTo)
	}
	if result.Notice != "Student Dashboard" {
		t.Errorf("Notice = %q", result.Notice)
	}
	if len(recorder.outcomes) != 1 || recorder.outcomes[0] != OutcomeSuccess {
		t.Errorf("outcomes = %v", recorder.outcomes)
	}
}

func TestLogin_Admin_RedirectsToAdminHome(t *testing.T) {
	var buf bytes.Buffer
	remote := &mockRemote{
		loginFn: func(context.Context, string, string) (*api.LoginResponse, error) {
			return &api.LoginResponse{Token: "tok-a", User: model.User{Role: model.RoleAdmin}}, nil
		},
	}
	svc := newTestService(remote, nil, &buf)

	result, err := svc.Login(context.Background(), "admin@example.com", "secret")
	if err != nil {
		t.Fatalf("Login returned error: %v", err)
	}
	if result.RedirectTo != "/admin" || result.Notice != "Admin Dashboard" {
		t.Errorf("result = %+v", result)
	}
}

func TestLogin_InvalidEmail_DoesNotCallRemote(t *testing.T) {
	var buf bytes.Buffer
	recorder := &mockRecorder{}
	remote := &mockRemote{
		loginFn: func(context.Context, string, string) (*api.LoginResponse, error) {
			t.Error("remote login must not be called for an invalid email")
			return nil, nil
		},
	}
	svc := newTestService(remote, recorder, &buf)

	_, err := svc.Login(context.Background(), "not-an-email", "secret")

	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeInvalidEmail {
		t.Fatalf("expected INVALID_EMAIL, got %v", err)
	}
	if apiErr.Message != "Please enter a valid email address." {
		t.Errorf("message = %q", apiErr.Message)
	}
	if len(recorder.outcomes) != 1 || recorder.outcomes[0] != OutcomeInvalidEmail {
		t.Errorf("outcomes = %v", recorder.outcomes)
	}
}

func TestLogin_Failures(t *testing.T) {
	tests := []struct {
		name        string
		resp        *api.LoginResponse
		err         error
		wantCode    string
		wantMessage string
	}{
		{
			name:        "404はメール未登録",
			err:         &api.StatusError{Endpoint: "login", StatusCode: http.StatusNotFound},
			wantCode:    model.ErrCodeEmailNotFound,
			wantMessage: "Email not found in our records. Please try again.",
		},
		{
			name:        "401はログイン失敗",
			err:         &api.StatusError{Endpoint: "login", StatusCode: http.StatusUnauthorized},
			wantCode:    model.ErrCodeLoginFailed,
			wantMessage: "Login failed. Server error!!!.",
		},
		{
			name:        "到達不能はログイン失敗",
			err:         &api.TransportError{Endpoint: "login", Err: errors.New("connection refused")},
			wantCode:    model.ErrCodeLoginFailed,
			wantMessage: "Login failed. Server error!!!.",
		},
		{
			name:        "未知のRoleはログイン失敗",
			resp:        &api.LoginResponse{Token: "tok", User: model.User{Role: "Teacher"}},
			wantCode:    model.ErrCodeLoginFailed,
			wantMessage: "Login failed. Server error!!!.",
		},
		{
			name:        "トークンなしはログイン失敗",
			resp:        &api.LoginResponse{User: model.User{Role: model.RoleStudent}},
			wantCode:    model.ErrCodeLoginFailed,
			wantMessage: "Login failed. Server error!!!.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			remote := &mockRemote{
				loginFn: func(context.Context, string, string) (*api.LoginResponse, error) {
					return tt.resp, tt.err
				},
			}
			svc := newTestService(remote, nil, &buf)

			result, err := svc.Login(context.Background(), "user@example.com", "pw")
			if result != nil {
				t.Errorf("expected nil result, got %+v", result)
			}
			var apiErr *model.APIError
			if !errors.As(err, &apiErr) {
				t.Fatalf("expected *model.APIError, got %v", err)
			}
			if apiErr.Code != tt.wantCode || apiErr.Message != tt.wantMessage {
				t.Errorf("error = %s/%q, want %s/%q", apiErr.Code, apiErr.Message, tt.wantCode, tt.wantMessage)
			}
		})
	}
}

func TestLogout_CallsRemoteWithToken(t *testing.T) {
	var buf bytes.Buffer
	var gotToken string
	remote := &mockRemote{
		logoutFn: func(_ context.Context, token string) error {
			gotToken = token
			return nil
		},
	}
	svc := newTestService(remote, nil, &buf)

	svc.Logout(context.Background(), model.Session{Token: "tok-1", Role: model.RoleStudent})

	if gotToken != "tok-1" {
		t.Errorf("token = %q, want tok-1", gotToken)
	}
}

func TestLogout_RemoteFailureIsSwallowed(t *testing.T) {
	var buf bytes.Buffer
	remote := &mockRemote{
		logoutFn: func(context.Context, string) error {
			return &api.StatusError{Endpoint: "logout", StatusCode: 500}
		},
	}
	svc := newTestService(remote, nil, &buf)

	svc.Logout(context.Background(), model.Session{Token: "tok-1", Role: model.RoleAdmin})

	if !bytes.Contains(buf.Bytes(), []byte("remote logout failed")) {
		t.Errorf("expected a warning log, got %s", buf.String())
	}
}

func TestLogout_Unauthenticated_SkipsRemote(t *testing.T) {
	var buf bytes.Buffer
	remote := &mockRemote{
		logoutFn: func(context.Context, string) error {
			t.Error("remote logout must not be called without a token")
			return nil
		},
	}
	svc := newTestService(remote, nil, &buf)

	svc.Logout(context.Background(), model.Session{})
}

func TestIsAuthenticated(t *testing.T) {
	if IsAuthenticated(model.Session{}) {
		t.Error("empty session must not be authenticated")
	}
	if !IsAuthenticated(model.Session{Token: "t"}) {
		t.Error("session with token must be authenticated")
	}
}
