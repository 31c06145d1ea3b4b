package api

import (
	"context"
	"net/http"

	"github.com/hitoshi/intelitalk/internal/model"
)

// LoginResponse はPOST /loginのレスポンス。
type LoginResponse struct {
	Token string     `json:"token"`
	User  model.User `json:"user"`
}

// Login は資格情報を送信し、トークンとユーザー情報を取得する。
// POST /login {email, password}
func (c *Client) Login(ctx context.Context, email, password string) (*LoginResponse, error) {
	var resp LoginResponse
	err := c.do(ctx, request{
		endpoint: "login",
		method:   http.MethodPost,
		path:     "/login",
		body: map[string]string{
			"email":    email,
			"password": password,
		},
	}, &resp)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// Logout はリモートのセッションを破棄する。
// POST /logout
func (c *Client) Logout(ctx context.Context, token string) error {
	return c.do(ctx, request{
		endpoint: "logout",
		method:   http.MethodPost,
		path:     "/logout",
		token:    token,
	}, nil)
}
