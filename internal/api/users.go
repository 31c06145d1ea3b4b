package api

import (
	"context"
	"net/http"
	"net/url"

	"github.com/hitoshi/intelitalk/internal/model"
)

// SignupRequest はPOST /signupのリクエストボディ。
// StudentIDは学生登録時のみ送信する。
type SignupRequest struct {
	Name            string     `json:"name"`
	Email           string     `json:"email"`
	Role            model.Role `json:"role"`
	Password        string     `json:"password"`
	ConfirmPassword string     `json:"confirmPassword"`
	StudentID       string     `json:"studentId,omitempty"`
	Department      string     `json:"dept"`
}

// UserUpdate はPUT /user/{id}のリクエストボディ。
type UserUpdate struct {
	Name       string `json:"name"`
	Email      string `json:"email"`
	Department string `json:"dept"`
	StudentID  string `json:"studentId"`
}

// result は {success, message} 形式の共通レスポンス。
type result struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// Signup は新しいユーザーを登録する。
// POST /signup
// success: false の場合はBusinessErrorを返す。
func (c *Client) Signup(ctx context.Context, token string, req SignupRequest) error {
	var resp result
	if err := c.do(ctx, request{
		endpoint: "signup",
		method:   http.MethodPost,
		path:     "/signup",
		token:    token,
		body:     req,
	}, &resp); err != nil {
		return err
	}
	if !resp.Success {
		return &BusinessError{Endpoint: "signup", Message: resp.Message}
	}
	return nil
}

// ListUsers は全ユーザーを取得する。
// GET /user -> {success, user: [...]}
func (c *Client) ListUsers(ctx context.Context, token string) ([]model.User, error) {
	var resp struct {
		Success bool         `json:"success"`
		Message string       `json:"message"`
		User    []model.User `json:"user"`
	}
	if err := c.do(ctx, request{
		endpoint: "user.list",
		method:   http.MethodGet,
		path:     "/user",
		token:    token,
	}, &resp); err != nil {
		return nil, err
	}
	if !resp.Success || resp.User == nil {
		return nil, &BusinessError{Endpoint: "user.list", Message: resp.Message}
	}
	return resp.User, nil
}

// GetUser は指定IDのユーザーを取得する。
// GET /user/{id} -> {success, userData}
// userDataが含まれない場合はErrUserNotFoundを返す。
func (c *Client) GetUser(ctx context.Context, token, id string) (*model.User, error) {
	var resp struct {
		Success  bool        `json:"success"`
		UserData *model.User `json:"userData"`
	}
	if err := c.do(ctx, request{
		endpoint: "user.get",
		method:   http.MethodGet,
		path:     "/user/" + url.PathEscape(id),
		token:    token,
	}, &resp); err != nil {
		return nil, err
	}
	if !resp.Success || resp.UserData == nil {
		return nil, ErrUserNotFound
	}
	return resp.UserData, nil
}

// UpdateUser は指定IDのユーザー情報を更新する。
// PUT /user/{id}
func (c *Client) UpdateUser(ctx context.Context, token, id string, update UserUpdate) error {
	var resp result
	if err := c.do(ctx, request{
		endpoint: "user.update",
		method:   http.MethodPut,
		path:     "/user/" + url.PathEscape(id),
		token:    token,
		body:     update,
	}, &resp); err != nil {
		return err
	}
	if !resp.Success {
		return &BusinessError{Endpoint: "user.update", Message: resp.Message}
	}
	return nil
}

// DeleteUser は指定IDのユーザーを削除する。
// DELETE /user/{id}
func (c *Client) DeleteUser(ctx context.Context, token, id string) error {
	return c.do(ctx, request{
		endpoint: "user.delete",
		method:   http.MethodDelete,
		path:     "/user/" + url.PathEscape(id),
		token:    token,
	}, nil)
}
