package api

import (
	"context"
	"net/http"
	"net/url"

	"github.com/hitoshi/intelitalk/internal/model"
)

// AskGuest はゲスト用の質問応答エンドポイントに質問を送る。
// GET /guest?question=... -> {ans}
func (c *Client) AskGuest(ctx context.Context, question string) (string, error) {
	var resp struct {
		Ans string `json:"ans"`
	}
	if err := c.do(ctx, request{
		endpoint: "guest",
		method:   http.MethodGet,
		path:     "/guest",
		query:    url.Values{"question": {question}},
	}, &resp); err != nil {
		return "", err
	}
	return resp.Ans, nil
}

// AskStudent は学生用の質問応答エンドポイントに質問を送る。
// GET /student?question=... -> {ans: {text}}
func (c *Client) AskStudent(ctx context.Context, token, question string) (string, error) {
	var resp struct {
		Ans struct {
			Text string `json:"text"`
		} `json:"ans"`
	}
	if err := c.do(ctx, request{
		endpoint: "student",
		method:   http.MethodGet,
		path:     "/student",
		query:    url.Values{"question": {question}},
		token:    token,
	}, &resp); err != nil {
		return "", err
	}
	return resp.Ans.Text, nil
}

// History は指定ユーザーの過去の質問と回答を到着順で取得する。
// GET /message/{userId} -> {chats: [{question, answer}]}
func (c *Client) History(ctx context.Context, token, userID string) ([]model.HistoryEntry, error) {
	var resp struct {
		Chats []model.HistoryEntry `json:"chats"`
	}
	if err := c.do(ctx, request{
		endpoint: "message.history",
		method:   http.MethodGet,
		path:     "/message/" + url.PathEscape(userID),
		token:    token,
	}, &resp); err != nil {
		return nil, err
	}
	return resp.Chats, nil
}
