// Package api はInteliTalkリモートAPIのクライアントを提供する。
// ログイン、ユーザーCRUD、質問応答、チャット履歴の各エンドポイントを呼び出す。
// リモートAPIは不透明な協調先として扱い、レスポンスのうち画面に必要な項目だけを読む。
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	// maxResponseSize はレスポンスボディの最大読み取りサイズ。
	maxResponseSize = 5 << 20

	userAgent = "InteliTalk-Web/1.0"
)

// CallObserver はAPI呼び出しの結果を記録するインターフェース。
// metrics.Collectorが実装する。
type CallObserver interface {
	ObserveAPICall(endpoint, outcome string, duration time.Duration)
}

// 呼び出し結果の分類。
const (
	OutcomeSuccess   = "success"
	OutcomeStatus    = "status_error"
	OutcomeTransport = "transport_error"
	OutcomeDecode    = "decode_error"
)

// StatusError はリモートAPIが2xx以外のステータスを返したことを表す。
type StatusError struct {
	Endpoint   string
	StatusCode int
	Message    string // レスポンスJSONのmessage（存在する場合）
}

// Error はerrorインターフェースを実装する。
func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: remote API returned status %d: %s", e.Endpoint, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s: remote API returned status %d", e.Endpoint, e.StatusCode)
}

// TransportError はリモートAPIに到達できなかった、または応答を読めなかったことを表す。
type TransportError struct {
	Endpoint string
	Err      error
}

// Error はerrorインターフェースを実装する。
func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: remote API unreachable: %v", e.Endpoint, e.Err)
}

// Unwrap は元のエラーを返す。
func (e *TransportError) Unwrap() error {
	return e.Err
}

// BusinessError はリモートAPIが success: false を返したことを表す。
type BusinessError struct {
	Endpoint string
	Message  string
}

// Error はerrorインターフェースを実装する。
func (e *BusinessError) Error() string {
	return fmt.Sprintf("%s: remote API reported failure: %s", e.Endpoint, e.Message)
}

// DecodeError はリモートAPIが2xxを返したがボディをJSONとして解釈できなかったことを表す。
type DecodeError struct {
	Endpoint string
	Err      error
}

// Error はerrorインターフェースを実装する。
func (e *DecodeError) Error() string {
	return fmt.Sprintf("%s: failed to parse response JSON: %v", e.Endpoint, e.Err)
}

// Unwrap は元のデコードエラーを返す。
func (e *DecodeError) Unwrap() error {
	return e.Err
}

// ErrUserNotFound はユーザー詳細のレスポンスにuserDataが含まれない場合に返す。
var ErrUserNotFound = errors.New("user not found")

// IsNotFound はリモートAPIが404を返したかどうかを判定する。
func IsNotFound(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode == http.StatusNotFound
}

// RemoteMessage はエラーに含まれるリモートAPIのメッセージを返す。
// StatusErrorとBusinessError以外では空文字列を返す。
func RemoteMessage(err error) string {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Message
	}
	var be *BusinessError
	if errors.As(err, &be) {
		return be.Message
	}
	return ""
}

// Client はInteliTalkリモートAPIのクライアント。
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger
	baseURL    string
	observer   CallObserver
}

// NewClient はClientの新しいインスタンスを生成する。
// baseURLはAPIのプレフィックスまで含むURL（例: "https://intelitalk.example.com/api/v1"）。
// observerはnilでもよい。
func NewClient(httpClient *http.Client, logger *slog.Logger, baseURL string, observer CallObserver) *Client {
	return &Client{
		httpClient: httpClient,
		logger:     logger,
		baseURL:    strings.TrimRight(baseURL, "/"),
		observer:   observer,
	}
}

// request は1回のAPI呼び出しの内容。
type request struct {
	endpoint string // メトリクスとログに使う論理名
	method   string
	path     string
	query    url.Values
	token    string
	body     any
}

// do はリクエストを送信し、2xxの場合はレスポンスJSONをoutにデコードする。
// リトライは行わない。
func (c *Client) do(ctx context.Context, req request, out any) error {
	start := time.Now()
	outcome := OutcomeSuccess
	defer func() {
		if c.observer != nil {
			c.observer.ObserveAPICall(req.endpoint, outcome, time.Since(start))
		}
	}()

	// 1. リクエストURL構築
	reqURL := c.baseURL + req.path
	if len(req.query) > 0 {
		reqURL += "?" + req.query.Encode()
	}

	var body io.Reader
	if req.body != nil {
		payload, err := json.Marshal(req.body)
		if err != nil {
			outcome = OutcomeDecode
			return fmt.Errorf("%s: failed to encode request body: %w", req.endpoint, err)
		}
		body = bytes.NewReader(payload)
	}

	// 2. HTTPリクエスト作成
	httpReq, err := http.NewRequestWithContext(ctx, req.method, reqURL, body)
	if err != nil {
		outcome = OutcomeTransport
		return &TransportError{Endpoint: req.endpoint, Err: err}
	}
	httpReq.Header.Set("User-Agent", userAgent)
	httpReq.Header.Set("Accept", "application/json")
	if req.body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if req.token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+req.token)
	}

	// 3. HTTPリクエスト実行
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		outcome = OutcomeTransport
		c.logger.Error("remote API call failed",
			slog.String("endpoint", req.endpoint),
			slog.String("error", err.Error()),
		)
		return &TransportError{Endpoint: req.endpoint, Err: err}
	}
	defer resp.Body.Close()

	// 4. レスポンスボディ読み取り
	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		outcome = OutcomeTransport
		c.logger.Error("failed to read remote API response",
			slog.String("endpoint", req.endpoint),
			slog.String("error", err.Error()),
		)
		return &TransportError{Endpoint: req.endpoint, Err: err}
	}

	// 5. HTTPステータスチェック
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		outcome = OutcomeStatus
		statusErr := &StatusError{
			Endpoint:   req.endpoint,
			StatusCode: resp.StatusCode,
			Message:    extractMessage(raw),
		}
		c.logger.Warn("remote API returned error status",
			slog.String("endpoint", req.endpoint),
			slog.Int("http_status", resp.StatusCode),
		)
		return statusErr
	}

	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}

	// 6. JSONデコード
	if err := json.Unmarshal(raw, out); err != nil {
		outcome = OutcomeDecode
		c.logger.Error("failed to parse remote API response",
			slog.String("endpoint", req.endpoint),
			slog.String("error", err.Error()),
		)
		return &DecodeError{Endpoint: req.endpoint, Err: err}
	}

	return nil
}

// extractMessage はエラーレスポンスのJSONからmessageを取り出す。
func extractMessage(raw []byte) string {
	var body struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		return ""
	}
	return body.Message
}
