// Package chat はチャットパネル（質問の送信、回答の追記、履歴のプリロード）を提供する。
//
// パネルは画面のマウントごとに1つ作られ、メッセージ列は挿入順のみで管理される。
// 送信同士の排他は行わない。同じパネルへの送信が並行に進むことを許し、
// メッセージ列への追記だけを直列化する。
package chat

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/hitoshi/intelitalk/internal/api"
	"github.com/hitoshi/intelitalk/internal/model"
)

// 画面に表示する固定メッセージ。
const (
	GreetingMessage  = "Hello! How can I assist you today?"
	TroubleMessage   = "Sorry, I'm having trouble processing your request right now."
	ConnectMessage   = "Sorry, I'm unable to connect to the server right now. Please try again later."
	noUserIDLogEntry = "no user ID found"
)

// Variant はパネルの種類。
type Variant string

const (
	VariantGuest   Variant = "guest"
	VariantStudent Variant = "student"
)

// 送信結果の分類。
const (
	OutcomeAnswered       = "answered"
	OutcomeStatusError    = "status_error"
	OutcomeTransportError = "transport_error"
)

// Asker は質問をリモートのQ&Aエンドポイントに送り、回答テキストを返す。
type Asker interface {
	Ask(ctx context.Context, question string) (string, error)
}

// AskerFunc は関数をAskerとして使うためのアダプタ。
type AskerFunc func(ctx context.Context, question string) (string, error)

// Ask はf(ctx, question)を呼び出す。
func (f AskerFunc) Ask(ctx context.Context, question string) (string, error) {
	return f(ctx, question)
}

// HistoryLoader は指定ユーザーの過去の質問と回答を返す。
type HistoryLoader interface {
	History(ctx context.Context, userID string) ([]model.HistoryEntry, error)
}

// HistoryLoaderFunc は関数をHistoryLoaderとして使うためのアダプタ。
type HistoryLoaderFunc func(ctx context.Context, userID string) ([]model.HistoryEntry, error)

// History はf(ctx, userID)を呼び出す。
func (f HistoryLoaderFunc) History(ctx context.Context, userID string) ([]model.HistoryEntry, error) {
	return f(ctx, userID)
}

// SubmissionRecorder は送信結果を記録するインターフェース。
// metrics.Collectorが実装する。
type SubmissionRecorder interface {
	RecordChatSubmission(variant, outcome string)
}

// Panel は1回のマウントに属するチャットのメッセージ列。
type Panel struct {
	id       string
	owner    string
	variant  Variant
	asker    Asker
	recorder SubmissionRecorder
	logger   *slog.Logger
	now      func() time.Time

	mu       sync.Mutex
	messages []model.ChatMessage
	lastUsed time.Time
}

// NewPanel は空のPanelを生成する。recorderはnilでもよい。
func NewPanel(id, owner string, variant Variant, asker Asker, recorder SubmissionRecorder, logger *slog.Logger) *Panel {
	return &Panel{
		id:       id,
		owner:    owner,
		variant:  variant,
		asker:    asker,
		recorder: recorder,
		logger:   logger,
		now:      time.Now,
		lastUsed: time.Now(),
	}
}

// ID はパネルIDを返す。
func (p *Panel) ID() string { return p.id }

// Variant はパネルの種類を返す。
func (p *Panel) Variant() Variant { return p.variant }

// Submit は質問を送信し、ユーザーのメッセージとアシスタントの回答を順に追記する。
// 回答の取得に失敗した場合もエラーは返さず、固定のフォールバックメッセージを追記する。
// 空白のみの質問は無視し、何も追記せずにfalseを返す。
// 戻り値は追記したアシスタントのメッセージ。
func (p *Panel) Submit(ctx context.Context, question string) (model.ChatMessage, bool) {
	if strings.TrimSpace(question) == "" {
		return model.ChatMessage{}, false
	}

	p.append(model.ChatMessage{Text: question, Sender: model.SenderUser})

	reply, outcome := p.ask(ctx, question)
	p.append(reply)

	if p.recorder != nil {
		p.recorder.RecordChatSubmission(string(p.variant), outcome)
	}
	return reply, true
}

// ask はAskerを呼び出し、失敗時はフォールバックメッセージに置き換える。
func (p *Panel) ask(ctx context.Context, question string) (model.ChatMessage, string) {
	answer, err := p.asker.Ask(ctx, question)
	if err == nil {
		return model.ChatMessage{Text: answer, Sender: model.SenderAssistant}, OutcomeAnswered
	}

	var statusErr *api.StatusError
	if errors.As(err, &statusErr) {
		p.logger.Warn("chat answer request rejected",
			slog.String("panel_id", p.id),
			slog.String("variant", string(p.variant)),
			slog.Int("http_status", statusErr.StatusCode),
		)
		return model.ChatMessage{Text: TroubleMessage, Sender: model.SenderAssistant}, OutcomeStatusError
	}

	// サーバーには到達できたが応答が読めない場合も接続失敗とは区別する
	var decodeErr *api.DecodeError
	var businessErr *api.BusinessError
	if errors.As(err, &decodeErr) || errors.As(err, &businessErr) {
		p.logger.Warn("chat answer response unusable",
			slog.String("panel_id", p.id),
			slog.String("variant", string(p.variant)),
			slog.String("error", err.Error()),
		)
		return model.ChatMessage{Text: TroubleMessage, Sender: model.SenderAssistant}, OutcomeStatusError
	}

	p.logger.Error("chat answer request failed",
		slog.String("panel_id", p.id),
		slog.String("variant", string(p.variant)),
		slog.String("error", err.Error()),
	)
	return model.ChatMessage{Text: ConnectMessage, Sender: model.SenderAssistant}, OutcomeTransportError
}

// Preload は過去の質問と回答を取得し、1組ごとに（user-history, assistant-history）の2件として追記する。
// userIDが空の場合や取得に失敗した場合はログに記録するだけで、何も追記しない。
func (p *Panel) Preload(ctx context.Context, loader HistoryLoader, userID string) {
	if userID == "" {
		p.logger.Warn(noUserIDLogEntry, slog.String("panel_id", p.id))
		return
	}

	entries, err := loader.History(ctx, userID)
	if err != nil {
		p.logger.Error("failed to load chat history",
			slog.String("panel_id", p.id),
			slog.String("error", err.Error()),
		)
		return
	}

	history := make([]model.ChatMessage, 0, len(entries)*2)
	for _, e := range entries {
		history = append(history,
			model.ChatMessage{Text: e.Question, Sender: model.SenderUserHistory},
			model.ChatMessage{Text: e.Answer, Sender: model.SenderAssistantHistory},
		)
	}
	p.append(history...)
}

// Greet は挨拶メッセージを追記する。
func (p *Panel) Greet() {
	p.append(model.ChatMessage{Text: GreetingMessage, Sender: model.SenderAssistant})
}

// Messages はメッセージ列のコピーを返す。
func (p *Panel) Messages() []model.ChatMessage {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]model.ChatMessage, len(p.messages))
	copy(out, p.messages)
	return out
}

func (p *Panel) append(msgs ...model.ChatMessage) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.messages = append(p.messages, msgs...)
	p.lastUsed = p.now()
}

func (p *Panel) touch() {
	p.mu.Lock()
	p.lastUsed = p.now()
	p.mu.Unlock()
}

func (p *Panel) idleSince() time.Time {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastUsed
}
