package chat

import (
	"context"

	"github.com/hitoshi/intelitalk/internal/model"
)

// GuestAPI はゲスト用Q&Aエンドポイントの呼び出しに必要なインターフェース。
// api.Clientが満たす。
type GuestAPI interface {
	AskGuest(ctx context.Context, question string) (string, error)
}

// StudentAPI は学生用Q&Aエンドポイントと履歴取得に必要なインターフェース。
// api.Clientが満たす。
type StudentAPI interface {
	AskStudent(ctx context.Context, token, question string) (string, error)
	History(ctx context.Context, token, userID string) ([]model.HistoryEntry, error)
}

// GuestAsker はトークンなしでゲスト用エンドポイントに質問するAskerを返す。
func GuestAsker(client GuestAPI) Asker {
	return AskerFunc(client.AskGuest)
}

// StudentAsker はセッションのトークンを付けて学生用エンドポイントに質問するAskerを返す。
func StudentAsker(client StudentAPI, token string) Asker {
	return AskerFunc(func(ctx context.Context, question string) (string, error) {
		return client.AskStudent(ctx, token, question)
	})
}

// StudentHistory はセッションのトークンを付けて履歴を取得するHistoryLoaderを返す。
func StudentHistory(client StudentAPI, token string) HistoryLoader {
	return HistoryLoaderFunc(func(ctx context.Context, userID string) ([]model.HistoryEntry, error) {
		return client.History(ctx, token, userID)
	})
}
