// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"database/sql"
	"time"
)

// Querier はリポジトリが使うSQL操作を抽象化するインターフェース。
// *sql.DB や *sql.Tx を受け付けることができる。
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// SessionRepository はサーバー側セッションデータの永続化インターフェース。
// session.Backendを満たす。
type SessionRepository interface {
	// Get は指定IDのセッションデータを取得する。存在しないか期限切れの場合はnil, nilを返す。
	Get(ctx context.Context, id string) ([]byte, error)
	// Set はセッションデータを保存する。既存のIDは上書きする。
	Set(ctx context.Context, id string, data []byte, ttl time.Duration) error
	// Delete は指定IDのセッションを削除する。存在しなくてもエラーにしない。
	Delete(ctx context.Context, id string) error
	// DeleteExpired は期限切れのセッションを削除し、削除件数を返す。
	DeleteExpired(ctx context.Context) (int64, error)
}
