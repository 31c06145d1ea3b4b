package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// PostgresSessionRepo はPostgreSQLを使用したセッションリポジトリ。
// sessionsテーブルにセッションIDごとのシリアライズ済みデータを保持する。
type PostgresSessionRepo struct {
	db  Querier
	now func() time.Time
}

// NewPostgresSessionRepo はPostgresSessionRepoを生成する。
func NewPostgresSessionRepo(db Querier) *PostgresSessionRepo {
	return &PostgresSessionRepo{db: db, now: time.Now}
}

// Get は指定IDのセッションデータを取得する。期限切れの場合はnilを返す。
func (r *PostgresSessionRepo) Get(ctx context.Context, id string) ([]byte, error) {
	var data []byte
	err := r.db.QueryRowContext(ctx,
		`SELECT data FROM sessions WHERE id = $1 AND expires_at > $2`,
		id, r.now(),
	).Scan(&data)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find session: %w", err)
	}

	return data, nil
}

// Set はセッションデータを保存する。同じIDが存在する場合はデータと有効期限を更新する。
func (r *PostgresSessionRepo) Set(ctx context.Context, id string, data []byte, ttl time.Duration) error {
	now := r.now()
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO sessions (id, data, expires_at, created_at)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (id) DO UPDATE SET data = EXCLUDED.data, expires_at = EXCLUDED.expires_at`,
		id, data, now.Add(ttl), now,
	)
	if err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

// Delete は指定IDのセッションを削除する。
func (r *PostgresSessionRepo) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM sessions WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// DeleteExpired は期限切れのセッションを削除する。
// 冪等: 削除対象がない場合は0を返す。
func (r *PostgresSessionRepo) DeleteExpired(ctx context.Context) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM sessions WHERE expires_at <= $1`,
		r.now(),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired sessions: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get deleted session count: %w", err)
	}
	return n, nil
}

// compile-time interface check
var _ SessionRepository = (*PostgresSessionRepo)(nil)
