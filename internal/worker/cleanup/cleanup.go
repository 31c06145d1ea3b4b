// Package cleanup は期限切れセッションの自動削除ジョブを提供する。
// PostgreSQLバックエンドは読み込み時に期限切れを無視するだけなので、
// 残った行をこのジョブが定期的に削除する。
package cleanup

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// DefaultInterval はジョブの既定の実行間隔。
const DefaultInterval = time.Hour

// ExpiredSessionDeleter は期限切れセッションを削除するインターフェース。
// repository.PostgresSessionRepoが実装する。
type ExpiredSessionDeleter interface {
	DeleteExpired(ctx context.Context) (int64, error)
}

// CleanupJob は期限切れセッションの自動削除ジョブ。
// 冪等な削除処理を保証する。
type CleanupJob struct {
	sessions ExpiredSessionDeleter
	logger   *slog.Logger
	Interval time.Duration
}

// NewCleanupJob は新しいCleanupJobを生成する。
func NewCleanupJob(sessions ExpiredSessionDeleter, logger *slog.Logger) *CleanupJob {
	return &CleanupJob{
		sessions: sessions,
		logger:   logger,
		Interval: DefaultInterval,
	}
}

// Run は期限切れセッションを1回削除する。
// 削除対象がない場合でもエラーにならない。
func (j *CleanupJob) Run(ctx context.Context) error {
	start := time.Now()

	deletedCount, err := j.sessions.DeleteExpired(ctx)
	if err != nil {
		j.logger.Error("session cleanup job failed",
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("session cleanup failed: %w", err)
	}

	j.logger.Info("session cleanup job completed",
		slog.Int64("deleted_count", deletedCount),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)

	return nil
}

// Start は起動直後に1回実行し、以降はIntervalごとに実行する。
// ctxがキャンセルされるまでブロックする。失敗はログに記録して次回に持ち越す。
func (j *CleanupJob) Start(ctx context.Context) {
	_ = j.Run(ctx)

	ticker := time.NewTicker(j.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = j.Run(ctx)
		}
	}
}
