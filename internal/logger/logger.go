// Package logger はJSON構造化ログの初期化を行う。
package logger

import (
	"io"
	"log/slog"
	"os"
)

// serviceName は全ログ行に付与するサービス名。
const serviceName = "intelitalk"

// Setup はJSON構造化ログのslog.Loggerを生成する。
// 出力レベルはLOG_LEVEL（debug, info, warn, error）で切り替え、未設定や不正値はinfoになる。
func Setup(w io.Writer) *slog.Logger {
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: ParseLevel(os.Getenv("LOG_LEVEL")),
	})
	return slog.New(handler).With(slog.String("service", serviceName))
}

// SetupDefault はSetupのロガーをグローバルロガーに設定する。
// wがnilの場合はos.Stdoutに出力する。
func SetupDefault(w io.Writer) {
	if w == nil {
		w = os.Stdout
	}
	slog.SetDefault(Setup(w))
}

// ParseLevel はレベル名をslog.Levelに変換する。大文字小文字は区別しない。
func ParseLevel(name string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(name)); err != nil {
		return slog.LevelInfo
	}
	return level
}
