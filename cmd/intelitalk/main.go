// Command intelitalk はInteliTalkのWebフロントエンドを起動する。
//
// サブコマンド:
//
//	serve        Webサーバーを起動する（既定）
//	worker       期限切れセッションを定期的に削除する
//	migrate      データベースマイグレーションを適用する
//	healthcheck  起動中サーバーの /health を確認する
package main

import (
	"fmt"
	"os"

	"github.com/hitoshi/intelitalk/internal/app"
)

func main() {
	if err := app.Run(os.Stdout, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "intelitalk: %v\n", err)
		os.Exit(1)
	}
}
