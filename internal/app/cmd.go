package app

// Command はアプリケーションの起動モードを表す。
type Command string

const (
	// CommandServe はWebサーバーを起動する。
	CommandServe Command = "serve"
	// CommandWorker は期限切れセッションの削除ジョブを起動する。
	CommandWorker Command = "worker"
	// CommandMigrate はセッションテーブルのマイグレーションを適用する。
	CommandMigrate Command = "migrate"
	// CommandHealthcheck は起動中サーバーの /health を確認する。
	// シェルのないdistrolessイメージのHEALTHCHECK用。
	CommandHealthcheck Command = "healthcheck"
)

var knownCommands = map[string]Command{
	string(CommandServe):       CommandServe,
	string(CommandWorker):      CommandWorker,
	string(CommandMigrate):     CommandMigrate,
	string(CommandHealthcheck): CommandHealthcheck,
}

// ParseCommand は先頭の引数をサブコマンドとして解釈する。
// 引数がない場合や未知のコマンドはCommandServeになり、2番目以降の引数は無視する。
func ParseCommand(args []string) Command {
	if len(args) == 0 {
		return CommandServe
	}
	if cmd, ok := knownCommands[args[0]]; ok {
		return cmd
	}
	return CommandServe
}
