package app

// Command はアプリケーションの起動モードを表す。
type Command string

const (
	// CommandServe はAPIサーバーモードで起動することを示す。
	CommandServe Command = "serve"
	// CommandWorker は孤立画像の掃除ワーカーとして起動することを示す。
	CommandWorker Command = "worker"
	// CommandMigrate はデータベースマイグレーションを実行することを示す。
	CommandMigrate Command = "migrate"
	// CommandHealthcheck はヘルスチェックを実行することを示す。
	// distroless環境でのDockerヘルスチェック用。
	CommandHealthcheck Command = "healthcheck"
	// CommandLogin は端末からログインすることを示す。
	CommandLogin Command = "login"
	// CommandRegister は端末からアカウントを登録することを示す。
	// 登録に成功するとそのままログインに進む。
	CommandRegister Command = "register"
)

// ParseCommand はコマンドライン引数からサブコマンドを解析する。
// 引数が空またはサポート外のコマンドの場合はCommandServeを返す。
func ParseCommand(args []string) Command {
	if len(args) == 0 {
		return CommandServe
	}

	switch args[0] {
	case "worker":
		return CommandWorker
	case "serve":
		return CommandServe
	case "migrate":
		return CommandMigrate
	case "healthcheck":
		return CommandHealthcheck
	case "login":
		return CommandLogin
	case "register":
		return CommandRegister
	default:
		return CommandServe
	}
}

// IsClient はサーバー設定を必要としない端末クライアント用のコマンドかどうかを返す。
func (c Command) IsClient() bool {
	return c == CommandLogin || c == CommandRegister
}
