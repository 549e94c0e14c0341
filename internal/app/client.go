package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/hitoshi/sociopedia/internal/client"
	"github.com/hitoshi/sociopedia/internal/config"
	"github.com/hitoshi/sociopedia/internal/logger"
)

// maxFormAttempts は入力エラー時に再入力を促す最大回数。
const maxFormAttempts = 3

// errClientFailed はログイン/登録が失敗した場合のエラー。詳細は通知として出力済み。
var errClientFailed = errors.New("request was not accepted")

// runClient は端末上でログインまたは登録フォームを操作する。
// 登録に成功した場合はフォームがログインモードに切り替わるため、続けてログインを行う。
func runClient(ctx context.Context, cfg *config.ClientConfig, cmd Command, in io.Reader, out io.Writer, stdinFd int) error {
	sessionPath := cfg.SessionFile
	if sessionPath == "" {
		p, err := client.DefaultSessionPath()
		if err != nil {
			return err
		}
		sessionPath = p
	}

	term := client.NewTerminal(in, out, stdinFd)
	form := client.NewForm(client.FormDeps{
		Transport: client.NewAPI(cfg.APIBaseURL, nil),
		Session:   client.NewFileSessionStore(sessionPath),
		Navigator: term,
		Notifier:  term,
		Logger:    logger.SetupWithLevel(os.Stderr, logger.ParseLevel(cfg.LogLevel)),
	})
	if cmd == CommandRegister {
		form.Toggle()
	}

	attempts := 0
	for {
		fmt.Fprintf(out, "== %s ==\n", form.Mode())
		if err := term.Fill(form); err != nil {
			return fmt.Errorf("failed to read input: %w", err)
		}

		result, err := form.Submit(ctx)
		if err != nil {
			return err
		}

		switch result {
		case client.ResultLoggedIn:
			fmt.Fprintf(out, "Logged in. Session saved to %s\n", sessionPath)
			return nil
		case client.ResultRegistered:
			fmt.Fprintln(out, "Registered. Please log in.")
			attempts = 0
		case client.ResultFailed:
			return errClientFailed
		case client.ResultInvalid:
			term.ShowErrors(form.Errors())
			attempts++
			if attempts >= maxFormAttempts {
				return fmt.Errorf("too many invalid attempts")
			}
		}
	}
}
