package client

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/term"
)

// readPassword はterm.ReadPasswordの差し替え口。テストで端末に触れずに済むようにする。
var readPassword = term.ReadPassword

// Terminal は端末上でフォームを操作するフロントエンド。
// NotifierとNavigatorを実装する。
type Terminal struct {
	in      *bufio.Reader
	out     io.Writer
	stdinFd int
}

// NewTerminal は新しいTerminalを生成する。
// パスワードはstdinFdが端末であればエコーなしで読み込む。
func NewTerminal(in io.Reader, out io.Writer, stdinFd int) *Terminal {
	return &Terminal{
		in:      bufio.NewReader(in),
		out:     out,
		stdinFd: stdinFd,
	}
}

// Notify は通知を出力する。
func (t *Terminal) Notify(message string) {
	fmt.Fprintf(t.out, "! %s\n", message)
}

// Navigate は遷移先を出力する。
func (t *Terminal) Navigate(path string) {
	fmt.Fprintf(t.out, "-> %s\n", path)
}

// Fill は現在のモードに応じて入力を促し、フォームへ反映する。
func (t *Terminal) Fill(f *Form) error {
	switch f.Mode() {
	case ModeRegister:
		d, err := t.promptRegister()
		if err != nil {
			return err
		}
		return f.SetDraft(d)
	default:
		d, err := t.promptLogin()
		if err != nil {
			return err
		}
		return f.SetDraft(d)
	}
}

// ShowErrors はバリデーションエラーをフィールドごとに出力する。
func (t *Terminal) ShowErrors(errs FieldErrors) {
	for field, msg := range errs {
		fmt.Fprintf(t.out, "  %s: %s\n", field, msg)
	}
}

func (t *Terminal) promptLogin() (LoginDraft, error) {
	email, err := t.text("Email")
	if err != nil {
		return LoginDraft{}, err
	}
	pw, err := t.password()
	if err != nil {
		return LoginDraft{}, err
	}
	return LoginDraft{Email: email, Password: pw}, nil
}

func (t *Terminal) promptRegister() (RegisterDraft, error) {
	var d RegisterDraft
	prompts := []struct {
		label string
		dst   *string
	}{
		{"First Name", &d.FirstName},
		{"Last Name", &d.LastName},
		{"Location", &d.Location},
		{"Occupation", &d.Occupation},
		{"Email", &d.Email},
	}
	for _, p := range prompts {
		v, err := t.text(p.label)
		if err != nil {
			return RegisterDraft{}, err
		}
		*p.dst = v
	}

	pw, err := t.password()
	if err != nil {
		return RegisterDraft{}, err
	}
	d.Password = pw

	path, err := t.text("Picture file (empty to skip)")
	if err != nil {
		return RegisterDraft{}, err
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return RegisterDraft{}, fmt.Errorf("画像の読み込みに失敗: %w", err)
		}
		d.Picture = &Picture{Name: filepath.Base(path), Data: data}
	}
	return d, nil
}

// text はプロンプトを出力し、1行読み込む。
// EOFの前に入力があればその行を返す。
func (t *Terminal) text(label string) (string, error) {
	if _, err := fmt.Fprintf(t.out, "%s: ", label); err != nil {
		return "", err
	}
	line, err := t.in.ReadString('\n')
	if err != nil {
		if errors.Is(err, io.EOF) && len(line) > 0 {
			return strings.TrimSpace(line), nil
		}
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// password は端末であればエコーなしで、そうでなければ通常の1行として読み込む。
func (t *Terminal) password() (string, error) {
	if !term.IsTerminal(t.stdinFd) {
		return t.text("Password")
	}
	if _, err := fmt.Fprint(t.out, "Password: "); err != nil {
		return "", err
	}
	pw, err := readPassword(t.stdinFd)
	fmt.Fprintln(t.out)
	if err != nil {
		return "", err
	}
	return string(pw), nil
}
