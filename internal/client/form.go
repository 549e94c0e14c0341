package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/hitoshi/sociopedia/internal/model"
)

// Mode はフォームの表示モード。
type Mode string

const (
	ModeLogin    Mode = "login"
	ModeRegister Mode = "register"
)

// HomePath はログイン成功後の遷移先。
const HomePath = "/home"

// バリデーションエラーの表示文言
const (
	MsgRequired     = "required"
	MsgInvalidEmail = "invalid email"
)

// ErrSubmitting は送信中に再度Submitが呼ばれた場合のエラー。
var ErrSubmitting = errors.New("submission already in progress")

// Picture は登録時に添付するプロフィール画像。
type Picture struct {
	Name string
	Data []byte
}

// Draft はフォームの入力状態。LoginDraftとRegisterDraftのいずれか。
type Draft interface {
	Mode() Mode
}

// LoginDraft はログインモードの入力値。
type LoginDraft struct {
	Email    string `form:"email" validate:"required,email"`
	Password string `form:"password" validate:"required"`
}

// Mode はModeLoginを返す。
func (LoginDraft) Mode() Mode { return ModeLogin }

// RegisterDraft は登録モードの入力値。画像も必須とする。
type RegisterDraft struct {
	FirstName  string   `form:"firstName" validate:"required"`
	LastName   string   `form:"lastName" validate:"required"`
	Email      string   `form:"email" validate:"required,email"`
	Password   string   `form:"password" validate:"required"`
	Location   string   `form:"location" validate:"required"`
	Occupation string   `form:"occupation" validate:"required"`
	Picture    *Picture `form:"picture" validate:"required"`
}

// Mode はModeRegisterを返す。
func (RegisterDraft) Mode() Mode { return ModeRegister }

// FieldErrors はフィールド名をキーとするバリデーションエラー。
type FieldErrors map[string]string

// Result はSubmitの結果。
type Result int

const (
	// ResultInvalid は入力エラーでリクエストを送らなかったことを表す。
	ResultInvalid Result = iota
	// ResultFailed はリクエストが失敗し、通知を出したことを表す。
	ResultFailed
	// ResultLoggedIn はログインに成功し、セッションを保存したことを表す。
	ResultLoggedIn
	// ResultRegistered は登録に成功し、ログインモードへ切り替えたことを表す。
	ResultRegistered
)

// Transport はフォームが使うAPI呼び出し。*APIが実装する。
type Transport interface {
	Register(ctx context.Context, d RegisterDraft) (*Response, error)
	Login(ctx context.Context, d LoginDraft) (*Response, error)
}

// SessionStore はログイン結果を保持する外部のセッション状態。
type SessionStore interface {
	SetLogin(user model.Account, token string) error
}

// Navigator は画面遷移を行う。
type Navigator interface {
	Navigate(path string)
}

// Notifier はユーザーへの通知を表示する。
type Notifier interface {
	Notify(message string)
}

// FormDeps はフォームの依存関係を保持する。
type FormDeps struct {
	Transport Transport
	Session   SessionStore
	Navigator Navigator
	Notifier  Notifier
	Logger    *slog.Logger
}

// LoginResponse はPOST /auth/loginの成功レスポンス。
type LoginResponse struct {
	Token string        `json:"token"`
	User  model.Account `json:"user"`
}

// Form はログイン/登録の2モードを持つフォーム。
// モード切り替えは入力状態全体の置き換えで行い、前モードの値を残さない。
type Form struct {
	deps     FormDeps
	validate *validator.Validate

	mu         sync.Mutex
	draft      Draft
	errors     FieldErrors
	submitting bool
}

// NewForm はログインモードの空フォームを生成する。
func NewForm(deps FormDeps) *Form {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		return f.Tag.Get("form")
	})
	return &Form{
		deps:     deps,
		validate: v,
		draft:    LoginDraft{},
		errors:   FieldErrors{},
	}
}

// Draft は現在の入力値を返す。
func (f *Form) Draft() Draft {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.draft
}

// Mode は現在のモードを返す。
func (f *Form) Mode() Mode {
	return f.Draft().Mode()
}

// Errors は直近のバリデーションエラーのコピーを返す。
func (f *Form) Errors() FieldErrors {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(FieldErrors, len(f.errors))
	for k, v := range f.errors {
		out[k] = v
	}
	return out
}

// Submitting は送信中かどうかを返す。
func (f *Form) Submitting() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.submitting
}

// SetDraft は入力値を更新する。現在のモードと異なるDraftは受け付けない。
func (f *Form) SetDraft(d Draft) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if d == nil || d.Mode() != f.draft.Mode() {
		return fmt.Errorf("draft mode does not match form mode %q", f.draft.Mode())
	}
	f.draft = d
	return nil
}

// Toggle はモードを切り替える。入力値とバリデーションエラーは全て破棄する。
func (f *Form) Toggle() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.switchTo(otherMode(f.draft.Mode()))
}

// Reset は現在のモードのまま入力値とエラーを初期化する。
func (f *Form) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.switchTo(f.draft.Mode())
}

func (f *Form) switchTo(m Mode) {
	if m == ModeRegister {
		f.draft = RegisterDraft{}
	} else {
		f.draft = LoginDraft{}
	}
	f.errors = FieldErrors{}
}

func otherMode(m Mode) Mode {
	if m == ModeLogin {
		return ModeRegister
	}
	return ModeLogin
}

// Validate は現在の入力値を検証し、結果をフォームに保持する。
func (f *Form) Validate() FieldErrors {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errors = f.check(f.draft)
	return f.errors
}

func (f *Form) check(d Draft) FieldErrors {
	errs := FieldErrors{}
	err := f.validate.Struct(d)
	if err == nil {
		return errs
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		errs["_"] = err.Error()
		return errs
	}
	for _, fe := range verrs {
		if fe.Tag() == "email" {
			errs[fe.Field()] = MsgInvalidEmail
		} else {
			errs[fe.Field()] = MsgRequired
		}
	}
	return errs
}

// Submit は現在のモードに応じてログインまたは登録を1回だけ実行する。
// 送信中の再呼び出しはErrSubmittingを返す。送信中フラグは全ての終了経路で解除する。
// 失敗は通知で知らせ、自動リトライは行わない。
func (f *Form) Submit(ctx context.Context) (Result, error) {
	f.mu.Lock()
	if f.submitting {
		f.mu.Unlock()
		return ResultInvalid, ErrSubmitting
	}
	f.errors = f.check(f.draft)
	if len(f.errors) > 0 {
		f.mu.Unlock()
		return ResultInvalid, nil
	}
	f.submitting = true
	draft := f.draft
	f.mu.Unlock()

	defer func() {
		f.mu.Lock()
		f.submitting = false
		f.mu.Unlock()
	}()

	switch d := draft.(type) {
	case LoginDraft:
		return f.login(ctx, d), nil
	case RegisterDraft:
		return f.register(ctx, d), nil
	default:
		return ResultInvalid, fmt.Errorf("unknown draft type %T", draft)
	}
}

func (f *Form) login(ctx context.Context, d LoginDraft) Result {
	resp, err := f.deps.Transport.Login(ctx, d)
	if err != nil {
		f.deps.Logger.Error("ログインリクエストに失敗しました", slog.String("error", err.Error()))
		f.notify("An error occurred during login. See console for details.")
		return ResultFailed
	}

	if !resp.OK() {
		f.deps.Logger.Warn("ログインが拒否されました",
			slog.Int("status", resp.StatusCode),
			slog.String("body", string(resp.Body)),
		)
		f.notify(fmt.Sprintf("Login failed (%d). %s", resp.StatusCode, serverMessage(resp)))
		return ResultFailed
	}

	if !resp.IsJSON() {
		f.deps.Logger.Error("ログインレスポンスがJSONではありません",
			slog.String("content_type", resp.ContentType),
		)
		f.notify("Login server returned unexpected response. See console.")
		return ResultFailed
	}

	var lr LoginResponse
	if err := json.Unmarshal(resp.Body, &lr); err != nil || lr.Token == "" {
		f.deps.Logger.Error("ログインレスポンスを解釈できません", slog.String("body", string(resp.Body)))
		f.notify("Login server returned unexpected response. See console.")
		return ResultFailed
	}

	if err := f.deps.Session.SetLogin(lr.User, lr.Token); err != nil {
		f.deps.Logger.Error("セッションの保存に失敗しました", slog.String("error", err.Error()))
		f.notify("An error occurred during login. See console for details.")
		return ResultFailed
	}

	f.Reset()
	f.deps.Navigator.Navigate(HomePath)
	return ResultLoggedIn
}

func (f *Form) register(ctx context.Context, d RegisterDraft) Result {
	resp, err := f.deps.Transport.Register(ctx, d)
	if err != nil {
		f.deps.Logger.Error("登録リクエストに失敗しました", slog.String("error", err.Error()))
		f.notify("An error occurred during registration. See console for details.")
		return ResultFailed
	}

	if !resp.OK() {
		f.deps.Logger.Warn("登録が拒否されました",
			slog.Int("status", resp.StatusCode),
			slog.String("body", string(resp.Body)),
		)
		f.notify(fmt.Sprintf("Registration failed (%d). %s", resp.StatusCode, serverMessage(resp)))
		return ResultFailed
	}

	if !resp.IsJSON() {
		f.deps.Logger.Warn("登録レスポンスがJSONではありません",
			slog.String("content_type", resp.ContentType),
		)
	}

	f.mu.Lock()
	f.switchTo(ModeLogin)
	f.mu.Unlock()
	return ResultRegistered
}

func (f *Form) notify(msg string) {
	if f.deps.Notifier != nil {
		f.deps.Notifier.Notify(strings.TrimSpace(msg))
	}
}

// serverMessage はエラーレスポンスから表示用のメッセージを取り出す。
// msgとmessageの両形式に対応し、取り出せなければ空文字を返す。
func serverMessage(resp *Response) string {
	if !resp.IsJSON() {
		return ""
	}
	var body struct {
		Msg     string `json:"msg"`
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(resp.Body, &body); err != nil {
		return ""
	}
	switch {
	case body.Msg != "":
		return body.Msg
	case body.Message != "":
		return body.Message
	default:
		return body.Error
	}
}
