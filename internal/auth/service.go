// Package auth はアカウント登録、ログイン、セッショントークンの発行と検証を提供する。
package auth

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/hitoshi/sociopedia/internal/model"
	"github.com/hitoshi/sociopedia/internal/repository"
	"github.com/hitoshi/sociopedia/internal/security"
	"github.com/hitoshi/sociopedia/internal/storage"
)

// profileCounterMax はviewedProfile/impressionsの初期値の上限（排他）。
const profileCounterMax = 1000

// ServiceConfig は認証サービスの設定。
type ServiceConfig struct {
	MaxUploadSize int64
	// GenericLoginErrors がtrueの場合、未登録メールとパスワード不一致を同じエラーにする。
	GenericLoginErrors bool
}

// PictureUpload は登録時にアップロードされた画像。
type PictureUpload struct {
	Filename string
	Content  io.Reader
}

// LoginResult はログイン成功時のレスポンスボディ。
type LoginResult struct {
	Token string         `json:"token"`
	User  *model.Account `json:"user"`
}

// Service は認証に関するビジネスロジックを提供する。
type Service struct {
	accounts  repository.AccountRepository
	hasher    PasswordHasher
	tokens    *TokenIssuer
	pictures  storage.PictureStore
	sanitizer security.TextSanitizer
	validate  *validator.Validate
	config    ServiceConfig

	now      func() time.Time
	randIntn func(n int) int

	dummyOnce sync.Once
	dummyHash string
}

// NewService はServiceを生成する。
func NewService(
	accounts repository.AccountRepository,
	hasher PasswordHasher,
	tokens *TokenIssuer,
	pictures storage.PictureStore,
	sanitizer security.TextSanitizer,
	config ServiceConfig,
) *Service {
	return &Service{
		accounts:  accounts,
		hasher:    hasher,
		tokens:    tokens,
		pictures:  pictures,
		sanitizer: sanitizer,
		validate:  validator.New(validator.WithRequiredStructEnabled()),
		config:    config,
		now:       time.Now,
		randIntn:  rand.Intn,
	}
}

// Register は新規アカウントを作成する。
// 画像はDB挿入より先に保存し、挿入に失敗した場合は削除する。
// 削除前にプロセスが停止した場合に残る画像は掃除ジョブが回収する。
func (s *Service) Register(ctx context.Context, in model.RegistrationInput, picture *PictureUpload) (*model.Account, error) {
	in.Email = normalizeEmail(in.Email)
	in.FirstName = s.sanitizer.SanitizeText(in.FirstName)
	in.LastName = s.sanitizer.SanitizeText(in.LastName)
	in.Location = s.sanitizer.SanitizeText(in.Location)
	in.Occupation = s.sanitizer.SanitizeText(in.Occupation)

	if err := s.validateStruct(in); err != nil {
		return nil, err
	}

	existing, err := s.accounts.FindByEmail(ctx, in.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to check email: %w", err)
	}
	if existing != nil {
		return nil, model.NewEmailTakenError()
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		if errors.Is(err, ErrPasswordTooLong) {
			return nil, model.NewValidationError([]string{"password"})
		}
		return nil, err
	}

	now := s.now()
	picturePath := ""
	storedPicture := ""
	if picture != nil {
		name, err := s.storePicture(ctx, picture, now)
		if err != nil {
			return nil, err
		}
		picturePath = name
		storedPicture = name
	} else if strings.TrimSpace(in.PicturePath) != "" {
		picturePath = storage.BaseName(in.PicturePath)
	}

	account := &model.Account{
		ID:            uuid.New().String(),
		FirstName:     in.FirstName,
		LastName:      in.LastName,
		Email:         in.Email,
		PasswordHash:  hash,
		PicturePath:   picturePath,
		Location:      in.Location,
		Occupation:    in.Occupation,
		ViewedProfile: s.randIntn(profileCounterMax),
		Impressions:   s.randIntn(profileCounterMax),
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := s.accounts.Create(ctx, account); err != nil {
		if storedPicture != "" {
			s.discardPicture(ctx, storedPicture)
		}
		if errors.Is(err, model.ErrDuplicateEmail) {
			return nil, model.NewEmailTakenError()
		}
		return nil, fmt.Errorf("failed to create account: %w", err)
	}

	slog.Info("account registered",
		slog.String("account_id", account.ID),
		slog.Bool("has_picture", storedPicture != ""),
	)
	return account, nil
}

func (s *Service) storePicture(ctx context.Context, picture *PictureUpload, now time.Time) (string, error) {
	data, mime, err := storage.ReadPicture(picture.Content, s.config.MaxUploadSize)
	if err != nil {
		var typeErr *storage.UnsupportedTypeError
		switch {
		case errors.As(err, &typeErr):
			return "", model.NewUnsupportedPictureError(typeErr.MIME)
		case errors.Is(err, storage.ErrTooLarge):
			return "", model.NewPictureTooLargeError(s.config.MaxUploadSize)
		default:
			return "", err
		}
	}

	name := storage.StoredName(picture.Filename, now)
	if err := s.pictures.Save(ctx, name, data, mime); err != nil {
		return "", fmt.Errorf("failed to store picture: %w", err)
	}
	return name, nil
}

// discardPicture は登録失敗時に保存済み画像を削除する。
// リクエストがキャンセルされていても削除は実行する。
func (s *Service) discardPicture(ctx context.Context, name string) {
	if err := s.pictures.Delete(context.WithoutCancel(ctx), name); err != nil {
		slog.Warn("failed to discard picture after registration failure",
			slog.String("picture_path", name),
			slog.String("error", err.Error()),
		)
	}
}

// Login はメールアドレスとパスワードを照合し、トークンを発行する。
func (s *Service) Login(ctx context.Context, in model.LoginInput) (*LoginResult, error) {
	in.Email = normalizeEmail(in.Email)
	if err := s.validateStruct(in); err != nil {
		return nil, err
	}

	account, err := s.accounts.FindByEmail(ctx, in.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to find account: %w", err)
	}
	if account == nil {
		if s.config.GenericLoginErrors {
			// 応答時間からアカウントの有無を推測されないよう照合処理を行う
			_ = s.hasher.Compare(s.dummyPasswordHash(), in.Password)
			return nil, model.NewInvalidCredentialsError()
		}
		return nil, model.NewUserDoesNotExistError()
	}

	if err := s.hasher.Compare(account.PasswordHash, in.Password); err != nil {
		if errors.Is(err, ErrPasswordMismatch) {
			return nil, model.NewInvalidCredentialsError()
		}
		return nil, err
	}

	token, err := s.tokens.Issue(account.ID)
	if err != nil {
		return nil, err
	}

	slog.Info("account logged in", slog.String("account_id", account.ID))
	return &LoginResult{Token: token, User: account}, nil
}

// VerifyToken はトークンを検証してクレームを返す。
func (s *Service) VerifyToken(token string) (*Claims, error) {
	return s.tokens.Verify(token)
}

func (s *Service) dummyPasswordHash() string {
	s.dummyOnce.Do(func() {
		h, err := s.hasher.Hash(uuid.New().String())
		if err == nil {
			s.dummyHash = h
		}
	})
	return s.dummyHash
}

// validateStruct はvalidatorの結果をVALIDATION_FAILEDのAPIErrorに変換する。
func (s *Service) validateStruct(v any) error {
	err := s.validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("failed to validate input: %w", err)
	}
	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, lowerFirst(fe.Field()))
	}
	return model.NewValidationError(fields)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	r := []rune(s)
	r[0] = unicode.ToLower(r[0])
	return string(r)
}
