package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/sociopedia/internal/middleware"
	"github.com/hitoshi/sociopedia/internal/model"
)

// UserServiceInterface はユーザーハンドラーが必要とするサービスインターフェース。
type UserServiceInterface interface {
	// GetByID はアカウントを返す。存在しない場合はACCOUNT_NOT_FOUNDを返す。
	GetByID(ctx context.Context, id string) (*model.Account, error)
}

// UserHandler はユーザープロフィール参照のHTTPハンドラー。
type UserHandler struct {
	service UserServiceInterface
}

// NewUserHandler はUserHandlerを生成する。
func NewUserHandler(service UserServiceInterface) *UserHandler {
	return &UserHandler{
		service: service,
	}
}

// Me はトークンに紐づくアカウントを返す。
// GET /users/me
func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	accountID, err := middleware.AccountIDFromContext(r.Context())
	if err != nil {
		http.Error(w, middleware.MsgNoToken, http.StatusUnauthorized)
		return
	}

	h.writeAccount(w, r, accountID)
}

// GetUser は指定IDのアカウントを返す。
// GET /users/{id}
func (h *UserHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	h.writeAccount(w, r, chi.URLParam(r, "id"))
}

func (h *UserHandler) writeAccount(w http.ResponseWriter, r *http.Request, id string) {
	account, err := h.service.GetByID(r.Context(), id)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(account)
}
