package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/hitoshi/sociopedia/internal/metrics"
	"github.com/hitoshi/sociopedia/internal/middleware"
	"github.com/hitoshi/sociopedia/internal/model"
)

// writeAPIErrorResponse は統一エラーフォーマットでエラーレスポンスを書き込む。
func writeAPIErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	middleware.WriteErrorResponse(w, statusCode, apiErr)
}

// handleServiceError はサービス層から返されたエラーを適切なHTTPステータスコードに変換する。
func handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		writeAPIErrorResponse(w, mapAPIErrorToHTTPStatus(apiErr), apiErr)
		return
	}

	// APIError以外のエラーは内部サーバーエラーとして扱う
	slog.Error("internal server error",
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.String("error", err.Error()),
	)
	middleware.WriteInternalServerError(w)
}

// mapAPIErrorToHTTPStatus はAPIErrorコードからHTTPステータスコードにマッピングする。
func mapAPIErrorToHTTPStatus(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeValidationFailed, model.ErrCodeInvalidRequestBody, model.ErrCodeUnsupportedPicture:
		return http.StatusBadRequest
	case model.ErrCodeUserDoesNotExist, model.ErrCodeInvalidCredentials:
		return http.StatusBadRequest
	case model.ErrCodePictureTooLarge:
		return http.StatusRequestEntityTooLarge
	case model.ErrCodeEmailTaken:
		return http.StatusConflict
	case model.ErrCodeAccountNotFound:
		return http.StatusNotFound
	case model.ErrCodeRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// outcomeOf はエラーをメトリクスの結果ラベルに変換する。
func outcomeOf(err error) string {
	if err == nil {
		return metrics.OutcomeSuccess
	}
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		return metrics.OutcomeError
	}
	switch apiErr.Code {
	case model.ErrCodeValidationFailed, model.ErrCodeInvalidRequestBody:
		return metrics.OutcomeValidation
	case model.ErrCodeEmailTaken:
		return metrics.OutcomeEmailTaken
	case model.ErrCodeUnsupportedPicture, model.ErrCodePictureTooLarge:
		return metrics.OutcomePictureRejected
	case model.ErrCodeUserDoesNotExist:
		return metrics.OutcomeUnknownUser
	case model.ErrCodeInvalidCredentials:
		return metrics.OutcomeInvalidCredentials
	default:
		return metrics.OutcomeError
	}
}
