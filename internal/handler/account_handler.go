package handler

import (
	"context"
	"net/http"

	"github.com/hitoshi/propfolio/internal/middleware"
	"github.com/hitoshi/propfolio/internal/model"
)

// AccountServiceInterface はアカウントハンドラーが必要とするサービスインターフェース。
type AccountServiceInterface interface {
	// Withdraw はセッションユーザーのアカウントを削除する。
	Withdraw(ctx context.Context, session *model.Session) error
}

// AccountHandler はアカウント削除のHTTPハンドラー。
type AccountHandler struct {
	service AccountServiceInterface
	config  AuthHandlerConfig
}

// NewAccountHandler はAccountHandlerを生成する。
func NewAccountHandler(service AccountServiceInterface, config AuthHandlerConfig) *AccountHandler {
	return &AccountHandler{
		service: service,
		config:  config,
	}
}

// Withdraw はアカウントを削除（退会）する。
// DELETE /api/account
//
// プロフィール画像、ユーザーレコード（お気に入り含む）、
// 全セッションの順でカスケード削除し、成功時はセッションCookieを失効させる。
func (h *AccountHandler) Withdraw(w http.ResponseWriter, r *http.Request) {
	session := middleware.SessionFromContext(r.Context())

	if err := h.service.Withdraw(r.Context(), session); err != nil {
		handleServiceError(w, err)
		return
	}

	clearSessionCookie(w, h.config)
	w.WriteHeader(http.StatusNoContent)
}
