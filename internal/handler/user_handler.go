package handler

import (
	"log/slog"
	"net/http"

	"github.com/hitoshi/adhyayan/internal/middleware"
	"github.com/hitoshi/adhyayan/internal/model"
)

// UserHandler はユーザー情報のHTTPハンドラー。
type UserHandler struct {
	service AuthServiceInterface
}

// NewUserHandler はUserHandlerを生成する。
func NewUserHandler(service AuthServiceInterface) *UserHandler {
	return &UserHandler{
		service: service,
	}
}

// Profile は認証済みユーザーのプロフィールを返す。
// ユーザーレコードが永続化されていない場合はトークンのクレームから復元される。
// GET /api/user/profile
func (h *UserHandler) Profile(w http.ResponseWriter, r *http.Request) {
	claims, err := middleware.ClaimsFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewAuthRequiredError())
		return
	}

	user, err := h.service.GetProfile(r.Context(), claims)
	if err != nil {
		slog.Error("failed to get profile", slog.String("error", err.Error()))
		middleware.WriteInternalServerError(w)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"user": newUserResponse(user),
	})
}
