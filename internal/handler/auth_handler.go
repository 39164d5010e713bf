// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/hitoshi/adhyayan/internal/auth"
	"github.com/hitoshi/adhyayan/internal/middleware"
	"github.com/hitoshi/adhyayan/internal/model"
	"github.com/hitoshi/adhyayan/internal/token"
)

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type AuthServiceInterface interface {
	ExchangeIdentity(ctx context.Context, idToken string, claimed model.ClaimedIdentity) (*auth.Result, error)
	GetProfile(ctx context.Context, claims *token.Claims) (*model.User, error)
	Logout(ctx context.Context, claims *token.Claims) error
}

// AuthHandler は認証関連のHTTPハンドラー。
type AuthHandler struct {
	service AuthServiceInterface
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(service AuthServiceInterface) *AuthHandler {
	return &AuthHandler{
		service: service,
	}
}

// googleAuthRequest はIDトークン交換リクエストのボディ。
type googleAuthRequest struct {
	IDToken string                `json:"idToken"`
	User    model.ClaimedIdentity `json:"user"`
}

// userResponse はユーザー情報のAPIレスポンス。
type userResponse struct {
	UID         string `json:"uid"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName"`
	PhotoURL    string `json:"photoURL"`
}

func newUserResponse(u *model.User) userResponse {
	return userResponse{
		UID:         u.GoogleUID,
		Email:       u.Email,
		DisplayName: u.Name,
		PhotoURL:    u.PhotoURL,
	}
}

// Google はGoogleのIDトークンをセッショントークンに交換する。
// POST /api/auth/google
func (h *AuthHandler) Google(w http.ResponseWriter, r *http.Request) {
	// 1. リクエストボディのデコード
	var req googleAuthRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewValidationFailedError("ボディをJSONとして解釈できません"))
		return
	}
	if req.IDToken == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewValidationFailedError("idTokenは必須です"))
		return
	}
	if req.User.UID == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewValidationFailedError("user.uidは必須です"))
		return
	}

	// 2. 交換処理
	result, err := h.service.ExchangeIdentity(r.Context(), req.IDToken, req.User)
	if err != nil {
		slog.Error("identity exchange failed", slog.String("error", err.Error()))
		middleware.WriteInternalServerError(w)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"token":   result.Token,
		"user":    newUserResponse(result.User),
	})
}

// Validate は提示されたセッショントークンの有効性を確認する。
// 認証ミドルウェアを通過した時点でトークンは有効であり、
// クレームから復元したユーザーを返すだけでよい。
// GET /api/auth/validate
func (h *AuthHandler) Validate(w http.ResponseWriter, r *http.Request) {
	claims, err := middleware.ClaimsFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewAuthRequiredError())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"user": userResponse{
			UID:         claims.UID,
			Email:       claims.Email,
			DisplayName: claims.DisplayName,
		},
	})
}

// Logout はログアウトを処理する。
// セッショントークンは自己完結型のため、認証通過後は常に成功を返す。
// POST /api/auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	claims, err := middleware.ClaimsFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewAuthRequiredError())
		return
	}

	if err := h.service.Logout(r.Context(), claims); err != nil {
		slog.Error("logout failed", slog.String("error", err.Error()))
		middleware.WriteInternalServerError(w)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "ログアウトしました",
	})
}

// writeJSON はJSONレスポンスを書き込む。
func writeJSON(w http.ResponseWriter, statusCode int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("failed to encode response body", slog.String("error", err.Error()))
	}
}

// writeAPIErrorResponse は統一エラーフォーマットでエラーレスポンスを書き込む。
func writeAPIErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	middleware.WriteErrorResponse(w, statusCode, apiErr)
}
