// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/hitoshi/adhyayan/internal/model"
	"github.com/hitoshi/adhyayan/internal/token"
)

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

// claimsContextKey はリクエストコンテキストに検証済みクレームを格納するためのキー。
var claimsContextKey = contextKey("claims")

// TokenVerifier はセッショントークン検証に必要なインターフェース。
// token.Managerの部分集合として定義する。
type TokenVerifier interface {
	Verify(tokenStr string) (*token.Claims, error)
}

// VerifyFailureRecorder は検証失敗メトリクスのインターフェース。nil可。
type VerifyFailureRecorder interface {
	RecordVerifyFailure(kind string)
}

// NewAuthMiddleware はAuthorizationヘッダーのBearerトークンを検証するミドルウェアを返す。
// 検証済みクレームをリクエストコンテキストに注入する。
//
// 失敗は期限切れ・形式不正・署名不正を区別したエラーコードで報告するが、
// HTTPステータスはいずれも401で統一する。クレームはトークンから信頼し、
// リクエストごとのユーザーレコード再取得は行わない。
func NewAuthMiddleware(verifier TokenVerifier, recorder VerifyFailureRecorder) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// 1. AuthorizationヘッダーからBearerトークンを取得
			tokenStr := bearerToken(r)
			if tokenStr == "" {
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewAuthRequiredError())
				return
			}

			// 2. 署名と有効期限を検証
			claims, err := verifier.Verify(tokenStr)
			if err != nil {
				apiErr, kind := classifyVerifyError(err)
				if recorder != nil {
					recorder.RecordVerifyFailure(kind)
				}
				WriteErrorResponse(w, http.StatusUnauthorized, apiErr)
				return
			}

			// 3. 検証済みクレームをコンテキストに注入
			ctx := context.WithValue(r.Context(), claimsContextKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// bearerToken はAuthorizationヘッダーからBearerトークンを抽出する。
// ヘッダー欠落・形式不一致・空トークンはいずれも空文字列を返す。
func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// classifyVerifyError は検証エラーをAPIエラーとメトリクス用の種別に変換する。
func classifyVerifyError(err error) (*model.APIError, string) {
	switch {
	case errors.Is(err, token.ErrTokenExpired):
		return model.NewTokenExpiredError(), "expired"
	case errors.Is(err, token.ErrTokenMalformed):
		return model.NewTokenMalformedError(), "malformed"
	default:
		return model.NewTokenInvalidError(), "invalid"
	}
}

// ClaimsFromContext はリクエストコンテキストから検証済みクレームを取得する。
// 認証ミドルウェアを通過したリクエストでのみ有効。
func ClaimsFromContext(ctx context.Context) (*token.Claims, error) {
	claims, ok := ctx.Value(claimsContextKey).(*token.Claims)
	if !ok || claims == nil {
		return nil, fmt.Errorf("claims not found in context")
	}
	return claims, nil
}

// UserIDFromContext はリクエストコンテキストから認証済みユーザーのUIDを取得する。
func UserIDFromContext(ctx context.Context) (string, error) {
	claims, err := ClaimsFromContext(ctx)
	if err != nil {
		return "", err
	}
	if claims.UID == "" {
		return "", fmt.Errorf("user ID not found in context")
	}
	return claims.UID, nil
}

// ContextWithClaims はコンテキストにクレームを注入する。
// テストやミドルウェア以外のコンテキスト生成で使用する。
func ContextWithClaims(ctx context.Context, claims *token.Claims) context.Context {
	return context.WithValue(ctx, claimsContextKey, claims)
}
