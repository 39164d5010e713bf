// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, generation, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeAuthRequired     = "AUTH_REQUIRED"
	ErrCodeTokenExpired     = "TOKEN_EXPIRED"
	ErrCodeTokenMalformed   = "TOKEN_MALFORMED"
	ErrCodeTokenInvalid     = "TOKEN_INVALID"
	ErrCodeValidationFailed = "VALIDATION_FAILED"
	ErrCodeInvalidURL       = "INVALID_URL"
	ErrCodeSSRFBlocked      = "SSRF_BLOCKED"
	ErrCodeFetchFailed      = "FETCH_FAILED"
	ErrCodeGenerationFailed = "GENERATION_FAILED"
	ErrCodeAudioFailed      = "AUDIO_FAILED"
	ErrCodeMindMapNotFound  = "MINDMAP_NOT_FOUND"
	ErrCodeInternal         = "INTERNAL_ERROR"
)

// NewAuthRequiredError は認証必須エラーを生成する。
func NewAuthRequiredError() *APIError {
	return &APIError{
		Code:     ErrCodeAuthRequired,
		Message:  "認証が必要です。",
		Category: "auth",
		Action:   "ログインしてください。",
	}
}

// NewTokenExpiredError はセッショントークン期限切れエラーを生成する。
func NewTokenExpiredError() *APIError {
	return &APIError{
		Code:     ErrCodeTokenExpired,
		Message:  "セッションの有効期限が切れています。",
		Category: "auth",
		Action:   "再度ログインしてください。",
	}
}

// NewTokenMalformedError はトークン形式不正エラーを生成する。
func NewTokenMalformedError() *APIError {
	return &APIError{
		Code:     ErrCodeTokenMalformed,
		Message:  "セッショントークンの形式が不正です。",
		Category: "auth",
		Action:   "再度ログインしてください。",
	}
}

// NewTokenInvalidError はトークン検証失敗エラーを生成する。
func NewTokenInvalidError() *APIError {
	return &APIError{
		Code:     ErrCodeTokenInvalid,
		Message:  "セッショントークンを検証できませんでした。",
		Category: "auth",
		Action:   "再度ログインしてください。",
	}
}

// NewValidationFailedError はリクエストボディ不正エラーを生成する。
func NewValidationFailedError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeValidationFailed,
		Message:  fmt.Sprintf("リクエストが不正です: %s", reason),
		Category: "validation",
		Action:   "入力内容を確認してください。",
	}
}

// NewInvalidURLError は無効なURLエラーを生成する。
func NewInvalidURLError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidURL,
		Message:  fmt.Sprintf("無効なURLです: %s", reason),
		Category: "validation",
		Action:   "正しいURL形式（http:// または https:// で始まるURL）を入力してください。",
	}
}

// NewSSRFBlockedError はSSRFブロックエラーを生成する。
func NewSSRFBlockedError() *APIError {
	return &APIError{
		Code:     ErrCodeSSRFBlocked,
		Message:  "セキュリティポリシーにより、指定されたURLへのアクセスがブロックされました。",
		Category: "validation",
		Action:   "公開されているWebサイトのURLを入力してください。",
	}
}

// NewFetchFailedError はシラバス取得失敗エラーを生成する。
func NewFetchFailedError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeFetchFailed,
		Message:  fmt.Sprintf("URLの取得に失敗しました: %s", reason),
		Category: "validation",
		Action:   "URLが正しいか確認し、しばらく待ってから再度お試しください。",
	}
}

// NewGenerationFailedError はマインドマップ生成失敗エラーを生成する。
func NewGenerationFailedError() *APIError {
	return &APIError{
		Code:     ErrCodeGenerationFailed,
		Message:  "マインドマップの生成に失敗しました。",
		Category: "generation",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewAudioFailedError は音声生成失敗エラーを生成する。
func NewAudioFailedError() *APIError {
	return &APIError{
		Code:     ErrCodeAudioFailed,
		Message:  "ポッドキャスト音声の生成に失敗しました。",
		Category: "generation",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewInternalError は内部サーバーエラーを生成する。
// 詳細はログのみに記録し、ユーザーには一般的なメッセージを返す。
func NewInternalError() *APIError {
	return &APIError{
		Code:     ErrCodeInternal,
		Message:  "内部エラーが発生しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewMindMapNotFoundError はマインドマップ未検出エラーを生成する。
func NewMindMapNotFoundError(id string) *APIError {
	return &APIError{
		Code:     ErrCodeMindMapNotFound,
		Message:  fmt.Sprintf("指定されたマインドマップが見つかりません: %s", id),
		Category: "validation",
		Action:   "マインドマップIDを確認してください。",
	}
}
