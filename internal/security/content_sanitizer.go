// Package security はアプリケーションのセキュリティ機能を提供する。
//
// SyllabusSanitizerService はユーザーが入力・インポートしたシラバステキストを
// サニタイズする。シラバスはLLMプロンプトに埋め込まれ、データベースにも
// 永続化されるため、マークアップを許可リストベースで除去してからプレーン
// テキストとして扱う。bluemondayのStrictPolicyを使用し、タグはすべて除去する。
package security

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// SyllabusSanitizerService はシラバステキストのサニタイズ機能のインターフェース。
type SyllabusSanitizerService interface {
	// Sanitize は入力からHTMLタグを除去し、プレーンテキストを返す。
	Sanitize(input string) string
}

// syllabusSanitizer はSyllabusSanitizerServiceの実装。
type syllabusSanitizer struct {
	policy *bluemonday.Policy
}

// NewSyllabusSanitizer はSyllabusSanitizerServiceの新しいインスタンスを生成する。
func NewSyllabusSanitizer() *syllabusSanitizer {
	return &syllabusSanitizer{
		// シラバスはプレーンテキストとして扱うためタグは一切許可しない
		policy: bluemonday.StrictPolicy(),
	}
}

// Sanitize は入力からHTMLタグを除去し、エンティティを復元した上で
// 前後の空白を取り除いたプレーンテキストを返す。
func (s *syllabusSanitizer) Sanitize(input string) string {
	stripped := s.policy.Sanitize(input)
	// StrictPolicyは&amp;等をエスケープしたまま残すため復元する
	return strings.TrimSpace(html.UnescapeString(stripped))
}

// compile-time interface check
var _ SyllabusSanitizerService = (*syllabusSanitizer)(nil)
