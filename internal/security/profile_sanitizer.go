// Package security はアプリケーションのセキュリティ機能を提供する。
//
// ProfileSanitizer は登録フォームから受け取ったプロフィール文字列から
// HTMLマークアップを除去し、プレーンテキストとして保存できる形にする。
package security

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// TextSanitizer はプロフィール文字列のサニタイズ機能のインターフェースを定義する。
type TextSanitizer interface {
	// SanitizeText は全てのタグを除去したプレーンテキストを返す。
	// script, styleタグは中身ごと除去する。前後の空白は取り除く。
	SanitizeText(raw string) string
}

// profileSanitizer はTextSanitizerの実装。
// bluemondayのポリシーは並行利用に対して安全。
type profileSanitizer struct {
	policy *bluemonday.Policy
}

// NewProfileSanitizer はタグを一切許可しないStrictPolicyでサニタイザーを生成する。
func NewProfileSanitizer() TextSanitizer {
	return &profileSanitizer{
		policy: bluemonday.StrictPolicy(),
	}
}

// SanitizeText はタグを除去し、bluemondayがエスケープした実体参照を元の文字に戻す。
// 出力先（JSON/React）で改めてエスケープされるため、保存値はエスケープしない。
func (s *profileSanitizer) SanitizeText(raw string) string {
	if raw == "" {
		return ""
	}
	return strings.TrimSpace(html.UnescapeString(s.policy.Sanitize(raw)))
}
