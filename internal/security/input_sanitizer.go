// Package security はアプリケーションのセキュリティ機能を提供する。
//
// InputSanitizerService は顧客が入力する自由テキスト（氏名・備考など）を
// サニタイズし、XSS攻撃などのセキュリティリスクから管理画面を保護する。
// bluemondayライブラリの厳格ポリシーで、HTMLタグをすべて除去する。
package security

import (
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// InputSanitizerService は自由入力テキストのサニタイズ機能のインターフェースを定義する。
// 予約の保存前に使用される。
type InputSanitizerService interface {
	// Sanitize は入力テキストからHTMLタグをすべて除去し、前後の空白を取り除いて返す。
	// scriptタグやon*イベント属性を含むあらゆるマークアップが除去される。
	// 空文字列の入力には空文字列を返す。
	// 同一入力に対して常に同一出力を返す（冪等）。
	Sanitize(raw string) string
}

// inputSanitizer はInputSanitizerServiceの実装。
// bluemondayのポリシーを保持し、スレッドセーフにサニタイズ処理を行う。
type inputSanitizer struct {
	policy *bluemonday.Policy
}

// NewInputSanitizer はInputSanitizerServiceの新しいインスタンスを生成する。
// 予約の氏名や備考はプレーンテキストとして扱うため、
// タグを一切許可しないStrictPolicyを使用する。
func NewInputSanitizer() *inputSanitizer {
	return &inputSanitizer{
		policy: bluemonday.StrictPolicy(),
	}
}

// Sanitize は入力テキストからHTMLタグをすべて除去して返す。
func (s *inputSanitizer) Sanitize(raw string) string {
	return strings.TrimSpace(s.policy.Sanitize(raw))
}
