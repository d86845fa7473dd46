package respond

import (
	"regexp"
)

var (
	// 埋め込み・生成 API キーのパターン
	// 注意: 具体的な sk-ant- を先に適用しないと sk- に食われる
	anthropicKeyPattern = regexp.MustCompile(`sk-ant-[a-zA-Z0-9-_]+`)
	// マスク済み文字列（* 入り）に再マッチしないよう英数字のみ
	openaiKeyPattern = regexp.MustCompile(`sk-[a-zA-Z0-9]{10,}`)

	// DSN 内の DB パスワード
	dbPasswordPattern = regexp.MustCompile(`://([^:]+):([^@]+)@`)
)

// SanitizeError はエラーメッセージ中の API キーと DB パスワードを
// マスクして返す。ログに DSN がそのまま落ちるのを防ぐ。
func SanitizeError(err error) string {
	if err == nil {
		return ""
	}

	msg := err.Error()

	msg = anthropicKeyPattern.ReplaceAllString(msg, "sk-ant-****")
	msg = openaiKeyPattern.ReplaceAllString(msg, "sk-****")

	msg = dbPasswordPattern.ReplaceAllString(msg, "://$1:****@")

	return msg
}
