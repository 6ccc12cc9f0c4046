package qa

import (
	"fmt"
	"strings"
)

// Answer languages
const (
	LangChinese = "zh-TW"
	LangEnglish = "en"
)

var systemPrompts = map[string]string{
	LangChinese: "你是一位親切、有幫助的中文學習助理，請使用繁體中文回答。",
	LangEnglish: "You are a helpful assistant. Please reply only in English.",
}

var failureFormats = map[string]string{
	LangChinese: "❌ 請求失敗（%d）",
	LangEnglish: "❌ Request failed (%d)",
}

// NormalizeLanguage maps a language code or display name to a supported
// answer language. Anything unrecognized is Traditional Chinese.
func NormalizeLanguage(lang string) string {
	switch strings.ToLower(strings.TrimSpace(lang)) {
	case "en", "en-us", "en-gb", "english":
		return LangEnglish
	default:
		return LangChinese
	}
}

// SystemPrompt returns the fixed instruction for an answer language
func SystemPrompt(lang string) string {
	return systemPrompts[NormalizeLanguage(lang)]
}

// FailureText is shown in place of an answer when the inference service rejects a request
func FailureText(lang string, statusCode int) string {
	return fmt.Sprintf(failureFormats[NormalizeLanguage(lang)], statusCode)
}
