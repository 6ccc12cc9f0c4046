package web

import (
	"fmt"
	"strings"
)

// Interface languages
const (
	LangChinese = "zh-TW"
	LangEnglish = "en"
)

// Text is the set of interface strings for one language
type Text map[string]string

// T returns the string for key, formatted with args when given
func (t Text) T(key string, args ...interface{}) string {
	s, ok := t[key]
	if !ok {
		return key
	}
	if len(args) == 0 {
		return s
	}
	return fmt.Sprintf(s, args...)
}

var texts = map[string]Text{
	LangChinese: {
		"title":                 "📚 MindMix AI",
		"gate_title":            "🔐 登入或註冊",
		"tab_login":             "登入",
		"tab_signup":            "註冊",
		"tab_oauth":             "Google 登入",
		"login_heading":         "📧 Email 登入",
		"signup_heading":        "🆕 Email 註冊",
		"email":                 "Email",
		"password":              "密碼",
		"confirm":               "再次輸入密碼",
		"login_button":          "登入",
		"signup_button":         "註冊",
		"oauth_button":          "使用 Google 登入",
		"oauth_missing":         "APP_URL 尚未設定",
		"login_empty":           "請輸入 Email 和密碼",
		"signup_empty":          "請完整輸入所有欄位",
		"password_mismatch":     "密碼不一致",
		"signup_success":        "註冊成功，請登入",
		"login_failed":          "登入失敗：%s",
		"signup_failed":         "註冊失敗：%s",
		"restore_failed":        "無法還原登入：%s",
		"throttled":             "嘗試次數過多，請稍後再試",
		"logout":                "登出",
		"ui_language":           "🌐 介面語言",
		"tab_qa":                "🧠 QA",
		"subject":               "選擇科目",
		"task":                  "選擇任務",
		"question":              "輸入你的問題",
		"answer_language":       "選擇 AI 回答語言",
		"submit":                "✏️ 提交",
		"answer":                "✅ AI 回答：",
		"history":               "📜 歷史紀錄",
		"history_empty":         "尚無紀錄",
		"history_question":      "問題：",
		"history_answer":        "回答：",
		"limit":                 "⚠️ 今日提問已達 %d 次上限",
		"usage":                 "今日已提問 %d / %d 次",
		"question_empty":        "請輸入問題",
		"unknown_prompt":        "無效的科目或任務",
		"inference_unavailable": "AI 服務暫時無法使用，請稍後再試",
		"save_failed":           "回答已產生，但無法儲存紀錄",
		"limit_unsaved":         "⚠️ 今日提問已達 %d 次上限，本次回答未儲存",
		"internal_error":        "發生錯誤，請稍後再試",
		"callback_redirecting":  "正在完成登入…",
	},
	LangEnglish: {
		"title":                 "📚 MindMix AI",
		"gate_title":            "🔐 Login or Sign Up",
		"tab_login":             "Login",
		"tab_signup":            "Sign Up",
		"tab_oauth":             "Google Login",
		"login_heading":         "📧 Email Login",
		"signup_heading":        "🆕 Email Sign Up",
		"email":                 "Email",
		"password":              "Password",
		"confirm":               "Confirm Password",
		"login_button":          "Login",
		"signup_button":         "Sign Up",
		"oauth_button":          "Sign in with Google",
		"oauth_missing":         "APP_URL is not configured",
		"login_empty":           "Please enter your email and password",
		"signup_empty":          "Please fill in all fields",
		"password_mismatch":     "Passwords do not match",
		"signup_success":        "Sign-up succeeded, please log in",
		"login_failed":          "Login failed: %s",
		"signup_failed":         "Sign-up failed: %s",
		"restore_failed":        "Could not restore login: %s",
		"throttled":             "Too many attempts, please try again later",
		"logout":                "Logout",
		"ui_language":           "🌐 Interface Language",
		"tab_qa":                "🧠 QA",
		"subject":               "Choose Subject",
		"task":                  "Choose Task",
		"question":              "Enter Your Question",
		"answer_language":       "Select AI Response Language",
		"submit":                "✏️ Submit",
		"answer":                "✅ AI Response:",
		"history":               "📜 History",
		"history_empty":         "No records yet",
		"history_question":      "Question:",
		"history_answer":        "Answer:",
		"limit":                 "⚠️ You reached today's limit of %d questions.",
		"usage":                 "%d / %d questions asked today",
		"question_empty":        "Please enter a question",
		"unknown_prompt":        "Unknown subject or task",
		"inference_unavailable": "The AI service is unavailable, please try again later",
		"save_failed":           "The answer was generated but could not be saved",
		"limit_unsaved":         "⚠️ The daily limit of %d was reached meanwhile, so this answer was not saved.",
		"internal_error":        "Something went wrong, please try again later",
		"callback_redirecting":  "Completing sign-in…",
	},
}

// Languages lists the interface languages in display order
func Languages() []Language {
	return []Language{
		{Code: LangChinese, Name: "繁體中文"},
		{Code: LangEnglish, Name: "English"},
	}
}

// Language is a selectable interface or answer language
type Language struct {
	Code string
	Name string
}

// NormalizeLang maps anything unrecognized to Traditional Chinese
func NormalizeLang(lang string) string {
	switch strings.ToLower(strings.TrimSpace(lang)) {
	case "en", "english":
		return LangEnglish
	default:
		return LangChinese
	}
}

// TextFor returns the interface strings for lang
func TextFor(lang string) Text {
	return texts[NormalizeLang(lang)]
}
