package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"mindmix/internal/auth"
	"mindmix/internal/qa"
	"mindmix/internal/session"
	"mindmix/internal/web"
)

const (
	modeLogin  = "login"
	modeSignup = "signup"
	modeOAuth  = "oauth"
)

// handleIndex reconciles tokens in the URL, then shows the gate or the Q&A page
func (d *Dependencies) handleIndex(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	lang := language(r)
	text := web.TextFor(lang)

	out := d.Reconciler.Reconcile(r.Context(), sess, r.URL.Query())
	if out.Created {
		d.setSessionCookie(w, out.Session)
	}
	if out.Err != nil {
		d.setFlash(w, web.Flash{Kind: "warning", Message: text.T("restore_failed", out.Err.Error())})
	}
	if out.Redirect {
		target := "/"
		if len(out.Query) > 0 {
			target += "?" + out.Query.Encode()
		}
		http.Redirect(w, r, target, http.StatusSeeOther)
		return
	}

	flashes := d.popFlash(w, r)
	if out.Session == nil {
		d.renderGate(w, r, http.StatusOK, r.URL.Query().Get("mode"), "", flashes...)
		return
	}

	d.renderApp(w, r, http.StatusOK, out.Session, appForm{
		Subject:        r.URL.Query().Get("subject"),
		AnswerLanguage: lang,
	}, nil, flashes...)
}

func (d *Dependencies) renderGate(w http.ResponseWriter, r *http.Request, status int, mode, email string, flashes ...web.Flash) {
	lang := language(r)
	switch mode {
	case modeSignup, modeOAuth:
	default:
		mode = modeLogin
	}

	page := web.GatePage{
		Lang:      lang,
		Languages: web.Languages(),
		Text:      web.TextFor(lang),
		Mode:      mode,
		Email:     email,
		OAuthURL:  d.oauthURL(),
		Flashes:   flashes,
	}
	if err := d.Renderer.Render(w, status, "gate", page); err != nil {
		d.Logger.Error("failed to render gate", zap.Error(err))
	}
}

func (d *Dependencies) oauthURL() string {
	if !d.Config.OAuthEnabled() {
		return ""
	}
	return d.Auth.AuthorizeURL(d.Config.Supabase.OAuthProvider, d.Config.AppURL+"/auth/callback")
}

type appForm struct {
	Subject        string
	Task           string
	Question       string
	AnswerLanguage string
}

func (d *Dependencies) renderApp(w http.ResponseWriter, r *http.Request, status int, sess *session.Session, form appForm, answer *qa.Answer, flashes ...web.Flash) {
	lang := language(r)
	text := web.TextFor(lang)
	table := d.QA.Prompts()

	if !table.Has(form.Subject, form.Task) {
		if len(table.Tasks(form.Subject)) == 0 {
			form.Subject = table.Subjects()[0]
		}
		if form.Task == "" || !table.Has(form.Subject, form.Task) {
			form.Task = table.Tasks(form.Subject)[0]
		}
	}

	page := web.AppPage{
		Lang:           lang,
		Languages:      web.Languages(),
		Text:           text,
		Email:          sess.Email,
		Subjects:       table.All(),
		Subject:        form.Subject,
		Task:           form.Task,
		Question:       form.Question,
		AnswerLanguage: web.NormalizeLang(form.AnswerLanguage),
		Answer:         answer,
		Flashes:        flashes,
	}

	usage, err := d.QA.Usage(r.Context(), sess)
	if err != nil {
		d.Logger.Error("failed to load usage", zap.String("user_id", sess.UserID), zap.Error(err))
	} else {
		page.Usage = usage
	}

	history, err := d.QA.History(r.Context(), sess)
	if err != nil {
		d.Logger.Error("failed to load history", zap.String("user_id", sess.UserID), zap.Error(err))
		page.Flashes = append(page.Flashes, web.Flash{Kind: "error", Message: text.T("internal_error")})
	} else {
		page.History = history
	}

	if err := d.Renderer.Render(w, status, "app", page); err != nil {
		d.Logger.Error("failed to render app", zap.Error(err))
	}
}

func (d *Dependencies) handleLogin(w http.ResponseWriter, r *http.Request) {
	text := web.TextFor(language(r))
	email := strings.TrimSpace(r.PostFormValue("email"))
	password := r.PostFormValue("password")

	if email == "" || password == "" {
		d.renderGate(w, r, http.StatusBadRequest, modeLogin, email, web.Flash{Kind: "warning", Message: text.T("login_empty")})
		return
	}

	allowed, err := d.Throttle.Allow(r.Context(), clientIP(r))
	if err != nil {
		// a broken throttle must not lock everyone out
		d.Logger.Error("login throttle failed", zap.Error(err))
		allowed = true
	}
	if !allowed {
		d.renderGate(w, r, http.StatusTooManyRequests, modeLogin, email, web.Flash{Kind: "warning", Message: text.T("throttled")})
		return
	}

	authSession, err := d.Auth.SignInWithPassword(r.Context(), email, password)
	if err != nil {
		d.Logger.Info("sign-in rejected", zap.Error(err))
		status := http.StatusBadGateway
		if errors.Is(err, auth.ErrInvalidCredentials) {
			status = http.StatusUnauthorized
		}
		d.renderGate(w, r, status, modeLogin, email, web.Flash{Kind: "error", Message: text.T("login_failed", err.Error())})
		return
	}

	sess := session.New(authSession, timeNow(), d.Config.Session.TTL)
	if err := d.Sessions.Save(r.Context(), sess); err != nil {
		d.Logger.Error("failed to save session", zap.String("user_id", sess.UserID), zap.Error(err))
		d.renderGate(w, r, http.StatusInternalServerError, modeLogin, email, web.Flash{Kind: "error", Message: text.T("login_failed", text.T("internal_error"))})
		return
	}

	if err := d.Throttle.Reset(r.Context(), clientIP(r)); err != nil {
		d.Logger.Warn("failed to reset login throttle", zap.Error(err))
	}

	d.Logger.Info("signed in", zap.String("user_id", sess.UserID))
	d.setSessionCookie(w, sess)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (d *Dependencies) handleSignup(w http.ResponseWriter, r *http.Request) {
	text := web.TextFor(language(r))
	email := strings.TrimSpace(r.PostFormValue("email"))
	password := r.PostFormValue("password")
	confirm := r.PostFormValue("confirm")

	if email == "" || password == "" || confirm == "" {
		d.renderGate(w, r, http.StatusBadRequest, modeSignup, email, web.Flash{Kind: "warning", Message: text.T("signup_empty")})
		return
	}
	if password != confirm {
		d.renderGate(w, r, http.StatusBadRequest, modeSignup, email, web.Flash{Kind: "warning", Message: text.T("password_mismatch")})
		return
	}

	user, err := d.Auth.SignUp(r.Context(), email, password)
	if err != nil {
		d.Logger.Info("sign-up rejected", zap.Error(err))
		status := http.StatusBadGateway
		if errors.Is(err, auth.ErrInvalidCredentials) {
			status = http.StatusBadRequest
		}
		d.renderGate(w, r, status, modeSignup, email, web.Flash{Kind: "error", Message: text.T("signup_failed", err.Error())})
		return
	}

	d.Logger.Info("signed up", zap.String("user_id", user.ID))
	d.renderGate(w, r, http.StatusOK, modeLogin, email, web.Flash{Kind: "success", Message: text.T("signup_success")})
}

func (d *Dependencies) handleOAuth(w http.ResponseWriter, r *http.Request) {
	d.renderGate(w, r, http.StatusOK, modeOAuth, "")
}

func (d *Dependencies) handleCallback(w http.ResponseWriter, r *http.Request) {
	lang := language(r)
	page := web.CallbackPage{Lang: lang, Text: web.TextFor(lang)}
	if err := d.Renderer.Render(w, http.StatusOK, "callback", page); err != nil {
		d.Logger.Error("failed to render callback", zap.Error(err))
	}
}

func (d *Dependencies) handleLogout(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	if sess != nil {
		if err := d.Auth.SignOut(r.Context(), sess.AccessToken); err != nil {
			d.Logger.Debug("sign-out failed", zap.String("user_id", sess.UserID), zap.Error(err))
		}
		if err := d.Sessions.Delete(r.Context(), sess.ID); err != nil {
			d.Logger.Error("failed to delete session", zap.String("user_id", sess.UserID), zap.Error(err))
		}
		d.Logger.Info("signed out", zap.String("user_id", sess.UserID))
	}
	d.clearSessionCookie(w)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (d *Dependencies) handleAsk(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	if sess == nil {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	text := web.TextFor(language(r))
	form := appForm{
		Subject:        r.PostFormValue("subject"),
		Task:           r.PostFormValue("task"),
		Question:       r.PostFormValue("question"),
		AnswerLanguage: r.PostFormValue("answer_language"),
	}

	answer, err := d.QA.Submit(r.Context(), sess, qa.SubmitRequest{
		Subject:        form.Subject,
		Task:           form.Task,
		Question:       form.Question,
		AnswerLanguage: form.AnswerLanguage,
	})
	if err != nil {
		status, flash := d.submitFailure(text, err, answer)
		d.renderApp(w, r, status, sess, form, answer, flash)
		return
	}

	if !answer.Failed {
		form.Question = ""
	}
	d.renderApp(w, r, http.StatusOK, sess, form, answer)
}

// submitFailure maps a Submit error to a status and a message.
// An answer returned alongside an error was generated but not saved.
func (d *Dependencies) submitFailure(text web.Text, err error, answer *qa.Answer) (int, web.Flash) {
	switch {
	case answer != nil && errors.Is(err, qa.ErrQuotaExceeded):
		return http.StatusOK, web.Flash{Kind: "warning", Message: text.T("limit_unsaved", d.QA.Limit())}
	case answer != nil:
		return http.StatusOK, web.Flash{Kind: "warning", Message: text.T("save_failed")}
	case errors.Is(err, qa.ErrQuotaExceeded):
		return http.StatusTooManyRequests, web.Flash{Kind: "warning", Message: text.T("limit", d.QA.Limit())}
	case errors.Is(err, qa.ErrEmptyQuestion):
		return http.StatusBadRequest, web.Flash{Kind: "warning", Message: text.T("question_empty")}
	case errors.Is(err, qa.ErrUnknownPrompt):
		return http.StatusBadRequest, web.Flash{Kind: "warning", Message: text.T("unknown_prompt")}
	case errors.Is(err, qa.ErrInferenceUnavailable):
		return http.StatusBadGateway, web.Flash{Kind: "error", Message: text.T("inference_unavailable")}
	case errors.Is(err, qa.ErrUnauthenticated):
		return http.StatusUnauthorized, web.Flash{Kind: "warning", Message: text.T("internal_error")}
	default:
		d.Logger.Error("submit failed", zap.Error(err))
		return http.StatusInternalServerError, web.Flash{Kind: "error", Message: text.T("internal_error")}
	}
}

func (d *Dependencies) handleLang(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     langCookie,
		Value:    web.NormalizeLang(r.URL.Query().Get("l")),
		Path:     "/",
		MaxAge:   365 * 24 * 60 * 60,
		HttpOnly: true,
		Secure:   d.Config.Session.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, "/", http.StatusSeeOther)
}
