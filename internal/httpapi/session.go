package httpapi

import (
	"errors"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"mindmix/internal/session"
	"mindmix/internal/web"
)

const (
	langCookie  = "mindmix_lang"
	flashCookie = "mindmix_flash"
)

// sessionHandlerFunc receives the caller's session explicitly; nil means signed out
type sessionHandlerFunc func(w http.ResponseWriter, r *http.Request, sess *session.Session)

// withSession resolves the session cookie before calling h
func (d *Dependencies) withSession(h sessionHandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h(w, r, d.currentSession(w, r))
	})
}

func (d *Dependencies) currentSession(w http.ResponseWriter, r *http.Request) *session.Session {
	c, err := r.Cookie(d.Config.Session.CookieName)
	if err != nil || c.Value == "" {
		return nil
	}

	sess, err := d.Sessions.Get(r.Context(), c.Value)
	if err != nil {
		if !errors.Is(err, session.ErrNotFound) {
			d.Logger.Error("failed to load session", zap.Error(err))
		}
		d.clearSessionCookie(w)
		return nil
	}
	return sess
}

func (d *Dependencies) setSessionCookie(w http.ResponseWriter, sess *session.Session) {
	http.SetCookie(w, &http.Cookie{
		Name:     d.Config.Session.CookieName,
		Value:    sess.ID,
		Path:     "/",
		Expires:  sess.ExpiresAt,
		MaxAge:   int(time.Until(sess.ExpiresAt).Seconds()),
		HttpOnly: true,
		Secure:   d.Config.Session.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (d *Dependencies) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     d.Config.Session.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   d.Config.Session.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

// language returns the interface language chosen with /lang
func language(r *http.Request) string {
	if c, err := r.Cookie(langCookie); err == nil {
		return web.NormalizeLang(c.Value)
	}
	return web.LangChinese
}

// setFlash stores a message shown once on the next rendered page
func (d *Dependencies) setFlash(w http.ResponseWriter, f web.Flash) {
	http.SetCookie(w, &http.Cookie{
		Name:     flashCookie,
		Value:    f.Kind + ":" + url.QueryEscape(f.Message),
		Path:     "/",
		MaxAge:   60,
		HttpOnly: true,
		Secure:   d.Config.Session.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

// popFlash reads and clears the pending flash message
func (d *Dependencies) popFlash(w http.ResponseWriter, r *http.Request) []web.Flash {
	c, err := r.Cookie(flashCookie)
	if err != nil || c.Value == "" {
		return nil
	}
	http.SetCookie(w, &http.Cookie{Name: flashCookie, Value: "", Path: "/", MaxAge: -1, HttpOnly: true, Secure: d.Config.Session.CookieSecure})

	kind, msg, ok := strings.Cut(c.Value, ":")
	if !ok {
		return nil
	}
	msg, err = url.QueryUnescape(msg)
	if err != nil || msg == "" {
		return nil
	}
	return []web.Flash{{Kind: kind, Message: msg}}
}

// clientIP is the throttle key for sign-in attempts
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
