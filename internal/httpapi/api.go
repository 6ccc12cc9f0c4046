package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"mindmix/internal/qa"
	"mindmix/internal/session"
	"mindmix/internal/utils"
)

var timeNow = time.Now

type askResponse struct {
	Answer *qa.Answer `json:"answer"`
	Usage  *qa.Usage  `json:"usage,omitempty"`
}

func (d *Dependencies) handleAPIHistory(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	if sess == nil {
		utils.RespondWithError(w, http.StatusUnauthorized, qa.ErrUnauthenticated.Error())
		return
	}

	records, err := d.QA.History(r.Context(), sess)
	if err != nil {
		d.Logger.Error("failed to load history", zap.String("user_id", sess.UserID), zap.Error(err))
		utils.RespondWithError(w, http.StatusInternalServerError, "failed to load history")
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, records)
}

func (d *Dependencies) handleAPIUsage(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	if sess == nil {
		utils.RespondWithError(w, http.StatusUnauthorized, qa.ErrUnauthenticated.Error())
		return
	}

	usage, err := d.QA.Usage(r.Context(), sess)
	if err != nil {
		d.Logger.Error("failed to load usage", zap.String("user_id", sess.UserID), zap.Error(err))
		utils.RespondWithError(w, http.StatusInternalServerError, "failed to load usage")
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, usage)
}

func (d *Dependencies) handleAPIAsk(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	if sess == nil {
		utils.RespondWithError(w, http.StatusUnauthorized, qa.ErrUnauthenticated.Error())
		return
	}

	var req qa.SubmitRequest
	if err := utils.DecodeJSON(w, r, &req); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	answer, err := d.QA.Submit(r.Context(), sess, req)
	switch {
	case err == nil:
	case answer != nil:
		// generated but not saved; the caller still gets the text
	case errors.Is(err, qa.ErrQuotaExceeded):
		utils.RespondWithError(w, http.StatusTooManyRequests, err.Error())
		return
	case errors.Is(err, qa.ErrUnknownPrompt), errors.Is(err, qa.ErrEmptyQuestion):
		utils.RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, qa.ErrInferenceUnavailable):
		utils.RespondWithError(w, http.StatusBadGateway, qa.ErrInferenceUnavailable.Error())
		return
	default:
		d.Logger.Error("submit failed", zap.String("user_id", sess.UserID), zap.Error(err))
		utils.RespondWithError(w, http.StatusInternalServerError, "internal error")
		return
	}

	resp := askResponse{Answer: answer}
	if usage, err := d.QA.Usage(r.Context(), sess); err == nil {
		resp.Usage = usage
	}
	utils.RespondWithJSON(w, http.StatusOK, resp)
}

func (d *Dependencies) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	checks := make(map[string]string, len(d.Health))
	status := http.StatusOK
	for name, check := range d.Health {
		if err := check(ctx); err != nil {
			d.Logger.Warn("health check failed", zap.String("check", name), zap.Error(err))
			checks[name] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		checks[name] = "ok"
	}

	overall := "ok"
	if status != http.StatusOK {
		overall = "unavailable"
	}
	resp := map[string]interface{}{
		"status": overall,
		"checks": checks,
	}
	if len(d.Stats) > 0 {
		stats := make(map[string]interface{}, len(d.Stats))
		for name, report := range d.Stats {
			v, err := report(ctx)
			if err != nil {
				d.Logger.Warn("stats unavailable", zap.String("stats", name), zap.Error(err))
				continue
			}
			stats[name] = v
		}
		resp["stats"] = stats
	}
	utils.RespondWithJSON(w, status, resp)
}
