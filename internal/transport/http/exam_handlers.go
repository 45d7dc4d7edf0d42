package http

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"sgd-certification-service/internal/app"
	"sgd-certification-service/internal/domain"

	"github.com/go-chi/chi/v5"
)

// publicQuestion hides the correct index from candidates.
type publicQuestion struct {
	ID       int64    `json:"id"`
	Prompt   string   `json:"prompt"`
	Options  []string `json:"options"`
	Category string   `json:"category,omitempty"`
}

type sessionResponse struct {
	domain.SessionSnapshot
	StartedAt       string           `json:"startedAt"`
	DurationSeconds int              `json:"durationSeconds"`
	PassPercent     int              `json:"passPercent"`
	Questions       []publicQuestion `json:"questions"`
}

type answerRequest struct {
	Option *int `json:"option"`
}

func newSessionResponse(policy domain.Policy, session *app.Session) sessionResponse {
	questions := session.Questions()
	public := make([]publicQuestion, 0, len(questions))
	for _, q := range questions {
		public = append(public, publicQuestion{ID: q.ID, Prompt: q.Prompt, Options: q.Options, Category: q.Category})
	}
	return sessionResponse{
		SessionSnapshot: session.Snapshot(),
		StartedAt:       session.StartedAt().UTC().Format(time.RFC3339),
		DurationSeconds: policy.DurationSeconds,
		PassPercent:     policy.PassPercent,
		Questions:       public,
	}
}

func (a *API) eligibility(w http.ResponseWriter, r *http.Request) {
	err := a.deps.Exams.CanStart(r.Context(), actor(r))
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, map[string]any{"eligible": true})
	case errors.Is(err, domain.ErrAttemptsExhausted):
		writeJSON(w, http.StatusOK, map[string]any{"eligible": false, "reason": err.Error()})
	default:
		writeError(w, r, err)
	}
}

func (a *API) startSession(w http.ResponseWriter, r *http.Request) {
	session, err := a.deps.Exams.Start(r.Context(), actor(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, newSessionResponse(a.deps.Exams.Policy(), session))
}

func (a *API) getSession(w http.ResponseWriter, r *http.Request) {
	session, err := a.deps.Exams.Session(actor(r), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newSessionResponse(a.deps.Exams.Policy(), session))
}

func (a *API) answer(w http.ResponseWriter, r *http.Request) {
	position, err := strconv.Atoi(chi.URLParam(r, "position"))
	if err != nil {
		badRequest(w, r, "position must be a number")
		return
	}
	var req answerRequest
	if err := decodeJSON(w, r, &req); err != nil || req.Option == nil {
		badRequest(w, r, "option is required")
		return
	}
	snap, err := a.deps.Exams.Answer(r.Context(), actor(r), chi.URLParam(r, "id"), position, *req.Option)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// submit returns the outcome; on a persistence failure the session stays open and
// the same call can be retried.
func (a *API) submit(w http.ResponseWriter, r *http.Request) {
	outcome, err := a.deps.Exams.Submit(r.Context(), actor(r), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, outcome)
}

func (a *API) abandon(w http.ResponseWriter, r *http.Request) {
	if err := a.deps.Exams.Abandon(r.Context(), actor(r), chi.URLParam(r, "id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
