package http

import (
	"encoding/json"
	"net/http"
	"strconv"

	"sgd-certification-service/internal/app"
	"sgd-certification-service/internal/domain"
	"sgd-certification-service/internal/logger"

	"github.com/go-chi/chi/v5"
)

type registerRequest struct {
	DNI       string `json:"dni"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
	Password  string `json:"password"`
}

type loginRequest struct {
	DNI      string `json:"dni"`
	Password string `json:"password"`
}

type tokenResponse struct {
	Token     string      `json:"token"`
	TokenType string      `json:"tokenType"`
	ExpiresIn int         `json:"expiresIn"`
	User      domain.User `json:"user"`
}

func (a *API) register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		badRequest(w, r, "invalid json body")
		return
	}
	user, err := a.deps.Accounts.Register(r.Context(), app.RegisterAccount{
		DNI:       req.DNI,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
		Phone:     req.Phone,
		Password:  req.Password,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	logger.Info().Int64("user_id", user.ID).Msg("account registered")
	a.respondWithToken(w, r, http.StatusCreated, user)
}

func (a *API) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		badRequest(w, r, "invalid json body")
		return
	}
	user, err := a.deps.Accounts.Authenticate(r.Context(), req.DNI, req.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}
	a.respondWithToken(w, r, http.StatusOK, user)
}

func (a *API) respondWithToken(w http.ResponseWriter, r *http.Request, status int, user domain.User) {
	token, err := a.deps.Tokens.Issue(domain.Actor{ID: user.ID, Role: user.Role})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, status, tokenResponse{
		Token:     token,
		TokenType: "Bearer",
		ExpiresIn: int(a.deps.Tokens.TTL().Seconds()),
		User:      user,
	})
}

func (a *API) me(w http.ResponseWriter, r *http.Request) {
	user, err := a.deps.Accounts.Get(r.Context(), actor(r).ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (a *API) stats(w http.ResponseWriter, r *http.Request) {
	st, err := a.deps.Stats.Dashboard(r.Context(), actor(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	resp := struct {
		domain.Stats
		LiveSessions int `json:"liveSessions"`
	}{Stats: st}
	if a.deps.Sessions != nil {
		live, err := a.deps.Sessions.Live(r.Context())
		if err != nil {
			logger.Warn().Err(err).Msg("count live sessions")
		}
		resp.LiveSessions = live
	}
	writeJSON(w, http.StatusOK, resp)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	return json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(v)
}

func pathID(r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	return id, err == nil && id > 0
}
