package http

import (
	"context"
	"net/http"
	"time"

	"sgd-certification-service/internal/app"
	"sgd-certification-service/internal/auth"
	"sgd-certification-service/internal/domain"
	"sgd-certification-service/internal/logger"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// LiveCounter reports how many exam sessions are in flight.
type LiveCounter interface {
	Live(ctx context.Context) (int, error)
}

// Deps are the collaborators the HTTP surface is built on.
type Deps struct {
	Exams    *app.ExamService
	Issuer   *app.Issuer
	Results  *app.ResultService
	Accounts *app.AccountService
	Stats    *app.StatsService
	Tokens   *auth.TokenService
	Checker  *auth.Checker
	Sessions LiveCounter
	// Ping checks backing stores for /healthz; nil means always healthy.
	Ping           func(ctx context.Context) error
	AllowedOrigins []string
}

type API struct {
	deps Deps
	ws   *WSHandler
}

func NewRouter(deps Deps) http.Handler {
	if deps.Checker == nil {
		deps.Checker = auth.NewChecker(nil)
	}
	origins := deps.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	api := &API{deps: deps, ws: NewWSHandler(deps.Exams)}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/healthz", api.health)

	r.Post("/auth/register", api.register)
	r.Post("/auth/login", api.login)

	// verification is public; the same path lists everything for an admin
	r.With(auth.Optional(deps.Tokens)).Get("/certificates", api.findCertificates)
	r.Get("/verify", api.verify)

	r.Group(func(r chi.Router) {
		r.Use(auth.Authenticate(deps.Tokens))

		r.Get("/me", api.me)

		r.Route("/exam", func(r chi.Router) {
			r.Use(auth.Require(deps.Checker, auth.PermExamTake))
			r.Get("/eligibility", api.eligibility)
			r.Post("/sessions", api.startSession)
			r.Get("/sessions/{id}", api.getSession)
			r.Put("/sessions/{id}/answers/{position}", api.answer)
			r.Post("/sessions/{id}/submit", api.submit)
			r.Delete("/sessions/{id}", api.abandon)
			r.Get("/sessions/{id}/ws", api.ws.ServeWS)
		})

		r.With(auth.Require(deps.Checker, auth.PermResultsWrite)).Post("/exam-results", api.recordResult)
		r.Get("/exam-results", api.listResults)
		r.Get("/exam-results/{id}", api.getResult)

		r.With(auth.Require(deps.Checker, auth.PermCertificatesManage)).Post("/certificates", api.registerCertificate)
		r.Get("/certificates/{id}", api.getCertificate)
		r.With(auth.Require(deps.Checker, auth.PermCertificatesManage)).Post("/certificates/{id}/revoke", api.revokeCertificate)
		r.With(auth.Require(deps.Checker, auth.PermCertificatesManage)).Post("/certificates/{id}/reactivate", api.reactivateCertificate)

		r.With(auth.Require(deps.Checker, auth.PermStatsView)).Get("/admin/stats", api.stats)
	})
	return r
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		logger.Info().
			Str("request_id", middleware.GetReqID(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration", time.Since(start)).
			Msg("http request")
	})
}

func (a *API) health(w http.ResponseWriter, r *http.Request) {
	if a.deps.Ping != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := a.deps.Ping(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded", "error": err.Error()})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// actor returns the authenticated caller; routes behind Authenticate always have one.
func actor(r *http.Request) domain.Actor {
	a, _ := auth.ActorFromContext(r.Context())
	return a
}
