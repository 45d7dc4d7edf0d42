package http

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"sgd-certification-service/internal/app"
	"sgd-certification-service/internal/auth"
	"sgd-certification-service/internal/domain"
)

// examResultRequest accepts the camelCase names and the snake_case ones older
// clients send. certificateCode is accepted and ignored; the code is read back
// from the linked certificate.
type examResultRequest struct {
	UserID          *int64     `json:"userId"`
	UserIDLegacy    *int64     `json:"user_id"`
	Score           int        `json:"score"`
	TotalQuestions  *int       `json:"totalQuestions"`
	TotalLegacy     *int       `json:"total_questions"`
	Passed          bool       `json:"passed"`
	CompletedAt     *time.Time `json:"completedAt"`
	CertificateCode string     `json:"certificateCode"`
}

// certificateRequest carries both canonical and legacy Spanish field names.
type certificateRequest struct {
	UserID             *int64 `json:"userId"`
	UserIDLegacy       *int64 `json:"user_id"`
	ExamResultID       *int64 `json:"examResultId"`
	ExamResultIDLegacy *int64 `json:"exam_result_id"`
	Code               string `json:"code"`
	Codigo             string `json:"codigo"`
	IssuedAt           string `json:"issuedAt"`
	FechaEmision       string `json:"fechaEmision"`
	FechaEmisionSnake  string `json:"fecha_emision"`
	Status             string `json:"status"`
	Estado             string `json:"estado"`
}

// certificateResponse adds the legacy names next to the canonical ones.
type certificateResponse struct {
	domain.Certificate
	Codigo       string `json:"codigo"`
	FechaEmision string `json:"fechaEmision"`
	Estado       string `json:"estado"`
}

type verificationResponse struct {
	Valid       bool                `json:"valid"`
	Certificate certificateResponse `json:"certificate"`
}

func toCertificateResponse(c domain.Certificate) certificateResponse {
	return certificateResponse{
		Certificate:  c,
		Codigo:       c.Code,
		FechaEmision: c.IssuedAt.UTC().Format(time.RFC3339),
		Estado:       c.Status.Legacy(),
	}
}

func firstInt64(values ...*int64) int64 {
	for _, v := range values {
		if v != nil {
			return *v
		}
	}
	return 0
}

func firstString(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

func parseIssuedAt(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, nil
		}
	}
	return time.Time{}, errors.New("fechaEmision must be RFC3339 or YYYY-MM-DD")
}

func (a *API) recordResult(w http.ResponseWriter, r *http.Request) {
	var req examResultRequest
	if err := decodeJSON(w, r, &req); err != nil {
		badRequest(w, r, "invalid json body")
		return
	}
	total := req.TotalQuestions
	if total == nil {
		total = req.TotalLegacy
	}
	result := domain.ExamResult{
		UserID: firstInt64(req.UserID, req.UserIDLegacy),
		Score:  req.Score,
		Passed: req.Passed,
	}
	if total != nil {
		result.TotalQuestions = *total
	}
	if req.CompletedAt != nil {
		result.CompletedAt = *req.CompletedAt
	}
	created, err := a.deps.Results.Record(r.Context(), actor(r), result)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (a *API) listResults(w http.ResponseWriter, r *http.Request) {
	caller := actor(r)
	userID := caller.ID
	if raw := r.URL.Query().Get("userId"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			badRequest(w, r, "userId must be a number")
			return
		}
		userID = id
	}
	results, err := a.deps.Results.ListForUser(r.Context(), caller, userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, results)
}

func (a *API) getResult(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		badRequest(w, r, "invalid result id")
		return
	}
	result, err := a.deps.Results.Get(r.Context(), actor(r), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (a *API) registerCertificate(w http.ResponseWriter, r *http.Request) {
	var req certificateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		badRequest(w, r, "invalid json body")
		return
	}
	issuedAt, err := parseIssuedAt(firstString(req.IssuedAt, req.FechaEmision, req.FechaEmisionSnake))
	if err != nil {
		badRequest(w, r, err.Error())
		return
	}
	status, err := domain.ParseCertificateStatus(firstString(req.Status, req.Estado))
	if err != nil {
		writeError(w, r, err)
		return
	}
	cert, err := a.deps.Issuer.Register(r.Context(), actor(r), app.RegisterRequest{
		UserID:       firstInt64(req.UserID, req.UserIDLegacy),
		ExamResultID: firstInt64(req.ExamResultID, req.ExamResultIDLegacy),
		Code:         firstString(req.Code, req.Codigo),
		IssuedAt:     issuedAt,
		Status:       status,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toCertificateResponse(cert))
}

// findCertificates answers ?code=, ?codigo= and ?dni= publicly with at most one
// record; without a filter it lists every certificate for an admin.
func (a *API) findCertificates(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	code := firstString(q.Get("code"), q.Get("codigo"))
	dni := strings.TrimSpace(q.Get("dni"))
	if code == "" && dni == "" {
		caller, ok := auth.ActorFromContext(r.Context())
		if !ok {
			writeError(w, r, domain.ErrUnauthenticated)
			return
		}
		certs, err := a.deps.Issuer.List(r.Context(), caller)
		if err != nil {
			writeError(w, r, err)
			return
		}
		out := make([]certificateResponse, 0, len(certs))
		for _, c := range certs {
			out = append(out, toCertificateResponse(c))
		}
		writeJSON(w, http.StatusOK, out)
		return
	}
	cert, err := a.lookup(r, code, dni)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toCertificateResponse(cert))
}

func (a *API) verify(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	cert, err := a.lookup(r, firstString(q.Get("code"), q.Get("codigo")), strings.TrimSpace(q.Get("dni")))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, verificationResponse{
		Valid:       cert.Status == domain.CertificateActive,
		Certificate: toCertificateResponse(cert),
	})
}

func (a *API) lookup(r *http.Request, code, dni string) (domain.Certificate, error) {
	if code != "" {
		return a.deps.Issuer.VerifyCode(r.Context(), code)
	}
	return a.deps.Issuer.VerifyDNI(r.Context(), dni)
}

func (a *API) getCertificate(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		badRequest(w, r, "invalid certificate id")
		return
	}
	cert, err := a.deps.Issuer.Get(r.Context(), actor(r), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toCertificateResponse(cert))
}

func (a *API) revokeCertificate(w http.ResponseWriter, r *http.Request) {
	a.changeStatus(w, r, a.deps.Issuer.Revoke)
}

func (a *API) reactivateCertificate(w http.ResponseWriter, r *http.Request) {
	a.changeStatus(w, r, a.deps.Issuer.Reactivate)
}

func (a *API) changeStatus(w http.ResponseWriter, r *http.Request, change func(context.Context, domain.Actor, int64) (domain.Certificate, error)) {
	id, ok := pathID(r, "id")
	if !ok {
		badRequest(w, r, "invalid certificate id")
		return
	}
	cert, err := change(r.Context(), actor(r), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toCertificateResponse(cert))
}
