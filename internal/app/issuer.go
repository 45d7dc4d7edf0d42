package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"sgd-certification-service/internal/domain"
	"sgd-certification-service/internal/logger"
)

const maxCodeAllocations = 5

// Issuer allocates certificate codes and enforces one certificate per exam result.
type Issuer struct {
	results ResultRepository
	certs   CertificateRepository
	policy  domain.Policy
	now     func() time.Time
}

func NewIssuer(results ResultRepository, certs CertificateRepository, policy domain.Policy) *Issuer {
	return NewIssuerWithClock(results, certs, policy, time.Now)
}

// NewIssuerWithClock allows deterministic issue dates in tests.
func NewIssuerWithClock(results ResultRepository, certs CertificateRepository, policy domain.Policy, now func() time.Time) *Issuer {
	return &Issuer{results: results, certs: certs, policy: policy, now: now}
}

// Issue returns the certificate for resultID, creating it when none exists yet.
// Calling it again for the same result yields the same certificate.
func (i *Issuer) Issue(ctx context.Context, userID, resultID int64) (domain.Certificate, error) {
	if existing, found, err := i.existing(ctx, resultID); err != nil || found {
		return existing, err
	}
	if err := i.checkEligible(ctx, userID, resultID); err != nil {
		return domain.Certificate{}, err
	}

	for attempt := 0; attempt < maxCodeAllocations; attempt++ {
		issuedAt := i.now().UTC()
		seq, err := i.certs.NextCertificateSequence(ctx, issuedAt.Year())
		if err != nil {
			return domain.Certificate{}, fmt.Errorf("%w: allocate certificate sequence: %w", domain.ErrPersistence, err)
		}
		code := i.policy.CertificateCode(issuedAt.Year(), seq)
		cert, err := i.certs.CreateCertificate(ctx, domain.Certificate{
			UserID:       userID,
			ExamResultID: resultID,
			Code:         code,
			IssuedAt:     issuedAt,
			Status:       domain.CertificateActive,
		})
		if err == nil {
			logger.Info().
				Int64("user_id", userID).
				Int64("exam_result_id", resultID).
				Str("certificate_code", cert.Code).
				Msg("certificate issued")
			return cert, nil
		}
		if !errors.Is(err, domain.ErrDuplicateCertificate) {
			return domain.Certificate{}, fmt.Errorf("%w: create certificate: %w", domain.ErrPersistence, err)
		}
		// Either a concurrent issue for the same result won, or the code was taken.
		if existing, found, ferr := i.existing(ctx, resultID); ferr != nil || found {
			return existing, ferr
		}
		logger.Warn().Str("certificate_code", code).Msg("certificate code taken, allocating next")
	}
	return domain.Certificate{}, fmt.Errorf("%w: no free certificate code after %d attempts", domain.ErrPersistence, maxCodeAllocations)
}

// RegisterRequest is an externally supplied certificate record.
type RegisterRequest struct {
	UserID       int64
	ExamResultID int64
	Code         string
	IssuedAt     time.Time
	Status       domain.CertificateStatus
}

// Register stores a certificate posted by the surrounding application. An empty
// code falls back to Issue. A result that already has a certificate returns it unchanged.
func (i *Issuer) Register(ctx context.Context, actor domain.Actor, req RegisterRequest) (domain.Certificate, error) {
	if actor.Role != domain.RoleAdmin {
		return domain.Certificate{}, domain.ErrUnauthorized
	}
	code := strings.TrimSpace(req.Code)
	if code == "" {
		return i.Issue(ctx, req.UserID, req.ExamResultID)
	}
	if existing, found, err := i.existing(ctx, req.ExamResultID); err != nil || found {
		return existing, err
	}
	if err := i.checkEligible(ctx, req.UserID, req.ExamResultID); err != nil {
		return domain.Certificate{}, err
	}

	issuedAt := req.IssuedAt
	if issuedAt.IsZero() {
		issuedAt = i.now()
	}
	status := req.Status
	if status == "" {
		status = domain.CertificateActive
	}
	cert, err := i.certs.CreateCertificate(ctx, domain.Certificate{
		UserID:       req.UserID,
		ExamResultID: req.ExamResultID,
		Code:         code,
		IssuedAt:     issuedAt.UTC(),
		Status:       status,
	})
	if errors.Is(err, domain.ErrDuplicateCertificate) {
		if existing, found, ferr := i.existing(ctx, req.ExamResultID); ferr != nil || found {
			return existing, ferr
		}
		return domain.Certificate{}, fmt.Errorf("%w: certificate code %s already in use", domain.ErrConflict, code)
	}
	if err != nil {
		return domain.Certificate{}, fmt.Errorf("%w: create certificate: %w", domain.ErrPersistence, err)
	}
	return cert, nil
}

// Revoke moves a certificate from active to revoked. Admin only.
func (i *Issuer) Revoke(ctx context.Context, actor domain.Actor, certificateID int64) (domain.Certificate, error) {
	return i.transition(ctx, actor, certificateID, domain.CertificateActive, domain.CertificateRevoked)
}

// Reactivate moves a certificate from revoked back to active. Admin only.
func (i *Issuer) Reactivate(ctx context.Context, actor domain.Actor, certificateID int64) (domain.Certificate, error) {
	return i.transition(ctx, actor, certificateID, domain.CertificateRevoked, domain.CertificateActive)
}

func (i *Issuer) transition(ctx context.Context, actor domain.Actor, id int64, from, to domain.CertificateStatus) (domain.Certificate, error) {
	if actor.Role != domain.RoleAdmin {
		return domain.Certificate{}, domain.ErrUnauthorized
	}
	cert, err := i.certs.GetCertificate(ctx, id)
	if err != nil {
		return domain.Certificate{}, err
	}
	if cert.Status != from {
		return domain.Certificate{}, fmt.Errorf("%w: %s -> %s", domain.ErrInvalidStatusTransition, cert.Status, to)
	}
	if err := i.certs.UpdateCertificateStatus(ctx, id, to); err != nil {
		return domain.Certificate{}, fmt.Errorf("%w: update certificate status: %w", domain.ErrPersistence, err)
	}
	cert.Status = to
	logger.Info().
		Int64("certificate_id", id).
		Str("certificate_code", cert.Code).
		Str("status", string(to)).
		Int64("admin_id", actor.ID).
		Msg("certificate status changed")
	return cert, nil
}

// VerifyCode looks up a certificate by its public code.
func (i *Issuer) VerifyCode(ctx context.Context, code string) (domain.Certificate, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return domain.Certificate{}, fmt.Errorf("%w: code is required", domain.ErrValidation)
	}
	return i.certs.FindCertificateByCode(ctx, code)
}

// VerifyDNI returns the most recently issued certificate of the holder with dni.
func (i *Issuer) VerifyDNI(ctx context.Context, dni string) (domain.Certificate, error) {
	dni = strings.TrimSpace(dni)
	if dni == "" {
		return domain.Certificate{}, fmt.Errorf("%w: dni is required", domain.ErrValidation)
	}
	return i.certs.FindLatestCertificateByDNI(ctx, dni)
}

// List returns every certificate. Admin only.
func (i *Issuer) List(ctx context.Context, actor domain.Actor) ([]domain.Certificate, error) {
	if actor.Role != domain.RoleAdmin {
		return nil, domain.ErrUnauthorized
	}
	return i.certs.ListCertificates(ctx)
}

// Get returns one certificate to its owner or an admin.
func (i *Issuer) Get(ctx context.Context, actor domain.Actor, id int64) (domain.Certificate, error) {
	cert, err := i.certs.GetCertificate(ctx, id)
	if err != nil {
		return domain.Certificate{}, err
	}
	if actor.Role != domain.RoleAdmin && actor.ID != cert.UserID {
		return domain.Certificate{}, domain.ErrUnauthorized
	}
	return cert, nil
}

func (i *Issuer) existing(ctx context.Context, resultID int64) (domain.Certificate, bool, error) {
	cert, err := i.certs.FindCertificateByResult(ctx, resultID)
	switch {
	case err == nil:
		return cert, true, nil
	case errors.Is(err, domain.ErrNotFound):
		return domain.Certificate{}, false, nil
	default:
		return domain.Certificate{}, false, fmt.Errorf("%w: find certificate: %w", domain.ErrPersistence, err)
	}
}

func (i *Issuer) checkEligible(ctx context.Context, userID, resultID int64) error {
	result, err := i.results.GetResult(ctx, resultID)
	if errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("exam result %d: %w", resultID, domain.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("%w: load exam result: %w", domain.ErrPersistence, err)
	}
	if result.UserID != userID {
		return fmt.Errorf("%w: result %d belongs to another user", domain.ErrNotEligible, resultID)
	}
	if !result.Passed {
		return fmt.Errorf("%w: result %d did not pass", domain.ErrNotEligible, resultID)
	}
	return nil
}
