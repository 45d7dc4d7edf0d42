package app_test

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"sgd-certification-service/internal/app"
	"sgd-certification-service/internal/domain"
	"sgd-certification-service/internal/logger"
)

var admin = domain.Actor{ID: 1, Role: domain.RoleAdmin}

func TestIssueIsIdempotentPerResult(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, bank(10))
	result := passingResult(t, env)

	first, err := env.issuer.Issue(ctx, candidate.ID, result.ID)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	second, err := env.issuer.Issue(ctx, candidate.ID, result.ID)
	if err != nil {
		t.Fatalf("issue again: %v", err)
	}
	if first.ID != second.ID || first.Code != second.Code {
		t.Fatalf("expected same certificate, got %+v and %+v", first, second)
	}
	if first.Code != "SGD-2025-001" {
		t.Fatalf("expected first code of the year, got %s", first.Code)
	}
	certs, _ := env.store.ListCertificates(ctx)
	if len(certs) != 1 {
		t.Fatalf("expected one row, got %d", len(certs))
	}
}

func TestIssueSequenceIncrements(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, bank(10))
	a := passingResult(t, env)
	b, _ := env.store.CreateResult(ctx, domain.ExamResult{UserID: 8, Score: 10, TotalQuestions: 10, Passed: true})

	ca, _ := env.issuer.Issue(ctx, candidate.ID, a.ID)
	cb, err := env.issuer.Issue(ctx, 8, b.ID)
	if err != nil {
		t.Fatalf("issue b: %v", err)
	}
	if ca.Code != "SGD-2025-001" || cb.Code != "SGD-2025-002" {
		t.Fatalf("unexpected codes %s %s", ca.Code, cb.Code)
	}
}

func TestIssueRetriesOnTakenCode(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, bank(10))
	other, _ := env.store.CreateResult(ctx, domain.ExamResult{UserID: 8, Score: 9, TotalQuestions: 10, Passed: true})
	if _, err := env.issuer.Register(ctx, admin, registerRequest(8, other.ID, "SGD-2025-001")); err != nil {
		t.Fatalf("register: %v", err)
	}

	var logs bytes.Buffer
	logger.Configure(logger.Config{Level: "warn", Output: &logs})
	t.Cleanup(func() { logger.Configure(logger.Config{Level: "info"}) })

	result := passingResult(t, env)
	cert, err := env.issuer.Issue(ctx, candidate.ID, result.ID)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if cert.Code != "SGD-2025-002" {
		t.Fatalf("expected next free code, got %s", cert.Code)
	}
	if !strings.Contains(logs.String(), `"certificate_code":"SGD-2025-001"`) {
		t.Fatalf("expected the taken code in the warning, got %q", logs.String())
	}
}

func TestIssueRejectsIneligibleResults(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, bank(10))
	failed, _ := env.store.CreateResult(ctx, domain.ExamResult{UserID: candidate.ID, Score: 3, TotalQuestions: 10})
	passed := passingResult(t, env)

	if _, err := env.issuer.Issue(ctx, candidate.ID, failed.ID); !errors.Is(err, domain.ErrNotEligible) {
		t.Fatalf("expected not eligible for failed result, got %v", err)
	}
	if _, err := env.issuer.Issue(ctx, 42, passed.ID); !errors.Is(err, domain.ErrNotEligible) {
		t.Fatalf("expected not eligible for another user's result, got %v", err)
	}
	if _, err := env.issuer.Issue(ctx, candidate.ID, 999); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestRegisterReturnsExistingCertificate(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, bank(10))
	result := passingResult(t, env)

	issued, _ := env.issuer.Issue(ctx, candidate.ID, result.ID)
	again, err := env.issuer.Register(ctx, admin, registerRequest(candidate.ID, result.ID, "SGD-2025-999"))
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if again.ID != issued.ID || again.Code != issued.Code {
		t.Fatalf("expected existing certificate, got %+v", again)
	}

	if _, err := env.issuer.Register(ctx, candidate, registerRequest(candidate.ID, result.ID, "")); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected unauthorized for candidate, got %v", err)
	}
}

func TestRegisterRejectsTakenCode(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, bank(10))
	first := passingResult(t, env)
	second, _ := env.store.CreateResult(ctx, domain.ExamResult{UserID: 8, Score: 8, TotalQuestions: 10, Passed: true})

	if _, err := env.issuer.Register(ctx, admin, registerRequest(candidate.ID, first.ID, "SGD-2024-010")); err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, err := env.issuer.Register(ctx, admin, registerRequest(8, second.ID, "SGD-2024-010")); !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestRevokeAndReactivateAreAdminOnly(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, bank(10))
	result := passingResult(t, env)
	cert, _ := env.issuer.Issue(ctx, candidate.ID, result.ID)

	verifier := domain.Actor{ID: 3, Role: domain.RoleVerifier}
	for _, actor := range []domain.Actor{candidate, verifier} {
		if _, err := env.issuer.Revoke(ctx, actor, cert.ID); !errors.Is(err, domain.ErrUnauthorized) {
			t.Fatalf("expected unauthorized revoke for %s, got %v", actor.Role, err)
		}
	}

	revoked, err := env.issuer.Revoke(ctx, admin, cert.ID)
	if err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if revoked.Status != domain.CertificateRevoked {
		t.Fatalf("expected revoked, got %s", revoked.Status)
	}
	if _, err := env.issuer.Revoke(ctx, admin, cert.ID); !errors.Is(err, domain.ErrInvalidStatusTransition) {
		t.Fatalf("expected invalid transition, got %v", err)
	}
	if _, err := env.issuer.Reactivate(ctx, verifier, cert.ID); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected unauthorized reactivate, got %v", err)
	}

	active, err := env.issuer.Reactivate(ctx, admin, cert.ID)
	if err != nil {
		t.Fatalf("reactivate: %v", err)
	}
	stored, _ := env.store.GetCertificate(ctx, cert.ID)
	if active.Status != domain.CertificateActive || stored.Code != cert.Code || stored.UserID != cert.UserID || stored.ExamResultID != cert.ExamResultID {
		t.Fatalf("status toggle must keep identity fields, got %+v", stored)
	}
}

func TestVerifyLookups(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, bank(10))
	user, _ := env.store.CreateUser(ctx, domain.User{DNI: "45678912", FirstName: "Luis", LastName: "Huaman", Role: domain.RoleCandidate})
	result, _ := env.store.CreateResult(ctx, domain.ExamResult{UserID: user.ID, Score: 10, TotalQuestions: 10, Passed: true})
	cert, _ := env.issuer.Issue(ctx, user.ID, result.ID)

	byCode, err := env.issuer.VerifyCode(ctx, cert.Code)
	if err != nil || byCode.HolderName != "Luis Huaman" {
		t.Fatalf("verify code: %+v err=%v", byCode, err)
	}
	byDNI, err := env.issuer.VerifyDNI(ctx, "45678912")
	if err != nil || byDNI.Code != cert.Code {
		t.Fatalf("verify dni: %+v err=%v", byDNI, err)
	}
	if _, err := env.issuer.VerifyCode(ctx, " "); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if _, err := env.issuer.List(ctx, candidate); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected list to be admin only, got %v", err)
	}
}

func passingResult(t *testing.T, env *testEnv) domain.ExamResult {
	t.Helper()
	result, err := env.store.CreateResult(context.Background(), domain.ExamResult{UserID: candidate.ID, Score: 8, TotalQuestions: 10, Passed: true})
	if err != nil {
		t.Fatalf("create result: %v", err)
	}
	return result
}

func registerRequest(userID, resultID int64, code string) app.RegisterRequest {
	return app.RegisterRequest{UserID: userID, ExamResultID: resultID, Code: code}
}
