package store

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"sgd-certification-service/internal/domain"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := Open(DriverSQLite, filepath.Join(t.TempDir(), "sgd.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if _, err := Migrate(context.Background(), db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return New(db)
}

func TestStoreUsers(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	created, err := s.CreateUser(ctx, domain.User{
		DNI: "12345678", FirstName: "Maria", LastName: "Flores", Email: "maria@gob.pe",
		PasswordHash: "hash", Role: domain.RoleCandidate, CreatedAt: time.Now(),
	})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	if created.ID == 0 {
		t.Fatalf("expected id")
	}

	byDNI, err := s.GetUserByDNI(ctx, "12345678")
	if err != nil || byDNI.ID != created.ID || byDNI.Role != domain.RoleCandidate {
		t.Fatalf("get by dni: %+v err=%v", byDNI, err)
	}
	if _, err := s.GetUser(ctx, 999); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	_, err = s.CreateUser(ctx, domain.User{DNI: "12345678", FirstName: "Otro", PasswordHash: "x", Role: domain.RoleCandidate, CreatedAt: time.Now()})
	if !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected conflict on dni, got %v", err)
	}
	_, err = s.CreateUser(ctx, domain.User{DNI: "87654321", FirstName: "Otro", Email: "maria@gob.pe", PasswordHash: "x", Role: domain.RoleCandidate, CreatedAt: time.Now()})
	if !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected conflict on email, got %v", err)
	}
	// empty emails are not unique
	for _, dni := range []string{"11111111", "22222222"} {
		if _, err := s.CreateUser(ctx, domain.User{DNI: dni, FirstName: "Sin", PasswordHash: "x", Role: domain.RoleCandidate, CreatedAt: time.Now()}); err != nil {
			t.Fatalf("create user without email: %v", err)
		}
	}
}

func TestStoreQuestionsRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	saved, err := s.SaveQuestions(ctx, []domain.Question{
		{Prompt: "Uno", Options: []string{"a", "b", "c", "d"}, CorrectIndex: 1, Category: "general"},
		{Prompt: "Dos", Options: []string{"e", "f", "g", "h"}, CorrectIndex: 3},
	})
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if saved[0].ID == 0 || saved[1].ID == 0 {
		t.Fatalf("expected ids, got %+v", saved)
	}

	updated := saved[0]
	updated.Prompt = "Uno editada"
	if _, err := s.SaveQuestions(ctx, []domain.Question{updated}); err != nil {
		t.Fatalf("update: %v", err)
	}

	loaded, err := s.LoadQuestions(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(loaded) != 2 || loaded[0].Prompt != "Uno editada" || loaded[1].Options[3] != "h" || loaded[1].CorrectIndex != 3 {
		t.Fatalf("unexpected questions %+v", loaded)
	}
}

func TestStoreResultsAndCertificates(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	user, _ := s.CreateUser(ctx, domain.User{DNI: "40404040", FirstName: "Jorge", LastName: "Rojas", PasswordHash: "x", Role: domain.RoleCandidate, CreatedAt: time.Now()})
	base := time.Date(2025, 4, 10, 15, 0, 0, 0, time.UTC)

	failed, err := s.CreateResult(ctx, domain.ExamResult{UserID: user.ID, Score: 6, TotalQuestions: 10, CompletedAt: base})
	if err != nil {
		t.Fatalf("create result: %v", err)
	}
	passed, _ := s.CreateResult(ctx, domain.ExamResult{UserID: user.ID, Score: 9, TotalQuestions: 10, Passed: true, CompletedAt: base.Add(time.Hour)})

	attempts, anyPassed, err := s.AttemptSummary(ctx, user.ID)
	if err != nil || attempts != 2 || !anyPassed {
		t.Fatalf("attempt summary: %d %v %v", attempts, anyPassed, err)
	}
	if attempts, anyPassed, _ := s.AttemptSummary(ctx, 12345); attempts != 0 || anyPassed {
		t.Fatalf("expected no attempts for unknown user")
	}

	cert, err := s.CreateCertificate(ctx, domain.Certificate{UserID: user.ID, ExamResultID: passed.ID, Code: "SGD-2025-001", IssuedAt: base.Add(time.Hour), Status: domain.CertificateActive})
	if err != nil {
		t.Fatalf("create certificate: %v", err)
	}

	_, err = s.CreateCertificate(ctx, domain.Certificate{UserID: user.ID, ExamResultID: passed.ID, Code: "SGD-2025-002", IssuedAt: base, Status: domain.CertificateActive})
	if !errors.Is(err, domain.ErrDuplicateCertificate) {
		t.Fatalf("expected duplicate on result, got %v", err)
	}
	_, err = s.CreateCertificate(ctx, domain.Certificate{UserID: user.ID, ExamResultID: failed.ID, Code: "SGD-2025-001", IssuedAt: base, Status: domain.CertificateActive})
	if !errors.Is(err, domain.ErrDuplicateCertificate) {
		t.Fatalf("expected duplicate on code, got %v", err)
	}

	list, err := s.ListResultsByUser(ctx, user.ID)
	if err != nil {
		t.Fatalf("list results: %v", err)
	}
	if len(list) != 2 || list[0].ID != passed.ID || list[0].CertificateCode != "SGD-2025-001" || list[1].CertificateCode != "" {
		t.Fatalf("unexpected results %+v", list)
	}
	got, err := s.GetResult(ctx, passed.ID)
	if err != nil || !got.Passed || !got.CompletedAt.Equal(base.Add(time.Hour)) {
		t.Fatalf("get result: %+v err=%v", got, err)
	}
	if _, err := s.GetResult(ctx, 777); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	byCode, err := s.FindCertificateByCode(ctx, "SGD-2025-001")
	if err != nil || byCode.ID != cert.ID || byCode.HolderName != "Jorge Rojas" || byCode.HolderDNI != "40404040" {
		t.Fatalf("find by code: %+v err=%v", byCode, err)
	}
	byDNI, err := s.FindLatestCertificateByDNI(ctx, "40404040")
	if err != nil || byDNI.ID != cert.ID {
		t.Fatalf("find by dni: %+v err=%v", byDNI, err)
	}
	if _, err := s.FindCertificateByResult(ctx, failed.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected no certificate for failed result, got %v", err)
	}

	if err := s.UpdateCertificateStatus(ctx, cert.ID, domain.CertificateRevoked); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	revoked, _ := s.GetCertificate(ctx, cert.ID)
	if revoked.Status != domain.CertificateRevoked || revoked.Code != cert.Code || revoked.ExamResultID != passed.ID {
		t.Fatalf("unexpected revoked certificate %+v", revoked)
	}
	if err := s.UpdateCertificateStatus(ctx, 999, domain.CertificateRevoked); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found on missing certificate, got %v", err)
	}

	stats, err := s.Stats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.Candidates != 1 || stats.ExamsTaken != 2 || stats.ActiveCertificates != 0 || stats.PassRate != 50 {
		t.Fatalf("unexpected stats %+v", stats)
	}
}

func TestStoreSequenceIsMonotonicPerYear(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		seen = map[int]bool{}
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := s.NextCertificateSequence(ctx, 2025)
			if err != nil {
				t.Errorf("next sequence: %v", err)
				return
			}
			mu.Lock()
			seen[v] = true
			mu.Unlock()
		}()
	}
	wg.Wait()
	for v := 1; v <= 20; v++ {
		if !seen[v] {
			t.Fatalf("sequence %d missing, got %v", v, seen)
		}
	}
	if v, _ := s.NextCertificateSequence(ctx, 2026); v != 1 {
		t.Fatalf("expected new year to restart at 1, got %d", v)
	}
}

func TestMigrateRollback(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	if _, err := Rollback(ctx, s.DB()); err != nil {
		t.Fatalf("rollback: %v", err)
	}
	if _, err := s.LoadQuestions(ctx); err == nil {
		t.Fatalf("expected questions table dropped")
	}
	if _, err := Migrate(ctx, s.DB()); err != nil {
		t.Fatalf("re-migrate: %v", err)
	}
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	if _, err := Open("oracle", "dsn"); err == nil {
		t.Fatalf("expected error for unknown driver")
	}
	if _, err := Open(DriverSQLite, ""); err == nil {
		t.Fatalf("expected error for empty dsn")
	}
}
