package app

import (
	"context"

	"sgd-certification-service/internal/domain"
)

// SessionRepository abstracts where live exam sessions are held (in-memory, Redis-marked, etc).
type SessionRepository interface {
	Save(session *Session)
	Get(sessionID string) (*Session, bool)
	Delete(sessionID string)
}

// QuestionPool returns the published question bank, usually through a cache.
type QuestionPool interface {
	Questions(ctx context.Context) ([]domain.Question, error)
}

// ResultRepository persists exam results. Results are immutable once created.
type ResultRepository interface {
	CreateResult(ctx context.Context, result domain.ExamResult) (domain.ExamResult, error)
	GetResult(ctx context.Context, id int64) (domain.ExamResult, error)
	// ListResultsByUser returns results newest first.
	ListResultsByUser(ctx context.Context, userID int64) ([]domain.ExamResult, error)
	// AttemptSummary reports how many results a user has and whether any passed.
	AttemptSummary(ctx context.Context, userID int64) (attempts int, passed bool, err error)
}

// CertificateRepository persists certificates. Implementations must enforce unique
// code and unique exam result id and report violations as domain.ErrDuplicateCertificate.
type CertificateRepository interface {
	CreateCertificate(ctx context.Context, cert domain.Certificate) (domain.Certificate, error)
	GetCertificate(ctx context.Context, id int64) (domain.Certificate, error)
	FindCertificateByResult(ctx context.Context, examResultID int64) (domain.Certificate, error)
	// FindCertificateByCode and FindLatestCertificateByDNI fill the holder fields.
	FindCertificateByCode(ctx context.Context, code string) (domain.Certificate, error)
	FindLatestCertificateByDNI(ctx context.Context, dni string) (domain.Certificate, error)
	ListCertificates(ctx context.Context) ([]domain.Certificate, error)
	UpdateCertificateStatus(ctx context.Context, id int64, status domain.CertificateStatus) error
	// NextCertificateSequence atomically increments and returns the counter for year.
	NextCertificateSequence(ctx context.Context, year int) (int, error)
}

// UserRepository persists portal accounts. Duplicate DNI or email yields domain.ErrConflict.
type UserRepository interface {
	CreateUser(ctx context.Context, user domain.User) (domain.User, error)
	GetUser(ctx context.Context, id int64) (domain.User, error)
	GetUserByDNI(ctx context.Context, dni string) (domain.User, error)
}

// StatsRepository aggregates the admin dashboard numbers.
type StatsRepository interface {
	Stats(ctx context.Context) (domain.Stats, error)
}
