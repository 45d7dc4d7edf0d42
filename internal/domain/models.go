package domain

import (
	"fmt"
	"time"
)

// Role is the identity role attached to an actor.
type Role string

const (
	RoleCandidate Role = "postulante"
	RoleVerifier  Role = "verificador"
	RoleAdmin     Role = "admin"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleCandidate, RoleVerifier, RoleAdmin:
		return true
	}
	return false
}

// Actor is the identity supplied by the authentication layer. The core trusts it.
type Actor struct {
	ID   int64
	Role Role
}

// Question models a published multiple-choice question.
type Question struct {
	ID           int64    `json:"id"`
	Prompt       string   `json:"prompt"`
	Options      []string `json:"options"`
	CorrectIndex int      `json:"correctIndex"`
	Category     string   `json:"category,omitempty"`
}

// Validate checks the option count and that the correct index points into the options.
func (q Question) Validate(optionsPerQuestion int) error {
	if len(q.Options) != optionsPerQuestion {
		return fmt.Errorf("%w: question %d has %d options, want %d", ErrInvalidQuestionSet, q.ID, len(q.Options), optionsPerQuestion)
	}
	if q.CorrectIndex < 0 || q.CorrectIndex >= len(q.Options) {
		return fmt.Errorf("%w: question %d correct index %d out of range", ErrInvalidQuestionSet, q.ID, q.CorrectIndex)
	}
	return nil
}

// ExamResult is the persisted outcome of one submitted exam session.
type ExamResult struct {
	ID             int64     `json:"id"`
	UserID         int64     `json:"userId"`
	Score          int       `json:"score"`
	TotalQuestions int       `json:"totalQuestions"`
	Passed         bool      `json:"passed"`
	CompletedAt    time.Time `json:"completedAt"`
	// CertificateCode is filled on reads from the linked certificate, if any.
	CertificateCode string `json:"certificateCode,omitempty"`
}

// CertificateStatus is either active or revoked.
type CertificateStatus string

const (
	CertificateActive  CertificateStatus = "active"
	CertificateRevoked CertificateStatus = "revoked"
)

// ParseCertificateStatus accepts the canonical names and the legacy activo/revocado values.
func ParseCertificateStatus(raw string) (CertificateStatus, error) {
	switch raw {
	case "", "active", "activo":
		return CertificateActive, nil
	case "revoked", "revocado":
		return CertificateRevoked, nil
	}
	return "", fmt.Errorf("%w: unknown certificate status %q", ErrValidation, raw)
}

// Legacy returns the Spanish wire name of the status.
func (s CertificateStatus) Legacy() string {
	if s == CertificateRevoked {
		return "revocado"
	}
	return "activo"
}

// Certificate links one passing exam result to a unique public code.
type Certificate struct {
	ID           int64             `json:"id"`
	UserID       int64             `json:"userId"`
	ExamResultID int64             `json:"examResultId"`
	Code         string            `json:"code"`
	IssuedAt     time.Time         `json:"issuedAt"`
	Status       CertificateStatus `json:"status"`

	// Holder fields are populated by verification lookups only.
	HolderName string `json:"holderName,omitempty"`
	HolderDNI  string `json:"holderDni,omitempty"`
}

// User is a registered portal account.
type User struct {
	ID           int64     `json:"id"`
	DNI          string    `json:"dni"`
	FirstName    string    `json:"firstName"`
	LastName     string    `json:"lastName"`
	Email        string    `json:"email"`
	Phone        string    `json:"phone,omitempty"`
	PasswordHash string    `json:"-"`
	Role         Role      `json:"role"`
	CreatedAt    time.Time `json:"createdAt"`
}

// FullName joins first and last name.
func (u User) FullName() string {
	if u.LastName == "" {
		return u.FirstName
	}
	return u.FirstName + " " + u.LastName
}

// Stats is the admin dashboard summary.
type Stats struct {
	Candidates         int `json:"candidates"`
	ExamsTaken         int `json:"examsTaken"`
	ActiveCertificates int `json:"activeCertificates"`
	PassRate           int `json:"passRate"`
}

// PassRate is the rounded percentage of passed exams, zero when nothing was taken.
func PassRate(passed, taken int) int {
	if taken == 0 {
		return 0
	}
	return (passed*100 + taken/2) / taken
}
