package store

import (
	"time"

	"sgd-certification-service/internal/domain"

	"github.com/uptrace/bun"
)

type userRow struct {
	bun.BaseModel `bun:"table:users,alias:u"`

	ID           int64     `bun:"id,pk,autoincrement"`
	DNI          string    `bun:"dni"`
	FirstName    string    `bun:"first_name"`
	LastName     string    `bun:"last_name"`
	Email        string    `bun:"email"`
	Phone        string    `bun:"phone"`
	PasswordHash string    `bun:"password_hash"`
	Role         string    `bun:"role"`
	CreatedAt    time.Time `bun:"created_at"`
}

func (r userRow) toDomain() domain.User {
	return domain.User{
		ID:           r.ID,
		DNI:          r.DNI,
		FirstName:    r.FirstName,
		LastName:     r.LastName,
		Email:        r.Email,
		Phone:        r.Phone,
		PasswordHash: r.PasswordHash,
		Role:         domain.Role(r.Role),
		CreatedAt:    r.CreatedAt.UTC(),
	}
}

type questionRow struct {
	bun.BaseModel `bun:"table:questions,alias:q"`

	ID           int64    `bun:"id,pk,autoincrement"`
	Prompt       string   `bun:"prompt"`
	Options      []string `bun:"options"`
	CorrectIndex int      `bun:"correct_index"`
	Category     string   `bun:"category"`
	Published    bool     `bun:"published"`
}

func (r questionRow) toDomain() domain.Question {
	return domain.Question{
		ID:           r.ID,
		Prompt:       r.Prompt,
		Options:      r.Options,
		CorrectIndex: r.CorrectIndex,
		Category:     r.Category,
	}
}

type resultRow struct {
	bun.BaseModel `bun:"table:exam_results,alias:r"`

	ID             int64     `bun:"id,pk,autoincrement"`
	UserID         int64     `bun:"user_id"`
	Score          int       `bun:"score"`
	TotalQuestions int       `bun:"total_questions"`
	Passed         bool      `bun:"passed"`
	CompletedAt    time.Time `bun:"completed_at"`

	CertificateCode string `bun:"certificate_code,scanonly"`
}

func (r resultRow) toDomain() domain.ExamResult {
	return domain.ExamResult{
		ID:              r.ID,
		UserID:          r.UserID,
		Score:           r.Score,
		TotalQuestions:  r.TotalQuestions,
		Passed:          r.Passed,
		CompletedAt:     r.CompletedAt.UTC(),
		CertificateCode: r.CertificateCode,
	}
}

type certificateRow struct {
	bun.BaseModel `bun:"table:certificates,alias:c"`

	ID           int64     `bun:"id,pk,autoincrement"`
	UserID       int64     `bun:"user_id"`
	ExamResultID int64     `bun:"exam_result_id"`
	Code         string    `bun:"code"`
	IssuedAt     time.Time `bun:"issued_at"`
	Status       string    `bun:"status"`

	HolderFirstName string `bun:"holder_first_name,scanonly"`
	HolderLastName  string `bun:"holder_last_name,scanonly"`
	HolderDNI       string `bun:"holder_dni,scanonly"`
}

func (r certificateRow) toDomain() domain.Certificate {
	cert := domain.Certificate{
		ID:           r.ID,
		UserID:       r.UserID,
		ExamResultID: r.ExamResultID,
		Code:         r.Code,
		IssuedAt:     r.IssuedAt.UTC(),
		Status:       domain.CertificateStatus(r.Status),
		HolderDNI:    r.HolderDNI,
	}
	if r.HolderFirstName != "" {
		cert.HolderName = domain.User{FirstName: r.HolderFirstName, LastName: r.HolderLastName}.FullName()
	}
	return cert
}
