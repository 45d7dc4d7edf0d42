package store

import (
	"context"
	"fmt"

	"sgd-certification-service/internal/domain"

	"github.com/uptrace/bun"
)

// Store persists users, questions, exam results and certificates through bun.
// It serves both Postgres and SQLite; only the DDL differs between them.
type Store struct {
	db *bun.DB
}

func New(db *bun.DB) *Store {
	return &Store{db: db}
}

func (s *Store) DB() *bun.DB { return s.db }

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) CreateUser(ctx context.Context, user domain.User) (domain.User, error) {
	row := userRow{
		DNI:          user.DNI,
		FirstName:    user.FirstName,
		LastName:     user.LastName,
		Email:        user.Email,
		Phone:        user.Phone,
		PasswordHash: user.PasswordHash,
		Role:         string(user.Role),
		CreatedAt:    user.CreatedAt.UTC(),
	}
	if _, err := s.db.NewInsert().Model(&row).ExcludeColumn("id").Returning("id").Exec(ctx); err != nil {
		if isUniqueViolation(err) {
			return domain.User{}, domain.ErrConflict
		}
		return domain.User{}, fmt.Errorf("insert user: %w", err)
	}
	return row.toDomain(), nil
}

func (s *Store) GetUser(ctx context.Context, id int64) (domain.User, error) {
	var row userRow
	if err := s.db.NewSelect().Model(&row).Where("id = ?", id).Limit(1).Scan(ctx); err != nil {
		return domain.User{}, notFound(err)
	}
	return row.toDomain(), nil
}

func (s *Store) GetUserByDNI(ctx context.Context, dni string) (domain.User, error) {
	var row userRow
	if err := s.db.NewSelect().Model(&row).Where("dni = ?", dni).Limit(1).Scan(ctx); err != nil {
		return domain.User{}, notFound(err)
	}
	return row.toDomain(), nil
}

// SaveQuestions inserts new questions and overwrites those carrying a known id.
func (s *Store) SaveQuestions(ctx context.Context, questions []domain.Question) ([]domain.Question, error) {
	saved := make([]domain.Question, 0, len(questions))
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		for _, q := range questions {
			row := questionRow{
				ID:           q.ID,
				Prompt:       q.Prompt,
				Options:      q.Options,
				CorrectIndex: q.CorrectIndex,
				Category:     q.Category,
				Published:    true,
			}
			insert := tx.NewInsert().Model(&row)
			if q.ID == 0 {
				insert = insert.ExcludeColumn("id")
			} else {
				insert = insert.On("CONFLICT (id) DO UPDATE").
					Set("prompt = EXCLUDED.prompt").
					Set("options = EXCLUDED.options").
					Set("correct_index = EXCLUDED.correct_index").
					Set("category = EXCLUDED.category").
					Set("published = EXCLUDED.published")
			}
			if _, err := insert.Returning("id").Exec(ctx); err != nil {
				return fmt.Errorf("save question: %w", err)
			}
			saved = append(saved, row.toDomain())
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return saved, nil
}

// LoadQuestions returns the published bank; it satisfies the question loader used by the caches.
func (s *Store) LoadQuestions(ctx context.Context) ([]domain.Question, error) {
	var rows []questionRow
	if err := s.db.NewSelect().Model(&rows).Where("published = ?", true).OrderExpr("id ASC").Scan(ctx); err != nil {
		return nil, fmt.Errorf("load questions: %w", err)
	}
	out := make([]domain.Question, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out, nil
}

func (s *Store) CreateResult(ctx context.Context, result domain.ExamResult) (domain.ExamResult, error) {
	row := resultRow{
		UserID:         result.UserID,
		Score:          result.Score,
		TotalQuestions: result.TotalQuestions,
		Passed:         result.Passed,
		CompletedAt:    result.CompletedAt.UTC(),
	}
	if _, err := s.db.NewInsert().Model(&row).ExcludeColumn("id").Returning("id").Exec(ctx); err != nil {
		return domain.ExamResult{}, fmt.Errorf("insert exam result: %w", err)
	}
	return row.toDomain(), nil
}

func (s *Store) selectResults(rows *[]resultRow) *bun.SelectQuery {
	return s.db.NewSelect().
		Model(rows).
		ColumnExpr("r.*").
		ColumnExpr("COALESCE(c.code, '') AS certificate_code").
		Join("LEFT JOIN certificates AS c ON c.exam_result_id = r.id")
}

func (s *Store) GetResult(ctx context.Context, id int64) (domain.ExamResult, error) {
	var rows []resultRow
	if err := s.selectResults(&rows).Where("r.id = ?", id).Limit(1).Scan(ctx); err != nil {
		return domain.ExamResult{}, err
	}
	if len(rows) == 0 {
		return domain.ExamResult{}, domain.ErrNotFound
	}
	return rows[0].toDomain(), nil
}

func (s *Store) ListResultsByUser(ctx context.Context, userID int64) ([]domain.ExamResult, error) {
	var rows []resultRow
	err := s.selectResults(&rows).
		Where("r.user_id = ?", userID).
		OrderExpr("r.completed_at DESC, r.id DESC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list exam results: %w", err)
	}
	out := make([]domain.ExamResult, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out, nil
}

func (s *Store) AttemptSummary(ctx context.Context, userID int64) (int, bool, error) {
	attempts, err := s.db.NewSelect().Model((*resultRow)(nil)).Where("user_id = ?", userID).Count(ctx)
	if err != nil {
		return 0, false, fmt.Errorf("count attempts: %w", err)
	}
	if attempts == 0 {
		return 0, false, nil
	}
	passed, err := s.db.NewSelect().Model((*resultRow)(nil)).Where("user_id = ?", userID).Where("passed = ?", true).Exists(ctx)
	if err != nil {
		return 0, false, fmt.Errorf("check passed attempts: %w", err)
	}
	return attempts, passed, nil
}

func (s *Store) CreateCertificate(ctx context.Context, cert domain.Certificate) (domain.Certificate, error) {
	row := certificateRow{
		UserID:       cert.UserID,
		ExamResultID: cert.ExamResultID,
		Code:         cert.Code,
		IssuedAt:     cert.IssuedAt.UTC(),
		Status:       string(cert.Status),
	}
	if _, err := s.db.NewInsert().Model(&row).ExcludeColumn("id").Returning("id").Exec(ctx); err != nil {
		if isUniqueViolation(err) {
			return domain.Certificate{}, fmt.Errorf("%w: %v", domain.ErrDuplicateCertificate, err)
		}
		return domain.Certificate{}, fmt.Errorf("insert certificate: %w", err)
	}
	return row.toDomain(), nil
}

func (s *Store) selectCertificates(rows *[]certificateRow) *bun.SelectQuery {
	return s.db.NewSelect().
		Model(rows).
		ColumnExpr("c.*").
		ColumnExpr("COALESCE(u.first_name, '') AS holder_first_name").
		ColumnExpr("COALESCE(u.last_name, '') AS holder_last_name").
		ColumnExpr("COALESCE(u.dni, '') AS holder_dni").
		Join("LEFT JOIN users AS u ON u.id = c.user_id")
}

func (s *Store) firstCertificate(ctx context.Context, q *bun.SelectQuery, rows *[]certificateRow) (domain.Certificate, error) {
	if err := q.Limit(1).Scan(ctx); err != nil {
		return domain.Certificate{}, notFound(err)
	}
	if len(*rows) == 0 {
		return domain.Certificate{}, domain.ErrNotFound
	}
	return (*rows)[0].toDomain(), nil
}

func (s *Store) GetCertificate(ctx context.Context, id int64) (domain.Certificate, error) {
	var rows []certificateRow
	return s.firstCertificate(ctx, s.selectCertificates(&rows).Where("c.id = ?", id), &rows)
}

func (s *Store) FindCertificateByResult(ctx context.Context, examResultID int64) (domain.Certificate, error) {
	var rows []certificateRow
	return s.firstCertificate(ctx, s.selectCertificates(&rows).Where("c.exam_result_id = ?", examResultID), &rows)
}

func (s *Store) FindCertificateByCode(ctx context.Context, code string) (domain.Certificate, error) {
	var rows []certificateRow
	return s.firstCertificate(ctx, s.selectCertificates(&rows).Where("c.code = ?", code), &rows)
}

func (s *Store) FindLatestCertificateByDNI(ctx context.Context, dni string) (domain.Certificate, error) {
	var rows []certificateRow
	q := s.selectCertificates(&rows).
		Where("u.dni = ?", dni).
		OrderExpr("c.issued_at DESC, c.id DESC")
	return s.firstCertificate(ctx, q, &rows)
}

func (s *Store) ListCertificates(ctx context.Context) ([]domain.Certificate, error) {
	var rows []certificateRow
	if err := s.selectCertificates(&rows).OrderExpr("c.id DESC").Scan(ctx); err != nil {
		return nil, fmt.Errorf("list certificates: %w", err)
	}
	out := make([]domain.Certificate, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out, nil
}

// UpdateCertificateStatus touches the status column only.
func (s *Store) UpdateCertificateStatus(ctx context.Context, id int64, status domain.CertificateStatus) error {
	res, err := s.db.NewUpdate().
		Table("certificates").
		Set("status = ?", string(status)).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("update certificate status: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

const nextSequenceSQL = `INSERT INTO certificate_sequences (cert_year, last_value) VALUES (?, 1)
ON CONFLICT (cert_year) DO UPDATE SET last_value = certificate_sequences.last_value + 1
RETURNING last_value`

// NextCertificateSequence increments the per-year counter in a single statement, so
// concurrent issuers never observe the same value.
func (s *Store) NextCertificateSequence(ctx context.Context, year int) (int, error) {
	var value int
	if err := s.db.QueryRowContext(ctx, nextSequenceSQL, year).Scan(&value); err != nil {
		return 0, fmt.Errorf("next certificate sequence: %w", err)
	}
	return value, nil
}

func (s *Store) Stats(ctx context.Context) (domain.Stats, error) {
	var (
		st     domain.Stats
		passed int
		err    error
	)
	count := func(model interface{}, where string, arg interface{}) (int, error) {
		q := s.db.NewSelect().Model(model)
		if where != "" {
			q = q.Where(where, arg)
		}
		return q.Count(ctx)
	}
	if st.Candidates, err = count((*userRow)(nil), "role = ?", string(domain.RoleCandidate)); err != nil {
		return domain.Stats{}, fmt.Errorf("count candidates: %w", err)
	}
	if st.ExamsTaken, err = count((*resultRow)(nil), "", nil); err != nil {
		return domain.Stats{}, fmt.Errorf("count exams: %w", err)
	}
	if passed, err = count((*resultRow)(nil), "passed = ?", true); err != nil {
		return domain.Stats{}, fmt.Errorf("count passed exams: %w", err)
	}
	if st.ActiveCertificates, err = count((*certificateRow)(nil), "status = ?", string(domain.CertificateActive)); err != nil {
		return domain.Stats{}, fmt.Errorf("count certificates: %w", err)
	}
	st.PassRate = domain.PassRate(passed, st.ExamsTaken)
	return st, nil
}
