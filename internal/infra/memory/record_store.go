package memory

import (
	"context"
	"sort"
	"sync"

	"sgd-certification-service/internal/domain"
)

// RecordStore keeps users, questions, exam results and certificates in process.
// It mirrors the uniqueness rules of the SQL store and is meant for dev runs and tests.
type RecordStore struct {
	mu         sync.RWMutex
	users      map[int64]domain.User
	questions  map[int64]domain.Question
	results    map[int64]domain.ExamResult
	certs      map[int64]domain.Certificate
	sequences  map[int]int
	nextUser   int64
	nextResult int64
	nextCert   int64
	nextQ      int64
}

func NewRecordStore() *RecordStore {
	return &RecordStore{
		users:     make(map[int64]domain.User),
		questions: make(map[int64]domain.Question),
		results:   make(map[int64]domain.ExamResult),
		certs:     make(map[int64]domain.Certificate),
		sequences: make(map[int]int),
	}
}

func (s *RecordStore) CreateUser(_ context.Context, user domain.User) (domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.DNI == user.DNI || (user.Email != "" && u.Email == user.Email) {
			return domain.User{}, domain.ErrConflict
		}
	}
	s.nextUser++
	user.ID = s.nextUser
	s.users[user.ID] = user
	return user, nil
}

func (s *RecordStore) GetUser(_ context.Context, id int64) (domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return domain.User{}, domain.ErrNotFound
	}
	return u, nil
}

func (s *RecordStore) GetUserByDNI(_ context.Context, dni string) (domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if u.DNI == dni {
			return u, nil
		}
	}
	return domain.User{}, domain.ErrNotFound
}

// SaveQuestions inserts new questions and replaces those with a known id.
func (s *RecordStore) SaveQuestions(_ context.Context, questions []domain.Question) ([]domain.Question, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Question, 0, len(questions))
	for _, q := range questions {
		if q.ID == 0 {
			s.nextQ++
			q.ID = s.nextQ
		} else if q.ID > s.nextQ {
			s.nextQ = q.ID
		}
		s.questions[q.ID] = q
		out = append(out, q)
	}
	return out, nil
}

func (s *RecordStore) LoadQuestions(_ context.Context) ([]domain.Question, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Question, 0, len(s.questions))
	for _, q := range s.questions {
		out = append(out, q)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *RecordStore) CreateResult(_ context.Context, result domain.ExamResult) (domain.ExamResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextResult++
	result.ID = s.nextResult
	result.CertificateCode = ""
	s.results[result.ID] = result
	return result, nil
}

func (s *RecordStore) GetResult(_ context.Context, id int64) (domain.ExamResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.results[id]
	if !ok {
		return domain.ExamResult{}, domain.ErrNotFound
	}
	return s.withCodeLocked(r), nil
}

func (s *RecordStore) ListResultsByUser(_ context.Context, userID int64) ([]domain.ExamResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.ExamResult, 0)
	for _, r := range s.results {
		if r.UserID == userID {
			out = append(out, s.withCodeLocked(r))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CompletedAt.Equal(out[j].CompletedAt) {
			return out[i].CompletedAt.After(out[j].CompletedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func (s *RecordStore) AttemptSummary(_ context.Context, userID int64) (int, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	attempts, passed := 0, false
	for _, r := range s.results {
		if r.UserID == userID {
			attempts++
			passed = passed || r.Passed
		}
	}
	return attempts, passed, nil
}

func (s *RecordStore) CreateCertificate(_ context.Context, cert domain.Certificate) (domain.Certificate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.certs {
		if c.Code == cert.Code || c.ExamResultID == cert.ExamResultID {
			return domain.Certificate{}, domain.ErrDuplicateCertificate
		}
	}
	s.nextCert++
	cert.ID = s.nextCert
	cert.HolderName, cert.HolderDNI = "", ""
	s.certs[cert.ID] = cert
	return cert, nil
}

func (s *RecordStore) GetCertificate(_ context.Context, id int64) (domain.Certificate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.certs[id]
	if !ok {
		return domain.Certificate{}, domain.ErrNotFound
	}
	return s.withHolderLocked(c), nil
}

func (s *RecordStore) FindCertificateByResult(_ context.Context, examResultID int64) (domain.Certificate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, c := range s.certs {
		if c.ExamResultID == examResultID {
			return s.withHolderLocked(c), nil
		}
	}
	return domain.Certificate{}, domain.ErrNotFound
}

func (s *RecordStore) FindCertificateByCode(_ context.Context, code string) (domain.Certificate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, c := range s.certs {
		if c.Code == code {
			return s.withHolderLocked(c), nil
		}
	}
	return domain.Certificate{}, domain.ErrNotFound
}

func (s *RecordStore) FindLatestCertificateByDNI(_ context.Context, dni string) (domain.Certificate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var (
		latest domain.Certificate
		found  bool
	)
	for _, c := range s.certs {
		if s.users[c.UserID].DNI != dni {
			continue
		}
		if !found || c.IssuedAt.After(latest.IssuedAt) || (c.IssuedAt.Equal(latest.IssuedAt) && c.ID > latest.ID) {
			latest, found = c, true
		}
	}
	if !found {
		return domain.Certificate{}, domain.ErrNotFound
	}
	return s.withHolderLocked(latest), nil
}

func (s *RecordStore) ListCertificates(_ context.Context) ([]domain.Certificate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Certificate, 0, len(s.certs))
	for _, c := range s.certs {
		out = append(out, s.withHolderLocked(c))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (s *RecordStore) UpdateCertificateStatus(_ context.Context, id int64, status domain.CertificateStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.certs[id]
	if !ok {
		return domain.ErrNotFound
	}
	c.Status = status
	s.certs[id] = c
	return nil
}

func (s *RecordStore) NextCertificateSequence(_ context.Context, year int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sequences[year]++
	return s.sequences[year], nil
}

func (s *RecordStore) Stats(_ context.Context) (domain.Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var st domain.Stats
	for _, u := range s.users {
		if u.Role == domain.RoleCandidate {
			st.Candidates++
		}
	}
	passed := 0
	for _, r := range s.results {
		st.ExamsTaken++
		if r.Passed {
			passed++
		}
	}
	for _, c := range s.certs {
		if c.Status == domain.CertificateActive {
			st.ActiveCertificates++
		}
	}
	st.PassRate = domain.PassRate(passed, st.ExamsTaken)
	return st, nil
}

func (s *RecordStore) withCodeLocked(r domain.ExamResult) domain.ExamResult {
	for _, c := range s.certs {
		if c.ExamResultID == r.ID {
			r.CertificateCode = c.Code
			break
		}
	}
	return r
}

func (s *RecordStore) withHolderLocked(c domain.Certificate) domain.Certificate {
	if u, ok := s.users[c.UserID]; ok {
		c.HolderName = u.FullName()
		c.HolderDNI = u.DNI
	}
	return c
}
