package app

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"sgd-certification-service/internal/domain"
	"sgd-certification-service/internal/logger"

	"github.com/google/uuid"
)

// ExamService contains the exam session use cases: start, answer, tick, submit, abandon.
type ExamService struct {
	sessions  SessionRepository
	questions QuestionPool
	results   ResultRepository
	issuer    *Issuer
	policy    domain.Policy

	now          func() time.Time
	newID        func() string
	tickInterval time.Duration

	rndMu sync.Mutex
	rnd   *rand.Rand
}

// ExamOption customizes an ExamService.
type ExamOption func(*ExamService)

// WithClock sets the clock used for session and result timestamps.
func WithClock(now func() time.Time) ExamOption {
	return func(s *ExamService) { s.now = now }
}

// WithRand sets the source used to draw questions.
func WithRand(rnd *rand.Rand) ExamOption {
	return func(s *ExamService) { s.rnd = rnd }
}

// WithTickInterval enables the server-side countdown. Zero leaves ticking to the caller.
func WithTickInterval(d time.Duration) ExamOption {
	return func(s *ExamService) { s.tickInterval = d }
}

// WithSessionIDs overrides session id generation.
func WithSessionIDs(newID func() string) ExamOption {
	return func(s *ExamService) { s.newID = newID }
}

func NewExamService(sessions SessionRepository, questions QuestionPool, results ResultRepository, issuer *Issuer, policy domain.Policy, opts ...ExamOption) *ExamService {
	s := &ExamService{
		sessions:  sessions,
		questions: questions,
		results:   results,
		issuer:    issuer,
		policy:    policy,
		now:       time.Now,
		newID:     uuid.NewString,
		rnd:       rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *ExamService) Policy() domain.Policy { return s.policy }

// CanStart reports whether the candidate may open a new session: no passing result
// yet and fewer results than the attempt cap.
func (s *ExamService) CanStart(ctx context.Context, actor domain.Actor) error {
	if actor.Role != domain.RoleCandidate {
		return domain.ErrUnauthorized
	}
	attempts, passed, err := s.results.AttemptSummary(ctx, actor.ID)
	if err != nil {
		return fmt.Errorf("%w: attempt summary: %w", domain.ErrPersistence, err)
	}
	if passed || attempts >= s.policy.MaxAttempts {
		return domain.ErrAttemptsExhausted
	}
	return nil
}

// Start opens a new session for the candidate with a freshly drawn question set.
// No timer runs unless the question set is valid.
func (s *ExamService) Start(ctx context.Context, actor domain.Actor) (*Session, error) {
	if err := s.CanStart(ctx, actor); err != nil {
		return nil, err
	}
	questions, err := s.FetchRandomQuestions(ctx, s.policy.QuestionCount)
	if err != nil {
		return nil, err
	}

	session := NewSessionWithClock(s.newID(), actor.ID, questions, s.policy, s.now)
	s.sessions.Save(session)
	session.Begin()

	if s.tickInterval > 0 {
		go s.countdown(session)
	}
	logger.Info().
		Str("session_id", session.ID()).
		Int64("user_id", actor.ID).
		Int("questions", len(questions)).
		Msg("exam session started")
	return session, nil
}

// FetchRandomQuestions draws count distinct questions from the pool. A pool smaller
// than count, or any malformed question, fails with domain.ErrInvalidQuestionSet.
func (s *ExamService) FetchRandomQuestions(ctx context.Context, count int) ([]domain.Question, error) {
	pool, err := s.questions.Questions(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: load question bank: %w", domain.ErrInvalidQuestionSet, err)
	}
	if count <= 0 || len(pool) < count {
		return nil, fmt.Errorf("%w: need %d questions, bank has %d", domain.ErrInvalidQuestionSet, count, len(pool))
	}

	s.rndMu.Lock()
	order := s.rnd.Perm(len(pool))
	s.rndMu.Unlock()

	picked := make([]domain.Question, 0, count)
	for _, idx := range order[:count] {
		q := pool[idx]
		if err := q.Validate(s.policy.OptionsPerQuestion); err != nil {
			return nil, err
		}
		picked = append(picked, q)
	}
	return picked, nil
}

// Session returns the live session owned by actor.
func (s *ExamService) Session(actor domain.Actor, sessionID string) (*Session, error) {
	session, ok := s.sessions.Get(sessionID)
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	if session.CandidateID() != actor.ID {
		return nil, domain.ErrUnauthorized
	}
	return session, nil
}

// Answer selects option for the question at position.
func (s *ExamService) Answer(_ context.Context, actor domain.Actor, sessionID string, position, option int) (domain.SessionSnapshot, error) {
	session, err := s.Session(actor, sessionID)
	if err != nil {
		return domain.SessionSnapshot{}, err
	}
	return session.SelectAnswer(position, option)
}

// Submit finalizes the session on the candidate's request. After a persistence
// failure the same call can be repeated; answers are preserved in between.
func (s *ExamService) Submit(ctx context.Context, actor domain.Actor, sessionID string) (domain.ExamOutcome, error) {
	session, err := s.Session(actor, sessionID)
	if err != nil {
		return domain.ExamOutcome{}, err
	}
	req, err := session.Submit()
	if err != nil {
		return domain.ExamOutcome{}, err
	}
	return s.finalize(ctx, session, req)
}

// Tick advances one session by a second and finalizes it on expiry. It reports
// whether this tick triggered the submission.
func (s *ExamService) Tick(ctx context.Context, sessionID string) (bool, error) {
	session, ok := s.sessions.Get(sessionID)
	if !ok {
		return false, domain.ErrSessionNotFound
	}
	req, fired := session.Tick()
	if !fired {
		return false, nil
	}
	_, err := s.finalize(ctx, session, req)
	return true, err
}

// Abandon discards the session; nothing is persisted.
func (s *ExamService) Abandon(_ context.Context, actor domain.Actor, sessionID string) error {
	session, err := s.Session(actor, sessionID)
	if err != nil {
		return err
	}
	if !session.Abandon() {
		return domain.ErrSessionClosed
	}
	s.sessions.Delete(sessionID)
	logger.Info().Str("session_id", sessionID).Int64("user_id", actor.ID).Msg("exam session abandoned")
	return nil
}

// finalize scores the submission, writes the result once, issues a certificate on a
// pass and closes the session. On failure the session reopens for a manual retry.
func (s *ExamService) finalize(ctx context.Context, session *Session, req domain.SubmissionRequest) (domain.ExamOutcome, error) {
	result, persisted := session.PersistedResult()
	if !persisted {
		scored, err := Score(req.Answers, session.Questions(), s.policy)
		if err != nil {
			session.Resume(err)
			return domain.ExamOutcome{}, err
		}
		result, err = s.results.CreateResult(ctx, domain.ExamResult{
			UserID:         req.CandidateID,
			Score:          scored.Score,
			TotalQuestions: scored.Total,
			Passed:         scored.Passed,
			CompletedAt:    s.now().UTC(),
		})
		if err != nil {
			err = fmt.Errorf("%w: save exam result: %w", domain.ErrPersistence, err)
			s.fail(session, err)
			return domain.ExamOutcome{}, err
		}
		session.rememberResult(result)
	}

	outcome := domain.ExamOutcome{Result: result}
	if result.Passed {
		cert, err := s.issuer.Issue(ctx, req.CandidateID, result.ID)
		if err != nil {
			s.fail(session, err)
			return domain.ExamOutcome{}, err
		}
		outcome.Certificate = &cert
		outcome.Result.CertificateCode = cert.Code
	}

	session.Complete(outcome)
	s.sessions.Delete(session.ID())
	logger.Info().
		Str("session_id", session.ID()).
		Int64("user_id", req.CandidateID).
		Int("score", result.Score).
		Int("total", result.TotalQuestions).
		Bool("passed", result.Passed).
		Msg("exam session completed")
	return outcome, nil
}

func (s *ExamService) fail(session *Session, err error) {
	logger.Error().Err(err).Str("session_id", session.ID()).Msg("exam submission failed, awaiting retry")
	session.Resume(err)
}

func (s *ExamService) countdown(session *Session) {
	ticker := time.NewTicker(s.tickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-session.Done():
			return
		case <-ticker.C:
			req, fired := session.Tick()
			if !fired {
				continue
			}
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			_, _ = s.finalize(ctx, session, req)
			cancel()
			return
		}
	}
}
