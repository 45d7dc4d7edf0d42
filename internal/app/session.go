package app

import (
	"sync"
	"time"

	"sgd-certification-service/internal/domain"
)

// Session is one candidate's live exam. It is never persisted mid-flight; only the
// outcome produced by finalization reaches storage.
type Session struct {
	id          string
	candidateID int64
	questions   []domain.Question
	duration    int
	options     int
	now         func() time.Time

	mu          sync.Mutex
	state       domain.SessionState
	startedAt   time.Time
	answers     []int
	elapsed     int
	expired     bool
	result      *domain.ExamResult
	outcome     *domain.ExamOutcome
	lastError   string
	subscribers map[chan domain.SessionSnapshot]struct{}
	done        chan struct{}
}

// NewSessionWithClock builds a session in the NotStarted state; now stamps the start.
func NewSessionWithClock(id string, candidateID int64, questions []domain.Question, policy domain.Policy, now func() time.Time) *Session {
	answers := make([]int, len(questions))
	for i := range answers {
		answers[i] = domain.Unanswered
	}
	return &Session{
		id:          id,
		candidateID: candidateID,
		questions:   questions,
		duration:    policy.DurationSeconds,
		options:     policy.OptionsPerQuestion,
		now:         now,
		state:       domain.SessionNotStarted,
		answers:     answers,
		subscribers: make(map[chan domain.SessionSnapshot]struct{}),
		done:        make(chan struct{}),
	}
}

func (s *Session) ID() string { return s.id }

func (s *Session) CandidateID() int64 { return s.candidateID }

// Questions returns the ordered question set, including correct indices.
func (s *Session) Questions() []domain.Question {
	out := make([]domain.Question, len(s.questions))
	copy(out, s.questions)
	return out
}

func (s *Session) StartedAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.startedAt
}

// Done is closed once the session is completed or abandoned.
func (s *Session) Done() <-chan struct{} { return s.done }

// Begin moves NotStarted -> InProgress and starts the clock.
func (s *Session) Begin() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != domain.SessionNotStarted {
		return
	}
	s.state = domain.SessionInProgress
	s.startedAt = s.now()
	s.broadcastLocked()
}

// SelectAnswer records option for the question at position. Outside InProgress, once
// time ran out, or once the result is persisted, it is a no-op.
func (s *Session) SelectAnswer(position, option int) (domain.SessionSnapshot, error) {
	if position < 0 || position >= len(s.questions) || option < 0 || option >= s.options {
		return s.Snapshot(), domain.ErrAnswerOutOfRange
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != domain.SessionInProgress || s.expired || s.result != nil {
		return s.snapshotLocked(), nil
	}
	s.answers[position] = option
	return s.broadcastLocked(), nil
}

// Tick advances the countdown by one second. It returns a submission exactly once,
// on the tick where the remaining time reaches zero.
func (s *Session) Tick() (domain.SubmissionRequest, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != domain.SessionInProgress || s.expired {
		return domain.SubmissionRequest{}, false
	}
	s.elapsed++
	if s.elapsed < s.duration {
		s.broadcastLocked()
		return domain.SubmissionRequest{}, false
	}
	s.expired = true
	s.state = domain.SessionSubmitting
	s.broadcastLocked()
	return s.submissionLocked(), true
}

// Submit moves InProgress -> Submitting. Manual submit and expiry race on the same
// lock, so only one of them produces a request.
func (s *Session) Submit() (domain.SubmissionRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != domain.SessionInProgress {
		return domain.SubmissionRequest{}, domain.ErrSessionClosed
	}
	s.state = domain.SessionSubmitting
	s.broadcastLocked()
	return s.submissionLocked(), nil
}

// Resume reopens a Submitting session after a failed write. Answers are kept; an
// expired session, or one whose result is already stored, stays locked for answers
// but accepts a manual resubmit.
func (s *Session) Resume(cause error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != domain.SessionSubmitting {
		return
	}
	s.state = domain.SessionInProgress
	if cause != nil {
		s.lastError = cause.Error()
	}
	s.broadcastLocked()
}

// Complete records the outcome and closes the session.
func (s *Session) Complete(outcome domain.ExamOutcome) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == domain.SessionCompleted || s.state == domain.SessionAbandoned {
		return
	}
	s.state = domain.SessionCompleted
	s.outcome = &outcome
	s.lastError = ""
	s.broadcastLocked()
	close(s.done)
}

// Abandon discards the session without persisting anything. It reports whether the
// session was still open. A session with a stored result can only be resubmitted.
func (s *Session) Abandon() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != domain.SessionInProgress && s.state != domain.SessionNotStarted {
		return false
	}
	if s.result != nil {
		return false
	}
	s.state = domain.SessionAbandoned
	s.broadcastLocked()
	close(s.done)
	return true
}

// PersistedResult returns the exam result already written for this session, if any.
func (s *Session) PersistedResult() (domain.ExamResult, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.result == nil {
		return domain.ExamResult{}, false
	}
	return *s.result, true
}

func (s *Session) rememberResult(result domain.ExamResult) {
	s.mu.Lock()
	s.result = &result
	s.mu.Unlock()
}

func (s *Session) State() domain.SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) Snapshot() domain.SessionSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Subscribe returns a channel that receives snapshots on every change.
// The caller must invoke the returned cancel function to avoid leaks.
func (s *Session) Subscribe() (<-chan domain.SessionSnapshot, func()) {
	ch := make(chan domain.SessionSnapshot, 8)

	s.mu.Lock()
	s.subscribers[ch] = struct{}{}
	ch <- s.snapshotLocked()
	s.mu.Unlock()

	cancel := func() {
		s.mu.Lock()
		if _, ok := s.subscribers[ch]; ok {
			delete(s.subscribers, ch)
			close(ch)
		}
		s.mu.Unlock()
	}
	return ch, cancel
}

func (s *Session) submissionLocked() domain.SubmissionRequest {
	answers := make([]int, len(s.answers))
	copy(answers, s.answers)
	return domain.SubmissionRequest{
		SessionID:   s.id,
		CandidateID: s.candidateID,
		Answers:     answers,
	}
}

func (s *Session) broadcastLocked() domain.SessionSnapshot {
	snap := s.snapshotLocked()
	for ch := range s.subscribers {
		select {
		case ch <- snap:
		default:
			// slow reader: drop the stale snapshot and keep the newest
			select {
			case <-ch:
			default:
			}
			ch <- snap
		}
	}
	return snap
}

func (s *Session) snapshotLocked() domain.SessionSnapshot {
	answers := make([]int, len(s.answers))
	copy(answers, s.answers)
	answered := 0
	for _, a := range answers {
		if a != domain.Unanswered {
			answered++
		}
	}
	remaining := s.duration - s.elapsed
	if remaining < 0 {
		remaining = 0
	}
	return domain.SessionSnapshot{
		SessionID:        s.id,
		State:            s.state,
		RemainingSeconds: remaining,
		Answered:         answered,
		Total:            len(s.questions),
		Answers:          answers,
		Expired:          s.expired,
		LastError:        s.lastError,
		Outcome:          s.outcome,
	}
}
