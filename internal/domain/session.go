package domain

// SessionState follows NotStarted -> InProgress -> Submitting -> Completed.
// Submitting returns to InProgress when persistence fails so the candidate can retry.
type SessionState string

const (
	SessionNotStarted SessionState = "not_started"
	SessionInProgress SessionState = "in_progress"
	SessionSubmitting SessionState = "submitting"
	SessionCompleted  SessionState = "completed"
	SessionAbandoned  SessionState = "abandoned"
)

// Unanswered marks a question position with no selected option.
const Unanswered = -1

// SessionSnapshot is the client-facing view of an exam session.
type SessionSnapshot struct {
	SessionID        string       `json:"sessionId"`
	State            SessionState `json:"state"`
	RemainingSeconds int          `json:"remainingSeconds"`
	Answered         int          `json:"answered"`
	Total            int          `json:"total"`
	Answers          []int        `json:"answers"`
	Expired          bool         `json:"expired"`
	// LastError carries the most recent persistence failure so the client can offer a retry.
	LastError string       `json:"lastError,omitempty"`
	Outcome   *ExamOutcome `json:"outcome,omitempty"`
}

// ExamOutcome is what a finalized session produced.
type ExamOutcome struct {
	Result      ExamResult   `json:"result"`
	Certificate *Certificate `json:"certificate,omitempty"`
}

// SubmissionRequest is handed to the scoring engine once a session stops accepting answers.
type SubmissionRequest struct {
	SessionID   string
	CandidateID int64
	Answers     []int
}
