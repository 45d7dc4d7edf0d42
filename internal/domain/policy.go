package domain

import "fmt"

// Policy holds the exam and certification constants shared by the session controller,
// the scoring engine and the certificate issuer.
type Policy struct {
	QuestionCount      int
	DurationSeconds    int
	PassPercent        int
	MaxAttempts        int
	OptionsPerQuestion int
	CertificatePrefix  string
}

func DefaultPolicy() Policy {
	return Policy{
		QuestionCount:      10,
		DurationSeconds:    480,
		PassPercent:        80,
		MaxAttempts:        2,
		OptionsPerQuestion: 4,
		CertificatePrefix:  "SGD",
	}
}

// PassThreshold is ceil(PassPercent * total / 100).
func (p Policy) PassThreshold(total int) int {
	return (p.PassPercent*total + 99) / 100
}

// Validate rejects policies that cannot run an exam.
func (p Policy) Validate() error {
	switch {
	case p.QuestionCount <= 0:
		return fmt.Errorf("%w: question count must be positive", ErrValidation)
	case p.DurationSeconds <= 0:
		return fmt.Errorf("%w: duration must be positive", ErrValidation)
	case p.PassPercent <= 0 || p.PassPercent > 100:
		return fmt.Errorf("%w: pass percent must be in 1..100", ErrValidation)
	case p.MaxAttempts <= 0:
		return fmt.Errorf("%w: max attempts must be positive", ErrValidation)
	case p.OptionsPerQuestion < 2:
		return fmt.Errorf("%w: at least two options per question", ErrValidation)
	case p.CertificatePrefix == "":
		return fmt.Errorf("%w: certificate prefix is required", ErrValidation)
	}
	return nil
}

// CertificateCode formats <prefix>-<year>-<sequence padded to three digits>.
func (p Policy) CertificateCode(year, sequence int) string {
	return fmt.Sprintf("%s-%04d-%03d", p.CertificatePrefix, year, sequence)
}
