package app

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"sgd-certification-service/internal/auth"
	"sgd-certification-service/internal/domain"
)

var dniPattern = regexp.MustCompile(`^\d{8}$`)

// RegisterAccount is the self-registration payload. Registered users are candidates.
type RegisterAccount struct {
	DNI       string
	FirstName string
	LastName  string
	Email     string
	Phone     string
	Password  string
}

// AccountService registers users and checks credentials. Token issuance happens in the
// transport layer.
type AccountService struct {
	users     UserRepository
	passwords auth.Passwords
	now       func() time.Time
}

// NewAccountService hashes with the given bcrypt cost; out-of-range costs fall back to the default.
func NewAccountService(users UserRepository, bcryptCost int) *AccountService {
	return &AccountService{users: users, passwords: auth.NewPasswords(bcryptCost), now: time.Now}
}

func (s *AccountService) Register(ctx context.Context, req RegisterAccount) (domain.User, error) {
	req.DNI = strings.TrimSpace(req.DNI)
	req.FirstName = strings.TrimSpace(req.FirstName)
	req.LastName = strings.TrimSpace(req.LastName)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))

	switch {
	case !dniPattern.MatchString(req.DNI):
		return domain.User{}, fmt.Errorf("%w: dni must have exactly 8 digits", domain.ErrValidation)
	case len(req.FirstName) < 2 || len(req.LastName) < 2:
		return domain.User{}, fmt.Errorf("%w: names need at least 2 characters", domain.ErrValidation)
	case len(req.Password) < 6:
		return domain.User{}, fmt.Errorf("%w: password needs at least 6 characters", domain.ErrValidation)
	}
	return s.create(ctx, req, domain.RoleCandidate)
}

// CreateAdmin provisions an administrator; used by the seed command.
func (s *AccountService) CreateAdmin(ctx context.Context, req RegisterAccount) (domain.User, error) {
	if strings.TrimSpace(req.DNI) == "" || len(req.Password) < 6 {
		return domain.User{}, fmt.Errorf("%w: admin needs a dni and a password of 6+ characters", domain.ErrValidation)
	}
	return s.create(ctx, req, domain.RoleAdmin)
}

func (s *AccountService) create(ctx context.Context, req RegisterAccount, role domain.Role) (domain.User, error) {
	hash, err := s.passwords.Hash(req.Password)
	if err != nil {
		return domain.User{}, fmt.Errorf("hash password: %w", err)
	}
	return s.users.CreateUser(ctx, domain.User{
		DNI:          strings.TrimSpace(req.DNI),
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		Email:        req.Email,
		Phone:        strings.TrimSpace(req.Phone),
		PasswordHash: hash,
		Role:         role,
		CreatedAt:    s.now().UTC(),
	})
}

// Authenticate verifies a DNI and password pair.
func (s *AccountService) Authenticate(ctx context.Context, dni, password string) (domain.User, error) {
	user, err := s.users.GetUserByDNI(ctx, strings.TrimSpace(dni))
	if errors.Is(err, domain.ErrNotFound) {
		return domain.User{}, domain.ErrInvalidCredentials
	}
	if err != nil {
		return domain.User{}, err
	}
	if err := s.passwords.Check(user.PasswordHash, password); err != nil {
		return domain.User{}, domain.ErrInvalidCredentials
	}
	return user, nil
}

func (s *AccountService) Get(ctx context.Context, id int64) (domain.User, error) {
	return s.users.GetUser(ctx, id)
}
