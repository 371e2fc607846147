package identity

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/oxycare/oxycare/internal/platform/apperr"
	"github.com/oxycare/oxycare/internal/platform/auth"
	"github.com/oxycare/oxycare/pkg/pagination"
)

var (
	ErrNotFound           = apperr.NotFound("user not found")
	ErrDuplicateEmail     = apperr.Conflict("email already exists")
	ErrInvalidCredentials = apperr.Unauthenticated("invalid email or password")
	ErrAccountDisabled    = apperr.Unauthenticated("user account is deactivated")
	ErrElevatedRole       = apperr.Forbidden("only an administrator can grant the admin or technicien role")
)

// TokenIssuer signs session tokens.
type TokenIssuer interface {
	Issue(userID uuid.UUID, role string) (string, time.Time, error)
}

type Service struct {
	repo   Repository
	tokens TokenIssuer
	logger zerolog.Logger
}

func NewService(repo Repository, tokens TokenIssuer, logger zerolog.Logger) *Service {
	return &Service{repo: repo, tokens: tokens, logger: logger}
}

// Register is the self-service sign-up. It only creates plain users.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (*User, error) {
	req.normalize()
	if req.Role != auth.RoleUser && validRoles[req.Role] {
		return nil, ErrElevatedRole
	}
	return s.create(ctx, req)
}

// CreateUser creates an account with any role. Callers must be admins.
func (s *Service) CreateUser(ctx context.Context, req RegisterRequest) (*User, error) {
	req.normalize()
	return s.create(ctx, req)
}

func (s *Service) create(ctx context.Context, req RegisterRequest) (*User, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if _, err := s.repo.GetByEmail(ctx, req.Email); err == nil {
		return nil, ErrDuplicateEmail
	} else if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		return nil, apperr.Internal("register user", err)
	}
	u := &User{
		Email:        req.Email,
		PasswordHash: hash,
		Nom:          req.Nom,
		Prenom:       req.Prenom,
		Role:         req.Role,
		IsActive:     true,
	}
	if err := s.repo.Create(ctx, u); err != nil {
		return nil, err
	}
	s.logger.Info().Str("user_id", u.ID.String()).Str("role", u.Role).Msg("user registered")
	return u, nil
}

// Authenticate checks the credentials and issues a session token.
func (s *Service) Authenticate(ctx context.Context, req LoginRequest) (*Session, error) {
	v := apperr.Violations{}
	v.Require("email", req.Email)
	v.Require("password", req.Password)
	if err := v.Err(); err != nil {
		return nil, err
	}

	u, err := s.repo.GetByEmail(ctx, normalizeEmail(req.Email))
	if errors.Is(err, ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if !auth.CheckPassword(u.PasswordHash, req.Password) {
		return nil, ErrInvalidCredentials
	}
	if !u.IsActive {
		return nil, ErrAccountDisabled
	}

	token, expiresAt, err := s.tokens.Issue(u.ID, u.Role)
	if err != nil {
		return nil, apperr.Internal("issue token", err)
	}
	return &Session{Token: token, ExpiresAt: expiresAt, User: u}, nil
}

// Me returns the account of the authenticated caller.
func (s *Service) Me(ctx context.Context) (*User, error) {
	id, ok := auth.CallerID(ctx)
	if !ok {
		return nil, apperr.Unauthenticated("authentication required")
	}
	return s.repo.GetByID(ctx, id)
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*User, error) {
	return s.repo.GetByID(ctx, id)
}

// Deactivate disables an account; existing tokens stop working at expiry.
func (s *Service) Deactivate(ctx context.Context, id uuid.UUID) error {
	if caller, ok := auth.CallerID(ctx); ok && caller == id {
		return apperr.Conflict("an administrator cannot deactivate their own account")
	}
	if err := s.repo.SetActive(ctx, id, false); err != nil {
		return err
	}
	s.logger.Info().Str("user_id", id.String()).Msg("user deactivated")
	return nil
}

func (s *Service) List(ctx context.Context, role *string, page pagination.Params) ([]*User, int, error) {
	return s.repo.List(ctx, role, page)
}

// EnsureUser creates the account unless the email is already registered.
// It reports whether a new account was created.
func (s *Service) EnsureUser(ctx context.Context, req RegisterRequest) (bool, error) {
	_, err := s.CreateUser(ctx, req)
	if errors.Is(err, ErrDuplicateEmail) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
