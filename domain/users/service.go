package users

import (
	"context"
	"errors"
	"log/slog"
	"net/mail"
	"unicode/utf8"

	"github.com/mkoskinen/benchcom/pkg/apperror"
	"github.com/mkoskinen/benchcom/pkg/auth"
	"github.com/mkoskinen/benchcom/pkg/logger"
)

const (
	minUsernameLength = 3
	maxUsernameLength = 255
	maxEmailLength    = 255
	minPasswordLength = 8
)

// Service handles registration, login and profile lookups.
type Service struct {
	store     Store
	passwords *auth.PasswordHasher
	tokens    *auth.TokenService
	log       *slog.Logger
}

// NewService creates a new users service
func NewService(store Store, passwords *auth.PasswordHasher, tokens *auth.TokenService, log *slog.Logger) *Service {
	return &Service{
		store:     store,
		passwords: passwords,
		tokens:    tokens,
		log:       log.With(logger.Scope("users.svc")),
	}
}

// Register creates an account after validating the request.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (*User, error) {
	if err := validateRegistration(req); err != nil {
		return nil, err
	}

	taken, err := s.store.ExistsByUsernameOrEmail(ctx, req.Username, req.Email)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, apperror.ErrDuplicateUser
	}

	hash, err := s.passwords.Hash(req.Password)
	if err != nil {
		return nil, apperror.NewInternal("Could not hash password", err)
	}

	user, err := s.store.Create(ctx, req.Username, req.Email, hash)
	if err != nil {
		return nil, err
	}
	s.log.Info("user registered", slog.Int64("user_id", user.ID))
	return user, nil
}

// Login verifies credentials and issues an access token.
func (s *Service) Login(ctx context.Context, req LoginRequest) (*TokenResponse, error) {
	if req.Username == "" {
		return nil, apperror.NewValidation("username", "username is required")
	}
	if req.Password == "" {
		return nil, apperror.NewValidation("password", "password is required")
	}

	user, err := s.store.FindByUsername(ctx, req.Username)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, apperror.ErrInvalidCredentials
		}
		return nil, err
	}
	if !s.passwords.Verify(user.HashedPassword, req.Password) || !user.IsActive {
		return nil, apperror.ErrInvalidCredentials
	}

	token, err := s.tokens.Issue(user.ID)
	if err != nil {
		return nil, apperror.NewInternal("Could not issue token", err)
	}
	return &TokenResponse{AccessToken: token, TokenType: "bearer"}, nil
}

// Me returns the account behind an authenticated identity.
func (s *Service) Me(ctx context.Context, id auth.Identity) (*User, error) {
	if id.IsAnonymous() {
		return nil, apperror.ErrUnauthorized
	}
	return s.store.FindByID(ctx, id.UserID)
}

func validateRegistration(req RegisterRequest) error {
	n := utf8.RuneCountInString(req.Username)
	if n < minUsernameLength || n > maxUsernameLength {
		return apperror.NewValidation("username", "username must be between 3 and 255 characters")
	}
	if len(req.Email) == 0 || len(req.Email) > maxEmailLength {
		return apperror.NewValidation("email", "email must be between 1 and 255 characters")
	}
	addr, err := mail.ParseAddress(req.Email)
	if err != nil || addr.Address != req.Email {
		return apperror.NewValidation("email", "email is not a valid address")
	}
	if utf8.RuneCountInString(req.Password) < minPasswordLength {
		return apperror.NewValidation("password", "password must be at least 8 characters")
	}
	if len(req.Password) > auth.MaxPasswordBytes {
		return apperror.NewValidation("password", "password must be at most 72 bytes")
	}
	return nil
}
