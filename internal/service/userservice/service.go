package userservice

import (
	"context"
	"errors"
	"net/mail"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"stockledger/internal/domain"
	apperror "stockledger/internal/errors"
	"stockledger/internal/pkg/logger"
)

const minPasswordLength = 8

// UserRepository is the persistence contract for accounts.
type UserRepository interface {
	Save(ctx context.Context, user domain.User) (domain.User, error)
	FindByUsername(ctx context.Context, username string) (domain.User, error)
	FindByID(ctx context.Context, id int64) (domain.User, error)
}

// TokenGenerator issues access tokens for authenticated users.
type TokenGenerator interface {
	GenerateToken(userID int64, role string) (string, error)
}

// UserService handles registration, login and the admin bootstrap.
type UserService struct {
	repo   UserRepository
	tokens TokenGenerator
	logger logger.Logger
	cost   int
}

func NewService(repo UserRepository, tokens TokenGenerator, logger logger.Logger) *UserService {
	return &UserService{repo: repo, tokens: tokens, logger: logger, cost: bcrypt.DefaultCost}
}

func validateRegistration(reg domain.UserRegistration) error {
	if strings.TrimSpace(reg.Username) == "" {
		return apperror.NewValidationError("username is required")
	}
	if _, err := mail.ParseAddress(reg.Email); err != nil {
		return apperror.NewValidationError("email is not a valid address")
	}
	if len(reg.Password) < minPasswordLength {
		return apperror.NewValidationError("password must be at least 8 characters")
	}
	return nil
}

// Register creates an account with a bcrypt-hashed password.
func (s *UserService) Register(ctx context.Context, reg domain.UserRegistration) (domain.User, error) {
	if err := validateRegistration(reg); err != nil {
		return domain.User{}, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(reg.Password), s.cost)
	if err != nil {
		return domain.User{}, apperror.NewInternalError("failed to hash password", err)
	}

	user, err := s.repo.Save(ctx, domain.User{
		Username:     strings.TrimSpace(reg.Username),
		Email:        reg.Email,
		PasswordHash: string(hash),
		IsAdmin:      reg.IsAdmin,
	})
	if err != nil {
		return domain.User{}, err
	}

	s.logger.Info("user registered", map[string]interface{}{"user_id": user.ID, "is_admin": user.IsAdmin})
	return user, nil
}

// Login checks the credentials and returns a signed token. Unknown users and wrong
// passwords get the same UnauthorizedError.
func (s *UserService) Login(ctx context.Context, username, password string) (string, error) {
	if username == "" || password == "" {
		return "", apperror.NewUnauthorizedError("username and password are required")
	}

	user, err := s.repo.FindByUsername(ctx, username)
	if apperror.IsNotFound(err) {
		return "", apperror.NewUnauthorizedError("invalid credentials")
	}
	if err != nil {
		return "", err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		s.logger.Info("login rejected", map[string]interface{}{"user_id": user.ID})
		return "", apperror.NewUnauthorizedError("invalid credentials")
	}

	signed, err := s.tokens.GenerateToken(user.ID, string(user.Role()))
	if err != nil {
		return "", apperror.NewInternalError("failed to issue token", err)
	}
	return signed, nil
}

// CurrentUser returns the account behind an authenticated request.
func (s *UserService) CurrentUser(ctx context.Context, id int64) (domain.User, error) {
	return s.repo.FindByID(ctx, id)
}

// EnsureAdmin creates the bootstrap admin account when it does not exist yet.
// It reports whether an account was created.
func (s *UserService) EnsureAdmin(ctx context.Context, reg domain.UserRegistration) (bool, error) {
	_, err := s.repo.FindByUsername(ctx, reg.Username)
	if err == nil {
		return false, nil
	}
	if !apperror.IsNotFound(err) {
		return false, err
	}

	reg.IsAdmin = true
	if _, err := s.Register(ctx, reg); err != nil {
		var conflict *apperror.ConflictError
		if errors.As(err, &conflict) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
