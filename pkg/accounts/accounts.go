// Package accounts registers users and checks their credentials.
package accounts

import (
	"context"
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"filehost/pkg/apperr"
	"filehost/pkg/log"
	"filehost/pkg/metadata"
	"filehost/pkg/models"
)

// ReasonUserExists is the conflict reason returned for a taken username or email.
const ReasonUserExists = "user already exists"

// bcrypt ignores everything past 72 bytes, so longer passwords are refused outright.
const maxPasswordBytes = 72

// UserStore is the subset of the metadata store accounts needs.
type UserStore interface {
	CreateUser(ctx context.Context, username, email, passwordHash string) (*models.User, error)
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
}

// Service implements registration and login.
type Service struct {
	users UserStore
	cost  int
}

// New creates an account service. A cost of 0 selects bcrypt.DefaultCost.
func New(users UserStore, cost int) *Service {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	return &Service{users: users, cost: cost}
}

// RegisterRequest is the body of POST /api/auth/register.
type RegisterRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginRequest is the body of POST /api/auth/login.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Register validates the request, digests the password and creates the user.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (*models.User, error) {
	username := strings.TrimSpace(req.Username)
	email := strings.TrimSpace(req.Email)

	switch {
	case username == "" || email == "" || req.Password == "":
		return nil, apperr.ValidationError{Reason: "username, email and password are required"}
	case !strings.Contains(email, "@"):
		return nil, apperr.ValidationError{Reason: "invalid email"}
	case len(req.Password) > maxPasswordBytes:
		return nil, apperr.ValidationError{Reason: "password is too long"}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.cost)
	if err != nil {
		log.Error().Err(err).Msg("Failed to hash password")
		return nil, apperr.StorageError{Op: "hash password", Err: err}
	}

	user, err := s.users.CreateUser(ctx, username, email, string(hash))
	switch {
	case errors.Is(err, metadata.ErrDuplicateUser):
		log.Debug().Str("username", username).Err(err).Msg("Registration rejected")
		return nil, apperr.ConflictError{Reason: ReasonUserExists}
	case errors.Is(err, metadata.ErrInvalidInput):
		return nil, apperr.ValidationError{Reason: "username, email and password are required"}
	case err != nil:
		log.Error().Err(err).Str("username", username).Msg("Failed to create user")
		return nil, apperr.StorageError{Op: "create user", Err: err}
	}

	log.Info().Int64("user_id", user.ID).Str("username", user.Username).Msg("User registered")
	return user, nil
}

// Login returns the user whose stored digest matches password.
// Unknown usernames and wrong passwords produce the same AuthError.
func (s *Service) Login(ctx context.Context, req LoginRequest) (*models.User, error) {
	username := strings.TrimSpace(req.Username)
	if username == "" || req.Password == "" {
		return nil, apperr.ValidationError{Reason: "username and password are required"}
	}

	user, err := s.users.GetUserByUsername(ctx, username)
	if errors.Is(err, metadata.ErrUserNotFound) {
		log.Debug().Str("username", username).Msg("Login for unknown user")
		return nil, apperr.AuthError{}
	}
	if err != nil {
		log.Error().Err(err).Str("username", username).Msg("Failed to look up user")
		return nil, apperr.StorageError{Op: "get user", Err: err}
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)) != nil {
		log.Debug().Str("username", username).Msg("Login with wrong password")
		return nil, apperr.AuthError{}
	}

	return user, nil
}
