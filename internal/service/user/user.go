package user

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/nkiryanov/taskauth/internal/apperrors"
	"github.com/nkiryanov/taskauth/internal/logger"
	"github.com/nkiryanov/taskauth/internal/models"
	"github.com/nkiryanov/taskauth/internal/repository"
)

type UserService struct {
	hasher   PasswordHasher
	userRepo repository.UserRepo
	logger   logger.Logger

	// Compared against when user is unknown, so both paths take the same time
	dummyOnce sync.Once
	dummyHash string
}

func NewService(hasher PasswordHasher, userRepo repository.UserRepo, l logger.Logger) *UserService {
	if hasher == nil {
		hasher = DefaultHasher
	}
	if l == nil {
		l = logger.NewNoOpLogger()
	}

	return &UserService{
		hasher:   hasher,
		userRepo: userRepo,
		logger:   l.With("component", "users"),
	}
}

func (s *UserService) CreateUser(ctx context.Context, username string, password string) (models.User, error) {
	var user models.User

	username = strings.TrimSpace(username)
	if username == "" {
		return user, fmt.Errorf("%w: username must not be empty", apperrors.ErrValidation)
	}
	if password == "" {
		return user, fmt.Errorf("%w: password must not be empty", apperrors.ErrValidation)
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return user, fmt.Errorf("can't use this as password, Err: %w", err)
	}

	user, err = s.userRepo.CreateUser(ctx, username, hash, models.RoleUser)
	if err != nil {
		return user, fmt.Errorf("can't create user. Err: %w", err)
	}

	s.logger.Info("user created", "user_id", user.ID)
	return user, nil
}

// Authenticate checks credentials and returns what tokens are issued for
// Unknown user and wrong password are reported the same way: apperrors.ErrBadCredentials
func (s *UserService) Authenticate(ctx context.Context, username string, password string) (models.UserAuthentication, error) {
	user, err := s.userRepo.GetUserByUsername(ctx, strings.TrimSpace(username))
	switch {
	case errors.Is(err, apperrors.ErrUserNotFound):
		_ = s.hasher.Compare(s.dummy(), password)
		return models.UserAuthentication{}, apperrors.ErrBadCredentials
	case err != nil:
		return models.UserAuthentication{}, fmt.Errorf("can't get user. Err: %w", err)
	}

	if err := s.hasher.Compare(user.HashedPassword, password); err != nil {
		s.logger.Debug("wrong password", "user_id", user.ID)
		return models.UserAuthentication{}, apperrors.ErrBadCredentials
	}

	return user.Authentication(), nil
}

func (s *UserService) GetUserByID(ctx context.Context, userID uuid.UUID) (models.User, error) {
	user, err := s.userRepo.GetUserByID(ctx, userID)
	if err != nil {
		return user, fmt.Errorf("can't get user. Err: %w", err)
	}
	return user, nil
}

func (s *UserService) dummy() string {
	s.dummyOnce.Do(func() {
		hash, err := s.hasher.Hash(uuid.NewString())
		if err != nil {
			s.logger.Error("can't prepare dummy password hash", "error", err)
		}
		s.dummyHash = hash
	})
	return s.dummyHash
}
