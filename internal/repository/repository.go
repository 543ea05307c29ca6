package repository

//go:generate mockgen -source=repository.go -destination=mocks/mocks.go -package=mocks

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/nkiryanov/taskauth/internal/models"
)

// User repository interface
type UserRepo interface {
	// Create user
	// If user with username exists already has to return error apperrors.ErrUserAlreadyExists
	CreateUser(ctx context.Context, username string, hashedPassword string, role string) (models.User, error)

	// Get user by it's id or username
	// If user not found must return apperrors.ErrUserNotFound
	GetUserByID(ctx context.Context, userID uuid.UUID) (models.User, error)
	GetUserByUsername(ctx context.Context, username string) (models.User, error)
}

// Durable authentication store
type AuthenticationRepo interface {
	// Insert pending authentication or overwrite tokens of the persisted one
	// Returns the persisted authentication with the id assigned by the store
	Save(ctx context.Context, auth models.JWTAuthentication) (*models.PersistedAuthentication, error)

	// Lookups return apperrors.ErrAuthenticationNotFound if nothing matches
	FindByID(ctx context.Context, id int64) (*models.PersistedAuthentication, error)
	FindByRefreshToken(ctx context.Context, refresh string) (*models.PersistedAuthentication, error)
	FindByAccessToken(ctx context.Context, access string) (*models.PersistedAuthentication, error)

	// Must return apperrors.ErrAuthenticationNotFound if there is nothing to delete
	DeleteByID(ctx context.Context, id int64) error

	// Delete at most limit authentications whose refresh token expired before the given time
	// Returns the number of deleted authentications
	DeleteExpired(ctx context.Context, before time.Time, limit int) (int64, error)
}

// Fast-access token store
// It answers whether a token belongs to a live session
type TokenStore interface {
	Save(ctx context.Context, pair models.JWTPair) error

	// Deleting tokens that are absent is not an error
	Delete(ctx context.Context, pair models.JWTPair) error

	RefreshTokenExists(ctx context.Context, refresh string) (bool, error)
	AccessTokenExists(ctx context.Context, access string) (bool, error)
}

// Durable storage with transaction support
type Storage interface {
	User() UserRepo
	Authentication() AuthenticationRepo

	// Run fn inside a transaction
	// Commit if fn returns nil, rollback otherwise
	InTx(ctx context.Context, fn func(Storage) error) error
}
