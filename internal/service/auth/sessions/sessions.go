// Package sessions keeps the durable authentication store and the fast-access token store in line.
//
// The durable store is the source of truth and is always written first. The token store only
// tells whether a token belongs to a live session. There is no distributed transaction between
// them: a failed token store write after a durable insert is undone by deleting the durable record.
package sessions

import (
	"context"
	"errors"
	"fmt"

	"github.com/nkiryanov/taskauth/internal/apperrors"
	"github.com/nkiryanov/taskauth/internal/logger"
	"github.com/nkiryanov/taskauth/internal/models"
	"github.com/nkiryanov/taskauth/internal/repository"
)

type Coordinator struct {
	storage repository.Storage
	tokens  repository.TokenStore
	logger  logger.Logger
}

func New(storage repository.Storage, tokens repository.TokenStore, l logger.Logger) (*Coordinator, error) {
	if storage == nil || tokens == nil {
		return nil, errors.New("storage and token store must not be nil")
	}
	if l == nil {
		l = logger.NewNoOpLogger()
	}

	return &Coordinator{
		storage: storage,
		tokens:  tokens,
		logger:  l.With("component", "sessions"),
	}, nil
}

// Activate stores the authentication and makes its tokens live.
// When the call returns either both stores hold the session or none does.
// If the durable record could not be removed after a failed activation, the error wraps apperrors.ErrCompensationFailed.
func (c *Coordinator) Activate(ctx context.Context, pending *models.PendingAuthentication) (*models.PersistedAuthentication, error) {
	auth, err := c.storage.Authentication().Save(ctx, pending)
	if err != nil {
		return nil, fmt.Errorf("error while persisting authentication. Err: %w", err)
	}
	c.logger.Debug("authentication persisted", "authentication_id", auth.ID(), "user_id", auth.UserID())

	activateErr := c.tokens.Save(ctx, auth.Pair())
	if activateErr == nil {
		c.logger.Debug("authentication activated", "authentication_id", auth.ID())
		return auth, nil
	}

	c.logger.Warn("authentication activation failed, compensating",
		"authentication_id", auth.ID(),
		"error", activateErr,
	)

	if err := c.compensate(ctx, auth.ID()); err != nil {
		c.logger.Error("compensation failed, durable store holds an inactive authentication",
			"authentication_id", auth.ID(),
			"activation_error", activateErr,
			"compensation_error", err,
		)
		return nil, fmt.Errorf("%w: authentication %d: activation error: %w, compensation error: %w",
			apperrors.ErrCompensationFailed, auth.ID(), activateErr, err)
	}

	return nil, fmt.Errorf("error while activating authentication. Err: %w", activateErr)
}

// The durable record is removed even if the request context is already cancelled
func (c *Coordinator) compensate(ctx context.Context, id int64) error {
	err := c.storage.Authentication().DeleteByID(context.WithoutCancel(ctx), id)
	if errors.Is(err, apperrors.ErrAuthenticationNotFound) {
		return nil
	}
	return err
}

// FindByRefreshToken returns the session the live refresh token belongs to.
// The token store decides liveness; a token it does not know is treated as revoked.
func (c *Coordinator) FindByRefreshToken(ctx context.Context, refresh models.JWT) (*models.PersistedAuthentication, error) {
	live, err := c.tokens.RefreshTokenExists(ctx, refresh.Encoded())
	if err != nil {
		return nil, fmt.Errorf("error while checking refresh token. Err: %w", err)
	}
	if !live {
		return nil, fmt.Errorf("refresh token is not live: %w", apperrors.ErrAuthenticationNotFound)
	}

	auth, err := c.storage.Authentication().FindByRefreshToken(ctx, refresh.Encoded())
	if err != nil {
		return nil, fmt.Errorf("error while loading authentication. Err: %w", err)
	}

	return auth, nil
}

// Rotate replaces the session tokens with pair in both stores.
// TODO: a failure after the durable overwrite leaves the old tokens live in the token store
// and the new ones missing; rotation has no compensation yet.
func (c *Coordinator) Rotate(ctx context.Context, auth *models.PersistedAuthentication, pair models.JWTPair) error {
	oldPair := auth.Pair()

	if err := auth.RefreshTokens(pair); err != nil {
		return err
	}

	if _, err := c.storage.Authentication().Save(ctx, auth); err != nil {
		return fmt.Errorf("error while persisting refreshed authentication. Err: %w", err)
	}

	if err := c.tokens.Delete(ctx, oldPair); err != nil {
		return fmt.Errorf("error while invalidating old tokens. Err: %w", err)
	}

	if err := c.tokens.Save(ctx, pair); err != nil {
		return fmt.Errorf("error while activating new tokens. Err: %w", err)
	}

	c.logger.Debug("authentication rotated", "authentication_id", auth.ID())
	return nil
}

// Remove deletes the session the access token belongs to from both stores.
// An unknown session is not an error. The durable delete is rolled back if the token store fails.
func (c *Coordinator) Remove(ctx context.Context, access models.JWT) error {
	return c.storage.InTx(ctx, func(s repository.Storage) error {
		auth, err := s.Authentication().FindByAccessToken(ctx, access.Encoded())
		switch {
		case errors.Is(err, apperrors.ErrAuthenticationNotFound):
			c.logger.Debug("nothing to revoke, authentication not found")
			return nil
		case err != nil:
			return fmt.Errorf("error while loading authentication. Err: %w", err)
		}

		err = s.Authentication().DeleteByID(ctx, auth.ID())
		if err != nil && !errors.Is(err, apperrors.ErrAuthenticationNotFound) {
			return fmt.Errorf("error while deleting authentication. Err: %w", err)
		}

		if err := c.tokens.Delete(ctx, auth.Pair()); err != nil {
			return fmt.Errorf("error while deactivating tokens. Err: %w", err)
		}

		c.logger.Debug("authentication removed", "authentication_id", auth.ID())
		return nil
	})
}

// IsAccessLive reports whether the access token belongs to a live session
func (c *Coordinator) IsAccessLive(ctx context.Context, access models.JWT) (bool, error) {
	live, err := c.tokens.AccessTokenExists(ctx, access.Encoded())
	if err != nil {
		return false, fmt.Errorf("error while checking access token. Err: %w", err)
	}
	return live, nil
}
