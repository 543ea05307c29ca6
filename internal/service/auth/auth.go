// Package auth sequences the authentication use cases: tokens are decoded and issued here,
// sessions are kept by the sessions coordinator.
package auth

//go:generate mockgen -destination=mocks/mocks.go -package=mocks github.com/nkiryanov/taskauth/internal/service/auth Users,Sessions

import (
	"context"
	"errors"
	"fmt"

	"github.com/nkiryanov/taskauth/internal/apperrors"
	"github.com/nkiryanov/taskauth/internal/logger"
	"github.com/nkiryanov/taskauth/internal/models"
)

// Users checks credentials and registers new users
type Users interface {
	// Must return apperrors.ErrBadCredentials if username or password is wrong
	Authenticate(ctx context.Context, username string, password string) (models.UserAuthentication, error)

	CreateUser(ctx context.Context, username string, password string) (models.User, error)
}

type TokenDecoder interface {
	Decode(raw string) (models.JWT, error)
}

type TokenIssuer interface {
	IssueTokenPair(user models.UserAuthentication) (models.JWTPair, error)
}

// Sessions keeps authentications in the durable and the fast-access stores
type Sessions interface {
	Activate(ctx context.Context, pending *models.PendingAuthentication) (*models.PersistedAuthentication, error)
	FindByRefreshToken(ctx context.Context, refresh models.JWT) (*models.PersistedAuthentication, error)
	Rotate(ctx context.Context, auth *models.PersistedAuthentication, pair models.JWTPair) error
	Remove(ctx context.Context, access models.JWT) error
	IsAccessLive(ctx context.Context, access models.JWT) (bool, error)
}

type AuthService struct {
	users    Users
	decoder  TokenDecoder
	issuer   TokenIssuer
	sessions Sessions

	logger logger.Logger
}

func NewService(users Users, decoder TokenDecoder, issuer TokenIssuer, sessions Sessions, l logger.Logger) (*AuthService, error) {
	if users == nil || decoder == nil || issuer == nil || sessions == nil {
		return nil, errors.New("auth service dependencies must not be nil")
	}
	if l == nil {
		l = logger.NewNoOpLogger()
	}

	return &AuthService{
		users:    users,
		decoder:  decoder,
		issuer:   issuer,
		sessions: sessions,
		logger:   l.With("component", "auth"),
	}, nil
}

// Register creates user and authenticates it right away
func (s *AuthService) Register(ctx context.Context, username string, password string) (*models.PersistedAuthentication, error) {
	user, err := s.users.CreateUser(ctx, username, password)
	if err != nil {
		return nil, err
	}

	return s.start(ctx, user.Authentication())
}

// Authenticate checks credentials and starts a new session
// Nothing is stored if credentials are wrong
func (s *AuthService) Authenticate(ctx context.Context, username string, password string) (*models.PersistedAuthentication, error) {
	user, err := s.users.Authenticate(ctx, username, password)
	if err != nil {
		return nil, err
	}

	return s.start(ctx, user)
}

func (s *AuthService) start(ctx context.Context, user models.UserAuthentication) (*models.PersistedAuthentication, error) {
	pair, err := s.issuer.IssueTokenPair(user)
	if err != nil {
		return nil, fmt.Errorf("token pair could not be issued. Err: %w", err)
	}

	pending, err := models.NewAuthentication(user.UserID, pair)
	if err != nil {
		return nil, err
	}

	auth, err := s.sessions.Activate(ctx, pending)
	if err != nil {
		if errors.Is(err, apperrors.ErrCompensationFailed) {
			s.logger.Error("stores diverged while authenticating", "user_id", user.UserID, "error", err)
		}
		return nil, err
	}

	s.logger.Info("user authenticated", "user_id", user.UserID, "authentication_id", auth.ID())
	return auth, nil
}

// RefreshAuthentication exchanges a live refresh token for a new token pair
// The session keeps its id, the old pair stops being live
func (s *AuthService) RefreshAuthentication(ctx context.Context, rawRefresh string) (*models.PersistedAuthentication, error) {
	refresh, err := s.decode(rawRefresh, models.RefreshToken)
	if err != nil {
		return nil, err
	}

	auth, err := s.sessions.FindByRefreshToken(ctx, refresh)
	if err != nil {
		return nil, err
	}

	user := models.UserAuthentication{
		UserID: auth.UserID(),
		Role:   refresh.Claims().Role(),
	}

	pair, err := s.issuer.IssueTokenPair(user)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", apperrors.ErrAuthenticationNotRefreshed, err)
	}

	if err := s.sessions.Rotate(ctx, auth, pair); err != nil {
		s.logger.Warn("authentication refresh failed", "authentication_id", auth.ID(), "error", err)
		return nil, fmt.Errorf("%w: %w", apperrors.ErrAuthenticationNotRefreshed, err)
	}

	s.logger.Info("authentication refreshed", "user_id", auth.UserID(), "authentication_id", auth.ID())
	return auth, nil
}

// RevokeAuthentication ends the session the access token belongs to
// Revoking an unknown or already revoked session is not an error, an invalid token is
func (s *AuthService) RevokeAuthentication(ctx context.Context, rawAccess string) error {
	access, err := s.decode(rawAccess, models.AccessToken)
	if err != nil {
		return err
	}

	if err := s.sessions.Remove(ctx, access); err != nil {
		return fmt.Errorf("authentication could not be revoked. Err: %w", err)
	}

	s.logger.Info("authentication revoked", "subject", access.Subject().String())
	return nil
}

// Verify returns the access token if it is valid and its session is live
func (s *AuthService) Verify(ctx context.Context, rawAccess string) (models.JWT, error) {
	access, err := s.decode(rawAccess, models.AccessToken)
	if err != nil {
		return models.JWT{}, err
	}

	live, err := s.sessions.IsAccessLive(ctx, access)
	if err != nil {
		return models.JWT{}, err
	}
	if !live {
		return models.JWT{}, fmt.Errorf("access token is not live: %w", apperrors.ErrAuthenticationNotFound)
	}

	return access, nil
}

func (s *AuthService) decode(raw string, expected models.JWTType) (models.JWT, error) {
	token, err := s.decoder.Decode(raw)
	if err != nil {
		return models.JWT{}, err
	}

	if token.Type() != expected {
		return models.JWT{}, fmt.Errorf("%w: got %s, expected %s", apperrors.ErrUnexpectedJWTType, token.Type(), expected)
	}

	return token, nil
}
