package models

import (
	"github.com/google/uuid"
)

// JWTAuthentication is a user session backed by a token pair.
// It is either *PendingAuthentication (not stored yet) or *PersistedAuthentication.
type JWTAuthentication interface {
	UserID() uuid.UUID
	Pair() JWTPair

	// Equal compares sessions by their durable identity
	Equal(other JWTAuthentication) bool

	sealed()
}

type PendingAuthentication struct {
	userID uuid.UUID
	pair   JWTPair
}

// NewAuthentication starts a session that has not been stored yet
func NewAuthentication(userID uuid.UUID, pair JWTPair) (*PendingAuthentication, error) {
	if userID == uuid.Nil {
		return nil, validationError("authentication user id must not be empty")
	}
	if pair.IsZero() {
		return nil, validationError("authentication token pair must not be empty")
	}

	return &PendingAuthentication{userID: userID, pair: pair}, nil
}

func (a *PendingAuthentication) UserID() uuid.UUID { return a.userID }
func (a *PendingAuthentication) Pair() JWTPair     { return a.pair }

// Pending sessions have no identity yet, so they never equal anything, itself included
func (a *PendingAuthentication) Equal(JWTAuthentication) bool { return false }

// Persist turns the session into a stored one with the id the durable store assigned
func (a *PendingAuthentication) Persist(id int64) (*PersistedAuthentication, error) {
	return RestoreAuthentication(id, a.userID, a.pair)
}

func (a *PendingAuthentication) sealed() {}

type PersistedAuthentication struct {
	id     int64
	userID uuid.UUID
	pair   JWTPair
}

// RestoreAuthentication rebuilds a stored session
func RestoreAuthentication(id int64, userID uuid.UUID, pair JWTPair) (*PersistedAuthentication, error) {
	if id <= 0 {
		return nil, validationError("authentication id must be positive, got %d", id)
	}
	if userID == uuid.Nil {
		return nil, validationError("authentication user id must not be empty")
	}
	if pair.IsZero() {
		return nil, validationError("authentication token pair must not be empty")
	}

	return &PersistedAuthentication{id: id, userID: userID, pair: pair}, nil
}

func (a *PersistedAuthentication) ID() int64         { return a.id }
func (a *PersistedAuthentication) UserID() uuid.UUID { return a.userID }
func (a *PersistedAuthentication) Pair() JWTPair     { return a.pair }

func (a *PersistedAuthentication) Equal(other JWTAuthentication) bool {
	o, ok := other.(*PersistedAuthentication)
	return ok && o != nil && o.id == a.id
}

// RefreshTokens replaces the token pair; the new pair has to belong to the same subject
func (a *PersistedAuthentication) RefreshTokens(pair JWTPair) error {
	if pair.IsZero() {
		return validationError("authentication token pair must not be empty")
	}
	if pair.Access().Subject() != a.pair.Access().Subject() {
		return validationError("refreshed token pair belongs to another subject")
	}

	a.pair = pair
	return nil
}

func (a *PersistedAuthentication) sealed() {}
