package models

import (
	"time"

	"github.com/google/uuid"
)

const RoleUser = "user"

type User struct {
	ID             uuid.UUID
	CreatedAt      time.Time
	Username       string
	HashedPassword string
	Role           string
}

// UserAuthentication is a user identity that passed the credentials check
type UserAuthentication struct {
	UserID   uuid.UUID
	Username string
	Role     string
}

func (u User) Authentication() UserAuthentication {
	return UserAuthentication{UserID: u.ID, Username: u.Username, Role: u.Role}
}

// Tokens are issued to the user id, usernames may change
func (u UserAuthentication) Subject() (Subject, error) {
	if u.UserID == uuid.Nil {
		return Subject{}, validationError("user id must not be empty")
	}
	return NewSubject(u.UserID.String())
}
