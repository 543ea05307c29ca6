package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/nkiryanov/taskauth/internal/apperrors"
)

func validationError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", apperrors.ErrValidation, fmt.Sprintf(format, args...))
}

// Subject identifies the principal the token was issued to
type Subject struct {
	value string
}

func NewSubject(value string) (Subject, error) {
	if strings.TrimSpace(value) == "" {
		return Subject{}, validationError("subject must not be blank")
	}
	return Subject{value: value}, nil
}

func (s Subject) String() string { return s.value }
func (s Subject) IsZero() bool   { return s.value == "" }

// EncodedToken is the signed compact token string
type EncodedToken struct {
	value string
}

func NewEncodedToken(value string) (EncodedToken, error) {
	if strings.TrimSpace(value) == "" {
		return EncodedToken{}, validationError("encoded token must not be blank")
	}
	return EncodedToken{value: value}, nil
}

func (t EncodedToken) String() string { return t.value }
func (t EncodedToken) IsZero() bool   { return t.value == "" }

type Issued struct {
	value time.Time
}

func NewIssued(value time.Time) (Issued, error) {
	if value.IsZero() {
		return Issued{}, validationError("issued time must be set")
	}
	return Issued{value: value}, nil
}

func (i Issued) Time() time.Time { return i.value }
func (i Issued) IsZero() bool    { return i.value.IsZero() }

type Expiration struct {
	value time.Time
}

func NewExpiration(value time.Time) (Expiration, error) {
	if value.IsZero() {
		return Expiration{}, validationError("expiration time must be set")
	}
	return Expiration{value: value}, nil
}

func (e Expiration) Time() time.Time { return e.value }
func (e Expiration) IsZero() bool    { return e.value.IsZero() }

// Expired reports whether the expiration is not after now
func (e Expiration) Expired(now time.Time) bool {
	return !e.value.After(now)
}
