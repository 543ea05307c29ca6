package apperrors

import (
	"errors"
)

var (
	ErrUserAlreadyExists = errors.New("user already exists")
	ErrUserNotFound      = errors.New("user not found")
	ErrBadCredentials    = errors.New("bad credentials")

	// Value object or token record rejected at construction
	ErrValidation = errors.New("validation error")

	// Umbrella for every decode failure; the kinds below are wrapped together with it
	ErrInvalidJWT          = errors.New("invalid jwt")
	ErrJWTClaimsEmpty      = errors.New("claims are null or empty")
	ErrJWTMalformed        = errors.New("malformed")
	ErrJWTSignatureInvalid = errors.New("invalid signature")
	ErrJWTExpired          = errors.New("expired")
	ErrJWTNotSupported     = errors.New("not supported")
	ErrJWTVerification     = errors.New("verification error")

	ErrAuthenticationNotFound     = errors.New("authentication not found")
	ErrUnexpectedJWTType          = errors.New("unexpected jwt type")
	ErrAuthenticationNotRefreshed = errors.New("authentication could not be refreshed")

	// Durable and fast-access stores diverged and could not be brought back in line
	ErrCompensationFailed = errors.New("compensating transaction failed")
)
