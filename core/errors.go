package core

import "errors"

var (
	ErrTokenExpired     = errors.New("token has expired")
	ErrTokenInvalidated = errors.New("token has been invalidated")
	ErrInvalidToken     = errors.New("invalid token")
	ErrInvalidChallenge = errors.New("invalid challenge")
	ErrInvalidGrant     = errors.New("invalid grant")
	ErrInvalidClient    = errors.New("invalid client")
	ErrInvalidRedirect  = errors.New("invalid redirect uri")
	ErrInvalidRequest   = errors.New("invalid authorization request")
	ErrInvalidCode      = errors.New("invalid code")
	ErrTooManyAttempts  = errors.New("too many attempts")
	ErrInvalidEmail     = errors.New("invalid email")
	ErrNotFound         = errors.New("not found")
	ErrAlreadyExists    = errors.New("already exists")
)
