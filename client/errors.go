package client

import (
	"errors"
	"fmt"
)

var (
	// ErrUnauthenticated means the API refused the access token or knows no account for it
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrSignInRequired is returned by GetToken after it started a sign-in; the caller should abandon its request
	ErrSignInRequired = errors.New("sign in required")
	// ErrNoRefreshToken means there is no stored session to refresh
	ErrNoRefreshToken = errors.New("no refresh token")
)

// NetworkError is a failure to get an answer from a remote service. The stored session is left as is.
type NetworkError struct {
	Op     string
	Status int
	Err    error
}

func (e *NetworkError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s: unexpected status %d", e.Op, e.Status)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}
