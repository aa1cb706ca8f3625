package core

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
)

// PKCEMethodS256 is the only code challenge method accepted
const PKCEMethodS256 = "S256"

// RandomString returns n random bytes encoded as unpadded base64url
func RandomString(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to read random bytes: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// NewChallenge creates a fresh state and a 64 character code verifier
func NewChallenge() (Challenge, error) {
	state, err := RandomString(32)
	if err != nil {
		return Challenge{}, err
	}
	verifier, err := RandomString(48)
	if err != nil {
		return Challenge{}, err
	}
	return Challenge{State: state, Verifier: verifier}, nil
}

// CodeChallengeS256 derives the code challenge sent to /authorize from a verifier
func CodeChallengeS256(verifier string) string {
	sum := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

// VerifyCodeChallenge checks a verifier against a previously sent S256 challenge
func VerifyCodeChallenge(challenge, verifier string) bool {
	if challenge == "" || verifier == "" {
		return false
	}
	expected := CodeChallengeS256(verifier)
	return subtle.ConstantTimeCompare([]byte(challenge), []byte(expected)) == 1
}
