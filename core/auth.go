package core

import "time"

// Challenge is the PKCE state/verifier pair a client keeps between sign-in and callback
type Challenge struct {
	State    string `json:"state"`
	Verifier string `json:"verifier"`
}

// TokenPair is what the issuer hands out on code exchange and on refresh
type TokenPair struct {
	Access    string `json:"access"`
	Refresh   string `json:"refresh"`
	ExpiresIn int    `json:"expires_in,omitempty"`
}

// Subject holds the account properties carried in access tokens
type Subject struct {
	AccountID string `json:"accountID"`
	Email     string `json:"email"`
}

// Session represents an issued token pair on the issuer side
type Session struct {
	ID            string    // Unique session identifier, used as the access token jti
	ClientID      string    // OAuth client the tokens were issued to
	Subject       Subject   // Account the tokens were issued for
	IssuedAt      time.Time // When the session was created
	RefreshExpiry time.Time // When the refresh capability expires
	AccessExpiry  time.Time // When the access capability expires
	RefreshID     string    // Unique identifier for the refresh token
}

// AuthRequest is a pending /authorize request waiting for the user to prove their email
type AuthRequest struct {
	ID                  string    `json:"id"`
	ClientID            string    `json:"client_id"`
	RedirectURI         string    `json:"redirect_uri"`
	State               string    `json:"state"`
	CodeChallenge       string    `json:"code_challenge"`
	CodeChallengeMethod string    `json:"code_challenge_method"`
	ExpiresAt           time.Time `json:"expires_at"`
}

// PinCode is an emailed one-time pin bound to an authorization request
type PinCode struct {
	RequestID string    `json:"request_id"`
	Email     string    `json:"email"`
	Code      string    `json:"code"`
	ExpiresAt time.Time `json:"expires_at"`
}

// AuthCode is a single-use authorization code handed back to the client
type AuthCode struct {
	Code          string    `json:"code"`
	ClientID      string    `json:"client_id"`
	RedirectURI   string    `json:"redirect_uri"`
	CodeChallenge string    `json:"code_challenge"`
	Subject       Subject   `json:"subject"`
	ExpiresAt     time.Time `json:"expires_at"`
}
