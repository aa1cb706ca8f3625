package tokenizer

import (
	"github.com/golang-jwt/jwt/v5"
	"github.com/layer-3/zeroturbo/core"
)

const (
	ModeAccess  = "access"
	ModeRefresh = "refresh"

	// SubjectType names the kind of subject carried in Properties
	SubjectType = "account"
)

// AccessClaims combines standard claims with access-specific ones
type AccessClaims struct {
	jwt.RegisteredClaims
	Mode       string       `json:"mode"`
	Type       string       `json:"type"`
	Properties core.Subject `json:"properties"`
	RefreshID  string       `json:"rid"` // ID of the refresh token
}

// RefreshClaims carry the subject so a rotation can mint a new pair without a lookup
type RefreshClaims struct {
	jwt.RegisteredClaims
	Mode       string       `json:"mode"`
	Properties core.Subject `json:"properties"`
}
