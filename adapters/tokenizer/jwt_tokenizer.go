package tokenizer

import (
	"crypto/ecdsa"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
	"github.com/layer-3/zeroturbo/core"
	"github.com/lestrrat-go/jwx/v2/jwk"
)

// JWTTokenizer implements ports.Tokenizer using ES256 JWTs
type JWTTokenizer struct {
	signKey *ecdsa.PrivateKey
	keyID   string
	issuer  string
}

// NewJWTTokenizer creates a new JWT tokenizer. issuer is written to and required in the iss claim.
func NewJWTTokenizer(signKey *ecdsa.PrivateKey, keyID string, issuer string) *JWTTokenizer {
	return &JWTTokenizer{signKey: signKey, keyID: keyID, issuer: issuer}
}

// SessionToAccessToken converts a Session to an access JWT token
func (j *JWTTokenizer) SessionToAccessToken(session *core.Session) (string, error) {
	claims := AccessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    j.issuer,
			Subject:   session.Subject.AccountID,
			ID:        session.ID,
			ExpiresAt: jwt.NewNumericDate(session.AccessExpiry),
			IssuedAt:  jwt.NewNumericDate(session.IssuedAt),
			Audience:  jwt.ClaimStrings{session.ClientID},
		},
		Mode:       ModeAccess,
		Type:       SubjectType,
		Properties: session.Subject,
		RefreshID:  session.RefreshID,
	}

	signedToken, err := j.sign(claims)
	if err != nil {
		return "", fmt.Errorf("failed to sign access token: %w", err)
	}

	return signedToken, nil
}

// SessionToRefreshToken converts a Session to a refresh JWT token
func (j *JWTTokenizer) SessionToRefreshToken(session *core.Session) (string, error) {
	claims := RefreshClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    j.issuer,
			Subject:   session.Subject.AccountID,
			ID:        session.RefreshID, // The refresh ID doubles as the jti
			ExpiresAt: jwt.NewNumericDate(session.RefreshExpiry),
			IssuedAt:  jwt.NewNumericDate(session.IssuedAt),
			Audience:  jwt.ClaimStrings{session.ClientID},
		},
		Mode:       ModeRefresh,
		Properties: session.Subject,
	}

	signedToken, err := j.sign(claims)
	if err != nil {
		return "", fmt.Errorf("failed to sign refresh token: %w", err)
	}

	return signedToken, nil
}

// AccessTokenToSession parses an access token and returns the associated session
func (j *JWTTokenizer) AccessTokenToSession(tokenStr string) (*core.Session, error) {
	claims := &AccessClaims{}
	if err := j.parse(tokenStr, claims); err != nil {
		return nil, err
	}
	if claims.Mode != ModeAccess {
		return nil, core.ErrInvalidToken
	}

	return &core.Session{
		ID:           claims.ID,
		ClientID:     firstAudience(claims.Audience),
		Subject:      claims.Properties,
		IssuedAt:     claims.IssuedAt.Time,
		AccessExpiry: claims.ExpiresAt.Time,
		RefreshID:    claims.RefreshID,
	}, nil
}

// RefreshTokenToSession parses a refresh token and returns the associated session
func (j *JWTTokenizer) RefreshTokenToSession(tokenStr string) (*core.Session, error) {
	claims := &RefreshClaims{}
	if err := j.parse(tokenStr, claims); err != nil {
		return nil, err
	}
	if claims.Mode != ModeRefresh {
		return nil, core.ErrInvalidToken
	}

	// AccessExpiry stays zero, it is not used when processing refresh tokens
	return &core.Session{
		ClientID:      firstAudience(claims.Audience),
		Subject:       claims.Properties,
		IssuedAt:      claims.IssuedAt.Time,
		RefreshExpiry: claims.ExpiresAt.Time,
		RefreshID:     claims.ID,
	}, nil
}

// PublicKeys returns the verification key as a JWKS
func (j *JWTTokenizer) PublicKeys() (jwk.Set, error) {
	return publicKeySet(&j.signKey.PublicKey, j.keyID)
}

func (j *JWTTokenizer) sign(claims jwt.Claims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodES256, claims)
	token.Header["kid"] = j.keyID
	return token.SignedString(j.signKey)
}

func (j *JWTTokenizer) parse(tokenStr string, claims jwt.Claims) error {
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodECDSA); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return &j.signKey.PublicKey, nil
	}, jwt.WithIssuer(j.issuer), jwt.WithExpirationRequired())

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return core.ErrTokenExpired
		}
		return fmt.Errorf("failed to parse token: %w: %w", core.ErrInvalidToken, err)
	}

	if !token.Valid {
		return core.ErrInvalidToken
	}

	return nil
}

func firstAudience(aud jwt.ClaimStrings) string {
	if len(aud) == 0 {
		return ""
	}
	return aud[0]
}
