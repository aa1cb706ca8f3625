package verifier

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/layer-3/zeroturbo/adapters/tokenizer"
	"github.com/layer-3/zeroturbo/core"
	"github.com/lestrrat-go/jwx/v2/jwk"
)

// JWKSPath is where issuers publish their verification keys
const JWKSPath = "/.well-known/jwks.json"

// JWKSVerifier validates access tokens against an issuer's published key set
type JWKSVerifier struct {
	issuer string
	keys   func(ctx context.Context) (jwk.Set, error)
}

// NewJWKSVerifier registers the issuer's JWKS in an auto-refreshing cache
func NewJWKSVerifier(ctx context.Context, issuerURL string) (*JWKSVerifier, error) {
	issuer := strings.TrimRight(issuerURL, "/")
	jwksURL := issuer + JWKSPath

	cache := jwk.NewCache(ctx)
	if err := cache.Register(jwksURL, jwk.WithMinRefreshInterval(15*time.Minute)); err != nil {
		return nil, fmt.Errorf("failed to register jwks: %w", err)
	}

	return &JWKSVerifier{
		issuer: issuer,
		keys: func(ctx context.Context) (jwk.Set, error) {
			return cache.Get(ctx, jwksURL)
		},
	}, nil
}

// NewStaticVerifier verifies against a fixed key set
func NewStaticVerifier(set jwk.Set, issuer string) *JWKSVerifier {
	return &JWKSVerifier{
		issuer: strings.TrimRight(issuer, "/"),
		keys: func(context.Context) (jwk.Set, error) {
			return set, nil
		},
	}
}

// Verify checks signature, issuer, expiry and mode, and returns the token's subject
func (v *JWKSVerifier) Verify(ctx context.Context, tokenStr string) (*core.Subject, error) {
	set, err := v.keys(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load jwks: %w", err)
	}

	claims := &tokenizer.AccessClaims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodECDSA); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}

		kid, _ := token.Header["kid"].(string)
		key, ok := set.LookupKeyID(kid)
		if !ok {
			return nil, fmt.Errorf("unknown key id %q", kid)
		}

		var publicKey ecdsa.PublicKey
		if err := key.Raw(&publicKey); err != nil {
			return nil, fmt.Errorf("unusable key %q: %w", kid, err)
		}
		return &publicKey, nil
	}, jwt.WithIssuer(v.issuer), jwt.WithExpirationRequired())

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, core.ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %w", core.ErrInvalidToken, err)
	}
	if !token.Valid || claims.Mode != tokenizer.ModeAccess {
		return nil, core.ErrInvalidToken
	}

	subject := claims.Properties
	if subject.AccountID == "" {
		subject.AccountID = claims.Subject
	}
	return &subject, nil
}
