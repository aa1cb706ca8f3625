package ports

import (
	"context"

	"github.com/layer-3/zeroturbo/core"
	"github.com/lestrrat-go/jwx/v2/jwk"
)

// Tokenizer converts between sessions and signed tokens
type Tokenizer interface {
	SessionToAccessToken(session *core.Session) (string, error)
	AccessTokenToSession(token string) (*core.Session, error)
	SessionToRefreshToken(session *core.Session) (string, error)
	RefreshTokenToSession(token string) (*core.Session, error)

	// PublicKeys returns the key set published at /.well-known/jwks.json
	PublicKeys() (jwk.Set, error)
}

// AccessVerifier checks access tokens minted by a remote issuer
type AccessVerifier interface {
	Verify(ctx context.Context, token string) (*core.Subject, error)
}
