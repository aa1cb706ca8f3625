package tokenizer

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwk"
)

// GenerateSigningKey creates a fresh P-256 key and derives its key ID from the JWK thumbprint
func GenerateSigningKey() (*ecdsa.PrivateKey, string, error) {
	privateKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, "", fmt.Errorf("failed to generate signing key: %w", err)
	}

	kid, err := thumbprint(&privateKey.PublicKey)
	if err != nil {
		return nil, "", err
	}

	return privateKey, kid, nil
}

// ParseSigningKey reads an EC private key in JWK form. Keys without a kid get the thumbprint.
func ParseSigningKey(data []byte) (*ecdsa.PrivateKey, string, error) {
	key, err := jwk.ParseKey(data)
	if err != nil {
		return nil, "", fmt.Errorf("failed to parse signing key: %w", err)
	}

	var privateKey ecdsa.PrivateKey
	if err := key.Raw(&privateKey); err != nil {
		return nil, "", fmt.Errorf("signing key is not an EC private key: %w", err)
	}
	if privateKey.Curve != elliptic.P256() {
		return nil, "", fmt.Errorf("signing key must use P-256")
	}

	kid := key.KeyID()
	if kid == "" {
		kid, err = thumbprint(&privateKey.PublicKey)
		if err != nil {
			return nil, "", err
		}
	}

	return &privateKey, kid, nil
}

// MarshalSigningKey renders a private key as a JWK document
func MarshalSigningKey(privateKey *ecdsa.PrivateKey, kid string) ([]byte, error) {
	key, err := jwk.FromRaw(privateKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create JWK from private key: %w", err)
	}
	if err := setKeyParams(key, kid); err != nil {
		return nil, err
	}
	return json.Marshal(key)
}

func publicKeySet(publicKey *ecdsa.PublicKey, kid string) (jwk.Set, error) {
	key, err := jwk.FromRaw(publicKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create JWK from public key: %w", err)
	}
	if err := setKeyParams(key, kid); err != nil {
		return nil, err
	}

	set := jwk.NewSet()
	if err := set.AddKey(key); err != nil {
		return nil, fmt.Errorf("failed to create JWKS: %w", err)
	}
	return set, nil
}

func setKeyParams(key jwk.Key, kid string) error {
	if err := key.Set(jwk.KeyIDKey, kid); err != nil {
		return fmt.Errorf("failed to set kid: %w", err)
	}
	if err := key.Set(jwk.AlgorithmKey, jwa.ES256); err != nil {
		return fmt.Errorf("failed to set alg: %w", err)
	}
	if err := key.Set(jwk.KeyUsageKey, "sig"); err != nil {
		return fmt.Errorf("failed to set use: %w", err)
	}
	return nil
}

func thumbprint(publicKey *ecdsa.PublicKey) (string, error) {
	key, err := jwk.FromRaw(publicKey)
	if err != nil {
		return "", fmt.Errorf("failed to create JWK from public key: %w", err)
	}
	sum, err := key.Thumbprint(crypto.SHA256)
	if err != nil {
		return "", fmt.Errorf("failed to compute key thumbprint: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(sum), nil
}
