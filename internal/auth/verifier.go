package auth

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	"github.com/jupitervolta/ds1054z/internal/config"
)

// Signing algorithms.
const (
	AlgRS256 = "RS256"
	AlgHS256 = "HS256"
)

var (
	// ErrInvalidToken covers every rejected token.
	ErrInvalidToken = errors.New("invalid token")
	// ErrNoCredentials is returned by FromConfig when neither a secret nor a key is set.
	ErrNoCredentials = errors.New("no auth credentials configured")
)

// VerifierConfig holds configuration for JWT verification.
type VerifierConfig struct {
	// RS256
	PublicKeyPEM string
	// HS256
	SecretKey string

	Algorithm string
}

// Verifier checks bearer tokens and extracts Claims.
type Verifier struct {
	config    VerifierConfig
	publicKey *rsa.PublicKey
}

// NewVerifier creates a new JWT verifier.
func NewVerifier(cfg VerifierConfig) (*Verifier, error) {
	v := &Verifier{config: cfg}

	switch cfg.Algorithm {
	case AlgRS256:
		if cfg.PublicKeyPEM == "" {
			return nil, fmt.Errorf("RS256 requires a PEM public key")
		}
		key, err := loadPublicKeyFromPEM(cfg.PublicKeyPEM)
		if err != nil {
			return nil, fmt.Errorf("failed to load public key: %w", err)
		}
		v.publicKey = key
	case AlgHS256:
		if cfg.SecretKey == "" {
			return nil, fmt.Errorf("HS256 requires a secret key")
		}
	default:
		return nil, fmt.Errorf("unsupported algorithm: %s", cfg.Algorithm)
	}

	return v, nil
}

// FromConfig picks RS256 when a public key is configured and HS256 when only
// a secret is. It returns ErrNoCredentials when neither is set.
func FromConfig(cfg config.APIConfig) (*Verifier, error) {
	switch {
	case cfg.AuthPublicKeyPEM != "":
		return NewVerifier(VerifierConfig{Algorithm: AlgRS256, PublicKeyPEM: cfg.AuthPublicKeyPEM})
	case cfg.AuthSecret != "":
		return NewVerifier(VerifierConfig{Algorithm: AlgHS256, SecretKey: cfg.AuthSecret})
	default:
		return nil, ErrNoCredentials
	}
}

// Algorithm returns the configured signing algorithm.
func (v *Verifier) Algorithm() string {
	return v.config.Algorithm
}

// VerifyToken parses tokenString, checks its signature and expiry and
// returns its claims.
func (v *Verifier) VerifyToken(tokenString string) (*Claims, error) {
	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, v.keyFunc,
		jwt.WithValidMethods([]string{v.config.Algorithm}))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return extractClaimsFromMap(claims)
}

func (v *Verifier) keyFunc(token *jwt.Token) (interface{}, error) {
	if v.config.Algorithm == AlgRS256 {
		return v.publicKey, nil
	}
	return []byte(v.config.SecretKey), nil
}

func extractClaimsFromMap(claims jwt.MapClaims) (*Claims, error) {
	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}

	roles, err := extractStringSlice(claims, "roles")
	if err != nil {
		return nil, err
	}
	for _, role := range roles {
		if !isValidRole(role) {
			return nil, fmt.Errorf("%w: unknown role %q", ErrInvalidToken, role)
		}
	}

	scopes, err := extractStringSlice(claims, "scopes")
	if err != nil {
		return nil, err
	}
	for _, scope := range scopes {
		if !isValidScope(scope) {
			return nil, fmt.Errorf("%w: unknown scope %q", ErrInvalidToken, scope)
		}
	}

	return &Claims{Subject: sub, Roles: roles, Scopes: scopes}, nil
}

func extractStringSlice(claims jwt.MapClaims, key string) ([]string, error) {
	raw, ok := claims[key]
	if !ok {
		return nil, fmt.Errorf("%w: missing %s", ErrInvalidToken, key)
	}
	list, ok := raw.([]interface{})
	if !ok {
		return nil, fmt.Errorf("%w: %s must be an array", ErrInvalidToken, key)
	}

	out := make([]string, 0, len(list))
	for _, item := range list {
		s, ok := item.(string)
		if !ok {
			return nil, fmt.Errorf("%w: %s must contain strings", ErrInvalidToken, key)
		}
		out = append(out, s)
	}
	return out, nil
}

func loadPublicKeyFromPEM(pemData string) (*rsa.PublicKey, error) {
	block, _ := pem.Decode([]byte(pemData))
	if block == nil {
		return nil, fmt.Errorf("failed to decode PEM block")
	}

	pub, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse public key: %w", err)
	}

	key, ok := pub.(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("public key is not RSA")
	}
	return key, nil
}
