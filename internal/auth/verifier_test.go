package auth

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/jupitervolta/ds1054z/internal/config"
)

const testSecret = "test-secret-key"

func generateTestRSAKey(t *testing.T) (*rsa.PrivateKey, string) {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("Failed to generate RSA key: %v", err)
	}
	der, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	if err != nil {
		t.Fatalf("Failed to marshal public key: %v", err)
	}
	pemData := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der})
	return key, string(pemData)
}

func viewerClaims() jwt.MapClaims {
	return jwt.MapClaims{
		"sub":    "user-123",
		"roles":  []string{RoleViewer},
		"scopes": []string{ScopeRead, ScopeTelemetry},
		"iat":    time.Now().Unix(),
		"exp":    time.Now().Add(time.Hour).Unix(),
	}
}

func controllerClaims() jwt.MapClaims {
	return jwt.MapClaims{
		"sub":    "admin-456",
		"roles":  []string{RoleController},
		"scopes": []string{ScopeRead, ScopeControl, ScopeTelemetry},
		"exp":    time.Now().Add(time.Hour).Unix(),
	}
}

func signHS256(t *testing.T, claims jwt.MapClaims, secret string) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("Failed to sign token: %v", err)
	}
	return s
}

func TestNewVerifier(t *testing.T) {
	_, pemData := generateTestRSAKey(t)

	tests := []struct {
		name    string
		config  VerifierConfig
		wantErr bool
	}{
		{"valid RS256 config with PEM", VerifierConfig{Algorithm: AlgRS256, PublicKeyPEM: pemData}, false},
		{"RS256 without key", VerifierConfig{Algorithm: AlgRS256}, true},
		{"RS256 with garbage PEM", VerifierConfig{Algorithm: AlgRS256, PublicKeyPEM: "not a pem"}, true},
		{"valid HS256 config", VerifierConfig{Algorithm: AlgHS256, SecretKey: testSecret}, false},
		{"HS256 without secret", VerifierConfig{Algorithm: AlgHS256}, true},
		{"invalid algorithm", VerifierConfig{Algorithm: "ES256"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			verifier, err := NewVerifier(tt.config)
			if (err != nil) != tt.wantErr {
				t.Errorf("NewVerifier() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if !tt.wantErr && verifier == nil {
				t.Error("NewVerifier() returned nil verifier")
			}
		})
	}
}

func TestFromConfig(t *testing.T) {
	_, pemData := generateTestRSAKey(t)

	if _, err := FromConfig(config.APIConfig{}); !errors.Is(err, ErrNoCredentials) {
		t.Errorf("Expected ErrNoCredentials, got %v", err)
	}

	v, err := FromConfig(config.APIConfig{AuthSecret: testSecret})
	if err != nil {
		t.Fatalf("FromConfig failed: %v", err)
	}
	if v.Algorithm() != AlgHS256 {
		t.Errorf("Expected HS256, got %s", v.Algorithm())
	}

	v, err = FromConfig(config.APIConfig{AuthSecret: testSecret, AuthPublicKeyPEM: pemData})
	if err != nil {
		t.Fatalf("FromConfig failed: %v", err)
	}
	if v.Algorithm() != AlgRS256 {
		t.Errorf("Expected RS256 to win over a secret, got %s", v.Algorithm())
	}
}

func TestVerifyHS256Token(t *testing.T) {
	verifier, err := NewVerifier(VerifierConfig{Algorithm: AlgHS256, SecretKey: testSecret})
	if err != nil {
		t.Fatalf("Failed to create verifier: %v", err)
	}

	claims, err := verifier.VerifyToken(signHS256(t, viewerClaims(), testSecret))
	if err != nil {
		t.Fatalf("VerifyToken() error = %v", err)
	}

	if claims.Subject != "user-123" {
		t.Errorf("Expected subject 'user-123', got '%s'", claims.Subject)
	}
	if len(claims.Roles) != 1 || claims.Roles[0] != RoleViewer {
		t.Errorf("Expected roles [%s], got %v", RoleViewer, claims.Roles)
	}
	if len(claims.Scopes) != 2 {
		t.Errorf("Expected 2 scopes, got %d", len(claims.Scopes))
	}
}

func TestVerifyRS256Token(t *testing.T) {
	key, pemData := generateTestRSAKey(t)

	verifier, err := NewVerifier(VerifierConfig{Algorithm: AlgRS256, PublicKeyPEM: pemData})
	if err != nil {
		t.Fatalf("Failed to create verifier: %v", err)
	}

	tokenString, err := jwt.NewWithClaims(jwt.SigningMethodRS256, controllerClaims()).SignedString(key)
	if err != nil {
		t.Fatalf("Failed to sign token: %v", err)
	}

	claims, err := verifier.VerifyToken(tokenString)
	if err != nil {
		t.Fatalf("VerifyToken() error = %v", err)
	}
	if claims.Subject != "admin-456" {
		t.Errorf("Expected subject 'admin-456', got '%s'", claims.Subject)
	}
	if !claims.HasRole(RoleController) {
		t.Errorf("Expected controller role, got %v", claims.Roles)
	}
}

func TestVerifyTokenErrors(t *testing.T) {
	verifier, err := NewVerifier(VerifierConfig{Algorithm: AlgHS256, SecretKey: testSecret})
	if err != nil {
		t.Fatalf("Failed to create verifier: %v", err)
	}
	rsaKey, _ := generateTestRSAKey(t)

	expired := viewerClaims()
	expired["exp"] = time.Now().Add(-time.Hour).Unix()

	noRoles := viewerClaims()
	delete(noRoles, "roles")

	badRole := viewerClaims()
	badRole["roles"] = []string{"admin"}

	badScope := viewerClaims()
	badScope["scopes"] = []string{"root"}

	rolesNotArray := viewerClaims()
	rolesNotArray["roles"] = RoleViewer

	noSubject := viewerClaims()
	delete(noSubject, "sub")

	rs256Token, err := jwt.NewWithClaims(jwt.SigningMethodRS256, viewerClaims()).SignedString(rsaKey)
	if err != nil {
		t.Fatalf("Failed to sign token: %v", err)
	}

	tests := []struct {
		name  string
		token string
	}{
		{"malformed", "not.a.token"},
		{"wrong secret", signHS256(t, viewerClaims(), "other-secret")},
		{"expired", signHS256(t, expired, testSecret)},
		{"missing roles", signHS256(t, noRoles, testSecret)},
		{"unknown role", signHS256(t, badRole, testSecret)},
		{"unknown scope", signHS256(t, badScope, testSecret)},
		{"roles not an array", signHS256(t, rolesNotArray, testSecret)},
		{"missing subject", signHS256(t, noSubject, testSecret)},
		{"algorithm mismatch", rs256Token},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := verifier.VerifyToken(tt.token)
			if !errors.Is(err, ErrInvalidToken) {
				t.Errorf("Expected ErrInvalidToken, got %v", err)
			}
		})
	}
}
