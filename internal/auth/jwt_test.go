package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const testSecret = "test-secret-key-for-jwt-signing"

func TestGenerateAccessToken(t *testing.T) {
	svc := NewJWTService(testSecret)

	token, err := svc.GenerateAccessToken("user-123")
	if err != nil {
		t.Fatalf("GenerateAccessToken: %v", err)
	}
	if token == "" {
		t.Fatal("got empty token")
	}

	claims, err := svc.ValidateToken(token)
	if err != nil {
		t.Fatalf("ValidateToken: %v", err)
	}
	if claims.Subject != "user-123" {
		t.Errorf("Subject = %q, want user-123", claims.Subject)
	}
	if claims.Type != TokenTypeAccess {
		t.Errorf("Type = %q, want %q", claims.Type, TokenTypeAccess)
	}
}

func TestGenerateRefreshToken(t *testing.T) {
	svc := NewJWTService(testSecret)

	token, err := svc.GenerateRefreshToken("user-123")
	if err != nil {
		t.Fatalf("GenerateRefreshToken: %v", err)
	}

	claims, err := svc.ValidateToken(token)
	if err != nil {
		t.Fatalf("ValidateToken: %v", err)
	}
	if claims.Type != TokenTypeRefresh {
		t.Errorf("Type = %q, want %q", claims.Type, TokenTypeRefresh)
	}
}

func TestGenerate_EmptyUserID(t *testing.T) {
	svc := NewJWTService(testSecret)

	if _, err := svc.GenerateAccessToken(""); !errors.Is(err, ErrEmptyUserID) {
		t.Errorf("GenerateAccessToken(\"\") error = %v, want ErrEmptyUserID", err)
	}
	if _, err := svc.GenerateRefreshToken(""); !errors.Is(err, ErrEmptyUserID) {
		t.Errorf("GenerateRefreshToken(\"\") error = %v, want ErrEmptyUserID", err)
	}
}

func TestValidateToken_WrongSecret(t *testing.T) {
	svc := NewJWTService(testSecret)
	other := NewJWTService("a-completely-different-secret")

	token, err := svc.GenerateAccessToken("user-123")
	if err != nil {
		t.Fatalf("GenerateAccessToken: %v", err)
	}

	if _, err := other.ValidateToken(token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("ValidateToken with wrong secret = %v, want ErrInvalidToken", err)
	}
}

func TestValidateToken_Expired(t *testing.T) {
	svc := NewJWTService(testSecret).WithLeeway(0)

	// Hand-build a token that expired an hour ago.
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-123",
			IssuedAt:  jwt.NewNumericDate(now.Add(-2 * time.Hour)),
			ExpiresAt: jwt.NewNumericDate(now.Add(-time.Hour)),
		},
		Type: TokenTypeAccess,
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("signing: %v", err)
	}

	if _, err := svc.ValidateToken(token); !errors.Is(err, ErrExpiredToken) {
		t.Errorf("ValidateToken expired = %v, want ErrExpiredToken", err)
	}
}

func TestValidateToken_RejectsWrongAlgorithm(t *testing.T) {
	svc := NewJWTService(testSecret)

	// Token signed with none algorithm must be rejected.
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-123",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		Type: TokenTypeAccess,
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("signing: %v", err)
	}

	if _, err := svc.ValidateToken(token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("ValidateToken with alg=none = %v, want ErrInvalidToken", err)
	}
}

func TestValidateToken_Garbage(t *testing.T) {
	svc := NewJWTService(testSecret)

	if _, err := svc.ValidateToken("not.a.token"); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("ValidateToken garbage = %v, want ErrInvalidToken", err)
	}
}

func TestRotation_OldTokensStillValid(t *testing.T) {
	oldSvc := NewJWTService("old-secret")
	token, err := oldSvc.GenerateAccessToken("user-123")
	if err != nil {
		t.Fatalf("GenerateAccessToken: %v", err)
	}

	// After rotation, tokens signed with the previous secret still validate.
	rotated := NewJWTServiceWithRotation("new-secret", "old-secret")
	claims, err := rotated.ValidateToken(token)
	if err != nil {
		t.Fatalf("ValidateToken after rotation: %v", err)
	}
	if claims.Subject != "user-123" {
		t.Errorf("Subject = %q, want user-123", claims.Subject)
	}

	// New tokens are signed with the current secret.
	newToken, err := rotated.GenerateAccessToken("user-456")
	if err != nil {
		t.Fatalf("GenerateAccessToken: %v", err)
	}
	currentOnly := NewJWTService("new-secret")
	if _, err := currentOnly.ValidateToken(newToken); err != nil {
		t.Errorf("new token not signed with current secret: %v", err)
	}
}
