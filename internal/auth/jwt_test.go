package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func newTestTokenService(t *testing.T) *TokenService {
	t.Helper()
	svc, err := NewTokenService([]byte("test-secret"), "")
	if err != nil {
		t.Fatalf("NewTokenService() error = %v", err)
	}
	return svc
}

func TestNewTokenService_RequiresSecret(t *testing.T) {
	if _, err := NewTokenService(nil, "x"); !errors.Is(err, ErrMissingSecret) {
		t.Errorf("err = %v, want ErrMissingSecret", err)
	}
}

func TestTokenService_RoundTrip(t *testing.T) {
	svc := newTestTokenService(t)

	token, err := svc.GenerateToken("user-1", "admin", time.Hour)
	if err != nil {
		t.Fatalf("GenerateToken() error = %v", err)
	}

	claims, err := svc.ValidateToken(token)
	if err != nil {
		t.Fatalf("ValidateToken() error = %v", err)
	}
	if claims.UserID != "user-1" || claims.Role != "admin" || claims.Issuer != DefaultIssuer {
		t.Errorf("claims = %+v", claims)
	}
}

func TestTokenService_Expired(t *testing.T) {
	svc := newTestTokenService(t)
	svc.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }

	token, err := svc.GenerateToken("user-1", "", time.Hour)
	if err != nil {
		t.Fatalf("GenerateToken() error = %v", err)
	}

	svc.now = time.Now
	if _, err := svc.ValidateToken(token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("err = %v, want ErrInvalidToken", err)
	}
}

func TestTokenService_Rejects(t *testing.T) {
	svc := newTestTokenService(t)
	now := time.Now()

	sign := func(method jwt.SigningMethod, key any, claims jwt.Claims) string {
		t.Helper()
		s, err := jwt.NewWithClaims(method, claims).SignedString(key)
		if err != nil {
			t.Fatalf("SignedString() error = %v", err)
		}
		return s
	}

	tests := []struct {
		name  string
		token string
	}{
		{
			name: "wrong secret",
			token: sign(jwt.SigningMethodHS256, []byte("other"), &Claims{UserID: "u", RegisteredClaims: jwt.RegisteredClaims{
				Issuer: DefaultIssuer, ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
			}}),
		},
		{
			name: "wrong issuer",
			token: sign(jwt.SigningMethodHS256, []byte("test-secret"), &Claims{UserID: "u", RegisteredClaims: jwt.RegisteredClaims{
				Issuer: "someone-else", ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
			}}),
		},
		{
			name: "no expiry",
			token: sign(jwt.SigningMethodHS256, []byte("test-secret"), &Claims{UserID: "u", RegisteredClaims: jwt.RegisteredClaims{
				Issuer: DefaultIssuer,
			}}),
		},
		{
			name: "other algorithm",
			token: sign(jwt.SigningMethodHS512, []byte("test-secret"), &Claims{UserID: "u", RegisteredClaims: jwt.RegisteredClaims{
				Issuer: DefaultIssuer, ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
			}}),
		},
		{
			name: "no user",
			token: sign(jwt.SigningMethodHS256, []byte("test-secret"), &Claims{RegisteredClaims: jwt.RegisteredClaims{
				Issuer: DefaultIssuer, ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
			}}),
		},
		{name: "garbage", token: "not.a.jwt"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.ValidateToken(tt.token); !errors.Is(err, ErrInvalidToken) {
				t.Errorf("err = %v, want ErrInvalidToken", err)
			}
		})
	}
}

func TestTokenService_SubjectFallback(t *testing.T) {
	svc := newTestTokenService(t)
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{RegisteredClaims: jwt.RegisteredClaims{
		Subject:   "user-from-sub",
		Issuer:    DefaultIssuer,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}}).SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("SignedString() error = %v", err)
	}

	claims, err := svc.ValidateToken(token)
	if err != nil {
		t.Fatalf("ValidateToken() error = %v", err)
	}
	if claims.UserID != "user-from-sub" {
		t.Errorf("UserID = %q", claims.UserID)
	}
}
