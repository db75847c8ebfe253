package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultIssuer is the issuer claim tokens must carry.
const DefaultIssuer = "showcase"

// TokenExpiration is the lifetime of tokens issued by GenerateToken.
const TokenExpiration = 24 * time.Hour

// Token errors
var (
	ErrMissingSecret = errors.New("jwt secret is empty")
	ErrInvalidToken  = errors.New("invalid token")
)

// Claims represents the JWT claims
type Claims struct {
	UserID string `json:"user_id"`
	Role   string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// TokenService signs and verifies HS256 tokens for one issuer.
type TokenService struct {
	secret []byte
	issuer string
	now    func() time.Time
}

// NewTokenService creates a token service. An empty issuer means DefaultIssuer.
func NewTokenService(secret []byte, issuer string) (*TokenService, error) {
	if len(secret) == 0 {
		return nil, ErrMissingSecret
	}
	if issuer == "" {
		issuer = DefaultIssuer
	}
	return &TokenService{secret: secret, issuer: issuer, now: time.Now}, nil
}

// GenerateToken issues a token for userID. Used by operators and tests; the
// production issuer lives outside this service.
func (s *TokenService) GenerateToken(userID, role string, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		ttl = TokenExpiration
	}
	now := s.now()
	claims := &Claims{
		UserID: userID,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    s.issuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// ValidateToken parses a token, requiring HS256, the configured issuer and an expiry.
func (s *TokenService) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{},
		func(token *jwt.Token) (interface{}, error) {
			return s.secret, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.UserID == "" {
		claims.UserID = claims.Subject
	}
	if claims.UserID == "" {
		return nil, fmt.Errorf("%w: no user id", ErrInvalidToken)
	}
	return claims, nil
}
