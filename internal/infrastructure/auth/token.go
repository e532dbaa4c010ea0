package auth

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Common errors
var (
	ErrInvalidToken     = errors.New("invalid token")
	ErrExpiredToken     = errors.New("token has expired")
	ErrInvalidClaims    = errors.New("invalid token claims")
	ErrTokenNotYetValid = errors.New("token is not yet valid")
	ErrMissingSubject   = errors.New("missing subject in claims")
)

// Claims are the claims carried by a vendor bearer token
type Claims struct {
	jwt.RegisteredClaims
	Username string `json:"username"`
	Name     string `json:"name,omitempty"`
	Role     string `json:"role,omitempty"`
}

// IssueInput describes the vendor a token is issued for
type IssueInput struct {
	UserID   string
	Username string
	Name     string
	Role     string
}

// TokenIssuer signs and validates HS256 vendor tokens
type TokenIssuer struct {
	secret     []byte
	expiration time.Duration
	issuer     string
	now        func() time.Time
}

// NewTokenIssuer creates a new TokenIssuer
func NewTokenIssuer(secret string, expiration time.Duration, issuer string) *TokenIssuer {
	if expiration <= 0 {
		expiration = 24 * time.Hour
	}
	return &TokenIssuer{
		secret:     []byte(secret),
		expiration: expiration,
		issuer:     issuer,
		now:        time.Now,
	}
}

// WithClock replaces the clock used for issuing and validating tokens
func (s *TokenIssuer) WithClock(now func() time.Time) *TokenIssuer {
	s.now = now
	return s
}

// Issue signs a token for the vendor and returns it with its expiry
func (s *TokenIssuer) Issue(input IssueInput) (string, time.Time, error) {
	if input.UserID == "" {
		return "", time.Time{}, ErrMissingSubject
	}
	now := s.now()
	expiresAt := now.Add(s.expiration)

	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			Issuer:    s.issuer,
			Subject:   input.UserID,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			NotBefore: jwt.NewNumericDate(now),
			IssuedAt:  jwt.NewNumericDate(now),
		},
		Username: input.Username,
		Name:     input.Name,
		Role:     input.Role,
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return token, expiresAt, nil
}

// Validate verifies the signature and time claims and returns the claims
func (s *TokenIssuer) Validate(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.now))

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		if errors.Is(err, jwt.ErrTokenNotValidYet) {
			return nil, ErrTokenNotYetValid
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidClaims
	}
	if claims.Subject == "" {
		return nil, ErrMissingSubject
	}
	return claims, nil
}

// TokenInfo is what can be read from a token without its signing key
type TokenInfo struct {
	Subject   string
	Username  string
	ExpiresAt time.Time
	IssuedAt  time.Time
}

// HasExpiry reports whether the token carries an exp claim
func (i *TokenInfo) HasExpiry() bool {
	return !i.ExpiresAt.IsZero()
}

// Expired reports whether the token's exp is at or before now. Tokens
// without exp never expire.
func (i *TokenInfo) Expired(now time.Time) bool {
	return i.HasExpiry() && !now.Before(i.ExpiresAt)
}

// InspectToken parses a JWT without verifying its signature. The client
// never holds the server's key, so this is only used to read exp and sub
// before sending a request. Opaque tokens return ErrInvalidToken.
func InspectToken(tokenString string) (*TokenInfo, error) {
	tokenString = strings.TrimSpace(tokenString)
	if strings.Count(tokenString, ".") != 2 {
		return nil, ErrInvalidToken
	}

	claims := &Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tokenString, claims); err != nil {
		return nil, ErrInvalidToken
	}

	info := &TokenInfo{
		Subject:  claims.Subject,
		Username: claims.Username,
	}
	if claims.ExpiresAt != nil {
		info.ExpiresAt = claims.ExpiresAt.Time
	}
	if claims.IssuedAt != nil {
		info.IssuedAt = claims.IssuedAt.Time
	}
	return info, nil
}
