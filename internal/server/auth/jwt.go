// Package auth implements the credential primitives of the server:
// password hashing, signed token issuance/verification, API key
// generation, and resolution of bearer credentials to users.
package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/webstack/webstack/internal/common"
)

// TokenType tags a token with its purpose. A token issued with one type is
// never accepted where another type is required.
type TokenType string

const (
	TokenTypeAccess        TokenType = "access"
	TokenTypeRefresh       TokenType = "refresh"
	TokenTypeEmailVerify   TokenType = "email_verify"
	TokenTypePasswordReset TokenType = "password_reset"
)

// Claims is the signed token payload. Subject, IssuedAt and ExpiresAt come
// from RegisteredClaims; UserID, Role and the type tag are custom.
// ID (jti) is set on refresh tokens only and is opaque to the codec; it is
// used by the service layer for server-side revocation lookups.
type Claims struct {
	jwt.RegisteredClaims
	UserID int64  `json:"user_id,omitempty"`
	Role   string `json:"role,omitempty"`
	Type   string `json:"type"`
}

// IssueOptions carries the optional claims of Issue. Zero values are omitted
// from the payload.
type IssueOptions struct {
	UserID int64
	Role   string
	JTI    string
}

// TokenCodec signs and verifies time-bounded, typed tokens with a symmetric
// key. Verification is stateless: signature and expiry are checked without
// any storage round-trip.
type TokenCodec struct {
	secret []byte
	method jwt.SigningMethod
}

// NewTokenCodec builds a codec for the given HMAC secret and algorithm
// identifier. Only the HS256/HS384/HS512 family is supported.
func NewTokenCodec(secret []byte, algorithm string) (*TokenCodec, error) {
	switch algorithm {
	case "HS256", "HS384", "HS512":
	default:
		return nil, errors.New("unsupported signing algorithm: " + algorithm)
	}
	return &TokenCodec{secret: secret, method: jwt.GetSigningMethod(algorithm)}, nil
}

// Issue creates a signed token for subject with the given type and lifetime.
func (c *TokenCodec) Issue(subject string, tokenType TokenType, ttl time.Duration, opts IssueOptions) (string, error) {
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        opts.JTI,
		},
		UserID: opts.UserID,
		Role:   opts.Role,
		Type:   string(tokenType),
	}

	token := jwt.NewWithClaims(c.method, claims)
	tokenString, err := token.SignedString(c.secret)
	if err != nil {
		return "", err
	}
	return tokenString, nil
}

// NewJTI returns a fresh unique token identifier for refresh tokens.
func NewJTI() string {
	return uuid.NewString()
}

// Verify decodes tokenString, checks the signature and expiry, and (when
// expectedType is non-empty) checks the type tag. It returns
// common.ErrTokenExpired for expired tokens and common.ErrInvalidToken for
// any other failure.
func (c *TokenCodec) Verify(tokenString string, expectedType TokenType) (*Claims, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return c.secret, nil
	}, jwt.WithValidMethods([]string{c.method.Alg()}))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, common.ErrTokenExpired
		}
		return nil, common.ErrInvalidToken
	}
	if !token.Valid {
		return nil, common.ErrInvalidToken
	}

	// Required claims: subject, expiry, type tag.
	if claims.Subject == "" || claims.ExpiresAt == nil || claims.Type == "" {
		return nil, common.ErrInvalidToken
	}
	if expectedType != "" && claims.Type != string(expectedType) {
		return nil, common.ErrInvalidToken
	}

	return claims, nil
}
