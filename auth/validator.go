// Package auth validates gateway-issued JWTs. Tokens are HMAC-signed with a
// shared secret; the validator satisfies middleware.TokenValidator.
package auth

import (
	"context"
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	"github.com/brightline-ai/enhance-gateway/middleware"
)

// Validator verifies HS256 tokens against a shared secret.
type Validator struct {
	secret []byte
	issuer string
}

// NewValidator creates a Validator. An empty issuer skips issuer checking.
func NewValidator(secret, issuer string) *Validator {
	return &Validator{secret: []byte(secret), issuer: issuer}
}

type tokenClaims struct {
	Email string `json:"email"`
	Tier  string `json:"tier"`
	jwt.RegisteredClaims
}

// ValidateToken implements middleware.TokenValidator.
func (v *Validator) ValidateToken(_ context.Context, token string) (*middleware.Claims, error) {
	if len(v.secret) == 0 {
		return nil, fmt.Errorf("token validation not configured")
	}

	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	var claims tokenClaims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (interface{}, error) {
		return v.secret, nil
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("parsing token: %w", err)
	}
	if !parsed.Valid {
		return nil, fmt.Errorf("token is not valid")
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("token has no subject")
	}

	out := &middleware.Claims{
		Sub:   claims.Subject,
		Email: claims.Email,
		Tier:  claims.Tier,
		Iss:   claims.Issuer,
	}
	if claims.ExpiresAt != nil {
		out.Exp = claims.ExpiresAt.Unix()
	}
	if claims.IssuedAt != nil {
		out.Iat = claims.IssuedAt.Unix()
	}
	return out, nil
}
