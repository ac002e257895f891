// Package auth is bearer-token authentication: HMAC-signed JWTs checked
// for audience and issuer.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/golang-jwt/jwt/v5"

	"github.com/km-arc/coreapi/framework/config"
	gohttp "github.com/km-arc/coreapi/framework/http"
)

// ErrNoSigningKey is returned when authentication is enabled without a key.
var ErrNoSigningKey = errors.New("auth: signing key not configured")

// Validator checks bearer tokens.
type Validator struct {
	key     []byte
	options []jwt.ParserOption
}

// NewValidator builds a Validator from the auth configuration. Audience
// and issuer are enforced when set.
func NewValidator(cfg config.AuthConfig) (*Validator, error) {
	if cfg.SigningKey == "" {
		return nil, ErrNoSigningKey
	}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{"HS256", "HS384", "HS512"}),
		jwt.WithExpirationRequired(),
	}
	if cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(cfg.Audience))
	}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}
	return &Validator{key: []byte(cfg.SigningKey), options: opts}, nil
}

// Validate parses token and returns its claims.
func (v *Validator) Validate(token string) (*jwt.RegisteredClaims, error) {
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return v.key, nil
	}, v.options...)
	if err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}
	return claims, nil
}

type claimsKey struct{}

// ClaimsFrom returns the claims of the authenticated caller.
func ClaimsFrom(ctx context.Context) (*jwt.RegisteredClaims, bool) {
	c, ok := ctx.Value(claimsKey{}).(*jwt.RegisteredClaims)
	return c, ok
}

// Middleware rejects requests without a valid bearer token with 401 and a
// Bearer challenge. Valid claims are put on the request context.
func Middleware(v *Validator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			res := gohttp.NewResponse(w)
			token := gohttp.NewRequest(r).BearerToken()
			if token == "" {
				res.Unauthorized()
				return
			}
			claims, err := v.Validate(token)
			if err != nil {
				w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token"`)
				res.Error(http.StatusUnauthorized, "Unauthenticated.")
				return
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), claimsKey{}, claims)))
		})
	}
}
