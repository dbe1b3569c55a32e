// Package identity resolves the calling user from a bearer token and lists
// the user's roles.
package identity

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/atelier-ops/atelier-sync/internal/store"
	"github.com/atelier-ops/atelier-sync/internal/syncerr"
)

var (
	errMissingHeader   = errors.New("missing authorization header")
	errMalformedHeader = errors.New("authorization header must be a bearer token")
	errMissingSubject  = errors.New("token has no subject")
)

// User is a resolved caller
type User struct {
	ID    string
	Email string
}

// Resolver resolves users from the Authorization header of a request
type Resolver interface {
	ResolveUser(ctx context.Context, authorization string) (*User, error)
}

// RoleChecker reports whether a user holds a role
type RoleChecker interface {
	HasRole(ctx context.Context, userID, role string) (bool, error)
}

// JWTResolver validates HS256 tokens signed with the platform secret
type JWTResolver struct {
	secret   []byte
	issuer   string
	audience string
	roles    store.RoleLister
}

// JWTOption configures a JWTResolver
type JWTOption func(*JWTResolver)

// WithIssuer requires the iss claim to match
func WithIssuer(issuer string) JWTOption {
	return func(r *JWTResolver) {
		r.issuer = issuer
	}
}

// WithAudience requires aud to contain audience
func WithAudience(audience string) JWTOption {
	return func(r *JWTResolver) {
		r.audience = audience
	}
}

// NewJWTResolver creates a JWTResolver. roles backs ListRoles and HasRole.
func NewJWTResolver(secret string, roles store.RoleLister, opts ...JWTOption) (*JWTResolver, error) {
	if secret == "" {
		return nil, fmt.Errorf("JWT secret is required")
	}
	r := &JWTResolver{secret: []byte(secret), roles: roles}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// ResolveUser implements Resolver. Every failure is an Unauthorized error.
func (r *JWTResolver) ResolveUser(_ context.Context, authorization string) (*User, error) {
	raw, err := ExtractBearerToken(authorization)
	if err != nil {
		return nil, syncerr.Unauthorized("unauthorized: "+err.Error(), err)
	}

	parserOpts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if r.issuer != "" {
		parserOpts = append(parserOpts, jwt.WithIssuer(r.issuer))
	}
	if r.audience != "" {
		parserOpts = append(parserOpts, jwt.WithAudience(r.audience))
	}

	claims := jwt.MapClaims{}
	_, err = jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return r.secret, nil
	}, parserOpts...)
	if err != nil {
		return nil, syncerr.Unauthorized("unauthorized: invalid token", err)
	}

	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return nil, syncerr.Unauthorized("unauthorized: "+errMissingSubject.Error(), errMissingSubject)
	}

	user := &User{ID: sub}
	if email, ok := claims["email"].(string); ok {
		user.Email = email
	}
	return user, nil
}

// ListRoles returns the roles of a user
func (r *JWTResolver) ListRoles(ctx context.Context, userID string) ([]string, error) {
	if r.roles == nil {
		return nil, nil
	}
	roles, err := r.roles.ListRoles(ctx, userID)
	if err != nil {
		return nil, syncerr.Storage("list roles", err)
	}
	return roles, nil
}

// HasRole implements RoleChecker
func (r *JWTResolver) HasRole(ctx context.Context, userID, role string) (bool, error) {
	roles, err := r.ListRoles(ctx, userID)
	if err != nil {
		return false, err
	}
	return slices.Contains(roles, role), nil
}

// StaticResolver resolves every request to one user. It backs local
// development when no JWT secret is configured.
type StaticResolver struct {
	User  User
	Roles []string
}

// ResolveUser implements Resolver
func (s StaticResolver) ResolveUser(context.Context, string) (*User, error) {
	u := s.User
	return &u, nil
}

// HasRole implements RoleChecker
func (s StaticResolver) HasRole(_ context.Context, _ string, role string) (bool, error) {
	return slices.Contains(s.Roles, role), nil
}

// ExtractBearerToken returns the token of a "Bearer <token>" header value
func ExtractBearerToken(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", errMissingHeader
	}
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", errMalformedHeader
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return "", errMalformedHeader
	}
	return token, nil
}

type userKey struct{}

// WithUser stores the resolved user in ctx
func WithUser(ctx context.Context, u *User) context.Context {
	return context.WithValue(ctx, userKey{}, u)
}

// UserFromContext returns the user stored by WithUser
func UserFromContext(ctx context.Context) (*User, bool) {
	u, ok := ctx.Value(userKey{}).(*User)
	return u, ok && u != nil
}
