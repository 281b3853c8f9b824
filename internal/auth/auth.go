// Package auth supplies the authenticated actor's identity from JWT bearer
// tokens. The engine trusts these claims and performs its own ownership and
// role checks on top.
package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Roles recognized by the service.
const (
	RoleParticipant = "participant"
	RoleOrganizer   = "organizer"
)

// Actor is the authenticated caller.
type Actor struct {
	ID   string
	Role string
	// Tags are the participant-type tags matched against event eligibility.
	Tags []string
}

// IsOrganizer reports whether the actor holds the organizer role.
func (a Actor) IsOrganizer() bool { return a.Role == RoleOrganizer }

type claims struct {
	Role string   `json:"role"`
	Tags []string `json:"tags,omitempty"`
	jwt.RegisteredClaims
}

// ParseToken validates a bearer token and extracts the actor.
func ParseToken(tokenStr, secret string) (Actor, error) {
	var c claims
	token, err := jwt.ParseWithClaims(tokenStr, &c, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return Actor{}, fmt.Errorf("parse token: %w", err)
	}
	if !token.Valid || c.Subject == "" {
		return Actor{}, fmt.Errorf("invalid token")
	}
	role := c.Role
	if role == "" {
		role = RoleParticipant
	}
	return Actor{ID: c.Subject, Role: role, Tags: c.Tags}, nil
}

// NewToken mints a signed token for the actor. Used by tests and tooling;
// production tokens come from the identity provider.
func NewToken(actor Actor, secret string, ttl time.Duration) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		Role: actor.Role,
		Tags: actor.Tags,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   actor.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	})
	return token.SignedString([]byte(secret))
}

type ctxKey struct{}

// WithActor returns a context carrying the actor.
func WithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, ctxKey{}, actor)
}

// FromContext returns the actor stored by the auth middleware.
func FromContext(ctx context.Context) (Actor, bool) {
	actor, ok := ctx.Value(ctxKey{}).(Actor)
	return actor, ok
}
