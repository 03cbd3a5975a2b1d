package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// ProfileStore looks up the role name mapped to a profile. It returns
// ErrProfileNotFound when the profile row does not exist and an empty name
// when the profile has no role assigned.
type ProfileStore interface {
	GetRoleName(ctx context.Context, userID uuid.UUID) (string, error)
}

// Resolver turns identities into roles.
type Resolver struct {
	store ProfileStore
}

func NewResolver(store ProfileStore) *Resolver {
	return &Resolver{store: store}
}

// ResolveRole returns the caller's role. A profile without a role mapping is
// a customer; a missing profile or a failed lookup is an error.
func (r *Resolver) ResolveRole(ctx context.Context, userID uuid.UUID) (Role, error) {
	name, err := r.store.GetRoleName(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrProfileNotFound) {
			return RoleCustomer, err
		}
		return RoleCustomer, fmt.Errorf("resolve role: %w", err)
	}
	if name == "" {
		return RoleCustomer, nil
	}
	role, _ := ParseRole(name)
	return role, nil
}

// Authenticator verifies the bearer credential and resolves the caller.
type Authenticator struct {
	verifier *TokenVerifier
	resolver *Resolver
}

func NewAuthenticator(verifier *TokenVerifier, resolver *Resolver) *Authenticator {
	return &Authenticator{verifier: verifier, resolver: resolver}
}

func (a *Authenticator) Authenticate(ctx context.Context, authorizationHeader string) (Caller, error) {
	raw, err := BearerToken(authorizationHeader)
	if err != nil {
		return Caller{}, err
	}
	id, err := a.verifier.Verify(raw)
	if err != nil {
		return Caller{}, err
	}
	role, err := a.resolver.ResolveRole(ctx, id)
	if err != nil {
		return Caller{}, err
	}
	return Caller{ID: id, Role: role}, nil
}
