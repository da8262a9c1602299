// Package entitlement models the externally held subscription state of a
// caller: a plan tier (free or premium) and, for free users, the number of
// quota-gated generations already consumed. The state lives on the identity
// provider, not in the local database, and is reached through the Store
// interface so handlers and services never bind to a concrete provider.
//
// No atomicity is assumed: IncrementFreeUsage is read-modify-write on the
// provider side and callers must treat it as best-effort.
package entitlement

import (
	"context"
	"errors"
)

// Plan tiers as reported by the identity provider.
const (
	PlanFree    = "free"
	PlanPremium = "premium"
)

// ErrUserNotFound is returned by a Store when the provider does not know the
// user id.
var ErrUserNotFound = errors.New("entitlement: user not found")

// Entitlement is a caller's plan tier and, for the free tier, the used
// portion of the generation quota.
type Entitlement struct {
	Plan      string `json:"plan"`
	FreeUsage int    `json:"free_usage"`
}

// IsPremium reports whether the entitlement carries the premium tier.
func (e Entitlement) IsPremium() bool { return e.Plan == PlanPremium }

// Store is the external key-value entitlement store.
//
// Implementations must be safe for concurrent use. Get resolves the current
// entitlement for a user; IncrementFreeUsage adds exactly 1 to the stored
// free-usage counter.
type Store interface {
	Get(ctx context.Context, userID string) (Entitlement, error)
	IncrementFreeUsage(ctx context.Context, userID string) error
}
