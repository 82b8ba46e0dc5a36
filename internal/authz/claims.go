package authz

import (
	"context"

	"cuehall.org/internal/obs"
)

// ClaimsUpdate is the partial role/company state pushed to the identity
// provider's claim store. Nil fields are left unchanged upstream.
type ClaimsUpdate struct {
	Role      *Role
	CompanyID *string
}

// ClaimsPusher is the identity-provider side of claim synchronization.
type ClaimsPusher interface {
	PushClaims(ctx context.Context, principalID string, upd ClaimsUpdate) error
}

// Synchronizer propagates profile mutations to the external claim store.
//
// The profile store is the source of truth: Sync runs strictly after the
// durable write has committed, and a failed push is logged and counted
// but never rolls the mutation back. The claim store may lag; consumers
// must treat claims as a cache gated by Claims.Fresh.
type Synchronizer struct {
	pusher ClaimsPusher
}

// NewSynchronizer wraps a pusher. A nil pusher yields a no-op
// synchronizer so call sites need no branching.
func NewSynchronizer(pusher ClaimsPusher) *Synchronizer {
	return &Synchronizer{pusher: pusher}
}

// Sync pushes the update best-effort.
func (s *Synchronizer) Sync(ctx context.Context, principalID string, upd ClaimsUpdate) {
	if s == nil || s.pusher == nil {
		return
	}
	if err := s.pusher.PushClaims(ctx, principalID, upd); err != nil {
		obs.IncClaimsSyncFailure()
		obs.LogEvent("authz.claims_sync.failed", map[string]any{
			"severity":     "warn",
			"principal_id": principalID,
			"error":        err.Error(),
		})
	}
}
