package authz

import (
	"context"
	"errors"
	"fmt"

	"cuehall.org/internal/obs"
)

// CompanyContext is the single company scope a request is authorized to
// act against. Derived per request, never stored.
type CompanyContext struct {
	CompanyID  *string `json:"company_id"`
	SuperAdmin bool    `json:"superadmin"`
}

// RequireCompany returns the company id or ErrNoCompanyContext when the
// scope resolved to none (a superadmin with no assignment and no
// requested company).
func (c CompanyContext) RequireCompany() (string, error) {
	if c.CompanyID == nil || *c.CompanyID == "" {
		return "", ErrNoCompanyContext
	}
	return *c.CompanyID, nil
}

// Resolver computes the effective company for a profile and an optional
// requested override.
type Resolver struct {
	companies CompanyStore
}

// NewResolver constructs a Resolver over the company existence check.
func NewResolver(companies CompanyStore) *Resolver {
	return &Resolver{companies: companies}
}

// Resolve implements the effective-company algorithm.
//
// Non-superadmin profiles are pinned to their own company: a requested
// id that differs is a cross-tenant attempt and fails with ErrForbidden,
// never silently substituted. A superadmin may scope a single request to
// any existing company without touching its own assignment.
func (r *Resolver) Resolve(ctx context.Context, profile *Profile, requestedCompanyID *string) (CompanyContext, error) {
	if profile == nil {
		return CompanyContext{}, ErrProfileNotFound
	}
	if !profile.Active {
		return CompanyContext{}, fmt.Errorf("%w: profile is inactive", ErrForbidden)
	}

	requested := normalizeID(requestedCompanyID)

	if profile.Role == RoleSuperAdmin {
		if requested != nil {
			ok, err := r.companies.Exists(ctx, *requested)
			if err != nil {
				return CompanyContext{}, Transient(err)
			}
			if !ok {
				return CompanyContext{}, ErrCompanyNotFound
			}
			// Existence read only: profile.CompanyID stays untouched.
			return CompanyContext{CompanyID: requested, SuperAdmin: true}, nil
		}
		return CompanyContext{CompanyID: profile.CompanyID, SuperAdmin: true}, nil
	}

	if requested != nil && (profile.CompanyID == nil || *requested != *profile.CompanyID) {
		// Strongest signal of a client bug or an attack; logged and
		// counted apart from ordinary permission denials.
		obs.LogEvent("authz.cross_tenant_denied", map[string]any{
			"severity":     "warn",
			"principal_id": profile.PrincipalID,
			"requested":    *requested,
		})
		obs.IncCrossTenantDenial()
		return CompanyContext{}, fmt.Errorf("%w: cross-tenant access", ErrForbidden)
	}
	return CompanyContext{CompanyID: profile.CompanyID, SuperAdmin: false}, nil
}

// resolveForPrincipal loads the profile for an authenticated principal
// and resolves its effective company in one step. Storage absence maps
// to ErrProfileNotFound, storage failure to a transient error.
func (r *Resolver) resolveForPrincipal(ctx context.Context, profiles ProfileStore, principal Principal, requestedCompanyID *string) (*Profile, CompanyContext, error) {
	if principal.ID == "" {
		return nil, CompanyContext{}, ErrUnauthenticated
	}
	profile, err := profiles.Find(ctx, principal.ID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, CompanyContext{}, ErrProfileNotFound
		}
		return nil, CompanyContext{}, Transient(err)
	}
	cc, err := r.Resolve(ctx, profile, requestedCompanyID)
	if err != nil {
		return nil, CompanyContext{}, err
	}
	return profile, cc, nil
}

func normalizeID(id *string) *string {
	if id == nil || *id == "" {
		return nil
	}
	return id
}
