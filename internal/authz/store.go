package authz

import (
	"context"
	"time"
)

// Profile is the durable role/company/activity record for a principal.
// Exactly one profile exists per principal id.
type Profile struct {
	ID          string    `json:"id"`
	PrincipalID string    `json:"principal_id"`
	Role        Role      `json:"role"`
	CompanyID   *string   `json:"company_id"`
	Active      bool      `json:"active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Company is owned by company management; the core only checks existence.
type Company struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// JoinStatus is the join-request lifecycle state.
type JoinStatus string

const (
	JoinPending  JoinStatus = "pending"
	JoinApproved JoinStatus = "approved"
	JoinRejected JoinStatus = "rejected"
)

// Terminal reports whether no further transition is allowed.
func (s JoinStatus) Terminal() bool {
	return s == JoinApproved || s == JoinRejected
}

// JoinRequest is a pending ask from an unaffiliated principal to be
// attached to a company.
type JoinRequest struct {
	ID          string     `json:"id"`
	PrincipalID string     `json:"principal_id"`
	CompanyID   string     `json:"company_id"`
	Status      JoinStatus `json:"status"`
	Message     string     `json:"message,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	DecidedAt   *time.Time `json:"decided_at,omitempty"`
	DecidedBy   string     `json:"decided_by,omitempty"`
}

// Store describes the persistence operations the authorization core
// requires. Every method is an atomic operation; Approve additionally
// spans the request transition and the profile assignment in a single
// transaction.
type Store interface {
	Profiles(ctx context.Context) ProfileStore
	Companies(ctx context.Context) CompanyStore
	JoinRequests(ctx context.Context) JoinRequestStore
}

// ProfileStore manages profile rows. Find returns ErrNotFound when no
// profile exists for the principal.
type ProfileStore interface {
	Create(ctx context.Context, p *Profile) error
	Find(ctx context.Context, principalID string) (*Profile, error)
	SetRole(ctx context.Context, principalID string, role Role) error
	SetCompany(ctx context.Context, principalID string, companyID *string) error
	SetActive(ctx context.Context, principalID string, active bool) error
}

// CompanyStore exposes the existence check the resolver needs.
type CompanyStore interface {
	Exists(ctx context.Context, id string) (bool, error)
}

// JoinRequestStore manages the join-request lifecycle.
//
// Approve must, in one transaction: lock the request row, verify it is
// still pending, set the target profile's company where it is currently
// null, and mark the request approved. When the profile is already
// affiliated it returns ErrConflict and leaves the request pending.
type JoinRequestStore interface {
	Create(ctx context.Context, req *JoinRequest) error
	Find(ctx context.Context, id string) (*JoinRequest, error)
	FindPending(ctx context.Context, principalID, companyID string) (*JoinRequest, error)
	ListPending(ctx context.Context, companyID string) ([]*JoinRequest, error)
	Approve(ctx context.Context, id, deciderPrincipalID string) error
	Reject(ctx context.Context, id, deciderPrincipalID string) error
}
