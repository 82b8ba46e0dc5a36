package authz

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cuehall.org/internal/ids"
	"cuehall.org/internal/obs"
)

// Decision is the terminal state an admin chooses for a pending request.
type Decision string

const (
	DecisionApprove Decision = "approve"
	DecisionReject  Decision = "reject"
)

// ParseDecision decodes a decision name from the wire.
func ParseDecision(s string) (Decision, error) {
	switch Decision(strings.TrimSpace(strings.ToLower(s))) {
	case DecisionApprove:
		return DecisionApprove, nil
	case DecisionReject:
		return DecisionReject, nil
	default:
		return "", fmt.Errorf("%w: unknown decision %q", ErrInvalidInput, s)
	}
}

// Workflow drives the join-request state machine:
//
//	pending -> approved | rejected
//
// Terminal states are immutable. Approval assigns the target profile to
// the request's company inside the same transaction as the transition.
type Workflow struct {
	store Store
	sync  *Synchronizer
	now   func() time.Time
}

// NewWorkflow constructs the workflow. The synchronizer may be nil when
// no identity-provider claim push is configured.
func NewWorkflow(store Store, sync *Synchronizer, now func() time.Time) *Workflow {
	if now == nil {
		now = time.Now
	}
	return &Workflow{store: store, sync: sync, now: now}
}

// RequestToJoin files a pending request for an unaffiliated principal.
// Creation is idempotent: an existing pending request for the same
// (principal, company) pair is returned as-is instead of duplicated.
func (w *Workflow) RequestToJoin(ctx context.Context, principalID, companyID, message string) (*JoinRequest, error) {
	principalID = strings.TrimSpace(principalID)
	companyID = strings.TrimSpace(companyID)
	if principalID == "" || companyID == "" {
		return nil, fmt.Errorf("%w: principal_id and company_id are required", ErrInvalidInput)
	}

	profile, err := w.store.Profiles(ctx).Find(ctx, principalID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrProfileNotFound
		}
		return nil, Transient(err)
	}
	if !profile.Active {
		return nil, fmt.Errorf("%w: profile is inactive", ErrForbidden)
	}
	if profile.CompanyID != nil {
		return nil, fmt.Errorf("%w: principal already belongs to a company", ErrInvalidState)
	}

	requests := w.store.JoinRequests(ctx)
	if existing, err := requests.FindPending(ctx, principalID, companyID); err == nil {
		return existing, nil
	} else if !errors.Is(err, ErrNotFound) {
		return nil, Transient(err)
	}

	req := &JoinRequest{
		ID:          ids.New(),
		PrincipalID: principalID,
		CompanyID:   companyID,
		Status:      JoinPending,
		Message:     strings.TrimSpace(message),
		CreatedAt:   w.now().UTC(),
	}
	if err := requests.Create(ctx, req); err != nil {
		switch {
		case errors.Is(err, ErrConflict):
			// Lost a create race; the surviving pending row wins.
			existing, findErr := requests.FindPending(ctx, principalID, companyID)
			if findErr != nil {
				return nil, Transient(findErr)
			}
			return existing, nil
		case errors.Is(err, ErrCompanyNotFound):
			return nil, ErrCompanyNotFound
		default:
			return nil, Transient(err)
		}
	}
	obs.LogEvent("authz.join_request.created", map[string]any{
		"request_id":   req.ID,
		"principal_id": principalID,
		"company_id":   companyID,
	})
	return req, nil
}

// ListPending returns the pending requests visible to the manager:
// everything for a superadmin, the manager's own company for an admin,
// nothing for any other role.
func (w *Workflow) ListPending(ctx context.Context, managerPrincipalID string) ([]*JoinRequest, error) {
	manager, err := w.managerProfile(ctx, managerPrincipalID)
	if err != nil {
		return nil, err
	}
	switch {
	case manager.Role == RoleSuperAdmin:
		list, err := w.store.JoinRequests(ctx).ListPending(ctx, "")
		if err != nil {
			return nil, Transient(err)
		}
		return list, nil
	case manager.Role == RoleAdmin && manager.CompanyID != nil:
		list, err := w.store.JoinRequests(ctx).ListPending(ctx, *manager.CompanyID)
		if err != nil {
			return nil, Transient(err)
		}
		return list, nil
	default:
		return []*JoinRequest{}, nil
	}
}

// Decide transitions a pending request exactly once. On approval the
// target profile is attached to the request's company atomically with
// the transition.
//
// When two approvals race over the same principal, the first committed
// assignment wins; the loser's transaction finds the profile already
// affiliated, fails with ErrInvalidState and leaves its request pending
// for manual re-decision.
func (w *Workflow) Decide(ctx context.Context, requestID string, decision Decision, managerPrincipalID string) (*JoinRequest, error) {
	requestID = strings.TrimSpace(requestID)
	if requestID == "" {
		return nil, fmt.Errorf("%w: request_id is required", ErrInvalidInput)
	}
	if decision != DecisionApprove && decision != DecisionReject {
		return nil, fmt.Errorf("%w: unknown decision %q", ErrInvalidInput, decision)
	}

	manager, err := w.managerProfile(ctx, managerPrincipalID)
	if err != nil {
		return nil, err
	}

	requests := w.store.JoinRequests(ctx)
	req, err := requests.Find(ctx, requestID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, Transient(err)
	}

	switch {
	case manager.Role == RoleSuperAdmin:
	case manager.Role == RoleAdmin && manager.CompanyID != nil && *manager.CompanyID == req.CompanyID:
	default:
		return nil, fmt.Errorf("%w: not a manager of company %s", ErrForbidden, req.CompanyID)
	}

	if req.Status.Terminal() {
		return nil, fmt.Errorf("%w: request already %s", ErrInvalidState, req.Status)
	}

	switch decision {
	case DecisionApprove:
		err = requests.Approve(ctx, requestID, managerPrincipalID)
	case DecisionReject:
		err = requests.Reject(ctx, requestID, managerPrincipalID)
	}
	if err != nil {
		switch {
		case errors.Is(err, ErrConflict), errors.Is(err, ErrInvalidState):
			// Already terminal, or the principal got approved into
			// another company first.
			return nil, fmt.Errorf("%w: %v", ErrInvalidState, err)
		case errors.Is(err, ErrNotFound):
			return nil, ErrNotFound
		default:
			return nil, Transient(err)
		}
	}

	decided, err := requests.Find(ctx, requestID)
	if err != nil {
		return nil, Transient(err)
	}
	obs.IncJoinDecision(string(decided.Status))
	obs.LogEvent("authz.join_request.decided", map[string]any{
		"request_id":   decided.ID,
		"principal_id": decided.PrincipalID,
		"company_id":   decided.CompanyID,
		"status":       string(decided.Status),
		"decided_by":   managerPrincipalID,
	})

	if decided.Status == JoinApproved && w.sync != nil {
		companyID := decided.CompanyID
		w.sync.Sync(ctx, decided.PrincipalID, ClaimsUpdate{CompanyID: &companyID})
	}
	return decided, nil
}

func (w *Workflow) managerProfile(ctx context.Context, principalID string) (*Profile, error) {
	principalID = strings.TrimSpace(principalID)
	if principalID == "" {
		return nil, ErrUnauthenticated
	}
	profile, err := w.store.Profiles(ctx).Find(ctx, principalID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrProfileNotFound
		}
		return nil, Transient(err)
	}
	if !profile.Active {
		return nil, fmt.Errorf("%w: profile is inactive", ErrForbidden)
	}
	return profile, nil
}
