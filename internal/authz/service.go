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

// AuditSink receives decision and mutation events. A sink error is
// swallowed on the decision path: auditing never changes an
// authorization outcome.
type AuditSink func(ctx context.Context, event string, fields map[string]any) error

// Service is the single entry point for authorization decisions and
// profile administration. Handlers go through it instead of comparing
// roles or company ids themselves.
type Service struct {
	store    Store
	resolver *Resolver
	workflow *Workflow
	sync     *Synchronizer
	audit    AuditSink
	now      func() time.Time
}

// ServiceOption configures Service behavior.
type ServiceOption func(*Service) error

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) ServiceOption {
	return func(s *Service) error {
		if fn != nil {
			s.now = fn
		}
		return nil
	}
}

// WithClaimsPusher enables claim synchronization after profile mutations.
func WithClaimsPusher(p ClaimsPusher) ServiceOption {
	return func(s *Service) error {
		s.sync = NewSynchronizer(p)
		return nil
	}
}

// WithAuditSink wires the audit event destination.
func WithAuditSink(sink AuditSink) ServiceOption {
	return func(s *Service) error {
		s.audit = sink
		return nil
	}
}

// NewService constructs the facade over a store.
func NewService(store Store, opts ...ServiceOption) (*Service, error) {
	if store == nil {
		return nil, errors.New("authz: store is required")
	}
	s := &Service{
		store: store,
		now:   time.Now,
		sync:  NewSynchronizer(nil),
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	s.resolver = NewResolver(storeCompanies{store})
	s.workflow = NewWorkflow(store, s.sync, s.now)
	return s, nil
}

// storeCompanies adapts Store to the CompanyStore the resolver needs.
type storeCompanies struct{ store Store }

func (c storeCompanies) Exists(ctx context.Context, id string) (bool, error) {
	return c.store.Companies(ctx).Exists(ctx, id)
}

// Profile loads the profile for a principal. Absence maps to
// ErrProfileNotFound, storage failure to a transient error.
func (s *Service) Profile(ctx context.Context, principalID string) (*Profile, error) {
	principalID = strings.TrimSpace(principalID)
	if principalID == "" {
		return nil, ErrUnauthenticated
	}
	profile, err := s.store.Profiles(ctx).Find(ctx, principalID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrProfileNotFound
		}
		return nil, Transient(err)
	}
	return profile, nil
}

// EnsureProfile loads the profile for an authenticated principal,
// creating the initial RoleUser row on first authentication.
func (s *Service) EnsureProfile(ctx context.Context, principal Principal) (*Profile, error) {
	if principal.ID == "" {
		return nil, ErrUnauthenticated
	}
	profiles := s.store.Profiles(ctx)
	profile, err := profiles.Find(ctx, principal.ID)
	if err == nil {
		return profile, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, Transient(err)
	}
	created := &Profile{
		ID:          ids.New(),
		PrincipalID: principal.ID,
		Role:        RoleUser,
		Active:      true,
		CreatedAt:   s.now().UTC(),
		UpdatedAt:   s.now().UTC(),
	}
	if err := profiles.Create(ctx, created); err != nil {
		if errors.Is(err, ErrConflict) {
			// Concurrent first request created it; reread.
			profile, err := profiles.Find(ctx, principal.ID)
			if err != nil {
				return nil, Transient(err)
			}
			return profile, nil
		}
		return nil, Transient(err)
	}
	return created, nil
}

// Resolve computes the effective company for a principal, loading its
// profile first. Every company-scoped handler calls this before any
// business logic.
func (s *Service) Resolve(ctx context.Context, principal Principal, requestedCompanyID *string) (*Profile, CompanyContext, error) {
	return s.resolver.resolveForPrincipal(ctx, s.store.Profiles(ctx), principal, requestedCompanyID)
}

// ResolveProfile resolves the effective company for an already loaded
// profile.
func (s *Service) ResolveProfile(ctx context.Context, profile *Profile, requestedCompanyID *string) (CompanyContext, error) {
	return s.resolver.Resolve(ctx, profile, requestedCompanyID)
}

// Permitted evaluates the permission matrix and records the decision.
// The audit write is fire-and-forget: its failure never flips the
// outcome.
func (s *Service) Permitted(ctx context.Context, role Role, section string, action Action) bool {
	allowed := Allowed(role, section, action)
	if !allowed {
		obs.IncPermissionDenial(section, string(action))
	}
	if s.audit != nil {
		_ = s.audit(ctx, "authz.permission.decision", map[string]any{
			"role":    role.String(),
			"section": section,
			"action":  string(action),
			"allowed": allowed,
		})
	}
	return allowed
}

// SetRole changes a target's role. The manager must hold admin.users
// edit rights, outrank (or equal) both the target's current role and the
// role being assigned, and share the target's company unless superadmin.
func (s *Service) SetRole(ctx context.Context, managerPrincipalID, targetPrincipalID string, role Role) (*Profile, error) {
	if !role.Valid() {
		return nil, fmt.Errorf("%w: invalid role", ErrInvalidInput)
	}
	manager, target, err := s.managerAndTarget(ctx, managerPrincipalID, targetPrincipalID)
	if err != nil {
		return nil, err
	}
	if !s.Permitted(ctx, manager.Role, SectionAdminUsers, ActionEdit) {
		return nil, fmt.Errorf("%w: %s may not manage users", ErrForbidden, manager.Role)
	}
	if !manager.Role.CanManage(target.Role) || !manager.Role.CanManage(role) {
		return nil, fmt.Errorf("%w: insufficient rank", ErrForbidden)
	}
	if err := s.requireSameCompany(manager, target); err != nil {
		return nil, err
	}
	if err := s.store.Profiles(ctx).SetRole(ctx, target.PrincipalID, role); err != nil {
		return nil, Transient(err)
	}
	s.auditMutation(ctx, "authz.profile.role_changed", target.PrincipalID, map[string]any{
		"role":       role.String(),
		"changed_by": manager.PrincipalID,
	})
	s.sync.Sync(ctx, target.PrincipalID, ClaimsUpdate{Role: &role})
	return s.Profile(ctx, target.PrincipalID)
}

// AssignCompany moves a target between companies. Cross-company
// assignment is superadmin-only; an admin may only detach members of its
// own company (companyID nil).
func (s *Service) AssignCompany(ctx context.Context, managerPrincipalID, targetPrincipalID string, companyID *string) (*Profile, error) {
	manager, target, err := s.managerAndTarget(ctx, managerPrincipalID, targetPrincipalID)
	if err != nil {
		return nil, err
	}
	companyID = normalizeID(companyID)
	switch {
	case manager.Role == RoleSuperAdmin:
	case manager.Role == RoleAdmin && companyID == nil:
		if err := s.requireSameCompany(manager, target); err != nil {
			return nil, err
		}
		if !manager.Role.CanManage(target.Role) {
			return nil, fmt.Errorf("%w: insufficient rank", ErrForbidden)
		}
	default:
		return nil, fmt.Errorf("%w: company assignment requires superadmin", ErrForbidden)
	}
	if companyID != nil {
		ok, err := s.store.Companies(ctx).Exists(ctx, *companyID)
		if err != nil {
			return nil, Transient(err)
		}
		if !ok {
			return nil, ErrCompanyNotFound
		}
	}
	if err := s.store.Profiles(ctx).SetCompany(ctx, target.PrincipalID, companyID); err != nil {
		return nil, Transient(err)
	}
	s.auditMutation(ctx, "authz.profile.company_changed", target.PrincipalID, map[string]any{
		"changed_by": manager.PrincipalID,
	})
	s.sync.Sync(ctx, target.PrincipalID, ClaimsUpdate{CompanyID: companyID})
	return s.Profile(ctx, target.PrincipalID)
}

// SetActive toggles a profile. Deactivation is the soft delete: profiles
// referenced by historical records are never removed.
func (s *Service) SetActive(ctx context.Context, managerPrincipalID, targetPrincipalID string, active bool) (*Profile, error) {
	manager, target, err := s.managerAndTarget(ctx, managerPrincipalID, targetPrincipalID)
	if err != nil {
		return nil, err
	}
	if !s.Permitted(ctx, manager.Role, SectionAdminUsers, ActionDelete) {
		return nil, fmt.Errorf("%w: %s may not deactivate users", ErrForbidden, manager.Role)
	}
	if !manager.Role.CanManage(target.Role) {
		return nil, fmt.Errorf("%w: insufficient rank", ErrForbidden)
	}
	if err := s.requireSameCompany(manager, target); err != nil {
		return nil, err
	}
	if err := s.store.Profiles(ctx).SetActive(ctx, target.PrincipalID, active); err != nil {
		return nil, Transient(err)
	}
	s.auditMutation(ctx, "authz.profile.active_changed", target.PrincipalID, map[string]any{
		"active":     active,
		"changed_by": manager.PrincipalID,
	})
	return s.Profile(ctx, target.PrincipalID)
}

// RequestToJoin files a join request for an unaffiliated principal.
func (s *Service) RequestToJoin(ctx context.Context, principalID, companyID, message string) (*JoinRequest, error) {
	return s.workflow.RequestToJoin(ctx, principalID, companyID, message)
}

// ListPendingJoinRequests lists pending requests visible to the manager.
func (s *Service) ListPendingJoinRequests(ctx context.Context, managerPrincipalID string) ([]*JoinRequest, error) {
	return s.workflow.ListPending(ctx, managerPrincipalID)
}

// DecideJoinRequest transitions a pending request.
func (s *Service) DecideJoinRequest(ctx context.Context, requestID string, decision Decision, managerPrincipalID string) (*JoinRequest, error) {
	return s.workflow.Decide(ctx, requestID, decision, managerPrincipalID)
}

func (s *Service) managerAndTarget(ctx context.Context, managerPrincipalID, targetPrincipalID string) (*Profile, *Profile, error) {
	manager, err := s.Profile(ctx, managerPrincipalID)
	if err != nil {
		return nil, nil, err
	}
	if !manager.Active {
		return nil, nil, fmt.Errorf("%w: profile is inactive", ErrForbidden)
	}
	target, err := s.Profile(ctx, strings.TrimSpace(targetPrincipalID))
	if err != nil {
		return nil, nil, err
	}
	return manager, target, nil
}

// requireSameCompany pins non-superadmin managers to their own company.
func (s *Service) requireSameCompany(manager, target *Profile) error {
	if manager.Role == RoleSuperAdmin {
		return nil
	}
	if manager.CompanyID == nil || target.CompanyID == nil || *manager.CompanyID != *target.CompanyID {
		return fmt.Errorf("%w: target belongs to another company", ErrForbidden)
	}
	return nil
}

func (s *Service) auditMutation(ctx context.Context, event, principalID string, fields map[string]any) {
	if s.audit == nil {
		return
	}
	if fields == nil {
		fields = map[string]any{}
	}
	fields["principal_id"] = principalID
	_ = s.audit(ctx, event, fields)
}
