package authz

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// memStore is an in-memory Store used across the package tests. It
// mirrors the storage contract, including the pending-uniqueness
// conflict and the company-is-null guard on approval.
type memStore struct {
	mu        sync.Mutex
	profiles  map[string]*Profile     // keyed by principal id
	companies map[string]*Company     // keyed by company id
	requests  map[string]*JoinRequest // keyed by request id

	failProfiles bool
	failCompany  bool
}

func newMemStore() *memStore {
	return &memStore{
		profiles:  map[string]*Profile{},
		companies: map[string]*Company{},
		requests:  map[string]*JoinRequest{},
	}
}

func (m *memStore) addCompany(id string) {
	m.companies[id] = &Company{ID: id, Name: id, CreatedAt: time.Now()}
}

func (m *memStore) addProfile(principalID string, role Role, companyID *string) *Profile {
	p := &Profile{
		ID:          "prof-" + principalID,
		PrincipalID: principalID,
		Role:        role,
		CompanyID:   companyID,
		Active:      true,
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
	}
	m.profiles[principalID] = p
	return p
}

func (m *memStore) Profiles(context.Context) ProfileStore { return (*memProfiles)(m) }

func (m *memStore) Companies(context.Context) CompanyStore { return (*memCompanies)(m) }

func (m *memStore) JoinRequests(context.Context) JoinRequestStore { return (*memRequests)(m) }

type memProfiles memStore

func (m *memProfiles) Create(_ context.Context, p *Profile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failProfiles {
		return fmt.Errorf("profiles store down")
	}
	if _, ok := m.profiles[p.PrincipalID]; ok {
		return ErrConflict
	}
	cp := *p
	m.profiles[p.PrincipalID] = &cp
	return nil
}

func (m *memProfiles) Find(_ context.Context, principalID string) (*Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failProfiles {
		return nil, fmt.Errorf("profiles store down")
	}
	p, ok := m.profiles[principalID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *memProfiles) SetRole(_ context.Context, principalID string, role Role) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[principalID]
	if !ok {
		return ErrNotFound
	}
	p.Role = role
	return nil
}

func (m *memProfiles) SetCompany(_ context.Context, principalID string, companyID *string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[principalID]
	if !ok {
		return ErrNotFound
	}
	p.CompanyID = companyID
	return nil
}

func (m *memProfiles) SetActive(_ context.Context, principalID string, active bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[principalID]
	if !ok {
		return ErrNotFound
	}
	p.Active = active
	return nil
}

type memCompanies memStore

func (m *memCompanies) Exists(_ context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failCompany {
		return false, fmt.Errorf("companies store down")
	}
	_, ok := m.companies[id]
	return ok, nil
}

type memRequests memStore

func (m *memRequests) Create(_ context.Context, req *JoinRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.companies[req.CompanyID]; !ok {
		return ErrCompanyNotFound
	}
	for _, existing := range m.requests {
		if existing.PrincipalID == req.PrincipalID &&
			existing.CompanyID == req.CompanyID &&
			existing.Status == JoinPending {
			return ErrConflict
		}
	}
	cp := *req
	m.requests[req.ID] = &cp
	return nil
}

func (m *memRequests) Find(_ context.Context, id string) (*JoinRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	req, ok := m.requests[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *req
	return &cp, nil
}

func (m *memRequests) FindPending(_ context.Context, principalID, companyID string) (*JoinRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, req := range m.requests {
		if req.PrincipalID == principalID && req.CompanyID == companyID && req.Status == JoinPending {
			cp := *req
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (m *memRequests) ListPending(_ context.Context, companyID string) ([]*JoinRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := []*JoinRequest{}
	for _, req := range m.requests {
		if req.Status != JoinPending {
			continue
		}
		if companyID != "" && req.CompanyID != companyID {
			continue
		}
		cp := *req
		result = append(result, &cp)
	}
	return result, nil
}

func (m *memRequests) Approve(_ context.Context, id, deciderPrincipalID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	req, ok := m.requests[id]
	if !ok {
		return ErrNotFound
	}
	if req.Status != JoinPending {
		return fmt.Errorf("%w: request already %s", ErrInvalidState, req.Status)
	}
	profile, ok := m.profiles[req.PrincipalID]
	if !ok {
		return ErrNotFound
	}
	if profile.CompanyID != nil {
		return fmt.Errorf("%w: principal already affiliated", ErrConflict)
	}
	companyID := req.CompanyID
	profile.CompanyID = &companyID
	now := time.Now()
	req.Status = JoinApproved
	req.DecidedAt = &now
	req.DecidedBy = deciderPrincipalID
	return nil
}

func (m *memRequests) Reject(_ context.Context, id, deciderPrincipalID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	req, ok := m.requests[id]
	if !ok {
		return ErrNotFound
	}
	if req.Status != JoinPending {
		return fmt.Errorf("%w: request already %s", ErrInvalidState, req.Status)
	}
	now := time.Now()
	req.Status = JoinRejected
	req.DecidedAt = &now
	req.DecidedBy = deciderPrincipalID
	return nil
}
