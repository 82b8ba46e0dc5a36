package httpapi

import (
	"net/http"
	"strings"

	"cuehall.org/internal/authz"
)

type setRoleBody struct {
	Role string `json:"role"`
}

type setCompanyBody struct {
	CompanyID *string `json:"company_id"`
}

type setActiveBody struct {
	Active bool `json:"active"`
}

// handleMe returns the caller's profile together with the effective
// company the request would act against (honoring ?company_id=).
func (a *API) handleMe(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	principal, ok := principalOrFail(w, r)
	if !ok {
		return
	}
	profile, err := a.svc.EnsureProfile(r.Context(), principal)
	if err != nil {
		handleAuthzError(w, r, err)
		return
	}
	cc, err := a.svc.ResolveProfile(r.Context(), profile, requestedCompany(r))
	if err != nil {
		handleAuthzError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"profile": profile,
		"context": cc,
	})
}

func (a *API) handleProfileScoped(w http.ResponseWriter, r *http.Request) {
	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/profiles/"), "/")
	parts := strings.Split(path, "/")
	if len(parts) != 2 || parts[0] == "" {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	if r.Method != http.MethodPut {
		methodNotAllowed(w, r, http.MethodPut)
		return
	}
	targetPrincipalID := parts[0]

	switch parts[1] {
	case "role":
		a.setProfileRole(w, r, targetPrincipalID)
	case "company":
		a.setProfileCompany(w, r, targetPrincipalID)
	case "active":
		a.setProfileActive(w, r, targetPrincipalID)
	default:
		writeError(w, r, http.StatusNotFound, "resource not found")
	}
}

func (a *API) setProfileRole(w http.ResponseWriter, r *http.Request, target string) {
	principal, ok := principalOrFail(w, r)
	if !ok {
		return
	}
	var body setRoleBody
	if err := decodeJSON(w, r, &body); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	role, err := authz.ParseRole(body.Role)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	profile, err := a.svc.SetRole(r.Context(), principal.ID, target, role)
	if err != nil {
		handleAuthzError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

func (a *API) setProfileCompany(w http.ResponseWriter, r *http.Request, target string) {
	principal, ok := principalOrFail(w, r)
	if !ok {
		return
	}
	var body setCompanyBody
	if err := decodeJSON(w, r, &body); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	profile, err := a.svc.AssignCompany(r.Context(), principal.ID, target, body.CompanyID)
	if err != nil {
		handleAuthzError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

func (a *API) setProfileActive(w http.ResponseWriter, r *http.Request, target string) {
	principal, ok := principalOrFail(w, r)
	if !ok {
		return
	}
	var body setActiveBody
	if err := decodeJSON(w, r, &body); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	profile, err := a.svc.SetActive(r.Context(), principal.ID, target, body.Active)
	if err != nil {
		handleAuthzError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

// requestedCompany reads the optional company override from the query.
func requestedCompany(r *http.Request) *string {
	v := strings.TrimSpace(r.URL.Query().Get("company_id"))
	if v == "" {
		return nil
	}
	return &v
}
