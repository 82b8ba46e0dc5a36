package httpapi

import (
	"fmt"
	"net/http"
	"strings"

	"cuehall.org/internal/authz"
)

type createJoinRequestBody struct {
	CompanyID string `json:"company_id"`
	Message   string `json:"message"`
}

type decideJoinRequestBody struct {
	Decision string `json:"decision"`
}

func (a *API) handleJoinRequests(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		a.createJoinRequest(w, r)
	case http.MethodGet:
		a.listPendingJoinRequests(w, r)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) createJoinRequest(w http.ResponseWriter, r *http.Request) {
	principal, ok := principalOrFail(w, r)
	if !ok {
		return
	}
	var body createJoinRequestBody
	if err := decodeJSON(w, r, &body); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	// A first-time principal may file a request before any admin has
	// seen it; the profile row is created on first authenticated call.
	if _, err := a.svc.EnsureProfile(r.Context(), principal); err != nil {
		handleAuthzError(w, r, err)
		return
	}

	req, err := a.svc.RequestToJoin(r.Context(), principal.ID, body.CompanyID, body.Message)
	if err != nil {
		handleAuthzError(w, r, err)
		return
	}
	w.Header().Set("Location", fmt.Sprintf("/v1/join-requests/%s", req.ID))
	writeJSON(w, http.StatusCreated, req)
}

func (a *API) listPendingJoinRequests(w http.ResponseWriter, r *http.Request) {
	principal, ok := principalOrFail(w, r)
	if !ok {
		return
	}
	list, err := a.svc.ListPendingJoinRequests(r.Context(), principal.ID)
	if err != nil {
		handleAuthzError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"join_requests": list})
}

func (a *API) handleJoinRequestScoped(w http.ResponseWriter, r *http.Request) {
	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/join-requests/"), "/")
	parts := strings.Split(path, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] != "decision" {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	a.decideJoinRequest(w, r, parts[0])
}

func (a *API) decideJoinRequest(w http.ResponseWriter, r *http.Request, requestID string) {
	principal, ok := principalOrFail(w, r)
	if !ok {
		return
	}
	var body decideJoinRequestBody
	if err := decodeJSON(w, r, &body); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	decision, err := authz.ParseDecision(body.Decision)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	decided, err := a.svc.DecideJoinRequest(r.Context(), requestID, decision, principal.ID)
	if err != nil {
		handleAuthzError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, decided)
}
