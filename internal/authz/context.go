package authz

import "context"

type principalContextKey struct{}
type companyContextKey struct{}

// ContextWithPrincipal attaches the authenticated principal to the context.
func ContextWithPrincipal(ctx context.Context, principal Principal) context.Context {
	return context.WithValue(ctx, principalContextKey{}, &principal)
}

// PrincipalFromContext extracts the authenticated principal from the context.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	if ctx == nil {
		return Principal{}, false
	}
	v, ok := ctx.Value(principalContextKey{}).(*Principal)
	if !ok || v == nil || v.ID == "" {
		return Principal{}, false
	}
	return *v, true
}

// ContextWithCompany stores the resolved effective-company context so
// downstream business handlers never re-derive it.
func ContextWithCompany(ctx context.Context, cc CompanyContext) context.Context {
	return context.WithValue(ctx, companyContextKey{}, &cc)
}

// CompanyFromContext returns the effective-company context if resolved.
func CompanyFromContext(ctx context.Context) (CompanyContext, bool) {
	if ctx == nil {
		return CompanyContext{}, false
	}
	v, ok := ctx.Value(companyContextKey{}).(*CompanyContext)
	if !ok || v == nil {
		return CompanyContext{}, false
	}
	return *v, true
}
