package authz

import (
	"context"
	"testing"
)

func TestPrincipalContext(t *testing.T) {
	ctx := context.Background()
	if _, ok := PrincipalFromContext(ctx); ok {
		t.Fatal("empty context must carry no principal")
	}
	p := Principal{ID: "p1"}
	ctx = ContextWithPrincipal(ctx, p)
	got, ok := PrincipalFromContext(ctx)
	if !ok || got.ID != "p1" {
		t.Fatalf("PrincipalFromContext=%+v,%v", got, ok)
	}
}

func TestCompanyContextCarrier(t *testing.T) {
	ctx := context.Background()
	if _, ok := CompanyFromContext(ctx); ok {
		t.Fatal("empty context must carry no company scope")
	}
	cc := CompanyContext{CompanyID: strptr("co-a")}
	ctx = ContextWithCompany(ctx, cc)
	got, ok := CompanyFromContext(ctx)
	if !ok || got.CompanyID == nil || *got.CompanyID != "co-a" {
		t.Fatalf("CompanyFromContext=%+v,%v", got, ok)
	}
}
