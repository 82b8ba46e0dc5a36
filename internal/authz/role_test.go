package authz

import (
	"encoding/json"
	"testing"
)

func TestRoleRankMonotonic(t *testing.T) {
	roles := Roles()
	for i := 1; i < len(roles); i++ {
		if roles[i].Rank() <= roles[i-1].Rank() {
			t.Fatalf("Rank(%s)=%d not above Rank(%s)=%d",
				roles[i], roles[i].Rank(), roles[i-1], roles[i-1].Rank())
		}
	}
}

func TestCanManage(t *testing.T) {
	roles := Roles()
	for _, manager := range roles {
		for _, target := range roles {
			want := manager.Rank() >= target.Rank()
			if got := manager.CanManage(target); got != want {
				t.Fatalf("%s.CanManage(%s)=%v, want %v", manager, target, got, want)
			}
		}
	}
	// Equal rank is allowed on purpose.
	if !RoleAdmin.CanManage(RoleAdmin) {
		t.Fatal("admin must manage peer admins")
	}
	if Role(-1).CanManage(RoleUser) {
		t.Fatal("invalid role must manage nothing")
	}
	if RoleSuperAdmin.CanManage(Role(42)) {
		t.Fatal("invalid target must never be manageable")
	}
}

func TestParseRole(t *testing.T) {
	cases := map[string]Role{
		"user":       RoleUser,
		"seller":     RoleSeller,
		"admin":      RoleAdmin,
		"superadmin": RoleSuperAdmin,
		" Admin ":    RoleAdmin,
		"SUPERADMIN": RoleSuperAdmin,
	}
	for in, want := range cases {
		got, err := ParseRole(in)
		if err != nil {
			t.Fatalf("ParseRole(%q): %v", in, err)
		}
		if got != want {
			t.Fatalf("ParseRole(%q)=%s, want %s", in, got, want)
		}
	}
	for _, in := range []string{"", "root", "owner", "admin ;"} {
		if _, err := ParseRole(in); err == nil {
			t.Fatalf("ParseRole(%q) accepted an unknown role", in)
		}
	}
}

func TestRoleJSONRoundTrip(t *testing.T) {
	for _, role := range Roles() {
		data, err := json.Marshal(role)
		if err != nil {
			t.Fatalf("marshal %s: %v", role, err)
		}
		var back Role
		if err := json.Unmarshal(data, &back); err != nil {
			t.Fatalf("unmarshal %s: %v", data, err)
		}
		if back != role {
			t.Fatalf("round trip %s -> %s", role, back)
		}
	}
	var r Role
	if err := json.Unmarshal([]byte(`"owner"`), &r); err == nil {
		t.Fatal("unknown role name must not unmarshal")
	}
	if _, err := json.Marshal(Role(99)); err == nil {
		t.Fatal("invalid role must not marshal")
	}
}
