package httpapi

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"cuehall.org/internal/authz"
)

const testAuthSecret = "test-secret"

func mintToken(t *testing.T, secret string, claims idpClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return token
}

func subjectClaims(subject string) idpClaims {
	return idpClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:  subject,
			IssuedAt: jwt.NewNumericDate(time.Now()),
		},
	}
}

func TestExtractBearerToken(t *testing.T) {
	cases := map[string]struct {
		token string
		ok    bool
	}{
		"":                   {"", false},
		"Bearer":             {"", false},
		"Bearer ":            {"", false},
		"Basic dXNlcg==":     {"", false},
		"Bearer abc.def.ghi": {"abc.def.ghi", true},
		"bearer abc.def.ghi": {"abc.def.ghi", true},
	}
	for header, want := range cases {
		token, err := extractBearerToken(header)
		if want.ok && (err != nil || token != want.token) {
			t.Fatalf("extractBearerToken(%q)=%q,%v", header, token, err)
		}
		if !want.ok && err == nil {
			t.Fatalf("extractBearerToken(%q) accepted", header)
		}
	}
}

func TestResolvePrincipal(t *testing.T) {
	api := &API{authSecret: []byte(testAuthSecret)}

	claims := subjectClaims("p1")
	claims.Role = "seller"
	claims.CompanyID = "co-a"
	claims.Initialized = true

	principal, err := api.resolvePrincipal(mintToken(t, testAuthSecret, claims))
	if err != nil {
		t.Fatalf("resolvePrincipal: %v", err)
	}
	if principal.ID != "p1" {
		t.Fatalf("principal id=%q", principal.ID)
	}
	if !principal.Claims.Initialized || principal.Claims.Role == nil || *principal.Claims.Role != authz.RoleSeller {
		t.Fatalf("claims=%+v, want initialized seller", principal.Claims)
	}
	if principal.Claims.CompanyID == nil || *principal.Claims.CompanyID != "co-a" {
		t.Fatalf("claims company=%v", principal.Claims.CompanyID)
	}
}

func TestResolvePrincipalUnknownRoleClaim(t *testing.T) {
	// A bad role name in the token must not fail the request; the
	// claims stay uninitialized and the profile store decides.
	api := &API{authSecret: []byte(testAuthSecret)}

	claims := subjectClaims("p1")
	claims.Role = "owner"
	claims.Initialized = true

	principal, err := api.resolvePrincipal(mintToken(t, testAuthSecret, claims))
	if err != nil {
		t.Fatalf("resolvePrincipal: %v", err)
	}
	if principal.Claims.Initialized || principal.Claims.Role != nil {
		t.Fatalf("claims=%+v, want uninitialized", principal.Claims)
	}
}

func TestResolvePrincipalRejects(t *testing.T) {
	api := &API{authSecret: []byte(testAuthSecret)}

	// Wrong secret.
	if _, err := api.resolvePrincipal(mintToken(t, "other-secret", subjectClaims("p1"))); err == nil {
		t.Fatal("foreign signature accepted")
	}
	// Empty subject.
	if _, err := api.resolvePrincipal(mintToken(t, testAuthSecret, subjectClaims(" "))); err == nil {
		t.Fatal("empty subject accepted")
	}
	// Wrong algorithm: an unsigned token must never pass.
	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, subjectClaims("p1")).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("sign none: %v", err)
	}
	if _, err := api.resolvePrincipal(unsigned); err == nil {
		t.Fatal("alg=none accepted")
	}
	if _, err := api.resolvePrincipal("not.a.token"); err == nil {
		t.Fatal("garbage accepted")
	}
}
