package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"cuehall.org/internal/authz"
)

const (
	authHeader = "Authorization"
	bearer     = "Bearer "
)

var errInvalidToken = errors.New("invalid token")

var publicPaths = []string{
	"/metrics",
	"/healthz",
	"/readyz",
	"/v1/info",
	"/",
}

// idpClaims is the claim shape the identity provider embeds in its
// tokens. Role and company may lag the profile store; the Initialized
// flag marks whether the claim synchronizer ever wrote them.
type idpClaims struct {
	Role        string `json:"role,omitempty"`
	CompanyID   string `json:"company_id,omitempty"`
	Initialized bool   `json:"claims_initialized,omitempty"`
	jwt.RegisteredClaims
}

// withAuth resolves the principal from the bearer token the identity
// provider issued. Token issuance and credential checks happen upstream;
// this layer only decodes the signed result.
func (a *API) withAuth(next http.Handler) http.Handler {
	if a == nil || len(a.authSecret) == 0 {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions || isPublicPath(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		token, err := extractBearerToken(r.Header.Get(authHeader))
		if err != nil {
			writeError(w, r, http.StatusUnauthorized, err.Error())
			return
		}

		principal, err := a.resolvePrincipal(token)
		if err != nil {
			writeError(w, r, http.StatusUnauthorized, "invalid token")
			return
		}

		ctx := authz.ContextWithPrincipal(r.Context(), principal)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// resolvePrincipal decodes the identity provider's HS256 token into a
// Principal. Unknown role names in claims leave the claims
// uninitialized rather than failing the request: the profile store is
// authoritative either way.
func (a *API) resolvePrincipal(token string) (authz.Principal, error) {
	parsed, err := jwt.ParseWithClaims(token, &idpClaims{}, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, errInvalidToken
		}
		return a.authSecret, nil
	})
	if err != nil {
		return authz.Principal{}, errInvalidToken
	}
	claims, ok := parsed.Claims.(*idpClaims)
	if !ok || !parsed.Valid || strings.TrimSpace(claims.Subject) == "" {
		return authz.Principal{}, errInvalidToken
	}

	principal := authz.Principal{ID: claims.Subject}
	if claims.IssuedAt != nil {
		principal.Claims.IssuedAt = claims.IssuedAt.Time
	}
	if claims.Initialized {
		role, err := authz.ParseRole(claims.Role)
		if err == nil {
			principal.Claims.Role = &role
			principal.Claims.Initialized = true
		}
		if claims.CompanyID != "" {
			companyID := claims.CompanyID
			principal.Claims.CompanyID = &companyID
		}
	}
	return principal, nil
}

func extractBearerToken(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", errors.New("missing bearer token")
	}
	if !strings.HasPrefix(strings.ToLower(header), strings.ToLower(bearer)) {
		return "", errors.New("invalid authorization scheme")
	}
	token := strings.TrimSpace(header[len(bearer):])
	if token == "" {
		return "", errors.New("missing bearer token")
	}
	return token, nil
}

func isPublicPath(path string) bool {
	for _, p := range publicPaths {
		if path == p {
			return true
		}
	}
	return false
}

// principalOrFail pulls the authenticated principal from context.
func principalOrFail(w http.ResponseWriter, r *http.Request) (authz.Principal, bool) {
	principal, ok := authz.PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "unauthenticated")
		return authz.Principal{}, false
	}
	return principal, true
}
