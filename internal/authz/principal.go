package authz

import "time"

// Principal is an authenticated actor as handed over by the identity
// provider. Immutable for the lifetime of a request.
type Principal struct {
	ID     string
	Claims Claims
}

// Claims carries role/company hints embedded in the identity provider's
// token. They lag the profile store whenever a profile mutation has not
// yet been pushed back, so security-critical decisions always read the
// profile store; claims may only serve as a fast path when Fresh.
type Claims struct {
	Role        *Role
	CompanyID   *string
	Initialized bool
	IssuedAt    time.Time
}

// Fresh reports whether the claims were initialized by a synchronizer
// push and issued recently enough to use without a profile read.
func (c Claims) Fresh(now time.Time, maxAge time.Duration) bool {
	if !c.Initialized || c.IssuedAt.IsZero() || maxAge <= 0 {
		return false
	}
	return now.Sub(c.IssuedAt) <= maxAge
}
