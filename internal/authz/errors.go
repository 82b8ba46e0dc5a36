package authz

import (
	"errors"
	"fmt"
)

var (
	// ErrUnauthenticated means no valid principal accompanied the request.
	ErrUnauthenticated = errors.New("authz: unauthenticated")
	// ErrProfileNotFound means the principal authenticated but has no
	// profile row. Distinct from ErrUnauthenticated on purpose.
	ErrProfileNotFound = errors.New("authz: profile not found")
	// ErrForbidden means the requested scope or action is disallowed for
	// an authenticated principal with a profile.
	ErrForbidden = errors.New("authz: forbidden")
	// ErrNoCompanyContext means a company-scoped operation was attempted
	// with no resolvable company.
	ErrNoCompanyContext = errors.New("authz: no company context")
	// ErrCompanyNotFound means the requested company id does not exist.
	ErrCompanyNotFound = errors.New("authz: company not found")
	// ErrInvalidState means a state-machine violation, e.g. deciding a
	// join request that is already terminal.
	ErrInvalidState = errors.New("authz: invalid state")
	// ErrTransient wraps retryable storage or identity-provider failures.
	// Callers must not conflate it with a denial.
	ErrTransient = errors.New("authz: transient error")

	// ErrNotFound is the storage-level absence sentinel for records other
	// than profiles and companies.
	ErrNotFound = errors.New("authz: not found")
	// ErrConflict is returned by storage on uniqueness or optimistic
	// concurrency violations.
	ErrConflict = errors.New("authz: conflict")
	// ErrInvalidInput rejects malformed arguments before any storage call.
	ErrInvalidInput = errors.New("authz: invalid input")
)

// Transient marks err as retryable while preserving its message.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %v", ErrTransient, err)
}

// IsTransient reports whether err is safe to retry with backoff.
func IsTransient(err error) bool {
	return errors.Is(err, ErrTransient)
}
