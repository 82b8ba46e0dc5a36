package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"

	"cuehall.org/internal/authz"
)

const (
	pgErrUniqueViolation     = "23505"
	pgErrForeignKeyViolation = "23503"
)

func maybePgError(err error) (*pgconn.PgError, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr, true
	}
	return nil, false
}

// Profile store -------------------------------------------------------

type profileStore struct{ db *sql.DB }

const profileColumns = `id, principal_id, role, company_id, active, created_at, updated_at`

func scanProfile(row interface{ Scan(...any) error }) (*authz.Profile, error) {
	var (
		p       authz.Profile
		role    string
		company sql.NullString
	)
	if err := row.Scan(&p.ID, &p.PrincipalID, &role, &company, &p.Active, &p.CreatedAt, &p.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, authz.ErrNotFound
		}
		return nil, err
	}
	parsed, err := authz.ParseRole(role)
	if err != nil {
		return nil, fmt.Errorf("decode profile role: %w", err)
	}
	p.Role = parsed
	if company.Valid {
		p.CompanyID = &company.String
	}
	return &p, nil
}

func (s *profileStore) Create(ctx context.Context, p *authz.Profile) error {
	_, err := s.db.ExecContext(ctx, `
		insert into profiles (id, principal_id, role, company_id, active)
		values ($1, $2, $3, $4, $5)
	`, p.ID, p.PrincipalID, p.Role.String(), nullString(p.CompanyID), p.Active)
	if err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrUniqueViolation {
			return authz.ErrConflict
		}
		return err
	}
	return nil
}

func (s *profileStore) Find(ctx context.Context, principalID string) (*authz.Profile, error) {
	row := s.db.QueryRowContext(ctx,
		`select `+profileColumns+` from profiles where principal_id = $1`, principalID)
	return scanProfile(row)
}

func (s *profileStore) SetRole(ctx context.Context, principalID string, role authz.Role) error {
	return s.update(ctx,
		`update profiles set role = $2, updated_at = now() where principal_id = $1`,
		principalID, role.String())
}

func (s *profileStore) SetCompany(ctx context.Context, principalID string, companyID *string) error {
	err := s.update(ctx,
		`update profiles set company_id = $2, updated_at = now() where principal_id = $1`,
		principalID, nullString(companyID))
	if err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrForeignKeyViolation {
			return authz.ErrCompanyNotFound
		}
		return err
	}
	return nil
}

func (s *profileStore) SetActive(ctx context.Context, principalID string, active bool) error {
	return s.update(ctx,
		`update profiles set active = $2, updated_at = now() where principal_id = $1`,
		principalID, active)
}

func (s *profileStore) update(ctx context.Context, query string, args ...any) error {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return authz.ErrNotFound
	}
	return nil
}

// Company store -------------------------------------------------------

type companyStore struct{ db *sql.DB }

func (s *companyStore) Exists(ctx context.Context, id string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`select exists (select 1 from companies where id = $1)`, id).Scan(&exists)
	if err != nil {
		return false, err
	}
	return exists, nil
}

// Join-request store --------------------------------------------------

type joinRequestStore struct{ db *sql.DB }

const joinRequestColumns = `id, principal_id, company_id, status, message, created_at, decided_at, decided_by`

func scanJoinRequest(row interface{ Scan(...any) error }) (*authz.JoinRequest, error) {
	var (
		req       authz.JoinRequest
		status    string
		decidedAt sql.NullTime
		decidedBy sql.NullString
	)
	if err := row.Scan(&req.ID, &req.PrincipalID, &req.CompanyID, &status, &req.Message, &req.CreatedAt, &decidedAt, &decidedBy); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, authz.ErrNotFound
		}
		return nil, err
	}
	req.Status = authz.JoinStatus(status)
	if decidedAt.Valid {
		t := decidedAt.Time
		req.DecidedAt = &t
	}
	if decidedBy.Valid {
		req.DecidedBy = decidedBy.String
	}
	return &req, nil
}

func (s *joinRequestStore) Create(ctx context.Context, req *authz.JoinRequest) error {
	_, err := s.db.ExecContext(ctx, `
		insert into join_requests (id, principal_id, company_id, status, message)
		values ($1, $2, $3, $4, $5)
	`, req.ID, req.PrincipalID, req.CompanyID, string(req.Status), req.Message)
	if err != nil {
		if pgErr, ok := maybePgError(err); ok {
			switch pgErr.Code {
			case pgErrUniqueViolation:
				// The partial unique index on pending (principal, company)
				// pairs makes duplicate filing a conflict, not a new row.
				return authz.ErrConflict
			case pgErrForeignKeyViolation:
				if strings.Contains(pgErr.ConstraintName, "company") {
					return authz.ErrCompanyNotFound
				}
				return authz.ErrNotFound
			}
		}
		return err
	}
	return nil
}

func (s *joinRequestStore) Find(ctx context.Context, id string) (*authz.JoinRequest, error) {
	row := s.db.QueryRowContext(ctx,
		`select `+joinRequestColumns+` from join_requests where id = $1`, id)
	return scanJoinRequest(row)
}

func (s *joinRequestStore) FindPending(ctx context.Context, principalID, companyID string) (*authz.JoinRequest, error) {
	row := s.db.QueryRowContext(ctx, `
		select `+joinRequestColumns+`
		from join_requests
		where principal_id = $1 and company_id = $2 and status = 'pending'
	`, principalID, companyID)
	return scanJoinRequest(row)
}

func (s *joinRequestStore) ListPending(ctx context.Context, companyID string) ([]*authz.JoinRequest, error) {
	query := `select ` + joinRequestColumns + ` from join_requests where status = 'pending'`
	args := []any{}
	if companyID != "" {
		query += ` and company_id = $1`
		args = append(args, companyID)
	}
	query += ` order by created_at asc`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []*authz.JoinRequest{}
	for rows.Next() {
		req, err := scanJoinRequest(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, req)
	}
	return result, rows.Err()
}

// Approve transitions the request and attaches the profile in one
// transaction. The request row is locked first so concurrent decisions
// on it serialize; the profile update is guarded by `company_id is null`
// so an approval racing another company's approval for the same
// principal fails with authz.ErrConflict and is rolled back, leaving the
// request pending.
func (s *joinRequestStore) Approve(ctx context.Context, id, deciderPrincipalID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var (
		principalID string
		companyID   string
		status      string
	)
	err = tx.QueryRowContext(ctx, `
		select principal_id, company_id, status
		from join_requests
		where id = $1
		for update
	`, id).Scan(&principalID, &companyID, &status)
	if errors.Is(err, sql.ErrNoRows) {
		return authz.ErrNotFound
	}
	if err != nil {
		return err
	}
	if status != string(authz.JoinPending) {
		return fmt.Errorf("%w: request already %s", authz.ErrInvalidState, status)
	}

	res, err := tx.ExecContext(ctx, `
		update profiles
		set company_id = $2, updated_at = now()
		where principal_id = $1 and company_id is null
	`, principalID, companyID)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("%w: principal already affiliated", authz.ErrConflict)
	}

	if _, err := tx.ExecContext(ctx, `
		update join_requests
		set status = 'approved', decided_at = now(), decided_by = $2
		where id = $1
	`, id, deciderPrincipalID); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *joinRequestStore) Reject(ctx context.Context, id, deciderPrincipalID string) error {
	res, err := s.db.ExecContext(ctx, `
		update join_requests
		set status = 'rejected', decided_at = now(), decided_by = $2
		where id = $1 and status = 'pending'
	`, id, deciderPrincipalID)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		var status string
		err := s.db.QueryRowContext(ctx, `select status from join_requests where id = $1`, id).Scan(&status)
		if errors.Is(err, sql.ErrNoRows) {
			return authz.ErrNotFound
		}
		if err != nil {
			return err
		}
		return fmt.Errorf("%w: request already %s", authz.ErrInvalidState, status)
	}
	return nil
}

func nullString(v *string) any {
	if v == nil || *v == "" {
		return nil
	}
	return *v
}
