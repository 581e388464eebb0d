package persistence

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"

	"github.com/iota-uz/saaskit/modules/auth/domain"
	"github.com/iota-uz/saaskit/pkg/identity"
)

const sessionSelect = `SELECT id, token, user_id, active_organization_id, impersonated_by, ip_address, user_agent, expires_at, created_at, updated_at FROM sessions`

type SessionRepository struct{}

func NewSessionRepository() domain.SessionRepository {
	return &SessionRepository{}
}

func scanSession(row pgx.Row) (*identity.Session, error) {
	var (
		s           identity.Session
		activeOrgID *string
		impersonate *string
	)
	if err := row.Scan(
		&s.ID,
		&s.Token,
		&s.UserID,
		&activeOrgID,
		&impersonate,
		&s.IPAddress,
		&s.UserAgent,
		&s.ExpiresAt,
		&s.CreatedAt,
		&s.UpdatedAt,
	); err != nil {
		return nil, err
	}
	s.ActiveOrganizationID = deref(activeOrgID)
	s.ImpersonatedBy = deref(impersonate)
	return &s, nil
}

func (r *SessionRepository) getOne(ctx context.Context, query string, args ...any) (*identity.Session, error) {
	tx, err := useTx(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get transaction")
	}
	s, err := scanSession(tx.QueryRow(ctx, query, args...))
	if isNoRows(err) {
		return nil, domain.ErrSessionNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to scan session")
	}
	return s, nil
}

func (r *SessionRepository) Create(ctx context.Context, s *identity.Session) error {
	tx, err := useTx(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to get transaction")
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO sessions (id, token, user_id, active_organization_id, impersonated_by, ip_address, user_agent, expires_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		s.ID, s.Token, s.UserID, nullable(s.ActiveOrganizationID), nullable(s.ImpersonatedBy),
		s.IPAddress, s.UserAgent, s.ExpiresAt, s.CreatedAt, s.UpdatedAt,
	)
	return errors.Wrap(err, "failed to insert session")
}

func (r *SessionRepository) GetByID(ctx context.Context, id string) (*identity.Session, error) {
	return r.getOne(ctx, sessionSelect+" WHERE id = $1", id)
}

func (r *SessionRepository) GetByToken(ctx context.Context, token string) (*identity.Session, error) {
	return r.getOne(ctx, sessionSelect+" WHERE token = $1", token)
}

func (r *SessionRepository) ListByUser(ctx context.Context, userID string) ([]identity.Session, error) {
	tx, err := useTx(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get transaction")
	}
	rows, err := tx.Query(ctx, sessionSelect+" WHERE user_id = $1 ORDER BY created_at DESC", userID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to execute query")
	}
	defer rows.Close()

	var sessions []identity.Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan session row")
		}
		sessions = append(sessions, *s)
	}
	return sessions, errors.Wrap(rows.Err(), "row iteration error")
}

func (r *SessionRepository) SetActiveOrganization(ctx context.Context, id, organizationID string) error {
	tx, err := useTx(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to get transaction")
	}
	tag, err := tx.Exec(ctx,
		`UPDATE sessions SET active_organization_id = $1, updated_at = now() WHERE id = $2`,
		nullable(organizationID), id,
	)
	if err != nil {
		return errors.Wrap(err, "failed to set active organization")
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrSessionNotFound
	}
	return nil
}

func (r *SessionRepository) Delete(ctx context.Context, id string) error {
	tx, err := useTx(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to get transaction")
	}
	_, err = tx.Exec(ctx, `DELETE FROM sessions WHERE id = $1`, id)
	return errors.Wrap(err, "failed to delete session")
}

func (r *SessionRepository) DeleteByUser(ctx context.Context, userID string) (int64, error) {
	tx, err := useTx(ctx)
	if err != nil {
		return 0, errors.Wrap(err, "failed to get transaction")
	}
	tag, err := tx.Exec(ctx, `DELETE FROM sessions WHERE user_id = $1`, userID)
	if err != nil {
		return 0, errors.Wrap(err, "failed to delete sessions")
	}
	return tag.RowsAffected(), nil
}
