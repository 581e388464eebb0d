package persistence

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"

	"github.com/iota-uz/saaskit/modules/auth/domain"
)

const invitationSelect = `SELECT id, organization_id, email, role, status, inviter_id, expires_at, created_at FROM invitations`

type InvitationRepository struct{}

func NewInvitationRepository() domain.InvitationRepository {
	return &InvitationRepository{}
}

func scanInvitation(row pgx.Row) (*domain.Invitation, error) {
	var inv domain.Invitation
	if err := row.Scan(
		&inv.ID,
		&inv.OrganizationID,
		&inv.Email,
		&inv.Role,
		&inv.Status,
		&inv.InviterID,
		&inv.ExpiresAt,
		&inv.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &inv, nil
}

func (r *InvitationRepository) Create(ctx context.Context, inv *domain.Invitation) error {
	tx, err := useTx(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to get transaction")
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO invitations (id, organization_id, email, role, status, inviter_id, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		inv.ID, inv.OrganizationID, inv.Email, inv.Role, string(inv.Status), inv.InviterID, inv.ExpiresAt, inv.CreatedAt,
	)
	return errors.Wrap(err, "failed to insert invitation")
}

func (r *InvitationRepository) GetByID(ctx context.Context, id string) (*domain.Invitation, error) {
	tx, err := useTx(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get transaction")
	}
	inv, err := scanInvitation(tx.QueryRow(ctx, invitationSelect+" WHERE id = $1", id))
	if isNoRows(err) {
		return nil, domain.ErrInvitationNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to scan invitation")
	}
	return inv, nil
}

func (r *InvitationRepository) ListPending(ctx context.Context, organizationID string) ([]domain.Invitation, error) {
	tx, err := useTx(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get transaction")
	}
	rows, err := tx.Query(ctx,
		invitationSelect+" WHERE organization_id = $1 AND status = $2 ORDER BY created_at DESC",
		organizationID, string(domain.InvitationPending),
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to execute query")
	}
	defer rows.Close()

	var out []domain.Invitation
	for rows.Next() {
		inv, err := scanInvitation(rows)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan invitation row")
		}
		out = append(out, *inv)
	}
	return out, errors.Wrap(rows.Err(), "row iteration error")
}

func (r *InvitationRepository) SetStatus(ctx context.Context, id string, status domain.InvitationStatus) error {
	tx, err := useTx(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to get transaction")
	}
	tag, err := tx.Exec(ctx, `UPDATE invitations SET status = $1 WHERE id = $2`, string(status), id)
	if err != nil {
		return errors.Wrap(err, "failed to update invitation")
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrInvitationNotFound
	}
	return nil
}
