package persistence

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"

	"github.com/iota-uz/saaskit/modules/auth/domain"
	"github.com/iota-uz/saaskit/pkg/identity"
)

const memberSelect = `SELECT id, organization_id, user_id, role, created_at FROM members`

type MemberRepository struct{}

func NewMemberRepository() domain.MemberRepository {
	return &MemberRepository{}
}

func (r *MemberRepository) Create(ctx context.Context, m *identity.Membership) error {
	tx, err := useTx(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to get transaction")
	}
	_, err = tx.Exec(ctx,
		`INSERT INTO members (id, organization_id, user_id, role, created_at) VALUES ($1, $2, $3, $4, $5)`,
		m.ID, m.OrganizationID, m.UserID, m.Role, m.CreatedAt,
	)
	return errors.Wrap(err, "failed to insert member")
}

func (r *MemberRepository) getOne(ctx context.Context, query string, args ...any) (*identity.Membership, error) {
	tx, err := useTx(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get transaction")
	}
	var m identity.Membership
	err = tx.QueryRow(ctx, query, args...).Scan(&m.ID, &m.OrganizationID, &m.UserID, &m.Role, &m.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, identity.ErrMemberNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to scan member")
	}
	return &m, nil
}

func (r *MemberRepository) Find(ctx context.Context, organizationID, userID string) (*identity.Membership, error) {
	return r.getOne(ctx, memberSelect+" WHERE organization_id = $1 AND user_id = $2", organizationID, userID)
}

func (r *MemberRepository) GetByID(ctx context.Context, id string) (*identity.Membership, error) {
	return r.getOne(ctx, memberSelect+" WHERE id = $1", id)
}

func (r *MemberRepository) ListByOrganization(ctx context.Context, organizationID string) ([]domain.MemberView, error) {
	tx, err := useTx(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get transaction")
	}
	rows, err := tx.Query(ctx, `
		SELECT m.id, m.organization_id, m.user_id, m.role, m.created_at, u.name, u.email, u.image
		FROM members m
		JOIN users u ON u.id = m.user_id
		WHERE m.organization_id = $1
		ORDER BY m.created_at DESC`, organizationID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to execute query")
	}
	defer rows.Close()

	var members []domain.MemberView
	for rows.Next() {
		var v domain.MemberView
		if err := rows.Scan(
			&v.ID, &v.OrganizationID, &v.UserID, &v.Role, &v.CreatedAt,
			&v.Name, &v.Email, &v.Image,
		); err != nil {
			return nil, errors.Wrap(err, "failed to scan member row")
		}
		members = append(members, v)
	}
	return members, errors.Wrap(rows.Err(), "row iteration error")
}

func (r *MemberRepository) UpdateRole(ctx context.Context, id, role string) error {
	tx, err := useTx(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to get transaction")
	}
	tag, err := tx.Exec(ctx, `UPDATE members SET role = $1 WHERE id = $2`, role, id)
	if err != nil {
		return errors.Wrap(err, "failed to update member role")
	}
	if tag.RowsAffected() == 0 {
		return identity.ErrMemberNotFound
	}
	return nil
}

func (r *MemberRepository) Delete(ctx context.Context, id string) error {
	tx, err := useTx(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to get transaction")
	}
	tag, err := tx.Exec(ctx, `DELETE FROM members WHERE id = $1`, id)
	if err != nil {
		return errors.Wrap(err, "failed to delete member")
	}
	if tag.RowsAffected() == 0 {
		return identity.ErrMemberNotFound
	}
	return nil
}
