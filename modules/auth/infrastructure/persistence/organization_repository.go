package persistence

import (
	"context"

	"github.com/go-faster/errors"

	"github.com/iota-uz/saaskit/modules/auth/domain"
	"github.com/iota-uz/saaskit/pkg/identity"
)

type OrganizationRepository struct{}

func NewOrganizationRepository() domain.OrganizationRepository {
	return &OrganizationRepository{}
}

func (r *OrganizationRepository) Create(ctx context.Context, o *identity.Organization) error {
	tx, err := useTx(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to get transaction")
	}
	_, err = tx.Exec(ctx,
		`INSERT INTO organizations (id, name, slug, logo, created_at) VALUES ($1, $2, $3, $4, $5)`,
		o.ID, o.Name, o.Slug, o.Logo, o.CreatedAt,
	)
	return errors.Wrap(err, "failed to insert organization")
}

func (r *OrganizationRepository) GetByID(ctx context.Context, id string) (*identity.Organization, error) {
	tx, err := useTx(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get transaction")
	}
	var o identity.Organization
	err = tx.QueryRow(ctx,
		`SELECT id, name, slug, logo, created_at FROM organizations WHERE id = $1`, id,
	).Scan(&o.ID, &o.Name, &o.Slug, &o.Logo, &o.CreatedAt)
	if isNoRows(err) {
		return nil, domain.ErrOrganizationNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to scan organization")
	}
	return &o, nil
}

func (r *OrganizationRepository) SlugTaken(ctx context.Context, slug string) (bool, error) {
	tx, err := useTx(ctx)
	if err != nil {
		return false, errors.Wrap(err, "failed to get transaction")
	}
	var taken bool
	err = tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM organizations WHERE slug = $1)`, slug).Scan(&taken)
	return taken, errors.Wrap(err, "failed to check slug")
}

func (r *OrganizationRepository) ListForUser(ctx context.Context, userID string) ([]identity.Organization, error) {
	tx, err := useTx(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get transaction")
	}
	rows, err := tx.Query(ctx, `
		SELECT o.id, o.name, o.slug, o.logo, o.created_at
		FROM organizations o
		JOIN members m ON m.organization_id = o.id
		WHERE m.user_id = $1
		ORDER BY o.name`, userID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to execute query")
	}
	defer rows.Close()

	var orgs []identity.Organization
	for rows.Next() {
		var o identity.Organization
		if err := rows.Scan(&o.ID, &o.Name, &o.Slug, &o.Logo, &o.CreatedAt); err != nil {
			return nil, errors.Wrap(err, "failed to scan organization row")
		}
		orgs = append(orgs, o)
	}
	return orgs, errors.Wrap(rows.Err(), "row iteration error")
}

func (r *OrganizationRepository) Update(ctx context.Context, o *identity.Organization) error {
	tx, err := useTx(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to get transaction")
	}
	tag, err := tx.Exec(ctx,
		`UPDATE organizations SET name = $1, slug = $2, logo = $3 WHERE id = $4`,
		o.Name, o.Slug, o.Logo, o.ID,
	)
	if err != nil {
		return errors.Wrap(err, "failed to update organization")
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrOrganizationNotFound
	}
	return nil
}

func (r *OrganizationRepository) Delete(ctx context.Context, id string) error {
	tx, err := useTx(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to get transaction")
	}
	tag, err := tx.Exec(ctx, `DELETE FROM organizations WHERE id = $1`, id)
	if err != nil {
		return errors.Wrap(err, "failed to delete organization")
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrOrganizationNotFound
	}
	return nil
}
