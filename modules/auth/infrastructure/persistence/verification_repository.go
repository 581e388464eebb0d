package persistence

import (
	"context"

	"github.com/go-faster/errors"

	"github.com/iota-uz/saaskit/modules/auth/domain"
)

type VerificationRepository struct{}

func NewVerificationRepository() domain.VerificationRepository {
	return &VerificationRepository{}
}

func (r *VerificationRepository) Create(ctx context.Context, v *domain.Verification) error {
	tx, err := useTx(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to get transaction")
	}
	_, err = tx.Exec(ctx,
		`INSERT INTO verifications (id, identifier, value, expires_at, created_at) VALUES ($1, $2, $3, $4, $5)`,
		v.ID, v.Identifier, v.Value, v.ExpiresAt, v.CreatedAt,
	)
	return errors.Wrap(err, "failed to insert verification")
}

func (r *VerificationRepository) Consume(ctx context.Context, value string) (*domain.Verification, error) {
	tx, err := useTx(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get transaction")
	}
	var v domain.Verification
	err = tx.QueryRow(ctx,
		`DELETE FROM verifications WHERE value = $1 RETURNING id, identifier, value, expires_at, created_at`,
		value,
	).Scan(&v.ID, &v.Identifier, &v.Value, &v.ExpiresAt, &v.CreatedAt)
	if isNoRows(err) {
		return nil, domain.ErrVerificationNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to consume verification")
	}
	return &v, nil
}
