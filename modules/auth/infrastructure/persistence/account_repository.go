package persistence

import (
	"context"

	"github.com/go-faster/errors"

	"github.com/iota-uz/saaskit/modules/auth/domain"
)

type AccountRepository struct{}

func NewAccountRepository() domain.AccountRepository {
	return &AccountRepository{}
}

func (r *AccountRepository) Find(ctx context.Context, providerID, accountID string) (*domain.Account, error) {
	tx, err := useTx(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get transaction")
	}
	var a domain.Account
	err = tx.QueryRow(ctx,
		`SELECT id, user_id, provider_id, account_id, created_at FROM accounts WHERE provider_id = $1 AND account_id = $2`,
		providerID, accountID,
	).Scan(&a.ID, &a.UserID, &a.ProviderID, &a.AccountID, &a.CreatedAt)
	if isNoRows(err) {
		return nil, domain.ErrAccountNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to scan account")
	}
	return &a, nil
}

func (r *AccountRepository) Create(ctx context.Context, a *domain.Account) error {
	tx, err := useTx(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to get transaction")
	}
	_, err = tx.Exec(ctx,
		`INSERT INTO accounts (id, user_id, provider_id, account_id, created_at) VALUES ($1, $2, $3, $4, $5)`,
		a.ID, a.UserID, a.ProviderID, a.AccountID, a.CreatedAt,
	)
	return errors.Wrap(err, "failed to insert account")
}
