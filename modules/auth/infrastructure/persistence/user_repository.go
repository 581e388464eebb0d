package persistence

import (
	"context"
	"strings"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"

	"github.com/iota-uz/saaskit/modules/auth/domain"
	"github.com/iota-uz/saaskit/pkg/identity"
)

const userSelect = `SELECT id, name, email, email_verified, image, role, banned, ban_reason, ban_expires, created_at, updated_at FROM users`

type UserRepository struct{}

func NewUserRepository() domain.UserRepository {
	return &UserRepository{}
}

func scanUser(row pgx.Row) (*identity.User, error) {
	var u identity.User
	if err := row.Scan(
		&u.ID,
		&u.Name,
		&u.Email,
		&u.EmailVerified,
		&u.Image,
		&u.Role,
		&u.Banned,
		&u.BanReason,
		&u.BanExpires,
		&u.CreatedAt,
		&u.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *UserRepository) getOne(ctx context.Context, query string, args ...any) (*identity.User, error) {
	tx, err := useTx(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get transaction")
	}
	u, err := scanUser(tx.QueryRow(ctx, query, args...))
	if isNoRows(err) {
		return nil, domain.ErrUserNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to scan user")
	}
	return u, nil
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (*identity.User, error) {
	return r.getOne(ctx, userSelect+" WHERE id = $1", id)
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*identity.User, error) {
	return r.getOne(ctx, userSelect+" WHERE lower(email) = $1", strings.ToLower(strings.TrimSpace(email)))
}

func (r *UserRepository) List(ctx context.Context) ([]identity.User, error) {
	tx, err := useTx(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get transaction")
	}
	rows, err := tx.Query(ctx, userSelect+" ORDER BY created_at DESC")
	if err != nil {
		return nil, errors.Wrap(err, "failed to execute query")
	}
	defer rows.Close()

	var users []identity.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan user row")
		}
		users = append(users, *u)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "row iteration error")
	}
	return users, nil
}

func (r *UserRepository) PasswordHash(ctx context.Context, id string) (string, error) {
	tx, err := useTx(ctx)
	if err != nil {
		return "", errors.Wrap(err, "failed to get transaction")
	}
	var hash string
	err = tx.QueryRow(ctx, `SELECT password_hash FROM users WHERE id = $1`, id).Scan(&hash)
	if isNoRows(err) {
		return "", domain.ErrUserNotFound
	}
	if err != nil {
		return "", errors.Wrap(err, "failed to read password hash")
	}
	return hash, nil
}

func (r *UserRepository) Create(ctx context.Context, u *identity.User, passwordHash string) error {
	tx, err := useTx(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to get transaction")
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO users (id, name, email, email_verified, image, role, password_hash, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		u.ID, u.Name, strings.ToLower(u.Email), u.EmailVerified, u.Image, u.Role, passwordHash, u.CreatedAt, u.UpdatedAt,
	)
	return errors.Wrap(err, "failed to insert user")
}

func (r *UserRepository) Update(ctx context.Context, u *identity.User) error {
	tx, err := useTx(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to get transaction")
	}
	tag, err := tx.Exec(ctx, `
		UPDATE users
		SET name = $1, email_verified = $2, image = $3, role = $4, banned = $5, ban_reason = $6, ban_expires = $7, updated_at = $8
		WHERE id = $9`,
		u.Name, u.EmailVerified, u.Image, u.Role, u.Banned, u.BanReason, u.BanExpires, u.UpdatedAt, u.ID,
	)
	if err != nil {
		return errors.Wrap(err, "failed to update user")
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

func (r *UserRepository) SetPassword(ctx context.Context, id, passwordHash string) error {
	tx, err := useTx(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to get transaction")
	}
	tag, err := tx.Exec(ctx, `UPDATE users SET password_hash = $1, updated_at = now() WHERE id = $2`, passwordHash, id)
	if err != nil {
		return errors.Wrap(err, "failed to update password")
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

func (r *UserRepository) Delete(ctx context.Context, id string) error {
	tx, err := useTx(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to get transaction")
	}
	tag, err := tx.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return errors.Wrap(err, "failed to delete user")
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}
