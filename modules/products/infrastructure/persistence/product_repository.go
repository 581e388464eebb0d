package persistence

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"

	"github.com/iota-uz/saaskit/modules/products/domain"
	"github.com/iota-uz/saaskit/pkg/composables"
)

const (
	selectProductQuery = `SELECT id, name, description, user_id, created_at, updated_at FROM products`
	insertProductQuery = `INSERT INTO products (id, name, description, user_id, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6)`
	updateProductQuery = `UPDATE products SET name = $1, description = $2, updated_at = $3 WHERE id = $4`
	deleteProductQuery = `DELETE FROM products WHERE id = $1`
)

type ProductRepository struct{}

func NewProductRepository() domain.Repository {
	return &ProductRepository{}
}

func scanProduct(row pgx.Row) (*domain.Product, error) {
	var p domain.Product
	if err := row.Scan(&p.ID, &p.Name, &p.Description, &p.UserID, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *ProductRepository) GetByID(ctx context.Context, id string) (*domain.Product, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get transaction")
	}
	p, err := scanProduct(tx.QueryRow(ctx, selectProductQuery+` WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrProductNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to scan product")
	}
	return p, nil
}

func (r *ProductRepository) List(ctx context.Context) ([]domain.Product, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get transaction")
	}
	rows, err := tx.Query(ctx, selectProductQuery+` ORDER BY created_at DESC`)
	if err != nil {
		return nil, errors.Wrap(err, "failed to execute query")
	}
	defer rows.Close()

	products := make([]domain.Product, 0)
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan product row")
		}
		products = append(products, *p)
	}
	return products, errors.Wrap(rows.Err(), "failed to iterate products")
}

func (r *ProductRepository) Create(ctx context.Context, p *domain.Product) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to get transaction")
	}
	_, err = tx.Exec(ctx, insertProductQuery, p.ID, p.Name, p.Description, p.UserID, p.CreatedAt, p.UpdatedAt)
	return errors.Wrap(err, "failed to insert product")
}

func (r *ProductRepository) Update(ctx context.Context, p *domain.Product) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to get transaction")
	}
	tag, err := tx.Exec(ctx, updateProductQuery, p.Name, p.Description, p.UpdatedAt, p.ID)
	if err != nil {
		return errors.Wrap(err, "failed to update product")
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrProductNotFound
	}
	return nil
}

func (r *ProductRepository) Delete(ctx context.Context, id string) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to get transaction")
	}
	tag, err := tx.Exec(ctx, deleteProductQuery, id)
	if err != nil {
		return errors.Wrap(err, "failed to delete product")
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrProductNotFound
	}
	return nil
}
