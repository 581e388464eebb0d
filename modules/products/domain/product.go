package domain

import (
	"context"
	"time"

	"github.com/iota-uz/saaskit/pkg/ability"
	"github.com/iota-uz/saaskit/pkg/serrors"
)

var ErrProductNotFound = serrors.NewError(serrors.CodeNotFound, "Product not found", "Products.Errors.NotFound")

type Product struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	UserID      string    `json:"userId"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Subject is the product as seen by ability checks.
func (p Product) Subject() ability.Product {
	return ability.Product{ID: p.ID, UserID: p.UserID}
}

type Repository interface {
	GetByID(ctx context.Context, id string) (*Product, error)
	// List returns every product, newest first.
	List(ctx context.Context) ([]Product, error)
	Create(ctx context.Context, p *Product) error
	Update(ctx context.Context, p *Product) error
	Delete(ctx context.Context, id string) error
}
