package services

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/iota-uz/saaskit/modules/products/domain"
)

type ProductDTO struct {
	Name        string
	Description string
}

type ProductService struct {
	repo domain.Repository
	now  func() time.Time
}

func NewProductService(repo domain.Repository) *ProductService {
	return &ProductService{repo: repo, now: time.Now}
}

// WithClock replaces the time source used for timestamps.
func (s *ProductService) WithClock(now func() time.Time) *ProductService {
	s.now = now
	return s
}

func (s *ProductService) List(ctx context.Context) ([]domain.Product, error) {
	return s.repo.List(ctx)
}

func (s *ProductService) GetByID(ctx context.Context, id string) (*domain.Product, error) {
	return s.repo.GetByID(ctx, id)
}

// Create stores a product owned by userID.
func (s *ProductService) Create(ctx context.Context, userID string, dto ProductDTO) (*domain.Product, error) {
	now := s.now()
	p := &domain.Product{
		ID:          uuid.NewString(),
		Name:        strings.TrimSpace(dto.Name),
		Description: strings.TrimSpace(dto.Description),
		UserID:      userID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repo.Create(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *ProductService) Update(ctx context.Context, id string, dto ProductDTO) (*domain.Product, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	p.Name = strings.TrimSpace(dto.Name)
	p.Description = strings.TrimSpace(dto.Description)
	p.UpdatedAt = s.now()
	if err := s.repo.Update(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *ProductService) Delete(ctx context.Context, id string) error {
	return s.repo.Delete(ctx, id)
}
