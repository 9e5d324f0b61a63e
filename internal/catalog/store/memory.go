package store

import (
	"context"
	"sync"

	"pharmatrace/internal/catalog/models"
	"pharmatrace/pkg/domain"
	"pharmatrace/pkg/platform/sentinel"
)

// InMemory keeps the product catalog in a map.
type InMemory struct {
	mu       sync.RWMutex
	products map[domain.ProductID]*models.Product
}

func NewInMemory() *InMemory {
	return &InMemory{products: make(map[domain.ProductID]*models.Product)}
}

func (s *InMemory) Create(_ context.Context, product *models.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.products[product.ID]; exists {
		return sentinel.ErrConflict
	}
	clone := *product
	s.products[product.ID] = &clone
	return nil
}

func (s *InMemory) FindByID(_ context.Context, id domain.ProductID) (*models.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	product, ok := s.products[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	clone := *product
	return &clone, nil
}

func (s *InMemory) Update(_ context.Context, product *models.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.products[product.ID]; !ok {
		return sentinel.ErrNotFound
	}
	clone := *product
	s.products[product.ID] = &clone
	return nil
}

func (s *InMemory) ListByManufacturer(_ context.Context, manufacturerID domain.PartyID) ([]*models.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Product
	for _, product := range s.products {
		if product.ManufacturerID == manufacturerID {
			clone := *product
			out = append(out, &clone)
		}
	}
	return out, nil
}
