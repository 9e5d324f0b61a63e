package service

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"

	"pharmatrace/internal/catalog/models"
	partymodels "pharmatrace/internal/party/models"
	"pharmatrace/pkg/domain"
	dErrors "pharmatrace/pkg/domain-errors"
	"pharmatrace/pkg/platform/sentinel"
	"pharmatrace/pkg/requestcontext"
)

// Store abstracts product persistence.
type Store interface {
	Create(ctx context.Context, product *models.Product) error
	FindByID(ctx context.Context, id domain.ProductID) (*models.Product, error)
	Update(ctx context.Context, product *models.Product) error
	ListByManufacturer(ctx context.Context, manufacturerID domain.PartyID) ([]*models.Product, error)
}

// PartyResolver resolves party records for ownership checks.
type PartyResolver interface {
	Get(ctx context.Context, id domain.PartyID) (*partymodels.Party, error)
}

// Service manages the product catalog. Every mutation names the acting
// party explicitly; only the owning manufacturer may create or change a
// product.
type Service struct {
	products Store
	parties  PartyResolver
}

func New(products Store, parties PartyResolver) *Service {
	return &Service{products: products, parties: parties}
}

// CreateProductParams carries the catalog fields for a new product.
type CreateProductParams struct {
	Name           string
	GenericName    string
	DosageForm     string
	Strength       string
	BasePriceCents int64
}

// Create registers a product owned by the acting manufacturer.
func (s *Service) Create(ctx context.Context, actor domain.PartyID, params CreateProductParams) (*models.Product, error) {
	manufacturer, err := s.requireManufacturer(ctx, actor)
	if err != nil {
		return nil, err
	}

	product, err := models.NewProduct(
		domain.ProductID(uuid.New()), manufacturer.ID,
		strings.TrimSpace(params.Name), params.GenericName, params.DosageForm,
		params.Strength, params.BasePriceCents, requestcontext.Now(ctx),
	)
	if err != nil {
		return nil, err
	}
	if err := s.products.Create(ctx, product); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create product")
	}
	return product, nil
}

// Update applies an in-place correction by the owning manufacturer.
func (s *Service) Update(ctx context.Context, actor domain.PartyID, productID domain.ProductID, update models.ProductUpdate) (*models.Product, error) {
	product, err := s.Get(ctx, productID)
	if err != nil {
		return nil, err
	}
	if product.ManufacturerID != actor {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "only the owning manufacturer may update a product")
	}
	update.Name = strings.TrimSpace(update.Name)
	if err := product.Apply(update, requestcontext.Now(ctx)); err != nil {
		return nil, err
	}
	if err := s.products.Update(ctx, product); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to update product")
	}
	return product, nil
}

// Get resolves a product by ID.
func (s *Service) Get(ctx context.Context, id domain.ProductID) (*models.Product, error) {
	if id.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "product id is required")
	}
	product, err := s.products.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "product not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load product")
	}
	return product, nil
}

// ListByManufacturer returns the manufacturer's catalog.
func (s *Service) ListByManufacturer(ctx context.Context, manufacturerID domain.PartyID) ([]*models.Product, error) {
	if manufacturerID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "manufacturer id is required")
	}
	return s.products.ListByManufacturer(ctx, manufacturerID)
}

func (s *Service) requireManufacturer(ctx context.Context, actor domain.PartyID) (*partymodels.Party, error) {
	party, err := s.parties.Get(ctx, actor)
	if err != nil {
		return nil, err
	}
	if party.Role != partymodels.RoleManufacturer {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "acting party must be a manufacturer")
	}
	return party, nil
}
