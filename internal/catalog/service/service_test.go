package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"pharmatrace/internal/catalog/models"
	catalogstore "pharmatrace/internal/catalog/store"
	partymodels "pharmatrace/internal/party/models"
	partyservice "pharmatrace/internal/party/service"
	partystore "pharmatrace/internal/party/store"
	"pharmatrace/pkg/domain"
	dErrors "pharmatrace/pkg/domain-errors"
)

type CatalogServiceSuite struct {
	suite.Suite
	service      *Service
	parties      *partyservice.Service
	manufacturer domain.PartyID
	distributor  domain.PartyID
	ctx          context.Context
}

func TestCatalogServiceSuite(t *testing.T) {
	suite.Run(t, new(CatalogServiceSuite))
}

func (s *CatalogServiceSuite) SetupTest() {
	s.ctx = context.Background()
	s.parties = partyservice.New(partystore.NewInMemory())
	s.service = New(catalogstore.NewInMemory(), s.parties)

	manufacturer, err := s.parties.Register(s.ctx, "Acme Pharma", partymodels.RoleManufacturer)
	s.Require().NoError(err)
	s.manufacturer = manufacturer.ID

	distributor, err := s.parties.Register(s.ctx, "Metro Distribution", partymodels.RoleDistributor)
	s.Require().NoError(err)
	s.distributor = distributor.ID
}

func (s *CatalogServiceSuite) TestCreate() {
	s.Run("registers a product for the manufacturer", func() {
		product, err := s.service.Create(s.ctx, s.manufacturer, CreateProductParams{
			Name:           "  Paracetol 500  ",
			GenericName:    "Paracetamol",
			DosageForm:     "tablet",
			Strength:       "500mg",
			BasePriceCents: 250,
		})
		s.Require().NoError(err)
		s.Equal("Paracetol 500", product.Name)
		s.Equal(s.manufacturer, product.ManufacturerID)
		s.False(product.ID.IsNil())
	})

	s.Run("rejects non-manufacturer actors", func() {
		_, err := s.service.Create(s.ctx, s.distributor, CreateProductParams{Name: "Paracetol 500"})
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	s.Run("rejects unknown actors", func() {
		_, err := s.service.Create(s.ctx, domain.PartyID(uuid.New()), CreateProductParams{Name: "Paracetol 500"})
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodePartyNotFound))
	})

	s.Run("rejects blank name and negative price", func() {
		_, err := s.service.Create(s.ctx, s.manufacturer, CreateProductParams{Name: "   "})
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))

		_, err = s.service.Create(s.ctx, s.manufacturer, CreateProductParams{Name: "Paracetol 500", BasePriceCents: -1})
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})
}

func (s *CatalogServiceSuite) TestUpdate() {
	product, err := s.service.Create(s.ctx, s.manufacturer, CreateProductParams{
		Name:           "Paracetol 500",
		GenericName:    "Paracetamol",
		BasePriceCents: 250,
	})
	s.Require().NoError(err)

	s.Run("owner updates in place", func() {
		updated, err := s.service.Update(s.ctx, s.manufacturer, product.ID, models.ProductUpdate{
			Name:           "Paracetol Forte",
			GenericName:    "Paracetamol",
			Strength:       "650mg",
			BasePriceCents: 300,
		})
		s.Require().NoError(err)
		s.Equal("Paracetol Forte", updated.Name)
		s.Equal(int64(300), updated.BasePriceCents)
		s.Equal(product.ID, updated.ID)
	})

	s.Run("non-owner is rejected", func() {
		_, err := s.service.Update(s.ctx, s.distributor, product.ID, models.ProductUpdate{
			Name:           "Hijacked",
			BasePriceCents: 1,
		})
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	s.Run("unknown product yields not_found", func() {
		_, err := s.service.Update(s.ctx, s.manufacturer, domain.ProductID(uuid.New()), models.ProductUpdate{
			Name: "Ghost",
		})
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func (s *CatalogServiceSuite) TestListByManufacturer() {
	for _, name := range []string{"Paracetol 500", "Ibuprol 400"} {
		_, err := s.service.Create(s.ctx, s.manufacturer, CreateProductParams{Name: name, BasePriceCents: 100})
		s.Require().NoError(err)
	}

	products, err := s.service.ListByManufacturer(s.ctx, s.manufacturer)
	s.Require().NoError(err)
	s.Len(products, 2)

	empty, err := s.service.ListByManufacturer(s.ctx, s.distributor)
	s.Require().NoError(err)
	s.Empty(empty)
}
