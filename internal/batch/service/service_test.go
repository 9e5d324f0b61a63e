package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	batchmodels "pharmatrace/internal/batch/models"
	batchstore "pharmatrace/internal/batch/store"
	catalogmodels "pharmatrace/internal/catalog/models"
	catalogservice "pharmatrace/internal/catalog/service"
	catalogstore "pharmatrace/internal/catalog/store"
	partymodels "pharmatrace/internal/party/models"
	partyservice "pharmatrace/internal/party/service"
	partystore "pharmatrace/internal/party/store"
	"pharmatrace/pkg/domain"
	dErrors "pharmatrace/pkg/domain-errors"
)

type LedgerSuite struct {
	suite.Suite
	ctx    context.Context
	ledger *Ledger

	manufacturer *partymodels.Party
	distributor  *partymodels.Party
	product      *catalogmodels.Product
}

func TestLedgerSuite(t *testing.T) {
	suite.Run(t, new(LedgerSuite))
}

func (s *LedgerSuite) SetupTest() {
	s.ctx = context.Background()

	parties := partyservice.New(partystore.NewInMemory())
	products := catalogservice.New(catalogstore.NewInMemory(), parties)

	var err error
	s.manufacturer, err = parties.Register(s.ctx, "Acme Pharma", partymodels.RoleManufacturer)
	s.Require().NoError(err)
	s.distributor, err = parties.Register(s.ctx, "Metro Distribution", partymodels.RoleDistributor)
	s.Require().NoError(err)

	s.product, err = products.Create(s.ctx, s.manufacturer.ID, catalogservice.CreateProductParams{
		Name: "Paracetamol 500mg", GenericName: "Paracetamol", DosageForm: "Tablet",
		Strength: "500mg", BasePriceCents: 250,
	})
	s.Require().NoError(err)

	s.ledger = NewLedger(batchstore.NewInMemory(), products, parties, nil)
}

func (s *LedgerSuite) createBatch(number string, quantity int) domain.BatchID {
	batch, err := s.ledger.CreateBatch(s.ctx, s.manufacturer.ID, CreateBatchParams{
		ProductID:      s.product.ID,
		BatchNumber:    number,
		TotalQuantity:  quantity,
		MfgDate:        time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC),
		ExpDate:        time.Date(2028, 1, 10, 0, 0, 0, 0, time.UTC),
		UnitPriceCents: 300,
	})
	s.Require().NoError(err)
	return batch.ID
}

func (s *LedgerSuite) TestCreateBatch() {
	s.Run("seeds current stock from total quantity", func() {
		id := s.createBatch("BN1000", 1000)
		batch, err := s.ledger.Get(s.ctx, id)
		s.Require().NoError(err)
		s.Equal(1000, batch.CurrentStock)
		s.Equal("BN1000", batch.BatchNumber)
	})

	s.Run("zero quantity becomes a catalog entry", func() {
		id := s.createBatch("BN0", 0)
		batch, err := s.ledger.Get(s.ctx, id)
		s.Require().NoError(err)
		s.Equal(batchmodels.StatusCatalogEntry, batch.Status)
	})

	s.Run("rejects negative quantity", func() {
		_, err := s.ledger.CreateBatch(s.ctx, s.manufacturer.ID, CreateBatchParams{
			ProductID: s.product.ID, BatchNumber: "BNNEG", TotalQuantity: -1,
			MfgDate: time.Now(), ExpDate: time.Now().Add(time.Hour),
		})
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	s.Run("rejects expiry before manufacture", func() {
		_, err := s.ledger.CreateBatch(s.ctx, s.manufacturer.ID, CreateBatchParams{
			ProductID: s.product.ID, BatchNumber: "BNEXP", TotalQuantity: 10,
			MfgDate: time.Now(), ExpDate: time.Now().Add(-time.Hour),
		})
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	s.Run("rejects duplicate batch number in the manufacturer namespace", func() {
		s.createBatch("BNDUP", 10)
		_, err := s.ledger.CreateBatch(s.ctx, s.manufacturer.ID, CreateBatchParams{
			ProductID: s.product.ID, BatchNumber: "bndup", TotalQuantity: 10,
			MfgDate: time.Now(), ExpDate: time.Now().Add(time.Hour),
		})
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	s.Run("rejects non-manufacturer actors", func() {
		_, err := s.ledger.CreateBatch(s.ctx, s.distributor.ID, CreateBatchParams{
			ProductID: s.product.ID, BatchNumber: "BNROLE", TotalQuantity: 10,
			MfgDate: time.Now(), ExpDate: time.Now().Add(time.Hour),
		})
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})
}

func (s *LedgerSuite) TestReserveAndRelease() {
	id := s.createBatch("BNRSV", 100)

	s.Run("reserve debits the manufacturer pool", func() {
		s.Require().NoError(s.ledger.Reserve(s.ctx, id, s.manufacturer.ID, 40))
		batch, err := s.ledger.Get(s.ctx, id)
		s.Require().NoError(err)
		s.Equal(60, batch.CurrentStock)
	})

	s.Run("reserve beyond stock fails with insufficient_stock", func() {
		err := s.ledger.Reserve(s.ctx, id, s.manufacturer.ID, 61)
		s.True(dErrors.HasCode(err, dErrors.CodeInsufficientStock))
	})

	s.Run("release restores the pool", func() {
		s.Require().NoError(s.ledger.Release(s.ctx, id, s.manufacturer.ID, 40))
		batch, err := s.ledger.Get(s.ctx, id)
		s.Require().NoError(err)
		s.Equal(100, batch.CurrentStock)
	})

	s.Run("release cannot exceed total quantity", func() {
		err := s.ledger.Release(s.ctx, id, s.manufacturer.ID, 1)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	s.Run("reserve from a distributor holding", func() {
		s.Require().NoError(s.ledger.Reserve(s.ctx, id, s.manufacturer.ID, 30))
		s.Require().NoError(s.ledger.CreditReceiver(s.ctx, id, s.distributor.ID, 30))

		s.Require().NoError(s.ledger.Reserve(s.ctx, id, s.distributor.ID, 20))
		held, err := s.ledger.Holding(s.ctx, id, s.distributor.ID)
		s.Require().NoError(err)
		s.Equal(10, held)

		err = s.ledger.Reserve(s.ctx, id, s.distributor.ID, 11)
		s.True(dErrors.HasCode(err, dErrors.CodeInsufficientStock))
	})

	s.Run("stock invariant holds after every operation", func() {
		batch, err := s.ledger.Get(s.ctx, id)
		s.Require().NoError(err)
		s.GreaterOrEqual(batch.CurrentStock, 0)
		s.LessOrEqual(batch.CurrentStock, batch.TotalQuantity)
	})
}

func (s *LedgerSuite) TestMarkRecalled() {
	id := s.createBatch("BNRCL", 50)

	batch, err := s.ledger.MarkRecalled(s.ctx, id)
	s.Require().NoError(err)
	s.True(batch.IsRecalled())

	s.Run("second recall is rejected, not silently accepted", func() {
		_, err := s.ledger.MarkRecalled(s.ctx, id)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeAlreadyRecalled))
	})

	s.Run("unknown batch yields batch_not_found", func() {
		_, err := s.ledger.MarkRecalled(s.ctx, domain.BatchID(uuid.New()))
		s.True(dErrors.HasCode(err, dErrors.CodeBatchNotFound))
	})
}

func (s *LedgerSuite) TestHoldersOf() {
	id := s.createBatch("BNHLD", 100)
	s.Require().NoError(s.ledger.Reserve(s.ctx, id, s.manufacturer.ID, 60))
	s.Require().NoError(s.ledger.CreditReceiver(s.ctx, id, s.distributor.ID, 60))

	holders, err := s.ledger.HoldersOf(s.ctx, id)
	s.Require().NoError(err)
	s.Equal([]domain.PartyID{s.distributor.ID}, holders)

	// Draining the holding removes the party from the holder set.
	s.Require().NoError(s.ledger.Reserve(s.ctx, id, s.distributor.ID, 60))
	holders, err = s.ledger.HoldersOf(s.ctx, id)
	s.Require().NoError(err)
	s.Empty(holders)
}
