//go:build integration

package store_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"pharmatrace/internal/batch/models"
	"pharmatrace/internal/batch/store"
	catalogmodels "pharmatrace/internal/catalog/models"
	catalogstore "pharmatrace/internal/catalog/store"
	partymodels "pharmatrace/internal/party/models"
	partystore "pharmatrace/internal/party/store"
	"pharmatrace/pkg/domain"
	"pharmatrace/pkg/platform/sentinel"
	"pharmatrace/pkg/testutil/containers"
)

type BatchPostgresSuite struct {
	suite.Suite
	ctx      context.Context
	postgres *containers.PostgresContainer
	store    *store.Postgres

	manufacturerID domain.PartyID
	productID      domain.ProductID
}

func TestBatchPostgresSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(BatchPostgresSuite))
}

func (s *BatchPostgresSuite) SetupSuite() {
	s.ctx = context.Background()
	s.postgres = containers.GetManager().GetPostgres(s.T())
	s.store = store.NewPostgres(s.postgres.DB)
}

func (s *BatchPostgresSuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateTables(s.ctx, "parties"))

	now := time.Now().UTC()
	party, err := partymodels.NewParty(domain.PartyID(uuid.New()), "Acme Pharma", partymodels.RoleManufacturer, now)
	s.Require().NoError(err)
	s.Require().NoError(partystore.NewPostgres(s.postgres.DB).Create(s.ctx, party))
	s.manufacturerID = party.ID

	product, err := catalogmodels.NewProduct(domain.ProductID(uuid.New()), party.ID,
		"Paracetamol 500mg", "Paracetamol", "Tablet", "500mg", 250, now)
	s.Require().NoError(err)
	s.Require().NoError(catalogstore.NewPostgres(s.postgres.DB).Create(s.ctx, product))
	s.productID = product.ID
}

func (s *BatchPostgresSuite) newBatch(number string, quantity int) *models.Batch {
	now := time.Now().UTC()
	batch, err := models.NewBatch(domain.BatchID(uuid.New()), s.productID, s.manufacturerID,
		number, quantity, now.AddDate(0, -1, 0), now.AddDate(2, 0, 0), 300, now)
	s.Require().NoError(err)
	return batch
}

func (s *BatchPostgresSuite) TestBatchNumberUniquePerManufacturer() {
	s.Require().NoError(s.store.Create(s.ctx, s.newBatch("BN2026A", 1000)))

	s.Run("exact duplicate conflicts", func() {
		err := s.store.Create(s.ctx, s.newBatch("BN2026A", 500))
		s.ErrorIs(err, sentinel.ErrConflict)
	})

	s.Run("lookup is case-insensitive", func() {
		found, err := s.store.FindByNumber(s.ctx, "bn2026a")
		s.Require().NoError(err)
		s.Equal("BN2026A", found.BatchNumber)
	})

	s.Run("another manufacturer reuses the number freely", func() {
		now := time.Now().UTC()
		other, err := partymodels.NewParty(domain.PartyID(uuid.New()), "Other Pharma", partymodels.RoleManufacturer, now)
		s.Require().NoError(err)
		s.Require().NoError(partystore.NewPostgres(s.postgres.DB).Create(s.ctx, other))
		product, err := catalogmodels.NewProduct(domain.ProductID(uuid.New()), other.ID,
			"Ibuprofen 200mg", "Ibuprofen", "Tablet", "200mg", 180, now)
		s.Require().NoError(err)
		s.Require().NoError(catalogstore.NewPostgres(s.postgres.DB).Create(s.ctx, product))

		batch, err := models.NewBatch(domain.BatchID(uuid.New()), product.ID, other.ID,
			"BN2026A", 100, now.AddDate(0, -1, 0), now.AddDate(2, 0, 0), 200, now)
		s.Require().NoError(err)
		s.NoError(s.store.Create(s.ctx, batch))
	})
}

func (s *BatchPostgresSuite) TestExecuteReserveRoundTrip() {
	batch := s.newBatch("BNEXEC", 1000)
	s.Require().NoError(s.store.Create(s.ctx, batch))
	now := time.Now().UTC()

	updated, err := s.store.Execute(s.ctx, batch.ID,
		func(b *models.Batch) error { return b.CanReserve(600) },
		func(b *models.Batch) { b.ApplyReserve(600, now) },
	)
	s.Require().NoError(err)
	s.Equal(400, updated.CurrentStock)

	found, err := s.store.FindByID(s.ctx, batch.ID)
	s.Require().NoError(err)
	s.Equal(400, found.CurrentStock)
}

// Concurrent reservations hit the same row under FOR UPDATE NOWAIT: each
// attempt either wins the lock and debits, or surfaces a retryable
// conflict. Stock only ever moves by what the winners took.
func (s *BatchPostgresSuite) TestConcurrentReserveNowait() {
	batch := s.newBatch("BNCONC", 1000)
	s.Require().NoError(s.store.Create(s.ctx, batch))
	now := time.Now().UTC()

	const attempts = 8
	var wg sync.WaitGroup
	var wins, conflicts atomic.Int32
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.store.Execute(s.ctx, batch.ID,
				func(b *models.Batch) error { return b.CanReserve(100) },
				func(b *models.Batch) { b.ApplyReserve(100, now) },
			)
			switch {
			case err == nil:
				wins.Add(1)
			case errors.Is(err, sentinel.ErrConflict):
				conflicts.Add(1)
			default:
				s.T().Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	s.Equal(int32(attempts), wins.Load()+conflicts.Load())
	s.GreaterOrEqual(wins.Load(), int32(1))

	found, err := s.store.FindByID(s.ctx, batch.ID)
	s.Require().NoError(err)
	s.Equal(1000-int(wins.Load())*100, found.CurrentStock)
}

func (s *BatchPostgresSuite) TestHoldings() {
	batch := s.newBatch("BNHOLD", 1000)
	s.Require().NoError(s.store.Create(s.ctx, batch))
	now := time.Now().UTC()

	holder, err := partymodels.NewParty(domain.PartyID(uuid.New()), "Metro Distribution", partymodels.RoleDistributor, now)
	s.Require().NoError(err)
	s.Require().NoError(partystore.NewPostgres(s.postgres.DB).Create(s.ctx, holder))

	s.Run("credits accumulate", func() {
		s.Require().NoError(s.store.CreditHolding(s.ctx, batch.ID, holder.ID, 250, now))
		s.Require().NoError(s.store.CreditHolding(s.ctx, batch.ID, holder.ID, 150, now))
		quantity, err := s.store.GetHolding(s.ctx, batch.ID, holder.ID)
		s.Require().NoError(err)
		s.Equal(400, quantity)
	})

	s.Run("debit past the holding is rejected atomically", func() {
		err := s.store.DebitHolding(s.ctx, batch.ID, holder.ID, 500, now)
		s.ErrorIs(err, sentinel.ErrInvalidState)
		quantity, err := s.store.GetHolding(s.ctx, batch.ID, holder.ID)
		s.Require().NoError(err)
		s.Equal(400, quantity)
	})

	s.Run("drained holdings drop out of the holder set", func() {
		holders, err := s.store.HoldersOf(s.ctx, batch.ID)
		s.Require().NoError(err)
		s.Contains(holders, holder.ID)

		s.Require().NoError(s.store.DebitHolding(s.ctx, batch.ID, holder.ID, 400, now))
		holders, err = s.store.HoldersOf(s.ctx, batch.ID)
		s.Require().NoError(err)
		s.NotContains(holders, holder.ID)
	})
}

func (s *BatchPostgresSuite) TestMissingBatchIsNotFound() {
	_, err := s.store.FindByID(s.ctx, domain.BatchID(uuid.New()))
	s.ErrorIs(err, sentinel.ErrNotFound)
}
