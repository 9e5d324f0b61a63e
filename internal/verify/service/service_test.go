package service

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"pharmatrace/internal/allocator"
	auditservice "pharmatrace/internal/audit/service"
	auditstore "pharmatrace/internal/audit/store"
	batchservice "pharmatrace/internal/batch/service"
	batchstore "pharmatrace/internal/batch/store"
	catalogservice "pharmatrace/internal/catalog/service"
	catalogstore "pharmatrace/internal/catalog/store"
	partymodels "pharmatrace/internal/party/models"
	partyservice "pharmatrace/internal/party/service"
	partystore "pharmatrace/internal/party/store"
	recallmodels "pharmatrace/internal/recall/models"
	recallservice "pharmatrace/internal/recall/service"
	recallstore "pharmatrace/internal/recall/store"
	transferservice "pharmatrace/internal/transfer/service"
	transferstore "pharmatrace/internal/transfer/store"
	unitservice "pharmatrace/internal/unit/service"
	unitstore "pharmatrace/internal/unit/store"
	"pharmatrace/pkg/domain"
	dErrors "pharmatrace/pkg/domain-errors"
	"pharmatrace/pkg/requestcontext"
)

type VerifierSuite struct {
	suite.Suite
	ctx        context.Context
	verifier   *Verifier
	ledger     *batchservice.Ledger
	registry   *unitservice.Registry
	propagator *recallservice.Propagator

	manufacturer *partymodels.Party
	batchID      domain.BatchID
}

func TestVerifierSuite(t *testing.T) {
	suite.Run(t, new(VerifierSuite))
}

func (s *VerifierSuite) SetupTest() {
	s.ctx = context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	parties := partyservice.New(partystore.NewInMemory())
	products := catalogservice.New(catalogstore.NewInMemory(), parties)
	s.ledger = batchservice.NewLedger(batchstore.NewInMemory(), products, parties, nil)
	s.registry = unitservice.New(unitstore.NewInMemory(), s.ledger, nil)
	trail := auditservice.New(auditstore.NewInMemory(), logger)
	txRunner := transferservice.NewMemoryTx()
	engine := transferservice.New(transferstore.NewInMemory(), txRunner,
		s.ledger, s.registry, parties, trail, nil, 3)
	s.propagator = recallservice.New(recallstore.NewInMemory(), txRunner, s.ledger, s.registry, engine, trail)

	var err error
	s.manufacturer, err = parties.Register(s.ctx, "Acme Pharma", partymodels.RoleManufacturer)
	s.Require().NoError(err)

	product, err := products.Create(s.ctx, s.manufacturer.ID, catalogservice.CreateProductParams{
		Name: "Paracetamol 500mg", GenericName: "Paracetamol", DosageForm: "Tablet",
		Strength: "500mg", BasePriceCents: 250,
	})
	s.Require().NoError(err)

	batch, err := s.ledger.CreateBatch(s.ctx, s.manufacturer.ID, batchservice.CreateBatchParams{
		ProductID:      product.ID,
		BatchNumber:    "BNVFY",
		TotalQuantity:  50,
		MfgDate:        time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC),
		ExpDate:        time.Date(2027, 1, 10, 0, 0, 0, 0, time.UTC),
		UnitPriceCents: 300,
	})
	s.Require().NoError(err)
	s.batchID = batch.ID

	identifiers, err := allocator.Allocate("BNVFY", allocator.PackSpec{StripsPerBox: 10, BoxesPerCarton: 5}, 10)
	s.Require().NoError(err)
	_, err = s.registry.Mint(s.ctx, s.batchID, identifiers)
	s.Require().NoError(err)

	s.verifier = New(s.registry, s.ledger, products, parties, s.propagator)
}

func (s *VerifierSuite) TestUnitLookup() {
	result, err := s.verifier.FindByIdentifierOrBatch(s.ctx, "BNVFY-S00003")
	s.Require().NoError(err)
	s.Equal(MatchUnit, result.Match)
	s.Require().NotNil(result.Unit)
	s.Equal(domain.UnitUID("BNVFY-S00003"), result.Unit.UID)
	s.Equal("Paracetamol 500mg", result.Product.Name)
	s.Equal("Acme Pharma", result.Manufacturer.Name)
	s.False(result.Expired)
	s.False(result.Recalled)
}

func (s *VerifierSuite) TestBatchFallback() {
	s.Run("case-insensitive batch number", func() {
		result, err := s.verifier.FindByIdentifierOrBatch(s.ctx, "  bnvfy ")
		s.Require().NoError(err)
		s.Equal(MatchBatch, result.Match)
		s.Nil(result.Unit)
		s.Equal(s.batchID, result.Batch.ID)
	})

	s.Run("expiry status reflects the request clock", func() {
		future := requestcontext.WithTime(s.ctx, time.Date(2027, 6, 1, 0, 0, 0, 0, time.UTC))
		result, err := s.verifier.FindByIdentifierOrBatch(future, "BNVFY")
		s.Require().NoError(err)
		s.True(result.Expired)
	})
}

func (s *VerifierSuite) TestMalformedVersusUnknown() {
	s.Run("empty query", func() {
		_, err := s.verifier.FindByIdentifierOrBatch(s.ctx, "   ")
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	s.Run("malformed query", func() {
		_, err := s.verifier.FindByIdentifierOrBatch(s.ctx, "bn_vfy!!")
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	s.Run("well-formed unknown unit", func() {
		_, err := s.verifier.FindByIdentifierOrBatch(s.ctx, "BNVFY-S99999")
		s.True(dErrors.HasCode(err, dErrors.CodeUnitNotFound))
	})

	s.Run("well-formed unknown batch", func() {
		_, err := s.verifier.FindByIdentifierOrBatch(s.ctx, "NOSUCHBATCH")
		s.True(dErrors.HasCode(err, dErrors.CodeBatchNotFound))
	})
}

func (s *VerifierSuite) TestRecalledBatchSurfacesTheRecall() {
	notice, err := s.propagator.IssueRecall(s.ctx, s.manufacturer.ID, recallservice.IssueParams{
		BatchID: s.batchID, Reason: "stability failure",
		Severity: recallmodels.SeverityCritical, Action: recallmodels.ActionReturn,
	})
	s.Require().NoError(err)

	result, err := s.verifier.FindByIdentifierOrBatch(s.ctx, "BNVFY-S00001")
	s.Require().NoError(err)
	s.True(result.Recalled)
	s.Require().NotNil(result.ActiveRecall)
	s.Equal(notice.Recall.ID, result.ActiveRecall.ID)
}
