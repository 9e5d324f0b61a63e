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
	"pharmatrace/internal/printjob/models"
	"pharmatrace/internal/printjob/notify"
	printjobstore "pharmatrace/internal/printjob/store"
	unitservice "pharmatrace/internal/unit/service"
	unitstore "pharmatrace/internal/unit/store"
	"pharmatrace/pkg/domain"
	dErrors "pharmatrace/pkg/domain-errors"
	"pharmatrace/pkg/requestcontext"
)

type SchedulerSuite struct {
	suite.Suite
	ctx       context.Context
	scheduler *Scheduler
	registry  *unitservice.Registry
	notifier  *notify.InProcess

	manufacturer *partymodels.Party
	distributor  *partymodels.Party
	batchID      domain.BatchID
}

func TestSchedulerSuite(t *testing.T) {
	suite.Run(t, new(SchedulerSuite))
}

func (s *SchedulerSuite) SetupTest() {
	s.ctx = context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	parties := partyservice.New(partystore.NewInMemory())
	products := catalogservice.New(catalogstore.NewInMemory(), parties)
	ledger := batchservice.NewLedger(batchstore.NewInMemory(), products, parties, nil)
	s.registry = unitservice.New(unitstore.NewInMemory(), ledger, nil)
	trail := auditservice.New(auditstore.NewInMemory(), logger)
	s.notifier = notify.NewInProcess()

	var err error
	s.manufacturer, err = parties.Register(s.ctx, "Acme Pharma", partymodels.RoleManufacturer)
	s.Require().NoError(err)
	s.distributor, err = parties.Register(s.ctx, "Metro Distribution", partymodels.RoleDistributor)
	s.Require().NoError(err)

	product, err := products.Create(s.ctx, s.manufacturer.ID, catalogservice.CreateProductParams{
		Name: "Paracetamol 500mg", GenericName: "Paracetamol", DosageForm: "Tablet",
		Strength: "500mg", BasePriceCents: 250,
	})
	s.Require().NoError(err)

	batch, err := ledger.CreateBatch(s.ctx, s.manufacturer.ID, batchservice.CreateBatchParams{
		ProductID:      product.ID,
		BatchNumber:    "BNJOB",
		TotalQuantity:  100,
		MfgDate:        time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC),
		ExpDate:        time.Date(2028, 1, 10, 0, 0, 0, 0, time.UTC),
		UnitPriceCents: 300,
	})
	s.Require().NoError(err)
	s.batchID = batch.ID

	s.scheduler = New(printjobstore.NewInMemory(), ledger, s.registry,
		NewCodeSigner("test-signing-key"), s.notifier, trail, nil, logger)
}

func (s *SchedulerSuite) createJob(target int) (*models.PrintJob, string) {
	job, code, err := s.scheduler.CreateJob(s.ctx, s.manufacturer.ID, CreateJobParams{
		BatchID: s.batchID, TargetQuantity: target,
		Spec: allocator.PackSpec{StripsPerBox: 10, BoxesPerCarton: 5},
	})
	s.Require().NoError(err)
	s.Require().NotEmpty(code)
	return job, code
}

func (s *SchedulerSuite) TestCreateJob() {
	job, code := s.createJob(20)
	s.Equal(models.StatusPending, job.Status)
	s.False(job.CodeRedeemed)

	s.Run("the stored hash never reveals the code", func() {
		s.NotContains(string(job.CodeHash), code)
		s.NoError(CompareCode(job.CodeHash, code))
	})

	s.Run("only the manufacturer can delegate", func() {
		_, _, err := s.scheduler.CreateJob(s.ctx, s.distributor.ID, CreateJobParams{
			BatchID: s.batchID, TargetQuantity: 20,
			Spec: allocator.PackSpec{StripsPerBox: 10, BoxesPerCarton: 5},
		})
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	s.Run("zero target is rejected", func() {
		_, _, err := s.scheduler.CreateJob(s.ctx, s.manufacturer.ID, CreateJobParams{
			BatchID: s.batchID,
			Spec:    allocator.PackSpec{StripsPerBox: 10, BoxesPerCarton: 5},
		})
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})
}

func (s *SchedulerSuite) TestRedeemCode() {
	job, code := s.createJob(20)

	s.Run("valid code starts printing", func() {
		redeemed, err := s.scheduler.RedeemCode(s.ctx, code)
		s.Require().NoError(err)
		s.Equal(models.StatusPrinting, redeemed.Status)
		s.True(redeemed.CodeRedeemed)
	})

	s.Run("a code redeems exactly once", func() {
		_, err := s.scheduler.RedeemCode(s.ctx, code)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	s.Run("tampered code is unverifiable", func() {
		_, err := s.scheduler.RedeemCode(s.ctx, code+"x")
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	s.Run("code signed with another key is rejected", func() {
		forged, err := NewCodeSigner("other-key").Issue(job.ID, time.Now(), time.Now().Add(time.Hour))
		s.Require().NoError(err)
		_, err = s.scheduler.RedeemCode(s.ctx, forged)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})
}

func (s *SchedulerSuite) TestRedeemExpiredCode() {
	job, code := s.createJob(20)

	// The job's stored expiry governs even when the engine clock moves past
	// it within the signature's validity window.
	late := requestcontext.WithTime(s.ctx, job.CodeExpiresAt.Add(time.Hour))
	_, err := s.scheduler.RedeemCode(late, code)
	s.True(dErrors.HasCode(err, dErrors.CodeExpired))
}

func (s *SchedulerSuite) TestRecordProgress() {
	_, code := s.createJob(100)
	job, err := s.scheduler.RedeemCode(s.ctx, code)
	s.Require().NoError(err)

	s.Run("progress never decreases", func() {
		updated, err := s.scheduler.RecordProgress(s.ctx, job.ID, 40)
		s.Require().NoError(err)
		s.Equal(40, updated.PrintedQuantity)

		_, err = s.scheduler.RecordProgress(s.ctx, job.ID, 30)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	s.Run("re-reporting the current count is a no-op", func() {
		same, err := s.scheduler.RecordProgress(s.ctx, job.ID, 40)
		s.Require().NoError(err)
		s.Equal(40, same.PrintedQuantity)
	})

	s.Run("progress past the target is rejected", func() {
		_, err := s.scheduler.RecordProgress(s.ctx, job.ID, 101)
		s.True(dErrors.HasCode(err, dErrors.CodeExceedsTarget))
	})

	s.Run("paused jobs take no progress", func() {
		_, err := s.scheduler.Transition(s.ctx, job.ID, s.manufacturer.ID, models.ActionPause)
		s.Require().NoError(err)
		_, err = s.scheduler.RecordProgress(s.ctx, job.ID, 50)
		s.True(dErrors.HasCode(err, dErrors.CodeIllegalTransition))
	})
}

func (s *SchedulerSuite) TestPauseBeforeRedemption() {
	job, code := s.createJob(20)

	paused, err := s.scheduler.Transition(s.ctx, job.ID, s.manufacturer.ID, models.ActionPause)
	s.Require().NoError(err)
	s.Equal(models.StatusPaused, paused.Status)

	s.Run("the code cannot redeem while paused", func() {
		_, err := s.scheduler.RedeemCode(s.ctx, code)
		s.True(dErrors.HasCode(err, dErrors.CodeIllegalTransition))
	})

	s.Run("resume restores PENDING, not PRINTING", func() {
		resumed, err := s.scheduler.Transition(s.ctx, job.ID, s.manufacturer.ID, models.ActionResume)
		s.Require().NoError(err)
		s.Equal(models.StatusPending, resumed.Status)

		redeemed, err := s.scheduler.RedeemCode(s.ctx, code)
		s.Require().NoError(err)
		s.Equal(models.StatusPrinting, redeemed.Status)
	})
}

func (s *SchedulerSuite) TestTransitionMatrix() {
	_, code := s.createJob(20)
	job, err := s.scheduler.RedeemCode(s.ctx, code)
	s.Require().NoError(err)

	s.Run("pause and resume round trip", func() {
		paused, err := s.scheduler.Transition(s.ctx, job.ID, s.manufacturer.ID, models.ActionPause)
		s.Require().NoError(err)
		s.Equal(models.StatusPaused, paused.Status)

		_, err = s.scheduler.Transition(s.ctx, job.ID, s.manufacturer.ID, models.ActionPause)
		s.True(dErrors.HasCode(err, dErrors.CodeIllegalTransition))

		resumed, err := s.scheduler.Transition(s.ctx, job.ID, s.manufacturer.ID, models.ActionResume)
		s.Require().NoError(err)
		s.Equal(models.StatusPrinting, resumed.Status)
	})

	s.Run("completion requires the full target", func() {
		_, err := s.scheduler.Transition(s.ctx, job.ID, s.manufacturer.ID, models.ActionComplete)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	s.Run("completion mints the identifier tree", func() {
		_, err := s.scheduler.RecordProgress(s.ctx, job.ID, 20)
		s.Require().NoError(err)
		completed, err := s.scheduler.Transition(s.ctx, job.ID, s.manufacturer.ID, models.ActionComplete)
		s.Require().NoError(err)
		s.Equal(models.StatusCompleted, completed.Status)

		// 20 strips in 10/5 packing: 2 boxes, 1 carton.
		units, err := s.registry.ListByBatch(s.ctx, s.batchID)
		s.Require().NoError(err)
		s.Len(units, 23)
	})

	s.Run("terminal jobs refuse everything", func() {
		_, err := s.scheduler.Transition(s.ctx, job.ID, s.manufacturer.ID, models.ActionCancel)
		s.True(dErrors.HasCode(err, dErrors.CodeAlreadyTerminal))
		_, err = s.scheduler.RecordProgress(s.ctx, job.ID, 21)
		s.True(dErrors.HasCode(err, dErrors.CodeAlreadyTerminal))
	})
}

func (s *SchedulerSuite) TestCancelGuards() {
	_, code := s.createJob(20)
	job, err := s.scheduler.RedeemCode(s.ctx, code)
	s.Require().NoError(err)

	s.Run("only the delegating manufacturer steers", func() {
		_, err := s.scheduler.Transition(s.ctx, job.ID, s.distributor.ID, models.ActionCancel)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	s.Run("cancel from printing", func() {
		cancelled, err := s.scheduler.Transition(s.ctx, job.ID, s.manufacturer.ID, models.ActionCancel)
		s.Require().NoError(err)
		s.Equal(models.StatusCancelled, cancelled.Status)
	})
}

func (s *SchedulerSuite) TestWatcherObservesCancel() {
	job, code := s.createJob(20)

	watcher := NewWatcher(s.scheduler, s.notifier, 10*time.Millisecond)
	updates, err := watcher.Watch(s.ctx, job.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusPending, s.nextStatus(updates))

	_, err = s.scheduler.RedeemCode(s.ctx, code)
	s.Require().NoError(err)
	s.Equal(models.StatusPrinting, s.nextStatus(updates))

	_, err = s.scheduler.Transition(s.ctx, job.ID, s.manufacturer.ID, models.ActionCancel)
	s.Require().NoError(err)
	s.Equal(models.StatusCancelled, s.nextStatus(updates))

	_, open := <-updates
	s.False(open)
}

func (s *SchedulerSuite) nextStatus(updates <-chan models.Status) models.Status {
	select {
	case status := <-updates:
		return status
	case <-time.After(2 * time.Second):
		s.FailNow("timed out waiting for job status update")
		return ""
	}
}
