package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"pharmatrace/internal/allocator"
	auditmodels "pharmatrace/internal/audit/models"
	auditservice "pharmatrace/internal/audit/service"
	batchmodels "pharmatrace/internal/batch/models"
	printjobmetrics "pharmatrace/internal/printjob/metrics"
	"pharmatrace/internal/printjob/models"
	"pharmatrace/internal/printjob/notify"
	unitmodels "pharmatrace/internal/unit/models"
	"pharmatrace/pkg/domain"
	dErrors "pharmatrace/pkg/domain-errors"
	"pharmatrace/pkg/platform/sentinel"
	"pharmatrace/pkg/requestcontext"
)

// defaultCodeTTL bounds how long an unredeemed access code stays valid.
const defaultCodeTTL = 24 * time.Hour

// Store persists print jobs.
type Store interface {
	Create(ctx context.Context, job *models.PrintJob) error
	FindByID(ctx context.Context, id domain.JobID) (*models.PrintJob, error)
	Execute(ctx context.Context, id domain.JobID, validate func(*models.PrintJob) error, mutate func(*models.PrintJob)) (*models.PrintJob, error)
	ListByBatch(ctx context.Context, batchID domain.BatchID) ([]*models.PrintJob, error)
}

// Ledger resolves batches for ownership checks and identifier allocation.
type Ledger interface {
	Get(ctx context.Context, id domain.BatchID) (*batchmodels.Batch, error)
}

// Units mints the identifier tree when a job completes.
type Units interface {
	Mint(ctx context.Context, batchID domain.BatchID, identifiers []allocator.Identifier) ([]*unitmodels.Unit, error)
}

// Scheduler delegates identifier printing to external bureaus. A job's
// access code authenticates the bureau for exactly one session; the
// manufacturer steers the job through its state machine from this side.
type Scheduler struct {
	store   Store
	ledger  Ledger
	units   Units
	signer  *CodeSigner
	notif   notify.Notifier
	trail   *auditservice.Trail
	metrics *printjobmetrics.Metrics
	logger  *slog.Logger
}

func New(store Store, ledger Ledger, units Units, signer *CodeSigner, notif notify.Notifier, trail *auditservice.Trail, metrics *printjobmetrics.Metrics, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		store: store, ledger: ledger, units: units, signer: signer,
		notif: notif, trail: trail, metrics: metrics, logger: logger,
	}
}

// CreateJobParams carries the fields of a new delegation.
type CreateJobParams struct {
	BatchID        domain.BatchID
	TargetQuantity int
	Spec           allocator.PackSpec
	MachineID      string
	CodeTTL        time.Duration
}

// CreateJob registers a delegation for the batch's manufacturer and
// returns the job together with the access code. The code is returned
// exactly once and never stored in the clear.
func (s *Scheduler) CreateJob(ctx context.Context, actor domain.PartyID, params CreateJobParams) (*models.PrintJob, string, error) {
	batch, err := s.ledger.Get(ctx, params.BatchID)
	if err != nil {
		return nil, "", err
	}
	if batch.ManufacturerID != actor {
		return nil, "", dErrors.New(dErrors.CodeInvalidInput, "only the batch's manufacturer can delegate printing")
	}
	if batch.IsRecalled() {
		return nil, "", dErrors.Newf(dErrors.CodeBatchRecalled, "batch %s is recalled", batch.BatchNumber)
	}

	ttl := params.CodeTTL
	if ttl <= 0 {
		ttl = defaultCodeTTL
	}
	now := requestcontext.Now(ctx)
	jobID := domain.JobID(uuid.New())

	code, err := s.signer.Issue(jobID, now, now.Add(ttl))
	if err != nil {
		return nil, "", err
	}
	hash, err := HashCode(code)
	if err != nil {
		return nil, "", err
	}

	job, err := models.NewPrintJob(jobID, params.BatchID, actor, params.TargetQuantity, params.Spec, params.MachineID, hash, now.Add(ttl), now)
	if err != nil {
		return nil, "", err
	}
	if err := s.store.Create(ctx, job); err != nil {
		return nil, "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to create print job")
	}

	s.metrics.IncrementJobsCreated()
	s.trail.Record(ctx, auditmodels.KindJobCreated, &actor, "printjob:"+jobID.String(), map[string]any{
		"batch_id": params.BatchID.String(), "target": params.TargetQuantity,
	})
	return job, code, nil
}

// RedeemCode authenticates a print bureau: signature, expiry, hash match,
// and the single-use guard, then PENDING -> PRINTING. Concurrent
// redemptions of the same code serialize in the store and exactly one
// succeeds.
func (s *Scheduler) RedeemCode(ctx context.Context, code string) (*models.PrintJob, error) {
	jobID, err := s.signer.Verify(code)
	if err != nil {
		return nil, err
	}
	job, err := s.Get(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if err := CompareCode(job.CodeHash, code); err != nil {
		return nil, err
	}

	now := requestcontext.Now(ctx)
	redeemed, err := s.store.Execute(ctx, jobID,
		func(j *models.PrintJob) error { return j.CanRedeem(now) },
		func(j *models.PrintJob) { j.ApplyRedeem(now) },
	)
	if err != nil {
		return nil, translateJobErr(err)
	}

	s.metrics.IncrementCodesRedeemed()
	s.publish(ctx, jobID, redeemed.Status)
	return redeemed, nil
}

// RecordProgress advances the printed counter. Progress never decreases
// and is capped at the target; re-reporting the current count is accepted.
func (s *Scheduler) RecordProgress(ctx context.Context, jobID domain.JobID, printed int) (*models.PrintJob, error) {
	now := requestcontext.Now(ctx)
	job, err := s.store.Execute(ctx, jobID,
		func(j *models.PrintJob) error { return j.CanRecordProgress(printed) },
		func(j *models.PrintJob) { j.ApplyRecordProgress(printed, now) },
	)
	if err != nil {
		return nil, translateJobErr(err)
	}
	return job, nil
}

// Transition applies an operator action. COMPLETE additionally mints the
// full identifier tree into the unit registry; CANCEL is pushed to any
// active printing session.
func (s *Scheduler) Transition(ctx context.Context, jobID domain.JobID, actor domain.PartyID, action models.Action) (*models.PrintJob, error) {
	if !action.Valid() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "unknown job action")
	}
	job, err := s.Get(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.CreatedBy != actor {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "only the delegating manufacturer can steer the job")
	}

	now := requestcontext.Now(ctx)
	updated, err := s.store.Execute(ctx, jobID,
		func(j *models.PrintJob) error { return j.CanTransition(action) },
		func(j *models.PrintJob) { j.ApplyTransition(action, now) },
	)
	if err != nil {
		return nil, translateJobErr(err)
	}

	switch action {
	case models.ActionComplete:
		if err := s.mintCompleted(ctx, updated); err != nil {
			return nil, err
		}
		s.metrics.IncrementJobsCompleted()
	case models.ActionCancel:
		s.metrics.IncrementJobsCancelled()
	}

	s.publish(ctx, jobID, updated.Status)
	s.trail.Record(ctx, auditmodels.KindJobTransitioned, &actor, "printjob:"+jobID.String(), map[string]any{
		"action": string(action), "status": string(updated.Status),
	})
	return updated, nil
}

// Get resolves a job by ID.
func (s *Scheduler) Get(ctx context.Context, id domain.JobID) (*models.PrintJob, error) {
	job, err := s.store.FindByID(ctx, id)
	if err != nil {
		return nil, translateJobErr(err)
	}
	return job, nil
}

// ListByBatch lists the batch's delegations.
func (s *Scheduler) ListByBatch(ctx context.Context, batchID domain.BatchID) ([]*models.PrintJob, error) {
	return s.store.ListByBatch(ctx, batchID)
}

func (s *Scheduler) mintCompleted(ctx context.Context, job *models.PrintJob) error {
	batch, err := s.ledger.Get(ctx, job.BatchID)
	if err != nil {
		return err
	}
	identifiers, err := allocator.Allocate(batch.BatchNumber, job.Spec, job.TargetQuantity)
	if err != nil {
		return err
	}
	if _, err := s.units.Mint(ctx, job.BatchID, identifiers); err != nil {
		return err
	}
	return nil
}

func (s *Scheduler) publish(ctx context.Context, jobID domain.JobID, status models.Status) {
	if s.notif == nil {
		return
	}
	if err := s.notif.Publish(ctx, jobID, status); err != nil {
		s.logger.Warn("job state notification dropped", "job_id", jobID.String(), "error", err)
	}
}

func translateJobErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, "print job not found")
	case errors.Is(err, sentinel.ErrConflict):
		return dErrors.Wrap(err, dErrors.CodeConflict, "print job row is contended, retry")
	case dErrors.CodeOf(err) != dErrors.CodeInternal:
		return err
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, "print job store failure")
	}
}
