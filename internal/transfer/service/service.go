package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	auditmodels "pharmatrace/internal/audit/models"
	auditservice "pharmatrace/internal/audit/service"
	batchmodels "pharmatrace/internal/batch/models"
	partymodels "pharmatrace/internal/party/models"
	transfermetrics "pharmatrace/internal/transfer/metrics"
	"pharmatrace/internal/transfer/models"
	unitmodels "pharmatrace/internal/unit/models"
	"pharmatrace/pkg/domain"
	dErrors "pharmatrace/pkg/domain-errors"
	"pharmatrace/pkg/platform/sentinel"
	"pharmatrace/pkg/requestcontext"
)

var tracer = otel.Tracer("pharmatrace/internal/transfer")

// Store persists transfer records.
type Store interface {
	Create(ctx context.Context, transfer *models.Transfer) error
	FindByID(ctx context.Context, id domain.TransferID) (*models.Transfer, error)
	Execute(ctx context.Context, id domain.TransferID, validate func(*models.Transfer) error, mutate func(*models.Transfer)) (*models.Transfer, error)
	ListOutstandingByBatch(ctx context.Context, batchID domain.BatchID) ([]*models.Transfer, error)
	ListByParty(ctx context.Context, partyID domain.PartyID) ([]*models.Transfer, error)
}

// Ledger is the stock side of a custody movement.
type Ledger interface {
	Get(ctx context.Context, id domain.BatchID) (*batchmodels.Batch, error)
	Reserve(ctx context.Context, batchID domain.BatchID, sender domain.PartyID, quantity int) error
	Release(ctx context.Context, batchID domain.BatchID, sender domain.PartyID, quantity int) error
	CreditReceiver(ctx context.Context, batchID domain.BatchID, receiver domain.PartyID, quantity int) error
}

// Units is the serialized side of a custody movement.
type Units interface {
	Get(ctx context.Context, uid domain.UnitUID) (*unitmodels.Unit, error)
	Dispatch(ctx context.Context, uid domain.UnitUID, sender, receiver domain.PartyID) (*unitmodels.Unit, error)
	Receive(ctx context.Context, uid domain.UnitUID, sender, receiver domain.PartyID) (*unitmodels.Unit, error)
	Revert(ctx context.Context, uid domain.UnitUID, sender, receiver domain.PartyID) (*unitmodels.Unit, error)
}

// Parties resolves transfer participants.
type Parties interface {
	Get(ctx context.Context, id domain.PartyID) (*partymodels.Party, error)
}

// Engine moves custody between parties in two phases: dispatch debits the
// sender and creates an IN_TRANSIT transfer in one transaction;
// acknowledgment credits the receiver in a later one. Stock is never in
// two places at once.
type Engine struct {
	store   Store
	tx      TxRunner
	ledger  Ledger
	units   Units
	parties Parties
	trail   *auditservice.Trail
	metrics *transfermetrics.Metrics
	retries int
}

func New(store Store, tx TxRunner, ledger Ledger, units Units, parties Parties, trail *auditservice.Trail, metrics *transfermetrics.Metrics, conflictRetries int) *Engine {
	if conflictRetries < 0 {
		conflictRetries = 0
	}
	return &Engine{
		store: store, tx: tx, ledger: ledger, units: units,
		parties: parties, trail: trail, metrics: metrics, retries: conflictRetries,
	}
}

// ExecuteParams describes a custody movement. Exactly one of Quantity or
// UnitUIDs must be set.
type ExecuteParams struct {
	SenderID   domain.PartyID
	ReceiverID domain.PartyID
	BatchID    domain.BatchID
	Quantity   int
	UnitUIDs   []domain.UnitUID
	InvoiceNo  string
	Purpose    models.Purpose
}

// ExecuteTransfer validates the movement and, in a single transaction,
// debits the sender and creates the IN_TRANSIT transfer. On a row-lock
// conflict the whole transaction is retried with backoff up to the
// configured budget.
func (e *Engine) ExecuteTransfer(ctx context.Context, params ExecuteParams) (*models.Transfer, error) {
	if params.Purpose == "" {
		params.Purpose = models.PurposeShipment
	}
	if !params.Purpose.Valid() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "purpose must be SHIPMENT or RETURN")
	}
	if params.SenderID == params.ReceiverID {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "sender and receiver must differ")
	}
	if len(params.UnitUIDs) == 0 && params.Quantity <= 0 {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "transfer quantity must be positive")
	}
	if len(params.UnitUIDs) > 0 && params.Quantity > 0 {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "a transfer moves either quantity or units, not both")
	}

	if _, err := e.parties.Get(ctx, params.SenderID); err != nil {
		return nil, err
	}
	if _, err := e.parties.Get(ctx, params.ReceiverID); err != nil {
		return nil, err
	}

	batch, err := e.ledger.Get(ctx, params.BatchID)
	if err != nil {
		return nil, err
	}
	if batch.IsRecalled() && params.Purpose != models.PurposeReturn {
		return nil, dErrors.Newf(dErrors.CodeBatchRecalled, "batch %s is recalled; only returns are allowed", batch.BatchNumber)
	}

	moved := params.Quantity
	if len(params.UnitUIDs) > 0 {
		moved = len(params.UnitUIDs)
	}
	now := requestcontext.Now(ctx)
	transfer := &models.Transfer{
		ID:              domain.TransferID(uuid.New()),
		BatchID:         params.BatchID,
		SenderID:        params.SenderID,
		ReceiverID:      params.ReceiverID,
		Quantity:        params.Quantity,
		UnitUIDs:        params.UnitUIDs,
		Status:          models.StatusInTransit,
		Purpose:         params.Purpose,
		InvoiceNo:       params.InvoiceNo,
		TotalValueCents: int64(moved) * batch.UnitPriceCents,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	err = e.runWithRetry(ctx, func(ctx context.Context) error {
		ctx, span := tracer.Start(ctx, "transfer.dispatch", trace.WithAttributes(
			attribute.String("transfer.id", transfer.ID.String()),
			attribute.String("batch.id", params.BatchID.String()),
			attribute.Int("transfer.moved", moved),
		))
		defer span.End()

		if transfer.IsQuantity() {
			if err := e.ledger.Reserve(ctx, params.BatchID, params.SenderID, params.Quantity); err != nil {
				return err
			}
			if err := e.store.Create(ctx, transfer); err != nil {
				// Memory stores have no rollback; give the stock back.
				_ = e.ledger.Release(ctx, params.BatchID, params.SenderID, params.Quantity)
				return translateTransferErr(err)
			}
			return nil
		}

		dispatched := make([]domain.UnitUID, 0, len(params.UnitUIDs))
		revert := func() {
			for _, uid := range dispatched {
				_, _ = e.units.Revert(ctx, uid, params.SenderID, params.ReceiverID)
			}
		}
		for _, uid := range params.UnitUIDs {
			unit, err := e.units.Get(ctx, uid)
			if err != nil {
				revert()
				return err
			}
			if unit.BatchID != params.BatchID {
				revert()
				return dErrors.Newf(dErrors.CodeInvalidInput, "unit %s does not belong to the transfer's batch", uid)
			}
			if _, err := e.units.Dispatch(ctx, uid, params.SenderID, params.ReceiverID); err != nil {
				revert()
				return err
			}
			dispatched = append(dispatched, uid)
		}
		if err := e.store.Create(ctx, transfer); err != nil {
			revert()
			return translateTransferErr(err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.metrics.IncrementTransfersExecuted()
	e.trail.Record(ctx, auditmodels.KindTransferDispatched, &params.SenderID, "transfer:"+transfer.ID.String(), map[string]any{
		"batch_id": params.BatchID.String(), "receiver_id": params.ReceiverID.String(),
		"quantity": params.Quantity, "units": len(params.UnitUIDs), "purpose": string(params.Purpose),
	})
	return transfer, nil
}

// AcknowledgeReceipt confirms the receiver has the goods: the transfer
// becomes RECEIVED and the receiver's stock or unit custody is credited in
// the same transaction.
func (e *Engine) AcknowledgeReceipt(ctx context.Context, transferID domain.TransferID, actor domain.PartyID) (*models.Transfer, error) {
	var acknowledged *models.Transfer
	now := requestcontext.Now(ctx)

	err := e.runWithRetry(ctx, func(ctx context.Context) error {
		ctx, span := tracer.Start(ctx, "transfer.acknowledge", trace.WithAttributes(
			attribute.String("transfer.id", transferID.String()),
		))
		defer span.End()

		transfer, err := e.store.FindByID(ctx, transferID)
		if err != nil {
			return translateTransferErr(err)
		}
		if err := transfer.CanAcknowledge(actor); err != nil {
			return err
		}

		if transfer.IsQuantity() {
			if err := e.ledger.CreditReceiver(ctx, transfer.BatchID, transfer.ReceiverID, transfer.Quantity); err != nil {
				return err
			}
		} else {
			for _, uid := range transfer.UnitUIDs {
				if _, err := e.units.Receive(ctx, uid, transfer.SenderID, transfer.ReceiverID); err != nil {
					return err
				}
			}
		}

		// Status flips last so a failed credit leaves nothing applied in
		// memory deployments; under postgres the whole tx rolls back anyway.
		acknowledged, err = e.store.Execute(ctx, transferID,
			func(t *models.Transfer) error { return t.CanAcknowledge(actor) },
			func(t *models.Transfer) { t.ApplyAcknowledge(now) },
		)
		if err != nil {
			return translateTransferErr(err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.metrics.IncrementTransfersAcknowledged()
	e.trail.Record(ctx, auditmodels.KindTransferAcknowledged, &actor, "transfer:"+transferID.String(), nil)
	return acknowledged, nil
}

// CancelTransfer aborts an in-transit transfer and restores the sender's
// stock or unit custody. Legal for the sender or receiver, any time before
// receipt; the compensation is recorded, not erased.
func (e *Engine) CancelTransfer(ctx context.Context, transferID domain.TransferID, actor domain.PartyID) (*models.Transfer, error) {
	var cancelled *models.Transfer
	now := requestcontext.Now(ctx)

	err := e.runWithRetry(ctx, func(ctx context.Context) error {
		ctx, span := tracer.Start(ctx, "transfer.cancel", trace.WithAttributes(
			attribute.String("transfer.id", transferID.String()),
		))
		defer span.End()

		transfer, err := e.store.FindByID(ctx, transferID)
		if err != nil {
			return translateTransferErr(err)
		}
		if err := transfer.CanCancel(actor); err != nil {
			return err
		}

		if transfer.IsQuantity() {
			if err := e.ledger.Release(ctx, transfer.BatchID, transfer.SenderID, transfer.Quantity); err != nil {
				return err
			}
		} else {
			for _, uid := range transfer.UnitUIDs {
				if _, err := e.units.Revert(ctx, uid, transfer.SenderID, transfer.ReceiverID); err != nil {
					return err
				}
			}
		}

		cancelled, err = e.store.Execute(ctx, transferID,
			func(t *models.Transfer) error { return t.CanCancel(actor) },
			func(t *models.Transfer) { t.ApplyCancel(now) },
		)
		if err != nil {
			return translateTransferErr(err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.metrics.IncrementTransfersCancelled()
	e.trail.Record(ctx, auditmodels.KindTransferCancelled, &actor, "transfer:"+transferID.String(), nil)
	return cancelled, nil
}

// Get resolves a transfer by ID.
func (e *Engine) Get(ctx context.Context, id domain.TransferID) (*models.Transfer, error) {
	transfer, err := e.store.FindByID(ctx, id)
	if err != nil {
		return nil, translateTransferErr(err)
	}
	return transfer, nil
}

// ListByParty lists transfers the party sent or is addressed by.
func (e *Engine) ListByParty(ctx context.Context, partyID domain.PartyID) ([]*models.Transfer, error) {
	return e.store.ListByParty(ctx, partyID)
}

// OutstandingReceivers lists receivers of in-transit quantity transfers of
// the batch. The recall propagator folds these into the holder set:
// in-flight goods will land on those parties.
func (e *Engine) OutstandingReceivers(ctx context.Context, batchID domain.BatchID) ([]domain.PartyID, error) {
	transfers, err := e.store.ListOutstandingByBatch(ctx, batchID)
	if err != nil {
		return nil, err
	}
	seen := make(map[domain.PartyID]bool)
	var out []domain.PartyID
	for _, transfer := range transfers {
		if !seen[transfer.ReceiverID] {
			seen[transfer.ReceiverID] = true
			out = append(out, transfer.ReceiverID)
		}
	}
	return out, nil
}

// retryBackoff is the base delay between conflict retries.
const retryBackoff = 25 * time.Millisecond

func (e *Engine) runWithRetry(ctx context.Context, fn func(ctx context.Context) error) error {
	for attempt := 0; ; attempt++ {
		err := e.tx.RunInTx(ctx, fn)
		if err == nil || !dErrors.Retryable(err) || attempt >= e.retries {
			return err
		}
		e.metrics.IncrementConflictRetries()
		select {
		case <-ctx.Done():
			return dErrors.Wrap(ctx.Err(), dErrors.CodeTimeout, "transfer aborted: context cancelled")
		case <-time.After(retryBackoff << attempt):
		}
	}
}

func translateTransferErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, "transfer not found")
	case errors.Is(err, sentinel.ErrConflict):
		return dErrors.Wrap(err, dErrors.CodeConflict, "transfer row is contended, retry")
	case dErrors.CodeOf(err) != dErrors.CodeInternal:
		return err
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, "transfer store failure")
	}
}
