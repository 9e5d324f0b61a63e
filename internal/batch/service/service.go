package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	batchmetrics "pharmatrace/internal/batch/metrics"
	"pharmatrace/internal/batch/models"
	catalogmodels "pharmatrace/internal/catalog/models"
	partymodels "pharmatrace/internal/party/models"
	"pharmatrace/pkg/domain"
	dErrors "pharmatrace/pkg/domain-errors"
	"pharmatrace/pkg/platform/sentinel"
	"pharmatrace/pkg/requestcontext"
)

// Store abstracts batch and holding persistence. Execute must hold its
// lock (mutex or FOR UPDATE) across both callbacks; Debit must be atomic.
type Store interface {
	Create(ctx context.Context, batch *models.Batch) error
	FindByID(ctx context.Context, id domain.BatchID) (*models.Batch, error)
	FindByNumber(ctx context.Context, batchNumber string) (*models.Batch, error)
	Execute(ctx context.Context, id domain.BatchID, validate func(*models.Batch) error, mutate func(*models.Batch)) (*models.Batch, error)

	GetHolding(ctx context.Context, batchID domain.BatchID, partyID domain.PartyID) (int, error)
	CreditHolding(ctx context.Context, batchID domain.BatchID, partyID domain.PartyID, quantity int, now time.Time) error
	DebitHolding(ctx context.Context, batchID domain.BatchID, partyID domain.PartyID, quantity int, now time.Time) error
	HoldersOf(ctx context.Context, batchID domain.BatchID) ([]domain.PartyID, error)
}

// ProductResolver resolves catalog products for ownership checks.
type ProductResolver interface {
	Get(ctx context.Context, id domain.ProductID) (*catalogmodels.Product, error)
}

// PartyResolver resolves parties for role checks.
type PartyResolver interface {
	Get(ctx context.Context, id domain.PartyID) (*partymodels.Party, error)
}

// Ledger owns batch lifecycle and stock quantities. Reserve, Release, and
// the holding mutations are meant to be called inside the custody transfer
// engine's transaction boundary; they are not public entry points.
type Ledger struct {
	store    Store
	products ProductResolver
	parties  PartyResolver
	metrics  *batchmetrics.Metrics
}

func NewLedger(store Store, products ProductResolver, parties PartyResolver, metrics *batchmetrics.Metrics) *Ledger {
	return &Ledger{store: store, products: products, parties: parties, metrics: metrics}
}

// CreateBatchParams carries the fields of a new production run.
type CreateBatchParams struct {
	ProductID      domain.ProductID
	BatchNumber    string
	TotalQuantity  int
	MfgDate        time.Time
	ExpDate        time.Time
	UnitPriceCents int64
}

// CreateBatch registers a production run for the acting manufacturer.
// The batch number must be unique within that manufacturer's namespace.
func (l *Ledger) CreateBatch(ctx context.Context, actor domain.PartyID, params CreateBatchParams) (*models.Batch, error) {
	party, err := l.parties.Get(ctx, actor)
	if err != nil {
		return nil, err
	}
	if party.Role != partymodels.RoleManufacturer {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "only manufacturers can create batches")
	}

	product, err := l.products.Get(ctx, params.ProductID)
	if err != nil {
		return nil, err
	}
	if product.ManufacturerID != actor {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "product is not owned by the acting manufacturer")
	}

	batch, err := models.NewBatch(
		domain.BatchID(uuid.New()), product.ID, actor,
		strings.TrimSpace(strings.ToUpper(params.BatchNumber)),
		params.TotalQuantity, params.MfgDate, params.ExpDate,
		params.UnitPriceCents, requestcontext.Now(ctx),
	)
	if err != nil {
		return nil, err
	}

	if err := l.store.Create(ctx, batch); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.New(dErrors.CodeInvalidInput, "batch number already used by this manufacturer")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create batch")
	}

	l.metrics.IncrementBatchesCreated()
	return batch, nil
}

// Get resolves a batch by ID.
func (l *Ledger) Get(ctx context.Context, id domain.BatchID) (*models.Batch, error) {
	if id.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "batch id is required")
	}
	batch, err := l.store.FindByID(ctx, id)
	if err != nil {
		return nil, translateBatchErr(err)
	}
	return batch, nil
}

// GetByNumber resolves a batch by its printed batch number.
func (l *Ledger) GetByNumber(ctx context.Context, batchNumber string) (*models.Batch, error) {
	batchNumber = strings.TrimSpace(batchNumber)
	if batchNumber == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "batch number is required")
	}
	batch, err := l.store.FindByNumber(ctx, batchNumber)
	if err != nil {
		return nil, translateBatchErr(err)
	}
	return batch, nil
}

// Reserve atomically checks and debits quantity from the sender's stock:
// the manufacturer's pool when the sender owns the batch, the sender's
// holding otherwise. Call only inside the transfer engine's transaction.
func (l *Ledger) Reserve(ctx context.Context, batchID domain.BatchID, sender domain.PartyID, quantity int) error {
	if quantity <= 0 {
		return dErrors.New(dErrors.CodeInvalidInput, "transfer quantity must be positive")
	}
	batch, err := l.Get(ctx, batchID)
	if err != nil {
		return err
	}

	now := requestcontext.Now(ctx)
	if batch.ManufacturerID == sender {
		_, err = l.store.Execute(ctx, batchID,
			func(b *models.Batch) error { return b.CanReserve(quantity) },
			func(b *models.Batch) { b.ApplyReserve(quantity, now) },
		)
		if err != nil {
			return translateBatchErr(err)
		}
	} else {
		if err := l.store.DebitHolding(ctx, batchID, sender, quantity, now); err != nil {
			if errors.Is(err, sentinel.ErrInvalidState) {
				return dErrors.Newf(dErrors.CodeInsufficientStock, "sender holds less than %d of batch %s", quantity, batch.BatchNumber)
			}
			return translateBatchErr(err)
		}
	}

	l.metrics.AddStockReserved(quantity)
	return nil
}

// Release returns previously reserved quantity to the sender. Compensation
// path for transfers cancelled (or abandoned) before acknowledgment.
func (l *Ledger) Release(ctx context.Context, batchID domain.BatchID, sender domain.PartyID, quantity int) error {
	if quantity <= 0 {
		return dErrors.New(dErrors.CodeInvalidInput, "release quantity must be positive")
	}
	batch, err := l.Get(ctx, batchID)
	if err != nil {
		return err
	}

	now := requestcontext.Now(ctx)
	if batch.ManufacturerID == sender {
		_, err = l.store.Execute(ctx, batchID,
			func(b *models.Batch) error { return b.CanRelease(quantity) },
			func(b *models.Batch) { b.ApplyRelease(quantity, now) },
		)
		if err != nil {
			return translateBatchErr(err)
		}
	} else {
		if err := l.store.CreditHolding(ctx, batchID, sender, quantity, now); err != nil {
			return translateBatchErr(err)
		}
	}

	l.metrics.AddStockReleased(quantity)
	return nil
}

// CreditReceiver books acknowledged quantity onto the receiver. For a
// return-to-sender the receiver is the manufacturer, whose stock goes back
// into the batch pool; anyone else gets a holding credit.
func (l *Ledger) CreditReceiver(ctx context.Context, batchID domain.BatchID, receiver domain.PartyID, quantity int) error {
	if quantity <= 0 {
		return dErrors.New(dErrors.CodeInvalidInput, "credit quantity must be positive")
	}
	batch, err := l.Get(ctx, batchID)
	if err != nil {
		return err
	}

	now := requestcontext.Now(ctx)
	if batch.ManufacturerID == receiver {
		_, err = l.store.Execute(ctx, batchID,
			func(b *models.Batch) error { return b.CanRelease(quantity) },
			func(b *models.Batch) { b.ApplyRelease(quantity, now) },
		)
		if err != nil {
			return translateBatchErr(err)
		}
		return nil
	}
	if err := l.store.CreditHolding(ctx, batchID, receiver, quantity, now); err != nil {
		return translateBatchErr(err)
	}
	return nil
}

// MarkRecalled transitions the batch to RECALLED. A second recall attempt
// is rejected with already_recalled, preserving the single canonical
// recall record's authority.
func (l *Ledger) MarkRecalled(ctx context.Context, batchID domain.BatchID) (*models.Batch, error) {
	now := requestcontext.Now(ctx)
	batch, err := l.store.Execute(ctx, batchID,
		func(b *models.Batch) error { return b.CanRecall() },
		func(b *models.Batch) { b.ApplyRecall(now) },
	)
	if err != nil {
		return nil, translateBatchErr(err)
	}
	l.metrics.IncrementBatchesRecalled()
	return batch, nil
}

// Holding reports a party's acknowledged on-hand quantity of a batch.
func (l *Ledger) Holding(ctx context.Context, batchID domain.BatchID, partyID domain.PartyID) (int, error) {
	return l.store.GetHolding(ctx, batchID, partyID)
}

// HoldersOf lists parties with a positive holding of the batch.
func (l *Ledger) HoldersOf(ctx context.Context, batchID domain.BatchID) ([]domain.PartyID, error) {
	return l.store.HoldersOf(ctx, batchID)
}

func translateBatchErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeBatchNotFound, "batch not found")
	case errors.Is(err, sentinel.ErrConflict):
		return dErrors.Wrap(err, dErrors.CodeConflict, "batch row is contended, retry")
	case dErrors.CodeOf(err) != dErrors.CodeInternal:
		return err
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, "batch store failure")
	}
}
