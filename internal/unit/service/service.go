package service

import (
	"context"
	"errors"

	"pharmatrace/internal/allocator"
	batchmodels "pharmatrace/internal/batch/models"
	unitmetrics "pharmatrace/internal/unit/metrics"
	"pharmatrace/internal/unit/models"
	"pharmatrace/pkg/domain"
	dErrors "pharmatrace/pkg/domain-errors"
	"pharmatrace/pkg/platform/sentinel"
	"pharmatrace/pkg/requestcontext"
)

// Store abstracts unit persistence. AppendEvent must hold its lock (mutex
// or row lock) across the terminal check and the append.
type Store interface {
	MintBatch(ctx context.Context, units []*models.Unit) error
	FindByUID(ctx context.Context, uid domain.UnitUID) (*models.Unit, error)
	AppendEvent(ctx context.Context, uid domain.UnitUID, event models.CustodyEvent) (*models.Unit, error)
	ListByBatch(ctx context.Context, batchID domain.BatchID) ([]*models.Unit, error)
	CustodiansOf(ctx context.Context, batchID domain.BatchID) ([]domain.PartyID, error)
}

// BatchResolver resolves batches for custodian seeding and recall checks.
type BatchResolver interface {
	Get(ctx context.Context, id domain.BatchID) (*batchmodels.Batch, error)
}

// Registry owns the unit registry: minting identifier trees into persisted
// units and recording every custody movement as an append-only event.
type Registry struct {
	store   Store
	batches BatchResolver
	metrics *unitmetrics.Metrics
}

func New(store Store, batches BatchResolver, metrics *unitmetrics.Metrics) *Registry {
	return &Registry{store: store, batches: batches, metrics: metrics}
}

// Mint persists the allocated identifier tree as units in the custody of
// the batch's manufacturer. All-or-nothing: a single colliding UID rejects
// the whole mint.
func (r *Registry) Mint(ctx context.Context, batchID domain.BatchID, identifiers []allocator.Identifier) ([]*models.Unit, error) {
	if len(identifiers) == 0 {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "no identifiers to mint")
	}
	batch, err := r.batches.Get(ctx, batchID)
	if err != nil {
		return nil, err
	}

	now := requestcontext.Now(ctx)
	units := make([]*models.Unit, 0, len(identifiers))
	for _, ident := range identifiers {
		unit, err := models.NewMinted(ident.UID, batch.ID, ident.Kind, ident.Parent, batch.ManufacturerID, now)
		if err != nil {
			return nil, err
		}
		units = append(units, unit)
	}

	if err := r.store.MintBatch(ctx, units); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.New(dErrors.CodeInvalidInput, "one or more unit identifiers are already minted")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to mint units")
	}

	r.metrics.AddUnitsMinted(len(units))
	return units, nil
}

// Get resolves a unit with its full custody history.
func (r *Registry) Get(ctx context.Context, uid domain.UnitUID) (*models.Unit, error) {
	unit, err := r.store.FindByUID(ctx, uid)
	if err != nil {
		return nil, translateUnitErr(err)
	}
	return unit, nil
}

// Dispatch marks a unit in transit from sender to receiver. Only the
// current custodian can dispatch, and a unit already moving cannot be
// dispatched again.
func (r *Registry) Dispatch(ctx context.Context, uid domain.UnitUID, sender, receiver domain.PartyID) (*models.Unit, error) {
	unit, err := r.Get(ctx, uid)
	if err != nil {
		return nil, err
	}
	if unit.CustodianID == nil || *unit.CustodianID != sender {
		return nil, dErrors.Newf(dErrors.CodeInvalidInput, "unit %s is not in the sender's custody", uid)
	}
	if unit.Status == models.StatusInTransit {
		return nil, dErrors.Newf(dErrors.CodeIllegalTransition, "unit %s is already in transit", uid)
	}

	updated, err := r.store.AppendEvent(ctx, uid, models.CustodyEvent{
		From:      &sender,
		To:        &receiver,
		Status:    models.StatusInTransit,
		Timestamp: requestcontext.Now(ctx),
	})
	if err != nil {
		return nil, translateUnitErr(err)
	}
	r.metrics.IncrementCustodyEvents()
	return updated, nil
}

// Receive confirms the receiver has taken physical custody of an in-transit
// unit.
func (r *Registry) Receive(ctx context.Context, uid domain.UnitUID, sender, receiver domain.PartyID) (*models.Unit, error) {
	unit, err := r.Get(ctx, uid)
	if err != nil {
		return nil, err
	}
	if unit.Status != models.StatusInTransit {
		return nil, dErrors.Newf(dErrors.CodeIllegalTransition, "unit %s is not in transit", uid)
	}
	if unit.CustodianID == nil || *unit.CustodianID != receiver {
		return nil, dErrors.Newf(dErrors.CodeInvalidInput, "unit %s is not addressed to the receiver", uid)
	}

	updated, err := r.store.AppendEvent(ctx, uid, models.CustodyEvent{
		From:      &sender,
		To:        &receiver,
		Status:    models.StatusReceived,
		Timestamp: requestcontext.Now(ctx),
	})
	if err != nil {
		return nil, translateUnitErr(err)
	}
	r.metrics.IncrementCustodyEvents()
	return updated, nil
}

// Revert returns an in-transit unit to its sender, compensating a
// cancelled dispatch. The reversal is recorded as a new event; the
// dispatch entry stays in the history.
func (r *Registry) Revert(ctx context.Context, uid domain.UnitUID, sender, receiver domain.PartyID) (*models.Unit, error) {
	unit, err := r.Get(ctx, uid)
	if err != nil {
		return nil, err
	}
	if unit.Status != models.StatusInTransit {
		return nil, dErrors.Newf(dErrors.CodeIllegalTransition, "unit %s is not in transit", uid)
	}

	updated, err := r.store.AppendEvent(ctx, uid, models.CustodyEvent{
		From:      &receiver,
		To:        &sender,
		Status:    models.StatusReceived,
		Timestamp: requestcontext.Now(ctx),
	})
	if err != nil {
		return nil, translateUnitErr(err)
	}
	r.metrics.IncrementCustodyEvents()
	return updated, nil
}

// Sell records the terminal sale of a unit by its current custodian. The
// unit leaves the supply chain: custodian becomes nil and no further
// custody events are accepted.
func (r *Registry) Sell(ctx context.Context, uid domain.UnitUID, seller domain.PartyID) (*models.Unit, error) {
	unit, err := r.Get(ctx, uid)
	if err != nil {
		return nil, err
	}
	if unit.IsTerminal() {
		return nil, dErrors.Newf(dErrors.CodeAlreadyTerminal, "unit %s is already sold", uid)
	}
	if unit.Status == models.StatusInTransit {
		return nil, dErrors.Newf(dErrors.CodeIllegalTransition, "unit %s is in transit and cannot be sold", uid)
	}
	if unit.CustodianID == nil || *unit.CustodianID != seller {
		return nil, dErrors.Newf(dErrors.CodeInvalidInput, "unit %s is not in the seller's custody", uid)
	}

	batch, err := r.batches.Get(ctx, unit.BatchID)
	if err != nil {
		return nil, err
	}
	if batch.IsRecalled() {
		return nil, dErrors.Newf(dErrors.CodeBatchRecalled, "batch %s is recalled, unit cannot be sold", batch.BatchNumber)
	}

	updated, err := r.store.AppendEvent(ctx, uid, models.CustodyEvent{
		From:      &seller,
		To:        nil,
		Status:    models.StatusSold,
		Timestamp: requestcontext.Now(ctx),
	})
	if err != nil {
		return nil, translateUnitErr(err)
	}
	r.metrics.IncrementUnitsSold()
	return updated, nil
}

// ListByBatch lists every unit minted for the batch.
func (r *Registry) ListByBatch(ctx context.Context, batchID domain.BatchID) ([]*models.Unit, error) {
	return r.store.ListByBatch(ctx, batchID)
}

// CustodiansOf lists the distinct parties currently holding units of the
// batch. Sold units have no custodian and do not appear.
func (r *Registry) CustodiansOf(ctx context.Context, batchID domain.BatchID) ([]domain.PartyID, error) {
	return r.store.CustodiansOf(ctx, batchID)
}

func translateUnitErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeUnitNotFound, "unit not found")
	case errors.Is(err, sentinel.ErrConflict):
		return dErrors.Wrap(err, dErrors.CodeConflict, "unit row is contended, retry")
	case dErrors.CodeOf(err) != dErrors.CodeInternal:
		return err
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, "unit store failure")
	}
}
