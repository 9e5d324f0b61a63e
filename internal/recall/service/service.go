package service

import (
	"context"
	"errors"

	"github.com/google/uuid"

	auditmodels "pharmatrace/internal/audit/models"
	auditservice "pharmatrace/internal/audit/service"
	batchmodels "pharmatrace/internal/batch/models"
	"pharmatrace/internal/recall/models"
	"pharmatrace/pkg/domain"
	dErrors "pharmatrace/pkg/domain-errors"
	"pharmatrace/pkg/platform/sentinel"
	"pharmatrace/pkg/requestcontext"
)

// Store persists recall records.
type Store interface {
	Create(ctx context.Context, recall *models.Recall) error
	FindByID(ctx context.Context, id domain.RecallID) (*models.Recall, error)
	FindActiveByBatch(ctx context.Context, batchID domain.BatchID) (*models.Recall, error)
	Execute(ctx context.Context, id domain.RecallID, validate func(*models.Recall) error, mutate func(*models.Recall)) (*models.Recall, error)
}

// Ledger is the batch side of a recall: status flip plus holding lookup.
type Ledger interface {
	Get(ctx context.Context, id domain.BatchID) (*batchmodels.Batch, error)
	MarkRecalled(ctx context.Context, id domain.BatchID) (*batchmodels.Batch, error)
	HoldersOf(ctx context.Context, id domain.BatchID) ([]domain.PartyID, error)
}

// Units reports which parties hold serialized units of a batch.
type Units interface {
	CustodiansOf(ctx context.Context, batchID domain.BatchID) ([]domain.PartyID, error)
}

// Transfers reports receivers of in-flight quantity transfers of a batch.
type Transfers interface {
	OutstandingReceivers(ctx context.Context, batchID domain.BatchID) ([]domain.PartyID, error)
}

// TxRunner provides the transaction boundary for recall issuance, so the
// batch status flip and the recall record land together or not at all.
type TxRunner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// Notice is the result of issuing a recall: the canonical record plus the
// parties that must be notified.
type Notice struct {
	Recall  *models.Recall   `json:"recall"`
	Holders []domain.PartyID `json:"holders"`
}

// Propagator issues recalls and computes who holds affected stock. It
// reads custody state but never mutates it: recalled goods stay where they
// are until holders act.
type Propagator struct {
	store     Store
	tx        TxRunner
	ledger    Ledger
	units     Units
	transfers Transfers
	trail     *auditservice.Trail
}

func New(store Store, tx TxRunner, ledger Ledger, units Units, transfers Transfers, trail *auditservice.Trail) *Propagator {
	return &Propagator{store: store, tx: tx, ledger: ledger, units: units, transfers: transfers, trail: trail}
}

// IssueParams carries the fields of a new recall.
type IssueParams struct {
	BatchID  domain.BatchID
	Reason   string
	Severity models.Severity
	Action   models.ActionType
}

// IssueRecall marks the batch RECALLED, persists the recall record, and
// returns the holder set: current unit custodians, parties with a positive
// holding, and receivers of outstanding in-transit quantity transfers,
// minus the issuing manufacturer. A second recall of the same batch fails
// with already_recalled.
func (p *Propagator) IssueRecall(ctx context.Context, actor domain.PartyID, params IssueParams) (*Notice, error) {
	batch, err := p.ledger.Get(ctx, params.BatchID)
	if err != nil {
		return nil, err
	}
	if batch.ManufacturerID != actor {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "only the batch's manufacturer can issue a recall")
	}

	recall, err := models.NewRecall(
		domain.RecallID(uuid.New()), params.BatchID, actor,
		params.Reason, params.Severity, params.Action,
		requestcontext.Now(ctx),
	)
	if err != nil {
		return nil, err
	}

	// The record and the status flip land in one transaction. The record
	// goes first so a persistence failure leaves the batch untouched; the
	// recheck under the boundary closes the gap against a concurrent issue.
	err = p.tx.RunInTx(ctx, func(ctx context.Context) error {
		current, err := p.ledger.Get(ctx, params.BatchID)
		if err != nil {
			return err
		}
		if current.IsRecalled() {
			return dErrors.Newf(dErrors.CodeAlreadyRecalled, "batch %s is already recalled", current.BatchNumber)
		}
		if err := p.store.Create(ctx, recall); err != nil {
			if errors.Is(err, sentinel.ErrConflict) {
				return dErrors.New(dErrors.CodeAlreadyRecalled, "batch already has an active recall")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to persist recall")
		}
		_, err = p.ledger.MarkRecalled(ctx, params.BatchID)
		return err
	})
	if err != nil {
		return nil, err
	}

	holders, err := p.holderSet(ctx, params.BatchID, actor)
	if err != nil {
		return nil, err
	}

	p.trail.Record(ctx, auditmodels.KindRecallIssued, &actor, "batch:"+params.BatchID.String(), map[string]any{
		"recall_id": recall.ID.String(), "severity": string(params.Severity),
		"action": string(params.Action), "holders": len(holders),
	})
	return &Notice{Recall: recall, Holders: holders}, nil
}

// Holders recomputes the holder set of an existing recall's batch. Custody
// keeps moving after issuance (returns, unit receipts), so the set is
// derived on demand rather than frozen.
func (p *Propagator) Holders(ctx context.Context, recallID domain.RecallID) (*Notice, error) {
	recall, err := p.Get(ctx, recallID)
	if err != nil {
		return nil, err
	}
	holders, err := p.holderSet(ctx, recall.BatchID, recall.IssuedBy)
	if err != nil {
		return nil, err
	}
	return &Notice{Recall: recall, Holders: holders}, nil
}

// CloseRecall transitions ACTIVE -> CLOSED once affected stock is resolved.
// The record is retained.
func (p *Propagator) CloseRecall(ctx context.Context, recallID domain.RecallID, actor domain.PartyID) (*models.Recall, error) {
	recall, err := p.Get(ctx, recallID)
	if err != nil {
		return nil, err
	}
	if recall.IssuedBy != actor {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "only the issuing manufacturer can close a recall")
	}

	now := requestcontext.Now(ctx)
	closed, err := p.store.Execute(ctx, recallID,
		func(r *models.Recall) error { return r.CanClose() },
		func(r *models.Recall) { r.ApplyClose(now) },
	)
	if err != nil {
		return nil, translateRecallErr(err)
	}

	p.trail.Record(ctx, auditmodels.KindRecallClosed, &actor, "batch:"+recall.BatchID.String(), nil)
	return closed, nil
}

// Get resolves a recall by ID.
func (p *Propagator) Get(ctx context.Context, id domain.RecallID) (*models.Recall, error) {
	recall, err := p.store.FindByID(ctx, id)
	if err != nil {
		return nil, translateRecallErr(err)
	}
	return recall, nil
}

// ActiveForBatch resolves the batch's active recall, or NotFound.
func (p *Propagator) ActiveForBatch(ctx context.Context, batchID domain.BatchID) (*models.Recall, error) {
	recall, err := p.store.FindActiveByBatch(ctx, batchID)
	if err != nil {
		return nil, translateRecallErr(err)
	}
	return recall, nil
}

func (p *Propagator) holderSet(ctx context.Context, batchID domain.BatchID, issuer domain.PartyID) ([]domain.PartyID, error) {
	custodians, err := p.units.CustodiansOf(ctx, batchID)
	if err != nil {
		return nil, err
	}
	holders, err := p.ledger.HoldersOf(ctx, batchID)
	if err != nil {
		return nil, err
	}
	receivers, err := p.transfers.OutstandingReceivers(ctx, batchID)
	if err != nil {
		return nil, err
	}

	seen := make(map[domain.PartyID]bool)
	var out []domain.PartyID
	for _, group := range [][]domain.PartyID{custodians, holders, receivers} {
		for _, party := range group {
			if party == issuer || seen[party] {
				continue
			}
			seen[party] = true
			out = append(out, party)
		}
	}
	return out, nil
}

func translateRecallErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, "recall not found")
	case errors.Is(err, sentinel.ErrConflict):
		return dErrors.Wrap(err, dErrors.CodeConflict, "recall row is contended, retry")
	case dErrors.CodeOf(err) != dErrors.CodeInternal:
		return err
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, "recall store failure")
	}
}
