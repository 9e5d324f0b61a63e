package service

import (
	"context"
	"strings"

	batchmodels "pharmatrace/internal/batch/models"
	catalogmodels "pharmatrace/internal/catalog/models"
	partymodels "pharmatrace/internal/party/models"
	recallmodels "pharmatrace/internal/recall/models"
	unitmodels "pharmatrace/internal/unit/models"
	"pharmatrace/pkg/domain"
	dErrors "pharmatrace/pkg/domain-errors"
	"pharmatrace/pkg/requestcontext"
)

// MatchKind tells the caller which level the query resolved at.
type MatchKind string

const (
	MatchUnit  MatchKind = "UNIT"
	MatchBatch MatchKind = "BATCH"
)

// Result is everything a consumer needs to judge a scanned code: the
// product, who made it, whether the batch is expired, and whether an
// active recall covers it.
type Result struct {
	Query        string                 `json:"query"`
	Match        MatchKind              `json:"match"`
	Unit         *unitmodels.Unit       `json:"unit,omitempty"`
	Batch        *batchmodels.Batch     `json:"batch"`
	Product      *catalogmodels.Product `json:"product"`
	Manufacturer *partymodels.Party     `json:"manufacturer"`
	Expired      bool                   `json:"expired"`
	Recalled     bool                   `json:"recalled"`
	ActiveRecall *recallmodels.Recall   `json:"active_recall,omitempty"`
}

// Units resolves scanned unit identifiers.
type Units interface {
	Get(ctx context.Context, uid domain.UnitUID) (*unitmodels.Unit, error)
}

// Ledger resolves batches by id and printed number.
type Ledger interface {
	Get(ctx context.Context, id domain.BatchID) (*batchmodels.Batch, error)
	GetByNumber(ctx context.Context, batchNumber string) (*batchmodels.Batch, error)
}

// Products resolves catalog entries.
type Products interface {
	Get(ctx context.Context, id domain.ProductID) (*catalogmodels.Product, error)
}

// Parties resolves manufacturers.
type Parties interface {
	Get(ctx context.Context, id domain.PartyID) (*partymodels.Party, error)
}

// Recalls resolves a batch's active recall, if any.
type Recalls interface {
	ActiveForBatch(ctx context.Context, batchID domain.BatchID) (*recallmodels.Recall, error)
}

// Verifier is the public read path: anyone with a printed code can check
// what it is and whether it is safe. It never exposes custody detail
// beyond the current state of the scanned item.
type Verifier struct {
	units    Units
	ledger   Ledger
	products Products
	parties  Parties
	recalls  Recalls
}

func New(units Units, ledger Ledger, products Products, parties Parties, recalls Recalls) *Verifier {
	return &Verifier{units: units, ledger: ledger, products: products, parties: parties, recalls: recalls}
}

// FindByIdentifierOrBatch resolves a scanned query, trying the unit level
// first and falling back to a batch number. Malformed queries fail with
// invalid_input; well-formed but unknown ones with a not-found code, so
// a consumer can tell a typo from a potentially counterfeit code.
func (v *Verifier) FindByIdentifierOrBatch(ctx context.Context, query string) (*Result, error) {
	trimmed := strings.ToUpper(strings.TrimSpace(query))
	if trimmed == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "query is required")
	}

	// Unit UIDs carry hyphenated segments; batch numbers are a single
	// uppercase alphanumeric run. Everything else is malformed.
	if uid, err := domain.ParseUnitUID(trimmed); err == nil && strings.Contains(trimmed, "-") {
		unit, err := v.units.Get(ctx, uid)
		if err != nil {
			return nil, err
		}
		return v.assemble(ctx, trimmed, MatchUnit, unit, unit.BatchID)
	}

	if !isBatchNumber(trimmed) {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "query is neither a unit identifier nor a batch number")
	}
	batch, err := v.ledger.GetByNumber(ctx, trimmed)
	if err != nil {
		return nil, err
	}
	return v.assembleBatch(ctx, trimmed, MatchBatch, nil, batch)
}

func (v *Verifier) assemble(ctx context.Context, query string, match MatchKind, unit *unitmodels.Unit, batchID domain.BatchID) (*Result, error) {
	batch, err := v.ledger.Get(ctx, batchID)
	if err != nil {
		return nil, err
	}
	return v.assembleBatch(ctx, query, match, unit, batch)
}

func (v *Verifier) assembleBatch(ctx context.Context, query string, match MatchKind, unit *unitmodels.Unit, batch *batchmodels.Batch) (*Result, error) {
	product, err := v.products.Get(ctx, batch.ProductID)
	if err != nil {
		return nil, err
	}
	manufacturer, err := v.parties.Get(ctx, batch.ManufacturerID)
	if err != nil {
		return nil, err
	}

	result := &Result{
		Query:        query,
		Match:        match,
		Unit:         unit,
		Batch:        batch,
		Product:      product,
		Manufacturer: manufacturer,
		Expired:      batch.IsExpired(requestcontext.Now(ctx)),
		Recalled:     batch.IsRecalled(),
	}
	if batch.IsRecalled() {
		recall, err := v.recalls.ActiveForBatch(ctx, batch.ID)
		if err == nil {
			result.ActiveRecall = recall
		} else if !dErrors.HasCode(err, dErrors.CodeNotFound) {
			return nil, err
		}
	}
	return result, nil
}

func isBatchNumber(s string) bool {
	for _, r := range s {
		if (r < 'A' || r > 'Z') && (r < '0' || r > '9') {
			return false
		}
	}
	return true
}
