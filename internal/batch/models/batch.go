package models

import (
	"time"

	"pharmatrace/pkg/domain"
	dErrors "pharmatrace/pkg/domain-errors"
)

// Status is a batch's lifecycle state.
type Status string

const (
	// StatusActive marks a batch with mintable, transferable stock.
	StatusActive Status = "ACTIVE"
	// StatusRecalled is terminal: a recall never reverses.
	StatusRecalled Status = "RECALLED"
	// StatusCatalogEntry marks a zero-quantity placeholder run.
	StatusCatalogEntry Status = "CATALOG_ENTRY"
)

// Batch is one production run of a product.
//
// Invariants:
//   - 0 <= CurrentStock <= TotalQuantity at all times
//   - BatchNumber is unique within the owning manufacturer's namespace
//   - Status reaches RECALLED only from ACTIVE and never leaves it
//
// CurrentStock is the manufacturer's own available pool; stock held by
// downstream parties after acknowledged transfers lives in Holding rows.
type Batch struct {
	ID             domain.BatchID   `json:"id"`
	ProductID      domain.ProductID `json:"product_id"`
	ManufacturerID domain.PartyID   `json:"manufacturer_id"`
	BatchNumber    string           `json:"batch_number"`
	MfgDate        time.Time        `json:"mfg_date"`
	ExpDate        time.Time        `json:"exp_date"`
	TotalQuantity  int              `json:"total_quantity"`
	CurrentStock   int              `json:"current_stock"`
	UnitPriceCents int64            `json:"unit_price_cents"`
	Status         Status           `json:"status"`
	CreatedAt      time.Time        `json:"created_at"`
	UpdatedAt      time.Time        `json:"updated_at"`
}

func NewBatch(id domain.BatchID, productID domain.ProductID, manufacturerID domain.PartyID, batchNumber string, totalQuantity int, mfgDate, expDate time.Time, unitPriceCents int64, now time.Time) (*Batch, error) {
	if batchNumber == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "batch number is required")
	}
	if totalQuantity < 0 {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "total quantity must not be negative")
	}
	if unitPriceCents < 0 {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "unit price must not be negative")
	}
	if !expDate.After(mfgDate) {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "expiry date must be after manufacture date")
	}

	status := StatusActive
	if totalQuantity == 0 {
		status = StatusCatalogEntry
	}
	return &Batch{
		ID:             id,
		ProductID:      productID,
		ManufacturerID: manufacturerID,
		BatchNumber:    batchNumber,
		MfgDate:        mfgDate,
		ExpDate:        expDate,
		TotalQuantity:  totalQuantity,
		CurrentStock:   totalQuantity,
		UnitPriceCents: unitPriceCents,
		Status:         status,
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}

func (b *Batch) IsRecalled() bool { return b.Status == StatusRecalled }

func (b *Batch) IsExpired(now time.Time) bool { return now.After(b.ExpDate) }

// CanReserve checks whether quantity can be taken from the manufacturer's
// pool. Use with ApplyReserve inside a store Execute callback so the check
// and the decrement happen under one lock.
func (b *Batch) CanReserve(quantity int) error {
	if quantity <= 0 {
		return dErrors.New(dErrors.CodeInvalidInput, "reserve quantity must be positive")
	}
	if b.CurrentStock < quantity {
		return dErrors.Newf(dErrors.CodeInsufficientStock, "batch %s holds %d, requested %d", b.BatchNumber, b.CurrentStock, quantity)
	}
	return nil
}

func (b *Batch) ApplyReserve(quantity int, now time.Time) {
	b.CurrentStock -= quantity
	b.UpdatedAt = now
}

// CanRelease checks whether quantity can be returned to the manufacturer's
// pool without breaching CurrentStock <= TotalQuantity. Used when a
// dispatched transfer is cancelled before receipt.
func (b *Batch) CanRelease(quantity int) error {
	if quantity <= 0 {
		return dErrors.New(dErrors.CodeInvalidInput, "release quantity must be positive")
	}
	if b.CurrentStock+quantity > b.TotalQuantity {
		return dErrors.Newf(dErrors.CodeInvalidInput, "release of %d would exceed total quantity %d", quantity, b.TotalQuantity)
	}
	return nil
}

func (b *Batch) ApplyRelease(quantity int, now time.Time) {
	b.CurrentStock += quantity
	b.UpdatedAt = now
}

// CanRecall enforces the single legal recall transition: ACTIVE -> RECALLED.
// Recalling twice is rejected rather than silently accepted so one Recall
// record keeps canonical authority.
func (b *Batch) CanRecall() error {
	switch b.Status {
	case StatusActive:
		return nil
	case StatusRecalled:
		return dErrors.New(dErrors.CodeAlreadyRecalled, "batch is already recalled")
	default:
		return dErrors.New(dErrors.CodeIllegalTransition, "only active batches can be recalled")
	}
}

func (b *Batch) ApplyRecall(now time.Time) {
	b.Status = StatusRecalled
	b.UpdatedAt = now
}

// Holding is a downstream party's acknowledged on-hand quantity of a batch.
type Holding struct {
	BatchID   domain.BatchID `json:"batch_id"`
	PartyID   domain.PartyID `json:"party_id"`
	Quantity  int            `json:"quantity"`
	UpdatedAt time.Time      `json:"updated_at"`
}
