package models

import (
	"time"

	"pharmatrace/pkg/domain"
	dErrors "pharmatrace/pkg/domain-errors"
)

// Product is a catalog definition owned by exactly one manufacturer.
// Batches reference products, so products are never deleted; corrections
// are in-place updates by the owning manufacturer.
type Product struct {
	ID             domain.ProductID `json:"id"`
	ManufacturerID domain.PartyID   `json:"manufacturer_id"`
	Name           string           `json:"name"`
	GenericName    string           `json:"generic_name"`
	DosageForm     string           `json:"dosage_form"`
	Strength       string           `json:"strength"`
	BasePriceCents int64            `json:"base_price_cents"`
	CreatedAt      time.Time        `json:"created_at"`
	UpdatedAt      time.Time        `json:"updated_at"`
}

func NewProduct(id domain.ProductID, manufacturerID domain.PartyID, name, genericName, dosageForm, strength string, basePriceCents int64, now time.Time) (*Product, error) {
	if name == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "product name is required")
	}
	if manufacturerID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "manufacturer id is required")
	}
	if basePriceCents < 0 {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "base price must not be negative")
	}
	return &Product{
		ID:             id,
		ManufacturerID: manufacturerID,
		Name:           name,
		GenericName:    genericName,
		DosageForm:     dosageForm,
		Strength:       strength,
		BasePriceCents: basePriceCents,
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}

// ProductUpdate carries the in-place mutable fields of a product.
type ProductUpdate struct {
	Name           string
	GenericName    string
	DosageForm     string
	Strength       string
	BasePriceCents int64
}

// Apply validates and applies the update.
func (p *Product) Apply(update ProductUpdate, now time.Time) error {
	if update.Name == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "product name is required")
	}
	if update.BasePriceCents < 0 {
		return dErrors.New(dErrors.CodeInvalidInput, "base price must not be negative")
	}
	p.Name = update.Name
	p.GenericName = update.GenericName
	p.DosageForm = update.DosageForm
	p.Strength = update.Strength
	p.BasePriceCents = update.BasePriceCents
	p.UpdatedAt = now
	return nil
}
