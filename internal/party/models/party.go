package models

import (
	"time"

	"pharmatrace/pkg/domain"
	dErrors "pharmatrace/pkg/domain-errors"
)

// Role is a party's position in the supply chain. Immutable after
// registration: re-parenting an existing party's role would silently
// rewrite the meaning of its custody history.
type Role string

const (
	RoleManufacturer Role = "MANUFACTURER"
	RoleDistributor  Role = "DISTRIBUTOR"
	RoleRetailer     Role = "RETAILER"
)

func (r Role) Valid() bool {
	switch r {
	case RoleManufacturer, RoleDistributor, RoleRetailer:
		return true
	}
	return false
}

// Party is any actor that can hold custody of stock or units.
type Party struct {
	ID        domain.PartyID `json:"id"`
	Name      string         `json:"name"`
	Role      Role           `json:"role"`
	CreatedAt time.Time      `json:"created_at"`
}

func NewParty(id domain.PartyID, name string, role Role, now time.Time) (*Party, error) {
	if name == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "party name is required")
	}
	if len(name) > 128 {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "party name must be 128 characters or less")
	}
	if !role.Valid() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "party role must be MANUFACTURER, DISTRIBUTOR, or RETAILER")
	}
	return &Party{
		ID:        id,
		Name:      name,
		Role:      role,
		CreatedAt: now,
	}, nil
}
