package models

import (
	"time"

	"pharmatrace/pkg/domain"
	dErrors "pharmatrace/pkg/domain-errors"
)

// Status is a unit's lifecycle state. SOLD is terminal.
type Status string

const (
	StatusMinted    Status = "MINTED"
	StatusInTransit Status = "IN_TRANSIT"
	StatusReceived  Status = "RECEIVED"
	StatusSold      Status = "SOLD"
)

// CustodyEvent is one immutable entry in a unit's history. From is nil for
// the minting event; To is nil when the unit leaves the supply chain (sold).
type CustodyEvent struct {
	From      *domain.PartyID `json:"from"`
	To        *domain.PartyID `json:"to"`
	Status    Status          `json:"status"`
	Timestamp time.Time       `json:"timestamp"`
}

// Unit is one physical traceable item.
//
// Invariants:
//   - History is append-only: never truncated or reordered
//   - CustodianID always equals the To party of the last history entry
//     (nil once sold)
//   - Status always equals the status of the last history entry
//
// The custodian and status fields are caches over the history; stores must
// update them in the same atomic step that appends the event.
type Unit struct {
	UID         domain.UnitUID  `json:"uid"`
	BatchID     domain.BatchID  `json:"batch_id"`
	Kind        domain.UnitKind `json:"kind"`
	ParentUID   domain.UnitUID  `json:"parent_uid,omitempty"`
	CustodianID *domain.PartyID `json:"custodian_id"`
	Status      Status          `json:"status"`
	History     []CustodyEvent  `json:"history"`
	CreatedAt   time.Time       `json:"created_at"`
}

// NewMinted constructs a freshly minted unit in the custody of the batch's
// manufacturer, with an empty history. The first custody event is appended
// when the unit first moves.
func NewMinted(uid domain.UnitUID, batchID domain.BatchID, kind domain.UnitKind, parentUID domain.UnitUID, manufacturer domain.PartyID, now time.Time) (*Unit, error) {
	if uid == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "unit uid is required")
	}
	if !kind.Valid() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "unit kind must be CARTON, BOX, or STRIP")
	}
	custodian := manufacturer
	return &Unit{
		UID:         uid,
		BatchID:     batchID,
		Kind:        kind,
		ParentUID:   parentUID,
		CustodianID: &custodian,
		Status:      StatusMinted,
		CreatedAt:   now,
	}, nil
}

// IsTerminal reports whether the unit accepts further custody events.
func (u *Unit) IsTerminal() bool { return u.Status == StatusSold }

// CanAppend guards the append-only log against events on terminal units.
func (u *Unit) CanAppend() error {
	if u.IsTerminal() {
		return dErrors.New(dErrors.CodeAlreadyTerminal, "unit is already sold")
	}
	return nil
}

// ApplyEvent appends the event and refreshes the cached custodian/status.
// Callers must have checked CanAppend under the store's lock.
func (u *Unit) ApplyEvent(event CustodyEvent) {
	u.History = append(u.History, event)
	u.CustodianID = event.To
	u.Status = event.Status
}
