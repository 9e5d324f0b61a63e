package models

import (
	"time"

	"pharmatrace/pkg/domain"
	dErrors "pharmatrace/pkg/domain-errors"
)

// Status is a transfer's lifecycle state. RECEIVED and CANCELLED are
// terminal.
type Status string

const (
	StatusInTransit Status = "IN_TRANSIT"
	StatusReceived  Status = "RECEIVED"
	StatusCancelled Status = "CANCELLED"
)

// Purpose distinguishes an outbound shipment from a return to sender.
// Returns stay legal against a recalled batch; that is how recalled goods
// flow back.
type Purpose string

const (
	PurposeShipment Purpose = "SHIPMENT"
	PurposeReturn   Purpose = "RETURN"
)

func (p Purpose) Valid() bool {
	return p == PurposeShipment || p == PurposeReturn
}

// Transfer records one custody movement between two parties. Exactly one
// of Quantity (bulk, anonymous stock) or UnitUIDs (serialized units) is
// set. Stock is debited from the sender when the transfer is created, not
// when it is acknowledged.
type Transfer struct {
	ID              domain.TransferID `json:"id"`
	BatchID         domain.BatchID    `json:"batch_id"`
	SenderID        domain.PartyID    `json:"sender_id"`
	ReceiverID      domain.PartyID    `json:"receiver_id"`
	Quantity        int               `json:"quantity,omitempty"`
	UnitUIDs        []domain.UnitUID  `json:"unit_uids,omitempty"`
	Status          Status            `json:"status"`
	Purpose         Purpose           `json:"purpose"`
	InvoiceNo       string            `json:"invoice_no"`
	TotalValueCents int64             `json:"total_value_cents"`
	CreatedAt       time.Time         `json:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at"`
}

// IsQuantity reports whether this is a bulk quantity transfer rather than
// a serialized unit transfer.
func (t *Transfer) IsQuantity() bool { return len(t.UnitUIDs) == 0 }

// IsTerminal reports whether the transfer accepts further transitions.
func (t *Transfer) IsTerminal() bool {
	return t.Status == StatusReceived || t.Status == StatusCancelled
}

// CanAcknowledge guards receipt: only the addressed receiver, and only
// while the goods are in transit.
func (t *Transfer) CanAcknowledge(actor domain.PartyID) error {
	if t.IsTerminal() {
		return dErrors.Newf(dErrors.CodeIllegalTransition, "transfer is already %s", t.Status)
	}
	if t.ReceiverID != actor {
		return dErrors.New(dErrors.CodeInvalidInput, "only the addressed receiver can acknowledge receipt")
	}
	return nil
}

// ApplyAcknowledge transitions the transfer to RECEIVED.
func (t *Transfer) ApplyAcknowledge(now time.Time) {
	t.Status = StatusReceived
	t.UpdatedAt = now
}

// CanCancel guards cancellation: sender or receiver, before receipt.
func (t *Transfer) CanCancel(actor domain.PartyID) error {
	if t.IsTerminal() {
		return dErrors.Newf(dErrors.CodeIllegalTransition, "transfer is already %s", t.Status)
	}
	if t.SenderID != actor && t.ReceiverID != actor {
		return dErrors.New(dErrors.CodeInvalidInput, "only the sender or receiver can cancel a transfer")
	}
	return nil
}

// ApplyCancel transitions the transfer to CANCELLED.
func (t *Transfer) ApplyCancel(now time.Time) {
	t.Status = StatusCancelled
	t.UpdatedAt = now
}
