package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"pharmatrace/pkg/domain"
)

// Kind names the custody-relevant mutation an event records.
type Kind string

const (
	KindBatchCreated        Kind = "batch.created"
	KindUnitsMinted         Kind = "units.minted"
	KindTransferDispatched  Kind = "transfer.dispatched"
	KindTransferAcknowledged Kind = "transfer.acknowledged"
	KindTransferCancelled   Kind = "transfer.cancelled"
	KindUnitSold            Kind = "unit.sold"
	KindRecallIssued        Kind = "recall.issued"
	KindRecallClosed        Kind = "recall.closed"
	KindJobCreated          Kind = "printjob.created"
	KindJobTransitioned     Kind = "printjob.transitioned"
)

// Event is one append-only audit record. Detail is an opaque JSON payload
// shaped by the emitting service; the trail never interprets it.
type Event struct {
	ID         uuid.UUID       `json:"id"`
	Kind       Kind            `json:"kind"`
	Actor      *domain.PartyID `json:"actor,omitempty"`
	Subject    string          `json:"subject"`
	Detail     json.RawMessage `json:"detail,omitempty"`
	OccurredAt time.Time       `json:"occurred_at"`
}
