// Package domain defines the typed identifiers shared by every feature.
//
// Each entity gets its own UUID-backed type so the compiler rejects a
// BatchID where a PartyID is expected. Unit identifiers are not UUIDs:
// they are the printed, human-scannable codes minted by the allocator,
// so UnitUID is a validated string type instead.
package domain

import (
	"regexp"
	"strings"

	"github.com/google/uuid"

	dErrors "pharmatrace/pkg/domain-errors"
)

type (
	// PartyID identifies a manufacturer, distributor, or retailer.
	PartyID uuid.UUID
	// ProductID identifies a catalog product definition.
	ProductID uuid.UUID
	// BatchID identifies one production run of a product.
	BatchID uuid.UUID
	// TransferID identifies a custody-movement record.
	TransferID uuid.UUID
	// RecallID identifies a recall issued against a batch.
	RecallID uuid.UUID
	// JobID identifies a production delegation (print) job.
	JobID uuid.UUID
)

func (id PartyID) String() string    { return uuid.UUID(id).String() }
func (id ProductID) String() string  { return uuid.UUID(id).String() }
func (id BatchID) String() string    { return uuid.UUID(id).String() }
func (id TransferID) String() string { return uuid.UUID(id).String() }
func (id RecallID) String() string   { return uuid.UUID(id).String() }
func (id JobID) String() string      { return uuid.UUID(id).String() }

func (id PartyID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }
func (id ProductID) IsNil() bool  { return uuid.UUID(id) == uuid.Nil }
func (id BatchID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }
func (id TransferID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id RecallID) IsNil() bool   { return uuid.UUID(id) == uuid.Nil }
func (id JobID) IsNil() bool      { return uuid.UUID(id) == uuid.Nil }

// Defined types do not inherit uuid.UUID's marshaling, so each ID spells
// out the text round trip; JSON otherwise renders them as byte arrays.

func (id PartyID) MarshalText() ([]byte, error)    { return []byte(id.String()), nil }
func (id ProductID) MarshalText() ([]byte, error)  { return []byte(id.String()), nil }
func (id BatchID) MarshalText() ([]byte, error)    { return []byte(id.String()), nil }
func (id TransferID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }
func (id RecallID) MarshalText() ([]byte, error)   { return []byte(id.String()), nil }
func (id JobID) MarshalText() ([]byte, error)      { return []byte(id.String()), nil }

func (id *PartyID) UnmarshalText(b []byte) error {
	parsed, err := ParsePartyID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func (id *ProductID) UnmarshalText(b []byte) error {
	parsed, err := ParseProductID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func (id *BatchID) UnmarshalText(b []byte) error {
	parsed, err := ParseBatchID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func (id *TransferID) UnmarshalText(b []byte) error {
	parsed, err := ParseTransferID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func (id *RecallID) UnmarshalText(b []byte) error {
	parsed, err := ParseRecallID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func (id *JobID) UnmarshalText(b []byte) error {
	parsed, err := ParseJobID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// parseUUID enforces the shared invariant: IDs must be valid, non-nil UUIDs.
func parseUUID(raw, kind string) (uuid.UUID, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, kind+" id is required")
	}
	parsed, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, kind+" id is not a valid UUID")
	}
	if parsed == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, kind+" id must not be the nil UUID")
	}
	return parsed, nil
}

func ParsePartyID(raw string) (PartyID, error) {
	u, err := parseUUID(raw, "party")
	return PartyID(u), err
}

func ParseProductID(raw string) (ProductID, error) {
	u, err := parseUUID(raw, "product")
	return ProductID(u), err
}

func ParseBatchID(raw string) (BatchID, error) {
	u, err := parseUUID(raw, "batch")
	return BatchID(u), err
}

func ParseTransferID(raw string) (TransferID, error) {
	u, err := parseUUID(raw, "transfer")
	return TransferID(u), err
}

func ParseRecallID(raw string) (RecallID, error) {
	u, err := parseUUID(raw, "recall")
	return RecallID(u), err
}

func ParseJobID(raw string) (JobID, error) {
	u, err := parseUUID(raw, "job")
	return JobID(u), err
}

// UnitUID is the printed identifier of a physical unit (carton, box, or
// strip). Minted by the allocator as <batch number>-<kind tag><sequence>.
type UnitUID string

func (u UnitUID) String() string { return string(u) }

// unitUIDPattern matches allocator output: uppercase alphanumeric batch
// number segments joined by hyphens, e.g. "BN2024A-C01-B003-S00017".
var unitUIDPattern = regexp.MustCompile(`^[A-Z0-9]+(-[A-Z0-9]+)+$`)

const maxUnitUIDLength = 64

// ParseUnitUID validates the lexical shape of a scanned identifier. It
// distinguishes "malformed" (invalid_input) from "unknown" (a store miss):
// the public verification surface relies on that distinction.
func ParseUnitUID(raw string) (UnitUID, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "unit identifier is required")
	}
	if len(raw) > maxUnitUIDLength {
		return "", dErrors.New(dErrors.CodeInvalidInput, "unit identifier exceeds maximum length")
	}
	if !unitUIDPattern.MatchString(raw) {
		return "", dErrors.New(dErrors.CodeInvalidInput, "unit identifier is malformed")
	}
	return UnitUID(raw), nil
}
