package models

import (
	"time"

	"pharmatrace/internal/allocator"
	"pharmatrace/pkg/domain"
	dErrors "pharmatrace/pkg/domain-errors"
)

// Status is a print job's lifecycle state. CANCELLED and COMPLETED are
// terminal.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusPrinting  Status = "PRINTING"
	StatusPaused    Status = "PAUSED"
	StatusCancelled Status = "CANCELLED"
	StatusCompleted Status = "COMPLETED"
)

// Action is an operator-requested transition.
type Action string

const (
	ActionPause    Action = "PAUSE"
	ActionResume   Action = "RESUME"
	ActionCancel   Action = "CANCEL"
	ActionComplete Action = "COMPLETE"
)

func (a Action) Valid() bool {
	switch a {
	case ActionPause, ActionResume, ActionCancel, ActionComplete:
		return true
	}
	return false
}

// PrintJob delegates the physical printing of a batch's identifiers to an
// external print bureau. The bureau authenticates with a single-use signed
// access code; only its bcrypt hash is stored.
//
// Invariants:
//   - PrintedQuantity is monotonically non-decreasing and never exceeds
//     TargetQuantity
//   - the access code redeems exactly once, and only while the job is
//     PENDING and the code unexpired
//   - COMPLETED requires PrintedQuantity == TargetQuantity
type PrintJob struct {
	ID              domain.JobID       `json:"id"`
	BatchID         domain.BatchID     `json:"batch_id"`
	CreatedBy       domain.PartyID     `json:"created_by"`
	TargetQuantity  int                `json:"target_quantity"`
	PrintedQuantity int                `json:"printed_quantity"`
	Spec            allocator.PackSpec `json:"pack_spec"`
	MachineID       string             `json:"machine_id,omitempty"`
	CodeHash        []byte             `json:"-"`
	CodeRedeemed    bool               `json:"code_redeemed"`
	CodeExpiresAt   time.Time          `json:"code_expires_at"`
	Status          Status             `json:"status"`
	CreatedAt       time.Time          `json:"created_at"`
	UpdatedAt       time.Time          `json:"updated_at"`
}

func NewPrintJob(id domain.JobID, batchID domain.BatchID, createdBy domain.PartyID, target int, spec allocator.PackSpec, machineID string, codeHash []byte, codeExpiresAt, now time.Time) (*PrintJob, error) {
	if target <= 0 {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "target quantity must be positive")
	}
	if spec.StripsPerBox <= 0 || spec.BoxesPerCarton <= 0 {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "pack spec dimensions must be positive")
	}
	if !codeExpiresAt.After(now) {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "access code expiry must be in the future")
	}
	return &PrintJob{
		ID:             id,
		BatchID:        batchID,
		CreatedBy:      createdBy,
		TargetQuantity: target,
		Spec:           spec,
		MachineID:      machineID,
		CodeHash:       codeHash,
		CodeExpiresAt:  codeExpiresAt,
		Status:         StatusPending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}

// IsTerminal reports whether the job accepts further transitions.
func (j *PrintJob) IsTerminal() bool {
	return j.Status == StatusCancelled || j.Status == StatusCompleted
}

// CanRedeem guards access code redemption: single use, unexpired, and only
// from PENDING.
func (j *PrintJob) CanRedeem(now time.Time) error {
	if j.IsTerminal() {
		return dErrors.Newf(dErrors.CodeAlreadyTerminal, "job is already %s", j.Status)
	}
	if j.CodeRedeemed {
		return dErrors.New(dErrors.CodeInvalidInput, "access code has already been redeemed")
	}
	if now.After(j.CodeExpiresAt) {
		return dErrors.New(dErrors.CodeExpired, "access code has expired")
	}
	if j.Status != StatusPending {
		return dErrors.Newf(dErrors.CodeIllegalTransition, "job is %s, redemption requires PENDING", j.Status)
	}
	return nil
}

// ApplyRedeem consumes the code and starts printing.
func (j *PrintJob) ApplyRedeem(now time.Time) {
	j.CodeRedeemed = true
	j.Status = StatusPrinting
	j.UpdatedAt = now
}

// CanRecordProgress guards progress updates: only while PRINTING, never
// backward, never past the target. Re-reporting the current count is a
// legal no-op so the bureau can heartbeat without tracking deltas.
func (j *PrintJob) CanRecordProgress(printed int) error {
	if j.IsTerminal() {
		return dErrors.Newf(dErrors.CodeAlreadyTerminal, "job is already %s", j.Status)
	}
	if j.Status != StatusPrinting {
		return dErrors.Newf(dErrors.CodeIllegalTransition, "job is %s, progress requires PRINTING", j.Status)
	}
	if printed < j.PrintedQuantity {
		return dErrors.Newf(dErrors.CodeInvalidInput, "printed quantity must not decrease below %d", j.PrintedQuantity)
	}
	if printed > j.TargetQuantity {
		return dErrors.Newf(dErrors.CodeExceedsTarget, "printed %d exceeds target %d", printed, j.TargetQuantity)
	}
	return nil
}

func (j *PrintJob) ApplyRecordProgress(printed int, now time.Time) {
	j.PrintedQuantity = printed
	j.UpdatedAt = now
}

// CanTransition enforces the legality matrix:
//
//	PAUSE     PENDING | PRINTING -> PAUSED
//	RESUME    PAUSED -> PRINTING if the code was redeemed, else PENDING
//	CANCEL    PENDING | PRINTING | PAUSED -> CANCELLED
//	COMPLETE  PRINTING -> COMPLETED, printed == target
//
// Pausing before redemption holds the job administratively; the code
// cannot be redeemed until the job is resumed back to PENDING.
func (j *PrintJob) CanTransition(action Action) error {
	if j.IsTerminal() {
		return dErrors.Newf(dErrors.CodeAlreadyTerminal, "job is already %s", j.Status)
	}
	switch action {
	case ActionPause:
		if j.Status != StatusPrinting && j.Status != StatusPending {
			return dErrors.Newf(dErrors.CodeIllegalTransition, "cannot pause a %s job", j.Status)
		}
	case ActionResume:
		if j.Status != StatusPaused {
			return dErrors.Newf(dErrors.CodeIllegalTransition, "cannot resume a %s job", j.Status)
		}
	case ActionCancel:
		// Any non-terminal state cancels.
	case ActionComplete:
		if j.Status != StatusPrinting {
			return dErrors.Newf(dErrors.CodeIllegalTransition, "cannot complete a %s job", j.Status)
		}
		if j.PrintedQuantity != j.TargetQuantity {
			return dErrors.Newf(dErrors.CodeInvalidInput, "printed %d of %d, completion requires the full target", j.PrintedQuantity, j.TargetQuantity)
		}
	default:
		return dErrors.New(dErrors.CodeInvalidInput, "unknown job action")
	}
	return nil
}

func (j *PrintJob) ApplyTransition(action Action, now time.Time) {
	switch action {
	case ActionPause:
		j.Status = StatusPaused
	case ActionResume:
		if j.CodeRedeemed {
			j.Status = StatusPrinting
		} else {
			j.Status = StatusPending
		}
	case ActionCancel:
		j.Status = StatusCancelled
	case ActionComplete:
		j.Status = StatusCompleted
	}
	j.UpdatedAt = now
}
