package models

import (
	"time"

	"pharmatrace/pkg/domain"
	dErrors "pharmatrace/pkg/domain-errors"
)

// Status is a recall's lifecycle state.
type Status string

const (
	StatusActive Status = "ACTIVE"
	StatusClosed Status = "CLOSED"
)

// Severity grades how urgently holders must act.
type Severity string

const (
	SeverityLow      Severity = "LOW"
	SeverityMedium   Severity = "MEDIUM"
	SeverityCritical Severity = "CRITICAL"
)

func (s Severity) Valid() bool {
	return s == SeverityLow || s == SeverityMedium || s == SeverityCritical
}

// ActionType tells holders what to do with affected stock.
type ActionType string

const (
	ActionReturn  ActionType = "RETURN"
	ActionDestroy ActionType = "DESTROY"
)

func (a ActionType) Valid() bool {
	return a == ActionReturn || a == ActionDestroy
}

// Recall is the canonical record of a batch recall. One batch has at most
// one recall; the batch's RECALLED status and this record are created in
// the same operation.
type Recall struct {
	ID        domain.RecallID `json:"id"`
	BatchID   domain.BatchID  `json:"batch_id"`
	IssuedBy  domain.PartyID  `json:"issued_by"`
	Reason    string          `json:"reason"`
	Severity  Severity        `json:"severity"`
	Action    ActionType      `json:"action"`
	Status    Status          `json:"status"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

func NewRecall(id domain.RecallID, batchID domain.BatchID, issuedBy domain.PartyID, reason string, severity Severity, action ActionType, now time.Time) (*Recall, error) {
	if reason == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "recall reason is required")
	}
	if !severity.Valid() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "severity must be LOW, MEDIUM, or CRITICAL")
	}
	if !action.Valid() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "action must be RETURN or DESTROY")
	}
	return &Recall{
		ID:        id,
		BatchID:   batchID,
		IssuedBy:  issuedBy,
		Reason:    reason,
		Severity:  severity,
		Action:    action,
		Status:    StatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// CanClose guards the single forward transition ACTIVE -> CLOSED.
func (r *Recall) CanClose() error {
	if r.Status == StatusClosed {
		return dErrors.New(dErrors.CodeIllegalTransition, "recall is already closed")
	}
	return nil
}

func (r *Recall) ApplyClose(now time.Time) {
	r.Status = StatusClosed
	r.UpdatedAt = now
}
