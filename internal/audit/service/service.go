package service

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/google/uuid"

	"pharmatrace/internal/audit/models"
	"pharmatrace/pkg/domain"
	"pharmatrace/pkg/requestcontext"
)

// Store persists audit events. Append must respect a transaction in the
// context so events commit with the mutation they record.
type Store interface {
	Append(ctx context.Context, event models.Event) error
	ListPending(ctx context.Context, limit int) ([]models.Event, error)
	MarkPublished(ctx context.Context, ids []uuid.UUID) error
}

// Recorder is the port engine services emit through. A nil *Trail is a
// valid no-op recorder.
type Recorder interface {
	Record(ctx context.Context, kind models.Kind, actor *domain.PartyID, subject string, detail any)
}

// Trail is the append side of the audit pipeline. Recording never fails
// the business operation: marshal or store errors are logged and dropped.
type Trail struct {
	store  Store
	logger *slog.Logger
}

func New(store Store, logger *slog.Logger) *Trail {
	return &Trail{store: store, logger: logger}
}

func (t *Trail) Record(ctx context.Context, kind models.Kind, actor *domain.PartyID, subject string, detail any) {
	if t == nil {
		return
	}
	var raw json.RawMessage
	if detail != nil {
		data, err := json.Marshal(detail)
		if err != nil {
			t.logger.Warn("audit detail not serializable, recording without it",
				"kind", string(kind), "subject", subject, "error", err)
		} else {
			raw = data
		}
	}
	event := models.Event{
		ID:         uuid.New(),
		Kind:       kind,
		Actor:      actor,
		Subject:    subject,
		Detail:     raw,
		OccurredAt: requestcontext.Now(ctx),
	}
	if err := t.store.Append(ctx, event); err != nil {
		t.logger.Error("audit event dropped", "kind", string(kind), "subject", subject, "error", err)
	}
}
