package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"pharmatrace/internal/audit/models"
)

// Sink receives drained outbox events. The kafka publisher is the
// production sink.
type Sink interface {
	Publish(ctx context.Context, events []models.Event) error
}

// Outbox is the pending side of the audit store.
type Outbox interface {
	ListPending(ctx context.Context, limit int) ([]models.Event, error)
	MarkPublished(ctx context.Context, ids []uuid.UUID) error
}

const (
	defaultDrainInterval = 2 * time.Second
	drainBatchSize       = 100
)

// Worker drains the audit outbox into the sink. Events stay pending until
// the sink accepts them, so a sink outage delays publication but never
// loses the trail.
type Worker struct {
	outbox   Outbox
	sink     Sink
	logger   *slog.Logger
	interval time.Duration
}

func New(outbox Outbox, sink Sink, logger *slog.Logger) *Worker {
	return &Worker{outbox: outbox, sink: sink, logger: logger, interval: defaultDrainInterval}
}

func (w *Worker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := w.drain(ctx); err != nil {
				w.logger.Error("audit outbox drain failed", "error", err)
			}
		}
	}
}

func (w *Worker) drain(ctx context.Context) error {
	for {
		events, err := w.outbox.ListPending(ctx, drainBatchSize)
		if err != nil {
			return err
		}
		if len(events) == 0 {
			return nil
		}
		if err := w.sink.Publish(ctx, events); err != nil {
			return err
		}
		ids := make([]uuid.UUID, len(events))
		for i, event := range events {
			ids[i] = event.ID
		}
		if err := w.outbox.MarkPublished(ctx, ids); err != nil {
			return err
		}
		if len(events) < drainBatchSize {
			return nil
		}
	}
}
