package worker

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"pharmatrace/internal/audit/models"
	"pharmatrace/internal/audit/store"
)

type captureSink struct {
	events []models.Event
}

func (c *captureSink) Publish(_ context.Context, events []models.Event) error {
	c.events = append(c.events, events...)
	return nil
}

func TestDrainPublishesAndMarks(t *testing.T) {
	ctx := context.Background()
	outbox := store.NewInMemory()
	for i := 0; i < 3; i++ {
		require.NoError(t, outbox.Append(ctx, models.Event{
			ID: uuid.New(), Kind: models.KindUnitsMinted, Subject: "batch:BN1", OccurredAt: time.Now(),
		}))
	}

	sink := &captureSink{}
	w := New(outbox, sink, slog.Default())
	require.NoError(t, w.drain(ctx))
	require.Len(t, sink.events, 3)

	// A second drain finds nothing pending.
	require.NoError(t, w.drain(ctx))
	require.Len(t, sink.events, 3)
}
