package service

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"pharmatrace/internal/audit/models"
	"pharmatrace/internal/audit/store"
)

func TestTrailRecordsInAppendOrder(t *testing.T) {
	ctx := context.Background()
	mem := store.NewInMemory()
	trail := New(mem, slog.Default())

	trail.Record(ctx, models.KindBatchCreated, nil, "batch:BN1", map[string]any{"quantity": 100})
	trail.Record(ctx, models.KindTransferDispatched, nil, "transfer:t1", nil)
	trail.Record(ctx, models.KindTransferAcknowledged, nil, "transfer:t1", nil)

	events, err := mem.All(ctx)
	require.NoError(t, err)
	require.Len(t, events, 3)
	require.Equal(t, models.KindBatchCreated, events[0].Kind)
	require.Equal(t, models.KindTransferAcknowledged, events[2].Kind)
	require.JSONEq(t, `{"quantity":100}`, string(events[0].Detail))
}

func TestTrailUnserializableDetailStillRecords(t *testing.T) {
	ctx := context.Background()
	mem := store.NewInMemory()
	trail := New(mem, slog.Default())

	trail.Record(ctx, models.KindUnitSold, nil, "unit:U1", make(chan int))

	events, err := mem.All(ctx)
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.Empty(t, events[0].Detail)
}

func TestNilTrailIsNoOp(t *testing.T) {
	var trail *Trail
	trail.Record(context.Background(), models.KindUnitSold, nil, "unit:U1", nil)
}
