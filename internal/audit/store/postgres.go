package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"pharmatrace/internal/audit/models"
	"pharmatrace/pkg/domain"
	txcontext "pharmatrace/pkg/platform/tx"
)

// Postgres writes audit events into an outbox table. Append joins the
// caller's transaction when one is in the context, so an event commits or
// rolls back together with the mutation it records.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func (s *Postgres) conn(ctx context.Context) dbtx {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

func (s *Postgres) Append(ctx context.Context, event models.Event) error {
	query := `
		INSERT INTO audit_outbox (id, kind, actor, subject, detail, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	var actor any
	if event.Actor != nil {
		actor = uuid.UUID(*event.Actor)
	}
	_, err := s.conn(ctx).ExecContext(ctx, query,
		event.ID, string(event.Kind), actor, event.Subject, []byte(event.Detail), event.OccurredAt,
	)
	if err != nil {
		return fmt.Errorf("append audit event: %w", err)
	}
	return nil
}

func (s *Postgres) ListPending(ctx context.Context, limit int) ([]models.Event, error) {
	query := `
		SELECT id, kind, actor, subject, detail, occurred_at
		FROM audit_outbox WHERE published_at IS NULL
		ORDER BY occurred_at LIMIT $1
	`
	rows, err := s.conn(ctx).QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list pending audit events: %w", err)
	}
	defer rows.Close()

	var out []models.Event
	for rows.Next() {
		var (
			event  models.Event
			kind   string
			actor  sql.Null[uuid.UUID]
			detail []byte
		)
		if err := rows.Scan(&event.ID, &kind, &actor, &event.Subject, &detail, &event.OccurredAt); err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		event.Kind = models.Kind(kind)
		event.Detail = detail
		if actor.Valid {
			id := domain.PartyID(actor.V)
			event.Actor = &id
		}
		out = append(out, event)
	}
	return out, rows.Err()
}

func (s *Postgres) MarkPublished(ctx context.Context, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	raw := make([]uuid.UUID, len(ids))
	copy(raw, ids)
	query := `UPDATE audit_outbox SET published_at = now() WHERE id = ANY($1)`
	if _, err := s.conn(ctx).ExecContext(ctx, query, pq.Array(raw)); err != nil {
		return fmt.Errorf("mark audit events published: %w", err)
	}
	return nil
}
