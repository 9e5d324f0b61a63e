package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"pharmatrace/internal/platform/postgres"
	"pharmatrace/internal/recall/models"
	"pharmatrace/pkg/domain"
	"pharmatrace/pkg/platform/sentinel"
	txcontext "pharmatrace/pkg/platform/tx"
)

const recallColumns = `id, batch_id, issued_by, reason, severity, action, status, created_at, updated_at`

// Postgres persists recall records. A partial unique index on
// (batch_id) WHERE status = 'ACTIVE' enforces one active recall per batch.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *Postgres) conn(ctx context.Context) dbtx {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

func (s *Postgres) Create(ctx context.Context, recall *models.Recall) error {
	query := `
		INSERT INTO recalls (` + recallColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := s.conn(ctx).ExecContext(ctx, query,
		uuid.UUID(recall.ID), uuid.UUID(recall.BatchID), uuid.UUID(recall.IssuedBy),
		recall.Reason, string(recall.Severity), string(recall.Action),
		string(recall.Status), recall.CreatedAt, recall.UpdatedAt,
	)
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("create recall: %w", err)
	}
	return nil
}

func (s *Postgres) FindByID(ctx context.Context, id domain.RecallID) (*models.Recall, error) {
	query := `SELECT ` + recallColumns + ` FROM recalls WHERE id = $1`
	return scanRecall(s.conn(ctx).QueryRowContext(ctx, query, uuid.UUID(id)))
}

func (s *Postgres) FindActiveByBatch(ctx context.Context, batchID domain.BatchID) (*models.Recall, error) {
	query := `SELECT ` + recallColumns + ` FROM recalls WHERE batch_id = $1 AND status = $2`
	return scanRecall(s.conn(ctx).QueryRowContext(ctx, query, uuid.UUID(batchID), string(models.StatusActive)))
}

func (s *Postgres) Execute(ctx context.Context, id domain.RecallID, validate func(*models.Recall) error, mutate func(*models.Recall)) (*models.Recall, error) {
	conn := s.conn(ctx)
	ownTx := false
	if _, inTx := txcontext.From(ctx); !inTx {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return nil, fmt.Errorf("begin recall tx: %w", err)
		}
		defer func() {
			if ownTx {
				_ = tx.Rollback()
			}
		}()
		conn = tx
		ownTx = true
	}

	query := `SELECT ` + recallColumns + ` FROM recalls WHERE id = $1 FOR UPDATE NOWAIT`
	recall, err := scanRecall(conn.QueryRowContext(ctx, query, uuid.UUID(id)))
	if err != nil {
		return nil, err
	}
	if err := validate(recall); err != nil {
		return nil, err
	}
	mutate(recall)

	update := `UPDATE recalls SET status = $2, updated_at = $3 WHERE id = $1`
	if _, err := conn.ExecContext(ctx, update,
		uuid.UUID(id), string(recall.Status), recall.UpdatedAt,
	); err != nil {
		return nil, fmt.Errorf("update recall: %w", err)
	}

	if ownTx {
		if err := conn.(*sql.Tx).Commit(); err != nil {
			return nil, fmt.Errorf("commit recall tx: %w", err)
		}
		ownTx = false
	}
	return recall, nil
}

func scanRecall(row *sql.Row) (*models.Recall, error) {
	var (
		recall                   models.Recall
		id, batchID, issuedBy    uuid.UUID
		severity, action, status string
	)
	err := row.Scan(&id, &batchID, &issuedBy, &recall.Reason,
		&severity, &action, &status, &recall.CreatedAt, &recall.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		if postgres.IsLockConflict(err) {
			return nil, sentinel.ErrConflict
		}
		return nil, fmt.Errorf("scan recall: %w", err)
	}
	recall.ID = domain.RecallID(id)
	recall.BatchID = domain.BatchID(batchID)
	recall.IssuedBy = domain.PartyID(issuedBy)
	recall.Severity = models.Severity(severity)
	recall.Action = models.ActionType(action)
	recall.Status = models.Status(status)
	return &recall, nil
}
