package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"pharmatrace/internal/batch/models"
	"pharmatrace/internal/platform/postgres"
	"pharmatrace/pkg/domain"
	"pharmatrace/pkg/platform/sentinel"
	txcontext "pharmatrace/pkg/platform/tx"
)

// Postgres persists batches and holdings. Mutations that must be atomic
// with the transfer engine pick up the engine's transaction from context;
// otherwise each call runs standalone.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *Postgres) conn(ctx context.Context) dbtx {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

const batchColumns = `id, product_id, manufacturer_id, batch_number, mfg_date, exp_date,
	total_quantity, current_stock, unit_price_cents, status, created_at, updated_at`

func (s *Postgres) Create(ctx context.Context, batch *models.Batch) error {
	query := `
		INSERT INTO batches (` + batchColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	_, err := s.conn(ctx).ExecContext(ctx, query,
		uuid.UUID(batch.ID), uuid.UUID(batch.ProductID), uuid.UUID(batch.ManufacturerID),
		batch.BatchNumber, batch.MfgDate, batch.ExpDate,
		batch.TotalQuantity, batch.CurrentStock, batch.UnitPriceCents,
		string(batch.Status), batch.CreatedAt, batch.UpdatedAt,
	)
	if err != nil {
		// Unique index on (manufacturer_id, lower(batch_number)).
		if postgres.IsUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert batch: %w", err)
	}
	return nil
}

func (s *Postgres) FindByID(ctx context.Context, id domain.BatchID) (*models.Batch, error) {
	query := `SELECT ` + batchColumns + ` FROM batches WHERE id = $1`
	return scanBatch(s.conn(ctx).QueryRowContext(ctx, query, uuid.UUID(id)))
}

func (s *Postgres) FindByNumber(ctx context.Context, batchNumber string) (*models.Batch, error) {
	query := `SELECT ` + batchColumns + ` FROM batches WHERE lower(batch_number) = lower($1) LIMIT 1`
	return scanBatch(s.conn(ctx).QueryRowContext(ctx, query, batchNumber))
}

// Execute loads the batch under FOR UPDATE NOWAIT, runs validate, applies
// mutate, and writes the row back. A lock held by a concurrent transfer
// surfaces immediately as ErrConflict so the caller can retry instead of
// blocking indefinitely.
func (s *Postgres) Execute(ctx context.Context, id domain.BatchID, validate func(*models.Batch) error, mutate func(*models.Batch)) (*models.Batch, error) {
	conn := s.conn(ctx)
	ownTx := false
	if _, inTx := txcontext.From(ctx); !inTx {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return nil, fmt.Errorf("begin batch tx: %w", err)
		}
		defer func() {
			if ownTx {
				_ = tx.Rollback()
			}
		}()
		conn = tx
		ownTx = true
	}

	query := `SELECT ` + batchColumns + ` FROM batches WHERE id = $1 FOR UPDATE NOWAIT`
	batch, err := scanBatch(conn.QueryRowContext(ctx, query, uuid.UUID(id)))
	if err != nil {
		if postgres.IsLockConflict(err) {
			return nil, sentinel.ErrConflict
		}
		return nil, err
	}

	if err := validate(batch); err != nil {
		return nil, err
	}
	mutate(batch)

	update := `
		UPDATE batches
		SET current_stock = $2, status = $3, updated_at = $4
		WHERE id = $1
	`
	if _, err := conn.ExecContext(ctx, update,
		uuid.UUID(batch.ID), batch.CurrentStock, string(batch.Status), batch.UpdatedAt,
	); err != nil {
		return nil, fmt.Errorf("update batch: %w", err)
	}

	if ownTx {
		if err := conn.(*sql.Tx).Commit(); err != nil {
			return nil, fmt.Errorf("commit batch tx: %w", err)
		}
		ownTx = false
	}
	return batch, nil
}

func (s *Postgres) GetHolding(ctx context.Context, batchID domain.BatchID, partyID domain.PartyID) (int, error) {
	query := `SELECT quantity FROM holdings WHERE batch_id = $1 AND party_id = $2`
	var quantity int
	err := s.conn(ctx).QueryRowContext(ctx, query, uuid.UUID(batchID), uuid.UUID(partyID)).Scan(&quantity)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("get holding: %w", err)
	}
	return quantity, nil
}

func (s *Postgres) CreditHolding(ctx context.Context, batchID domain.BatchID, partyID domain.PartyID, quantity int, now time.Time) error {
	query := `
		INSERT INTO holdings (batch_id, party_id, quantity, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (batch_id, party_id) DO UPDATE SET
			quantity = holdings.quantity + EXCLUDED.quantity,
			updated_at = EXCLUDED.updated_at
	`
	if _, err := s.conn(ctx).ExecContext(ctx, query,
		uuid.UUID(batchID), uuid.UUID(partyID), quantity, now,
	); err != nil {
		return fmt.Errorf("credit holding: %w", err)
	}
	return nil
}

// DebitHolding decrements only when the holding covers the quantity; the
// guard rides in the WHERE clause so the check and decrement are one
// statement.
func (s *Postgres) DebitHolding(ctx context.Context, batchID domain.BatchID, partyID domain.PartyID, quantity int, now time.Time) error {
	query := `
		UPDATE holdings
		SET quantity = quantity - $3, updated_at = $4
		WHERE batch_id = $1 AND party_id = $2 AND quantity >= $3
	`
	res, err := s.conn(ctx).ExecContext(ctx, query,
		uuid.UUID(batchID), uuid.UUID(partyID), quantity, now,
	)
	if err != nil {
		if postgres.IsLockConflict(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("debit holding: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("debit holding rows affected: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrInvalidState
	}
	return nil
}

func (s *Postgres) HoldersOf(ctx context.Context, batchID domain.BatchID) ([]domain.PartyID, error) {
	query := `SELECT party_id FROM holdings WHERE batch_id = $1 AND quantity > 0`
	rows, err := s.conn(ctx).QueryContext(ctx, query, uuid.UUID(batchID))
	if err != nil {
		return nil, fmt.Errorf("list holders: %w", err)
	}
	defer rows.Close()

	var out []domain.PartyID
	for rows.Next() {
		var party uuid.UUID
		if err := rows.Scan(&party); err != nil {
			return nil, fmt.Errorf("scan holder: %w", err)
		}
		out = append(out, domain.PartyID(party))
	}
	return out, rows.Err()
}

func scanBatch(row *sql.Row) (*models.Batch, error) {
	var (
		id, productID, manufacturerID uuid.UUID
		batch                         models.Batch
		status                        string
	)
	err := row.Scan(
		&id, &productID, &manufacturerID, &batch.BatchNumber,
		&batch.MfgDate, &batch.ExpDate, &batch.TotalQuantity, &batch.CurrentStock,
		&batch.UnitPriceCents, &status, &batch.CreatedAt, &batch.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, err
	}
	batch.ID = domain.BatchID(id)
	batch.ProductID = domain.ProductID(productID)
	batch.ManufacturerID = domain.PartyID(manufacturerID)
	batch.Status = models.Status(status)
	return &batch, nil
}
