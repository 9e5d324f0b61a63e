package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"pharmatrace/internal/platform/postgres"
	"pharmatrace/internal/printjob/models"
	"pharmatrace/pkg/domain"
	"pharmatrace/pkg/platform/sentinel"
	txcontext "pharmatrace/pkg/platform/tx"
)

const jobColumns = `id, batch_id, created_by, target_quantity, printed_quantity,
	strips_per_box, boxes_per_carton, machine_id, code_hash, code_redeemed,
	code_expires_at, status, created_at, updated_at`

// Postgres persists print jobs. Execute locks the row with NOWAIT so
// concurrent redemptions of the same code serialize, and exactly one wins.
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

func (s *Postgres) Create(ctx context.Context, job *models.PrintJob) error {
	query := `
		INSERT INTO print_jobs (` + jobColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`
	_, err := s.conn(ctx).ExecContext(ctx, query,
		uuid.UUID(job.ID), uuid.UUID(job.BatchID), uuid.UUID(job.CreatedBy),
		job.TargetQuantity, job.PrintedQuantity,
		job.Spec.StripsPerBox, job.Spec.BoxesPerCarton, job.MachineID,
		job.CodeHash, job.CodeRedeemed, job.CodeExpiresAt,
		string(job.Status), job.CreatedAt, job.UpdatedAt,
	)
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("create print job: %w", err)
	}
	return nil
}

func (s *Postgres) FindByID(ctx context.Context, id domain.JobID) (*models.PrintJob, error) {
	query := `SELECT ` + jobColumns + ` FROM print_jobs WHERE id = $1`
	return scanJob(s.conn(ctx).QueryRowContext(ctx, query, uuid.UUID(id)))
}

func (s *Postgres) Execute(ctx context.Context, id domain.JobID, validate func(*models.PrintJob) error, mutate func(*models.PrintJob)) (*models.PrintJob, error) {
	conn := s.conn(ctx)
	ownTx := false
	if _, inTx := txcontext.From(ctx); !inTx {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return nil, fmt.Errorf("begin print job tx: %w", err)
		}
		defer func() {
			if ownTx {
				_ = tx.Rollback()
			}
		}()
		conn = tx
		ownTx = true
	}

	query := `SELECT ` + jobColumns + ` FROM print_jobs WHERE id = $1 FOR UPDATE NOWAIT`
	job, err := scanJob(conn.QueryRowContext(ctx, query, uuid.UUID(id)))
	if err != nil {
		return nil, err
	}
	if err := validate(job); err != nil {
		return nil, err
	}
	mutate(job)

	update := `
		UPDATE print_jobs
		SET printed_quantity = $2, code_redeemed = $3, status = $4, updated_at = $5
		WHERE id = $1
	`
	if _, err := conn.ExecContext(ctx, update,
		uuid.UUID(id), job.PrintedQuantity, job.CodeRedeemed,
		string(job.Status), job.UpdatedAt,
	); err != nil {
		return nil, fmt.Errorf("update print job: %w", err)
	}

	if ownTx {
		if err := conn.(*sql.Tx).Commit(); err != nil {
			return nil, fmt.Errorf("commit print job tx: %w", err)
		}
		ownTx = false
	}
	return job, nil
}

func (s *Postgres) ListByBatch(ctx context.Context, batchID domain.BatchID) ([]*models.PrintJob, error) {
	query := `SELECT ` + jobColumns + ` FROM print_jobs WHERE batch_id = $1 ORDER BY created_at`
	rows, err := s.conn(ctx).QueryContext(ctx, query, uuid.UUID(batchID))
	if err != nil {
		return nil, fmt.Errorf("list print jobs: %w", err)
	}
	defer rows.Close()

	var out []*models.PrintJob
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, job)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (*models.PrintJob, error) {
	var (
		job                    models.PrintJob
		id, batchID, createdBy uuid.UUID
		status                 string
	)
	err := row.Scan(&id, &batchID, &createdBy,
		&job.TargetQuantity, &job.PrintedQuantity,
		&job.Spec.StripsPerBox, &job.Spec.BoxesPerCarton, &job.MachineID,
		&job.CodeHash, &job.CodeRedeemed, &job.CodeExpiresAt,
		&status, &job.CreatedAt, &job.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		if postgres.IsLockConflict(err) {
			return nil, sentinel.ErrConflict
		}
		return nil, fmt.Errorf("scan print job: %w", err)
	}
	job.ID = domain.JobID(id)
	job.BatchID = domain.BatchID(batchID)
	job.CreatedBy = domain.PartyID(createdBy)
	job.Status = models.Status(status)
	return &job, nil
}
