package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"pharmatrace/internal/platform/postgres"
	"pharmatrace/internal/transfer/models"
	"pharmatrace/pkg/domain"
	"pharmatrace/pkg/platform/sentinel"
	txcontext "pharmatrace/pkg/platform/tx"
)

const transferColumns = `id, batch_id, sender_id, receiver_id, quantity, unit_uids,
	status, purpose, invoice_no, total_value_cents, created_at, updated_at`

// Postgres persists transfers. Mutations go through Execute, which locks
// the row with NOWAIT so contention surfaces as a retryable conflict.
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

func (s *Postgres) Create(ctx context.Context, transfer *models.Transfer) error {
	query := `
		INSERT INTO transfers (` + transferColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	uids := make([]string, len(transfer.UnitUIDs))
	for i, uid := range transfer.UnitUIDs {
		uids[i] = string(uid)
	}
	_, err := s.conn(ctx).ExecContext(ctx, query,
		uuid.UUID(transfer.ID), uuid.UUID(transfer.BatchID),
		uuid.UUID(transfer.SenderID), uuid.UUID(transfer.ReceiverID),
		transfer.Quantity, pq.Array(uids),
		string(transfer.Status), string(transfer.Purpose),
		transfer.InvoiceNo, transfer.TotalValueCents,
		transfer.CreatedAt, transfer.UpdatedAt,
	)
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("create transfer: %w", err)
	}
	return nil
}

func (s *Postgres) FindByID(ctx context.Context, id domain.TransferID) (*models.Transfer, error) {
	query := `SELECT ` + transferColumns + ` FROM transfers WHERE id = $1`
	return scanTransfer(s.conn(ctx).QueryRowContext(ctx, query, uuid.UUID(id)))
}

// Execute locks the transfer row, validates, mutates, and writes back the
// status and updated_at in one transaction.
func (s *Postgres) Execute(ctx context.Context, id domain.TransferID, validate func(*models.Transfer) error, mutate func(*models.Transfer)) (*models.Transfer, error) {
	conn := s.conn(ctx)
	ownTx := false
	if _, inTx := txcontext.From(ctx); !inTx {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return nil, fmt.Errorf("begin transfer tx: %w", err)
		}
		defer func() {
			if ownTx {
				_ = tx.Rollback()
			}
		}()
		conn = tx
		ownTx = true
	}

	query := `SELECT ` + transferColumns + ` FROM transfers WHERE id = $1 FOR UPDATE NOWAIT`
	transfer, err := scanTransfer(conn.QueryRowContext(ctx, query, uuid.UUID(id)))
	if err != nil {
		return nil, err
	}
	if err := validate(transfer); err != nil {
		return nil, err
	}
	mutate(transfer)

	update := `UPDATE transfers SET status = $2, updated_at = $3 WHERE id = $1`
	if _, err := conn.ExecContext(ctx, update,
		uuid.UUID(id), string(transfer.Status), transfer.UpdatedAt,
	); err != nil {
		return nil, fmt.Errorf("update transfer: %w", err)
	}

	if ownTx {
		if err := conn.(*sql.Tx).Commit(); err != nil {
			return nil, fmt.Errorf("commit transfer tx: %w", err)
		}
		ownTx = false
	}
	return transfer, nil
}

func (s *Postgres) ListOutstandingByBatch(ctx context.Context, batchID domain.BatchID) ([]*models.Transfer, error) {
	query := `
		SELECT ` + transferColumns + ` FROM transfers
		WHERE batch_id = $1 AND status = $2 ORDER BY created_at
	`
	return s.list(ctx, query, uuid.UUID(batchID), string(models.StatusInTransit))
}

func (s *Postgres) ListByParty(ctx context.Context, partyID domain.PartyID) ([]*models.Transfer, error) {
	query := `
		SELECT ` + transferColumns + ` FROM transfers
		WHERE sender_id = $1 OR receiver_id = $1 ORDER BY created_at
	`
	return s.list(ctx, query, uuid.UUID(partyID))
}

func (s *Postgres) list(ctx context.Context, query string, args ...any) ([]*models.Transfer, error) {
	rows, err := s.conn(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list transfers: %w", err)
	}
	defer rows.Close()

	var out []*models.Transfer
	for rows.Next() {
		transfer, err := scanTransfer(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, transfer)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransfer(row rowScanner) (*models.Transfer, error) {
	var (
		transfer                          models.Transfer
		id, batchID, senderID, receiverID uuid.UUID
		status, purpose                   string
		uids                              pq.StringArray
	)
	err := row.Scan(&id, &batchID, &senderID, &receiverID,
		&transfer.Quantity, &uids, &status, &purpose,
		&transfer.InvoiceNo, &transfer.TotalValueCents,
		&transfer.CreatedAt, &transfer.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		if postgres.IsLockConflict(err) {
			return nil, sentinel.ErrConflict
		}
		return nil, fmt.Errorf("scan transfer: %w", err)
	}
	transfer.ID = domain.TransferID(id)
	transfer.BatchID = domain.BatchID(batchID)
	transfer.SenderID = domain.PartyID(senderID)
	transfer.ReceiverID = domain.PartyID(receiverID)
	transfer.Status = models.Status(status)
	transfer.Purpose = models.Purpose(purpose)
	for _, uid := range uids {
		transfer.UnitUIDs = append(transfer.UnitUIDs, domain.UnitUID(uid))
	}
	return &transfer, nil
}
