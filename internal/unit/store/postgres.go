package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"pharmatrace/internal/platform/postgres"
	"pharmatrace/internal/unit/models"
	"pharmatrace/pkg/domain"
	"pharmatrace/pkg/platform/sentinel"
	txcontext "pharmatrace/pkg/platform/tx"
)

// Postgres persists units plus a dedicated append-only custody event table.
// History is never read-modify-written as a blob: appends are single-row
// inserts, so concurrent appends cannot overwrite each other.
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

// MintBatch bulk-inserts freshly minted units in one round trip.
func (s *Postgres) MintBatch(ctx context.Context, units []*models.Unit) error {
	if len(units) == 0 {
		return nil
	}

	uids := make([]string, len(units))
	kinds := make([]string, len(units))
	parents := make([]string, len(units))
	for i, unit := range units {
		uids[i] = string(unit.UID)
		kinds[i] = string(unit.Kind)
		parents[i] = string(unit.ParentUID)
	}

	first := units[0]
	query := `
		INSERT INTO units (uid, batch_id, kind, parent_uid, custodian_id, status, created_at)
		SELECT u.uid, $4, u.kind, NULLIF(u.parent_uid, ''), $5, $6, $7
		FROM unnest($1::text[], $2::text[], $3::text[]) AS u(uid, kind, parent_uid)
	`
	_, err := s.conn(ctx).ExecContext(ctx, query,
		pq.Array(uids), pq.Array(kinds), pq.Array(parents),
		uuid.UUID(first.BatchID), uuid.UUID(*first.CustodianID),
		string(models.StatusMinted), first.CreatedAt,
	)
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("mint units: %w", err)
	}
	return nil
}

func (s *Postgres) FindByUID(ctx context.Context, uid domain.UnitUID) (*models.Unit, error) {
	return s.findByUID(ctx, s.conn(ctx), uid, false)
}

// AppendEvent appends one custody event and refreshes the cached
// custodian/status in the same transaction. The unit row is locked with
// NOWAIT so a contended unit surfaces as a retryable conflict instead of
// an indefinite wait.
func (s *Postgres) AppendEvent(ctx context.Context, uid domain.UnitUID, event models.CustodyEvent) (*models.Unit, error) {
	conn := s.conn(ctx)
	ownTx := false
	if _, inTx := txcontext.From(ctx); !inTx {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return nil, fmt.Errorf("begin custody event tx: %w", err)
		}
		defer func() {
			if ownTx {
				_ = tx.Rollback()
			}
		}()
		conn = tx
		ownTx = true
	}

	unit, err := s.findByUID(ctx, conn, uid, true)
	if err != nil {
		return nil, err
	}
	if err := unit.CanAppend(); err != nil {
		return nil, err
	}

	insert := `
		INSERT INTO unit_custody_events (unit_uid, from_party, to_party, status, occurred_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	if _, err := conn.ExecContext(ctx, insert,
		string(uid), partyArg(event.From), partyArg(event.To),
		string(event.Status), event.Timestamp,
	); err != nil {
		return nil, fmt.Errorf("append custody event: %w", err)
	}

	update := `UPDATE units SET custodian_id = $2, status = $3 WHERE uid = $1`
	if _, err := conn.ExecContext(ctx, update,
		string(uid), partyArg(event.To), string(event.Status),
	); err != nil {
		return nil, fmt.Errorf("update unit custody cache: %w", err)
	}

	unit.ApplyEvent(event)

	if ownTx {
		if err := conn.(*sql.Tx).Commit(); err != nil {
			return nil, fmt.Errorf("commit custody event tx: %w", err)
		}
		ownTx = false
	}
	return unit, nil
}

func (s *Postgres) ListByBatch(ctx context.Context, batchID domain.BatchID) ([]*models.Unit, error) {
	query := `
		SELECT uid, batch_id, kind, COALESCE(parent_uid, ''), custodian_id, status, created_at
		FROM units WHERE batch_id = $1 ORDER BY uid
	`
	rows, err := s.conn(ctx).QueryContext(ctx, query, uuid.UUID(batchID))
	if err != nil {
		return nil, fmt.Errorf("list units by batch: %w", err)
	}
	defer rows.Close()

	var out []*models.Unit
	for rows.Next() {
		unit, err := scanUnit(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, unit)
	}
	return out, rows.Err()
}

func (s *Postgres) CustodiansOf(ctx context.Context, batchID domain.BatchID) ([]domain.PartyID, error) {
	query := `
		SELECT DISTINCT custodian_id FROM units
		WHERE batch_id = $1 AND custodian_id IS NOT NULL
	`
	rows, err := s.conn(ctx).QueryContext(ctx, query, uuid.UUID(batchID))
	if err != nil {
		return nil, fmt.Errorf("list custodians: %w", err)
	}
	defer rows.Close()

	var out []domain.PartyID
	for rows.Next() {
		var custodian uuid.UUID
		if err := rows.Scan(&custodian); err != nil {
			return nil, fmt.Errorf("scan custodian: %w", err)
		}
		out = append(out, domain.PartyID(custodian))
	}
	return out, rows.Err()
}

func (s *Postgres) findByUID(ctx context.Context, conn dbtx, uid domain.UnitUID, forUpdate bool) (*models.Unit, error) {
	query := `
		SELECT uid, batch_id, kind, COALESCE(parent_uid, ''), custodian_id, status, created_at
		FROM units WHERE uid = $1
	`
	if forUpdate {
		query += ` FOR UPDATE NOWAIT`
	}

	rows, err := conn.QueryContext(ctx, query, string(uid))
	if err != nil {
		if postgres.IsLockConflict(err) {
			return nil, sentinel.ErrConflict
		}
		return nil, fmt.Errorf("find unit: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			if postgres.IsLockConflict(err) {
				return nil, sentinel.ErrConflict
			}
			return nil, fmt.Errorf("find unit: %w", err)
		}
		return nil, sentinel.ErrNotFound
	}
	unit, err := scanUnit(rows)
	if err != nil {
		return nil, err
	}
	if err := rows.Close(); err != nil {
		return nil, fmt.Errorf("find unit: %w", err)
	}

	history, err := s.loadHistory(ctx, conn, uid)
	if err != nil {
		return nil, err
	}
	unit.History = history
	return unit, nil
}

func (s *Postgres) loadHistory(ctx context.Context, conn dbtx, uid domain.UnitUID) ([]models.CustodyEvent, error) {
	query := `
		SELECT from_party, to_party, status, occurred_at
		FROM unit_custody_events WHERE unit_uid = $1 ORDER BY id
	`
	rows, err := conn.QueryContext(ctx, query, string(uid))
	if err != nil {
		return nil, fmt.Errorf("load custody history: %w", err)
	}
	defer rows.Close()

	var history []models.CustodyEvent
	for rows.Next() {
		var (
			from, to sql.Null[uuid.UUID]
			event    models.CustodyEvent
			status   string
		)
		if err := rows.Scan(&from, &to, &status, &event.Timestamp); err != nil {
			return nil, fmt.Errorf("scan custody event: %w", err)
		}
		event.Status = models.Status(status)
		event.From = partyPtr(from)
		event.To = partyPtr(to)
		history = append(history, event)
	}
	return history, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUnit(row rowScanner) (*models.Unit, error) {
	var (
		uid, kind, parent string
		batchID           uuid.UUID
		custodian         sql.Null[uuid.UUID]
		status            string
		unit              models.Unit
	)
	if err := row.Scan(&uid, &batchID, &kind, &parent, &custodian, &status, &unit.CreatedAt); err != nil {
		return nil, fmt.Errorf("scan unit: %w", err)
	}
	unit.UID = domain.UnitUID(uid)
	unit.BatchID = domain.BatchID(batchID)
	unit.Kind = domain.UnitKind(kind)
	unit.ParentUID = domain.UnitUID(parent)
	unit.Status = models.Status(status)
	unit.CustodianID = partyPtr(custodian)
	return &unit, nil
}

func partyArg(id *domain.PartyID) any {
	if id == nil {
		return nil
	}
	return uuid.UUID(*id)
}

func partyPtr(v sql.Null[uuid.UUID]) *domain.PartyID {
	if !v.Valid {
		return nil
	}
	id := domain.PartyID(v.V)
	return &id
}
