package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"pharmatrace/internal/party/models"
	"pharmatrace/internal/platform/postgres"
	"pharmatrace/pkg/domain"
	"pharmatrace/pkg/platform/sentinel"
)

// Postgres persists parties.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

func (s *Postgres) Create(ctx context.Context, party *models.Party) error {
	query := `
		INSERT INTO parties (id, name, role, created_at)
		VALUES ($1, $2, $3, $4)
	`
	_, err := s.db.ExecContext(ctx, query,
		uuid.UUID(party.ID), party.Name, string(party.Role), party.CreatedAt,
	)
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert party: %w", err)
	}
	return nil
}

func (s *Postgres) FindByID(ctx context.Context, id domain.PartyID) (*models.Party, error) {
	query := `SELECT id, name, role, created_at FROM parties WHERE id = $1`
	return s.scanParty(s.db.QueryRowContext(ctx, query, uuid.UUID(id)))
}

func (s *Postgres) ListByRole(ctx context.Context, role models.Role) ([]*models.Party, error) {
	query := `SELECT id, name, role, created_at FROM parties WHERE role = $1 ORDER BY created_at`
	rows, err := s.db.QueryContext(ctx, query, string(role))
	if err != nil {
		return nil, fmt.Errorf("list parties by role: %w", err)
	}
	defer rows.Close()

	var out []*models.Party
	for rows.Next() {
		party, err := s.scanPartyRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, party)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (s *Postgres) scanParty(row *sql.Row) (*models.Party, error) {
	party, err := s.scanPartyRow(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, err
	}
	return party, nil
}

func (s *Postgres) scanPartyRow(row rowScanner) (*models.Party, error) {
	var (
		id    uuid.UUID
		party models.Party
		role  string
	)
	if err := row.Scan(&id, &party.Name, &role, &party.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan party: %w", err)
	}
	party.ID = domain.PartyID(id)
	party.Role = models.Role(role)
	return &party, nil
}
