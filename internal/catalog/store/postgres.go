package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"pharmatrace/internal/catalog/models"
	"pharmatrace/pkg/domain"
	"pharmatrace/pkg/platform/sentinel"
)

// Postgres persists the product catalog.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

func (s *Postgres) Create(ctx context.Context, product *models.Product) error {
	query := `
		INSERT INTO products (id, manufacturer_id, name, generic_name, dosage_form, strength, base_price_cents, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := s.db.ExecContext(ctx, query,
		uuid.UUID(product.ID), uuid.UUID(product.ManufacturerID),
		product.Name, product.GenericName, product.DosageForm, product.Strength,
		product.BasePriceCents, product.CreatedAt, product.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert product: %w", err)
	}
	return nil
}

func (s *Postgres) FindByID(ctx context.Context, id domain.ProductID) (*models.Product, error) {
	query := `
		SELECT id, manufacturer_id, name, generic_name, dosage_form, strength, base_price_cents, created_at, updated_at
		FROM products WHERE id = $1
	`
	var (
		pid, mid uuid.UUID
		product  models.Product
	)
	err := s.db.QueryRowContext(ctx, query, uuid.UUID(id)).Scan(
		&pid, &mid, &product.Name, &product.GenericName, &product.DosageForm,
		&product.Strength, &product.BasePriceCents, &product.CreatedAt, &product.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find product: %w", err)
	}
	product.ID = domain.ProductID(pid)
	product.ManufacturerID = domain.PartyID(mid)
	return &product, nil
}

func (s *Postgres) Update(ctx context.Context, product *models.Product) error {
	query := `
		UPDATE products
		SET name = $2, generic_name = $3, dosage_form = $4, strength = $5, base_price_cents = $6, updated_at = $7
		WHERE id = $1
	`
	res, err := s.db.ExecContext(ctx, query,
		uuid.UUID(product.ID), product.Name, product.GenericName,
		product.DosageForm, product.Strength, product.BasePriceCents, product.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update product: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update product rows affected: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *Postgres) ListByManufacturer(ctx context.Context, manufacturerID domain.PartyID) ([]*models.Product, error) {
	query := `
		SELECT id, manufacturer_id, name, generic_name, dosage_form, strength, base_price_cents, created_at, updated_at
		FROM products WHERE manufacturer_id = $1 ORDER BY created_at
	`
	rows, err := s.db.QueryContext(ctx, query, uuid.UUID(manufacturerID))
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	var out []*models.Product
	for rows.Next() {
		var (
			pid, mid uuid.UUID
			product  models.Product
		)
		if err := rows.Scan(
			&pid, &mid, &product.Name, &product.GenericName, &product.DosageForm,
			&product.Strength, &product.BasePriceCents, &product.CreatedAt, &product.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		product.ID = domain.ProductID(pid)
		product.ManufacturerID = domain.PartyID(mid)
		out = append(out, &product)
	}
	return out, rows.Err()
}
