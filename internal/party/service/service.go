package service

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"

	"pharmatrace/internal/party/models"
	"pharmatrace/pkg/domain"
	dErrors "pharmatrace/pkg/domain-errors"
	"pharmatrace/pkg/platform/sentinel"
	"pharmatrace/pkg/requestcontext"
)

// Store abstracts party persistence.
type Store interface {
	Create(ctx context.Context, party *models.Party) error
	FindByID(ctx context.Context, id domain.PartyID) (*models.Party, error)
	ListByRole(ctx context.Context, role models.Role) ([]*models.Party, error)
}

// Service manages the party register. Roles are fixed at registration;
// there is no update path.
type Service struct {
	parties Store
}

func New(parties Store) *Service {
	return &Service{parties: parties}
}

// Register creates a party with the given role.
func (s *Service) Register(ctx context.Context, name string, role models.Role) (*models.Party, error) {
	name = strings.TrimSpace(name)
	party, err := models.NewParty(domain.PartyID(uuid.New()), name, role, requestcontext.Now(ctx))
	if err != nil {
		return nil, err
	}
	if err := s.parties.Create(ctx, party); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to register party")
	}
	return party, nil
}

// Get resolves a party by ID.
func (s *Service) Get(ctx context.Context, id domain.PartyID) (*models.Party, error) {
	if id.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "party id is required")
	}
	party, err := s.parties.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodePartyNotFound, "party not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load party")
	}
	return party, nil
}

// ListByRole returns all parties holding the given role.
func (s *Service) ListByRole(ctx context.Context, role models.Role) ([]*models.Party, error) {
	if !role.Valid() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "invalid party role")
	}
	return s.parties.ListByRole(ctx, role)
}
