package store

import (
	"context"
	"sync"

	"pharmatrace/internal/party/models"
	"pharmatrace/pkg/domain"
	"pharmatrace/pkg/platform/sentinel"
)

// InMemory keeps the party register in a map. Intended for tests and
// single-process development; it favors clarity over performance.
type InMemory struct {
	mu      sync.RWMutex
	parties map[domain.PartyID]*models.Party
}

func NewInMemory() *InMemory {
	return &InMemory{parties: make(map[domain.PartyID]*models.Party)}
}

func (s *InMemory) Create(_ context.Context, party *models.Party) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.parties[party.ID]; exists {
		return sentinel.ErrConflict
	}
	clone := *party
	s.parties[party.ID] = &clone
	return nil
}

func (s *InMemory) FindByID(_ context.Context, id domain.PartyID) (*models.Party, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	party, ok := s.parties[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	clone := *party
	return &clone, nil
}

func (s *InMemory) ListByRole(_ context.Context, role models.Role) ([]*models.Party, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Party
	for _, party := range s.parties {
		if party.Role == role {
			clone := *party
			out = append(out, &clone)
		}
	}
	return out, nil
}
