package store

import (
	"context"
	"sync"

	"pharmatrace/internal/unit/models"
	"pharmatrace/pkg/domain"
	"pharmatrace/pkg/platform/sentinel"
)

// InMemory keeps the unit registry in a map. Event appends hold the write
// lock across the terminal-state check and the append, matching the
// postgres store's row-lock guarantee.
type InMemory struct {
	mu    sync.RWMutex
	units map[domain.UnitUID]*models.Unit
}

func NewInMemory() *InMemory {
	return &InMemory{units: make(map[domain.UnitUID]*models.Unit)}
}

func (s *InMemory) MintBatch(_ context.Context, units []*models.Unit) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, unit := range units {
		if _, exists := s.units[unit.UID]; exists {
			return sentinel.ErrConflict
		}
	}
	for _, unit := range units {
		s.units[unit.UID] = cloneUnit(unit)
	}
	return nil
}

func (s *InMemory) FindByUID(_ context.Context, uid domain.UnitUID) (*models.Unit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	unit, ok := s.units[uid]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return cloneUnit(unit), nil
}

// AppendEvent atomically appends one custody event and refreshes the
// cached custodian/status. Prior entries are never touched.
func (s *InMemory) AppendEvent(_ context.Context, uid domain.UnitUID, event models.CustodyEvent) (*models.Unit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	unit, ok := s.units[uid]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	if err := unit.CanAppend(); err != nil {
		return nil, err
	}
	unit.ApplyEvent(event)
	return cloneUnit(unit), nil
}

func (s *InMemory) ListByBatch(_ context.Context, batchID domain.BatchID) ([]*models.Unit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Unit
	for _, unit := range s.units {
		if unit.BatchID == batchID {
			out = append(out, cloneUnit(unit))
		}
	}
	return out, nil
}

func (s *InMemory) CustodiansOf(_ context.Context, batchID domain.BatchID) ([]domain.PartyID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seen := make(map[domain.PartyID]bool)
	var out []domain.PartyID
	for _, unit := range s.units {
		if unit.BatchID != batchID || unit.CustodianID == nil {
			continue
		}
		if !seen[*unit.CustodianID] {
			seen[*unit.CustodianID] = true
			out = append(out, *unit.CustodianID)
		}
	}
	return out, nil
}

func cloneUnit(unit *models.Unit) *models.Unit {
	clone := *unit
	clone.History = make([]models.CustodyEvent, len(unit.History))
	copy(clone.History, unit.History)
	if unit.CustodianID != nil {
		custodian := *unit.CustodianID
		clone.CustodianID = &custodian
	}
	return &clone
}
