package store

import (
	"context"
	"strings"
	"sync"
	"time"

	"pharmatrace/internal/batch/models"
	"pharmatrace/pkg/domain"
	"pharmatrace/pkg/platform/sentinel"
)

// InMemory keeps batches and holdings under one mutex so Execute provides
// the same atomic validate-then-mutate guarantee as the postgres row lock.
type InMemory struct {
	mu       sync.RWMutex
	batches  map[domain.BatchID]*models.Batch
	holdings map[holdingKey]*models.Holding
}

type holdingKey struct {
	batch domain.BatchID
	party domain.PartyID
}

func NewInMemory() *InMemory {
	return &InMemory{
		batches:  make(map[domain.BatchID]*models.Batch),
		holdings: make(map[holdingKey]*models.Holding),
	}
}

func (s *InMemory) Create(_ context.Context, batch *models.Batch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.batches {
		if existing.ManufacturerID == batch.ManufacturerID &&
			strings.EqualFold(existing.BatchNumber, batch.BatchNumber) {
			return sentinel.ErrConflict
		}
	}
	clone := *batch
	s.batches[batch.ID] = &clone
	return nil
}

func (s *InMemory) FindByID(_ context.Context, id domain.BatchID) (*models.Batch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	batch, ok := s.batches[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	clone := *batch
	return &clone, nil
}

func (s *InMemory) FindByNumber(_ context.Context, batchNumber string) (*models.Batch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, batch := range s.batches {
		if strings.EqualFold(batch.BatchNumber, batchNumber) {
			clone := *batch
			return &clone, nil
		}
	}
	return nil, sentinel.ErrNotFound
}

// Execute runs validate and mutate on the batch while holding the store
// lock, so no concurrent Execute can interleave between check and change.
func (s *InMemory) Execute(_ context.Context, id domain.BatchID, validate func(*models.Batch) error, mutate func(*models.Batch)) (*models.Batch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	batch, ok := s.batches[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	if err := validate(batch); err != nil {
		return nil, err
	}
	mutate(batch)
	clone := *batch
	return &clone, nil
}

func (s *InMemory) GetHolding(_ context.Context, batchID domain.BatchID, partyID domain.PartyID) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if holding, ok := s.holdings[holdingKey{batchID, partyID}]; ok {
		return holding.Quantity, nil
	}
	return 0, nil
}

func (s *InMemory) CreditHolding(_ context.Context, batchID domain.BatchID, partyID domain.PartyID, quantity int, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := holdingKey{batchID, partyID}
	holding, ok := s.holdings[key]
	if !ok {
		holding = &models.Holding{BatchID: batchID, PartyID: partyID}
		s.holdings[key] = holding
	}
	holding.Quantity += quantity
	holding.UpdatedAt = now
	return nil
}

// DebitHolding atomically checks and decrements a party's holding. Returns
// ErrInvalidState when the holding cannot cover the quantity.
func (s *InMemory) DebitHolding(_ context.Context, batchID domain.BatchID, partyID domain.PartyID, quantity int, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	holding, ok := s.holdings[holdingKey{batchID, partyID}]
	if !ok || holding.Quantity < quantity {
		return sentinel.ErrInvalidState
	}
	holding.Quantity -= quantity
	holding.UpdatedAt = now
	return nil
}

func (s *InMemory) HoldersOf(_ context.Context, batchID domain.BatchID) ([]domain.PartyID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.PartyID
	for key, holding := range s.holdings {
		if key.batch == batchID && holding.Quantity > 0 {
			out = append(out, key.party)
		}
	}
	return out, nil
}
