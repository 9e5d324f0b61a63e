package store

import (
	"context"
	"sort"
	"sync"

	"pharmatrace/internal/transfer/models"
	"pharmatrace/pkg/domain"
	"pharmatrace/pkg/platform/sentinel"
)

// InMemory keeps transfers under one mutex so Execute provides the same
// atomic validate-then-mutate guarantee as the postgres row lock.
type InMemory struct {
	mu        sync.RWMutex
	transfers map[domain.TransferID]*models.Transfer
}

func NewInMemory() *InMemory {
	return &InMemory{transfers: make(map[domain.TransferID]*models.Transfer)}
}

func (s *InMemory) Create(_ context.Context, transfer *models.Transfer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.transfers[transfer.ID]; exists {
		return sentinel.ErrConflict
	}
	s.transfers[transfer.ID] = cloneTransfer(transfer)
	return nil
}

func (s *InMemory) FindByID(_ context.Context, id domain.TransferID) (*models.Transfer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	transfer, ok := s.transfers[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return cloneTransfer(transfer), nil
}

// Execute runs validate and mutate on the transfer while holding the store
// lock.
func (s *InMemory) Execute(_ context.Context, id domain.TransferID, validate func(*models.Transfer) error, mutate func(*models.Transfer)) (*models.Transfer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	transfer, ok := s.transfers[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	if err := validate(transfer); err != nil {
		return nil, err
	}
	mutate(transfer)
	return cloneTransfer(transfer), nil
}

// ListOutstandingByBatch lists IN_TRANSIT transfers of the batch, ordered
// by creation time for stable output.
func (s *InMemory) ListOutstandingByBatch(_ context.Context, batchID domain.BatchID) ([]*models.Transfer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Transfer
	for _, transfer := range s.transfers {
		if transfer.BatchID == batchID && transfer.Status == models.StatusInTransit {
			out = append(out, cloneTransfer(transfer))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *InMemory) ListByParty(_ context.Context, partyID domain.PartyID) ([]*models.Transfer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Transfer
	for _, transfer := range s.transfers {
		if transfer.SenderID == partyID || transfer.ReceiverID == partyID {
			out = append(out, cloneTransfer(transfer))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func cloneTransfer(transfer *models.Transfer) *models.Transfer {
	clone := *transfer
	clone.UnitUIDs = make([]domain.UnitUID, len(transfer.UnitUIDs))
	copy(clone.UnitUIDs, transfer.UnitUIDs)
	return &clone
}
