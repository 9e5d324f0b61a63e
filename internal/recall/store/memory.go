package store

import (
	"context"
	"sync"

	"pharmatrace/internal/recall/models"
	"pharmatrace/pkg/domain"
	"pharmatrace/pkg/platform/sentinel"
)

type InMemory struct {
	mu      sync.RWMutex
	recalls map[domain.RecallID]*models.Recall
}

func NewInMemory() *InMemory {
	return &InMemory{recalls: make(map[domain.RecallID]*models.Recall)}
}

func (s *InMemory) Create(_ context.Context, recall *models.Recall) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.recalls {
		if existing.BatchID == recall.BatchID {
			return sentinel.ErrConflict
		}
	}
	clone := *recall
	s.recalls[recall.ID] = &clone
	return nil
}

func (s *InMemory) FindByID(_ context.Context, id domain.RecallID) (*models.Recall, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	recall, ok := s.recalls[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	clone := *recall
	return &clone, nil
}

func (s *InMemory) FindActiveByBatch(_ context.Context, batchID domain.BatchID) (*models.Recall, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, recall := range s.recalls {
		if recall.BatchID == batchID && recall.Status == models.StatusActive {
			clone := *recall
			return &clone, nil
		}
	}
	return nil, sentinel.ErrNotFound
}

func (s *InMemory) Execute(_ context.Context, id domain.RecallID, validate func(*models.Recall) error, mutate func(*models.Recall)) (*models.Recall, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	recall, ok := s.recalls[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	if err := validate(recall); err != nil {
		return nil, err
	}
	mutate(recall)
	clone := *recall
	return &clone, nil
}
