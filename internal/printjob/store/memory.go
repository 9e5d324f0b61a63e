package store

import (
	"context"
	"sync"

	"pharmatrace/internal/printjob/models"
	"pharmatrace/pkg/domain"
	"pharmatrace/pkg/platform/sentinel"
)

type InMemory struct {
	mu   sync.RWMutex
	jobs map[domain.JobID]*models.PrintJob
}

func NewInMemory() *InMemory {
	return &InMemory{jobs: make(map[domain.JobID]*models.PrintJob)}
}

func (s *InMemory) Create(_ context.Context, job *models.PrintJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.jobs[job.ID]; exists {
		return sentinel.ErrConflict
	}
	s.jobs[job.ID] = cloneJob(job)
	return nil
}

func (s *InMemory) FindByID(_ context.Context, id domain.JobID) (*models.PrintJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return cloneJob(job), nil
}

// Execute runs validate and mutate on the job while holding the store
// lock, so redeem-once and monotonic-progress checks cannot interleave.
func (s *InMemory) Execute(_ context.Context, id domain.JobID, validate func(*models.PrintJob) error, mutate func(*models.PrintJob)) (*models.PrintJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	if err := validate(job); err != nil {
		return nil, err
	}
	mutate(job)
	return cloneJob(job), nil
}

func (s *InMemory) ListByBatch(_ context.Context, batchID domain.BatchID) ([]*models.PrintJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.PrintJob
	for _, job := range s.jobs {
		if job.BatchID == batchID {
			out = append(out, cloneJob(job))
		}
	}
	return out, nil
}

func cloneJob(job *models.PrintJob) *models.PrintJob {
	clone := *job
	clone.CodeHash = make([]byte, len(job.CodeHash))
	copy(clone.CodeHash, job.CodeHash)
	return &clone
}
