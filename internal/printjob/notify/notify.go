// Package notify pushes print job state changes to active printing
// sessions, so a bureau mid-run observes a CANCEL without waiting for its
// next poll.
package notify

import (
	"context"
	"sync"

	"pharmatrace/internal/printjob/models"
	"pharmatrace/pkg/domain"
)

// Notifier publishes job state changes and lets sessions subscribe to
// them.
type Notifier interface {
	Publish(ctx context.Context, jobID domain.JobID, status models.Status) error
	Subscribe(ctx context.Context, jobID domain.JobID) (<-chan models.Status, func(), error)
}

// InProcess is the single-process Notifier used when redis is not
// configured. Slow subscribers drop updates rather than block the
// publisher; the watcher's poll catches anything missed.
type InProcess struct {
	mu   sync.Mutex
	subs map[domain.JobID][]chan models.Status
}

func NewInProcess() *InProcess {
	return &InProcess{subs: make(map[domain.JobID][]chan models.Status)}
}

func (n *InProcess) Publish(_ context.Context, jobID domain.JobID, status models.Status) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, ch := range n.subs[jobID] {
		select {
		case ch <- status:
		default:
		}
	}
	return nil
}

func (n *InProcess) Subscribe(_ context.Context, jobID domain.JobID) (<-chan models.Status, func(), error) {
	ch := make(chan models.Status, 8)
	n.mu.Lock()
	n.subs[jobID] = append(n.subs[jobID], ch)
	n.mu.Unlock()

	cancel := func() {
		n.mu.Lock()
		defer n.mu.Unlock()
		subs := n.subs[jobID]
		for i, sub := range subs {
			if sub == ch {
				n.subs[jobID] = append(subs[:i], subs[i+1:]...)
				break
			}
		}
	}
	return ch, cancel, nil
}
