package service

import (
	"context"
	"time"

	"pharmatrace/internal/printjob/models"
	"pharmatrace/internal/printjob/notify"
	"pharmatrace/pkg/domain"
)

// DefaultPollInterval is the watcher's fallback poll cadence. A printing
// session observes a remote CANCEL within at most one interval even if
// the push channel is unavailable.
const DefaultPollInterval = 1200 * time.Millisecond

// Watcher lets a printing session follow one job's state. Pushes from the
// notifier arrive immediately; the poll is the safety net underneath them.
type Watcher struct {
	scheduler *Scheduler
	notif     notify.Notifier
	interval  time.Duration
}

func NewWatcher(scheduler *Scheduler, notif notify.Notifier, interval time.Duration) *Watcher {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Watcher{scheduler: scheduler, notif: notif, interval: interval}
}

// Watch emits the job's status on every observed change, starting with the
// current one, and closes the channel once the job reaches a terminal
// state or the context ends.
func (w *Watcher) Watch(ctx context.Context, jobID domain.JobID) (<-chan models.Status, error) {
	job, err := w.scheduler.Get(ctx, jobID)
	if err != nil {
		return nil, err
	}

	var pushed <-chan models.Status
	cancel := func() {}
	if w.notif != nil {
		if ch, stop, err := w.notif.Subscribe(ctx, jobID); err == nil {
			pushed = ch
			cancel = stop
		}
	}

	out := make(chan models.Status, 8)
	go func() {
		defer close(out)
		defer cancel()

		last := job.Status
		out <- last
		if job.IsTerminal() {
			return
		}

		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()
		for {
			var next models.Status
			select {
			case <-ctx.Done():
				return
			case status, ok := <-pushed:
				if !ok {
					pushed = nil
					continue
				}
				next = status
			case <-ticker.C:
				current, err := w.scheduler.Get(ctx, jobID)
				if err != nil {
					continue
				}
				next = current.Status
			}
			if next == last {
				continue
			}
			last = next
			out <- last
			if last == models.StatusCancelled || last == models.StatusCompleted {
				return
			}
		}
	}()
	return out, nil
}
