package notify

import (
	"context"
	"fmt"

	platformredis "pharmatrace/internal/platform/redis"
	"pharmatrace/internal/printjob/models"
	"pharmatrace/pkg/domain"
)

const channelPrefix = "pharmatrace:printjob:"

// Redis fans job state changes out over redis pub/sub, so sessions on any
// engine instance observe transitions made on another.
type Redis struct {
	client *platformredis.Client
}

func NewRedis(client *platformredis.Client) *Redis {
	return &Redis{client: client}
}

func (n *Redis) Publish(ctx context.Context, jobID domain.JobID, status models.Status) error {
	if err := n.client.Publish(ctx, channelPrefix+jobID.String(), string(status)).Err(); err != nil {
		return fmt.Errorf("publish job state: %w", err)
	}
	return nil
}

func (n *Redis) Subscribe(ctx context.Context, jobID domain.JobID) (<-chan models.Status, func(), error) {
	sub := n.client.Subscribe(ctx, channelPrefix+jobID.String())
	// Force the subscription onto the wire before the caller relies on it.
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, nil, fmt.Errorf("subscribe job state: %w", err)
	}

	out := make(chan models.Status, 8)
	go func() {
		defer close(out)
		for msg := range sub.Channel() {
			select {
			case out <- models.Status(msg.Payload):
			case <-ctx.Done():
				return
			}
		}
	}()

	cancel := func() { _ = sub.Close() }
	return out, cancel, nil
}
