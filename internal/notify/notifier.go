package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"github.com/noah-isme/toko-storefront/internal/db"
	"github.com/noah-isme/toko-storefront/internal/obs"
)

// Enqueuer is the subset of *asynq.Client used by the notifier.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// TaskNotifier turns order events into asynq tasks. It implements
// events.Notifier.
type TaskNotifier struct {
	Client   Enqueuer
	Queue    string
	MaxRetry int
	// Disabled topics are skipped; topics absent from the map are enabled.
	Topics map[string]bool
}

// Notify enqueues the task for ev. The event id doubles as the asynq task
// id so a re-emitted event is not mailed twice.
func (n TaskNotifier) Notify(ctx context.Context, ev db.DomainEvent) (err error) {
	taskType, ok := taskTypeFor(ev.Topic)
	if !ok || n.Client == nil {
		return nil
	}
	if enabled, set := n.Topics[ev.Topic]; set && !enabled {
		return nil
	}
	defer func() { obs.RecordNotification("enqueue", err) }()

	payload, err := newOrderTask(ev)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	opts := []asynq.Option{asynq.Timeout(30 * time.Second)}
	if payload.EventID != "" {
		opts = append(opts, asynq.TaskID(payload.EventID))
	}
	if n.Queue != "" {
		opts = append(opts, asynq.Queue(n.Queue))
	}
	if n.MaxRetry > 0 {
		opts = append(opts, asynq.MaxRetry(n.MaxRetry))
	}
	if _, err := n.Client.EnqueueContext(ctx, asynq.NewTask(taskType, raw), opts...); err != nil {
		if errors.Is(err, asynq.ErrTaskIDConflict) {
			return nil
		}
		return fmt.Errorf("enqueue %s: %w", taskType, err)
	}
	return nil
}
