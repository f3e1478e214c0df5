package checkout

import (
	"context"
	"encoding/json"

	"github.com/go-faster/errors"
	"github.com/hibiken/asynq"
)

// TaskOrderCommitted is the asynq task type for committed-order events.
const TaskOrderCommitted = "order:committed"

// CommittedEvent is the task payload handed to back-office workers.
type CommittedEvent struct {
	OrderID       string `json:"order_id"`
	EditSeq       uint64 `json:"edit_seq"`
	OrderType     string `json:"order_type"`
	PaymentMethod string `json:"payment_method"`
	Total         string `json:"total"`
}

var _ Notifier = (*AsynqNotifier)(nil)

// AsynqNotifier publishes committed-order events to an asynq queue.
type AsynqNotifier struct {
	client *asynq.Client
}

// NewAsynqNotifier creates a notifier backed by the given asynq client.
func NewAsynqNotifier(client *asynq.Client) *AsynqNotifier {
	return &AsynqNotifier{client: client}
}

// OrderCommitted enqueues an order-committed task.
func (n *AsynqNotifier) OrderCommitted(ctx context.Context, c *Committed) error {
	payload, err := json.Marshal(CommittedEvent{
		OrderID:       c.OrderID,
		EditSeq:       c.EditSeq,
		OrderType:     string(c.Type),
		PaymentMethod: string(c.PaymentMethod),
		Total:         c.Total.String(),
	})
	if err != nil {
		return errors.Wrap(err, "marshal event")
	}

	task := asynq.NewTask(TaskOrderCommitted, payload)
	if _, err := n.client.EnqueueContext(ctx, task, asynq.MaxRetry(5)); err != nil {
		return errors.Wrap(err, "enqueue task")
	}
	return nil
}
