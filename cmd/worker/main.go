// Command worker consumes committed-order events from the task queue and
// dispatches them to back-office systems (kitchen display, receipts).
package main

import (
	"context"
	"encoding/json"
	"os"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"github.com/feastly/ordercore/internal/checkout"
)

func main() {
	app.Run(func(ctx context.Context, lg *zap.Logger, _ *app.Telemetry) error {
		redisAddr := os.Getenv("ORDERCORE_REDIS_ADDR")
		if redisAddr == "" {
			redisAddr = os.Getenv("REDIS_ADDR")
		}
		if redisAddr == "" {
			return errors.New("redis address is required: set ORDERCORE_REDIS_ADDR or REDIS_ADDR")
		}

		srv := asynq.NewServer(
			asynq.RedisClientOpt{Addr: redisAddr},
			asynq.Config{Concurrency: 10},
		)

		mux := asynq.NewServeMux()
		mux.HandleFunc(checkout.TaskOrderCommitted, handleOrderCommitted(lg))

		if err := srv.Start(mux); err != nil {
			return errors.Wrap(err, "start worker")
		}

		lg.Info("Worker listening", zap.String("redis", redisAddr))
		<-ctx.Done()
		srv.Shutdown()
		return nil
	})
}

// handleOrderCommitted dispatches one committed order to the kitchen. A
// returned error makes asynq retry the task with backoff.
func handleOrderCommitted(lg *zap.Logger) asynq.HandlerFunc {
	return func(_ context.Context, t *asynq.Task) error {
		var ev checkout.CommittedEvent
		if err := json.Unmarshal(t.Payload(), &ev); err != nil {
			return errors.Wrap(err, "unmarshal event")
		}

		lg.Info("Order dispatched to kitchen",
			zap.String("order_id", ev.OrderID),
			zap.Uint64("edit_seq", ev.EditSeq),
			zap.String("order_type", ev.OrderType),
			zap.String("payment_method", ev.PaymentMethod),
			zap.String("total", ev.Total),
		)
		return nil
	}
}
