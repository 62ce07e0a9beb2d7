package worker

import (
	"context"
	"log/slog"

	amqp "github.com/rabbitmq/amqp091-go"
)

// NudgeChannel converts enqueue notifications from RabbitMQ into wake
// signals for the dispatch loops. The message body is irrelevant - ordering
// and content come from the jobs table - so every delivery is acked
// immediately and collapsed into a buffered signal. A lost nudge just means
// the next poll tick picks the job up instead.
func NudgeChannel(ctx context.Context, deliveries <-chan amqp.Delivery, logger *slog.Logger) <-chan struct{} {
	wake := make(chan struct{}, 1)

	go func() {
		defer close(wake)

		for {
			select {
			case <-ctx.Done():
				return

			case delivery, ok := <-deliveries:
				if !ok {
					logger.Warn("RabbitMQ delivery channel closed, falling back to polling")
					return
				}

				if err := delivery.Ack(false); err != nil {
					logger.Warn("Failed to ack nudge message",
						slog.Any("error", err),
					)
				}

				select {
				case wake <- struct{}{}:
				default:
					// A wake is already pending; dropping the extra signal
					// is fine because drain empties the whole queue.
				}
			}
		}
	}()

	return wake
}
