package service

import (
	"context"

	"ctfarena/internal/notifications"
	"ctfarena/internal/observability"
)

// EventPublisher fans competition events out to live subscribers.
// *notifications.Notifier satisfies it.
type EventPublisher interface {
	PublishSolve(ctx context.Context, event notifications.SolveEvent) error
	PublishReview(ctx context.Context, event notifications.ReviewEvent) error
	PublishReset(ctx context.Context) error
}

// publishAsync runs fn after the request's own work is committed. Delivery
// failures are logged and never surface to the caller.
func publishAsync(ctx context.Context, op string, fields map[string]interface{}, fn func(context.Context) error) {
	go func() {
		bg := context.WithoutCancel(ctx)
		if err := fn(bg); err != nil {
			observability.LogAsyncOperationError(bg, op, err, fields)
		}
	}()
}
