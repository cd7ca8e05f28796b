package main

import (
	"context"

	"github.com/benvon/datarest/internal/logger"
	"github.com/benvon/datarest/internal/queue"
	"go.uber.org/zap"
)

// triggerer is implemented by the route table and rate limit reloaders.
type triggerer interface {
	Trigger()
}

// dispatchEvents triggers the reloader matching each event's kind until ctx
// is cancelled or the subscription ends. ratelimit may be nil when rate
// limiting is disabled.
func dispatchEvents(ctx context.Context, events <-chan *queue.ReconfigureEvent, errs <-chan error, routes, ratelimit triggerer, log *zap.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			log.Warn("reconfigure_event_error", zap.String("error", logger.SanitizeError(err)))
		case event, ok := <-events:
			if !ok {
				log.Warn("reconfigure_subscription_closed")
				return
			}
			log.Info("reconfigure_event_received",
				zap.String("kind", string(event.Kind)),
				zap.String("resource", event.Resource),
				zap.String("event_id", event.ID.String()),
			)
			switch event.Kind {
			case queue.EventKindCORS:
				routes.Trigger()
			case queue.EventKindRatelimit:
				if ratelimit != nil {
					ratelimit.Trigger()
				}
			}
		}
	}
}
