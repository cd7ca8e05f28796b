package main

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/benvon/datarest/internal/queue"
	"go.uber.org/zap"
)

type countingTrigger struct {
	n atomic.Int32
}

func (c *countingTrigger) Trigger() { c.n.Add(1) }

func TestDispatchEvents(t *testing.T) {
	t.Parallel()

	events := make(chan *queue.ReconfigureEvent, 4)
	errs := make(chan error, 1)
	routes := &countingTrigger{}
	ratelimit := &countingTrigger{}

	events <- queue.NewReconfigureEvent(queue.EventKindCORS, "people")
	events <- queue.NewReconfigureEvent(queue.EventKindCORS, "")
	events <- queue.NewReconfigureEvent(queue.EventKindRatelimit, "people")
	errs <- errors.New("bad event")
	close(errs)
	close(events)

	done := make(chan struct{})
	go func() {
		dispatchEvents(context.Background(), events, errs, routes, ratelimit, zap.NewNop())
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("dispatchEvents did not return after the subscription closed")
	}
	if got := routes.n.Load(); got != 2 {
		t.Errorf("route reloads = %d, want 2", got)
	}
	if got := ratelimit.n.Load(); got != 1 {
		t.Errorf("rate limit reloads = %d, want 1", got)
	}
}

func TestDispatchEvents_NoRatelimit(t *testing.T) {
	t.Parallel()

	events := make(chan *queue.ReconfigureEvent, 1)
	events <- queue.NewReconfigureEvent(queue.EventKindRatelimit, "")
	close(events)

	dispatchEvents(context.Background(), events, nil, &countingTrigger{}, nil, zap.NewNop())
}

func TestDispatchEvents_Cancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	dispatchEvents(ctx, make(chan *queue.ReconfigureEvent), nil, &countingTrigger{}, nil, zap.NewNop())
}
