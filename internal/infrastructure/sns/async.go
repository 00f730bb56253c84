package sns

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/qr-nexus/internal/domain"
)

// AsyncPublisher hands events to a wrapped Publisher in the background so
// callers never wait on the topic. At most capacity publishes are in flight;
// events arriving beyond that are dropped with a warning.
type AsyncPublisher struct {
	next    Publisher
	timeout time.Duration
	slots   chan struct{}
	wg      sync.WaitGroup
}

func NewAsync(next Publisher, timeout time.Duration, capacity int) *AsyncPublisher {
	if capacity < 1 {
		capacity = 1
	}
	return &AsyncPublisher{
		next:    next,
		timeout: timeout,
		slots:   make(chan struct{}, capacity),
	}
}

// Publish always returns nil; delivery failures are logged.
func (p *AsyncPublisher) Publish(ctx context.Context, ev domain.Event) error {
	select {
	case p.slots <- struct{}{}:
	default:
		slog.Warn("event dropped, publish queue full", "type", ev.Type, "subject_id", ev.SubjectID)
		return nil
	}
	p.wg.Add(1)
	go func() {
		defer func() {
			<-p.slots
			p.wg.Done()
		}()
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.timeout)
		defer cancel()
		if err := p.next.Publish(ctx, ev); err != nil {
			slog.Warn("event not published", "type", ev.Type, "subject_id", ev.SubjectID, "err", err)
		}
	}()
	return nil
}

// Wait blocks until every accepted event was handed to the wrapped publisher.
func (p *AsyncPublisher) Wait() {
	p.wg.Wait()
}
