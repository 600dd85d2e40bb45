package runlog

import (
	"context"

	"github.com/kilianp07/bessim/core/events"
	"github.com/kilianp07/bessim/core/logger"
	"github.com/kilianp07/bessim/internal/eventbus"
)

// StartRecorder appends a record to store for every run published on bus.
// It stops when ctx is cancelled or the bus is closed; the returned channel
// is closed once the goroutine has exited.
func StartRecorder(ctx context.Context, bus eventbus.EventBus[events.RunEvent], store Store, log logger.Logger) <-chan struct{} {
	done := make(chan struct{})
	if bus == nil || store == nil {
		close(done)
		return done
	}
	if log == nil {
		log = logger.Nop{}
	}
	sub := bus.Subscribe()
	go func() {
		defer close(done)
		defer bus.Unsubscribe(sub)
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-sub:
				if !ok {
					return
				}
				if err := store.Append(ctx, FromEvent(ev)); err != nil {
					log.Errorf("run log append %s: %v", ev.RunID, err)
				}
			}
		}
	}()
	return done
}
