package mqtt

import (
	"context"

	"github.com/kilianp07/bessim/core/events"
	"github.com/kilianp07/bessim/core/logger"
	coremqtt "github.com/kilianp07/bessim/core/mqtt"
	"github.com/kilianp07/bessim/internal/eventbus"
)

// StartForwarder publishes every successful run seen on bus. Failed runs
// carry no result and are skipped. The returned channel is closed once the
// forwarder stops.
func StartForwarder(ctx context.Context, bus eventbus.EventBus[events.RunEvent], pub coremqtt.Publisher, log logger.Logger) <-chan struct{} {
	done := make(chan struct{})
	if bus == nil || pub == nil {
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
				if ev.Failed() || ev.Result == nil {
					continue
				}
				if err := pub.PublishResult(ctx, ev.Result); err != nil {
					log.Errorf("publish run %s: %v", ev.RunID, err)
				}
			}
		}
	}()
	return done
}
