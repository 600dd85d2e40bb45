package eventbus

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishSubscribe(t *testing.T) {
	bus := New[string]()
	a := bus.Subscribe()
	b := bus.Subscribe()
	bus.Publish("run-1")
	assert.Equal(t, "run-1", <-a)
	assert.Equal(t, "run-1", <-b)
	bus.Unsubscribe(a)
	_, ok := <-a
	assert.False(t, ok, "unsubscribed channel is closed")
}

func TestFullSubscriberDropsEvents(t *testing.T) {
	bus := NewBuffered[int](2)
	ch := bus.Subscribe()
	for i := 0; i < 5; i++ {
		bus.Publish(i)
	}
	assert.Equal(t, uint64(3), bus.Dropped())
	assert.Equal(t, 0, <-ch)
	assert.Equal(t, 1, <-ch)
}

func TestClose(t *testing.T) {
	bus := New[int]()
	ch1 := bus.Subscribe()
	ch2 := bus.Subscribe()
	bus.Close()
	bus.Close()
	_, ok := <-ch1
	assert.False(t, ok)
	_, ok = <-ch2
	assert.False(t, ok)

	late := bus.Subscribe()
	_, ok = <-late
	assert.False(t, ok, "subscribing after close yields a closed channel")

	require.NotPanics(t, func() {
		bus.Publish(1)
		bus.Unsubscribe(ch1)
	})
}

func TestBusImplementsEventBus(t *testing.T) {
	var _ EventBus[float64] = New[float64]()
}
