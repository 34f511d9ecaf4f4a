package eventstream

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishDeliversToSubscriber(t *testing.T) {
	b := NewBroadcaster(nil)
	ch, unsubscribe := b.subscribe()
	defer unsubscribe()

	b.Publish(Event{Type: EventMachineQuiesced, Machine: 3, Timestamp: time.Unix(0, 0)})

	select {
	case ev := <-ch:
		assert.Equal(t, EventMachineQuiesced, ev.Type)
		assert.Equal(t, uint32(3), ev.Machine)
	case <-time.After(time.Second):
		t.Fatal("event not delivered")
	}
}

func TestPublishWithNoSubscribersDoesNotBlock(t *testing.T) {
	b := NewBroadcaster(nil)
	done := make(chan struct{})
	go func() {
		b.Publish(Event{Type: EventShutdownRequested})
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked with no subscribers")
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	b := NewBroadcaster(nil)
	ch, unsubscribe := b.subscribe()
	unsubscribe()

	_, stillOpen := <-ch
	assert.False(t, stillOpen)
}

func TestSlowClientEventIsDropped(t *testing.T) {
	b := NewBroadcaster(nil)
	ch, unsubscribe := b.subscribe()
	defer unsubscribe()

	for i := 0; i < 32; i++ {
		b.Publish(Event{Type: EventTaskCompleted})
	}

	count := 0
drain:
	for {
		select {
		case <-ch:
			count++
		default:
			break drain
		}
	}
	require.LessOrEqual(t, count, 16, "buffered channel capacity should bound delivered events")
}
