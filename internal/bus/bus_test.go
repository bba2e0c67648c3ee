package bus

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oraclelog/oracle-go/pkg/oracle/event"
)

func publishN(b *Bus, t event.Type, n int) {
	for i := 0; i < n; i++ {
		b.Publish(event.New(time.Now(), payloadOf(t)))
	}
}

// payloadOf returns a minimal payload for the given type using the
// generic game message shape.
func payloadOf(t event.Type) event.Payload {
	switch t {
	case event.GamePause:
		return event.GamePauseData{Paused: true}
	default:
		return event.GameMessageData{Message: "test"}
	}
}

func TestBus_DeliversToMatchingSubscriber(t *testing.T) {
	b := New()
	defer b.Close()

	var mu sync.Mutex
	var got []event.Type
	b.Subscribe("collector", func(ev event.Event) error {
		mu.Lock()
		got = append(got, ev.Type)
		mu.Unlock()
		return nil
	}, event.GameMessage)

	publishN(b, event.GameMessage, 3)
	publishN(b, event.GamePause, 2) // not subscribed

	require.NoError(t, b.Drain(context.Background()))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []event.Type{event.GameMessage, event.GameMessage, event.GameMessage}, got)
}

func TestBus_SubscribeAllSeesEverything(t *testing.T) {
	b := New()
	defer b.Close()

	var mu sync.Mutex
	count := 0
	b.SubscribeAll("all", func(ev event.Event) error {
		mu.Lock()
		count++
		mu.Unlock()
		return nil
	})

	publishN(b, event.GameMessage, 2)
	publishN(b, event.GamePause, 2)

	require.NoError(t, b.Drain(context.Background()))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 4, count)
}

func TestBus_OrderPreservedPerSubscriber(t *testing.T) {
	b := New()
	defer b.Close()

	var mu sync.Mutex
	var got []string
	b.SubscribeAll("ordered", func(ev event.Event) error {
		mu.Lock()
		got = append(got, ev.Data.(event.GameMessageData).Message)
		mu.Unlock()
		return nil
	})

	want := make([]string, 0, 100)
	for i := 0; i < 100; i++ {
		msg := string(rune('a' + i%26))
		want = append(want, msg)
		b.Publish(event.New(time.Now(), event.GameMessageData{Message: msg}))
	}

	require.NoError(t, b.Drain(context.Background()))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, want, got)
}

func TestBus_StampsIncreasingSequence(t *testing.T) {
	b := New()
	defer b.Close()

	var mu sync.Mutex
	var first, second []uint64
	b.SubscribeAll("first", func(ev event.Event) error {
		mu.Lock()
		first = append(first, ev.Seq)
		mu.Unlock()
		return nil
	})
	b.SubscribeAll("second", func(ev event.Event) error {
		mu.Lock()
		second = append(second, ev.Seq)
		mu.Unlock()
		return nil
	})

	publishN(b, event.GameMessage, 5)
	require.NoError(t, b.Drain(context.Background()))

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, first, 5)
	for i, seq := range first {
		assert.Equal(t, uint64(i+1), seq)
	}
	// Both subscribers see the same number for the same event.
	assert.Equal(t, first, second)
}

func TestBus_PanickingHandlerIsIsolated(t *testing.T) {
	b := New()
	defer b.Close()

	b.SubscribeAll("bad", func(ev event.Event) error {
		panic("boom")
	})

	var mu sync.Mutex
	count := 0
	b.SubscribeAll("good", func(ev event.Event) error {
		mu.Lock()
		count++
		mu.Unlock()
		return nil
	})

	publishN(b, event.GameMessage, 3)
	require.NoError(t, b.Drain(context.Background()))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 3, count)
}

func TestBus_ErroringHandlerKeepsReceiving(t *testing.T) {
	b := New()
	defer b.Close()

	var mu sync.Mutex
	count := 0
	b.SubscribeAll("flaky", func(ev event.Event) error {
		mu.Lock()
		count++
		mu.Unlock()
		return errors.New("transient")
	})

	publishN(b, event.GameMessage, 5)
	require.NoError(t, b.Drain(context.Background()))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 5, count)
}

func TestBus_SubscriptionCloseStopsDelivery(t *testing.T) {
	b := New()
	defer b.Close()

	var mu sync.Mutex
	count := 0
	sub := b.SubscribeAll("closer", func(ev event.Event) error {
		mu.Lock()
		count++
		mu.Unlock()
		return nil
	})

	publishN(b, event.GameMessage, 2)
	require.NoError(t, b.Drain(context.Background()))
	sub.Close()

	publishN(b, event.GameMessage, 2)
	require.NoError(t, b.Drain(context.Background()))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 2, count)
}

func TestBus_DrainTimesOutOnStuckHandler(t *testing.T) {
	b := New()
	defer b.Close()

	release := make(chan struct{})
	b.SubscribeAll("stuck", func(ev event.Event) error {
		<-release
		return nil
	})

	publishN(b, event.GameMessage, 1)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	err := b.Drain(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	close(release)
}

func TestBus_PublishAfterCloseIsNoop(t *testing.T) {
	b := New()
	b.SubscribeAll("noop", func(ev event.Event) error { return nil })
	b.Close()

	// Must not panic or block.
	publishN(b, event.GameMessage, 1)
}
