package progress

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestHubBroadcasts(t *testing.T) {
	hub := NewHub(4)
	a := hub.Subscribe()
	b := hub.Subscribe()
	defer a.Close()
	defer b.Close()

	hub.Publish(Event{DBID: "db", State: StateGenerating})

	assert.Equal(t, StateGenerating, (<-a.C).State)
	assert.Equal(t, StateGenerating, (<-b.C).State)
	assert.Equal(t, 2, hub.Subscribers())
}

func TestHubDropsForSlowSubscriber(t *testing.T) {
	hub := NewHub(1)
	sub := hub.Subscribe()
	defer sub.Close()

	hub.Publish(Event{Index: 1})
	hub.Publish(Event{Index: 2})

	assert.Equal(t, 1, (<-sub.C).Index)
	assert.Equal(t, uint64(1), hub.Dropped())
}

func TestSubscriptionCloseIsIdempotent(t *testing.T) {
	hub := NewHub(1)
	sub := hub.Subscribe()
	sub.Close()
	sub.Close()

	_, ok := <-sub.C
	assert.False(t, ok)
	assert.Equal(t, 0, hub.Subscribers())

	hub.Publish(Event{})
}

func TestHubCloseEndsSubscribers(t *testing.T) {
	hub := NewHub(1)
	sub := hub.Subscribe()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for range sub.C {
		}
	}()

	hub.Close()
	wg.Wait()
	sub.Close()

	late := hub.Subscribe()
	_, ok := <-late.C
	assert.False(t, ok)
}

func TestMultiAndRecorder(t *testing.T) {
	rec := &Recorder{}
	var count int
	m := Multi{rec, nil, ObserverFunc(func(Event) { count++ })}

	for _, s := range []State{StateIdle, StateIntrospecting, StateGenerating, StateGenerating, StateDone} {
		m.Observe(Event{DBID: "db", State: s})
	}
	m.Observe(Event{DBID: "other", State: StateFailed})

	require.Len(t, rec.Events(), 6)
	assert.Equal(t, 6, count)
	assert.Equal(t, []State{StateIdle, StateIntrospecting, StateGenerating, StateDone}, rec.States("db"))
}
