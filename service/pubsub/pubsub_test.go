package pubsub

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStream_PublishDeliversToAllSubscribers(t *testing.T) {
	s := NewStream[int]()

	ch1, unsub1 := s.Subscribe()
	ch2, unsub2 := s.Subscribe()
	defer unsub1()
	defer unsub2()

	s.Publish(42)

	assert.Equal(t, 42, <-ch1)
	assert.Equal(t, 42, <-ch2)
}

func TestStream_UnsubscribeClosesChannel(t *testing.T) {
	s := NewStream[string]()

	ch, unsub := s.Subscribe()
	require.Equal(t, 1, s.Len())

	unsub()
	assert.Equal(t, 0, s.Len())

	_, open := <-ch
	assert.False(t, open, "channel should be closed after unsubscribe")

	// Second call must be a no-op, not a double close.
	unsub()
}

func TestStream_PublishAfterUnsubscribeDoesNotPanic(t *testing.T) {
	s := NewStream[int]()

	_, unsub := s.Subscribe()
	unsub()

	s.Publish(1)
}

func TestStream_SlowSubscriberDoesNotBlockPublisher(t *testing.T) {
	s := NewStream[int]()

	ch, unsub := s.Subscribe()
	defer unsub()

	// Overrun the buffer; publishes must return immediately.
	for i := 0; i < defaultBuffer*2; i++ {
		s.Publish(i)
	}

	// The subscriber still sees the first buffered values.
	assert.Equal(t, 0, <-ch)
	assert.Equal(t, 1, <-ch)
}

func TestStream_ZeroValueUsable(t *testing.T) {
	var s Stream[int]

	ch, unsub := s.Subscribe()
	defer unsub()

	s.Publish(7)
	assert.Equal(t, 7, <-ch)
}
