package notifications

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFeedHub_RegisterLimits(t *testing.T) {
	hub := NewFeedHub()

	for i := 0; i < maxConnsPerUser; i++ {
		_, err := hub.Register(7, nil)
		require.NoError(t, err)
	}
	_, err := hub.Register(7, nil)
	assert.ErrorIs(t, err, ErrUserLimit)

	for i := 0; i < maxConnsPerUser+2; i++ {
		_, err := hub.Register(0, nil)
		require.NoError(t, err, "anonymous viewers are not capped per user")
	}
	assert.Equal(t, 2*maxConnsPerUser+2, hub.Count())
	require.NoError(t, hub.Shutdown(context.Background()))
	assert.Zero(t, hub.Count())
}

func TestFeedHub_BroadcastAllAndUnregister(t *testing.T) {
	hub := NewFeedHub()
	a, err := hub.Register(1, nil)
	require.NoError(t, err)
	b, err := hub.Register(0, nil)
	require.NoError(t, err)

	hub.BroadcastAll(`{"type":"reset","payload":{}}`)
	assert.Equal(t, `{"type":"reset","payload":{}}`, string(<-a.Send))
	assert.Equal(t, `{"type":"reset","payload":{}}`, string(<-b.Send))

	hub.UnregisterClient(a)
	hub.UnregisterClient(a)
	assert.Equal(t, 1, hub.Count())

	hub.BroadcastAll("x")
	assert.Len(t, a.Send, 0)
	assert.Len(t, b.Send, 1)
}

func TestClient_TrySendDropsWhenFull(t *testing.T) {
	hub := NewFeedHub()
	c, err := hub.Register(2, nil)
	require.NoError(t, err)

	for i := 0; i < sendBuffer+5; i++ {
		c.TrySend([]byte("m"))
	}
	assert.Len(t, c.Send, sendBuffer)
}

func TestFeedHub_StartWiringForwardsEvents(t *testing.T) {
	rdb := newTestRedis(t)
	n := NewNotifier(rdb)
	hub := NewFeedHub()
	c, err := hub.Register(0, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, hub.StartWiring(ctx, n))
	require.NoError(t, n.PublishReview(context.Background(), ReviewEvent{SubmissionID: 4, Status: "approved"}))

	select {
	case msg := <-c.Send:
		assert.Contains(t, string(msg), `"type":"review"`)
	case <-time.After(time.Second):
		t.Fatal("review event was not forwarded")
	}
}
