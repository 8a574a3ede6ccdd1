package events_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/playmatatu/arena/internal/events"
	"github.com/playmatatu/arena/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisPublisher(t *testing.T) {
	ctx := context.Background()
	rdb := testutil.NewRedis(t)

	sub := rdb.Subscribe(ctx, "game_events")
	defer sub.Close()
	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	pub := events.NewRedisPublisher(rdb, "game_events")
	pub.Publish(ctx, events.Event{
		Type:    events.TypeMatchFound,
		GameID:  "g1",
		QueueID: "q1",
		Players: []string{"X", "Y"},
	})

	select {
	case msg := <-sub.Channel():
		var ev events.Event
		require.NoError(t, json.Unmarshal([]byte(msg.Payload), &ev))
		assert.Equal(t, events.TypeMatchFound, ev.Type)
		assert.Equal(t, "g1", ev.GameID)
		assert.Equal(t, []string{"X", "Y"}, ev.Players)
		assert.False(t, ev.At.IsZero())
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestPublishWithoutClient(t *testing.T) {
	var nilPub *events.RedisPublisher
	assert.NotPanics(t, func() {
		nilPub.Publish(context.Background(), events.Event{Type: events.TypeGameCreated})
		events.NewRedisPublisher(nil, "game_events").Publish(context.Background(), events.Event{Type: events.TypeGameCreated})
		events.Nop{}.Publish(context.Background(), events.Event{})
	})
}
