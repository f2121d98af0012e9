package sink

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/dj-oyu/motionglyph/internal/broadcast"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisPublisherPublishesSymbols(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	pub, err := NewRedisPublisher(ctx, mr.Addr(), "motionglyph:symbols")
	require.NoError(t, err)
	defer pub.Close()
	assert.Equal(t, "motionglyph:symbols", pub.Channel())

	reader := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer reader.Close()
	sub := reader.Subscribe(ctx, pub.Channel())
	defer sub.Close()
	_, err = sub.Receive(ctx)
	require.NoError(t, err, "subscription confirmed")

	require.NoError(t, pub.Publish(ctx, broadcast.NewEvent(broadcast.TypeTick, "s1", map[string]any{"bit": 1})))
	require.NoError(t, pub.Publish(ctx, broadcast.NewEvent(broadcast.TypeSymbol, "s1", map[string]any{"symbol": "K"})))

	msg, err := sub.ReceiveMessage(ctx)
	require.NoError(t, err)

	var ev broadcast.Event
	require.NoError(t, json.Unmarshal([]byte(msg.Payload), &ev))
	assert.Equal(t, broadcast.TypeSymbol, ev.Type, "tick events are not forwarded")
	assert.Equal(t, "s1", ev.Session)
	assert.Equal(t, "K", ev.Data["symbol"])
}

func TestRedisPublisherConnectError(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := NewRedisPublisher(context.Background(), addr, "c")
	assert.ErrorContains(t, err, "failed to connect to redis")
}
