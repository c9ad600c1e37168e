package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestPublisher(t *testing.T) (*Publisher, *miniredis.Miniredis) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	p, err := New(mr.Addr())
	require.NoError(t, err)
	return p, mr
}

func TestPublishDeliversEnvelopeToSubscriber(t *testing.T) {
	p, mr := newTestPublisher(t)
	defer mr.Close()
	defer p.Close()

	ctx := context.Background()
	sub := p.client.Subscribe(ctx, lifecycleChannel)
	defer sub.Close()
	time.Sleep(50 * time.Millisecond)

	p.Publish(ctx, "room_created", map[string]string{"roomId": "abc"})

	msg, err := sub.ReceiveMessage(ctx)
	require.NoError(t, err)

	var env envelope
	require.NoError(t, json.Unmarshal([]byte(msg.Payload), &env))
	assert.Equal(t, "room_created", env.Event)
	assert.NotEmpty(t, env.ID)

	var payload map[string]string
	require.NoError(t, json.Unmarshal(env.Payload, &payload))
	assert.Equal(t, "abc", payload["roomId"])
}

func TestPublishOnNilPublisherIsNoop(t *testing.T) {
	var p *Publisher
	assert.NotPanics(t, func() {
		p.Publish(context.Background(), "room_created", map[string]string{})
	})
}

func TestPublishDropsSilentlyWhenRedisUnreachable(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	addr := mr.Addr()
	mr.Close()

	client := redis.NewClient(&redis.Options{Addr: addr})
	p := newWithClient(client)
	defer p.Close()

	assert.NotPanics(t, func() {
		p.Publish(context.Background(), "match_started", map[string]string{"x": "y"})
	})
}
