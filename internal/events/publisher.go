// Package events mirrors room lifecycle events (room created/destroyed,
// match started/ended) to a Redis pub/sub channel for external dashboards.
// It implements coordinator.LifecyclePublisher and is wired in as an
// optional, one-way, fire-and-forget sink: it is never read back by any
// coordinator. Publishing is synchronous, so a stalled Redis delays the
// caller until the client times out or the circuit breaker opens.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/upperlevel/carcassonne-server/internal/logging"
	"github.com/upperlevel/carcassonne-server/internal/metrics"
)

const lifecycleChannel = "carcassonne:lifecycle"

// envelope is the wire shape published to the lifecycle channel.
type envelope struct {
	ID      string          `json:"id"`
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
}

// Publisher mirrors coordinator lifecycle events to Redis, wrapped in a
// circuit breaker the same way the teacher's bus.Service wraps every Redis
// call: once repeated failures open the breaker, publishes are dropped
// without a Redis round trip.
type Publisher struct {
	client *redis.Client
	cb     *gobreaker.CircuitBreaker
}

// New connects to addr and verifies reachability with a bounded ping.
func New(addr string) (*Publisher, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("events: connecting to redis at %s: %w", addr, err)
	}
	return newWithClient(client), nil
}

func newWithClient(client *redis.Client) *Publisher {
	settings := gobreaker.Settings{
		Name:        "events-redis",
		MaxRequests: 5,
		Interval:    time.Minute,
		Timeout:     15 * time.Second,
		OnStateChange: func(_ string, _ gobreaker.State, to gobreaker.State) {
			var v float64
			switch to {
			case gobreaker.StateOpen:
				v = 1
			case gobreaker.StateHalfOpen:
				v = 2
			default:
				v = 0
			}
			metrics.CircuitBreakerState.WithLabelValues("redis_events").Set(v)
		},
	}
	return &Publisher{client: client, cb: gobreaker.NewCircuitBreaker(settings)}
}

// Publish implements coordinator.LifecyclePublisher. Breaker-open and
// marshal/publish errors are logged and dropped, so the caller never
// observes an error. The Redis publish runs on the caller's goroutine; it
// waits for the round trip unless the breaker is open.
func (p *Publisher) Publish(ctx context.Context, event string, payload any) {
	if p == nil || p.client == nil {
		return
	}

	_, err := p.cb.Execute(func() (any, error) {
		payloadBytes, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		data, err := json.Marshal(envelope{ID: uuid.NewString(), Event: event, Payload: payloadBytes})
		if err != nil {
			return nil, err
		}
		return nil, p.client.Publish(ctx, lifecycleChannel, data).Err()
	})
	if err != nil {
		if err == gobreaker.ErrOpenState {
			logging.Warn(ctx, "events: circuit breaker open, dropping publish", zap.String("event", event))
			return
		}
		logging.Warn(ctx, "events: publish failed, dropping", zap.String("event", event), zap.Error(err))
	}
}

// Close releases the underlying Redis connection.
func (p *Publisher) Close() error {
	if p == nil || p.client == nil {
		return nil
	}
	return p.client.Close()
}
