package broadcast

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"versus-backend/internal/id"
	"versus-backend/pkg/logger"
	"versus-backend/pkg/redis"
)

const publishTimeout = 2 * time.Second

// wireEvent is the Pub/Sub encoding of an Event.
type wireEvent struct {
	Origin    string          `json:"origin"`
	Type      EventType       `json:"type"`
	BattleID  string          `json:"battleId,omitempty"`
	Data      json.RawMessage `json:"data"`
	Timestamp time.Time       `json:"timestamp"`
}

// RedisRelay connects hubs of several instances through one Pub/Sub
// channel. Each instance ignores messages carrying its own origin id.
type RedisRelay struct {
	client  *redis.Client
	hub     *Hub
	channel string
	origin  string
	out     chan Event
	ready   chan struct{}
	log     *logger.Logger
}

func NewRedisRelay(client *redis.Client, hub *Hub, log *logger.Logger) *RedisRelay {
	return &RedisRelay{
		client:  client,
		hub:     hub,
		channel: client.KeyBuilder.ChannelRooms(),
		origin:  id.MustGenerate("node"),
		out:     make(chan Event, defaultQueueSize),
		ready:   make(chan struct{}),
		log:     log.Component("relay"),
	}
}

// Origin identifies this instance on the channel.
func (r *RedisRelay) Origin() string {
	return r.origin
}

// Ready is closed once the subscription is confirmed.
func (r *RedisRelay) Ready() <-chan struct{} {
	return r.ready
}

// Forward queues evt for publication without blocking.
func (r *RedisRelay) Forward(evt Event) {
	select {
	case r.out <- evt:
	default:
		r.log.Warn("relay queue full, event stays local",
			zap.String("event_type", string(evt.Type)),
			zap.String("battle_id", evt.BattleID))
	}
}

// Run publishes forwarded events and delivers remote ones until ctx is done.
func (r *RedisRelay) Run(ctx context.Context) error {
	sub := r.client.Subscribe(ctx, r.channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", r.channel, err)
	}
	close(r.ready)
	r.log.Info("relay subscribed", zap.String("origin", r.origin))

	msgs := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil

		case evt := <-r.out:
			r.publish(ctx, evt)

		case msg, ok := <-msgs:
			if !ok {
				return nil
			}
			r.receive(msg.Payload)
		}
	}
}

func (r *RedisRelay) publish(ctx context.Context, evt Event) {
	payload, err := r.encode(evt)
	if err != nil {
		r.log.Error("failed to encode relay event", zap.Error(err))
		return
	}

	pubCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	if err := r.client.Publish(pubCtx, r.channel, payload); err != nil {
		r.log.Warn("failed to publish relay event",
			zap.String("event_type", string(evt.Type)),
			zap.Error(err))
	}
}

func (r *RedisRelay) receive(payload string) {
	var w wireEvent
	if err := json.Unmarshal([]byte(payload), &w); err != nil {
		r.log.Warn("discarding malformed relay message", zap.Error(err))
		return
	}
	if w.Origin == r.origin {
		return
	}
	r.hub.Deliver(Event{Type: w.Type, BattleID: w.BattleID, Data: w.Data, Timestamp: w.Timestamp})
}

func (r *RedisRelay) encode(evt Event) ([]byte, error) {
	data, err := json.Marshal(evt.Data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(wireEvent{
		Origin:    r.origin,
		Type:      evt.Type,
		BattleID:  evt.BattleID,
		Data:      data,
		Timestamp: evt.Timestamp,
	})
}
