package broadcast

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"versus-backend/internal/id"
	"versus-backend/internal/metrics"
	"versus-backend/pkg/logger"
)

const (
	defaultQueueSize      = 1000
	defaultSubscriberSize = 64
	defaultHeartbeat      = 30 * time.Second
)

// ErrHubClosed is returned by Join after Shutdown.
var ErrHubClosed = errors.New("broadcast hub is shut down")

// Subscriber is one connection joined to a battle room. Events is closed
// by the hub when the subscriber leaves or the hub shuts down.
type Subscriber struct {
	ID          string
	BattleID    string
	Events      chan Event
	ConnectedAt time.Time
}

// Forwarder ships locally published events to other instances.
type Forwarder interface {
	Forward(evt Event)
}

// Hub keeps rooms of subscribers keyed by battle id. Delivery is at most
// once: a subscriber whose buffer is full misses the event.
type Hub struct {
	rooms     map[string]map[string]*Subscriber
	mu        sync.RWMutex
	events    chan Event
	log       *logger.Logger
	metrics   *metrics.Metrics
	forwarder Forwarder
	wg        sync.WaitGroup

	heartbeatInterval time.Duration
	subscriberBuffer  int

	started    atomic.Bool
	shutdownMu sync.RWMutex
	shutdown   bool
}

// Option configures a Hub.
type Option func(*Hub)

// WithHeartbeat sets how often idle rooms receive a heartbeat.
func WithHeartbeat(d time.Duration) Option {
	return func(h *Hub) { h.heartbeatInterval = d }
}

// WithSubscriberBuffer sets the per-subscriber queue length.
func WithSubscriberBuffer(n int) Option {
	return func(h *Hub) { h.subscriberBuffer = n }
}

// WithQueueSize sets the hub-wide pending event queue length.
func WithQueueSize(n int) Option {
	return func(h *Hub) { h.events = make(chan Event, n) }
}

func NewHub(log *logger.Logger, m *metrics.Metrics, opts ...Option) *Hub {
	h := &Hub{
		rooms:             make(map[string]map[string]*Subscriber),
		events:            make(chan Event, defaultQueueSize),
		log:               log.Component("broadcast"),
		metrics:           m,
		heartbeatInterval: defaultHeartbeat,
		subscriberBuffer:  defaultSubscriberSize,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// SetForwarder attaches the cross-instance relay. Call before Start.
func (h *Hub) SetForwarder(f Forwarder) {
	h.forwarder = f
}

// Start launches the delivery loop. It runs until ctx is done or Shutdown
// closes the queue.
func (h *Hub) Start(ctx context.Context) {
	h.wg.Add(1)
	h.started.Store(true)
	go h.run(ctx)
}

func (h *Hub) run(ctx context.Context) {
	defer h.wg.Done()

	h.log.Info("broadcast hub starting")

	ticker := time.NewTicker(h.heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case evt, ok := <-h.events:
			if !ok {
				h.closeAll()
				return
			}
			h.deliver(evt)

		case <-ticker.C:
			h.deliver(NewHeartbeatEvent())

		case <-ctx.Done():
			h.log.Info("broadcast hub stopping")
			h.closeAll()
			return
		}
	}
}

// Shutdown stops accepting events, lets the loop drain what is queued and
// closes every subscriber.
func (h *Hub) Shutdown(ctx context.Context) error {
	h.shutdownMu.Lock()
	if h.shutdown {
		h.shutdownMu.Unlock()
		return nil
	}
	h.shutdown = true
	close(h.events)
	h.shutdownMu.Unlock()

	if !h.started.Load() {
		h.closeAll()
		return nil
	}

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		h.log.Info("broadcast hub shutdown complete")
		return nil
	case <-ctx.Done():
		h.log.Warn("broadcast drain timeout, some events may be lost")
		return ctx.Err()
	}
}

// Join subscribes a new connection to a battle room.
func (h *Hub) Join(battleID string) (*Subscriber, error) {
	h.shutdownMu.RLock()
	closed := h.shutdown
	h.shutdownMu.RUnlock()
	if closed {
		return nil, ErrHubClosed
	}

	subID, err := id.Generate("sub")
	if err != nil {
		return nil, err
	}

	sub := &Subscriber{
		ID:          subID,
		BattleID:    battleID,
		Events:      make(chan Event, h.subscriberBuffer),
		ConnectedAt: time.Now(),
	}

	h.mu.Lock()
	room, ok := h.rooms[battleID]
	if !ok {
		room = make(map[string]*Subscriber)
		h.rooms[battleID] = room
	}
	room[sub.ID] = sub
	roomSize := len(room)
	h.mu.Unlock()

	h.metrics.RoomSubscribers.Inc()
	h.log.Debug("subscriber joined",
		zap.String("battle_id", battleID),
		zap.String("subscriber_id", sub.ID),
		zap.Int("room_size", roomSize))

	return sub, nil
}

// Leave removes a subscriber and closes its channel. Unknown or already
// removed subscribers are ignored.
func (h *Hub) Leave(sub *Subscriber) {
	h.mu.Lock()
	room, ok := h.rooms[sub.BattleID]
	if !ok {
		h.mu.Unlock()
		return
	}
	if _, ok := room[sub.ID]; !ok {
		h.mu.Unlock()
		return
	}
	delete(room, sub.ID)
	if len(room) == 0 {
		delete(h.rooms, sub.BattleID)
	}
	h.metrics.RoomSubscribers.Dec()
	close(sub.Events)
	h.mu.Unlock()

	h.log.Debug("subscriber left",
		zap.String("battle_id", sub.BattleID),
		zap.String("subscriber_id", sub.ID),
		zap.Duration("duration", time.Since(sub.ConnectedAt)))
}

// Publish queues a locally produced event and forwards it to other
// instances. It never blocks.
func (h *Hub) Publish(evt Event) {
	if !h.enqueue(evt) {
		return
	}
	h.metrics.BroadcastEvents.WithLabelValues(string(evt.Type)).Inc()
	if h.forwarder != nil {
		h.forwarder.Forward(evt)
	}
}

// Deliver queues an event that arrived from another instance.
func (h *Hub) Deliver(evt Event) {
	h.enqueue(evt)
}

func (h *Hub) enqueue(evt Event) bool {
	// The read lock is held through the send so Shutdown cannot close the
	// channel underneath it.
	h.shutdownMu.RLock()
	defer h.shutdownMu.RUnlock()

	if h.shutdown {
		return false
	}

	select {
	case h.events <- evt:
		return true
	default:
		h.log.Error("broadcast queue full, dropping event",
			zap.String("event_type", string(evt.Type)),
			zap.String("battle_id", evt.BattleID))
		return false
	}
}

// deliver copies evt into the buffer of every subscriber of its room.
func (h *Hub) deliver(evt Event) {
	var delivered, dropped int

	send := func(sub *Subscriber) {
		select {
		case sub.Events <- evt:
			delivered++
		default:
			dropped++
			h.log.Warn("dropped event for slow subscriber",
				zap.String("subscriber_id", sub.ID),
				zap.String("event_type", string(evt.Type)))
		}
	}

	h.mu.RLock()
	if evt.BattleID == "" {
		for _, room := range h.rooms {
			for _, sub := range room {
				send(sub)
			}
		}
	} else {
		for _, sub := range h.rooms[evt.BattleID] {
			send(sub)
		}
	}
	h.mu.RUnlock()

	if evt.Type == EventHeartbeat {
		return
	}
	h.metrics.BroadcastDeliveries.WithLabelValues("delivered").Add(float64(delivered))
	h.metrics.BroadcastDeliveries.WithLabelValues("dropped").Add(float64(dropped))
	h.log.Debug("event broadcast",
		zap.String("event_type", string(evt.Type)),
		zap.String("battle_id", evt.BattleID),
		zap.Int("delivered", delivered),
		zap.Int("dropped", dropped))
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	n := 0
	for _, room := range h.rooms {
		n += len(room)
	}
	h.metrics.RoomSubscribers.Sub(float64(n))

	for _, room := range h.rooms {
		for _, sub := range room {
			close(sub.Events)
		}
	}
	h.rooms = make(map[string]map[string]*Subscriber)

	h.log.Info("all subscribers disconnected", zap.Int("count", n))
}

// RoomSize returns the number of subscribers joined to battleID.
func (h *Hub) RoomSize(battleID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[battleID])
}

// SubscriberCount returns the number of subscribers across all rooms.
func (h *Hub) SubscriberCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, room := range h.rooms {
		n += len(room)
	}
	return n
}
