package broadcast

import (
	"log/slog"
	"sync"
	"time"

	"github.com/dom/stream-games/internal/metrics"
)

const (
	subscriberBuffer = 64
	defaultHeartbeat = 25 * time.Second
)

// Subscriber is one live connection attached to a pool.
type Subscriber struct {
	pool   Pool
	events chan Event
	done   chan struct{}
	once   sync.Once
}

func (s *Subscriber) Events() <-chan Event {
	return s.events
}

// Done is closed when the hub shuts down.
func (s *Subscriber) Done() <-chan struct{} {
	return s.done
}

func (s *Subscriber) stop() {
	s.once.Do(func() { close(s.done) })
}

// Hub fans events out to pools of subscribers. Publishing never blocks: a
// subscriber whose buffer is full misses the event.
type Hub struct {
	mu        sync.RWMutex
	pools     map[Pool]map[*Subscriber]struct{}
	stopped   bool
	heartbeat time.Duration
	origins   []string
	logger    *slog.Logger
	metrics   *metrics.Metrics
}

type Option func(*Hub)

func WithHeartbeat(d time.Duration) Option {
	return func(h *Hub) {
		if d > 0 {
			h.heartbeat = d
		}
	}
}

// WithAllowedOrigins restricts WebSocket upgrades to the given origins.
// An empty list or "*" accepts any origin.
func WithAllowedOrigins(origins []string) Option {
	return func(h *Hub) {
		h.origins = origins
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(h *Hub) {
		h.metrics = m
	}
}

func NewHub(logger *slog.Logger, opts ...Option) *Hub {
	h := &Hub{
		pools:     make(map[Pool]map[*Subscriber]struct{}, len(Pools)),
		heartbeat: defaultHeartbeat,
		logger:    logger,
	}
	for _, p := range Pools {
		h.pools[p] = make(map[*Subscriber]struct{})
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Subscribe attaches a new subscriber to pool. It returns nil once the hub
// has been closed.
func (h *Hub) Subscribe(pool Pool) *Subscriber {
	sub := &Subscriber{
		pool:   pool,
		events: make(chan Event, subscriberBuffer),
		done:   make(chan struct{}),
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.stopped {
		return nil
	}
	members, ok := h.pools[pool]
	if !ok {
		members = make(map[*Subscriber]struct{})
		h.pools[pool] = members
	}
	members[sub] = struct{}{}
	h.setGauge(pool, len(members))
	return sub
}

func (h *Hub) Unsubscribe(sub *Subscriber) {
	if sub == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	members := h.pools[sub.pool]
	if _, ok := members[sub]; !ok {
		return
	}
	delete(members, sub)
	h.setGauge(sub.pool, len(members))
}

// Publish delivers event to every subscriber of pool without waiting on any of them.
func (h *Hub) Publish(pool Pool, event Event) {
	h.mu.RLock()
	members := make([]*Subscriber, 0, len(h.pools[pool]))
	for sub := range h.pools[pool] {
		members = append(members, sub)
	}
	h.mu.RUnlock()

	if h.metrics != nil {
		h.metrics.HubEvents.WithLabelValues(string(pool)).Inc()
	}

	dropped := 0
	for _, sub := range members {
		if !trySend(sub, event) {
			dropped++
		}
	}
	if dropped > 0 {
		if h.metrics != nil {
			h.metrics.HubDropped.WithLabelValues(string(pool)).Add(float64(dropped))
		}
		h.logger.Debug("hub dropped events for slow subscribers", "pool", pool, "event", event.Name, "dropped", dropped)
	}
}

// PublishJSON marshals payload and publishes it under name. Encoding
// failures are logged and swallowed.
func (h *Hub) PublishJSON(pool Pool, name string, payload interface{}) {
	event, err := NewEvent(name, payload)
	if err != nil {
		h.logger.Error("[Hub.PublishJSON] encode failed", "pool", pool, "event", name, "error", err)
		return
	}
	h.Publish(pool, event)
}

// Count returns the number of subscribers currently attached to pool.
func (h *Hub) Count(pool Pool) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.pools[pool])
}

// Close detaches every subscriber and signals their transports to finish.
// Later Subscribe calls return nil.
func (h *Hub) Close() {
	h.mu.Lock()
	if h.stopped {
		h.mu.Unlock()
		return
	}
	h.stopped = true
	pools := h.pools
	h.pools = make(map[Pool]map[*Subscriber]struct{})
	h.mu.Unlock()

	for pool, members := range pools {
		for sub := range members {
			sub.stop()
		}
		h.setGauge(pool, 0)
	}
}

func (h *Hub) setGauge(pool Pool, n int) {
	if h.metrics != nil {
		h.metrics.HubSubscribers.WithLabelValues(string(pool)).Set(float64(n))
	}
}

func trySend(sub *Subscriber, event Event) bool {
	select {
	case sub.events <- event:
		return true
	default:
		return false
	}
}
