package stream

import (
	"log/slog"
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"
)

// Event names carried on the wire.
const (
	EventPing         = "ping"
	EventComment      = "comment"
	EventVote         = "vote"
	EventStatus       = "status"
	EventNotification = "notification"
)

const shardCount = 32

// Event is one named payload delivered to a subscriber.
type Event struct {
	Name string
	Data any
}

// Subscription is a single live listener on a topic. Events arrive on C in
// publish order; Done is closed once the subscription has been removed.
type Subscription struct {
	ID    string
	Topic string

	ch     chan Event
	done   chan struct{}
	once   sync.Once
	broker *Broker
}

// C returns the event channel. It is never closed; select on Done as well.
func (s *Subscription) C() <-chan Event { return s.ch }

// Done is closed when the subscription is removed for any reason.
func (s *Subscription) Done() <-chan struct{} { return s.done }

// Close removes the subscription from its topic. Safe to call repeatedly.
func (s *Subscription) Close() {
	s.broker.Unsubscribe(s)
}

func (s *Subscription) markDone() {
	s.once.Do(func() { close(s.done) })
}

type topic struct {
	mu   sync.Mutex
	subs map[string]*Subscription
}

type shard struct {
	mu     sync.Mutex
	topics map[string]*topic
}

// Broker fans events out to per-topic subscriber sets. Topics are spread over
// shards by hash so unrelated topics never contend on the same lock.
type Broker struct {
	name   string
	buffer int
	shards [shardCount]*shard
}

// NewBroker creates a broker whose subscribers buffer up to buffer events.
func NewBroker(name string, buffer int) *Broker {
	if buffer <= 0 {
		buffer = 64
	}
	b := &Broker{name: name, buffer: buffer}
	for i := range b.shards {
		b.shards[i] = &shard{topics: make(map[string]*topic)}
	}
	return b
}

func (b *Broker) shardFor(key string) *shard {
	return b.shards[xxhash.Sum64String(key)%shardCount]
}

// Subscribe registers a listener on key and queues a ping so the client
// learns the connection is live.
func (b *Broker) Subscribe(key string) *Subscription {
	sub := &Subscription{
		ID:     uuid.NewString(),
		Topic:  key,
		ch:     make(chan Event, b.buffer),
		done:   make(chan struct{}),
		broker: b,
	}
	sub.ch <- Event{Name: EventPing, Data: "ok"}

	sh := b.shardFor(key)
	sh.mu.Lock()
	t, ok := sh.topics[key]
	if !ok {
		t = &topic{subs: make(map[string]*Subscription)}
		sh.topics[key] = t
	}
	t.mu.Lock()
	t.subs[sub.ID] = sub
	t.mu.Unlock()
	sh.mu.Unlock()

	slog.Debug("stream subscribed", "broker", b.name, "topic", key, "sub", sub.ID)
	return sub
}

// Publish delivers ev to every current subscriber of key and returns how many
// accepted it. A subscriber whose buffer is full is removed.
func (b *Broker) Publish(key string, ev Event) int {
	sh := b.shardFor(key)
	sh.mu.Lock()
	t, ok := sh.topics[key]
	sh.mu.Unlock()
	if !ok {
		return 0
	}

	// Holding the topic lock for the whole fan-out keeps events for one topic
	// in publish order across concurrent publishers.
	t.mu.Lock()
	delivered := 0
	var stale []*Subscription
	for _, sub := range t.subs {
		select {
		case sub.ch <- ev:
			delivered++
		default:
			stale = append(stale, sub)
		}
	}
	for _, sub := range stale {
		delete(t.subs, sub.ID)
		sub.markDone()
	}
	t.mu.Unlock()

	for _, sub := range stale {
		slog.Warn("stream subscriber too slow, dropped", "broker", b.name, "topic", key, "sub", sub.ID)
	}
	if len(stale) > 0 {
		b.pruneTopic(key)
	}
	return delivered
}

// Unsubscribe removes sub. Removing an already-removed subscription is a no-op.
func (b *Broker) Unsubscribe(sub *Subscription) {
	if sub == nil {
		return
	}
	sh := b.shardFor(sub.Topic)
	sh.mu.Lock()
	t, ok := sh.topics[sub.Topic]
	sh.mu.Unlock()
	if ok {
		t.mu.Lock()
		delete(t.subs, sub.ID)
		t.mu.Unlock()
		b.pruneTopic(sub.Topic)
	}
	sub.markDone()
}

// Subscribers reports the live subscriber count for key.
func (b *Broker) Subscribers(key string) int {
	sh := b.shardFor(key)
	sh.mu.Lock()
	t, ok := sh.topics[key]
	sh.mu.Unlock()
	if !ok {
		return 0
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.subs)
}

// Topics reports how many topics currently have subscribers.
func (b *Broker) Topics() int {
	n := 0
	for _, sh := range b.shards {
		sh.mu.Lock()
		n += len(sh.topics)
		sh.mu.Unlock()
	}
	return n
}

// pruneTopic drops key's entry when its subscriber set is empty.
func (b *Broker) pruneTopic(key string) {
	sh := b.shardFor(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	t, ok := sh.topics[key]
	if !ok {
		return
	}
	t.mu.Lock()
	empty := len(t.subs) == 0
	t.mu.Unlock()
	if empty {
		delete(sh.topics, key)
	}
}
