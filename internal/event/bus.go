// Package event provides the pub/sub bus that carries session notifications
// to in-process subscribers and, through watermill, to streaming clients.
package event

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"

	"github.com/opencode-ai/recipechat/internal/logging"
)

// EventType represents the type of event.
type EventType string

const (
	TranscriptUpdated   EventType = "transcript.updated"
	TranscriptErrorFlag EventType = "transcript.error"
	HistoryUpdated      EventType = "history.updated"
	SessionError        EventType = "session.error"
	SuggestionsUpdated  EventType = "suggestions.updated"
	PluginsUpdated      EventType = "plugins.updated"
	ConfigReloaded      EventType = "config.reloaded"
)

// FeedTopic is the watermill topic every event is mirrored to.
const FeedTopic = "recipechat.events"

// Event represents an event to be published.
type Event struct {
	Type EventType `json:"type"`
	// SessionID names the chat view the event belongs to, empty for global events.
	SessionID string `json:"sessionID,omitempty"`
	// Seq increases with every published event.
	Seq  uint64 `json:"seq"`
	Data any    `json:"data"`
}

// Envelope is an event as received from the feed, with its data still encoded.
type Envelope struct {
	Type      EventType       `json:"type"`
	SessionID string          `json:"sessionID,omitempty"`
	Seq       uint64          `json:"seq"`
	Data      json.RawMessage `json:"data"`
}

// Subscriber is a function that receives events.
type Subscriber func(event Event)

type subscriberEntry struct {
	id uint64
	fn Subscriber
}

// Bus delivers events directly to subscribers, preserving type information
// and order, and mirrors them as JSON to a watermill GoChannel feed.
type Bus struct {
	mu sync.RWMutex

	pubsub *gochannel.GoChannel

	subscribers map[EventType][]subscriberEntry
	global      []subscriberEntry

	nextID uint64
	seq    atomic.Uint64
	closed bool
}

// NewBus creates a new event bus.
func NewBus() *Bus {
	return &Bus{
		pubsub: gochannel.NewGoChannel(
			gochannel.Config{
				OutputChannelBuffer: 100,
				Persistent:          false,
			},
			watermill.NopLogger{},
		),
		subscribers: make(map[EventType][]subscriberEntry),
	}
}

func (b *Bus) newID() uint64 {
	return atomic.AddUint64(&b.nextID, 1)
}

// Subscribe registers a subscriber for one event type and returns the
// unsubscribe function.
func (b *Bus) Subscribe(eventType EventType, fn Subscriber) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return func() {}
	}

	id := b.newID()
	b.subscribers[eventType] = append(b.subscribers[eventType], subscriberEntry{id: id, fn: fn})
	return func() {
		b.unsubscribe(eventType, id)
	}
}

// SubscribeAll registers a subscriber for all events.
func (b *Bus) SubscribeAll(fn Subscriber) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return func() {}
	}

	id := b.newID()
	b.global = append(b.global, subscriberEntry{id: id, fn: fn})
	return func() {
		b.unsubscribeGlobal(id)
	}
}

func (b *Bus) unsubscribe(eventType EventType, id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs := b.subscribers[eventType]
	for i, entry := range subs {
		if entry.id == id {
			b.subscribers[eventType] = append(subs[:i:i], subs[i+1:]...)
			break
		}
	}
}

func (b *Bus) unsubscribeGlobal(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i, entry := range b.global {
		if entry.id == id {
			b.global = append(b.global[:i:i], b.global[i+1:]...)
			break
		}
	}
}

// stamp assigns the sequence number and collects the subscribers.
func (b *Bus) stamp(event *Event) ([]Subscriber, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return nil, false
	}

	event.Seq = b.seq.Add(1)
	subs := make([]Subscriber, 0, len(b.subscribers[event.Type])+len(b.global))
	for _, entry := range b.subscribers[event.Type] {
		subs = append(subs, entry.fn)
	}
	for _, entry := range b.global {
		subs = append(subs, entry.fn)
	}
	return subs, true
}

// Publish sends an event to all subscribers asynchronously, each in its own
// goroutine.
func (b *Bus) Publish(event Event) {
	subs, ok := b.stamp(&event)
	if !ok {
		return
	}
	for _, sub := range subs {
		go sub(event)
	}
	b.mirror(event)
}

// PublishSync calls every subscriber in the current goroutine before
// returning. Subscribers must not block and must not publish.
func (b *Bus) PublishSync(event Event) {
	subs, ok := b.stamp(&event)
	if !ok {
		return
	}
	for _, sub := range subs {
		sub(event)
	}
	b.mirror(event)
}

func (b *Bus) mirror(event Event) {
	payload, err := json.Marshal(event)
	if err != nil {
		logging.Warn().Err(err).Str("eventType", string(event.Type)).Msg("event not mirrored")
		return
	}
	msg := message.NewMessage(watermill.NewULID(), payload)
	msg.Metadata.Set("type", string(event.Type))
	msg.Metadata.Set("session", event.SessionID)
	if err := b.pubsub.Publish(FeedTopic, msg); err != nil {
		logging.Debug().Err(err).Msg("feed publish failed")
	}
}

// Feed streams every event published after the call until ctx is done.
// Delivery across events is not ordered; Seq orders them.
func (b *Bus) Feed(ctx context.Context) (<-chan Envelope, error) {
	msgs, err := b.pubsub.Subscribe(ctx, FeedTopic)
	if err != nil {
		return nil, fmt.Errorf("subscribe feed: %w", err)
	}

	out := make(chan Envelope, 16)
	go func() {
		defer close(out)
		for msg := range msgs {
			var env Envelope
			if err := json.Unmarshal(msg.Payload, &env); err != nil {
				logging.Warn().Err(err).Msg("bad feed payload")
				msg.Ack()
				continue
			}
			select {
			case out <- env:
				msg.Ack()
			case <-ctx.Done():
				msg.Nack()
				return
			}
		}
	}()
	return out, nil
}

// Close closes the bus, dropping all subscribers and ending every feed.
func (b *Bus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	b.subscribers = make(map[EventType][]subscriberEntry)
	b.global = nil
	b.mu.Unlock()

	return b.pubsub.Close()
}
