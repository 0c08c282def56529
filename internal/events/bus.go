package events

import (
	"sync"
	"time"

	"github.com/matt0x6f/garybot/internal/logger"
)

// EventSource represents the source of an event
type EventSource string

const (
	EventSourceSession EventSource = "session"
	EventSourceBot     EventSource = "bot"
)

// Event represents a lifecycle notification
type Event struct {
	Type      string
	Data      map[string]interface{}
	Timestamp time.Time
	Source    EventSource
}

// Subscriber is an interface for event subscribers
type Subscriber interface {
	OnEvent(event Event)
}

// SubscriberFunc adapts a plain function to Subscriber.
type SubscriberFunc func(event Event)

// OnEvent calls f(event).
func (f SubscriberFunc) OnEvent(event Event) { f(event) }

// EventBus manages event routing. A nil *EventBus drops everything, so
// components can be built without one.
type EventBus struct {
	subscribers map[string][]Subscriber
	mu          sync.RWMutex
	wg          sync.WaitGroup
}

// NewEventBus creates a new event bus
func NewEventBus() *EventBus {
	return &EventBus{
		subscribers: make(map[string][]Subscriber),
	}
}

// Subscribe subscribes a subscriber to a specific event type, or "*" for all
func (eb *EventBus) Subscribe(eventType string, subscriber Subscriber) {
	if eb == nil {
		return
	}
	eb.mu.Lock()
	defer eb.mu.Unlock()

	eb.subscribers[eventType] = append(eb.subscribers[eventType], subscriber)
}

func (eb *EventBus) targets(eventType string) []Subscriber {
	eb.mu.RLock()
	defer eb.mu.RUnlock()

	subs := make([]Subscriber, 0, len(eb.subscribers[eventType])+len(eb.subscribers["*"]))
	subs = append(subs, eb.subscribers[eventType]...)
	subs = append(subs, eb.subscribers["*"]...)
	return subs
}

// Emit delivers the event to every subscriber on its own goroutine. A
// panicking subscriber is logged and does not affect the emitter.
func (eb *EventBus) Emit(event Event) {
	if eb == nil {
		return
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	for _, sub := range eb.targets(event.Type) {
		eb.wg.Add(1)
		go func(sub Subscriber) {
			defer eb.wg.Done()
			defer func() {
				if r := recover(); r != nil {
					logger.Log.Error().Interface("panic", r).Str("event", event.Type).Msg("Event subscriber panicked")
				}
			}()
			sub.OnEvent(event)
		}(sub)
	}
}

// EmitSync emits an event synchronously (for testing or when order matters)
func (eb *EventBus) EmitSync(event Event) {
	if eb == nil {
		return
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	for _, sub := range eb.targets(event.Type) {
		sub.OnEvent(event)
	}
}

// Wait blocks until every asynchronous delivery has returned.
func (eb *EventBus) Wait() {
	if eb == nil {
		return
	}
	eb.wg.Wait()
}
