// Package events carries session lifecycle notifications to interested
// subscribers inside the process.
package events

import "sync"

// EventType represents the type of event
type EventType string

// Define event types
const (
	EventSessionCreated   EventType = "SESSION_CREATED"
	EventGameStarted      EventType = "GAME_STARTED"
	EventMovePlayed       EventType = "MOVE_PLAYED"
	EventClockUpdated     EventType = "CLOCK_UPDATED"
	EventGameEnded        EventType = "GAME_ENDED"
	EventSessionDestroyed EventType = "SESSION_DESTROYED"
	EventConnectionClosed EventType = "CONNECTION_CLOSED"
)

const allEvents EventType = "*"

// Event represents an event in the system
type Event struct {
	Type    EventType `json:"type"`
	RoomID  string    `json:"room_id,omitempty"`
	Payload any       `json:"payload,omitempty"`
}

// Handler is a function that processes events
type Handler func(event Event)

// Publisher is the central event publisher
type Publisher struct {
	mu          sync.RWMutex
	subscribers map[EventType][]Handler
	inline      map[EventType][]Handler
}

// NewPublisher creates a new event publisher
func NewPublisher() *Publisher {
	return &Publisher{
		subscribers: make(map[EventType][]Handler),
		inline:      make(map[EventType][]Handler),
	}
}

// Subscribe registers a handler for a specific event type
func (p *Publisher) Subscribe(eventType EventType, handler Handler) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.subscribers[eventType] = append(p.subscribers[eventType], handler)
}

// SubscribeSync registers a handler that runs on the publishing goroutine,
// before Publish returns. It must not block.
func (p *Publisher) SubscribeSync(eventType EventType, handler Handler) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.inline[eventType] = append(p.inline[eventType], handler)
}

// SubscribeAll registers a handler for all event types
func (p *Publisher) SubscribeAll(handler Handler) {
	p.Subscribe(allEvents, handler)
}

// Publish broadcasts an event to all subscribers including "all events"
// handlers. Handlers run on their own goroutines so a slow subscriber never
// stalls the caller.
func (p *Publisher) Publish(event Event) {
	if p == nil {
		return
	}

	p.mu.RLock()
	handlers := p.subscribers[event.Type]
	allHandlers := p.subscribers[allEvents]
	inline := p.inline[event.Type]
	p.mu.RUnlock()

	for _, handler := range inline {
		handler(event)
	}

	for _, handler := range handlers {
		go handler(event)
	}

	for _, handler := range allHandlers {
		go handler(event)
	}
}
