package curtain

import (
	"log/slog"
	"sync"
)

// Event types
const (
	EventStateChanged    = "state_changed"
	EventCommandRejected = "command_rejected"
	EventCommandSent     = "command_sent"
)

// Event is a notification for the host layer.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// StateChange is the payload of EventStateChanged.
type StateChange struct {
	Device   string `json:"device"`
	Endpoint int    `json:"endpoint"`
	Field    string `json:"field"`
	Value    any    `json:"value"`
}

// Rejection is the payload of EventCommandRejected.
type Rejection struct {
	Device   string `json:"device"`
	Endpoint int    `json:"endpoint"`
	Command  uint8  `json:"command"`
	AttrID   uint16 `json:"attr_id,omitempty"`
	Status   uint8  `json:"status"`
}

// CommandSent is the payload of EventCommandSent.
type CommandSent struct {
	Device    string `json:"device"`
	Endpoint  int    `json:"endpoint"`
	Operation string `json:"operation"`
	Frames    int    `json:"frames"`
}

// EventHandler is a callback for events.
type EventHandler func(Event)

// EventBus provides pub/sub for device events.
type EventBus struct {
	mu          sync.RWMutex
	handlers    map[string]map[uint64]EventHandler
	allHandlers map[uint64]EventHandler
	nextID      uint64
	logger      *slog.Logger
}

// NewEventBus creates a new event bus.
func NewEventBus(logger *slog.Logger) *EventBus {
	return &EventBus{
		handlers:    make(map[string]map[uint64]EventHandler),
		allHandlers: make(map[uint64]EventHandler),
		logger:      logger,
	}
}

// On registers a handler for a specific event type.
// Returns an unsubscribe function.
func (eb *EventBus) On(eventType string, handler EventHandler) func() {
	eb.mu.Lock()
	defer eb.mu.Unlock()
	id := eb.nextID
	eb.nextID++
	if eb.handlers[eventType] == nil {
		eb.handlers[eventType] = make(map[uint64]EventHandler)
	}
	eb.handlers[eventType][id] = handler
	return func() {
		eb.mu.Lock()
		defer eb.mu.Unlock()
		delete(eb.handlers[eventType], id)
	}
}

// OnAll registers a handler that receives all events.
// Returns an unsubscribe function.
func (eb *EventBus) OnAll(handler EventHandler) func() {
	eb.mu.Lock()
	defer eb.mu.Unlock()
	id := eb.nextID
	eb.nextID++
	eb.allHandlers[id] = handler
	return func() {
		eb.mu.Lock()
		defer eb.mu.Unlock()
		delete(eb.allHandlers, id)
	}
}

// Emit sends an event to all matching handlers.
// Handlers are called synchronously; a panicking handler is recovered.
func (eb *EventBus) Emit(event Event) {
	eb.mu.RLock()
	handlers := make([]EventHandler, 0, len(eb.handlers[event.Type])+len(eb.allHandlers))
	for _, h := range eb.handlers[event.Type] {
		handlers = append(handlers, h)
	}
	for _, h := range eb.allHandlers {
		handlers = append(handlers, h)
	}
	eb.mu.RUnlock()

	for _, h := range handlers {
		func() {
			defer func() {
				if r := recover(); r != nil {
					eb.logger.Error("event handler panic", "type", event.Type, "panic", r)
				}
			}()
			h(event)
		}()
	}
}
