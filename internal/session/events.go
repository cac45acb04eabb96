package session

import (
	"sync"

	"github.com/ifc-viewer/backend/internal/models"
)

// EventType names a session notification.
type EventType string

const (
	EventProgress EventType = "progress"
	EventLoad     EventType = "load"
	EventError    EventType = "error"
	EventSelect   EventType = "select"
	EventHover    EventType = "hover"
	EventCamera   EventType = "camera"
	EventViewMode EventType = "viewMode"
	EventClosed   EventType = "closed"
)

// Event is pushed to session subscribers.
type Event struct {
	Type EventType `json:"type"`
	Data any       `json:"data,omitempty"`
}

// ItemRef is a copy of the identifying attributes of an item, safe to hand
// to other goroutines.
type ItemRef struct {
	ID            int    `json:"id"`
	Kind          string `json:"kind"`
	Name          string `json:"name"`
	Selectable    bool   `json:"selectable"`
	AlwaysVisible bool   `json:"alwaysVisible"`
}

// RefOf returns a reference to it, or nil.
func RefOf(it *models.Item) *ItemRef {
	if it == nil {
		return nil
	}
	return &ItemRef{
		ID:            it.ID,
		Kind:          it.Kind,
		Name:          it.Name,
		Selectable:    it.Selectable,
		AlwaysVisible: it.AlwaysVisible,
	}
}

// subscriberBuffer is the event backlog per subscriber. Events beyond it are
// dropped for that subscriber.
const subscriberBuffer = 64

type hub struct {
	mu     sync.Mutex
	subs   map[int]chan Event
	nextID int
	closed bool
}

func newHub() *hub {
	return &hub{subs: make(map[int]chan Event)}
}

func (h *hub) subscribe() (<-chan Event, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()
	ch := make(chan Event, subscriberBuffer)
	if h.closed {
		close(ch)
		return ch, func() {}
	}
	id := h.nextID
	h.nextID++
	h.subs[id] = ch
	return ch, func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if c, ok := h.subs[id]; ok {
			delete(h.subs, id)
			close(c)
		}
	}
}

func (h *hub) publish(ev Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, ch := range h.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

func (h *hub) close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for id, ch := range h.subs {
		select {
		case ch <- Event{Type: EventClosed}:
		default:
		}
		close(ch)
		delete(h.subs, id)
	}
}
