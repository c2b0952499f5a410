package memory

import (
	"context"
	"sync"

	"daily-quiz-service/internal/domain"
)

const subscriberBuffer = 8

// NotificationHub fans learner events out to the connections subscribed in
// this process. A learner may hold several connections at once.
type NotificationHub struct {
	mu          sync.RWMutex
	subscribers map[string]map[chan domain.Event]struct{}
}

func NewNotificationHub() *NotificationHub {
	return &NotificationHub{
		subscribers: make(map[string]map[chan domain.Event]struct{}),
	}
}

// Subscribe registers a connection for learnerID. The returned cancel
// closes the channel and drops the learner entry once it is empty.
func (h *NotificationHub) Subscribe(learnerID string) (<-chan domain.Event, func()) {
	ch := make(chan domain.Event, subscriberBuffer)

	h.mu.Lock()
	subs, ok := h.subscribers[learnerID]
	if !ok {
		subs = make(map[chan domain.Event]struct{})
		h.subscribers[learnerID] = subs
	}
	subs[ch] = struct{}{}
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		subs, ok := h.subscribers[learnerID]
		if !ok {
			return
		}
		if _, ok := subs[ch]; ok {
			delete(subs, ch)
			close(ch)
		}
		if len(subs) == 0 {
			delete(h.subscribers, learnerID)
		}
	}
	return ch, cancel
}

// Notify implements app.Notifier.
func (h *NotificationHub) Notify(_ context.Context, learnerID string, event domain.Event) {
	h.Deliver(learnerID, event)
}

// Deliver pushes event to every subscriber of learnerID without blocking.
func (h *NotificationHub) Deliver(learnerID string, event domain.Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for ch := range h.subscribers[learnerID] {
		select {
		case ch <- event:
		default:
			// Slow client: drop the oldest event to make room.
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- event:
			default:
			}
		}
	}
}

// Subscribers reports how many connections learnerID holds.
func (h *NotificationHub) Subscribers(learnerID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers[learnerID])
}
