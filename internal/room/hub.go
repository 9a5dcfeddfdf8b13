package room

import (
	"sync"

	"github.com/yadarochka/quizz-room-server/internal/domain"
)

// Subscriber is one live connection inside a session's room.
type Subscriber struct {
	UserID      string
	DisplayName string
	ch          chan domain.Event
}

// Events returns the channel the hub delivers room broadcasts on.
// The channel is closed when the subscriber leaves the room.
func (s *Subscriber) Events() <-chan domain.Event {
	return s.ch
}

// Hub is the registry of session id -> set of live subscribers.
// Membership here is live delivery only; durable participant records are
// owned by the store and survive a subscriber leaving.
type Hub struct {
	mu    sync.RWMutex
	rooms map[string]map[*Subscriber]struct{}
}

func NewHub() *Hub {
	return &Hub{rooms: make(map[string]map[*Subscriber]struct{})}
}

// Join registers a subscriber in the session's room and returns it.
func (h *Hub) Join(sessionID, userID, displayName string) *Subscriber {
	sub := &Subscriber{
		UserID:      userID,
		DisplayName: displayName,
		ch:          make(chan domain.Event, 16),
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	subs, ok := h.rooms[sessionID]
	if !ok {
		subs = make(map[*Subscriber]struct{})
		h.rooms[sessionID] = subs
	}
	subs[sub] = struct{}{}
	return sub
}

// Leave removes the subscriber, closes its channel and returns the remaining
// headcount. Calling Leave twice for the same subscriber is a no-op.
func (h *Hub) Leave(sessionID string, sub *Subscriber) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	subs, ok := h.rooms[sessionID]
	if !ok {
		return 0
	}
	if _, ok := subs[sub]; ok {
		delete(subs, sub)
		close(sub.ch)
	}
	if len(subs) == 0 {
		delete(h.rooms, sessionID)
		return 0
	}
	return len(subs)
}

// Broadcast delivers the event to every current member of the room.
// A slow reader loses its oldest pending events; delivery never blocks,
// so no sender can park here holding the lock.
func (h *Hub) Broadcast(sessionID string, evt domain.Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for sub := range h.rooms[sessionID] {
		for {
			select {
			case sub.ch <- evt:
			default:
				// Drop the oldest pending event and retry the send.
				select {
				case <-sub.ch:
				default:
				}
				continue
			}
			break
		}
	}
}

// Count returns the live headcount of the room.
func (h *Hub) Count(sessionID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[sessionID])
}

// IsMember reports whether the user currently has a live subscription.
func (h *Hub) IsMember(sessionID, userID string) bool {
	_, ok := h.Member(sessionID, userID)
	return ok
}

// Member returns the user's live subscriber in the room, if any.
func (h *Hub) Member(sessionID, userID string) (*Subscriber, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for sub := range h.rooms[sessionID] {
		if sub.UserID == userID {
			return sub, true
		}
	}
	return nil, false
}
