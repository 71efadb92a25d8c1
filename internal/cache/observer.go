package cache

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ovaphlow/pitchfork/zippora-client-go/pkg/utilities"
)

// Topic names the snapshot an Event is about.
type Topic string

const (
	TopicProfile    Topic = "profile"
	TopicApartments Topic = "apartments"
	TopicLogs       Topic = "logs"
	TopicCandidates Topic = "candidates"
	TopicUnits      Topic = "units"
	// TopicCleared means every snapshot was dropped (session change).
	TopicCleared Topic = "cleared"
)

// Event tells a subscriber that a snapshot changed. It carries no data;
// subscribers read the snapshot they care about.
type Event struct {
	ID    string    `json:"id"`
	Topic Topic     `json:"topic"`
	At    time.Time `json:"at"`
}

const subscriptionBuffer = 16

// Subscription receives change events until closed. A subscriber that
// falls behind loses events rather than slowing writers down.
type Subscription struct {
	ID string
	C  <-chan Event

	c       chan Event
	hub     *hub
	closeMu sync.Once
}

// Close stops delivery and closes C.
func (s *Subscription) Close() {
	s.closeMu.Do(func() { s.hub.remove(s.ID) })
}

type hub struct {
	mu   sync.Mutex
	subs map[string]*Subscription
}

func newHub() *hub {
	return &hub{subs: map[string]*Subscription{}}
}

func (h *hub) add() *Subscription {
	c := make(chan Event, subscriptionBuffer)
	s := &Subscription{ID: uuid.NewString(), C: c, c: c, hub: h}
	h.mu.Lock()
	h.subs[s.ID] = s
	h.mu.Unlock()
	return s
}

func (h *hub) remove(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if s, ok := h.subs[id]; ok {
		delete(h.subs, id)
		close(s.c)
	}
}

// publish returns the number of subscribers that missed the event.
func (h *hub) publish(topic Topic) int {
	ev := Event{ID: utilities.NewKSUID(), Topic: topic, At: time.Now()}
	h.mu.Lock()
	defer h.mu.Unlock()
	dropped := 0
	for _, s := range h.subs {
		select {
		case s.c <- ev:
		default:
			dropped++
		}
	}
	return dropped
}

func (h *hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, s := range h.subs {
		delete(h.subs, id)
		close(s.c)
	}
}
