// Package notify fans seat state changes out to registered listeners.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/metinatakli/cinex-booking/internal/domain"
)

// SeatKey identifies a seat's listener registry.
type SeatKey struct {
	ScheduleID int
	SeatNumber string
}

func KeyOf(seat domain.Seat) SeatKey {
	return SeatKey{ScheduleID: seat.ScheduleID, SeatNumber: seat.Number}
}

type SeatEvent struct {
	SeatID     int
	ScheduleID int
	SeatNumber string
	Booked     bool
	OccurredAt time.Time
}

func (e SeatEvent) Key() SeatKey {
	return SeatKey{ScheduleID: e.ScheduleID, SeatNumber: e.SeatNumber}
}

func (e SeatEvent) Action() domain.SeatAction {
	return domain.ActionFor(e.Booked)
}

// Listener receives committed seat changes. ID is the listener's identity
// within a registry.
type Listener interface {
	ID() string
	OnSeatChanged(ctx context.Context, event SeatEvent) error
}

type funcListener struct {
	id string
	fn func(ctx context.Context, event SeatEvent) error
}

func (f funcListener) ID() string { return f.id }

func (f funcListener) OnSeatChanged(ctx context.Context, event SeatEvent) error {
	return f.fn(ctx, event)
}

// ListenerFunc adapts a function to a Listener with the given identity.
func ListenerFunc(id string, fn func(ctx context.Context, event SeatEvent) error) Listener {
	return funcListener{id: id, fn: fn}
}

// Hub is safe for concurrent use. Listeners are invoked synchronously on the
// notifying goroutine, outside the hub's own lock, so a listener may subscribe,
// unsubscribe, or trigger further seat changes.
type Hub struct {
	logger *slog.Logger

	mu     sync.RWMutex
	seats  map[SeatKey][]Listener
	global []Listener
}

func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		logger: logger,
		seats:  make(map[SeatKey][]Listener),
	}
}

func indexOf(listeners []Listener, id string) int {
	return slices.IndexFunc(listeners, func(l Listener) bool { return l.ID() == id })
}

// Subscribe registers l on a seat. It reports false, and changes nothing, when a
// listener with the same ID is already registered there.
func (h *Hub) Subscribe(key SeatKey, l Listener) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if indexOf(h.seats[key], l.ID()) >= 0 {
		h.logger.Debug("listener already subscribed", "listener", l.ID(), "schedule_id", key.ScheduleID, "seat", key.SeatNumber)
		return false
	}

	h.seats[key] = append(h.seats[key], l)
	return true
}

func (h *Hub) Unsubscribe(key SeatKey, l Listener) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	listeners := h.seats[key]
	i := indexOf(listeners, l.ID())
	if i < 0 {
		return false
	}

	listeners = slices.Delete(slices.Clone(listeners), i, i+1)
	if len(listeners) == 0 {
		delete(h.seats, key)
	} else {
		h.seats[key] = listeners
	}

	return true
}

// SubscribeAll registers l for every seat. Global listeners are called after
// the seat's own listeners.
func (h *Hub) SubscribeAll(l Listener) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if indexOf(h.global, l.ID()) >= 0 {
		h.logger.Debug("global listener already subscribed", "listener", l.ID())
		return false
	}

	h.global = append(h.global, l)
	return true
}

func (h *Hub) UnsubscribeAll(l Listener) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	i := indexOf(h.global, l.ID())
	if i < 0 {
		return false
	}

	h.global = slices.Delete(slices.Clone(h.global), i, i+1)
	return true
}

// Listeners returns the delivery order for a seat.
func (h *Hub) Listeners(key SeatKey) []Listener {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]Listener, 0, len(h.seats[key])+len(h.global))
	out = append(out, h.seats[key]...)
	out = append(out, h.global...)

	return out
}

// Notify delivers event to every listener of its seat. Listener errors and
// panics are logged and do not stop delivery.
func (h *Hub) Notify(ctx context.Context, event SeatEvent) {
	for _, l := range h.Listeners(event.Key()) {
		if err := h.deliver(ctx, l, event); err != nil {
			h.logger.Warn("seat listener failed",
				"listener", l.ID(),
				"schedule_id", event.ScheduleID,
				"seat", event.SeatNumber,
				"action", event.Action(),
				"error", err)
		}
	}
}

func (h *Hub) deliver(ctx context.Context, l Listener, event SeatEvent) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("listener panic: %v", r)
		}
	}()

	return l.OnSeatChanged(ctx, event)
}
