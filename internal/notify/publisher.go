package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

const DefaultSubjectPrefix = "cinex.seats"

// Publisher is the part of *nats.Conn used to broadcast seat events.
type Publisher interface {
	Publish(subject string, data []byte) error
}

type seatMessage struct {
	SeatID     int       `json:"seat_id"`
	ScheduleID int       `json:"schedule_id"`
	SeatNumber string    `json:"seat_number"`
	Action     string    `json:"action"`
	Booked     bool      `json:"booked"`
	Timestamp  time.Time `json:"timestamp"`
}

// PublisherListener forwards seat events to a message broker, one subject per
// action: <prefix>.booked and <prefix>.released.
type PublisherListener struct {
	publisher Publisher
	prefix    string
}

func NewPublisherListener(publisher Publisher, prefix string) *PublisherListener {
	if prefix == "" {
		prefix = DefaultSubjectPrefix
	}

	return &PublisherListener{publisher: publisher, prefix: strings.TrimSuffix(prefix, ".")}
}

func (p *PublisherListener) ID() string {
	return "publisher:" + p.prefix
}

func (p *PublisherListener) Subject(event SeatEvent) string {
	return p.prefix + "." + strings.ToLower(string(event.Action()))
}

func (p *PublisherListener) OnSeatChanged(_ context.Context, event SeatEvent) error {
	data, err := json.Marshal(seatMessage{
		SeatID:     event.SeatID,
		ScheduleID: event.ScheduleID,
		SeatNumber: event.SeatNumber,
		Action:     string(event.Action()),
		Booked:     event.Booked,
		Timestamp:  event.OccurredAt,
	})
	if err != nil {
		return err
	}

	if err := p.publisher.Publish(p.Subject(event), data); err != nil {
		return fmt.Errorf("publishing seat event: %w", err)
	}

	return nil
}
