// Package events publishes booking engine changes for downstream consumers.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/example/taxilink/internal/models"
)

const (
	TypeBookingCommitted = "booking.committed"
	TypeBookingStatus    = "booking.status_changed"
	TypeDriverRegistered = "driver.registered"
	TypeDriverAvailable  = "driver.availability_changed"
)

type Event struct {
	Type    string          `json:"type"`
	At      time.Time       `json:"at"`
	Booking *models.Booking `json:"booking,omitempty"`
	Driver  *models.Driver  `json:"driver,omitempty"`
}

// Key partitions booking events by booking id and driver events by driver id.
func (e Event) Key() string {
	switch {
	case e.Booking != nil:
		return "booking:" + strconv.FormatInt(e.Booking.ID, 10)
	case e.Driver != nil:
		return "driver:" + strconv.FormatInt(e.Driver.ID, 10)
	}
	return e.Type
}

func BookingCommitted(b models.Booking) Event {
	return Event{Type: TypeBookingCommitted, At: time.Now().UTC(), Booking: &b}
}

func BookingStatusChanged(b models.Booking) Event {
	return Event{Type: TypeBookingStatus, At: time.Now().UTC(), Booking: &b}
}

func DriverRegistered(d models.Driver) Event {
	return Event{Type: TypeDriverRegistered, At: time.Now().UTC(), Driver: &d}
}

func DriverAvailabilityChanged(d models.Driver) Event {
	return Event{Type: TypeDriverAvailable, At: time.Now().UTC(), Driver: &d}
}

type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// Nop drops every event.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type KafkaPublisher struct {
	writer  messageWriter
	timeout time.Duration
}

func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	w := kafka.NewWriter(kafka.WriterConfig{Brokers: brokers, Topic: topic, Balancer: &kafka.LeastBytes{}})
	return &KafkaPublisher{writer: w, timeout: 2 * time.Second}
}

func (k *KafkaPublisher) Publish(ctx context.Context, e Event) error {
	ctx, cancel := context.WithTimeout(ctx, k.timeout)
	defer cancel()
	b, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	return k.writer.WriteMessages(ctx, kafka.Message{
		Key:     []byte(e.Key()),
		Value:   b,
		Headers: []kafka.Header{{Key: "type", Value: []byte(e.Type)}},
	})
}

func (k *KafkaPublisher) Close() error {
	if k.writer == nil {
		return nil
	}
	return k.writer.Close()
}

// Decode parses a message value written by KafkaPublisher.
func Decode(value []byte) (Event, error) {
	var e Event
	if err := json.Unmarshal(value, &e); err != nil {
		return Event{}, err
	}
	if e.Type == "" {
		return Event{}, fmt.Errorf("event without type")
	}
	return e, nil
}
