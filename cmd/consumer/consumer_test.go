package main

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/example/taxilink/internal/events"
	"github.com/example/taxilink/internal/logging"
	"github.com/example/taxilink/internal/models"
)

// fakeUpdater implements RedisUpdater for tests
type fakeUpdater struct {
	failH  int // number of times to fail HSet before succeeding
	hCalls int
	hashes map[string]map[string]interface{}
	lists  map[string][]interface{}
}

func newFakeUpdater(failH int) *fakeUpdater {
	return &fakeUpdater{failH: failH, hashes: map[string]map[string]interface{}{}, lists: map[string][]interface{}{}}
}

func (f *fakeUpdater) HSet(ctx context.Context, key string, values map[string]interface{}) error {
	f.hCalls++
	if f.hCalls <= f.failH {
		return errors.New("hset fail")
	}
	f.hashes[key] = values
	return nil
}

func (f *fakeUpdater) PushUnique(ctx context.Context, key string, value interface{}) error {
	kept := []interface{}{value}
	for _, v := range f.lists[key] {
		if v != value {
			kept = append(kept, v)
		}
	}
	f.lists[key] = kept
	return nil
}

func committed() events.Event {
	return events.BookingCommitted(models.Booking{ID: 42, From: "Bree", To: "Soweto", Status: models.StatusActive, Method: models.MethodOnline, Price: "R15", Driver: "Thabo Mthembu"})
}

func TestApplyWithRetry_SucceedsAfterRetries(t *testing.T) {
	f := newFakeUpdater(1)
	m := &mirror{rc: f, prefix: "taxilink:"}
	start := time.Now()
	if err := m.applyWithRetry(context.Background(), committed(), 3, 10*time.Millisecond); err != nil {
		t.Fatalf("expected success, got err=%v", err)
	}
	if f.hCalls < 2 {
		t.Fatalf("expected retries, got h=%d", f.hCalls)
	}
	if time.Since(start) < 10*time.Millisecond {
		t.Fatalf("expected at least one backoff")
	}
	h := f.hashes["taxilink:booking:42"]
	if h["status"] != "active" || h["driver"] != "Thabo Mthembu" {
		t.Fatalf("unexpected hash %v", h)
	}
	if got := f.lists["taxilink:bookings:recent"]; len(got) != 1 || got[0] != int64(42) {
		t.Fatalf("booking id not pushed: %v", got)
	}
}

func TestApplyWithRetry_FailsWhenExhausted(t *testing.T) {
	f := newFakeUpdater(5)
	m := &mirror{rc: f}
	if err := m.applyWithRetry(context.Background(), committed(), 3, 5*time.Millisecond); err == nil {
		t.Fatalf("expected error after retries")
	}
	if f.hCalls != 3 {
		t.Fatalf("expected 3 attempts, got %d", f.hCalls)
	}
}

func TestRedeliveredCommitIsListedOnce(t *testing.T) {
	f := newFakeUpdater(0)
	m := &mirror{rc: f}
	for i := 0; i < 2; i++ {
		if err := m.apply(context.Background(), committed()); err != nil {
			t.Fatal(err)
		}
	}
	other := events.BookingCommitted(models.Booking{ID: 43, From: "A", To: "B", Status: models.StatusActive, Method: models.MethodOnline})
	if err := m.apply(context.Background(), other); err != nil {
		t.Fatal(err)
	}
	if err := m.apply(context.Background(), committed()); err != nil {
		t.Fatal(err)
	}
	got := f.lists["bookings:recent"]
	if len(got) != 2 || got[0] != int64(42) || got[1] != int64(43) {
		t.Fatalf("expected each booking listed once, newest delivery first: %v", got)
	}
}

func TestStatusChangeDoesNotRepush(t *testing.T) {
	f := newFakeUpdater(0)
	m := &mirror{rc: f}
	b := models.Booking{ID: 7, From: "A", To: "B", Status: models.StatusCompleted, Method: models.MethodSMS}
	if err := m.apply(context.Background(), events.BookingStatusChanged(b)); err != nil {
		t.Fatal(err)
	}
	if f.hashes["booking:7"]["status"] != "completed" || len(f.lists) != 0 {
		t.Fatalf("unexpected writes %v %v", f.hashes, f.lists)
	}
}

func TestDriverEventsMirrorAvailability(t *testing.T) {
	f := newFakeUpdater(0)
	m := &mirror{rc: f}
	d := models.Driver{ID: 3, Name: "John Sithole", Available: false}
	if err := m.apply(context.Background(), events.DriverAvailabilityChanged(d)); err != nil {
		t.Fatal(err)
	}
	if f.hashes["driver:3"]["available"] != false {
		t.Fatalf("unexpected driver hash %v", f.hashes["driver:3"])
	}
	if err := m.apply(context.Background(), events.Event{Type: events.TypeDriverRegistered}); err == nil {
		t.Fatal("expected error for driver event without driver")
	}
}

type scriptedReader struct {
	msgs   []kafka.Message
	cancel context.CancelFunc
}

func (r *scriptedReader) ReadMessage(ctx context.Context) (kafka.Message, error) {
	if len(r.msgs) == 0 {
		r.cancel()
		return kafka.Message{}, ctx.Err()
	}
	m := r.msgs[0]
	r.msgs = r.msgs[1:]
	return m, nil
}

func TestConsumeSkipsInvalidMessages(t *testing.T) {
	f := newFakeUpdater(0)
	valid, _ := json.Marshal(committed())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	r := &scriptedReader{cancel: cancel, msgs: []kafka.Message{{Value: []byte("not json")}, {Value: []byte(`{"at":"2024-01-01T00:00:00Z"}`)}, {Value: valid}}}

	consume(ctx, r, &mirror{rc: f}, logging.Discard())

	if len(f.hashes) != 1 || f.hashes["booking:42"] == nil {
		t.Fatalf("expected only the valid event mirrored, got %v", f.hashes)
	}
}
