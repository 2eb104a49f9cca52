package ledger

import (
	"context"
	"errors"
	"testing"

	"github.com/example/taxilink/internal/models"
	"github.com/example/taxilink/internal/storage"
)

func booking(from, to string) models.Booking {
	return models.Booking{From: from, To: to, Method: models.MethodOnline, Price: "R20", Driver: "Jane"}
}

func TestRecordPrependsMostRecentFirst(t *testing.T) {
	ctx := context.Background()
	l := Load(ctx, storage.NewMemoryStore(), nil)
	b1, _ := l.Record(ctx, booking("A", "B"))
	b2, _ := l.Record(ctx, booking("C", "D"))

	got := l.Recent(2)
	if len(got) != 2 || got[0].ID != b2.ID || got[1].ID != b1.ID {
		t.Fatalf("expected [B2, B1], got %+v", got)
	}
	if l.Len() != 4 {
		t.Fatalf("expected seed history plus two, got %d", l.Len())
	}
}

func TestRecordDefaultsAndValidation(t *testing.T) {
	ctx := context.Background()
	l := Load(ctx, storage.NewMemoryStore(), nil)
	b, err := l.Record(ctx, booking("A", "B"))
	if err != nil {
		t.Fatal(err)
	}
	if b.ID == 0 || b.Status != models.StatusActive {
		t.Fatalf("expected fresh id and active status, got %+v", b)
	}
	if _, err := l.Record(ctx, booking("", "B")); !errors.Is(err, ErrInvalidBooking) {
		t.Fatalf("expected ErrInvalidBooking, got %v", err)
	}
	bad := booking("A", "B")
	bad.Method = "Fax"
	if _, err := l.Record(ctx, bad); !errors.Is(err, ErrInvalidBooking) {
		t.Fatalf("expected ErrInvalidBooking for unknown method, got %v", err)
	}
}

func TestRecentBounds(t *testing.T) {
	l := Load(context.Background(), storage.NewMemoryStore(), nil)
	if got := l.Recent(0); len(got) != 0 {
		t.Fatalf("Recent(0) = %+v", got)
	}
	if got := l.Recent(10); len(got) != 2 {
		t.Fatalf("Recent(10) should cap at ledger size, got %d", len(got))
	}
}

func TestSetStatusOnlyChangesStatus(t *testing.T) {
	ctx := context.Background()
	s := storage.NewMemoryStore()
	l := Load(ctx, s, nil)
	b, _ := l.Record(ctx, booking("Church Square", "Menlyn"))

	updated, err := l.SetStatus(ctx, b.ID, models.StatusCompleted)
	if err != nil {
		t.Fatal(err)
	}
	want := b
	want.Status = models.StatusCompleted
	if updated != want {
		t.Fatalf("got %+v want %+v", updated, want)
	}
	reloaded, _ := Load(ctx, s, nil).Get(b.ID)
	if reloaded.Status != models.StatusCompleted {
		t.Fatalf("status not persisted: %+v", reloaded)
	}

	if _, err := l.SetStatus(ctx, 404, models.StatusCancelled); !errors.Is(err, ErrBookingNotFound) {
		t.Fatalf("expected ErrBookingNotFound, got %v", err)
	}
	if _, err := l.SetStatus(ctx, b.ID, "lost"); !errors.Is(err, ErrInvalidStatus) {
		t.Fatalf("expected ErrInvalidStatus, got %v", err)
	}
}

func TestLoadRecoversFromCorruptHistory(t *testing.T) {
	ctx := context.Background()
	s := storage.NewMemoryStore()
	_ = s.Save(ctx, storage.KeyHistory, []byte("]]"))
	l := Load(ctx, s, nil)
	if got := l.All(); len(got) != 2 || got[0].From != "Pretoria CBD" {
		t.Fatalf("expected default history, got %+v", got)
	}
}
