// Package ledger keeps the committed bookings, newest first.
package ledger

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/example/taxilink/internal/logging"
	"github.com/example/taxilink/internal/models"
	"github.com/example/taxilink/internal/observability"
	"github.com/example/taxilink/internal/storage"
)

var (
	ErrBookingNotFound = errors.New("booking not found")
	ErrInvalidStatus   = errors.New("invalid booking status")
	ErrInvalidBooking  = errors.New("booking needs from, to and a known method")
)

type Ledger struct {
	mu       sync.RWMutex
	bookings []models.Booking
	ids      *models.IDSource
	store    storage.Store
	log      *slog.Logger
}

// Load restores the ledger from s, falling back to the built-in history.
func Load(ctx context.Context, s storage.Store, log *slog.Logger) *Ledger {
	log = logging.OrDiscard(log)
	bookings := storage.LoadOr(ctx, s, storage.KeyHistory, models.DefaultHistory(), log)
	l := &Ledger{bookings: bookings, ids: models.NewIDSource(0), store: s, log: log}
	for _, b := range bookings {
		l.ids.Observe(b.ID)
	}
	return l
}

func (l *Ledger) WithIDs(ids *models.IDSource) *Ledger {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, b := range l.bookings {
		ids.Observe(b.ID)
	}
	l.ids = ids
	return l
}

// Record prepends b and persists the ledger. A zero id is replaced by a
// fresh one; a zero status becomes active.
func (l *Ledger) Record(ctx context.Context, b models.Booking) (models.Booking, error) {
	if b.From == "" || b.To == "" || !b.Method.Valid() {
		return models.Booking{}, ErrInvalidBooking
	}
	if b.Status == "" {
		b.Status = models.StatusActive
	}
	if !b.Status.Valid() {
		return models.Booking{}, ErrInvalidStatus
	}

	l.mu.Lock()
	if b.ID == 0 {
		b.ID = l.ids.Next()
	} else {
		l.ids.Observe(b.ID)
	}
	l.bookings = append([]models.Booking{b}, l.bookings...)
	err := l.persistLocked(ctx)
	l.mu.Unlock()

	observability.BookingsCommitted.WithLabelValues(string(b.Method)).Inc()
	l.log.Info("booking recorded", "booking_id", b.ID, "method", b.Method, "driver", b.Driver, "price", b.Price)
	return b, err
}

// SetStatus moves an existing booking to status. No other field changes.
func (l *Ledger) SetStatus(ctx context.Context, id int64, status models.Status) (models.Booking, error) {
	if !status.Valid() {
		return models.Booking{}, ErrInvalidStatus
	}
	l.mu.Lock()
	idx := -1
	for i := range l.bookings {
		if l.bookings[i].ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		l.mu.Unlock()
		return models.Booking{}, ErrBookingNotFound
	}
	prev := l.bookings[idx].Status
	l.bookings[idx].Status = status
	b := l.bookings[idx]
	err := l.persistLocked(ctx)
	l.mu.Unlock()

	observability.BookingStatusChanges.WithLabelValues(string(status)).Inc()
	l.log.Info("booking status changed", "booking_id", id, "from", prev, "to", status)
	return b, err
}

// Recent returns the n newest bookings.
func (l *Ledger) Recent(n int) []models.Booking {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if n <= 0 {
		return []models.Booking{}
	}
	if n > len(l.bookings) {
		n = len(l.bookings)
	}
	return append([]models.Booking(nil), l.bookings[:n]...)
}

func (l *Ledger) All() []models.Booking {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]models.Booking(nil), l.bookings...)
}

func (l *Ledger) Get(id int64) (models.Booking, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	for _, b := range l.bookings {
		if b.ID == id {
			return b, true
		}
	}
	return models.Booking{}, false
}

func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.bookings)
}

func (l *Ledger) persistLocked(ctx context.Context) error {
	if err := storage.SaveJSON(ctx, l.store, storage.KeyHistory, l.bookings); err != nil {
		l.log.Error("persist history failed", "error", err)
		return err
	}
	return nil
}
